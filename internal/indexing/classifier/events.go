package classifier

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
)

// eventsABI lists every contract event the indexer consumes.
const eventsABI = `[
	{"type":"event","name":"MetadataCreated","anonymous":false,"inputs":[
		{"indexed":true,"name":"createdBy","type":"address"},
		{"indexed":false,"name":"state","type":"uint8"},
		{"indexed":false,"name":"decryptorUrl","type":"string"},
		{"indexed":false,"name":"flags","type":"bytes"},
		{"indexed":false,"name":"data","type":"bytes"},
		{"indexed":false,"name":"metaDataHash","type":"bytes32"},
		{"indexed":false,"name":"timestamp","type":"uint256"},
		{"indexed":false,"name":"blockNumber","type":"uint256"}]},
	{"type":"event","name":"MetadataUpdated","anonymous":false,"inputs":[
		{"indexed":true,"name":"updatedBy","type":"address"},
		{"indexed":false,"name":"state","type":"uint8"},
		{"indexed":false,"name":"decryptorUrl","type":"string"},
		{"indexed":false,"name":"flags","type":"bytes"},
		{"indexed":false,"name":"data","type":"bytes"},
		{"indexed":false,"name":"metaDataHash","type":"bytes32"},
		{"indexed":false,"name":"timestamp","type":"uint256"},
		{"indexed":false,"name":"blockNumber","type":"uint256"}]},
	{"type":"event","name":"MetadataState","anonymous":false,"inputs":[
		{"indexed":true,"name":"updatedBy","type":"address"},
		{"indexed":false,"name":"state","type":"uint8"},
		{"indexed":false,"name":"timestamp","type":"uint256"},
		{"indexed":false,"name":"blockNumber","type":"uint256"}]},
	{"type":"event","name":"OrderStarted","anonymous":false,"inputs":[
		{"indexed":true,"name":"consumer","type":"address"},
		{"indexed":false,"name":"payer","type":"address"},
		{"indexed":false,"name":"amount","type":"uint256"},
		{"indexed":false,"name":"serviceIndex","type":"uint256"},
		{"indexed":false,"name":"timestamp","type":"uint256"},
		{"indexed":true,"name":"publishMarketAddress","type":"address"},
		{"indexed":false,"name":"blockNumber","type":"uint256"}]},
	{"type":"event","name":"OrderReused","anonymous":false,"inputs":[
		{"indexed":false,"name":"orderTxId","type":"bytes32"},
		{"indexed":false,"name":"caller","type":"address"},
		{"indexed":false,"name":"timestamp","type":"uint256"},
		{"indexed":false,"name":"number","type":"uint256"}]},
	{"type":"event","name":"DispenserCreated","anonymous":false,"inputs":[
		{"indexed":true,"name":"datatokenAddress","type":"address"},
		{"indexed":true,"name":"owner","type":"address"},
		{"indexed":false,"name":"maxTokens","type":"uint256"},
		{"indexed":false,"name":"maxBalance","type":"uint256"},
		{"indexed":false,"name":"allowedSwapper","type":"address"}]},
	{"type":"event","name":"DispenserActivated","anonymous":false,"inputs":[
		{"indexed":true,"name":"datatokenAddress","type":"address"}]},
	{"type":"event","name":"DispenserDeactivated","anonymous":false,"inputs":[
		{"indexed":true,"name":"datatokenAddress","type":"address"}]},
	{"type":"event","name":"ExchangeCreated","anonymous":false,"inputs":[
		{"indexed":true,"name":"exchangeId","type":"bytes32"},
		{"indexed":true,"name":"baseToken","type":"address"},
		{"indexed":true,"name":"datatoken","type":"address"},
		{"indexed":false,"name":"exchangeOwner","type":"address"},
		{"indexed":false,"name":"fixedRate","type":"uint256"}]},
	{"type":"event","name":"ExchangeActivated","anonymous":false,"inputs":[
		{"indexed":true,"name":"exchangeId","type":"bytes32"},
		{"indexed":true,"name":"exchangeOwner","type":"address"}]},
	{"type":"event","name":"ExchangeDeactivated","anonymous":false,"inputs":[
		{"indexed":true,"name":"exchangeId","type":"bytes32"},
		{"indexed":true,"name":"exchangeOwner","type":"address"}]},
	{"type":"event","name":"ExchangeRateChanged","anonymous":false,"inputs":[
		{"indexed":true,"name":"exchangeId","type":"bytes32"},
		{"indexed":true,"name":"rateChangedBy","type":"address"},
		{"indexed":false,"name":"newRate","type":"uint256"}]}
]`

// eventNames maps each kind to its ABI event name.
var eventNames = map[domain.EventKind]string{
	domain.EventMetadataCreated:      "MetadataCreated",
	domain.EventMetadataUpdated:      "MetadataUpdated",
	domain.EventMetadataState:        "MetadataState",
	domain.EventOrderStarted:         "OrderStarted",
	domain.EventOrderReused:          "OrderReused",
	domain.EventDispenserCreated:     "DispenserCreated",
	domain.EventDispenserActivated:   "DispenserActivated",
	domain.EventDispenserDeactivated: "DispenserDeactivated",
	domain.EventExchangeCreated:      "ExchangeCreated",
	domain.EventExchangeActivated:    "ExchangeActivated",
	domain.EventExchangeDeactivated:  "ExchangeDeactivated",
	domain.EventExchangeRateChanged:  "ExchangeRateChanged",
}

// ABI is the parsed event ABI shared by the classifier and decoders.
var ABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(eventsABI))
	if err != nil {
		panic(fmt.Sprintf("invalid events abi: %v", err))
	}
	return parsed
}()

// EventName returns the contract event name of a kind.
func EventName(kind domain.EventKind) (string, bool) {
	name, ok := eventNames[kind]
	return name, ok
}
