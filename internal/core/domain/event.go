package domain

// EventKind identifies a contract event the indexer understands.
type EventKind string

const (
	EventUnknown              EventKind = ""
	EventMetadataCreated      EventKind = "METADATA_CREATED"
	EventMetadataUpdated      EventKind = "METADATA_UPDATED"
	EventMetadataState        EventKind = "METADATA_STATE"
	EventOrderStarted         EventKind = "ORDER_STARTED"
	EventOrderReused          EventKind = "ORDER_REUSED"
	EventDispenserCreated     EventKind = "DISPENSER_CREATED"
	EventDispenserActivated   EventKind = "DISPENSER_ACTIVATED"
	EventDispenserDeactivated EventKind = "DISPENSER_DEACTIVATED"
	EventExchangeCreated      EventKind = "EXCHANGE_CREATED"
	EventExchangeActivated    EventKind = "EXCHANGE_ACTIVATED"
	EventExchangeDeactivated  EventKind = "EXCHANGE_DEACTIVATED"
	EventExchangeRateChanged  EventKind = "EXCHANGE_RATE_CHANGED"
)

// EventRecord is a raw contract log as returned by the chain. It is consumed
// once per processing pass and never persisted.
type EventRecord struct {
	TxHash      string
	BlockNumber uint64
	LogIndex    uint
	Address     string
	Topics      []string
	Data        []byte
}

// Topic0 returns the event signature hash, or "" for anonymous logs.
func (r EventRecord) Topic0() string {
	if len(r.Topics) == 0 {
		return ""
	}
	return r.Topics[0]
}

// Event is a classified log ready for a processor.
type Event struct {
	Kind    EventKind
	ChainID ChainID
	Record  EventRecord
}
