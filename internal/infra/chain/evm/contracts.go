package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/infra/chain"
)

const factoryABI = `[
	{"type":"function","name":"erc721List","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"address"}]}
]`

const nftABI = `[
	{"type":"function","name":"getMetaData","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"},{"name":"","type":"string"},{"name":"","type":"uint8"},{"name":"","type":"bool"}]},
	{"type":"function","name":"getId","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"tokenURI","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

const datatokenABI = `[
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"getERC721Address","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getDispensers","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
	{"type":"function","name":"getFixedRates","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"tuple[]","components":[{"name":"contractAddress","type":"address"},{"name":"id","type":"bytes32"}]}]}
]`

const dispenserABI = `[
	{"type":"function","name":"status","stateMutability":"view","inputs":[{"name":"datatoken","type":"address"}],"outputs":[{"name":"active","type":"bool"},{"name":"owner","type":"address"},{"name":"isMinter","type":"bool"},{"name":"maxTokens","type":"uint256"},{"name":"maxBalance","type":"uint256"},{"name":"balance","type":"uint256"},{"name":"allowedSwapper","type":"address"}]}
]`

const fixedRateABI = `[
	{"type":"function","name":"getExchange","stateMutability":"view","inputs":[{"name":"exchangeId","type":"bytes32"}],"outputs":[{"name":"exchangeOwner","type":"address"},{"name":"datatoken","type":"address"},{"name":"dtDecimals","type":"uint256"},{"name":"baseToken","type":"address"},{"name":"btDecimals","type":"uint256"},{"name":"fixedRate","type":"uint256"},{"name":"active","type":"bool"},{"name":"dtSupply","type":"uint256"},{"name":"btSupply","type":"uint256"},{"name":"dtBalance","type":"uint256"},{"name":"btBalance","type":"uint256"},{"name":"withMint","type":"bool"}]}
]`

const routerABI = `[
	{"type":"function","name":"isDispenserContract","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"isFixedRateContract","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"bool"}]}
]`

const accessListABI = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	factoryContract    = mustParseABI(factoryABI)
	nftContract        = mustParseABI(nftABI)
	datatokenContract  = mustParseABI(datatokenABI)
	dispenserContract  = mustParseABI(dispenserABI)
	fixedRateContract  = mustParseABI(fixedRateABI)
	routerContract     = mustParseABI(routerABI)
	accessListContract = mustParseABI(accessListABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid contract abi: %v", err))
	}
	return parsed
}

// Caller executes read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, to string, data []byte) ([]byte, error)
}

// fixedRateRef is an entry of a datatoken's getFixedRates list.
type fixedRateRef struct {
	ContractAddress common.Address
	Id              [32]byte
}

// Contracts implements chain.ContractReader with ABI-encoded eth_call.
type Contracts struct {
	caller Caller
}

var _ chain.ContractReader = (*Contracts)(nil)

func NewContracts(caller Caller) *Contracts {
	return &Contracts{caller: caller}
}

func (c *Contracts) call(ctx context.Context, contract abi.ABI, to, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := c.caller.CallContract(ctx, to, data)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s on %s: empty result", method, to)
	}
	values, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func (c *Contracts) IsDeployedByFactory(ctx context.Context, factory, nft string) (bool, error) {
	out, err := c.call(ctx, factoryContract, factory, "erc721List", common.HexToAddress(nft))
	if err != nil {
		return false, err
	}
	listed := out[0].(common.Address)
	return listed == common.HexToAddress(nft), nil
}

func (c *Contracts) NFTInfo(ctx context.Context, nft string) (*domain.NFTInfo, error) {
	info := &domain.NFTInfo{Address: common.HexToAddress(nft).Hex()}

	meta, err := c.call(ctx, nftContract, nft, "getMetaData")
	if err != nil {
		return nil, err
	}
	info.State = domain.NFTState(meta[2].(uint8))

	if info.Name, err = c.callString(ctx, nftContract, nft, "name"); err != nil {
		return nil, err
	}
	if info.Symbol, err = c.callString(ctx, nftContract, nft, "symbol"); err != nil {
		return nil, err
	}

	id, err := c.call(ctx, nftContract, nft, "getId")
	if err != nil {
		return nil, err
	}
	if info.TokenURI, err = c.callString(ctx, nftContract, nft, "tokenURI", id[0].(*big.Int)); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Contracts) TokenInfo(ctx context.Context, token string) (string, string, error) {
	name, err := c.callString(ctx, datatokenContract, token, "name")
	if err != nil {
		return "", "", err
	}
	symbol, err := c.callString(ctx, datatokenContract, token, "symbol")
	if err != nil {
		return "", "", err
	}
	return name, symbol, nil
}

func (c *Contracts) ERC721Address(ctx context.Context, datatoken string) (string, error) {
	out, err := c.call(ctx, datatokenContract, datatoken, "getERC721Address")
	if err != nil {
		return "", err
	}
	return out[0].(common.Address).Hex(), nil
}

// DatatokenPrices lists the active pricing schemas of a datatoken, dispensers
// first, each group in contract order.
func (c *Contracts) DatatokenPrices(ctx context.Context, datatoken string) ([]domain.Price, error) {
	out, err := c.call(ctx, datatokenContract, datatoken, "getDispensers")
	if err != nil {
		return nil, err
	}
	dispensers := out[0].([]common.Address)

	out, err = c.call(ctx, datatokenContract, datatoken, "getFixedRates")
	if err != nil {
		return nil, err
	}
	fixedRates := *abi.ConvertType(out[0], new([]fixedRateRef)).(*[]fixedRateRef)

	slots := make([]*domain.Price, len(dispensers)+len(fixedRates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	token := common.HexToAddress(datatoken)
	for i, d := range dispensers {
		g.Go(func() error {
			status, err := c.call(gctx, dispenserContract, d.Hex(), "status", token)
			if err != nil {
				return err
			}
			if status[0].(bool) {
				slots[i] = &domain.Price{
					Type:     domain.PriceTypeDispenser,
					Price:    "0",
					Contract: d.Hex(),
					Token:    token.Hex(),
				}
			}
			return nil
		})
	}
	for i, fr := range fixedRates {
		g.Go(func() error {
			ex, err := c.call(gctx, fixedRateContract, fr.ContractAddress.Hex(), "getExchange", fr.Id)
			if err != nil {
				return err
			}
			if ex[6].(bool) {
				slots[len(dispensers)+i] = &domain.Price{
					Type:       domain.PriceTypeFixedRate,
					Price:      FormatUnits(ex[5].(*big.Int), 18),
					Contract:   fr.ContractAddress.Hex(),
					Token:      ex[3].(common.Address).Hex(),
					ExchangeID: hexutil.Encode(fr.Id[:]),
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prices := make([]domain.Price, 0, len(slots))
	for _, p := range slots {
		if p != nil {
			prices = append(prices, *p)
		}
	}
	return prices, nil
}

func (c *Contracts) Exchange(ctx context.Context, fre string, exchangeID [32]byte) (string, *big.Int, error) {
	out, err := c.call(ctx, fixedRateContract, fre, "getExchange", exchangeID)
	if err != nil {
		return "", nil, err
	}
	return out[1].(common.Address).Hex(), out[5].(*big.Int), nil
}

func (c *Contracts) IsDispenserContract(ctx context.Context, router, addr string) (bool, error) {
	return c.callBool(ctx, routerContract, router, "isDispenserContract", common.HexToAddress(addr))
}

func (c *Contracts) IsFixedRateContract(ctx context.Context, router, addr string) (bool, error) {
	return c.callBool(ctx, routerContract, router, "isFixedRateContract", common.HexToAddress(addr))
}

func (c *Contracts) HasAccess(ctx context.Context, accessList, account string) (bool, error) {
	out, err := c.call(ctx, accessListContract, accessList, "balanceOf", common.HexToAddress(account))
	if err != nil {
		return false, err
	}
	return out[0].(*big.Int).Sign() > 0, nil
}

func (c *Contracts) callString(ctx context.Context, contract abi.ABI, to, method string, args ...any) (string, error) {
	out, err := c.call(ctx, contract, to, method, args...)
	if err != nil {
		return "", err
	}
	return out[0].(string), nil
}

func (c *Contracts) callBool(ctx context.Context, contract abi.ABI, to, method string, args ...any) (bool, error) {
	out, err := c.call(ctx, contract, to, method, args...)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// FormatUnits renders an integer amount with the given number of decimals,
// trimming trailing zeros: FormatUnits(1500000000000000000, 18) == "1.5".
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(abs, unit, new(big.Int))

	s := whole.String()
	if frac.Sign() != 0 {
		f := frac.String()
		f = strings.Repeat("0", decimals-len(f)) + f
		s += "." + strings.TrimRight(f, "0")
	}
	if neg {
		s = "-" + s
	}
	return s
}
