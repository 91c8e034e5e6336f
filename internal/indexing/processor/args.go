package processor

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/classifier"
)

const datetimeLayout = "2006-01-02T15:04:05.000Z"

// eventArgs is a decoded event with typed accessors. A missing or mistyped
// argument is a rejection.
type eventArgs map[string]any

func decodeArgs(ev domain.Event) (eventArgs, error) {
	args, err := classifier.Decode(ev)
	if err != nil {
		return nil, reject("decode %s: %v", ev.Kind, err)
	}
	return eventArgs(args), nil
}

func argAs[T any](args eventArgs, name string) (T, error) {
	var zero T
	v, ok := args[name]
	if !ok {
		return zero, reject("event argument %q missing", name)
	}
	t, ok := v.(T)
	if !ok {
		return zero, reject("event argument %q has type %T", name, v)
	}
	return t, nil
}

func (a eventArgs) address(name string) (string, error) {
	v, err := argAs[common.Address](a, name)
	if err != nil {
		return "", err
	}
	return v.Hex(), nil
}

func (a eventArgs) bytes32(name string) ([32]byte, error) {
	return argAs[[32]byte](a, name)
}

func (a eventArgs) hash(name string) (string, error) {
	v, err := a.bytes32(name)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(v[:]), nil
}

func (a eventArgs) bigInt(name string) (*big.Int, error) {
	v, err := argAs[*big.Int](a, name)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, reject("event argument %q is nil", name)
	}
	return v, nil
}

// timestamp reads a unix seconds argument.
func (a eventArgs) timestamp(name string) (int64, error) {
	v, err := a.bigInt(name)
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() {
		return 0, reject("event argument %q out of range", name)
	}
	return v.Int64(), nil
}

func formatDatetime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(datetimeLayout)
}
