package classifier

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/metrics"
)

// Classifier maps raw logs to event kinds by their topic0 hash.
type Classifier struct {
	table  map[common.Hash]domain.EventKind
	topics []string
}

// New builds the signature table from the event ABI.
func New() *Classifier {
	c := &Classifier{table: make(map[common.Hash]domain.EventKind, len(eventNames))}
	for kind, name := range eventNames {
		c.table[ABI.Events[name].ID] = kind
	}
	for h := range c.table {
		c.topics = append(c.topics, h.Hex())
	}
	sort.Strings(c.topics)
	return c
}

// Classify returns the kind of a log. Unknown signatures return
// (EventUnknown, false) and are not an error.
func (c *Classifier) Classify(rec domain.EventRecord) (domain.EventKind, bool) {
	if len(rec.Topics) == 0 {
		return domain.EventUnknown, false
	}
	kind, ok := c.table[common.HexToHash(rec.Topic0())]
	if !ok {
		return domain.EventUnknown, false
	}
	return kind, true
}

// ClassifyAll classifies each log independently, dropping unknown ones.
func (c *Classifier) ClassifyAll(chainID domain.ChainID, records []domain.EventRecord) []domain.Event {
	events := make([]domain.Event, 0, len(records))
	for _, rec := range records {
		kind, ok := c.Classify(rec)
		if !ok {
			metrics.UnknownEvents.WithLabelValues(chainID.Name()).Inc()
			continue
		}
		events = append(events, domain.Event{Kind: kind, ChainID: chainID, Record: rec})
	}
	return events
}

// Topics returns the topic0 hashes of every known event, for log filters.
func (c *Classifier) Topics() []string {
	out := make([]string, len(c.topics))
	copy(out, c.topics)
	return out
}

// Decode unpacks the indexed and non-indexed arguments of a classified log
// into a map keyed by argument name.
func Decode(ev domain.Event) (map[string]any, error) {
	name, ok := eventNames[ev.Kind]
	if !ok {
		return nil, fmt.Errorf("no abi for event kind %q", ev.Kind)
	}
	event := ABI.Events[name]

	args := make(map[string]any)
	if len(ev.Record.Data) > 0 {
		if err := ABI.UnpackIntoMap(args, name, ev.Record.Data); err != nil {
			return nil, fmt.Errorf("decode %s data: %w", name, err)
		}
	}

	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(indexed) > 0 {
		if len(ev.Record.Topics) < len(indexed)+1 {
			return nil, fmt.Errorf("decode %s: expected %d topics, got %d", name, len(indexed)+1, len(ev.Record.Topics))
		}
		topics := make([]common.Hash, 0, len(indexed))
		for _, t := range ev.Record.Topics[1:] {
			topics = append(topics, common.HexToHash(t))
		}
		if err := abi.ParseTopicsIntoMap(args, indexed, topics); err != nil {
			return nil, fmt.Errorf("decode %s topics: %w", name, err)
		}
	}
	return args, nil
}

// Encode builds a raw log of the given kind. indexed are the topic values
// after topic0; data are the non-indexed arguments in ABI order.
func Encode(kind domain.EventKind, indexed []common.Hash, data ...any) (domain.EventRecord, error) {
	name, ok := eventNames[kind]
	if !ok {
		return domain.EventRecord{}, fmt.Errorf("no abi for event kind %q", kind)
	}
	event := ABI.Events[name]

	packed, err := event.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		return domain.EventRecord{}, fmt.Errorf("encode %s: %w", name, err)
	}
	topics := []string{event.ID.Hex()}
	for _, h := range indexed {
		topics = append(topics, h.Hex())
	}
	return domain.EventRecord{Topics: topics, Data: packed}, nil
}
