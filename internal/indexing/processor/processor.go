// Package processor rebuilds asset documents from classified contract
// events.
//
// There is one Processor per event kind. A processor either persists a
// document and returns a Result, or returns an error:
//
//   - errors wrapping ErrRejected are validation failures; the event is
//     consumed and the reason is kept in the document's processing state
//   - any other error is transient; the caller retries the whole batch
//
// Every attempt that can name a document updates its DDOState record, so
// failed attempts stay observable. Replays of an already indexed
// transaction leave the record alone.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/recovery"
	"github.com/vietddude/ocean-indexer/internal/infra/chain"
	"github.com/vietddude/ocean-indexer/internal/infra/storage"
)

// ErrRejected marks a document that failed validation.
var ErrRejected = fmt.Errorf("document rejected: %w", recovery.ErrValidation)

func reject(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

// errReplayed marks an event whose transaction already wrote the stored
// record. The state record of that write is kept.
var errReplayed = fmt.Errorf("%w: transaction already indexed", ErrRejected)

func replayed(txID string) error {
	return fmt.Errorf("%w: %s", errReplayed, txID)
}

// IsRejected reports whether err is a validation failure.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}

// Result describes a persisted document.
type Result struct {
	DID      string
	TxID     string
	Block    uint64
	Document *domain.DDO
}

// Processor handles one kind of event.
type Processor interface {
	Process(ctx context.Context, ev domain.Event) (*Result, error)
}

// Config holds per-chain processing rules.
type Config struct {
	// FactoryAddress is the ERC721 factory that must have deployed every
	// data NFT.
	FactoryAddress string

	// RouterAddress validates dispenser and fixed rate contracts when set.
	RouterAddress string

	// AuthorizedPublishers restricts document owners when non-empty.
	AuthorizedPublishers []string

	// AccessLists are access list contracts; owners must hold a token on
	// at least one when non-empty.
	AccessLists []string
}

// Deps are the collaborators shared by every processor of a chain.
type Deps struct {
	ChainID   domain.ChainID
	Config    Config
	Contracts chain.ContractReader
	DDOs      storage.DDORepository
	States    storage.DDOStateRepository
	Orders    storage.OrderRepository
	Decrypter Decrypter
	Policy    PolicyChecker
	Purgatory PurgatoryChecker
	Logger    *slog.Logger
}

// base carries the shared collaborators and helpers.
type base struct {
	Deps
	log *slog.Logger
}

func newBase(deps Deps) base {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if deps.Policy == nil {
		deps.Policy = AllowAll{}
	}
	if deps.Purgatory == nil {
		deps.Purgatory = NoPurgatory{}
	}
	return base{Deps: deps, log: log.With("chain", deps.ChainID.Name())}
}

// recordState stores the outcome of a processing attempt. State write
// failures are logged and do not override the processing outcome.
func (b *base) recordState(ctx context.Context, did, nft, txID string, procErr error) {
	if errors.Is(procErr, errReplayed) {
		return
	}
	state := &domain.DDOState{
		DID:        did,
		ChainID:    b.ChainID,
		NFTAddress: nft,
		TxID:       txID,
		Valid:      procErr == nil,
	}
	if procErr != nil {
		state.Error = procErr.Error()
	}
	if err := b.States.Upsert(ctx, state); err != nil {
		b.log.Warn("Failed to record document state", "did", did, "error", err)
	}
}

// retrieve loads a stored document, returning nil when there is none.
func (b *base) retrieve(ctx context.Context, did string) (*domain.DDO, error) {
	doc, err := b.DDOs.Retrieve(ctx, did)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve %s: %w", did, err)
	}
	return doc, nil
}

// replace deletes any stored document and state for did, then inserts doc.
func (b *base) replace(ctx context.Context, did string, doc *domain.DDO) error {
	if err := b.DDOs.Delete(ctx, did); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete %s: %w", did, err)
	}
	if err := b.States.Delete(ctx, did); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete state %s: %w", did, err)
	}
	if err := b.DDOs.Create(ctx, doc); err != nil {
		return fmt.Errorf("create %s: %w", did, err)
	}
	return nil
}

// update fully replaces a stored document.
func (b *base) update(ctx context.Context, doc *domain.DDO) error {
	if err := b.DDOs.Update(ctx, doc); err != nil {
		return fmt.Errorf("update %s: %w", doc.ID(), err)
	}
	return nil
}

// callFailed converts a contract read failure: reverted calls reject the
// document, anything else is transient.
func callFailed(what string, err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "execution reverted") {
		return reject("%s: %v", what, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}
