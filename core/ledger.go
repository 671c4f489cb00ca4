// Package core owns the ledger state and serialises every state-changing
// call into an atomic, all-or-nothing unit.
package core

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"voteledger/core/events"
	ledgerstate "voteledger/core/state"
	"voteledger/core/types"
	"voteledger/native/bank"
	"voteledger/native/votes"
	"voteledger/observability"
	"voteledger/storage"
	"voteledger/storage/trie"
)

var (
	// ErrLedgerMismatch is returned when stored token metadata disagrees with
	// the configured ledger.
	ErrLedgerMismatch = errors.New("core: stored ledger does not match configuration")
	// ErrGenesisApplied is returned when genesis is applied twice or to a
	// ledger that already sealed a block.
	ErrGenesisApplied = errors.New("core: genesis already applied")

	headKey = []byte("voteledger/head")
)

// Options describe the ledger token and its signing domain.
type Options struct {
	Name     string
	Symbol   string
	Decimals uint8
	ChainID  uint64
	// Address is the ledger's own account.
	Address types.AccountID

	Logger    *slog.Logger
	Now       func() time.Time
	Recoverer votes.Recoverer
	Metrics   *observability.LedgerMetrics
}

// EventSink receives every event of a successful call, stamped with its block
// height and per-block sequence. Sinks run under the writer lock and must not
// block.
type EventSink interface {
	Publish(evt *types.Event)
}

// head is the persisted pointer to the last sealed block.
type head struct {
	Height uint64
	Root   common.Hash
}

// Ledger is the single entry point to balances, delegations and voting power.
type Ledger struct {
	mu      sync.RWMutex
	db      storage.Database
	trie    *trie.Trie
	height  uint64
	seq     uint64
	sealed  bool
	opts    Options
	domain  votes.Domain
	sinks   []EventSink
	logger  *slog.Logger
	metrics *observability.LedgerMetrics

	// genesisApplied guards ApplyGenesis within the open first block.
	genesisApplied bool
}

// Open loads the ledger from db, resuming after the last sealed block, or
// initialises a fresh ledger at block 1.
func Open(db storage.Database, opts Options) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	opts.Symbol = strings.ToUpper(strings.TrimSpace(opts.Symbol))
	if strings.TrimSpace(opts.Name) == "" || opts.Symbol == "" {
		return nil, fmt.Errorf("core: token name and symbol required")
	}
	if opts.Address.IsNone() {
		return nil, fmt.Errorf("core: ledger address required")
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	l := &Ledger{
		db:   db,
		opts: opts,
		domain: votes.Domain{
			Name:              opts.Name,
			ChainID:           opts.ChainID,
			VerifyingContract: opts.Address,
		},
		logger:  logger.With(slog.String("component", "ledger")),
		metrics: opts.Metrics,
	}

	raw, err := db.Get(headKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if l.trie, err = trie.NewTrie(db, nil); err != nil {
			return nil, fmt.Errorf("core: init state trie: %w", err)
		}
		l.height = 1
		meta := &ledgerstate.TokenMetadata{Name: opts.Name, Symbol: opts.Symbol, Decimals: opts.Decimals}
		if err := ledgerstate.NewManager(l.trie).SetToken(meta); err != nil {
			return nil, fmt.Errorf("core: register token: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("core: load head: %w", err)
	default:
		var h head
		if err := rlp.DecodeBytes(raw, &h); err != nil {
			return nil, fmt.Errorf("core: decode head: %w", err)
		}
		if l.trie, err = trie.NewTrie(db, h.Root.Bytes()); err != nil {
			return nil, fmt.Errorf("core: open state at %s: %w", h.Root, err)
		}
		l.height = h.Height + 1
		l.sealed = true
		meta, err := ledgerstate.NewManager(l.trie).Token()
		if err != nil {
			return nil, fmt.Errorf("core: load token: %w", err)
		}
		if meta == nil || meta.Symbol != opts.Symbol || meta.Name != opts.Name {
			return nil, fmt.Errorf("%w: configured %s", ErrLedgerMismatch, opts.Symbol)
		}
	}
	l.metrics.SetHeight(l.height)
	l.logger.Info("ledger opened",
		slog.Uint64("height", l.height),
		slog.String("root", l.trie.Root().Hex()),
		slog.String("symbol", opts.Symbol))
	return l, nil
}

// AddSink registers a downstream consumer of ledger events.
func (l *Ledger) AddSink(sink EventSink) {
	if sink == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, sink)
}

// session is the set of engines bound to one trie for one call.
type session struct {
	state *ledgerstate.Manager
	bank  *bank.Ledger
	votes *votes.Engine
}

func (l *Ledger) newSession(tr *trie.Trie, height uint64, emitter events.Emitter) *session {
	manager := ledgerstate.NewManager(tr)

	engine := votes.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(l.opts.Now)
	engine.SetBlockFunc(func() uint64 { return height })
	engine.SetDomain(l.domain)
	engine.SetRecoverer(l.opts.Recoverer)

	ledger := bank.NewLedger(l.opts.Address, l.opts.Symbol)
	ledger.SetState(manager)
	ledger.SetHooks(engine)
	ledger.SetEmitter(emitter)

	return &session{state: manager, bank: ledger, votes: engine}
}

// execute runs fn under the writer lock. Any error reverts every state write
// fn made and drops its events; on success the events are published.
func (l *Ledger) execute(op string, fn func(*session) error) error {
	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := l.trie.Snapshot()
	buf := &events.Buffer{}
	if err := fn(l.newSession(l.trie, l.height, buf)); err != nil {
		l.trie.Revert(snap)
		l.metrics.ObserveOperation(op, time.Since(start), err)
		l.logger.Debug("operation rejected", slog.String("op", op), slog.Any("error", err))
		return err
	}
	l.publish(buf.Drain())
	l.metrics.ObserveOperation(op, time.Since(start), nil)
	return nil
}

// view runs fn against a private copy of the current state so reads never
// wait on each other.
func (l *Ledger) view(fn func(*session) error) error {
	l.mu.RLock()
	tr := l.trie.Copy()
	height := l.height
	l.mu.RUnlock()
	return fn(l.newSession(tr, height, events.NoopEmitter{}))
}

func (l *Ledger) publish(evts []events.Event) {
	for _, evt := range evts {
		rendered := evt.Event()
		if rendered == nil {
			continue
		}
		rendered.Height = l.height
		rendered.Sequence = l.seq
		l.seq++
		if supply, ok := evt.(events.TokenSupply); ok {
			l.metrics.SetTotalSupply(supply.Total)
		}
		observability.Events().RecordEvent(rendered.Type)
		for _, sink := range l.sinks {
			sink.Publish(rendered)
		}
	}
}

// BlockNumber returns the current block: the one state changes are recorded
// at. Every lower block is sealed.
func (l *Ledger) BlockNumber() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.height
}

// Root returns the state root of the last sealed block.
func (l *Ledger) Root() common.Hash {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.trie.Root()
}

// PendingRoot returns the state root including the writes of the open block.
func (l *Ledger) PendingRoot() common.Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trie.Hash()
}

// AdvanceBlock seals the current block: the state trie is committed, the head
// persisted and the block counter incremented. The sealed height and its
// state root are returned.
func (l *Ledger) AdvanceBlock() (uint64, common.Hash, error) {
	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	sealed := l.height
	root, err := l.trie.Commit(sealed)
	if err != nil {
		return 0, common.Hash{}, fmt.Errorf("core: commit block %d: %w", sealed, err)
	}
	encoded, err := rlp.EncodeToBytes(&head{Height: sealed, Root: root})
	if err != nil {
		return 0, common.Hash{}, err
	}
	if err := l.db.Put(headKey, encoded); err != nil {
		return 0, common.Hash{}, fmt.Errorf("core: persist head: %w", err)
	}
	l.height++
	l.seq = 0
	l.sealed = true
	l.metrics.SetHeight(l.height)
	l.metrics.ObserveOperation("advance_block", time.Since(start), nil)
	l.logger.Debug("block sealed", slog.Uint64("height", sealed), slog.String("root", root.Hex()))
	return sealed, root, nil
}
