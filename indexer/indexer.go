// Package indexer persists delegation, voting power and transfer events to a
// SQL database so their history can be queried without replaying the ledger.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"voteledger/core/events"
	"voteledger/core/types"
	"voteledger/observability"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultQueueSize = 1024
	defaultBatchSize = 128
	defaultLimit     = 100
	maxLimit         = 1000
)

// ErrUnknownDriver is returned for database drivers other than sqlite and
// postgres.
var ErrUnknownDriver = errors.New("indexer: unknown database driver")

// OpenDB connects to the configured database and applies the schema.
func OpenDB(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return db, nil
}

// Options tune the write queue.
type Options struct {
	QueueSize int
	BatchSize int
	Logger    *slog.Logger
}

// Indexer consumes ledger events through Publish and writes them in batches
// from a single background worker.
type Indexer struct {
	db     *gorm.DB
	queue  chan *types.Event
	batch  int
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	once   sync.Once
}

// New starts the background writer.
func New(db *gorm.DB, opts Options) *Indexer {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	idx := &Indexer{
		db:     db,
		queue:  make(chan *types.Event, opts.QueueSize),
		batch:  opts.BatchSize,
		logger: logger.With(slog.String("component", "indexer")),
		done:   make(chan struct{}),
	}
	go idx.run()
	return idx
}

// Publish enqueues an event. It never blocks: when the queue is full the event
// is dropped and counted as a sink error.
func (i *Indexer) Publish(evt *types.Event) {
	if evt == nil || !indexed(evt.Type) {
		return
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return
	}
	select {
	case i.queue <- evt:
	default:
		observability.Events().RecordSinkError("indexer")
		i.logger.Warn("indexer queue full, dropping event",
			slog.String("type", evt.Type),
			slog.Uint64("height", evt.Height),
			slog.Uint64("sequence", evt.Sequence))
	}
}

// Close stops accepting events and waits until queued events are written or
// ctx expires.
func (i *Indexer) Close(ctx context.Context) error {
	i.once.Do(func() {
		i.mu.Lock()
		i.closed = true
		close(i.queue)
		i.mu.Unlock()
	})
	select {
	case <-i.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (i *Indexer) run() {
	defer close(i.done)
	pending := make([]EventRecord, 0, i.batch)
	for evt := range i.queue {
		pending = append(pending, recordFor(evt))
	drain:
		for len(pending) < i.batch {
			select {
			case next, ok := <-i.queue:
				if !ok {
					break drain
				}
				pending = append(pending, recordFor(next))
			default:
				break drain
			}
		}
		i.write(pending)
		pending = pending[:0]
	}
}

func (i *Indexer) write(records []EventRecord) {
	if len(records) == 0 {
		return
	}
	if err := i.db.CreateInBatches(records, i.batch).Error; err != nil {
		observability.Events().RecordSinkError("indexer")
		i.logger.Error("persist events", slog.Int("count", len(records)), slog.Any("error", err))
	}
}

func indexed(eventType string) bool {
	switch eventType {
	case events.TypeDelegateeChanged, events.TypeDelegateVotesChanged, events.TypeTransfer:
		return true
	}
	return false
}

func recordFor(evt *types.Event) EventRecord {
	attrs := evt.Attributes
	rec := EventRecord{
		ID:        uuid.New(),
		Height:    evt.Height,
		Sequence:  evt.Sequence,
		Type:      evt.Type,
		CreatedAt: time.Now().UTC(),
	}
	switch evt.Type {
	case events.TypeDelegateeChanged:
		rec.Delegator = attrs["delegator"]
		rec.From = attrs["from"]
		rec.To = attrs["to"]
	case events.TypeDelegateVotesChanged:
		rec.Delegate = attrs["delegate"]
		rec.Previous = attrs["previous"]
		rec.Current = attrs["current"]
	case events.TypeTransfer:
		rec.From = attrs["from"]
		rec.To = attrs["to"]
		rec.Amount = attrs["amount"]
	}
	return rec
}

// Query narrows a history lookup. FromHeight is inclusive; zero Limit means
// the default page size.
type Query struct {
	FromHeight uint64
	Limit      int
}

func (q Query) limit() int {
	switch {
	case q.Limit <= 0:
		return defaultLimit
	case q.Limit > maxLimit:
		return maxLimit
	}
	return q.Limit
}

// VotesHistory returns the voting power changes of delegate in ledger order.
func (i *Indexer) VotesHistory(ctx context.Context, delegate types.AccountID, q Query) ([]EventRecord, error) {
	var out []EventRecord
	err := i.db.WithContext(ctx).
		Where("type = ? AND delegate = ? AND height >= ?", events.TypeDelegateVotesChanged, delegate.String(), q.FromHeight).
		Order("height ASC, sequence ASC").
		Limit(q.limit()).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("indexer: votes history: %w", err)
	}
	return out, nil
}

// DelegationHistory returns every delegatee change made by delegator.
func (i *Indexer) DelegationHistory(ctx context.Context, delegator types.AccountID, q Query) ([]EventRecord, error) {
	var out []EventRecord
	err := i.db.WithContext(ctx).
		Where("type = ? AND delegator = ? AND height >= ?", events.TypeDelegateeChanged, delegator.String(), q.FromHeight).
		Order("height ASC, sequence ASC").
		Limit(q.limit()).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("indexer: delegation history: %w", err)
	}
	return out, nil
}

// Transfers returns the transfers sent or received by account.
func (i *Indexer) Transfers(ctx context.Context, account types.AccountID, q Query) ([]EventRecord, error) {
	addr := account.String()
	var out []EventRecord
	err := i.db.WithContext(ctx).
		Where("type = ? AND (from_account = ? OR to_account = ?) AND height >= ?", events.TypeTransfer, addr, addr, q.FromHeight).
		Order("height ASC, sequence ASC").
		Limit(q.limit()).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("indexer: transfers: %w", err)
	}
	return out, nil
}
