// Package store implements the durable key/value engine: size and rate
// limiting on writes, and the delayed-visibility mechanism that models
// bounded eventual consistency (spec.md §4.1).
package store

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"tidesim/internal/config"
	"tidesim/internal/errs"
)

// NoLimit means a range scan should return every matching entry.
const NoLimit = -1

// Config controls the store engine's consistency window.
type Config struct {
	ConsistencyBoundMin time.Duration
	ConsistencyBoundMax time.Duration
}

// Store is the durable, rate-limited, eventually-consistent key/value engine.
type Store struct {
	cfg    Config
	logger *zap.Logger

	db    *db
	rate  *rateCounter
	queue *pendingQueue
	recon *reconciler

	cancel context.CancelFunc
	done   chan struct{}

	onPendingDepth  func(int)
	onWriteAccepted func()
	onWriteRejected func()
	onRead          func()
	onRangeScan     func()
}

// Option configures optional collaborators (metrics hooks) on a Store.
type Option func(*Store)

// WithPendingDepthObserver registers a callback invoked whenever the pending
// queue's length changes, used to drive a Prometheus gauge.
func WithPendingDepthObserver(f func(int)) Option {
	return func(s *Store) { s.onPendingDepth = f }
}

// WithWriteAcceptedObserver registers a callback invoked once per accepted write.
func WithWriteAcceptedObserver(f func()) Option {
	return func(s *Store) { s.onWriteAccepted = f }
}

// WithWriteRejectedObserver registers a callback invoked once per write
// rejected by the cooldown.
func WithWriteRejectedObserver(f func()) Option {
	return func(s *Store) { s.onWriteRejected = f }
}

// WithReadObserver registers a callback invoked once per Get call.
func WithReadObserver(f func()) Option {
	return func(s *Store) { s.onRead = f }
}

// WithRangeScanObserver registers a callback invoked once per Range call.
func WithRangeScanObserver(f func()) Option {
	return func(s *Store) { s.onRangeScan = f }
}

// Open creates or opens the durable store rooted at directory and starts its
// background reconciler.
func Open(directory string, cfg Config, logger *zap.Logger, opts ...Option) (*Store, error) {
	if cfg.ConsistencyBoundMin > cfg.ConsistencyBoundMax {
		return nil, fmt.Errorf("consistency bound min must be <= max")
	}

	underlying, err := openDB(directory)
	if err != nil {
		return nil, err
	}

	s := &Store{
		cfg:    cfg,
		logger: logger,
		db:     underlying,
		rate:   newRateCounter(config.WriteRatePerKeySeconds * time.Second),
		queue:  newPendingQueue(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.recon = newReconciler(s.queue, s.db, logger, s.onPendingDepth)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.recon.run(ctx)
	}()

	return s, nil
}

// Close stops the background reconciler, then applies every remaining
// pending write immediately (spec.md §5: graceful shutdown "flushes pending
// writes by advancing time to completion"), then closes the underlying
// database.
func (s *Store) Close() error {
	s.cancel()
	<-s.done
	s.recon.drainAll(context.Background())
	return s.db.close()
}

// Put validates size limits, enforces the per-key write cooldown, and
// schedules the write for delayed visibility (spec.md §4.1.1).
func (s *Store) Put(key, value []byte) error {
	if len(key) < 1 || len(key) > config.MaxKeyBytes {
		return errs.New(errs.KindPayloadTooLarge, "store.Put: key length", nil)
	}
	if len(value) > config.MaxValueBytes {
		return errs.New(errs.KindPayloadTooLarge, "store.Put: value length", nil)
	}

	now := time.Now()
	if !s.rate.tryAccept(string(key), now) {
		if s.onWriteRejected != nil {
			s.onWriteRejected()
		}
		return errs.New(errs.KindRateLimited, "store.Put: cooldown active", nil)
	}

	// With both bounds at zero the write goes straight to the durable store,
	// so a read issued after Put returns already sees it.
	if s.cfg.ConsistencyBoundMax == 0 {
		if err := s.db.put(key, value); err != nil {
			return errs.New(errs.KindInternal, "store.Put", err)
		}
		if s.onWriteAccepted != nil {
			s.onWriteAccepted()
		}
		return nil
	}

	delay := s.drawDelay()
	visibleAt := now.Add(delay)

	keyCopy := append([]byte(nil), key...)
	valueCopy := append([]byte(nil), value...)
	s.queue.push(keyCopy, valueCopy, visibleAt)
	if s.onPendingDepth != nil {
		s.onPendingDepth(s.queue.len())
	}
	if s.onWriteAccepted != nil {
		s.onWriteAccepted()
	}
	return nil
}

// drawDelay picks a visibility delay uniformly from [min, max]. When both
// bounds are zero the store is synchronous (spec.md §4.1 "Configuration").
func (s *Store) drawDelay() time.Duration {
	if s.cfg.ConsistencyBoundMax <= s.cfg.ConsistencyBoundMin {
		return s.cfg.ConsistencyBoundMin
	}
	span := s.cfg.ConsistencyBoundMax - s.cfg.ConsistencyBoundMin
	return s.cfg.ConsistencyBoundMin + time.Duration(rand.Int63n(int64(span)+1))
}

// Get returns the currently visible value for key, or errs.ErrNotFound if
// absent. Reads never observe a pending write (spec.md §4.1.2).
func (s *Store) Get(key []byte) ([]byte, error) {
	if s.onRead != nil {
		s.onRead()
	}
	value, ok, err := s.db.get(key)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "store.Get", err)
	}
	if !ok {
		return nil, errs.ErrNotFound
	}
	return value, nil
}

// RangeResult is one (key, value) pair returned by Range.
type RangeResult struct {
	Key   []byte
	Value []byte
}

// Range scans the visible store in ascending byte order, per spec.md
// §4.1.3: start is inclusive, end is exclusive, limit (NoLimit for
// unbounded) caps the result count. start > end yields no error, just an
// empty result.
func (s *Store) Range(start, end []byte, limit int) ([]RangeResult, error) {
	if s.onRangeScan != nil {
		s.onRangeScan()
	}
	entries, err := s.db.scan(start, end, limit)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "store.Range", err)
	}
	out := make([]RangeResult, len(entries))
	for i, e := range entries {
		out[i] = RangeResult{Key: e.Key, Value: e.Value}
	}
	return out, nil
}
