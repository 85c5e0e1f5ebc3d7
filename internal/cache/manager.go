// Package cache keeps warm, in-memory snapshots of categories, accounts and
// recent transactions for presentation layers.
//
// A Manager preloads the three collections concurrently, publishes lifecycle
// and snapshot updates through replay-latest observables, and re-checks
// freshness on a fixed interval. Snapshots are written one collection at a
// time, so a reader may briefly see a mix of fresh and stale collections next
// to a Loading or Error state.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/jask/pocketbook/internal/database/repository"
	"github.com/jask/pocketbook/internal/logger"
)

// DefaultTransactionWindow is how far back recent transactions are loaded.
const DefaultTransactionWindow = 7 * 24 * time.Hour

// Store is the persistent store read by a preload cycle.
type Store interface {
	Categories(ctx context.Context) ([]repository.Category, error)
	Accounts(ctx context.Context) ([]repository.Account, error)
	TransactionsBetween(ctx context.Context, start, end time.Time) ([]repository.Transaction, error)
	// WarmUp issues read-only queries to prime the store's own caches.
	WarmUp(ctx context.Context) error
}

// Options tunes a Manager. Zero values pick the defaults.
type Options struct {
	FreshnessWindow   time.Duration
	TransactionWindow time.Duration
	Clock             clockwork.Clock
	Logger            *slog.Logger
}

// Manager owns the cache state. It is the only writer of its holders.
type Manager struct {
	store     Store
	freshness Freshness
	txWindow  time.Duration
	clock     clockwork.Clock
	log       *slog.Logger
	metrics   *Metrics

	state        *Holder[State]
	categories   *Holder[Snapshot[repository.Category]]
	accounts     *Holder[Snapshot[repository.Account]]
	transactions *Holder[Snapshot[repository.Transaction]]

	mu         sync.Mutex
	lastUpdate time.Time
	loading    bool
	rerun      bool
	// gen changes whenever the snapshots are reset. A cycle only publishes
	// while the generation it started under is current.
	gen       uint64
	stopCycle context.CancelFunc

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

func New(store Store, opts Options) *Manager {
	if opts.FreshnessWindow <= 0 {
		opts.FreshnessWindow = DefaultFreshnessWindow
	}
	if opts.TransactionWindow <= 0 {
		opts.TransactionWindow = DefaultTransactionWindow
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:        store,
		freshness:    Freshness{Window: opts.FreshnessWindow},
		txWindow:     opts.TransactionWindow,
		clock:        opts.Clock,
		log:          opts.Logger.With("component", "cache"),
		metrics:      NewMetrics(opts.Clock),
		state:        NewHolder(NotStarted()),
		categories:   NewHolder(Snapshot[repository.Category]{}),
		accounts:     NewHolder(Snapshot[repository.Account]{}),
		transactions: NewHolder(Snapshot[repository.Transaction]{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start kicks off the eager preload and the periodic freshness check.
// Calling it more than once has no further effect.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		m.mu.Lock()
		if m.ctx.Err() == nil {
			m.wg.Add(1)
			go m.watch()
		}
		m.mu.Unlock()
		m.StartPreloading()
	})
}

// Close cancels the periodic check and any in-flight preload, waits for them
// to stop and ends all subscriptions.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.cancel()
		m.mu.Unlock()
		m.wg.Wait()
		m.state.Close()
		m.categories.Close()
		m.accounts.Close()
		m.transactions.Close()
	})
}

// State exposes the lifecycle stream.
func (m *Manager) State() Observable[State] { return m.state }

// CategoryStream exposes the categories snapshot stream.
func (m *Manager) CategoryStream() Observable[Snapshot[repository.Category]] { return m.categories }

// AccountStream exposes the accounts snapshot stream.
func (m *Manager) AccountStream() Observable[Snapshot[repository.Account]] { return m.accounts }

// TransactionStream exposes the recent transactions snapshot stream.
func (m *Manager) TransactionStream() Observable[Snapshot[repository.Transaction]] {
	return m.transactions
}

// Categories returns the cached categories and records a hit when non-empty.
func (m *Manager) Categories() []repository.Category {
	s := m.categories.Value()
	m.metrics.RecordCacheAccess(!s.Empty())
	return s.Items()
}

// Accounts returns the cached accounts and records a hit when non-empty.
func (m *Manager) Accounts() []repository.Account {
	s := m.accounts.Value()
	m.metrics.RecordCacheAccess(!s.Empty())
	return s.Items()
}

// RecentTransactions returns the cached transactions and records a hit when non-empty.
func (m *Manager) RecentTransactions() []repository.Transaction {
	s := m.transactions.Value()
	m.metrics.RecordCacheAccess(!s.Empty())
	return s.Items()
}

// StartPreloading begins a preload cycle in the background and returns at once.
// A call made while a cycle is in flight schedules exactly one more cycle to
// run after it, so writes committed before the call are always picked up.
func (m *Manager) StartPreloading() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx.Err() != nil {
		return
	}
	if m.loading {
		m.rerun = true
		return
	}
	m.loading = true
	ctx, gen := m.beginCycleLocked()
	m.wg.Add(1)
	go m.run(ctx, gen)
}

// beginCycleLocked announces a new cycle and returns its context and
// generation. m.mu must be held.
func (m *Manager) beginCycleLocked() (context.Context, uint64) {
	ctx, cancel := context.WithCancel(m.ctx)
	m.stopCycle = cancel
	m.state.Store(Loading(0))
	return ctx, m.gen
}

// run publishes each cycle's final state under m.mu so a caller that sees
// Completed or Error can start the next cycle without being coalesced.
func (m *Manager) run(ctx context.Context, gen uint64) {
	defer m.wg.Done()
	for {
		final, ok := m.preload(ctx, gen)

		m.mu.Lock()
		m.stopCycle()
		m.stopCycle = nil
		if ok && gen == m.gen {
			if final.Phase == PhaseCompleted {
				m.lastUpdate = m.clock.Now()
			}
			m.state.Store(final)
		}
		if !m.rerun || m.ctx.Err() != nil {
			m.rerun = false
			m.loading = false
			m.mu.Unlock()
			return
		}
		m.rerun = false
		ctx, gen = m.beginCycleLocked()
		m.mu.Unlock()
	}
}

// publish runs store only while gen is still the current generation.
func (m *Manager) publish(gen uint64, store func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.gen {
		store()
	}
}

// IsCacheValid reports whether the last completed preload is within the freshness window.
func (m *Manager) IsCacheValid() bool {
	m.mu.Lock()
	last := m.lastUpdate
	m.mu.Unlock()
	return m.freshness.Valid(last, m.clock.Now())
}

// LastUpdate returns the completion time of the last successful preload, or
// the zero time when the cache has been cleared since.
func (m *Manager) LastUpdate() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUpdate
}

// InvalidateCache empties the snapshots and starts a new preload.
func (m *Manager) InvalidateCache() {
	m.resetSnapshots()
	m.log.Debug("cache invalidated")
	m.StartPreloading()
}

// RefreshCache invalidates only when the cache is stale.
func (m *Manager) RefreshCache() {
	if m.IsCacheValid() {
		return
	}
	m.InvalidateCache()
}

// ClearCache empties the snapshots and returns to NotStarted without reloading.
// A cycle in flight is abandoned and publishes nothing further.
func (m *Manager) ClearCache() {
	m.mu.Lock()
	m.resetLocked()
	m.state.Store(NotStarted())
	m.mu.Unlock()
	m.log.Debug("cache cleared")
}

func (m *Manager) PerformanceMetrics() PerformanceMetrics { return m.metrics.Snapshot() }

func (m *Manager) ResetPerformanceMetrics() { m.metrics.Reset() }

// WaitSettled blocks until the lifecycle reaches Completed or Error, or ctx ends.
func (m *Manager) WaitSettled(ctx context.Context) (State, error) {
	updates, cancel := m.state.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return m.state.Value(), ctx.Err()
		case s, ok := <-updates:
			if !ok {
				return m.state.Value(), context.Canceled
			}
			if s.Settled() {
				return s, nil
			}
		}
	}
}

func (m *Manager) resetSnapshots() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// resetLocked starts a new generation, cancels the cycle in flight and
// empties the snapshots. m.mu must be held.
func (m *Manager) resetLocked() {
	m.gen++
	if m.stopCycle != nil {
		m.stopCycle()
	}
	m.lastUpdate = time.Time{}
	m.categories.Store(Snapshot[repository.Category]{})
	m.accounts.Store(Snapshot[repository.Account]{})
	m.transactions.Store(Snapshot[repository.Transaction]{})
}

func (m *Manager) watch() {
	defer m.wg.Done()
	ticker := m.clock.NewTicker(m.freshness.Window)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.Chan():
			m.RefreshCache()
		}
	}
}

type fetch struct {
	name    string
	message string
	run     func(ctx context.Context) error
}

// preload runs one cycle and returns its final state. ok is false when the
// manager was torn down mid-cycle and nobody is left to observe the outcome.
func (m *Manager) preload(ctx context.Context, gen uint64) (final State, ok bool) {
	start := m.clock.Now()
	end := start
	from := end.Add(-m.txWindow)

	fetches := []fetch{
		{OpCategories, "failed to load categories", func(ctx context.Context) error {
			items, err := m.store.Categories(ctx)
			if err == nil {
				m.publish(gen, func() { m.categories.Store(NewSnapshot(items)) })
			}
			return err
		}},
		{OpAccounts, "failed to load accounts", func(ctx context.Context) error {
			items, err := m.store.Accounts(ctx)
			if err == nil {
				m.publish(gen, func() { m.accounts.Store(NewSnapshot(items)) })
			}
			return err
		}},
		{OpTransactions, "failed to load transactions", func(ctx context.Context) error {
			items, err := m.store.TransactionsBetween(ctx, from, end)
			if err == nil {
				m.publish(gen, func() { m.transactions.Store(NewSnapshot(items)) })
			}
			return err
		}},
	}

	var done atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range fetches {
		g.Go(func() error {
			err := m.metrics.MeasureDuration(f.name, func() error { return f.run(gctx) })
			if err != nil {
				return &LoadError{Stage: f.name, Message: f.message, Err: err}
			}
			m.publish(gen, func() {
				m.state.Store(Loading(int(done.Add(1)) * 100 / len(fetches)))
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return m.failed(ctx, err)
	}
	if ctx.Err() != nil {
		return m.failed(ctx, ctx.Err())
	}

	err := m.metrics.MeasureDuration(OpWarmUp, func() error { return m.store.WarmUp(ctx) })
	if err != nil {
		return m.failed(ctx, &LoadError{Stage: OpWarmUp, Message: "failed to warm up store", Err: err})
	}

	m.log.Info("cache preloaded",
		"categories", m.categories.Value().Len(),
		"accounts", m.accounts.Value().Len(),
		"transactions", m.transactions.Value().Len(),
		"elapsed", m.clock.Since(start))
	return Completed(), true
}

func (m *Manager) failed(ctx context.Context, err error) (State, bool) {
	if ctx.Err() != nil {
		m.log.Debug("cache preload cancelled", "error", err)
		return State{}, false
	}
	message := err.Error()
	var le *LoadError
	if errors.As(err, &le) {
		message = le.Message
	}
	m.log.Error("cache preload failed", "error", err)
	return Failed(message), true
}
