package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/jask/pocketbook/internal/database/repository"
)

var epoch = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func newTestManager(t *testing.T, store Store) (*Manager, clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	m := New(store, Options{Clock: clock})
	t.Cleanup(m.Close)
	return m, clock
}

func settle(t *testing.T, m *Manager) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := m.WaitSettled(ctx)
	require.NoError(t, err)
	return s
}

// collect reads lifecycle updates until a settled state arrives.
func collect(t *testing.T, updates <-chan State) []State {
	t.Helper()
	var seen []State
	timeout := time.After(5 * time.Second)
	for {
		select {
		case s := <-updates:
			seen = append(seen, s)
			if s.Settled() {
				return seen
			}
		case <-timeout:
			t.Fatalf("no settled state, saw %v", seen)
		}
	}
}

func TestPreloadEmptyStore(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, &fakeStore{})
	updates, cancel := m.State().Subscribe()
	defer cancel()

	require.False(t, m.IsCacheValid())
	m.StartPreloading()
	seen := collect(t, updates)

	require.Equal(t, NotStarted(), seen[0])
	require.Equal(t, Completed(), seen[len(seen)-1])
	progress := -1
	for _, s := range seen[1 : len(seen)-1] {
		require.Equal(t, PhaseLoading, s.Phase)
		require.GreaterOrEqual(t, s.Progress, progress)
		progress = s.Progress
	}
	require.Equal(t, Loading(0), seen[1])
	require.Equal(t, 100, progress)

	require.Equal(t, 0, m.CategoryStream().Value().Len())
	require.Equal(t, 0, m.AccountStream().Value().Len())
	require.Equal(t, 0, m.TransactionStream().Value().Len())
	require.True(t, m.IsCacheValid())
	require.Equal(t, epoch, m.LastUpdate())
}

func TestPreloadPopulatesSnapshotsAndTimings(t *testing.T) {
	t.Parallel()

	store := sampleStore()
	m, _ := newTestManager(t, store)
	m.StartPreloading()
	require.Equal(t, Completed(), settle(t, m))

	require.Len(t, m.Categories(), 2)
	require.Len(t, m.Accounts(), 1)
	require.Len(t, m.RecentTransactions(), 1)
	require.Equal(t, int32(1), store.warmUps.Load())

	store.mu.Lock()
	require.Equal(t, epoch, store.lastEnd)
	require.Equal(t, epoch.Add(-DefaultTransactionWindow), store.lastStart)
	store.mu.Unlock()

	metrics := m.PerformanceMetrics()
	for _, op := range []string{OpCategories, OpAccounts, OpTransactions, OpWarmUp} {
		require.Contains(t, metrics.Durations, op)
	}
	require.Equal(t, uint64(3), metrics.Hits)
}

func TestSnapshotsAreCopies(t *testing.T) {
	t.Parallel()

	store := sampleStore()
	m, _ := newTestManager(t, store)
	m.StartPreloading()
	settle(t, m)

	got := m.Categories()
	got[0].Name = "mutated"
	store.set(func(s *fakeStore) { s.categories[1].Name = "also mutated" })

	names := []string{}
	for _, c := range m.CategoryStream().Value().Items() {
		names = append(names, c.Name)
	}
	require.Equal(t, []string{"Food", "Transport"}, names)
}

func TestLateSubscriberReceivesLatestSnapshot(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, sampleStore())
	m.StartPreloading()
	settle(t, m)

	updates, cancel := m.AccountStream().Subscribe()
	defer cancel()
	require.Equal(t, 1, (<-updates).Len())

	m.ClearCache()
	require.True(t, (<-updates).Empty())
}

func TestTransactionFailureKeepsCompletedSiblings(t *testing.T) {
	t.Parallel()

	store := sampleStore()
	store.txErr = errors.New("disk I/O error")
	store.txGate = make(chan struct{})
	m, _ := newTestManager(t, store)

	m.StartPreloading()
	require.Eventually(t, func() bool {
		return m.CategoryStream().Value().Len() == 2 && m.AccountStream().Value().Len() == 1
	}, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, PhaseLoading, m.State().Value().Phase)
	close(store.txGate)

	require.Equal(t, Failed("failed to load transactions"), settle(t, m))
	require.Equal(t, 2, m.CategoryStream().Value().Len())
	require.Equal(t, 1, m.AccountStream().Value().Len())
	require.True(t, m.TransactionStream().Value().Empty())
	require.False(t, m.IsCacheValid())
	require.Zero(t, store.warmUps.Load())
}

func TestFailurePreservesPriorSnapshots(t *testing.T) {
	t.Parallel()

	store := sampleStore()
	m, clock := newTestManager(t, store)
	m.StartPreloading()
	require.Equal(t, Completed(), settle(t, m))

	store.set(func(s *fakeStore) {
		s.categories = nil
		s.catErr = errors.New("no such table: categories")
	})
	clock.Advance(time.Minute)
	m.StartPreloading()

	require.Equal(t, Failed("failed to load categories"), settle(t, m))
	require.Equal(t, 2, m.CategoryStream().Value().Len())
	require.Equal(t, 1, m.TransactionStream().Value().Len())
	// the earlier completion still counts until it ages out
	require.Equal(t, epoch, m.LastUpdate())
}

func TestWarmUpFailure(t *testing.T) {
	t.Parallel()

	store := sampleStore()
	store.warmErr = errors.New("database is locked")
	m, _ := newTestManager(t, store)

	m.StartPreloading()
	require.Equal(t, Failed("failed to warm up store"), settle(t, m))
	require.Equal(t, 2, m.CategoryStream().Value().Len())
	require.False(t, m.IsCacheValid())
}

func TestClearCacheResetsFully(t *testing.T) {
	t.Parallel()

	store := sampleStore()
	m, _ := newTestManager(t, store)
	m.StartPreloading()
	settle(t, m)

	m.ClearCache()
	require.Equal(t, NotStarted(), m.State().Value())
	require.True(t, m.CategoryStream().Value().Empty())
	require.True(t, m.AccountStream().Value().Empty())
	require.True(t, m.TransactionStream().Value().Empty())
	require.False(t, m.IsCacheValid())
	require.True(t, m.LastUpdate().IsZero())
	require.Equal(t, int32(1), store.categoryCalls.Load(), "clear must not reload")
}

func TestValidityBoundaryAndIdempotence(t *testing.T) {
	t.Parallel()

	m, clock := newTestManager(t, &fakeStore{})
	m.StartPreloading()
	settle(t, m)

	clock.Advance(DefaultFreshnessWindow - time.Millisecond)
	for range 3 {
		require.True(t, m.IsCacheValid())
	}
	clock.Advance(2 * time.Millisecond)
	for range 3 {
		require.False(t, m.IsCacheValid())
	}
}

func TestHitRateThroughAccessors(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, sampleStore())
	require.Zero(t, m.PerformanceMetrics().HitRate)

	m.StartPreloading()
	settle(t, m)
	m.Categories()
	m.Accounts()
	m.RecentTransactions()
	m.ClearCache()
	m.Categories()

	metrics := m.PerformanceMetrics()
	require.Equal(t, uint64(3), metrics.Hits)
	require.Equal(t, uint64(1), metrics.Misses)
	require.InDelta(t, 0.75, metrics.HitRate, 1e-9)

	m.ResetPerformanceMetrics()
	require.Zero(t, m.PerformanceMetrics().Hits)
	require.Empty(t, m.PerformanceMetrics().Durations)
	require.Equal(t, NotStarted(), m.State().Value())
}

func TestRefreshOnlyWhenStale(t *testing.T) {
	t.Parallel()

	store := sampleStore()
	m, clock := newTestManager(t, store)
	m.StartPreloading()
	settle(t, m)

	m.RefreshCache()
	require.Equal(t, Completed(), m.State().Value())
	require.Equal(t, int32(1), store.categoryCalls.Load())

	clock.Advance(DefaultFreshnessWindow + time.Second)
	m.RefreshCache()
	require.Equal(t, Completed(), settle(t, m))
	require.Equal(t, int32(2), store.categoryCalls.Load())
	require.True(t, m.IsCacheValid())
}

func TestInvalidateClearsThenReloads(t *testing.T) {
	t.Parallel()

	store := sampleStore()
	store.txGate = make(chan struct{})
	close(store.txGate)
	m, _ := newTestManager(t, store)
	m.StartPreloading()
	settle(t, m)

	store.set(func(s *fakeStore) { s.txGate = make(chan struct{}) })
	m.InvalidateCache()
	require.False(t, m.IsCacheValid())
	require.True(t, m.TransactionStream().Value().Empty())

	store.mu.Lock()
	close(store.txGate)
	store.mu.Unlock()
	require.Equal(t, Completed(), settle(t, m))
	require.Equal(t, 1, m.TransactionStream().Value().Len())
}

func TestOverlappingPreloadsAreCoalesced(t *testing.T) {
	t.Parallel()

	store := sampleStore()
	store.txGate = make(chan struct{})
	m, _ := newTestManager(t, store)

	m.StartPreloading()
	require.Eventually(t, func() bool { return store.categoryCalls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)
	m.StartPreloading()
	m.StartPreloading()
	m.InvalidateCache()
	close(store.txGate)

	require.Eventually(t, idle(m), 5*time.Second, 5*time.Millisecond)
	require.Equal(t, int32(2), store.categoryCalls.Load())
	require.Equal(t, Completed(), m.State().Value())
}

func TestPeriodicCheckReloadsStaleCache(t *testing.T) {
	t.Parallel()

	store := sampleStore()
	m, clock := newTestManager(t, store)
	m.Start()
	m.Start()
	settle(t, m)
	clock.BlockUntil(1)

	clock.Advance(DefaultFreshnessWindow + time.Millisecond)
	require.Eventually(t, func() bool {
		return store.categoryCalls.Load() == 2 && m.State().Value() == Completed()
	}, 5*time.Second, 5*time.Millisecond)
	require.True(t, m.IsCacheValid())
}

func TestCloseCancelsInFlightLoad(t *testing.T) {
	t.Parallel()

	store := sampleStore()
	store.txGate = make(chan struct{})
	m := New(store, Options{Clock: clockwork.NewFakeClockAt(epoch)})
	updates, _ := m.State().Subscribe()

	m.Start()
	require.Eventually(t, func() bool { return store.categoryCalls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)
	m.Close()
	m.Close()

	var last State
	for s := range updates {
		last = s
	}
	require.Equal(t, PhaseLoading, last.Phase, "teardown must not surface as an error")

	m.StartPreloading()
	require.Equal(t, int32(1), store.categoryCalls.Load())
}

func idle(m *Manager) func() bool {
	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return !m.loading
	}
}

func TestClearCacheDuringLoadDiscardsTheCycle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		ignoreCancel bool
	}{
		{"store honours cancel", false},
		{"store ignores cancel", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := sampleStore()
			store.txGate = make(chan struct{})
			store.gateIgnoresCancel = tt.ignoreCancel
			m, _ := newTestManager(t, store)

			m.StartPreloading()
			require.Eventually(t, func() bool {
				return m.CategoryStream().Value().Len() == 2 && m.AccountStream().Value().Len() == 1
			}, 5*time.Second, 5*time.Millisecond)

			m.ClearCache()
			close(store.txGate)
			require.Eventually(t, idle(m), 5*time.Second, 5*time.Millisecond)

			require.Equal(t, NotStarted(), m.State().Value())
			require.False(t, m.IsCacheValid())
			require.True(t, m.LastUpdate().IsZero())
			require.True(t, m.CategoryStream().Value().Empty())
			require.True(t, m.AccountStream().Value().Empty())
			require.True(t, m.TransactionStream().Value().Empty())
			require.Equal(t, int32(1), store.categoryCalls.Load())
		})
	}
}

func TestInvalidateDuringLoadPublishesOnlyTheFreshCycle(t *testing.T) {
	t.Parallel()

	store := sampleStore()
	store.txGate = make(chan struct{})
	store.gateIgnoresCancel = true
	m, _ := newTestManager(t, store)

	m.StartPreloading()
	require.Eventually(t, func() bool {
		return m.CategoryStream().Value().Len() == 2 && m.AccountStream().Value().Len() == 1
	}, 5*time.Second, 5*time.Millisecond)

	updates, cancel := m.State().Subscribe()
	defer cancel()
	store.set(func(s *fakeStore) {
		s.accounts = append(s.accounts, repository.Account{ID: "a2", Name: "Savings"})
	})
	m.InvalidateCache()
	require.True(t, m.AccountStream().Value().Empty())
	close(store.txGate)

	seen := collect(t, updates)
	require.Equal(t, Completed(), seen[len(seen)-1])
	require.Equal(t, 2, m.AccountStream().Value().Len(), "completed before the reload finished")
	require.Equal(t, 1, m.TransactionStream().Value().Len())
	require.True(t, m.IsCacheValid())
	require.Equal(t, int32(2), store.categoryCalls.Load())
}
