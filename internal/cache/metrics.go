package cache

import (
	"maps"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Operation names recorded by the manager.
const (
	OpCategories   = "categories"
	OpAccounts     = "accounts"
	OpTransactions = "transactions"
	OpWarmUp       = "warmup"
)

// PerformanceMetrics is a point-in-time copy of the recorder.
type PerformanceMetrics struct {
	Durations map[string]time.Duration `json:"-"`
	Millis    map[string]int64         `json:"durationsMs"`
	Hits      uint64                   `json:"hits"`
	Misses    uint64                   `json:"misses"`
	HitRate   float64                  `json:"hitRate"`
}

// Metrics counts cache hits and misses and keeps the last duration per operation.
type Metrics struct {
	clock clockwork.Clock

	mu        sync.Mutex
	durations map[string]time.Duration
	hits      uint64
	misses    uint64
}

func NewMetrics(clock clockwork.Clock) *Metrics {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Metrics{clock: clock, durations: make(map[string]time.Duration)}
}

func (m *Metrics) RecordCacheAccess(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

// MeasureDuration runs fn and stores its wall-clock time under name,
// replacing any earlier timing. The duration is kept even when fn fails.
func (m *Metrics) MeasureDuration(name string, fn func() error) error {
	start := m.clock.Now()
	err := fn()
	elapsed := m.clock.Since(start)

	m.mu.Lock()
	m.durations[name] = elapsed
	m.mu.Unlock()
	return err
}

func (m *Metrics) Snapshot() PerformanceMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := PerformanceMetrics{
		Durations: maps.Clone(m.durations),
		Millis:    make(map[string]int64, len(m.durations)),
		Hits:      m.hits,
		Misses:    m.misses,
	}
	for name, d := range m.durations {
		out.Millis[name] = d.Milliseconds()
	}
	if total := m.hits + m.misses; total > 0 {
		out.HitRate = float64(m.hits) / float64(total)
	}
	return out
}

func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits, m.misses = 0, 0
	clear(m.durations)
}
