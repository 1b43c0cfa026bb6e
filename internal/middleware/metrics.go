package middleware

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dshills/statekit/internal/action"
	"github.com/dshills/statekit/internal/pipeline"
)

// Metrics collects per-action dispatch statistics.
type Metrics struct {
	mu sync.RWMutex

	byType map[string]*ActionMetrics

	totalDispatches uint64
	totalErrors     uint64
	totalThunks     uint64
	totalDuration   time.Duration
}

// ActionMetrics holds statistics for one action type.
type ActionMetrics struct {
	Type          string
	DispatchCount uint64
	ErrorCount    uint64
	TotalDuration time.Duration
	MinDuration   time.Duration
	MaxDuration   time.Duration
	LastDispatch  time.Time
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{byType: make(map[string]*ActionMetrics)}
}

// Middleware returns middleware that records every dispatch into m.
// Durations include everything inside the middleware, so a thunk's time
// covers the dispatches it makes.
func (m *Metrics) Middleware() pipeline.Middleware {
	return func(action.Dispatcher) func(pipeline.Handler) pipeline.Handler {
		return func(next pipeline.Handler) pipeline.Handler {
			return func(ctx context.Context, d action.Dispatchable) (any, error) {
				start := time.Now()
				result, err := next(ctx, d)

				if a, ok := d.(action.Action); ok {
					m.Record(a.Type, time.Since(start), err != nil || a.Err != nil)
				} else {
					m.recordThunk(time.Since(start), err != nil)
				}
				return result, err
			}
		}
	}
}

// Record records one dispatch of actionType.
func (m *Metrics) Record(actionType string, duration time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalDispatches++
	m.totalDuration += duration
	if failed {
		m.totalErrors++
	}

	am := m.byType[actionType]
	if am == nil {
		am = &ActionMetrics{
			Type:        actionType,
			MinDuration: duration,
			MaxDuration: duration,
		}
		m.byType[actionType] = am
	}

	am.DispatchCount++
	am.TotalDuration += duration
	am.LastDispatch = time.Now()
	if duration < am.MinDuration {
		am.MinDuration = duration
	}
	if duration > am.MaxDuration {
		am.MaxDuration = duration
	}
	if failed {
		am.ErrorCount++
	}
}

func (m *Metrics) recordThunk(duration time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalThunks++
	m.totalDuration += duration
	if failed {
		m.totalErrors++
	}
}

// ActionStats returns a copy of the statistics for actionType, or nil.
func (m *Metrics) ActionStats(actionType string) *ActionMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	am := m.byType[actionType]
	if am == nil {
		return nil
	}
	c := *am
	return &c
}

// TopActions returns the n most dispatched action types.
func (m *Metrics) TopActions(n int) []*ActionMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*ActionMetrics, 0, len(m.byType))
	for _, am := range m.byType {
		c := *am
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DispatchCount != out[j].DispatchCount {
			return out[i].DispatchCount > out[j].DispatchCount
		}
		return out[i].Type < out[j].Type
	})

	if n < len(out) {
		out = out[:n]
	}
	return out
}

// Reset clears all statistics.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byType = make(map[string]*ActionMetrics)
	m.totalDispatches = 0
	m.totalErrors = 0
	m.totalThunks = 0
	m.totalDuration = 0
}

// MetricsSnapshot is a point-in-time view of a Metrics collector.
type MetricsSnapshot struct {
	TotalDispatches uint64
	TotalErrors     uint64
	TotalThunks     uint64
	TotalDuration   time.Duration
	AverageDuration time.Duration
	ActionTypes     int
	Timestamp       time.Time
}

// Snapshot returns the current totals.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := MetricsSnapshot{
		TotalDispatches: m.totalDispatches,
		TotalErrors:     m.totalErrors,
		TotalThunks:     m.totalThunks,
		TotalDuration:   m.totalDuration,
		ActionTypes:     len(m.byType),
		Timestamp:       time.Now(),
	}
	if n := m.totalDispatches + m.totalThunks; n > 0 {
		s.AverageDuration = m.totalDuration / time.Duration(n)
	}
	return s
}

// AverageDuration returns the mean dispatch duration for the action type.
func (am *ActionMetrics) AverageDuration() time.Duration {
	if am.DispatchCount == 0 {
		return 0
	}
	return am.TotalDuration / time.Duration(am.DispatchCount)
}

// ErrorRate returns the failed share of dispatches as a percentage.
func (am *ActionMetrics) ErrorRate() float64 {
	if am.DispatchCount == 0 {
		return 0
	}
	return float64(am.ErrorCount) / float64(am.DispatchCount) * 100
}
