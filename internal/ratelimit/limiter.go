package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rejectedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratelimit_rejections_total",
		Help: "Requests rejected by the sliding-window rate limiter",
	})
	trackedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ratelimit_tracked_identifiers",
		Help: "Identifiers currently tracked by the rate limiter",
	})
)

// sweepThreshold bounds memory: once more identifiers than this are
// tracked, a full sweep drops the ones whose windows are empty.
const sweepThreshold = 1000

type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter is a per-identifier sliding-window counter. State is process
// local; a restart resets all counters, which is fine for an
// abuse-mitigation layer.
type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

func New() *Limiter {
	return &Limiter{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Check atomically prunes, counts, and (when admitted) records the
// request. Two concurrent checks for the same identifier can never both
// take the last slot.
func (l *Limiter) Check(identifier string, maxRequests int, window time.Duration) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)
	kept := prune(l.windows[identifier], cutoff)

	if len(kept) >= maxRequests {
		l.windows[identifier] = kept
		rejectedCounter.Inc()
		// An empty window has no oldest timestamp to anchor on; the
		// reset is a full window from now (maxRequests <= 0 lands here).
		resetAt := now.Add(window)
		if len(kept) > 0 {
			resetAt = kept[0].Add(window)
		}
		return Decision{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   resetAt,
		}
	}

	kept = append(kept, now)
	l.windows[identifier] = kept
	decision := Decision{
		Allowed:   true,
		Remaining: maxRequests - len(kept),
		ResetAt:   kept[0].Add(window),
	}

	if len(l.windows) > sweepThreshold {
		l.sweep(cutoff)
	}
	trackedGauge.Set(float64(len(l.windows)))
	return decision
}

// sweep drops identifiers with no surviving timestamps. Amortized: only
// runs once the tracked-identifier count passes the threshold.
func (l *Limiter) sweep(cutoff time.Time) {
	for id, stamps := range l.windows {
		kept := prune(stamps, cutoff)
		if len(kept) == 0 {
			delete(l.windows, id)
			continue
		}
		l.windows[id] = kept
	}
}

func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return stamps
	}
	return append([]time.Time(nil), stamps[idx:]...)
}
