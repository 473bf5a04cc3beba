package services

import (
	"math"
	"sync"
	"time"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
)

// ProgressTracker estimates time to completion from the observed rate of
// simulated seconds per wall second. The rate is an exponential moving
// average; the published finish time only moves when enough wall time has
// passed or the estimate shifted far enough.
type ProgressTracker struct {
	mu  sync.Mutex
	cfg EtaConfig

	rate         float64
	lastObserved time.Time
	pendingSim   int64

	published   bool
	finishEpoch int64
	publishedAt time.Time
}

func NewProgressTracker(cfg EtaConfig) *ProgressTracker {
	return &ProgressTracker{cfg: cfg}
}

// Begin marks the start or resumption of a run; wall time spent stopped is
// not counted towards the rate.
func (t *ProgressTracker) Begin(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastObserved = now
	t.pendingSim = 0
}

// Observe records simAdvanced simulated seconds at wall time now with
// remaining simulated seconds still to go.
func (t *ProgressTracker) Observe(now time.Time, simAdvanced, remaining int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if remaining <= 0 {
		t.publishLocked(now, now.Unix())
		return
	}

	if t.lastObserved.IsZero() {
		t.lastObserved = now
	}

	t.pendingSim += simAdvanced
	wall := now.Sub(t.lastObserved).Seconds()
	if wall <= 0 {
		return
	}

	sample := float64(t.pendingSim) / wall
	if t.rate == 0 {
		t.rate = sample
	} else {
		t.rate = t.cfg.Alpha*sample + (1-t.cfg.Alpha)*t.rate
	}

	t.pendingSim = 0
	t.lastObserved = now

	if t.rate <= 0 {
		return
	}

	finish := now.Unix() + int64(math.Round(float64(remaining)/t.rate))
	if !t.published ||
		now.Sub(t.publishedAt) >= t.cfg.MinPublishInterval ||
		absDuration(time.Duration(finish-t.finishEpoch)*time.Second) >= t.cfg.MinShift {
		t.publishLocked(now, finish)
	}
}

func (t *ProgressTracker) publishLocked(now time.Time, finish int64) {
	t.published = true
	t.finishEpoch = finish
	t.publishedAt = now
}

// Complete publishes a zero ETA.
func (t *ProgressTracker) Complete(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.publishLocked(now, now.Unix())
}

// FinishEpoch returns the published estimated finish time, if any.
func (t *ProgressTracker) FinishEpoch() (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.finishEpoch, t.published
}

// Eta returns the seconds until the published finish time. Outside of a
// running simulation the estimate is kept for StaleAfter and then dropped.
func (t *ProgressTracker) Eta(now time.Time, state models.SimulationState) *int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if state == models.SimulationStateCompleted {
		zero := int64(0)
		return &zero
	}

	if !t.published {
		return nil
	}

	if state != models.SimulationStateRunning && now.Sub(t.publishedAt) > t.cfg.StaleAfter {
		return nil
	}

	eta := t.finishEpoch - now.Unix()
	if eta < 0 {
		eta = 0
	}

	return &eta
}

func (t *ProgressTracker) Rate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.rate
}

func (t *ProgressTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rate, t.lastObserved, t.pendingSim = 0, time.Time{}, 0
	t.published, t.finishEpoch, t.publishedAt = false, 0, time.Time{}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}

	return d
}
