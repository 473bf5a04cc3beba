package models

import (
	"fmt"
	"sort"
	"time"
)

// TickCursor tracks simulated time for a single timeframe. SimTimeEpoch only
// moves forward in whole steps and never passes MaxEpoch.
type TickCursor struct {
	Timeframe    Timeframe `json:"timeframe"`
	StartEpoch   int64     `json:"start_epoch"`
	SimTimeEpoch int64     `json:"sim_time_epoch"`
	MaxEpoch     int64     `json:"max_epoch"`
	StepSeconds  int64     `json:"step_seconds"`
	TicksDone    int64     `json:"ticks_done"`
	TicksTotal   int64     `json:"ticks_total"`
}

func NewTickCursor(tf Timeframe, startEpoch, endEpoch int64) (*TickCursor, error) {
	step, err := tf.StepSeconds()
	if err != nil {
		return nil, err
	}

	if endEpoch < startEpoch {
		return nil, fmt.Errorf("NewTickCursor: end %d before start %d", endEpoch, startEpoch)
	}

	total := (endEpoch - startEpoch) / step

	return &TickCursor{
		Timeframe:    tf,
		StartEpoch:   startEpoch,
		SimTimeEpoch: startEpoch,
		MaxEpoch:     startEpoch + total*step,
		StepSeconds:  step,
		TicksDone:    0,
		TicksTotal:   total,
	}, nil
}

func (c *TickCursor) IsDone() bool {
	return c.SimTimeEpoch >= c.MaxEpoch
}

// BarEpoch is the open time of the bar delivered by the next advance.
func (c *TickCursor) BarEpoch() int64 {
	return c.SimTimeEpoch
}

// IsDueAt reports whether the cursor's next step ends at or before epoch.
func (c *TickCursor) IsDueAt(epoch int64) bool {
	return !c.IsDone() && c.SimTimeEpoch+c.StepSeconds <= epoch
}

func (c *TickCursor) Advance() bool {
	if c.IsDone() {
		return false
	}

	c.SimTimeEpoch += c.StepSeconds
	c.TicksDone = (c.SimTimeEpoch - c.StartEpoch) / c.StepSeconds
	return true
}

func (c *TickCursor) Percent() float64 {
	if c.TicksTotal <= 0 {
		return 100
	}

	pct := float64(c.TicksDone) / float64(c.TicksTotal) * 100
	if pct < 0 {
		return 0
	}

	if pct > 100 {
		return 100
	}

	return pct
}

func (c *TickCursor) RemainingSeconds() int64 {
	if c.IsDone() {
		return 0
	}

	return c.MaxEpoch - c.SimTimeEpoch
}

func (c *TickCursor) SimTime() time.Time {
	return time.Unix(c.SimTimeEpoch, 0).UTC()
}

// Restore moves the cursor to a checkpointed position.
func (c *TickCursor) Restore(simTimeEpoch int64) error {
	if simTimeEpoch < c.StartEpoch || simTimeEpoch > c.MaxEpoch {
		return fmt.Errorf("TickCursor.Restore: %d outside [%d, %d]", simTimeEpoch, c.StartEpoch, c.MaxEpoch)
	}

	if (simTimeEpoch-c.StartEpoch)%c.StepSeconds != 0 {
		return fmt.Errorf("TickCursor.Restore: %d not aligned to %s", simTimeEpoch, c.Timeframe)
	}

	c.SimTimeEpoch = simTimeEpoch
	c.TicksDone = (simTimeEpoch - c.StartEpoch) / c.StepSeconds
	return nil
}

// TickCursors is a set of cursors ordered finest first.
type TickCursors []*TickCursor

func NewTickCursors(timeframes []Timeframe, startEpoch, endEpoch int64) (TickCursors, error) {
	seen := make(map[Timeframe]struct{})
	var cursors TickCursors
	for _, tf := range timeframes {
		if _, ok := seen[tf]; ok {
			continue
		}
		seen[tf] = struct{}{}

		c, err := NewTickCursor(tf, startEpoch, endEpoch)
		if err != nil {
			return nil, err
		}

		cursors = append(cursors, c)
	}

	cursors.Sort()
	return cursors, nil
}

func (cs TickCursors) Sort() {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].StepSeconds == cs[j].StepSeconds {
			return cs[i].Timeframe < cs[j].Timeframe
		}
		return cs[i].StepSeconds < cs[j].StepSeconds
	})
}

func (cs TickCursors) IsDone() bool {
	for _, c := range cs {
		if !c.IsDone() {
			return false
		}
	}

	return true
}

// Due returns the cursors that advance on the next tick, finest first. The
// finest unfinished cursor always advances; a coarser one advances once its
// next boundary is reached by the finest cursor's new position.
func (cs TickCursors) Due() TickCursors {
	driver, ok := cs.Finest()
	if !ok {
		return nil
	}

	boundary := driver.SimTimeEpoch + driver.StepSeconds
	due := TickCursors{driver}
	for _, c := range cs {
		if c != driver && c.IsDueAt(boundary) {
			due = append(due, c)
		}
	}

	return due
}

func (cs TickCursors) Find(tf Timeframe) (*TickCursor, bool) {
	for _, c := range cs {
		if c.Timeframe == tf {
			return c, true
		}
	}

	return nil, false
}

// Finest returns the finest unfinished cursor, which paces the run.
func (cs TickCursors) Finest() (*TickCursor, bool) {
	for _, c := range cs {
		if !c.IsDone() {
			return c, true
		}
	}

	return nil, false
}

// RemainingSeconds is the simulated time left measured on the pacing cursor.
func (cs TickCursors) RemainingSeconds() int64 {
	driver, ok := cs.Finest()
	if !ok {
		return 0
	}

	var end int64
	for _, c := range cs {
		if c.MaxEpoch > end {
			end = c.MaxEpoch
		}
	}

	return end - driver.SimTimeEpoch
}

func (cs TickCursors) Clone() TickCursors {
	out := make(TickCursors, 0, len(cs))
	for _, c := range cs {
		cp := *c
		out = append(out, &cp)
	}

	return out
}
