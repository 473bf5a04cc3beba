package models

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/gocarina/gocsv"
)

type barKey struct {
	symbol    string
	timeframe Timeframe
}

// BarRepository is an in-memory bar feed backed by per symbol/timeframe series.
type BarRepository struct {
	mu     sync.RWMutex
	series map[barKey]map[int64]*Bar
}

func (r *BarRepository) Add(bars ...*Bar) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range bars {
		key := barKey{symbol: b.Symbol, timeframe: b.Timeframe}
		s, ok := r.series[key]
		if !ok {
			s = make(map[int64]*Bar)
			r.series[key] = s
		}

		s[b.Epoch] = b
	}
}

func (r *BarRepository) FetchBars(ctx context.Context, tf Timeframe, epoch int64, symbols []string) (map[string]*Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Bar, len(symbols))
	for _, symbol := range symbols {
		if b, ok := r.series[barKey{symbol: symbol, timeframe: tf}][epoch]; ok {
			cp := *b
			out[symbol] = &cp
		}
	}

	return out, nil
}

// FetchRange returns the bars of a series with start <= epoch < end in time order.
func (r *BarRepository) FetchRange(symbol string, tf Timeframe, start, end int64) []*Bar {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bars []*Bar
	for epoch, b := range r.series[barKey{symbol: symbol, timeframe: tf}] {
		if epoch >= start && epoch < end {
			bars = append(bars, b)
		}
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Epoch < bars[j].Epoch
	})

	return bars
}

// Counts returns the number of daily and intraday bars held.
func (r *BarRepository) Counts() (daily, intraday int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for key, s := range r.series {
		if key.timeframe.IsDaily() {
			daily += int64(len(s))
		} else {
			intraday += int64(len(s))
		}
	}

	return daily, intraday
}

// DateRange returns the earliest bar open and the latest bar close.
func (r *BarRepository) DateRange() (DateRange, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rng DateRange
	found := false
	for _, s := range r.series {
		for _, b := range s {
			end := b.EndEpoch()
			if !found || b.Epoch < rng.StartEpoch {
				rng.StartEpoch = b.Epoch
			}
			if !found || end > rng.EndEpoch {
				rng.EndEpoch = end
			}
			found = true
		}
	}

	return rng, found
}

func (r *BarRepository) LoadCSV(in io.Reader) (int, error) {
	var bars []*Bar
	if err := gocsv.Unmarshal(in, &bars); err != nil {
		return 0, fmt.Errorf("BarRepository.LoadCSV: failed to parse bars: %w", err)
	}

	for i, b := range bars {
		if _, err := b.Timeframe.StepSeconds(); err != nil {
			return 0, fmt.Errorf("BarRepository.LoadCSV: row %d: %w", i+1, err)
		}
	}

	r.Add(bars...)
	return len(bars), nil
}

func NewBarRepository(bars ...*Bar) *BarRepository {
	r := &BarRepository{
		series: make(map[barKey]map[int64]*Bar),
	}

	r.Add(bars...)
	return r
}
