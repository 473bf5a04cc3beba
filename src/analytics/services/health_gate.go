package services

import (
	"time"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
)

type HealthStatus string

const (
	HealthHealthy  HealthStatus = "HEALTHY"
	HealthDegraded HealthStatus = "DEGRADED"
	HealthExcluded HealthStatus = "EXCLUDED"
)

type healthKey struct {
	symbol    string
	timeframe models.Timeframe
}

type healthEntry struct {
	consecutive   int
	incidents     int
	excludedUntil int64
}

// HealthGate tracks data problems per symbol and timeframe in simulated
// time. Consecutive incidents degrade a series; enough incidents exclude it
// until the TTL elapses.
type HealthGate struct {
	cfg     HealthConfig
	entries map[healthKey]*healthEntry
}

func NewHealthGate(cfg HealthConfig) *HealthGate {
	return &HealthGate{
		cfg:     cfg,
		entries: make(map[healthKey]*healthEntry),
	}
}

func (g *HealthGate) Status(symbol string, tf models.Timeframe, simEpoch int64) HealthStatus {
	e, ok := g.entries[healthKey{symbol: symbol, timeframe: tf}]
	if !ok {
		return HealthHealthy
	}

	if e.excludedUntil > 0 {
		if simEpoch < e.excludedUntil {
			return HealthExcluded
		}

		delete(g.entries, healthKey{symbol: symbol, timeframe: tf})
		return HealthHealthy
	}

	if g.cfg.DegradedAfter > 0 && e.consecutive >= g.cfg.DegradedAfter {
		return HealthDegraded
	}

	return HealthHealthy
}

func (g *HealthGate) RecordIncident(symbol string, tf models.Timeframe, simEpoch int64) HealthStatus {
	key := healthKey{symbol: symbol, timeframe: tf}
	e, ok := g.entries[key]
	if !ok {
		e = &healthEntry{}
		g.entries[key] = e
	}

	e.consecutive++
	e.incidents++
	if g.cfg.ExcludedAfter > 0 && e.incidents >= g.cfg.ExcludedAfter && e.excludedUntil == 0 {
		e.excludedUntil = simEpoch + int64(g.cfg.ExcludeTTL/time.Second)
	}

	return g.Status(symbol, tf, simEpoch)
}

// RecordSuccess clears the consecutive counter after a clean bar.
func (g *HealthGate) RecordSuccess(symbol string, tf models.Timeframe) {
	if e, ok := g.entries[healthKey{symbol: symbol, timeframe: tf}]; ok {
		e.consecutive = 0
	}
}

func (g *HealthGate) Reset() {
	g.entries = make(map[healthKey]*healthEntry)
}
