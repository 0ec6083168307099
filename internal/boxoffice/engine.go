// Package boxoffice implements the theatrical revenue simulation: the weekly
// revenue curve for a released film and its split across global territories.
// The engine is pure with respect to storage; callers own persistence of the
// per-film share map and weekly totals.
package boxoffice

import (
	"math/rand"
	"sync"
	"time"
)

const (
	WeeksPerYear = 52

	// BaselineOpening is the opening-weekend gross of an unmarketed,
	// quality-50 release before any multiplier.
	BaselineOpening = int64(8_000_000)

	// ReferenceMarketingSpend is the spend at which the marketing multiplier
	// saturates at MarketingMultCap.
	ReferenceMarketingSpend = int64(30_000_000)
	MarketingMultCap        = 2.0

	// DefaultQuality substitutes for a missing or out-of-range quality score.
	DefaultQuality = 50

	decayStart  = 0.85
	decayStep   = 0.018
	decayFloor  = 0.50
	decayJitter = 0.10

	openingVarianceMin = 0.7
	openingVarianceMax = 1.3
)

// Engine draws every stochastic quantity the simulation needs from a single
// seeded source so tests can pin outcomes. Safe for concurrent use.
type Engine struct {
	mu          sync.Mutex
	rng         *rand.Rand
	territories []Territory
	calendar    Calendar
}

// NewEngine validates the reference tables and builds an engine. A zero seed
// selects a time-based one.
func NewEngine(territories []Territory, calendar Calendar, seed int64) (*Engine, error) {
	if err := validateTerritories(territories); err != nil {
		return nil, err
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	table := make([]Territory, len(territories))
	copy(table, territories)
	return &Engine{
		rng:         rand.New(rand.NewSource(seed)),
		territories: table,
		calendar:    calendar,
	}, nil
}

// Territories returns the table in canonical order.
func (e *Engine) Territories() []Territory {
	out := make([]Territory, len(e.territories))
	copy(out, e.territories)
	return out
}

// Calendar returns the holiday calendar the engine was built with.
func (e *Engine) Calendar() Calendar {
	return e.calendar
}

func (e *Engine) nextFloat() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}
