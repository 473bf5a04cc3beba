package services

import (
	"fmt"
	"runtime/debug"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
	"github.com/jiaming2012/analytics-sim/src/analytics/strategies"
)

type runnerSlot struct {
	runner   *models.Runner
	strategy strategies.Strategy
	initErr  error
}

// RunnerPool holds the configured runners ordered by ID together with their
// strategy instances. It is owned by the scheduler goroutine.
type RunnerPool struct {
	registry *strategies.Registry
	slots    []*runnerSlot
}

func NewRunnerPool(registry *strategies.Registry) *RunnerPool {
	return &RunnerPool{registry: registry}
}

func (p *RunnerPool) newSlot(r *models.Runner) *runnerSlot {
	slot := &runnerSlot{runner: r}
	if err := r.Validate(); err != nil {
		slot.initErr = err
		return slot
	}

	key, err := p.registry.Resolve(r.Strategy)
	if err != nil {
		slot.initErr = err
		return slot
	}
	r.Strategy = key

	slot.strategy, slot.initErr = p.registry.New(key, r.Parameters)
	return slot
}

// Add validates and inserts a runner. Invalid runners are rejected.
func (p *RunnerPool) Add(r *models.Runner) error {
	if _, ok := p.Get(r.ID); ok {
		return fmt.Errorf("%w: runner %d already exists", models.ErrInvalidRunner, r.ID)
	}

	slot := p.newSlot(r)
	if slot.initErr != nil {
		return slot.initErr
	}

	p.insert(slot)
	return nil
}

// Load inserts persisted runners. Runners that fail to initialize are kept
// and report their error on every bar.
func (p *RunnerPool) Load(runners []*models.Runner) {
	for _, r := range runners {
		slot := p.newSlot(r)
		if slot.initErr != nil {
			log.Warnf("runner %d (%s) failed to initialize: %v", r.ID, r.Name, slot.initErr)
		}
		p.insert(slot)
	}
}

func (p *RunnerPool) insert(slot *runnerSlot) {
	p.slots = append(p.slots, slot)
	sort.SliceStable(p.slots, func(i, j int) bool {
		return p.slots[i].runner.ID < p.slots[j].runner.ID
	})
}

func (p *RunnerPool) Remove(id uint) error {
	for i, s := range p.slots {
		if s.runner.ID == id {
			p.slots = append(p.slots[:i], p.slots[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("runner %d: %w", id, models.ErrRunnerNotFound)
}

func (p *RunnerPool) Get(id uint) (*models.Runner, bool) {
	for _, s := range p.slots {
		if s.runner.ID == id {
			return s.runner, true
		}
	}

	return nil, false
}

func (p *RunnerPool) SetActive(id uint, active bool) (*models.Runner, error) {
	r, ok := p.Get(id)
	if !ok {
		return nil, fmt.Errorf("runner %d: %w", id, models.ErrRunnerNotFound)
	}

	r.Active = active
	return r, nil
}

func (p *RunnerPool) All() []*models.Runner {
	out := make([]*models.Runner, 0, len(p.slots))
	for _, s := range p.slots {
		out = append(out, s.runner)
	}

	return out
}

// Active returns the active runners on a timeframe in ascending ID order.
func (p *RunnerPool) Active(tf models.Timeframe) []*models.Runner {
	var out []*models.Runner
	for _, s := range p.slots {
		if s.runner.Active && s.runner.Timeframe == tf {
			out = append(out, s.runner)
		}
	}

	return out
}

func (p *RunnerPool) ActiveCount() int {
	n := 0
	for _, s := range p.slots {
		if s.runner.Active {
			n++
		}
	}

	return n
}

// Symbols returns the distinct symbols traded by active runners on tf.
func (p *RunnerPool) Symbols(tf models.Timeframe) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range p.Active(tf) {
		if !seen[r.Stock] {
			seen[r.Stock] = true
			out = append(out, r.Stock)
		}
	}

	sort.Strings(out)
	return out
}

func (p *RunnerPool) Timeframes() []models.Timeframe {
	seen := make(map[models.Timeframe]bool)
	var out []models.Timeframe
	for _, s := range p.slots {
		if s.runner.Active && !seen[s.runner.Timeframe] {
			seen[s.runner.Timeframe] = true
			out = append(out, s.runner.Timeframe)
		}
	}

	return out
}

// Rebuild replaces every strategy instance with a fresh one.
func (p *RunnerPool) Rebuild() {
	for i, s := range p.slots {
		p.slots[i] = p.newSlot(s.runner)
	}
}

// Evaluate runs the runner's strategy on a bar. Panics are recovered and
// returned as errors.
func (p *RunnerPool) Evaluate(r *models.Runner, bar *models.Bar, position *models.Position) (decision strategies.Decision, err error) {
	var slot *runnerSlot
	for _, s := range p.slots {
		if s.runner.ID == r.ID {
			slot = s
			break
		}
	}

	if slot == nil {
		return strategies.Decision{}, fmt.Errorf("runner %d: %w", r.ID, models.ErrRunnerNotFound)
	}

	if slot.initErr != nil {
		return strategies.Decision{}, slot.initErr
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("runner %d strategy %s panicked: %v\n%s", r.ID, r.Strategy, rec, debug.Stack())
			err = fmt.Errorf("strategy %s panicked: %v", r.Strategy, rec)
		}
	}()

	return slot.strategy.OnBar(bar, position)
}
