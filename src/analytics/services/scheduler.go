package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
	"github.com/jiaming2012/analytics-sim/src/analytics/strategies"
	"github.com/jiaming2012/analytics-sim/src/eventpubsub"
)

const instrumentationName = "github.com/jiaming2012/analytics-sim/scheduler"

type request struct {
	fn    func(ctx context.Context) (interface{}, error)
	reply chan response
}

type response struct {
	value interface{}
	err   error
}

type schedulerMetrics struct {
	ticks        metric.Int64Counter
	buys         metric.Int64Counter
	sells        metric.Int64Counter
	runnerErrors metric.Int64Counter
}

func newSchedulerMetrics() schedulerMetrics {
	meter := otel.Meter(instrumentationName)
	var m schedulerMetrics
	var errs []error
	var err error

	m.ticks, err = meter.Int64Counter("simulation.ticks", metric.WithDescription("simulation ticks processed"))
	errs = append(errs, err)
	m.buys, err = meter.Int64Counter("simulation.buys", metric.WithDescription("entry fills"))
	errs = append(errs, err)
	m.sells, err = meter.Int64Counter("simulation.sells", metric.WithDescription("exit fills"))
	errs = append(errs, err)
	m.runnerErrors, err = meter.Int64Counter("simulation.runner_errors", metric.WithDescription("runner errors"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		log.Warnf("failed to create scheduler metrics: %v", err)
	}

	return m
}

type SchedulerOption func(*Scheduler)

// WithClock replaces the wall clock used for progress and ETA.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

func WithPublisher(p *eventpubsub.Publisher) SchedulerOption {
	return func(s *Scheduler) {
		s.publisher = p
	}
}

func WithRegistry(r *strategies.Registry) SchedulerOption {
	return func(s *Scheduler) {
		s.pool = NewRunnerPool(r)
	}
}

// Scheduler drives a simulation. All state is owned by the goroutine
// running Run; other goroutines reach it through requests and read the
// published snapshot.
type Scheduler struct {
	cfg        *Config
	db         models.IDatabaseService
	feed       models.IBarFeed
	broker     *models.MockBroker
	pool       *RunnerPool
	tracker    *ProgressTracker
	health     *HealthGate
	aggregator *Aggregator
	publisher  *eventpubsub.Publisher
	jobs       *resetJobStore
	now        func() time.Time

	requests chan request
	snapshot atomic.Pointer[models.ProgressSnapshot]

	tracer  trace.Tracer
	metrics schedulerMetrics

	// owned by the Run goroutine
	state         models.SimulationState
	cursors       models.TickCursors
	counters      models.TickCounters
	currentRunner string
	lastError     string
	fatal         bool
	expired       map[uint]bool
	pendingResets []uuid.UUID
}

func NewScheduler(cfg *Config, db models.IDatabaseService, feed models.IBarFeed, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		cfg:        cfg,
		db:         db,
		feed:       feed,
		broker:     models.NewMockBroker(cfg.Commission()),
		pool:       NewRunnerPool(strategies.NewDefaultRegistry()),
		tracker:    NewProgressTracker(cfg.Eta),
		health:     NewHealthGate(cfg.Health),
		aggregator: NewAggregator(db),
		jobs:       newResetJobStore(),
		now:        time.Now,
		requests:   make(chan request, 64),
		tracer:     otel.Tracer(instrumentationName),
		metrics:    newSchedulerMetrics(),
		state:      models.SimulationStateIdle,
		expired:    make(map[uint]bool),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.publishSnapshot()
	return s
}

// Init loads persisted runners and the last checkpoint. It must be called
// before Run.
func (s *Scheduler) Init(ctx context.Context) error {
	runners, err := s.db.LoadRunners(ctx)
	if err != nil {
		return fmt.Errorf("Scheduler.Init: failed to load runners: %w", err)
	}

	s.pool.Load(runners)
	for _, r := range s.pool.All() {
		s.broker.RegisterRunner(r)
	}

	checkpoint, found, err := s.db.LoadCheckpoint(ctx)
	if err != nil {
		return fmt.Errorf("Scheduler.Init: failed to load checkpoint: %w", err)
	}

	if found {
		s.restore(checkpoint)
	}

	log.Infof("scheduler initialized with %d runners, state %s", len(runners), s.state)
	s.publishSnapshot()
	return nil
}

func (s *Scheduler) restore(c *models.Checkpoint) {
	s.broker.Restore(c.Broker)
	for _, r := range s.pool.All() {
		s.broker.RegisterRunner(r)
	}

	if len(c.Cursors) == 0 {
		return
	}

	s.cursors = c.Cursors.Clone()
	s.cursors.Sort()
	s.counters = c.Counters
	s.expired = make(map[uint]bool, len(c.Expired))
	for _, id := range c.Expired {
		s.expired[id] = true
	}

	if c.Completed || s.cursors.IsDone() {
		s.state = models.SimulationStateCompleted
		s.tracker.Complete(s.now())
	} else {
		s.state = models.SimulationStateStopped
	}
}

// Run processes requests and cadence ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	var ticker *time.Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		var tickC <-chan time.Time
		if s.state == models.SimulationStateRunning && s.cfg.TickInterval > 0 {
			if ticker == nil {
				ticker = time.NewTicker(s.cfg.TickInterval)
			}
			tickC = ticker.C
		} else if ticker != nil {
			ticker.Stop()
			ticker = nil
		}

		select {
		case <-ctx.Done():
			if s.state == models.SimulationStateRunning {
				s.saveCheckpoint(context.Background())
			}
			return ctx.Err()
		case req := <-s.requests:
			v, err := req.fn(ctx)
			req.reply <- response{value: v, err: err}
			s.runPendingResets(ctx)
		case <-tickC:
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	for i := 0; i < s.cfg.TicksPerCycle; i++ {
		if s.state != models.SimulationStateRunning {
			return
		}

		if err := s.tick(ctx); err != nil {
			return
		}

		if len(s.requests) > 0 {
			return
		}
	}
}

// do runs fn on the scheduler goroutine and waits for its result.
func (s *Scheduler) do(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	req := request{fn: fn, reply: make(chan response, 1)}

	select {
	case s.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-req.reply:
		return resp.value, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Scheduler) control(ctx context.Context, fn func(ctx context.Context) (*models.ControlResponse, error)) (*models.ControlResponse, error) {
	v, err := s.do(ctx, func(ctx context.Context) (interface{}, error) {
		return fn(ctx)
	})

	resp, _ := v.(*models.ControlResponse)
	return resp, err
}

func (s *Scheduler) Start(ctx context.Context) (*models.ControlResponse, error) {
	return s.control(ctx, s.start)
}

func (s *Scheduler) Stop(ctx context.Context) (*models.ControlResponse, error) {
	return s.control(ctx, s.stop)
}

func (s *Scheduler) ForceTick(ctx context.Context) (*models.ControlResponse, error) {
	return s.control(ctx, s.forceTick)
}

// Reset schedules an asynchronous reset and returns its job id.
func (s *Scheduler) Reset(ctx context.Context, scope models.ResetScope) (uuid.UUID, error) {
	v, err := s.do(ctx, func(ctx context.Context) (interface{}, error) {
		return s.scheduleReset(scope)
	})
	if err != nil {
		return uuid.Nil, err
	}

	return v.(uuid.UUID), nil
}

func (s *Scheduler) ResetStatus(id uuid.UUID) (*models.ResetJob, error) {
	return s.jobs.get(id)
}

// Status returns the latest snapshot with the ETA and age computed at read time.
func (s *Scheduler) Status() *models.ProgressSnapshot {
	snap := *s.snapshot.Load()
	now := s.now()

	snap.Timeframes = append([]models.TimeframeProgress(nil), snap.Timeframes...)
	snap.EtaSeconds = s.tracker.Eta(now, snap.State)
	if finish, ok := s.tracker.FinishEpoch(); ok && snap.EtaSeconds != nil {
		snap.EstimatedFinishTime = &finish
	}
	snap.SnapshotAgeSeconds = now.Unix() - snap.GeneratedAtEpoch
	return &snap
}

// Progress is an alias of Status.
func (s *Scheduler) Progress() *models.ProgressSnapshot {
	return s.Status()
}

func (s *Scheduler) Readiness(ctx context.Context) (*models.ImportReadiness, error) {
	return s.db.FetchReadiness(ctx)
}

func (s *Scheduler) ResultsSummary(ctx context.Context, groupBy []models.GroupByField, filter models.ResultFilter) ([]*models.SummaryBucket, error) {
	return s.aggregator.Summary(ctx, groupBy, filter)
}

func (s *Scheduler) PerformanceMetrics(ctx context.Context, filter models.ResultFilter) ([]*models.StrategyMetrics, error) {
	return s.aggregator.Metrics(ctx, filter)
}

func (s *Scheduler) Runners(ctx context.Context) ([]*models.Runner, error) {
	v, err := s.do(ctx, func(ctx context.Context) (interface{}, error) {
		var out []*models.Runner
		for _, r := range s.pool.All() {
			out = append(out, r.Clone())
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]*models.Runner), nil
}

func (s *Scheduler) AddRunner(ctx context.Context, runner *models.Runner) (*models.Runner, error) {
	v, err := s.do(ctx, func(ctx context.Context) (interface{}, error) {
		if s.state == models.SimulationStateRunning {
			return nil, fmt.Errorf("AddRunner: %w", models.ErrBusy)
		}

		r := runner.Clone()
		if err := r.Validate(); err != nil {
			return nil, err
		}

		key, err := s.pool.registry.Resolve(r.Strategy)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrInvalidRunner, err)
		}
		r.Strategy = key

		if _, err := s.pool.registry.New(r.Strategy, r.Parameters); err != nil {
			return nil, err
		}

		if err := s.db.SaveRunner(ctx, r); err != nil {
			return nil, fmt.Errorf("AddRunner: failed to save runner: %w", err)
		}

		if err := s.pool.Add(r); err != nil {
			return nil, err
		}

		s.broker.RegisterRunner(r)
		log.Infof("added runner %d (%s %s %s)", r.ID, r.Name, r.Stock, r.Strategy)
		return r.Clone(), nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*models.Runner), nil
}

// RemoveRunner deletes a runner; it fails while the runner holds a position.
func (s *Scheduler) RemoveRunner(ctx context.Context, id uint) error {
	_, err := s.do(ctx, func(ctx context.Context) (interface{}, error) {
		if s.state == models.SimulationStateRunning {
			return nil, fmt.Errorf("RemoveRunner: %w", models.ErrBusy)
		}

		if _, ok := s.pool.Get(id); !ok {
			return nil, fmt.Errorf("RemoveRunner: runner %d: %w", id, models.ErrRunnerNotFound)
		}

		if err := s.broker.RemoveRunner(id); err != nil {
			return nil, err
		}

		if err := s.db.DeleteRunner(ctx, id); err != nil {
			return nil, fmt.Errorf("RemoveRunner: failed to delete runner: %w", err)
		}

		delete(s.expired, id)

		return nil, s.pool.Remove(id)
	})

	return err
}

func (s *Scheduler) SetRunnerActive(ctx context.Context, id uint, active bool) (*models.Runner, error) {
	v, err := s.do(ctx, func(ctx context.Context) (interface{}, error) {
		if s.state == models.SimulationStateRunning {
			return nil, fmt.Errorf("SetRunnerActive: %w", models.ErrBusy)
		}

		r, err := s.pool.SetActive(id, active)
		if err != nil {
			return nil, err
		}

		if err := s.db.SaveRunner(ctx, r); err != nil {
			return nil, fmt.Errorf("SetRunnerActive: failed to save runner: %w", err)
		}

		return r.Clone(), nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*models.Runner), nil
}

// CloseAllPositions flattens the whole book between ticks.
func (s *Scheduler) CloseAllPositions(ctx context.Context) ([]*models.ResultRecord, error) {
	v, err := s.do(ctx, func(ctx context.Context) (interface{}, error) {
		return s.flatten(ctx, s.broker.CloseAll(s.simEpoch()))
	})

	results, _ := v.([]*models.ResultRecord)
	return results, err
}

// CloseRunnerPositions flattens one runner between ticks, typically before
// removing it.
func (s *Scheduler) CloseRunnerPositions(ctx context.Context, id uint) ([]*models.ResultRecord, error) {
	v, err := s.do(ctx, func(ctx context.Context) (interface{}, error) {
		r, ok := s.pool.Get(id)
		if !ok {
			return nil, fmt.Errorf("CloseRunnerPositions: runner %d: %w", id, models.ErrRunnerNotFound)
		}

		results, err := s.flatten(ctx, s.broker.CloseRunner(id, s.simEpoch()))
		log.Infof("closed %d positions of runner %d (%s)", len(results), r.ID, r.Name)
		return results, err
	})

	results, _ := v.([]*models.ResultRecord)
	return results, err
}

// simEpoch is the current simulated time, or wall time before a run starts.
func (s *Scheduler) simEpoch() int64 {
	if driver, ok := s.cursors.Finest(); ok {
		return driver.SimTimeEpoch
	}

	if len(s.cursors) > 0 {
		return s.cursors[0].SimTimeEpoch
	}

	return s.now().Unix()
}

func (s *Scheduler) flatten(ctx context.Context, executions []*models.Execution) ([]*models.ResultRecord, error) {
	var batch tickBatch
	for _, exec := range executions {
		batch.addExecution(exec)
		s.counters.Sells++
	}

	if err := s.persist(ctx, &batch); err != nil {
		return batch.results, err
	}

	s.publishSnapshot()
	return batch.results, nil
}

func (s *Scheduler) Positions() []models.Position {
	return s.broker.Positions()
}

func (s *Scheduler) start(ctx context.Context) (*models.ControlResponse, error) {
	switch s.state {
	case models.SimulationStateRunning:
		return s.controlResponse("already running"), nil
	case models.SimulationStateCompleted:
		return nil, models.ErrRunCompleted
	case models.SimulationStateStopped:
		if s.fatal {
			return nil, fmt.Errorf("%w: %s", models.ErrBrokerInvariantViolation, s.lastError)
		}
	}

	readiness, err := s.db.FetchReadiness(ctx)
	if err != nil {
		return nil, fmt.Errorf("Start: failed to fetch readiness: %w", err)
	}

	if !readiness.Ready {
		return nil, fmt.Errorf("%w: daily=%d minute=%d users=%d runners=%d", models.ErrNotReady,
			readiness.DailyBarsCount, readiness.MinuteBarsCount, readiness.UsersCount, readiness.RunnersCount)
	}

	message := "resumed"
	if s.cursors == nil {
		if err := s.initCursors(ctx, readiness); err != nil {
			return nil, err
		}
		message = "started"
	}

	s.state = models.SimulationStateRunning
	s.tracker.Begin(s.now())
	s.publishSnapshot()
	s.publishState()

	log.Infof("simulation %s", message)
	return s.controlResponse(message), nil
}

func (s *Scheduler) initCursors(ctx context.Context, readiness *models.ImportReadiness) error {
	checkpoint, found, err := s.db.LoadCheckpoint(ctx)
	if err != nil {
		return fmt.Errorf("Start: failed to load checkpoint: %w", err)
	}

	if found && !checkpoint.Completed && len(checkpoint.Cursors) > 0 {
		s.restore(checkpoint)
		return nil
	}

	rng, err := s.cfg.DateRange()
	if err != nil {
		return err
	}

	if rng == nil {
		rng = readiness.DateRange
	}

	if rng == nil {
		return fmt.Errorf("%w: no date range configured or imported", models.ErrNotReady)
	}

	timeframes, err := s.cfg.ParseTimeframes()
	if err != nil {
		return err
	}

	if len(timeframes) == 0 {
		timeframes = s.pool.Timeframes()
	}

	if len(timeframes) == 0 {
		return fmt.Errorf("%w: no active runners", models.ErrNotReady)
	}

	cursors, err := models.NewTickCursors(timeframes, rng.StartEpoch, rng.EndEpoch)
	if err != nil {
		return fmt.Errorf("Start: failed to create cursors: %w", err)
	}

	s.cursors = cursors
	s.expired = make(map[uint]bool)
	s.pool.Rebuild()
	return nil
}

func (s *Scheduler) stop(ctx context.Context) (*models.ControlResponse, error) {
	if s.state != models.SimulationStateRunning {
		return s.controlResponse("not running"), nil
	}

	s.state = models.SimulationStateStopped
	s.saveCheckpoint(ctx)
	s.publishSnapshot()
	s.publishState()

	log.Info("simulation stopped")
	return s.controlResponse("stopped"), nil
}

func (s *Scheduler) forceTick(ctx context.Context) (*models.ControlResponse, error) {
	if s.state != models.SimulationStateRunning {
		return nil, models.ErrNotRunning
	}

	if err := s.tick(ctx); err != nil {
		return s.controlResponse(err.Error()), err
	}

	return s.controlResponse("ticked"), nil
}

func (s *Scheduler) controlResponse(message string) *models.ControlResponse {
	return models.NewControlResponse(s.Status(), message)
}

func (s *Scheduler) publishSnapshot() {
	snap := &models.ProgressSnapshot{
		State:            s.state,
		TotalBuys:        s.counters.Buys,
		TotalSells:       s.counters.Sells,
		CurrentRunner:    s.currentRunner,
		Counters:         s.counters,
		LastError:        s.lastError,
		Fatal:            s.fatal,
		GeneratedAtEpoch: s.now().Unix(),
	}

	for _, c := range s.cursors {
		snap.Timeframes = append(snap.Timeframes, models.TimeframeProgress{
			Timeframe:       c.Timeframe,
			ProgressPercent: c.Percent(),
			SimTimeEpoch:    c.SimTimeEpoch,
			TicksDone:       c.TicksDone,
			TicksTotal:      c.TicksTotal,
		})
	}

	if len(s.cursors) > 0 {
		snap.ProgressPercent = s.cursors[0].Percent()
	}

	if s.state == models.SimulationStateCompleted {
		snap.ProgressPercent = 100
	}

	s.snapshot.Store(snap)
}

func (s *Scheduler) publishState() {
	if s.publisher != nil {
		s.publisher.Publish(eventpubsub.SimulationStateChanged, s.Status())
	}
}
