package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
	"github.com/jiaming2012/analytics-sim/src/analytics/strategies"
	"github.com/jiaming2012/analytics-sim/src/eventpubsub"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	scheduler *Scheduler
	db        *models.MockDatabase
	bars      *models.BarRepository
}

type barSpec struct {
	open, high, low, close float64
}

func intradayBars(symbol string, tf models.Timeframe, start time.Time, specs ...barSpec) []*models.Bar {
	step, _ := tf.StepSeconds()
	bars := make([]*models.Bar, 0, len(specs))
	for i, sp := range specs {
		bars = append(bars, &models.Bar{
			Symbol:    symbol,
			Timeframe: tf,
			Epoch:     start.Unix() + int64(i)*step,
			Open:      sp.open,
			High:      sp.high,
			Low:       sp.low,
			Close:     sp.close,
		})
	}

	return bars
}

func dailyBar(symbol string) *models.Bar {
	return &models.Bar{Symbol: symbol, Timeframe: models.Timeframe1d, Epoch: day0.Unix(), Open: 100, High: 100, Low: 100, Close: 100}
}

func testConfig(timeframes ...string) *Config {
	cfg := DefaultConfig()
	cfg.TickInterval = 0
	cfg.Timeframes = timeframes
	cfg.StartDate = "2024-01-01"
	cfg.EndDate = "2024-01-01"
	return cfg
}

func belowAboveRunner(name string, tf models.Timeframe, below, above float64) *models.Runner {
	return &models.Runner{
		Name:       name,
		Stock:      "AAPL",
		Strategy:   strategies.BelowAboveKey,
		Timeframe:  tf,
		Budget:     decimal.NewFromInt(10000),
		Parameters: map[string]float64{"below": below, "above": above},
		ExitStrategy: []models.ExitRule{
			{Kind: models.ExitStopLoss, Percent: -5},
			{Kind: models.ExitTakeProfit, Percent: 3},
		},
		Active: true,
	}
}

func newTestEnv(t *testing.T, cfg *Config, feed models.IBarFeed, bars []*models.Bar, users int64, runners []*models.Runner, opts ...SchedulerOption) *testEnv {
	t.Helper()

	repo := models.NewBarRepository(bars...)
	db := models.NewMockDatabase(repo, users)
	for _, r := range runners {
		require.NoError(t, db.SaveRunner(context.Background(), r))
	}

	if feed == nil {
		feed = repo
	}

	s := NewScheduler(cfg, db, feed, opts...)
	require.NoError(t, s.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &testEnv{scheduler: s, db: db, bars: repo}
}

func (e *testEnv) forceTicks(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := e.scheduler.ForceTick(context.Background())
		require.NoError(t, err)
	}
}

func (e *testEnv) runToCompletion(t *testing.T) {
	t.Helper()
	for i := 0; i < 100000; i++ {
		if e.scheduler.Status().State == models.SimulationStateCompleted {
			return
		}
		_, err := e.scheduler.ForceTick(context.Background())
		require.NoError(t, err)
	}

	t.Fatal("simulation did not complete")
}

func (e *testEnv) waitReset(t *testing.T, id uuid.UUID) *models.ResetJob {
	t.Helper()

	var job *models.ResetJob
	require.Eventually(t, func() bool {
		var err error
		job, err = e.scheduler.ResetStatus(id)
		require.NoError(t, err)
		return job.Status != models.ResetJobPending
	}, 2*time.Second, 5*time.Millisecond)

	return job
}

func stopLossBars() []*models.Bar {
	bars := intradayBars("AAPL", models.Timeframe5m, day0,
		barSpec{100, 100.5, 99.5, 100},
		barSpec{100, 101, 98, 99},
		barSpec{98, 98, 94, 95},
	)

	return append(bars, dailyBar("AAPL"))
}

func TestSchedulerStopLossScenario(t *testing.T) {
	env := newTestEnv(t, testConfig("5m"), nil, stopLossBars(), 1, []*models.Runner{belowAboveRunner("aapl", models.Timeframe5m, 100, 1000)})
	ctx := context.Background()

	resp, err := env.scheduler.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, models.SimulationStateRunning, resp.State)

	env.forceTicks(t, 3)

	records, err := env.db.FetchResultRecords(ctx, models.ResultFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	require.Equal(t, string(models.ExitStopLoss), rec.ExitReason)
	require.InDelta(t, 100, rec.EntryPrice, 1e-9)
	require.InDelta(t, 95, rec.ExitPrice, 1e-9)
	require.InDelta(t, -5.195, rec.PnlPercent.InexactFloat64(), 0.01)
	require.Less(t, rec.PnlPercent.InexactFloat64(), -5.0)

	status := env.scheduler.Status()
	require.Equal(t, int64(1), status.TotalBuys)
	require.Equal(t, int64(1), status.TotalSells)
	require.Empty(t, env.scheduler.Positions())
}

func TestSchedulerStartNotReady(t *testing.T) {
	env := newTestEnv(t, testConfig("5m"), nil, stopLossBars(), 0, []*models.Runner{belowAboveRunner("aapl", models.Timeframe5m, 100, 1000)})

	_, err := env.scheduler.Start(context.Background())
	require.ErrorIs(t, err, models.ErrNotReady)
	require.Equal(t, models.SimulationStateIdle, env.scheduler.Status().State)

	_, err = env.scheduler.ForceTick(context.Background())
	require.ErrorIs(t, err, models.ErrNotRunning)
}

func TestSchedulerMultipleTimeframes(t *testing.T) {
	cfg := testConfig("5m", "1d")
	cfg.EndDate = "2024-01-02"
	env := newTestEnv(t, cfg, nil, stopLossBars(), 1, []*models.Runner{belowAboveRunner("aapl", models.Timeframe5m, 1, 1000)})
	ctx := context.Background()

	_, err := env.scheduler.Start(ctx)
	require.NoError(t, err)

	progress := func() map[models.Timeframe]models.TimeframeProgress {
		out := make(map[models.Timeframe]models.TimeframeProgress)
		for _, p := range env.scheduler.Status().Timeframes {
			out[p.Timeframe] = p
		}
		return out
	}

	env.forceTicks(t, 10)
	p := progress()
	require.Equal(t, int64(10), p[models.Timeframe5m].TicksDone)
	require.Equal(t, int64(0), p[models.Timeframe1d].TicksDone)

	env.forceTicks(t, 278)
	p = progress()
	require.Equal(t, int64(288), p[models.Timeframe5m].TicksDone)
	require.Equal(t, int64(1), p[models.Timeframe1d].TicksDone)
	require.Equal(t, day0.Unix()+86400, p[models.Timeframe1d].SimTimeEpoch)
	require.InDelta(t, 50, p[models.Timeframe5m].ProgressPercent, 1e-9)
}

func TestSchedulerLifecycle(t *testing.T) {
	env := newTestEnv(t, testConfig("5m"), nil, stopLossBars(), 1, []*models.Runner{belowAboveRunner("aapl", models.Timeframe5m, 100, 1000)})
	ctx := context.Background()
	s := env.scheduler

	_, err := s.Start(ctx)
	require.NoError(t, err)

	resp, err := s.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, "already running", resp.Message)

	env.forceTicks(t, 5)

	_, err = s.Reset(ctx, models.ResetScope{Hard: true})
	require.ErrorIs(t, err, models.ErrBusy)

	_, err = s.AddRunner(ctx, belowAboveRunner("late", models.Timeframe5m, 100, 1000))
	require.ErrorIs(t, err, models.ErrBusy)

	resp, err = s.Stop(ctx)
	require.NoError(t, err)
	require.Equal(t, models.SimulationStateStopped, resp.State)

	resp, err = s.Stop(ctx)
	require.NoError(t, err)
	require.Equal(t, "not running", resp.Message)

	resp, err = s.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, "resumed", resp.Message)
	require.Equal(t, int64(5), s.Status().Timeframes[0].TicksDone)

	env.runToCompletion(t)
	status := s.Status()
	require.Equal(t, float64(100), status.ProgressPercent)
	require.NotNil(t, status.EtaSeconds)
	require.Zero(t, *status.EtaSeconds)

	_, err = s.Start(ctx)
	require.ErrorIs(t, err, models.ErrRunCompleted)
}

func TestSchedulerHardResetAfterCompletion(t *testing.T) {
	env := newTestEnv(t, testConfig("5m"), nil, stopLossBars(), 1, []*models.Runner{belowAboveRunner("aapl", models.Timeframe5m, 100, 1000)})
	ctx := context.Background()
	s := env.scheduler

	_, err := s.Start(ctx)
	require.NoError(t, err)
	env.runToCompletion(t)

	summary, err := s.ResultsSummary(ctx, nil, models.ResultFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, summary)

	id, err := s.Reset(ctx, models.ResetScope{Hard: true})
	require.NoError(t, err)

	job := env.waitReset(t, id)
	require.Equal(t, models.ResetJobCompleted, job.Status)
	require.Equal(t, int64(1), job.DeletedCounts["result_records"])

	summary, err = s.ResultsSummary(ctx, []models.GroupByField{models.GroupByYear}, models.ResultFilter{})
	require.NoError(t, err)
	require.Empty(t, summary)
	require.Empty(t, s.Positions())

	status := s.Status()
	require.Equal(t, models.SimulationStateIdle, status.State)
	require.Empty(t, status.Timeframes)
	require.Zero(t, status.TotalBuys)

	// a second identical reset on empty state is harmless
	id, err = s.Reset(ctx, models.ResetScope{Hard: true})
	require.NoError(t, err)
	require.Equal(t, models.ResetJobCompleted, env.waitReset(t, id).Status)
}

func oscillatingBars(n int) []*models.Bar {
	specs := make([]barSpec, 0, n)
	for i := 0; i < n; i++ {
		c := 100 + float64(i%7) - 3
		specs = append(specs, barSpec{c, c + 1.5, c - 1.5, c})
	}

	return append(intradayBars("AAPL", models.Timeframe5m, day0, specs...), dailyBar("AAPL"))
}

func fillKeys(fills []*models.Fill) []string {
	out := make([]string, 0, len(fills))
	for _, f := range fills {
		out = append(out, fmt.Sprintf("%d|%d|%s|%.6f|%.6f|%d|%s|%s", f.ID, f.RunnerID, f.Side, f.Quantity, f.Price, f.Epoch, f.Commission.String(), f.Reason))
	}

	return out
}

func TestSchedulerReplayIsDeterministic(t *testing.T) {
	replay := func(t *testing.T, runners []*models.Runner) *testEnv {
		env := newTestEnv(t, testConfig("5m"), nil, oscillatingBars(288), 1, runners)
		ctx := context.Background()
		s := env.scheduler

		_, err := s.Start(ctx)
		require.NoError(t, err)
		env.runToCompletion(t)

		first := fillKeys(env.db.Fills())
		require.NotEmpty(t, first)

		id, err := s.Reset(ctx, models.ResetScope{Hard: true})
		require.NoError(t, err)
		require.Equal(t, models.ResetJobCompleted, env.waitReset(t, id).Status)
		require.Empty(t, env.db.Fills())

		_, err = s.Start(ctx)
		require.NoError(t, err)
		env.runToCompletion(t)

		require.Equal(t, first, fillKeys(env.db.Fills()))
		return env
	}

	t.Run("runners over the whole range", func(t *testing.T) {
		replay(t, []*models.Runner{
			belowAboveRunner("fast", models.Timeframe5m, 98, 102),
			belowAboveRunner("slow", models.Timeframe5m, 97, 103),
		})
	})

	t.Run("runner that expires mid range", func(t *testing.T) {
		short := belowAboveRunner("short", models.Timeframe5m, 98, 102)
		short.TimeRange = models.TimeRange{To: day0.Unix() + 100*300}

		env := replay(t, []*models.Runner{short})

		for _, f := range env.db.Fills() {
			require.Less(t, f.Epoch, short.TimeRange.To+300)
		}

		runners, err := env.scheduler.Runners(context.Background())
		require.NoError(t, err)
		require.Len(t, runners, 1)
		require.True(t, runners[0].Active)

		checkpoint, found, err := env.db.LoadCheckpoint(context.Background())
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, []uint{runners[0].ID}, checkpoint.Expired)
	})
}

type failingFeed struct {
	block bool
}

func (f *failingFeed) FetchBars(ctx context.Context, tf models.Timeframe, epoch int64, symbols []string) (map[string]*models.Bar, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	return nil, fmt.Errorf("connection refused")
}

func TestSchedulerBarFeedFailure(t *testing.T) {
	runners := []*models.Runner{belowAboveRunner("aapl", models.Timeframe5m, 100, 1000)}

	t.Run("error leaves cursors in place", func(t *testing.T) {
		env := newTestEnv(t, testConfig("5m"), &failingFeed{}, stopLossBars(), 1, runners)
		ctx := context.Background()

		_, err := env.scheduler.Start(ctx)
		require.NoError(t, err)

		_, err = env.scheduler.ForceTick(ctx)
		require.ErrorIs(t, err, models.ErrBarFeed)

		status := env.scheduler.Status()
		require.Equal(t, models.SimulationStateRunning, status.State)
		require.Equal(t, int64(0), status.Timeframes[0].TicksDone)
		require.Contains(t, status.LastError, "connection refused")
	})

	t.Run("timeout", func(t *testing.T) {
		cfg := testConfig("5m")
		cfg.BarFeedTimeout = 20 * time.Millisecond
		env := newTestEnv(t, cfg, &failingFeed{block: true}, stopLossBars(), 1, []*models.Runner{belowAboveRunner("aapl", models.Timeframe5m, 100, 1000)})
		ctx := context.Background()

		_, err := env.scheduler.Start(ctx)
		require.NoError(t, err)

		_, err = env.scheduler.ForceTick(ctx)
		require.ErrorIs(t, err, models.ErrBarFeedTimeout)
		require.Equal(t, models.SimulationStateRunning, env.scheduler.Status().State)
	})
}

func TestSchedulerBrokerInvariantViolation(t *testing.T) {
	repo := models.NewBarRepository(stopLossBars()...)
	db := models.NewMockDatabase(repo, 1)
	ctx := context.Background()

	runner := belowAboveRunner("aapl", models.Timeframe5m, 100, 1000)
	require.NoError(t, db.SaveRunner(ctx, runner))
	require.NoError(t, db.SaveCheckpoint(ctx, &models.Checkpoint{
		Broker: models.BrokerState{
			Ledgers: map[uint]models.Ledger{
				runner.ID: {Budget: decimal.NewFromInt(10000), Realized: decimal.NewFromInt(-20000)},
			},
		},
	}))

	s := NewScheduler(testConfig("5m"), db, repo)
	require.NoError(t, s.Init(ctx))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = s.Run(runCtx) }()

	_, err := s.Start(ctx)
	require.NoError(t, err)

	_, err = s.ForceTick(ctx)
	require.ErrorIs(t, err, models.ErrBrokerInvariantViolation)

	status := s.Status()
	require.Equal(t, models.SimulationStateStopped, status.State)
	require.True(t, status.Fatal)
	require.Contains(t, status.LastError, "negative")

	_, err = s.Start(ctx)
	require.ErrorIs(t, err, models.ErrBrokerInvariantViolation)

	id, err := s.Reset(ctx, models.ResetScope{ResetAccount: true})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		job, err := s.ResetStatus(id)
		return err == nil && job.Status == models.ResetJobCompleted
	}, 2*time.Second, 5*time.Millisecond)

	resp, err := s.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, "started", resp.Message)
	require.False(t, s.Status().Fatal)
}

type panicStrategy struct{}

func (panicStrategy) Name() string { return "explode" }

func (panicStrategy) OnBar(*models.Bar, *models.Position) (strategies.Decision, error) {
	panic("boom")
}

func TestSchedulerRunnerErrorsAreIsolated(t *testing.T) {
	registry := strategies.NewDefaultRegistry()
	registry.Register("explode", func(map[string]float64) (strategies.Strategy, error) {
		return panicStrategy{}, nil
	})

	bad := belowAboveRunner("bad", models.Timeframe5m, 100, 1000)
	bad.Strategy = "explode"
	good := belowAboveRunner("good", models.Timeframe5m, 100, 1000)

	env := newTestEnv(t, testConfig("5m"), nil, stopLossBars(), 1, []*models.Runner{bad, good}, WithRegistry(registry))
	ctx := context.Background()

	_, err := env.scheduler.Start(ctx)
	require.NoError(t, err)
	env.forceTicks(t, 1)

	status := env.scheduler.Status()
	require.Equal(t, int64(1), status.Counters.Errors)
	require.Equal(t, int64(1), status.TotalBuys)

	var statuses []models.ExecutionStatus
	for _, e := range env.db.RunnerExecutions() {
		statuses = append(statuses, e.Status)
	}
	require.Equal(t, []models.ExecutionStatus{models.ExecutionError, models.ExecutionTradeExecuted}, statuses)
}

func TestSchedulerRunnerManagement(t *testing.T) {
	env := newTestEnv(t, testConfig("5m"), nil, stopLossBars(), 1, nil)
	ctx := context.Background()
	s := env.scheduler

	readiness, err := s.Readiness(ctx)
	require.NoError(t, err)
	require.False(t, readiness.Ready)

	r := belowAboveRunner("aapl", models.Timeframe5m, 100, 1000)
	r.Strategy = "buy-below-sell-above"
	added, err := s.AddRunner(ctx, r)
	require.NoError(t, err)
	require.NotZero(t, added.ID)
	require.Equal(t, strategies.BelowAboveKey, added.Strategy)

	invalid := belowAboveRunner("bad", models.Timeframe5m, 100, 1000)
	invalid.Strategy = "martingale"
	_, err = s.AddRunner(ctx, invalid)
	require.ErrorIs(t, err, models.ErrInvalidRunner)

	readiness, err = s.Readiness(ctx)
	require.NoError(t, err)
	require.True(t, readiness.Ready)

	_, err = s.Start(ctx)
	require.NoError(t, err)
	env.forceTicks(t, 1)
	_, err = s.Stop(ctx)
	require.NoError(t, err)

	require.ErrorIs(t, s.RemoveRunner(ctx, added.ID), models.ErrOpenPosition)

	results, err := s.CloseAllPositions(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, models.ExitReasonForced, results[0].ExitReason)

	require.NoError(t, s.RemoveRunner(ctx, added.ID))
	require.ErrorIs(t, s.RemoveRunner(ctx, added.ID), models.ErrRunnerNotFound)

	runners, err := s.Runners(ctx)
	require.NoError(t, err)
	require.Empty(t, runners)
}

func TestSchedulerCloseRunnerPositions(t *testing.T) {
	runners := []*models.Runner{
		belowAboveRunner("keep", models.Timeframe5m, 100, 1000),
		belowAboveRunner("flatten", models.Timeframe5m, 100, 1000),
	}
	env := newTestEnv(t, testConfig("5m"), nil, stopLossBars(), 1, runners)
	ctx := context.Background()
	s := env.scheduler

	_, err := s.Start(ctx)
	require.NoError(t, err)
	env.forceTicks(t, 1)
	_, err = s.Stop(ctx)
	require.NoError(t, err)
	require.Len(t, s.Positions(), 2)

	keep, flatten := runners[0].ID, runners[1].ID
	require.ErrorIs(t, s.RemoveRunner(ctx, flatten), models.ErrOpenPosition)

	results, err := s.CloseRunnerPositions(ctx, flatten)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, flatten, results[0].RunnerID)
	require.Equal(t, models.ExitReasonRemoved, results[0].ExitReason)

	positions := s.Positions()
	require.Len(t, positions, 1)
	require.Equal(t, keep, positions[0].RunnerID)
	require.Len(t, env.db.Fills(), 3)
	require.Equal(t, int64(1), s.Status().TotalSells)

	// nothing left to close
	results, err = s.CloseRunnerPositions(ctx, flatten)
	require.NoError(t, err)
	require.Empty(t, results)

	require.NoError(t, s.RemoveRunner(ctx, flatten))

	_, err = s.CloseRunnerPositions(ctx, flatten)
	require.ErrorIs(t, err, models.ErrRunnerNotFound)
}

func TestSchedulerIdempotentPendingReset(t *testing.T) {
	db := models.NewMockDatabase(models.NewBarRepository(), 1)
	s := NewScheduler(testConfig("5m"), db, models.NewBarRepository())

	first, err := s.scheduleReset(models.ResetScope{ClearOrders: true})
	require.NoError(t, err)

	second, err := s.scheduleReset(models.ResetScope{ClearOrders: true})
	require.NoError(t, err)
	require.Equal(t, first, second)

	third, err := s.scheduleReset(models.ResetScope{Hard: true})
	require.NoError(t, err)
	require.NotEqual(t, first, third)

	s.runPendingResets(context.Background())
	job, err := s.ResetStatus(first)
	require.NoError(t, err)
	require.Equal(t, models.ResetJobCompleted, job.Status)

	_, err = s.ResetStatus(uuid.New())
	require.ErrorIs(t, err, models.ErrResetJobNotFound)
}

func TestSchedulerCadenceAndCompletionEvent(t *testing.T) {
	cfg := testConfig("1h")
	cfg.TickInterval = time.Millisecond
	cfg.TicksPerCycle = 5

	bars := append(intradayBars("AAPL", models.Timeframe1h, day0, barSpec{100, 101, 99, 100}), dailyBar("AAPL"))
	publisher := eventpubsub.NewPublisher()
	completed := make(chan *SimulationCompletedEvent, 1)
	require.NoError(t, publisher.Subscribe(eventpubsub.SimulationCompleted, func(e *SimulationCompletedEvent) {
		completed <- e
	}))

	env := newTestEnv(t, cfg, nil, bars, 1, []*models.Runner{belowAboveRunner("aapl", models.Timeframe1h, 100, 1000)}, WithPublisher(publisher))

	_, err := env.scheduler.Start(context.Background())
	require.NoError(t, err)

	select {
	case e := <-completed:
		require.Equal(t, int64(1), e.Counters.Buys)
		require.Empty(t, e.Summary)
	case <-time.After(5 * time.Second):
		t.Fatal("simulation did not complete")
	}

	status := env.scheduler.Status()
	require.Equal(t, models.SimulationStateCompleted, status.State)
	require.Equal(t, int64(24), status.Timeframes[0].TicksDone)
}

func TestSchedulerResumeFromCheckpoint(t *testing.T) {
	repo := models.NewBarRepository(oscillatingBars(288)...)
	db := models.NewMockDatabase(repo, 1)
	ctx := context.Background()
	require.NoError(t, db.SaveRunner(ctx, belowAboveRunner("aapl", models.Timeframe5m, 98, 102)))

	first := NewScheduler(testConfig("5m"), db, repo)
	require.NoError(t, first.Init(ctx))
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		_ = first.Run(runCtx)
		close(done)
	}()

	_, err := first.Start(ctx)
	require.NoError(t, err)
	for i := 0; i < 40; i++ {
		_, err := first.ForceTick(ctx)
		require.NoError(t, err)
	}
	before := first.Status()
	cancel()
	<-done

	second := NewScheduler(testConfig("5m"), db, repo)
	require.NoError(t, second.Init(ctx))

	status := second.Status()
	require.Equal(t, models.SimulationStateStopped, status.State)
	require.Equal(t, int64(40), status.Timeframes[0].TicksDone)
	require.Equal(t, before.TotalBuys, status.TotalBuys)
	require.Equal(t, first.Positions(), second.Positions())
}
