package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
	"github.com/jiaming2012/analytics-sim/src/analytics/strategies"
	"github.com/jiaming2012/analytics-sim/src/eventpubsub"
)

// tickBatch collects what a tick must persist.
type tickBatch struct {
	fills      []*models.Fill
	results    []*models.ResultRecord
	executions []*models.RunnerExecution
}

func (b *tickBatch) addExecution(exec *models.Execution) {
	b.fills = append(b.fills, exec.Fill)
	if exec.Result != nil {
		b.results = append(b.results, exec.Result)
	}
}

func (b *tickBatch) log(r *models.Runner, tf models.Timeframe, epoch int64, status models.ExecutionStatus, message string) {
	b.executions = append(b.executions, &models.RunnerExecution{
		RunnerID:  r.ID,
		Symbol:    r.Stock,
		Timeframe: tf,
		SimEpoch:  epoch,
		Status:    status,
		Message:   message,
	})
}

// tick advances the due cursors by one step. Bars are fetched for every due
// cursor before any cursor moves, so a feed failure leaves all cursors in
// place.
func (s *Scheduler) tick(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "scheduler.tick")
	defer span.End()

	due := s.cursors.Due()
	if len(due) == 0 {
		s.complete(ctx)
		return nil
	}

	bars := make(map[models.Timeframe]map[string]*models.Bar, len(due))
	for _, c := range due {
		symbols := s.pool.Symbols(c.Timeframe)
		if len(symbols) == 0 {
			continue
		}

		fetched, err := s.fetchBars(ctx, c, symbols)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.lastError = err.Error()
			s.publishSnapshot()
			log.Errorf("tick aborted: %v", err)
			return err
		}

		bars[c.Timeframe] = fetched
	}

	simAdvanced := due[0].StepSeconds
	var batch tickBatch
	for _, c := range due {
		barEpoch := c.BarEpoch()
		c.Advance()
		span.AddEvent("cursor advanced", trace.WithAttributes(
			attribute.String("timeframe", string(c.Timeframe)),
			attribute.Int64("sim_time", c.SimTimeEpoch),
		))

		for _, r := range s.pool.Active(c.Timeframe) {
			if s.expired[r.ID] {
				continue
			}

			s.runRunner(ctx, r, c.Timeframe, barEpoch, bars[c.Timeframe][r.Stock], &batch)
		}
	}

	s.metrics.ticks.Add(ctx, 1)

	if err := s.broker.CheckInvariants(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.failFatal(ctx, err, &batch)
		return err
	}

	if err := s.persist(ctx, &batch); err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}

	now := s.now()
	s.tracker.Observe(now, simAdvanced, s.cursors.RemainingSeconds())

	if s.cursors.IsDone() {
		s.complete(ctx)
		return nil
	}

	s.publishSnapshot()
	return nil
}

func (s *Scheduler) fetchBars(ctx context.Context, c *models.TickCursor, symbols []string) (map[string]*models.Bar, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.BarFeedTimeout)
	defer cancel()

	bars, err := s.feed.FetchBars(fetchCtx, c.Timeframe, c.BarEpoch(), symbols)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s at %d: %w", models.ErrBarFeedTimeout, c.Timeframe, c.BarEpoch(), err)
		}
		return nil, fmt.Errorf("%w: %s at %d: %w", models.ErrBarFeed, c.Timeframe, c.BarEpoch(), err)
	}

	return bars, nil
}

// runRunner processes one runner on one bar. Errors are recorded against the
// runner and never abort the tick.
func (s *Scheduler) runRunner(ctx context.Context, r *models.Runner, tf models.Timeframe, barEpoch int64, bar *models.Bar, batch *tickBatch) {
	s.currentRunner = r.Name
	s.counters.Processed++
	logger := log.WithFields(log.Fields{
		"runner":    r.ID,
		"symbol":    r.Stock,
		"timeframe": tf,
		"epoch":     barEpoch,
	})

	if !r.TimeRange.Contains(barEpoch) {
		if r.TimeRange.To > 0 && barEpoch >= r.TimeRange.To {
			s.expireRunner(ctx, r, tf, barEpoch, bar, batch)
			return
		}

		batch.log(r, tf, barEpoch, models.ExecutionSkippedNotInTime, "")
		return
	}

	if s.health.Status(r.Stock, tf, barEpoch) == HealthExcluded {
		s.counters.SkippedExcluded++
		batch.log(r, tf, barEpoch, models.ExecutionSkippedExcluded, "")
		return
	}

	if bar == nil {
		s.counters.SkippedNoData++
		status := s.health.RecordIncident(r.Stock, tf, barEpoch)
		batch.log(r, tf, barEpoch, models.ExecutionSkippedNoData, string(status))
		return
	}

	s.health.RecordSuccess(r.Stock, tf)

	exited := false
	if exec, closed := s.broker.SettleBar(r.ID, bar); closed {
		exited = true
		batch.addExecution(exec)
		s.counters.Sells++
		s.metrics.sells.Add(ctx, 1)
		batch.log(r, tf, barEpoch, models.ExecutionExitExecuted, exec.Result.ExitReason)
	}

	var position *models.Position
	if p, ok := s.broker.Position(r.ID, r.Stock); ok {
		position = &p
	}

	decision, err := s.pool.Evaluate(r, bar, position)
	if err != nil {
		s.counters.Errors++
		s.metrics.runnerErrors.Add(ctx, 1)
		s.health.RecordIncident(r.Stock, tf, barEpoch)
		batch.log(r, tf, barEpoch, models.ExecutionError, err.Error())
		logger.Warnf("runner error: %v", err)
		return
	}

	switch decision.Signal {
	case strategies.SignalBuy:
		if exited {
			s.counters.NoAction++
			batch.log(r, tf, barEpoch, models.ExecutionNoAction, "exited on this bar")
			return
		}

		exec, err := s.broker.PlaceOrder(r, models.OrderRequest{
			Side:   models.OrderSideBuy,
			Symbol: r.Stock,
			Price:  bar.Close,
			Epoch:  bar.EndEpoch(),
			Reason: decision.Reason,
		})
		switch {
		case errors.Is(err, models.ErrInsufficientBudget):
			s.counters.SkippedNoBudget++
			batch.log(r, tf, barEpoch, models.ExecutionSkippedNoFunds, err.Error())
		case err != nil:
			s.counters.Errors++
			batch.log(r, tf, barEpoch, models.ExecutionOrderFailed, err.Error())
		default:
			batch.addExecution(exec)
			s.counters.Buys++
			s.metrics.buys.Add(ctx, 1)
			batch.log(r, tf, barEpoch, models.ExecutionTradeExecuted, decision.Reason)
		}
	case strategies.SignalSell:
		exec, err := s.broker.PlaceOrder(r, models.OrderRequest{
			Side:   models.OrderSideSell,
			Symbol: r.Stock,
			Price:  bar.Close,
			Epoch:  bar.EndEpoch(),
			Reason: models.ExitReasonSignal,
		})
		if err != nil {
			batch.log(r, tf, barEpoch, models.ExecutionOrderFailed, err.Error())
			return
		}

		batch.addExecution(exec)
		s.counters.Sells++
		s.metrics.sells.Add(ctx, 1)
		batch.log(r, tf, barEpoch, models.ExecutionExitExecuted, decision.Reason)
	default:
		if !exited {
			s.counters.NoAction++
			batch.log(r, tf, barEpoch, models.ExecutionNoAction, decision.Reason)
		}
	}
}

// expireRunner closes any position left after the runner's time range and
// retires the runner for the rest of the run. The persisted Active flag is
// left alone so a reset replays the runner.
func (s *Scheduler) expireRunner(ctx context.Context, r *models.Runner, tf models.Timeframe, barEpoch int64, bar *models.Bar, batch *tickBatch) {
	if bar != nil {
		if _, ok := s.broker.Position(r.ID, r.Stock); ok {
			exec, err := s.broker.PlaceOrder(r, models.OrderRequest{
				Side:   models.OrderSideSell,
				Symbol: r.Stock,
				Price:  bar.Open,
				Epoch:  barEpoch,
				Reason: string(models.ExitExpiredDate),
			})
			if err != nil {
				batch.log(r, tf, barEpoch, models.ExecutionOrderFailed, err.Error())
				log.WithFields(log.Fields{
					"runner":    r.ID,
					"symbol":    r.Stock,
					"timeframe": tf,
					"epoch":     barEpoch,
				}).Warnf("time exit failed: %v", err)
				return
			}

			batch.addExecution(exec)
			s.counters.Sells++
			s.metrics.sells.Add(ctx, 1)
			batch.log(r, tf, barEpoch, models.ExecutionExitExecuted, string(models.ExitExpiredDate))
		}
	} else if _, ok := s.broker.Position(r.ID, r.Stock); ok {
		batch.log(r, tf, barEpoch, models.ExecutionSkippedNoData, "position awaiting expiry")
		return
	}

	s.expired[r.ID] = true
	batch.log(r, tf, barEpoch, models.ExecutionSkippedNotInTime, "expired after time range")
	log.Infof("runner %d (%s) expired after its time range", r.ID, r.Name)
}

func (s *Scheduler) persist(ctx context.Context, batch *tickBatch) error {
	var errs []error
	if len(batch.fills) > 0 {
		if err := s.db.SaveFills(ctx, batch.fills); err != nil {
			errs = append(errs, fmt.Errorf("failed to save fills: %w", err))
		}
	}

	if len(batch.results) > 0 {
		if err := s.db.SaveResultRecords(ctx, batch.results); err != nil {
			errs = append(errs, fmt.Errorf("failed to save result records: %w", err))
		}
	}

	if len(batch.executions) > 0 {
		if err := s.db.SaveRunnerExecutions(ctx, batch.executions); err != nil {
			errs = append(errs, fmt.Errorf("failed to save runner executions: %w", err))
		}
	}

	if err := s.checkpoint(ctx); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		log.Errorf("persist: %v", err)
		return err
	}

	return nil
}

func (s *Scheduler) checkpoint(ctx context.Context) error {
	if s.cursors == nil {
		return nil
	}

	err := s.db.SaveCheckpoint(ctx, &models.Checkpoint{
		Cursors:   s.cursors.Clone(),
		Broker:    s.broker.State(),
		Counters:  s.counters,
		Expired:   s.expiredIDs(),
		Completed: s.state == models.SimulationStateCompleted,
		SavedAt:   s.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	return nil
}

func (s *Scheduler) expiredIDs() []uint {
	if len(s.expired) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(s.expired))
	for id := range s.expired {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Scheduler) saveCheckpoint(ctx context.Context) {
	if err := s.checkpoint(ctx); err != nil {
		log.Error(err)
	}
}

// failFatal stops the simulation after a broker invariant violation. Start
// is rejected until a reset.
func (s *Scheduler) failFatal(ctx context.Context, err error, batch *tickBatch) {
	s.fatal = true
	s.lastError = err.Error()
	s.state = models.SimulationStateStopped
	if perr := s.persist(ctx, batch); perr != nil {
		log.Errorf("failed to persist after fatal error: %v", perr)
	}

	log.Errorf("simulation stopped: %v", err)
	s.publishSnapshot()
	s.publishState()
}

func (s *Scheduler) complete(ctx context.Context) {
	s.state = models.SimulationStateCompleted
	s.currentRunner = ""
	s.tracker.Complete(s.now())
	s.saveCheckpoint(ctx)
	s.publishSnapshot()

	summary, err := s.aggregator.Summary(ctx, nil, models.ResultFilter{})
	if err != nil {
		log.Errorf("failed to summarize results: %v", err)
	}

	log.WithFields(log.Fields{
		"buys":  s.counters.Buys,
		"sells": s.counters.Sells,
	}).Info("simulation completed")

	if s.publisher != nil {
		s.publisher.Publish(eventpubsub.SimulationCompleted, &SimulationCompletedEvent{
			CompletedAt: s.now(),
			Counters:    s.counters,
			Summary:     summary,
		})
	}
	s.publishState()
}

type SimulationCompletedEvent struct {
	CompletedAt time.Time
	Counters    models.TickCounters
	Summary     []*models.SummaryBucket
}
