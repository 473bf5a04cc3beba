package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
	"github.com/jiaming2012/analytics-sim/src/eventpubsub"
)

func (s *Scheduler) scheduleReset(scope models.ResetScope) (uuid.UUID, error) {
	if s.state == models.SimulationStateRunning {
		return uuid.Nil, fmt.Errorf("Reset: %w", models.ErrBusy)
	}

	scope = scope.Normalize()
	if job, ok := s.jobs.pendingWithScope(scope); ok {
		return job.ID, nil
	}

	job := s.jobs.create(scope, s.now())
	s.pendingResets = append(s.pendingResets, job.ID)
	log.Infof("reset job %s scheduled: %+v", job.ID, scope)
	return job.ID, nil
}

func (s *Scheduler) runPendingResets(ctx context.Context) {
	for len(s.pendingResets) > 0 {
		id := s.pendingResets[0]
		s.pendingResets = s.pendingResets[1:]

		job, err := s.jobs.get(id)
		if err != nil {
			log.Error(err)
			continue
		}

		counts, err := s.executeReset(ctx, job.Scope)
		finished := s.jobs.finish(id, counts, err, s.now())
		if err != nil {
			log.Errorf("reset job %s failed: %v", id, err)
		} else {
			log.Infof("reset job %s completed: %v", id, counts)
		}

		if s.publisher != nil {
			s.publisher.Publish(eventpubsub.ResetJobFinished, finished)
		}
	}
}

// executeReset clears the requested state. Cursors, checkpoint, counters,
// health and ETA are always cleared and the state returns to idle.
func (s *Scheduler) executeReset(ctx context.Context, scope models.ResetScope) (map[string]int64, error) {
	counts := s.broker.Reset(models.BrokerResetOptions{
		ResetAccount:       scope.ResetAccount,
		ClearOrders:        scope.ClearOrders,
		ClearOpenPositions: scope.ClearOpenPositions,
	})

	var errs []error
	if scope.ClearOrders {
		n, err := s.db.DeleteFills(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to delete fills: %w", err))
		}
		counts["fills"] = n
	}

	if scope.ClearAnalyticsResults {
		n, err := s.db.DeleteResultRecords(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to delete result records: %w", err))
		}
		counts["result_records"] = n
	}

	if scope.TruncateLogs {
		n, err := s.db.DeleteRunnerExecutions(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to delete runner executions: %w", err))
		}
		counts["runner_executions"] = n
	}

	if err := s.db.DeleteCheckpoint(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to delete checkpoint: %w", err))
	}

	s.cursors = nil
	s.counters = models.TickCounters{}
	s.currentRunner = ""
	s.lastError = ""
	s.fatal = false
	s.expired = make(map[uint]bool)
	s.tracker.Reset()
	s.health.Reset()
	s.pool.Rebuild()
	s.state = models.SimulationStateIdle

	// positions that survive a soft reset must be checkpointed with the book
	if len(s.broker.Positions()) > 0 {
		if err := s.db.SaveCheckpoint(ctx, &models.Checkpoint{Broker: s.broker.State(), SavedAt: s.now()}); err != nil {
			errs = append(errs, fmt.Errorf("failed to save broker state: %w", err))
		}
	}

	s.publishSnapshot()
	s.publishState()
	return counts, errors.Join(errs...)
}
