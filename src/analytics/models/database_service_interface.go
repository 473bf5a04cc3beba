package models

import "context"

type IDatabaseService interface {
	LoadRunners(ctx context.Context) ([]*Runner, error)
	SaveRunner(ctx context.Context, runner *Runner) error
	DeleteRunner(ctx context.Context, id uint) error
	SaveFills(ctx context.Context, fills []*Fill) error
	DeleteFills(ctx context.Context) (int64, error)
	SaveResultRecords(ctx context.Context, records []*ResultRecord) error
	FetchResultRecords(ctx context.Context, filter ResultFilter) ([]*ResultRecord, error)
	DeleteResultRecords(ctx context.Context) (int64, error)
	SaveRunnerExecutions(ctx context.Context, executions []*RunnerExecution) error
	DeleteRunnerExecutions(ctx context.Context) (int64, error)
	SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error
	LoadCheckpoint(ctx context.Context) (*Checkpoint, bool, error)
	DeleteCheckpoint(ctx context.Context) error
	FetchReadiness(ctx context.Context) (*ImportReadiness, error)
}
