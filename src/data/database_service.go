package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
)

const batchSize = 500

// BarStats summarizes the imported bar history.
type BarStats struct {
	Daily     int64
	Intraday  int64
	DateRange *models.DateRange
	Symbols   []string
}

// BarStatsSource reports bar counts for the readiness check.
type BarStatsSource interface {
	BarStats(ctx context.Context) (*BarStats, error)
}

// DatabaseService persists runners, fills, results and checkpoints in
// postgres. It also serves bars from the bars table unless a separate
// bar source is attached.
type DatabaseService struct {
	db        *gorm.DB
	barStats  BarStatsSource
	checkpoID uint
}

type timeframeCount struct {
	Timeframe models.Timeframe
	Count     int64
	MinEpoch  int64
	MaxEpoch  int64
}

func NewDatabaseService(db *gorm.DB) *DatabaseService {
	return &DatabaseService{
		db:        db,
		checkpoID: 1,
	}
}

// WithBarStats replaces the bars table as the source for readiness bar
// counts.
func (s *DatabaseService) WithBarStats(src BarStatsSource) *DatabaseService {
	s.barStats = src
	return s
}

func (s *DatabaseService) LoadRunners(ctx context.Context) ([]*models.Runner, error) {
	var runners []*models.Runner
	if err := s.db.WithContext(ctx).Order("id").Find(&runners).Error; err != nil {
		return nil, fmt.Errorf("loadRunners: failed to load runners: %w", err)
	}

	return runners, nil
}

func (s *DatabaseService) SaveRunner(ctx context.Context, runner *models.Runner) error {
	if err := s.db.WithContext(ctx).Save(runner).Error; err != nil {
		return fmt.Errorf("saveRunner: failed to save runner %s: %w", runner.Name, err)
	}

	return nil
}

func (s *DatabaseService) DeleteRunner(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Runner{}, id)
	if result.Error != nil {
		return fmt.Errorf("deleteRunner: failed to delete runner %d: %w", id, result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("deleteRunner: runner %d: %w", id, models.ErrRunnerNotFound)
	}

	return nil
}

func (s *DatabaseService) SaveFills(ctx context.Context, fills []*models.Fill) error {
	if len(fills) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(fills, batchSize).Error
	if err != nil {
		return fmt.Errorf("saveFills: failed to save %d fills: %w", len(fills), err)
	}

	return nil
}

func (s *DatabaseService) DeleteFills(ctx context.Context) (int64, error) {
	return s.deleteAll(ctx, &models.Fill{}, "fills")
}

func (s *DatabaseService) SaveResultRecords(ctx context.Context, records []*models.ResultRecord) error {
	if len(records) == 0 {
		return nil
	}

	if err := s.db.WithContext(ctx).CreateInBatches(records, batchSize).Error; err != nil {
		return fmt.Errorf("saveResultRecords: failed to save %d records: %w", len(records), err)
	}

	return nil
}

func (s *DatabaseService) FetchResultRecords(ctx context.Context, filter models.ResultFilter) ([]*models.ResultRecord, error) {
	query := s.db.WithContext(ctx).Model(&models.ResultRecord{})
	if filter.Strategy != "" {
		query = query.Where("strategy = ?", filter.Strategy)
	}

	if filter.Timeframe != "" {
		query = query.Where("timeframe = ?", filter.Timeframe)
	}

	if filter.RunnerID != 0 {
		query = query.Where("runner_id = ?", filter.RunnerID)
	}

	if filter.Year != 0 {
		from, to := yearBounds(filter.Year)
		query = query.Where("close_epoch >= ? AND close_epoch < ?", from, to)
	}

	var records []*models.ResultRecord
	if err := query.Order("close_epoch, id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("fetchResultRecords: failed to fetch records: %w", err)
	}

	return records, nil
}

func (s *DatabaseService) DeleteResultRecords(ctx context.Context) (int64, error) {
	return s.deleteAll(ctx, &models.ResultRecord{}, "result records")
}

func (s *DatabaseService) SaveRunnerExecutions(ctx context.Context, executions []*models.RunnerExecution) error {
	if len(executions) == 0 {
		return nil
	}

	if err := s.db.WithContext(ctx).CreateInBatches(executions, batchSize).Error; err != nil {
		return fmt.Errorf("saveRunnerExecutions: failed to save %d executions: %w", len(executions), err)
	}

	return nil
}

func (s *DatabaseService) DeleteRunnerExecutions(ctx context.Context) (int64, error) {
	return s.deleteAll(ctx, &models.RunnerExecution{}, "runner executions")
}

func (s *DatabaseService) SaveCheckpoint(ctx context.Context, checkpoint *models.Checkpoint) error {
	rec := &models.CheckpointRecord{
		ID:         s.checkpoID,
		Checkpoint: checkpoint,
	}

	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("saveCheckpoint: failed to save checkpoint: %w", err)
	}

	return nil
}

func (s *DatabaseService) LoadCheckpoint(ctx context.Context) (*models.Checkpoint, bool, error) {
	var rec models.CheckpointRecord
	err := s.db.WithContext(ctx).First(&rec, s.checkpoID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("loadCheckpoint: failed to load checkpoint: %w", err)
	}

	if rec.Checkpoint == nil {
		return nil, false, nil
	}

	return rec.Checkpoint, true, nil
}

func (s *DatabaseService) DeleteCheckpoint(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Delete(&models.CheckpointRecord{}, s.checkpoID).Error; err != nil {
		return fmt.Errorf("deleteCheckpoint: failed to delete checkpoint: %w", err)
	}

	return nil
}

func (s *DatabaseService) FetchReadiness(ctx context.Context) (*models.ImportReadiness, error) {
	var src BarStatsSource = s
	if s.barStats != nil {
		src = s.barStats
	}

	stats, err := src.BarStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetchReadiness: %w", err)
	}

	var users, runners int64
	if err := s.db.WithContext(ctx).Model(&models.UserRecord{}).Count(&users).Error; err != nil {
		return nil, fmt.Errorf("fetchReadiness: failed to count users: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.Runner{}).Count(&runners).Error; err != nil {
		return nil, fmt.Errorf("fetchReadiness: failed to count runners: %w", err)
	}

	readiness := models.NewImportReadiness(stats.Daily, stats.Intraday, users, runners, stats.DateRange)
	readiness.Symbols = stats.Symbols
	return readiness, nil
}

// BarStats counts the rows of the bars table.
func (s *DatabaseService) BarStats(ctx context.Context) (*BarStats, error) {
	var counts []timeframeCount
	err := s.db.WithContext(ctx).Model(&models.Bar{}).
		Select("timeframe, count(*) AS count, min(epoch) AS min_epoch, max(epoch) AS max_epoch").
		Group("timeframe").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count bars: %w", err)
	}

	stats := summarizeCounts(counts)

	var symbols pq.StringArray
	err = s.db.WithContext(ctx).Raw("SELECT coalesce(array_agg(DISTINCT symbol ORDER BY symbol), '{}') FROM bars").
		Row().Scan(&symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to list bar symbols: %w", err)
	}

	stats.Symbols = symbols
	return stats, nil
}

// FetchBars reads bars opening at epoch from the bars table.
func (s *DatabaseService) FetchBars(ctx context.Context, tf models.Timeframe, epoch int64, symbols []string) (map[string]*models.Bar, error) {
	out := make(map[string]*models.Bar, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	var bars []*models.Bar
	err := s.db.WithContext(ctx).
		Where("timeframe = ? AND epoch = ? AND symbol IN ?", tf, epoch, symbols).
		Find(&bars).Error
	if err != nil {
		return nil, fmt.Errorf("fetchBars: failed to fetch %s bars at %d: %w", tf, epoch, err)
	}

	for _, b := range bars {
		out[b.Symbol] = b
	}

	return out, nil
}

// SaveBars imports bars, ignoring rows that already exist.
func (s *DatabaseService) SaveBars(ctx context.Context, bars []*models.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(bars, batchSize).Error
	})
	if err != nil {
		return fmt.Errorf("saveBars: failed to save %d bars: %w", len(bars), err)
	}

	return nil
}

func (s *DatabaseService) deleteAll(ctx context.Context, model interface{}, name string) (int64, error) {
	result := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", name, result.Error)
	}

	return result.RowsAffected, nil
}

func summarizeCounts(counts []timeframeCount) *BarStats {
	stats := &BarStats{}
	for _, c := range counts {
		if c.Count == 0 {
			continue
		}

		if c.Timeframe.IsDaily() {
			stats.Daily += c.Count
		} else {
			stats.Intraday += c.Count
		}

		end := c.MaxEpoch
		if step, err := c.Timeframe.StepSeconds(); err == nil {
			end += step
		}

		if stats.DateRange == nil {
			stats.DateRange = &models.DateRange{StartEpoch: c.MinEpoch, EndEpoch: end}
			continue
		}

		if c.MinEpoch < stats.DateRange.StartEpoch {
			stats.DateRange.StartEpoch = c.MinEpoch
		}

		if end > stats.DateRange.EndEpoch {
			stats.DateRange.EndEpoch = end
		}
	}

	return stats
}

func yearBounds(year int) (int64, int64) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return from.Unix(), from.AddDate(1, 0, 0).Unix()
}
