package models

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MockDatabase is an in-memory IDatabaseService. Bars and readiness counts
// come from the attached BarRepository.
type MockDatabase struct {
	mu           sync.Mutex
	bars         *BarRepository
	users        int64
	runners      map[uint]*Runner
	nextRunnerID uint
	fills        []*Fill
	results      []*ResultRecord
	executions   []*RunnerExecution
	checkpoint   *Checkpoint
}

func (m *MockDatabase) SetUsers(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users = n
}

func (m *MockDatabase) LoadRunners(ctx context.Context) ([]*Runner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Runner, 0, len(m.runners))
	for _, r := range m.runners {
		out = append(out, r.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})

	return out, nil
}

func (m *MockDatabase) SaveRunner(ctx context.Context, runner *Runner) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if runner.ID == 0 {
		m.nextRunnerID++
		runner.ID = m.nextRunnerID
	} else if runner.ID > m.nextRunnerID {
		m.nextRunnerID = runner.ID
	}

	m.runners[runner.ID] = runner.Clone()
	return nil
}

func (m *MockDatabase) DeleteRunner(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runners[id]; !ok {
		return fmt.Errorf("MockDatabase: runner %d: %w", id, ErrRunnerNotFound)
	}

	delete(m.runners, id)
	return nil
}

func (m *MockDatabase) SaveFills(ctx context.Context, fills []*Fill) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fills = append(m.fills, fills...)
	return nil
}

func (m *MockDatabase) DeleteFills(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := int64(len(m.fills))
	m.fills = nil
	return n, nil
}

func (m *MockDatabase) Fills() []*Fill {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*Fill(nil), m.fills...)
}

func (m *MockDatabase) SaveResultRecords(ctx context.Context, records []*ResultRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results = append(m.results, records...)
	return nil
}

func (m *MockDatabase) FetchResultRecords(ctx context.Context, filter ResultFilter) ([]*ResultRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*ResultRecord
	for _, r := range m.results {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}

	return out, nil
}

func (m *MockDatabase) DeleteResultRecords(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := int64(len(m.results))
	m.results = nil
	return n, nil
}

func (m *MockDatabase) SaveRunnerExecutions(ctx context.Context, executions []*RunnerExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.executions = append(m.executions, executions...)
	return nil
}

func (m *MockDatabase) RunnerExecutions() []*RunnerExecution {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*RunnerExecution(nil), m.executions...)
}

func (m *MockDatabase) DeleteRunnerExecutions(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := int64(len(m.executions))
	m.executions = nil
	return n, nil
}

func (m *MockDatabase) SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *checkpoint
	cp.Cursors = checkpoint.Cursors.Clone()
	m.checkpoint = &cp
	return nil
}

func (m *MockDatabase) LoadCheckpoint(ctx context.Context) (*Checkpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.checkpoint == nil {
		return nil, false, nil
	}

	cp := *m.checkpoint
	cp.Cursors = m.checkpoint.Cursors.Clone()
	return &cp, true, nil
}

func (m *MockDatabase) DeleteCheckpoint(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoint = nil
	return nil
}

func (m *MockDatabase) FetchReadiness(ctx context.Context) (*ImportReadiness, error) {
	m.mu.Lock()
	users, runners := m.users, int64(len(m.runners))
	m.mu.Unlock()

	var daily, minute int64
	var rng *DateRange
	if m.bars != nil {
		daily, minute = m.bars.Counts()
		if r, ok := m.bars.DateRange(); ok {
			rng = &r
		}
	}

	return NewImportReadiness(daily, minute, users, runners, rng), nil
}

func NewMockDatabase(bars *BarRepository, users int64) *MockDatabase {
	return &MockDatabase{
		bars:    bars,
		users:   users,
		runners: make(map[uint]*Runner),
	}
}
