package models

import "time"

// Checkpoint is the persisted scheduler position used to resume after a
// restart without repeating ticks.
type Checkpoint struct {
	Cursors   TickCursors  `json:"cursors"`
	Broker    BrokerState  `json:"broker"`
	Counters  TickCounters `json:"counters"`
	Expired   []uint       `json:"expired,omitempty"`
	Completed bool         `json:"completed"`
	SavedAt   time.Time    `json:"saved_at"`
}

// CheckpointRecord stores a single checkpoint row.
type CheckpointRecord struct {
	ID         uint        `gorm:"primaryKey"`
	Checkpoint *Checkpoint `gorm:"column:payload;serializer:json"`
	UpdatedAt  time.Time
}

func (r *CheckpointRecord) TableName() string {
	return "simulation_checkpoints"
}

// UserRecord is counted for import readiness.
type UserRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"column:name"`
	CreatedAt time.Time
}

func (r *UserRecord) TableName() string {
	return "users"
}
