// Package store contains GORM-backed SQLite models used by the benchmark harness.
//
// Database Structure (database file: runs.db):
//
//	databases/
//	└── runs.db
//	    ├── bench_runs
//	    └── submitted_transactions
package store

import (
	"time"

	"gorm.io/gorm"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// BenchRun is one invocation of a phase.
type BenchRun struct {
	gorm.Model
	RunID  string `gorm:"uniqueIndex;not null"`
	Phase  string `gorm:"index;not null"` // "deploy", "mint", "send", ...
	Status string `gorm:"index;not null"` // "running", "completed", "failed"

	Total     int
	Errors    int
	Confirmed int

	ErrorMsg   string `gorm:"type:text"`
	FinishedAt *time.Time
}

// SubmittedTransaction tracks the lifecycle of one batch transaction.
type SubmittedTransaction struct {
	gorm.Model
	RunID     string `gorm:"uniqueIndex:idx_run_job;not null"`
	JobID     string `gorm:"uniqueIndex:idx_run_job;not null"`
	Phase     string
	Signature string `gorm:"index"`          // base58, empty until signed
	State     string `gorm:"index;not null"` // "built", "signed", "submitted", "confirmed", "submission_failed"
	ErrorMsg  string `gorm:"type:text"`
}
