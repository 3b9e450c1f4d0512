package jobs

import "time"

const (
	TypeImportBatch    = "IMPORT_BATCH"
	TypeCountReconcile = "COUNT_RECONCILE"
)

const (
	StatusPending = "PENDING"
	StatusRunning = "RUNNING"
	StatusDone    = "DONE"
	StatusFailed  = "FAILED"
)

type Job struct {
	ID uint64 `gorm:"primaryKey"`

	Type    string `gorm:"type:text;not null"`
	Payload []byte `gorm:"type:jsonb;not null"`

	RunAt  time.Time `gorm:"index;not null"`
	Status string    `gorm:"index;not null;default:'PENDING'"`

	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:8"`

	LockedBy *string    `gorm:"type:text"`
	LockedAt *time.Time `gorm:"type:timestamptz"`

	LastError *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ImportItem is the wire form of one code tuple inside an IMPORT_BATCH
// payload, as produced by the admin import endpoint.
type ImportItem struct {
	Code              string     `json:"code"`
	RewardDescription string     `json:"reward_description"`
	SourceURL         *string    `json:"source_url,omitempty"`
	SourceID          *string    `json:"source_id,omitempty"`
	SourceType        string     `json:"source_type"`
	Notes             string     `json:"notes"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	Platforms         []string   `json:"platforms"`
}
