package model

import "time"

// Code statuses. The store enforces no transition rules: status semantics
// are policy owned by administrative callers.
const (
	StatusActive  = "active"
	StatusExpired = "expired"
	StatusUnknown = "unknown"
)

// Source provenance for imported codes.
const (
	SourceManual  = "manual"
	SourceScraped = "scraped"
	SourceUnknown = "unknown"
)

func ValidStatus(s string) bool {
	return s == StatusActive || s == StatusExpired || s == StatusUnknown
}

func ValidSourceType(s string) bool {
	return s == SourceManual || s == SourceScraped || s == SourceUnknown
}

// Code is a redemption code with its platform coverage and denormalized
// vote/usage aggregates. UpvoteCount and DownvoteCount are derived from the
// votes table and are only mutated inside the same transaction as the vote
// rows they summarize.
type Code struct {
	ID                uint64  `gorm:"primaryKey"`
	Code              string  `gorm:"uniqueIndex;size:64;not null"`
	Status            string  `gorm:"index;not null;default:'unknown'"`
	RewardDescription string  `gorm:"type:text;not null;default:''"`
	SourceURL         *string `gorm:"type:text"`
	SourceID          *string // unique where present, see db.AutoMigrateAndIndexes
	SourceType        string  `gorm:"not null;default:'unknown'"`
	Notes             string  `gorm:"type:text;not null;default:''"`

	CopyCount     int64 `gorm:"not null;default:0"`
	UpvoteCount   int64 `gorm:"not null;default:0"`
	DownvoteCount int64 `gorm:"not null;default:0"`

	ExpiresAt *time.Time `gorm:"type:timestamptz"`
	CreatedAt time.Time  `gorm:"not null"`

	Platforms []PlatformAssociation `gorm:"foreignKey:CodeID"`
}

// PlatformAssociation tags a Code as redeemable on one platform.
// The platform set is open (PC, Xbox, PlayStation, All, ...); the pair
// (CodeID, Platform) is unique.
type PlatformAssociation struct {
	ID       uint64 `gorm:"primaryKey"`
	CodeID   uint64 `gorm:"uniqueIndex:uq_code_platform;not null"`
	Platform string `gorm:"uniqueIndex:uq_code_platform;size:32;not null"`
}
