package model

import "time"

const (
	VoteUp   = "upvote"
	VoteDown = "downvote"
)

func ValidVoteType(s string) bool {
	return s == VoteUp || s == VoteDown
}

// Vote is one voter's current opinion on one code. At most one row exists
// per (CodeID, VoterIdentity); a changed vote is delete+recreate so the
// aggregate-counter arithmetic on Code stays exact.
type Vote struct {
	ID            uint64    `gorm:"primaryKey"`
	CodeID        uint64    `gorm:"uniqueIndex:uq_code_voter;not null"`
	VoterIdentity string    `gorm:"uniqueIndex:uq_code_voter;size:64;not null"`
	VoteType      string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}
