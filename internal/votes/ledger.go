// Package votes enforces one vote per voter per code and keeps the
// denormalized counters on Code exact under concurrent writers.
package votes

import (
	"context"
	"errors"

	"codedrop/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Outcome string

const (
	OutcomeCast      Outcome = "cast"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeChanged   Outcome = "changed"
)

// Ledger serializes all vote and counter mutation for a given code through
// a row lock on that code, so the read-check-write sequence cannot race.
// Operations on different codes do not interact.
type Ledger struct {
	DB *gorm.DB
}

// CastVote records voterIdentity's vote on a code. A repeat vote of the
// same type is a no-op; a repeat vote of the other type swaps the vote row
// and moves one unit between the counters, all in one transaction.
func (l *Ledger) CastVote(ctx context.Context, codeID uint64, voteType, voterIdentity string) (Outcome, error) {
	if !model.ValidVoteType(voteType) {
		return "", model.ErrInvalidVoteType
	}

	var out Outcome
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCode(tx, codeID); err != nil {
			return err
		}

		var v model.Vote
		err := tx.Where("code_id = ? AND voter_identity = ?", codeID, voterIdentity).
			First(&v).Error
		switch {
		case err == nil && v.VoteType == voteType:
			out = OutcomeUnchanged
			return nil

		case err == nil:
			if err := tx.Delete(&model.Vote{}, v.ID).Error; err != nil {
				return err
			}
			nv := model.Vote{CodeID: codeID, VoterIdentity: voterIdentity, VoteType: voteType}
			if err := tx.Create(&nv).Error; err != nil {
				return err
			}
			if err := tx.Model(&model.Code{}).Where("id = ?", codeID).
				UpdateColumns(map[string]any{
					counterColumn(v.VoteType): gorm.Expr(counterColumn(v.VoteType) + " - 1"),
					counterColumn(voteType):   gorm.Expr(counterColumn(voteType) + " + 1"),
				}).Error; err != nil {
				return err
			}
			out = OutcomeChanged
			return nil

		case errors.Is(err, gorm.ErrRecordNotFound):
			nv := model.Vote{CodeID: codeID, VoterIdentity: voterIdentity, VoteType: voteType}
			if err := tx.Create(&nv).Error; err != nil {
				return err
			}
			if err := tx.Model(&model.Code{}).Where("id = ?", codeID).
				UpdateColumn(counterColumn(voteType), gorm.Expr(counterColumn(voteType)+" + 1")).
				Error; err != nil {
				return err
			}
			out = OutcomeCast
			return nil

		default:
			return err
		}
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// RetractVote deletes voterIdentity's vote if present and decrements the
// matching counter. The decrement is only issued alongside a confirmed
// vote row inside the same transaction, so counters never go negative.
func (l *Ledger) RetractVote(ctx context.Context, codeID uint64, voterIdentity string) (bool, error) {
	var removed bool
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCode(tx, codeID); err != nil {
			return err
		}

		var v model.Vote
		err := tx.Where("code_id = ? AND voter_identity = ?", codeID, voterIdentity).
			First(&v).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Delete(&model.Vote{}, v.ID).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Code{}).Where("id = ?", codeID).
			UpdateColumn(counterColumn(v.VoteType), gorm.Expr(counterColumn(v.VoteType)+" - 1")).
			Error; err != nil {
			return err
		}
		removed = true
		return nil
	})
	return removed, err
}

// ReconcileCounts overwrites the stored aggregates with the true vote-row
// counts. Repair path for drift after partial failures; safe to run
// concurrently with CastVote because it takes the same code-row lock.
func (l *Ledger) ReconcileCounts(ctx context.Context, codeID uint64) error {
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCode(tx, codeID); err != nil {
			return err
		}

		var up, down int64
		if err := tx.Model(&model.Vote{}).
			Where("code_id = ? AND vote_type = ?", codeID, model.VoteUp).
			Count(&up).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Vote{}).
			Where("code_id = ? AND vote_type = ?", codeID, model.VoteDown).
			Count(&down).Error; err != nil {
			return err
		}

		return tx.Model(&model.Code{}).Where("id = ?", codeID).
			UpdateColumns(map[string]any{
				"upvote_count":   up,
				"downvote_count": down,
			}).Error
	})
}

// lockCode takes the per-code write lock (FOR UPDATE on Postgres; the
// sqlite test dialector drops the clause and relies on its single writer).
func lockCode(tx *gorm.DB, codeID uint64) error {
	var c model.Code
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&c, codeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ErrNotFound
	}
	return err
}

func counterColumn(voteType string) string {
	if voteType == model.VoteUp {
		return "upvote_count"
	}
	return "downvote_count"
}
