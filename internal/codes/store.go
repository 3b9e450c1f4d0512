package codes

import (
	"context"
	"errors"
	"strings"
	"time"

	"codedrop/internal/model"

	"gorm.io/gorm"
)

// Store is the single source of truth for code records and platform
// coverage. All multi-row mutations run inside one transaction so callers
// never observe a code without its platform tags or a half-applied delete.
type Store struct {
	DB *gorm.DB
}

type CreateCodeInput struct {
	Code              string
	RewardDescription string
	SourceURL         *string
	SourceID          *string
	SourceType        string
	Notes             string
	Status            string
	ExpiresAt         *time.Time
	Platforms         []string
}

func (s *Store) CreateCode(ctx context.Context, in CreateCodeInput) (uint64, error) {
	var id uint64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := createCode(tx, in)
		if err != nil {
			return err
		}
		id = created
		return nil
	})
	return id, err
}

// createCode runs inside the caller's transaction so the importer can share
// the same dedup-then-insert unit. The unique indexes on codes.code and
// codes.source_id are the backstop for races the pre-checks can't see.
func createCode(tx *gorm.DB, in CreateCodeInput) (uint64, error) {
	if in.SourceType == "" {
		in.SourceType = model.SourceUnknown
	}
	if in.Status == "" {
		in.Status = model.StatusUnknown
	}
	if !model.ValidStatus(in.Status) {
		return 0, model.ErrInvalidStatus
	}

	var n int64
	if err := tx.Model(&model.Code{}).Where("code = ?", in.Code).Count(&n).Error; err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, model.ErrDuplicateCode
	}

	c := model.Code{
		Code:              in.Code,
		Status:            in.Status,
		RewardDescription: in.RewardDescription,
		SourceURL:         in.SourceURL,
		SourceID:          in.SourceID,
		SourceType:        in.SourceType,
		Notes:             in.Notes,
		ExpiresAt:         in.ExpiresAt,
	}
	if err := tx.Create(&c).Error; err != nil {
		if isUniqueViolation(err) {
			return 0, model.ErrDuplicateCode
		}
		return 0, err
	}

	for _, p := range normalizePlatforms(in.Platforms) {
		pa := model.PlatformAssociation{CodeID: c.ID, Platform: p}
		if err := tx.Create(&pa).Error; err != nil {
			return 0, err
		}
	}
	return c.ID, nil
}

// FindByCode is a pure lookup by token, platform tags included.
func (s *Store) FindByCode(ctx context.Context, code string) (*model.Code, error) {
	var c model.Code
	err := s.DB.WithContext(ctx).
		Preload("Platforms").
		Where("code = ?", code).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// IncrementCopyCount records a client usage signal. The increment is a
// single UPDATE so concurrent signals never lose each other.
func (s *Store) IncrementCopyCount(ctx context.Context, codeID uint64) error {
	res := s.DB.WithContext(ctx).
		Model(&model.Code{}).
		Where("id = ?", codeID).
		UpdateColumn("copy_count", gorm.Expr("copy_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

// SetStatus replaces the status unconditionally; any status may follow any
// other (transition rules are policy, not store logic).
func (s *Store) SetStatus(ctx context.Context, codeID uint64, status string) error {
	if !model.ValidStatus(status) {
		return model.ErrInvalidStatus
	}
	res := s.DB.WithContext(ctx).
		Model(&model.Code{}).
		Where("id = ?", codeID).
		UpdateColumn("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

// DeleteCode removes a code together with its platform associations and
// votes. Deleting an id that does not exist is a no-op success so external
// callers can retry safely.
func (s *Store) DeleteCode(ctx context.Context, codeID uint64) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("code_id = ?", codeID).Delete(&model.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("code_id = ?", codeID).Delete(&model.PlatformAssociation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Code{}, codeID).Error
	})
}

// normalizePlatforms trims, drops empties and collapses duplicates while
// preserving input order.
func normalizePlatforms(platforms []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(platforms))
	for _, p := range platforms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
