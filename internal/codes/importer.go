package codes

import (
	"context"
	"errors"

	"codedrop/internal/model"

	"gorm.io/gorm"
)

type ImportOutcome string

const (
	ImportCreated          ImportOutcome = "created"
	ImportSkippedDuplicate ImportOutcome = "skipped_duplicate"
)

// Importer ingests externally discovered codes without creating duplicates
// across repeated or overlapping import runs. An existing record is never
// overwritten: a hit on the code token or on the source id leaves the row
// untouched and reports SkippedDuplicate.
type Importer struct {
	DB *gorm.DB
}

func (im *Importer) ImportCode(ctx context.Context, in CreateCodeInput) (ImportOutcome, error) {
	var out ImportOutcome
	err := im.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Code{}).Where("code = ?", in.Code).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			out = ImportSkippedDuplicate
			return nil
		}

		// The same upstream item can surface under two token spellings
		// between import passes; the source id catches that.
		if in.SourceID != nil && *in.SourceID != "" {
			if err := tx.Model(&model.Code{}).Where("source_id = ?", *in.SourceID).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				out = ImportSkippedDuplicate
				return nil
			}
		}

		if _, err := createCode(tx, in); err != nil {
			if errors.Is(err, model.ErrDuplicateCode) {
				out = ImportSkippedDuplicate
				return nil
			}
			return err
		}
		out = ImportCreated
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// ImportBatch imports items in order and returns one outcome per item.
// Re-running the same batch yields the same final store state as running
// it once. A storage failure aborts the batch; items already committed by
// their own transactions stay committed, and a re-run skips them.
func (im *Importer) ImportBatch(ctx context.Context, items []CreateCodeInput) ([]ImportOutcome, error) {
	outcomes := make([]ImportOutcome, 0, len(items))
	for _, in := range items {
		out, err := im.ImportCode(ctx, in)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}
