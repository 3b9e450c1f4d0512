package db

import (
	"fmt"

	"codedrop/internal/auth"
	"codedrop/internal/jobs"
	"codedrop/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&model.Code{},
		&model.PlatformAssociation{},
		&model.Vote{},
		&jobs.Job{},
		&auth.Admin{},
	); err != nil {
		return err
	}

	// Source id must be unique where present; rows entered manually carry
	// none, so a plain unique index would reject more than one of them.
	if err := gdb.Exec(`
create unique index if not exists uq_codes_source_id
on codes(source_id)
where source_id is not null;
`).Error; err != nil {
		return err
	}

	// Helpful indexes
	stmts := []string{
		`create index if not exists idx_votes_code on votes(code_id);`,
		`create index if not exists idx_codes_status_created on codes(status, created_at desc);`,
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
