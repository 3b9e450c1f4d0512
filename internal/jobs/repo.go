package jobs

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	DB *gorm.DB
}

// EnqueueImportBatch schedules a deferred provenance import.
func (r *Repo) EnqueueImportBatch(items []ImportItem, runAt time.Time) (uint64, error) {
	payload, err := json.Marshal(map[string]any{"items": items})
	if err != nil {
		return 0, err
	}
	j := Job{
		Type:    TypeImportBatch,
		Payload: payload,
		RunAt:   runAt,
		Status:  StatusPending,
	}
	if err := r.DB.Create(&j).Error; err != nil {
		return 0, err
	}
	return j.ID, nil
}

// EnqueueCountReconcile schedules an aggregate-counter repair for one code.
func (r *Repo) EnqueueCountReconcile(codeID uint64, runAt time.Time) (uint64, error) {
	payload, err := json.Marshal(map[string]any{"code_id": codeID})
	if err != nil {
		return 0, err
	}
	j := Job{
		Type:    TypeCountReconcile,
		Payload: payload,
		RunAt:   runAt,
		Status:  StatusPending,
	}
	if err := r.DB.Create(&j).Error; err != nil {
		return 0, err
	}
	return j.ID, nil
}

// Claim one due job atomically using SKIP LOCKED.
// Works on Postgres.
func (r *Repo) Claim(workerID string) (*Job, error) {
	var job Job
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		// requeue stuck RUNNING jobs (optional safety)
		tx.Exec(`
update jobs
set status='PENDING', locked_by=null, locked_at=null, updated_at=now()
where status='RUNNING' and locked_at is not null and locked_at < now() - interval '5 minutes'
`)

		// claim
		// FOR UPDATE SKIP LOCKED ensures no double-claim
		q := tx.Raw(`
with cte as (
  select id
  from jobs
  where status='PENDING' and run_at <= now()
  order by run_at asc
  for update skip locked
  limit 1
)
update jobs
set status='RUNNING', locked_by=?, locked_at=now(), updated_at=now()
where id in (select id from cte)
returning *;
`, workerID)

		return q.Scan(&job).Error
	})
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *Repo) MarkDone(id uint64) error {
	return r.DB.Model(&Job{}).Where("id = ?", id).
		Update("status", StatusDone).Error
}

func (r *Repo) MarkFailed(id uint64, errMsg string) error {
	return r.DB.Model(&Job{}).Where("id = ?", id).
		Updates(map[string]any{"status": StatusFailed, "last_error": errMsg}).Error
}

func (r *Repo) RetryLater(id uint64, attempts int, runAt time.Time, errMsg string) error {
	return r.DB.Model(&Job{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":     StatusPending,
			"attempts":   attempts,
			"run_at":     runAt,
			"locked_by":  nil,
			"locked_at":  nil,
			"last_error": errMsg,
		}).Error
}
