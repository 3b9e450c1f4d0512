package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"time"

	"codedrop/internal/codes"
	"codedrop/internal/model"
	"codedrop/internal/votes"
)

type Worker struct {
	ID       string
	Repo     *Repo
	Importer *codes.Importer
	Ledger   *votes.Ledger
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(800 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := w.Repo.Claim(w.ID)
			if err != nil {
				log.Printf("worker claim error: %v\n", err)
				continue
			}
			if job == nil {
				continue
			}
			w.handle(ctx, job)
		}
	}
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	switch job.Type {
	case TypeImportBatch:
		w.handleImportBatch(ctx, job)
	case TypeCountReconcile:
		w.handleCountReconcile(ctx, job)
	default:
		_ = w.Repo.MarkFailed(job.ID, "unknown job type")
	}
}

func (w *Worker) handleImportBatch(ctx context.Context, job *Job) {
	var p struct {
		Items []ImportItem `json:"items"`
	}
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		_ = w.Repo.MarkFailed(job.ID, "bad payload")
		return
	}

	var created, skipped int
	for _, item := range p.Items {
		out, err := w.Importer.ImportCode(ctx, codes.CreateCodeInput{
			Code:              item.Code,
			RewardDescription: item.RewardDescription,
			SourceURL:         item.SourceURL,
			SourceID:          item.SourceID,
			SourceType:        item.SourceType,
			Notes:             item.Notes,
			ExpiresAt:         item.ExpiresAt,
			Platforms:         item.Platforms,
		})
		if err != nil {
			// imports are idempotent, so a retry re-runs the whole batch
			w.retry(job, "import error: "+err.Error())
			return
		}
		if out == codes.ImportCreated {
			created++
		} else {
			skipped++
		}
	}

	log.Printf("[IMPORT] job=%d created=%d skipped=%d\n", job.ID, created, skipped)
	_ = w.Repo.MarkDone(job.ID)
}

func (w *Worker) handleCountReconcile(ctx context.Context, job *Job) {
	var p struct {
		CodeID uint64 `json:"code_id"`
	}
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		_ = w.Repo.MarkFailed(job.ID, "bad payload")
		return
	}

	if err := w.Ledger.ReconcileCounts(ctx, p.CodeID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			// code deleted since enqueue, nothing to repair
			_ = w.Repo.MarkDone(job.ID)
			return
		}
		w.retry(job, "reconcile error: "+err.Error())
		return
	}
	_ = w.Repo.MarkDone(job.ID)
}

func (w *Worker) retry(job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		_ = w.Repo.MarkFailed(job.ID, errMsg)
		return
	}

	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	next := time.Now().Add(time.Duration(sec) * time.Second)

	_ = w.Repo.RetryLater(job.ID, attempts, next, errMsg)
}
