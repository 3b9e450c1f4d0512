package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"codedrop/internal/codes"
	"codedrop/internal/jobs"
	"codedrop/internal/model"
	"codedrop/internal/votes"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type AdminHandler struct {
	Store    *codes.Store
	Importer *codes.Importer
	Ledger   *votes.Ledger
	Jobs     *jobs.Repo
	DB       *gorm.DB
}

type createCodeReq struct {
	Code              string   `json:"code"`
	RewardDescription string   `json:"reward_description"`
	SourceURL         *string  `json:"source_url"`
	SourceID          *string  `json:"source_id"`
	SourceType        string   `json:"source_type"`
	Notes             string   `json:"notes"`
	Status            string   `json:"status"`
	ExpiresAt         *string  `json:"expires_at"` // RFC3339 optional
	Platforms         []string `json:"platforms"`
}

func (req *createCodeReq) toInput() (codes.CreateCodeInput, error) {
	in := codes.CreateCodeInput{
		Code:              strings.TrimSpace(req.Code),
		RewardDescription: strings.TrimSpace(req.RewardDescription),
		SourceURL:         req.SourceURL,
		SourceID:          req.SourceID,
		SourceType:        strings.TrimSpace(strings.ToLower(req.SourceType)),
		Notes:             req.Notes,
		Status:            strings.TrimSpace(strings.ToLower(req.Status)),
		Platforms:         req.Platforms,
	}
	if in.Code == "" {
		return in, errors.New("code required")
	}
	if in.SourceType != "" && !model.ValidSourceType(in.SourceType) {
		return in, errors.New("invalid source_type")
	}
	if in.Status != "" && !model.ValidStatus(in.Status) {
		return in, errors.New("invalid status")
	}
	if req.ExpiresAt != nil && strings.TrimSpace(*req.ExpiresAt) != "" {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			return in, errors.New("invalid expires_at (RFC3339)")
		}
		in.ExpiresAt = &t
	}
	return in, nil
}

func (h *AdminHandler) CreateCode(w http.ResponseWriter, r *http.Request) {
	var req createCodeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	in, err := req.toInput()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.Store.CreateCode(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrDuplicateCode):
			http.Error(w, "code already exists", http.StatusConflict)
		case errors.Is(err, model.ErrInvalidStatus):
			http.Error(w, "invalid status", http.StatusBadRequest)
		default:
			http.Error(w, "server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

type setStatusReq struct {
	Status string `json:"status"`
}

func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req setStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	req.Status = strings.TrimSpace(strings.ToLower(req.Status))

	err := h.Store.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidStatus):
			http.Error(w, "invalid status", http.StatusBadRequest)
		case errors.Is(err, model.ErrNotFound):
			http.Error(w, "not found", http.StatusNotFound)
		default:
			http.Error(w, "server error", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) DeleteCode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	// delete is idempotent; a missing id is still a success
	if err := h.Store.DeleteCode(r.Context(), id); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.Ledger.ReconcileCounts(r.Context(), id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReconcileAll enqueues a counter-repair job for every code instead of
// locking them all in one request.
func (h *AdminHandler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	var ids []uint64
	if err := h.DB.Model(&model.Code{}).Pluck("id", &ids).Error; err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	for _, id := range ids {
		if _, err := h.Jobs.EnqueueCountReconcile(id, now); err != nil {
			http.Error(w, "failed enqueue job", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"enqueued": len(ids)})
}

type importReq struct {
	Items []createCodeReq `json:"items"`
	RunAt *string         `json:"run_at"` // RFC3339; defer through the job queue
}

func (h *AdminHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req importReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		http.Error(w, "items required", http.StatusBadRequest)
		return
	}

	inputs := make([]codes.CreateCodeInput, 0, len(req.Items))
	for i := range req.Items {
		in, err := req.Items[i].toInput()
		if err != nil {
			http.Error(w, "item "+strconv.Itoa(i)+": "+err.Error(), http.StatusBadRequest)
			return
		}
		inputs = append(inputs, in)
	}

	if req.RunAt != nil && strings.TrimSpace(*req.RunAt) != "" {
		runAt, err := time.Parse(time.RFC3339, *req.RunAt)
		if err != nil {
			http.Error(w, "invalid run_at (RFC3339)", http.StatusBadRequest)
			return
		}
		items := make([]jobs.ImportItem, 0, len(inputs))
		for _, in := range inputs {
			items = append(items, jobs.ImportItem{
				Code:              in.Code,
				RewardDescription: in.RewardDescription,
				SourceURL:         in.SourceURL,
				SourceID:          in.SourceID,
				SourceType:        in.SourceType,
				Notes:             in.Notes,
				ExpiresAt:         in.ExpiresAt,
				Platforms:         in.Platforms,
			})
		}
		jobID, err := h.Jobs.EnqueueImportBatch(items, runAt)
		if err != nil {
			http.Error(w, "failed enqueue job", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]any{"job_id": jobID})
		return
	}

	outcomes, err := h.Importer.ImportBatch(r.Context(), inputs)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	var created, skipped int
	for _, out := range outcomes {
		if out == codes.ImportCreated {
			created++
		} else {
			skipped++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"outcomes": outcomes,
		"created":  created,
		"skipped":  skipped,
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
