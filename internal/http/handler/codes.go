package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"codedrop/internal/codes"
	"codedrop/internal/model"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type CodeHandler struct {
	Store *codes.Store
	DB    *gorm.DB
}

type codeDTO struct {
	ID                uint64     `json:"id"`
	Code              string     `json:"code"`
	Status            string     `json:"status"`
	RewardDescription string     `json:"reward_description"`
	SourceURL         *string    `json:"source_url,omitempty"`
	SourceType        string     `json:"source_type"`
	Notes             string     `json:"notes,omitempty"`
	Platforms         []string   `json:"platforms"`
	CopyCount         int64      `json:"copy_count"`
	UpvoteCount       int64      `json:"upvote_count"`
	DownvoteCount     int64      `json:"downvote_count"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func toCodeDTO(c *model.Code) codeDTO {
	platforms := make([]string, 0, len(c.Platforms))
	for _, p := range c.Platforms {
		platforms = append(platforms, p.Platform)
	}
	return codeDTO{
		ID:                c.ID,
		Code:              c.Code,
		Status:            c.Status,
		RewardDescription: c.RewardDescription,
		SourceURL:         c.SourceURL,
		SourceType:        c.SourceType,
		Notes:             c.Notes,
		Platforms:         platforms,
		CopyCount:         c.CopyCount,
		UpvoteCount:       c.UpvoteCount,
		DownvoteCount:     c.DownvoteCount,
		ExpiresAt:         c.ExpiresAt,
		CreatedAt:         c.CreatedAt,
	}
}

func (h *CodeHandler) List(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(strings.ToLower(r.URL.Query().Get("status")))
	platform := strings.TrimSpace(r.URL.Query().Get("platform"))

	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	q := h.DB.Model(&model.Code{}).Preload("Platforms")

	if status != "" {
		if !model.ValidStatus(status) {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		q = q.Where("codes.status = ?", status)
	}

	if platform != "" {
		q = q.Joins("join platform_associations pa on pa.code_id = codes.id").
			Where("pa.platform = ?", platform)
	}

	var rows []model.Code
	if err := q.Order("codes.created_at desc").Limit(limit).Find(&rows).Error; err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	out := make([]codeDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toCodeDTO(&rows[i]))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *CodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "code")

	c, err := h.Store.FindByCode(r.Context(), token)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toCodeDTO(c))
}

// Copy records that a client copied the code to their clipboard.
func (h *CodeHandler) Copy(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "code")

	c, err := h.Store.FindByCode(r.Context(), token)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	if err := h.Store.IncrementCopyCount(r.Context(), c.ID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
