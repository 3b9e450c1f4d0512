package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"codedrop/internal/codes"
	"codedrop/internal/model"
	"codedrop/internal/votes"

	"github.com/go-chi/chi/v5"
)

type VoteHandler struct {
	Store  *codes.Store
	Ledger *votes.Ledger
}

type castVoteReq struct {
	VoteType string `json:"vote_type"`
}

func (h *VoteHandler) Cast(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "code")

	var req castVoteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	req.VoteType = strings.TrimSpace(strings.ToLower(req.VoteType))
	if !model.ValidVoteType(req.VoteType) {
		http.Error(w, "invalid vote_type", http.StatusBadRequest)
		return
	}

	c, err := h.Store.FindByCode(r.Context(), token)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	outcome, err := h.Ledger.CastVote(r.Context(), c.ID, req.VoteType, voterIdentity(r))
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			http.Error(w, "not found", http.StatusNotFound)
		case errors.Is(err, model.ErrInvalidVoteType):
			http.Error(w, "invalid vote_type", http.StatusBadRequest)
		default:
			http.Error(w, "server error", http.StatusInternalServerError)
		}
		return
	}

	// re-read for fresh counters
	c, err = h.Store.FindByCode(r.Context(), token)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"outcome":        string(outcome),
		"upvote_count":   c.UpvoteCount,
		"downvote_count": c.DownvoteCount,
	})
}

func (h *VoteHandler) Retract(w http.ResponseWriter, r *http.Request) {
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

	removed, err := h.Ledger.RetractVote(r.Context(), c.ID, voterIdentity(r))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"removed": removed,
	})
}

// voterIdentity derives the one-vote-per-voter key from the caller's
// network address. RemoteAddr is already rewritten by the RealIP middleware
// when a proxy header is present.
func voterIdentity(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
