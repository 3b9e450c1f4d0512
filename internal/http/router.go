package http

import (
	"net/http"

	"codedrop/internal/auth"
	"codedrop/internal/codes"
	"codedrop/internal/config"
	"codedrop/internal/http/handler"
	mw "codedrop/internal/http/middleware"
	"codedrop/internal/jobs"
	"codedrop/internal/votes"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

func NewRouter(cfg config.Config, db *gorm.DB, jwtSvc *auth.JWT) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ah := &handler.AuthHandler{DB: db, JWT: jwtSvc}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)

	store := &codes.Store{DB: db}
	importer := &codes.Importer{DB: db}
	ledger := &votes.Ledger{DB: db}
	jobsRepo := &jobs.Repo{DB: db}

	ch := &handler.CodeHandler{Store: store, DB: db}
	vh := &handler.VoteHandler{Store: store, Ledger: ledger}

	r.Route("/codes", func(r chi.Router) {
		r.Get("/", ch.List)
		r.Get("/{code}", ch.Get)
		r.Post("/{code}/copy", ch.Copy)
		r.Post("/{code}/vote", vh.Cast)
		r.Delete("/{code}/vote", vh.Retract)
	})

	adm := &handler.AdminHandler{
		Store:    store,
		Importer: importer,
		Ledger:   ledger,
		Jobs:     jobsRepo,
		DB:       db,
	}

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSvc))

		r.Post("/codes", adm.CreateCode)
		r.Patch("/codes/{id}/status", adm.SetStatus)
		r.Delete("/codes/{id}", adm.DeleteCode)
		r.Post("/codes/{id}/reconcile", adm.Reconcile)
		r.Post("/reconcile", adm.ReconcileAll)
		r.Post("/import", adm.Import)
	})

	return r
}
