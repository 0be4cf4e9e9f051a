// Package httpapi exposes evaluation, incident resolution, calibration and
// configuration administration over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/socassist/risk-engine/internal/admin"
	"github.com/socassist/risk-engine/internal/audit"
	"github.com/socassist/risk-engine/internal/calibration"
	"github.com/socassist/risk-engine/internal/config"
	"github.com/socassist/risk-engine/internal/ledger"
	"github.com/socassist/risk-engine/internal/scoring"
	"github.com/socassist/risk-engine/internal/store"
)

// #region deps
// Evaluator scores answers against the live configuration.
type Evaluator interface {
	Evaluate(answers map[string]string) scoring.Result
	Snapshot() *config.Snapshot
}

// Incidents is the incident ledger.
type Incidents interface {
	Record(ctx context.Context, title string, answers map[string]string, res scoring.Result) (ledger.Incident, error)
	Resolve(ctx context.Context, id int64, resolution ledger.Resolution, analyst, notes string) error
	Get(ctx context.Context, id int64) (ledger.Incident, error)
	List(ctx context.Context, limit int) ([]ledger.Incident, error)
}

// Calibrator runs calibration.
type Calibrator interface {
	Run(ctx context.Context) (calibration.Summary, error)
	Rerun(ctx context.Context) (calibration.Summary, error)
}

// Editor applies operator edits.
type Editor interface {
	SetQuestionWeight(ctx context.Context, questionID string, weight float64, changedBy string) (admin.Outcome, error)
	SetModuleWeights(ctx context.Context, weights map[string]float64, changedBy string) (admin.Outcome, error)
	SetThresholds(ctx context.Context, bounds map[string]config.Bounds, changedBy string) (admin.Outcome, error)
	Rollback(ctx context.Context, versionID, changedBy string) (admin.Outcome, error)
}

// Versions lists stored configuration versions.
type Versions interface {
	ListVersions(ctx context.Context, limit int) ([]store.Version, error)
}

// Deps are the components the API serves.
type Deps struct {
	Engine     Evaluator
	Incidents  Incidents
	Calibrator Calibrator
	Editor     Editor
	Versions   Versions
	Audit      audit.Queryer
	Metrics    http.Handler
	Logger     *slog.Logger
}
// #endregion deps

// NewRouter builds the HTTP API.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	h := &handlers{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(d.Logger))

	r.Get("/healthz", h.health)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Post("/evaluate", h.evaluate)
		r.Get("/questions", h.questions)

		r.Route("/incidents", func(r chi.Router) {
			r.Get("/", h.listIncidents)
			r.Post("/", h.recordIncident)
			r.Get("/{id}", h.getIncident)
			r.Put("/{id}/resolution", h.resolveIncident)
		})

		r.Route("/calibrations", func(r chi.Router) {
			r.Get("/", h.listCalibrations)
			r.Post("/", h.calibrate)
		})
		r.Get("/weight-history", h.weightHistory)

		r.Get("/config", h.getConfig)
		r.Get("/config/versions", h.listVersions)
		r.Post("/config/rollback", h.rollback)
		r.Put("/questions/{id}/weight", h.setQuestionWeight)
		r.Put("/modules/weights", h.setModuleWeights)
		r.Put("/thresholds", h.setThresholds)
	})

	return r
}
