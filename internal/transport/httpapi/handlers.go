package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/spf13/cast"

	"github.com/socassist/risk-engine/internal/audit"
	"github.com/socassist/risk-engine/internal/config"
	"github.com/socassist/risk-engine/internal/ledger"
	"github.com/socassist/risk-engine/internal/scoring"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

type handlers struct {
	Deps
}

// #region requests
type evaluateRequest struct {
	Answers map[string]string `json:"answers"`
	Record  bool              `json:"record"`
	Title   string            `json:"title"`
}

type resolutionRequest struct {
	Resolution string `json:"resolution"`
	Analyst    string `json:"analyst"`
	Notes      string `json:"notes"`
}

type calibrateRequest struct {
	Force bool `json:"force"`
}

type questionWeightRequest struct {
	Weight    *float64 `json:"weight"`
	ChangedBy string   `json:"changed_by"`
}

type moduleWeightsRequest struct {
	Weights   map[string]float64 `json:"weights"`
	ChangedBy string             `json:"changed_by"`
}

type thresholdsRequest struct {
	Thresholds map[string]config.Bounds `json:"thresholds"`
	ChangedBy  string                   `json:"changed_by"`
}

type rollbackRequest struct {
	VersionID string `json:"version_id"`
	ChangedBy string `json:"changed_by"`
}
// #endregion requests

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"status":         "ok",
		"config_version": h.Engine.Snapshot().Version(),
	})
}

// #region evaluation
func (h *handlers) evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Answers == nil {
		fail(w, r, http.StatusBadRequest, "answers is required", nil)
		return
	}

	res := h.Engine.Evaluate(req.Answers)
	if !req.Record {
		ok(w, r, "evaluated", res)
		return
	}
	h.record(w, r, req.Title, req.Answers, res)
}

func (h *handlers) recordIncident(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Answers == nil {
		fail(w, r, http.StatusBadRequest, "answers is required", nil)
		return
	}
	h.record(w, r, req.Title, req.Answers, h.Engine.Evaluate(req.Answers))
}

func (h *handlers) record(w http.ResponseWriter, r *http.Request, title string, answers map[string]string, res scoring.Result) {
	inc, err := h.Incidents.Record(r.Context(), title, answers, res)
	if err != nil {
		fail(w, r, statusFor(err), "record incident failed", err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, APIResponse{Msg: "incident recorded", Data: map[string]any{
		"incident_id": inc.ID,
		"result":      res,
	}})
}

func (h *handlers) questions(w http.ResponseWriter, r *http.Request) {
	snap := h.Engine.Snapshot()
	ok(w, r, "questions", map[string]any{
		"config_version": snap.Version(),
		"modules":        snap.Modules(),
		"questions":      snap.QuestionsByModule(),
		"preview":        scoring.Preview(snap),
	})
}
// #endregion evaluation

// #region incidents
func (h *handlers) listIncidents(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "invalid limit", err)
		return
	}
	incs, err := h.Incidents.List(r.Context(), limit)
	if err != nil {
		fail(w, r, statusFor(err), "list incidents failed", err)
		return
	}
	ok(w, r, "incidents", incs)
}

func (h *handlers) getIncident(w http.ResponseWriter, r *http.Request) {
	id, err := cast.ToInt64E(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "invalid incident id", err)
		return
	}
	inc, err := h.Incidents.Get(r.Context(), id)
	if err != nil {
		fail(w, r, statusFor(err), "get incident failed", err)
		return
	}
	ok(w, r, "incident", inc)
}

func (h *handlers) resolveIncident(w http.ResponseWriter, r *http.Request) {
	id, err := cast.ToInt64E(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "invalid incident id", err)
		return
	}
	var req resolutionRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	res := ledger.Resolution(req.Resolution)
	if err := h.Incidents.Resolve(r.Context(), id, res, req.Analyst, req.Notes); err != nil {
		fail(w, r, statusFor(err), "resolve incident failed", err)
		return
	}
	inc, err := h.Incidents.Get(r.Context(), id)
	if err != nil {
		fail(w, r, statusFor(err), "get incident failed", err)
		return
	}
	ok(w, r, "incident resolved", inc)
}
// #endregion incidents

// #region calibration
func (h *handlers) calibrate(w http.ResponseWriter, r *http.Request) {
	var req calibrateRequest
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			fail(w, r, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}
	run := h.Calibrator.Run
	if req.Force {
		run = h.Calibrator.Rerun
	}
	summary, err := run(r.Context())
	if err != nil {
		fail(w, r, statusFor(err), "calibration failed", err)
		return
	}
	ok(w, r, "calibration "+string(summary.Status), summary)
}

func (h *handlers) listCalibrations(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "invalid limit", err)
		return
	}
	runs, err := audit.ListCalibrationRuns(r.Context(), h.Audit, limit)
	if err != nil {
		fail(w, r, http.StatusInternalServerError, "list calibration runs failed", err)
		return
	}
	ok(w, r, "calibration runs", runs)
}

func (h *handlers) weightHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "invalid limit", err)
		return
	}
	rows, err := audit.ListWeightHistory(r.Context(), h.Audit, r.URL.Query().Get("target"), limit)
	if err != nil {
		fail(w, r, http.StatusInternalServerError, "list weight history failed", err)
		return
	}
	ok(w, r, "weight history", rows)
}
// #endregion calibration

// #region config
func (h *handlers) getConfig(w http.ResponseWriter, r *http.Request) {
	snap := h.Engine.Snapshot()
	ok(w, r, "active configuration", map[string]any{
		"version": snap.Version(),
		"engine":  snap.Engine(),
		"catalog": snap.Catalog(),
	})
}

func (h *handlers) listVersions(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "invalid limit", err)
		return
	}
	versions, err := h.Versions.ListVersions(r.Context(), limit)
	if err != nil {
		fail(w, r, http.StatusInternalServerError, "list versions failed", err)
		return
	}
	type versionView struct {
		ID       string `json:"version_id"`
		ParentID string `json:"parent_id,omitempty"`
		Reason   string `json:"reason,omitempty"`
		Source   string `json:"source"`
		Created  string `json:"created_at"`
	}
	out := make([]versionView, 0, len(versions))
	for _, v := range versions {
		out = append(out, versionView{
			ID: v.ID, ParentID: v.ParentID, Reason: v.Reason, Source: v.Source,
			Created: v.CreatedAt.Format(time.RFC3339),
		})
	}
	ok(w, r, "versions", out)
}

func (h *handlers) setQuestionWeight(w http.ResponseWriter, r *http.Request) {
	var req questionWeightRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Weight == nil {
		fail(w, r, http.StatusBadRequest, "weight is required", nil)
		return
	}
	out, err := h.Editor.SetQuestionWeight(r.Context(), chi.URLParam(r, "id"), *req.Weight, req.ChangedBy)
	h.edited(w, r, out, err)
}

func (h *handlers) setModuleWeights(w http.ResponseWriter, r *http.Request) {
	var req moduleWeightsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(req.Weights) == 0 {
		fail(w, r, http.StatusBadRequest, "weights is required", nil)
		return
	}
	out, err := h.Editor.SetModuleWeights(r.Context(), req.Weights, req.ChangedBy)
	h.edited(w, r, out, err)
}

func (h *handlers) setThresholds(w http.ResponseWriter, r *http.Request) {
	var req thresholdsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(req.Thresholds) == 0 {
		fail(w, r, http.StatusBadRequest, "thresholds is required", nil)
		return
	}
	out, err := h.Editor.SetThresholds(r.Context(), req.Thresholds, req.ChangedBy)
	h.edited(w, r, out, err)
}

func (h *handlers) rollback(w http.ResponseWriter, r *http.Request) {
	var req rollbackRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.VersionID == "" {
		fail(w, r, http.StatusBadRequest, "version_id is required", nil)
		return
	}
	out, err := h.Editor.Rollback(r.Context(), req.VersionID, req.ChangedBy)
	h.edited(w, r, out, err)
}

func (h *handlers) edited(w http.ResponseWriter, r *http.Request, out any, err error) {
	if err != nil {
		code := statusFor(err)
		render.Status(r, code)
		render.JSON(w, r, APIResponse{Status: code, Msg: "edit rejected: " + err.Error(), Data: out})
		return
	}
	ok(w, r, "configuration updated", out)
}
// #endregion config

func limitParam(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, err
	}
	if n < 1 || n > maxLimit {
		return 0, errors.New("limit must be between 1 and 1000")
	}
	return n, nil
}
