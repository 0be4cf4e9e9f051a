package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/socassist/risk-engine/internal/admin"
	"github.com/socassist/risk-engine/internal/calibration"
	"github.com/socassist/risk-engine/internal/config"
	"github.com/socassist/risk-engine/internal/ledger"
	"github.com/socassist/risk-engine/internal/store"
)

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
	Data   any    `json:"data,omitempty"`
}

func ok(w http.ResponseWriter, r *http.Request, msg string, data any) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, APIResponse{Status: 0, Msg: msg, Data: data})
}

func fail(w http.ResponseWriter, r *http.Request, code int, msg string, err error) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	render.Status(r, code)
	render.JSON(w, r, APIResponse{Status: code, Msg: msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, store.ErrVersionNotFound),
		errors.Is(err, config.ErrUnknownQuestion),
		errors.Is(err, config.ErrUnknownModule),
		errors.Is(err, config.ErrUnknownTier):
		return http.StatusNotFound
	case errors.Is(err, admin.ErrRejected),
		errors.Is(err, ledger.ErrInvalidResolution),
		errors.Is(err, config.ErrInvalidConfig):
		return http.StatusUnprocessableEntity
	case errors.Is(err, calibration.ErrRunInProgress),
		errors.Is(err, store.ErrStaleVersion):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
