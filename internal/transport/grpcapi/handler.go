// Package grpcapi exposes the risk engine over gRPC.
package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

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

// IncidentRecorder stores evaluated incidents.
type IncidentRecorder interface {
	Record(ctx context.Context, title string, answers map[string]string, res scoring.Result) (ledger.Incident, error)
}

// Calibrator runs calibration.
type Calibrator interface {
	Run(ctx context.Context) (calibration.Summary, error)
	Rerun(ctx context.Context) (calibration.Summary, error)
}
// #endregion deps

// Handler implements RiskEngineServer.
type Handler struct {
	UnimplementedRiskEngineServer

	engine     Evaluator
	incidents  IncidentRecorder
	calibrator Calibrator
	logger     *slog.Logger
}

// NewHandler creates a handler. incidents may be nil, in which case
// Evaluate requests asking to record are rejected.
func NewHandler(engine Evaluator, incidents IncidentRecorder, calibrator Calibrator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, incidents: incidents, calibrator: calibrator, logger: logger}
}

// #region evaluate
// Evaluate scores req.answers. With req.record set the evaluation is also
// stored as an incident titled req.title, and the response carries
// incident_id.
//
//	{"answers": {"Q1": "yes"}, "record": true, "title": "..."}
func (h *Handler) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	fields := req.GetFields()
	answersVal, ok := fields["answers"]
	if !ok || answersVal.GetStructValue() == nil {
		return nil, status.Error(codes.InvalidArgument, "answers must be an object")
	}
	answers := make(map[string]string, len(answersVal.GetStructValue().GetFields()))
	for qid, v := range answersVal.GetStructValue().GetFields() {
		s, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "answer %s must be a string", qid)
		}
		answers[qid] = s.StringValue
	}

	res := h.engine.Evaluate(answers)
	out := map[string]any{"result": res}

	if fields["record"].GetBoolValue() {
		if h.incidents == nil {
			return nil, status.Error(codes.FailedPrecondition, "incident recording is not configured")
		}
		inc, err := h.incidents.Record(ctx, fields["title"].GetStringValue(), answers, res)
		if err != nil {
			return nil, toStatus(err, "record incident")
		}
		out["incident_id"] = inc.ID
	}

	return toStruct(out)
}
// #endregion evaluate

// #region calibrate
// Calibrate runs calibration; {"force": true} reruns even when no new
// resolutions arrived.
func (h *Handler) Calibrate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	run := h.calibrator.Run
	if req.GetFields()["force"].GetBoolValue() {
		run = h.calibrator.Rerun
	}
	summary, err := run(ctx)
	if err != nil {
		return nil, toStatus(err, "calibrate")
	}
	return toStruct(summary)
}
// #endregion calibrate

// #region get-config
// GetConfig returns the active configuration. The documents are sent as
// JSON strings because tier order is significant and Struct fields are
// unordered.
func (h *Handler) GetConfig(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	snap := h.engine.Snapshot()
	engineJSON, err := json.Marshal(snap.Engine())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "marshal engine config: %v", err)
	}
	catalogJSON, err := json.Marshal(snap.Catalog())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "marshal question catalog: %v", err)
	}
	return structpb.NewStruct(map[string]any{
		"version":      snap.Version(),
		"engine_json":  string(engineJSON),
		"catalog_json": string(catalogJSON),
	})
}
// #endregion get-config

// #region helpers
func toStatus(err error, op string) error {
	switch {
	case errors.Is(err, calibration.ErrRunInProgress):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, store.ErrStaleVersion):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Errorf(codes.Internal, "%s: %v", op, err)
	}
}

// toStruct converts v to a Struct through its JSON encoding.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "marshal response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "unmarshal response: %v", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return s, nil
}

// fromStruct decodes s into v through its JSON encoding.
func fromStruct(s *structpb.Struct, v any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("marshal struct: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode struct: %w", err)
	}
	return nil
}
// #endregion helpers
