package grpcapi

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/socassist/risk-engine/internal/calibration"
	"github.com/socassist/risk-engine/internal/config"
	"github.com/socassist/risk-engine/internal/scoring"
)

// #region client-struct
// Client is a typed wrapper over the RiskEngine gRPC service.
type Client struct {
	conn   *grpc.ClientConn
	client RiskEngineClient
}
// #endregion client-struct

// #region constructor
// NewClient connects to a RiskEngine server.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, client: NewRiskEngineClient(conn)}, nil
}

// NewClientWithService creates a Client over an injected stub.
func NewClientWithService(svc RiskEngineClient) *Client {
	return &Client{client: svc}
}
// #endregion constructor

// Close shuts down the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #region evaluate
// Evaluate scores answers without recording an incident.
func (c *Client) Evaluate(ctx context.Context, answers map[string]string) (scoring.Result, error) {
	res, _, err := c.evaluate(ctx, answers, false, "")
	return res, err
}

// EvaluateAndRecord scores answers and records the incident.
func (c *Client) EvaluateAndRecord(ctx context.Context, title string, answers map[string]string) (scoring.Result, int64, error) {
	return c.evaluate(ctx, answers, true, title)
}

func (c *Client) evaluate(ctx context.Context, answers map[string]string, record bool, title string) (scoring.Result, int64, error) {
	a := make(map[string]any, len(answers))
	for k, v := range answers {
		a[k] = v
	}
	req, err := structpb.NewStruct(map[string]any{"answers": a, "record": record, "title": title})
	if err != nil {
		return scoring.Result{}, 0, fmt.Errorf("build evaluate request: %w", err)
	}
	resp, err := c.client.Evaluate(ctx, req)
	if err != nil {
		return scoring.Result{}, 0, fmt.Errorf("evaluate rpc: %w", err)
	}
	var out struct {
		Result     scoring.Result `json:"result"`
		IncidentID int64          `json:"incident_id"`
	}
	if err := fromStruct(resp, &out); err != nil {
		return scoring.Result{}, 0, fmt.Errorf("evaluate rpc: %w", err)
	}
	return out.Result, out.IncidentID, nil
}
// #endregion evaluate

// #region calibrate
// Calibrate triggers a run; force reruns on an unchanged ledger.
func (c *Client) Calibrate(ctx context.Context, force bool) (calibration.Summary, error) {
	req, _ := structpb.NewStruct(map[string]any{"force": force})
	resp, err := c.client.Calibrate(ctx, req)
	if err != nil {
		return calibration.Summary{}, fmt.Errorf("calibrate rpc: %w", err)
	}
	var s calibration.Summary
	if err := fromStruct(resp, &s); err != nil {
		return calibration.Summary{}, fmt.Errorf("calibrate rpc: %w", err)
	}
	return s, nil
}
// #endregion calibrate

// #region get-config
// GetConfig fetches the server's active configuration.
func (c *Client) GetConfig(ctx context.Context) (*config.Snapshot, error) {
	resp, err := c.client.GetConfig(ctx, &structpb.Struct{})
	if err != nil {
		return nil, fmt.Errorf("get config rpc: %w", err)
	}
	f := resp.GetFields()
	var eng config.EngineDoc
	if err := json.Unmarshal([]byte(f["engine_json"].GetStringValue()), &eng); err != nil {
		return nil, fmt.Errorf("decode engine config: %w", err)
	}
	var cat config.Catalog
	if err := json.Unmarshal([]byte(f["catalog_json"].GetStringValue()), &cat); err != nil {
		return nil, fmt.Errorf("decode question catalog: %w", err)
	}
	snap, err := config.NewSnapshot(eng, cat)
	if err != nil {
		return nil, err
	}
	return snap.WithVersion(f["version"].GetStringValue()), nil
}
// #endregion get-config
