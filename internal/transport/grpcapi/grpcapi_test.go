package grpcapi_test

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	_ "modernc.org/sqlite"

	"github.com/socassist/risk-engine/internal/calibration"
	"github.com/socassist/risk-engine/internal/ledger"
	"github.com/socassist/risk-engine/internal/scoring"
	"github.com/socassist/risk-engine/internal/testutil"
	"github.com/socassist/risk-engine/internal/transport/grpcapi"
)

type fakeCalibrator struct {
	runs, reruns int
	err          error
}

func (f *fakeCalibrator) Run(context.Context) (calibration.Summary, error) {
	f.runs++
	return calibration.Summary{Status: calibration.StatusSkipped, Reason: "at least 5 resolved incidents required (have 0)"}, f.err
}

func (f *fakeCalibrator) Rerun(context.Context) (calibration.Summary, error) {
	f.reruns++
	return calibration.Summary{Status: calibration.StatusCompleted, FPRate: 16.7, Adjustments: 1, RunID: "r1"}, f.err
}

type harness struct {
	client *grpcapi.Client
	conn   *grpc.ClientConn
	ledger *ledger.Store
	cal    *fakeCalibrator
}

func start(t *testing.T) harness {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	led, err := ledger.NewStore(db)
	require.NoError(t, err)

	eng := scoring.NewEngine(testutil.Snapshot(t).WithVersion("v1"), nil, nil)
	cal := &fakeCalibrator{}
	srv := grpcapi.NewServer(grpcapi.NewHandler(eng, led, cal, nil), "bufnet", nil)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return harness{
		client: grpcapi.NewClientWithService(grpcapi.NewRiskEngineClient(conn)),
		conn:   conn,
		ledger: led,
		cal:    cal,
	}
}

func TestEvaluate(t *testing.T) {
	h := start(t)

	res, err := h.client.Evaluate(context.Background(), map[string]string{"Q1": "yes", "Q2": "no"})
	require.NoError(t, err)

	assert.Equal(t, 15.0, res.FinalScore)
	assert.Equal(t, testutil.TierSuspicious, res.Classification)
	assert.Equal(t, "v1", res.ConfigVersion)
	require.Len(t, res.Answers, 2)
	assert.Equal(t, "Q1", res.Answers[0].QuestionID)

	incs, err := h.ledger.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, incs)
}

func TestEvaluateAndRecord(t *testing.T) {
	h := start(t)
	ctx := context.Background()

	res, id, err := h.client.EvaluateAndRecord(ctx, "phishing follow-up", map[string]string{"Q3": "no"})
	require.NoError(t, err)
	assert.Equal(t, 6.0, res.FinalScore)
	require.NotZero(t, id)

	inc, err := h.ledger.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "phishing follow-up", inc.Title)
	assert.Equal(t, 6.0, inc.FinalScore)
	assert.Equal(t, "v1", inc.ConfigVersion)
}

func TestEvaluate_InvalidArgument(t *testing.T) {
	h := start(t)
	raw := grpcapi.NewRiskEngineClient(h.conn)

	for name, req := range map[string]map[string]any{
		"missing answers":   {},
		"answers not map":   {"answers": "Q1=yes"},
		"non-string answer": {"answers": map[string]any{"Q1": true}},
	} {
		t.Run(name, func(t *testing.T) {
			in, err := structpb.NewStruct(req)
			require.NoError(t, err)
			_, err = raw.Evaluate(context.Background(), in)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestCalibrate(t *testing.T) {
	h := start(t)
	ctx := context.Background()

	s, err := h.client.Calibrate(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, calibration.StatusSkipped, s.Status)

	s, err = h.client.Calibrate(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, calibration.StatusCompleted, s.Status)
	assert.Equal(t, 16.7, s.FPRate)
	assert.Equal(t, "r1", s.RunID)

	assert.Equal(t, 1, h.cal.runs)
	assert.Equal(t, 1, h.cal.reruns)
}

func TestCalibrate_ErrorCodes(t *testing.T) {
	h := start(t)
	raw := grpcapi.NewRiskEngineClient(h.conn)
	in, _ := structpb.NewStruct(nil)

	h.cal.err = calibration.ErrRunInProgress
	_, err := raw.Calibrate(context.Background(), in)
	assert.Equal(t, codes.Aborted, status.Code(err))

	h.cal.err = errors.New("disk full")
	_, err = raw.Calibrate(context.Background(), in)
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestGetConfig(t *testing.T) {
	h := start(t)

	snap, err := h.client.GetConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "v1", snap.Version())
	tiers := snap.Tiers()
	require.Len(t, tiers, 5)
	assert.Equal(t, testutil.TierInformational, tiers[0].Key)
	assert.Equal(t, testutil.TierBreach, tiers[4].Key)
	q, ok := snap.Question("Q3")
	require.True(t, ok)
	assert.Len(t, q.Options, 3)
}

func TestHealth(t *testing.T) {
	h := start(t)

	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: grpcapi.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestUnimplemented(t *testing.T) {
	var u grpcapi.UnimplementedRiskEngineServer
	_, err := u.Evaluate(context.Background(), nil)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}
