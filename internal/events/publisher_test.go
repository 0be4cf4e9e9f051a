package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socassist/risk-engine/internal/calibration"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func completed() calibration.Summary {
	return calibration.Summary{
		Status:         calibration.StatusCompleted,
		TotalResolved:  6,
		TruePositives:  5,
		FalsePositives: 1,
		FPRate:         16.7,
		Adjustments:    1,
		RunID:          "run-1",
		ConfigVersion:  "v2",
		Timestamp:      time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC),
	}
}

func TestPublishCalibration(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "risk.calibration.v1", nil)

	require.NoError(t, p.PublishCalibration(context.Background(), completed()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "run-1", string(msg.Key))
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, EventCalibrationCompleted, headers["event-type"])
	assert.Equal(t, "v2", headers["config-version"])

	var got calibration.Summary
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, 16.7, got.FPRate)
	assert.Equal(t, 0, got.FalseNegatives)
}

func TestPublishCalibration_SkippedNotSent(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "t", nil)

	require.NoError(t, p.PublishCalibration(context.Background(), calibration.Summary{Status: calibration.StatusSkipped}))
	assert.Empty(t, w.msgs)
}

func TestPublishCalibration_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	p := newKafkaPublisher(w, "risk.calibration.v1", nil)

	err := p.PublishCalibration(context.Background(), completed())
	assert.ErrorContains(t, err, "kafka publish to risk.calibration.v1")
}

func TestNewKafkaPublisher(t *testing.T) {
	p := NewKafkaPublisher(Config{Brokers: []string{"kafka:9092"}, Topic: "risk"}, nil)
	w, ok := p.writer.(*kafkago.Writer)
	require.True(t, ok)
	assert.Equal(t, "risk", w.Topic)
	assert.Equal(t, kafkago.RequireAll, w.RequiredAcks)
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newKafkaPublisher(w, "t", nil).Close())
	assert.True(t, w.closed)
}

func TestNop(t *testing.T) {
	var n Nop
	assert.NoError(t, n.PublishCalibration(context.Background(), completed()))
	assert.NoError(t, n.Close())
}
