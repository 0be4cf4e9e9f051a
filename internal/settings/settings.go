// Package settings reads process settings from the environment.
package settings

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cast"

	"github.com/socassist/risk-engine/internal/calibration"
)

// Settings are the process-level knobs. Rule tables live in the
// configuration store, not here.
type Settings struct {
	DBPath          string
	EngineConfig    string
	QuestionsConfig string

	GRPCAddr string
	HTTPAddr string

	// CalibrationCron is a six-field (with seconds) cron spec. Empty
	// disables scheduled runs.
	CalibrationCron string
	Calibration     calibration.Config

	LogLevel  string
	LogFormat string

	KafkaBrokers []string
	KafkaTopic   string
}

// FromEnv reads RISK_* variables, falling back to defaults for unset ones.
func FromEnv() (Settings, error) {
	s := Settings{
		DBPath:          envOr("RISK_DB", "risk_engine.db"),
		EngineConfig:    envOr("RISK_ENGINE_CONFIG", "config/engine.jsonc"),
		QuestionsConfig: envOr("RISK_QUESTIONS", "config/questions.jsonc"),
		GRPCAddr:        envOr("RISK_GRPC_ADDR", ":50061"),
		HTTPAddr:        envOr("RISK_HTTP_ADDR", ":8080"),
		CalibrationCron: envOr("RISK_CALIBRATION_CRON", "0 0 2 * * *"),
		LogLevel:        envOr("RISK_LOG_LEVEL", "info"),
		LogFormat:       envOr("RISK_LOG_FORMAT", "json"),
		KafkaBrokers:    splitList(os.Getenv("RISK_KAFKA_BROKERS")),
		KafkaTopic:      envOr("RISK_KAFKA_TOPIC", "risk.calibration.v1"),
		Calibration:     calibration.DefaultConfig(),
	}
	if v, ok := os.LookupEnv("RISK_CALIBRATION_CRON"); ok && v == "" {
		s.CalibrationCron = ""
	}

	if v := os.Getenv("RISK_MIN_SAMPLES"); v != "" {
		n, err := cast.ToIntE(v)
		if err != nil || n < 1 {
			return Settings{}, fmt.Errorf("RISK_MIN_SAMPLES: invalid value %q", v)
		}
		s.Calibration.MinSamples = n
	}
	if v := os.Getenv("RISK_LEARNING_RATE"); v != "" {
		lr, err := cast.ToFloat64E(v)
		if err != nil || lr <= 0 {
			return Settings{}, fmt.Errorf("RISK_LEARNING_RATE: invalid value %q", v)
		}
		s.Calibration.LearningRate = lr
	}
	return s, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
