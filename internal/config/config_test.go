package config_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socassist/risk-engine/internal/config"
	"github.com/socassist/risk-engine/internal/testutil"
)

const engineDoc = `{
  // weights per module
  "module_weights": {"network": 1.2, "identity": 0.9},
  "thresholds": {
    "low":  {"min": 0,     "max": 20,  "label": "Low"},
    "mid":  {"min": 20.01, "max": 50},  // label defaults to key
    "high": {"min": 50.01, "max": 999, "label": "High", "color": "#ff0000"}
  },
  "multipliers": [
    {"id": "m1", "conditions": [{"question_id": "Q1", "value": "yes"}], "multiplier": 1.5}
  ],
  "hard_rules": [
    {"id": "h1", "conditions": [{"question_id": "Q2", "value": "no"}], "classification": "high",
     "override_message": "see https://runbook.example/h1"}
  ],
  "recommendations": {"low": "Close.", "mid": "Watch.", "high": "Escalate."}
}`

const catalogDoc = `{
  "modules": [{"id": "network", "label": "Network", "order": 2}, {"id": "identity", "order": 1}],
  "questions": [
    {"id": "Q1", "module": "network", "text": "Outbound to \"//bad\" host?", "weight": 1.1, "order": 2,
     "options": [{"value": "yes", "label": "Yes", "score": 10}, {"value": "no", "score": 0}]},
    {"id": "Q2", "module": "identity", "text": "Owner confirmed?", "order": 1,
     "options": [{"value": "yes", "score": 0}, {"value": "no", "score": 5}]}
  ]
}`

func TestParseCatalog_CommentsAndTrailingCommas(t *testing.T) {
	in := `{
  /* modules
     block comment */
  "modules": [{"id": "network", "label": "http://x//y"},], // trailing
  // full line
  "questions": [
    {"id": "Q1", "module": "network", "text": "a\"//b /* not a comment */",
     "options": [{"value": "yes", "score": 1,},]},
  ],
}`
	cat, err := config.ParseCatalog([]byte(in))
	require.NoError(t, err)

	require.Len(t, cat.Modules, 1)
	assert.Equal(t, "http://x//y", cat.Modules[0].Label)
	require.Len(t, cat.Questions, 1)
	assert.Equal(t, `a"//b /* not a comment */`, cat.Questions[0].Text)
	assert.Equal(t, 1.0, cat.Questions[0].Options[0].Score)
}

func TestParseEngine_UnterminatedBlockComment(t *testing.T) {
	_, err := config.ParseEngine([]byte(`{"module_weights": {} /* never closed`))
	require.Error(t, err)
}

func TestParseEngine(t *testing.T) {
	doc, err := config.ParseEngine([]byte(engineDoc))
	require.NoError(t, err)

	assert.Equal(t, 1.2, doc.ModuleWeights["network"])
	require.Len(t, doc.Thresholds, 3)
	assert.Equal(t, []string{"low", "mid", "high"},
		[]string{doc.Thresholds[0].Key, doc.Thresholds[1].Key, doc.Thresholds[2].Key})
	assert.Equal(t, "mid", doc.Thresholds[1].Label)
	assert.Equal(t, "#ff0000", doc.Thresholds[2].Color)
	require.Len(t, doc.Multipliers, 1)
	assert.Equal(t, 1.5, doc.Multipliers[0].Multiplier)
	require.Len(t, doc.HardRules, 1)
	assert.Equal(t, "see https://runbook.example/h1", doc.HardRules[0].OverrideMessage)
}

func TestParseEngine_ThresholdOrderFollowsDocument(t *testing.T) {
	doc, err := config.ParseEngine([]byte(`{
		"module_weights": {},
		"thresholds": {"z": {"min": 0, "max": 1}, "a": {"min": 1.01, "max": 2}, "m": {"min": 2.01, "max": 3}},
		"recommendations": {}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "z", doc.Thresholds[0].Key)
	assert.Equal(t, "a", doc.Thresholds[1].Key)
	assert.Equal(t, "m", doc.Thresholds[2].Key)

	out, err := json.Marshal(doc.Thresholds)
	require.NoError(t, err)
	var again config.Thresholds
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, doc.Thresholds, again)
}

func TestParseEngine_MissingFields(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"module_weights", `{"thresholds": {"a": {"min": 0, "max": 1}}, "recommendations": {}}`},
		{"thresholds", `{"module_weights": {}, "recommendations": {}}`},
		{"recommendations", `{"module_weights": {}, "thresholds": {"a": {"min": 0, "max": 1}}}`},
		{"tier max", `{"module_weights": {}, "thresholds": {"a": {"min": 0}}, "recommendations": {}}`},
		{"multiplier factor", `{"module_weights": {}, "thresholds": {"a": {"min": 0, "max": 1}}, "recommendations": {},
			"multipliers": [{"id": "m", "conditions": []}]}`},
		{"hard rule classification", `{"module_weights": {}, "thresholds": {"a": {"min": 0, "max": 1}}, "recommendations": {},
			"hard_rules": [{"id": "h", "conditions": [{"question_id": "Q1", "value": "yes"}]}]}`},
		{"condition value", `{"module_weights": {}, "thresholds": {"a": {"min": 0, "max": 1}}, "recommendations": {},
			"hard_rules": [{"id": "h", "classification": "a", "conditions": [{"question_id": "Q1"}]}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.ParseEngine([]byte(tc.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, config.ErrMissingField), "got %v", err)
		})
	}
}

func TestParseEngine_DuplicateTier(t *testing.T) {
	_, err := config.ParseEngine([]byte(`{"module_weights": {}, "recommendations": {},
		"thresholds": {"a": {"min": 0, "max": 1}, "a": {"min": 2, "max": 3}}}`))
	assert.Error(t, err)
}

func TestParseCatalog_Defaults(t *testing.T) {
	cat, err := config.ParseCatalog([]byte(catalogDoc))
	require.NoError(t, err)

	require.Len(t, cat.Questions, 2)
	assert.Equal(t, `Outbound to "//bad" host?`, cat.Questions[0].Text)
	assert.Equal(t, 1.1, cat.Questions[0].Weight)
	assert.Equal(t, 1.0, cat.Questions[1].Weight)
	assert.Equal(t, "no", cat.Questions[0].Options[1].Label)
	assert.Equal(t, "identity", cat.Modules[1].Label)
}

func TestParseCatalog_MissingScore(t *testing.T) {
	_, err := config.ParseCatalog([]byte(`{"modules": [{"id": "m"}],
		"questions": [{"id": "Q", "module": "m", "text": "t", "options": [{"value": "yes"}]}]}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissingField)
	assert.Contains(t, err.Error(), "questions[0].options[0].score")
}

func TestNewSnapshot_Validation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.EngineDoc, *config.Catalog)
		want   error
	}{
		{"no tiers", func(e *config.EngineDoc, _ *config.Catalog) { e.Thresholds = nil }, config.ErrInvalidConfig},
		{"inverted tier", func(e *config.EngineDoc, _ *config.Catalog) { e.Thresholds[0].Min = 50 }, config.ErrInvalidConfig},
		{"duplicate question", func(_ *config.EngineDoc, c *config.Catalog) {
			c.Questions = append(c.Questions, c.Questions[0])
		}, config.ErrInvalidConfig},
		{"duplicate option", func(_ *config.EngineDoc, c *config.Catalog) {
			c.Questions[0].Options = append(c.Questions[0].Options, c.Questions[0].Options[0])
		}, config.ErrInvalidConfig},
		{"unknown module", func(_ *config.EngineDoc, c *config.Catalog) { c.Questions[0].Module = "cloud" }, config.ErrUnknownModule},
		{"hard rule tier", func(e *config.EngineDoc, _ *config.Catalog) {
			e.HardRules = []config.HardRule{{ID: "h", Conditions: []config.Condition{testutil.Cond("Q1", "yes")}, Classification: "nope"}}
		}, config.ErrUnknownTier},
		{"empty hard rule", func(e *config.EngineDoc, _ *config.Catalog) {
			e.HardRules = []config.HardRule{{ID: "h", Classification: testutil.TierBreach}}
		}, config.ErrInvalidConfig},
		{"zero multiplier", func(e *config.EngineDoc, _ *config.Catalog) {
			e.Multipliers = []config.MultiplierRule{{ID: "m", Conditions: []config.Condition{testutil.Cond("Q1", "yes")}}}
		}, config.ErrInvalidConfig},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eng, cat := testutil.EngineDoc(), testutil.Catalog()
			tc.mutate(&eng, &cat)
			_, err := config.NewSnapshot(eng, cat)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSnapshot_DerivedCopiesLeaveOriginalIntact(t *testing.T) {
	base := testutil.Snapshot(t).WithVersion("v1")

	qs, err := base.WithQuestionWeights(map[string]float64{"Q1": 2.5})
	require.NoError(t, err)
	ms, err := base.WithModuleWeights(map[string]float64{"network": 0.5})
	require.NoError(t, err)
	ts, err := base.WithThresholds(map[string]config.Bounds{testutil.TierInformational: {Min: -10, Max: 10}})
	require.NoError(t, err)

	q, _ := qs.Question("Q1")
	assert.Equal(t, 2.5, q.Weight)
	assert.Equal(t, 0.5, ms.ModuleWeight("network"))
	tier, _ := ts.Tier(testutil.TierInformational)
	assert.Equal(t, -10.0, tier.Min)
	assert.Empty(t, qs.Version(), "derived snapshots are unversioned")

	q, _ = base.Question("Q1")
	assert.Equal(t, 1.0, q.Weight)
	assert.Equal(t, 1.0, base.ModuleWeight("network"))
	tier, _ = base.Tier(testutil.TierInformational)
	assert.Equal(t, 0.0, tier.Min)
	assert.Equal(t, "v1", base.Version())

	_, err = base.WithQuestionWeights(map[string]float64{"Q404": 1})
	assert.ErrorIs(t, err, config.ErrUnknownQuestion)
	_, err = base.WithModuleWeights(map[string]float64{"cloud": 1})
	assert.ErrorIs(t, err, config.ErrUnknownModule)
	_, err = base.WithThresholds(map[string]config.Bounds{"nope": {}})
	assert.ErrorIs(t, err, config.ErrUnknownTier)
}

func TestSnapshot_AccessorsReturnCopies(t *testing.T) {
	snap := testutil.Snapshot(t)

	eng := snap.Engine()
	eng.ModuleWeights["network"] = 9
	cat := snap.Catalog()
	cat.Questions[0].Options[0].Score = 99

	assert.Equal(t, 1.0, snap.ModuleWeight("network"))
	q, _ := snap.Question("Q1")
	assert.Equal(t, 10.0, q.Options[0].Score)
}

func TestSnapshot_CatalogHelpers(t *testing.T) {
	snap := testutil.Snapshot(t, func(_ *config.EngineDoc, c *config.Catalog) {
		c.Modules[0].Order = 9
		c.Questions = append(c.Questions, config.Question{
			ID: "Q0", Module: "network", Text: "first", Weight: 1, Order: 0,
			Options: []config.Option{{Value: "yes", Label: "Yes", Score: 1}},
		})
	})

	mods := snap.Modules()
	assert.Equal(t, "identity", mods[0].ID)
	assert.Equal(t, "network", mods[2].ID)

	byMod := snap.QuestionsByModule()
	require.Len(t, byMod["network"], 2)
	assert.Equal(t, "Q0", byMod["network"][0].ID)

	sev, ok := snap.Severity(testutil.TierCritical)
	require.True(t, ok)
	assert.Equal(t, 3, sev)
	assert.Equal(t, testutil.TierBreach, snap.MostSevere().Key)
}

func TestLoadAndWriteFiles(t *testing.T) {
	dir := t.TempDir()
	enginePath := filepath.Join(dir, "engine.jsonc")
	catalogPath := filepath.Join(dir, "questions.jsonc")
	require.NoError(t, os.WriteFile(enginePath, []byte(engineDoc), 0o644))
	require.NoError(t, os.WriteFile(catalogPath, []byte(catalogDoc), 0o644))

	snap, err := config.LoadFiles(enginePath, catalogPath)
	require.NoError(t, err)

	outEngine := filepath.Join(dir, "out-engine.json")
	outCatalog := filepath.Join(dir, "out-questions.json")
	require.NoError(t, config.WriteFiles(snap, outEngine, outCatalog))

	again, err := config.LoadFiles(outEngine, outCatalog)
	require.NoError(t, err)
	assert.Equal(t, snap.Engine(), again.Engine())
	assert.Equal(t, snap.Catalog(), again.Catalog())
}

func TestLoadFiles_ShippedConfig(t *testing.T) {
	snap, err := config.LoadFiles("../../config/engine.jsonc", "../../config/questions.jsonc")
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Questions())
	assert.GreaterOrEqual(t, len(snap.Tiers()), 2)
}

func TestLoadFiles_MissingFile(t *testing.T) {
	_, err := config.LoadFiles(filepath.Join(t.TempDir(), "nope.jsonc"), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
