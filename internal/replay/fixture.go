package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/socassist/risk-engine/internal/config"
	"github.com/socassist/risk-engine/internal/ledger"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Overrides       FixtureOverrides        `json:"overrides"`
	Cases           []FixtureCase           `json:"cases"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureOverrides are weight changes applied to the base snapshot before
// replaying, so a fixture can describe a what-if configuration.
type FixtureOverrides struct {
	QuestionWeights map[string]float64       `json:"question_weights,omitempty"`
	ModuleWeights   map[string]float64       `json:"module_weights,omitempty"`
	Thresholds      map[string]config.Bounds `json:"thresholds,omitempty"`
}

// FixtureCase mirrors Case with JSON tags.
type FixtureCase struct {
	IncidentID     int64             `json:"incident_id"`
	Title          string            `json:"title"`
	Answers        map[string]string `json:"answers"`
	Classification string            `json:"classification"`
	FinalScore     float64           `json:"final_score"`
	Resolution     string            `json:"resolution"`
}

// FixtureExpectedResult captures the expected action per incident.
type FixtureExpectedResult struct {
	IncidentID int64  `json:"incident_id"`
	Action     string `json:"action"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	for _, c := range f.Cases {
		if c.Resolution != "" && !ledger.Resolution(c.Resolution).Valid() {
			return nil, fmt.Errorf("parse fixture %s: incident %d: %w: %q", path, c.IncidentID, ledger.ErrInvalidResolution, c.Resolution)
		}
	}
	return &f, nil
}

// ToCase converts a FixtureCase to a domain Case.
func (fc *FixtureCase) ToCase() Case {
	return Case{
		IncidentID:             fc.IncidentID,
		Title:                  fc.Title,
		Answers:                fc.Answers,
		RecordedClassification: fc.Classification,
		RecordedScore:          fc.FinalScore,
		Resolution:             ledger.Resolution(fc.Resolution),
	}
}

// ToCases converts every fixture case.
func (f *Fixture) ToCases() []Case {
	out := make([]Case, len(f.Cases))
	for i := range f.Cases {
		out[i] = f.Cases[i].ToCase()
	}
	return out
}

// Apply derives the what-if snapshot from base. Empty overrides return base.
func (o FixtureOverrides) Apply(base *config.Snapshot) (*config.Snapshot, error) {
	snap := base
	var err error
	if len(o.QuestionWeights) > 0 {
		if snap, err = snap.WithQuestionWeights(o.QuestionWeights); err != nil {
			return nil, fmt.Errorf("apply question weights: %w", err)
		}
	}
	if len(o.ModuleWeights) > 0 {
		if snap, err = snap.WithModuleWeights(o.ModuleWeights); err != nil {
			return nil, fmt.Errorf("apply module weights: %w", err)
		}
	}
	if len(o.Thresholds) > 0 {
		if snap, err = snap.WithThresholds(o.Thresholds); err != nil {
			return nil, fmt.Errorf("apply thresholds: %w", err)
		}
	}
	return snap, nil
}

// #endregion fixture-loader
