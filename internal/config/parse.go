package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// #region wire-types
// Wire types use pointers so absent required fields are detected at load
// time instead of decoding to zero values.

type wireOption struct {
	Value *string  `json:"value"`
	Label string   `json:"label"`
	Score *float64 `json:"score"`
}

type wireQuestion struct {
	ID      *string      `json:"id"`
	Module  *string      `json:"module"`
	Text    *string      `json:"text"`
	Weight  *float64     `json:"weight"`
	Order   int          `json:"order"`
	Options []wireOption `json:"options"`
}

type wireModule struct {
	ID    *string `json:"id"`
	Label string  `json:"label"`
	Order int     `json:"order"`
}

type wireCatalog struct {
	Modules   *[]wireModule   `json:"modules"`
	Questions *[]wireQuestion `json:"questions"`
}

type wireCondition struct {
	QuestionID *string `json:"question_id"`
	Value      *string `json:"value"`
}

type wireHardRule struct {
	ID              *string         `json:"id"`
	Conditions      []wireCondition `json:"conditions"`
	Classification  *string         `json:"classification"`
	OverrideMessage string          `json:"override_message"`
}

type wireMultiplier struct {
	ID          *string         `json:"id"`
	Description string          `json:"description"`
	Conditions  []wireCondition `json:"conditions"`
	Multiplier  *float64        `json:"multiplier"`
}

type wireEngine struct {
	ModuleWeights   *map[string]float64 `json:"module_weights"`
	Thresholds      *Thresholds         `json:"thresholds"`
	Multipliers     []wireMultiplier    `json:"multipliers"`
	HardRules       []wireHardRule      `json:"hard_rules"`
	Recommendations *map[string]string  `json:"recommendations"`
}

// #endregion wire-types

// #region parse-engine

// ParseEngine decodes an engine configuration document. Comments and
// trailing commas are allowed. multipliers and hard_rules may be omitted; every other top-level
// key is required.
func ParseEngine(data []byte) (EngineDoc, error) {
	std, err := standardize(data)
	if err != nil {
		return EngineDoc{}, fmt.Errorf("decode engine config: %w", err)
	}
	var w wireEngine
	if err := json.Unmarshal(std, &w); err != nil {
		return EngineDoc{}, fmt.Errorf("decode engine config: %w", err)
	}

	if w.ModuleWeights == nil {
		return EngineDoc{}, missing("module_weights")
	}
	if w.Thresholds == nil {
		return EngineDoc{}, missing("thresholds")
	}
	if w.Recommendations == nil {
		return EngineDoc{}, missing("recommendations")
	}

	doc := EngineDoc{
		ModuleWeights:   *w.ModuleWeights,
		Thresholds:      *w.Thresholds,
		Multipliers:     make([]MultiplierRule, 0, len(w.Multipliers)),
		HardRules:       make([]HardRule, 0, len(w.HardRules)),
		Recommendations: *w.Recommendations,
	}

	for i, m := range w.Multipliers {
		path := fmt.Sprintf("multipliers[%d]", i)
		if m.ID == nil {
			return EngineDoc{}, missing(path + ".id")
		}
		if m.Multiplier == nil {
			return EngineDoc{}, missing(path + ".multiplier")
		}
		conds, err := convertConditions(path, m.Conditions)
		if err != nil {
			return EngineDoc{}, err
		}
		doc.Multipliers = append(doc.Multipliers, MultiplierRule{
			ID:          *m.ID,
			Description: m.Description,
			Conditions:  conds,
			Multiplier:  *m.Multiplier,
		})
	}

	for i, r := range w.HardRules {
		path := fmt.Sprintf("hard_rules[%d]", i)
		if r.ID == nil {
			return EngineDoc{}, missing(path + ".id")
		}
		if r.Classification == nil {
			return EngineDoc{}, missing(path + ".classification")
		}
		conds, err := convertConditions(path, r.Conditions)
		if err != nil {
			return EngineDoc{}, err
		}
		doc.HardRules = append(doc.HardRules, HardRule{
			ID:              *r.ID,
			Conditions:      conds,
			Classification:  *r.Classification,
			OverrideMessage: r.OverrideMessage,
		})
	}

	return doc, nil
}

func convertConditions(path string, in []wireCondition) ([]Condition, error) {
	out := make([]Condition, 0, len(in))
	for i, c := range in {
		if c.QuestionID == nil {
			return nil, missing(fmt.Sprintf("%s.conditions[%d].question_id", path, i))
		}
		if c.Value == nil {
			return nil, missing(fmt.Sprintf("%s.conditions[%d].value", path, i))
		}
		out = append(out, Condition{QuestionID: *c.QuestionID, Value: *c.Value})
	}
	return out, nil
}

// #endregion parse-engine

// #region parse-catalog

// ParseCatalog decodes a question catalog document. Question weight
// defaults to 1.0 and option label defaults to the option value.
func ParseCatalog(data []byte) (Catalog, error) {
	std, err := standardize(data)
	if err != nil {
		return Catalog{}, fmt.Errorf("decode question catalog: %w", err)
	}
	var w wireCatalog
	if err := json.Unmarshal(std, &w); err != nil {
		return Catalog{}, fmt.Errorf("decode question catalog: %w", err)
	}
	if w.Modules == nil {
		return Catalog{}, missing("modules")
	}
	if w.Questions == nil {
		return Catalog{}, missing("questions")
	}

	cat := Catalog{
		Modules:   make([]Module, 0, len(*w.Modules)),
		Questions: make([]Question, 0, len(*w.Questions)),
	}

	for i, m := range *w.Modules {
		if m.ID == nil {
			return Catalog{}, missing(fmt.Sprintf("modules[%d].id", i))
		}
		label := m.Label
		if label == "" {
			label = *m.ID
		}
		cat.Modules = append(cat.Modules, Module{ID: *m.ID, Label: label, Order: m.Order})
	}

	for i, q := range *w.Questions {
		path := fmt.Sprintf("questions[%d]", i)
		switch {
		case q.ID == nil:
			return Catalog{}, missing(path + ".id")
		case q.Module == nil:
			return Catalog{}, missing(path + ".module")
		case q.Text == nil:
			return Catalog{}, missing(path + ".text")
		case q.Options == nil:
			return Catalog{}, missing(path + ".options")
		}
		weight := 1.0
		if q.Weight != nil {
			weight = *q.Weight
		}

		opts := make([]Option, 0, len(q.Options))
		for j, o := range q.Options {
			if o.Value == nil {
				return Catalog{}, missing(fmt.Sprintf("%s.options[%d].value", path, j))
			}
			if o.Score == nil {
				return Catalog{}, missing(fmt.Sprintf("%s.options[%d].score", path, j))
			}
			label := o.Label
			if label == "" {
				label = *o.Value
			}
			opts = append(opts, Option{Value: *o.Value, Label: label, Score: *o.Score})
		}

		cat.Questions = append(cat.Questions, Question{
			ID:      *q.ID,
			Module:  *q.Module,
			Text:    *q.Text,
			Weight:  weight,
			Order:   q.Order,
			Options: opts,
		})
	}

	return cat, nil
}

// #endregion parse-catalog

// #region files

// LoadFiles reads both documents from disk and builds a snapshot.
func LoadFiles(enginePath, catalogPath string) (*Snapshot, error) {
	engineData, err := os.ReadFile(enginePath)
	if err != nil {
		return nil, fmt.Errorf("read engine config %s: %w", enginePath, err)
	}
	catalogData, err := os.ReadFile(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("read question catalog %s: %w", catalogPath, err)
	}

	engine, err := ParseEngine(engineData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", enginePath, err)
	}
	catalog, err := ParseCatalog(catalogData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", catalogPath, err)
	}
	return NewSnapshot(engine, catalog)
}

// WriteFiles writes the snapshot's documents as indented JSON. Comments in
// the original files are not preserved.
func WriteFiles(s *Snapshot, enginePath, catalogPath string) error {
	engineData, err := json.MarshalIndent(s.Engine(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal engine config: %w", err)
	}
	catalogData, err := json.MarshalIndent(s.Catalog(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal question catalog: %w", err)
	}
	if err := os.WriteFile(enginePath, append(engineData, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", enginePath, err)
	}
	if err := os.WriteFile(catalogPath, append(catalogData, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", catalogPath, err)
	}
	return nil
}

// #endregion files

func missing(path string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, path)
}
