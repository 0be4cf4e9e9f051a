package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
)

var (
	ErrMissingField    = errors.New("missing required field")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrUnknownQuestion = errors.New("unknown question")
	ErrUnknownModule   = errors.New("unknown module")
	ErrUnknownTier     = errors.New("unknown classification tier")
)

// #region snapshot

// Snapshot is an immutable, validated view of the engine configuration and
// question catalog. Mutations produce a new Snapshot; an existing one is
// never modified, so it can be shared by concurrent evaluations. Slices
// returned by accessors are shared and must be treated as read-only.
type Snapshot struct {
	version  string
	engine   EngineDoc
	catalog  Catalog
	question map[string]int
	module   map[string]int
	tier     map[string]int
}

// NewSnapshot validates the documents and builds a snapshot. The documents
// are copied, so later changes by the caller are not observed.
func NewSnapshot(engine EngineDoc, catalog Catalog) (*Snapshot, error) {
	s := &Snapshot{
		engine:   copyEngine(engine),
		catalog:  copyCatalog(catalog),
		question: make(map[string]int, len(catalog.Questions)),
		module:   make(map[string]int, len(catalog.Modules)),
		tier:     make(map[string]int, len(engine.Thresholds)),
	}
	if s.engine.ModuleWeights == nil {
		s.engine.ModuleWeights = map[string]float64{}
	}
	if s.engine.Recommendations == nil {
		s.engine.Recommendations = map[string]string{}
	}

	if len(s.engine.Thresholds) == 0 {
		return nil, fmt.Errorf("%w: at least one threshold tier is required", ErrInvalidConfig)
	}
	for i, t := range s.engine.Thresholds {
		if t.Key == "" {
			return nil, fmt.Errorf("%w: threshold %d has no key", ErrInvalidConfig, i)
		}
		if _, dup := s.tier[t.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate tier %q", ErrInvalidConfig, t.Key)
		}
		if t.Min > t.Max {
			return nil, fmt.Errorf("%w: tier %q has min %.2f > max %.2f", ErrInvalidConfig, t.Key, t.Min, t.Max)
		}
		s.tier[t.Key] = i
	}

	for i, m := range s.catalog.Modules {
		if m.ID == "" {
			return nil, fmt.Errorf("%w: module %d has no id", ErrInvalidConfig, i)
		}
		if _, dup := s.module[m.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate module %q", ErrInvalidConfig, m.ID)
		}
		s.module[m.ID] = i
	}

	for i, q := range s.catalog.Questions {
		if q.ID == "" {
			return nil, fmt.Errorf("%w: question %d has no id", ErrInvalidConfig, i)
		}
		if _, dup := s.question[q.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate question %q", ErrInvalidConfig, q.ID)
		}
		if _, ok := s.module[q.Module]; !ok {
			return nil, fmt.Errorf("%w: question %q references %q", ErrUnknownModule, q.ID, q.Module)
		}
		values := make(map[string]bool, len(q.Options))
		for _, o := range q.Options {
			if values[o.Value] {
				return nil, fmt.Errorf("%w: question %q has duplicate option %q", ErrInvalidConfig, q.ID, o.Value)
			}
			values[o.Value] = true
		}
		s.question[q.ID] = i
	}

	for _, r := range s.engine.HardRules {
		if len(r.Conditions) == 0 {
			return nil, fmt.Errorf("%w: hard rule %q has no conditions", ErrInvalidConfig, r.ID)
		}
		if _, ok := s.tier[r.Classification]; !ok {
			return nil, fmt.Errorf("%w: hard rule %q maps to %q", ErrUnknownTier, r.ID, r.Classification)
		}
	}
	for _, m := range s.engine.Multipliers {
		if len(m.Conditions) == 0 {
			return nil, fmt.Errorf("%w: multiplier %q has no conditions", ErrInvalidConfig, m.ID)
		}
		if m.Multiplier <= 0 {
			return nil, fmt.Errorf("%w: multiplier %q factor %.3f must be > 0", ErrInvalidConfig, m.ID, m.Multiplier)
		}
	}

	return s, nil
}

// Version is the configuration store version this snapshot was loaded
// from; empty for snapshots that have not been persisted.
func (s *Snapshot) Version() string { return s.version }

// WithVersion returns a copy of s stamped with the given store version.
func (s *Snapshot) WithVersion(version string) *Snapshot {
	c := *s
	c.version = version
	return &c
}

// #endregion snapshot

// #region accessors

// Question looks up a question by id.
func (s *Snapshot) Question(id string) (Question, bool) {
	i, ok := s.question[id]
	if !ok {
		return Question{}, false
	}
	return s.catalog.Questions[i], true
}

// Questions returns all questions in catalog order.
func (s *Snapshot) Questions() []Question { return s.catalog.Questions }

// Modules returns the modules sorted by display order.
func (s *Snapshot) Modules() []Module {
	out := slices.Clone(s.catalog.Modules)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// QuestionsByModule groups questions by module, each group sorted by order.
func (s *Snapshot) QuestionsByModule() map[string][]Question {
	out := make(map[string][]Question)
	for _, q := range s.catalog.Questions {
		out[q.Module] = append(out[q.Module], q)
	}
	for _, qs := range out {
		sort.SliceStable(qs, func(i, j int) bool { return qs[i].Order < qs[j].Order })
	}
	return out
}

// ModuleWeight returns the configured weight for a module, 1.0 if unset.
func (s *Snapshot) ModuleWeight(module string) float64 {
	if w, ok := s.engine.ModuleWeights[module]; ok {
		return w
	}
	return 1.0
}

// ModuleWeights returns a copy of the module weight table.
func (s *Snapshot) ModuleWeights() map[string]float64 { return maps.Clone(s.engine.ModuleWeights) }

// Tiers returns the classification tiers, least severe first.
func (s *Snapshot) Tiers() Thresholds { return s.engine.Thresholds }

// Tier looks up a tier by key.
func (s *Snapshot) Tier(key string) (Tier, bool) {
	i, ok := s.tier[key]
	if !ok {
		return Tier{}, false
	}
	return s.engine.Thresholds[i], true
}

// Severity returns the position of a tier in severity order.
func (s *Snapshot) Severity(key string) (int, bool) {
	i, ok := s.tier[key]
	return i, ok
}

// MostSevere returns the last configured tier.
func (s *Snapshot) MostSevere() Tier {
	return s.engine.Thresholds[len(s.engine.Thresholds)-1]
}

// HardRules returns hard rules in declaration order.
func (s *Snapshot) HardRules() []HardRule { return s.engine.HardRules }

// Multipliers returns multiplier rules in declaration order.
func (s *Snapshot) Multipliers() []MultiplierRule { return s.engine.Multipliers }

// Recommendation returns the recommendation text for a tier.
func (s *Snapshot) Recommendation(key string) string { return s.engine.Recommendations[key] }

// Engine returns a deep copy of the engine document.
func (s *Snapshot) Engine() EngineDoc { return copyEngine(s.engine) }

// Catalog returns a deep copy of the question catalog.
func (s *Snapshot) Catalog() Catalog { return copyCatalog(s.catalog) }

// #endregion accessors

// #region derive

// WithQuestionWeights returns a new snapshot with the given question weights
// replaced. Bounds are not enforced here.
func (s *Snapshot) WithQuestionWeights(weights map[string]float64) (*Snapshot, error) {
	cat := s.Catalog()
	for id, w := range weights {
		i, ok := s.question[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownQuestion, id)
		}
		cat.Questions[i].Weight = w
	}
	return NewSnapshot(s.engine, cat)
}

// WithModuleWeights returns a new snapshot with the given module weights
// replaced.
func (s *Snapshot) WithModuleWeights(weights map[string]float64) (*Snapshot, error) {
	eng := s.Engine()
	for id, w := range weights {
		if _, ok := s.module[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownModule, id)
		}
		eng.ModuleWeights[id] = w
	}
	return NewSnapshot(eng, s.catalog)
}

// WithThresholds returns a new snapshot with tier ranges replaced. Tier
// order and metadata are unchanged.
func (s *Snapshot) WithThresholds(bounds map[string]Bounds) (*Snapshot, error) {
	eng := s.Engine()
	for key, b := range bounds {
		i, ok := s.tier[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTier, key)
		}
		eng.Thresholds[i].Min = b.Min
		eng.Thresholds[i].Max = b.Max
	}
	return NewSnapshot(eng, s.catalog)
}

// #endregion derive

// #region copy

func copyConditions(in []Condition) []Condition {
	if in == nil {
		return nil
	}
	return slices.Clone(in)
}

func copyEngine(e EngineDoc) EngineDoc {
	out := EngineDoc{
		ModuleWeights:   maps.Clone(e.ModuleWeights),
		Thresholds:      slices.Clone(e.Thresholds),
		Recommendations: maps.Clone(e.Recommendations),
	}
	if e.Multipliers != nil {
		out.Multipliers = make([]MultiplierRule, len(e.Multipliers))
		for i, m := range e.Multipliers {
			m.Conditions = copyConditions(m.Conditions)
			out.Multipliers[i] = m
		}
	}
	if e.HardRules != nil {
		out.HardRules = make([]HardRule, len(e.HardRules))
		for i, r := range e.HardRules {
			r.Conditions = copyConditions(r.Conditions)
			out.HardRules[i] = r
		}
	}
	return out
}

func copyCatalog(c Catalog) Catalog {
	out := Catalog{Modules: slices.Clone(c.Modules)}
	if c.Questions != nil {
		out.Questions = make([]Question, len(c.Questions))
		for i, q := range c.Questions {
			q.Options = slices.Clone(q.Options)
			out.Questions[i] = q
		}
	}
	return out
}

// #endregion copy
