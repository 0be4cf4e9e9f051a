package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type wireTier struct {
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Label string   `json:"label"`
	Emoji string   `json:"emoji"`
	Color string   `json:"color"`
}

// UnmarshalJSON decodes the thresholds object keeping document key order.
func (t *Thresholds) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}
	if tok == nil {
		*t = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("thresholds: expected object, got %v", tok)
	}

	var out Thresholds
	seen := make(map[string]bool)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("thresholds: expected key, got %v", keyTok)
		}
		if seen[key] {
			return fmt.Errorf("thresholds: duplicate tier %q", key)
		}
		seen[key] = true

		var w wireTier
		if err := dec.Decode(&w); err != nil {
			return fmt.Errorf("threshold %q: %w", key, err)
		}
		if w.Min == nil {
			return fmt.Errorf("%w: thresholds.%s.min", ErrMissingField, key)
		}
		if w.Max == nil {
			return fmt.Errorf("%w: thresholds.%s.max", ErrMissingField, key)
		}
		label := w.Label
		if label == "" {
			label = key
		}
		out = append(out, Tier{
			Key:   key,
			Min:   *w.Min,
			Max:   *w.Max,
			Label: label,
			Emoji: w.Emoji,
			Color: w.Color,
		})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}

	*t = out
	return nil
}

// MarshalJSON encodes the tiers as an object in severity order.
func (t Thresholds) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, tier := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(tier.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(tier)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
