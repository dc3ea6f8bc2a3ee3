package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Models drift on scalar types: weights arrive as 40.5 or "60%", durations as 30.
// The decoders below accept those forms and normalize them to the declared types.

// UnmarshalJSON accepts a weight given as an integer, a fractional number or a
// numeric string with an optional percent sign. Fractions are rounded.
func (c *Criterion) UnmarshalJSON(data []byte) error {
	type plain Criterion
	var raw struct {
		plain
		Weight json.RawMessage `json:"weight"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	weight, err := lenientInt(raw.Weight)
	if err != nil {
		return fmt.Errorf("weight: %w", err)
	}
	*c = Criterion(raw.plain)
	c.Weight = weight
	return nil
}

// UnmarshalJSON rounds a fractional or quoted totalMarks.
func (mc *MarkingCriteria) UnmarshalJSON(data []byte) error {
	type plain MarkingCriteria
	var raw struct {
		plain
		TotalMarks json.RawMessage `json:"totalMarks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	total, err := lenientInt(raw.TotalMarks)
	if err != nil {
		return fmt.Errorf("totalMarks: %w", err)
	}
	*mc = MarkingCriteria(raw.plain)
	mc.TotalMarks = total
	return nil
}

// UnmarshalJSON accepts a numeric duration and keeps it as its decimal text.
func (m *AssessmentMetadata) UnmarshalJSON(data []byte) error {
	type plain AssessmentMetadata
	var raw struct {
		plain
		Duration json.RawMessage `json:"duration"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = AssessmentMetadata(raw.plain)
	m.Duration = ""
	if isNull(raw.Duration) {
		return nil
	}
	var n float64
	if err := json.Unmarshal(raw.Duration, &n); err == nil {
		m.Duration = strconv.FormatFloat(n, 'f', -1, 64)
		return nil
	}
	if err := json.Unmarshal(raw.Duration, &m.Duration); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

// lenientInt decodes a JSON number or numeric string such as "60%" and rounds it.
func lenientInt(raw json.RawMessage) (int, error) {
	if isNull(raw) {
		return 0, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(math.Round(n)), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return int(math.Round(n)), nil
}
