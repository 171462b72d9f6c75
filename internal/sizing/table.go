package sizing

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultCeiling is the weight (lb) above which a child is always sized
// into the oldest label of the chart.
const DefaultCeiling = 101

// SizeRange is one row of the size chart. Bounds are inclusive on both
// ends; MaxWeight may be +Inf.
type SizeRange struct {
	Label     string
	MinWeight float64
	MaxWeight float64
}

// Table is the full size chart a Classifier is built from.
//
// Order lists every label from youngest/smallest to oldest/largest and
// decides which of several matching labels comes first. Ceiling is the
// weight above which only the last label of Order is returned; zero means
// "derive it from the ranges" (see New).
type Table struct {
	Ranges  []SizeRange
	Order   []string
	Ceiling float64
}

// DefaultTable returns a fresh copy of the production chart.
func DefaultTable() Table {
	inf := math.Inf(1)
	return Table{
		Ranges: []SizeRange{
			{Label: "10Y-12Y", MinWeight: 84, MaxWeight: inf},
			{Label: "7Y-8Y", MinWeight: 49, MaxWeight: inf},
			{Label: "5T-6T", MinWeight: 39, MaxWeight: 48},
			{Label: "3T-4T", MinWeight: 31, MaxWeight: 38},
			{Label: "2T", MinWeight: 28, MaxWeight: 30},
			{Label: "18-24 Months", MinWeight: 25, MaxWeight: 27},
			{Label: "12-18 Months", MinWeight: 22, MaxWeight: 24},
			{Label: "9-12 Months", MinWeight: 20, MaxWeight: 24},
			{Label: "6-9 Months", MinWeight: 17, MaxWeight: 21},
			{Label: "6-12 Months", MinWeight: 17, MaxWeight: 24},
			{Label: "3-6 Months", MinWeight: 12, MaxWeight: 16},
			{Label: "0-3 Months", MinWeight: 9, MaxWeight: 11},
			{Label: "Newborn", MinWeight: 6, MaxWeight: 8},
			{Label: "Preemie", MinWeight: 0, MaxWeight: 5},
		},
		Order: []string{
			"Preemie",
			"Newborn",
			"0-3 Months",
			"3-6 Months",
			"6-9 Months",
			"6-12 Months",
			"9-12 Months",
			"12-18 Months",
			"18-24 Months",
			"2T",
			"3T-4T",
			"5T-6T",
			"7Y-8Y",
			"10Y-12Y",
		},
		Ceiling: DefaultCeiling,
	}
}

// clone returns a deep copy so callers can't mutate a classifier's table.
func (t Table) clone() Table {
	out := Table{Ceiling: t.Ceiling}
	out.Ranges = append([]SizeRange(nil), t.Ranges...)
	out.Order = append([]string(nil), t.Order...)
	return out
}

func (t Table) validate() error {
	if len(t.Ranges) == 0 {
		return errors.New("size table has no ranges")
	}
	if len(t.Order) == 0 {
		return errors.New("size table has no label order")
	}
	if math.IsNaN(t.Ceiling) || t.Ceiling < 0 {
		return fmt.Errorf("invalid ceiling %v", t.Ceiling)
	}

	inOrder := make(map[string]bool, len(t.Order))
	for _, l := range t.Order {
		if l == "" {
			return errors.New("empty label in order")
		}
		if inOrder[l] {
			return fmt.Errorf("label %q listed twice in order", l)
		}
		inOrder[l] = true
	}

	seen := make(map[SizeRange]bool, len(t.Ranges))
	for _, r := range t.Ranges {
		if !inOrder[r.Label] {
			return fmt.Errorf("range label %q missing from order", r.Label)
		}
		if math.IsNaN(r.MinWeight) || math.IsNaN(r.MaxWeight) || math.IsInf(r.MinWeight, 0) {
			return fmt.Errorf("range %q has a non-numeric bound", r.Label)
		}
		if r.MinWeight > r.MaxWeight {
			return fmt.Errorf("range %q: min %v > max %v", r.Label, r.MinWeight, r.MaxWeight)
		}
		if seen[r] {
			return fmt.Errorf("duplicate range %q [%v, %v]", r.Label, r.MinWeight, r.MaxWeight)
		}
		seen[r] = true
	}
	return nil
}

type tableFile struct {
	Ceiling *float64 `yaml:"ceiling"`
	Order   []string `yaml:"order"`
	Ranges  []struct {
		Label string   `yaml:"label"`
		Min   float64  `yaml:"min"`
		Max   *float64 `yaml:"max"` // absent or null: unbounded
	} `yaml:"ranges"`
}

// LoadTable reads a size chart from YAML:
//
//	ceiling: 101
//	order: [Preemie, Newborn, ...]
//	ranges:
//	  - {label: Preemie, min: 0, max: 5}
//	  - {label: 10Y-12Y, min: 84}        # no max: unbounded
//
// A missing ceiling defaults to DefaultCeiling. The result is validated the
// same way New validates it.
func LoadTable(r io.Reader) (Table, error) {
	var f tableFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return Table{}, fmt.Errorf("decode size table: %w", err)
	}

	t := Table{Order: f.Order, Ceiling: DefaultCeiling}
	if f.Ceiling != nil {
		t.Ceiling = *f.Ceiling
	}
	for _, fr := range f.Ranges {
		max := math.Inf(1)
		if fr.Max != nil {
			max = *fr.Max
		}
		t.Ranges = append(t.Ranges, SizeRange{Label: fr.Label, MinWeight: fr.Min, MaxWeight: max})
	}
	if err := t.validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// LoadFile builds a Classifier from a size table file. An empty path
// returns Default().
func LoadFile(path string) (*Classifier, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := LoadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return New(t)
}
