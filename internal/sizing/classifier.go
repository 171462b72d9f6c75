// Package sizing maps a child's measurements to clothing-size labels.
//
// A weight may fall inside several overlapping ranges of the chart; every
// matching label is returned, ordered from youngest to oldest. The first
// label is the child's primary size.
package sizing

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Classifier is immutable after New and safe for concurrent use.
type Classifier struct {
	ranges  []SizeRange
	order   []string
	rank    map[string]int
	ceiling float64
}

// New validates t and builds a Classifier from a private copy of it.
//
// When t.Ceiling is zero it is derived: if every range is bounded, the
// largest MaxWeight becomes the ceiling; if any range is unbounded there is
// no ceiling and heavy children match the unbounded ranges.
func New(t Table) (*Classifier, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	t = t.clone()

	c := &Classifier{
		ranges:  t.Ranges,
		order:   t.Order,
		rank:    make(map[string]int, len(t.Order)),
		ceiling: t.Ceiling,
	}
	for i, l := range t.Order {
		c.rank[l] = i
	}
	if c.ceiling == 0 {
		c.ceiling = deriveCeiling(t.Ranges)
	}
	return c, nil
}

// Default returns a Classifier over DefaultTable.
func Default() *Classifier {
	c, err := New(DefaultTable())
	if err != nil {
		panic("sizing: default table invalid: " + err.Error())
	}
	return c
}

func deriveCeiling(ranges []SizeRange) float64 {
	max := 0.0
	for _, r := range ranges {
		if math.IsInf(r.MaxWeight, 1) {
			return math.Inf(1)
		}
		if r.MaxWeight > max {
			max = r.MaxWeight
		}
	}
	return max
}

// Classify returns every label whose range contains weight, youngest first.
// The result is a new slice; an empty result means the size could not be
// determined (non-finite input, or a weight outside every range).
//
// height is accepted so callers pass both measurements, but the chart is
// weight-only and height does not change the result. It still has to be a
// finite number.
func (c *Classifier) Classify(weight, height float64) []string {
	if !finite(weight) || !finite(height) {
		return []string{}
	}
	if weight > c.ceiling {
		return []string{c.order[len(c.order)-1]}
	}

	out := []string{}
	for _, r := range c.ranges {
		if weight >= r.MinWeight && weight <= r.MaxWeight {
			out = append(out, r.Label)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return c.rank[out[i]] < c.rank[out[j]]
	})
	return out
}

// ClassifyValues is Classify for loosely typed input such as form values.
// Anything that does not coerce to a number yields an empty result.
func (c *Classifier) ClassifyValues(weight, height any) []string {
	w, ok := ParseMeasure(weight)
	if !ok {
		return []string{}
	}
	h, ok := ParseMeasure(height)
	if !ok {
		return []string{}
	}
	return c.Classify(w, h)
}

// Primary returns the first label Classify would return.
func (c *Classifier) Primary(weight, height float64) (string, bool) {
	labels := c.Classify(weight, height)
	if len(labels) == 0 {
		return "", false
	}
	return labels[0], true
}

// HasOverlap reports whether weight falls inside more than one range.
func (c *Classifier) HasOverlap(weight float64) bool {
	if !finite(weight) {
		return false
	}
	n := 0
	for _, r := range c.ranges {
		if weight >= r.MinWeight && weight <= r.MaxWeight {
			n++
		}
	}
	return n > 1
}

// Labels returns every label in canonical order.
func (c *Classifier) Labels() []string {
	return append([]string(nil), c.order...)
}

func (c *Classifier) IsLabel(s string) bool {
	_, ok := c.rank[s]
	return ok
}

// Rank is the position of label in the canonical order, or -1.
func (c *Classifier) Rank(label string) int {
	if i, ok := c.rank[label]; ok {
		return i
	}
	return -1
}

// Table returns a copy of the chart the classifier was built from, with the
// effective ceiling filled in.
func (c *Classifier) Table() Table {
	return Table{Ranges: c.ranges, Order: c.order, Ceiling: c.ceiling}.clone()
}

// ParseMeasure coerces a measurement to a finite float64. Strings are
// trimmed first; nil, booleans, blanks, NaN and infinities are rejected.
func ParseMeasure(v any) (float64, bool) {
	switch x := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return 0, false
		}
		v = x
	case json.Number:
		v = x.String()
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || !finite(f) {
		return 0, false
	}
	return f, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
