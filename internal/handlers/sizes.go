package handlers

import (
	"math"
	"net/http"
)

type sizeRangeJSON struct {
	Label     string   `json:"label"`
	MinWeight float64  `json:"minWeight"`
	MaxWeight *float64 `json:"maxWeight"` // null = no upper bound
}

type sizeTableJSON struct {
	Ceiling float64         `json:"ceiling"`
	Sizes   []sizeRangeJSON `json:"sizes"`
}

// GET /api/sizes
// Ranges are listed in canonical order.
func (h *Handler) SizeTable(w http.ResponseWriter, r *http.Request) {
	c := h.Sizes.Classifier()
	tbl := c.Table()
	out := sizeTableJSON{Sizes: []sizeRangeJSON{}}
	if !math.IsInf(tbl.Ceiling, 0) {
		out.Ceiling = tbl.Ceiling
	}
	byLabel := make(map[string][]sizeRangeJSON)
	for _, rg := range tbl.Ranges {
		j := sizeRangeJSON{Label: rg.Label, MinWeight: rg.MinWeight}
		if !math.IsInf(rg.MaxWeight, 1) {
			max := rg.MaxWeight
			j.MaxWeight = &max
		}
		byLabel[rg.Label] = append(byLabel[rg.Label], j)
	}
	for _, l := range c.Labels() {
		out.Sizes = append(out.Sizes, byLabel[l]...)
	}
	writeJSON(w, http.StatusOK, out)
}

type classifyResponse struct {
	Sizes   []string `json:"sizes"`
	Primary string   `json:"primary,omitempty"`
	Overlap bool     `json:"overlap"`
}

// GET /api/sizes/classify?weight=&height=
// Unusable measurements give an empty size list, not an error.
func (h *Handler) ClassifySize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	labels := h.Sizes.Classifier().ClassifyValues(q.Get("weight"), q.Get("height"))
	res := classifyResponse{Sizes: labels, Overlap: len(labels) > 1}
	if len(labels) > 0 {
		res.Primary = labels[0]
	}
	writeJSON(w, http.StatusOK, res)
}
