package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anniejean/castingdesk/internal/services"
)

func childFilterFrom(r *http.Request) services.ChildFilter {
	q := r.URL.Query()
	return services.ChildFilter{
		Size:   q.Get("size"),
		Gender: q.Get("gender"),
		Q:      q.Get("q"),
		Page:   atoiDefault(q.Get("page"), 1),
		Per:    atoiDefault(q.Get("per"), 25),
	}
}

func adultFilterFrom(r *http.Request) services.AdultFilter {
	q := r.URL.Query()
	return services.AdultFilter{
		Size:   q.Get("size"),
		Gender: q.Get("gender"),
		Q:      q.Get("q"),
		Page:   atoiDefault(q.Get("page"), 1),
		Per:    atoiDefault(q.Get("per"), 25),
	}
}

// GET /admin/adults?size=&gender=&q=&page=&per=
func (h *Handler) AdminAdults(w http.ResponseWriter, r *http.Request) {
	page, err := h.Models.ListAdults(r.Context(), adultFilterFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GET /admin/models?size=&gender=&q=&page=&per=
func (h *Handler) AdminModels(w http.ResponseWriter, r *http.Request) {
	page, err := h.Models.ListChildren(r.Context(), childFilterFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

const csvPageSize = 200

// GET /admin/models.csv
// Same filters as AdminModels; every page is exported.
func (h *Handler) AdminModelsCSV(w http.ResponseWriter, r *http.Request) {
	f := childFilterFrom(r)
	f.Page, f.Per = 1, csvPageSize

	first, err := h.Models.ListChildren(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	filename := fmt.Sprintf("models_%s.csv", time.Now().Format("20060102_1504"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"ChildID", "FirstName", "LastName", "Gender", "BirthDate", "Age",
		"Weight", "Height", "PrimarySize", "AllSizes",
		"ParentName", "ParentEmail", "ParentPhone",
	})

	page := first
	for {
		for _, row := range page.Rows {
			all := make([]string, len(row.Sizes))
			for i, s := range row.Sizes {
				all[i] = s.Size
			}
			_ = cw.Write([]string{
				strconv.FormatUint(uint64(row.ID), 10),
				row.FirstName,
				row.LastName,
				row.Gender,
				row.BirthDate.Format("2006-01-02"),
				strconv.Itoa(row.AgeYears),
				strconv.FormatFloat(row.Weight, 'f', -1, 64),
				strconv.FormatFloat(row.Height, 'f', -1, 64),
				row.CurrentSize,
				strings.Join(all, "; "),
				row.ParentName,
				row.ParentEmail,
				row.ParentPhone,
			})
		}
		if int64(f.Page*f.Per) >= page.Total {
			break
		}
		f.Page++
		page, err = h.Models.ListChildren(r.Context(), f)
		if err != nil {
			// Headers are gone; log and cut the file short.
			h.Log.Error("models csv export aborted", zap.Int("page", f.Page), zap.Error(err))
			break
		}
	}
	cw.Flush()
}
