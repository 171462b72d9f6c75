package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/anniejean/castingdesk/internal/models"
)

// ChildFilter narrows the admin model list. Size matches any assigned
// size, not just the primary one.
type ChildFilter struct {
	Size   string
	Gender string
	Q      string // parent or child name, parent email
	// UserID limits the list to one parent's children when set.
	UserID uint
	Page   int
	Per    int
}

func (f *ChildFilter) normalize() {
	f.Size = strings.TrimSpace(f.Size)
	f.Gender = strings.ToLower(strings.TrimSpace(f.Gender))
	f.Q = strings.TrimSpace(f.Q)
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Per < 1 || f.Per > 200 {
		f.Per = 25
	}
}

type SizeTag struct {
	Size    string `json:"size"`
	Primary bool   `json:"primary"`
}

// ChildRow is one line of the admin model list.
type ChildRow struct {
	ID          uint      `json:"id"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Gender      string    `json:"gender"`
	BirthDate   time.Time `json:"birthDate"`
	AgeYears    int       `json:"ageYears"`
	Weight      float64   `json:"weight"`
	Height      float64   `json:"height"`
	CurrentSize string    `json:"currentSize"`
	Sizes       []SizeTag `json:"sizes"`
	Photo       string    `json:"photo,omitempty"`
	ParentID    uint      `json:"parentId"`
	ParentName  string    `json:"parentName"`
	ParentEmail string    `json:"parentEmail"`
	ParentPhone string    `json:"parentPhone,omitempty"`
}

type ChildPage struct {
	Rows  []ChildRow `json:"rows"`
	Total int64      `json:"total"`
	Page  int        `json:"page"`
	Per   int        `json:"per"`
}

// ModelQuery serves the admin and client model listings.
type ModelQuery struct {
	db    *gorm.DB
	sizes *SizeReconciler
	now   func() time.Time
}

func NewModelQuery(gdb *gorm.DB, sizes *SizeReconciler) *ModelQuery {
	return &ModelQuery{db: gdb, sizes: sizes, now: time.Now}
}

// ListChildren returns one page of children matching f, ordered by name.
func (q *ModelQuery) ListChildren(ctx context.Context, f ChildFilter) (ChildPage, error) {
	f.normalize()
	page := ChildPage{Rows: []ChildRow{}, Page: f.Page, Per: f.Per}

	base := q.db.WithContext(ctx).
		Model(&models.Child{}).
		Joins("JOIN users ON users.id = children.user_id")

	if f.Size != "" {
		if !q.sizes.Classifier().IsLabel(f.Size) {
			return page, ValidationErrors{"size": "unknown size"}
		}
		ids, err := q.sizes.ChildrenWithSize(ctx, f.Size)
		if err != nil {
			return page, err
		}
		if len(ids) == 0 {
			return page, nil
		}
		base = base.Where("children.id IN ?", ids)
	}
	if f.Gender != "" {
		base = base.Where("children.gender = ?", f.Gender)
	}
	if f.UserID != 0 {
		base = base.Where("children.user_id = ?", f.UserID)
	}
	if f.Q != "" {
		base = base.Where(q.nameSearch("children", f.Q))
	}

	if err := base.Session(&gorm.Session{}).Count(&page.Total).Error; err != nil {
		return page, fmt.Errorf("count children: %w", err)
	}

	type joined struct {
		models.Child
		ParentFirst string
		ParentLast  string
		ParentEmail string
		ParentPhone string
	}
	var rows []joined
	if err := base.Session(&gorm.Session{}).
		Select("children.*, users.first_name AS parent_first, users.last_name AS parent_last, users.email AS parent_email, users.phone AS parent_phone").
		Order("LOWER(children.first_name) asc, children.id asc").
		Limit(f.Per).
		Offset((f.Page - 1) * f.Per).
		Scan(&rows).Error; err != nil {
		return page, fmt.Errorf("list children: %w", err)
	}
	if len(rows) == 0 {
		return page, nil
	}

	ids := make([]uint, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	var assigned []models.ChildSize
	if err := q.db.WithContext(ctx).Where("child_id IN ?", ids).Find(&assigned).Error; err != nil {
		return page, fmt.Errorf("load sizes: %w", err)
	}
	q.sizes.sortAssignments(assigned)
	byChild := make(map[uint][]SizeTag, len(rows))
	for _, a := range assigned {
		byChild[a.ChildID] = append(byChild[a.ChildID], SizeTag{Size: a.Size, Primary: a.IsPrimary})
	}

	now := q.now()
	for _, r := range rows {
		tags := byChild[r.ID]
		if tags == nil {
			tags = []SizeTag{}
		}
		page.Rows = append(page.Rows, ChildRow{
			ID:          r.ID,
			FirstName:   r.FirstName,
			LastName:    r.LastName,
			Gender:      r.Gender,
			BirthDate:   r.BirthDate,
			AgeYears:    ageYears(r.BirthDate, now),
			Weight:      r.Weight,
			Height:      r.Height,
			CurrentSize: r.CurrentSize,
			Sizes:       tags,
			Photo:       r.Photo,
			ParentID:    r.UserID,
			ParentName:  strings.TrimSpace(r.ParentFirst + " " + r.ParentLast),
			ParentEmail: r.ParentEmail,
			ParentPhone: r.ParentPhone,
		})
	}
	return page, nil
}

// nameSearch matches q against the model's names and its parent's names and
// email. The conditions are grouped so the OR chain can't escape the other
// filters.
func (q *ModelQuery) nameSearch(table, text string) *gorm.DB {
	like := "%" + strings.ToLower(text) + "%"
	return q.db.
		Where("LOWER("+table+".first_name) LIKE ?", like).
		Or("LOWER("+table+".last_name) LIKE ?", like).
		Or("LOWER(users.first_name) LIKE ?", like).
		Or("LOWER(users.last_name) LIKE ?", like).
		Or("LOWER(users.email) LIKE ?", like)
}

// AdultFilter narrows the adult model list.
type AdultFilter struct {
	Size   string
	Gender string
	Q      string
	UserID uint
	Page   int
	Per    int
}

// AdultRow is one line of the adult model list.
type AdultRow struct {
	ID          uint       `json:"id"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Gender      string     `json:"gender"`
	Size        string     `json:"size"`
	BirthDate   *time.Time `json:"birthDate,omitempty"`
	AgeYears    int        `json:"ageYears,omitempty"`
	Photo       string     `json:"photo,omitempty"`
	ParentID    uint       `json:"parentId"`
	ParentEmail string     `json:"parentEmail"`
	ParentPhone string     `json:"parentPhone,omitempty"`
}

type AdultPage struct {
	Rows  []AdultRow `json:"rows"`
	Total int64      `json:"total"`
	Page  int        `json:"page"`
	Per   int        `json:"per"`
}

// ListAdults returns one page of adult models matching f, ordered by name.
func (q *ModelQuery) ListAdults(ctx context.Context, f AdultFilter) (AdultPage, error) {
	cf := ChildFilter{Gender: f.Gender, Q: f.Q, Page: f.Page, Per: f.Per}
	cf.normalize()
	f.Gender, f.Q, f.Page, f.Per = cf.Gender, cf.Q, cf.Page, cf.Per
	f.Size = strings.ToUpper(strings.TrimSpace(f.Size))
	page := AdultPage{Rows: []AdultRow{}, Page: f.Page, Per: f.Per}

	base := q.db.WithContext(ctx).
		Model(&models.Adult{}).
		Joins("JOIN users ON users.id = adults.user_id")
	if f.Size != "" {
		if !isAdultSize(f.Size) {
			return page, ValidationErrors{"size": "unknown size"}
		}
		base = base.Where("adults.size = ?", f.Size)
	}
	if f.Gender != "" {
		base = base.Where("adults.gender = ?", f.Gender)
	}
	if f.UserID != 0 {
		base = base.Where("adults.user_id = ?", f.UserID)
	}
	if f.Q != "" {
		base = base.Where(q.nameSearch("adults", f.Q))
	}

	if err := base.Session(&gorm.Session{}).Count(&page.Total).Error; err != nil {
		return page, fmt.Errorf("count adults: %w", err)
	}
	type joined struct {
		models.Adult
		ParentEmail string
		ParentPhone string
	}
	var rows []joined
	if err := base.Session(&gorm.Session{}).
		Select("adults.*, users.email AS parent_email, users.phone AS parent_phone").
		Order("LOWER(adults.first_name) asc, adults.id asc").
		Limit(f.Per).
		Offset((f.Page - 1) * f.Per).
		Scan(&rows).Error; err != nil {
		return page, fmt.Errorf("list adults: %w", err)
	}

	now := q.now()
	for _, r := range rows {
		row := AdultRow{
			ID:          r.ID,
			FirstName:   r.FirstName,
			LastName:    r.LastName,
			Gender:      r.Gender,
			Size:        r.Size,
			BirthDate:   r.BirthDate,
			Photo:       r.Photo,
			ParentID:    r.UserID,
			ParentEmail: r.ParentEmail,
			ParentPhone: r.ParentPhone,
		}
		if r.BirthDate != nil {
			row.AgeYears = ageYears(*r.BirthDate, now)
		}
		page.Rows = append(page.Rows, row)
	}
	return page, nil
}

func ageYears(dob, now time.Time) int {
	if dob.IsZero() {
		return 0
	}
	y := now.Year() - dob.Year()
	anniv := time.Date(now.Year(), dob.Month(), dob.Day(), 0, 0, 0, 0, now.Location())
	if now.Before(anniv) {
		y--
	}
	if y < 0 {
		y = 0
	}
	return y
}
