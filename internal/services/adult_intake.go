package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/anniejean/castingdesk/internal/events"
	"github.com/anniejean/castingdesk/internal/metrics"
	"github.com/anniejean/castingdesk/internal/models"
)

// MaxAdultsPerIntake bounds how many adult field groups one form may carry.
const MaxAdultsPerIntake = 10

// AdultSizes are the clothing sizes an adult model can register with.
var AdultSizes = []string{"XS", "S", "M", "L", "XL", "XXL", "3XL"}

// AdultIntake is one adult of an adult intake form. The first adult is
// also the account holder.
type AdultIntake struct {
	Index     int
	FirstName string
	LastName  string
	Gender    string
	Size      string
	Photo     string
	BirthDate *time.Time
}

var adultFieldRE = regexp.MustCompile(`^firstName(\d+)$`)

// ParseAdultIntake reads an adult intake form. Fields are suffixed by the
// adult's index (firstName0, size0, firstName1, ...). Adult 0 is the
// account holder: email0 and phone0 identify the account and are required.
func ParseAdultIntake(form url.Values) (ParentIntake, []AdultIntake, error) {
	verr := ValidationErrors{}

	p := ParentIntake{
		FirstName:        strings.TrimSpace(form.Get("firstName0")),
		LastName:         strings.TrimSpace(form.Get("lastName0")),
		PreferredContact: strings.ToLower(strings.TrimSpace(form.Get("preferredContact"))),
		FacebookURL:      strings.TrimSpace(form.Get("facebookProfileLink")),
		InstagramURL:     strings.TrimSpace(form.Get("instagramProfileLink")),
		HasModeledBefore: form.Get("hasModeled") == "true",
		Brands:           strings.TrimSpace(form.Get("brands")),
	}
	email, ok := NormEmail(form.Get("email0"))
	switch {
	case !ok:
		verr.add("email0", "invalid email address")
	case email == "":
		verr.add("email0", "required")
	}
	p.Email = email
	if raw := strings.TrimSpace(form.Get("phone0")); raw == "" {
		verr.add("phone0", "required")
	} else if p.Phone = NormPhone(raw); p.Phone == "" {
		verr.add("phone0", "invalid phone number")
	}
	switch {
	case p.PreferredContact == "":
		verr.add("preferredContact", "required")
	case !contactMethods[p.PreferredContact]:
		verr.add("preferredContact", "must be email, phone, text or facebook")
	case p.PreferredContact == "facebook" && p.FacebookURL == "":
		verr.add("facebookProfileLink", "required when contact is facebook")
	}

	adults, aerr := ParseAdults(form)
	for f, msg := range aerr {
		verr.add(f, msg)
	}
	return p, adults, verr.orNil()
}

// ParseAdults reads only the indexed adult field groups of a form.
func ParseAdults(form url.Values) ([]AdultIntake, ValidationErrors) {
	verr := ValidationErrors{}
	var idx []int
	for key := range form {
		m := adultFieldRE.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n > maxChildIndex {
			verr.add(key, "unexpected adult field")
			continue
		}
		idx = append(idx, n)
	}
	sort.Ints(idx)
	if len(idx) == 0 {
		verr.add("firstName0", "at least one adult is required")
	}
	if len(idx) > MaxAdultsPerIntake {
		verr.add("adults", fmt.Sprintf("at most %d adults per form", MaxAdultsPerIntake))
		idx = idx[:MaxAdultsPerIntake]
	}

	adults := make([]AdultIntake, 0, len(idx))
	for _, i := range idx {
		a := parseAdult(form, i, verr)
		adults = append(adults, a)
	}
	if len(verr) > 0 {
		return adults, verr
	}
	return adults, nil
}

func parseAdult(form url.Values, i int, verr ValidationErrors) AdultIntake {
	key := func(name string) string { return name + strconv.Itoa(i) }
	field := func(name string) string { return strings.TrimSpace(form.Get(key(name))) }

	a := AdultIntake{
		Index:     i,
		FirstName: field("firstName"),
		LastName:  field("lastName"),
		Gender:    strings.ToLower(field("gender")),
		Size:      strings.ToUpper(field("size")),
		Photo:     field("photo"),
	}
	if a.FirstName == "" {
		verr.add(key("firstName"), "required")
	}
	if a.LastName == "" {
		verr.add(key("lastName"), "required")
	}
	switch a.Gender {
	case "male", "female", "nonbinary":
	case "":
		verr.add(key("gender"), "required")
	default:
		verr.add(key("gender"), "must be male, female or nonbinary")
	}
	switch {
	case a.Size == "":
		verr.add(key("size"), "required")
	case !isAdultSize(a.Size):
		verr.add(key("size"), "must be one of "+strings.Join(AdultSizes, ", "))
	}
	if dob := field("dob"); dob != "" {
		d, err := time.Parse("2006-01-02", dob)
		switch {
		case err != nil:
			verr.add(key("dob"), "use YYYY-MM-DD")
		case d.After(time.Now()):
			verr.add(key("dob"), "date of birth is in the future")
		default:
			a.BirthDate = &d
		}
	}
	return a
}

func isAdultSize(s string) bool {
	for _, v := range AdultSizes {
		if v == s {
			return true
		}
	}
	return false
}

// AdultIntakeResult is what a committed adult intake produced.
type AdultIntakeResult struct {
	UserID     uint
	NewAccount bool
	Password   string
	Adults     []models.Adult
}

// SubmitAdultIntake stores an adult intake in one transaction: the account
// is found by email or provisioned, then each adult is created or, when the
// account already has an adult with the same name, updated.
func (s *IntakeService) SubmitAdultIntake(ctx context.Context, p ParentIntake, adults []AdultIntake) (AdultIntakeResult, error) {
	var res AdultIntakeResult
	if len(adults) == 0 {
		return res, ValidationErrors{"firstName0": "at least one adult is required"}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res = AdultIntakeResult{}
		user, password, err := upsertUser(tx, p)
		if err != nil {
			return err
		}
		res.UserID = user.ID
		res.NewAccount = password != ""
		res.Password = password

		for _, in := range adults {
			a, err := upsertAdult(tx, user.ID, in)
			if err != nil {
				return err
			}
			res.Adults = append(res.Adults, a)
		}
		return nil
	})
	if err != nil {
		metrics.IntakeSubmissions.WithLabelValues("adult", intakeOutcome(err)).Inc()
		return AdultIntakeResult{}, err
	}
	metrics.IntakeSubmissions.WithLabelValues("adult", "ok").Inc()

	if events.OnIntakeSubmitted != nil {
		events.OnIntakeSubmitted(res.UserID, nil, res.NewAccount)
	}
	s.log.Info("adult intake stored",
		zap.Uint("user_id", res.UserID),
		zap.Bool("new_account", res.NewAccount),
		zap.Int("adults", len(res.Adults)),
	)
	return res, nil
}

// SaveAdults makes the account's adults exactly the given list: matching
// names are updated, new ones created, the rest removed with their shoot
// approvals.
func (s *IntakeService) SaveAdults(ctx context.Context, userID uint, adults []AdultIntake) ([]models.Adult, error) {
	var out []models.Adult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		out = nil
		if err := tx.Select("id").First(&models.User{}, userID).Error; err != nil {
			return fmt.Errorf("user %d: %w", userID, err)
		}
		keep := make([]uint, 0, len(adults))
		for _, in := range adults {
			a, err := upsertAdult(tx, userID, in)
			if err != nil {
				return err
			}
			keep = append(keep, a.ID)
			out = append(out, a)
		}

		gone := tx.Model(&models.Adult{}).Select("id").Where("user_id = ?", userID)
		if len(keep) > 0 {
			gone = gone.Where("id NOT IN ?", keep)
		}
		if err := tx.Where("model_type = ? AND model_id IN (?)", models.ModelTypeAdult, gone).
			Delete(&models.ModelApproval{}).Error; err != nil {
			return fmt.Errorf("delete adult approvals: %w", err)
		}
		del := tx.Where("user_id = ?", userID)
		if len(keep) > 0 {
			del = del.Where("id NOT IN ?", keep)
		}
		if err := del.Delete(&models.Adult{}).Error; err != nil {
			return fmt.Errorf("delete adults: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func upsertAdult(tx *gorm.DB, userID uint, in AdultIntake) (models.Adult, error) {
	var a models.Adult
	err := tx.Where("user_id = ? AND LOWER(first_name) = ? AND LOWER(last_name) = ?",
		userID, strings.ToLower(in.FirstName), strings.ToLower(in.LastName)).
		First(&a).Error
	switch {
	case err == nil:
		a.FirstName = in.FirstName
		a.LastName = in.LastName
		a.Gender = in.Gender
		a.Size = in.Size
		a.BirthDate = in.BirthDate
		if in.Photo != "" {
			a.Photo = in.Photo
		}
		if err := tx.Save(&a).Error; err != nil {
			return a, fmt.Errorf("update adult: %w", err)
		}
		return a, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return a, fmt.Errorf("find adult: %w", err)
	}

	a = models.Adult{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Gender:    in.Gender,
		Size:      in.Size,
		Photo:     in.Photo,
		BirthDate: in.BirthDate,
		UserID:    userID,
	}
	if err := tx.Create(&a).Error; err != nil {
		return a, fmt.Errorf("create adult: %w", err)
	}
	return a, nil
}
