package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/anniejean/castingdesk/internal/events"
	"github.com/anniejean/castingdesk/internal/metrics"
	"github.com/anniejean/castingdesk/internal/models"
	"github.com/anniejean/castingdesk/internal/sizing"
)

// MaxChildrenPerIntake bounds how many childN field groups one form may carry.
const MaxChildrenPerIntake = 10

const maxChildIndex = 99

// ParentIntake is the parent/guardian part of an intake form.
type ParentIntake struct {
	FirstName        string
	LastName         string
	Phone            string
	Email            string
	PreferredContact string
	FacebookURL      string
	InstagramURL     string
	HasModeledBefore bool
	Brands           string
}

// ChildIntake is one child of an intake form. Weight and Height keep the
// submitted text; the classifier coerces them.
type ChildIntake struct {
	Index     int
	FirstName string
	LastName  string
	BirthDate time.Time
	Gender    string
	Weight    string
	Height    string
	Photo     string
}

var childFieldRE = regexp.MustCompile(`^childName(\d+)$`)

var contactMethods = map[string]bool{"": true, "email": true, "phone": true, "text": true, "facebook": true}

// ParseChildIntake reads an intake form body. Child fields are suffixed by
// their index (childName0, childWeight0, childName1, ...); indexes need not
// be contiguous. Every problem found is reported in a ValidationErrors.
func ParseChildIntake(form url.Values) (ParentIntake, []ChildIntake, error) {
	verr := ValidationErrors{}

	p := ParentIntake{
		FirstName:        strings.TrimSpace(form.Get("parentFirstName")),
		LastName:         strings.TrimSpace(form.Get("parentLastName")),
		PreferredContact: strings.ToLower(strings.TrimSpace(form.Get("preferredContact"))),
		FacebookURL:      strings.TrimSpace(form.Get("facebookProfileLink")),
		InstagramURL:     strings.TrimSpace(form.Get("instagramProfileLink")),
		HasModeledBefore: form.Get("hasModeled") == "true",
		Brands:           strings.TrimSpace(form.Get("brands")),
	}
	if p.FirstName == "" {
		verr.add("parentFirstName", "required")
	}
	if p.LastName == "" {
		verr.add("parentLastName", "required")
	}
	email, ok := NormEmail(form.Get("email"))
	switch {
	case !ok:
		verr.add("email", "invalid email address")
	case email == "":
		verr.add("email", "required")
	}
	p.Email = email
	if raw := strings.TrimSpace(form.Get("parentPhone")); raw != "" {
		if p.Phone = NormPhone(raw); p.Phone == "" {
			verr.add("parentPhone", "invalid phone number")
		}
	}
	if !contactMethods[p.PreferredContact] {
		verr.add("preferredContact", "must be email, phone, text or facebook")
	}

	var idx []int
	for key := range form {
		m := childFieldRE.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n > maxChildIndex {
			verr.add(key, "unexpected child field")
			continue
		}
		idx = append(idx, n)
	}
	sort.Ints(idx)
	if len(idx) == 0 {
		verr.add("childName0", "at least one child is required")
	}
	if len(idx) > MaxChildrenPerIntake {
		verr.add("children", fmt.Sprintf("at most %d children per form", MaxChildrenPerIntake))
		idx = idx[:MaxChildrenPerIntake]
	}

	kids := make([]ChildIntake, 0, len(idx))
	for _, i := range idx {
		k, kerr := parseChild(form, i)
		for f, msg := range kerr {
			verr.add(f, msg)
		}
		kids = append(kids, k)
	}

	return p, kids, verr.orNil()
}

func parseChild(form url.Values, i int) (ChildIntake, ValidationErrors) {
	verr := ValidationErrors{}
	field := func(name string) string {
		return strings.TrimSpace(form.Get(name + strconv.Itoa(i)))
	}
	key := func(name string) string { return name + strconv.Itoa(i) }

	k := ChildIntake{
		Index:     i,
		FirstName: field("childName"),
		LastName:  field("childLastName"),
		Gender:    strings.ToLower(field("childGender")),
		Weight:    field("childWeight"),
		Height:    field("childHeight"),
		Photo:     field("existingPhoto"),
	}
	if k.FirstName == "" {
		verr.add(key("childName"), "required")
	}
	switch k.Gender {
	case "male", "female", "nonbinary":
	case "":
		verr.add(key("childGender"), "required")
	default:
		verr.add(key("childGender"), "must be male, female or nonbinary")
	}
	if dob := field("childDob"); dob == "" {
		verr.add(key("childDob"), "required")
	} else if d, err := time.Parse("2006-01-02", dob); err != nil {
		verr.add(key("childDob"), "use YYYY-MM-DD")
	} else if d.After(time.Now()) {
		verr.add(key("childDob"), "date of birth is in the future")
	} else {
		k.BirthDate = d
	}
	if _, ok := sizing.ParseMeasure(k.Weight); !ok {
		verr.add(key("childWeight"), "weight must be a number")
	}
	if _, ok := sizing.ParseMeasure(k.Height); !ok {
		verr.add(key("childHeight"), "height must be a number")
	}
	return k, verr
}

// IntakeResult is what a committed intake produced.
type IntakeResult struct {
	UserID     uint
	NewAccount bool
	// Password is the generated plaintext for a new account, for the
	// welcome message; empty for existing accounts.
	Password string
	Children []IntakeChildResult
}

type IntakeChildResult struct {
	ChildID uint
	Name    string
	Sizes   []string
}

// IntakeService stores intake submissions.
type IntakeService struct {
	db    *gorm.DB
	sizes *SizeReconciler
	log   *zap.Logger
}

func NewIntakeService(gdb *gorm.DB, sizes *SizeReconciler, log *zap.Logger) *IntakeService {
	return &IntakeService{db: gdb, sizes: sizes, log: log}
}

// SubmitChildIntake stores a parsed intake in one transaction: the parent
// account is found by email or provisioned, each child is created (or
// updated when the same parent already registered a child with that first
// name and birth date) and its sizes reconciled. A child whose size can't
// be determined fails the whole submission with *NoApplicableSizeError.
func (s *IntakeService) SubmitChildIntake(ctx context.Context, p ParentIntake, kids []ChildIntake) (IntakeResult, error) {
	var res IntakeResult
	if len(kids) == 0 {
		return res, ValidationErrors{"childName0": "at least one child is required"}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res = IntakeResult{}
		user, password, err := upsertUser(tx, p)
		if err != nil {
			return err
		}
		res.UserID = user.ID
		res.NewAccount = password != ""
		res.Password = password

		for _, k := range kids {
			child, err := upsertChild(tx, user.ID, k)
			if err != nil {
				return err
			}
			labels, err := s.sizes.ReconcileTx(tx, child.ID, k.Weight, k.Height)
			if err != nil {
				return err
			}
			res.Children = append(res.Children, IntakeChildResult{
				ChildID: child.ID,
				Name:    strings.TrimSpace(child.FirstName + " " + child.LastName),
				Sizes:   labels,
			})
		}
		return nil
	})
	if err != nil {
		metrics.IntakeSubmissions.WithLabelValues("child", intakeOutcome(err)).Inc()
		return IntakeResult{}, err
	}
	metrics.IntakeSubmissions.WithLabelValues("child", "ok").Inc()

	ids := make([]uint, len(res.Children))
	for i, c := range res.Children {
		ids[i] = c.ChildID
		if events.OnSizesReconciled != nil {
			events.OnSizesReconciled(c.ChildID, append([]string(nil), c.Sizes...))
		}
	}
	if events.OnIntakeSubmitted != nil {
		events.OnIntakeSubmitted(res.UserID, ids, res.NewAccount)
	}
	s.log.Info("child intake stored",
		zap.Uint("user_id", res.UserID),
		zap.Bool("new_account", res.NewAccount),
		zap.Int("children", len(res.Children)),
	)
	return res, nil
}

func intakeOutcome(err error) string {
	var verr ValidationErrors
	switch {
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, ErrNoApplicableSize):
		return "no_size"
	default:
		return "error"
	}
}

func upsertUser(tx *gorm.DB, p ParentIntake) (models.User, string, error) {
	var user models.User
	err := tx.Where("email = ?", p.Email).First(&user).Error
	switch {
	case err == nil:
		user.FirstName = p.FirstName
		user.LastName = p.LastName
		user.Phone = p.Phone
		user.PreferredContact = p.PreferredContact
		user.FacebookURL = p.FacebookURL
		user.InstagramURL = p.InstagramURL
		user.HasModeledBefore = p.HasModeledBefore
		user.Brands = p.Brands
		if err := tx.Save(&user).Error; err != nil {
			return user, "", fmt.Errorf("update user: %w", err)
		}
		return user, "", nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return user, "", fmt.Errorf("find user: %w", err)
	}

	password, err := GeneratePassword()
	if err != nil {
		return user, "", err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return user, "", err
	}
	user = models.User{
		Email:            p.Email,
		PasswordHash:     hash,
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		Phone:            p.Phone,
		PreferredContact: p.PreferredContact,
		FacebookURL:      p.FacebookURL,
		InstagramURL:     p.InstagramURL,
		HasModeledBefore: p.HasModeledBefore,
		Brands:           p.Brands,
	}
	if err := tx.Create(&user).Error; err != nil {
		return user, "", fmt.Errorf("create user: %w", err)
	}
	return user, password, nil
}

func upsertChild(tx *gorm.DB, userID uint, k ChildIntake) (models.Child, error) {
	var child models.Child
	err := tx.Where("user_id = ? AND first_name = ? AND birth_date = ?", userID, k.FirstName, k.BirthDate).
		First(&child).Error
	switch {
	case err == nil:
		child.LastName = k.LastName
		child.Gender = k.Gender
		if k.Photo != "" {
			child.Photo = k.Photo
		}
		if err := tx.Save(&child).Error; err != nil {
			return child, fmt.Errorf("update child: %w", err)
		}
		return child, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return child, fmt.Errorf("find child: %w", err)
	}

	child = models.Child{
		FirstName: k.FirstName,
		LastName:  k.LastName,
		BirthDate: k.BirthDate,
		Gender:    k.Gender,
		Photo:     k.Photo,
		UserID:    userID,
	}
	if err := tx.Create(&child).Error; err != nil {
		return child, fmt.Errorf("create child: %w", err)
	}
	return child, nil
}

// UpdateChildMeasurements is the dashboard/admin edit path: new
// measurements always go through reconciliation.
func (s *IntakeService) UpdateChildMeasurements(ctx context.Context, childID uint, weight, height string) ([]string, error) {
	return s.sizes.Reconcile(ctx, childID, weight, height)
}

// DeleteChild removes a child and its shoot approvals; its size rows go
// with it (ON DELETE CASCADE).
func (s *IntakeService) DeleteChild(ctx context.Context, childID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("model_type = ? AND model_id = ?", models.ModelTypeChild, childID).
			Delete(&models.ModelApproval{}).Error; err != nil {
			return fmt.Errorf("delete child approvals: %w", err)
		}
		res := tx.Delete(&models.Child{}, childID)
		if res.Error != nil {
			return fmt.Errorf("delete child %d: %w", childID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("child %d: %w", childID, gorm.ErrRecordNotFound)
		}
		return nil
	})
}

// AuthenticateParent checks a parent account's email and password.
func (s *IntakeService) AuthenticateParent(ctx context.Context, email, password string) (models.User, error) {
	e, _ := NormEmail(email)
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", e).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	if !CheckPassword(u.PasswordHash, password) {
		return models.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// ChangeParentPassword replaces a parent's password after checking the
// current one.
func (s *IntakeService) ChangeParentPassword(ctx context.Context, userID uint, current, next string) error {
	if len(next) < 8 {
		return ValidationErrors{"newPassword": "at least 8 characters"}
	}
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		return fmt.Errorf("user %d: %w", userID, err)
	}
	if !CheckPassword(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&u).Update("password_hash", hash).Error
}

// ChildOfParent reports a child as not found unless userID owns it.
func (s *IntakeService) ChildOfParent(ctx context.Context, childID, userID uint) error {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Child{}).
		Where("id = ? AND user_id = ?", childID, userID).
		Count(&n).Error
	if err != nil {
		return fmt.Errorf("find child: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("child %d: %w", childID, gorm.ErrRecordNotFound)
	}
	return nil
}

// GeneratePassword returns 16 random hex characters.
func GeneratePassword() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func HashPassword(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
