package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/anniejean/castingdesk/internal/models"
)

// ErrInvalidCredentials is returned by client and parent login for any
// mismatch.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ShootService manages clients, their shoots and per-shoot model approvals.
type ShootService struct {
	db *gorm.DB
}

func NewShootService(gdb *gorm.DB) *ShootService {
	return &ShootService{db: gdb}
}

// CreateClient registers a client with a bcrypt-hashed password.
func (s *ShootService) CreateClient(ctx context.Context, name, email, password string, ineligible []string) (models.Client, error) {
	verr := ValidationErrors{}
	name = strings.TrimSpace(name)
	if name == "" {
		verr.add("name", "required")
	}
	e, ok := NormEmail(email)
	if !ok || e == "" {
		verr.add("email", "invalid email address")
	}
	if len(password) < 8 {
		verr.add("password", "at least 8 characters")
	}
	if err := verr.orNil(); err != nil {
		return models.Client{}, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return models.Client{}, err
	}
	c := models.Client{
		Name:             name,
		Email:            e,
		PasswordHash:     hash,
		IneligibleBrands: cleanBrands(ineligible),
		IsActive:         true,
	}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return models.Client{}, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

// UpdateClient changes a client's name, login email and ineligible brands.
// active nil leaves the active flag alone.
func (s *ShootService) UpdateClient(ctx context.Context, id uint, name, email string, ineligible []string, active *bool) (models.Client, error) {
	verr := ValidationErrors{}
	name = strings.TrimSpace(name)
	if name == "" {
		verr.add("name", "required")
	}
	e, ok := NormEmail(email)
	if !ok || e == "" {
		verr.add("email", "invalid email address")
	}
	if err := verr.orNil(); err != nil {
		return models.Client{}, err
	}

	var c models.Client
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&c, id).Error; err != nil {
			return fmt.Errorf("client %d: %w", id, err)
		}
		c.Name = name
		c.Email = e
		c.IneligibleBrands = cleanBrands(ineligible)
		if active != nil {
			c.IsActive = *active
		}
		if err := tx.Save(&c).Error; err != nil {
			return fmt.Errorf("update client: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Client{}, err
	}
	return c, nil
}

// ResetClientPassword replaces a client's password hash.
func (s *ShootService) ResetClientPassword(ctx context.Context, id uint, password string) error {
	if len(password) < 8 {
		return ValidationErrors{"password": "at least 8 characters"}
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.Client{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		return fmt.Errorf("reset client password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("client %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// DeleteClient removes a client with its shoots and their approvals.
func (s *ShootService) DeleteClient(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shootIDs := tx.Model(&models.Shoot{}).Select("id").Where("client_id = ?", id)
		if err := tx.Where("shoot_id IN (?)", shootIDs).Delete(&models.ModelApproval{}).Error; err != nil {
			return fmt.Errorf("delete approvals: %w", err)
		}
		if err := tx.Where("client_id = ?", id).Delete(&models.Shoot{}).Error; err != nil {
			return fmt.Errorf("delete shoots: %w", err)
		}
		res := tx.Delete(&models.Client{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete client %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("client %d: %w", id, gorm.ErrRecordNotFound)
		}
		return nil
	})
}

func cleanBrands(in []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, b := range in {
		b = strings.TrimSpace(b)
		if b == "" || seen[strings.ToLower(b)] {
			continue
		}
		seen[strings.ToLower(b)] = true
		out = append(out, b)
	}
	return out
}

// AuthenticateClient checks an active client's email and password.
func (s *ShootService) AuthenticateClient(ctx context.Context, email, password string) (models.Client, error) {
	e, _ := NormEmail(email)
	var c models.Client
	err := s.db.WithContext(ctx).Where("email = ? AND is_active = ?", e, true).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Client{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Client{}, fmt.Errorf("find client: %w", err)
	}
	if !CheckPassword(c.PasswordHash, password) {
		return models.Client{}, ErrInvalidCredentials
	}
	return c, nil
}

// CreateShoot adds a shoot with a fresh share token.
func (s *ShootService) CreateShoot(ctx context.Context, clientID uint, name string, date *time.Time) (models.Shoot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Shoot{}, ValidationErrors{"name": "required"}
	}
	sh := models.Shoot{
		ClientID:   clientID,
		Name:       name,
		Date:       date,
		ShareToken: uuid.NewString(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Client{}).Where("id = ?", clientID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("client %d: %w", clientID, gorm.ErrRecordNotFound)
		}
		return tx.Create(&sh).Error
	})
	if err != nil {
		return models.Shoot{}, err
	}
	return sh, nil
}

// UpdateShoot renames or reschedules a shoot; the share token is kept.
func (s *ShootService) UpdateShoot(ctx context.Context, id uint, name string, date *time.Time) (models.Shoot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Shoot{}, ValidationErrors{"name": "required"}
	}
	var sh models.Shoot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sh, id).Error; err != nil {
			return fmt.Errorf("shoot %d: %w", id, err)
		}
		sh.Name = name
		sh.Date = date
		return tx.Save(&sh).Error
	})
	if err != nil {
		return models.Shoot{}, err
	}
	return sh, nil
}

// DeleteShoot removes a shoot and its approvals.
func (s *ShootService) DeleteShoot(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("shoot_id = ?", id).Delete(&models.ModelApproval{}).Error; err != nil {
			return fmt.Errorf("delete approvals: %w", err)
		}
		res := tx.Delete(&models.Shoot{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete shoot %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("shoot %d: %w", id, gorm.ErrRecordNotFound)
		}
		return nil
	})
}

func (s *ShootService) Shoot(ctx context.Context, id uint) (models.Shoot, error) {
	var sh models.Shoot
	err := s.db.WithContext(ctx).First(&sh, id).Error
	return sh, err
}

func (s *ShootService) ShootByToken(ctx context.Context, token string) (models.Shoot, error) {
	var sh models.Shoot
	if _, err := uuid.Parse(token); err != nil {
		return sh, fmt.Errorf("shoot token: %w", gorm.ErrRecordNotFound)
	}
	err := s.db.WithContext(ctx).Where("share_token = ?", token).First(&sh).Error
	return sh, err
}

// SetApproval records a decision for one model on one shoot, replacing any
// earlier one. approved nil resets the decision to pending.
func (s *ShootService) SetApproval(ctx context.Context, shootID uint, modelType string, modelID uint, approved *bool, notes string) (models.ModelApproval, error) {
	var target any
	switch modelType {
	case models.ModelTypeChild:
		target = &models.Child{}
	case models.ModelTypeAdult:
		target = &models.Adult{}
	default:
		return models.ModelApproval{}, ValidationErrors{"modelType": "must be child or adult"}
	}

	a := models.ModelApproval{
		ShootID:   shootID,
		ModelType: modelType,
		ModelID:   modelID,
		Approved:  approved,
		Notes:     strings.TrimSpace(notes),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Shoot{}, shootID).Error; err != nil {
			return fmt.Errorf("shoot %d: %w", shootID, err)
		}
		if err := tx.Select("id").First(target, modelID).Error; err != nil {
			return fmt.Errorf("%s %d: %w", modelType, modelID, err)
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shoot_id"}, {Name: "model_type"}, {Name: "model_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"approved", "notes", "updated_at"}),
		}).Create(&a).Error; err != nil {
			return fmt.Errorf("save approval: %w", err)
		}
		var saved models.ModelApproval
		if err := tx.Where("shoot_id = ? AND model_type = ? AND model_id = ?", shootID, modelType, modelID).
			First(&saved).Error; err != nil {
			return err
		}
		a = saved
		return nil
	})
	if err != nil {
		return models.ModelApproval{}, err
	}
	return a, nil
}

// Approvals lists every decision recorded for a shoot.
func (s *ShootService) Approvals(ctx context.Context, shootID uint) ([]models.ModelApproval, error) {
	out := []models.ModelApproval{}
	err := s.db.WithContext(ctx).
		Where("shoot_id = ?", shootID).
		Order("model_type asc, model_id asc").
		Find(&out).Error
	return out, err
}
