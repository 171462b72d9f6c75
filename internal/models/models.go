package models

import (
	"time"

	"gorm.io/datatypes"
)

// User is a parent/guardian account, provisioned on first intake.
type User struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null" json:"-"`
	IsAdmin      bool

	FirstName        string
	LastName         string
	Phone            string
	PreferredContact string // email | phone | text
	FacebookURL      string
	InstagramURL     string
	HasModeledBefore bool
	Brands           string

	Children []Child
	Adults   []Adult
}

// Child is a child model. Weight is in lb, height in inches.
type Child struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	FirstName string `gorm:"not null"`
	LastName  string
	BirthDate time.Time
	Gender    string `gorm:"not null"`
	Weight    float64
	Height    float64
	Photo     string

	// CurrentSize mirrors the primary ChildSize row.
	CurrentSize string `gorm:"index"`

	UserID uint `gorm:"index"`
	User   User

	Sizes []ChildSize `gorm:"constraint:OnDelete:CASCADE"`
}

// ChildSize is one size label assigned to a child. At most one row per
// child has IsPrimary set (enforced by ux_child_sizes_primary).
type ChildSize struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	ChildID   uint   `gorm:"not null;index"`
	Size      string `gorm:"not null;index"`
	IsPrimary bool   `gorm:"not null;default:false"`
}

type Adult struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	FirstName string `gorm:"not null"`
	LastName  string `gorm:"not null"`
	Gender    string `gorm:"not null"`
	Size      string `gorm:"not null"`
	Photo     string
	BirthDate *time.Time

	UserID uint `gorm:"not null;index"`
}

// Client is a brand that reviews models for its shoots.
type Client struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Name             string `gorm:"not null"`
	Email            string `gorm:"uniqueIndex;not null"`
	PasswordHash     string `gorm:"not null" json:"-"`
	IneligibleBrands datatypes.JSONSlice[string]
	IsActive         bool `gorm:"default:true"`

	Shoots []Shoot `gorm:"constraint:OnDelete:CASCADE"`
}

type Shoot struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	ClientID uint   `gorm:"not null;index"`
	Name     string `gorm:"not null"`
	Date     *time.Time
	// ShareToken identifies the shoot in client-facing links.
	ShareToken string `gorm:"uniqueIndex;not null"`

	Approvals []ModelApproval `gorm:"constraint:OnDelete:CASCADE"`
}

const (
	ModelTypeChild = "child"
	ModelTypeAdult = "adult"
)

// ModelApproval: Approved nil = pending, false = disapproved, true = approved.
type ModelApproval struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	ShootID   uint   `gorm:"not null;uniqueIndex:ux_approval_model,priority:1"`
	ModelType string `gorm:"not null;uniqueIndex:ux_approval_model,priority:2"`
	ModelID   uint   `gorm:"not null;uniqueIndex:ux_approval_model,priority:3"`
	Approved  *bool
	Notes     string
}
