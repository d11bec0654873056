package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleTourist Role = "TOURIST"
	RoleGuide   Role = "GUIDE"
	RoleAdmin   Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleTourist, RoleGuide, RoleAdmin:
		return true
	}
	return false
}

// GuideStatus is the admin approval state of a guide profile.
type GuideStatus string

const (
	GuidePending  GuideStatus = "PENDING"
	GuideVerified GuideStatus = "VERIFIED"
	GuideRejected GuideStatus = "REJECTED"
)

// Terminal reports whether an admin has already decided on the profile.
func (s GuideStatus) Terminal() bool {
	return s == GuideVerified || s == GuideRejected
}

// ParseGuideStatus accepts any casing; ok is false for unknown values.
func ParseGuideStatus(v string) (GuideStatus, bool) {
	s := GuideStatus(strings.ToUpper(strings.TrimSpace(v)))
	switch s {
	case GuidePending, GuideVerified, GuideRejected:
		return s, true
	}
	return "", false
}

type Purpose string

const (
	PurposeRegistration  Purpose = "registration"
	PurposeResetPassword Purpose = "reset_password"
)

type Account struct {
	ID           uuid.UUID     `json:"id"`
	Email        string        `json:"email"`
	Username     string        `json:"-"`
	FullName     string        `json:"fullName"`
	PhoneNumber  *string       `json:"phoneNumber"`
	Photo        *string       `json:"photo"`
	Role         Role          `json:"role"`
	Verified     bool          `json:"verified"`
	Active       bool          `json:"isActive"`
	IsStaff      bool          `json:"-"`
	IsSuperuser  bool          `json:"-"`
	PasswordHash string        `json:"-"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	GuideProfile *GuideProfile `json:"guideProfile"`
}

// Normalize enforces the write-path invariants: lower-cased email, username
// defaulting to the email, and elevated accounts always carrying ADMIN.
func (a *Account) Normalize() {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	a.FullName = strings.TrimSpace(a.FullName)
	if strings.TrimSpace(a.Username) == "" {
		a.Username = a.Email
	}
	if a.IsStaff || a.IsSuperuser {
		a.Role = RoleAdmin
	}
}

// IsAdmin reports admin capability.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin || a.IsStaff || a.IsSuperuser
}

func (a *Account) HasGuideProfile() bool {
	return a.GuideProfile != nil
}

type GuideProfile struct {
	ID              uuid.UUID   `json:"-"`
	AccountID       uuid.UUID   `json:"-"`
	LicenseNumber   string      `json:"licenseNumber"`
	LicenseIssuedBy string      `json:"licenseIssuedBy"`
	Bio             string      `json:"bio"`
	Status          GuideStatus `json:"verificationStatus"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// OneTimeCode is a hashed OTP. Reset-password codes additionally carry the
// hash of the reset token issued once the code itself was verified.
type OneTimeCode struct {
	ID                  uuid.UUID
	AccountID           uuid.UUID
	Purpose             Purpose
	CodeHash            string
	CreatedAt           time.Time
	ExpiresAt           time.Time
	Used                bool
	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time
}

func (c *OneTimeCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

func (c *OneTimeCode) ResetTokenValid(now time.Time) bool {
	return c.ResetTokenHash != nil && c.ResetTokenExpiresAt != nil && now.Before(*c.ResetTokenExpiresAt)
}

type TokenPair struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

type RegisterResult struct {
	AccountID uuid.UUID `json:"userId"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
}

type VerifyResult struct {
	Account *Account   `json:"user"`
	Tokens  *TokenPair `json:"tokens,omitempty"`
}

type LoginResult struct {
	Account *Account   `json:"user"`
	Tokens  *TokenPair `json:"tokens"`
}

// Page is a limit/offset window over a listing.
type Page struct {
	Limit  int
	Offset int
}
