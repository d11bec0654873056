package domain

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type RegisterRequest struct {
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required"`
	FullName        string `json:"fullName" validate:"required,max=150"`
	PhoneNumber     string `json:"phoneNumber" validate:"required,len=10,numeric"`
	Role            Role   `json:"role" validate:"required,oneof=TOURIST GUIDE"`
	LicenseNumber   string `json:"licenseNumber" validate:"required_if=Role GUIDE,max=100"`
	LicenseIssuedBy string `json:"licenseIssuedBy" validate:"required_if=Role GUIDE,max=150"`
}

func (r *RegisterRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FullName = strings.TrimSpace(r.FullName)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.Role = Role(strings.ToUpper(strings.TrimSpace(string(r.Role))))
	r.LicenseNumber = strings.TrimSpace(r.LicenseNumber)
	r.LicenseIssuedBy = strings.TrimSpace(r.LicenseIssuedBy)
}

func (r *RegisterRequest) Validate() error {
	if err := check(r); err != nil {
		return err
	}
	return ValidatePassword("password", r.Password, r.Email, r.FullName)
}

type VerifyOTPRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
	OTP    string `json:"otp" validate:"required,len=6,numeric"`
}

func (r *VerifyOTPRequest) Validate() error { return check(r) }

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r *EmailRequest) Normalize() { r.Email = strings.ToLower(strings.TrimSpace(r.Email)) }

func (r *EmailRequest) Validate() error { return check(r) }

type VerifyResetOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

func (r *VerifyResetOTPRequest) Normalize() { r.Email = strings.ToLower(strings.TrimSpace(r.Email)) }

func (r *VerifyResetOTPRequest) Validate() error { return check(r) }

type ResetPasswordRequest struct {
	Email           string `json:"email" validate:"required,email"`
	ResetToken      string `json:"resetToken" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

func (r *ResetPasswordRequest) Normalize() { r.Email = strings.ToLower(strings.TrimSpace(r.Email)) }

// Validate checks shape, the confirmation match and then password strength.
func (r *ResetPasswordRequest) Validate() error {
	if err := check(r); err != nil {
		return err
	}
	if r.NewPassword != r.ConfirmPassword {
		return ErrMismatch
	}
	return ValidatePassword("newPassword", r.NewPassword, r.Email)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Normalize() { r.Email = strings.ToLower(strings.TrimSpace(r.Email)) }

func (r *LoginRequest) Validate() error { return check(r) }

type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

func (r *RefreshRequest) Validate() error { return check(r) }

// UpdateProfileRequest is a partial update of the caller's own account.
// Nil fields are left alone; an empty phone number or photo clears it.
type UpdateProfileRequest struct {
	FullName    *string `json:"fullName" validate:"omitempty,max=150"`
	PhoneNumber *string `json:"phoneNumber" validate:"omitempty,len=10,numeric"`
	Photo       *string `json:"photo" validate:"omitempty,url,max=500"`
}

func (r *UpdateProfileRequest) Normalize() {
	trimPtr(r.FullName)
	trimPtr(r.PhoneNumber)
	trimPtr(r.Photo)
}

func (r *UpdateProfileRequest) Validate() error {
	if err := check(r); err != nil {
		return err
	}
	if r.FullName != nil && *r.FullName == "" {
		return NewValidationError("fullName", "This field may not be blank.")
	}
	return nil
}

// Apply copies the set fields onto a.
func (r *UpdateProfileRequest) Apply(a *Account) {
	if r.FullName != nil {
		a.FullName = *r.FullName
	}
	if r.PhoneNumber != nil {
		a.PhoneNumber = nilIfEmpty(*r.PhoneNumber)
	}
	if r.Photo != nil {
		a.Photo = nilIfEmpty(*r.Photo)
	}
}

// AdminUpdateUserRequest extends the profile fields with the flags only an
// admin may change.
type AdminUpdateUserRequest struct {
	UpdateProfileRequest
	Role     *Role `json:"role"`
	Verified *bool `json:"verified"`
	Active   *bool `json:"isActive"`
}

func (r *AdminUpdateUserRequest) Normalize() {
	r.UpdateProfileRequest.Normalize()
	if r.Role != nil {
		role := Role(strings.ToUpper(strings.TrimSpace(string(*r.Role))))
		r.Role = &role
	}
}

func (r *AdminUpdateUserRequest) Validate() error {
	if err := r.UpdateProfileRequest.Validate(); err != nil {
		return err
	}
	if r.Role != nil && !r.Role.Valid() {
		return NewValidationError("role", "Must be one of: TOURIST GUIDE ADMIN.")
	}
	return nil
}

// Apply copies the set fields onto a. Moving an account into or out of the
// GUIDE role is refused since the guide profile follows registration, and
// staff accounts always stay ADMIN.
func (r *AdminUpdateUserRequest) Apply(a *Account) error {
	if r.Role != nil && *r.Role != a.Role {
		if *r.Role == RoleGuide || a.Role == RoleGuide {
			return NewValidationError("role", "The GUIDE role can only be obtained through guide registration.")
		}
		if (a.IsStaff || a.IsSuperuser) && *r.Role != RoleAdmin {
			return NewValidationError("role", "Staff accounts always carry the ADMIN role.")
		}
		a.Role = *r.Role
	}
	r.UpdateProfileRequest.Apply(a)
	if r.Verified != nil {
		a.Verified = *r.Verified
	}
	if r.Active != nil {
		a.Active = *r.Active
	}
	return nil
}

type UpdateGuideProfileRequest struct {
	Bio *string `json:"bio" validate:"omitempty,max=2000"`
}

func (r *UpdateGuideProfileRequest) Normalize() { trimPtr(r.Bio) }

func (r *UpdateGuideProfileRequest) Validate() error { return check(r) }

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type GuideAction string

const (
	ActionApprove GuideAction = "approve"
	ActionReject  GuideAction = "reject"
)

type GuideDecisionRequest struct {
	Action GuideAction `json:"action" validate:"required,oneof=approve reject"`
	Reason string      `json:"reason" validate:"max=1000"`
}

func (r *GuideDecisionRequest) Normalize() {
	r.Action = GuideAction(strings.ToLower(strings.TrimSpace(string(r.Action))))
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *GuideDecisionRequest) Validate() error {
	if err := check(r); err != nil {
		return err
	}
	if r.Action == ActionApprove && r.Reason != "" {
		return NewValidationError("reason", "A reason can only be given when rejecting.")
	}
	return nil
}

// check runs the struct tags and reports the first violation as a
// field-scoped validation error.
func check(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return NewValidationError(fe.Field(), message(fe))
	}
	return NewValidationError("", err.Error())
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "required_if":
		if fe.Field() == "licenseNumber" {
			return "License number is required for guides"
		}
		return "License issuing authority is required for guides"
	case "email":
		return "Enter a valid email address."
	case "len":
		if fe.Field() == "phoneNumber" {
			return "Phone number must be exactly 10 digits."
		}
		return "Ensure this field has exactly " + fe.Param() + " characters."
	case "numeric":
		if fe.Field() == "phoneNumber" {
			return "Phone number must be exactly 10 digits."
		}
		return "Only digits are allowed."
	case "oneof":
		return "Must be one of: " + fe.Param() + "."
	case "uuid":
		return "Must be a valid UUID."
	case "url":
		return "Enter a valid URL."
	case "max":
		return "Ensure this field has no more than " + fe.Param() + " characters."
	}
	return "Invalid value."
}

const minPasswordLength = 8

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "12345678": {}, "123456789": {},
	"1234567890": {}, "qwerty123": {}, "qwertyuiop": {}, "iloveyou": {}, "11111111": {},
	"abc12345": {}, "letmein1": {}, "welcome1": {}, "admin123": {}, "passw0rd": {},
}

// ValidatePassword applies the strength policy: minimum length, not purely
// numeric, not a common password and not close to the user's email or name.
func ValidatePassword(field, password string, attrs ...string) error {
	if len([]rune(password)) < minPasswordLength {
		return NewValidationError(field, "This password is too short. It must contain at least 8 characters.")
	}
	if isNumeric(password) {
		return NewValidationError(field, "This password is entirely numeric.")
	}
	lowered := strings.ToLower(password)
	if _, ok := commonPasswords[lowered]; ok {
		return NewValidationError(field, "This password is too common.")
	}
	for _, attr := range attrs {
		for _, part := range similarityParts(attr) {
			if len(part) >= 3 && (strings.Contains(lowered, part) && len(part)*10 >= len(lowered)*7) {
				return NewValidationError(field, "The password is too similar to your personal information.")
			}
		}
	}
	return nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func similarityParts(attr string) []string {
	attr = strings.ToLower(strings.TrimSpace(attr))
	if attr == "" {
		return nil
	}
	parts := strings.FieldsFunc(attr, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return append(parts, attr)
}
