package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor is the authenticated caller of a request.
type Actor struct {
	UserID   *int64 `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Method   string `json:"method"`
}

const (
	AuthMethodPassword = "password"
	AuthMethodOTP      = "otp"

	RoleStaff = "staff"
)

// Label is a human readable identity for logs.
func (a *Actor) Label() string {
	if a == nil {
		return ""
	}
	if a.Username != "" {
		return a.Username
	}
	return a.Phone
}

type OTPChallenge struct {
	ID        int64
	Phone     string
	CodeHash  string
	Expiry    time.Time
	Used      bool
	Attempts  int
	CreatedAt time.Time
}

const (
	MaxOTPAttempts = 5
	OTPCodeLength  = 6
)

func (o *OTPChallenge) IsExpired(now time.Time) bool {
	return !now.Before(o.Expiry)
}

func (o *OTPChallenge) CanAttempt(now time.Time) bool {
	return !o.Used && !o.IsExpired(now) && o.Attempts < MaxOTPAttempts
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Username = strings.ToLower(strings.TrimSpace(r.Username))
}

func (r *LoginRequest) Validate() error {
	if r.Username == "" {
		return NewValidationError("username", "username is required")
	}
	if r.Password == "" {
		return NewValidationError("password", "password is required")
	}
	return nil
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

var usernameRegex = regexp.MustCompile(`^[a-z0-9._-]{3,64}$`)

func (r *CreateUserRequest) Normalize() {
	r.Username = strings.ToLower(strings.TrimSpace(r.Username))
}

func (r *CreateUserRequest) Validate() error {
	if !usernameRegex.MatchString(r.Username) {
		return NewValidationError("username", "username must be 3-64 characters of a-z, 0-9, '.', '_' or '-'")
	}
	if len(r.Password) < 8 {
		return NewValidationError("password", "password must be at least 8 characters")
	}
	return nil
}

type OTPRequest struct {
	Phone string `json:"phone"`
}

type OTPVerify struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

var otpCodeRegex = regexp.MustCompile(fmt.Sprintf(`^\d{%d}$`, OTPCodeLength))

func (r *OTPVerify) Validate() error {
	if r.Phone == "" {
		return NewValidationError("phone", "phone is required")
	}
	if !otpCodeRegex.MatchString(r.Code) {
		return NewValidationError("code", fmt.Sprintf("code must be %d digits", OTPCodeLength))
	}
	return nil
}

type Session struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Actor       *Actor `json:"actor"`
}

type OTPRequestResponse struct {
	Message   string `json:"message"`
	ExpiresIn int64  `json:"expires_in"`
	DevCode   string `json:"dev_code,omitempty"`
}
