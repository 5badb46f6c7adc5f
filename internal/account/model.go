package account

import "time"

// AuthProvider identifies how an account authenticates.
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "LOCAL"
	ProviderKakao  AuthProvider = "KAKAO"
	ProviderGoogle AuthProvider = "GOOGLE"
	ProviderNaver  AuthProvider = "NAVER"
)

// Role is the authorization role of an account.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Gender is the self-declared gender on a profile.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOther  Gender = "OTHER"
)

// Valid reports whether provider is one of the known providers.
func (provider AuthProvider) Valid() bool {
	switch provider {
	case ProviderLocal, ProviderKakao, ProviderGoogle, ProviderNaver:
		return true
	default:
		return false
	}
}

// Valid reports whether gender is one of the known values.
func (gender Gender) Valid() bool {
	switch gender {
	case GenderMale, GenderFemale, GenderOther:
		return true
	default:
		return false
	}
}

// Account is an immutable snapshot of an account row. Mutators return a modified copy.
type Account struct {
	ID             int64        `json:"id"`
	Username       string       `json:"username"`
	PasswordRecord string       `json:"-"`
	Name           string       `json:"name,omitempty"`
	PhoneNumber    string       `json:"phone_number,omitempty"`
	Provider       AuthProvider `json:"provider"`
	ProviderID     string       `json:"provider_id,omitempty"`
	Role           Role         `json:"role"`
	Active         bool         `json:"active"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// WithPasswordRecord returns a copy carrying a new password record.
func (account Account) WithPasswordRecord(record string) Account {
	account.PasswordRecord = record
	return account
}

// Deactivated returns an inactive copy.
func (account Account) Deactivated() Account {
	account.Active = false
	return account
}

// Activated returns an active copy.
func (account Account) Activated() Account {
	account.Active = true
	return account
}

// Profile is an immutable snapshot of an account's public profile.
type Profile struct {
	ID              int64      `json:"id"`
	AccountID       int64      `json:"account_id"`
	Nickname        string     `json:"nickname"`
	ProfileImageURL string     `json:"profile_image_url,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	BirthDate       *time.Time `json:"birth_date,omitempty"`
	Gender          Gender     `json:"gender,omitempty"`
	Bio             string     `json:"bio,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ProfileUpdate carries optional profile changes; nil fields are left untouched.
type ProfileUpdate struct {
	Nickname        *string
	ProfileImageURL *string
	Phone           *string
	Bio             *string
	BirthDate       *time.Time
	Gender          *Gender
	// ClearBirthDate removes the stored birth date and wins over BirthDate.
	ClearBirthDate  bool
}

// LoginResponse is returned by every successful authentication.
type LoginResponse struct {
	Token            string `json:"token"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	AccountID        int64  `json:"account_id"`
	Username         string `json:"username"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

// RegisterRequest is the payload of a local sign-up.
type RegisterRequest struct {
	Username    string `json:"id"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

// SocialIdentity is the outcome of a completed OAuth handshake.
type SocialIdentity struct {
	Provider   AuthProvider
	ProviderID string
	Nickname   string
}
