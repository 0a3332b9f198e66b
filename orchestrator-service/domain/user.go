package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/northcart/order-system/shared/models"
)

// Validation messages surfaced to registration callers.
const (
	msgInvalidEmail  = "Invalid email address"
	msgShortPassword = "Password must be at least 8 characters"
	msgShortName     = "Name must be at least 2 characters"
	msgEmailTaken    = "Email already registered"
)

// NotificationPreferences selects notification channels
type NotificationPreferences struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
	SMS   bool `json:"sms"`
}

// Preferences holds per-user settings
type Preferences struct {
	Notifications NotificationPreferences `json:"notifications"`
	Language      string                  `json:"language"`
	Timezone      string                  `json:"timezone"`
	Theme         string                  `json:"theme"`
}

// DefaultPreferences returns the settings applied when registration
// supplies none.
func DefaultPreferences() Preferences {
	return Preferences{
		Notifications: NotificationPreferences{Email: true},
		Language:      "en",
		Timezone:      "UTC",
		Theme:         "light",
	}
}

// Merge overlays the non-empty fields of overrides on top of p.
func (p Preferences) Merge(overrides *Preferences) Preferences {
	if overrides == nil {
		return p
	}

	merged := p
	merged.Notifications = overrides.Notifications
	if overrides.Language != "" {
		merged.Language = overrides.Language
	}
	if overrides.Timezone != "" {
		merged.Timezone = overrides.Timezone
	}
	if overrides.Theme != "" {
		merged.Theme = overrides.Theme
	}
	return merged
}

// UserInput is the immutable payload a registration saga starts with.
// Preferences are optional; defaults are merged in during SetupPreferences.
type UserInput struct {
	Email       string       `json:"email"`
	Password    string       `json:"password"`
	Name        string       `json:"name"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// UserValidation is the output of the ValidateUser step
type UserValidation struct {
	Email       string    `json:"email"`
	ValidatedAt time.Time `json:"validated_at"`
}

// ValidateUser checks registration fields and returns every violation
// found. Email uniqueness is checked separately against the directory.
func ValidateUser(email, password, name string) []string {
	var violations []string

	if email == "" || !strings.Contains(email, "@") {
		violations = append(violations, msgInvalidEmail)
	}
	if len(password) < 8 {
		violations = append(violations, msgShortPassword)
	}
	if len(strings.TrimSpace(name)) < 2 {
		violations = append(violations, msgShortName)
	}

	return violations
}

// EmailTakenViolation is the violation recorded when the directory already
// knows the email.
func EmailTakenViolation() string {
	return msgEmailTaken
}

// PasswordDigest is the output of the HashPassword step
type PasswordDigest struct {
	Algorithm string    `json:"algorithm"`
	Digest    string    `json:"digest"`
	HashedAt  time.Time `json:"hashed_at"`
}

// HashPassword derives the stored password digest. Pure function of the
// password.
func HashPassword(password string) PasswordDigest {
	sum := sha256.Sum256([]byte(password))
	return PasswordDigest{
		Algorithm: "sha256",
		Digest:    hex.EncodeToString(sum[:]),
		HashedAt:  time.Now(),
	}
}

// UserAccount is the output of the CreateUser step
type UserAccount struct {
	UserID    models.ID `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

// UserDirectory stores user accounts. Delete compensates a partially
// completed registration.
type UserDirectory interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, email, name, passwordDigest string) (UserAccount, error)
	Delete(ctx context.Context, userID models.ID) error
}

// WelcomeEmail is the output of the SendWelcomeEmail step
type WelcomeEmail struct {
	EmailID string    `json:"email_id"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Status  string    `json:"status"`
	SentAt  time.Time `json:"sent_at"`
}

// APIKey is the output of the GenerateApiKey step. Only the masked form is
// retained in the outcome.
type APIKey struct {
	KeyID     string    `json:"key_id"`
	UserID    models.ID `json:"user_id"`
	MaskedKey string    `json:"masked_key"`
	Scope     string    `json:"scope"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CredentialIssuer issues API credentials for new accounts
type CredentialIssuer interface {
	IssueAPIKey(ctx context.Context, userID models.ID) (APIKey, error)
}

// PreferenceProfile is the output of the SetupPreferences step
type PreferenceProfile struct {
	UserID      models.ID   `json:"user_id"`
	Preferences Preferences `json:"preferences"`
	SetupAt     time.Time   `json:"setup_at"`
}

// PreferenceStore persists per-user preference profiles
type PreferenceStore interface {
	Apply(ctx context.Context, userID models.ID, preferences Preferences) (PreferenceProfile, error)
}
