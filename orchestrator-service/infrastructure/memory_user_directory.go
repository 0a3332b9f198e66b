package infrastructure

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/northcart/order-system/orchestrator-service/domain"
	"github.com/northcart/order-system/shared/models"
)

// MemoryUserDirectory is an in-memory account store. Email lookups are
// case insensitive.
type MemoryUserDirectory struct {
	mu      sync.Mutex
	byID    map[models.ID]domain.UserAccount
	byEmail map[string]models.ID
}

// NewMemoryUserDirectory creates an empty user directory
func NewMemoryUserDirectory() *MemoryUserDirectory {
	return &MemoryUserDirectory{
		byID:    make(map[models.ID]domain.UserAccount),
		byEmail: make(map[string]models.ID),
	}
}

// EmailExists reports whether an account already uses the email
func (d *MemoryUserDirectory) EmailExists(ctx context.Context, email string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, exists := d.byEmail[normalizeEmail(email)]
	return exists, nil
}

// Create stores a new active account
func (d *MemoryUserDirectory) Create(ctx context.Context, email, name, passwordDigest string) (domain.UserAccount, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := normalizeEmail(email)
	if _, exists := d.byEmail[key]; exists {
		return domain.UserAccount{}, errors.Errorf("email %s is already registered", email)
	}

	account := domain.UserAccount{
		UserID:    models.GenerateUUID(),
		Email:     email,
		Name:      name,
		Status:    "active",
		Roles:     []string{"user"},
		CreatedAt: time.Now(),
	}

	d.byID[account.UserID] = account
	d.byEmail[key] = account.UserID
	return account, nil
}

// Delete removes an account, compensating a failed registration
func (d *MemoryUserDirectory) Delete(ctx context.Context, userID models.ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	account, ok := d.byID[userID]
	if !ok {
		return errors.Errorf("unknown user %s", userID)
	}

	delete(d.byID, userID)
	delete(d.byEmail, normalizeEmail(account.Email))
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
