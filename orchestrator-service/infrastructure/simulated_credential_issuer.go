package infrastructure

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/northcart/order-system/orchestrator-service/domain"
	"github.com/northcart/order-system/shared/models"
)

// keyTTL is how long issued API keys stay valid
const keyTTL = 365 * 24 * time.Hour

// SimulatedCredentialIssuer issues API keys for new accounts. Only the
// masked form of the key leaves the issuer.
type SimulatedCredentialIssuer struct{}

// NewSimulatedCredentialIssuer creates a credential issuer
func NewSimulatedCredentialIssuer() *SimulatedCredentialIssuer {
	return &SimulatedCredentialIssuer{}
}

// IssueAPIKey mints a read-scoped API key for the user
func (s *SimulatedCredentialIssuer) IssueAPIKey(ctx context.Context, userID models.ID) (domain.APIKey, error) {
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		return domain.APIKey{}, errors.Wrap(err, "failed to generate key material")
	}

	now := time.Now()
	apiKey := "sk_" + hex.EncodeToString(secret)

	return domain.APIKey{
		KeyID:     fmt.Sprintf("key_%d", now.UnixMilli()),
		UserID:    userID,
		MaskedKey: apiKey[:12] + "...",
		Scope:     "read",
		Status:    "active",
		CreatedAt: now,
		ExpiresAt: now.Add(keyTTL),
	}, nil
}
