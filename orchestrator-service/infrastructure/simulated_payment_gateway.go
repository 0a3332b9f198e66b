package infrastructure

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/northcart/order-system/orchestrator-service/domain"
	"github.com/northcart/order-system/shared/models"
)

// DeclinedCardToken always triggers a decline, which gives integration
// environments a deterministic failure path.
const DeclinedCardToken = "tok_declined"

// SimulatedPaymentGateway is an in-memory payment backend. Besides the
// deterministic decline token it declines a configurable fraction of
// charges at random.
type SimulatedPaymentGateway struct {
	mu          sync.Mutex
	rng         *rand.Rand
	declineRate float64
}

// NewSimulatedPaymentGateway creates a payment gateway with the given
// random decline rate (0 disables random declines)
func NewSimulatedPaymentGateway(declineRate float64) *SimulatedPaymentGateway {
	return &SimulatedPaymentGateway{
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		declineRate: declineRate,
	}
}

// Charge captures the payment or fails with domain.ErrPaymentDeclined
func (g *SimulatedPaymentGateway) Charge(ctx context.Context, orderID models.ID, amount float64, method domain.PaymentMethod) (domain.PaymentReceipt, error) {
	if method.CardToken != nil && *method.CardToken == DeclinedCardToken {
		return domain.PaymentReceipt{}, domain.ErrPaymentDeclined
	}

	g.mu.Lock()
	declined := g.declineRate > 0 && g.rng.Float64() < g.declineRate
	g.mu.Unlock()
	if declined {
		return domain.PaymentReceipt{}, domain.ErrPaymentDeclined
	}

	methodType := method.Type
	if methodType == "" {
		methodType = "credit_card"
	}

	return domain.PaymentReceipt{
		TransactionID: fmt.Sprintf("txn_%d_%s", time.Now().UnixMilli(), models.GenerateUUID().String()[:8]),
		OrderID:       orderID,
		Amount:        amount,
		Currency:      "USD",
		Method:        methodType,
		ProcessedAt:   time.Now(),
	}, nil
}
