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

// deliveryWindow is the flat delivery estimate applied to every shipment
const deliveryWindow = 5 * 24 * time.Hour

var carriers = []string{"FedEx", "UPS", "USPS"}

// SimulatedFulfillmentService is an in-memory fulfillment backend that
// allocates one shipment per order line.
type SimulatedFulfillmentService struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedFulfillmentService creates a fulfillment service
func NewSimulatedFulfillmentService() *SimulatedFulfillmentService {
	return &SimulatedFulfillmentService{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateShipments allocates shipments with tracking numbers for the order
func (s *SimulatedFulfillmentService) CreateShipments(ctx context.Context, orderID models.ID, items []domain.Item) (domain.Fulfillment, error) {
	now := time.Now()

	shipments := make([]domain.Shipment, 0, len(items))
	for i, item := range items {
		s.mu.Lock()
		carrier := carriers[s.rng.Intn(len(carriers))]
		s.mu.Unlock()

		shipments = append(shipments, domain.Shipment{
			TrackingNumber:    fmt.Sprintf("TRK%d%d", now.UnixMilli(), i),
			ProductID:         item.ProductID,
			Quantity:          item.Quantity,
			Carrier:           carrier,
			EstimatedDelivery: now.Add(deliveryWindow),
		})
	}

	return domain.Fulfillment{
		OrderID:     orderID,
		Shipments:   shipments,
		FulfilledAt: now,
	}, nil
}
