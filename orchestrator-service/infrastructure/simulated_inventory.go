package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/northcart/order-system/orchestrator-service/domain"
	"github.com/northcart/order-system/shared/models"
)

// DefaultStockLevel is assumed for products the stock map does not know
const DefaultStockLevel = 50

// SimulatedInventoryService is an in-memory inventory backend. Stock
// levels can be seeded per product; unknown products start at
// DefaultStockLevel. Reservations decrement stock and are restored on
// release.
type SimulatedInventoryService struct {
	mu           sync.Mutex
	stock        map[string]int
	reservations map[string][]domain.Item
}

// NewSimulatedInventoryService creates an inventory service seeded with
// the given stock levels
func NewSimulatedInventoryService(stock map[string]int) *SimulatedInventoryService {
	levels := make(map[string]int, len(stock))
	for productID, available := range stock {
		levels[productID] = available
	}
	return &SimulatedInventoryService{
		stock:        levels,
		reservations: make(map[string][]domain.Item),
	}
}

// Reserve holds stock for every item of the order, or fails with an
// OutOfStockError naming every product that cannot be covered.
func (s *SimulatedInventoryService) Reserve(ctx context.Context, orderID models.ID, items []domain.Item) (domain.InventoryReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	availability := make([]domain.ItemAvailability, 0, len(items))
	var outOfStock []string
	for _, item := range items {
		available := s.available(item.ProductID)
		availability = append(availability, domain.ItemAvailability{
			ProductID: item.ProductID,
			Requested: item.Quantity,
			Available: available,
		})
		if available < item.Quantity {
			outOfStock = append(outOfStock, item.ProductID)
		}
	}

	if len(outOfStock) > 0 {
		return domain.InventoryReservation{}, &domain.OutOfStockError{ProductIDs: outOfStock}
	}

	for _, item := range items {
		s.stock[item.ProductID] = s.available(item.ProductID) - item.Quantity
	}

	reservationID := models.GenerateUUID()
	s.reservations[reservationID.String()] = items

	return domain.InventoryReservation{
		ReservationID: reservationID,
		Items:         availability,
		ReservedAt:    time.Now(),
	}, nil
}

// Release returns a reservation's stock. Releasing twice is an error.
func (s *SimulatedInventoryService) Release(ctx context.Context, reservationID models.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, ok := s.reservations[reservationID.String()]
	if !ok {
		return errors.Errorf("unknown reservation %s", reservationID)
	}
	delete(s.reservations, reservationID.String())

	for _, item := range items {
		s.stock[item.ProductID] = s.available(item.ProductID) + item.Quantity
	}
	return nil
}

func (s *SimulatedInventoryService) available(productID string) int {
	if available, ok := s.stock[productID]; ok {
		return available
	}
	s.stock[productID] = DefaultStockLevel
	return DefaultStockLevel
}
