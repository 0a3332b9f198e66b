package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/northcart/order-system/orchestrator-service/domain"
	"github.com/northcart/order-system/shared/models"
)

// SimulatedNotificationService is an in-memory notification backend that
// "delivers" over the email channel.
type SimulatedNotificationService struct{}

// NewSimulatedNotificationService creates a notification service
func NewSimulatedNotificationService() *SimulatedNotificationService {
	return &SimulatedNotificationService{}
}

// SendOrderConfirmation sends the order confirmation to the customer
func (s *SimulatedNotificationService) SendOrderConfirmation(ctx context.Context, orderID models.ID, customerID string, shipments []domain.Shipment) (domain.Confirmation, error) {
	return domain.Confirmation{
		NotificationID: fmt.Sprintf("notif_%d", time.Now().UnixMilli()),
		Channel:        "email",
		SentAt:         time.Now(),
	}, nil
}

// SendWelcomeEmail sends the registration welcome email
func (s *SimulatedNotificationService) SendWelcomeEmail(ctx context.Context, userID models.ID, email, name string) (domain.WelcomeEmail, error) {
	return domain.WelcomeEmail{
		EmailID: fmt.Sprintf("email_%d", time.Now().UnixMilli()),
		To:      email,
		Subject: "Welcome to Our Platform!",
		Status:  "sent",
		SentAt:  time.Now(),
	}, nil
}
