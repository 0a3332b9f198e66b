package handlers

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/northcart/order-system/orchestrator-service/application"
	"github.com/northcart/order-system/shared/events"
	"github.com/northcart/order-system/shared/saga"
)

// SagaEventHandlers routes inbound signal request events into running sagas
type SagaEventHandlers struct {
	signalSaga *application.SignalSaga
}

// NewSagaEventHandlers creates new saga event handlers
func NewSagaEventHandlers(signalSaga *application.SignalSaga) *SagaEventHandlers {
	return &SagaEventHandlers{signalSaga: signalSaga}
}

// Handle implements the events.EventHandler interface
func (h *SagaEventHandlers) Handle(ctx context.Context, event *events.Event) error {
	switch event.Topic {
	case events.OrderCancellationRequestedEvent:
		return h.handleSignalRequest(ctx, event, saga.SignalCancelOrder, "reason")
	case events.OrderStatusUpdateRequestedEvent:
		return h.handleSignalRequest(ctx, event, saga.SignalUpdateStatus, "status")
	case events.UserSuspensionRequestedEvent:
		return h.handleSignalRequest(ctx, event, saga.SignalSuspendUser, "reason")
	case events.UserEmailUpdateRequestedEvent:
		return h.handleSignalRequest(ctx, event, saga.SignalUpdateEmail, "email")
	default:
		// Unknown topic, ignore
		return nil
	}
}

// HandlerID returns the unique identifier for this event handler
func (h *SagaEventHandlers) HandlerID() string {
	return "orchestrator-service-event-handler"
}

func (h *SagaEventHandlers) handleSignalRequest(ctx context.Context, event *events.Event, name saga.SignalName, valueField string) error {
	data, ok := event.Data.(map[string]interface{})
	if !ok {
		return errors.New("signal request payload is not an object")
	}

	sagaID, ok := data["saga_id"].(string)
	if !ok || sagaID == "" {
		return errors.New("saga_id is required")
	}

	value, _ := data[valueField].(string)

	response, err := h.signalSaga.Execute(ctx, &application.SignalSagaCommand{
		SagaID: sagaID,
		Signal: string(name),
		Value:  value,
	})
	if err != nil {
		fmt.Printf("Failed to deliver %s signal to saga %s: %v\n", name, sagaID, err)
		return err
	}

	if !response.Accepted {
		// Duplicate or late signal; the request is consumed either way.
		fmt.Printf("Signal %s for saga %s not accepted\n", name, sagaID)
	}
	return nil
}
