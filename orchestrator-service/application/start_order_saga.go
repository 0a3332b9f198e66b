package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/northcart/order-system/orchestrator-service/domain"
	"github.com/northcart/order-system/shared/models"
	"github.com/northcart/order-system/shared/saga"
	"github.com/northcart/order-system/shared/telemetry"
)

// StartOrderSagaCommand represents the command to start an order saga
type StartOrderSagaCommand struct {
	OrderID       string               `json:"order_id,omitempty"`
	CustomerID    string               `json:"customer_id"`
	Items         []domain.Item        `json:"items"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
}

// StartOrderSagaResponse represents the response after starting an order saga
type StartOrderSagaResponse struct {
	SagaID string     `json:"saga_id"`
	Type   saga.Type  `json:"type"`
	State  saga.State `json:"state"`
}

// StartOrderSaga use case launches an order processing saga
type StartOrderSaga struct {
	runner *Runner
}

// NewStartOrderSaga creates a new StartOrderSaga use case
func NewStartOrderSaga(runner *Runner) *StartOrderSaga {
	return &StartOrderSaga{runner: runner}
}

// Execute registers the saga and returns immediately; the saga itself runs
// asynchronously. Input validation happens inside the saga's first step so
// malformed orders still yield a tracked, failed outcome.
func (uc *StartOrderSaga) Execute(ctx context.Context, cmd *StartOrderSagaCommand) (*StartOrderSagaResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "start_order_saga",
		trace.WithAttributes(
			attribute.String("customer_id", cmd.CustomerID),
			attribute.Int("item_count", len(cmd.Items)),
		),
	)
	defer span.End()

	status := "error"
	defer func() {
		telemetry.RecordCounter(ctx, "saga_operations_total", "Total saga operations", 1,
			attribute.String("operation", "start_order_saga"),
			attribute.String("status", status),
		)
		telemetry.RecordHistogram(ctx, "saga_operation_duration_seconds", "Saga operation duration", time.Since(start).Seconds(),
			attribute.String("operation", "start_order_saga"),
			attribute.String("status", status),
		)
	}()

	orderID := models.GenerateUUID()
	if cmd.OrderID != "" {
		parsed, err := models.NewID(cmd.OrderID)
		if err != nil {
			span.RecordError(err)
			return nil, errors.Wrap(err, "invalid order ID")
		}
		orderID = parsed
	}

	if _, exists := uc.runner.Get(orderID); exists {
		err := errors.New("saga already exists for this order")
		span.RecordError(err)
		return nil, err
	}

	input := domain.OrderInput{
		OrderID:       orderID,
		CustomerID:    cmd.CustomerID,
		Items:         cmd.Items,
		PaymentMethod: cmd.PaymentMethod,
	}

	execution := uc.runner.StartOrderSaga(ctx, input)
	snapshot := execution.Describe()

	status = "success"
	span.SetAttributes(attribute.String("saga_id", orderID.String()))

	return &StartOrderSagaResponse{
		SagaID: orderID.String(),
		Type:   snapshot.Type,
		State:  snapshot.State,
	}, nil
}
