package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/northcart/order-system/orchestrator-service/domain"
	"github.com/northcart/order-system/shared/models"
	"github.com/northcart/order-system/shared/saga"
	"github.com/northcart/order-system/shared/telemetry"
)

// StartUserSagaCommand represents the command to start a registration saga
type StartUserSagaCommand struct {
	Email       string              `json:"email"`
	Password    string              `json:"password"`
	Name        string              `json:"name"`
	Preferences *domain.Preferences `json:"preferences,omitempty"`
}

// StartUserSagaResponse represents the response after starting a
// registration saga
type StartUserSagaResponse struct {
	SagaID string     `json:"saga_id"`
	Type   saga.Type  `json:"type"`
	State  saga.State `json:"state"`
}

// StartUserSaga use case launches a user registration saga
type StartUserSaga struct {
	runner *Runner
}

// NewStartUserSaga creates a new StartUserSaga use case
func NewStartUserSaga(runner *Runner) *StartUserSaga {
	return &StartUserSaga{runner: runner}
}

// Execute registers the saga and returns immediately. Field validation is
// the saga's first step, so weak input still produces a tracked outcome.
func (uc *StartUserSaga) Execute(ctx context.Context, cmd *StartUserSagaCommand) (*StartUserSagaResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "start_user_saga",
		trace.WithAttributes(
			attribute.String("email", cmd.Email),
		),
	)
	defer span.End()

	status := "error"
	defer func() {
		telemetry.RecordCounter(ctx, "saga_operations_total", "Total saga operations", 1,
			attribute.String("operation", "start_user_saga"),
			attribute.String("status", status),
		)
		telemetry.RecordHistogram(ctx, "saga_operation_duration_seconds", "Saga operation duration", time.Since(start).Seconds(),
			attribute.String("operation", "start_user_saga"),
			attribute.String("status", status),
		)
	}()

	sagaID := models.GenerateUUID()
	input := domain.UserInput{
		Email:       cmd.Email,
		Password:    cmd.Password,
		Name:        cmd.Name,
		Preferences: cmd.Preferences,
	}

	execution := uc.runner.StartUserSaga(ctx, sagaID, input)
	snapshot := execution.Describe()

	status = "success"
	span.SetAttributes(attribute.String("saga_id", sagaID.String()))

	return &StartUserSagaResponse{
		SagaID: sagaID.String(),
		Type:   snapshot.Type,
		State:  snapshot.State,
	}, nil
}
