package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/northcart/order-system/shared/models"
	"github.com/northcart/order-system/shared/saga"
	"github.com/northcart/order-system/shared/telemetry"
)

// SignalSagaCommand represents the command to deliver a signal to a saga
type SignalSagaCommand struct {
	SagaID string `json:"saga_id"`
	Signal string `json:"signal"`
	Value  string `json:"value,omitempty"`
}

// SignalSagaResponse reports whether the signal was accepted. A duplicate
// cancel, a duplicate suspend, or a signal to an already finished saga is
// not an error, just not accepted.
type SignalSagaResponse struct {
	SagaID   string `json:"saga_id"`
	Signal   string `json:"signal"`
	Accepted bool   `json:"accepted"`
}

// SignalSaga use case delivers external signals to running sagas
type SignalSaga struct {
	runner *Runner
}

// NewSignalSaga creates a new SignalSaga use case
func NewSignalSaga(runner *Runner) *SignalSaga {
	return &SignalSaga{runner: runner}
}

// Execute delivers the signal. The saga observes it at its next step
// boundary, never mid-step.
func (uc *SignalSaga) Execute(ctx context.Context, cmd *SignalSagaCommand) (*SignalSagaResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "signal_saga",
		trace.WithAttributes(
			attribute.String("saga_id", cmd.SagaID),
			attribute.String("signal", cmd.Signal),
		),
	)
	defer span.End()

	status := "error"
	defer func() {
		telemetry.RecordCounter(ctx, "saga_operations_total", "Total saga operations", 1,
			attribute.String("operation", "signal_saga"),
			attribute.String("status", status),
		)
		telemetry.RecordHistogram(ctx, "saga_operation_duration_seconds", "Saga operation duration", time.Since(start).Seconds(),
			attribute.String("operation", "signal_saga"),
			attribute.String("status", status),
		)
	}()

	sagaID, err := models.NewID(cmd.SagaID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "invalid saga ID")
	}

	name := saga.SignalName(cmd.Signal)
	switch name {
	case saga.SignalCancelOrder, saga.SignalUpdateStatus, saga.SignalSuspendUser, saga.SignalUpdateEmail:
	default:
		err := errors.Errorf("unknown signal %q", cmd.Signal)
		span.RecordError(err)
		return nil, err
	}

	accepted, err := uc.runner.Signal(sagaID, name, cmd.Value)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	status = "success"
	span.SetAttributes(attribute.Bool("accepted", accepted))

	return &SignalSagaResponse{
		SagaID:   cmd.SagaID,
		Signal:   cmd.Signal,
		Accepted: accepted,
	}, nil
}
