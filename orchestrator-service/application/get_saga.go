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

// GetSagaQuery represents the query to fetch one saga
type GetSagaQuery struct {
	SagaID string `json:"saga_id"`
}

// GetSaga use case returns the current snapshot of a saga, falling back to
// the persisted outcome when the saga is not in the in-memory registry
// (for example after a restart).
type GetSaga struct {
	runner   *Runner
	outcomes domain.OutcomeRepository
}

// NewGetSaga creates a new GetSaga use case
func NewGetSaga(runner *Runner, outcomes domain.OutcomeRepository) *GetSaga {
	return &GetSaga{runner: runner, outcomes: outcomes}
}

// Execute returns the saga snapshot or domain.ErrSagaNotFound
func (uc *GetSaga) Execute(ctx context.Context, query *GetSagaQuery) (*Snapshot, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "get_saga",
		trace.WithAttributes(attribute.String("saga_id", query.SagaID)),
	)
	defer span.End()

	status := "error"
	defer func() {
		telemetry.RecordCounter(ctx, "saga_operations_total", "Total saga operations", 1,
			attribute.String("operation", "get_saga"),
			attribute.String("status", status),
		)
		telemetry.RecordHistogram(ctx, "saga_operation_duration_seconds", "Saga operation duration", time.Since(start).Seconds(),
			attribute.String("operation", "get_saga"),
			attribute.String("status", status),
		)
	}()

	sagaID, err := models.NewID(query.SagaID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "invalid saga ID")
	}

	if execution, ok := uc.runner.Get(sagaID); ok {
		snapshot := execution.Describe()
		status = "success"
		return &snapshot, nil
	}

	if uc.outcomes != nil {
		outcome, err := uc.outcomes.FindBySagaID(ctx, sagaID)
		if err == nil && outcome != nil {
			snapshot := snapshotFromOutcome(outcome)
			status = "success"
			return &snapshot, nil
		}
		if err != nil && !errors.Is(err, domain.ErrSagaNotFound) {
			span.RecordError(err)
			return nil, errors.Wrap(err, "failed to load saga outcome")
		}
	}

	span.RecordError(domain.ErrSagaNotFound)
	return nil, domain.ErrSagaNotFound
}

func snapshotFromOutcome(outcome *saga.Outcome) Snapshot {
	steps := make([]saga.StepName, 0, len(outcome.Timeline))
	for _, entry := range outcome.Timeline {
		steps = append(steps, entry.Step)
	}

	return Snapshot{
		SagaID:         outcome.SagaID,
		Type:           outcome.Type,
		State:          outcome.State,
		StepsCompleted: steps,
		StartedAt:      outcome.StartedAt,
		Outcome:        outcome,
	}
}
