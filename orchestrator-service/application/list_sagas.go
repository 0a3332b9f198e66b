package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/northcart/order-system/shared/saga"
	"github.com/northcart/order-system/shared/telemetry"
)

// DefaultListLimit bounds list responses when the caller supplies no limit
const DefaultListLimit = 50

// ListSagasQuery represents the query to list sagas
type ListSagasQuery struct {
	Type  string `json:"type,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// ListSagasResponse represents a page of saga snapshots, newest first
type ListSagasResponse struct {
	Sagas []Snapshot `json:"sagas"`
	Count int        `json:"count"`
}

// ListSagas use case lists known saga executions
type ListSagas struct {
	runner *Runner
}

// NewListSagas creates a new ListSagas use case
func NewListSagas(runner *Runner) *ListSagas {
	return &ListSagas{runner: runner}
}

// Execute lists sagas filtered by type, newest first
func (uc *ListSagas) Execute(ctx context.Context, query *ListSagasQuery) (*ListSagasResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "list_sagas",
		trace.WithAttributes(
			attribute.String("saga_type", query.Type),
			attribute.Int("limit", query.Limit),
		),
	)
	defer span.End()

	status := "error"
	defer func() {
		telemetry.RecordCounter(ctx, "saga_operations_total", "Total saga operations", 1,
			attribute.String("operation", "list_sagas"),
			attribute.String("status", status),
		)
		telemetry.RecordHistogram(ctx, "saga_operation_duration_seconds", "Saga operation duration", time.Since(start).Seconds(),
			attribute.String("operation", "list_sagas"),
			attribute.String("status", status),
		)
	}()

	var sagaType saga.Type
	switch query.Type {
	case "":
	case string(saga.TypeOrderProcessing):
		sagaType = saga.TypeOrderProcessing
	case string(saga.TypeUserRegistration):
		sagaType = saga.TypeUserRegistration
	default:
		err := errors.Errorf("unknown saga type %q", query.Type)
		span.RecordError(err)
		return nil, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	snapshots := uc.runner.List(sagaType, limit)

	status = "success"
	span.SetAttributes(attribute.Int("count", len(snapshots)))

	return &ListSagasResponse{Sagas: snapshots, Count: len(snapshots)}, nil
}
