package workflows

import (
	"context"
	"time"

	"github.com/northcart/order-system/shared/events"
	"github.com/northcart/order-system/shared/models"
	"github.com/northcart/order-system/shared/saga"
)

// SagaStartedData is the payload of saga.started events
type SagaStartedData struct {
	SagaID models.ID `json:"saga_id"`
	Type   saga.Type `json:"type"`
}

// StepCompletedData is the payload of saga.step.completed events
type StepCompletedData struct {
	SagaID      models.ID     `json:"saga_id"`
	Step        saga.StepName `json:"step"`
	CompletedAt time.Time     `json:"completed_at"`
}

// SagaFailedData is the payload of saga.failed events
type SagaFailedData struct {
	SagaID models.ID     `json:"saga_id"`
	Step   saga.StepName `json:"step"`
	Error  string        `json:"error"`
}

// SagaCancelledData is the payload of saga.cancelled events
type SagaCancelledData struct {
	SagaID models.ID `json:"saga_id"`
	Reason string    `json:"reason"`
}

// SagaCompensatedData is the payload of saga.compensated events
type SagaCompensatedData struct {
	SagaID models.ID `json:"saga_id"`
	Action string    `json:"action"`
	Detail string    `json:"detail,omitempty"`
}

// emitter appends saga lifecycle events to the event stream and publishes
// them. Emission is best effort: a saga never fails because telemetry or
// messaging is down.
type emitter struct {
	publisher events.Publisher
	store     events.EventStore
	sagaID    models.ID
	version   int
}

func (e *emitter) emit(ctx context.Context, topic events.Topic, data interface{}) {
	event := events.NewEvent(e.sagaID, topic, data).WithCorrelationID(e.sagaID)

	if e.store != nil {
		if err := e.store.SaveEvents(ctx, e.sagaID, []*events.Event{event}, e.version); err == nil {
			e.version++
		}
	}

	if e.publisher != nil {
		_ = e.publisher.Publish(ctx, event)
	}
}
