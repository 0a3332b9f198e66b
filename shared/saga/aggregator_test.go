package saga

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northcart/order-system/shared/models"
)

func TestAggregate_Completed(t *testing.T) {
	sagaID := models.GenerateUUID()
	started := time.Now().Add(-time.Minute)

	results := []StepResult{
		{Step: StepValidateOrder, Output: map[string]interface{}{"total": 74.77}, CompletedAt: started.Add(time.Second)},
		{Step: StepCheckInventory, Output: "reserved", CompletedAt: started.Add(2 * time.Second)},
	}

	outcome := Aggregate(AggregateInput{
		SagaID:    sagaID,
		Type:      TypeOrderProcessing,
		State:     StateCompleted,
		Results:   results,
		StartedAt: started,
	})

	assert.Equal(t, sagaID, outcome.SagaID)
	assert.Equal(t, StateCompleted, outcome.State)
	assert.Empty(t, outcome.Error)
	require.Len(t, outcome.Results, 2)
	assert.Equal(t, "reserved", outcome.Results[StepCheckInventory])

	require.Len(t, outcome.Timeline, 2)
	assert.Equal(t, StepValidateOrder, outcome.Timeline[0].Step)
	assert.Equal(t, StepCheckInventory, outcome.Timeline[1].Step)
	assert.False(t, outcome.EndedAt.IsZero())
}

func TestAggregate_FailedKeepsPartialResults(t *testing.T) {
	outcome := Aggregate(AggregateInput{
		SagaID: models.GenerateUUID(),
		Type:   TypeOrderProcessing,
		State:  StateFailed,
		Results: []StepResult{
			{Step: StepValidateOrder, Output: "validated", CompletedAt: time.Now()},
		},
		Err: errors.New("items out of stock: p1"),
	})

	assert.Equal(t, StateFailed, outcome.State)
	assert.Equal(t, "items out of stock: p1", outcome.Error)
	require.Len(t, outcome.Results, 1)
	assert.NotContains(t, outcome.Results, StepProcessPayment)
}

func TestAggregate_CancelledRecordsReason(t *testing.T) {
	outcome := Aggregate(AggregateInput{
		SagaID:             models.GenerateUUID(),
		Type:               TypeOrderProcessing,
		State:              StateCancelled,
		CancellationReason: "customer request",
		Compensations: []Compensation{
			{Action: "ReleaseInventory", ExecutedAt: time.Now()},
		},
	})

	assert.Equal(t, StateCancelled, outcome.State)
	assert.Equal(t, "customer request", outcome.CancellationReason)
	require.Len(t, outcome.Compensations, 1)
	assert.Equal(t, "ReleaseInventory", outcome.Compensations[0].Action)
}

func TestAggregate_DegradesOnMalformedState(t *testing.T) {
	// Missing step names and nil outputs must not panic; they degrade to
	// absent fields.
	outcome := Aggregate(AggregateInput{
		State: StateFailed,
		Results: []StepResult{
			{Step: "", Output: nil},
			{Step: StepValidateUser, Output: nil},
		},
	})

	require.Len(t, outcome.Results, 1)
	assert.Nil(t, outcome.Results[StepValidateUser])
	assert.Len(t, outcome.Timeline, 1)
}
