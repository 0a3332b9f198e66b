package saga

import (
	"time"

	"github.com/northcart/order-system/shared/models"
)

// AggregateInput is the terminal state a coordinator hands to Aggregate.
type AggregateInput struct {
	SagaID             models.ID
	Type               Type
	State              State
	Results            []StepResult
	Compensations      []Compensation
	Err                error
	CancellationReason string
	StatusNote         string
	StartedAt          time.Time
}

// Aggregate builds the single Outcome record for a saga execution. It is a
// terminal reporting path: it never fails, and malformed internal state
// (nil results, missing outputs) degrades to absent fields.
func Aggregate(in AggregateInput) Outcome {
	outcome := Outcome{
		SagaID:             in.SagaID,
		Type:               in.Type,
		State:              in.State,
		Compensations:      in.Compensations,
		CancellationReason: in.CancellationReason,
		StatusNote:         in.StatusNote,
		StartedAt:          in.StartedAt,
		EndedAt:            time.Now(),
	}

	if in.Err != nil {
		outcome.Error = in.Err.Error()
	}

	if len(in.Results) == 0 {
		return outcome
	}

	outcome.Results = make(map[StepName]interface{}, len(in.Results))
	outcome.Timeline = make([]TimelineEntry, 0, len(in.Results))

	for _, result := range in.Results {
		if result.Step == "" {
			continue
		}
		outcome.Results[result.Step] = result.Output
		outcome.Timeline = append(outcome.Timeline, TimelineEntry{
			Step:        result.Step,
			CompletedAt: result.CompletedAt,
		})
	}

	return outcome
}
