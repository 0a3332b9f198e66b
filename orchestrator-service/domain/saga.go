package domain

import (
	"context"

	"github.com/pkg/errors"

	"github.com/northcart/order-system/shared/models"
	"github.com/northcart/order-system/shared/saga"
)

// ErrSagaNotFound is returned when a saga id is unknown to the runner and
// the outcome store.
var ErrSagaNotFound = errors.New("saga not found")

// OutcomeRepository is the result sink: it persists terminal outcomes.
// Ownership of an Outcome passes here once the saga terminates.
type OutcomeRepository interface {
	Save(ctx context.Context, outcome *saga.Outcome) error
	FindBySagaID(ctx context.Context, sagaID models.ID) (*saga.Outcome, error)
	List(ctx context.Context, sagaType saga.Type, limit int) ([]*saga.Outcome, error)
}
