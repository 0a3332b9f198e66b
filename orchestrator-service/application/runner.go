package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/northcart/order-system/orchestrator-service/domain"
	"github.com/northcart/order-system/orchestrator-service/workflows"
	"github.com/northcart/order-system/shared/models"
	"github.com/northcart/order-system/shared/saga"
	"github.com/northcart/order-system/shared/telemetry"
)

// Snapshot is a point-in-time view of a saga execution. Reading it never
// blocks the saga goroutine.
type Snapshot struct {
	SagaID         models.ID       `json:"saga_id"`
	Type           saga.Type       `json:"type"`
	State          saga.State      `json:"state"`
	StepsCompleted []saga.StepName `json:"steps_completed"`
	StartedAt      time.Time       `json:"started_at"`
	Outcome        *saga.Outcome   `json:"outcome,omitempty"`
}

// Execution tracks one in-flight or finished saga. It implements
// saga.Progress so the coordinator reports state transitions into it.
type Execution struct {
	sagaID   models.ID
	sagaType saga.Type
	signals  *saga.SignalChannel

	mu             sync.RWMutex
	state          saga.State
	stepsCompleted []saga.StepName
	startedAt      time.Time
	outcome        *saga.Outcome
}

func newExecution(sagaID models.ID, sagaType saga.Type) *Execution {
	return &Execution{
		sagaID:    sagaID,
		sagaType:  sagaType,
		signals:   saga.NewSignalChannel(),
		state:     saga.StatePending,
		startedAt: time.Now(),
	}
}

// StateChanged records a saga state transition
func (e *Execution) StateChanged(state saga.State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
}

// StepCompleted records a finished step
func (e *Execution) StepCompleted(step saga.StepName) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stepsCompleted = append(e.stepsCompleted, step)
}

func (e *Execution) finish(outcome saga.Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.outcome = &outcome
	e.state = outcome.State
}

// Describe returns a snapshot of the execution
func (e *Execution) Describe() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	steps := make([]saga.StepName, len(e.stepsCompleted))
	copy(steps, e.stepsCompleted)

	return Snapshot{
		SagaID:         e.sagaID,
		Type:           e.sagaType,
		State:          e.state,
		StepsCompleted: steps,
		StartedAt:      e.startedAt,
		Outcome:        e.outcome,
	}
}

// Terminal reports whether the execution has reached a terminal state
func (e *Execution) Terminal() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Terminal()
}

// Runner owns the registry of saga executions. It launches coordinators on
// their own goroutines and exposes signal delivery and lookups keyed by
// saga ID.
type Runner struct {
	orders   *workflows.OrderWorkflow
	users    *workflows.UserWorkflow
	outcomes domain.OutcomeRepository

	mu         sync.RWMutex
	executions map[models.ID]*Execution
}

// NewRunner creates a saga runner. The outcome repository may be nil, in
// which case finished sagas are kept in memory only.
func NewRunner(orders *workflows.OrderWorkflow, users *workflows.UserWorkflow, outcomes domain.OutcomeRepository) *Runner {
	return &Runner{
		orders:     orders,
		users:      users,
		outcomes:   outcomes,
		executions: make(map[models.ID]*Execution),
	}
}

// StartOrderSaga registers and launches an order processing saga. The saga
// runs on its own goroutine, detached from the caller's context.
func (r *Runner) StartOrderSaga(ctx context.Context, input domain.OrderInput) *Execution {
	execution := newExecution(input.OrderID, saga.TypeOrderProcessing)
	r.register(execution)

	go func() {
		runCtx := detachContext(ctx)
		outcome := r.orders.Run(runCtx, input, execution.signals, execution)
		r.finish(runCtx, execution, outcome)
	}()

	return execution
}

// StartUserSaga registers and launches a user registration saga.
func (r *Runner) StartUserSaga(ctx context.Context, sagaID models.ID, input domain.UserInput) *Execution {
	execution := newExecution(sagaID, saga.TypeUserRegistration)
	r.register(execution)

	go func() {
		runCtx := detachContext(ctx)
		outcome := r.users.Run(runCtx, sagaID, input, execution.signals, execution)
		r.finish(runCtx, execution, outcome)
	}()

	return execution
}

// detachContext carries the telemetry handle over to a fresh context so a
// saga outlives the request that started it.
func detachContext(ctx context.Context) context.Context {
	if tel := telemetry.FromContext(ctx); tel != nil {
		return telemetry.WithTelemetry(context.Background(), tel)
	}
	return context.Background()
}

func (r *Runner) register(execution *Execution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions[execution.sagaID] = execution
}

func (r *Runner) finish(ctx context.Context, execution *Execution, outcome saga.Outcome) {
	execution.finish(outcome)

	telemetry.RecordCounter(ctx, "sagas_finished_total", "Total finished sagas", 1,
		attribute.String("saga_type", string(outcome.Type)),
		attribute.String("state", string(outcome.State)),
	)

	// Persistence is best effort: the in-memory registry stays
	// authoritative for lookups either way.
	if r.outcomes != nil {
		saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = r.outcomes.Save(saveCtx, &outcome)
	}
}

// Signal delivers a signal to a running saga. It returns false when the
// channel rejected the signal (duplicate cancel or suspend) or when the
// saga already terminated.
func (r *Runner) Signal(sagaID models.ID, name saga.SignalName, value string) (bool, error) {
	r.mu.RLock()
	execution, ok := r.executions[sagaID]
	r.mu.RUnlock()

	if !ok {
		return false, domain.ErrSagaNotFound
	}
	if execution.Terminal() {
		return false, nil
	}
	return execution.signals.Raise(name, value), nil
}

// Get returns the execution for the given saga ID
func (r *Runner) Get(sagaID models.ID) (*Execution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	execution, ok := r.executions[sagaID]
	return execution, ok
}

// List returns snapshots of known executions, newest first, optionally
// filtered by saga type. A limit of zero means no limit.
func (r *Runner) List(sagaType saga.Type, limit int) []Snapshot {
	r.mu.RLock()
	snapshots := make([]Snapshot, 0, len(r.executions))
	for _, execution := range r.executions {
		if sagaType != "" && execution.sagaType != sagaType {
			continue
		}
		snapshots = append(snapshots, execution.Describe())
	}
	r.mu.RUnlock()

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].StartedAt.After(snapshots[j].StartedAt)
	})

	if limit > 0 && len(snapshots) > limit {
		snapshots = snapshots[:limit]
	}
	return snapshots
}
