package workflows

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/northcart/order-system/orchestrator-service/domain"
	"github.com/northcart/order-system/shared/events"
	"github.com/northcart/order-system/shared/models"
	"github.com/northcart/order-system/shared/saga"
)

// OrderWorkflow coordinates the order processing saga:
// ValidateOrder → CheckInventory → ProcessPayment → FulfillOrder →
// SendConfirmation.
//
// Steps run strictly sequentially. The signal channel is polled between
// steps; a cancellation observed before payment completes halts the saga
// and releases the inventory reservation. A cancellation observed after
// payment completes is recorded in the outcome but the order still
// finishes: a captured payment is never silently abandoned.
type OrderWorkflow struct {
	executor    *saga.Executor
	inventory   domain.InventoryService
	payments    domain.PaymentGateway
	fulfillment domain.FulfillmentService
	notifier    domain.NotificationService
	publisher   events.Publisher
	store       events.EventStore
}

// NewOrderWorkflow creates an order processing coordinator. All
// collaborators are passed explicitly; the workflow holds no process-wide
// state.
func NewOrderWorkflow(
	executor *saga.Executor,
	inventory domain.InventoryService,
	payments domain.PaymentGateway,
	fulfillment domain.FulfillmentService,
	notifier domain.NotificationService,
	publisher events.Publisher,
	store events.EventStore,
) *OrderWorkflow {
	return &OrderWorkflow{
		executor:    executor,
		inventory:   inventory,
		payments:    payments,
		fulfillment: fulfillment,
		notifier:    notifier,
		publisher:   publisher,
		store:       store,
	}
}

type orderRun struct {
	input              domain.OrderInput
	signals            *saga.SignalChannel
	progress           saga.Progress
	emitter            emitter
	startedAt          time.Time
	results            []saga.StepResult
	compensations      []saga.Compensation
	cancellationReason string
	statusNote         string
	reservationID      string
	paymentDone        bool
}

// Run executes one order saga to its terminal outcome. It blocks until the
// saga terminates and always returns exactly one Outcome.
func (w *OrderWorkflow) Run(ctx context.Context, input domain.OrderInput, signals *saga.SignalChannel, progress saga.Progress) saga.Outcome {
	if signals == nil {
		signals = saga.NewSignalChannel()
	}
	if progress == nil {
		progress = saga.NopProgress{}
	}

	run := &orderRun{
		input:     input,
		signals:   signals,
		progress:  progress,
		emitter:   emitter{publisher: w.publisher, store: w.store, sagaID: input.OrderID},
		startedAt: time.Now(),
	}

	progress.StateChanged(saga.StateRunning)
	run.emitter.emit(ctx, events.SagaStartedEvent, SagaStartedData{SagaID: input.OrderID, Type: saga.TypeOrderProcessing})

	// Step 1: ValidateOrder
	var validation domain.OrderValidation
	result, err := w.executor.Execute(ctx, saga.StepValidateOrder, func(ctx context.Context) (interface{}, error) {
		v, err := domain.ValidateOrder(input.OrderID, input.CustomerID, input.Items)
		if err != nil {
			return nil, saga.Permanent(err)
		}
		validation = v
		return v, nil
	})
	if err != nil {
		return w.fail(ctx, run, err)
	}
	w.record(ctx, run, result)

	if outcome, cancelled := w.observeSignals(ctx, run); cancelled {
		return outcome
	}

	// Step 2: CheckInventory
	var reservation domain.InventoryReservation
	result, err = w.executor.Execute(ctx, saga.StepCheckInventory, func(ctx context.Context) (interface{}, error) {
		r, err := w.inventory.Reserve(ctx, input.OrderID, input.Items)
		if err != nil {
			var outOfStock *domain.OutOfStockError
			if errors.As(err, &outOfStock) {
				return nil, saga.Permanent(err)
			}
			return nil, err
		}
		reservation = r
		return r, nil
	})
	if err != nil {
		return w.fail(ctx, run, err)
	}
	run.reservationID = reservation.ReservationID.String()
	w.record(ctx, run, result)

	if outcome, cancelled := w.observeSignals(ctx, run); cancelled {
		return outcome
	}

	// Step 3: ProcessPayment
	result, err = w.executor.Execute(ctx, saga.StepProcessPayment, func(ctx context.Context) (interface{}, error) {
		receipt, err := w.payments.Charge(ctx, input.OrderID, validation.Total, input.PaymentMethod)
		if err != nil {
			if errors.Is(err, domain.ErrPaymentDeclined) {
				return nil, saga.Permanent(err)
			}
			return nil, err
		}
		return receipt, nil
	})
	if err != nil {
		return w.fail(ctx, run, err)
	}
	run.paymentDone = true
	w.record(ctx, run, result)

	// Cancellation past this point can no longer halt the saga: the
	// payment has been captured and fulfillment must complete.
	w.observeSignals(ctx, run)

	// Step 4: FulfillOrder
	result, err = w.executor.Execute(ctx, saga.StepFulfillOrder, func(ctx context.Context) (interface{}, error) {
		fulfillment, err := w.fulfillment.CreateShipments(ctx, input.OrderID, input.Items)
		if err != nil {
			return nil, err
		}
		return fulfillment, nil
	})
	if err != nil {
		return w.fail(ctx, run, err)
	}
	fulfillment, _ := result.Output.(domain.Fulfillment)
	w.record(ctx, run, result)

	w.observeSignals(ctx, run)

	// Step 5: SendConfirmation. Best effort: the customer notification is
	// not on the critical path of order correctness.
	result, err = w.executor.Execute(ctx, saga.StepSendConfirmation, func(ctx context.Context) (interface{}, error) {
		confirmation, err := w.notifier.SendOrderConfirmation(ctx, input.OrderID, input.CustomerID, fulfillment.Shipments)
		if err != nil {
			return nil, err
		}
		return confirmation, nil
	})
	if err == nil {
		w.record(ctx, run, result)
	}

	w.observeSignals(ctx, run)

	run.progress.StateChanged(saga.StateCompleted)
	outcome := saga.Aggregate(saga.AggregateInput{
		SagaID:             input.OrderID,
		Type:               saga.TypeOrderProcessing,
		State:              saga.StateCompleted,
		Results:            run.results,
		Compensations:      run.compensations,
		CancellationReason: run.cancellationReason,
		StatusNote:         run.statusNote,
		StartedAt:          run.startedAt,
	})
	run.emitter.emit(ctx, events.SagaCompletedEvent, outcome)
	return outcome
}

// record tracks a completed step and reports it outward.
func (w *OrderWorkflow) record(ctx context.Context, run *orderRun, result saga.StepResult) {
	run.results = append(run.results, result)
	run.progress.StepCompleted(result.Step)
	run.emitter.emit(ctx, events.SagaStepCompletedEvent, StepCompletedData{
		SagaID:      run.input.OrderID,
		Step:        result.Step,
		CompletedAt: result.CompletedAt,
	})
}

// observeSignals drains the signal channel at a step boundary. It returns
// a terminal outcome when a cancellation must halt the saga, which is only
// possible while the payment has not completed.
func (w *OrderWorkflow) observeSignals(ctx context.Context, run *orderRun) (saga.Outcome, bool) {
	for _, sig := range run.signals.Drain() {
		switch sig.Name {
		case saga.SignalCancelOrder:
			if run.cancellationReason == "" {
				run.cancellationReason = sig.Value
				if run.cancellationReason == "" {
					run.cancellationReason = "Not specified"
				}
			}
		case saga.SignalUpdateStatus:
			run.statusNote = sig.Value
		}
	}

	if run.cancellationReason == "" || run.paymentDone {
		return saga.Outcome{}, false
	}

	return w.cancel(ctx, run), true
}

// cancel halts the saga before payment, compensating any inventory
// reservation already made.
func (w *OrderWorkflow) cancel(ctx context.Context, run *orderRun) saga.Outcome {
	if run.reservationID != "" {
		action := saga.Compensation{Action: "ReleaseInventory", Detail: run.reservationID, ExecutedAt: time.Now()}
		if err := w.inventory.Release(ctx, models.ID(run.reservationID)); err != nil {
			action.Detail = "release failed: " + err.Error()
		}
		run.compensations = append(run.compensations, action)
		run.emitter.emit(ctx, events.SagaCompensatedEvent, SagaCompensatedData{
			SagaID: run.input.OrderID,
			Action: action.Action,
			Detail: action.Detail,
		})
	}

	run.progress.StateChanged(saga.StateCancelled)
	outcome := saga.Aggregate(saga.AggregateInput{
		SagaID:             run.input.OrderID,
		Type:               saga.TypeOrderProcessing,
		State:              saga.StateCancelled,
		Results:            run.results,
		Compensations:      run.compensations,
		CancellationReason: run.cancellationReason,
		StatusNote:         run.statusNote,
		StartedAt:          run.startedAt,
	})
	run.emitter.emit(ctx, events.SagaCancelledEvent, SagaCancelledData{
		SagaID: run.input.OrderID,
		Reason: run.cancellationReason,
	})
	return outcome
}

// fail terminates the saga on a permanent step failure, releasing the
// inventory reservation when one exists.
func (w *OrderWorkflow) fail(ctx context.Context, run *orderRun, stepErr error) saga.Outcome {
	var failedStep saga.StepName
	var asStepErr *saga.StepError
	if errors.As(stepErr, &asStepErr) {
		failedStep = asStepErr.Step
	}

	if run.reservationID != "" && failedStep == saga.StepProcessPayment {
		action := saga.Compensation{Action: "ReleaseInventory", Detail: run.reservationID, ExecutedAt: time.Now()}
		if err := w.inventory.Release(ctx, models.ID(run.reservationID)); err != nil {
			action.Detail = "release failed: " + err.Error()
		}
		run.compensations = append(run.compensations, action)
		run.emitter.emit(ctx, events.SagaCompensatedEvent, SagaCompensatedData{
			SagaID: run.input.OrderID,
			Action: action.Action,
			Detail: action.Detail,
		})
	}

	run.progress.StateChanged(saga.StateFailed)
	outcome := saga.Aggregate(saga.AggregateInput{
		SagaID:             run.input.OrderID,
		Type:               saga.TypeOrderProcessing,
		State:              saga.StateFailed,
		Results:            run.results,
		Compensations:      run.compensations,
		CancellationReason: run.cancellationReason,
		StatusNote:         run.statusNote,
		Err:                stepErr,
		StartedAt:          run.startedAt,
	})
	run.emitter.emit(ctx, events.SagaFailedEvent, SagaFailedData{
		SagaID: run.input.OrderID,
		Step:   failedStep,
		Error:  stepErr.Error(),
	})
	return outcome
}
