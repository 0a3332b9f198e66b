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

// UserWorkflow coordinates the user registration saga:
// ValidateUser → HashPassword → CreateUser → SendWelcomeEmail →
// GenerateApiKey → SetupPreferences.
//
// A permanent failure after CreateUser would otherwise orphan the account
// record, so the workflow compensates by deleting the partially created
// user. A suspend signal is recorded in the outcome but does not stop an
// in-flight registration; an updateEmail signal swaps the email used by
// the steps that have not run yet.
type UserWorkflow struct {
	executor    *saga.Executor
	directory   domain.UserDirectory
	notifier    domain.NotificationService
	credentials domain.CredentialIssuer
	preferences domain.PreferenceStore
	publisher   events.Publisher
	store       events.EventStore
}

// NewUserWorkflow creates a user registration coordinator.
func NewUserWorkflow(
	executor *saga.Executor,
	directory domain.UserDirectory,
	notifier domain.NotificationService,
	credentials domain.CredentialIssuer,
	preferences domain.PreferenceStore,
	publisher events.Publisher,
	store events.EventStore,
) *UserWorkflow {
	return &UserWorkflow{
		executor:    executor,
		directory:   directory,
		notifier:    notifier,
		credentials: credentials,
		preferences: preferences,
		publisher:   publisher,
		store:       store,
	}
}

type userRun struct {
	sagaID        models.ID
	input         domain.UserInput
	signals       *saga.SignalChannel
	progress      saga.Progress
	emitter       emitter
	startedAt     time.Time
	results       []saga.StepResult
	compensations []saga.Compensation
	statusNote    string
	currentEmail  string
	createdUserID models.ID
}

// Run executes one registration saga to its terminal outcome.
func (w *UserWorkflow) Run(ctx context.Context, sagaID models.ID, input domain.UserInput, signals *saga.SignalChannel, progress saga.Progress) saga.Outcome {
	if signals == nil {
		signals = saga.NewSignalChannel()
	}
	if progress == nil {
		progress = saga.NopProgress{}
	}

	run := &userRun{
		sagaID:       sagaID,
		input:        input,
		signals:      signals,
		progress:     progress,
		emitter:      emitter{publisher: w.publisher, store: w.store, sagaID: sagaID},
		startedAt:    time.Now(),
		currentEmail: input.Email,
	}

	progress.StateChanged(saga.StateRunning)
	run.emitter.emit(ctx, events.SagaStartedEvent, SagaStartedData{SagaID: sagaID, Type: saga.TypeUserRegistration})

	// Step 1: ValidateUser
	result, err := w.executor.Execute(ctx, saga.StepValidateUser, func(ctx context.Context) (interface{}, error) {
		violations := domain.ValidateUser(run.currentEmail, input.Password, input.Name)
		if len(violations) == 0 {
			taken, err := w.directory.EmailExists(ctx, run.currentEmail)
			if err != nil {
				return nil, err
			}
			if taken {
				violations = append(violations, domain.EmailTakenViolation())
			}
		}
		if len(violations) > 0 {
			return nil, saga.Permanent(&domain.ValidationError{Violations: violations})
		}
		return domain.UserValidation{Email: run.currentEmail, ValidatedAt: time.Now()}, nil
	})
	if err != nil {
		return w.fail(ctx, run, err)
	}
	w.record(ctx, run, result)
	w.observeSignals(run)

	// Step 2: HashPassword
	result, err = w.executor.Execute(ctx, saga.StepHashPassword, func(ctx context.Context) (interface{}, error) {
		return domain.HashPassword(input.Password), nil
	})
	if err != nil {
		return w.fail(ctx, run, err)
	}
	digest, _ := result.Output.(domain.PasswordDigest)
	w.record(ctx, run, result)
	w.observeSignals(run)

	// Step 3: CreateUser
	result, err = w.executor.Execute(ctx, saga.StepCreateUser, func(ctx context.Context) (interface{}, error) {
		account, err := w.directory.Create(ctx, run.currentEmail, input.Name, digest.Digest)
		if err != nil {
			return nil, err
		}
		return account, nil
	})
	if err != nil {
		return w.fail(ctx, run, err)
	}
	account, _ := result.Output.(domain.UserAccount)
	run.createdUserID = account.UserID
	w.record(ctx, run, result)
	w.observeSignals(run)

	// Step 4: SendWelcomeEmail
	result, err = w.executor.Execute(ctx, saga.StepSendWelcomeEmail, func(ctx context.Context) (interface{}, error) {
		email, err := w.notifier.SendWelcomeEmail(ctx, account.UserID, run.currentEmail, input.Name)
		if err != nil {
			return nil, err
		}
		return email, nil
	})
	if err != nil {
		return w.fail(ctx, run, err)
	}
	w.record(ctx, run, result)
	w.observeSignals(run)

	// Step 5: GenerateApiKey
	result, err = w.executor.Execute(ctx, saga.StepGenerateAPIKey, func(ctx context.Context) (interface{}, error) {
		key, err := w.credentials.IssueAPIKey(ctx, account.UserID)
		if err != nil {
			return nil, err
		}
		return key, nil
	})
	if err != nil {
		return w.fail(ctx, run, err)
	}
	w.record(ctx, run, result)
	w.observeSignals(run)

	// Step 6: SetupPreferences
	result, err = w.executor.Execute(ctx, saga.StepSetupPreferences, func(ctx context.Context) (interface{}, error) {
		profile, err := w.preferences.Apply(ctx, account.UserID, domain.DefaultPreferences().Merge(input.Preferences))
		if err != nil {
			return nil, err
		}
		return profile, nil
	})
	if err != nil {
		return w.fail(ctx, run, err)
	}
	w.record(ctx, run, result)
	w.observeSignals(run)

	run.progress.StateChanged(saga.StateCompleted)
	outcome := saga.Aggregate(saga.AggregateInput{
		SagaID:        sagaID,
		Type:          saga.TypeUserRegistration,
		State:         saga.StateCompleted,
		Results:       run.results,
		Compensations: run.compensations,
		StatusNote:    run.statusNote,
		StartedAt:     run.startedAt,
	})
	run.emitter.emit(ctx, events.SagaCompletedEvent, outcome)
	return outcome
}

func (w *UserWorkflow) record(ctx context.Context, run *userRun, result saga.StepResult) {
	run.results = append(run.results, result)
	run.progress.StepCompleted(result.Step)
	run.emitter.emit(ctx, events.SagaStepCompletedEvent, StepCompletedData{
		SagaID:      run.sagaID,
		Step:        result.Step,
		CompletedAt: result.CompletedAt,
	})
}

// observeSignals drains pending signals at a step boundary. Registration
// has no cancellation path: suspension is recorded only, and an email
// update affects the steps that have not run yet.
func (w *UserWorkflow) observeSignals(run *userRun) {
	for _, sig := range run.signals.Drain() {
		switch sig.Name {
		case saga.SignalSuspendUser:
			run.statusNote = "suspension requested: " + sig.Value
		case saga.SignalUpdateEmail:
			if sig.Value != "" {
				run.currentEmail = sig.Value
			}
		}
	}
}

// fail terminates the saga, deleting a partially created user so a failed
// registration does not leave an orphaned account behind.
func (w *UserWorkflow) fail(ctx context.Context, run *userRun, stepErr error) saga.Outcome {
	var failedStep saga.StepName
	var asStepErr *saga.StepError
	if errors.As(stepErr, &asStepErr) {
		failedStep = asStepErr.Step
	}

	if run.createdUserID != "" {
		action := saga.Compensation{Action: "DeleteUser", Detail: run.createdUserID.String(), ExecutedAt: time.Now()}
		if err := w.directory.Delete(ctx, run.createdUserID); err != nil {
			action.Detail = "delete failed: " + err.Error()
		}
		run.compensations = append(run.compensations, action)
		run.emitter.emit(ctx, events.SagaCompensatedEvent, SagaCompensatedData{
			SagaID: run.sagaID,
			Action: action.Action,
			Detail: action.Detail,
		})
	}

	run.progress.StateChanged(saga.StateFailed)
	outcome := saga.Aggregate(saga.AggregateInput{
		SagaID:        run.sagaID,
		Type:          saga.TypeUserRegistration,
		State:         saga.StateFailed,
		Results:       run.results,
		Compensations: run.compensations,
		StatusNote:    run.statusNote,
		Err:           stepErr,
		StartedAt:     run.startedAt,
	})
	run.emitter.emit(ctx, events.SagaFailedEvent, SagaFailedData{
		SagaID: run.sagaID,
		Step:   failedStep,
		Error:  stepErr.Error(),
	})
	return outcome
}
