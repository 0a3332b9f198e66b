package workflows

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northcart/order-system/orchestrator-service/domain"
	"github.com/northcart/order-system/shared/models"
	"github.com/northcart/order-system/shared/saga"
)

type fakeDirectory struct {
	existing    map[string]bool
	createCalls int
	created     domain.UserAccount
	deleted     []models.ID
}

func (f *fakeDirectory) EmailExists(ctx context.Context, email string) (bool, error) {
	return f.existing[email], nil
}

func (f *fakeDirectory) Create(ctx context.Context, email, name, passwordDigest string) (domain.UserAccount, error) {
	f.createCalls++
	f.created = domain.UserAccount{
		UserID:    models.GenerateUUID(),
		Email:     email,
		Name:      name,
		Status:    "active",
		Roles:     []string{"user"},
		CreatedAt: time.Now(),
	}
	return f.created, nil
}

func (f *fakeDirectory) Delete(ctx context.Context, userID models.ID) error {
	f.deleted = append(f.deleted, userID)
	return nil
}

type fakeCredentials struct {
	issueCalls int
}

func (f *fakeCredentials) IssueAPIKey(ctx context.Context, userID models.ID) (domain.APIKey, error) {
	f.issueCalls++
	now := time.Now()
	return domain.APIKey{
		KeyID:     "key_" + models.GenerateUUID().String(),
		UserID:    userID,
		MaskedKey: "sk_live_****4242",
		Scope:     "default",
		Status:    "active",
		CreatedAt: now,
		ExpiresAt: now.AddDate(1, 0, 0),
	}, nil
}

type fakePreferences struct {
	applied domain.Preferences
}

func (f *fakePreferences) Apply(ctx context.Context, userID models.ID, preferences domain.Preferences) (domain.PreferenceProfile, error) {
	f.applied = preferences
	return domain.PreferenceProfile{UserID: userID, Preferences: preferences, SetupAt: time.Now()}, nil
}

func validUserInput() domain.UserInput {
	return domain.UserInput{
		Email:    "ada@example.com",
		Password: "correct-horse",
		Name:     "Ada Lovelace",
	}
}

func newUserWorkflow(directory *fakeDirectory, notifier *fakeNotifier, credentials *fakeCredentials, preferences *fakePreferences) *UserWorkflow {
	return NewUserWorkflow(fastExecutor(), directory, notifier, credentials, preferences, nil, nil)
}

func TestUserWorkflow_Completed(t *testing.T) {
	directory := &fakeDirectory{}
	notifier := &fakeNotifier{}
	credentials := &fakeCredentials{}
	preferences := &fakePreferences{}
	workflow := newUserWorkflow(directory, notifier, credentials, preferences)

	sagaID := models.GenerateUUID()
	outcome := workflow.Run(context.Background(), sagaID, validUserInput(), nil, nil)

	assert.Equal(t, saga.StateCompleted, outcome.State)
	assert.Equal(t, sagaID, outcome.SagaID)
	assert.Equal(t, saga.TypeUserRegistration, outcome.Type)
	assert.Empty(t, outcome.Compensations)
	assert.Len(t, outcome.Timeline, 6)

	for _, step := range []saga.StepName{
		saga.StepValidateUser,
		saga.StepHashPassword,
		saga.StepCreateUser,
		saga.StepSendWelcomeEmail,
		saga.StepGenerateAPIKey,
		saga.StepSetupPreferences,
	} {
		assert.Contains(t, outcome.Results, step)
	}

	key, ok := outcome.Results[saga.StepGenerateAPIKey].(domain.APIKey)
	require.True(t, ok)
	assert.Equal(t, directory.created.UserID, key.UserID)

	// No overrides supplied, so the defaults land verbatim.
	assert.Equal(t, domain.DefaultPreferences(), preferences.applied)
}

func TestUserWorkflow_PreferenceOverrides(t *testing.T) {
	preferences := &fakePreferences{}
	workflow := newUserWorkflow(&fakeDirectory{}, &fakeNotifier{}, &fakeCredentials{}, preferences)

	input := validUserInput()
	input.Preferences = &domain.Preferences{
		Notifications: domain.NotificationPreferences{Push: true},
		Theme:         "dark",
	}
	outcome := workflow.Run(context.Background(), models.GenerateUUID(), input, nil, nil)

	assert.Equal(t, saga.StateCompleted, outcome.State)
	assert.Equal(t, "dark", preferences.applied.Theme)
	assert.True(t, preferences.applied.Notifications.Push)
	assert.Equal(t, "en", preferences.applied.Language)
}

func TestUserWorkflow_ShortPassword(t *testing.T) {
	directory := &fakeDirectory{}
	workflow := newUserWorkflow(directory, &fakeNotifier{}, &fakeCredentials{}, &fakePreferences{})

	input := validUserInput()
	input.Password = "short6"
	outcome := workflow.Run(context.Background(), models.GenerateUUID(), input, nil, nil)

	assert.Equal(t, saga.StateFailed, outcome.State)
	assert.Contains(t, outcome.Error, "Password must be at least 8 characters")
	assert.Empty(t, outcome.Results)
	assert.Zero(t, directory.createCalls)
	assert.Empty(t, outcome.Compensations)
}

func TestUserWorkflow_EmailAlreadyRegistered(t *testing.T) {
	directory := &fakeDirectory{existing: map[string]bool{"ada@example.com": true}}
	workflow := newUserWorkflow(directory, &fakeNotifier{}, &fakeCredentials{}, &fakePreferences{})

	outcome := workflow.Run(context.Background(), models.GenerateUUID(), validUserInput(), nil, nil)

	assert.Equal(t, saga.StateFailed, outcome.State)
	assert.Contains(t, outcome.Error, "Email already registered")
	assert.Zero(t, directory.createCalls)
}

func TestUserWorkflow_CompensatesCreatedUser(t *testing.T) {
	directory := &fakeDirectory{}
	notifier := &fakeNotifier{welcomeErr: saga.Permanent(errors.New("mailbox provider rejected address"))}
	workflow := newUserWorkflow(directory, notifier, &fakeCredentials{}, &fakePreferences{})

	outcome := workflow.Run(context.Background(), models.GenerateUUID(), validUserInput(), nil, nil)

	assert.Equal(t, saga.StateFailed, outcome.State)
	require.Len(t, outcome.Compensations, 1)
	assert.Equal(t, "DeleteUser", outcome.Compensations[0].Action)
	require.Len(t, directory.deleted, 1)
	assert.Equal(t, directory.created.UserID, directory.deleted[0])
	assert.Contains(t, outcome.Results, saga.StepCreateUser)
}

func TestUserWorkflow_EmailUpdateSignal(t *testing.T) {
	directory := &fakeDirectory{}
	notifier := &fakeNotifier{}
	workflow := newUserWorkflow(directory, notifier, &fakeCredentials{}, &fakePreferences{})

	signals := saga.NewSignalChannel()
	progress := &signalOnStep{signals: signals, step: saga.StepHashPassword, name: saga.SignalUpdateEmail, value: "ada@newdomain.com"}

	outcome := workflow.Run(context.Background(), models.GenerateUUID(), validUserInput(), signals, progress)

	assert.Equal(t, saga.StateCompleted, outcome.State)
	assert.Equal(t, "ada@newdomain.com", directory.created.Email)
	assert.Equal(t, "ada@newdomain.com", notifier.welcomedTo)
}

func TestUserWorkflow_SuspendSignalRecordedOnly(t *testing.T) {
	directory := &fakeDirectory{}
	workflow := newUserWorkflow(directory, &fakeNotifier{}, &fakeCredentials{}, &fakePreferences{})

	signals := saga.NewSignalChannel()
	progress := &signalOnStep{signals: signals, step: saga.StepCreateUser, name: saga.SignalSuspendUser, value: "fraud review"}

	outcome := workflow.Run(context.Background(), models.GenerateUUID(), validUserInput(), signals, progress)

	// Suspension never interrupts an in-flight registration.
	assert.Equal(t, saga.StateCompleted, outcome.State)
	assert.Equal(t, "suspension requested: fraud review", outcome.StatusNote)
	assert.Len(t, outcome.Timeline, 6)
	assert.Empty(t, directory.deleted)
}
