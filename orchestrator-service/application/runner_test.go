package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northcart/order-system/orchestrator-service/domain"
	"github.com/northcart/order-system/orchestrator-service/workflows"
	"github.com/northcart/order-system/shared/models"
	"github.com/northcart/order-system/shared/saga"
)

func fastExecutor() *saga.Executor {
	policy := saga.DefaultRetryPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return saga.NewExecutor(policy)
}

type stubInventory struct{}

func (stubInventory) Reserve(ctx context.Context, orderID models.ID, items []domain.Item) (domain.InventoryReservation, error) {
	return domain.InventoryReservation{ReservationID: models.GenerateUUID(), ReservedAt: time.Now()}, nil
}

func (stubInventory) Release(ctx context.Context, reservationID models.ID) error { return nil }

type stubPayments struct{}

func (stubPayments) Charge(ctx context.Context, orderID models.ID, amount float64, method domain.PaymentMethod) (domain.PaymentReceipt, error) {
	return domain.PaymentReceipt{TransactionID: "txn_1", OrderID: orderID, Amount: amount, Currency: "USD", ProcessedAt: time.Now()}, nil
}

// gateFulfillment blocks CreateShipments until the gate is opened, which
// lets tests signal a saga while it is verifiably still running.
type gateFulfillment struct {
	gate chan struct{}
}

func (g *gateFulfillment) CreateShipments(ctx context.Context, orderID models.ID, items []domain.Item) (domain.Fulfillment, error) {
	if g.gate != nil {
		<-g.gate
	}
	return domain.Fulfillment{OrderID: orderID, FulfilledAt: time.Now()}, nil
}

type stubNotifier struct{}

func (stubNotifier) SendOrderConfirmation(ctx context.Context, orderID models.ID, customerID string, shipments []domain.Shipment) (domain.Confirmation, error) {
	return domain.Confirmation{NotificationID: "notif_1", Channel: "email", SentAt: time.Now()}, nil
}

func (stubNotifier) SendWelcomeEmail(ctx context.Context, userID models.ID, email, name string) (domain.WelcomeEmail, error) {
	return domain.WelcomeEmail{EmailID: "email_1", To: email, Status: "sent", SentAt: time.Now()}, nil
}

type stubDirectory struct{}

func (stubDirectory) EmailExists(ctx context.Context, email string) (bool, error) { return false, nil }

func (stubDirectory) Create(ctx context.Context, email, name, passwordDigest string) (domain.UserAccount, error) {
	return domain.UserAccount{UserID: models.GenerateUUID(), Email: email, Name: name, Status: "active", CreatedAt: time.Now()}, nil
}

func (stubDirectory) Delete(ctx context.Context, userID models.ID) error { return nil }

type stubCredentials struct{}

func (stubCredentials) IssueAPIKey(ctx context.Context, userID models.ID) (domain.APIKey, error) {
	return domain.APIKey{KeyID: "key_1", UserID: userID, MaskedKey: "sk_****", Status: "active"}, nil
}

type stubPreferences struct{}

func (stubPreferences) Apply(ctx context.Context, userID models.ID, preferences domain.Preferences) (domain.PreferenceProfile, error) {
	return domain.PreferenceProfile{UserID: userID, Preferences: preferences, SetupAt: time.Now()}, nil
}

type memoryOutcomes struct {
	mu   sync.Mutex
	byID map[models.ID]*saga.Outcome
}

func newMemoryOutcomes() *memoryOutcomes {
	return &memoryOutcomes{byID: make(map[models.ID]*saga.Outcome)}
}

func (m *memoryOutcomes) Save(ctx context.Context, outcome *saga.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[outcome.SagaID] = outcome
	return nil
}

func (m *memoryOutcomes) FindBySagaID(ctx context.Context, sagaID models.ID) (*saga.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	outcome, ok := m.byID[sagaID]
	if !ok {
		return nil, domain.ErrSagaNotFound
	}
	return outcome, nil
}

func (m *memoryOutcomes) List(ctx context.Context, sagaType saga.Type, limit int) ([]*saga.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var outcomes []*saga.Outcome
	for _, outcome := range m.byID {
		if sagaType != "" && outcome.Type != sagaType {
			continue
		}
		outcomes = append(outcomes, outcome)
		if limit > 0 && len(outcomes) == limit {
			break
		}
	}
	return outcomes, nil
}

type runnerFixture struct {
	runner   *Runner
	outcomes *memoryOutcomes
	gate     *gateFulfillment
}

func newRunnerFixture() *runnerFixture {
	gate := &gateFulfillment{}
	orders := workflows.NewOrderWorkflow(fastExecutor(), stubInventory{}, stubPayments{}, gate, stubNotifier{}, nil, nil)
	users := workflows.NewUserWorkflow(fastExecutor(), stubDirectory{}, stubNotifier{}, stubCredentials{}, stubPreferences{}, nil, nil)
	outcomes := newMemoryOutcomes()
	return &runnerFixture{
		runner:   NewRunner(orders, users, outcomes),
		outcomes: outcomes,
		gate:     gate,
	}
}

func orderCommand() *StartOrderSagaCommand {
	return &StartOrderSagaCommand{
		CustomerID:    "cust_1",
		Items:         []domain.Item{{ProductID: "p1", Quantity: 2, Price: 29.99}},
		PaymentMethod: domain.PaymentMethod{Type: "card"},
	}
}

func waitTerminal(t *testing.T, runner *Runner, sagaID models.ID) Snapshot {
	t.Helper()

	var snapshot Snapshot
	require.Eventually(t, func() bool {
		execution, ok := runner.Get(sagaID)
		if !ok {
			return false
		}
		snapshot = execution.Describe()
		return snapshot.State.Terminal()
	}, 2*time.Second, 5*time.Millisecond)

	return snapshot
}

func TestStartOrderSaga_RunsToCompletion(t *testing.T) {
	fixture := newRunnerFixture()
	ctx := context.Background()

	response, err := NewStartOrderSaga(fixture.runner).Execute(ctx, orderCommand())
	require.NoError(t, err)
	assert.Equal(t, saga.TypeOrderProcessing, response.Type)

	sagaID, err := models.NewID(response.SagaID)
	require.NoError(t, err)

	snapshot := waitTerminal(t, fixture.runner, sagaID)
	assert.Equal(t, saga.StateCompleted, snapshot.State)
	assert.Len(t, snapshot.StepsCompleted, 5)
	require.NotNil(t, snapshot.Outcome)
	assert.Contains(t, snapshot.Outcome.Results, saga.StepProcessPayment)

	// The terminal outcome lands in the repository as well.
	persisted, err := fixture.outcomes.FindBySagaID(ctx, sagaID)
	require.NoError(t, err)
	assert.Equal(t, saga.StateCompleted, persisted.State)
}

func TestStartOrderSaga_DuplicateOrderIDRejected(t *testing.T) {
	fixture := newRunnerFixture()
	ctx := context.Background()

	cmd := orderCommand()
	cmd.OrderID = models.GenerateUUID().String()

	_, err := NewStartOrderSaga(fixture.runner).Execute(ctx, cmd)
	require.NoError(t, err)

	_, err = NewStartOrderSaga(fixture.runner).Execute(ctx, cmd)
	assert.ErrorContains(t, err, "already exists")
}

func TestStartUserSaga_RunsToCompletion(t *testing.T) {
	fixture := newRunnerFixture()
	ctx := context.Background()

	response, err := NewStartUserSaga(fixture.runner).Execute(ctx, &StartUserSagaCommand{
		Email:    "ada@example.com",
		Password: "correct-horse",
		Name:     "Ada Lovelace",
	})
	require.NoError(t, err)

	sagaID, err := models.NewID(response.SagaID)
	require.NoError(t, err)

	snapshot := waitTerminal(t, fixture.runner, sagaID)
	assert.Equal(t, saga.StateCompleted, snapshot.State)
	assert.Len(t, snapshot.StepsCompleted, 6)
}

func TestSignalSaga_UnknownSagaNotFound(t *testing.T) {
	fixture := newRunnerFixture()

	_, err := NewSignalSaga(fixture.runner).Execute(context.Background(), &SignalSagaCommand{
		SagaID: models.GenerateUUID().String(),
		Signal: string(saga.SignalCancelOrder),
	})
	assert.ErrorIs(t, err, domain.ErrSagaNotFound)
}

func TestSignalSaga_UnknownSignalRejected(t *testing.T) {
	fixture := newRunnerFixture()

	_, err := NewSignalSaga(fixture.runner).Execute(context.Background(), &SignalSagaCommand{
		SagaID: models.GenerateUUID().String(),
		Signal: "explodeOrder",
	})
	assert.ErrorContains(t, err, "unknown signal")
}

func TestSignalSaga_DuplicateCancelNotAccepted(t *testing.T) {
	fixture := newRunnerFixture()
	fixture.gate.gate = make(chan struct{})
	ctx := context.Background()

	response, err := NewStartOrderSaga(fixture.runner).Execute(ctx, orderCommand())
	require.NoError(t, err)

	signal := NewSignalSaga(fixture.runner)
	cmd := &SignalSagaCommand{SagaID: response.SagaID, Signal: string(saga.SignalCancelOrder), Value: "first"}

	first, err := signal.Execute(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, first.Accepted)

	second, err := signal.Execute(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, second.Accepted)

	close(fixture.gate.gate)

	sagaID, err := models.NewID(response.SagaID)
	require.NoError(t, err)
	waitTerminal(t, fixture.runner, sagaID)
}

func TestSignalSaga_FinishedSagaNotAccepted(t *testing.T) {
	fixture := newRunnerFixture()
	ctx := context.Background()

	response, err := NewStartOrderSaga(fixture.runner).Execute(ctx, orderCommand())
	require.NoError(t, err)

	sagaID, err := models.NewID(response.SagaID)
	require.NoError(t, err)
	waitTerminal(t, fixture.runner, sagaID)

	result, err := NewSignalSaga(fixture.runner).Execute(ctx, &SignalSagaCommand{
		SagaID: response.SagaID,
		Signal: string(saga.SignalCancelOrder),
	})
	require.NoError(t, err)
	assert.False(t, result.Accepted)
}

func TestGetSaga_NotFound(t *testing.T) {
	fixture := newRunnerFixture()

	_, err := NewGetSaga(fixture.runner, fixture.outcomes).Execute(context.Background(), &GetSagaQuery{
		SagaID: models.GenerateUUID().String(),
	})
	assert.ErrorIs(t, err, domain.ErrSagaNotFound)
}

func TestGetSaga_FallsBackToRepository(t *testing.T) {
	fixture := newRunnerFixture()
	ctx := context.Background()

	sagaID := models.GenerateUUID()
	outcome := &saga.Outcome{
		SagaID:    sagaID,
		Type:      saga.TypeOrderProcessing,
		State:     saga.StateCompleted,
		Timeline:  []saga.TimelineEntry{{Step: saga.StepValidateOrder}},
		StartedAt: time.Now(),
	}
	require.NoError(t, fixture.outcomes.Save(ctx, outcome))

	snapshot, err := NewGetSaga(fixture.runner, fixture.outcomes).Execute(ctx, &GetSagaQuery{SagaID: sagaID.String()})
	require.NoError(t, err)
	assert.Equal(t, saga.StateCompleted, snapshot.State)
	assert.Equal(t, []saga.StepName{saga.StepValidateOrder}, snapshot.StepsCompleted)
}

func TestListSagas_FiltersByType(t *testing.T) {
	fixture := newRunnerFixture()
	ctx := context.Background()

	orderResponse, err := NewStartOrderSaga(fixture.runner).Execute(ctx, orderCommand())
	require.NoError(t, err)

	userResponse, err := NewStartUserSaga(fixture.runner).Execute(ctx, &StartUserSagaCommand{
		Email:    "ada@example.com",
		Password: "correct-horse",
		Name:     "Ada Lovelace",
	})
	require.NoError(t, err)

	orderID, err := models.NewID(orderResponse.SagaID)
	require.NoError(t, err)
	userID, err := models.NewID(userResponse.SagaID)
	require.NoError(t, err)
	waitTerminal(t, fixture.runner, orderID)
	waitTerminal(t, fixture.runner, userID)

	listSagas := NewListSagas(fixture.runner)

	all, err := listSagas.Execute(ctx, &ListSagasQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Count)

	orders, err := listSagas.Execute(ctx, &ListSagasQuery{Type: string(saga.TypeOrderProcessing)})
	require.NoError(t, err)
	require.Equal(t, 1, orders.Count)
	assert.Equal(t, saga.TypeOrderProcessing, orders.Sagas[0].Type)

	_, err = listSagas.Execute(ctx, &ListSagasQuery{Type: "Unknown"})
	assert.ErrorContains(t, err, "unknown saga type")
}
