package config

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/northcart/order-system/orchestrator-service/application"
	"github.com/northcart/order-system/orchestrator-service/handlers"
	"github.com/northcart/order-system/orchestrator-service/infrastructure"
	"github.com/northcart/order-system/orchestrator-service/workflows"
	sharedinfra "github.com/northcart/order-system/shared/infrastructure"
	"github.com/northcart/order-system/shared/saga"
	"github.com/northcart/order-system/shared/telemetry"
)

// Dependencies is the explicit wiring of the service. Everything a
// component needs arrives through its constructor; nothing reaches for
// process-wide state.
type Dependencies struct {
	// Database
	DB *sqlx.DB

	// Repositories and event store
	OutcomeRepository *infrastructure.PostgresOutcomeRepository
	EventStore        *sharedinfra.PostgresEventStore

	// Simulated collaborators
	Inventory     *infrastructure.SimulatedInventoryService
	Payments      *infrastructure.SimulatedPaymentGateway
	Fulfillment   *infrastructure.SimulatedFulfillmentService
	Notifications *infrastructure.SimulatedNotificationService
	UserDirectory *infrastructure.MemoryUserDirectory
	Credentials   *infrastructure.SimulatedCredentialIssuer
	Preferences   *infrastructure.MemoryPreferenceStore

	// Saga machinery
	Executor      *saga.Executor
	OrderWorkflow *workflows.OrderWorkflow
	UserWorkflow  *workflows.UserWorkflow
	Runner        *application.Runner

	// Use Cases
	StartOrderSaga *application.StartOrderSaga
	StartUserSaga  *application.StartUserSaga
	SignalSaga     *application.SignalSaga
	GetSaga        *application.GetSaga
	ListSagas      *application.ListSagas

	// HTTP Handlers
	SagaHandlers *handlers.SagaHandlers

	// Event Handlers
	SagaEventHandlers *handlers.SagaEventHandlers

	// Infrastructure
	EventPublisher  *sharedinfra.SNSPublisherAdapter
	EventSubscriber *sharedinfra.SQSSubscriberAdapter

	// Telemetry
	Telemetry         *telemetry.Telemetry
	telemetryShutdown func()
}

func BuildDependencies(ctx context.Context, config *Config) (*Dependencies, error) {
	deps := &Dependencies{}

	tel, telShutdown, err := telemetry.InitTelemetry(ctx,
		telemetry.OrchestratorServiceConfig.
			WithOTLPEndpoint(config.Telemetry.OTLPEndpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	deps.Telemetry = tel
	deps.telemetryShutdown = telShutdown

	db, err := sqlx.Connect("postgres", config.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	deps.DB = db

	eventPublisher, err := sharedinfra.NewSNSPublisherAdapter(config.AWS.SNSTopicArn)
	if err != nil {
		return nil, fmt.Errorf("failed to create SNS publisher: %w", err)
	}
	deps.EventPublisher = eventPublisher

	eventSubscriber, err := sharedinfra.NewSQSSubscriberAdapter(config.AWS.SQSQueueURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQS subscriber: %w", err)
	}
	deps.EventSubscriber = eventSubscriber

	deps.OutcomeRepository = infrastructure.NewPostgresOutcomeRepository(db)
	deps.EventStore = sharedinfra.NewPostgresEventStore(db)

	deps.Inventory = infrastructure.NewSimulatedInventoryService(nil)
	deps.Payments = infrastructure.NewSimulatedPaymentGateway(config.Simulation.PaymentDeclineRate)
	deps.Fulfillment = infrastructure.NewSimulatedFulfillmentService()
	deps.Notifications = infrastructure.NewSimulatedNotificationService()
	deps.UserDirectory = infrastructure.NewMemoryUserDirectory()
	deps.Credentials = infrastructure.NewSimulatedCredentialIssuer()
	deps.Preferences = infrastructure.NewMemoryPreferenceStore()

	deps.Executor = saga.NewExecutor(config.RetryPolicy())
	deps.OrderWorkflow = workflows.NewOrderWorkflow(
		deps.Executor,
		deps.Inventory,
		deps.Payments,
		deps.Fulfillment,
		deps.Notifications,
		deps.EventPublisher,
		deps.EventStore,
	)
	deps.UserWorkflow = workflows.NewUserWorkflow(
		deps.Executor,
		deps.UserDirectory,
		deps.Notifications,
		deps.Credentials,
		deps.Preferences,
		deps.EventPublisher,
		deps.EventStore,
	)
	deps.Runner = application.NewRunner(deps.OrderWorkflow, deps.UserWorkflow, deps.OutcomeRepository)

	deps.StartOrderSaga = application.NewStartOrderSaga(deps.Runner)
	deps.StartUserSaga = application.NewStartUserSaga(deps.Runner)
	deps.SignalSaga = application.NewSignalSaga(deps.Runner)
	deps.GetSaga = application.NewGetSaga(deps.Runner, deps.OutcomeRepository)
	deps.ListSagas = application.NewListSagas(deps.Runner)

	deps.SagaHandlers = handlers.NewSagaHandlers(
		deps.StartOrderSaga,
		deps.StartUserSaga,
		deps.SignalSaga,
		deps.GetSaga,
		deps.ListSagas,
	)
	deps.SagaEventHandlers = handlers.NewSagaEventHandlers(deps.SignalSaga)

	return deps, nil
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	var errs []error

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.EventPublisher != nil {
		if err := d.EventPublisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
		}
	}

	if d.EventSubscriber != nil {
		if err := d.EventSubscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event subscriber: %w", err))
		}
	}

	if d.telemetryShutdown != nil {
		d.telemetryShutdown()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
