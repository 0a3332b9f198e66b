package saga

import (
	"time"

	"github.com/northcart/order-system/shared/models"
)

// Type identifies a saga variant. The set is closed: every saga type has a
// dedicated coordinator with a fixed step order.
type Type string

const (
	TypeOrderProcessing  Type = "OrderProcessing"
	TypeUserRegistration Type = "UserRegistration"
)

// State represents the lifecycle state of a saga execution.
// Transitions are monotonic: terminal states never transition again.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state is terminal.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// StepName identifies a step within a saga. Step names form a closed set
// per saga type; coordinators invoke steps directly, never by name lookup.
type StepName string

// Order processing steps
const (
	StepValidateOrder    StepName = "ValidateOrder"
	StepCheckInventory   StepName = "CheckInventory"
	StepProcessPayment   StepName = "ProcessPayment"
	StepFulfillOrder     StepName = "FulfillOrder"
	StepSendConfirmation StepName = "SendConfirmation"
)

// User registration steps
const (
	StepValidateUser     StepName = "ValidateUser"
	StepHashPassword     StepName = "HashPassword"
	StepCreateUser       StepName = "CreateUser"
	StepSendWelcomeEmail StepName = "SendWelcomeEmail"
	StepGenerateAPIKey   StepName = "GenerateApiKey"
	StepSetupPreferences StepName = "SetupPreferences"
)

// StepResult is the output of a completed step. It is immutable once
// produced and owned by the saga execution that produced it.
type StepResult struct {
	Step        StepName    `json:"step"`
	Output      interface{} `json:"output"`
	CompletedAt time.Time   `json:"completed_at"`
}

// TimelineEntry records when a step completed, in execution order.
type TimelineEntry struct {
	Step        StepName  `json:"step"`
	CompletedAt time.Time `json:"completed_at"`
}

// Compensation records a corrective action taken after a step had to be
// undone (inventory release, user deletion).
type Compensation struct {
	Action     string    `json:"action"`
	Detail     string    `json:"detail,omitempty"`
	ExecutedAt time.Time `json:"executed_at"`
}

// Outcome is the single terminal record of a saga execution. It is created
// once at termination and never mutated afterwards.
type Outcome struct {
	SagaID             models.ID                `json:"saga_id"`
	Type               Type                     `json:"type"`
	State              State                    `json:"state"`
	Results            map[StepName]interface{} `json:"results,omitempty"`
	Timeline           []TimelineEntry          `json:"timeline,omitempty"`
	Compensations      []Compensation           `json:"compensations,omitempty"`
	Error              string                   `json:"error,omitempty"`
	CancellationReason string                   `json:"cancellation_reason,omitempty"`
	StatusNote         string                   `json:"status_note,omitempty"`
	StartedAt          time.Time                `json:"started_at"`
	EndedAt            time.Time                `json:"ended_at"`
}

// Progress receives in-flight execution updates from a coordinator. The
// runner uses it to serve Describe snapshots without blocking on a running
// step.
type Progress interface {
	StateChanged(state State)
	StepCompleted(step StepName)
}

// NopProgress discards all updates.
type NopProgress struct{}

func (NopProgress) StateChanged(State)     {}
func (NopProgress) StepCompleted(StepName) {}
