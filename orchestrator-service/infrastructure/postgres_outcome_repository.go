package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/northcart/order-system/orchestrator-service/domain"
	"github.com/northcart/order-system/shared/models"
	"github.com/northcart/order-system/shared/saga"
)

// PostgresOutcomeRepository implements OutcomeRepository using PostgreSQL
type PostgresOutcomeRepository struct {
	db *sqlx.DB
}

// NewPostgresOutcomeRepository creates a new PostgresOutcomeRepository
func NewPostgresOutcomeRepository(db *sqlx.DB) *PostgresOutcomeRepository {
	return &PostgresOutcomeRepository{db: db}
}

// postgresOutcome represents a saga outcome row. Step results, timeline
// and compensations are stored as JSON documents.
type postgresOutcome struct {
	SagaID             string     `db:"saga_id"`
	Type               string     `db:"saga_type"`
	State              string     `db:"state"`
	Results            []byte     `db:"results"`
	Timeline           []byte     `db:"timeline"`
	Compensations      []byte     `db:"compensations"`
	Error              string     `db:"error"`
	CancellationReason string     `db:"cancellation_reason"`
	StatusNote         string     `db:"status_note"`
	StartedAt          time.Time  `db:"started_at"`
	EndedAt            *time.Time `db:"ended_at"`
}

// Save upserts a terminal saga outcome
func (r *PostgresOutcomeRepository) Save(ctx context.Context, outcome *saga.Outcome) error {
	pgOutcome, err := r.toPostgres(outcome)
	if err != nil {
		return errors.Wrap(err, "failed to convert outcome")
	}

	query := `
		INSERT INTO saga_outcomes (
			saga_id, saga_type, state, results, timeline, compensations,
			error, cancellation_reason, status_note, started_at, ended_at
		) VALUES (
			:saga_id, :saga_type, :state, :results, :timeline, :compensations,
			:error, :cancellation_reason, :status_note, :started_at, :ended_at
		)
		ON CONFLICT (saga_id) DO UPDATE SET
			state = EXCLUDED.state,
			results = EXCLUDED.results,
			timeline = EXCLUDED.timeline,
			compensations = EXCLUDED.compensations,
			error = EXCLUDED.error,
			cancellation_reason = EXCLUDED.cancellation_reason,
			status_note = EXCLUDED.status_note,
			ended_at = EXCLUDED.ended_at`

	if _, err := r.db.NamedExecContext(ctx, query, pgOutcome); err != nil {
		return errors.Wrap(err, "failed to save saga outcome")
	}

	return nil
}

// FindBySagaID finds an outcome by saga ID
func (r *PostgresOutcomeRepository) FindBySagaID(ctx context.Context, sagaID models.ID) (*saga.Outcome, error) {
	query := `
		SELECT saga_id, saga_type, state, results, timeline, compensations,
			   error, cancellation_reason, status_note, started_at, ended_at
		FROM saga_outcomes
		WHERE saga_id = $1`

	var pgOutcome postgresOutcome
	err := r.db.GetContext(ctx, &pgOutcome, query, sagaID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrSagaNotFound
		}
		return nil, errors.Wrap(err, "failed to find saga outcome")
	}

	return r.toDomain(&pgOutcome)
}

// List returns outcomes newest first, optionally filtered by saga type
func (r *PostgresOutcomeRepository) List(ctx context.Context, sagaType saga.Type, limit int) ([]*saga.Outcome, error) {
	query := `
		SELECT saga_id, saga_type, state, results, timeline, compensations,
			   error, cancellation_reason, status_note, started_at, ended_at
		FROM saga_outcomes`

	args := []interface{}{}
	if sagaType != "" {
		query += " WHERE saga_type = $1"
		args = append(args, string(sagaType))
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		if sagaType != "" {
			query += " LIMIT $2"
		} else {
			query += " LIMIT $1"
		}
		args = append(args, limit)
	}

	var pgOutcomes []postgresOutcome
	if err := r.db.SelectContext(ctx, &pgOutcomes, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list saga outcomes")
	}

	outcomes := make([]*saga.Outcome, len(pgOutcomes))
	for i := range pgOutcomes {
		outcome, err := r.toDomain(&pgOutcomes[i])
		if err != nil {
			return nil, err
		}
		outcomes[i] = outcome
	}

	return outcomes, nil
}

func (r *PostgresOutcomeRepository) toPostgres(outcome *saga.Outcome) (*postgresOutcome, error) {
	results, err := json.Marshal(outcome.Results)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal results")
	}

	timeline, err := json.Marshal(outcome.Timeline)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal timeline")
	}

	compensations, err := json.Marshal(outcome.Compensations)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal compensations")
	}

	pgOutcome := &postgresOutcome{
		SagaID:             outcome.SagaID.String(),
		Type:               string(outcome.Type),
		State:              string(outcome.State),
		Results:            results,
		Timeline:           timeline,
		Compensations:      compensations,
		Error:              outcome.Error,
		CancellationReason: outcome.CancellationReason,
		StatusNote:         outcome.StatusNote,
		StartedAt:          outcome.StartedAt,
	}
	if !outcome.EndedAt.IsZero() {
		endedAt := outcome.EndedAt
		pgOutcome.EndedAt = &endedAt
	}

	return pgOutcome, nil
}

func (r *PostgresOutcomeRepository) toDomain(pgOutcome *postgresOutcome) (*saga.Outcome, error) {
	sagaID, err := models.NewID(pgOutcome.SagaID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid saga ID")
	}

	var results map[saga.StepName]interface{}
	if len(pgOutcome.Results) > 0 {
		if err := json.Unmarshal(pgOutcome.Results, &results); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal results")
		}
	}

	var timeline []saga.TimelineEntry
	if len(pgOutcome.Timeline) > 0 {
		if err := json.Unmarshal(pgOutcome.Timeline, &timeline); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal timeline")
		}
	}

	var compensations []saga.Compensation
	if len(pgOutcome.Compensations) > 0 {
		if err := json.Unmarshal(pgOutcome.Compensations, &compensations); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal compensations")
		}
	}

	outcome := &saga.Outcome{
		SagaID:             sagaID,
		Type:               saga.Type(pgOutcome.Type),
		State:              saga.State(pgOutcome.State),
		Results:            results,
		Timeline:           timeline,
		Compensations:      compensations,
		Error:              pgOutcome.Error,
		CancellationReason: pgOutcome.CancellationReason,
		StatusNote:         pgOutcome.StatusNote,
		StartedAt:          pgOutcome.StartedAt,
	}
	if pgOutcome.EndedAt != nil {
		outcome.EndedAt = *pgOutcome.EndedAt
	}

	return outcome, nil
}
