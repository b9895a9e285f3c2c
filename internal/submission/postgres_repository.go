package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const insertSubmission = `
INSERT INTO submissions (id, connector_id, payload_json, outcomes_json, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`

const updateOutcomes = `
UPDATE submissions
SET outcomes_json = $2, status = $3
WHERE id = $1
`

const selectByConnector = `
SELECT id, connector_id, payload_json, outcomes_json, status, created_at
FROM submissions
WHERE connector_id = $1
ORDER BY created_at DESC
`

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Insert stores the validated payload with an empty outcome mapping and
// returns the new submission ID.
func (r *PostgresRepository) Insert(ctx context.Context, connectorID string, payload map[string]any) (string, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	id := uuid.NewString()
	_, err = r.pool.Exec(ctx, insertSubmission,
		id,
		connectorID,
		payloadJSON,
		[]byte("{}"),
		StatusPending,
		time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert submission: %w", err)
	}
	return id, nil
}

// UpdateOutcomes writes the final per-destination results. Called exactly
// once per submission, after dispatch completes.
func (r *PostgresRepository) UpdateOutcomes(ctx context.Context, id string, outcomes map[string]Outcome) error {
	outcomesJSON, err := json.Marshal(outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}
	_, err = r.pool.Exec(ctx, updateOutcomes, id, outcomesJSON, StatusProcessed)
	if err != nil {
		return fmt.Errorf("update submission outcomes: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByConnector(ctx context.Context, connectorID string) ([]Submission, error) {
	rows, err := r.pool.Query(ctx, selectByConnector, connectorID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var submissions []Submission
	for rows.Next() {
		var (
			sub          Submission
			payloadJSON  []byte
			outcomesJSON []byte
		)
		if err := rows.Scan(&sub.ID, &sub.ConnectorID, &payloadJSON, &outcomesJSON, &sub.Status, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if err := json.Unmarshal(payloadJSON, &sub.Payload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		if err := json.Unmarshal(outcomesJSON, &sub.Outcomes); err != nil {
			return nil, fmt.Errorf("decode outcomes: %w", err)
		}
		submissions = append(submissions, sub)
	}
	return submissions, rows.Err()
}
