package connector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("connector not found")

const selectByWebhookID = `
SELECT id, webhook_id, owner_id, name, description, active, destinations_json, created_at, updated_at
FROM connectors
WHERE webhook_id = $1
`

const selectByOwner = `
SELECT id, webhook_id, owner_id, name, description, active, destinations_json, created_at, updated_at
FROM connectors
WHERE owner_id = $1
ORDER BY created_at DESC
`

const insertConnector = `
INSERT INTO connectors (id, webhook_id, owner_id, name, description, active, destinations_json, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
`

const updateConnector = `
UPDATE connectors
SET name = $2, description = $3, active = $4, destinations_json = $5, updated_at = $6
WHERE id = $1
`

const deleteConnector = `
DELETE FROM connectors WHERE id = $1
`

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetByWebhookID resolves the public ingestion identifier to its connector.
func (r *PostgresRepository) GetByWebhookID(ctx context.Context, webhookID string) (Connector, error) {
	row := r.pool.QueryRow(ctx, selectByWebhookID, webhookID)
	conn, err := scanConnector(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Connector{}, ErrNotFound
		}
		return Connector{}, fmt.Errorf("get connector: %w", err)
	}
	return conn, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]Connector, error) {
	rows, err := r.pool.Query(ctx, selectByOwner, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list connectors: %w", err)
	}
	defer rows.Close()

	var connectors []Connector
	for rows.Next() {
		conn, err := scanConnector(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connector: %w", err)
		}
		connectors = append(connectors, conn)
	}
	return connectors, rows.Err()
}

// Create issues the connector's webhook identifier. The identifier is
// immutable afterwards; Update never touches it.
func (r *PostgresRepository) Create(ctx context.Context, conn Connector) (Connector, error) {
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	conn.WebhookID = uuid.NewString()
	conn.CreatedAt = time.Now().UTC()
	conn.UpdatedAt = conn.CreatedAt

	destinations, err := EncodeDestinations(conn.Destinations)
	if err != nil {
		return Connector{}, fmt.Errorf("encode destinations: %w", err)
	}
	_, err = r.pool.Exec(ctx, insertConnector,
		conn.ID,
		conn.WebhookID,
		conn.OwnerID,
		conn.Name,
		conn.Description,
		conn.Active,
		destinations,
		conn.CreatedAt,
	)
	if err != nil {
		return Connector{}, fmt.Errorf("insert connector: %w", err)
	}
	return conn, nil
}

func (r *PostgresRepository) Update(ctx context.Context, conn Connector) error {
	destinations, err := EncodeDestinations(conn.Destinations)
	if err != nil {
		return fmt.Errorf("encode destinations: %w", err)
	}
	tag, err := r.pool.Exec(ctx, updateConnector,
		conn.ID,
		conn.Name,
		conn.Description,
		conn.Active,
		destinations,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update connector: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteConnector, id)
	if err != nil {
		return fmt.Errorf("delete connector: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanConnector(row pgx.Row) (Connector, error) {
	var (
		conn             Connector
		destinationsJSON []byte
	)
	if err := row.Scan(
		&conn.ID,
		&conn.WebhookID,
		&conn.OwnerID,
		&conn.Name,
		&conn.Description,
		&conn.Active,
		&destinationsJSON,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	); err != nil {
		return Connector{}, err
	}
	destinations, err := DecodeDestinations(destinationsJSON)
	if err != nil {
		return Connector{}, err
	}
	conn.Destinations = destinations
	return conn, nil
}
