// Package postgres persists POD data and access requests via pgx. Field
// values land in jsonb columns so stored data keeps its declared shape.
// Schema lives in migrations/002_user_data.sql.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"podbroker/internal/data/models"
	"podbroker/pkg/domain"
	"podbroker/pkg/platform/sentinel"
)

const defaultQueryTimeout = 5 * time.Second

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetData(ctx context.Context, ownerID domain.UserID, dataType domain.DataType) (models.FieldValue, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	const q = `
		SELECT field_type, value
		FROM user_data
		WHERE user_id = $1 AND field = $2`

	var (
		fieldType string
		value     []byte
	)
	err := s.pool.QueryRow(ctx, q, ownerID.String(), dataType.String()).Scan(&fieldType, &value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.FieldValue{}, sentinel.ErrNotFound
		}
		return models.FieldValue{}, fmt.Errorf("select data field: %w", err)
	}
	return models.FieldValue{Type: fieldType, Value: json.RawMessage(value)}, nil
}

func (s *Store) GetAllData(ctx context.Context, ownerID domain.UserID) (models.Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	const q = `
		SELECT field, field_type, value
		FROM user_data
		WHERE user_id = $1`

	rows, err := s.pool.Query(ctx, q, ownerID.String())
	if err != nil {
		return nil, fmt.Errorf("select data record: %w", err)
	}
	defer rows.Close()

	payload := models.Payload{}
	for rows.Next() {
		var (
			field     string
			fieldType string
			value     []byte
		)
		if err := rows.Scan(&field, &fieldType, &value); err != nil {
			return nil, fmt.Errorf("scan data field: %w", err)
		}
		payload[field] = models.FieldValue{Type: fieldType, Value: json.RawMessage(value)}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate data fields: %w", err)
	}
	return payload, nil
}

// UpdateData upserts the listed fields in a single transaction so a failure
// mid-payload leaves the record untouched.
func (s *Store) UpdateData(ctx context.Context, ownerID domain.UserID, payload models.Payload) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	const q = `
		INSERT INTO user_data (user_id, field, field_type, value, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, field)
		DO UPDATE SET field_type = EXCLUDED.field_type, value = EXCLUDED.value, updated_at = now()`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin data update: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for field, descriptor := range payload {
		batch.Queue(q, ownerID.String(), field, descriptor.Type, []byte(descriptor.Value))
	}
	results := tx.SendBatch(ctx, batch)
	for range payload {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("upsert data field: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close data batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit data update: %w", err)
	}
	return nil
}

func (s *Store) PutDataRequest(ctx context.Context, request *models.AccessRequest) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	const q = `
		INSERT INTO access_requests (id, requester_id, owner_id, data_types, purpose, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	dataTypes := make([]string, len(request.DataTypes))
	for i, dt := range request.DataTypes {
		dataTypes[i] = dt.String()
	}
	_, err := s.pool.Exec(ctx, q,
		request.ID.String(),
		request.RequesterID.String(),
		request.OwnerID.String(),
		dataTypes,
		request.Purpose,
		string(request.Status),
		request.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert access request: %w", err)
	}
	return nil
}
