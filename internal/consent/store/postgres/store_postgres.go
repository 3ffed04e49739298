// Package postgres persists consent grants in Postgres via database/sql and
// the pq driver. Schema lives in migrations/001_consents.sql.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"podbroker/internal/consent/models"
	"podbroker/pkg/domain"
	"podbroker/pkg/platform/sentinel"
)

const defaultQueryTimeout = 5 * time.Second

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx so store methods run
// inside a transaction when one is on the context.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) conn(ctx context.Context) querier {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return s.db
}

func (s *Store) PutGrant(ctx context.Context, grant *models.ConsentGrant) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	const q = `
		INSERT INTO consents (id, user_id, third_party_id, data_types, purpose, status, granted_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.conn(ctx).ExecContext(ctx, q,
		grant.ID.String(),
		grant.UserID.String(),
		grant.ThirdPartyID.String(),
		pq.Array(dataTypeStrings(grant.DataTypes)),
		grant.Purpose,
		string(grant.Status),
		grant.GrantedAt,
		grant.RevokedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert consent: %w", err)
	}
	return nil
}

func (s *Store) GetGrant(ctx context.Context, id domain.ConsentID) (*models.ConsentGrant, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	const q = `
		SELECT id, user_id, third_party_id, data_types, purpose, status, granted_at, revoked_at
		FROM consents
		WHERE id = $1`

	row := s.conn(ctx).QueryRowContext(ctx, q, id.String())
	grant, err := scanGrant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("select consent: %w", err)
	}
	return grant, nil
}

func (s *Store) UpdateGrant(ctx context.Context, grant *models.ConsentGrant) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	const q = `
		UPDATE consents
		SET status = $2, revoked_at = $3
		WHERE id = $1`

	res, err := s.conn(ctx).ExecContext(ctx, q, grant.ID.String(), string(grant.Status), grant.RevokedAt)
	if err != nil {
		return fmt.Errorf("update consent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update consent rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) ListGrants(ctx context.Context, userID domain.UserID) ([]*models.ConsentGrant, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	const q = `
		SELECT id, user_id, third_party_id, data_types, purpose, status, granted_at, revoked_at
		FROM consents
		WHERE user_id = $1
		ORDER BY granted_at ASC, id ASC`

	rows, err := s.conn(ctx).QueryContext(ctx, q, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	defer rows.Close()

	var grants []*models.ConsentGrant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consents: %w", err)
	}
	return grants, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanGrant(row scannable) (*models.ConsentGrant, error) {
	var (
		g         models.ConsentGrant
		id        string
		userID    string
		tp        string
		dataTypes []string
		status    string
		revokedAt sql.NullTime
	)
	err := row.Scan(&id, &userID, &tp, pq.Array(&dataTypes), &g.Purpose, &status, &g.GrantedAt, &revokedAt)
	if err != nil {
		return nil, err
	}
	g.ID = domain.ConsentID(id)
	g.UserID = domain.UserID(userID)
	g.ThirdPartyID = domain.ThirdPartyID(tp)
	g.Status = models.GrantStatus(status)
	g.DataTypes = make([]domain.DataType, len(dataTypes))
	for i, dt := range dataTypes {
		g.DataTypes[i] = domain.DataType(dt)
	}
	if revokedAt.Valid {
		t := revokedAt.Time.UTC()
		g.RevokedAt = &t
	}
	g.GrantedAt = g.GrantedAt.UTC()
	return &g, nil
}

func dataTypeStrings(dataTypes []domain.DataType) []string {
	out := make([]string, len(dataTypes))
	for i, dt := range dataTypes {
		out[i] = dt.String()
	}
	return out
}
