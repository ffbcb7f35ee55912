// File: internal/secrets/postgres.go
// Description: PostgreSQL-backed Store for self-hosted deployments that keep
// generated credentials in a database instead of a managed secret service.
package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Expected schema:
//
//	CREATE TABLE secrets (
//	    id         text PRIMARY KEY,
//	    payload    jsonb NOT NULL,
//	    version    bigint NOT NULL DEFAULT 1,
//	    updated_at timestamptz NOT NULL DEFAULT now()
//	);

// DBPool abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store on a secrets table.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store instance and verifies the connection.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping secrets database: %w", err)
	}
	return &PostgresStore{
		pool: pool,
		log:  logger.Named("secrets"),
	}, nil
}

func (s *PostgresStore) Get(ctx context.Context, secretID string) (Payload, error) {
	raw, err := s.GetString(ctx, secretID)
	if err != nil {
		return nil, err
	}
	payload, err := DecodePayload(raw)
	if err != nil {
		return nil, fmt.Errorf("secret %q: %w", secretID, err)
	}
	return payload, nil
}

func (s *PostgresStore) GetString(ctx context.Context, secretID string) (string, error) {
	var raw string
	err := s.pool.QueryRow(ctx, `SELECT payload::text FROM secrets WHERE id = $1`, secretID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("secret %q: %w", secretID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("secret %q: query failed: %w", secretID, err)
	}
	return raw, nil
}

// Patch merges updates into the stored payload and bumps the version. The
// row lock serializes concurrent patches against the same secret.
func (s *PostgresStore) Patch(ctx context.Context, secretID string, updates Payload) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback secret patch", zap.Error(rollbackErr))
		}
	}()

	var raw string
	err = tx.QueryRow(ctx, `SELECT payload::text FROM secrets WHERE id = $1 FOR UPDATE`, secretID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("secret %q: %w", secretID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("secret %q: query failed: %w", secretID, err)
	}

	current, err := DecodePayload(raw)
	if err != nil {
		return fmt.Errorf("secret %q: %w", secretID, err)
	}

	encoded, err := EncodePayload(current.Merge(updates))
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE secrets SET payload = $2::jsonb, version = version + 1, updated_at = now() WHERE id = $1`,
		secretID, encoded)
	if err != nil {
		return fmt.Errorf("secret %q: update failed: %w", secretID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("secret %q: update affected %d rows", secretID, tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit secret patch: %w", err)
	}

	s.log.Info("Secret payload patched", zap.String("secret_id", secretID))
	return nil
}
