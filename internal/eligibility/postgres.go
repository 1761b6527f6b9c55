package eligibility

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTokenSource reads token balances from the token_balances table.
// The table is owned and written by the external balance indexer; this
// source only ever reads it.
type PostgresTokenSource struct {
	pool *pgxpool.Pool
}

// NewPostgresTokenSource creates a PostgresTokenSource backed by the pool.
func NewPostgresTokenSource(pool *pgxpool.Pool) *PostgresTokenSource {
	return &PostgresTokenSource{pool: pool}
}

// Balance implements BalanceSource.
func (s *PostgresTokenSource) Balance(ctx context.Context, identity string) (int64, error) {
	var bal int64
	err := s.pool.QueryRow(ctx,
		"SELECT balance FROM token_balances WHERE identity = $1", identity,
	).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select token balance: %w", err)
	}
	return bal, nil
}

// PostgresNativeSource reads native-currency balances from the
// native_balances table.
type PostgresNativeSource struct {
	pool *pgxpool.Pool
}

// NewPostgresNativeSource creates a PostgresNativeSource backed by the pool.
func NewPostgresNativeSource(pool *pgxpool.Pool) *PostgresNativeSource {
	return &PostgresNativeSource{pool: pool}
}

// Balance implements BalanceSource.
func (s *PostgresNativeSource) Balance(ctx context.Context, identity string) (int64, error) {
	var bal int64
	err := s.pool.QueryRow(ctx,
		"SELECT balance FROM native_balances WHERE identity = $1", identity,
	).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select native balance: %w", err)
	}
	return bal, nil
}

// PostgresNameSource reads reverse name records from the name_records table.
type PostgresNameSource struct {
	pool *pgxpool.Pool
}

// NewPostgresNameSource creates a PostgresNameSource backed by the pool.
func NewPostgresNameSource(pool *pgxpool.Pool) *PostgresNameSource {
	return &PostgresNameSource{pool: pool}
}

// HasNameRecord implements NameSource.
func (s *PostgresNameSource) HasNameRecord(ctx context.Context, identity string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM name_records WHERE owner = $1)", identity,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("select name record: %w", err)
	}
	return exists, nil
}
