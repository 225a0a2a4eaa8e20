package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ItshMoh/sol-sniper-engine/internal/order"
)

// PostgresStore persists orders in Postgres for multi-instance deployments.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id            UUID PRIMARY KEY,
			status        VARCHAR(20) NOT NULL,
			token_address VARCHAR(64) NOT NULL,
			amount_in     BIGINT NOT NULL,
			slippage_bps  INTEGER NOT NULL,
			selected_dex  VARCHAR(20),
			tx_hash       VARCHAR(128),
			error_message TEXT,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at)`,
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) CreateOrder(ctx context.Context, o *order.Order) error {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO orders (id, status, token_address, amount_in, slippage_bps)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		o.ID, string(o.Status), o.TokenAddress, o.AmountIn, o.SlippageBps)
	if err := row.Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, token_address, amount_in, slippage_bps,
		        selected_dex, tx_hash, error_message, created_at, updated_at
		 FROM orders WHERE id = $1`, id)

	var (
		o      order.Order
		status string
	)
	err := row.Scan(&o.ID, &status, &o.TokenAddress, &o.AmountIn, &o.SlippageBps,
		&o.SelectedDex, &o.TxHash, &o.ErrorMessage, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	o.Status = order.Status(status)
	return &o, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status order.Status, f Fields) error {
	set := "status = $2, updated_at = NOW()"
	args := []any{id, string(status)}
	n := 3

	if f.SelectedDex != "" {
		set += fmt.Sprintf(", selected_dex = $%d", n)
		args = append(args, f.SelectedDex)
		n++
	}
	if f.TxHash != "" {
		set += fmt.Sprintf(", tx_hash = $%d", n)
		args = append(args, f.TxHash)
		n++
	}
	if f.ErrorMessage != "" {
		set += fmt.Sprintf(", error_message = $%d", n)
		args = append(args, f.ErrorMessage)
		n++
	}

	tag, err := s.pool.Exec(ctx, "UPDATE orders SET "+set+" WHERE id = $1", args...)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
