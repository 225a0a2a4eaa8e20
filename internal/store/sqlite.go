package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ItshMoh/sol-sniper-engine/internal/order"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps orders in a local SQLite database. Single writer
// connection with WAL keeps concurrent worker updates serialized without
// cross-order locking in our code.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id            TEXT PRIMARY KEY,
			status        TEXT    NOT NULL,
			token_address TEXT    NOT NULL,
			amount_in     INTEGER NOT NULL,
			slippage_bps  INTEGER NOT NULL,
			selected_dex  TEXT,
			tx_hash       TEXT,
			error_message TEXT,
			created_at    TEXT    NOT NULL,
			updated_at    TEXT    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateOrder(ctx context.Context, o *order.Order) error {
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, status, token_address, amount_in, slippage_bps, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, string(o.Status), o.TokenAddress, o.AmountIn, o.SlippageBps,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, token_address, amount_in, slippage_bps,
		        selected_dex, tx_hash, error_message, created_at, updated_at
		 FROM orders WHERE id = ?`, id)

	var (
		o                    order.Order
		status               string
		dex, txHash, errMsg  sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&o.ID, &status, &o.TokenAddress, &o.AmountIn, &o.SlippageBps,
		&dex, &txHash, &errMsg, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	o.Status = order.Status(status)
	if dex.Valid {
		o.SelectedDex = &dex.String
	}
	if txHash.Valid {
		o.TxHash = &txHash.String
	}
	if errMsg.Valid {
		o.ErrorMessage = &errMsg.String
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		o.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		o.UpdatedAt = t
	}

	return &o, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status order.Status, f Fields) error {
	set := "status = ?, updated_at = ?"
	args := []any{string(status), time.Now().UTC().Format(time.RFC3339Nano)}

	if f.SelectedDex != "" {
		set += ", selected_dex = ?"
		args = append(args, f.SelectedDex)
	}
	if f.TxHash != "" {
		set += ", tx_hash = ?"
		args = append(args, f.TxHash)
	}
	if f.ErrorMessage != "" {
		set += ", error_message = ?"
		args = append(args, f.ErrorMessage)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, "UPDATE orders SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
