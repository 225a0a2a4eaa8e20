// Package store persists order records. The worker is the only writer after
// creation; the gateway creates rows and reads them. Two drivers are
// provided: SQLite for single-binary deployments and Postgres for shared
// ones, selected by config.
package store

import (
	"context"
	"errors"

	"github.com/ItshMoh/sol-sniper-engine/internal/order"
)

// ErrNotFound is returned when an order id is unknown.
var ErrNotFound = errors.New("order not found")

// Fields are the optional columns set alongside a status update. Empty
// strings leave the column untouched; each is set once and never cleared.
type Fields struct {
	SelectedDex  string
	TxHash       string
	ErrorMessage string
}

type Store interface {
	// CreateOrder inserts a new order row. CreatedAt/UpdatedAt are set by
	// the store.
	CreateOrder(ctx context.Context, o *order.Order) error

	// GetOrder returns the persisted record or ErrNotFound.
	GetOrder(ctx context.Context, id string) (*order.Order, error)

	// UpdateStatus transitions the order and refreshes updated_at. Returns
	// ErrNotFound for unknown ids.
	UpdateStatus(ctx context.Context, id string, status order.Status, f Fields) error

	Ping(ctx context.Context) error
	Close() error
}
