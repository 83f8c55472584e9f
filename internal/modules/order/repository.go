package order

import (
	"context"
	"database/sql"

	"github.com/fairwayhq/fairway-backend/internal/modules/lifecycle"
)

// Querier is satisfied by *sql.DB and *sql.Tx so the resolver can join the
// payment commit transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Resolver applies reconciliation outcomes to bookings and carts.
type Resolver interface {
	// ApplyStatus sets the status of the order addressed by ref and returns it.
	// A missing order is ErrOrderNotFound.
	ApplyStatus(ctx context.Context, ref Ref, status lifecycle.Status) (*Order, error)
}

// Repository defines data access for bookings and carts.
type Repository interface {
	// CreateBooking inserts the booking and assigns its slug in one transaction.
	CreateBooking(ctx context.Context, b *Booking, prefix string) error

	// CreateCart inserts the cart with its items and assigns its slug in one transaction.
	CreateCart(ctx context.Context, c *Cart) error

	// FindBySlug returns the order addressed by ref.
	FindBySlug(ctx context.Context, ref Ref) (*Order, error)

	// ListBookingsByUser returns a user's bookings, newest first.
	ListBookingsByUser(ctx context.Context, userID string) ([]*Booking, error)
}
