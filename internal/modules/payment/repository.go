package payment

import (
	"context"
	"errors"

	"github.com/fairwayhq/fairway-backend/internal/modules/order"
)

var (
	ErrNotFound           = errors.New("payment not found")
	ErrTransitionRejected = errors.New("status transition rejected")
	ErrStaleResult        = errors.New("result for a superseded push request")
)

// Store is the payment ledger. It is the only writer of payment rows.
type Store interface {
	// FindByInvoice returns the row or ErrNotFound.
	FindByInvoice(ctx context.Context, invoice string) (*Payment, error)

	// WithinTx runs fn in one transaction; any error rolls everything back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// RecordWebhookEvent appends a raw notification.
	RecordWebhookEvent(ctx context.Context, evt *WebhookEvent) error
}

// Tx is the unit of work for one reconciliation commit.
type Tx interface {
	// LockByInvoice serializes writers of one invoice and returns the row,
	// or ErrNotFound when nothing is stored yet.
	LockByInvoice(ctx context.Context, invoice string) (*Payment, error)

	// UpsertByInvoice creates the row or merges the non-nil fields into it.
	UpsertByInvoice(ctx context.Context, invoice string, f Fields) (*Payment, error)

	// Orders returns a resolver sharing this transaction.
	Orders() order.Resolver
}

// OrderFinder looks up an order without modifying it.
type OrderFinder interface {
	FindBySlug(ctx context.Context, ref order.Ref) (*order.Order, error)
}
