package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fairwayhq/fairway-backend/internal/modules/order"
)

type postgresStore struct{ db *sql.DB }

func NewPostgresStore(db *sql.DB) Store { return &postgresStore{db: db} }

func (s *postgresStore) FindByInvoice(ctx context.Context, invoice string) (*Payment, error) {
	return scanPayment(s.db.QueryRowContext(ctx, selectSQL+" WHERE invoice_number=$1", invoice))
}

func (s *postgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *postgresStore) RecordWebhookEvent(ctx context.Context, evt *WebhookEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_webhook_events (id, invoice_number, source, payload, received_at)
		VALUES ($1,$2,$3,$4,$5)`,
		evt.ID, nilIfEmpty(evt.InvoiceNumber), string(evt.Source), evt.Payload, evt.ReceivedAt)
	return err
}

type pgTx struct{ tx *sql.Tx }

// LockByInvoice takes a transaction-scoped advisory lock on the invoice before
// reading, so two first notifications for a new invoice also serialize.
func (t *pgTx) LockByInvoice(ctx context.Context, invoice string) (*Payment, error) {
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, invoice); err != nil {
		return nil, fmt.Errorf("lock invoice: %w", err)
	}
	return scanPayment(t.tx.QueryRowContext(ctx, selectSQL+" WHERE invoice_number=$1 FOR UPDATE", invoice))
}

func (t *pgTx) UpsertByInvoice(ctx context.Context, invoice string, f Fields) (*Payment, error) {
	var status, kind, amount, booking interface{}
	if f.Status != nil {
		status = string(*f.Status)
	}
	if f.OrderKind != nil {
		kind = string(*f.OrderKind)
	}
	if f.Amount != nil {
		amount = f.Amount.String()
	}
	if f.BookingID != nil {
		booking = f.BookingID.String()
	}

	return scanPayment(t.tx.QueryRowContext(ctx, `
		INSERT INTO payments
		  (id, invoice_number, amount, status, checkout_request_id,
		   result_description, payment_code, order_kind, booking_id)
		VALUES ($1, $2, COALESCE($3::numeric, 0), COALESCE($4::text, 'Pending'), $5::text,
		        $6::text, $7::text, $8::text, $9::uuid)
		ON CONFLICT (invoice_number) DO UPDATE SET
		  amount              = COALESCE($3::numeric, payments.amount),
		  status              = COALESCE($4::text, payments.status),
		  checkout_request_id = COALESCE($5::text, payments.checkout_request_id),
		  result_description  = COALESCE($6::text, payments.result_description),
		  payment_code        = COALESCE($7::text, payments.payment_code),
		  order_kind          = COALESCE($8::text, payments.order_kind),
		  booking_id          = COALESCE($9::uuid, payments.booking_id),
		  updated_at          = now()
		RETURNING `+paymentColumns,
		uuid.New(), invoice, amount, status, optString(f.CheckoutRequestID),
		optString(f.ResultDescription), optString(f.PaymentCode), kind, booking))
}

func (t *pgTx) Orders() order.Resolver { return order.NewResolver(t.tx) }

// ── Scanner ───────────────────────────────────────────────────────────────────

const paymentColumns = `id, invoice_number, amount, status, checkout_request_id, result_description,
	       payment_code, order_kind, booking_id, created_at, updated_at`

const selectSQL = `SELECT ` + paymentColumns + ` FROM payments`

type rowScanner interface{ Scan(dest ...interface{}) error }

func scanPayment(row rowScanner) (*Payment, error) {
	p := &Payment{}
	var checkoutID, resultDesc, code, kind sql.NullString
	var bookingID uuid.NullUUID

	err := row.Scan(&p.ID, &p.InvoiceNumber, &p.Amount, &p.Status, &checkoutID, &resultDesc,
		&code, &kind, &bookingID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.CheckoutRequestID = checkoutID.String
	p.ResultDescription = resultDesc.String
	p.PaymentCode = code.String
	p.OrderKind = order.Kind(kind.String)
	if bookingID.Valid {
		id := bookingID.UUID
		p.BookingID = &id
	}
	return p, nil
}

func optString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
