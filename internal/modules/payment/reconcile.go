package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fairwayhq/fairway-backend/internal/events"
	"github.com/fairwayhq/fairway-backend/internal/modules/lifecycle"
	"github.com/fairwayhq/fairway-backend/internal/modules/order"
)

// outcome is one normalized result to be committed against an invoice.
type outcome struct {
	status            lifecycle.Status
	amount            *decimal.Decimal
	checkoutRequestID string
	resultDesc        string
	paymentCode       *string
	orderKind         order.Kind
	source            Source

	// restart replaces a pending or failed attempt with a new push request.
	restart bool
}

// commit applies o to the order and the payment in one transaction, order
// first. A missing order aborts before the payment is written. Stale and
// rejected results return the stored payment with ErrStaleResult or
// ErrTransitionRejected.
func (s *service) commit(ctx context.Context, invoice string, o outcome) (*Payment, error) {
	var (
		result   *Payment
		previous = lifecycle.Pending
		kind     order.Kind
	)

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.LockByInvoice(ctx, invoice)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if current != nil {
			previous = current.Status
			kind = current.OrderKind
		}

		if o.restart {
			if !restartable(previous) {
				result = current
				return fmt.Errorf("%w: cannot restart %s payment", ErrTransitionRejected, previous)
			}
		} else {
			if current != nil && o.checkoutRequestID != "" && current.CheckoutRequestID != "" &&
				o.checkoutRequestID != current.CheckoutRequestID {
				result = current
				return ErrStaleResult
			}
			if !lifecycle.CanTransition(previous, o.status) {
				result = current
				return fmt.Errorf("%w: %s -> %s", ErrTransitionRejected, previous, o.status)
			}
		}

		if o.orderKind != "" {
			kind = o.orderKind
		}
		ref, err := order.RefFor(kind, invoice)
		if err != nil {
			return err
		}
		ord, err := tx.Orders().ApplyStatus(ctx, ref, o.status)
		if err != nil {
			return err
		}

		status := o.status
		f := Fields{
			Status:    &status,
			Amount:    o.amount,
			OrderKind: &ref.Kind,
		}
		if o.checkoutRequestID != "" {
			f.CheckoutRequestID = &o.checkoutRequestID
		}
		if o.resultDesc != "" {
			f.ResultDescription = &o.resultDesc
		}
		if o.paymentCode != nil {
			f.PaymentCode = o.paymentCode
		}
		if ref.Kind == order.KindBooking {
			f.BookingID = &ord.ID
		}
		kind = ref.Kind

		result, err = tx.UpsertByInvoice(ctx, invoice, f)
		return err
	})
	if err != nil {
		return result, err
	}

	if result.Status != previous {
		s.logger.InfoContext(ctx, "payment status changed", "invoice", invoice, "from", previous, "to", result.Status, "source", o.source)
		s.publish(ctx, events.PaymentStatusChanged{
			InvoiceNumber:  invoice,
			Status:         string(result.Status),
			PreviousStatus: string(previous),
			OrderKind:      string(kind),
			Source:         string(o.source),
			OccurredAt:     time.Now().UTC(),
		})
	}
	return result, nil
}

func (s *service) publish(ctx context.Context, evt events.PaymentStatusChanged) {
	if err := s.publisher.PublishPaymentStatusChanged(ctx, evt); err != nil {
		s.logger.ErrorContext(ctx, "publish status change failed", "invoice", evt.InvoiceNumber, "err", err)
	}
}
