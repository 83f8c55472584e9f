package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/fairwayhq/fairway-backend/internal/apperr"
	"github.com/fairwayhq/fairway-backend/internal/events"
	"github.com/fairwayhq/fairway-backend/internal/modules/lifecycle"
	"github.com/fairwayhq/fairway-backend/internal/modules/order"
)

// Service defines the payment reconciliation operations.
type Service interface {
	// Initiate pushes a payment prompt for the caller's order, waits the
	// configured delay and then polls for the outcome.
	Initiate(ctx context.Context, userID string, req SendRequest) (lifecycle.Status, error)
	// Check polls the gateway for an order the caller owns.
	Check(ctx context.Context, userID, invoice string) (lifecycle.Status, error)
	// Poll queries the gateway with retries and commits the result.
	Poll(ctx context.Context, invoice string) (lifecycle.Status, error)
	// HandleWebhook records and applies an M-Pesa notification for invoice.
	HandleWebhook(ctx context.Context, invoice string, source Source, body []byte) (*Payment, error)
	// HandleCheckoutCallback records and applies a hosted-checkout notification.
	HandleCheckoutCallback(ctx context.Context, cb CheckoutCallback, body []byte) (*Payment, error)
	// SubmitCode moves a payment to In_Review with a manually entered code.
	SubmitCode(ctx context.Context, req CodeRequest) (*Payment, error)
	Get(ctx context.Context, invoice string) (*Payment, error)
}

// Options tunes the polling sequence.
type Options struct {
	InitialDelay time.Duration
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffMax   time.Duration
}

type service struct {
	store     Store
	orders    OrderFinder
	gateway   Gateway
	publisher events.Publisher
	opts      Options
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewService(store Store, orders OrderFinder, gateway Gateway, publisher events.Publisher, opts Options, logger *slog.Logger) Service {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &service{
		store:     store,
		orders:    orders,
		gateway:   gateway,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

func (s *service) Initiate(ctx context.Context, userID string, req SendRequest) (lifecycle.Status, error) {
	if !req.Amount.IsPositive() {
		return "", apperr.InvalidErr("validation failed", map[string]string{"amount": "must be greater than 0"})
	}
	ref, err := s.authorize(ctx, userID, req.InvoiceNumber)
	if err != nil {
		return "", err
	}

	existing, err := s.store.FindByInvoice(ctx, req.InvoiceNumber)
	switch {
	case err == nil && !restartable(existing.Status):
		return "", apperr.ConflictErr(fmt.Sprintf("payment already %s", existing.Status))
	case err != nil && !errors.Is(err, ErrNotFound):
		return "", err
	}

	resp, err := s.gateway.InitiatePush(ctx, &PushRequest{
		Amount:          req.Amount,
		PartyA:          req.PartyA,
		PhoneNumber:     req.PhoneNumber,
		InvoiceNumber:   req.InvoiceNumber,
		TransactionDesc: req.TransactionDesc,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "push request failed", "invoice", req.InvoiceNumber, "err", err)
		return "", apperr.GatewayErr(err)
	}

	amount := req.Amount
	p, err := s.commit(ctx, req.InvoiceNumber, outcome{
		status:            lifecycle.Pending,
		amount:            &amount,
		checkoutRequestID: resp.CheckoutRequestID,
		resultDesc:        resp.ResponseDescription,
		orderKind:         ref.Kind,
		source:            SourceInitiate,
		restart:           true,
	})
	if errors.Is(err, ErrTransitionRejected) {
		// the callback for this push can commit before the push itself is recorded
		if p != nil && p.Status.Succeeded() && p.CheckoutRequestID == resp.CheckoutRequestID {
			s.logger.InfoContext(ctx, "push settled before it was recorded", "invoice", req.InvoiceNumber, "checkout_request_id", resp.CheckoutRequestID)
			return p.Status, nil
		}
		return "", apperr.ConflictErr("payment already finalised")
	}
	if err != nil {
		return "", s.translate(err)
	}
	s.logger.InfoContext(ctx, "push request sent", "invoice", req.InvoiceNumber, "checkout_request_id", resp.CheckoutRequestID)

	// the payer needs time to answer the prompt; a disconnecting client
	// must not abandon the poll
	pollCtx := context.WithoutCancel(ctx)
	if err := s.sleep(pollCtx, s.opts.InitialDelay); err != nil {
		return "", err
	}
	return s.Poll(pollCtx, req.InvoiceNumber)
}

func (s *service) Check(ctx context.Context, userID, invoice string) (lifecycle.Status, error) {
	if _, err := s.authorize(ctx, userID, invoice); err != nil {
		return "", err
	}
	return s.Poll(context.WithoutCancel(ctx), invoice)
}

func (s *service) Poll(ctx context.Context, invoice string) (lifecycle.Status, error) {
	p, err := s.store.FindByInvoice(ctx, invoice)
	if errors.Is(err, ErrNotFound) {
		return "", apperr.NotFoundErr("payment not found")
	}
	if err != nil {
		return "", err
	}
	if p.Status.Terminal() {
		return p.Status, nil
	}
	if p.CheckoutRequestID == "" {
		return "", apperr.InvalidErr("payment has no push request to check", nil)
	}

	var resp *QueryResponse
	attempt := 0
	op := func() error {
		attempt++
		r, err := s.gateway.QueryStatus(ctx, p.CheckoutRequestID)
		if err == nil && r.ResultCode == "" {
			err = fmt.Errorf("no result yet for %s", p.CheckoutRequestID)
		}
		if err != nil {
			s.logger.WarnContext(ctx, "status query failed", "invoice", invoice, "attempt", attempt, "err", err)
			return err
		}
		resp = r
		return nil
	}
	if err := backoff.Retry(op, s.backOff(ctx)); err != nil {
		s.logger.ErrorContext(ctx, "status query attempts exhausted", "invoice", invoice, "attempts", attempt, "err", err)
		return "", apperr.GatewayErr(err)
	}

	status := mpesaStatus(ctx, s.logger, resp.ResultCode.String())
	updated, err := s.commit(ctx, invoice, outcome{
		status:            status,
		checkoutRequestID: p.CheckoutRequestID,
		resultDesc:        resp.ResultDesc,
		source:            SourcePoll,
	})
	if updated, err = s.settle(ctx, invoice, updated, err); err != nil {
		return "", err
	}
	return updated.Status, nil
}

func (s *service) HandleWebhook(ctx context.Context, invoice string, source Source, body []byte) (*Payment, error) {
	if err := s.record(ctx, invoice, source, body); err != nil {
		return nil, err
	}

	n, err := ParseNotification(body)
	if err != nil {
		s.logger.WarnContext(ctx, "rejected webhook payload", "invoice", invoice, "source", source, "err", err)
		return nil, apperr.InvalidErr("unrecognised notification payload", nil)
	}

	o := outcome{
		status:            mpesaStatus(ctx, s.logger, n.ResultCode),
		checkoutRequestID: n.CheckoutRequestID,
		resultDesc:        n.ResultDesc,
		source:            source,
	}
	if o.status.Succeeded() && n.Amount != nil {
		o.amount = n.Amount
	}
	p, err := s.commit(ctx, invoice, o)
	return s.settle(ctx, invoice, p, err)
}

func (s *service) HandleCheckoutCallback(ctx context.Context, cb CheckoutCallback, body []byte) (*Payment, error) {
	if err := s.record(ctx, cb.AccountNumber, SourceCheckout, body); err != nil {
		return nil, err
	}

	o := outcome{
		status:     checkoutStatus(ctx, s.logger, cb.RequestStatusCode.String()),
		resultDesc: cb.RequestStatusDescription,
		source:     SourceCheckout,
	}
	if cb.AmountPaid != nil && (o.status.Succeeded() || o.status == lifecycle.Partial) {
		o.amount = cb.AmountPaid
	}
	p, err := s.commit(ctx, cb.AccountNumber, o)
	return s.settle(ctx, cb.AccountNumber, p, err)
}

func (s *service) SubmitCode(ctx context.Context, req CodeRequest) (*Payment, error) {
	code := req.PaymentCode
	p, err := s.commit(ctx, req.InvoiceNumber, outcome{
		status:      lifecycle.InReview,
		paymentCode: &code,
		source:      SourceCode,
	})
	if errors.Is(err, ErrTransitionRejected) {
		return nil, apperr.ConflictErr("payment already finalised")
	}
	if err != nil {
		return nil, s.translate(err)
	}
	return p, nil
}

func (s *service) Get(ctx context.Context, invoice string) (*Payment, error) {
	p, err := s.store.FindByInvoice(ctx, invoice)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFoundErr("payment not found")
	}
	return p, err
}

// authorize resolves the order behind invoice and checks the caller owns it.
func (s *service) authorize(ctx context.Context, userID, invoice string) (order.Ref, error) {
	ref, err := order.ParseRef(invoice)
	if err != nil {
		return order.Ref{}, apperr.NotFoundErr("order not found")
	}
	o, err := s.orders.FindBySlug(ctx, ref)
	if errors.Is(err, order.ErrOrderNotFound) {
		return order.Ref{}, apperr.NotFoundErr("order not found")
	}
	if err != nil {
		return order.Ref{}, err
	}
	if o.UserID != userID {
		return order.Ref{}, apperr.ForbiddenErr("order belongs to another user")
	}
	return ref, nil
}

func (s *service) record(ctx context.Context, invoice string, source Source, body []byte) error {
	err := s.store.RecordWebhookEvent(ctx, &WebhookEvent{
		ID:            uuid.New(),
		InvoiceNumber: invoice,
		Source:        source,
		Payload:       body,
		ReceivedAt:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	return nil
}

// settle finishes a gateway-driven commit. Results that lost the race to an
// earlier outcome are no-ops that report the stored payment.
func (s *service) settle(ctx context.Context, invoice string, p *Payment, err error) (*Payment, error) {
	if errors.Is(err, ErrStaleResult) || errors.Is(err, ErrTransitionRejected) {
		if p == nil {
			// nothing recorded yet that this result could follow, e.g. a refund notice
			s.logger.WarnContext(ctx, "result has no prior payment", "invoice", invoice, "reason", err)
			return nil, apperr.ConflictErr("no payment recorded for this result")
		}
		s.logger.InfoContext(ctx, "ignoring superseded result", "invoice", invoice, "status", p.Status, "reason", err)
		return p, nil
	}
	if err != nil {
		return nil, s.translate(err)
	}
	return p, nil
}

func (s *service) translate(err error) error {
	if errors.Is(err, order.ErrOrderNotFound) {
		return apperr.NotFoundErr("order not found")
	}
	return err
}

func (s *service) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.BackoffBase
	b.MaxInterval = s.opts.BackoffMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.opts.MaxAttempts-1)), ctx)
}

// restartable reports whether a new push may replace the stored attempt.
func restartable(st lifecycle.Status) bool {
	return st == lifecycle.Pending || st.FailedTerminal()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
