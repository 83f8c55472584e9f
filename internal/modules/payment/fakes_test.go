package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairwayhq/fairway-backend/internal/events"
	"github.com/fairwayhq/fairway-backend/internal/modules/lifecycle"
	"github.com/fairwayhq/fairway-backend/internal/modules/order"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore keeps payments and orders in maps. WithinTx works on copies and
// swaps them in only on success, so a failed commit leaves nothing behind.
type memStore struct {
	mu        sync.Mutex
	payments  map[string]*Payment
	orders    map[string]*order.Order
	events    []*WebhookEvent
	recordErr error
	commits   int
	rollbacks int
}

func newMemStore() *memStore {
	return &memStore{payments: map[string]*Payment{}, orders: map[string]*order.Order{}}
}

func (m *memStore) addOrder(slug, userID string) *order.Order {
	ref, err := order.ParseRef(slug)
	if err != nil {
		panic(err)
	}
	o := &order.Order{ID: uuid.New(), Ref: ref, UserID: userID, Status: lifecycle.Pending}
	m.mu.Lock()
	m.orders[slug] = o
	m.mu.Unlock()
	return o
}

func (m *memStore) addPayment(p *Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.payments[p.InvoiceNumber] = p
}

func (m *memStore) payment(invoice string) *Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[invoice]; ok {
		cp := *p
		return &cp
	}
	return nil
}

func (m *memStore) orderStatus(slug string) lifecycle.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[slug].Status
}

func (m *memStore) FindByInvoice(_ context.Context, invoice string) (*Payment, error) {
	if p := m.payment(invoice); p != nil {
		return p, nil
	}
	return nil, ErrNotFound
}

func (m *memStore) FindBySlug(_ context.Context, ref order.Ref) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[ref.Slug]
	if !ok || o.Ref.Kind != ref.Kind {
		return nil, order.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) RecordWebhookEvent(_ context.Context, evt *WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	m.events = append(m.events, evt)
	return nil
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{payments: map[string]*Payment{}, orders: map[string]*order.Order{}}
	for k, v := range m.payments {
		cp := *v
		tx.payments[k] = &cp
	}
	for k, v := range m.orders {
		cp := *v
		tx.orders[k] = &cp
	}

	if err := fn(ctx, tx); err != nil {
		m.rollbacks++
		return err
	}
	m.payments, m.orders = tx.payments, tx.orders
	m.commits++
	return nil
}

type memTx struct {
	payments map[string]*Payment
	orders   map[string]*order.Order
}

func (t *memTx) LockByInvoice(_ context.Context, invoice string) (*Payment, error) {
	p, ok := t.payments[invoice]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) UpsertByInvoice(_ context.Context, invoice string, f Fields) (*Payment, error) {
	p, ok := t.payments[invoice]
	if !ok {
		p = &Payment{ID: uuid.New(), InvoiceNumber: invoice, Status: lifecycle.Pending, CreatedAt: time.Now()}
		t.payments[invoice] = p
	}
	if f.Status != nil {
		p.Status = *f.Status
	}
	if f.Amount != nil {
		p.Amount = *f.Amount
	}
	if f.CheckoutRequestID != nil {
		p.CheckoutRequestID = *f.CheckoutRequestID
	}
	if f.ResultDescription != nil {
		p.ResultDescription = *f.ResultDescription
	}
	if f.PaymentCode != nil {
		p.PaymentCode = *f.PaymentCode
	}
	if f.OrderKind != nil {
		p.OrderKind = *f.OrderKind
	}
	if f.BookingID != nil {
		id := *f.BookingID
		p.BookingID = &id
	}
	p.UpdatedAt = time.Now()
	cp := *p
	return &cp, nil
}

func (t *memTx) Orders() order.Resolver { return memResolver{orders: t.orders} }

type memResolver struct{ orders map[string]*order.Order }

func (r memResolver) ApplyStatus(_ context.Context, ref order.Ref, status lifecycle.Status) (*order.Order, error) {
	o, ok := r.orders[ref.Slug]
	if !ok || o.Ref.Kind != ref.Kind {
		return nil, order.ErrOrderNotFound
	}
	o.Status = status
	cp := *o
	return &cp, nil
}

type fakeGateway struct {
	mu      sync.Mutex
	pushes  int
	queries int

	push  func(ctx context.Context, req *PushRequest) (*PushResponse, error)
	query func(ctx context.Context, checkoutRequestID string) (*QueryResponse, error)
}

func (g *fakeGateway) AcquireToken(context.Context) (string, error) { return "token", nil }

func (g *fakeGateway) InitiatePush(ctx context.Context, req *PushRequest) (*PushResponse, error) {
	g.mu.Lock()
	g.pushes++
	g.mu.Unlock()
	if g.push == nil {
		return nil, errors.New("unexpected push")
	}
	return g.push(ctx, req)
}

func (g *fakeGateway) QueryStatus(ctx context.Context, checkoutRequestID string) (*QueryResponse, error) {
	g.mu.Lock()
	g.queries++
	g.mu.Unlock()
	if g.query == nil {
		return nil, errors.New("unexpected query")
	}
	return g.query(ctx, checkoutRequestID)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.PaymentStatusChanged
	err    error
}

func (p *recordingPublisher) PublishPaymentStatusChanged(_ context.Context, evt events.PaymentStatusChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

var testOptions = Options{
	InitialDelay: 0,
	MaxAttempts:  3,
	BackoffBase:  time.Millisecond,
	BackoffMax:   2 * time.Millisecond,
}

func newTestService(store *memStore, gw *fakeGateway, pub *recordingPublisher) Service {
	return NewService(store, store, gw, pub, testOptions, discardLogger())
}
