package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/fairwayhq/fairway-backend/internal/apperr"
	"github.com/fairwayhq/fairway-backend/internal/modules/auth"
	"github.com/fairwayhq/fairway-backend/internal/modules/lifecycle"
)

type fakeService struct {
	initiate func(ctx context.Context, userID string, req SendRequest) (lifecycle.Status, error)
	check    func(ctx context.Context, userID, invoice string) (lifecycle.Status, error)
	webhook  func(ctx context.Context, invoice string, source Source, body []byte) (*Payment, error)
	callback func(ctx context.Context, cb CheckoutCallback, body []byte) (*Payment, error)
	code     func(ctx context.Context, req CodeRequest) (*Payment, error)
	get      func(ctx context.Context, invoice string) (*Payment, error)
}

func (f *fakeService) Initiate(ctx context.Context, userID string, req SendRequest) (lifecycle.Status, error) {
	return f.initiate(ctx, userID, req)
}
func (f *fakeService) Check(ctx context.Context, userID, invoice string) (lifecycle.Status, error) {
	return f.check(ctx, userID, invoice)
}
func (f *fakeService) Poll(context.Context, string) (lifecycle.Status, error) {
	return "", errors.New("not used")
}
func (f *fakeService) HandleWebhook(ctx context.Context, invoice string, source Source, body []byte) (*Payment, error) {
	return f.webhook(ctx, invoice, source, body)
}
func (f *fakeService) HandleCheckoutCallback(ctx context.Context, cb CheckoutCallback, body []byte) (*Payment, error) {
	return f.callback(ctx, cb, body)
}
func (f *fakeService) SubmitCode(ctx context.Context, req CodeRequest) (*Payment, error) {
	return f.code(ctx, req)
}
func (f *fakeService) Get(ctx context.Context, invoice string) (*Payment, error) {
	return f.get(ctx, invoice)
}

// stubAuth trusts the X-User header so routes can be exercised without tokens.
func stubAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get("X-User")
		if user == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), user)))
	})
}

func newTestRouter(svc Service) *chi.Mux {
	r := chi.NewRouter()
	NewHandler(svc, nil, stubAuth, discardLogger()).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestWebhookRoutes(t *testing.T) {
	var gotInvoice string
	var gotSource Source
	svc := &fakeService{webhook: func(_ context.Context, invoice string, source Source, body []byte) (*Payment, error) {
		gotInvoice, gotSource = invoice, source
		if !strings.Contains(string(body), "stkCallback") && !strings.Contains(string(body), "Result") {
			return nil, apperr.InvalidErr("unrecognised notification payload", nil)
		}
		return &Payment{InvoiceNumber: invoice, Status: lifecycle.Completed}, nil
	}}
	r := newTestRouter(svc)

	rec := do(r, http.MethodPost, "/payments/webhook/mpesa/T-1", string(stkBody("ws", 0, "500")), nil)
	if rec.Code != http.StatusCreated || gotInvoice != "T-1" || gotSource != SourceWebhook {
		t.Fatalf("mpesa webhook: code=%d invoice=%q source=%q", rec.Code, gotInvoice, gotSource)
	}
	var p Payment
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil || p.Status != lifecycle.Completed {
		t.Errorf("body = %+v, %v", p, err)
	}

	rec = do(r, http.MethodPost, "/payments/webhook/update/E-2", `{"Result":{"ResultCode":0}}`, nil)
	if rec.Code != http.StatusOK || gotSource != SourceUpdate {
		t.Fatalf("update webhook: code=%d source=%q", rec.Code, gotSource)
	}
	var msg map[string]string
	json.NewDecoder(rec.Body).Decode(&msg)
	if msg["message"] == "" {
		t.Errorf("update webhook message missing")
	}

	rec = do(r, http.MethodPost, "/payments/webhook/mpesa/T-1", `{}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad payload code = %d", rec.Code)
	}
}

func TestSendRoute(t *testing.T) {
	var gotUser string
	svc := &fakeService{initiate: func(_ context.Context, userID string, req SendRequest) (lifecycle.Status, error) {
		gotUser = userID
		return lifecycle.Completed, nil
	}}
	r := newTestRouter(svc)
	body := `{"amount":100,"partyA":"254708374149","phoneNumber":"254708374149","invoiceNumber":"E-5"}`

	if rec := do(r, http.MethodPost, "/payments/send", body, nil); rec.Code != http.StatusForbidden {
		t.Errorf("unauthenticated send = %d", rec.Code)
	}

	rec := do(r, http.MethodPost, "/payments/send", body, map[string]string{"X-User": "u1"})
	if rec.Code != http.StatusOK || gotUser != "u1" {
		t.Fatalf("send = %d user=%q", rec.Code, gotUser)
	}
	var out StatusResponse
	json.NewDecoder(rec.Body).Decode(&out)
	if out.Status != lifecycle.Completed {
		t.Errorf("status = %s", out.Status)
	}

	rec = do(r, http.MethodPost, "/payments/send", `{"amount":100}`, map[string]string{"X-User": "u1"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid send = %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.NotFoundErr("payment not found"), http.StatusNotFound},
		{apperr.ConflictErr("payment already finalised"), http.StatusConflict},
		{apperr.GatewayErr(errors.New("timeout")), http.StatusInternalServerError},
		{errors.New("pq: connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		err := tt.err
		svc := &fakeService{check: func(context.Context, string, string) (lifecycle.Status, error) { return "", err }}
		rec := do(newTestRouter(svc), http.MethodPost, "/payments/check/T-1", "", map[string]string{"X-User": "u1"})
		if rec.Code != tt.want {
			t.Errorf("%v: code = %d, want %d", err, rec.Code, tt.want)
		}
		if strings.Contains(rec.Body.String(), "pq:") || strings.Contains(rec.Body.String(), "timeout") {
			t.Errorf("internal detail leaked: %s", rec.Body.String())
		}
	}
}

func TestCodeAndGetRoutes(t *testing.T) {
	svc := &fakeService{
		code: func(_ context.Context, req CodeRequest) (*Payment, error) {
			return &Payment{InvoiceNumber: req.InvoiceNumber, Status: lifecycle.InReview, PaymentCode: req.PaymentCode}, nil
		},
		get: func(_ context.Context, invoice string) (*Payment, error) {
			if invoice == "T-404" {
				return nil, apperr.NotFoundErr("payment not found")
			}
			return &Payment{InvoiceNumber: invoice, Status: lifecycle.Pending}, nil
		},
	}
	r := newTestRouter(svc)

	rec := do(r, http.MethodPost, "/payments/code", `{"paymentCode":"QKX1","invoiceNumber":"E-1"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/payments/code", `{"invoiceNumber":"E-1"}`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing code = %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/payments/T-1", "", nil); rec.Code != http.StatusOK {
		t.Errorf("get = %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/payments/T-404", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get missing = %d", rec.Code)
	}
}

func TestCheckoutCallbackRoute(t *testing.T) {
	var got CheckoutCallback
	svc := &fakeService{callback: func(_ context.Context, cb CheckoutCallback, _ []byte) (*Payment, error) {
		got = cb
		return &Payment{InvoiceNumber: cb.AccountNumber, Status: lifecycle.Completed}, nil
	}}
	r := newTestRouter(svc)

	rec := do(r, http.MethodPost, "/payments/webhook/checkout", `{"account_number":"E-9","request_status_code":178,"amount_paid":1500}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d body=%s", rec.Code, rec.Body.String())
	}
	if got.RequestStatusCode != "178" || got.AmountPaid == nil || got.AmountPaid.String() != "1500" {
		t.Errorf("callback = %+v", got)
	}

	if rec := do(r, http.MethodPost, "/payments/webhook/checkout", `{"request_status_code":"178"}`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing account number = %d", rec.Code)
	}
}

func TestCheckoutRefundRouteWithoutPayment(t *testing.T) {
	store := newMemStore()
	store.addOrder("E-11", "u1")
	r := newTestRouter(newTestService(store, &fakeGateway{}, &recordingPublisher{}))

	rec := do(r, http.MethodPost, "/payments/webhook/checkout", `{"account_number":"E-11","request_status_code":179}`, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d body=%s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] == nil {
		t.Errorf("body = %s", rec.Body.String())
	}
}
