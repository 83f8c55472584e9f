package payment

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fairwayhq/fairway-backend/internal/apperr"
	"github.com/fairwayhq/fairway-backend/internal/modules/auth"
	"github.com/fairwayhq/fairway-backend/internal/validation"
)

const maxWebhookBody = 1 << 20

// Handler exposes payment HTTP endpoints.
type Handler struct {
	service     Service
	encryptor   *CheckoutEncryptor
	requireUser func(http.Handler) http.Handler
	logger      *slog.Logger
}

// NewHandler wires the payment routes. encryptor may be nil, in which case
// the checkout encryption route is not registered.
func NewHandler(service Service, encryptor *CheckoutEncryptor, requireUser func(http.Handler) http.Handler, logger *slog.Logger) *Handler {
	return &Handler{service: service, encryptor: encryptor, requireUser: requireUser, logger: logger}
}

func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/payments", func(r chi.Router) {
		// Provider callbacks, no bearer auth
		r.Post("/webhook/mpesa/{invoiceNumber}", h.webhookMpesa)
		r.Post("/webhook/update/{invoiceNumber}", h.webhookUpdate)
		r.Post("/webhook/checkout", h.webhookCheckout)

		r.Post("/code", h.submitCode)
		r.Get("/{invoiceNumber}", h.get)

		r.Group(func(r chi.Router) {
			r.Use(h.requireUser)
			r.Post("/send", h.send)
			r.Post("/check/{invoiceNumber}", h.check)
			if h.encryptor != nil {
				r.Post("/checkout/encrypt", h.encrypt)
			}
		})
	})
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := validation.Struct(&req); err != nil {
		h.fail(w, r, err)
		return
	}
	status, err := h.service.Initiate(r.Context(), userID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, StatusResponse{Status: status})
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	status, err := h.service.Check(r.Context(), userID, chi.URLParam(r, "invoiceNumber"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, StatusResponse{Status: status})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "invoiceNumber"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (h *Handler) submitCode(w http.ResponseWriter, r *http.Request) {
	var req CodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := validation.Struct(&req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.service.SubmitCode(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, p)
}

// ── Webhook Handlers ──────────────────────────────────────────────────────────

func (h *Handler) webhookMpesa(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	p, err := h.service.HandleWebhook(r.Context(), chi.URLParam(r, "invoiceNumber"), SourceWebhook, body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, p)
}

func (h *Handler) webhookUpdate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	p, err := h.service.HandleWebhook(r.Context(), chi.URLParam(r, "invoiceNumber"), SourceUpdate, body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"message": "payment " + p.InvoiceNumber + " is " + string(p.Status)})
}

func (h *Handler) webhookCheckout(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	var cb CheckoutCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := validation.Struct(&cb); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.service.HandleCheckoutCallback(r.Context(), cb, body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, p)
}

func (h *Handler) encrypt(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := validation.Struct(&req); err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.encryptor.Encrypt(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, out)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// fail writes the public form of err. Internal detail is only logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "payment request failed", "path", r.URL.Path, "err", err)
	}
	body := map[string]interface{}{"error": apperr.PublicMessage(err)}
	if ae, ok := apperr.As(err); ok && len(ae.Fields) > 0 {
		body["fields"] = ae.Fields
	}
	respond(w, code, body)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
