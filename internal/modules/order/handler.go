package order

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fairwayhq/fairway-backend/internal/apperr"
	"github.com/fairwayhq/fairway-backend/internal/modules/auth"
	"github.com/fairwayhq/fairway-backend/internal/validation"
)

// Handler exposes booking and cart HTTP endpoints.
type Handler struct {
	service     Service
	requireUser func(http.Handler) http.Handler
	logger      *slog.Logger
}

func NewHandler(service Service, requireUser func(http.Handler) http.Handler, logger *slog.Logger) *Handler {
	return &Handler{service: service, requireUser: requireUser, logger: logger}
}

func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Get("/orders/{slug}", h.getStatus) // GET /orders/{slug}

	r.Group(func(r chi.Router) {
		r.Use(h.requireUser)
		r.Post("/bookings", h.createBooking) // POST /bookings
		r.Get("/bookings", h.listBookings)   // GET  /bookings
		r.Post("/carts", h.createCart)       // POST /carts
	})
}

func (h *Handler) createBooking(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := validation.Struct(&req); err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.service.CreateBooking(r.Context(), userID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, b)
}

func (h *Handler) listBookings(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	bookings, err := h.service.ListBookings(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, bookings)
}

func (h *Handler) createCart(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	var req CreateCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := validation.Struct(&req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.service.CreateCart(r.Context(), userID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, c)
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.GetStatus(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "order request failed", "path", r.URL.Path, "err", err)
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
