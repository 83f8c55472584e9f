package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fairwayhq/fairway-backend/internal/apperr"
	"github.com/fairwayhq/fairway-backend/internal/modules/lifecycle"
)

// Service defines booking and cart creation. Status changes after creation
// belong to the payment reconciliation engine.
type Service interface {
	// CreateBooking books exactly one target for the user; the slug prefix
	// is T for tee times and E for everything else.
	CreateBooking(ctx context.Context, userID string, req CreateBookingRequest) (*Booking, error)

	// CreateCart stores the basket and its computed total.
	CreateCart(ctx context.Context, userID string, req CreateCartRequest) (*Cart, error)

	// GetStatus returns the current status of the order addressed by slug.
	GetStatus(ctx context.Context, slug string) (lifecycle.Status, error)

	// ListBookings returns the user's bookings.
	ListBookings(ctx context.Context, userID string) ([]*Booking, error)
}

type service struct {
	repo Repository
}

// NewService creates a new order service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateBooking(ctx context.Context, userID string, req CreateBookingRequest) (*Booking, error) {
	targets := 0
	for _, id := range []string{req.EventID, req.TeeID, req.ClassID, req.TournamentID} {
		if id != "" {
			targets++
		}
	}
	if targets != 1 {
		return nil, apperr.InvalidErr("exactly one of eventId, teeId, classId or tournamentId is required", nil)
	}

	b := &Booking{
		ID:           uuid.New(),
		UserID:       userID,
		Status:       lifecycle.Pending,
		EventID:      nilIfEmpty(req.EventID),
		TeeID:        nilIfEmpty(req.TeeID),
		ClassID:      nilIfEmpty(req.ClassID),
		TournamentID: nilIfEmpty(req.TournamentID),
		SessionID:    nilIfEmpty(req.SessionID),
		BookingDate:  req.BookingDate,
	}

	prefix := PrefixEvent
	if req.TeeID != "" {
		prefix = PrefixTee
	}
	if err := s.repo.CreateBooking(ctx, b, prefix); err != nil {
		return nil, fmt.Errorf("failed to persist booking: %w", err)
	}
	return b, nil
}

func (s *service) CreateCart(ctx context.Context, userID string, req CreateCartRequest) (*Cart, error) {
	if len(req.Items) == 0 {
		return nil, apperr.InvalidErr("cart must contain at least one item", nil)
	}

	c := &Cart{
		ID:     uuid.New(),
		UserID: userID,
		Status: lifecycle.Pending,
		Total:  decimal.Zero,
	}
	for _, it := range req.Items {
		if it.Price.IsNegative() {
			return nil, apperr.InvalidErr(fmt.Sprintf("price must not be negative for product %d", it.ProductID), nil)
		}
		c.Total = c.Total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		c.Items = append(c.Items, &ShoppingItem{
			ID:        uuid.New(),
			CartID:    c.ID,
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Src:       it.Src,
		})
	}

	if err := s.repo.CreateCart(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to persist cart: %w", err)
	}
	return c, nil
}

func (s *service) GetStatus(ctx context.Context, slug string) (lifecycle.Status, error) {
	ref, err := ParseRef(slug)
	if err != nil {
		return "", apperr.NotFoundErr("order not found")
	}
	o, err := s.repo.FindBySlug(ctx, ref)
	if errors.Is(err, ErrOrderNotFound) {
		return "", apperr.NotFoundErr("order not found")
	}
	if err != nil {
		return "", err
	}
	return o.Status, nil
}

func (s *service) ListBookings(ctx context.Context, userID string) ([]*Booking, error) {
	return s.repo.ListBookingsByUser(ctx, userID)
}
