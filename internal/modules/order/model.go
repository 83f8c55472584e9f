package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fairwayhq/fairway-backend/internal/modules/lifecycle"
)

// Order is the table-agnostic view the payment engine works with.
type Order struct {
	ID     uuid.UUID        `json:"id"`
	Ref    Ref              `json:"ref"`
	UserID string           `json:"userId"`
	Status lifecycle.Status `json:"status"`
}

// Booking is a reservation of an event, tee time, class or tournament.
type Booking struct {
	ID           uuid.UUID        `json:"id"`
	BookingRef   int64            `json:"bookingRef"`
	Slug         string           `json:"slug"`
	UserID       string           `json:"usersId"`
	Status       lifecycle.Status `json:"status"`
	EventID      *string          `json:"eventId,omitempty"`
	TeeID        *string          `json:"teeId,omitempty"`
	ClassID      *string          `json:"classId,omitempty"`
	TournamentID *string          `json:"tournamentId,omitempty"`
	SessionID    *string          `json:"sessionId,omitempty"`
	BookingDate  time.Time        `json:"bookingDate"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// Cart is a shop basket paid as one invoice.
type Cart struct {
	ID        uuid.UUID        `json:"id"`
	CartRef   int64            `json:"cartRef"`
	Slug      string           `json:"slug"`
	UserID    string           `json:"usersId"`
	Status    lifecycle.Status `json:"status"`
	Total     decimal.Decimal  `json:"total"`
	Items     []*ShoppingItem  `json:"items"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type ShoppingItem struct {
	ID        uuid.UUID       `json:"id"`
	CartID    uuid.UUID       `json:"cartId"`
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Src       string          `json:"src"`
}

// ── Request DTOs ──────────────────────────────────────────────────────────────

// CreateBookingRequest names exactly one of the bookable targets.
type CreateBookingRequest struct {
	SessionID    string    `json:"sessionId,omitempty"`
	EventID      string    `json:"eventId,omitempty"`
	TeeID        string    `json:"teeId,omitempty"`
	ClassID      string    `json:"classId,omitempty"`
	TournamentID string    `json:"tournamentId,omitempty"`
	BookingDate  time.Time `json:"bookingDate" validate:"required"`
}

type CartItemRequest struct {
	ProductID int64           `json:"productId" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity" validate:"min=0"`
	Src       string          `json:"src"`
}

type CreateCartRequest struct {
	Items []CartItemRequest `json:"items" validate:"required,min=1,dive"`
}
