package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fairwayhq/fairway-backend/internal/modules/lifecycle"
	"github.com/fairwayhq/fairway-backend/internal/modules/order"
)

// Source names the path that produced a reconciliation result.
type Source string

const (
	SourceInitiate Source = "initiate"
	SourcePoll     Source = "poll"
	SourceWebhook  Source = "webhook"
	SourceUpdate   Source = "update"
	SourceCheckout Source = "checkout"
	SourceCode     Source = "code"
)

// Payment is the ledger row for one invoice. InvoiceNumber never changes
// once written; it doubles as the slug of the order being paid for.
type Payment struct {
	ID                uuid.UUID        `json:"id"`
	InvoiceNumber     string           `json:"invoiceNumber"`
	Amount            decimal.Decimal  `json:"amount"`
	Status            lifecycle.Status `json:"status"`
	CheckoutRequestID string           `json:"checkoutRequestID,omitempty"`
	ResultDescription string           `json:"resultDescription,omitempty"`
	PaymentCode       string           `json:"paymentCode,omitempty"`
	OrderKind         order.Kind       `json:"orderKind,omitempty"`
	BookingID         *uuid.UUID       `json:"bookingId,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// Fields is a partial update merged into a payment row. Nil fields keep the
// stored value.
type Fields struct {
	Status            *lifecycle.Status
	Amount            *decimal.Decimal
	CheckoutRequestID *string
	ResultDescription *string
	PaymentCode       *string
	OrderKind         *order.Kind
	BookingID         *uuid.UUID
}

// WebhookEvent is a raw inbound notification, kept verbatim and never updated.
type WebhookEvent struct {
	ID            uuid.UUID
	InvoiceNumber string
	Source        Source
	Payload       []byte
	ReceivedAt    time.Time
}

// ── Request DTOs ──────────────────────────────────────────────────────────────

// SendRequest starts a push payment for an order the caller owns.
type SendRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	PartyA          string          `json:"partyA" validate:"required,numeric"`
	PhoneNumber     string          `json:"phoneNumber" validate:"required,numeric"`
	TransactionDesc string          `json:"transactionDesc" validate:"omitempty,max=100"`
	InvoiceNumber   string          `json:"invoiceNumber" validate:"required"`
}

// CodeRequest records a manually entered M-Pesa confirmation code.
type CodeRequest struct {
	PaymentCode   string `json:"paymentCode" validate:"required"`
	InvoiceNumber string `json:"invoiceNumber" validate:"required"`
}

// CheckoutCallback is the hosted-checkout status notification.
type CheckoutCallback struct {
	AccountNumber            string           `json:"account_number" validate:"required"`
	RequestStatusCode        resultCode       `json:"request_status_code" validate:"required"`
	RequestStatusDescription string           `json:"request_status_description"`
	RequestAmount            *decimal.Decimal `json:"request_amount,omitempty"`
	AmountPaid               *decimal.Decimal `json:"amount_paid,omitempty"`
	ServiceCode              string           `json:"service_code"`
	MSISDN                   string           `json:"msisdn"`
}

type StatusResponse struct {
	Status lifecycle.Status `json:"status"`
}
