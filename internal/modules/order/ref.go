package order

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrOrderNotFound = errors.New("order not found")
)

// Kind is the concrete table an order lives in.
type Kind string

const (
	KindBooking Kind = "BOOKING"
	KindCart    Kind = "CART"
)

// Slug prefixes. Event, class and tournament bookings share the event prefix.
const (
	PrefixEvent = "E"
	PrefixTee   = "T"
	PrefixCart  = "C"
)

// Ref addresses one order. Payments store the Kind they were initiated
// against; ParseRef is only needed when a notification arrives first.
type Ref struct {
	Kind Kind   `json:"kind"`
	Slug string `json:"slug"`
}

func (r Ref) String() string { return fmt.Sprintf("%s(%s)", r.Kind, r.Slug) }

// ParseRef derives the order table from an invoice number's prefix.
// Unknown prefixes are ErrOrderNotFound; there is no default table.
func ParseRef(invoice string) (Ref, error) {
	prefix, _, ok := strings.Cut(invoice, "-")
	if !ok {
		return Ref{}, fmt.Errorf("%w: invoice %q has no type prefix", ErrOrderNotFound, invoice)
	}
	switch strings.ToUpper(prefix) {
	case PrefixEvent, PrefixTee:
		return Ref{Kind: KindBooking, Slug: invoice}, nil
	case PrefixCart:
		return Ref{Kind: KindCart, Slug: invoice}, nil
	}
	return Ref{}, fmt.Errorf("%w: unknown invoice prefix %q", ErrOrderNotFound, prefix)
}

// RefFor rebuilds a Ref from a stored kind, falling back to the prefix.
func RefFor(kind Kind, invoice string) (Ref, error) {
	switch kind {
	case KindBooking, KindCart:
		return Ref{Kind: kind, Slug: invoice}, nil
	}
	return ParseRef(invoice)
}

func slugFor(prefix string, ref int64) string {
	return fmt.Sprintf("%s-%d", prefix, ref)
}
