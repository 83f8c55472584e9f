package lifecycle

import "strings"

// Status is shared by payments and the orders (bookings, carts) they settle.
// A payment and its order always carry the same value after a reconciliation.
type Status string

const (
	Pending   Status = "Pending"
	Completed Status = "Completed"
	Failed    Status = "Failed"
	Refunded  Status = "Refunded"
	Partial   Status = "Partial"
	Expired   Status = "Expired"
	Received  Status = "Received"
	Rejected  Status = "Rejected"
	Accepted  Status = "Accepted"
	InReview  Status = "In_Review"
)

var all = []Status{Pending, Completed, Failed, Refunded, Partial, Expired, Received, Rejected, Accepted, InReview}

// Parse matches a status name case-insensitively.
func Parse(s string) (Status, bool) {
	for _, st := range all {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

func (s Status) Valid() bool {
	_, ok := Parse(string(s))
	return ok
}

// Terminal reports whether the gateway outcome is final.
func (s Status) Terminal() bool {
	switch s {
	case Completed, Failed, Rejected, Expired, Refunded:
		return true
	}
	return false
}

// Succeeded reports terminal success.
func (s Status) Succeeded() bool { return s == Completed }

// FailedTerminal reports a terminal failure a new push request may restart from.
func (s Status) FailedTerminal() bool {
	return s == Failed || s == Rejected || s == Expired
}

// rank orders statuses: pending < advisory < terminal. Refunded sits above
// Completed because it can only follow a completed payment.
func rank(s Status) int {
	switch s {
	case Pending:
		return 0
	case Received, Accepted, Partial, InReview:
		return 1
	case Completed, Failed, Rejected, Expired:
		return 2
	case Refunded:
		return 3
	}
	return -1
}

// CanTransition reports whether a reconciliation may move a record from one
// status to another. Re-asserting the current status is always allowed.
// Terminal records only move Completed -> Refunded.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if rank(from) < 0 || rank(to) < 0 {
		return false
	}
	if to == Refunded {
		return from == Completed
	}
	if from.Terminal() {
		return false
	}
	return rank(to) >= rank(from)
}
