package lifecycle

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{Pending, Completed, true},
		{Pending, Failed, true},
		{Pending, InReview, true},
		{InReview, Completed, true},
		{Received, Accepted, true},
		{Completed, Completed, true},
		{Failed, Failed, true},
		{Completed, Failed, false},
		{Failed, Completed, false},
		{Completed, InReview, false},
		{Expired, InReview, false},
		{InReview, Pending, false},
		{Completed, Refunded, true},
		{Pending, Refunded, false},
		{Refunded, Completed, false},
		{Pending, Status("Bogus"), false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	if s, ok := Parse("in_review"); !ok || s != InReview {
		t.Errorf("Parse(in_review) = %q, %v", s, ok)
	}
	if _, ok := Parse("paid"); ok {
		t.Error("Parse(paid) should fail")
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{Completed, Failed, Rejected, Expired} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{Pending, Received, Accepted, Partial, InReview} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
