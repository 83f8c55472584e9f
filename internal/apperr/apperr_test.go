package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", InvalidErr("bad", nil), http.StatusBadRequest},
		{"unauthorized", UnauthorizedErr("no"), http.StatusUnauthorized},
		{"forbidden", ForbiddenErr("no"), http.StatusForbidden},
		{"not found", NotFoundErr("missing"), http.StatusNotFound},
		{"conflict", ConflictErr("dup"), http.StatusConflict},
		{"gateway", GatewayErr(errors.New("timeout")), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("ctx: %w", NotFoundErr("missing")), http.StatusNotFound},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWrapHidesInternalDetail(t *testing.T) {
	err := Wrap(errors.New("pq: connection refused"))
	if PublicMessage(err) != genericMessage {
		t.Errorf("PublicMessage() = %q", PublicMessage(err))
	}
	if !errors.Is(err, err.Err) {
		t.Error("Wrap should keep the cause")
	}

	nf := NotFoundErr("payment not found")
	if Wrap(nf) != nf {
		t.Error("Wrap should pass AppError through")
	}
}
