package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// RequireUser rejects requests without a verifiable bearer token: a missing
// token is 403, an unverifiable one 401.
func RequireUser(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := v.Verify(r.Context(), bearerToken(r))
			if err != nil {
				if errors.Is(err, ErrMissingToken) {
					deny(w, http.StatusForbidden, "Forbidden")
					return
				}
				deny(w, http.StatusUnauthorized, "Unauthorised")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// bearerToken accepts both "Bearer <token>" and a bare token.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return h
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
