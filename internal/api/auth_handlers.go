package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/appointly/appointment-booking/internal/auth"
)

// AdminDirectory is the slice of the admin store the login handler needs.
type AdminDirectory interface {
	GetByEmail(ctx context.Context, email string) (*auth.Admin, error)
}

func loginHandler(admins AdminDirectory, secret string, tokenTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "missing_credentials", "email and password are required")
			return
		}

		admin, err := admins.GetByEmail(r.Context(), req.Email)
		if err != nil {
			// same answer for unknown email and wrong password
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
			return
		}

		if !auth.CheckPassword(admin.PasswordHash, req.Password) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
			return
		}

		token, err := auth.MakeToken(admin.ID.String(), admin.Email, secret, tokenTTL)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "could not issue token")
			return
		}

		writeJSON(w, http.StatusOK, LoginResponse{Token: token})
	}
}
