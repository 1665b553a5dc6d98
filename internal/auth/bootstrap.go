package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// EnsureDefaultAdmin seeds the default administrator on startup. It is an
// explicit, idempotent insert-if-absent step: the ON CONFLICT guard makes a
// second process racing the same bootstrap a no-op.
func EnsureDefaultAdmin(ctx context.Context, store *AdminStore, log *zap.Logger, email, password string) error {
	if _, err := store.GetByEmail(ctx, email); err == nil {
		log.Info("default admin already exists, skipping bootstrap", zap.String("email", email))
		return nil
	} else if !errors.Is(err, ErrAdminNotFound) {
		return fmt.Errorf("check default admin: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash default admin password: %w", err)
	}

	inserted, err := store.CreateIfAbsent(ctx, "admin", email, hash)
	if err != nil {
		return fmt.Errorf("create default admin: %w", err)
	}

	if inserted {
		log.Info("default admin initialized", zap.String("email", email))
	} else {
		log.Info("default admin created concurrently, skipping bootstrap", zap.String("email", email))
	}
	return nil
}
