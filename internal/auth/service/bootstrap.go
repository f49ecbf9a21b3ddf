package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
	"github.com/tabwatch/fleetwatch/internal/auth/scopes"
	"github.com/tabwatch/fleetwatch/internal/auth/store"
	"github.com/tabwatch/fleetwatch/pkg/cryptox"
	"github.com/tabwatch/fleetwatch/pkg/idx"
	"github.com/tabwatch/fleetwatch/pkg/slogx"
)

var ErrBootstrapAlready = errors.New("already bootstrapped")

// BootstrapService seeds the first admin operator on a fresh install. It
// only ever acts on an empty operators table, so a populated deployment
// cannot be re-seeded.
type BootstrapService struct {
	Store store.Store
}

// EnsureAdmin creates the admin operator when the store is empty. The
// password comes from configuration; when it is blank a random one is
// generated and logged once at startup.
func (s *BootstrapService) EnsureAdmin(ctx context.Context, username, password string) error {
	l := slogx.FromContext(ctx)

	empty, err := s.Store.Operators().IsEmpty(ctx)
	if err != nil {
		return err
	}
	if !empty {
		return nil
	}

	if username == "" {
		username = "admin"
	}

	generated := false
	if password == "" {
		password, err = cryptox.GenerateToken(cryptox.TokenSize128)
		if err != nil {
			return err
		}
		generated = true
	}

	hash, err := cryptox.HashSecret(password)
	if err != nil {
		return err
	}

	now := time.Now()
	op := domain.Operator{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
		Role:         scopes.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Operators().CreateOperator(ctx, op); err != nil {
		// A concurrent boot of another replica may have won the race.
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil
		}
		return err
	}

	if generated {
		// Printed once; rotate it after first login.
		l.Warn("bootstrap admin created with generated password",
			slog.String("username", username),
			slog.String("password", password),
		)
	} else {
		l.Info("bootstrap admin created", slog.String("username", username))
	}
	return nil
}
