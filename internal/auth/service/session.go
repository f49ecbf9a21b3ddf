package service

import (
	"context"
	"errors"
	"time"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
	"github.com/tabwatch/fleetwatch/internal/auth/store"
	"github.com/tabwatch/fleetwatch/pkg/cryptox"
	"github.com/tabwatch/fleetwatch/pkg/idx"
)

var ErrInvalidSession = errors.New("invalid_session")

// DefaultSessionTTL is how long legacy cookie sessions live.
const DefaultSessionTTL = 24 * time.Hour

// SessionService backs the legacy cookie flow kept for older dashboard
// deployments. New integrations should use the token service; the resolver
// tries sessions last.
type SessionService struct {
	Store store.Store
	TTL   time.Duration
}

// Create opens a session for an operator and returns the raw cookie value.
// Storage keeps only the fingerprint.
func (s *SessionService) Create(ctx context.Context, operatorID string) (domain.Session, string, error) {
	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.Session{}, "", err
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	now := time.Now()
	session := domain.Session{
		ID:         idx.New().String(),
		TokenHash:  cryptox.FingerprintToken(raw),
		OperatorID: operatorID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := s.Store.Sessions().CreateSession(ctx, session); err != nil {
		return domain.Session{}, "", err
	}
	return session, raw, nil
}

// Validate resolves a raw cookie value to its session and operator.
func (s *SessionService) Validate(ctx context.Context, raw string) (domain.Session, domain.Operator, error) {
	session, err := s.Store.Sessions().GetSessionByHash(ctx, cryptox.FingerprintToken(raw))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, domain.Operator{}, ErrInvalidSession
		}
		return domain.Session{}, domain.Operator{}, err
	}

	op, err := s.Store.Operators().GetOperatorByID(ctx, session.OperatorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, domain.Operator{}, ErrInvalidSession
		}
		return domain.Session{}, domain.Operator{}, err
	}
	return session, op, nil
}

// Delete ends one session.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	err := s.Store.Sessions().DeleteSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// DeleteAllForOperator ends every session of an operator.
func (s *SessionService) DeleteAllForOperator(ctx context.Context, operatorID string) error {
	return s.Store.Sessions().DeleteAllSubjectSessions(ctx, operatorID)
}
