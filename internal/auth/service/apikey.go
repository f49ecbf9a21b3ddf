package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
	"github.com/tabwatch/fleetwatch/internal/auth/scopes"
	"github.com/tabwatch/fleetwatch/internal/auth/store"
	"github.com/tabwatch/fleetwatch/pkg/cryptox"
	"github.com/tabwatch/fleetwatch/pkg/idx"
	"github.com/tabwatch/fleetwatch/pkg/slogx"
)

// APIKeyPrefix starts every issued key so leaked credentials are easy to
// grep for in logs and secret scanners.
const APIKeyPrefix = "fwk_"

// Default sliding-window quota applied when a key is created without one.
const (
	DefaultKeyRateLimit  = 600
	DefaultKeyRateWindow = time.Minute
)

var (
	ErrInvalidKey   = errors.New("invalid_api_key")
	ErrKeyRevoked   = errors.New("api_key_revoked")
	ErrKeyExpired   = errors.New("api_key_expired")
	ErrRateLimited  = errors.New("rate_limited")
	ErrInvalidScope = errors.New("invalid_scope")
)

// APIKeyService manages the long-lived per-agent credentials.
//
// A key's secret exists in plaintext exactly once, in the Create/Rotate
// return value. Storage holds only the SHA-256 fingerprint, so a database
// leak does not leak usable credentials.
type APIKeyService struct {
	Store store.Store
	Audit *AuditService
}

// CreateKeyParams are the caller-supplied attributes of a new key.
type CreateKeyParams struct {
	AgentName string
	Scopes    []string
	CreatedBy string
	ExpiresAt *time.Time

	// Zero values fall back to the service defaults.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Create mints a new API key and returns the record plus the raw secret.
func (s *APIKeyService) Create(ctx context.Context, p CreateKeyParams) (domain.APIKey, string, error) {
	if p.AgentName == "" {
		return domain.APIKey{}, "", errors.New("apikey: agent name is required")
	}
	if err := validateKeyScopes(p.Scopes); err != nil {
		return domain.APIKey{}, "", err
	}

	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	rawKey := APIKeyPrefix + raw

	now := time.Now()
	key := domain.APIKey{
		ID:                idx.New().String(),
		AgentName:         p.AgentName,
		Prefix:            rawKey[:len(APIKeyPrefix)+8],
		SecretHash:        cryptox.FingerprintToken(rawKey),
		Scopes:            scopes.Dedupe(p.Scopes),
		CreatedBy:         p.CreatedBy,
		CreatedAt:         now,
		ExpiresAt:         p.ExpiresAt,
		RateLimitRequests: p.RateLimitRequests,
		RateLimitWindow:   p.RateLimitWindow,
	}
	if key.RateLimitRequests <= 0 {
		key.RateLimitRequests = DefaultKeyRateLimit
	}
	if key.RateLimitWindow <= 0 {
		key.RateLimitWindow = DefaultKeyRateWindow
	}

	if err := s.Store.APIKeys().CreateAPIKey(ctx, key); err != nil {
		return domain.APIKey{}, "", err
	}

	s.Audit.Record(ctx, domain.AuditEvent{
		Type:      domain.AuditKeyCreated,
		SubjectID: p.CreatedBy,
		Resource:  key.ID,
		Outcome:   domain.OutcomeSuccess,
		Detail:    map[string]any{"agent": key.AgentName, "scopes": strings.Join(key.Scopes, " ")},
	})

	return key, rawKey, nil
}

// Validate authenticates a raw key and records the use against the key's
// sliding-window quota. The quota check and the usage record are one
// conditional insert in the store, so the quota holds under concurrency.
func (s *APIKeyService) Validate(ctx context.Context, rawKey, ip, endpoint, method string) (domain.APIKey, error) {
	now := time.Now()

	if !strings.HasPrefix(rawKey, APIKeyPrefix) {
		return domain.APIKey{}, ErrInvalidKey
	}

	key, err := s.Store.APIKeys().GetAPIKeyByHash(ctx, cryptox.FingerprintToken(rawKey))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.APIKey{}, ErrInvalidKey
		}
		return domain.APIKey{}, err
	}

	if key.Revoked {
		return domain.APIKey{}, ErrKeyRevoked
	}
	if key.ExpiresAt != nil && now.After(*key.ExpiresAt) {
		return domain.APIKey{}, ErrKeyExpired
	}

	usage := domain.APIKeyUsage{
		ID:       idx.New().String(),
		KeyID:    key.ID,
		IP:       ip,
		Endpoint: endpoint,
		Method:   method,
		UsedAt:   now,
	}
	err = s.Store.APIKeys().RecordAPIKeyUsage(ctx, usage, key.RateLimitRequests, key.RateLimitWindow)
	if err != nil {
		if errors.Is(err, store.ErrQuotaExceeded) {
			slogx.FromContext(ctx).Warn("api key over quota",
				slog.String("key_id", key.ID),
				slog.String("agent", key.AgentName),
			)
			s.Audit.Record(ctx, domain.AuditEvent{
				Type:      domain.AuditKeyRateLimited,
				Severity:  domain.SeverityWarning,
				SubjectID: key.AgentName,
				IP:        ip,
				Resource:  key.ID,
				Outcome:   domain.OutcomeFailure,
				Detail:    map[string]any{"endpoint": endpoint},
			})
			return domain.APIKey{}, ErrRateLimited
		}
		return domain.APIKey{}, err
	}

	s.Audit.Record(ctx, domain.AuditEvent{
		Type:      domain.AuditKeyUsed,
		SubjectID: key.AgentName,
		IP:        ip,
		Resource:  key.ID,
		Outcome:   domain.OutcomeSuccess,
		Detail:    map[string]any{"endpoint": endpoint, "method": method},
	})

	return key, nil
}

// Revoke permanently disables a key.
func (s *APIKeyService) Revoke(ctx context.Context, id, by, reason string) error {
	if err := s.Store.APIKeys().RevokeAPIKey(ctx, id, by, reason); err != nil {
		return err
	}
	s.Audit.Record(ctx, domain.AuditEvent{
		Type:      domain.AuditKeyRevoked,
		SubjectID: by,
		Resource:  id,
		Outcome:   domain.OutcomeSuccess,
		Detail:    map[string]any{"reason": reason},
	})
	return nil
}

// Rotate replaces a key with a fresh secret in one transaction: the new key
// inherits the agent name, scopes, quota, and remaining expiry; the old key
// is revoked. There is no moment where both or neither are usable.
func (s *APIKeyService) Rotate(ctx context.Context, id, by string) (domain.APIKey, string, error) {
	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	rawKey := APIKeyPrefix + raw
	now := time.Now()

	var newKey domain.APIKey
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		old, err := tx.APIKeys().GetAPIKeyByID(ctx, id)
		if err != nil {
			return err
		}
		if old.Revoked {
			return ErrKeyRevoked
		}

		newKey = domain.APIKey{
			ID:                idx.New().String(),
			AgentName:         old.AgentName,
			Prefix:            rawKey[:len(APIKeyPrefix)+8],
			SecretHash:        cryptox.FingerprintToken(rawKey),
			Scopes:            old.Scopes,
			CreatedBy:         by,
			CreatedAt:         now,
			ExpiresAt:         old.ExpiresAt,
			RateLimitRequests: old.RateLimitRequests,
			RateLimitWindow:   old.RateLimitWindow,
		}
		if err := tx.APIKeys().CreateAPIKey(ctx, newKey); err != nil {
			return err
		}
		return tx.APIKeys().RevokeAPIKey(ctx, old.ID, by, "rotated")
	})
	if err != nil {
		return domain.APIKey{}, "", err
	}

	s.Audit.Record(ctx, domain.AuditEvent{
		Type:      domain.AuditKeyRotated,
		SubjectID: by,
		Resource:  id,
		Outcome:   domain.OutcomeSuccess,
		Detail:    map[string]any{"replacement": newKey.ID},
	})

	return newKey, rawKey, nil
}

// Get returns one key by id.
func (s *APIKeyService) Get(ctx context.Context, id string) (domain.APIKey, error) {
	return s.Store.APIKeys().GetAPIKeyByID(ctx, id)
}

// List returns keys matching the filter.
func (s *APIKeyService) List(ctx context.Context, f domain.APIKeyFilter) ([]domain.APIKey, error) {
	return s.Store.APIKeys().ListAPIKeys(ctx, f)
}

// Usage returns the most recent recorded uses of a key.
func (s *APIKeyService) Usage(ctx context.Context, keyID string, limit int) ([]domain.APIKeyUsage, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.Store.APIKeys().ListAPIKeyUsage(ctx, keyID, limit)
}

// validateKeyScopes rejects undefined scopes and the wildcard, which is
// reserved for admin operators.
func validateKeyScopes(requested []string) error {
	if len(requested) == 0 {
		return ErrInvalidScope
	}
	for _, sc := range requested {
		if sc == scopes.Wildcard {
			return ErrInvalidScope
		}
	}
	if invalid := scopes.ValidateAll(requested); len(invalid) > 0 {
		return ErrInvalidScope
	}
	return nil
}
