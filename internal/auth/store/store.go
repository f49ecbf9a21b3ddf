package store

import (
	"context"
	"errors"
	"time"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrQuotaExceeded is returned by RecordAPIKeyUsage when the key is at
	// or over its sliding-window quota. The check and the record are one
	// conditional insert, so two concurrent requests for the same key can
	// never both slip under the limit.
	ErrQuotaExceeded = errors.New("store: quota exceeded")
)

// Store is the root data access interface. Concrete drivers (sqlite)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Operators() Operators
	RefreshTokens() RefreshTokens
	Blacklist() Blacklist
	APIKeys() APIKeys
	Clients() Clients
	AuthorizationCodes() AuthorizationCodes
	Sessions() Sessions
	AuditEvents() AuditEvents

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., refresh
	// rotation, key rotation). The caller MUST Commit() or Rollback().
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, rolling back when fn returns
	// an error and committing otherwise. This is the recommended way to
	// handle transactions.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Operators interface {
	// CreateOperator inserts a new operator (id is provided by app via ULID).
	CreateOperator(ctx context.Context, o domain.Operator) error

	// GetOperatorByID returns an operator by id.
	GetOperatorByID(ctx context.Context, id string) (domain.Operator, error)

	// GetOperatorByUsername is used during login.
	GetOperatorByUsername(ctx context.Context, username string) (domain.Operator, error)

	// UpdateOperatorRole changes an operator's role. Outstanding tokens
	// keep their issued role until refresh.
	UpdateOperatorRole(ctx context.Context, id, role string) error

	// IsEmpty returns true if there are no operators (fresh install).
	IsEmpty(ctx context.Context) (bool, error)
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByID returns the row for a jti, revoked or not.
	GetRefreshTokenByID(ctx context.Context, id string) (domain.RefreshToken, error)

	// RevokeRefreshToken flips revoked and records when and why.
	RevokeRefreshToken(ctx context.Context, id, reason string) error

	// RevokeAllSubjectRefreshTokens bulk-revokes every live token of a
	// subject (logout-all, key compromise).
	RevokeAllSubjectRefreshTokens(ctx context.Context, subjectID, reason string) error

	// ListActiveRefreshTokens returns non-revoked, non-expired rows for a
	// subject, newest first.
	ListActiveRefreshTokens(ctx context.Context, subjectID string) ([]domain.RefreshToken, error)

	// TouchRefreshToken records last use (IP/user-agent/time).
	TouchRefreshToken(ctx context.Context, id, ip, userAgent string, at time.Time) error

	// DeleteExpiredRefreshTokens is housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context) error
}

type Blacklist interface {
	// InsertBlacklistEntry records a revoked access token jti.
	InsertBlacklistEntry(ctx context.Context, e domain.BlacklistEntry) error

	// IsBlacklisted reports whether a jti has been revoked.
	IsBlacklisted(ctx context.Context, jti string) (bool, error)

	// DeleteExpiredBlacklistEntries prunes rows whose token would have
	// expired anyway.
	DeleteExpiredBlacklistEntries(ctx context.Context) error
}

type APIKeys interface {
	// CreateAPIKey inserts a new key record (secret already hashed).
	CreateAPIKey(ctx context.Context, k domain.APIKey) error

	// GetAPIKeyByID returns a key by id.
	GetAPIKeyByID(ctx context.Context, id string) (domain.APIKey, error)

	// GetAPIKeyByHash looks a key up by the fingerprint of its secret.
	GetAPIKeyByHash(ctx context.Context, hash string) (domain.APIKey, error)

	// ListAPIKeys returns keys matching the filter, newest first.
	ListAPIKeys(ctx context.Context, f domain.APIKeyFilter) ([]domain.APIKey, error)

	// RevokeAPIKey flips revoked and records who and why.
	RevokeAPIKey(ctx context.Context, id, by, reason string) error

	// RecordAPIKeyUsage appends a usage row for the key, but only when the
	// key has fewer than limit rows inside the sliding window ending at
	// u.UsedAt. Returns ErrQuotaExceeded without recording otherwise.
	// On success the key's use counter and last-used fields are updated too.
	RecordAPIKeyUsage(ctx context.Context, u domain.APIKeyUsage, limit int, window time.Duration) error

	// ListAPIKeyUsage returns the most recent usage rows for a key.
	ListAPIKeyUsage(ctx context.Context, keyID string, limit int) ([]domain.APIKeyUsage, error)

	// DeleteStaleAPIKeyUsage drops usage rows older than cutoff. Only rows
	// outside every conceivable rate window may be deleted.
	DeleteStaleAPIKeyUsage(ctx context.Context, cutoff time.Time) error
}

type Clients interface {
	// CreateClient inserts a new OAuth client registration.
	CreateClient(ctx context.Context, c domain.Client) error

	// GetClientByID fetches a client by its public identifier.
	GetClientByID(ctx context.Context, id string) (domain.Client, error)

	// ListClients returns all clients, newest first.
	ListClients(ctx context.Context) ([]domain.Client, error)

	// SetClientActive activates or deactivates a client.
	SetClientActive(ctx context.Context, id string, active bool) error
}

type AuthorizationCodes interface {
	// CreateAuthorizationCode stores a freshly minted code.
	CreateAuthorizationCode(ctx context.Context, c domain.AuthorizationCode) error

	// GetAuthorizationCodeByHash fetches a code by its hashed value.
	GetAuthorizationCodeByHash(ctx context.Context, hash string) (domain.AuthorizationCode, error)

	// ConsumeAuthorizationCode marks a code used, but only if it is still
	// unused: a single conditional update, so two concurrent exchanges can
	// never both succeed. Returns ErrNotFound when the code is missing or
	// already consumed.
	ConsumeAuthorizationCode(ctx context.Context, id string, at time.Time) error

	// DeleteExpiredAuthorizationCodes removes codes that are used or past
	// expiry.
	DeleteExpiredAuthorizationCodes(ctx context.Context) error
}

type Sessions interface {
	// CreateSession stores a legacy cookie session.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByHash returns a non-expired session by token fingerprint.
	GetSessionByHash(ctx context.Context, hash string) (domain.Session, error)

	// DeleteSession removes one session.
	DeleteSession(ctx context.Context, id string) error

	// DeleteAllSubjectSessions removes every session of an operator.
	DeleteAllSubjectSessions(ctx context.Context, operatorID string) error

	// DeleteExpiredSessions is housekeeping.
	DeleteExpiredSessions(ctx context.Context) error
}

type AuditEvents interface {
	// AppendAuditEvent appends one event. The audit trail is append-only:
	// there are no update or delete operations.
	AppendAuditEvent(ctx context.Context, e domain.AuditEvent) error

	// QueryAuditEvents returns events matching the filter, newest first.
	QueryAuditEvents(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEvent, error)
}
