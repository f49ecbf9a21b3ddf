package domain

import "time"

// APIKey models a long-lived per-agent credential.
//
// The raw secret is shown to the caller exactly once, at creation; only its
// SHA-256 fingerprint is stored. The prefix is a short public fragment of the
// key kept for display and log correlation.
type APIKey struct {
	ID         string
	AgentName  string
	Prefix     string
	SecretHash string
	Scopes     []string
	CreatedBy  string
	CreatedAt  time.Time
	ExpiresAt  *time.Time

	LastUsedAt *time.Time
	LastUsedIP string
	UseCount   int64

	// RateLimitRequests requests allowed per RateLimitWindow (sliding).
	RateLimitRequests int
	RateLimitWindow   time.Duration

	Revoked       bool
	RevokedAt     *time.Time
	RevokedBy     string
	RevokedReason string
}

// APIKeyUsage is one recorded use of a key. Usage rows double as the
// sliding-window rate limit counter.
type APIKeyUsage struct {
	ID       string
	KeyID    string
	IP       string
	Endpoint string
	Method   string
	UsedAt   time.Time
}

// APIKeyFilter narrows ListKeys results.
type APIKeyFilter struct {
	AgentName      string
	IncludeRevoked bool
}
