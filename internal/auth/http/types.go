package http

import (
	"time"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
)

// ErrorResponse is the OAuth2-style error envelope every failure uses.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// TokenResponse is the token-pair envelope for login, refresh, and the
// oauth2 token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

func newTokenResponse(pair *domain.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int64(pair.ExpiresIn / time.Second),
		Scope:        pair.Scope,
	}
}

// LoginRequest authenticates an operator with a password.
type LoginRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DeviceLabel string `json:"device_label,omitempty"`
}

// RefreshRequest exchanges a refresh token for a new pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest revokes the presented tokens.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`

	// All revokes every session of the calling subject, not just this one.
	All bool `json:"all,omitempty"`
}

// WhoamiResponse describes the calling identity as the resolver sees it.
type WhoamiResponse struct {
	Authenticated bool     `json:"authenticated"`
	Method        string   `json:"method,omitempty"`
	SubjectID     string   `json:"subject_id,omitempty"`
	Role          string   `json:"role,omitempty"`
	Scopes        []string `json:"scopes,omitempty"`
	AgentName     string   `json:"agent_name,omitempty"`
}

// SessionInfo is one active refresh-token session of the caller.
type SessionInfo struct {
	ID          string     `json:"id"`
	DeviceLabel string     `json:"device_label,omitempty"`
	IssuedAt    time.Time  `json:"issued_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	LastUsedIP  string     `json:"last_used_ip,omitempty"`
}

// CreateKeyRequest mints a new agent API key.
type CreateKeyRequest struct {
	AgentName         string     `json:"agent_name"`
	Scopes            []string   `json:"scopes"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	RateLimitRequests int        `json:"rate_limit_requests,omitempty"`
	RateLimitWindowS  int        `json:"rate_limit_window_seconds,omitempty"`
}

// KeyResponse is the stored key record; Key carries the raw secret and is
// only populated by create and rotate.
type KeyResponse struct {
	ID                string     `json:"id"`
	Key               string     `json:"key,omitempty"`
	AgentName         string     `json:"agent_name"`
	Prefix            string     `json:"prefix"`
	Scopes            []string   `json:"scopes"`
	CreatedBy         string     `json:"created_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	LastUsedAt        *time.Time `json:"last_used_at,omitempty"`
	UseCount          int64      `json:"use_count"`
	RateLimitRequests int        `json:"rate_limit_requests"`
	RateLimitWindowS  int        `json:"rate_limit_window_seconds"`
	Revoked           bool       `json:"revoked"`
	RevokedReason     string     `json:"revoked_reason,omitempty"`
}

func newKeyResponse(k domain.APIKey, raw string) KeyResponse {
	return KeyResponse{
		ID:                k.ID,
		Key:               raw,
		AgentName:         k.AgentName,
		Prefix:            k.Prefix,
		Scopes:            k.Scopes,
		CreatedBy:         k.CreatedBy,
		CreatedAt:         k.CreatedAt,
		ExpiresAt:         k.ExpiresAt,
		LastUsedAt:        k.LastUsedAt,
		UseCount:          k.UseCount,
		RateLimitRequests: k.RateLimitRequests,
		RateLimitWindowS:  int(k.RateLimitWindow / time.Second),
		Revoked:           k.Revoked,
		RevokedReason:     k.RevokedReason,
	}
}

// RevokeKeyRequest carries the optional revocation reason.
type RevokeKeyRequest struct {
	Reason string `json:"reason,omitempty"`
}

// KeyUsageEntry is one recorded use of a key.
type KeyUsageEntry struct {
	IP       string    `json:"ip,omitempty"`
	Endpoint string    `json:"endpoint"`
	Method   string    `json:"method"`
	UsedAt   time.Time `json:"used_at"`
}

// RegisterClientRequest registers a delegated-authorization client.
type RegisterClientRequest struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	RedirectURIs []string `json:"redirect_uris"`
	Scopes       []string `json:"scopes"`
}

// ClientResponse is a client registration; ClientSecret is only populated
// at creation of a confidential client.
type ClientResponse struct {
	ID           string    `json:"id"`
	ClientSecret string    `json:"client_secret,omitempty"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	RedirectURIs []string  `json:"redirect_uris"`
	Scopes       []string  `json:"scopes"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

func newClientResponse(c domain.Client, secret string) ClientResponse {
	return ClientResponse{
		ID:           c.ID,
		ClientSecret: secret,
		Name:         c.Name,
		Type:         c.Type,
		RedirectURIs: c.RedirectURIs,
		Scopes:       c.Scopes,
		Active:       c.Active,
		CreatedAt:    c.CreatedAt,
	}
}

// AuditEventEntry is one audit trail row in listing responses.
type AuditEventEntry struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Severity  string         `json:"severity"`
	Timestamp time.Time      `json:"timestamp"`
	SubjectID string         `json:"subject_id,omitempty"`
	IP        string         `json:"ip,omitempty"`
	Resource  string         `json:"resource,omitempty"`
	Action    string         `json:"action,omitempty"`
	Outcome   string         `json:"outcome,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// HealthResponse is the livez/readyz envelope.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}
