package domain

import "time"

// TokenPair is what login/refresh/exchange return: a short-lived signed
// access token and a longer-lived refresh token.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token,omitempty"`
	TokenType    string        `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    time.Duration `json:"expires_in"`           // seconds until access expiry
	Scope        string        `json:"scope,omitempty"`      // space-delimited
}

// DeviceInfo describes the device/session a token pair was issued to. Stored
// with the refresh token so operators can tell their sessions apart.
type DeviceInfo struct {
	Label       string
	Fingerprint string
	IP          string
	UserAgent   string
}

// RefreshToken models the stored refresh token record.
//
// A refresh token is single-use: each successful refresh revokes the old row
// and inserts a new one. A replayed token is detectable because its row is
// already marked revoked.
type RefreshToken struct {
	ID                string // jti of the refresh JWT
	SubjectID         string
	TokenHash         string // SHA-256 fingerprint; the raw token is never stored
	DeviceLabel       string
	DeviceFingerprint string
	IssuedAt          time.Time
	ExpiresAt         time.Time
	LastUsedAt        *time.Time
	LastUsedIP        string
	LastUserAgent     string
	Revoked           bool
	RevokedAt         *time.Time
	RevokedReason     string
	CreatedAt         time.Time
}

// BlacklistEntry records an access token revoked before its natural expiry.
// The entry mirrors the token's own expiry so housekeeping can prune it once
// the token would have expired anyway.
type BlacklistEntry struct {
	JTI       string
	SubjectID string
	ExpiresAt time.Time
	Reason    string
	CreatedAt time.Time
}
