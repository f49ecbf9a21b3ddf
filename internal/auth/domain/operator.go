package domain

import "time"

// Operator is a human user of the fleet server. Operators log in with a
// password and get a token pair; their role decides their default scopes.
type Operator struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is a legacy cookie-backed session. Kept for older dashboard
// deployments; the resolver tries it last, after tokens and API keys.
type Session struct {
	ID         string
	TokenHash  string
	OperatorID string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}
