package domain

import "time"

// AuthorizationCode represents a single-use delegated-authorization code.
//
// Lifecycle: issued -> exchanged (UsedAt set, terminal) or expired
// (terminal). A second exchange attempt is rejected permanently; any other
// exchange failure leaves the row untouched so the client can retry with
// corrected parameters.
type AuthorizationCode struct {
	ID          string
	ClientID    string
	SubjectID   string
	CodeHash    string
	RedirectURI string
	Scopes      []string

	// Proof-of-possession challenge recorded at issuance. Required for
	// public clients, optional for confidential ones.
	CodeChallenge       string
	CodeChallengeMethod string

	IssuedAt  time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}
