package domain

import "time"

// Client types. Confidential clients hold a secret; public clients cannot
// keep one and must use a proof-of-possession challenge instead.
const (
	ClientTypeConfidential = "confidential"
	ClientTypePublic       = "public"
)

// Client is a registered third-party integration using the delegated
// authorization flow.
type Client struct {
	ID           string
	Name         string
	Type         string
	SecretHash   string // empty for public clients
	RedirectURIs []string
	Scopes       []string
	CreatedBy    string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AllowsRedirectURI reports whether uri exactly matches one of the client's
// registered redirect URIs. No prefix or wildcard matching.
func (c Client) AllowsRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}
