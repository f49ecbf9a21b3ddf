package domain

// AuthMethod identifies which credential type authenticated a request.
type AuthMethod string

const (
	AuthMethodToken   AuthMethod = "token"
	AuthMethodAPIKey  AuthMethod = "apikey"
	AuthMethodSession AuthMethod = "session"
	AuthMethodNone    AuthMethod = ""
)

// AuthContext is the per-request authentication verdict. Built fresh for
// every request by the resolver, consulted by the access-control guards,
// never persisted.
type AuthContext struct {
	Authenticated bool
	Method        AuthMethod

	SubjectID string
	Role      string
	Scopes    []string

	// TokenID is the jti when Method == AuthMethodToken.
	TokenID string

	// APIKeyID and AgentName are set when Method == AuthMethodAPIKey.
	APIKeyID  string
	AgentName string

	// SessionID is set when Method == AuthMethodSession.
	SessionID string
}

// Anonymous is the unauthenticated context. Not an error: callers decide
// whether anonymous access is acceptable.
func Anonymous() AuthContext {
	return AuthContext{}
}
