package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
	"github.com/tabwatch/fleetwatch/internal/auth/scopes"
	"github.com/tabwatch/fleetwatch/internal/auth/store"
	"github.com/tabwatch/fleetwatch/pkg/cryptox"
	"github.com/tabwatch/fleetwatch/pkg/idx"
	"github.com/tabwatch/fleetwatch/pkg/jwtx"
	"github.com/tabwatch/fleetwatch/pkg/slogx"
)

var (
	ErrInvalidClient  = errors.New("invalid_client")
	ErrInvalidGrant   = errors.New("invalid_grant")
	ErrInvalidRequest = errors.New("invalid_request")

	// ErrRedirectURIMismatch is kept distinct from ErrInvalidRequest because
	// RFC 6749 Section 3.1.2.3 forbids redirecting the user-agent to an
	// unregistered URI. Callers must render this one in place.
	ErrRedirectURIMismatch = errors.New("redirect_uri does not match a registered URI")
)

// DefaultAuthorizationCodeTTL bounds how long an issued code stays
// exchangeable.
const DefaultAuthorizationCodeTTL = 5 * time.Minute

// OAuthService implements the delegated authorization flow: client
// registration, authorization-code issuance with proof-of-possession, the
// code and client-credentials token grants, and token introspection.
type OAuthService struct {
	Store   store.Store
	Tokens  *TokenService
	Audit   *AuditService
	CodeTTL time.Duration
}

// RegisterClientParams are the attributes of a new client registration.
type RegisterClientParams struct {
	Name         string
	Type         string
	RedirectURIs []string
	Scopes       []string
	CreatedBy    string
}

// RegisterClient creates a client and, for confidential clients, returns the
// generated secret. The secret is shown exactly once; storage keeps only an
// Argon2id hash.
func (s *OAuthService) RegisterClient(ctx context.Context, p RegisterClientParams) (domain.Client, string, error) {
	if p.Name == "" {
		return domain.Client{}, "", ErrInvalidRequest
	}
	if p.Type != domain.ClientTypeConfidential && p.Type != domain.ClientTypePublic {
		return domain.Client{}, "", ErrInvalidRequest
	}
	if len(p.RedirectURIs) == 0 {
		return domain.Client{}, "", ErrInvalidRequest
	}
	for _, uri := range p.RedirectURIs {
		if !strings.HasPrefix(uri, "https://") && !strings.HasPrefix(uri, "http://localhost") &&
			!strings.HasPrefix(uri, "http://127.0.0.1") {
			return domain.Client{}, "", ErrInvalidRequest
		}
	}
	if len(p.Scopes) == 0 || len(scopes.ValidateAll(p.Scopes)) > 0 {
		return domain.Client{}, "", ErrInvalidScope
	}
	for _, sc := range p.Scopes {
		if sc == scopes.Wildcard {
			return domain.Client{}, "", ErrInvalidScope
		}
	}

	var rawSecret string
	var secretHash string
	if p.Type == domain.ClientTypeConfidential {
		raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return domain.Client{}, "", err
		}
		rawSecret = raw
		secretHash, err = cryptox.HashSecret(raw)
		if err != nil {
			return domain.Client{}, "", err
		}
	}

	now := time.Now()
	client := domain.Client{
		ID:           idx.New().String(),
		Name:         p.Name,
		Type:         p.Type,
		SecretHash:   secretHash,
		RedirectURIs: p.RedirectURIs,
		Scopes:       scopes.Dedupe(p.Scopes),
		CreatedBy:    p.CreatedBy,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Clients().CreateClient(ctx, client); err != nil {
		return domain.Client{}, "", err
	}

	s.Audit.Record(ctx, domain.AuditEvent{
		Type:      domain.AuditClientRegistered,
		SubjectID: p.CreatedBy,
		Resource:  client.ID,
		Outcome:   domain.OutcomeSuccess,
		Detail:    map[string]any{"name": client.Name, "type": client.Type},
	})

	return client, rawSecret, nil
}

// DeactivateClient disables a client. Existing tokens issued through it stay
// valid until expiry; no new grants are possible.
func (s *OAuthService) DeactivateClient(ctx context.Context, id, by string) error {
	if err := s.Store.Clients().SetClientActive(ctx, id, false); err != nil {
		return err
	}
	s.Audit.Record(ctx, domain.AuditEvent{
		Type:      domain.AuditClientDeactivated,
		SubjectID: by,
		Resource:  id,
		Outcome:   domain.OutcomeSuccess,
	})
	return nil
}

// GetClient returns one client registration.
func (s *OAuthService) GetClient(ctx context.Context, id string) (domain.Client, error) {
	return s.Store.Clients().GetClientByID(ctx, id)
}

// ListClients returns all client registrations.
func (s *OAuthService) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.Store.Clients().ListClients(ctx)
}

// AuthorizeRequest captures the validated inputs to code issuance. The
// subject is the already-authenticated operator approving the grant.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scopes              []string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string

	SubjectID   string
	SubjectRole string
}

// AuthorizeResponse carries the issued code back to the redirect builder.
type AuthorizeResponse struct {
	Code        string
	RedirectURI string
	State       string
}

// Authorize issues a single-use authorization code for an approved grant.
//
// Public clients must send an S256 proof-of-possession challenge; without a
// stored secret the challenge is the only thing binding the code to the
// party that requested it. Confidential clients may skip it.
func (s *OAuthService) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResponse, error) {
	now := time.Now()

	if req.ResponseType != "code" {
		return nil, ErrInvalidRequest
	}
	if req.SubjectID == "" {
		return nil, ErrInvalidRequest
	}

	client, err := s.Store.Clients().GetClientByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidClient
		}
		return nil, err
	}
	if !client.Active {
		return nil, ErrInvalidClient
	}
	if !client.AllowsRedirectURI(req.RedirectURI) {
		return nil, ErrRedirectURIMismatch
	}

	if client.Type == domain.ClientTypePublic {
		if req.CodeChallenge == "" || !strings.EqualFold(req.CodeChallengeMethod, "S256") {
			return nil, ErrInvalidRequest
		}
	} else if req.CodeChallenge != "" {
		if m := req.CodeChallengeMethod; m != "" && !strings.EqualFold(m, "S256") && !strings.EqualFold(m, "plain") {
			return nil, ErrInvalidRequest
		}
	}

	// The grant can never exceed what the client registered for, nor what
	// the approving operator's own role allows.
	requested := req.Scopes
	if len(requested) == 0 {
		requested = client.Scopes
	}
	if len(scopes.ValidateAll(requested)) > 0 {
		return nil, ErrInvalidScope
	}
	effective := scopes.Intersect(requested, client.Scopes)
	if !scopes.HasAll(scopes.ForRole(req.SubjectRole), effective) {
		effective = scopes.Intersect(effective, scopes.ForRole(req.SubjectRole))
	}
	if len(effective) == 0 {
		return nil, ErrInvalidScope
	}

	rawCode, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, err
	}

	ttl := s.CodeTTL
	if ttl <= 0 {
		ttl = DefaultAuthorizationCodeTTL
	}

	code := domain.AuthorizationCode{
		ID:                  idx.New().String(),
		ClientID:            client.ID,
		SubjectID:           req.SubjectID,
		CodeHash:            cryptox.FingerprintToken(rawCode),
		RedirectURI:         req.RedirectURI,
		Scopes:              effective,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: strings.ToUpper(strings.TrimSpace(req.CodeChallengeMethod)),
		IssuedAt:            now,
		ExpiresAt:           now.Add(ttl),
	}
	if err := s.Store.AuthorizationCodes().CreateAuthorizationCode(ctx, code); err != nil {
		return nil, err
	}

	s.Audit.Record(ctx, domain.AuditEvent{
		Type:      domain.AuditCodeIssued,
		SubjectID: req.SubjectID,
		Resource:  client.ID,
		Outcome:   domain.OutcomeSuccess,
		Detail:    map[string]any{"scopes": strings.Join(effective, " ")},
	})

	return &AuthorizeResponse{
		Code:        rawCode,
		RedirectURI: req.RedirectURI,
		State:       req.State,
	}, nil
}

// Exchange implements the authorization_code grant.
//
// Consuming the code is a single conditional update inside the same
// transaction that persists the new refresh token, so a code can be turned
// into tokens at most once no matter how many exchanges race. A replay of a
// consumed code is rejected permanently and recorded; any other rejection
// leaves the code intact for a corrected retry.
func (s *OAuthService) Exchange(ctx context.Context, clientID, clientSecret, rawCode, redirectURI, codeVerifier string, device domain.DeviceInfo) (*domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	client, err := s.Store.Clients().GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidClient
		}
		return nil, err
	}
	if !client.Active {
		return nil, ErrInvalidClient
	}

	// Confidential clients must authenticate.
	if client.SecretHash != "" {
		if clientSecret == "" || cryptox.VerifySecret(clientSecret, client.SecretHash) != nil {
			l.Info("client authentication failed", slog.String("client_id", clientID))
			return nil, ErrInvalidClient
		}
	}

	rawCode = strings.TrimSpace(rawCode)
	redirectURI = strings.TrimSpace(redirectURI)
	if rawCode == "" || redirectURI == "" {
		return nil, ErrInvalidGrant
	}

	authCode, err := s.Store.AuthorizationCodes().GetAuthorizationCodeByHash(ctx, cryptox.FingerprintToken(rawCode))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	if authCode.ClientID != client.ID {
		return nil, ErrInvalidClient
	}
	if authCode.RedirectURI != redirectURI {
		return nil, ErrInvalidGrant
	}
	if authCode.UsedAt != nil {
		s.recordCodeReplay(ctx, authCode, device)
		return nil, ErrInvalidGrant
	}
	if now.After(authCode.ExpiresAt) {
		return nil, ErrInvalidGrant
	}
	if !verifyCodeVerifier(authCode.CodeChallenge, authCode.CodeChallengeMethod, codeVerifier) {
		return nil, ErrInvalidGrant
	}

	op, err := s.Store.Operators().GetOperatorByID(ctx, authCode.SubjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	accessJTI := idx.New().String()
	refreshJTI := idx.New().String()

	accessToken, err := s.Tokens.sign(jwtx.TokenTypeAccess, op.ID, op.Role, authCode.Scopes, s.Tokens.AccessTTL, device.Label, accessJTI, now)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.Tokens.sign(jwtx.TokenTypeRefresh, op.ID, op.Role, authCode.Scopes, s.Tokens.RefreshTTL, device.Label, refreshJTI, now)
	if err != nil {
		return nil, err
	}

	row := domain.RefreshToken{
		ID:                refreshJTI,
		SubjectID:         op.ID,
		TokenHash:         cryptox.FingerprintToken(refreshToken),
		DeviceLabel:       firstNonEmpty(device.Label, "oauth:"+client.Name),
		DeviceFingerprint: device.Fingerprint,
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.Tokens.RefreshTTL),
		CreatedAt:         now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.AuthorizationCodes().ConsumeAuthorizationCode(ctx, authCode.ID, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// A concurrent exchange consumed it first.
				return ErrInvalidGrant
			}
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, row)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidGrant) {
			s.recordCodeReplay(ctx, authCode, device)
		}
		return nil, err
	}

	s.Audit.Record(ctx, domain.AuditEvent{
		Type:      domain.AuditCodeExchanged,
		SubjectID: op.ID,
		IP:        device.IP,
		Resource:  client.ID,
		Outcome:   domain.OutcomeSuccess,
		Detail:    map[string]any{"scopes": strings.Join(authCode.Scopes, " ")},
	})

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.Tokens.AccessTTL,
		Scope:        strings.Join(authCode.Scopes, " "),
	}, nil
}

// ClientCredentials implements the client_credentials grant for
// machine-to-machine callers. Only confidential clients qualify, the subject
// is the client itself, and no refresh token is issued.
func (s *OAuthService) ClientCredentials(ctx context.Context, clientID, clientSecret string, requestedScopes []string, device domain.DeviceInfo) (*domain.TokenPair, error) {
	now := time.Now()

	client, err := s.Store.Clients().GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidClient
		}
		return nil, err
	}
	if !client.Active || client.Type != domain.ClientTypeConfidential {
		return nil, ErrInvalidClient
	}
	if clientSecret == "" || cryptox.VerifySecret(clientSecret, client.SecretHash) != nil {
		return nil, ErrInvalidClient
	}

	effective := client.Scopes
	if len(requestedScopes) > 0 {
		effective = scopes.Intersect(requestedScopes, client.Scopes)
	}
	if len(effective) == 0 {
		return nil, ErrInvalidScope
	}

	jti := idx.New().String()
	accessToken, err := s.Tokens.sign(jwtx.TokenTypeAccess, client.ID, scopes.RoleService, effective, s.Tokens.AccessTTL, device.Label, jti, now)
	if err != nil {
		return nil, err
	}

	s.Audit.Record(ctx, domain.AuditEvent{
		Type:      domain.AuditTokenIssued,
		SubjectID: client.ID,
		IP:        device.IP,
		Outcome:   domain.OutcomeSuccess,
		Detail:    map[string]any{"grant": "client_credentials", "scopes": strings.Join(effective, " ")},
	})

	return &domain.TokenPair{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   s.Tokens.AccessTTL,
		Scope:       strings.Join(effective, " "),
	}, nil
}

// Introspection is the RFC 7662 shaped answer to "is this token alive".
type Introspection struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Subject   string `json:"sub,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	JTI       string `json:"jti,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Introspect reports whether a token is currently usable. Every failure mode
// collapses into active=false; introspection never explains why.
func (s *OAuthService) Introspect(ctx context.Context, raw string) (Introspection, error) {
	claims, err := s.Tokens.Keys.Verifier.Verify(raw)
	if err != nil {
		return Introspection{}, nil
	}
	if err := claims.ValidateIssuer(s.Tokens.Issuer); err != nil {
		return Introspection{}, nil
	}
	if err := claims.ValidateExpiry(); err != nil {
		return Introspection{}, nil
	}

	switch claims.TokenType {
	case jwtx.TokenTypeAccess:
		revoked, err := s.Store.Blacklist().IsBlacklisted(ctx, claims.ID)
		if err != nil {
			return Introspection{}, err
		}
		if revoked {
			return Introspection{}, nil
		}
	case jwtx.TokenTypeRefresh:
		rt, err := s.Store.RefreshTokens().GetRefreshTokenByID(ctx, claims.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Introspection{}, nil
			}
			return Introspection{}, err
		}
		if rt.Revoked || time.Now().After(rt.ExpiresAt) {
			return Introspection{}, nil
		}
	default:
		return Introspection{}, nil
	}

	out := Introspection{
		Active:    true,
		Scope:     strings.Join(claims.Scopes, " "),
		Subject:   claims.Subject,
		TokenType: claims.TokenType,
		JTI:       claims.ID,
		Role:      claims.Role,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Unix()
	}
	return out, nil
}

func (s *OAuthService) recordCodeReplay(ctx context.Context, code domain.AuthorizationCode, device domain.DeviceInfo) {
	slogx.FromContext(ctx).Warn("authorization code replay rejected",
		slog.String("client_id", code.ClientID),
		slog.String("subject_id", code.SubjectID),
	)
	s.Audit.Record(ctx, domain.AuditEvent{
		Type:      domain.AuditCodeReplay,
		Severity:  domain.SeverityError,
		SubjectID: code.SubjectID,
		IP:        device.IP,
		Resource:  code.ClientID,
		Outcome:   domain.OutcomeFailure,
		Detail:    map[string]any{"code_id": code.ID},
	})
}

func verifyCodeVerifier(challenge, method, verifier string) bool {
	challenge = strings.TrimSpace(challenge)
	if challenge == "" {
		// No challenge stored; nothing to enforce.
		return true
	}

	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return false
	}

	method = strings.TrimSpace(method)
	switch {
	case method == "" || strings.EqualFold(method, "plain"):
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	case strings.EqualFold(method, "S256"):
		sum := sha256.Sum256([]byte(verifier))
		expected := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(expected)) == 1
	default:
		return false
	}
}
