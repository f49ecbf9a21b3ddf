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
	"github.com/tabwatch/fleetwatch/pkg/jwtx"
	"github.com/tabwatch/fleetwatch/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrTokenExpired       = errors.New("token_expired")
	ErrTokenRevoked       = errors.New("token_revoked")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
)

// TokenService issues, validates, refreshes, and revokes the signed token
// pairs operators authenticate with.
//
// Both halves of a pair are signed JWTs. The access token is validated
// statelessly except for a blacklist lookup; the refresh token is backed by
// a stored row keyed on its jti, which is what makes single-use rotation
// and replay detection possible.
type TokenService struct {
	Keys       *jwtx.Keypair
	Store      store.Store
	Audit      *AuditService
	Issuer     string
	Audience   []string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Login verifies an operator's password and issues a fresh token pair.
func (s *TokenService) Login(ctx context.Context, username, password string, device domain.DeviceInfo) (*domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	op, err := s.Store.Operators().GetOperatorByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable time so a missing username is not
			// distinguishable from a wrong password.
			_ = cryptox.VerifySecret(password, cryptox.DummyHash)
			s.auditLoginFailure(ctx, username, device)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := cryptox.VerifySecret(password, op.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrMismatch) {
			l.Info("login rejected", slog.String("username", username))
			s.auditLoginFailure(ctx, username, device)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	pair, err := s.issuePair(ctx, op.ID, op.Role, scopes.ForRole(op.Role), device, now)
	if err != nil {
		return nil, err
	}

	s.Audit.Record(ctx, domain.AuditEvent{
		Type:      domain.AuditLoginSuccess,
		SubjectID: op.ID,
		IP:        device.IP,
		UserAgent: device.UserAgent,
		Outcome:   domain.OutcomeSuccess,
		Detail:    map[string]any{"username": username, "device": device.Label},
	})

	return pair, nil
}

// ValidateAccess verifies a raw access token and returns its claims.
//
// The pipeline distinguishes failure modes: a forged or malformed token is
// ErrInvalidToken, an expired one ErrTokenExpired, a blacklisted one
// ErrTokenRevoked. Guards map these onto their HTTP error bodies.
func (s *TokenService) ValidateAccess(ctx context.Context, raw string) (jwtx.Claims, error) {
	claims, err := s.Keys.Verifier.Verify(raw)
	if err != nil {
		return jwtx.Claims{}, ErrInvalidToken
	}
	if err := claims.ValidateType(jwtx.TokenTypeAccess); err != nil {
		return jwtx.Claims{}, ErrInvalidToken
	}
	if err := claims.ValidateIssuer(s.Issuer); err != nil {
		return jwtx.Claims{}, ErrInvalidToken
	}
	if err := claims.ValidateExpiry(); err != nil {
		return jwtx.Claims{}, ErrTokenExpired
	}

	revoked, err := s.Store.Blacklist().IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return jwtx.Claims{}, err
	}
	if revoked {
		return jwtx.Claims{}, ErrTokenRevoked
	}

	return claims, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked in the same transaction that persists its replacement, so each
// refresh token works exactly once.
//
// Presenting an already-rotated token is treated as theft: every refresh
// token of the subject is revoked and the event lands in the audit trail.
func (s *TokenService) Refresh(ctx context.Context, rawRefresh string, device domain.DeviceInfo) (*domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	claims, err := s.Keys.Verifier.Verify(rawRefresh)
	if err != nil {
		return nil, ErrInvalidRefresh
	}
	if err := claims.ValidateType(jwtx.TokenTypeRefresh); err != nil {
		return nil, ErrInvalidRefresh
	}
	if err := claims.ValidateIssuer(s.Issuer); err != nil {
		return nil, ErrInvalidRefresh
	}
	if err := claims.ValidateExpiry(); err != nil {
		return nil, ErrInvalidRefresh
	}

	rt, err := s.Store.RefreshTokens().GetRefreshTokenByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}

	// The stored fingerprint must match the presented token. A mismatch
	// means a forged jti collision; reject without side effects.
	if rt.TokenHash != cryptox.FingerprintToken(rawRefresh) {
		return nil, ErrInvalidRefresh
	}

	if rt.Revoked {
		// Replay of a rotated token. Assume the whole chain is compromised.
		l.Warn("refresh token replay detected",
			slog.String("subject_id", rt.SubjectID),
			slog.String("jti", rt.ID),
		)
		_ = s.Store.RefreshTokens().RevokeAllSubjectRefreshTokens(ctx, rt.SubjectID, "refresh replay")
		s.Audit.Record(ctx, domain.AuditEvent{
			Type:      domain.AuditRefreshReplay,
			Severity:  domain.SeverityError,
			SubjectID: rt.SubjectID,
			IP:        device.IP,
			UserAgent: device.UserAgent,
			Outcome:   domain.OutcomeFailure,
			Detail:    map[string]any{"jti": rt.ID},
		})
		return nil, ErrInvalidRefresh
	}

	if now.After(rt.ExpiresAt) {
		return nil, ErrInvalidRefresh
	}

	// Role and scopes are re-resolved at refresh time so demotions take
	// effect without waiting out the refresh TTL.
	op, err := s.Store.Operators().GetOperatorByID(ctx, rt.SubjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	grantScopes := scopes.ForRole(op.Role)

	accessJTI := idx.New().String()
	refreshJTI := idx.New().String()

	accessToken, err := s.sign(jwtx.TokenTypeAccess, op.ID, op.Role, grantScopes, s.AccessTTL, device.Label, accessJTI, now)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.sign(jwtx.TokenTypeRefresh, op.ID, op.Role, nil, s.RefreshTTL, device.Label, refreshJTI, now)
	if err != nil {
		return nil, err
	}

	newRow := domain.RefreshToken{
		ID:                refreshJTI,
		SubjectID:         op.ID,
		TokenHash:         cryptox.FingerprintToken(refreshToken),
		DeviceLabel:       firstNonEmpty(device.Label, rt.DeviceLabel),
		DeviceFingerprint: firstNonEmpty(device.Fingerprint, rt.DeviceFingerprint),
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.RefreshTTL),
		CreatedAt:         now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, rt.ID, "rotated"); err != nil {
			// A concurrent refresh won the race; this presentation loses.
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}
		if err := tx.RefreshTokens().TouchRefreshToken(ctx, rt.ID, device.IP, device.UserAgent, now); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, newRow)
	})
	if err != nil {
		return nil, err
	}

	s.Audit.Record(ctx, domain.AuditEvent{
		Type:      domain.AuditTokenRefreshed,
		SubjectID: op.ID,
		IP:        device.IP,
		UserAgent: device.UserAgent,
		Outcome:   domain.OutcomeSuccess,
		Detail:    map[string]any{"rotated_jti": rt.ID, "new_jti": refreshJTI},
	})

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
		Scope:        strings.Join(grantScopes, " "),
	}, nil
}

// Revoke invalidates a token pair ahead of its natural expiry: the access
// jti goes on the blacklist and the refresh row is marked revoked. Either
// token may be absent.
func (s *TokenService) Revoke(ctx context.Context, rawAccess, rawRefresh, reason string) error {
	now := time.Now()
	var subjectID string

	if rawAccess != "" {
		claims, err := s.Keys.Verifier.Verify(rawAccess)
		if err == nil && claims.ValidateType(jwtx.TokenTypeAccess) == nil {
			subjectID = claims.Subject
			expiry := now.Add(s.AccessTTL)
			if claims.ExpiresAt != nil {
				expiry = claims.ExpiresAt.Time
			}
			err := s.Store.Blacklist().InsertBlacklistEntry(ctx, domain.BlacklistEntry{
				JTI:       claims.ID,
				SubjectID: claims.Subject,
				ExpiresAt: expiry,
				Reason:    reason,
				CreatedAt: now,
			})
			if err != nil {
				return err
			}
		}
	}

	if rawRefresh != "" {
		claims, err := s.Keys.Verifier.Verify(rawRefresh)
		if err == nil && claims.ValidateType(jwtx.TokenTypeRefresh) == nil {
			subjectID = claims.Subject
			if err := s.Store.RefreshTokens().RevokeRefreshToken(ctx, claims.ID, reason); err != nil &&
				!errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
	}

	if subjectID != "" {
		s.Audit.Record(ctx, domain.AuditEvent{
			Type:      domain.AuditTokenRevoked,
			SubjectID: subjectID,
			Outcome:   domain.OutcomeSuccess,
			Detail:    map[string]any{"reason": reason},
		})
	}
	return nil
}

// RevokeAllForSubject revokes every live refresh token of a subject.
// Outstanding access tokens keep working until their short expiry; only
// individually revoked access jtis are blacklisted.
func (s *TokenService) RevokeAllForSubject(ctx context.Context, subjectID, reason string) error {
	if err := s.Store.RefreshTokens().RevokeAllSubjectRefreshTokens(ctx, subjectID, reason); err != nil {
		return err
	}
	s.Audit.Record(ctx, domain.AuditEvent{
		Type:      domain.AuditTokenRevoked,
		SubjectID: subjectID,
		Outcome:   domain.OutcomeSuccess,
		Detail:    map[string]any{"reason": reason, "all_sessions": true},
	})
	return nil
}

// ListActiveSessions returns the live refresh tokens of a subject, which is
// as close to "active sessions" as the token model gets.
func (s *TokenService) ListActiveSessions(ctx context.Context, subjectID string) ([]domain.RefreshToken, error) {
	return s.Store.RefreshTokens().ListActiveRefreshTokens(ctx, subjectID)
}

// issuePair signs a fresh access/refresh pair and persists the refresh row.
func (s *TokenService) issuePair(ctx context.Context, subjectID, role string, grantScopes []string, device domain.DeviceInfo, now time.Time) (*domain.TokenPair, error) {
	accessJTI := idx.New().String()
	refreshJTI := idx.New().String()

	accessToken, err := s.sign(jwtx.TokenTypeAccess, subjectID, role, grantScopes, s.AccessTTL, device.Label, accessJTI, now)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.sign(jwtx.TokenTypeRefresh, subjectID, role, nil, s.RefreshTTL, device.Label, refreshJTI, now)
	if err != nil {
		return nil, err
	}

	row := domain.RefreshToken{
		ID:                refreshJTI,
		SubjectID:         subjectID,
		TokenHash:         cryptox.FingerprintToken(refreshToken),
		DeviceLabel:       device.Label,
		DeviceFingerprint: device.Fingerprint,
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.RefreshTTL),
		CreatedAt:         now,
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, row); err != nil {
		return nil, err
	}

	s.Audit.Record(ctx, domain.AuditEvent{
		Type:      domain.AuditTokenIssued,
		SubjectID: subjectID,
		IP:        device.IP,
		UserAgent: device.UserAgent,
		Outcome:   domain.OutcomeSuccess,
		Detail:    map[string]any{"jti": accessJTI, "device": device.Label},
	})

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
		Scope:        strings.Join(grantScopes, " "),
	}, nil
}

func (s *TokenService) sign(tokenType, subjectID, role string, grantScopes []string, ttl time.Duration, device, jti string, now time.Time) (string, error) {
	claims := jwtx.NewClaims(tokenType, subjectID, role, grantScopes, ttl, s.Issuer, s.Audience, device, jti, now)
	return s.Keys.Signer.Sign(claims)
}

func (s *TokenService) auditLoginFailure(ctx context.Context, username string, device domain.DeviceInfo) {
	s.Audit.Record(ctx, domain.AuditEvent{
		Type:      domain.AuditLoginFailure,
		Severity:  domain.SeverityWarning,
		IP:        device.IP,
		UserAgent: device.UserAgent,
		Outcome:   domain.OutcomeFailure,
		Detail:    map[string]any{"username": username},
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
