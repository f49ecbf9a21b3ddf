package domain

import "time"

// AuditEventType enumerates the security-relevant events the core records.
type AuditEventType string

const (
	AuditLoginSuccess AuditEventType = "login_success"
	AuditLoginFailure AuditEventType = "login_failure"

	AuditTokenIssued    AuditEventType = "token_issued"
	AuditTokenRefreshed AuditEventType = "token_refreshed"
	AuditTokenRevoked   AuditEventType = "token_revoked"
	AuditRefreshReplay  AuditEventType = "refresh_replay_detected"

	AuditKeyCreated     AuditEventType = "key_created"
	AuditKeyUsed        AuditEventType = "key_used"
	AuditKeyRevoked     AuditEventType = "key_revoked"
	AuditKeyRotated     AuditEventType = "key_rotated"
	AuditKeyRateLimited AuditEventType = "key_rate_limited"

	AuditClientRegistered  AuditEventType = "oauth_client_registered"
	AuditClientDeactivated AuditEventType = "oauth_client_deactivated"
	AuditCodeIssued        AuditEventType = "code_issued"
	AuditCodeExchanged     AuditEventType = "code_exchanged"
	AuditCodeReplay        AuditEventType = "code_replay_rejected"

	AuditUnauthorizedAccess AuditEventType = "unauthorized_access"
	AuditAccessDenied       AuditEventType = "access_denied"
)

// Audit severities.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Audit outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuditEvent is one append-only row in the audit trail. Events are never
// updated or deleted by request-serving code.
type AuditEvent struct {
	ID        string
	Type      AuditEventType
	Severity  string
	Timestamp time.Time
	SubjectID string
	IP        string
	UserAgent string
	Resource  string
	Action    string
	Outcome   string
	Detail    map[string]any
}

// AuditFilter narrows audit queries for the listing endpoint.
type AuditFilter struct {
	Since     *time.Time
	Until     *time.Time
	Type      AuditEventType
	SubjectID string
	Limit     int
}
