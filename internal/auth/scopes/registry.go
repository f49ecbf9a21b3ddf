// Package scopes defines the fixed permission vocabulary of the fleet
// server and the role defaults built on it. The registry has no mutable
// runtime state: it is consulted by the issuers and guards, it never drives
// behaviour itself.
package scopes

// Wildcard is the reserved scope that satisfies every scope check. Only the
// admin role carries it.
const Wildcard = "*"

// Scope names, resource:action.
const (
	MachinesRead  = "machines:read"
	MachinesWrite = "machines:write"
	MetricsRead   = "metrics:read"
	MetricsWrite  = "metrics:write"
	CommandsRead  = "commands:read"
	CommandsWrite = "commands:write"
	KeysRead      = "keys:read"
	KeysWrite     = "keys:write"
	ClientsRead   = "clients:read"
	ClientsWrite  = "clients:write"
	AuditRead     = "audit:read"
)

// Role names.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleAgent    = "agent"
	RoleViewer   = "viewer"
	RoleService  = "service"
)

// Definition carries the display metadata for one scope.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Sensitive   bool   `json:"sensitive"`
}

// definitions is the full vocabulary. Order is the display order of the
// scope listing endpoint.
var definitions = []Definition{
	{Wildcard, "Grants every permission", "system", true},
	{MachinesRead, "Read machine inventory and status", "machines", false},
	{MachinesWrite, "Register and modify machines", "machines", false},
	{MetricsRead, "Read fleet telemetry", "metrics", false},
	{MetricsWrite, "Submit telemetry data points", "metrics", false},
	{CommandsRead, "Read pending commands", "commands", false},
	{CommandsWrite, "Dispatch commands to agents", "commands", true},
	{KeysRead, "List API keys and their usage", "keys", false},
	{KeysWrite, "Create, rotate and revoke API keys", "keys", true},
	{ClientsRead, "List registered OAuth clients", "clients", false},
	{ClientsWrite, "Register and deactivate OAuth clients", "clients", true},
	{AuditRead, "Read the security audit trail", "audit", true},
}

var byName = func() map[string]Definition {
	m := make(map[string]Definition, len(definitions))
	for _, d := range definitions {
		m[d.Name] = d
	}
	return m
}()

// roleScopes is the fixed role -> default scope table.
var roleScopes = map[string][]string{
	RoleAdmin: {Wildcard},
	RoleOperator: {
		MachinesRead, MachinesWrite,
		MetricsRead, MetricsWrite,
		CommandsRead, CommandsWrite,
		KeysRead, KeysWrite,
		AuditRead,
	},
	RoleAgent:  {MetricsWrite, CommandsRead},
	RoleViewer: {MachinesRead, MetricsRead, CommandsRead},
	// Service subjects (client-credentials grants) carry only the scopes
	// granted to their client registration.
	RoleService: {},
}

// List returns the vocabulary in display order.
func List() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// IsValid reports whether name is a defined scope.
func IsValid(name string) bool {
	_, ok := byName[name]
	return ok
}

// ValidateAll returns the subset of requested scopes that are not defined.
// An empty result means all scopes are valid.
func ValidateAll(requested []string) []string {
	var invalid []string
	for _, s := range requested {
		if !IsValid(s) {
			invalid = append(invalid, s)
		}
	}
	return invalid
}

// IsValidRole reports whether name is a defined role.
func IsValidRole(name string) bool {
	_, ok := roleScopes[name]
	return ok
}

// ForRole returns the default scopes for a role, nil for unknown roles.
func ForRole(role string) []string {
	defaults, ok := roleScopes[role]
	if !ok {
		return nil
	}
	out := make([]string, len(defaults))
	copy(out, defaults)
	return out
}

// HasAny reports whether granted satisfies at least one required scope.
// The wildcard satisfies everything, so it is tested first.
func HasAny(granted, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := toSet(granted)
	if _, ok := set[Wildcard]; ok {
		return true
	}
	for _, want := range required {
		if _, ok := set[want]; ok {
			return true
		}
	}
	return false
}

// HasAll reports whether granted satisfies every required scope.
func HasAll(granted, required []string) bool {
	set := toSet(granted)
	if _, ok := set[Wildcard]; ok {
		return true
	}
	for _, want := range required {
		if _, ok := set[want]; !ok {
			return false
		}
	}
	return true
}

// Intersect returns the scopes present in both lists, deduplicated,
// preserving the order of a. A wildcard in b passes a through unchanged.
func Intersect(a, b []string) []string {
	set := toSet(b)
	if _, ok := set[Wildcard]; ok {
		return Dedupe(a)
	}
	var out []string
	for _, s := range a {
		if _, ok := set[s]; ok {
			out = append(out, s)
		}
	}
	return Dedupe(out)
}

// Dedupe removes duplicates preserving order.
func Dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func toSet(in []string) map[string]struct{} {
	set := make(map[string]struct{}, len(in))
	for _, s := range in {
		set[s] = struct{}{}
	}
	return set
}
