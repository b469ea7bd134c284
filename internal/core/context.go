package core

import (
	"context"
	"slices"
)

type contextKey string

const (
	ctxKeyPrincipal contextKey = "principal"
	ctxKeyIPAddress contextKey = "ip"
	ctxKeyUserAgent contextKey = "ua"
)

// RoleSuperAdmin may use the data pipeline and see import files.
const RoleSuperAdmin = "super_admin"

// Principal is the authenticated caller as seen by the core.
type Principal struct {
	UserID string
	Roles  []string
}

// HasRole reports whether p carries role.
func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// IsSuperAdmin is shorthand for HasRole(RoleSuperAdmin).
func (p Principal) IsSuperAdmin() bool {
	return p.HasRole(RoleSuperAdmin)
}

// ContextWithPrincipal attaches the authenticated caller.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

// PrincipalFromContext returns the caller attached by ContextWithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(Principal)
	return p, ok
}

// ContextWithIPAddress adds the client IP for logging.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// ContextWithUserAgent adds the User-Agent for logging.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// GetIPAddressFromContext extracts the client IP.
func GetIPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}

// GetUserAgentFromContext extracts the User-Agent.
func GetUserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return v
	}
	return ""
}
