// Package auth provides the tenant identity used by the gateway.
// The gateway does not interpret credentials itself; an Authenticator
// collaborator exchanges an opaque credential for a TenantContext before
// any pipeline step runs.
package auth

import (
	"context"
	"sync"

	"github.com/semgate-labs/semgate/internal/errors"
)

// Role is the closed set of caller roles.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleUser    Role = "user"
	RoleService Role = "service"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleService:
		return true
	}
	return false
}

// TenantContext is the immutable per-request identity. The RLS engine
// reads tenant and role only through this value, never from globals.
type TenantContext struct {
	// Tenant is the opaque tenant identifier. Never empty.
	Tenant string

	// Role is the caller's role.
	Role Role

	// KeyID identifies the API key used, for audit only.
	KeyID string
}

// Validate checks the context invariants.
func (t TenantContext) Validate() error {
	if t.Tenant == "" {
		return errors.New(errors.KindAuthRequired, "tenant is required")
	}
	if !t.Role.Valid() {
		return errors.New(errors.KindAuthRequired, "unknown role %q", t.Role)
	}
	return nil
}

// Authenticator exchanges an opaque credential for a TenantContext.
type Authenticator interface {
	// Authenticate validates the credential and returns the tenant context.
	// Returns an AuthRequired error if the credential is missing or invalid.
	Authenticate(ctx context.Context, credential string) (TenantContext, error)
}

// StaticKeyAuthenticator maps static API keys to tenant contexts.
// Suitable for development and tests; production deployments plug in
// their own Authenticator.
type StaticKeyAuthenticator struct {
	mu   sync.RWMutex
	keys map[string]TenantContext
}

// NewStaticKeyAuthenticator creates an empty static authenticator.
func NewStaticKeyAuthenticator() *StaticKeyAuthenticator {
	return &StaticKeyAuthenticator{keys: make(map[string]TenantContext)}
}

// RegisterKey adds a key-to-tenant mapping.
func (a *StaticKeyAuthenticator) RegisterKey(key string, tc TenantContext) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys[key] = tc
}

// Authenticate validates a static key.
func (a *StaticKeyAuthenticator) Authenticate(ctx context.Context, credential string) (TenantContext, error) {
	if credential == "" {
		return TenantContext{}, errors.New(errors.KindAuthRequired, "credential required")
	}

	a.mu.RLock()
	tc, ok := a.keys[credential]
	a.mu.RUnlock()

	if !ok {
		return TenantContext{}, errors.New(errors.KindAuthRequired, "unknown credential")
	}
	if err := tc.Validate(); err != nil {
		return TenantContext{}, err
	}
	return tc, nil
}
