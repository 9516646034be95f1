// Package identity fronts the external identity provider. The gateway only
// depends on the Provider contract: resolve the current principal for a
// session token, or none.
package identity

import (
	"context"
	"sync"

	"lending_gateway/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Provider resolves the authenticated principal for a session token.
// A missing or expired session yields (nil, nil).
type Provider interface {
	CurrentPrincipal(ctx context.Context, token string) (*domain.Principal, error)
}

type credential struct {
	password  string
	principal domain.Principal
}

// SessionRegistry is an in-process identity provider: it holds credentials
// and issued session tokens. It stands in for the hosted auth service the
// production deployment delegates to.
type SessionRegistry struct {
	mu       sync.RWMutex
	creds    map[string]credential // keyed by email
	sessions map[string]domain.Principal
	logger   *zap.Logger
}

func NewSessionRegistry(logger *zap.Logger) *SessionRegistry {
	return &SessionRegistry{
		creds:    make(map[string]credential),
		sessions: make(map[string]domain.Principal),
		logger:   logger,
	}
}

// SignUp registers credentials for a new principal.
func (r *SessionRegistry) SignUp(p domain.Principal, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.creds[p.Email]; exists {
		return domain.ErrDuplicateProfile
	}
	r.creds[p.Email] = credential{password: password, principal: p}
	r.logger.Info("principal registered", zap.String("principal_id", p.ID))
	return nil
}

// SignIn checks credentials and issues a session token.
func (r *SessionRegistry) SignIn(email, password string) (string, *domain.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cred, ok := r.creds[email]
	if !ok || cred.password != password {
		return "", nil, &domain.ValidationError{Field: "email", Reason: "invalid email or password"}
	}

	token := uuid.New().String()
	r.sessions[token] = cred.principal
	r.logger.Info("session issued", zap.String("principal_id", cred.principal.ID))
	p := cred.principal
	return token, &p, nil
}

// CurrentPrincipal resolves the principal for a session token.
func (r *SessionRegistry) CurrentPrincipal(ctx context.Context, token string) (*domain.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.sessions[token]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Revoke ends a session. Revoking an unknown token is a no-op.
func (r *SessionRegistry) Revoke(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
}
