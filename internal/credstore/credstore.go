// Package credstore persists the signed-in user's session: the bearer token and the user
// record (id, email, display name, refresh token). Both entries are written and cleared
// together.
package credstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/taskkeeper/internal/errs"
	"github.com/and161185/taskkeeper/internal/model"
)

// Store persists a credential.
type Store interface {
	// Save replaces the stored credential.
	Save(ctx context.Context, cred model.Credential) error
	// Load returns the stored credential or errs.ErrUnauthenticated if none is stored.
	Load(ctx context.Context) (model.Credential, error)
	// Clear removes the stored credential; clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// DefaultDir returns $XDG_CONFIG_HOME/taskkeeper or ~/.config/taskkeeper.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "taskkeeper")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "taskkeeper")
}

// TokenExpiry reads the exp claim of a JWT without verifying it. Zero if absent or unparsable.
func TokenExpiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.Mutex
	cred *model.Credential
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Save(_ context.Context, cred model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := cred
	c.ExpiresAt = TokenExpiry(c.Token)
	m.cred = &c
	return nil
}

func (m *Memory) Load(context.Context) (model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil || !m.cred.Present() {
		return model.Credential{}, errs.ErrUnauthenticated
	}
	return *m.cred, nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = nil
	return nil
}
