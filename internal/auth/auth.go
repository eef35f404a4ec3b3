// Package auth manages the optional API token sent as a bearer credential.
package auth

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/speedviz/speedviz/internal/config"
	"github.com/speedviz/speedviz/internal/hostutil"
	"github.com/speedviz/speedviz/internal/output"
)

// TokenEnv overrides any stored token.
const TokenEnv = "SPEEDVIZ_TOKEN"

// Manager resolves the token for the configured API origin. The public
// API works anonymously, so having no token is not an error.
type Manager struct {
	cfg   *config.Config
	store *Store
	now   func() time.Time
}

// NewManager returns a manager backed by the default credential store.
func NewManager(cfg *config.Config, warn io.Writer) *Manager {
	return NewManagerWithStore(cfg, NewStore(config.GlobalConfigDir(), warn))
}

// NewManagerWithStore returns a manager backed by store.
func NewManagerWithStore(cfg *config.Config, store *Store) *Manager {
	return &Manager{cfg: cfg, store: store, now: time.Now}
}

func (m *Manager) origin() string {
	return config.NormalizeBaseURL(m.cfg.BaseURL)
}

// Token returns the bearer token for the origin, or "" when none is set.
// Tokens are never sent over plain http to a non-loopback host.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	token := os.Getenv(TokenEnv)
	if token == "" {
		creds, err := m.store.Load(m.origin())
		switch {
		case errors.Is(err, ErrNoCredentials):
			return "", nil
		case err != nil:
			return "", err
		}
		token = creds.Token
	}

	if token != "" && !hostutil.IsSecure(m.origin()) {
		return "", output.ErrUsageHint(
			"Refusing to send credentials over plain http",
			"Use an https base_url or log out: speedviz auth logout",
		)
	}
	return token, nil
}

// Login stores token for the origin.
func (m *Manager) Login(token, label string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return output.ErrUsage("Token is empty")
	}
	return m.store.Save(m.origin(), &Credentials{Token: token, Label: label, SavedAt: m.now().UTC()})
}

// Logout removes the stored token for the origin.
func (m *Manager) Logout() error {
	return m.store.Delete(m.origin())
}

// Status describes where the current token comes from.
type Status struct {
	Origin        string    `json:"origin"`
	Authenticated bool      `json:"authenticated"`
	Source        string    `json:"source"`
	Label         string    `json:"label,omitempty"`
	SavedAt       time.Time `json:"saved_at,omitzero"`
	Backend       string    `json:"backend"`
}

// Status reports the token source without revealing the token.
func (m *Manager) Status() (Status, error) {
	st := Status{Origin: m.origin(), Source: "none", Backend: m.store.Backend()}
	if os.Getenv(TokenEnv) != "" {
		st.Authenticated = true
		st.Source = "env"
		return st, nil
	}

	creds, err := m.store.Load(st.Origin)
	if errors.Is(err, ErrNoCredentials) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	st.Authenticated = creds.Token != ""
	st.Source = m.store.Backend()
	st.Label = creds.Label
	st.SavedAt = creds.SavedAt
	return st, nil
}
