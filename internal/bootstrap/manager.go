// Package bootstrap implements first-run admin provisioning: a one-time
// setup token minted when the user store is empty, redeemable through the
// public setup.init RPC, plus an environment-variable shortcut for
// non-interactive deployments.
package bootstrap

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/openclaw/gateway/internal/apperr"
	"github.com/openclaw/gateway/internal/users"
)

const (
	tokenBytes     = 48
	tokenLifetime  = time.Hour
	envAdminUser   = "OPENCLAW_ADMIN_USERNAME"
	envAdminPass   = "OPENCLAW_ADMIN_PASSWORD"
)

// Manager mints and redeems the one-time bootstrap token that gates
// creation of the first admin user.
type Manager struct {
	store   *users.Store
	baseURL string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewManager(store *users.Store, baseURL string) *Manager {
	return &Manager{store: store, baseURL: baseURL}
}

func randomToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", apperr.Wrap(apperr.Crypto, err)
	}
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(b), nil
}

// Status reports the setup state for the GET setup.status RPC, minting (or
// reusing) a valid token and environment-shortcut admin user as needed.
type Status struct {
	Initialized    bool
	UserCount      int
	BootstrapActive bool
	SetupURL       string
}

// Status checks the user store and, if still empty, ensures an active token
// exists (minting one on first call or after expiry) and prints the setup
// URL to stderr. If both env-var shortcuts are set and no user exists, it
// creates the admin directly and reports Initialized.
func (m *Manager) Status() (Status, error) {
	count, err := m.store.Count()
	if err != nil {
		return Status{}, err
	}
	if count > 0 {
		return Status{Initialized: true, UserCount: count}, nil
	}

	if envUser, envPass := os.Getenv(envAdminUser), os.Getenv(envAdminPass); envUser != "" && envPass != "" {
		if _, err := m.createAdmin(envUser, envPass, ""); err != nil {
			return Status{}, err
		}
		return Status{Initialized: true, UserCount: 1}, nil
	}

	token, err := m.ensureToken()
	if err != nil {
		return Status{}, err
	}
	setupURL := fmt.Sprintf("%s/setup?token=%s", m.baseURL, token)
	return Status{Initialized: false, UserCount: 0, BootstrapActive: true, SetupURL: setupURL}, nil
}

func (m *Manager) ensureToken() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && time.Now().Before(m.expiresAt) {
		return m.token, nil
	}

	token, err := randomToken()
	if err != nil {
		return "", err
	}
	m.token = token
	m.expiresAt = time.Now().Add(tokenLifetime)

	setupURL := fmt.Sprintf("%s/setup?token=%s", m.baseURL, token)
	slog.Warn("no admin user exists — visit the setup URL within one hour", "setup_url", setupURL)
	return token, nil
}

// Init redeems the bootstrap token and creates the first admin user. Any
// call after a user already exists, or with a wrong/expired token, fails
// uniformly with apperr.Unauthorized ("InvalidBootstrapToken").
func (m *Manager) Init(token, username, password, email string) (users.User, error) {
	count, err := m.store.Count()
	if err != nil {
		return users.User{}, err
	}
	if count > 0 {
		return users.User{}, invalidBootstrapToken()
	}

	m.mu.Lock()
	valid := m.token != "" && token == m.token && time.Now().Before(m.expiresAt)
	if valid {
		m.token = ""
	}
	m.mu.Unlock()

	if !valid {
		return users.User{}, invalidBootstrapToken()
	}

	return m.createAdmin(username, password, email)
}

func invalidBootstrapToken() error {
	return apperr.New(apperr.Unauthorized, "InvalidBootstrapToken")
}

func (m *Manager) createAdmin(username, password, email string) (users.User, error) {
	hash, err := users.HashPassword(password)
	if err != nil {
		return users.User{}, err
	}
	u := users.User{
		ID:           randomUserID(),
		Username:     username,
		PasswordHash: hash,
		Role:         users.RoleAdmin,
		Email:        email,
		CreatedAt:    time.Now(),
	}
	if err := m.store.Create(u); err != nil {
		return users.User{}, err
	}
	return u, nil
}

func randomUserID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
