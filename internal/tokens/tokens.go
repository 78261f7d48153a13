// Package tokens implements HMAC-signed access/refresh token pairs with
// family-based refresh-token reuse detection.
package tokens

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openclaw/gateway/internal/apperr"
)

type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// Claims mirrors the token manager's claim set: subject, username, role,
// token-type, and an optional family-id carried across refreshes.
type Claims struct {
	Username string    `json:"username"`
	Role     string    `json:"role"`
	Type     TokenType `json:"token_type"`
	FamilyID string    `json:"family_id,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and validates access/refresh token pairs. Each refresh
// token family tracks the jti of its currently-valid (unused) refresh
// token; presenting any other token from that family is reuse of an
// already-rotated-out token and revokes the whole family.
type Manager struct {
	key             []byte
	accessLifetime  time.Duration
	refreshLifetime time.Duration

	mu             sync.Mutex
	familyCurrent  map[string]string // family-id -> currently valid jti
	revokedFamily  map[string]bool
}

// NewManager constructs a manager from a 256-bit key and the access/refresh
// lifetimes. If key is nil, one is generated from a cryptographically
// strong source; the caller is responsible for persisting it.
func NewManager(key []byte, accessLifetime, refreshLifetime time.Duration) (*Manager, error) {
	if key == nil {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, apperr.Wrap(apperr.Crypto, err)
		}
	}
	return &Manager{
		key:             key,
		accessLifetime:  accessLifetime,
		refreshLifetime: refreshLifetime,
		familyCurrent:   make(map[string]string),
		revokedFamily:   make(map[string]bool),
	}, nil
}

// Key returns the signing key, so callers can persist a freshly generated one.
func (m *Manager) Key() []byte { return m.key }

func randomFamilyID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", apperr.Wrap(apperr.Crypto, err)
	}
	return hex.EncodeToString(b), nil
}

// CreateAccessToken issues a short-lived access token for (subject, username, role).
func (m *Manager) CreateAccessToken(subject, username, role string) (string, error) {
	return m.sign(subject, username, role, TypeAccess, m.accessLifetime, "", "")
}

// CreateRefreshToken issues a refresh token. If familyID is empty, a fresh
// one is generated; otherwise the supplied family is carried through. The
// new token's jti becomes the family's currently-valid token.
func (m *Manager) CreateRefreshToken(subject, username, role, familyID string) (string, error) {
	if familyID == "" {
		fid, err := randomFamilyID()
		if err != nil {
			return "", err
		}
		familyID = fid
	}
	jti, err := randomFamilyID()
	if err != nil {
		return "", err
	}
	token, err := m.sign(subject, username, role, TypeRefresh, m.refreshLifetime, familyID, jti)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.familyCurrent[familyID] = jti
	m.mu.Unlock()
	return token, nil
}

func (m *Manager) sign(subject, username, role string, typ TokenType, lifetime time.Duration, familyID, jti string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		Role:     role,
		Type:     typ,
		FamilyID: familyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", apperr.Wrap(apperr.Crypto, err)
	}
	return signed, nil
}

func (m *Manager) parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.key, nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthorized, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, apperr.New(apperr.Unauthorized, "invalid token")
	}
	return claims, nil
}

// ValidateAccessToken decodes and verifies the token, requiring token-type = access.
func (m *Manager) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != TypeAccess {
		return nil, apperr.New(apperr.Unauthorized, "not an access token")
	}
	return claims, nil
}

// ValidateRefreshToken decodes and verifies the token, requiring token-type = refresh.
func (m *Manager) ValidateRefreshToken(tokenString string) (*Claims, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != TypeRefresh {
		return nil, apperr.New(apperr.Unauthorized, "not a refresh token")
	}
	return claims, nil
}

// RefreshTokens validates the refresh token, requires it to be the family's
// currently-valid token, and issues a new access/refresh pair carrying the
// same family-id. Presenting a token from a family whose current jti has
// already moved on (i.e. this exact token was already used to refresh, or
// the family was otherwise revoked) is reuse: the whole family is revoked
// and the call fails.
func (m *Manager) RefreshTokens(refreshToken string) (access string, refresh string, err error) {
	claims, err := m.ValidateRefreshToken(refreshToken)
	if err != nil {
		return "", "", err
	}

	m.mu.Lock()
	revoked := m.revokedFamily[claims.FamilyID]
	current, known := m.familyCurrent[claims.FamilyID]
	reused := revoked || !known || current != claims.ID
	if reused {
		m.revokedFamily[claims.FamilyID] = true
	}
	m.mu.Unlock()

	if reused {
		return "", "", apperr.New(apperr.Unauthorized, "refresh token family reused; family revoked")
	}

	access, err = m.CreateAccessToken(claims.Subject, claims.Username, claims.Role)
	if err != nil {
		return "", "", err
	}
	refresh, err = m.CreateRefreshToken(claims.Subject, claims.Username, claims.Role, claims.FamilyID)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// RevokeFamily marks a refresh-token family as revoked, rejecting any
// future refresh attempt that presents a token from that family.
func (m *Manager) RevokeFamily(familyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revokedFamily[familyID] = true
}

// ParseBearer extracts the token from an "Authorization: Bearer <token>"
// header value, matching the scheme prefix case-insensitively.
func ParseBearer(header string) (string, error) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", apperr.New(apperr.Unauthorized, "missing or malformed Authorization header")
	}
	return strings.TrimSpace(header[len(prefix):]), nil
}
