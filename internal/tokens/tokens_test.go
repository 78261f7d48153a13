package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/gateway/internal/apperr"
)

func newTestManager(t *testing.T) *Manager {
	m, err := NewManager(nil, time.Minute, time.Hour)
	require.NoError(t, err)
	return m
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestManager(t)
	tok, err := m.CreateAccessToken("u1", "ada", "admin")
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(tok)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.Subject)
	require.Equal(t, "ada", claims.Username)
	require.Equal(t, "admin", claims.Role)
}

func TestRefreshValidatedAsAccessFails(t *testing.T) {
	m := newTestManager(t)
	refresh, err := m.CreateRefreshToken("u1", "ada", "admin", "")
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(refresh)
	require.Error(t, err)

	access, err := m.CreateAccessToken("u1", "ada", "admin")
	require.NoError(t, err)
	_, err = m.ValidateRefreshToken(access)
	require.Error(t, err)
}

func TestRefreshTokensRotatesFamily(t *testing.T) {
	m := newTestManager(t)
	refresh, err := m.CreateRefreshToken("u1", "ada", "admin", "")
	require.NoError(t, err)

	access2, refresh2, err := m.RefreshTokens(refresh)
	require.NoError(t, err)
	require.NotEmpty(t, access2)
	require.NotEmpty(t, refresh2)

	claims1, _ := m.ValidateRefreshToken(refresh)
	claims2, _ := m.ValidateRefreshToken(refresh2)
	require.Equal(t, claims1.FamilyID, claims2.FamilyID)
}

func TestRefreshTokenReuseRevokesFamily(t *testing.T) {
	m := newTestManager(t)
	refresh, err := m.CreateRefreshToken("u1", "ada", "admin", "")
	require.NoError(t, err)

	_, refresh2, err := m.RefreshTokens(refresh)
	require.NoError(t, err)

	// Reusing the already-rotated-out first refresh token is detected and
	// revokes the whole family, including the freshly issued refresh2.
	_, _, err = m.RefreshTokens(refresh)
	require.Error(t, err)
	require.Equal(t, apperr.Unauthorized, apperr.KindOf(err))

	_, _, err = m.RefreshTokens(refresh2)
	require.Error(t, err)
}

func TestParseBearerCaseInsensitive(t *testing.T) {
	tok, err := ParseBearer("Bearer abc123")
	require.NoError(t, err)
	require.Equal(t, "abc123", tok)

	tok, err = ParseBearer("bearer abc123")
	require.NoError(t, err)
	require.Equal(t, "abc123", tok)

	_, err = ParseBearer("Basic abc123")
	require.Error(t, err)
}
