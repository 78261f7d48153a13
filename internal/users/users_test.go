package users

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/openclaw/gateway/internal/apperr"
)

func newTestStore(t *testing.T) *Store {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := Open(db)
	require.NoError(t, err)
	return s
}

func TestCreateGetDelete(t *testing.T) {
	s := newTestStore(t)
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	u := User{ID: "u1", Username: "ada", PasswordHash: hash, Role: RoleAdmin, CreatedAt: time.Now()}
	require.NoError(t, s.Create(u))

	got, err := s.Get("u1")
	require.NoError(t, err)
	require.Equal(t, "ada", got.Username)

	byName, err := s.GetByUsername("ada")
	require.NoError(t, err)
	require.Equal(t, "u1", byName.ID)

	count, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, s.Delete("u1"))
	_, err = s.Get("u1")
	require.Equal(t, apperr.NotFound, apperr.KindOf(err))
	_, err = s.GetByUsername("ada")
	require.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestCreateDuplicateUsernameConflict(t *testing.T) {
	s := newTestStore(t)
	hash, _ := HashPassword("pw")
	require.NoError(t, s.Create(User{ID: "u1", Username: "ada", PasswordHash: hash, CreatedAt: time.Now()}))
	err := s.Create(User{ID: "u2", Username: "ada", PasswordHash: hash, CreatedAt: time.Now()})
	require.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestListSkipsIndexEntries(t *testing.T) {
	s := newTestStore(t)
	hash, _ := HashPassword("pw")
	require.NoError(t, s.Create(User{ID: "u1", Username: "ada", PasswordHash: hash, CreatedAt: time.Now()}))
	require.NoError(t, s.Create(User{ID: "u2", Username: "bea", PasswordHash: hash, CreatedAt: time.Now()}))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	ok, err := VerifyPassword(hash, "correct horse battery staple")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = VerifyPassword(hash, "wrong")
	require.NoError(t, err)
	require.False(t, ok)
}
