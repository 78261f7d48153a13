// Package users implements the user store: an ordered key-value tree with
// user records and a reverse username index, backed by the same embedded
// SQLite engine as the event store.
package users

import (
	"database/sql"
	"strings"
	"time"

	"github.com/openclaw/gateway/internal/apperr"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	Email        string
	CreatedAt    time.Time
}

// Store is the ordered key-value tree: user records live under their id,
// and a reverse index lives under "idx:username:{username}" → id. create
// writes the record then the index entry, in that order; delete removes
// both.
type Store struct {
	db *sql.DB
}

func Open(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS kv_users (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`)
	if err != nil {
		return apperr.Wrap(apperr.Storage, err)
	}
	return nil
}

func userKey(id string) string     { return id }
func indexKey(username string) string { return "idx:username:" + username }

// Create writes the record then the reverse-index entry. Fails with
// apperr.Conflict if the username is already indexed.
func (s *Store) Create(u User) error {
	tx, err := s.db.Begin()
	if err != nil {
		return apperr.Wrap(apperr.Storage, err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRow(`SELECT value FROM kv_users WHERE key = ?`, indexKey(u.Username)).Scan(&existing)
	if err == nil {
		return apperr.New(apperr.Conflict, "username already exists: "+u.Username)
	}
	if err != sql.ErrNoRows {
		return apperr.Wrap(apperr.Storage, err)
	}

	payload, err := encodeUser(u)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO kv_users(key, value) VALUES (?, ?)`, userKey(u.ID), payload); err != nil {
		return apperr.Wrap(apperr.Storage, err)
	}
	if _, err := tx.Exec(`INSERT INTO kv_users(key, value) VALUES (?, ?)`, indexKey(u.Username), u.ID); err != nil {
		return apperr.Wrap(apperr.Storage, err)
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.Storage, err)
	}
	return nil
}

func (s *Store) Get(id string) (User, error) {
	var payload string
	err := s.db.QueryRow(`SELECT value FROM kv_users WHERE key = ?`, userKey(id)).Scan(&payload)
	if err == sql.ErrNoRows {
		return User{}, apperr.New(apperr.NotFound, "user not found: "+id)
	}
	if err != nil {
		return User{}, apperr.Wrap(apperr.Storage, err)
	}
	return decodeUser(payload)
}

func (s *Store) GetByUsername(username string) (User, error) {
	var id string
	err := s.db.QueryRow(`SELECT value FROM kv_users WHERE key = ?`, indexKey(username)).Scan(&id)
	if err == sql.ErrNoRows {
		return User{}, apperr.New(apperr.NotFound, "user not found: "+username)
	}
	if err != nil {
		return User{}, apperr.Wrap(apperr.Storage, err)
	}
	return s.Get(id)
}

// Delete removes the record and its reverse-index entry.
func (s *Store) Delete(id string) error {
	u, err := s.Get(id)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return apperr.Wrap(apperr.Storage, err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM kv_users WHERE key = ?`, userKey(id)); err != nil {
		return apperr.Wrap(apperr.Storage, err)
	}
	if _, err := tx.Exec(`DELETE FROM kv_users WHERE key = ?`, indexKey(u.Username)); err != nil {
		return apperr.Wrap(apperr.Storage, err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.Storage, err)
	}
	return nil
}

// Update rewrites the record in place. If the username changed, the reverse
// index is moved to the new name, failing with apperr.Conflict if the new
// name is already taken by another user.
func (s *Store) Update(u User) error {
	existing, err := s.Get(u.ID)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return apperr.Wrap(apperr.Storage, err)
	}
	defer tx.Rollback()

	if u.Username != existing.Username {
		var collidingID string
		err := tx.QueryRow(`SELECT value FROM kv_users WHERE key = ?`, indexKey(u.Username)).Scan(&collidingID)
		if err == nil {
			return apperr.New(apperr.Conflict, "username already exists: "+u.Username)
		}
		if err != sql.ErrNoRows {
			return apperr.Wrap(apperr.Storage, err)
		}
		if _, err := tx.Exec(`DELETE FROM kv_users WHERE key = ?`, indexKey(existing.Username)); err != nil {
			return apperr.Wrap(apperr.Storage, err)
		}
		if _, err := tx.Exec(`INSERT INTO kv_users(key, value) VALUES (?, ?)`, indexKey(u.Username), u.ID); err != nil {
			return apperr.Wrap(apperr.Storage, err)
		}
	}

	u.CreatedAt = existing.CreatedAt
	payload, err := encodeUser(u)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE kv_users SET value = ? WHERE key = ?`, payload, userKey(u.ID)); err != nil {
		return apperr.Wrap(apperr.Storage, err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.Storage, err)
	}
	return nil
}

// Count counts entries that are not reverse-index entries.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM kv_users WHERE key NOT LIKE 'idx:%'`).Scan(&n)
	if err != nil {
		return 0, apperr.Wrap(apperr.Storage, err)
	}
	return n, nil
}

// List iterates user records, skipping index entries.
func (s *Store) List() ([]User, error) {
	rows, err := s.db.Query(`SELECT value FROM kv_users WHERE key NOT LIKE 'idx:%'`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, apperr.Wrap(apperr.Storage, err)
		}
		u, err := decodeUser(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func encodeUser(u User) (string, error) {
	var b strings.Builder
	b.WriteString(u.ID)
	b.WriteByte('\x1f')
	b.WriteString(u.Username)
	b.WriteByte('\x1f')
	b.WriteString(u.PasswordHash)
	b.WriteByte('\x1f')
	b.WriteString(string(u.Role))
	b.WriteByte('\x1f')
	b.WriteString(u.Email)
	b.WriteByte('\x1f')
	b.WriteString(u.CreatedAt.UTC().Format(time.RFC3339Nano))
	return b.String(), nil
}

func decodeUser(payload string) (User, error) {
	parts := strings.Split(payload, "\x1f")
	if len(parts) != 6 {
		return User{}, apperr.New(apperr.Storage, "corrupt user record")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, parts[5])
	if err != nil {
		return User{}, apperr.Wrap(apperr.Storage, err)
	}
	return User{
		ID:           parts[0],
		Username:     parts[1],
		PasswordHash: parts[2],
		Role:         Role(parts[3]),
		Email:        parts[4],
		CreatedAt:    createdAt,
	}, nil
}
