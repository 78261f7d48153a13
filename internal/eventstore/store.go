package eventstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openclaw/gateway/internal/apperr"
	"github.com/openclaw/gateway/internal/ids"
	"github.com/openclaw/gateway/internal/logging"
)

// Store is the embedded ordered key-value backend for the event log and its
// projections, built on an SQLite B-tree pager (pure Go, via modernc.org/sqlite).
// It exclusively owns its backend and all table handles.
type Store struct {
	db *sql.DB

	// writeLocks serializes appends per session-key so the event insert and
	// projection update for one session-key are never interleaved with a
	// concurrent append to the same key, satisfying append-atomicity.
	locksMu sync.Mutex
	locks   map[ids.SessionKey]*sync.Mutex
}

// Open creates or attaches to the SQLite-backed store at path (use ":memory:" for tests).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers on one handle

	s := &Store{db: db, locks: map[ids.SessionKey]*sync.Mutex{}}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS events (
	session_key TEXT NOT NULL,
	event_id_hex TEXT NOT NULL,
	payload TEXT NOT NULL,
	timestamp_ns INTEGER NOT NULL,
	PRIMARY KEY (session_key, event_id_hex)
);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_key, timestamp_ns);
CREATE TABLE IF NOT EXISTS sessions (
	session_key TEXT PRIMARY KEY,
	payload TEXT NOT NULL
);
`
	_, err := s.db.Exec(schema)
	if err != nil {
		return apperr.Wrap(apperr.Storage, err)
	}
	return nil
}

func (s *Store) lockFor(key ids.SessionKey) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Append writes the event under its composite key and folds it into the
// session's projection, creating one lazily if none exists. The event and
// projection writes happen inside one SQL transaction guarded additionally
// by a per-session-key mutex, so a concurrent append to the same
// session-key either lands entirely or not at all.
func (s *Store) Append(ev Event) (EventID, error) {
	lock := s.lockFor(ev.SessionKey)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return EventID{}, apperr.Wrap(apperr.Storage, err)
	}
	defer tx.Rollback() //nolint:errcheck

	raw, err := ev.marshal()
	if err != nil {
		return EventID{}, apperr.Wrap(apperr.Storage, err)
	}

	_, err = tx.Exec(`INSERT OR IGNORE INTO events(session_key, event_id_hex, payload, timestamp_ns) VALUES (?, ?, ?, ?)`,
		string(ev.SessionKey), ev.ID.Hex(), string(raw), ev.Timestamp.UnixNano())
	if err != nil {
		return EventID{}, apperr.Wrap(apperr.Storage, err)
	}

	proj, err := s.readProjection(tx, ev.SessionKey)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			p := NewProjection(ev.SessionKey, ev.AgentID)
			proj = &p
		} else {
			return EventID{}, err
		}
	}
	if err := proj.Apply(ev); err != nil {
		return EventID{}, apperr.Wrap(apperr.Storage, err)
	}

	projRaw, err := json.Marshal(proj)
	if err != nil {
		return EventID{}, apperr.Wrap(apperr.Storage, err)
	}
	_, err = tx.Exec(`INSERT INTO sessions(session_key, payload) VALUES (?, ?)
		ON CONFLICT(session_key) DO UPDATE SET payload = excluded.payload`,
		string(ev.SessionKey), string(projRaw))
	if err != nil {
		return EventID{}, apperr.Wrap(apperr.Storage, err)
	}

	if err := tx.Commit(); err != nil {
		return EventID{}, apperr.Wrap(apperr.Storage, err)
	}
	return ev.ID, nil
}

// GetEvents scans the events namespace for sessionKey and returns them
// sorted by (timestamp, event-id-hex) ascending — the deterministic replay
// order, ties broken lexicographically on the event id.
func (s *Store) GetEvents(sessionKey ids.SessionKey) ([]Event, error) {
	return s.getEventsSince(sessionKey, time.Time{})
}

// GetEventsSince is GetEvents filtered to events at or after since.
func (s *Store) GetEventsSince(sessionKey ids.SessionKey, since time.Time) ([]Event, error) {
	return s.getEventsSince(sessionKey, since)
}

func (s *Store) getEventsSince(sessionKey ids.SessionKey, since time.Time) ([]Event, error) {
	rows, err := s.db.Query(`SELECT payload FROM events WHERE session_key = ? AND timestamp_ns >= ?`,
		string(sessionKey), since.UnixNano())
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, apperr.Wrap(apperr.Storage, err)
		}
		ev, err := unmarshalEvent([]byte(payload))
		if err != nil {
			return nil, apperr.Wrap(apperr.Storage, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Storage, err)
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].ID.Less(events[j].ID)
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}

// GetProjection returns the current projection for sessionKey, or a
// NotFound error if it has never been populated.
func (s *Store) GetProjection(sessionKey ids.SessionKey) (Projection, error) {
	p, err := s.readProjection(s.db, sessionKey)
	if err != nil {
		return Projection{}, err
	}
	return *p, nil
}

// queryer abstracts *sql.DB / *sql.Tx for the shared read path.
type queryer interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

func (s *Store) readProjection(q queryer, sessionKey ids.SessionKey) (*Projection, error) {
	var payload string
	err := q.QueryRow(`SELECT payload FROM sessions WHERE session_key = ?`, string(sessionKey)).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, fmt.Sprintf("no projection for session %q", sessionKey))
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, err)
	}
	var proj Projection
	if err := json.Unmarshal([]byte(payload), &proj); err != nil {
		return nil, apperr.Wrap(apperr.Storage, err)
	}
	return &proj, nil
}

// ListSessions returns every known session-key.
func (s *Store) ListSessions() ([]ids.SessionKey, error) {
	rows, err := s.db.Query(`SELECT session_key FROM sessions`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, err)
	}
	defer rows.Close()

	var keys []ids.SessionKey
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, apperr.Wrap(apperr.Storage, err)
		}
		keys = append(keys, ids.SessionKey(key))
	}
	return keys, rows.Err()
}

// Flush is a no-op for the SQLite backend beyond WAL checkpointing, kept to
// satisfy callers that durably persist pending writes before shutdown.
func (s *Store) Flush() error {
	_, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	if err != nil {
		logging.For("event_store").Warn("flush checkpoint failed", "error", err)
	}
	return nil
}

// Close releases the backend handle.
func (s *Store) Close() error {
	return s.db.Close()
}
