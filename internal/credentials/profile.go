package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/openclaw/gateway/internal/apperr"
)

// Profile records metadata about a named credential's owning target
// (a channel or provider): which account it authenticates and when it was
// last used, without any OAuth-refresh plumbing.
type Profile struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	AccountID string    `json:"accountId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	LastUsed  *time.Time `json:"lastUsed,omitempty"`
	Active    bool      `json:"active"`
}

// MarkUsed stamps LastUsed with now.
func (p *Profile) MarkUsed(now time.Time) { p.LastUsed = &now }

// ProfileStore persists Profile metadata alongside a Vault, as profiles.json
// in the vault's parent directory.
type ProfileStore struct {
	mu   sync.Mutex
	path string
	data map[string]Profile
}

// NewProfileStore loads (or lazily creates) profiles.json under baseDir.
func NewProfileStore(baseDir string) (*ProfileStore, error) {
	path := filepath.Join(baseDir, "profiles.json")
	ps := &ProfileStore{path: path, data: map[string]Profile{}}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ps, nil
		}
		return nil, apperr.Wrap(apperr.Storage, err)
	}
	if err := json.Unmarshal(raw, &ps.data); err != nil {
		return nil, apperr.Wrap(apperr.Storage, err)
	}
	return ps, nil
}

// Set inserts or overwrites a profile by id.
func (ps *ProfileStore) Set(p Profile) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.data[p.ID] = p
	return ps.save()
}

// Get looks up a profile by id.
func (ps *ProfileStore) Get(id string) (Profile, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	p, ok := ps.data[id]
	return p, ok
}

// Remove deletes a profile by id.
func (ps *ProfileStore) Remove(id string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	delete(ps.data, id)
	return ps.save()
}

// List returns every profile, in no particular order.
func (ps *ProfileStore) List() []Profile {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]Profile, 0, len(ps.data))
	for _, p := range ps.data {
		out = append(out, p)
	}
	return out
}

// ForTarget returns profiles whose Target matches.
func (ps *ProfileStore) ForTarget(target string) []Profile {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	var out []Profile
	for _, p := range ps.data {
		if p.Target == target {
			out = append(out, p)
		}
	}
	return out
}

// ActiveForTarget returns the first active profile for target, if any.
func (ps *ProfileStore) ActiveForTarget(target string) (Profile, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for _, p := range ps.data {
		if p.Target == target && p.Active {
			return p, true
		}
	}
	return Profile{}, false
}

func (ps *ProfileStore) save() error {
	if err := os.MkdirAll(filepath.Dir(ps.path), 0o700); err != nil {
		return apperr.Wrap(apperr.Storage, err)
	}
	raw, err := json.MarshalIndent(ps.data, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.Storage, err)
	}
	if err := os.WriteFile(ps.path, raw, 0o600); err != nil {
		return apperr.Wrap(apperr.Storage, err)
	}
	return nil
}
