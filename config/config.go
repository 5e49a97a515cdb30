// Package config holds the empire's feature-toggle and manual-override
// configuration: a TOML document, loaded once per process, that lets an
// operator turn subsystems on or off without a redeploy.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml"
)

// War controls the WarOperation's three tiers.
type War struct {
	// Enabled turns the whole War operation off; no defense scan, no
	// offense evaluation, no heavy recompute.
	Enabled bool
	// OffenseEnabled gates only the offense-evaluation tier, letting an
	// operator run pure defense without launching new attacks.
	OffenseEnabled bool
	// RaidingEnabled gates Raid mission launches specifically; raiding
	// is the lowest-priority use of spare capacity.
	RaidingEnabled bool
	// ConcurrentAttackBudget overrides the heavy-recompute-derived
	// budget when non-zero.
	ConcurrentAttackBudget int
}

// Empire is the full document. Each field groups one feature area, per
// the host's "one object per feature area" convention.
type Empire struct {
	War War

	// ManualAttack and ManualDefend mirror the flag-based operator
	// interface for operators who prefer editing config over
	// placing flags. ManualAttack rooms are added after the
	// flag-derived attack targets at offense-evaluation time, so a flag
	// for the same room wins on conflict. ManualDefend is not read by
	// any stage.
	ManualAttack []string
	ManualDefend []string
}

// Default returns an Empire with every subsystem enabled and no manual
// overrides, the configuration a fresh colony starts under.
func Default() Empire {
	return Empire{
		War: War{Enabled: true, OffenseEnabled: true, RaidingEnabled: true},
	}
}

// Store loads an Empire from a TOML file and keeps it in memory for
// concurrent read access, reloading it on demand (the operator edits
// the file and calls Reload; there is no filesystem watch, matching
// the host's single-threaded, no-background-work model).
type Store struct {
	mu      sync.RWMutex
	path    string
	current Empire
}

// Load reads path, creating it with Default() contents if it does not
// yet exist.
func Load(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("config: path must not be empty")
	}
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the backing file, replacing the in-memory Empire on
// success. A failed parse leaves the previous Empire untouched.
func (s *Store) Reload() error {
	contents, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.writeDefault()
		}
		return fmt.Errorf("config: read %s: %w", s.path, err)
	}
	var e Empire
	if err := toml.Unmarshal(contents, &e); err != nil {
		return fmt.Errorf("config: decode %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.current = e
	s.mu.Unlock()
	return nil
}

func (s *Store) writeDefault() error {
	e := Default()
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return fmt.Errorf("config: create directory: %w", err)
		}
	}
	encoded, err := toml.Marshal(e)
	if err != nil {
		return fmt.Errorf("config: encode default: %w", err)
	}
	if err := os.WriteFile(s.path, encoded, 0644); err != nil {
		return fmt.Errorf("config: write default: %w", err)
	}
	s.mu.Lock()
	s.current = e
	s.mu.Unlock()
	return nil
}

// Empire returns a snapshot of the current configuration, safe to read
// concurrently with a Reload.
func (s *Store) Empire() Empire {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
