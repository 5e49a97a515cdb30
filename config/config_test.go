package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empire.toml")
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	e := s.Empire()
	if !e.War.Enabled || !e.War.OffenseEnabled || !e.War.RaidingEnabled {
		t.Fatalf("default empire should enable every war tier, got %+v", e.War)
	}
}

func TestReloadPicksUpEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empire.toml")
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	edited := Empire{War: War{Enabled: true, OffenseEnabled: false, RaidingEnabled: false, ConcurrentAttackBudget: 3}}
	data, err := toml.Marshal(edited)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(); err != nil {
		t.Fatal(err)
	}
	got := s.Empire()
	if got.War.OffenseEnabled {
		t.Fatal("expected OffenseEnabled=false after reload")
	}
	if got.War.ConcurrentAttackBudget != 3 {
		t.Fatalf("ConcurrentAttackBudget = %d, want 3", got.War.ConcurrentAttackBudget)
	}
}
