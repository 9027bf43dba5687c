package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func resetFlags() {
	configFile = ""
	gameName = ""
	dataPath = ""
	extraDataPaths = nil
	activePlugins = nil
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v, want nil", err)
	}
	if cfg.Game != "skyrimse" {
		t.Errorf("Game = %q, want skyrimse", cfg.Game)
	}
	if cfg.DataPath != "." {
		t.Errorf("DataPath = %q, want .", cfg.DataPath)
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "game: oblivion\ndata_path: /somewhere\nactive_plugins:\n  - A.esp\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	configFile = path
	gameName = "morrowind"

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v, want nil", err)
	}
	if cfg.Game != "morrowind" {
		t.Errorf("Game = %q, want the flag value morrowind", cfg.Game)
	}
	if cfg.DataPath != "/somewhere" {
		t.Errorf("DataPath = %q, want the file value /somewhere", cfg.DataPath)
	}
	if len(cfg.ActivePlugins) != 1 || cfg.ActivePlugins[0] != "A.esp" {
		t.Errorf("ActivePlugins = %v, want [A.esp]", cfg.ActivePlugins)
	}
}

func TestNewState_GameNames(t *testing.T) {
	for name, want := range gameNames {
		cfg := &Config{Game: name, DataPath: "."}
		s, err := newState(cfg)
		if err != nil {
			t.Fatalf("newState(%q) error = %v, want nil", name, err)
		}
		if s.Game() != want {
			t.Errorf("newState(%q).Game() = %v, want %v", name, s.Game(), want)
		}
	}

	if _, err := newState(&Config{Game: "minecraft"}); err == nil {
		t.Errorf("newState(minecraft) error = nil, want unknown game error")
	}
}
