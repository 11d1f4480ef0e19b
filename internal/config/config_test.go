package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Tree.ID != 1 || cfg.Tree.KeepYears != 2 {
		t.Errorf("Tree = %+v, want id 1 and keep_years 2", cfg.Tree)
	}
	if cfg.Tree.BookkeepingType != "rolf" {
		t.Errorf("BookkeepingType = %q, want rolf", cfg.Tree.BookkeepingType)
	}
	if got := cfg.ListenAddr(); got != "127.0.0.1:37780" {
		t.Errorf("ListenAddr = %q", got)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grove.toml")
	content := `
[tree]
id = 7
main_category_id = 120
archive_category_id = 340
keep_years = 3

[log]
format = "json"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tree.ID != 7 || cfg.Tree.MainCategoryID != 120 || cfg.Tree.ArchiveCategoryID != 340 {
		t.Errorf("Tree = %+v", cfg.Tree)
	}
	if cfg.Tree.KeepYears != 3 {
		t.Errorf("KeepYears = %d, want 3", cfg.Tree.KeepYears)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Errorf("Log = %+v, want json at default level", cfg.Log)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GROVE_TREE_ARCHIVE_CATEGORY_ID", "99")
	t.Setenv("GROVE_SERVER_PORT", "9090")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tree.ArchiveCategoryID != 99 {
		t.Errorf("ArchiveCategoryID = %d, want 99", cfg.Tree.ArchiveCategoryID)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, "Driver"},
		{"postgres needs url", func(c *Config) { c.Database.Driver = DriverPostgres }, "URL"},
		{"postgres with url", func(c *Config) {
			c.Database.Driver = DriverPostgres
			c.Database.URL = "postgres://localhost/grove"
		}, ""},
		{"zero tree", func(c *Config) { c.Tree.ID = 0 }, "ID"},
		{"negative keep", func(c *Config) { c.Tree.KeepYears = -1 }, "KeepYears"},
		{"port range", func(c *Config) { c.Server.Port = 70000 }, "Port"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "Format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate: want error mentioning %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
