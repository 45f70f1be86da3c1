package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/luckcal/food-analyzer/pkg/types"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if cfg.Timeout() != 35*time.Second {
		t.Errorf("Expected 35s timeout, got %s", cfg.Timeout())
	}
	if cfg.NutrientLimits()[types.NutrientSodium] != 1000 {
		t.Error("Expected default sodium limit")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Client.Backend = "grpc" }},
		{"missing endpoint", func(c *Config) { c.Client.Endpoint = "" }},
		{"missing ollama url", func(c *Config) { c.Client.Backend = BackendOllama; c.Client.OllamaURL = "" }},
		{"missing llamacpp url", func(c *Config) { c.Client.Backend = BackendLlamaCpp; c.Client.LlamaCppURL = "" }},
		{"zero timeout", func(c *Config) { c.Client.TimeoutSeconds = 0 }},
		{"zero dimension", func(c *Config) { c.Normalizer.MaxDimension = 0 }},
		{"quality too high", func(c *Config) { c.Normalizer.Quality = 101 }},
		{"zero pixels", func(c *Config) { c.Normalizer.MaxSourcePixels = 0 }},
		{"unknown nutrient", func(c *Config) { c.Interpreter.Limits["salt"] = 5 }},
		{"negative limit", func(c *Config) { c.Interpreter.Limits["sugar"] = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Client.Backend = BackendOllama
	cfg.Interpreter.Limits["sugar"] = 25
	cfg.History.Path = "/tmp/history.db"
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Client.Backend != BackendOllama || loaded.History.Path != "/tmp/history.db" {
		t.Errorf("Unexpected loaded config %+v", loaded)
	}
	if loaded.Interpreter.Limits["sugar"] != 25 {
		t.Error("Sugar limit not persisted")
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"client": {"timeout_seconds": 10}}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Client.TimeoutSeconds != 10 {
		t.Errorf("Expected timeout 10, got %d", cfg.Client.TimeoutSeconds)
	}
	if cfg.Client.Backend != BackendHTTP || cfg.Normalizer.MaxDimension != 640 {
		t.Error("Missing fields should keep defaults")
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Client.Backend != BackendHTTP {
		t.Error("Expected defaults for missing file")
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("LoadFromFile should fail for a missing file")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte("{not json"), 0644)
	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestGetConfigPathFromEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/food.json")
	if got := GetConfigPath(); got != "/etc/food.json" {
		t.Errorf("Expected env path, got %q", got)
	}
}
