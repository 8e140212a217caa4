package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFileDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Embeddings.Model != "nomic-embed-text" || cfg.Embeddings.Dimension != 768 {
		t.Errorf("embeddings defaults: %+v", cfg.Embeddings)
	}
	if cfg.Retrieval.SemanticWeight != 0.6 || cfg.Retrieval.ImportanceWeight != 0.25 {
		t.Errorf("retrieval defaults: %+v", cfg.Retrieval)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Vault.Path = "/vault"
	cfg.Retrieval.RecencyHalfLife = 48 * time.Hour
	cfg.Providers["openai"] = ProviderConfig{Model: "gpt-4o-mini", APIKey: "k"}
	cfg.DefaultProvider = "openai"

	if err := SaveConfig(dir, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Vault.Path != "/vault" {
		t.Errorf("vault path = %q", loaded.Vault.Path)
	}
	if loaded.Retrieval.RecencyHalfLife != 48*time.Hour {
		t.Errorf("half life = %v", loaded.Retrieval.RecencyHalfLife)
	}
	if loaded.Providers["openai"].Model != "gpt-4o-mini" {
		t.Errorf("provider = %+v", loaded.Providers["openai"])
	}
	if loaded.DefaultProvider != "openai" {
		t.Errorf("default provider = %q", loaded.DefaultProvider)
	}
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	partial := "vault:\n  path: /notes\n"
	if err := os.WriteFile(ConfigPath(dir), []byte(partial), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Vault.Path != "/notes" {
		t.Errorf("vault path = %q", cfg.Vault.Path)
	}
	if cfg.Embeddings.BaseURL != "http://localhost:11434" {
		t.Errorf("embeddings base url lost: %q", cfg.Embeddings.BaseURL)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(ConfigPath(dir), []byte("::: not yaml"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadConfig(dir); err == nil {
		t.Error("expected parse error")
	}
}

func TestDataDirEnvOverride(t *testing.T) {
	t.Setenv("MNEMO_HOME", "/custom/mnemo")
	if got := DataDir(); got != "/custom/mnemo" {
		t.Errorf("DataDir = %q", got)
	}
}

func TestDataPathLayout(t *testing.T) {
	dir := t.TempDir()
	if got := JournalPath(dir); got != filepath.Join(dir, "journal") {
		t.Errorf("JournalPath = %q", got)
	}
	if got := VectorPath(dir); got != filepath.Join(dir, "vectors") {
		t.Errorf("VectorPath = %q", got)
	}
	if got := ShadowPath(dir); got != filepath.Join(dir, "shadow") {
		t.Errorf("ShadowPath = %q", got)
	}
}
