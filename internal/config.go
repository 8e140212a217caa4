package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type EmbeddingsConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
}

type VaultConfig struct {
	Path       string        `yaml:"path,omitempty"`
	APIBaseURL string        `yaml:"api_base_url,omitempty"`
	APIToken   string        `yaml:"api_token,omitempty"`
	APITimeout time.Duration `yaml:"api_timeout,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
}

type Config struct {
	Embeddings      EmbeddingsConfig          `yaml:"embeddings"`
	Retrieval       RetrievalOptions          `yaml:"retrieval"`
	Vault           VaultConfig               `yaml:"vault"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Embeddings: EmbeddingsConfig{
			BaseURL:   "http://localhost:11434",
			Model:     "nomic-embed-text",
			Dimension: 768,
			Timeout:   10 * time.Second,
		},
		Retrieval: DefaultRetrievalOptions(),
		Providers: make(map[string]ProviderConfig),
	}
}

// DataDir is where the journal, vector index, shadow copies and config
// live. MNEMO_HOME overrides the default under the home directory.
func DataDir() string {
	if dir := os.Getenv("MNEMO_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mnemo")
}

func ConfigPath(dataDir string) string  { return filepath.Join(dataDir, "config.yaml") }
func JournalPath(dataDir string) string { return filepath.Join(dataDir, "journal") }
func VectorPath(dataDir string) string  { return filepath.Join(dataDir, "vectors") }
func ShadowPath(dataDir string) string  { return filepath.Join(dataDir, "shadow") }

func LoadConfig(dataDir string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(dataDir))
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	return cfg, nil
}

func SaveConfig(dataDir string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(ConfigPath(dataDir), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
