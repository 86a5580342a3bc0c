package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"chatctx/internal/logging"
)

// Pipeline defaults. They match the package-level defaults in contextprofile.
const (
	DefaultMaxTokens           = 2000
	DefaultMaxMessages         = 12
	DefaultTightMaxMessages    = 8
	DefaultFallbackTail        = 3
	DefaultSimilarityThreshold = 0.7
	DefaultMinKeywordLength    = 4
	DefaultUserLabel           = "Client"
	DefaultAssistantLabel      = "Assistant"
)

// Config captures the tunable runtime settings for the optimizer and its CLI.
type Config struct {
	ContextProfile       string  `yaml:"context_profile"`
	MaxTokens            int     `yaml:"max_tokens"`
	MaxMessages          int     `yaml:"max_messages"`
	TightMaxMessages     int     `yaml:"tight_max_messages"`
	FallbackTail         int     `yaml:"fallback_tail"`
	SimilarityThreshold  float64 `yaml:"similarity_threshold"`
	MinKeywordLength     int     `yaml:"min_keyword_length"`
	UserLabel            string  `yaml:"user_label"`
	AssistantLabel       string  `yaml:"assistant_label"`
	Provider             string  `yaml:"provider"`
	Model                string  `yaml:"model"`
	ContextBudgetPercent float64 `yaml:"context_budget_percent"`
	SystemPrompt         string  `yaml:"system_prompt"`
	EventStorePath       string  `yaml:"event_store_path"`
	HistoryPath          string  `yaml:"history_path"`
	LogPath              string  `yaml:"log_path"`
	LogMaxSizeMB         int     `yaml:"log_max_size_mb"`
	LogMaxBackups        int     `yaml:"log_max_backups"`
	LogJSON              bool    `yaml:"log_json"`
}

// Default returns a config with every default applied.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

// EnsureDefaultConfig writes config.yaml with defaults if it doesn't exist yet.
func EnsureDefaultConfig() error {
	configPath := ConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return Save(Default())
}

// LoadUserConfig loads configuration from ~/.chatctx/config.yaml.
// CHATCTX_CONFIG_PATH overrides the location. A missing file yields defaults.
func LoadUserConfig() (Config, error) {
	configPath := ConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(configPath)
}

// Load reads the YAML configuration from disk and injects defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyDefaults fills in optional values to keep the YAML file concise.
func (c *Config) applyDefaults() {
	if c.ContextProfile == "" {
		c.ContextProfile = "relevance"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.MaxMessages == 0 {
		c.MaxMessages = DefaultMaxMessages
	}
	if c.TightMaxMessages == 0 {
		c.TightMaxMessages = DefaultTightMaxMessages
	}
	if c.FallbackTail == 0 {
		c.FallbackTail = DefaultFallbackTail
	}
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if c.MinKeywordLength == 0 {
		c.MinKeywordLength = DefaultMinKeywordLength
	}
	if strings.TrimSpace(c.UserLabel) == "" {
		c.UserLabel = DefaultUserLabel
	}
	if strings.TrimSpace(c.AssistantLabel) == "" {
		c.AssistantLabel = DefaultAssistantLabel
	}
	if c.EventStorePath == "" {
		c.EventStorePath = filepath.Join(GetConfigDir(), "events.db")
	}
	if c.HistoryPath == "" {
		c.HistoryPath = filepath.Join(GetConfigDir(), ".history")
	}
	if c.LogPath == "" {
		c.LogPath = filepath.Join(GetConfigDir(), "chatctx.log")
	}
	if c.LogMaxSizeMB <= 0 {
		c.LogMaxSizeMB = 10
	}
	if c.LogMaxBackups <= 0 {
		c.LogMaxBackups = 3
	}
}

// Validate rejects settings the pipeline cannot honor.
func (c Config) Validate() error {
	if c.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be >= 1 (got %d)", c.MaxTokens)
	}
	if c.MaxMessages < 1 {
		return fmt.Errorf("max_messages must be >= 1 (got %d)", c.MaxMessages)
	}
	if c.TightMaxMessages < 1 || c.TightMaxMessages > c.MaxMessages {
		return fmt.Errorf("tight_max_messages must be between 1 and max_messages (%d), got %d", c.MaxMessages, c.TightMaxMessages)
	}
	if c.FallbackTail < 1 {
		return fmt.Errorf("fallback_tail must be >= 1 (got %d)", c.FallbackTail)
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in (0, 1] (got %f)", c.SimilarityThreshold)
	}
	if c.MinKeywordLength < 1 {
		return fmt.Errorf("min_keyword_length must be >= 1 (got %d)", c.MinKeywordLength)
	}
	if c.ContextBudgetPercent < 0 || c.ContextBudgetPercent > 0.80 {
		return fmt.Errorf("context_budget_percent must be between 0 and 0.80 (0-80%%)")
	}
	switch strings.ToLower(c.ContextProfile) {
	case "default", "relevance":
	default:
		return fmt.Errorf("unknown context_profile %q", c.ContextProfile)
	}
	return nil
}

// TokenBudget returns the token budget for the formatted history. When
// context_budget_percent is set and a model is configured, the budget is that share of
// the model's context window; otherwise max_tokens applies.
func (c Config) TokenBudget() int {
	if c.ContextBudgetPercent > 0 && strings.TrimSpace(c.Model) != "" {
		if !KnownModel(c.Provider, c.Model) {
			logging.UserLog("model %s/%s has no known context window; assuming %d tokens", c.Provider, c.Model, DefaultContextLength)
		}
		budget := int(float64(GetModelContextLength(c.Provider, c.Model)) * c.ContextBudgetPercent)
		if budget > 0 {
			return budget
		}
	}
	if c.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return c.MaxTokens
}

// GetConfigDir returns CHATCTX_CONFIG_DIR or ~/.chatctx.
func GetConfigDir() string {
	if configDir := os.Getenv("CHATCTX_CONFIG_DIR"); configDir != "" {
		return configDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatctx"
	}
	return filepath.Join(home, ".chatctx")
}

// ConfigPath returns the location of the user config file.
func ConfigPath() string {
	if p := os.Getenv("CHATCTX_CONFIG_PATH"); p != "" {
		return p
	}
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Save writes the config to the user's config file.
func Save(c Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(ConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
