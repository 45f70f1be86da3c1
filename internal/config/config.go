package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/luckcal/food-analyzer/pkg/types"
)

// Backends
const (
	BackendHTTP     = "http"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// EnvConfigPath overrides the default config location
const EnvConfigPath = "FOOD_ANALYZER_CONFIG"

// Config holds the application configuration
type Config struct {
	Client      ClientConfig      `json:"client"`
	Normalizer  NormalizerConfig  `json:"normalizer"`
	Interpreter InterpreterConfig `json:"interpreter"`
	History     HistoryConfig     `json:"history"`
	Log         LogConfig         `json:"log"`
}

// ClientConfig selects and configures the analysis backend
type ClientConfig struct {
	Backend        string `json:"backend"`
	Endpoint       string `json:"endpoint"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	OllamaURL      string `json:"ollama_url"`
	LlamaCppURL    string `json:"llamacpp_url"`
	Model          string `json:"model"`
}

// NormalizerConfig holds image normalization settings
type NormalizerConfig struct {
	MaxDimension    int `json:"max_dimension"`
	Quality         int `json:"quality"`
	MaxSourcePixels int `json:"max_source_pixels"`
}

// InterpreterConfig holds per-dish nutrient reference limits
type InterpreterConfig struct {
	Limits map[string]float64 `json:"limits"`
}

// HistoryConfig configures the attempt journal. An empty path disables it.
type HistoryConfig struct {
	Path string `json:"path"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Debug bool `json:"debug"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			Backend:        BackendHTTP,
			Endpoint:       "https://luck-cal-backend-3.onrender.com",
			TimeoutSeconds: 35,
			OllamaURL:      "http://localhost:11434",
			LlamaCppURL:    "http://localhost:8080",
			Model:          "llava:13b",
		},
		Normalizer: NormalizerConfig{
			MaxDimension:    640,
			Quality:         85,
			MaxSourcePixels: 250_000_000,
		},
		Interpreter: InterpreterConfig{
			Limits: map[string]float64{
				string(types.NutrientSodium): 1000,
			},
		},
	}
}

// Timeout returns the client timeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Client.TimeoutSeconds) * time.Second
}

// NutrientLimits converts the limits table to typed keys
func (c *Config) NutrientLimits() map[types.Nutrient]float64 {
	out := make(map[types.Nutrient]float64, len(c.Interpreter.Limits))
	for k, v := range c.Interpreter.Limits {
		out[types.Nutrient(k)] = v
	}
	return out
}

// LoadFromFile loads configuration from a JSON file. Fields missing from
// the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads the file at path if it exists and falls back to defaults otherwise
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return LoadFromFile(path)
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Client.Backend {
	case BackendHTTP:
		if c.Client.Endpoint == "" {
			return fmt.Errorf("client.endpoint is required for the http backend")
		}
	case BackendOllama:
		if c.Client.OllamaURL == "" {
			return fmt.Errorf("client.ollama_url is required for the ollama backend")
		}
	case BackendLlamaCpp:
		if c.Client.LlamaCppURL == "" {
			return fmt.Errorf("client.llamacpp_url is required for the llamacpp backend")
		}
	default:
		return fmt.Errorf("client.backend must be one of %q, %q, %q; got %q",
			BackendHTTP, BackendOllama, BackendLlamaCpp, c.Client.Backend)
	}

	if c.Client.TimeoutSeconds < 1 {
		return fmt.Errorf("client.timeout_seconds must be positive")
	}

	if c.Normalizer.MaxDimension < 1 {
		return fmt.Errorf("normalizer.max_dimension must be positive")
	}

	if c.Normalizer.Quality < 1 || c.Normalizer.Quality > 100 {
		return fmt.Errorf("normalizer.quality must be between 1 and 100")
	}

	if c.Normalizer.MaxSourcePixels < 1 {
		return fmt.Errorf("normalizer.max_source_pixels must be positive")
	}

	for name, limit := range c.Interpreter.Limits {
		if _, ok := (types.Nutrition{}).Value(types.Nutrient(name)); !ok {
			return fmt.Errorf("interpreter.limits: unknown nutrient %q", name)
		}
		if limit <= 0 {
			return fmt.Errorf("interpreter.limits.%s must be positive", name)
		}
	}

	return nil
}

// GetConfigPath returns the configuration file path
func GetConfigPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "food-analyzer", "config.json")
}
