package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. CVSCREENER_PORT
const EnvPrefix = "CVSCREENER"

// Storage backends
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Scoring providers
const (
	ProviderReference = "reference"
	ProviderVertex    = "vertex"
	ProviderGemini    = "gemini"
)

// Config holds application configuration
type Config struct {
	Port                  int           `json:"port" mapstructure:"port"`
	StorageBackend        string        `json:"storage_backend" mapstructure:"storage_backend"`
	DataDir               string        `json:"data_dir" mapstructure:"data_dir"`
	RedisAddr             string        `json:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword         string        `json:"redis_password,omitempty" mapstructure:"redis_password"`
	RedisDB               int           `json:"redis_db" mapstructure:"redis_db"`
	DatabaseURL           string        `json:"database_url,omitempty" mapstructure:"database_url"`
	LLMProvider           string        `json:"llm_provider" mapstructure:"llm_provider"`
	GoogleCloudProject    string        `json:"google_cloud_project" mapstructure:"google_cloud_project"`
	GoogleCloudLocation   string        `json:"google_cloud_location" mapstructure:"google_cloud_location"`
	GoogleCredentialsPath string        `json:"google_credentials_path" mapstructure:"google_credentials_path"`
	VertexModel           string        `json:"vertex_model" mapstructure:"vertex_model"`
	GeminiAPIKey          string        `json:"gemini_api_key,omitempty" mapstructure:"gemini_api_key"`
	GeminiModel           string        `json:"gemini_model" mapstructure:"gemini_model"`
	MaxUploadMB           int           `json:"max_upload_mb" mapstructure:"max_upload_mb"`
	NotificationTTL       time.Duration `json:"notification_ttl" mapstructure:"notification_ttl"`
	ReferenceSeed         uint64        `json:"reference_seed" mapstructure:"reference_seed"`
	GmailCredentialsPath  string        `json:"gmail_credentials_path" mapstructure:"gmail_credentials_path"`
	GmailTokenPath        string        `json:"gmail_token_path" mapstructure:"gmail_token_path"`
}

// DefaultConfig returns a new config with default values
func DefaultConfig() *Config {
	return &Config{
		Port:                 8080,
		StorageBackend:       StorageFile,
		DataDir:              "data",
		RedisAddr:            "localhost:6379",
		LLMProvider:          ProviderReference,
		GoogleCloudLocation:  "us-central1",
		VertexModel:          "gemini-1.5-flash",
		GeminiModel:          "gemini-2.5-flash",
		MaxUploadMB:          20,
		NotificationTTL:      3 * time.Second,
		GmailCredentialsPath: "credentials.json",
		GmailTokenPath:       "token.json",
	}
}

// MaxUploadBytes is the per-file size limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// GetConfigPath returns the path to the configuration file
// On Windows: %APPDATA%/CandidateScreener/config.json
// On Unix: ~/.config/CandidateScreener/config.json
func GetConfigPath() (string, error) {
	var configDir string

	if os.Getenv("APPDATA") != "" {
		configDir = filepath.Join(os.Getenv("APPDATA"), "CandidateScreener")
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "CandidateScreener")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Load reads the default config file if it exists, then applies
// CVSCREENER_* environment overrides.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		configPath = ""
	}

	return LoadFrom(configPath)
}

// LoadFrom loads configuration from a specific path. An empty path skips the
// file and uses defaults plus environment. Format follows the extension
// (json, yaml, toml).
func LoadFrom(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	// defaults register every key so env-only values reach Unmarshal
	d := DefaultConfig()
	v.SetDefault("port", d.Port)
	v.SetDefault("storage_backend", d.StorageBackend)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("redis_addr", d.RedisAddr)
	v.SetDefault("redis_password", d.RedisPassword)
	v.SetDefault("redis_db", d.RedisDB)
	v.SetDefault("database_url", d.DatabaseURL)
	v.SetDefault("llm_provider", d.LLMProvider)
	v.SetDefault("google_cloud_project", d.GoogleCloudProject)
	v.SetDefault("google_cloud_location", d.GoogleCloudLocation)
	v.SetDefault("google_credentials_path", d.GoogleCredentialsPath)
	v.SetDefault("vertex_model", d.VertexModel)
	v.SetDefault("gemini_api_key", d.GeminiAPIKey)
	v.SetDefault("gemini_model", d.GeminiModel)
	v.SetDefault("max_upload_mb", d.MaxUploadMB)
	v.SetDefault("notification_ttl", d.NotificationTTL)
	v.SetDefault("reference_seed", d.ReferenceSeed)
	v.SetDefault("gmail_credentials_path", d.GmailCredentialsPath)
	v.SetDefault("gmail_token_path", d.GmailTokenPath)
	return v
}

// Save saves the configuration to the default config path
func (c *Config) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	return c.SaveTo(configPath)
}

// SaveTo saves the configuration to a specific path as JSON
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive")
	}

	if c.NotificationTTL < 0 {
		return fmt.Errorf("notification_ttl must not be negative")
	}

	switch c.StorageBackend {
	case StorageMemory:
	case StorageFile:
		if c.DataDir == "" {
			return fmt.Errorf("data_dir is required for the file backend")
		}
	case StorageRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis backend")
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage_backend %q", c.StorageBackend)
	}

	switch c.LLMProvider {
	case ProviderReference:
	case ProviderVertex:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("google_cloud_project is required")
		}
		if c.GoogleCloudLocation == "" {
			return fmt.Errorf("google_cloud_location is required")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("gemini_api_key is required")
		}
	default:
		return fmt.Errorf("unknown llm_provider %q", c.LLMProvider)
	}

	if c.GoogleCredentialsPath != "" {
		if _, err := os.Stat(c.GoogleCredentialsPath); err != nil {
			return fmt.Errorf("google credentials file not found: %w", err)
		}
	}

	return nil
}

// ApplyToEnv applies configuration values to environment variables read by
// the Google client libraries.
func (c *Config) ApplyToEnv() {
	if c.GoogleCloudProject != "" {
		os.Setenv("GOOGLE_CLOUD_PROJECT", c.GoogleCloudProject)
	}
	if c.GoogleCloudLocation != "" {
		os.Setenv("GOOGLE_CLOUD_LOCATION", c.GoogleCloudLocation)
	}
	if c.GoogleCredentialsPath != "" {
		os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", c.GoogleCredentialsPath)
	}
}
