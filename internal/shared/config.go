package shared

import (
	_ "embed"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Signing  SigningConfig  `toml:"signing"`
	Player   PlayerConfig   `toml:"player"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

// SigningConfig contains the streaming authorization service settings.
type SigningConfig struct {
	BaseURL       string   `toml:"base_url"`
	StreamBaseURL string   `toml:"stream_base_url"`
	ClientID      string   `toml:"client_id"`
	ClientSecret  string   `toml:"client_secret"`
	TokenURL      string   `toml:"token_url"`
	Scopes        []string `toml:"scopes"`
	RetryAttempts int      `toml:"retry_attempts"`
	RetryDelayMS  int      `toml:"retry_delay_ms"`
	TimeoutS      int      `toml:"timeout_s"`
}

// PlayerConfig contains playback defaults.
type PlayerConfig struct {
	Volume            int  `toml:"volume"`
	Muted             bool `toml:"muted"`
	Autoplay          bool `toml:"autoplay"`
	RefreshCooldownMS int  `toml:"refresh_cooldown_ms"`
	ResumePositions   bool `toml:"resume_positions"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP control server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// RetryDelay returns the pause between signing attempts.
func (c SigningConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// Timeout returns the HTTP timeout for signing requests.
func (c SigningConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutS) * time.Second
}

// StreamOrigin returns the manifest origin, falling back to the signing base URL.
func (c SigningConfig) StreamOrigin() string {
	if c.StreamBaseURL != "" {
		return c.StreamBaseURL
	}
	return c.BaseURL
}

// RefreshCooldown returns the minimum spacing between token refresh attempts.
func (c PlayerConfig) RefreshCooldown() time.Duration {
	return time.Duration(c.RefreshCooldownMS) * time.Millisecond
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate reports the first invalid setting, wrapped in [ErrInvalidConfig].
func (c *Config) Validate() error {
	switch {
	case c.Signing.BaseURL == "":
		return fmt.Errorf("%w: signing.base_url is required", ErrInvalidConfig)
	case c.Signing.RetryAttempts < 1:
		return fmt.Errorf("%w: signing.retry_attempts must be at least 1", ErrInvalidConfig)
	case c.Signing.ClientID != "" && c.Signing.TokenURL == "":
		return fmt.Errorf("%w: signing.token_url is required with client_id", ErrInvalidConfig)
	case c.Player.Volume < 0 || c.Player.Volume > 100:
		return fmt.Errorf("%w: player.volume must be within 0-100", ErrInvalidConfig)
	case c.Player.RefreshCooldownMS < 0:
		return fmt.Errorf("%w: player.refresh_cooldown_ms must not be negative", ErrInvalidConfig)
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port out of range", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to [DefaultConfig] otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
