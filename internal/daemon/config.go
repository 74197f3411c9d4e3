// Package daemon manages the Nexus Pulse daemon lifecycle and configuration.
package daemon

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/nexus-quest/pulse/internal/app/pulse"
	"github.com/nexus-quest/pulse/internal/domain"
	"github.com/nexus-quest/pulse/internal/infra/kvcache"
	"github.com/nexus-quest/pulse/internal/infra/synth"
)

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Pulse     PulseConfig     `toml:"pulse"`
	Synthesis SynthesisConfig `toml:"synthesis"`
	Storage   StorageConfig   `toml:"storage"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// PulseConfig tunes the insight engine and synthesis orchestration.
type PulseConfig struct {
	Cooldown       string `toml:"cooldown"` // Go duration, e.g. "5m"
	Timeout        string `toml:"timeout"`
	HistoryDays    int    `toml:"history_days"`
	ContextEntries int    `toml:"context_entries"`
	Timezone       string `toml:"timezone"`   // IANA name; "" or "Local" = system zone
	StateFile      string `toml:"state_file"` // optional JSON seed for the player state
}

// SynthesisConfig selects the external synthesis provider.
type SynthesisConfig struct {
	Provider  string `toml:"provider"` // gemini | openai | none
	Model     string `toml:"model"`
	BaseURL   string `toml:"base_url"`
	APIKeyEnv string `toml:"api_key_env"`
}

// StorageConfig controls where Pulse keeps its cache and history.
type StorageConfig struct {
	Dir          string `toml:"dir"`
	CacheEntries int    `toml:"cache_entries"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	File string `toml:"file"` // "" = stderr only
}

// TelemetryConfig controls observability features.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := pulseHome()
	return Config{
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        7420,
			CORSOrigins: []string{"*"},
		},
		Pulse: PulseConfig{
			Cooldown:       pulse.DefaultCooldown.String(),
			Timeout:        pulse.DefaultTimeout.String(),
			HistoryDays:    pulse.DefaultHistoryDays,
			ContextEntries: pulse.DefaultContextEntries,
			Timezone:       "Local",
		},
		Synthesis: SynthesisConfig{
			Provider: synth.ProviderNone,
		},
		Storage: StorageConfig{
			Dir:          homeDir,
			CacheEntries: kvcache.DefaultEntries,
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// LoadConfig reads config from $PULSE_HOME/config.toml, falling back to
// defaults. A .env in the working directory or in $PULSE_HOME is loaded
// first so provider keys can live there.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Load(filepath.Join(pulseHome(), ".env"))
	return LoadConfigFrom(ConfigPath())
}

// LoadConfigFrom reads the TOML file at path over the defaults. A missing
// file yields the defaults.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet, use defaults
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to $PULSE_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// ConfigPath returns the config file location.
func ConfigPath() string {
	return filepath.Join(pulseHome(), "config.toml")
}

// EngineConfig converts the [pulse] section into engine settings. Bad
// durations fall back to the defaults; a bad timezone is an error.
func (c Config) EngineConfig() (pulse.Config, error) {
	loc, err := loadLocation(c.Pulse.Timezone)
	if err != nil {
		return pulse.Config{}, err
	}
	return pulse.Config{
		Cooldown:       parseDuration(c.Pulse.Cooldown, pulse.DefaultCooldown),
		Timeout:        parseDuration(c.Pulse.Timeout, pulse.DefaultTimeout),
		HistoryDays:    c.Pulse.HistoryDays,
		ContextEntries: c.Pulse.ContextEntries,
		Location:       loc,
	}, nil
}

// ProviderConfig resolves the [synthesis] section, reading the API key from
// the environment.
func (c Config) ProviderConfig() synth.Config {
	return synth.Config{
		Provider: c.Synthesis.Provider,
		Model:    c.Synthesis.Model,
		BaseURL:  c.Synthesis.BaseURL,
		APIKey:   synth.APIKeyFromEnv(c.Synthesis.Provider, c.Synthesis.APIKeyEnv),
	}
}

// LoadStateFile reads a JSON player-state aggregate and validates it.
func LoadStateFile(path string) (domain.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.State{}, fmt.Errorf("read state: %w", err)
	}
	var s domain.State
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.State{}, fmt.Errorf("parse state %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return domain.State{}, err
	}
	return s, nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", name, err)
	}
	return loc, nil
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		log.Printf("[daemon] invalid duration %q, using %s", s, fallback)
		return fallback
	}
	return d
}

// pulseHome returns the Nexus Pulse data directory.
func pulseHome() string {
	if env := os.Getenv("PULSE_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".nexus-pulse")
}

// PulseHome is exported for use by other packages.
func PulseHome() string {
	return pulseHome()
}
