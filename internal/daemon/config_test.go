package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nexus-quest/pulse/internal/app/pulse"
	"github.com/nexus-quest/pulse/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("PULSE_HOME", "/tmp/pulse-home")
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 7420 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 7420)
	}
	if cfg.Pulse.Cooldown != "5m0s" || cfg.Pulse.HistoryDays != 30 || cfg.Pulse.ContextEntries != 7 {
		t.Errorf("Pulse = %+v", cfg.Pulse)
	}
	if cfg.Synthesis.Provider != "none" {
		t.Errorf("Synthesis.Provider = %q, want none", cfg.Synthesis.Provider)
	}
	if cfg.Storage.Dir != "/tmp/pulse-home" {
		t.Errorf("Storage.Dir = %q", cfg.Storage.Dir)
	}
}

func TestLoadConfigFrom_Missing(t *testing.T) {
	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadConfigFrom() error: %v", err)
	}
	if cfg.API.Port != 7420 {
		t.Errorf("missing file should yield defaults, got port %d", cfg.API.Port)
	}
}

func TestLoadConfigFrom_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[api]
port = 9000
cors_origins = ["http://localhost:5173"]

[pulse]
cooldown = "90s"
timeout = "bogus"
history_days = 14
timezone = "UTC"

[synthesis]
provider = "openai"
model = "gpt-test"
base_url = "http://localhost:1234"
api_key_env = "PULSE_TEST_OPENAI"
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PULSE_TEST_OPENAI", "sk-123")

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom() error: %v", err)
	}
	if cfg.API.Port != 9000 || cfg.API.Host != "127.0.0.1" {
		t.Errorf("API = %+v", cfg.API)
	}

	ec, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("EngineConfig() error: %v", err)
	}
	if ec.Cooldown != 90*time.Second {
		t.Errorf("Cooldown = %v, want 90s", ec.Cooldown)
	}
	if ec.Timeout != pulse.DefaultTimeout {
		t.Errorf("Timeout = %v, want default for a bad value", ec.Timeout)
	}
	if ec.HistoryDays != 14 || ec.ContextEntries != 7 {
		t.Errorf("history = %d/%d", ec.HistoryDays, ec.ContextEntries)
	}
	if ec.Location.String() != "UTC" {
		t.Errorf("Location = %v", ec.Location)
	}

	pc := cfg.ProviderConfig()
	if pc.Provider != "openai" || pc.APIKey != "sk-123" || pc.BaseURL != "http://localhost:1234" {
		t.Errorf("ProviderConfig() = %+v", pc)
	}
}

func TestLoadConfigFrom_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("[api\nport = "), 0600)
	if _, err := LoadConfigFrom(path); err == nil {
		t.Error("malformed TOML should fail")
	}
}

func TestEngineConfig_BadTimezone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pulse.Timezone = "Mars/Olympus"
	if _, err := cfg.EngineConfig(); err == nil {
		t.Error("unknown timezone should fail")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	t.Setenv("PULSE_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.API.Port = 8181
	cfg.Synthesis.Provider = "gemini"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}
	got, err := LoadConfigFrom(ConfigPath())
	if err != nil {
		t.Fatalf("LoadConfigFrom() error: %v", err)
	}
	if got.API.Port != 8181 || got.Synthesis.Provider != "gemini" {
		t.Errorf("round trip = %+v", got)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"", time.Minute},
		{"2m", 2 * time.Minute},
		{"-5s", time.Minute},
		{"soon", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseDuration(tt.input, time.Minute); got != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ─── State File ─────────────────────────────────────────────────────────────

func TestLoadStateFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "state.json")
	os.WriteFile(good, []byte(`{"player":{"name":"Ari","streak":3},"habits":[{"id":"h","name":"Run","streak":4}]}`), 0600)
	s, err := LoadStateFile(good)
	if err != nil {
		t.Fatalf("LoadStateFile() error: %v", err)
	}
	if s.Player.Name != "Ari" || len(s.Habits) != 1 {
		t.Errorf("state = %+v", s)
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`{"reflections":[{"day":"2024-01-01","energy":11}]}`), 0600)
	if _, err := LoadStateFile(bad); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("error = %v, want ErrInvalidState", err)
	}

	if _, err := LoadStateFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("missing file should fail")
	}
}

// ─── Wiring ─────────────────────────────────────────────────────────────────

func TestNewWithConfig_Wires(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Storage.Dir = dir
	cfg.Logging.File = filepath.Join(dir, "logs", "pulse.log")

	d, err := NewWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig() error: %v", err)
	}
	defer d.Close()

	if d.Provider.Name() != "none" {
		t.Errorf("provider = %s, want none", d.Provider.Name())
	}
	if _, err := os.Stat(filepath.Join(dir, "pulse.db")); err != nil {
		t.Errorf("pulse.db not created: %v", err)
	}
	if _, err := os.Stat(cfg.Logging.File); err != nil {
		t.Errorf("log file not created: %v", err)
	}

	if err := d.State.Apply(domain.State{Habits: []domain.Habit{{ID: "h", Name: "Run", Streak: 5}}}); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if got := d.Pulse.Insights(""); len(got) != 1 {
		t.Errorf("Insights() = %v, want 1", got)
	}
	if d.Health == nil {
		t.Fatal("Health checker not wired")
	}
}

func TestNewWithConfig_UnknownProviderDegrades(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Dir = t.TempDir()
	cfg.Synthesis.Provider = "carrier-pigeon"

	d, err := NewWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig() error: %v", err)
	}
	defer d.Close()
	if d.Provider.Name() != "none" {
		t.Errorf("provider = %s, want none fallback", d.Provider.Name())
	}
}

func TestOpenStore_CacheKeySeenAcrossStores(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Dir = t.TempDir()

	db1, kv1, err := OpenStore(cfg)
	if err != nil {
		t.Fatalf("OpenStore() error: %v", err)
	}
	defer db1.Close()
	db2, kv2, err := OpenStore(cfg)
	if err != nil {
		t.Fatalf("OpenStore() error: %v", err)
	}
	defer db2.Close()

	kv1.Set(pulse.CacheKey, []byte("first"))
	if got, _ := kv2.Get(pulse.CacheKey); string(got) != "first" {
		t.Fatalf("Get() = %q, want first", got)
	}
	kv1.Set(pulse.CacheKey, []byte("second"))
	if got, _ := kv2.Get(pulse.CacheKey); string(got) != "second" {
		t.Errorf("Get() = %q; the cache record must not be served from a stale LRU", got)
	}
}
