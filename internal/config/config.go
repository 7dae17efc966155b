package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the global ~/.wachat/config.toml.
type Config struct {
	DefaultSession string   `toml:"default_session"`
	Server         Server   `toml:"server"`
	Hub            Hub      `toml:"hub"`
	Identity       Identity `toml:"identity"`
	Client         Client   `toml:"client"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Hub configures the broadcast hub.
type Hub struct {
	IdleTimeout    Duration `toml:"idle_timeout"`
	SweepInterval  Duration `toml:"sweep_interval"`
	MaxMessageSize int64    `toml:"max_message_size"`
	SendBuffer     int      `toml:"send_buffer"`
}

// Identity names the local business account.
type Identity struct {
	BusinessNumber string `toml:"business_number"`
	DisplayName    string `toml:"display_name"`
}

// Client configures the terminal client's transport.
type Client struct {
	ServerURL   string   `toml:"server_url"`
	BaseDelay   Duration `toml:"reconnect_base_delay"`
	MaxAttempts int      `toml:"reconnect_max_attempts"`
}

// Duration is a time.Duration that reads and writes as a TOML string ("30m").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:           "127.0.0.1:5000",
			AllowedOrigins: []string{"*"},
		},
		Hub: Hub{
			IdleTimeout:    Duration{30 * time.Minute},
			SweepInterval:  Duration{5 * time.Minute},
			MaxMessageSize: 64 * 1024,
			SendBuffer:     256,
		},
		Identity: Identity{
			BusinessNumber: "918329446654",
			DisplayName:    "Business",
		},
		Client: Client{
			ServerURL:   "http://127.0.0.1:5000",
			BaseDelay:   Duration{time.Second},
			MaxAttempts: 5,
		},
	}
}

// Load reads config from the given path on top of the defaults.
// Returns error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the process environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// ApplyEnv overrides fields from WACHAT_* variables using lookup
// (normally os.LookupEnv).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *Duration) error {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			dst.Duration = d
		}
		return nil
	}

	str("WACHAT_SESSION", &c.DefaultSession)
	str("WACHAT_ADDR", &c.Server.Addr)
	str("WACHAT_BUSINESS_NUMBER", &c.Identity.BusinessNumber)
	str("WACHAT_SERVER_URL", &c.Client.ServerURL)
	if v, ok := lookup("WACHAT_ALLOWED_ORIGINS"); ok && v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.AllowedOrigins = origins
	}
	if err := dur("WACHAT_IDLE_TIMEOUT", &c.Hub.IdleTimeout); err != nil {
		return err
	}
	if err := dur("WACHAT_SWEEP_INTERVAL", &c.Hub.SweepInterval); err != nil {
		return err
	}
	if err := dur("WACHAT_RECONNECT_BASE_DELAY", &c.Client.BaseDelay); err != nil {
		return err
	}
	if v, ok := lookup("WACHAT_RECONNECT_MAX_ATTEMPTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WACHAT_RECONNECT_MAX_ATTEMPTS: %w", err)
		}
		c.Client.MaxAttempts = n
	}
	return nil
}
