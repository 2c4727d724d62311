package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/atinyakov/mecsync/internal/models"
)

// ClientConfig holds the sync client settings.
type ClientConfig struct {
	// Endpoint is the URL of the remote document store.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	// Retries is the total number of attempts per request.
	Retries int `json:"retries" yaml:"retries"`
	// Backoff is the wait before the first retry; it grows by 1.5 each retry.
	Backoff Duration `json:"backoff" yaml:"backoff"`
	// Timeout bounds a single HTTP attempt.
	Timeout Duration `json:"timeout" yaml:"timeout"`
	// CAFile optionally adds a CA bundle for https endpoints.
	CAFile string `json:"ca_file" yaml:"ca_file"`
	// PollInterval is the background refresh period.
	PollInterval Duration `json:"poll_interval" yaml:"poll_interval"`
	// ChannelName names the cross-session notification channel.
	ChannelName string `json:"channel_name" yaml:"channel_name"`
	// ChannelDir is where channel files live; sessions sharing it see each
	// other's notifications.
	ChannelDir string `json:"channel_dir" yaml:"channel_dir"`
	// SnapshotPath persists the last good document for offline fallback.
	// Empty disables it.
	SnapshotPath string `json:"snapshot_path" yaml:"snapshot_path"`
	// LogLevel is the zap level name.
	LogLevel string `json:"log_level" yaml:"log_level"`
	// AppVersion is compared against settings.minAppVersion.
	AppVersion string `json:"app_version" yaml:"app_version"`
	// GatewayPassword is used when the settings carry no gateway password.
	GatewayPassword string `json:"gateway_password" yaml:"gateway_password"`
	// SeedUsers are built-in accounts merged before stored users at login.
	// Entries without a password are ignored.
	SeedUsers []models.User `json:"seed_users" yaml:"seed_users"`
}

const defaultPassword = "123"

// DefaultClient returns the client defaults.
func DefaultClient() ClientConfig {
	return ClientConfig{
		Endpoint:     "http://localhost:8080/",
		Retries:      3,
		Backoff:      Duration(500 * time.Millisecond),
		Timeout:      Duration(30 * time.Second),
		PollInterval: Duration(10 * time.Second),
		ChannelName:  "autoparts_cloud_sync",
		ChannelDir:   filepath.Join(os.TempDir(), "mecsync"),
		LogLevel:     "warn",
		AppVersion:   "1.0.0",

		// Factory credentials; override with MEC_GATEWAY_PASSWORD and
		// MEC_ADMIN_PASSWORD.
		GatewayPassword: defaultPassword,
		SeedUsers: []models.User{{
			ID:         "u0",
			Name:       "SysAdmin (TI)",
			Email:      "admin.ti@mecsystem.com",
			Password:   defaultPassword,
			Role:       models.RoleAdmin,
			Department: "Tecnologia da Informação",
		}},
	}
}

// LoadClient reads the client config from path over the defaults and then
// applies MEC_* environment overrides. An empty path skips the file; a
// missing file is an error.
func LoadClient(path string) (ClientConfig, error) {
	cfg := DefaultClient()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := applyClientEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyClientEnv(cfg *ClientConfig) error {
	if v := os.Getenv("MEC_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("MEC_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MEC_RETRIES: %w", err)
		}
		cfg.Retries = n
	}
	if v := os.Getenv("MEC_BACKOFF"); v != "" {
		if err := cfg.Backoff.Set(v); err != nil {
			return fmt.Errorf("MEC_BACKOFF: %w", err)
		}
	}
	if v := os.Getenv("MEC_POLL_INTERVAL"); v != "" {
		if err := cfg.PollInterval.Set(v); err != nil {
			return fmt.Errorf("MEC_POLL_INTERVAL: %w", err)
		}
	}
	if v := os.Getenv("MEC_CHANNEL_DIR"); v != "" {
		cfg.ChannelDir = v
	}
	if v := os.Getenv("MEC_SNAPSHOT"); v != "" {
		cfg.SnapshotPath = v
	}
	if v := os.Getenv("MEC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MEC_GATEWAY_PASSWORD"); v != "" {
		cfg.GatewayPassword = v
	}
	if v := os.Getenv("MEC_ADMIN_PASSWORD"); v != "" {
		email := os.Getenv("MEC_ADMIN_EMAIL")
		for i := range cfg.SeedUsers {
			if cfg.SeedUsers[i].Role == models.RoleAdmin && (email == "" || cfg.SeedUsers[i].Email == email) {
				cfg.SeedUsers[i].Password = v
				return nil
			}
		}
		if email == "" {
			email = "admin.ti@mecsystem.com"
		}
		cfg.SeedUsers = append(cfg.SeedUsers, models.User{
			ID: "u0", Name: "SysAdmin (TI)", Email: email, Password: v, Role: models.RoleAdmin,
		})
	}
	return nil
}

// Validate rejects settings the client cannot run with.
func (c ClientConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if c.Retries < 1 {
		return fmt.Errorf("retries must be at least 1, got %d", c.Retries)
	}
	if c.Backoff < 0 || c.PollInterval <= 0 {
		return errors.New("backoff and poll interval must be positive")
	}
	return nil
}
