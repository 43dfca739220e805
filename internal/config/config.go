// Package config loads client settings. Precedence, lowest first: defaults, the YAML
// config file, TASKKEEPER_* environment variables (a .env file fills in the ones not
// already set), flags bound by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/and161185/taskkeeper/internal/credstore"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "TASKKEEPER"

// Backends.
const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
)

// Config holds client settings.
type Config struct {
	APIKey         string `mapstructure:"api_key"`
	ProjectID      string `mapstructure:"project_id"`
	Database       string `mapstructure:"database"`
	IdentityURL    string `mapstructure:"identity_url"`
	SecureTokenURL string `mapstructure:"securetoken_url"`
	FirestoreURL   string `mapstructure:"firestore_url"`

	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`

	CredDir        string `mapstructure:"cred_dir"`
	CredPassphrase string `mapstructure:"cred_passphrase"`

	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	HandleTTL     time.Duration `mapstructure:"handle_ttl"`

	Timeout         time.Duration `mapstructure:"timeout"`
	LogLevel        string        `mapstructure:"log_level"`
	MetricsTextfile string        `mapstructure:"metrics_textfile"`
}

// SetDefaults registers every key with its default so env lookups and Unmarshal see it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_key", "")
	v.SetDefault("project_id", "")
	v.SetDefault("database", "(default)")
	v.SetDefault("identity_url", "https://identitytoolkit.googleapis.com/v1")
	v.SetDefault("securetoken_url", "https://securetoken.googleapis.com/v1")
	v.SetDefault("firestore_url", "https://firestore.googleapis.com/v1")
	v.SetDefault("backend", BackendFirestore)
	v.SetDefault("dsn", "")
	v.SetDefault("cred_dir", credstore.DefaultDir())
	v.SetDefault("cred_passphrase", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("handle_ttl", 24*time.Hour)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("log_level", "warn")
	v.SetDefault("metrics_textfile", "")
}

// DefaultPath returns the config file looked up when none is given.
func DefaultPath() string { return filepath.Join(credstore.DefaultDir(), "config.yaml") }

// Load reads configuration into v and returns it. path may be empty, in which case the
// default config file is read if it exists. dotenv files default to ".env"; a missing one
// is not an error.
func Load(v *viper.Viper, path string, dotenv ...string) (Config, error) {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, f := range dotenv {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && (explicit || !errors.Is(err, os.ErrNotExist)) {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings needed by the selected task backend.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendFirestore:
		if c.ProjectID == "" {
			return errors.New("config: project_id is required for the firestore backend")
		}
	case BackendPostgres:
		if c.DSN == "" {
			return errors.New("config: dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown backend %q (firestore, postgres)", c.Backend)
	}
	if c.Timeout <= 0 {
		return errors.New("config: timeout must be positive")
	}
	return nil
}

// ValidateAuth checks the settings needed to talk to the identity service.
func (c Config) ValidateAuth() error {
	if c.APIKey == "" {
		return errors.New("config: api_key is required")
	}
	return nil
}
