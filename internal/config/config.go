// Package config loads crimedesk settings using Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Config holds all configuration values for crimedesk.
type Config struct {
	Addr           string        `mapstructure:"addr" yaml:"addr"`
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
	LogJSON        bool          `mapstructure:"log_json" yaml:"log_json"`
	DataFile       string        `mapstructure:"data_file" yaml:"data_file"`
	AuditLog       string        `mapstructure:"audit_log" yaml:"audit_log"`
	SessionTTL     time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	CSRFSecret     string        `mapstructure:"csrf_secret" yaml:"csrf_secret"`
	SecureCookies  bool          `mapstructure:"secure_cookies" yaml:"secure_cookies"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	Codec          string        `mapstructure:"codec" yaml:"codec"`
	RateLimit      float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	PageSize       int           `mapstructure:"page_size" yaml:"page_size"`
	LoginAttempts  int           `mapstructure:"login_attempts" yaml:"login_attempts"`
	LiveConnsPerIP int           `mapstructure:"live_conns_per_ip" yaml:"live_conns_per_ip"`
	Uploads        Uploads       `mapstructure:"uploads" yaml:"uploads"`
	Admin          Admin         `mapstructure:"admin" yaml:"admin"`
}

// Uploads configures attachment storage.
type Uploads struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
	MaxSize int64  `mapstructure:"max_size" yaml:"max_size"`
	S3      S3     `mapstructure:"s3" yaml:"s3"`
}

// S3 configures the S3-compatible backend.
type S3 struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Region    string `mapstructure:"region" yaml:"region"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	PathStyle bool   `mapstructure:"path_style" yaml:"path_style"`
}

// Admin is the account seeded at startup when missing.
type Admin struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

var defaults = map[string]any{
	"addr":                  ":8080",
	"log_level":             "info",
	"log_json":              false,
	"data_file":             "crimedesk.db",
	"audit_log":             "",
	"session_ttl":           24 * time.Hour,
	"csrf_secret":           "",
	"secure_cookies":        false,
	"allowed_origins":       []string{},
	"codec":                 "json",
	"rate_limit":            20.0,
	"page_size":             15,
	"login_attempts":        10,
	"live_conns_per_ip":     20,
	"uploads.backend":       "local",
	"uploads.dir":           "uploads",
	"uploads.max_size":      int64(10 << 20),
	"uploads.s3.endpoint":   "",
	"uploads.s3.region":     "us-east-1",
	"uploads.s3.bucket":     "",
	"uploads.s3.access_key": "",
	"uploads.s3.secret_key": "",
	"uploads.s3.path_style": false,
	"admin.username":        "admin",
	"admin.password":        "admin123",
}

// Load loads configuration with full precedence:
// flags > CRIMEDESK_* env > config file > defaults.
// An empty path reads ./crimedesk.yml when it exists.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("CRIMEDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" && fileExists(ProjectPath()) {
		path = ProjectPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if _, known := defaults[key]; !known || bindErr != nil {
				return
			}
			if err := v.BindPFlag(key, f); err != nil {
				bindErr = fmt.Errorf("binding flag %s: %w", f.Name, err)
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:           defaults["addr"].(string),
		LogLevel:       defaults["log_level"].(string),
		DataFile:       defaults["data_file"].(string),
		SessionTTL:     defaults["session_ttl"].(time.Duration),
		AllowedOrigins: []string{},
		Codec:          defaults["codec"].(string),
		RateLimit:      defaults["rate_limit"].(float64),
		PageSize:       defaults["page_size"].(int),
		LoginAttempts:  defaults["login_attempts"].(int),
		LiveConnsPerIP: defaults["live_conns_per_ip"].(int),
		Uploads: Uploads{
			Backend: defaults["uploads.backend"].(string),
			Dir:     defaults["uploads.dir"].(string),
			MaxSize: defaults["uploads.max_size"].(int64),
			S3:      S3{Region: defaults["uploads.s3.region"].(string)},
		},
		Admin: Admin{
			Username: defaults["admin.username"].(string),
			Password: defaults["admin.password"].(string),
		},
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr is empty", ErrInvalid)
	case c.Codec != "json" && c.Codec != "msgpack":
		return fmt.Errorf("%w: codec must be json or msgpack, got %q", ErrInvalid, c.Codec)
	case c.PageSize <= 0:
		return fmt.Errorf("%w: page_size must be positive", ErrInvalid)
	case c.LoginAttempts < 0 || c.LiveConnsPerIP < 0 || c.RateLimit < 0:
		return fmt.Errorf("%w: login_attempts, live_conns_per_ip and rate_limit cannot be negative", ErrInvalid)
	case c.SessionTTL <= 0:
		return fmt.Errorf("%w: session_ttl must be positive", ErrInvalid)
	case c.Uploads.MaxSize <= 0:
		return fmt.Errorf("%w: uploads.max_size must be positive", ErrInvalid)
	}

	switch c.Uploads.Backend {
	case "local":
		if c.Uploads.Dir == "" {
			return fmt.Errorf("%w: uploads.dir is empty", ErrInvalid)
		}
	case "s3":
		if c.Uploads.S3.Bucket == "" {
			return fmt.Errorf("%w: uploads.s3.bucket is required for the s3 backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: uploads.backend must be local or s3, got %q", ErrInvalid, c.Uploads.Backend)
	}
	return nil
}

// ProjectPath returns the project-local config path.
func ProjectPath() string {
	return "crimedesk.yml"
}

// Write writes cfg as YAML to path, creating parent directories.
func Write(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
