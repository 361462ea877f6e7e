package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Database DatabaseConfig `yaml:"database" envconfig:"DB"`
	Session  SessionConfig  `yaml:"session" envconfig:"SESSION"`
	Google   GoogleConfig   `yaml:"google" envconfig:"GOOGLE"`
	Upload   UploadConfig   `yaml:"upload" envconfig:"UPLOAD"`
	Admin    AdminConfig    `yaml:"admin" envconfig:"ADMIN"`
	Log      LogConfig      `yaml:"log" envconfig:"LOG"`
}

type ServerConfig struct {
	Host string `yaml:"host" envconfig:"HOST"`
	Port string `yaml:"port" envconfig:"PORT"`
	Mode string `yaml:"mode" envconfig:"MODE"` // debug, release, test
	// AllowedOrigins lists cross-origin callers that may send credentials.
	// Empty means same-origin only.
	AllowedOrigins []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver" envconfig:"DRIVER"` // sqlite, mysql, postgres
	DSN          string `yaml:"dsn" envconfig:"DSN"`
	MaxOpenConns int    `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns int    `yaml:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`
}

// SessionConfig controls the signed session cookie and server-side session rows.
type SessionConfig struct {
	Secret         string        `yaml:"secret" envconfig:"SECRET"`
	CookieName     string        `yaml:"cookie_name" envconfig:"COOKIE_NAME"`
	ExpireHour     int           `yaml:"expire_hour" envconfig:"EXPIRE_HOUR"`
	RotateInterval time.Duration `yaml:"rotate_interval" envconfig:"ROTATE_INTERVAL"`
	SecureCookie   bool          `yaml:"secure_cookie" envconfig:"SECURE_COOKIE"`
	CleanupSpec    string        `yaml:"cleanup_spec" envconfig:"CLEANUP_SPEC"` // cron expression
}

type GoogleConfig struct {
	ClientID string `yaml:"client_id" envconfig:"CLIENT_ID"`
}

type UploadConfig struct {
	Dir      string `yaml:"dir" envconfig:"DIR"`
	MaxBytes int64  `yaml:"max_bytes" envconfig:"MAX_BYTES"`
}

// AdminConfig is the account seeded on first start when no admin exists.
type AdminConfig struct {
	Username string `yaml:"username" envconfig:"USERNAME"`
	Email    string `yaml:"email" envconfig:"EMAIL"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
}

type LogConfig struct {
	Level string `yaml:"level" envconfig:"LEVEL"`
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		fileCfg := DefaultConfig()
		if err := yaml.Unmarshal(data, fileCfg); err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "studyroom.db",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Session: SessionConfig{
			Secret:         "studyroom-secret-key-change-in-production",
			CookieName:     "studyroom_session",
			ExpireHour:     24,
			RotateInterval: 30 * time.Minute,
			SecureCookie:   false,
			CleanupSpec:    "@hourly",
		},
		Upload: UploadConfig{
			Dir:      "uploads",
			MaxBytes: 5 * 1000 * 1000,
		},
		Admin: AdminConfig{
			Username: "admin",
			Email:    "admin@studyroom.local",
			Password: "admin",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// overrideFromEnv applies SERVER_*, DB_*, SESSION_*, GOOGLE_*, UPLOAD_*,
// ADMIN_* and LOG_* variables on top of the file values. Unset variables
// leave the current value alone.
func (c *Config) overrideFromEnv() error {
	return envconfig.Process("", c)
}

func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
