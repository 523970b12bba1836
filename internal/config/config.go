package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Logging  LoggingConfig  `koanf:"logging"`
	Sweep    SweepConfig    `koanf:"sweep"`
	Watcher  WatcherConfig  `koanf:"watcher"`
	Email    EmailConfig    `koanf:"email"`
	Push     PushConfig     `koanf:"push"`
	Backup   BackupConfig   `koanf:"backup"`
}

type ServerConfig struct {
	Port    int    `koanf:"port"`
	BaseURL string `koanf:"base_url"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type SweepConfig struct {
	IntervalSeconds int `koanf:"interval_seconds"`
}

func (c SweepConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

type WatcherConfig struct {
	IntervalSeconds int `koanf:"interval_seconds"`
}

func (c WatcherConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

type EmailConfig struct {
	PostmarkToken string `koanf:"postmark_token"`
	From          string `koanf:"from"`
}

type PushConfig struct {
	VAPIDPublicKey  string `koanf:"vapid_public_key"`
	VAPIDPrivateKey string `koanf:"vapid_private_key"`
	Subscriber      string `koanf:"subscriber"`
}

type BackupConfig struct {
	Enabled    bool     `koanf:"enabled"`
	Passphrase string   `koanf:"passphrase"`
	HourUTC    int      `koanf:"hour_utc"`
	S3         S3Config `koanf:"s3"`
}

type S3Config struct {
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Prefix    string `koanf:"prefix"`
}

// Load builds the configuration from defaults, an optional YAML file, and
// TOCK_-prefixed environment variables, in increasing precedence. Environment
// keys use double underscores as section separators, e.g. TOCK_SERVER__PORT
// maps to server.port and TOCK_BACKUP__S3__BUCKET to backup.s3.bucket.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider("TOCK_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "TOCK_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Sweep.IntervalSeconds <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	if c.Watcher.IntervalSeconds <= 0 {
		return fmt.Errorf("watcher interval must be positive")
	}
	if c.Backup.Enabled {
		if c.Backup.Passphrase == "" {
			return fmt.Errorf("backup passphrase is required when backups are enabled")
		}
		if c.Backup.S3.Bucket == "" {
			return fmt.Errorf("backup S3 bucket is required when backups are enabled")
		}
		if c.Backup.HourUTC < 0 || c.Backup.HourUTC > 23 {
			return fmt.Errorf("backup hour %d out of range", c.Backup.HourUTC)
		}
	}
	return nil
}
