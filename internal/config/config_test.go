package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Sweep.Interval() != 60*time.Second {
		t.Errorf("sweep interval = %v, want 60s", cfg.Sweep.Interval())
	}
	if cfg.Backup.Enabled {
		t.Error("backups should default to disabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "server:\n  port: 9000\nlogging:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TOCK_SERVER__PORT", "9100")
	t.Setenv("TOCK_EMAIL__POSTMARK_TOKEN", "tok-123")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("env should beat file: port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug from file", cfg.Logging.Level)
	}
	if cfg.Email.PostmarkToken != "tok-123" {
		t.Errorf("postmark token = %q", cfg.Email.PostmarkToken)
	}
}

func TestValidateBackupRequirements(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Backup.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("enabled backup without passphrase should fail validation")
	}
	cfg.Backup.Passphrase = "secret"
	if err := cfg.Validate(); err == nil {
		t.Error("enabled backup without bucket should fail validation")
	}
	cfg.Backup.S3.Bucket = "my-backups"
	if err := cfg.Validate(); err != nil {
		t.Errorf("fully configured backup should validate: %v", err)
	}
}
