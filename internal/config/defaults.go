package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"server": map[string]interface{}{
			"port":     8080,
			"base_url": "http://localhost:8080",
		},
		"database": map[string]interface{}{
			"path": "tock.db",
		},
		"logging": map[string]interface{}{
			"level":  "info",
			"format": "text",
		},
		"sweep": map[string]interface{}{
			"interval_seconds": 60,
		},
		"watcher": map[string]interface{}{
			"interval_seconds": 30,
		},
		"email": map[string]interface{}{
			"postmark_token": "",
			"from":           "",
		},
		"push": map[string]interface{}{
			"vapid_public_key":  "",
			"vapid_private_key": "",
			"subscriber":        "",
		},
		"backup": map[string]interface{}{
			"enabled":    false,
			"passphrase": "",
			"hour_utc":   3,
			"s3": map[string]interface{}{
				"bucket":     "",
				"region":     "auto",
				"endpoint":   "",
				"access_key": "",
				"secret_key": "",
				"prefix":     "tock",
			},
		},
	}
}

func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}
