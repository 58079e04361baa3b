// Package config provides configuration loading from environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Record backends selectable through RECORD_BACKEND.
const (
	BackendSheets   = "sheets"
	BackendWorkbook = "workbook"
)

// ServiceConfig holds process-level configuration for the uploader binaries.
// Operator settings (spreadsheet, folder, credentials path) live in the
// settings store instead, so they can change without a restart.
type ServiceConfig struct {
	Port              string
	MetricsPort       string
	APIKey            string
	ShutdownDrainWait time.Duration // Time to wait for load balancer to drain (0 to skip)
	SettingsFile      string
	RecordBackend     string

	CallbackURL        string
	CallbackKey        string
	CallbackTimeout    time.Duration
	CallbackBufferSize int
}

// LoadServiceConfig loads service configuration from environment variables.
func LoadServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:               GetEnv("PORT", "8080"),
		MetricsPort:        GetEnv("METRICS_PORT", "9090"),
		APIKey:             GetSecretFile(GetEnv("API_KEY_FILE", "")),
		ShutdownDrainWait:  GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),
		SettingsFile:       GetEnv("SETTINGS_FILE", DefaultSettingsFile()),
		RecordBackend:      GetEnv("RECORD_BACKEND", BackendSheets),
		CallbackURL:        GetEnv("CALLBACK_URL", ""),
		CallbackKey:        GetSecretFile(GetEnv("CALLBACK_KEY_FILE", "")),
		CallbackTimeout:    GetDurationEnv("CALLBACK_TIMEOUT", 10*time.Second),
		CallbackBufferSize: GetIntEnv("CALLBACK_BUFFER_SIZE", 256),
	}
}

// DefaultSettingsFile returns the per-user settings location,
// falling back to the working directory when no config dir is known.
func DefaultSettingsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "settings.yaml"
	}
	return filepath.Join(dir, "candidate-uploader", "settings.yaml")
}
