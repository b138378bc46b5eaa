package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func initTemp(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "live", "config.toml")
	if err := Init(path); err != nil {
		t.Fatalf("Failed to initialize config: %v", err)
	}
	return path
}

// TestInitCreatesConfigDir validates config directory creation
func TestInitCreatesConfigDir(t *testing.T) {
	path := initTemp(t)

	if GetConfigDir() != filepath.Dir(path) {
		t.Errorf("Expected config dir %s, got %s", filepath.Dir(path), GetConfigDir())
	}
	if _, err := os.Stat(GetConfigDir()); err != nil {
		t.Errorf("Config directory should exist: %v", err)
	}
	if GetCredentialsPath() != filepath.Join(GetConfigDir(), "credentials") {
		t.Errorf("Unexpected credentials path %s", GetCredentialsPath())
	}
	if GetConfigFilePath() != path {
		t.Errorf("Unexpected config file path %s", GetConfigFilePath())
	}
}

// TestDefaults validates the timing defaults the components rely on
func TestDefaults(t *testing.T) {
	initTemp(t)

	testCases := []struct {
		key    string
		expect time.Duration
	}{
		{"typing.expiry_window_ms", 5 * time.Second},
		{"typing.sweep_interval_ms", time.Second},
		{"typing.stop_delay_ms", 3 * time.Second},
		{"presence.poll_interval_ms", 30 * time.Second},
		{"realtime.heartbeat_interval_ms", 30 * time.Second},
	}

	for _, tc := range testCases {
		t.Run(tc.key, func(t *testing.T) {
			if got := GetMillis(tc.key); got != tc.expect {
				t.Errorf("Expected %s, got %s", tc.expect, got)
			}
		})
	}

	if GetString("output.format") != "table" {
		t.Errorf("Expected table output by default, got %q", GetString("output.format"))
	}
}

// TestEnvOverride validates SIDECHAIN_* environment overrides
func TestEnvOverride(t *testing.T) {
	initTemp(t)
	t.Setenv("SIDECHAIN_RELAY_REDIS_URL", "redis://localhost:6379/2")
	t.Setenv("SIDECHAIN_TYPING_STOP_DELAY_MS", "1500")

	if got := GetString("relay.redis_url"); got != "redis://localhost:6379/2" {
		t.Errorf("Expected env override, got %q", got)
	}
	if got := GetMillis("typing.stop_delay_ms"); got != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s, got %s", got)
	}
}

// TestConfigFileOverridesDefaults validates values read from config.toml
func TestConfigFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[relay]\naddr = \":9999\"\n\n[typing]\nexpiry_window_ms = 8000\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	if err := Init(path); err != nil {
		t.Fatalf("Failed to initialize config: %v", err)
	}

	if GetString("relay.addr") != ":9999" {
		t.Errorf("Expected :9999, got %q", GetString("relay.addr"))
	}
	if GetMillis("typing.expiry_window_ms") != 8*time.Second {
		t.Errorf("Expected 8s, got %s", GetMillis("typing.expiry_window_ms"))
	}
}

// TestExpandPath validates home directory expansion
func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/logs/live.log"); got != filepath.Join(home, "logs", "live.log") {
		t.Errorf("Unexpected expansion %q", got)
	}
	if got := expandPath("/var/log/live.log"); got != "/var/log/live.log" {
		t.Errorf("Absolute paths should be unchanged, got %q", got)
	}
}
