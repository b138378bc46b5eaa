package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var configDir string
var configFilePath string
var credentialsPath string

// getConfigDir returns platform-specific config directory
func getConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		// Windows: %LOCALAPPDATA%\sidechain\live
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = os.Getenv("APPDATA")
		}
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = home
		}
		return filepath.Join(appData, "sidechain", "live"), nil
	}

	// Unix-like (macOS, Linux): ~/.config/sidechain/live
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "sidechain", "live"), nil
}

// getSystemConfigPaths returns platform-specific system config paths
func getSystemConfigPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{filepath.Join(os.Getenv("ProgramFiles"), "Sidechain", "live", "config.toml")}
	}

	return []string{
		"/etc/sidechain/live/config.toml",
		"/usr/local/etc/sidechain/live/config.toml",
	}
}

// Init initializes the configuration
func Init(configPath string) error {
	var err error
	if configPath != "" {
		configDir = filepath.Dir(configPath)
		configFilePath = configPath
	} else {
		configDir, err = getConfigDir()
		if err != nil {
			return err
		}
		configFilePath = filepath.Join(configDir, "config.toml")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return err
	}

	credentialsPath = filepath.Join(configDir, "credentials")

	viper.SetConfigType("toml")
	// SIDECHAIN_RELAY_REDIS_URL overrides relay.redis_url
	viper.SetEnvPrefix("SIDECHAIN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// System config is the foundation, user config overrides it
	for _, sysConfigPath := range getSystemConfigPaths() {
		if _, err := os.Stat(sysConfigPath); err == nil {
			viper.SetConfigFile(sysConfigPath)
			_ = viper.MergeInConfig()
			break
		}
	}

	viper.SetConfigFile(configFilePath)
	_ = viper.MergeInConfig()

	return nil
}

func setDefaults() {
	viper.SetDefault("api.base_url", "http://localhost:8787")
	viper.SetDefault("api.timeout", 30)
	viper.SetDefault("output.format", "table")

	viper.SetDefault("realtime.url", "ws://localhost:8787/api/v1/realtime")
	viper.SetDefault("realtime.connect_timeout_ms", 15000)
	viper.SetDefault("realtime.heartbeat_interval_ms", 30000)
	viper.SetDefault("realtime.reconnect_base_delay_ms", 2000)
	viper.SetDefault("realtime.reconnect_max_delay_ms", 30000)

	viper.SetDefault("presence.poll_interval_ms", 30000)
	viper.SetDefault("typing.expiry_window_ms", 5000)
	viper.SetDefault("typing.sweep_interval_ms", 1000)
	viper.SetDefault("typing.stop_delay_ms", 3000)

	viper.SetDefault("relay.addr", ":8787")
	viper.SetDefault("relay.redis_url", "")
	viper.SetDefault("relay.database_dsn", "")
	viper.SetDefault("relay.jwt_secret", "")
	viper.SetDefault("relay.log_level", "info")
	viper.SetDefault("relay.log_file", filepath.Join(configDir, "relay.log"))
	viper.SetDefault("relay.otlp_endpoint", "")
	viper.SetDefault("relay.presence_ttl_seconds", 120)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", filepath.Join(configDir, "sidechain-live.log"))
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// GetString returns a string configuration value
func GetString(key string) string {
	value := viper.GetString(key)
	if key == "log.file" || key == "relay.log_file" {
		return expandPath(value)
	}
	return value
}

// GetInt returns an int configuration value
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool configuration value
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetMillis reads an integer millisecond setting as a duration
func GetMillis(key string) time.Duration {
	return time.Duration(viper.GetInt(key)) * time.Millisecond
}

// Set overrides a value for the current process without persisting it
func Set(key string, value interface{}) {
	viper.Set(key, value)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() string {
	return configDir
}

// GetConfigFilePath returns the user config file path
func GetConfigFilePath() string {
	return configFilePath
}

// GetCredentialsPath returns the path to the credentials file
func GetCredentialsPath() string {
	return credentialsPath
}
