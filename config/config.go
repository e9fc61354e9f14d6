package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type InstanceConfig struct {
	Type   string `toml:"type"`
	Name   string `toml:"name,omitempty"`
	URL    string `toml:"url,omitempty"`
	APIKey string `toml:"api_key,omitempty"`
}

type UserConfig struct {
	Instance         InstanceConfig `toml:"instance"`
	SelectedInstance string         `toml:"selected_instance,omitempty"`
	EnabledTools     []string       `toml:"enabled_tools,omitempty"`
}

type Config struct {
	DataDirectory    string
	InstanceType     string
	InstanceName     string
	InstanceURL      string
	APIKey           string
	SelectedInstance string
	EnabledTools     []string

	// User is the decoded user config, kept so callers can write changes
	// (selected instance) back through SaveUserConfig.
	User *UserConfig
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if dataDir := os.Getenv("NANOPACA_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if url := os.Getenv("NANOPACA_INSTANCE_URL"); url != "" {
		c.InstanceURL = url
	}
	if key := os.Getenv("NANOPACA_API_KEY"); key != "" {
		c.APIKey = key
	}
}

func CheckDebug() bool {
	debug := os.Getenv("NANOPACA_DEBUG")
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600 - debug output may contain prompts and tool results
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (NANOPACA_DEBUG=%s) ===", os.Getenv("NANOPACA_DEBUG"))
	DebugLog.Printf("Log path: %s", logPath)
}

func Load() (*Config, error) {
	cfg := &Config{
		DataDirectory: "~/.local/share/nanopaca",
		InstanceType:  "nanogpt",
		InstanceURL:   "https://nano-gpt.com/api/v1",
	}

	systemCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}
	cfg.DataDirectory = systemCfg.DataDirectory
	if cfg.DataDirectory == "" {
		cfg.DataDirectory = GetDefaultDataDir()
	}
	if dataDir := os.Getenv("NANOPACA_DATA_DIR"); dataDir != "" {
		cfg.DataDirectory = dataDir
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	if userCfg.Instance.Type != "" {
		cfg.InstanceType = userCfg.Instance.Type
	}
	if userCfg.Instance.URL != "" {
		cfg.InstanceURL = userCfg.Instance.URL
	}
	cfg.InstanceName = userCfg.Instance.Name
	cfg.APIKey = userCfg.Instance.APIKey
	cfg.SelectedInstance = userCfg.SelectedInstance
	cfg.EnabledTools = userCfg.EnabledTools
	cfg.User = userCfg

	// Environment wins over both config files.
	cfg.applyEnvOverrides()

	return cfg, nil
}
