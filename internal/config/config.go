// Package config resolves askai's runtime configuration from the environment
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

// Driver selects how askai talks to a browser.
type Driver string

const (
	DriverKernel Driver = "kernel"
	DriverCDP    Driver = "cdp"
	DriverSystem Driver = "system"
)

var Drivers = []Driver{DriverKernel, DriverCDP, DriverSystem}

const (
	// StorageMemory keeps settings in process memory only.
	StorageMemory = "memory"

	DefaultKeyringService = "askai"
	settingsFileName      = "settings.json"
)

type Config struct {
	Driver         Driver
	CDPURL         string
	KernelAPIKey   string
	KernelBaseURL  string
	BrowserID      string
	DataDir        string
	KeyringService string
	Storage        string
	Debug          bool
}

// Load reads the process environment, falling back to a .env file in dir
// when one exists. Variables already set in the environment win.
func Load(dir string) (Config, error) {
	return load(dir, os.LookupEnv)
}

func load(dir string, lookup func(string) (string, bool)) (Config, error) {
	fileEnv := map[string]string{}
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err == nil {
		fileEnv, err = godotenv.Read(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
	return FromEnv(func(key string) string {
		if v, ok := lookup(key); ok {
			return v
		}
		return fileEnv[key]
	})
}

// FromEnv builds a Config from getenv and fills in defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	cfg := Config{
		Driver:         Driver(strings.ToLower(get("ASKAI_DRIVER"))),
		CDPURL:         get("ASKAI_CDP_URL"),
		KernelAPIKey:   get("KERNEL_API_KEY"),
		KernelBaseURL:  strings.TrimRight(get("KERNEL_BASE_URL"), "/"),
		BrowserID:      get("KERNEL_BROWSER_ID"),
		DataDir:        get("ASKAI_DATA_DIR"),
		KeyringService: get("ASKAI_KEYRING_SERVICE"),
		Storage:        strings.ToLower(get("ASKAI_STORAGE")),
	}
	if v := get("ASKAI_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ASKAI_DEBUG value %q: %w", v, err)
		}
		cfg.Debug = debug
	}

	if cfg.DataDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return Config{}, fmt.Errorf("failed to resolve config directory: %w", err)
		}
		cfg.DataDir = filepath.Join(dir, "askai")
	}
	if cfg.KeyringService == "" {
		cfg.KeyringService = DefaultKeyringService
	}
	if cfg.Driver == "" {
		cfg.Driver = cfg.inferDriver()
	}
	return cfg, nil
}

// inferDriver picks the driver the configured credentials point at.
func (c Config) inferDriver() Driver {
	switch {
	case c.CDPURL != "":
		return DriverCDP
	case c.KernelAPIKey != "":
		return DriverKernel
	default:
		return DriverSystem
	}
}

func (c Config) Validate() error {
	if !lo.Contains(Drivers, c.Driver) {
		return fmt.Errorf("unknown driver %q: use one of %s", c.Driver, strings.Join(lo.Map(Drivers, func(d Driver, _ int) string { return string(d) }), ", "))
	}
	switch c.Driver {
	case DriverKernel:
		if c.KernelAPIKey == "" {
			return errors.New("KERNEL_API_KEY is required for the kernel driver")
		}
	case DriverCDP:
		if c.CDPURL == "" {
			return errors.New("--cdp-url or ASKAI_CDP_URL is required for the cdp driver")
		}
	}
	if c.Storage != "" && c.Storage != StorageMemory {
		return fmt.Errorf("unsupported ASKAI_STORAGE value %q: use %q", c.Storage, StorageMemory)
	}
	return nil
}

// SettingsPath is the file backing the local settings tier.
func (c Config) SettingsPath() string {
	return filepath.Join(c.DataDir, settingsFileName)
}
