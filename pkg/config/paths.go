package config

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// Paths collects the filesystem locations used by one daemon instance.
type Paths struct {
	ConfigDir  string
	ConfigFile string
	StyleFile  string
	SocketPath string
	PIDFile    string
	LogFile    string
}

// configFileNames are tried in order inside the config directory.
var configFileNames = []string{"widgetd.toml", "widgetd.yaml", "widgetd.yml"}

// styleFileNames are tried in order inside the config directory. The TOML
// variant is a palette theme rendered into CSS custom properties.
var styleFileNames = []string{"widgetd.css", "theme.toml"}

// ResolvePaths derives every runtime path from a config directory. An empty
// configDir means DefaultConfigDir().
func ResolvePaths(configDir string) Paths {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	home, _ := os.UserHomeDir()
	runtime := xdgRuntimeDir()
	cache := filepath.Join(xdgCacheHome(home), "widgetd")

	// One socket per config directory, so several daemons can coexist.
	id := instanceID(configDir)

	return Paths{
		ConfigDir:  configDir,
		ConfigFile: FindConfigFile(configDir),
		StyleFile:  firstExisting(configDir, styleFileNames),
		SocketPath: filepath.Join(runtime, "widgetd-"+id+".sock"),
		PIDFile:    filepath.Join(runtime, "widgetd-"+id+".pid"),
		LogFile:    filepath.Join(cache, "widgetd-"+id+".log"),
	}
}

// FindConfigFile returns the first configuration file that exists in dir,
// or the default TOML path when none does.
func FindConfigFile(dir string) string {
	return firstExisting(dir, configFileNames)
}

// DefaultConfigDir returns $WIDGETD_CONFIG_DIR, or
// $XDG_CONFIG_HOME/widgetd, or ~/.config/widgetd.
func DefaultConfigDir() string {
	if v := os.Getenv("WIDGETD_CONFIG_DIR"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(xdgConfigHome(home), "widgetd")
}

func firstExisting(dir string, names []string) string {
	for _, name := range names {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, names[0])
}

// instanceID returns the first 8 hex characters of the SHA-256 hash of the
// absolute config dir, a filesystem-safe identifier for the instance.
func instanceID(configDir string) string {
	abs, err := filepath.Abs(configDir)
	if err != nil {
		abs = configDir
	}
	h := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(h[:4])
}

// xdgConfigHome returns XDG_CONFIG_HOME or ~/.config as fallback.
func xdgConfigHome(home string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".config")
}

// xdgCacheHome returns XDG_CACHE_HOME or ~/.cache as fallback.
func xdgCacheHome(home string) string {
	if v := os.Getenv("XDG_CACHE_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".cache")
}

// xdgRuntimeDir returns XDG_RUNTIME_DIR or the system temp dir.
func xdgRuntimeDir() string {
	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
		return v
	}
	return os.TempDir()
}
