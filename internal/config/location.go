package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ConfigEnvVar overrides the config file location.
const ConfigEnvVar = "VLIST_CONFIG"

// GetConfigPath returns the config file to load. VLIST_CONFIG wins, then
// $XDG_CONFIG_HOME/vlist/config, then ~/.vlist/config.
func GetConfigPath() (string, error) {
	if configPath := os.Getenv(ConfigEnvVar); configPath != "" {
		return configPath, nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); filepath.IsAbs(xdg) {
		return filepath.Join(xdg, "vlist", "config"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".vlist", "config"), nil
}

// Dir returns the directory of the file the config was loaded from, or ""
// for a config built in memory.
func (c *Config) Dir() string {
	if c == nil || c.Path == "" {
		return ""
	}
	return filepath.Dir(c.Path)
}

// ResolvePath interprets a path taken from the config file. A leading ~/
// expands to the home directory and relative paths are anchored at Dir, so
// a log.file or script.module-paths entry means the same thing whatever the
// working directory.
func (c *Config) ResolvePath(p string) string {
	p = strings.TrimSpace(p)
	switch {
	case p == "":
		return ""
	case p == "~" || strings.HasPrefix(p, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
		return p
	case filepath.IsAbs(p):
		return filepath.Clean(p)
	}
	if dir := c.Dir(); dir != "" {
		return filepath.Join(dir, p)
	}
	return p
}
