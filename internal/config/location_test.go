package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setHome(t *testing.T, dir string) {
	t.Helper()
	homeVar := "HOME"
	if runtime.GOOS == "windows" {
		homeVar = "USERPROFILE"
	}
	t.Setenv(homeVar, dir)
}

func TestGetConfigPath(t *testing.T) {
	home := t.TempDir()
	xdg := t.TempDir()
	for _, tt := range []struct {
		name     string
		override string
		xdg      string
		want     string
	}{
		{"env override", "/tmp/custom-config", xdg, "/tmp/custom-config"},
		{"xdg config home", "", xdg, filepath.Join(xdg, "vlist", "config")},
		{"relative xdg is ignored", "", "relative", filepath.Join(home, ".vlist", "config")},
		{"home default", "", "", filepath.Join(home, ".vlist", "config")},
	} {
		t.Run(tt.name, func(t *testing.T) {
			setHome(t, home)
			t.Setenv(ConfigEnvVar, tt.override)
			t.Setenv("XDG_CONFIG_HOME", tt.xdg)

			got, err := GetConfigPath()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigResolvePath(t *testing.T) {
	home := t.TempDir()
	setHome(t, home)

	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	require.NoError(t, os.WriteFile(path, []byte("log.file logs/vlist.log\n"), 0644))
	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, dir, cfg.Dir())

	abs := filepath.Join(t.TempDir(), "x.log")
	for _, tt := range []struct {
		in, want string
	}{
		{"", ""},
		{"logs/vlist.log", filepath.Join(dir, "logs", "vlist.log")},
		{"~/mods", filepath.Join(home, "mods")},
		{abs, abs},
	} {
		assert.Equal(t, tt.want, cfg.ResolvePath(tt.in), "%q", tt.in)
	}

	var none *Config
	assert.Equal(t, "", none.Dir())
	assert.Equal(t, "mods", none.ResolvePath("mods"))
	assert.Equal(t, "mods", NewConfig().ResolvePath(" mods "))
}
