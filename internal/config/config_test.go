package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joeycumines/vlist/internal/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigParsing(t *testing.T) {
	configContent := `# Global options
verbose true
layout.lanes 3

[view]
page-step 10

[version]
format short`

	config, err := LoadFromReader(strings.NewReader(configContent))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if value, ok := config.GetGlobalOption("verbose"); !ok || value != "true" {
		t.Errorf("Expected verbose=true, got %s (exists: %v)", value, ok)
	}
	if got, _ := config.GetGlobalOption("layout.lanes"); got != "3" {
		t.Errorf("Expected layout.lanes=3, got %s", got)
	}
	if value, ok := config.GetCommandOption("view", "page-step"); !ok || value != "10" {
		t.Errorf("Expected view.page-step=10, got %s (exists: %v)", value, ok)
	}
	// command sections fall back to globals
	if value, ok := config.GetCommandOption("view", "verbose"); !ok || value != "true" {
		t.Errorf("Expected view.verbose=true (fallback), got %s (exists: %v)", value, ok)
	}
	if value, ok := config.GetCommandOption("nonexistent", "option"); ok {
		t.Errorf("Expected nonexistent option to not exist, but got %s", value)
	}
	if config.HasWarnings() {
		t.Errorf("Expected no warnings, got %v", config.GetWarnings())
	}
}

func TestEmptyConfig(t *testing.T) {
	config, err := LoadFromReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, config.Global)
	assert.Empty(t, config.Commands)
	assert.Equal(t, DefaultData(), config.Data)
}

func TestConfigWithComments(t *testing.T) {
	configContent := `# This is a comment
verbose true
# Another comment
[view]
# Command option comment
show-scrollbar false`

	config, err := LoadFromReader(strings.NewReader(configContent))
	require.NoError(t, err)
	assert.Len(t, config.Global, 1)
	v, ok := config.GetCommandOption("view", "show-scrollbar")
	assert.True(t, ok)
	assert.Equal(t, "false", v)
}

func TestDataSection(t *testing.T) {
	configContent := `layout.spacing 1
[data]
count 250
default-size 2.5
size-expr index % 3 + 1
groups 10
group-size 4
group-lanes 2
header 1.5
footer 1
text hello\nworld
[view]
page-step 5`

	config, err := LoadFromReader(strings.NewReader(configContent))
	require.NoError(t, err)
	assert.Equal(t, DataConfig{
		Count:       250,
		DefaultSize: 2.5,
		SizeExpr:    "index % 3 + 1",
		GroupEvery:  10,
		GroupSize:   4,
		GroupLanes:  2,
		Header:      1.5,
		Footer:      1,
		Text:        "hello\nworld",
	}, config.Data)
	// [data] lines do not leak into command sections
	assert.NotContains(t, config.Commands, "data")
	v, ok := config.GetCommandOption("view", "page-step")
	assert.True(t, ok)
	assert.Equal(t, "5", v)
	assert.False(t, config.HasWarnings(), "%v", config.Warnings)
}

func TestDataSectionErrors(t *testing.T) {
	for _, tc := range []struct {
		name, line string
	}{
		{"unknown", "colour red"},
		{"negative count", "count -1"},
		{"bad int", "groups many"},
		{"bad float", "default-size big"},
		{"negative float", "header -2"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromReader(strings.NewReader("[data]\n" + tc.line))
			assert.Error(t, err)
		})
	}
}

func TestUnknownOptionsWarn(t *testing.T) {
	config, err := LoadFromReader(strings.NewReader("session.id abc\nlayout.lanes three\n[view]\nbogus 1"))
	require.NoError(t, err)
	require.Len(t, config.Warnings, 3)
	assert.Contains(t, config.Warnings[0], `global option "layout.lanes": expected int`)
	assert.Contains(t, config.Warnings[1], `unknown global option: "session.id"`)
	assert.Contains(t, config.Warnings[2], `unknown option for command "view": "bogus"`)
}

func TestSetGlobalAndCommandOptions(t *testing.T) {
	config := NewConfig()
	config.SetGlobalOption("verbose", "true")
	config.SetCommandOption("bench", "passes", "10")

	if v, _ := config.GetGlobalOption("verbose"); v != "true" {
		t.Errorf("expected verbose=true, got %q", v)
	}
	if v, _ := config.GetCommandOption("bench", "passes"); v != "10" {
		t.Errorf("expected bench.passes=10, got %q", v)
	}
}

func TestLoadFromPathMissing(t *testing.T) {
	config, err := LoadFromPath(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, config.Global)
}

func TestLoadFromPathExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("layout.snap center\n[data]\ncount 7\n"), 0644))

	config, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, layout.SnapCenter, mustLayout(t, config).Snap)
	assert.Equal(t, 7, config.Data.Count)
}

func TestLoadFromPathRejectsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	require.NoError(t, os.WriteFile(target, []byte("verbose true\n"), 0644))
	link := filepath.Join(dir, "config")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	_, err := LoadFromPath(link)
	if !errors.Is(err, ErrSymlink) {
		t.Fatalf("expected ErrSymlink, got %v", err)
	}
}

func TestLoadUsesConfigPathEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("layout.lanes 4\n"), 0644))
	t.Setenv(ConfigEnvVar, path)

	config, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, mustLayout(t, config).Lanes)
}
