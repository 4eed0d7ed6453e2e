package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- ConfigSchema tests ---

func TestNewSchema(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	if s == nil {
		t.Fatal("NewSchema returned nil")
	}
	if len(s.Options()) != 0 {
		t.Fatalf("expected empty options, got %d", len(s.Options()))
	}
}

func TestSchemaRegister(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.Register(ConfigOption{Key: "verbose", Type: TypeBool, Section: ""})
	s.Register(ConfigOption{Key: "pager", Type: TypeString, Section: "help"})

	if !s.IsKnown("", "verbose") {
		t.Error("expected 'verbose' to be known globally")
	}
	if !s.IsKnown("help", "pager") {
		t.Error("expected 'pager' to be known in [help]")
	}
	if s.IsKnown("", "nonexistent") {
		t.Error("expected 'nonexistent' to not be known")
	}
}

func TestSchemaRegisterAll(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: "a", Section: ""},
		{Key: "b", Section: ""},
		{Key: "c", Section: "sec"},
	})
	if len(s.Options()) != 3 {
		t.Fatalf("expected 3 options, got %d", len(s.Options()))
	}
}

func TestSchemaLookup(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.Register(ConfigOption{Key: "color", Type: TypeString, Default: "auto", Section: ""})
	s.Register(ConfigOption{Key: "pager", Type: TypeString, Section: "help"})

	opt := s.Lookup("", "color")
	if opt == nil || opt.Key != "color" || opt.Default != "auto" {
		t.Fatalf("unexpected Lookup result: %+v", opt)
	}

	opt = s.Lookup("help", "pager")
	if opt == nil || opt.Key != "pager" {
		t.Fatalf("unexpected Lookup result for help.pager: %+v", opt)
	}

	opt = s.Lookup("", "nonexistent")
	if opt != nil {
		t.Fatalf("expected nil for nonexistent, got %+v", opt)
	}

	opt = s.Lookup("nosection", "nokey")
	if opt != nil {
		t.Fatalf("expected nil for nosection.nokey, got %+v", opt)
	}
}

func TestSchemaIsKnown_GlobalFallbackInSection(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.Register(ConfigOption{Key: "verbose", Type: TypeBool, Section: ""})
	s.Register(ConfigOption{Key: "pager", Type: TypeString, Section: "help"})

	// Global key should be known in command sections (fallback).
	if !s.IsKnown("help", "verbose") {
		t.Error("global option 'verbose' should be known in [help] section")
	}
	// Section-specific key known in its section.
	if !s.IsKnown("help", "pager") {
		t.Error("section option 'pager' should be known in [help]")
	}
	// Section key NOT known in a different section (unless also global).
	if s.IsKnown("version", "pager") {
		t.Error("section option 'pager' should not be known in [version]")
	}
}

func TestSchemaGlobalOptions(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: "a", Section: ""},
		{Key: "b", Section: "cmd"},
		{Key: "c", Section: ""},
	})
	globals := s.GlobalOptions()
	if len(globals) != 2 {
		t.Fatalf("expected 2 globals, got %d", len(globals))
	}
	keys := []string{globals[0].Key, globals[1].Key}
	if keys[0] != "a" || keys[1] != "c" {
		t.Fatalf("unexpected global keys: %v", keys)
	}
}

func TestSchemaSectionOptions(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: "a", Section: "help"},
		{Key: "b", Section: "version"},
		{Key: "c", Section: "help"},
	})
	helpOpts := s.SectionOptions("help")
	if len(helpOpts) != 2 {
		t.Fatalf("expected 2 [help] opts, got %d", len(helpOpts))
	}
	versionOpts := s.SectionOptions("version")
	if len(versionOpts) != 1 {
		t.Fatalf("expected 1 [version] opt, got %d", len(versionOpts))
	}
	emptyOpts := s.SectionOptions("nonexistent")
	if len(emptyOpts) != 0 {
		t.Fatalf("expected 0 opts for nonexistent, got %d", len(emptyOpts))
	}
}

func TestSchemaSections(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: "a", Section: ""},
		{Key: "b", Section: "help"},
		{Key: "c", Section: "version"},
		{Key: "d", Section: "help"},
	})
	sections := s.Sections()
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d: %v", len(sections), sections)
	}
	if sections[0] != "help" || sections[1] != "version" {
		t.Fatalf("expected [help, version], got %v", sections)
	}
}

func TestSchemaDuplicateOverwrites(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.Register(ConfigOption{Key: "color", Type: TypeBool, Section: ""})
	s.Register(ConfigOption{Key: "color", Type: TypeString, Default: "auto", Section: ""})

	opt := s.Lookup("", "color")
	if opt == nil || opt.Type != TypeString || opt.Default != "auto" {
		t.Fatalf("expected last registration to win, got %+v", opt)
	}
}

// --- ValidateConfig tests ---

func TestValidateConfig_AllValid(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: "verbose", Type: TypeBool, Section: ""},
		{Key: "timeout", Type: TypeDuration, Section: ""},
		{Key: "pager", Type: TypeString, Section: "help"},
	})
	c := NewConfig()
	c.SetGlobalOption("verbose", "true")
	c.SetGlobalOption("timeout", "30s")
	c.SetCommandOption("help", "pager", "less")

	issues := ValidateConfig(c, s)
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got: %v", issues)
	}
}

func TestValidateConfig_UnknownGlobal(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.Register(ConfigOption{Key: "verbose", Type: TypeBool, Section: ""})

	c := NewConfig()
	c.SetGlobalOption("verbos", "true") // typo

	issues := ValidateConfig(c, s)
	if len(issues) != 1 || !strings.Contains(issues[0], "unknown global option") {
		t.Fatalf("expected 1 unknown global issue, got: %v", issues)
	}
}

func TestValidateConfig_UnknownCommand(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.Register(ConfigOption{Key: "pager", Type: TypeString, Section: "help"})

	c := NewConfig()
	c.SetCommandOption("help", "pagr", "less") // typo

	issues := ValidateConfig(c, s)
	if len(issues) != 1 || !strings.Contains(issues[0], "unknown option for command") {
		t.Fatalf("expected 1 unknown command issue, got: %v", issues)
	}
}

func TestValidateConfig_TypeMismatch(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.Register(ConfigOption{Key: "verbose", Type: TypeBool, Section: ""})
	s.Register(ConfigOption{Key: "timeout", Type: TypeDuration, Section: ""})
	s.Register(ConfigOption{Key: "count", Type: TypeInt, Section: ""})

	c := NewConfig()
	c.SetGlobalOption("verbose", "maybe")   // invalid bool
	c.SetGlobalOption("timeout", "notaval") // invalid duration
	c.SetGlobalOption("count", "abc")       // invalid int

	issues := ValidateConfig(c, s)
	if len(issues) != 3 {
		t.Fatalf("expected 3 type issues, got %d: %v", len(issues), issues)
	}
}

func TestValidateConfig_SectionTypeValidation(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.Register(ConfigOption{Key: "limit", Type: TypeInt, Section: "help"})

	c := NewConfig()
	c.SetCommandOption("help", "limit", "abc")

	issues := ValidateConfig(c, s)
	if len(issues) != 1 || !strings.Contains(issues[0], "expected int") {
		t.Fatalf("expected 1 type validation issue, got: %v", issues)
	}
}

func TestValidateConfig_GlobalInSection(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.Register(ConfigOption{Key: "verbose", Type: TypeBool, Section: ""})

	c := NewConfig()
	c.SetCommandOption("help", "verbose", "true")

	// Global options in sections should be allowed.
	issues := ValidateConfig(c, s)
	if len(issues) != 0 {
		t.Fatalf("expected no issues for global key in section, got: %v", issues)
	}
}

func TestValidateConfig_GlobalInSectionTypeCheck(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.Register(ConfigOption{Key: "verbose", Type: TypeBool, Section: ""})

	c := NewConfig()
	c.SetCommandOption("help", "verbose", "maybe")

	issues := ValidateConfig(c, s)
	if len(issues) != 1 || !strings.Contains(issues[0], "expected bool") {
		t.Fatalf("expected bool type issue, got: %v", issues)
	}
}

func TestValidateConfig_EmptyConfig(t *testing.T) {
	t.Parallel()
	s := DefaultSchema()
	c := NewConfig()

	issues := ValidateConfig(c, s)
	if len(issues) != 0 {
		t.Fatalf("expected no issues for empty config, got: %v", issues)
	}
}

func TestValidateConfig_StringAndPathListAcceptAnything(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.Register(ConfigOption{Key: "name", Type: TypeString, Section: ""})
	s.Register(ConfigOption{Key: "paths", Type: TypePathList, Section: ""})

	c := NewConfig()
	c.SetGlobalOption("name", "any value at all!!")
	c.SetGlobalOption("paths", "/a:/b:/c")

	issues := ValidateConfig(c, s)
	if len(issues) != 0 {
		t.Fatalf("expected no issues for string/path-list, got: %v", issues)
	}
}

// --- Typed resolution tests ---

func TestSchemaResolveTyped(t *testing.T) {
	t.Setenv("VLIST_TEST_TIMEOUT", "2s")
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: "count", Type: TypeInt, Default: "7"},
		{Key: "ratio", Type: TypeFloat, Default: "0.5"},
		{Key: "flag", Type: TypeBool, Default: "off"},
		{Key: "timeout", Type: TypeDuration, Default: "1s", EnvVar: "VLIST_TEST_TIMEOUT"},
	})
	c := NewConfig()

	n, err := s.ResolveInt(c, "count")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	c.SetGlobalOption("ratio", "2.5")
	f, err := s.ResolveFloat(c, "ratio")
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	for value, want := range map[string]bool{"yes": true, "ON": true, "0": false, "false": false} {
		c.SetGlobalOption("flag", value)
		b, err := s.ResolveBool(c, "flag")
		require.NoError(t, err, value)
		assert.Equal(t, want, b, value)
	}

	d, err := s.ResolveDuration(c, "timeout")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
}

func TestSchemaResolveTypedErrors(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.Register(ConfigOption{Key: "count", Type: TypeInt, Default: "1"})
	c := NewConfig()
	c.SetGlobalOption("count", "abc")
	c.SetGlobalOption("flag", "maybe")

	_, err := s.ResolveInt(c, "count")
	assert.EqualError(t, err, `count: invalid value "abc"`)
	_, err = s.ResolveBool(c, "flag")
	assert.EqualError(t, err, `flag: invalid value "maybe"`)
	_, err = s.ResolveFloat(c, "missing")
	assert.EqualError(t, err, `missing: invalid value ""`)
	_, err = s.ResolveDuration(c, "missing")
	assert.Error(t, err)
}

// --- FormatHelp tests ---

func TestFormatHelp(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: "verbose", Type: TypeBool, Default: "false", Description: "Verbose output", Section: ""},
		{Key: "pager", Type: TypeString, Description: "Pager program", Section: "help"},
	})

	help := s.FormatHelp()
	if !strings.Contains(help, "Global Options:") {
		t.Error("expected 'Global Options:' header in help")
	}
	if !strings.Contains(help, "verbose") {
		t.Error("expected 'verbose' in help")
	}
	if !strings.Contains(help, "type: bool") {
		t.Error("expected 'type: bool' in help")
	}
	if !strings.Contains(help, "default: false") {
		t.Error("expected 'default: false' in help")
	}
	if !strings.Contains(help, "[help] Options:") {
		t.Error("expected '[help] Options:' header in help")
	}
	if !strings.Contains(help, "pager") {
		t.Error("expected 'pager' in help")
	}
}

func TestFormatHelp_WithEnvVar(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.Register(ConfigOption{
		Key: "editor", Type: TypeString, EnvVar: "EDITOR",
		Description: "Editor program", Section: "",
	})

	help := s.FormatHelp()
	if !strings.Contains(help, "env: EDITOR") {
		t.Errorf("expected 'env: EDITOR' in help, got:\n%s", help)
	}
}

func TestFormatHelp_Empty(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	help := s.FormatHelp()
	if help != "" {
		t.Fatalf("expected empty help for empty schema, got:\n%s", help)
	}
}

// --- validateType tests ---

func TestValidateType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		typ   OptionType
		value string
		ok    bool
	}{
		{TypeString, "anything", true},
		{TypeString, "", true},
		{TypePathList, "/a:/b", true},
		{"", "anything", true}, // empty type = string

		{TypeBool, "true", true},
		{TypeBool, "false", true},
		{TypeBool, "yes", true},
		{TypeBool, "no", true},
		{TypeBool, "1", true},
		{TypeBool, "0", true},
		{TypeBool, "on", true},
		{TypeBool, "off", true},
		{TypeBool, "maybe", false},
		{TypeBool, "", false},

		{TypeInt, "42", true},
		{TypeInt, "-1", true},
		{TypeInt, "0", true},
		{TypeInt, "abc", false},
		{TypeInt, "3.14", false},

		{TypeFloat, "1.5", true},
		{TypeFloat, "-2", true},
		{TypeFloat, "1e3", true},
		{TypeFloat, "wide", false},

		{TypeDuration, "30s", true},
		{TypeDuration, "5m", true},
		{TypeDuration, "1h30m", true},
		{TypeDuration, "abc", false},
		{TypeDuration, "30", false},
	}
	for _, tc := range tests {
		err := validateType(tc.typ, tc.value)
		if tc.ok && err != nil {
			t.Errorf("validateType(%q, %q): unexpected error: %v", tc.typ, tc.value, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("validateType(%q, %q): expected error, got nil", tc.typ, tc.value)
		}
	}
}

func TestValidateType_UnknownType(t *testing.T) {
	t.Parallel()
	err := validateType("foobar", "anything")
	if err == nil || !strings.Contains(err.Error(), "unknown option type") {
		t.Fatalf("expected unknown type error, got: %v", err)
	}
}

// --- Schema.Resolve tests ---

func TestSchemaResolve(t *testing.T) {
	s := NewSchema()
	s.Register(ConfigOption{
		Key: "editor", Type: TypeString, Default: "vi",
		Description: "Editor", EnvVar: "VLIST_TEST_RESOLVE_EDITOR",
	})
	s.Register(ConfigOption{
		Key: "color", Type: TypeString, Default: "auto",
		Description: "Color mode",
	})

	c := NewConfig()
	c.SetGlobalOption("editor", "vim")
	c.SetGlobalOption("color", "always")

	// Config value takes effect when env var is not set.
	if v := s.Resolve(c, "editor"); v != "vim" {
		t.Fatalf("expected vim from config, got %q", v)
	}

	// Env var overrides config.
	t.Setenv("VLIST_TEST_RESOLVE_EDITOR", "nano")
	if v := s.Resolve(c, "editor"); v != "nano" {
		t.Fatalf("expected nano from env, got %q", v)
	}

	// Env var set to empty still overrides.
	t.Setenv("VLIST_TEST_RESOLVE_EDITOR", "")
	if v := s.Resolve(c, "editor"); v != "" {
		t.Fatalf("expected empty from env, got %q", v)
	}

	// Option without EnvVar: just config.
	if v := s.Resolve(c, "color"); v != "always" {
		t.Fatalf("expected always from config, got %q", v)
	}

	// Unset key falls back to schema default.
	c2 := NewConfig()
	os.Unsetenv("VLIST_TEST_RESOLVE_EDITOR")
	if v := s.Resolve(c2, "editor"); v != "vi" {
		t.Fatalf("expected vi default, got %q", v)
	}

	// Unknown key returns empty.
	if v := s.Resolve(c2, "nonexistent"); v != "" {
		t.Fatalf("expected empty for unknown key, got %q", v)
	}
}

// --- Options returns copies ---

func TestOptionsReturnsCopy(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.Register(ConfigOption{Key: "a", Section: ""})

	opts := s.Options()
	opts[0].Key = "modified"

	// Original should not be affected.
	original := s.Options()
	if original[0].Key != "a" {
		t.Fatal("Options() should return a copy, but original was modified")
	}
}

// --- DefaultSchema tests ---

func TestDefaultSchema_LayoutSurface(t *testing.T) {
	t.Parallel()
	s := DefaultSchema()

	checks := map[string]OptionType{
		"layout.axis":           TypeString,
		"layout.lanes":          TypeInt,
		"layout.lane-gutter":    TypeFloat,
		"layout.spacing":        TypeFloat,
		"layout.start-offset":   TypeFloat,
		"layout.end-offset":     TypeFloat,
		"layout.snap":           TypeString,
		"layout.stack-from-end": TypeBool,
		"layout.cached-count":   TypeInt,
		"layout.show-cached":    TypeBool,
		"layout.sticky":         TypeString,
		"prefetch.budget":       TypeDuration,
		"log.level":             TypeString,
		"log.max-size-mb":       TypeInt,
	}
	for key, wantType := range checks {
		opt := s.Lookup("", key)
		if opt == nil {
			t.Errorf("option %q not found", key)
			continue
		}
		if opt.Type != wantType {
			t.Errorf("option %q type = %q, want %q", key, opt.Type, wantType)
		}
	}

	for _, key := range []string{"count", "default-size", "size-expr", "groups", "group-size", "group-lanes", "header", "footer", "text"} {
		if !s.IsKnown("data", key) {
			t.Errorf("[data] option %q not in DefaultSchema", key)
		}
	}
}

func TestDefaultSchema_DefaultsParse(t *testing.T) {
	t.Parallel()
	for _, opt := range DefaultSchema().Options() {
		if opt.Default == "" {
			continue
		}
		if err := validateType(opt.Type, opt.Default); err != nil {
			t.Errorf("default of [%s] %q: %v", opt.Section, opt.Key, err)
		}
	}
}

func TestLoadAndValidateWithSchema(t *testing.T) {
	t.Parallel()
	configContent := `layout.axis horizontal
layout.lanes 2
layout.spacing 0.5
layout.snap center
prefetch.budget 8ms

[bench]
passes 10`

	cfg, err := LoadFromReader(strings.NewReader(configContent))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if issues := ValidateConfig(cfg, DefaultSchema()); len(issues) != 0 {
		t.Fatalf("expected no issues, got: %v", issues)
	}
}

func TestLoadAndValidateWithSchema_InvalidTypes(t *testing.T) {
	t.Parallel()
	cfg, err := LoadFromReader(strings.NewReader("layout.stack-from-end notbool\nlayout.spacing wide"))
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if issues := ValidateConfig(cfg, DefaultSchema()); len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %d: %v", len(issues), issues)
	}
}
