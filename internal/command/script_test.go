package command

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joeycumines/vlist/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptCommand_File(t *testing.T) {
	t.Parallel()
	modules := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(modules, "viewport.js"),
		[]byte(`module.exports = {rows: 5, cols: 20};`), 0o644))
	script := filepath.Join(t.TempDir(), "scenario.js")
	require.NoError(t, os.WriteFile(script, []byte(`
		const vlist = require("vlist");
		const vp = require("viewport");
		const list = vlist.newList({count: Number(args[0])}, {lanes: 1});
		list.pass(vp.rows, vp.cols);
		list.scrollToIndex(vlist.LAST_ITEM, "end");
		list.pass(vp.rows, vp.cols);
		const w = list.window();
		output.print(args.length, w.start, w.end);
		log.warn("done", {end: w.end});
	`), 0o644))

	cfg := config.NewConfig()
	cfg.SetCommandOption("script", "module-paths", modules)
	out, errOut, err := execute(t, NewScriptCommand(cfg), "-dump-logs", script, "40", "extra")
	require.NoError(t, err)
	assert.Equal(t, "2 35 39\n", out)
	assert.Contains(t, errOut, "WARN  done end=39")
}

func TestScriptCommand_ModulePathsRelativeToConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "mods"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mods", "viewport.js"),
		[]byte(`module.exports = {rows: 7};`), 0o644))

	cfg := config.NewConfig()
	cfg.Path = filepath.Join(dir, "config")
	cfg.SetCommandOption("script", "module-paths", "mods")
	out, _, err := execute(t, NewScriptCommand(cfg), "-e", `output.print(require("viewport").rows);`)
	require.NoError(t, err)
	assert.Equal(t, "7\n", out)
}

func TestScriptCommand_Eval(t *testing.T) {
	t.Parallel()
	out, _, err := execute(t, NewScriptCommand(config.NewConfig()), "-e",
		`const t = require("vlist:unicodetext"); output.print(t.width("日本"), args[0]);`, "x")
	require.NoError(t, err)
	assert.Equal(t, "4 x\n", out)
}

func TestScriptCommand_Errors(t *testing.T) {
	t.Parallel()
	_, errOut, err := execute(t, NewScriptCommand(config.NewConfig()))
	assert.EqualError(t, err, "no script given")
	assert.Contains(t, errOut, "Usage: script")

	_, _, err = execute(t, NewScriptCommand(config.NewConfig()), "-e", "throw new Error('kaput')")
	assert.ErrorContains(t, err, "kaput")

	_, _, err = execute(t, NewScriptCommand(config.NewConfig()), filepath.Join(t.TempDir(), "missing.js"))
	assert.ErrorContains(t, err, "failed to read script")
}

func TestParsePathList(t *testing.T) {
	t.Parallel()
	sep := string(filepath.ListSeparator)
	for _, tc := range []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "  ", want: nil},
		{in: "a", want: []string{"a"}},
		{in: "a, b", want: []string{"a", "b"}},
		{in: "a" + sep + "b,,c", want: []string{"a", "b", "c"}},
		{in: ", ,", want: nil},
	} {
		assert.Equal(t, tc.want, parsePathList(tc.in), tc.in)
	}
}
