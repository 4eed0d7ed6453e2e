package command

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joeycumines/vlist/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewCommand_QuitsOnKey(t *testing.T) {
	t.Parallel()
	cmd := NewViewCommand(config.NewConfig())
	cmd.input = strings.NewReader("q")
	var started bool
	cmd.programFn = func(m tea.Model, opts ...tea.ProgramOption) *tea.Program {
		started = true
		opts = append(opts, tea.WithoutRenderer(), tea.WithoutSignalHandler())
		return tea.NewProgram(m, opts...)
	}

	_, _, err := execute(t, cmd, "-inline", "-set", "data.count=10")
	require.NoError(t, err)
	assert.True(t, started)
}

func TestViewCommand_BadOverride(t *testing.T) {
	t.Parallel()
	_, _, err := execute(t, NewViewCommand(config.NewConfig()), "-set", "layout.nope=1")
	assert.ErrorContains(t, err, "unknown option")
}
