package shellctx

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"minishell/internal/job"
)

func TestNoTerminalMeansForegroundOpsAreNoops(t *testing.T) {
	ctx := &Context{Jobs: job.NewTable(), fgPGID: -1}
	assert.NoError(t, ctx.SetForeground(1234))
	assert.NoError(t, ctx.ReclaimForeground())
	assert.False(t, ctx.HasTerminal())
}

func TestCurrentForegroundDefaultsToNegativeOne(t *testing.T) {
	ctx := &Context{Jobs: job.NewTable(), fgPGID: -1}
	assert.Equal(t, -1, ctx.CurrentForeground())
}

func TestForwardSignalNoopWithoutForeground(t *testing.T) {
	ctx := &Context{Jobs: job.NewTable(), fgPGID: -1}
	assert.NotPanics(t, func() { ctx.ForwardSignal(0) })
}
