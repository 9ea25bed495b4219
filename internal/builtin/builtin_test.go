package builtin

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minishell/internal/job"
)

type fakeTerm struct{}

func (fakeTerm) SetForeground(int) error   { return nil }
func (fakeTerm) ReclaimForeground() error { return nil }

func newTestEnv() (*Env, *bytes.Buffer) {
	var out bytes.Buffer
	env := map[string]string{"HOME": "/home/alice"}
	e := &Env{
		Aliases: make(map[string]string),
		Fs:      afero.NewMemMapFs(),
		Getenv:  func(k string) string { return env[k] },
		Setenv: func(k, v string) error {
			env[k] = v
			return nil
		},
		Unsetenv: func(k string) error {
			delete(env, k)
			return nil
		},
		Chdir: func(string) error { return nil },
		Getwd: func() (string, error) { return "/home/alice", nil },
		Jobs:  job.NewTable(),
		Term:  fakeTerm{},
		Stdout: &out,
		Stderr: &out,
	}
	return e, &out
}

func TestDispatchEcho(t *testing.T) {
	e, out := newTestEnv()
	handled, status, err := e.Dispatch([]string{"echo", "hello", "world"})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, 0, status)
	assert.Equal(t, "hello world\n", out.String())
}

func TestDispatchPwd(t *testing.T) {
	e, out := newTestEnv()
	_, status, err := e.Dispatch([]string{"pwd"})
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Equal(t, "/home/alice\n", out.String())
}

func TestDispatchExitReturnsSentinel(t *testing.T) {
	e, _ := newTestEnv()
	handled, _, err := e.Dispatch([]string{"exit"})
	assert.True(t, handled)
	assert.ErrorIs(t, err, ErrExit)
}

func TestDispatchUnknownCommandNotHandled(t *testing.T) {
	e, _ := newTestEnv()
	handled, _, err := e.Dispatch([]string{"/bin/ls"})
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestDispatchJobsEmpty(t *testing.T) {
	e, out := newTestEnv()
	_, status, _ := e.Dispatch([]string{"jobs"})
	assert.Equal(t, 0, status)
	assert.Equal(t, "No background jobs.\n", out.String())
}

func TestDispatchAliasSetAndList(t *testing.T) {
	e, out := newTestEnv()
	_, _, _ = e.Dispatch([]string{"alias", "ll=ls -la"})
	out.Reset()
	_, _, _ = e.Dispatch([]string{"alias"})
	assert.Contains(t, out.String(), "alias ll='ls -la'")
}

func TestExpandAliasSubstitutesHead(t *testing.T) {
	e, _ := newTestEnv()
	e.Aliases["ll"] = "ls -la"
	got := e.ExpandAlias([]string{"ll", "/tmp"})
	assert.Equal(t, []string{"ls", "-la", "/tmp"}, got)
}

func TestExpandAliasSelfReferentialStopsAfterOneStep(t *testing.T) {
	e, _ := newTestEnv()
	e.Aliases["ls"] = "ls --color"
	got := e.ExpandAlias([]string{"ls", "/tmp"})
	assert.Equal(t, []string{"ls", "--color", "/tmp"}, got)
}

func TestExpandAliasNoAliasIsNoop(t *testing.T) {
	e, _ := newTestEnv()
	got := e.ExpandAlias([]string{"echo", "hi"})
	assert.Equal(t, []string{"echo", "hi"}, got)
}

func TestExpandAliasIndirectCycleTerminates(t *testing.T) {
	e, _ := newTestEnv()
	e.Aliases["a"] = "b"
	e.Aliases["b"] = "a"
	got := e.ExpandAlias([]string{"a"})
	assert.NotPanics(t, func() { _ = got })
	assert.LessOrEqual(t, len(got), maxAliasDepth+1)
}

func TestTryAutoCDNonDirectoryFalse(t *testing.T) {
	e, _ := newTestEnv()
	assert.False(t, e.TryAutoCD([]string{"not-a-real-directory-xyz"}))
}

func TestSourceMissingFileFails(t *testing.T) {
	e, out := newTestEnv()
	_, status, _ := e.Dispatch([]string{"source", "/no/such/file"})
	assert.Equal(t, 1, status)
	assert.Contains(t, out.String(), "cannot open")
}

func TestSourceEvaluatesAliasLine(t *testing.T) {
	e, _ := newTestEnv()
	afero.WriteFile(e.Fs, "/rc", []byte("alias g=git\n"), 0644)
	_, status, err := e.Dispatch([]string{"source", "/rc"})
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Equal(t, "git", e.Aliases["g"])
}

func TestEvalRCLineComment(t *testing.T) {
	e, out := newTestEnv()
	EvalRCLine(e, "# just a comment")
	assert.Empty(t, out.String())
	assert.Empty(t, e.Aliases)
}

func TestEvalRCLineSetprompt(t *testing.T) {
	e, _ := newTestEnv()
	EvalRCLine(e, `setprompt "my> "`)
	assert.Equal(t, "my> ", e.Getenv("MINISHELL_PROMPT"))
}

func TestLoadRCMissingHomeIsNoop(t *testing.T) {
	e, out := newTestEnv()
	e.Getenv = func(string) string { return "" }
	LoadRC(e)
	assert.Empty(t, out.String())
}
