package expand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExpander(env map[string]string, run Runner) *Expander {
	return &Expander{
		Getenv: func(k string) string { return env[k] },
		Run:    run,
	}
}

func TestExpandTildeHome(t *testing.T) {
	e := newTestExpander(map[string]string{"HOME": "/home/alice"}, nil)
	got, err := e.Expand("~/projects")
	require.NoError(t, err)
	assert.Equal(t, []string{"/home/alice/projects"}, got)
}

func TestExpandTildeAloneIsHome(t *testing.T) {
	e := newTestExpander(map[string]string{"HOME": "/home/alice"}, nil)
	got, err := e.Expand("~")
	require.NoError(t, err)
	assert.Equal(t, []string{"/home/alice"}, got)
}

func TestExpandTildeMidWordIsLiteral(t *testing.T) {
	e := newTestExpander(map[string]string{"HOME": "/home/alice"}, nil)
	got, err := e.Expand("a~b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a~b"}, got)
}

func TestExpandParameterBraced(t *testing.T) {
	e := newTestExpander(map[string]string{"FOO": "bar"}, nil)
	got, err := e.Expand("${FOO}baz")
	require.NoError(t, err)
	assert.Equal(t, []string{"barbaz"}, got)
}

func TestExpandParameterBare(t *testing.T) {
	e := newTestExpander(map[string]string{"FOO": "bar"}, nil)
	got, err := e.Expand("$FOO")
	require.NoError(t, err)
	assert.Equal(t, []string{"bar"}, got)
}

func TestExpandUnknownParameterIsEmpty(t *testing.T) {
	e := newTestExpander(map[string]string{}, nil)
	got, err := e.Expand("$MISSING")
	require.NoError(t, err)
	assert.Equal(t, []string{""}, got)
}

func TestExpandBacktickCommandSubst(t *testing.T) {
	e := newTestExpander(nil, func(cmdline string) (string, error) {
		assert.Equal(t, "echo hi", cmdline)
		return "hi\n", nil
	})
	got, err := e.Expand("`echo hi`")
	require.NoError(t, err)
	assert.Equal(t, []string{"hi"}, got)
}

func TestExpandDollarParenCommandSubst(t *testing.T) {
	e := newTestExpander(nil, func(cmdline string) (string, error) {
		return "out", nil
	})
	got, err := e.Expand("pre$(cmd)post")
	require.NoError(t, err)
	assert.Equal(t, []string{"preoutpost"}, got)
}

func TestExpandCommandSubstPropagatesError(t *testing.T) {
	e := newTestExpander(nil, func(cmdline string) (string, error) {
		return "", assert.AnError
	})
	_, err := e.Expand("$(fail)")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestExpandGlobNoMatchIsLiteral(t *testing.T) {
	e := newTestExpander(nil, nil)
	got, err := e.Expand("/no/such/path/*.nonexistent")
	require.NoError(t, err)
	assert.Equal(t, []string{"/no/such/path/*.nonexistent"}, got)
}
