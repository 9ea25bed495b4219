// Package expand applies tilde, command-substitution, parameter, and glob
// expansion to a single token, in that order.
package expand

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
)

// Runner executes a command line the way a nested shell would and returns
// its captured standard output (with trailing newlines stripped by the
// caller). It is the seam command substitution uses to re-enter the
// Pipeline Executor without expand importing executor directly.
type Runner func(cmdline string) (string, error)

// Expander holds the environment lookups expansion needs. The zero value
// is not usable; construct with New.
type Expander struct {
	Getenv func(string) string
	Run    Runner
}

// New builds an Expander backed by the real process environment and the
// given command runner for command substitution.
func New(run Runner) *Expander {
	return &Expander{Getenv: os.Getenv, Run: run}
}

// Expand applies tilde, command substitution, and parameter expansion to
// word, then glob-expands the result. Glob is the only step that can
// produce more than one resulting word.
func (e *Expander) Expand(word string) ([]string, error) {
	s := e.tilde(word)

	s, err := e.commandSubst(s)
	if err != nil {
		return nil, err
	}

	s = e.parameter(s)

	return glob(s), nil
}

func (e *Expander) tilde(s string) string {
	if s == "" || s[0] != '~' {
		return s
	}
	if len(s) == 1 || s[1] == '/' {
		home := e.Getenv("HOME")
		if home == "" {
			if u, err := user.Current(); err == nil {
				home = u.HomeDir
			}
		}
		if home != "" {
			return home + s[1:]
		}
	}
	return s
}

// commandSubst replaces `...` and $(...) spans with the captured stdout of
// running the enclosed text. Nesting of $() beyond one level is not
// required; an unmatched opener is left literal.
func (e *Expander) commandSubst(s string) (string, error) {
	var out strings.Builder
	for i := 0; i < len(s); {
		switch {
		case s[i] == '`':
			j := strings.IndexByte(s[i+1:], '`')
			if j < 0 {
				out.WriteByte(s[i])
				i++
				continue
			}
			j += i + 1
			rep, err := e.substitute(s[i+1 : j])
			if err != nil {
				return "", err
			}
			out.WriteString(rep)
			i = j + 1

		case i+1 < len(s) && s[i] == '$' && s[i+1] == '(':
			j := strings.IndexByte(s[i+2:], ')')
			if j < 0 {
				out.WriteByte(s[i])
				i++
				continue
			}
			j += i + 2
			rep, err := e.substitute(s[i+2 : j])
			if err != nil {
				return "", err
			}
			out.WriteString(rep)
			i = j + 1

		default:
			out.WriteByte(s[i])
			i++
		}
	}
	return out.String(), nil
}

func (e *Expander) substitute(cmdline string) (string, error) {
	if e.Run == nil {
		return "", nil
	}
	out, err := e.Run(cmdline)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\r\n"), nil
}

var identRunes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_"

// parameter replaces ${NAME}, $NAME, and $$ with environment values.
func (e *Expander) parameter(s string) string {
	var out strings.Builder
	for i := 0; i < len(s); {
		if s[i] != '$' {
			out.WriteByte(s[i])
			i++
			continue
		}

		if i+1 < len(s) && s[i+1] == '$' {
			out.WriteString(strconv.Itoa(os.Getpid()))
			i += 2
			continue
		}

		if i+1 < len(s) && s[i+1] == '{' {
			j := strings.IndexByte(s[i+2:], '}')
			if j < 0 {
				out.WriteByte(s[i])
				i++
				continue
			}
			j += i + 2
			name := s[i+2 : j]
			out.WriteString(e.Getenv(name))
			i = j + 1
			continue
		}

		if i+1 < len(s) && isIdentStart(s[i+1]) {
			j := i + 1
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			name := s[i+1 : j]
			out.WriteString(e.Getenv(name))
			i = j
			continue
		}

		out.WriteByte(s[i])
		i++
	}
	return out.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return strings.IndexByte(identRunes, c) >= 0
}

// glob expands s against the filesystem. No match expands to the literal
// single-element slice containing s — never an error.
func glob(s string) []string {
	matches, err := filepath.Glob(s)
	if err != nil || len(matches) == 0 {
		return []string{s}
	}
	return matches
}
