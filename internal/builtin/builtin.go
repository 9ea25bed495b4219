// Package builtin implements the commands that must run in the shell
// process itself — cd, pwd, echo, export/unset, alias/unalias,
// source/., jobs/fg/bg, exit — plus alias expansion and auto-cd.
package builtin

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"minishell/internal/job"
	"minishell/internal/token"
)

// ErrExit is returned by Dispatch for the "exit" builtin; the REPL treats
// it as a request to end the loop rather than a failure.
var ErrExit = errors.New("builtin: exit requested")

const maxAliasDepth = 10

// Env is the Built-in Dispatcher's view of shell state: the alias table
// (§3's BuiltinEnv) plus the process/filesystem/job seams it needs. The
// zero value is not usable; construct with New.
type Env struct {
	Aliases map[string]string

	Fs afero.Fs

	Getenv   func(string) string
	Setenv   func(string, string) error
	Unsetenv func(string) error
	Chdir    func(string) error
	Getwd    func() (string, error)

	Jobs *job.Table
	Term job.TerminalController

	Stdout io.Writer
	Stderr io.Writer
}

// New builds an Env backed by the real process environment and fs, the
// same afero.Fs the owning shellctx.Context uses, so rc/source reads go
// through the one filesystem seam the whole shell shares.
func New(jobs *job.Table, term job.TerminalController, fs afero.Fs) *Env {
	return &Env{
		Aliases:  make(map[string]string),
		Fs:       fs,
		Getenv:   os.Getenv,
		Setenv:   os.Setenv,
		Unsetenv: os.Unsetenv,
		Chdir:    os.Chdir,
		Getwd:    os.Getwd,
		Jobs:     jobs,
		Term:     term,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}

// Dispatch runs argv if its head names a built-in, returning handled=true
// and the resulting exit status. handled=false means the caller should
// fall through to the pipeline executor.
func (e *Env) Dispatch(argv []string) (handled bool, status int, err error) {
	if len(argv) == 0 {
		return true, 0, nil
	}

	switch argv[0] {
	case "cd":
		return true, e.cd(argv), nil
	case "pwd":
		return true, e.pwd(), nil
	case "echo":
		return true, e.echo(argv), nil
	case "export":
		return true, e.export(argv), nil
	case "unset":
		return true, e.unset(argv), nil
	case "alias":
		return true, e.alias(argv), nil
	case "unalias":
		return true, e.unalias(argv), nil
	case "source", ".":
		return true, e.source(argv), nil
	case "jobs":
		return true, e.jobsList(), nil
	case "fg":
		return true, e.fg(argv), nil
	case "bg":
		return true, e.bg(argv), nil
	case "exit":
		return true, 0, ErrExit
	}

	return false, 0, nil
}

// TryAutoCD implements §4.5's auto-cd: a one-stage foreground command
// whose sole word names an existing directory chdirs into it.
func (e *Env) TryAutoCD(argv []string) bool {
	if len(argv) != 1 {
		return false
	}
	info, err := os.Stat(argv[0])
	if err != nil || !info.IsDir() {
		return false
	}
	if err := e.Chdir(argv[0]); err != nil {
		fmt.Fprintln(e.Stderr, "cd:", err)
	}
	return true
}

// ExpandAlias replaces the head word of a single-stage command with a
// tokenization of its alias body, prepended to the remaining arguments.
// If the body's own head word equals the original head, it expands once
// and stops (so `alias ls='ls --color'` doesn't recurse). A depth counter
// bounded at maxAliasDepth (P7) guards indirect recursion.
func (e *Env) ExpandAlias(argv []string) []string {
	seen := make(map[string]bool)
	for depth := 0; depth < maxAliasDepth; depth++ {
		if len(argv) == 0 {
			return argv
		}
		body, ok := e.Aliases[argv[0]]
		if !ok {
			return argv
		}
		body = strings.TrimSpace(body)
		if body == "" {
			return argv
		}

		head, err := token.Tokenize(body)
		if err != nil || len(head) == 0 {
			return argv
		}

		expanded := append(append([]string{}, head...), argv[1:]...)
		if head[0] == argv[0] {
			return expanded
		}
		if seen[head[0]] {
			return expanded
		}
		seen[argv[0]] = true
		argv = expanded
	}
	return argv
}

func (e *Env) cd(argv []string) int {
	target := ""
	if len(argv) > 1 {
		target = argv[1]
	} else {
		target = e.Getenv("HOME")
	}
	if target == "" {
		target = "/"
	}
	if err := e.Chdir(target); err != nil {
		fmt.Fprintln(e.Stderr, "cd:", err)
		return 1
	}
	return 0
}

func (e *Env) pwd() int {
	dir, err := e.Getwd()
	if err != nil {
		fmt.Fprintln(e.Stderr, "pwd:", err)
		return 1
	}
	fmt.Fprintln(e.Stdout, dir)
	return 0
}

func (e *Env) echo(argv []string) int {
	fmt.Fprintln(e.Stdout, strings.Join(argv[1:], " "))
	return 0
}

func (e *Env) export(argv []string) int {
	for _, arg := range argv[1:] {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			continue
		}
		_ = e.Setenv(k, v)
	}
	return 0
}

func (e *Env) unset(argv []string) int {
	for _, name := range argv[1:] {
		_ = e.Unsetenv(name)
	}
	return 0
}

func (e *Env) alias(argv []string) int {
	if len(argv) == 1 {
		for name, body := range e.Aliases {
			fmt.Fprintf(e.Stdout, "alias %s='%s'\n", name, body)
		}
		return 0
	}
	for _, arg := range argv[1:] {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			continue
		}
		e.Aliases[k] = unquote(v)
	}
	return 0
}

func (e *Env) unalias(argv []string) int {
	if len(argv) > 1 {
		delete(e.Aliases, argv[1])
	}
	return 0
}

func (e *Env) source(argv []string) int {
	if len(argv) < 2 {
		fmt.Fprintln(e.Stderr, "source: missing filename")
		return 1
	}
	f, err := e.Fs.Open(argv[1])
	if err != nil {
		fmt.Fprintf(e.Stderr, "%s: cannot open %s\n", argv[0], argv[1])
		return 1
	}
	defer f.Close()
	EvalRCReader(e, f)
	return 0
}

func (e *Env) jobsList() int {
	list := e.Jobs.List()
	if len(list) == 0 {
		fmt.Fprintln(e.Stdout, "No background jobs.")
		return 0
	}
	for _, j := range list {
		fmt.Fprintf(e.Stdout, "[%d] %d  %s  %s\n", j.ID, j.PGID, j.State, j.Cmdline)
	}
	return 0
}

func (e *Env) fg(argv []string) int {
	id, err := parseJobID(argv)
	if err != nil {
		fmt.Fprintln(e.Stderr, "fg:", err)
		return 1
	}
	if err := e.Jobs.Fg(id, e.Term); err != nil {
		fmt.Fprintln(e.Stderr, err)
		return 1
	}
	return 0
}

func (e *Env) bg(argv []string) int {
	id, err := parseJobID(argv)
	if err != nil {
		fmt.Fprintln(e.Stderr, "bg:", err)
		return 1
	}
	if err := e.Jobs.Bg(id); err != nil {
		fmt.Fprintln(e.Stderr, err)
		return 1
	}
	if j, ok := e.Jobs.Get(id); ok {
		fmt.Fprintf(e.Stdout, "[%d] %d continued in background\n", j.ID, j.PGID)
	}
	return 0
}

func parseJobID(argv []string) (int, error) {
	if len(argv) < 2 {
		return 0, errors.New("missing job id")
	}
	return strconv.Atoi(argv[1])
}

func unquote(s string) string {
	if len(s) >= 2 {
		q := s[0]
		if (q == '\'' || q == '"') && s[len(s)-1] == q {
			return s[1 : len(s)-1]
		}
	}
	return s
}
