package builtin

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// EvalRCLine evaluates one line of the restricted rc dialect used by both
// ~/.minishellrc and the source/. builtin: alias, export, echo, setprompt,
// and "#" comments. Anything else is silently ignored — this is not the
// full shell grammar.
func EvalRCLine(e *Env, line string) {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	switch {
	case strings.HasPrefix(line, "alias "):
		rest := strings.TrimSpace(line[len("alias "):])
		k, v, ok := strings.Cut(rest, "=")
		if ok {
			e.Aliases[strings.TrimSpace(k)] = unquote(strings.TrimSpace(v))
		}

	case strings.HasPrefix(line, "export "):
		rest := strings.TrimSpace(line[len("export "):])
		k, v, ok := strings.Cut(rest, "=")
		if ok {
			_ = e.Setenv(strings.TrimSpace(k), strings.TrimSpace(v))
		}

	case strings.HasPrefix(line, "echo "):
		fmt.Fprintln(e.Stdout, line[len("echo "):])

	case strings.HasPrefix(line, "setprompt "):
		v := unquote(strings.TrimSpace(line[len("setprompt "):]))
		_ = e.Setenv("MINISHELL_PROMPT", v)
	}
}

// EvalRCReader evaluates every line read from r.
func EvalRCReader(e *Env, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		EvalRCLine(e, scanner.Text())
	}
}

// LoadRC reads ~/.minishellrc once at startup, per §6. A missing file is
// not an error.
func LoadRC(e *Env) {
	home := e.Getenv("HOME")
	if home == "" {
		return
	}
	f, err := e.Fs.Open(home + "/.minishellrc")
	if err != nil {
		return
	}
	defer f.Close()
	EvalRCReader(e, f)
}
