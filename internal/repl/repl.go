// Package repl drives the read-eval-print loop: it wires the line
// splitter, tokenizer, expander, redirection parser, built-in dispatcher,
// and pipeline executor together around one shellctx.Context.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"minishell/internal/builtin"
	"minishell/internal/executor"
	"minishell/internal/expand"
	"minishell/internal/job"
	"minishell/internal/lexer"
	"minishell/internal/prompt"
	"minishell/internal/redir"
	"minishell/internal/shellctx"
	"minishell/internal/token"
)

// REPL owns the pipeline of collaborators a single input line passes
// through.
type REPL struct {
	ctx      *shellctx.Context
	exec     *executor.Executor
	builtins *builtin.Env
	expander *expand.Expander
	in       *bufio.Reader
	out      io.Writer
}

// New builds a REPL reading from stdin. The expander's command-substitution
// Runner re-enters r.exec.Capture, so command substitution is handled by the
// shell's own pipeline executor rather than an external shell.
func New(ctx *shellctx.Context) *REPL {
	r := &REPL{
		ctx: ctx,
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
	}
	r.exec = executor.New(ctx.Jobs, ctx)
	r.builtins = builtin.New(ctx.Jobs, ctx, ctx.Fs)
	r.expander = expand.New(r.runSubst)
	return r
}

func (r *REPL) runSubst(cmdline string) (string, error) {
	p, err := r.buildPipeline(cmdline)
	if err != nil {
		return "", err
	}
	return r.exec.Capture(p)
}

// Run reads lines until EOF or the exit builtin, forwarding SIGINT to
// whatever pipeline currently holds the terminal (§5's "forward, don't
// handle" discipline) and printing a newline when nothing is running.
func (r *REPL) Run() int {
	builtin.LoadRC(r.builtins)

	sigChan := make(chan os.Signal, 8)
	signal.Notify(sigChan, syscall.SIGINT)
	go func() {
		for range sigChan {
			if r.ctx.HasTerminal() && r.ctx.CurrentForeground() > 0 {
				r.ctx.ForwardSignal(unix.SIGINT)
			} else {
				fmt.Fprint(r.out, "\n")
			}
		}
	}()

	for {
		fmt.Fprint(r.out, prompt.Build(r.ctx.LastStatus))

		line, err := r.in.ReadString('\n')
		if err != nil {
			if line == "" {
				fmt.Fprintln(r.out)
				return r.ctx.LastStatus
			}
		}

		status, exit := r.evalLine(line)
		r.ctx.LastStatus = status
		if exit {
			return status
		}
	}
}

// RunOnce evaluates a single command line, for -c COMMAND (§6).
func (r *REPL) RunOnce(line string) int {
	status, _ := r.evalLine(line)
	return status
}

func (r *REPL) evalLine(line string) (status int, exit bool) {
	stages, background, err := lexer.Split(line)
	if err != nil {
		if errors.Is(err, lexer.ErrEmptyStage) && trimEmpty(line) {
			return 0, false
		}
		fmt.Fprintln(os.Stderr, "minishell:", err)
		return 1, false
	}

	p := executor.Pipeline{Background: background}
	for i, raw := range stages {
		words, err := token.Tokenize(raw)
		if err != nil {
			fmt.Fprintln(os.Stderr, "minishell:", err)
			return 1, false
		}

		if i == 0 {
			words = r.builtins.ExpandAlias(words)
		}

		var expanded []string
		for _, w := range words {
			ws, err := r.expander.Expand(w)
			if err != nil {
				fmt.Fprintln(os.Stderr, "minishell:", err)
				return 1, false
			}
			expanded = append(expanded, ws...)
		}

		clean, red, err := redir.Parse(expanded)
		if err != nil {
			fmt.Fprintln(os.Stderr, "minishell:", err)
			return 1, false
		}

		p.Stages = append(p.Stages, executor.Stage{Words: clean, Redir: red})
	}

	if len(p.Stages) == 1 && !p.Background {
		argv := p.Stages[0].Words
		if r.builtins.TryAutoCD(argv) {
			return 0, false
		}
		if handled, st, err := r.builtins.Dispatch(argv); handled {
			if errors.Is(err, builtin.ErrExit) {
				return st, true
			}
			return st, false
		}
	}

	res, err := r.exec.Run(p)
	if err != nil {
		return res.Status, false
	}
	return res.Status, false
}

// buildPipeline runs the same tokenize/alias/expand/redir pipeline as
// evalLine but returns the Pipeline instead of executing it, for command
// substitution's nested invocation.
func (r *REPL) buildPipeline(line string) (executor.Pipeline, error) {
	stages, background, err := lexer.Split(line)
	if err != nil {
		return executor.Pipeline{}, err
	}

	p := executor.Pipeline{Background: background}
	for i, raw := range stages {
		words, err := token.Tokenize(raw)
		if err != nil {
			return executor.Pipeline{}, err
		}
		if i == 0 {
			words = r.builtins.ExpandAlias(words)
		}
		var expanded []string
		for _, w := range words {
			ws, err := r.expander.Expand(w)
			if err != nil {
				return executor.Pipeline{}, err
			}
			expanded = append(expanded, ws...)
		}
		clean, red, err := redir.Parse(expanded)
		if err != nil {
			return executor.Pipeline{}, err
		}
		p.Stages = append(p.Stages, executor.Stage{Words: clean, Redir: red})
	}
	return p, nil
}

func trimEmpty(line string) bool {
	for _, c := range line {
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			return false
		}
	}
	return true
}

var _ job.TerminalController = (*shellctx.Context)(nil)
