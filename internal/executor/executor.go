// Package executor is the pipeline executor: it forks one child per
// pipeline stage, wires pipes and redirections, places every child in one
// shared process group, and hands or withholds the controlling terminal.
package executor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"minishell/internal/job"
	"minishell/internal/redir"
)

// Stage is one command within a pipeline: its expanded, redirection-free
// word list plus the redirections that apply to it.
type Stage struct {
	Words []string
	Redir redir.Redir
}

// Pipeline is an ordered, non-empty sequence of stages plus the
// background flag detected by the line splitter.
type Pipeline struct {
	Stages     []Stage
	Background bool
}

// Cmdline rejoins the pipeline's post-expansion words for job-table and
// jobs-listing display (§6).
func (p Pipeline) Cmdline() string {
	parts := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		parts[i] = strings.Join(s.Words, " ")
	}
	return strings.Join(parts, " | ")
}

// TerminalOwner is the seam the executor uses to give away and reclaim the
// controlling terminal, implemented by shellctx.Context.
type TerminalOwner interface {
	SetForeground(pgid int) error
	ReclaimForeground() error
	HasTerminal() bool
}

// Executor runs pipelines. Jobs receives newly launched background
// pipelines; Term governs terminal handoff.
type Executor struct {
	Jobs *job.Table
	Term TerminalOwner
}

// New builds an Executor.
func New(jobs *job.Table, term TerminalOwner) *Executor {
	return &Executor{Jobs: jobs, Term: term}
}

// Result is what Run reports back to the REPL.
type Result struct {
	Status       int
	Backgrounded bool
	JobID        int
	JobPGID      int
}

type pipeEnds struct{ r, w *os.File }

// Run executes p: it creates N-1 pipes up front, forks one child per
// stage (via os/exec, the idiomatic Go substitute for a bare fork+execvp),
// assigns every child to one process group, and either waits for the
// foreground pipeline or registers a background job and returns
// immediately.
func (e *Executor) Run(p Pipeline) (Result, error) {
	res, _, err := e.run(p, false)
	return res, err
}

// Capture runs p as an auxiliary child for command substitution (§4.2,
// §9): a foreground pipeline whose final stage's stdout — unless
// overridden by its own redirection — is captured instead of going to
// the shell's stdout, and which never touches the controlling terminal
// or the Job Table, since it is not part of the interactive job-control
// model.
func (e *Executor) Capture(p Pipeline) (string, error) {
	p.Background = false
	_, out, err := e.run(p, true)
	return out, err
}

func (e *Executor) run(p Pipeline, capture bool) (Result, string, error) {
	n := len(p.Stages)
	if n == 0 {
		return Result{Status: 0}, "", nil
	}

	pipes := make([]pipeEnds, n-1)
	for i := range pipes {
		r, w, err := os.Pipe()
		if err != nil {
			for j := 0; j < i; j++ {
				pipes[j].r.Close()
				pipes[j].w.Close()
			}
			return Result{Status: 1}, "", fmt.Errorf("pipe: %w", err)
		}
		pipes[i] = pipeEnds{r, w}
	}

	var captureR, captureW *os.File
	if capture {
		r, w, err := os.Pipe()
		if err != nil {
			res, err := abort(pipes, nil, fmt.Sprintf("pipe: %v", err))
			return res, "", err
		}
		captureR, captureW = r, w
		defer captureR.Close()
	}

	cmds := make([]*exec.Cmd, n)
	var pgid int
	haveLeader := false

	for i, stage := range p.Stages {
		if len(stage.Words) == 0 {
			// §4.6.b: an empty word list is a no-op stage that "exits 0";
			// we skip the fork entirely and close its share of the pipe
			// chain so neighbouring stages see EOF instead of blocking.
			cmds[i] = nil
			if i > 0 {
				pipes[i-1].r.Close()
			}
			if i < n-1 {
				pipes[i].w.Close()
			} else if capture {
				captureW.Close()
			}
			continue
		}

		cmd := exec.Command(stage.Words[0], stage.Words[1:]...)
		attr := &unix.SysProcAttr{Setpgid: true}
		if haveLeader {
			attr.Pgid = pgid
		}
		cmd.SysProcAttr = attr

		switch {
		case stage.Redir.In != "":
			f, err := os.OpenFile(stage.Redir.In, os.O_RDONLY, 0)
			if err != nil {
				res, err := abort(pipes, captureW, fmt.Sprintf("%s: %v", stage.Redir.In, err))
				return res, "", err
			}
			cmd.Stdin = f
			defer f.Close()
		case i > 0:
			cmd.Stdin = pipes[i-1].r
		case p.Background:
			devNull, err := os.Open(os.DevNull)
			if err != nil {
				res, err := abort(pipes, captureW, err.Error())
				return res, "", err
			}
			cmd.Stdin = devNull
			defer devNull.Close()
		default:
			cmd.Stdin = os.Stdin
		}

		switch {
		case stage.Redir.Out != "":
			flags := os.O_WRONLY | os.O_CREATE
			if stage.Redir.Append {
				flags |= os.O_APPEND
			} else {
				flags |= os.O_TRUNC
			}
			f, err := os.OpenFile(stage.Redir.Out, flags, 0644)
			if err != nil {
				res, err := abort(pipes, captureW, fmt.Sprintf("%s: %v", stage.Redir.Out, err))
				return res, "", err
			}
			cmd.Stdout = f
			defer f.Close()
		case i < n-1:
			cmd.Stdout = pipes[i].w
		case capture:
			cmd.Stdout = captureW
		default:
			cmd.Stdout = os.Stdout
		}

		cmd.Stderr = os.Stderr

		if err := startWithDefaultTTYSignals(cmd, e.Term.HasTerminal()); err != nil {
			var execErr *exec.Error
			if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
				closePipes(pipes, captureW)
				msg := fmt.Sprintf("execvp: %s: %s", execErr.Name, execErr.Err)
				fmt.Fprintln(os.Stderr, "minishell:", msg)
				return Result{Status: 127}, "", fmt.Errorf("%s", msg)
			}
			res, err := abort(pipes, captureW, fmt.Sprintf("start: %v", err))
			return res, "", err
		}
		cmds[i] = cmd

		if !haveLeader {
			pgid = cmd.Process.Pid
			haveLeader = true
		}
		// Race-free double-set: the child already asked to join pgid via
		// SysProcAttr; setting it again here from the parent is a no-op or
		// an ignorable EACCES/ESRCH if the child has already exec'd.
		_ = unix.Setpgid(cmd.Process.Pid, pgid)

		if i > 0 {
			pipes[i-1].r.Close()
		}
		if i < n-1 {
			pipes[i].w.Close()
		} else if capture {
			captureW.Close()
		}
	}

	if allNil(cmds) {
		return Result{Status: 0}, "", nil
	}

	pids := livePIDs(cmds)

	if p.Background {
		j := e.Jobs.Add(pgid, p.Cmdline(), pids)
		fmt.Printf("[%d] %d\n", j.ID, j.PGID)
		return Result{Status: 0, Backgrounded: true, JobID: j.ID, JobPGID: j.PGID}, "", nil
	}

	var captured []byte
	readDone := make(chan struct{})
	if capture {
		go func() {
			captured, _ = io.ReadAll(captureR)
			close(readDone)
		}()
	} else {
		_ = e.Term.SetForeground(pgid)
	}

	status := waitAll(cmds)

	if capture {
		<-readDone
	} else {
		_ = e.Term.ReclaimForeground()
	}

	return Result{Status: status}, string(captured), nil
}

// abort closes every still-open pipe end, including the command-substitution
// capture pipe when one is in play, when a mid-loop step fails, per §4.6's
// "Fork/Pipe" failure policy: children already forked are left to normal
// SIGCHLD reaping rather than killed.
func abort(pipes []pipeEnds, captureW *os.File, msg string) (Result, error) {
	closePipes(pipes, captureW)
	fmt.Fprintln(os.Stderr, "minishell:", msg)
	return Result{Status: 1}, fmt.Errorf("%s", msg)
}

func closePipes(pipes []pipeEnds, captureW *os.File) {
	for _, p := range pipes {
		if p.r != nil {
			p.r.Close()
		}
		if p.w != nil {
			p.w.Close()
		}
	}
	if captureW != nil {
		captureW.Close()
	}
}

func allNil(cmds []*exec.Cmd) bool {
	for _, c := range cmds {
		if c != nil {
			return false
		}
	}
	return true
}

func livePIDs(cmds []*exec.Cmd) []int {
	var pids []int
	for _, c := range cmds {
		if c != nil && c.Process != nil {
			pids = append(pids, c.Process.Pid)
		}
	}
	return pids
}

// waitAll waits for every started child and returns the shell-tail exit
// status convention: the last child's exit code, or 1 if it terminated
// abnormally.
func waitAll(cmds []*exec.Cmd) int {
	lastLive := -1
	for i, c := range cmds {
		if c != nil {
			lastLive = i
		}
	}

	status := 0
	for i, c := range cmds {
		if c == nil {
			continue
		}
		err := c.Wait()
		if i != lastLive {
			continue
		}
		switch exitErr := err.(type) {
		case nil:
			status = 0
		case *exec.ExitError:
			status = exitErr.ExitCode()
			if status < 0 {
				status = 1
			}
		default:
			status = 1
		}
	}
	return status
}

// startWithDefaultTTYSignals starts cmd with SIGTTIN/SIGTTOU momentarily
// restored to their default disposition in this process. Go's exec()
// preserves a SIG_IGN disposition across fork+exec (unlike an installed
// handler, which exec always resets to default); since shellctx.New
// ignores both signals for the shell's own benefit, a child forked while
// they are still SIG_IGN would inherit that ignore and could never be
// stopped by the tty driver. Resetting them for the instant of fork+exec
// and re-ignoring immediately after gives each child the default
// disposition §4.6 requires without needing a pre-exec hook Go's os/exec
// doesn't expose.
func startWithDefaultTTYSignals(cmd *exec.Cmd, hasTerminal bool) error {
	if !hasTerminal {
		return cmd.Start()
	}
	signal.Reset(syscall.SIGTTIN, syscall.SIGTTOU)
	defer signal.Ignore(syscall.SIGTTIN, syscall.SIGTTOU)
	return cmd.Start()
}
