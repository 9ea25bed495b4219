// Package shellctx owns the shell's process-wide state: its pgid, terminal
// ownership, and the exit status of the most recent line, plus the signal wiring
// that keeps the Job Table current.
package shellctx

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"minishell/internal/job"
)

// Context is the single value that replaces the source's file-scope
// g_shell_pgid/g_jobs globals. main constructs one; the SIGCHLD goroutine
// reaches its Jobs table through a closure, which is the idiomatic Go
// substitute for a process-wide pointer reached from a signal handler.
type Context struct {
	ShellPGID  int
	HasTTY     bool
	Fs         afero.Fs
	Jobs       *job.Table
	LastStatus int

	fgMu   sync.RWMutex
	fgPGID int

	stdinFd int
}

// New captures the shell's own pgid, detects whether stdin is a real
// terminal, and installs the terminal- and job-control signal
// dispositions described in §5. HasTTY gates every ioctl below — a shell
// whose stdin is not a terminal (for example, one fed a script on a pipe)
// never owns a controlling terminal. The check looks at stdin only, so a
// -c invocation from an interactive terminal still engages job control.
func New() *Context {
	ctx := &Context{
		Fs:      afero.NewOsFs(),
		Jobs:    job.NewTable(),
		fgPGID:  -1,
		stdinFd: int(os.Stdin.Fd()),
	}

	ctx.HasTTY = term.IsTerminal(ctx.stdinFd)

	if ctx.HasTTY {
		_ = unix.Setpgid(0, 0)
		ctx.ShellPGID, _ = unix.Getpgid(0)
		_ = unix.IoctlSetInt(ctx.stdinFd, unix.TIOCSPGRP, ctx.ShellPGID)

		signal.Ignore(syscall.SIGTTIN, syscall.SIGTTOU)
	}

	return ctx
}

// InstallSIGCHLD starts the goroutine that reconciles the Job Table on
// every SIGCHLD delivery. Go has no async-signal-safe handler context, so
// the "do only the minimum in the handler" discipline from §5 is met by
// keeping this goroutine's body to nothing but the reconciliation call.
// The Job Table owns the underlying channel itself so that Fg/Bg can pause
// delivery for the duration of their own waitpid calls (§5's "mask SIGCHLD
// during fg/bg/list" policy).
func (c *Context) InstallSIGCHLD() {
	c.Jobs.Watch()
}

// SetForeground gives the controlling terminal to pgid. It is a no-op
// when the shell has no controlling terminal.
func (c *Context) SetForeground(pgid int) error {
	if !c.HasTTY {
		return nil
	}
	c.fgMu.Lock()
	c.fgPGID = pgid
	c.fgMu.Unlock()
	return unix.IoctlSetInt(c.stdinFd, unix.TIOCSPGRP, pgid)
}

// ReclaimForeground returns the controlling terminal to the shell's own
// pgid (P4).
func (c *Context) ReclaimForeground() error {
	if !c.HasTTY {
		return nil
	}
	c.fgMu.Lock()
	c.fgPGID = -1
	c.fgMu.Unlock()
	return unix.IoctlSetInt(c.stdinFd, unix.TIOCSPGRP, c.ShellPGID)
}

// HasTerminal reports whether the shell owns a controlling terminal.
func (c *Context) HasTerminal() bool {
	return c.HasTTY
}

// CurrentForeground reports the pgid currently holding the terminal on
// the shell's behalf, or -1 if the shell itself is foreground.
func (c *Context) CurrentForeground() int {
	c.fgMu.RLock()
	defer c.fgMu.RUnlock()
	return c.fgPGID
}

// ForwardSignal delivers sig to whichever pgid currently owns the
// terminal, used by the REPL's own SIGINT handling to relay
// keyboard signals the same way the tty driver would if the shell weren't
// standing in the way of Go's signal API.
func (c *Context) ForwardSignal(sig unix.Signal) {
	pgid := c.CurrentForeground()
	if pgid > 0 {
		_ = unix.Kill(-pgid, sig)
	}
}
