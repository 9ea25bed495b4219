// Package job tracks background and stopped jobs across SIGCHLD deliveries
// and implements the fg/bg resumption primitives.
package job

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrNotFound is returned by Fg/Bg when the requested job id is unknown.
var ErrNotFound = errors.New("job: not found")

// State is one of a Job's three lifecycle states.
type State int

const (
	Running State = iota
	Stopped
	Done
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "done"
	}
}

// Job is one pipeline the shell is tracking by process group.
type Job struct {
	ID      int
	PGID    int
	Cmdline string
	State   State

	pending map[int]bool // pids under PGID not yet reaped
}

// TerminalController is the seam Fg/Bg use to move the controlling
// terminal without job importing the terminal/session package directly.
type TerminalController interface {
	SetForeground(pgid int) error
	ReclaimForeground() error
}

// Table is the process-wide mapping from job id to Job. It is safe for
// concurrent use by the REPL goroutine and the SIGCHLD-reconciliation
// goroutine.
type Table struct {
	mu     sync.Mutex
	jobs   map[int]*Job
	order  []int
	nextID int

	sigCh chan os.Signal
}

// NewTable returns an empty job table with ids starting at 1.
func NewTable() *Table {
	return &Table{jobs: make(map[int]*Job), nextID: 1, sigCh: make(chan os.Signal, 8)}
}

// Watch starts reconciling the table on every SIGCHLD delivery. Fg and Bg
// pause this same channel for the span of their own waitpid calls, so
// there is only ever one goroutine draining wait status for a given pgid
// at a time.
func (t *Table) Watch() {
	signal.Notify(t.sigCh, syscall.SIGCHLD)
	go func() {
		for range t.sigCh {
			t.Reconcile()
		}
	}()
}

// pauseReap stops routing SIGCHLD to the Reconcile goroutine so a caller
// can safely waitpid a specific pgid itself without racing Reconcile's
// wait4(-1, ...) for the same child.
func (t *Table) pauseReap() {
	signal.Stop(t.sigCh)
}

func (t *Table) resumeReap() {
	signal.Notify(t.sigCh, syscall.SIGCHLD)
}

// Add records a newly launched background pipeline and returns its Job.
// pids lists every process id sharing pgid; the job is not marked Done
// until every one of them has been reaped (see Reconcile).
func (t *Table) Add(pgid int, cmdline string, pids []int) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	pending := make(map[int]bool, len(pids))
	for _, p := range pids {
		pending[p] = true
	}

	j := &Job{
		ID:      t.nextID,
		PGID:    pgid,
		Cmdline: cmdline,
		State:   Running,
		pending: pending,
	}
	t.jobs[j.ID] = j
	t.order = append(t.order, j.ID)
	t.nextID++
	return j
}

// List returns a snapshot of the current jobs in id order.
func (t *Table) List() []Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Job, 0, len(t.order))
	for _, id := range t.order {
		if j, ok := t.jobs[id]; ok {
			out = append(out, *j)
		}
	}
	return out
}

// Get looks up a job by id.
func (t *Table) Get(id int) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

func (t *Table) findByPGID(pgid int) *Job {
	for _, id := range t.order {
		if j, ok := t.jobs[id]; ok && j.PGID == pgid {
			return j
		}
	}
	return nil
}

func (t *Table) remove(pgid int) {
	for i, id := range t.order {
		if j, ok := t.jobs[id]; ok && j.PGID == pgid {
			delete(t.jobs, id)
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

// Reconcile drains reap-able children with WNOHANG|WUNTRACED|WCONTINUED
// and updates job state accordingly. It is meant to be called from the
// goroutine that receives SIGCHLD notifications.
func (t *Table) Reconcile() {
	t.mu.Lock()
	defer t.mu.Unlock()

	var status unix.WaitStatus
	for {
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED, nil)
		if err != nil || pid <= 0 {
			return
		}

		pgid, err := unix.Getpgid(pid)
		if err != nil {
			// The process is already fully gone; fall back to matching by pid.
			pgid = -1
		}

		var j *Job
		if pgid > 0 {
			j = t.findByPGID(pgid)
		}
		if j == nil {
			for _, id := range t.order {
				if cand := t.jobs[id]; cand.pending[pid] {
					j = cand
					break
				}
			}
		}
		if j == nil {
			continue
		}

		switch {
		case status.Stopped():
			j.State = Stopped
		case status.Continued():
			j.State = Running
		case status.Exited() || status.Signaled():
			delete(j.pending, pid)
			if len(j.pending) == 0 {
				j.State = Done
				t.remove(j.PGID)
			}
		}
	}
}

// Fg brings job id into the foreground: it hands the terminal to the job's
// pgid, sends SIGCONT, blocks until the pipeline exits or stops again, and
// reclaims the terminal for the shell.
func (t *Table) Fg(id int, tc TerminalController) error {
	t.mu.Lock()
	j, ok := t.jobs[id]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("fg: %d: %w", id, ErrNotFound)
	}

	t.pauseReap()
	defer t.resumeReap()

	if err := tc.SetForeground(j.PGID); err != nil {
		return err
	}
	_ = unix.Kill(-j.PGID, unix.SIGCONT)

	var status unix.WaitStatus
	remaining := 1
	for remaining > 0 {
		pid, err := unix.Wait4(-j.PGID, &status, unix.WUNTRACED, nil)
		if err != nil || status.Stopped() {
			break
		}
		if status.Exited() || status.Signaled() {
			t.mu.Lock()
			delete(j.pending, pid)
			remaining = len(j.pending)
			t.mu.Unlock()
		}
	}

	_ = tc.ReclaimForeground()

	t.mu.Lock()
	defer t.mu.Unlock()
	if status.Stopped() {
		j.State = Stopped
		return nil
	}
	if len(j.pending) == 0 {
		t.remove(j.PGID)
	}
	return nil
}

// Bg resumes a stopped job in the background: SIGCONT to the pgid, marked
// Running, no wait.
func (t *Table) Bg(id int) error {
	t.mu.Lock()
	j, ok := t.jobs[id]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("bg: %d: %w", id, ErrNotFound)
	}

	t.pauseReap()
	defer t.resumeReap()

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := unix.Kill(-j.PGID, unix.SIGCONT); err != nil {
		return err
	}
	j.State = Running
	return nil
}
