package calc

import (
	"bytes"
	"context"
	"os/exec"

	"golang.org/x/sync/errgroup"
)

// Scheduler is the external-execution contract spec.md §6 asks for: a
// swappable way to actually run a process, a shell command, or a thread
// body, kept entirely outside the scheduling core (Session.Eval never
// imports this file's concerns, it only ever sees the plain Go values a
// rule's function returns).
//
// A rule function that wants an external effect calls RunProcess /
// RunShell / RunThread directly. RunProcess and RunShell look up the
// active session's configured Scheduler (or fall back to
// DefaultScheduler); RunThread does not consult a Scheduler and always
// runs its body on its own goroutine. The lookup works the same way
// runner.go's teleport-plugins counterpart (poller.go) looks up its
// configured event source before polling.
type Scheduler interface {
	RunProcess(ctx context.Context, name string, args []string) ([]byte, error)
	RunShell(ctx context.Context, script string) ([]byte, error)
}

// DefaultScheduler runs processes and shell commands with os/exec,
// terminating the child if ctx is cancelled (spec.md §6: "the runner
// must terminate the child process and re-raise").
type DefaultScheduler struct{}

func (DefaultScheduler) RunProcess(ctx context.Context, name string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.Bytes(), wrap(ErrComposite, "run_process %s: %v", name, err)
	}
	return out.Bytes(), nil
}

func (DefaultScheduler) RunShell(ctx context.Context, script string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.Bytes(), wrap(ErrComposite, "run_shell: %v", err)
	}
	return out.Bytes(), nil
}

func schedulerFor(s *Session) Scheduler {
	if sched, ok := s.storage["scheduler"].(Scheduler); ok {
		return sched
	}
	return DefaultScheduler{}
}

// RunProcess runs an external command on the active session's scheduler.
// Rule bodies call this instead of os/exec directly so that tests can
// substitute a fake Scheduler via Session.SetStorage("scheduler", ...).
func RunProcess(ctx context.Context, name string, args []string) ([]byte, error) {
	s, err := ActiveSession()
	if err != nil {
		return nil, err
	}
	return schedulerFor(s).RunProcess(ctx, name, args)
}

// RunShell runs a shell script on the active session's scheduler.
func RunShell(ctx context.Context, script string) ([]byte, error) {
	s, err := ActiveSession()
	if err != nil {
		return nil, err
	}
	return schedulerFor(s).RunShell(ctx, script)
}

// RunThread runs fn on its own goroutine and waits for it, cancelling fn
// via ctx if the caller's context is cancelled first. This is the
// contract stand-in for spec.md §6's "thread" runner: a cooperative
// scheduler has no use for a real thread pool, only for a body that can
// run concurrently with the calling rule and be cancelled cleanly, which
// is exactly what errgroup gives a single in-flight call.
func RunThread(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	g, gctx := errgroup.WithContext(ctx)
	var result any
	g.Go(func() error {
		v, err := fn(gctx)
		result = v
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, wrap(ErrComposite, "run_thread: %v", err)
	}
	return result, nil
}
