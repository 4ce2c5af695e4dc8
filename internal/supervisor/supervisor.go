// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"

	"trainctl/internal/issue"
	"trainctl/internal/launcher"
	"trainctl/internal/resolve"
	"trainctl/internal/trainenv"
)

// DefaultStopGrace is the wait between the polite stop signal and the
// forced kill when no grace period is configured.
const DefaultStopGrace = 5 * time.Second

// State is the supervisor's lifecycle position.
type State string

const (
	// StateIdle means no process is owned; starts are accepted.
	StateIdle State = "idle"
	// StateStarting means a start is in flight; further starts are refused.
	StateStarting State = "starting"
	// StateRunning means the training process is alive.
	StateRunning State = "running"
	// StateStopping means a stop sequence is in flight.
	StateStopping State = "stopping"
)

type (
	// Status is a point-in-time snapshot of the supervisor.
	Status struct {
		State      State     `json:"state"`
		PID        int       `json:"pid,omitempty"`
		StartedAt  time.Time `json:"started_at,omitempty"`
		Command    []string  `json:"command,omitempty"`
		ScriptPath string    `json:"script_path,omitempty"`
		// LastExitCode is the previous session's exit code; nil before the
		// first exit.
		LastExitCode *int   `json:"last_exit_code,omitempty"`
		LastError    string `json:"last_error,omitempty"`
	}

	// Options configures a Supervisor. Zero values get sensible defaults.
	Options struct {
		// Resolver locates the training script; nil uses the default
		// candidate list.
		Resolver *resolve.Resolver
		// EnvBuilder composes the child environment; nil uses the default.
		EnvBuilder trainenv.Builder
		// Generator produces the restricted-runtime bootstrap; nil disables
		// patching entirely.
		Generator *launcher.Generator
		// Restricted marks the host interpreter as needing the bootstrap.
		Restricted bool
		// IsolatedLibsDir is forwarded to env composition and the bootstrap.
		IsolatedLibsDir string
		// StopGrace overrides DefaultStopGrace.
		StopGrace time.Duration
		// UsePTY attaches the child to a pseudo-terminal.
		UsePTY bool
		// BaseEnv seeds the child environment; nil means os.Environ at
		// launch time.
		BaseEnv []string
		// Logger receives lifecycle messages; nil means the default logger.
		Logger *log.Logger
	}

	// Supervisor guards the single training process slot.
	Supervisor struct {
		opts  Options
		ring  *Ring
		relay *Relay

		mu           sync.Mutex
		state        State
		cmd          *exec.Cmd
		startedAt    time.Time
		command      []string
		scriptPath   string
		done         chan struct{}
		lastExitCode *int
		lastError    string
	}
)

// New creates an idle Supervisor.
func New(opts Options) *Supervisor {
	if opts.Resolver == nil {
		opts.Resolver = &resolve.Resolver{}
	}
	if opts.EnvBuilder == nil {
		opts.EnvBuilder = trainenv.NewDefaultBuilder()
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = DefaultStopGrace
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	ring := NewRing()
	return &Supervisor{
		opts:  opts,
		ring:  ring,
		relay: NewRelay(ring, opts.Logger),
		state: StateIdle,
	}
}

// Status returns a snapshot of the current lifecycle position.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Logs returns a copy of the buffered log lines, oldest first.
func (s *Supervisor) Logs() []string {
	return s.ring.Snapshot()
}

// Relay exposes the live log fan-out for streaming consumers.
func (s *Supervisor) Relay() *Relay {
	return s.relay
}

// Start launches the training command unless a session already exists.
// A start against a non-idle supervisor is a no-op: the current status is
// returned with started=false and a nil error, so callers can report
// "already running" without treating it as a failure.
func (s *Supervisor) Start(ctx context.Context, command []string, workDir string) (Status, bool, error) {
	if len(command) == 0 {
		return s.Status(), false, errors.New("empty training command")
	}

	s.mu.Lock()
	if s.state != StateIdle {
		st := s.statusLocked()
		s.mu.Unlock()
		return st, false, nil
	}
	s.state = StateStarting
	s.mu.Unlock()

	st, err := s.launch(ctx, command, workDir)
	if err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.lastError = err.Error()
		st = s.statusLocked()
		s.mu.Unlock()
		return st, false, err
	}
	return st, true, nil
}

// Stop ends the running session: polite signal, grace wait, forced kill.
// Stopping an idle supervisor is a no-op returning stopped=false. The
// supervisor always lands on idle once the process is gone.
func (s *Supervisor) Stop(ctx context.Context) (Status, bool, error) {
	s.mu.Lock()
	if s.state != StateRunning {
		st := s.statusLocked()
		s.mu.Unlock()
		return st, false, nil
	}
	s.state = StateStopping
	proc := s.cmd.Process
	done := s.done
	s.mu.Unlock()

	s.opts.Logger.Info("stopping training process", "pid", proc.Pid)
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		// Platforms without SIGTERM delivery go straight to the hard stop.
		_ = proc.Kill()
	}

	select {
	case <-done:
	case <-time.After(s.opts.StopGrace):
		s.opts.Logger.Warn("grace period elapsed, killing process", "pid", proc.Pid)
		_ = proc.Kill()
		select {
		case <-done:
		case <-ctx.Done():
			return s.Status(), false, ctx.Err()
		}
	case <-ctx.Done():
		_ = proc.Kill()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return s.Status(), true, ctx.Err()
	}

	return s.Status(), true, nil
}

// Wait blocks until the current session ends or ctx is cancelled. Against
// an idle supervisor it returns immediately.
func (s *Supervisor) Wait(ctx context.Context) (Status, error) {
	s.mu.Lock()
	done := s.done
	state := s.state
	s.mu.Unlock()

	if done == nil || state == StateIdle {
		return s.Status(), nil
	}
	select {
	case <-done:
		return s.Status(), nil
	case <-ctx.Done():
		return s.Status(), ctx.Err()
	}
}

// launch performs the start sequence outside the state lock. Any failure
// leaves no process behind.
func (s *Supervisor) launch(ctx context.Context, command []string, workDir string) (Status, error) {
	select {
	case <-ctx.Done():
		return Status{}, ctx.Err()
	default:
	}

	argv := append([]string(nil), command...)

	paths, err := s.opts.Resolver.Resolve(argv, workDir)
	if err != nil {
		return Status{}, issue.NewErrorContext().
			WithOperation("resolve training script").
			WithResource(workDir).
			WithSuggestion("Check that the training tool is installed under one of the known directories").
			WithSuggestion("Run 'trainctl check' to inspect the environment").
			Wrap(err).
			BuildError()
	}

	env := s.opts.EnvBuilder.Build(s.baseEnv(), paths, s.opts.IsolatedLibsDir)

	launcherPath := ""
	cleanup := func() {}
	if s.opts.Generator != nil {
		launcherPath, cleanup, err = s.opts.Generator.MaybeGenerate(s.opts.Restricted, paths, s.opts.IsolatedLibsDir)
		if err != nil {
			return Status{}, issue.WrapWithOperation(err, "generate runtime bootstrap")
		}
	}
	argv = launcher.Substitute(argv, launcherPath)

	lock, err := acquireRunLock()
	if err != nil {
		cleanup()
		return Status{}, err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = paths.ScriptDir
	cmd.Env = trainenv.ToSlice(env)

	var (
		reader  io.Reader
		pipeR   *io.PipeReader
		pipeW   *io.PipeWriter
		ptyFile *os.File
	)
	if s.opts.UsePTY {
		ptyFile, err = pty.Start(cmd)
		if err != nil {
			lock.Release()
			cleanup()
			return Status{}, s.spawnError(argv[0], err)
		}
		reader = ptyFile
	} else {
		pipeR, pipeW = io.Pipe()
		cmd.Stdout = pipeW
		cmd.Stderr = pipeW
		if err := cmd.Start(); err != nil {
			lock.Release()
			cleanup()
			return Status{}, s.spawnError(argv[0], err)
		}
		reader = pipeR
	}

	s.ring.Reset()
	relayDone := make(chan struct{})
	go func() {
		s.relay.Run(reader)
		// exec's copy goroutine blocks writing to an undrained pipe. Closing
		// the read end unblocks it, so cmd.Wait can return even when the
		// relay died before the child did.
		if pipeR != nil {
			_ = pipeR.Close()
		}
		close(relayDone)
	}()

	done := make(chan struct{})
	s.mu.Lock()
	s.state = StateRunning
	s.cmd = cmd
	s.startedAt = time.Now()
	s.command = argv
	s.scriptPath = paths.ScriptPath
	s.done = done
	s.lastError = ""
	st := s.statusLocked()
	s.mu.Unlock()

	s.opts.Logger.Info("training process started",
		"pid", cmd.Process.Pid, "script", paths.ScriptPath, "dir", paths.ScriptDir)

	go func() {
		waitErr := cmd.Wait()
		if pipeW != nil {
			_ = pipeW.Close()
		}
		if ptyFile != nil {
			_ = ptyFile.Close()
		}
		// The relay ends once its reader is closed; waiting for it keeps the
		// completion marker ordered after the child's final output.
		<-relayDone
		cleanup()
		lock.Release()

		code := exitCode(waitErr)
		if code == -1 && cmd.ProcessState != nil && cmd.ProcessState.Exited() {
			// Wait surfaced a relay-side pipe error; the real code is on the
			// process state.
			code = cmd.ProcessState.ExitCode()
		}
		s.relay.Announce(fmt.Sprintf("[process completed with exit code %d]", code))
		s.mu.Lock()
		s.lastExitCode = &code
		if waitErr != nil {
			s.lastError = waitErr.Error()
		}
		s.state = StateIdle
		s.cmd = nil
		s.mu.Unlock()
		close(done)

		s.opts.Logger.Info("training process exited", "code", code)
	}()

	return st, nil
}

func (s *Supervisor) spawnError(program string, err error) error {
	return issue.NewErrorContext().
		WithOperation("start training process").
		WithResource(program).
		WithSuggestion("Verify the interpreter path is correct and executable").
		WithSuggestion("Run 'trainctl check' to validate the environment").
		Wrap(err).
		BuildError()
}

func (s *Supervisor) baseEnv() []string {
	if s.opts.BaseEnv != nil {
		return s.opts.BaseEnv
	}
	return os.Environ()
}

func (s *Supervisor) statusLocked() Status {
	st := Status{
		State:        s.state,
		StartedAt:    s.startedAt,
		ScriptPath:   s.scriptPath,
		LastExitCode: s.lastExitCode,
		LastError:    s.lastError,
	}
	st.Command = append([]string(nil), s.command...)
	if s.cmd != nil && s.cmd.Process != nil {
		st.PID = s.cmd.Process.Pid
	}
	return st
}

// exitCode maps a Wait error to a numeric exit code. Spawn-layer failures
// that carry no code map to -1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}
