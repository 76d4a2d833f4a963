package proc

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/gaspardpetit/lsrelay/internal/logx"
)

// DefaultGrace is how long Shutdown waits for the child to exit after
// a termination request before killing it.
const DefaultGrace = 5 * time.Second

// Process is a running downstream language server. The supervisor owns
// the three pipes and the exit status for the relay's lifetime; the
// child is always reaped on shutdown.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	waitOnce sync.Once
	waitErr  error
}

// Start launches the server with the current environment plus extraEnv
// and stdin/stdout/stderr as independent pipes. A command that cannot
// be located or executed is fatal to the relay; there is no retry.
func Start(command string, args []string, extraEnv []string) (*Process, error) {
	cmd := exec.Command(command, args...)
	cmd.Env = append(os.Environ(), extraEnv...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", command, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", command, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", command, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", command, err)
	}
	return &Process{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

// PID returns the child's process id.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Stdin is the server's protocol input.
func (p *Process) Stdin() io.WriteCloser { return p.stdin }

// Stdout is the server's protocol output.
func (p *Process) Stdout() io.ReadCloser { return p.stdout }

// ForwardStderr copies the child's stderr to dst until the pipe
// closes. The copy is unbounded and never touches the protocol
// streams; callers run it in its own goroutine for the child's
// lifetime.
func (p *Process) ForwardStderr(dst io.Writer) {
	if _, err := io.Copy(dst, p.stderr); err != nil {
		logx.Log.Debug().Err(err).Msg("stderr copy ended")
	}
}

// Wait reaps the child, returning its exit error. Safe to call from
// multiple goroutines; the child is reaped exactly once.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() { p.waitErr = p.cmd.Wait() })
	return p.waitErr
}

// Shutdown closes the child's stdin, requests termination, waits up to
// grace, then kills. The exit status is always collected so no zombie
// is left behind.
func (p *Process) Shutdown(grace time.Duration) error {
	if grace <= 0 {
		grace = DefaultGrace
	}
	_ = p.stdin.Close()
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already exited; reap and return.
		return p.Wait()
	}

	done := make(chan error, 1)
	go func() { done <- p.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(grace):
		logx.Log.Warn().Int("pid", p.PID()).Dur("grace", grace).Msg("child ignored termination request; killing")
		_ = p.cmd.Process.Kill()
		return <-done
	}
}
