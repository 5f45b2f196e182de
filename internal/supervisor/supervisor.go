// Package supervisor runs the backend engine as a child process, drains its
// output into the gateway's log stream, and records how it exits. It never
// restarts the engine: on an unexpected exit the serving platform replaces
// the whole container, which is the only way to get the engine back into a
// known state.
package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/speechgate/asr-gateway/internal/observability"
)

const (
	// stopGrace is how long the engine gets between SIGTERM and SIGKILL.
	stopGrace = 10 * time.Second

	// logBuffer bounds the in-flight engine log lines. A stalled logger
	// drops engine output instead of blocking the engine's stdout pipe.
	logBuffer = 256
)

// Supervisor owns one engine process for the gateway's lifetime.
type Supervisor struct {
	cmd    *exec.Cmd
	logger zerolog.Logger

	mu       sync.Mutex
	exitCode int
	exited   bool

	doneCh chan struct{}
}

// Start launches the engine command and begins draining its output.
// The command string is split on whitespace; the engine's stderr is folded
// into its stdout so a single drain loop sees everything.
func Start(ctx context.Context, command string, logger zerolog.Logger) (*Supervisor, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty engine command")
	}

	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)

	// The engine may spawn workers; put them all in one process group so
	// shutdown reaches every descendant.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = stopGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Supervisor{
		cmd:    cmd,
		logger: logger.With().Str("component", "engine").Int("pid", cmd.Process.Pid).Logger(),
		doneCh: make(chan struct{}),
	}
	s.logger.Info().Str("command", command).Msg("Engine process started")

	lines := make(chan string, logBuffer)

	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		defer close(lines)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			default:
				// Drop rather than stall the engine.
			}
		}
	}()

	go func() {
		for line := range lines {
			s.logger.Info().Msg(line)
		}
	}()

	go func() {
		<-scanDone
		err := cmd.Wait()
		s.recordExit(err)
		close(s.doneCh)
	}()

	return s, nil
}

func (s *Supervisor) recordExit(err error) {
	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		code = -1
	}

	s.mu.Lock()
	s.exitCode = code
	s.exited = true
	s.mu.Unlock()

	event := s.logger.Info()
	if code != 0 {
		event = s.logger.Error().Err(err)
	}
	observability.RecordEngineExit(code)
	event.Int("exit_code", code).Msg("Engine process exited")
}

// Done is closed once the engine process has exited and its output has been
// fully drained.
func (s *Supervisor) Done() <-chan struct{} {
	return s.doneCh
}

// ExitCode reports the engine's exit code. The second return is false while
// the engine is still running.
func (s *Supervisor) ExitCode() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode, s.exited
}

// Stop terminates the engine's process group and waits for the exit to be
// recorded, up to the grace period plus a margin.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	exited := s.exited
	s.mu.Unlock()
	if exited {
		return
	}

	if err := syscall.Kill(-s.cmd.Process.Pid, syscall.SIGTERM); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to signal engine process group")
	}

	select {
	case <-s.doneCh:
	case <-time.After(stopGrace + 5*time.Second):
		s.logger.Error().Msg("Engine did not exit within the grace period")
		_ = syscall.Kill(-s.cmd.Process.Pid, syscall.SIGKILL)
	}
}
