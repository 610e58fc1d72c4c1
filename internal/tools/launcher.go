// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// RunnerConfig describes how run_python_file launches a script.
type RunnerConfig struct {
	// Command is the runtime launcher, e.g. "uv".
	Command string
	// Args go between the launcher and the script path, e.g. ["run"].
	Args []string
	// Extension is the suffix a script must carry to be executed.
	Extension string
	// Language names the script kind in refusal messages.
	Language string
}

// DefaultRunnerConfig runs Python scripts through uv.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Command:   "uv",
		Args:      []string{"run"},
		Extension: ".py",
		Language:  "Python",
	}
}

func normalizeRunnerConfig(c RunnerConfig) RunnerConfig {
	defaults := DefaultRunnerConfig()
	if c.Command == "" {
		c.Command = defaults.Command
		if c.Args == nil {
			c.Args = defaults.Args
		}
	}
	if c.Extension == "" {
		c.Extension = defaults.Extension
	}
	if c.Language == "" {
		c.Language = defaults.Language
	}
	return c
}

// LaunchRequest is one subprocess invocation.
type LaunchRequest struct {
	Argv    []string
	Dir     string
	Timeout time.Duration
	// MaxOutputBytes bounds how much of each stream is kept in memory.
	MaxOutputBytes int
}

// LaunchResult carries the captured streams of a finished process.
type LaunchResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Truncated is set when either stream exceeded MaxOutputBytes.
	Truncated bool
}

// Launcher starts a subprocess and waits for it. A non-zero exit is reported
// through LaunchResult.ExitCode, not as an error; errors mean the process
// could not be started, timed out or was canceled.
type Launcher interface {
	Launch(ctx context.Context, req LaunchRequest) (LaunchResult, error)
}

const (
	defaultWaitDelay      = 2 * time.Second
	defaultMaxOutputBytes = 1 << 20
)

// ExecLauncher runs processes on the host with os/exec. The script runs in
// its own process group, and the group is killed once the script exits or
// times out, so background children never outlive the call.
type ExecLauncher struct {
	// WaitDelay bounds how long output pipes are drained after the script
	// exits, for descendants that escaped the process group.
	WaitDelay time.Duration
}

// Launch implements Launcher.
func (l ExecLauncher) Launch(ctx context.Context, req LaunchRequest) (LaunchResult, error) {
	if len(req.Argv) == 0 || req.Argv[0] == "" {
		return LaunchResult{}, fmt.Errorf("empty command")
	}

	runCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	waitDelay := l.WaitDelay
	if waitDelay <= 0 {
		waitDelay = defaultWaitDelay
	}
	maxOutput := req.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = defaultMaxOutputBytes
	}
	stdout := &limitedBuffer{max: maxOutput}
	stderr := &limitedBuffer{max: maxOutput}

	// The pipes are plain files so Wait returns as soon as the script exits,
	// even while a descendant still holds the write ends.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return LaunchResult{}, err
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return LaunchResult{}, err
	}

	cmd := exec.CommandContext(runCtx, req.Argv[0], req.Argv[1:]...)
	cmd.Dir = req.Dir
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	startErr := cmd.Start()
	stdoutW.Close()
	stderrW.Close()
	if startErr != nil {
		stdoutR.Close()
		stderrR.Close()
		return LaunchResult{}, startErr
	}

	drained := drainPipes(stdout, stdoutR, stderr, stderrR)
	waitErr := cmd.Wait()
	killProcessGroup(cmd)

	truncated := false
	select {
	case <-drained:
	case <-time.After(waitDelay):
		stdoutR.Close()
		stderrR.Close()
		<-drained
		truncated = true
	}
	stdoutR.Close()
	stderrR.Close()

	result := LaunchResult{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: truncated || stdout.Truncated() || stderr.Truncated(),
	}
	if waitErr == nil {
		return result, nil
	}

	if ctx.Err() != nil {
		return result, fmt.Errorf("%w: %v", ErrProcessCanceled, ctx.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return result, fmt.Errorf("%w after %s", ErrProcessTimeout, req.Timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if errors.Is(waitErr, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
		return result, nil
	}
	return result, waitErr
}

// drainPipes copies both streams into their buffers and closes the returned
// channel once both readers hit EOF or are closed.
func drainPipes(stdout *limitedBuffer, stdoutR io.Reader, stderr *limitedBuffer, stderrR io.Reader) <-chan struct{} {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(stdout, stdoutR)
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(stderr, stderrR)
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// limitedBuffer keeps the first max bytes written and silently drops the
// rest, so a chatty script cannot exhaust memory or block on a full pipe.
type limitedBuffer struct {
	mu        sync.Mutex
	buf       []byte
	max       int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room := b.max - len(b.buf)
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.buf = append(b.buf, p[:room]...)
		b.truncated = true
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func (b *limitedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
