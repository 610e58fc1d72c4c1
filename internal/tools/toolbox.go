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

	"github.com/rs/zerolog"

	apperrors "agenttools/internal/errors"
)

// Options configures a Toolbox. Zero values fall back to defaults.
type Options struct {
	Limits        Limits
	Timeouts      TimeoutConfig
	OutputFilters OutputFilterConfig
	Runner        RunnerConfig
	Launcher      Launcher
	Logger        *zerolog.Logger
}

// Toolbox performs the confined file and process operations. It carries
// configuration only: the working directory is passed on every call and
// nothing is remembered between calls.
type Toolbox struct {
	limits   Limits
	timeouts TimeoutConfig
	filters  OutputFilterConfig
	runner   RunnerConfig
	launcher Launcher
	logger   zerolog.Logger
}

// NewToolbox builds a Toolbox from options.
func NewToolbox(opts Options) *Toolbox {
	tb := &Toolbox{
		limits:   normalizeLimits(opts.Limits),
		timeouts: opts.Timeouts,
		filters:  normalizeOutputFilterConfig(opts.OutputFilters),
		runner:   normalizeRunnerConfig(opts.Runner),
		launcher: opts.Launcher,
		logger:   zerolog.Nop(),
	}
	if opts.OutputFilters == (OutputFilterConfig{}) {
		tb.filters = DefaultOutputFilterConfig()
	}
	if tb.timeouts.PerTool == nil && tb.timeouts.Default == 0 {
		tb.timeouts = DefaultTimeoutConfig()
	}
	if tb.launcher == nil {
		tb.launcher = ExecLauncher{}
	}
	if opts.Logger != nil {
		tb.logger = *opts.Logger
	}
	return tb
}

// Limits returns the limits in effect.
func (tb *Toolbox) Limits() Limits {
	return tb.limits
}

// GetFilesInfo lists the immediate entries of directory.
func (tb *Toolbox) GetFilesInfo(ctx context.Context, workingDir, directory string) string {
	return tb.boundary(ToolGetFilesInfo, directory, func() (string, error) {
		return tb.listFiles(ctx, workingDir, directory)
	})
}

// GetFileContent returns at most Limits.MaxChars characters of filePath.
func (tb *Toolbox) GetFileContent(ctx context.Context, workingDir, filePath string) string {
	return tb.boundary(ToolGetFileContent, filePath, func() (string, error) {
		return tb.readFile(ctx, workingDir, filePath)
	})
}

// WriteFile creates or overwrites filePath with content.
func (tb *Toolbox) WriteFile(ctx context.Context, workingDir, filePath, content string) string {
	return tb.boundary(ToolWriteFile, filePath, func() (string, error) {
		return tb.writeFile(ctx, workingDir, filePath, content)
	})
}

// RunPythonFile executes filePath with the configured launcher.
func (tb *Toolbox) RunPythonFile(ctx context.Context, workingDir, filePath string, args []string) string {
	return tb.boundary(ToolRunPythonFile, filePath, func() (string, error) {
		return tb.runFile(ctx, workingDir, filePath, args)
	})
}

// boundary turns the (string, error) form of an operation into the single
// string handed back to the caller.
func (tb *Toolbox) boundary(tool, requested string, op func() (string, error)) string {
	out, err := tb.call(tool, requested, op)
	if err != nil {
		return errorString(err)
	}
	return out
}

// call runs op with logging and converts a panic into an execution error so
// nothing escapes the operation.
func (tb *Toolbox) call(tool, requested string, op func() (out string, err error)) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			tb.logger.Error().
				Str("tool", tool).
				Str("path", requested).
				Interface("panic", r).
				Msg("Tool panicked")
			out = ""
			err = apperrors.Newf(apperrors.CodeExecution, "%s %q failed unexpectedly: %v", tool, requested, r)
		}
	}()

	tb.logger.Debug().Str("tool", tool).Str("path", requested).Msg("Tool call")
	out, err = op()
	if err != nil {
		tb.logFailure(tool, requested, err)
	}
	return out, err
}

// logFailure records an operation error at a level matching its class.
func (tb *Toolbox) logFailure(tool, requested string, err error) {
	var event *zerolog.Event
	switch apperrors.CodeOf(err) {
	case apperrors.CodeConfinement:
		event = tb.logger.Warn()
	case apperrors.CodeExecution, apperrors.CodeTimeout:
		event = tb.logger.Error()
	default:
		event = tb.logger.Debug()
	}
	event.Str("tool", tool).Str("path", requested).Err(err).Msg("Tool call failed")
}

func ensureContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
