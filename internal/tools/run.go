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
	"fmt"
	"os"
	"strings"

	apperrors "agenttools/internal/errors"
	"agenttools/internal/paths"
)

const outputTruncatedMarker = "[output truncated]"

// runFile executes filePath as [launcher, args..., path, extra...] inside the
// working directory. A script without the configured extension is refused
// before anything is spawned.
func (tb *Toolbox) runFile(ctx context.Context, workingDir, filePath string, args []string) (string, error) {
	target, ok := paths.ConfineResolved(workingDir, filePath)
	if !ok {
		return "", confinementError("execute", filePath)
	}

	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() {
		return "", notFoundError("File %q not found.", filePath)
	}
	if !strings.HasSuffix(target, tb.runner.Extension) {
		return "", apperrors.Newf(apperrors.CodeInvalidArguments, "%q is not a %s file.", filePath, tb.runner.Language)
	}

	dir, ok := paths.ConfineResolved(workingDir, ".")
	if !ok {
		return "", confinementError("execute", filePath)
	}
	if err := ensureContext(ctx); err != nil {
		return "", executionError(filePath, fmt.Errorf("%w: %v", ErrProcessCanceled, err))
	}

	argv := make([]string, 0, len(tb.runner.Args)+len(args)+2)
	argv = append(argv, tb.runner.Command)
	argv = append(argv, tb.runner.Args...)
	argv = append(argv, target)
	argv = append(argv, args...)

	timeout := tb.timeouts.TimeoutForTool(ToolRunPythonFile)
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}

	tb.logger.Debug().
		Strs("argv", argv).
		Str("dir", dir).
		Dur("timeout", timeout).
		Msg("Launching script")

	result, err := tb.launcher.Launch(ctx, LaunchRequest{
		Argv:    argv,
		Dir:     dir,
		Timeout: timeout,
	})
	if err != nil {
		return "", executionError(filePath, err)
	}

	return tb.formatRunResult(result), nil
}

// formatRunResult always reports stderr, then stdout or an explicit marker,
// then the exit code when it is not zero.
func (tb *Toolbox) formatRunResult(result LaunchResult) string {
	stderr, stderrCut := tb.filters.Sanitize(result.Stderr)
	stdout, stdoutCut := tb.filters.Sanitize(result.Stdout)

	lines := []string{"STDERR: " + stderr}
	if stdout == "" {
		lines = append(lines, "No output produced.")
	} else {
		lines = append(lines, "STDOUT: "+stdout)
	}
	if stderrCut || stdoutCut || result.Truncated {
		lines = append(lines, outputTruncatedMarker)
	}
	if result.ExitCode != 0 {
		lines = append(lines, fmt.Sprintf("Process exited with code %d", result.ExitCode))
	}
	return strings.Join(lines, "\n")
}
