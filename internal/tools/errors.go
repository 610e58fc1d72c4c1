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
	"errors"
	"fmt"
	"strings"

	apperrors "agenttools/internal/errors"
)

// Common tool errors
var (
	// ErrToolNotAllowed indicates a tool is blocked by the current policy.
	ErrToolNotAllowed = errors.New("tool blocked by policy")

	// ErrToolRequiresConfirmation indicates a tool requires confirmation before running.
	ErrToolRequiresConfirmation = errors.New("tool requires confirmation")

	// ErrToolNotFound indicates the requested tool doesn't exist in the registry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidArguments indicates tool arguments are invalid or malformed.
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrOutsideWorkdir indicates a path resolved outside the working directory.
	ErrOutsideWorkdir = errors.New("path outside the permitted working directory")

	// ErrProcessTimeout indicates a script ran past its time budget and was killed.
	ErrProcessTimeout = errors.New("process timed out")

	// ErrToolRateLimited indicates a tool exceeded its calls per minute.
	ErrToolRateLimited = errors.New("tool rate limit exceeded")

	// ErrToolInCooldown indicates a tool was called again before its cooldown ended.
	ErrToolInCooldown = errors.New("tool is cooling down")

	// ErrProcessCanceled indicates the caller canceled a running script.
	ErrProcessCanceled = errors.New("process canceled")
)

// errorPrefix marks every failure string returned across the operation boundary.
const errorPrefix = "Error: "

// confinementError builds the refusal for a path outside the working directory.
// verb is the operation phrase, e.g. "list", "read", "write to", "execute".
func confinementError(verb, requested string) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodeConfinement, "", outsideWorkdirError{
		msg: fmt.Sprintf("Cannot %s %q as it is outside the permitted working directory", verb, requested),
	})
}

// outsideWorkdirError carries the caller-facing refusal while still matching
// ErrOutsideWorkdir with errors.Is.
type outsideWorkdirError struct {
	msg string
}

func (e outsideWorkdirError) Error() string { return e.msg }

func (e outsideWorkdirError) Is(target error) bool { return target == ErrOutsideWorkdir }

func notFoundError(format, requested string) *apperrors.Error {
	return apperrors.Newf(apperrors.CodeNotFound, format, requested)
}

func ioError(err error) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodeIO, "", err)
}

func executionError(requested string, err error) *apperrors.Error {
	code := apperrors.CodeExecution
	if errors.Is(err, ErrProcessTimeout) {
		code = apperrors.CodeTimeout
	}
	return apperrors.Wrap(code, fmt.Sprintf("executing %q", requested), err)
}

// NewPermissionError wraps a permission error with a shared error code.
func NewPermissionError(toolName, reason string) *apperrors.Error {
	return apperrors.New(apperrors.CodePermission, fmt.Sprintf("permission denied for tool %s: %s", toolName, reason))
}

// errorString renders err for the string-only operation boundary. Messages
// that already open with "Error" are not prefixed twice.
func errorString(err error) string {
	msg := err.Error()
	if strings.HasPrefix(msg, "Error") {
		return msg
	}
	return errorPrefix + msg
}

// IsErrorResult reports whether an operation result is a failure string.
// The check is by convention only; file content may legitimately start with
// the same word, so callers holding a ToolResult should prefer its Error.
func IsErrorResult(result string) bool {
	return strings.HasPrefix(result, "Error")
}
