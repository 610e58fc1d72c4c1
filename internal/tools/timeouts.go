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

import "time"

const defaultRunTimeout = 30 * time.Second

// builtinTimeouts bound tools that start processes even when the
// configuration leaves them unset.
var builtinTimeouts = map[string]time.Duration{
	ToolRunPythonFile: defaultRunTimeout,
}

// TimeoutConfig configures per-tool execution timeouts. Non-positive values
// are treated as unset.
type TimeoutConfig struct {
	Default time.Duration
	PerTool map[string]time.Duration
}

// DefaultTimeoutConfig returns the default timeout configuration.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		PerTool: map[string]time.Duration{
			ToolRunPythonFile: defaultRunTimeout,
		},
	}
}

// TimeoutForTool resolves the timeout for a tool: its own entry first, then
// Default, then the built-in bound. Zero means unbounded.
func (t TimeoutConfig) TimeoutForTool(name string) time.Duration {
	if timeout := t.PerTool[name]; timeout > 0 {
		return timeout
	}
	if t.Default > 0 {
		return t.Default
	}
	return builtinTimeouts[name]
}
