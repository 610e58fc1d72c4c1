//go:build !unix

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

import "os/exec"

// configureProcessGroup keeps exec's default cancellation, which kills the
// direct child only.
func configureProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup is a no-op without process groups; Launch still stops
// draining output after WaitDelay.
func killProcessGroup(cmd *exec.Cmd) {}
