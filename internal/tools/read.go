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
	"io"
	"os"
	"unicode/utf8"

	"agenttools/internal/paths"
)

// readFile returns the first Limits.MaxChars characters of filePath.
func (tb *Toolbox) readFile(ctx context.Context, workingDir, filePath string) (string, error) {
	target, ok := paths.ConfineResolved(workingDir, filePath)
	if !ok {
		return "", confinementError("read", filePath)
	}
	if err := ensureContext(ctx); err != nil {
		return "", err
	}

	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() {
		return "", notFoundError("File not found or is not a regular file: %q", filePath)
	}

	f, err := os.Open(target)
	if err != nil {
		return "", ioError(err)
	}
	defer f.Close()

	return readChars(f, tb.limits.MaxChars)
}

// readChars reads at most max characters from r. A character is a UTF-8
// encoded rune; each byte of an invalid sequence counts as one character and
// is returned unchanged.
func readChars(r io.Reader, max int) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(max)*utf8.UTFMax))
	if err != nil {
		return "", ioError(err)
	}

	end := 0
	for count := 0; count < max && end < len(data); count++ {
		_, size := utf8.DecodeRune(data[end:])
		end += size
	}
	return string(data[:end]), nil
}
