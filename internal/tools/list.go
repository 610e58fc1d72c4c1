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

// listFiles enumerates the immediate entries of directory, sorted by name.
func (tb *Toolbox) listFiles(ctx context.Context, workingDir, directory string) (string, error) {
	if directory == "" {
		directory = "."
	}

	target, ok := paths.ConfineResolved(workingDir, directory)
	if !ok {
		return "", confinementError("list", directory)
	}
	if err := ensureContext(ctx); err != nil {
		return "", err
	}

	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return "", notFoundError("%q is not a directory", directory)
	}

	// os.ReadDir returns entries sorted by filename.
	entries, err := os.ReadDir(target)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeIO, "Error listing files", err)
	}

	lines := make([]string, 0, len(entries))
	for i, entry := range entries {
		if i >= tb.limits.MaxDirectoryEntries {
			lines = append(lines, fmt.Sprintf("... (%d more entries not shown)", len(entries)-i))
			break
		}
		if err := ensureContext(ctx); err != nil {
			return "", err
		}
		entryInfo, err := entry.Info()
		if err != nil {
			return "", apperrors.Wrap(apperrors.CodeIO, "Error listing files", err)
		}
		lines = append(lines, formatEntry(entry.Name(), entryInfo))
	}

	return strings.Join(lines, "\n"), nil
}

// formatEntry renders one listing line. Sizes are what the filesystem
// reports for the entry itself, never a recursive sum.
func formatEntry(name string, info os.FileInfo) string {
	return fmt.Sprintf("- %s: file_size=%d, is_dir=%t", name, info.Size(), info.IsDir())
}
