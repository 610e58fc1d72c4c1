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
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	coremkdir "github.com/u-root/u-root/pkg/core/mkdir"

	apperrors "agenttools/internal/errors"
	"agenttools/internal/paths"
)

// writeFile truncates filePath and writes content verbatim, creating missing
// parent directories first.
func (tb *Toolbox) writeFile(ctx context.Context, workingDir, filePath, content string) (string, error) {
	target, ok := paths.ConfineResolved(workingDir, filePath)
	if !ok {
		return "", confinementError("write to", filePath)
	}
	if int64(len(content)) > tb.limits.MaxWriteBytes {
		return "", apperrors.Newf(apperrors.CodeInvalidArguments,
			"content for %q exceeds maximum size of %d bytes", filePath, tb.limits.MaxWriteBytes)
	}
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return "", notFoundError("%q is a directory", filePath)
	}
	if err := ensureContext(ctx); err != nil {
		return "", err
	}

	if err := makeParents(ctx, filepath.Dir(target)); err != nil {
		return "", ioError(err)
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return "", ioError(err)
	}

	return fmt.Sprintf("Successfully wrote to %q (%d characters written)", filePath, utf8.RuneCountInString(content)), nil
}

// makeParents is mkdir -p for dir, run through the u-root core command.
func makeParents(ctx context.Context, dir string) error {
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
		return nil
	}

	var stderr bytes.Buffer
	cmd := coremkdir.New()
	cmd.SetIO(strings.NewReader(""), io.Discard, &stderr)
	cmd.SetWorkingDir(filepath.Dir(dir))
	if err := cmd.RunContext(ctx, "-p", dir); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%v: %s", err, msg)
		}
		return err
	}
	return nil
}
