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

// Package paths decides whether a requested path stays inside a working
// directory.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"unicode"
	"unicode/utf8"
)

// MaxPathLength bounds raw path input accepted by Confine.
const MaxPathLength = 4096

// ValidatePathString validates raw path input before resolution.
func ValidatePathString(path string, maxLen int) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.IndexByte(path, 0) != -1 {
		return fmt.Errorf("path contains null byte")
	}
	if !utf8.ValidString(path) {
		return fmt.Errorf("path is not valid UTF-8")
	}
	for _, r := range path {
		if unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) || unicode.Is(unicode.Me, r) {
			return fmt.Errorf("path contains unsupported unicode combining mark")
		}
	}
	if maxLen > 0 {
		if len(path) > maxLen {
			return fmt.Errorf("path exceeds maximum length of %d characters", maxLen)
		}
		if len(filepath.Clean(path)) > maxLen {
			return fmt.Errorf("path exceeds maximum length of %d characters", maxLen)
		}
	}
	return nil
}

// Confine joins rel onto workingDir and reports whether the cleaned absolute
// result lies inside workingDir. An absolute rel replaces workingDir, as a
// path join would, and is then checked like any other path. Invalid input is
// never confined.
func Confine(workingDir, rel string) (string, bool) {
	if rel == "" {
		rel = "."
	}
	if workingDir == "" {
		workingDir = "."
	}
	if err := ValidatePathString(rel, MaxPathLength); err != nil {
		return "", false
	}
	if err := ValidatePathString(workingDir, MaxPathLength); err != nil {
		return "", false
	}

	base, err := filepath.Abs(workingDir)
	if err != nil {
		return "", false
	}

	target := rel
	if !filepath.IsAbs(target) {
		target = filepath.Join(base, target)
	}
	abs := filepath.Clean(target)
	return abs, HasPathPrefix(abs, base)
}

// ConfineResolved is Confine followed by symlink resolution: the existing
// part of the joined path is resolved and must still lie inside the resolved
// working directory. The returned path is the resolved one. When the working
// directory itself cannot be resolved the lexical answer stands.
func ConfineResolved(workingDir, rel string) (string, bool) {
	abs, ok := Confine(workingDir, rel)
	if !ok {
		return abs, false
	}

	base, err := filepath.Abs(workingDir)
	if err != nil {
		return "", false
	}
	baseResolved, err := filepath.EvalSymlinks(base)
	if err != nil {
		return abs, true
	}

	resolved, err := ResolveSymlinkedPath(abs)
	if err != nil {
		return abs, false
	}
	return resolved, HasPathPrefix(resolved, baseResolved)
}

// ResolveSymlinkedPath resolves symlinks along the longest existing prefix of
// path and re-attaches the missing remainder unchanged.
func ResolveSymlinkedPath(path string) (string, error) {
	current := filepath.Clean(path)
	var missing []string
	for {
		if _, err := os.Lstat(current); err == nil {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				return "", fmt.Errorf("failed to resolve path: %v", err)
			}
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		} else if !os.IsNotExist(err) && !errors.Is(err, syscall.ENOTDIR) {
			return "", fmt.Errorf("failed to stat path: %v", err)
		}

		parent := filepath.Dir(current)
		if parent == current {
			return filepath.Clean(path), nil
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}

// HasPathPrefix returns true when path is within base, comparing whole path
// segments.
func HasPathPrefix(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(os.PathSeparator)) && rel != "..")
}
