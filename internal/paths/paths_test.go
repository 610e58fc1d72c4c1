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

package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestValidatePathStringRejectsNullByte(t *testing.T) {
	if err := ValidatePathString("bad\x00path", 0); err == nil {
		t.Fatal("expected error for null byte path")
	}
}

func TestValidatePathStringRejectsOverlong(t *testing.T) {
	if err := ValidatePathString(strings.Repeat("a", 20), 10); err == nil {
		t.Fatal("expected error for overlong path")
	}
}

func TestConfine(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name     string
		rel      string
		want     string
		confined bool
	}{
		{name: "empty means base", rel: "", want: base, confined: true},
		{name: "dot", rel: ".", want: base, confined: true},
		{name: "nested file", rel: "pkg/calculator.py", want: filepath.Join(base, "pkg", "calculator.py"), confined: true},
		{name: "dotdot inside", rel: "pkg/../main.py", want: filepath.Join(base, "main.py"), confined: true},
		{name: "parent", rel: "..", want: filepath.Dir(base), confined: false},
		{name: "escape via dotdot", rel: "../main.py", want: filepath.Join(filepath.Dir(base), "main.py"), confined: false},
		{name: "absolute outside", rel: "/bin", want: "/bin", confined: false},
		{name: "sibling with shared prefix", rel: "../" + filepath.Base(base) + "2", want: base + "2", confined: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if runtime.GOOS == "windows" && strings.HasPrefix(tt.rel, "/") {
				t.Skip("unix absolute path")
			}
			got, confined := Confine(base, tt.rel)
			if confined != tt.confined {
				t.Fatalf("expected confined=%v for %q, got %v (%s)", tt.confined, tt.rel, confined, got)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestConfineAbsoluteInsideBase(t *testing.T) {
	base := t.TempDir()
	inside := filepath.Join(base, "lorem.txt")
	got, confined := Confine(base, inside)
	if !confined || got != inside {
		t.Fatalf("expected %q to be confined, got %q %v", inside, got, confined)
	}
}

func TestConfineRelativeWorkingDir(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	got, confined := Confine(".", "testdata")
	if !confined {
		t.Fatal("expected relative working dir to confine its children")
	}
	if got != filepath.Join(cwd, "testdata") {
		t.Fatalf("unexpected path %q", got)
	}
}

func TestConfineInvalidInput(t *testing.T) {
	base := t.TempDir()
	if _, confined := Confine(base, "bad\x00name"); confined {
		t.Fatal("expected null byte path to be refused")
	}
	if _, confined := Confine("bad\x00base", "file"); confined {
		t.Fatal("expected null byte working dir to be refused")
	}
}

func TestHasPathPrefixRespectsSegments(t *testing.T) {
	if HasPathPrefix("/work2/file", "/work") {
		t.Fatal("sibling directory must not match")
	}
	if !HasPathPrefix("/work/file", "/work") {
		t.Fatal("child must match")
	}
	if !HasPathPrefix("/work", "/work") {
		t.Fatal("base must match itself")
	}
	if !HasPathPrefix("/work/..data", "/work") {
		t.Fatal("names starting with dots are children")
	}
}

func TestConfineResolvedRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	base := t.TempDir()
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(base, "link")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	if _, confined := Confine(base, "link/secret.txt"); !confined {
		t.Fatal("lexical check should accept the link path")
	}
	if _, confined := ConfineResolved(base, "link/secret.txt"); confined {
		t.Fatal("expected symlink escape to be refused")
	}
	if _, confined := ConfineResolved(base, "link/new/deeper.txt"); confined {
		t.Fatal("expected missing path under escaping link to be refused")
	}
}

func TestConfineResolvedMissingDescendants(t *testing.T) {
	base := t.TempDir()
	resolved, confined := ConfineResolved(base, "a/b/c.txt")
	if !confined {
		t.Fatal("expected missing nested path to be confined")
	}
	baseResolved, err := filepath.EvalSymlinks(base)
	if err != nil {
		t.Fatalf("eval base: %v", err)
	}
	if resolved != filepath.Join(baseResolved, "a", "b", "c.txt") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
}
