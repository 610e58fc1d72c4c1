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
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// fakeLauncher records launch requests and replays a canned result.
type fakeLauncher struct {
	mu       sync.Mutex
	requests []LaunchRequest
	result   LaunchResult
	err      error
}

func (f *fakeLauncher) Launch(_ context.Context, req LaunchRequest) (LaunchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.result, f.err
}

func (f *fakeLauncher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeLauncher) last() LaunchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestToolbox(t *testing.T, launcher Launcher, limits Limits) *Toolbox {
	t.Helper()
	return NewToolbox(Options{
		Limits:   limits,
		Launcher: launcher,
	})
}

func writeTestFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create parent dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
	return path
}

// calculatorWorkspace mirrors a small project: main.py, tests.py and
// pkg/calculator.py.
func calculatorWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "main.py", "print('usage: calculator \"<expression>\"')\n")
	writeTestFile(t, dir, "tests.py", "print('ok')\n")
	writeTestFile(t, dir, "lorem.txt", "wait, this isn't lorem ipsum")
	writeTestFile(t, dir, "pkg/calculator.py", "class Calculator:\n    pass\n")
	return dir
}
