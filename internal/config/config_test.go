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

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/jsonc"

	"agenttools/internal/tools"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agenttools.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvWorkingDirectory, "")
	t.Setenv(EnvMaxChars, "")
	t.Setenv(EnvTimeoutSeconds, "")
}

func TestMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestDefaultsMatchToolDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ToolLimitsConfig() != tools.DefaultLimits() {
		t.Fatalf("expected default limits %+v, got %+v", tools.DefaultLimits(), cfg.ToolLimitsConfig())
	}
	if cfg.ToolOutputFiltersConfig() != tools.DefaultOutputFilterConfig() {
		t.Fatalf("expected default filters, got %+v", cfg.ToolOutputFiltersConfig())
	}
	if got := cfg.ToolTimeoutsConfig().TimeoutForTool(tools.ToolRunPythonFile); got != 30*time.Second {
		t.Fatalf("expected 30s run timeout, got %s", got)
	}
	if !reflect.DeepEqual(cfg.RunnerConfig(), tools.DefaultRunnerConfig()) {
		t.Fatalf("expected default runner, got %+v", cfg.RunnerConfig())
	}
	if cfg.WorkingDirectory != "." {
		t.Fatalf("expected working directory '.', got %q", cfg.WorkingDirectory)
	}
}

func TestLoadConfigWithComments(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{
		// sandbox root
		"working_directory": "calculator",
		/* trimmed limits */
		"tool_limits": {"max_chars": 500, "max_write_bytes": 1024, "max_directory_entries": 25,},
	}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.WorkingDirectory != "calculator" {
		t.Fatalf("expected working directory from file, got %q", cfg.WorkingDirectory)
	}
	want := tools.Limits{MaxChars: 500, MaxWriteBytes: 1024, MaxDirectoryEntries: 25}
	if got := cfg.ToolLimitsConfig(); got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeTempConfig(t, `{"working_directory":"from-file","tool_limits":{"max_chars":5}}`)
	t.Setenv(EnvWorkingDirectory, "from-env")
	t.Setenv(EnvMaxChars, "42")
	t.Setenv(EnvTimeoutSeconds, "7")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.WorkingDirectory != "from-env" {
		t.Fatalf("expected env working directory, got %q", cfg.WorkingDirectory)
	}
	if cfg.ToolLimits.MaxChars != 42 {
		t.Fatalf("expected env max chars, got %d", cfg.ToolLimits.MaxChars)
	}
	if got := cfg.ToolTimeoutsConfig().TimeoutForTool(tools.ToolRunPythonFile); got != 7*time.Second {
		t.Fatalf("expected env timeout, got %s", got)
	}
}

func TestInvalidEnvOverride(t *testing.T) {
	clearEnv(t)
	for _, key := range []string{EnvMaxChars, EnvTimeoutSeconds} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "soon")
			if _, err := LoadConfig(filepath.Join(t.TempDir(), "none.json")); err == nil || !strings.Contains(err.Error(), key) {
				t.Fatalf("expected error naming %s, got %v", key, err)
			}
		})
	}
}

func TestConfigValidationRejectsUnknownField(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{name: "top level", content: `{"unknown_field":123}`, field: "unknown_field"},
		{name: "nested", content: `{"tool_limits":{"max_file_size_bytes":1}}`, field: "tool_limits.max_file_size_bytes"},
		{name: "runner", content: `{"runner":{"cmd":"python"}}`, field: "runner.cmd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeTempConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.field) {
				t.Fatalf("expected unknown field %q error, got %v", tt.field, err)
			}
		})
	}
}

func TestConfigValidationRejectsInvalidType(t *testing.T) {
	tests := []string{
		`{"tool_limits":{"max_chars":"oops"}}`,
		`{"tool_output_filters":{"strip_ansi":"yes"}}`,
		`{"runner":{"args":"run"}}`,
		`{"tools":{"allow":[1]}}`,
		`{"tool_timeouts":{"per_tool_seconds":{"run_python_file":"30"}}}`,
		`{"working_directory":3}`,
		`{"runner":[]}`,
	}
	for _, content := range tests {
		if _, err := LoadConfig(writeTempConfig(t, content)); err == nil {
			t.Fatalf("expected error for %s", content)
		}
	}
}

func TestLegacyKeysMigrated(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"workdir":"legacy","tools":{"allow":["get_files_info"],"confirm":["write_file"]}}`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.WorkingDirectory != "legacy" {
		t.Fatalf("expected legacy workdir, got %q", cfg.WorkingDirectory)
	}
	if !reflect.DeepEqual(cfg.Tools.RequireConfirmation, []string{tools.ToolWriteFile}) {
		t.Fatalf("expected legacy confirm list, got %v", cfg.Tools.RequireConfirmation)
	}
}

func TestToolPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tools = ToolSettings{
		Deny: []string{tools.ToolWriteFile},
		Ask:  []string{tools.ToolGetFileContent},
	}

	registry := tools.NewRegistryWithPolicy(t.TempDir(), nil, cfg.ToolPolicy())

	if perm := registry.GetPermission(tools.ToolWriteFile); perm.Allowed {
		t.Fatal("expected write_file to be denied")
	}
	if perm := registry.GetPermission(tools.ToolGetFileContent); !perm.Allowed || !perm.RequireConfirmation {
		t.Fatalf("expected get_file_content allowed with confirmation, got %+v", perm)
	}
	if perm := registry.GetPermission(tools.ToolRunPythonFile); !perm.Allowed || perm.RequireConfirmation {
		t.Fatalf("expected run_python_file allowed without confirmation, got %+v", perm)
	}
}

func TestToolPolicyUnsetKeepsDefaults(t *testing.T) {
	policy := DefaultConfig().ToolPolicy()
	if policy.Allowed != nil || policy.RequireConfirmation != nil {
		t.Fatalf("expected empty policy, got %+v", policy)
	}
}

func TestToolRateLimitsConfig(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"tool_rate_limits":{"default_per_minute":10,"per_tool":{"run_python_file":2},"cooldown_seconds":{"run_python_file":3,"write_file":0}}}`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	limits := cfg.ToolRateLimitsConfig()
	if limits.DefaultPerMinute != 10 || limits.PerTool[tools.ToolRunPythonFile] != 2 {
		t.Fatalf("unexpected rates %+v", limits)
	}
	if limits.Cooldowns[tools.ToolRunPythonFile] != 3*time.Second {
		t.Fatalf("expected 3s cooldown, got %s", limits.Cooldowns[tools.ToolRunPythonFile])
	}
	if _, ok := limits.Cooldowns[tools.ToolWriteFile]; ok {
		t.Fatal("expected zero cooldown to be dropped")
	}
	if DefaultConfig().ToolRateLimitsConfig().DefaultPerMinute != tools.DefaultRateLimitConfig().DefaultPerMinute {
		t.Fatal("expected default rate to match tools default")
	}
}

func TestToolTimeoutsSkipNonPositive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ToolTimeouts = ToolTimeouts{DefaultSeconds: 5, PerToolSeconds: map[string]int{tools.ToolRunPythonFile: 0}}
	timeouts := cfg.ToolTimeoutsConfig()
	if _, ok := timeouts.PerTool[tools.ToolRunPythonFile]; ok {
		t.Fatal("expected zero timeout to be dropped")
	}
	if timeouts.TimeoutForTool(tools.ToolRunPythonFile) != 5*time.Second {
		t.Fatalf("expected default timeout, got %s", timeouts.TimeoutForTool(tools.ToolRunPythonFile))
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkingDirectory = filepath.Join(t.TempDir(), "missing")
	cfg.Runner.Command = "agenttools-no-such-runner"
	cfg.ToolTimeouts.PerToolSeconds[tools.ToolRunPythonFile] = 7200
	cfg.Tools.Allow = []string{"rm_rf"}

	warnings := cfg.Validate(tools.NewRegistry(t.TempDir(), nil))
	fields := make(map[string]bool, len(warnings))
	for _, w := range warnings {
		fields[w.Field] = true
	}
	for _, field := range []string{"working_directory", "runner.command", "tool_timeouts.per_tool_seconds.run_python_file", "tools.allow"} {
		if !fields[field] {
			t.Fatalf("expected warning for %s, got %+v", field, warnings)
		}
	}
}

func TestValidateCleanConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkingDirectory = t.TempDir()
	cfg.Runner.Command = "sh"

	if warnings := cfg.Validate(tools.NewRegistry(cfg.WorkingDirectory, nil)); len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %+v", warnings)
	}
}

func TestExampleConfigLoads(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(writeTempConfig(t, ExampleConfigJSON()))
	if err != nil {
		t.Fatalf("example config should load: %v", err)
	}
	if cfg.WorkingDirectory != "./calculator" {
		t.Fatalf("unexpected working directory %q", cfg.WorkingDirectory)
	}
}

func TestSchemaIsValidJSON(t *testing.T) {
	var schema map[string]interface{}
	if err := json.Unmarshal(jsonc.ToJSON([]byte(SchemaJSON())), &schema); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	props := schema["properties"].(map[string]interface{})
	for _, key := range []string{"working_directory", "tools", "tool_limits", "tool_rate_limits", "tool_timeouts", "tool_output_filters", "runner", "command_history_file"} {
		if _, ok := props[key]; !ok {
			t.Fatalf("schema missing %q", key)
		}
	}
	runner := props["runner"].(map[string]interface{})
	if runner["additionalProperties"] != false {
		t.Fatalf("expected runner to reject unknown keys, got %v", runner["additionalProperties"])
	}
	args := runner["properties"].(map[string]interface{})["args"].(map[string]interface{})
	if args["type"] != "array" {
		t.Fatalf("expected runner.args to be an array, got %v", args["type"])
	}
}

func TestInvalidTypeNamesField(t *testing.T) {
	_, err := LoadConfig(writeTempConfig(t, `{"tools":{"allow":["get_files_info",7]}}`))
	if err == nil || !strings.Contains(err.Error(), "tools.allow[1]") {
		t.Fatalf("expected error naming tools.allow[1], got %v", err)
	}
}
