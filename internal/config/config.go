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
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/tidwall/jsonc"

	"agenttools/internal/tools"
)

// DefaultConfigFile is read when no -config flag is given.
const DefaultConfigFile = "agenttools.json"

// Environment overrides.
const (
	EnvWorkingDirectory = "AGENTTOOLS_WORKDIR"
	EnvMaxChars         = "AGENTTOOLS_MAX_CHARS"
	EnvTimeoutSeconds   = "AGENTTOOLS_TIMEOUT_SECONDS"
)

// Config represents the application configuration
type Config struct {
	WorkingDirectory   string            `json:"working_directory,omitempty"`
	Tools              ToolSettings      `json:"tools,omitempty"`
	ToolLimits         ToolLimits        `json:"tool_limits,omitempty"`
	ToolRateLimits     ToolRateLimits    `json:"tool_rate_limits,omitempty"`
	ToolTimeouts       ToolTimeouts      `json:"tool_timeouts,omitempty"`
	ToolOutputFilters  ToolOutputFilters `json:"tool_output_filters,omitempty"`
	Runner             Runner            `json:"runner,omitempty"`
	CommandHistoryFile string            `json:"command_history_file,omitempty"`
}

// ToolSettings describes tool allow/ask/deny lists.
type ToolSettings struct {
	Allow               []string `json:"allow"`
	Ask                 []string `json:"ask,omitempty"`
	Deny                []string `json:"deny,omitempty"`
	RequireConfirmation []string `json:"require_confirmation,omitempty"`
}

// ToolLimits configures resource limits for tool execution.
type ToolLimits struct {
	MaxChars            int   `json:"max_chars,omitempty"`
	MaxWriteBytes       int64 `json:"max_write_bytes,omitempty"`
	MaxDirectoryEntries int   `json:"max_directory_entries,omitempty"`
}

// ToolRateLimits configures tool rate limits and cooldowns.
type ToolRateLimits struct {
	DefaultPerMinute int            `json:"default_per_minute,omitempty"`
	PerTool          map[string]int `json:"per_tool,omitempty"`
	CooldownSeconds  map[string]int `json:"cooldown_seconds,omitempty"`
}

// ToolTimeouts configures tool execution timeouts.
type ToolTimeouts struct {
	DefaultSeconds int            `json:"default_seconds,omitempty"`
	PerToolSeconds map[string]int `json:"per_tool_seconds,omitempty"`
}

// ToolOutputFilters configures output sanitization for script output.
type ToolOutputFilters struct {
	MaxChars     int  `json:"max_chars,omitempty"`
	StripANSI    bool `json:"strip_ansi,omitempty"`
	StripControl bool `json:"strip_control,omitempty"`
}

// Runner selects the interpreter used by run_python_file.
type Runner struct {
	Command   string   `json:"command,omitempty"`
	Args      []string `json:"args,omitempty"`
	Extension string   `json:"extension,omitempty"`
	Language  string   `json:"language,omitempty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	limits := tools.DefaultLimits()
	filters := tools.DefaultOutputFilterConfig()
	runner := tools.DefaultRunnerConfig()
	return &Config{
		WorkingDirectory: ".",
		ToolLimits: ToolLimits{
			MaxChars:            limits.MaxChars,
			MaxWriteBytes:       limits.MaxWriteBytes,
			MaxDirectoryEntries: limits.MaxDirectoryEntries,
		},
		ToolRateLimits: ToolRateLimits{
			DefaultPerMinute: tools.DefaultRateLimitConfig().DefaultPerMinute,
		},
		ToolTimeouts: ToolTimeouts{
			PerToolSeconds: map[string]int{
				tools.ToolRunPythonFile: int(tools.DefaultTimeoutConfig().PerTool[tools.ToolRunPythonFile].Seconds()),
			},
		},
		ToolOutputFilters: ToolOutputFilters{
			MaxChars:     filters.MaxChars,
			StripANSI:    filters.StripANSI,
			StripControl: filters.StripControl,
		},
		Runner: Runner{
			Command:   runner.Command,
			Args:      append([]string{}, runner.Args...),
			Extension: runner.Extension,
			Language:  runner.Language,
		},
		CommandHistoryFile: ".agenttools_history",
	}
}

// LoadConfig loads configuration from a JSON file (comments and trailing
// commas allowed), then applies env overrides. A missing file is not an
// error.
func LoadConfig(filepath string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(filepath); err == nil {
		data, err := os.ReadFile(filepath)
		if err != nil {
			return nil, err
		}
		normalized, err := normalizeConfigJSON(jsonc.ToJSON(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath, err)
		}
		if err := json.Unmarshal(normalized, config); err != nil {
			return nil, fmt.Errorf("%s: %w", filepath, err)
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	if config.WorkingDirectory == "" {
		config.WorkingDirectory = "."
	}

	return config, nil
}

func applyEnvOverrides(config *Config) error {
	if val := os.Getenv(EnvWorkingDirectory); val != "" {
		config.WorkingDirectory = val
	}
	if val := os.Getenv(EnvMaxChars); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %q", EnvMaxChars, val)
		}
		config.ToolLimits.MaxChars = n
	}
	if val := os.Getenv(EnvTimeoutSeconds); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %q", EnvTimeoutSeconds, val)
		}
		if config.ToolTimeouts.PerToolSeconds == nil {
			config.ToolTimeouts.PerToolSeconds = map[string]int{}
		}
		config.ToolTimeouts.PerToolSeconds[tools.ToolRunPythonFile] = n
	}
	return nil
}

// ToolPolicy converts config settings into a tool policy. Deny wins over
// allow; ask and require_confirmation are merged.
func (c *Config) ToolPolicy() tools.Policy {
	allowList := c.Tools.Allow
	if allowList == nil && c.Tools.Deny != nil {
		allowList = tools.DefaultAllowList
	}
	if allowList != nil && c.Tools.Deny != nil {
		denied := make(map[string]bool, len(c.Tools.Deny))
		for _, name := range c.Tools.Deny {
			denied[name] = true
		}
		filtered := make([]string, 0, len(allowList))
		for _, name := range allowList {
			if !denied[name] {
				filtered = append(filtered, name)
			}
		}
		allowList = filtered
	}

	var confirmList []string
	if c.Tools.Ask != nil || c.Tools.RequireConfirmation != nil {
		confirmList = append(append([]string{}, c.Tools.Ask...), c.Tools.RequireConfirmation...)
	}

	return tools.PolicyFromLists(allowList, confirmList)
}

// ToolLimitsConfig returns tool limits for runtime enforcement.
func (c *Config) ToolLimitsConfig() tools.Limits {
	return tools.Limits{
		MaxChars:            c.ToolLimits.MaxChars,
		MaxWriteBytes:       c.ToolLimits.MaxWriteBytes,
		MaxDirectoryEntries: c.ToolLimits.MaxDirectoryEntries,
	}
}

// ToolRateLimitsConfig returns rate limiting configuration for tools.
func (c *Config) ToolRateLimitsConfig() tools.RateLimitConfig {
	cooldowns := make(map[string]time.Duration, len(c.ToolRateLimits.CooldownSeconds))
	for name, seconds := range c.ToolRateLimits.CooldownSeconds {
		if seconds <= 0 {
			continue
		}
		cooldowns[name] = time.Duration(seconds) * time.Second
	}
	perTool := make(map[string]int, len(c.ToolRateLimits.PerTool))
	for name, rate := range c.ToolRateLimits.PerTool {
		perTool[name] = rate
	}

	return tools.RateLimitConfig{
		DefaultPerMinute: c.ToolRateLimits.DefaultPerMinute,
		PerTool:          perTool,
		Cooldowns:        cooldowns,
	}
}

// ToolTimeoutsConfig returns timeout configuration for tools.
func (c *Config) ToolTimeoutsConfig() tools.TimeoutConfig {
	perTool := make(map[string]time.Duration, len(c.ToolTimeouts.PerToolSeconds))
	for name, seconds := range c.ToolTimeouts.PerToolSeconds {
		if seconds <= 0 {
			continue
		}
		perTool[name] = time.Duration(seconds) * time.Second
	}

	var defaultTimeout time.Duration
	if c.ToolTimeouts.DefaultSeconds > 0 {
		defaultTimeout = time.Duration(c.ToolTimeouts.DefaultSeconds) * time.Second
	}

	return tools.TimeoutConfig{
		Default: defaultTimeout,
		PerTool: perTool,
	}
}

// ToolOutputFiltersConfig returns output filter configuration for tools.
func (c *Config) ToolOutputFiltersConfig() tools.OutputFilterConfig {
	return tools.OutputFilterConfig{
		MaxChars:     c.ToolOutputFilters.MaxChars,
		StripANSI:    c.ToolOutputFilters.StripANSI,
		StripControl: c.ToolOutputFilters.StripControl,
	}
}

// RunnerConfig returns the script runner configuration.
func (c *Config) RunnerConfig() tools.RunnerConfig {
	return tools.RunnerConfig{
		Command:   c.Runner.Command,
		Args:      append([]string(nil), c.Runner.Args...),
		Extension: c.Runner.Extension,
		Language:  c.Runner.Language,
	}
}

// ToolboxOptions gathers every tool setting into tools.Options.
func (c *Config) ToolboxOptions() tools.Options {
	return tools.Options{
		Limits:        c.ToolLimitsConfig(),
		Timeouts:      c.ToolTimeoutsConfig(),
		OutputFilters: c.ToolOutputFiltersConfig(),
		Runner:        c.RunnerConfig(),
	}
}

// ValidationWarning represents a non-fatal configuration issue
type ValidationWarning struct {
	Field   string
	Message string
}

// Validate checks the configuration for common issues and returns warnings
func (c *Config) Validate(registry *tools.Registry) []ValidationWarning {
	var warnings []ValidationWarning

	if info, err := os.Stat(c.WorkingDirectory); err != nil || !info.IsDir() {
		warnings = append(warnings, ValidationWarning{
			Field:   "working_directory",
			Message: fmt.Sprintf("working directory %q does not exist or is not a directory", c.WorkingDirectory),
		})
	}

	if c.ToolLimits.MaxChars < 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "tool_limits.max_chars",
			Message: fmt.Sprintf("max_chars %d must be positive, using default", c.ToolLimits.MaxChars),
		})
	}
	if c.ToolLimits.MaxWriteBytes < 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "tool_limits.max_write_bytes",
			Message: fmt.Sprintf("max_write_bytes %d must be positive, using default", c.ToolLimits.MaxWriteBytes),
		})
	}

	for name, seconds := range c.ToolTimeouts.PerToolSeconds {
		if seconds > 3600 {
			warnings = append(warnings, ValidationWarning{
				Field:   "tool_timeouts.per_tool_seconds." + name,
				Message: fmt.Sprintf("timeout of %ds is unusually long", seconds),
			})
		}
	}

	if c.Runner.Command != "" {
		if _, err := exec.LookPath(c.Runner.Command); err != nil {
			warnings = append(warnings, ValidationWarning{
				Field:   "runner.command",
				Message: fmt.Sprintf("runner %q not found in PATH", c.Runner.Command),
			})
		}
	}

	// Validate tool policy against registered tools
	if registry != nil {
		registeredTools := make(map[string]bool)
		for _, name := range registry.GetToolNames() {
			registeredTools[name] = true
		}

		lists := []struct {
			field string
			names []string
		}{
			{"tools.allow", c.Tools.Allow},
			{"tools.ask", c.Tools.Ask},
			{"tools.require_confirmation", c.Tools.RequireConfirmation},
			{"tools.deny", c.Tools.Deny},
		}
		for _, list := range lists {
			for _, toolName := range list.names {
				if !registeredTools[toolName] {
					warnings = append(warnings, ValidationWarning{
						Field:   list.field,
						Message: fmt.Sprintf("tool %q in %s list is not registered", toolName, list.field[len("tools."):]),
					})
				}
			}
		}
	}

	return warnings
}
