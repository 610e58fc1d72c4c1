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
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Default allow/confirm lists for built-in tools.
var (
	DefaultAllowList   = []string{ToolGetFilesInfo, ToolGetFileContent, ToolWriteFile, ToolRunPythonFile}
	DefaultConfirmList = []string{ToolWriteFile, ToolRunPythonFile}
)

// Permission describes the policy for a tool.
type Permission struct {
	Allowed             bool
	RequireConfirmation bool
}

// Policy configures which tools are allowed and which require confirmation.
// A nil map leaves the corresponding setting untouched.
type Policy struct {
	Allowed             map[string]bool
	RequireConfirmation map[string]bool
}

// ExecuteOptions controls how tool execution is handled.
type ExecuteOptions struct {
	// Force bypasses confirmation requirements (use only after explicit user consent).
	Force bool
}

// Registry holds the tools exposed to an agent for one working directory.
type Registry struct {
	mu          sync.RWMutex
	tools       map[string]Tool
	permissions map[string]Permission
	limiters    map[string]*toolRateLimiter
	clock       func() time.Time
	workingDir  string
	toolbox     *Toolbox
}

// NewRegistry creates a registry with the built-in tools and the default policy.
func NewRegistry(workingDir string, toolbox *Toolbox) *Registry {
	return NewRegistryWithPolicy(workingDir, toolbox, DefaultPolicy())
}

// NewRegistryWithPolicy creates a registry with the provided policy applied
// on top of the default one.
func NewRegistryWithPolicy(workingDir string, toolbox *Toolbox, policy Policy) *Registry {
	if toolbox == nil {
		toolbox = NewToolbox(Options{})
	}
	r := &Registry{
		tools:       make(map[string]Tool),
		permissions: make(map[string]Permission),
		limiters:    make(map[string]*toolRateLimiter),
		clock:       time.Now,
		workingDir:  workingDir,
		toolbox:     toolbox,
	}

	registerBuiltInTools(r)
	r.applyPolicy(DefaultPolicy())
	r.applyPolicy(policy)

	return r
}

// WorkingDir returns the directory every tool call is confined to.
func (r *Registry) WorkingDir() string {
	return r.workingDir
}

// RegisterTool adds a new tool with its implementation to the registry.
func (r *Registry) RegisterTool(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
	if _, ok := r.permissions[tool.Name()]; !ok {
		// Unknown tools default to blocked + confirmation.
		r.permissions[tool.Name()] = Permission{Allowed: false, RequireConfirmation: true}
	}
}

// applyPolicy merges the provided policy into the registry permissions.
func (r *Registry) applyPolicy(policy Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.tools {
		perm, ok := r.permissions[name]
		if !ok {
			perm = Permission{Allowed: false, RequireConfirmation: true}
		}
		if policy.Allowed != nil {
			perm.Allowed = policy.Allowed[name]
		}
		if policy.RequireConfirmation != nil {
			perm.RequireConfirmation = policy.RequireConfirmation[name]
		}
		r.permissions[name] = perm
	}
}

// DefaultPolicy returns the default allow/confirm policy.
func DefaultPolicy() Policy {
	return PolicyFromLists(DefaultAllowList, DefaultConfirmList)
}

// PolicyFromLists builds a policy from allow/confirmation lists. A nil list
// leaves that half of the policy unset.
func PolicyFromLists(allow, confirm []string) Policy {
	var policy Policy
	if allow != nil {
		policy.Allowed = make(map[string]bool, len(allow))
		for _, name := range allow {
			policy.Allowed[name] = true
		}
	}
	if confirm != nil {
		policy.RequireConfirmation = make(map[string]bool, len(confirm))
		for _, name := range confirm {
			policy.RequireConfirmation[name] = true
		}
	}
	return policy
}

// SetRateLimits replaces the per-tool throttles. Call counts start afresh.
func (r *Registry) SetRateLimits(config RateLimitConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters = make(map[string]*toolRateLimiter, len(r.tools))
	for name := range r.tools {
		if limiter := newToolRateLimiter(config.rateFor(name), config.Cooldowns[name], r.clock); limiter != nil {
			r.limiters[name] = limiter
		}
	}
}

// GetToolNames returns the sorted names of all tools.
func (r *Registry) GetToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetTools returns all tools sorted by name.
func (r *Registry) GetTools() []Tool {
	names := r.GetToolNames()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name])
	}
	return out
}

// OpenAITools returns the registry as OpenAI tool definitions.
func (r *Registry) OpenAITools() []openai.Tool {
	tools := r.GetTools()
	defs := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return defs
}

// Execute runs the specified tool with given arguments.
func (r *Registry) Execute(ctx context.Context, function string, args map[string]interface{}) *ToolResult {
	return r.ExecuteWithOptions(ctx, function, args, ExecuteOptions{})
}

// ExecuteWithOptions runs the tool using the provided options.
func (r *Registry) ExecuteWithOptions(ctx context.Context, function string, args map[string]interface{}, opts ExecuteOptions) *ToolResult {
	result := &ToolResult{
		Function: function,
	}

	tool, exists := r.getTool(function)
	if !exists {
		result.Error = fmt.Errorf("%w: %s", ErrToolNotFound, function)
		result.Result = fmt.Sprintf("Error: Tool '%s' not found. Available tools: %v", function, r.GetToolNames())
		return result
	}

	perm := r.getPermission(function)
	if !perm.Allowed {
		result.Error = fmt.Errorf("%w: %s", ErrToolNotAllowed, function)
		result.Result = errorString(NewPermissionError(function, "blocked by policy"))
		return result
	}
	if perm.RequireConfirmation && !opts.Force {
		result.Error = fmt.Errorf("%w: %s", ErrToolRequiresConfirmation, function)
		result.Result = fmt.Sprintf("Error: Tool '%s' requires explicit approval before running.", function)
		return result
	}

	if err := tool.Validate(args); err != nil {
		result.Error = fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		result.Result = errorString(result.Error)
		return result
	}

	if err := r.getLimiter(function).Allow(); err != nil {
		result.Error = err
		result.Result = fmt.Sprintf("Error: %s: %v", function, err)
		return result
	}

	out, err := tool.Execute(ctx, args)
	if err != nil {
		result.Error = err
		result.Result = errorString(err)
		return result
	}
	result.Result = out
	return result
}

// ExecuteOpenAIToolCall executes an OpenAI tool call payload.
func (r *Registry) ExecuteOpenAIToolCall(ctx context.Context, call openai.ToolCall) *ToolResult {
	return r.ExecuteOpenAIToolCallWithOptions(ctx, call, ExecuteOptions{})
}

// ExecuteOpenAIToolCallWithOptions executes a tool call with execution options.
func (r *Registry) ExecuteOpenAIToolCallWithOptions(ctx context.Context, call openai.ToolCall, opts ExecuteOptions) *ToolResult {
	name := call.Function.Name
	if name == "" {
		err := fmt.Errorf("%w: tool call missing function name", ErrInvalidArguments)
		return &ToolResult{
			Function: "unknown_tool",
			Error:    err,
			Result:   errorString(err),
		}
	}
	args, err := parseToolArgs(call.Function.Arguments)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		return &ToolResult{
			Function: name,
			Error:    err,
			Result:   errorString(err),
		}
	}
	return r.ExecuteWithOptions(ctx, name, args, opts)
}

// AllowTool marks a tool as allowed and optionally keeps confirmation requirements.
func (r *Registry) AllowTool(name string, requireConfirmation bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	perm := r.permissions[name]
	perm.Allowed = true
	perm.RequireConfirmation = requireConfirmation
	r.permissions[name] = perm
}

// SetAllowed toggles whether a tool is allowed.
func (r *Registry) SetAllowed(name string, allowed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	perm := r.permissions[name]
	perm.Allowed = allowed
	r.permissions[name] = perm
}

// SetRequireConfirmation toggles per-tool confirmation.
func (r *Registry) SetRequireConfirmation(name string, require bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	perm := r.permissions[name]
	perm.RequireConfirmation = require
	r.permissions[name] = perm
}

// GetPermission returns the current permission entry for a tool.
func (r *Registry) GetPermission(name string) Permission {
	return r.getPermission(name)
}

// FormatToolResult renders a tool result for terminal display.
func FormatToolResult(call openai.ToolCall, result *ToolResult, showArgs bool) string {
	header := fmt.Sprintf("[%s]", result.Function)
	if showArgs {
		if argsMap, err := parseToolArgs(call.Function.Arguments); err == nil && len(argsMap) > 0 {
			delete(argsMap, "content")
			if redacted, err := json.Marshal(argsMap); err == nil {
				header += " " + string(redacted)
			}
		}
	}
	return header + "\n" + result.Result
}

// getTool safely retrieves a tool definition.
func (r *Registry) getTool(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

func (r *Registry) getLimiter(name string) *toolRateLimiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[name]
}

// getPermission safely fetches permissions for a tool.
func (r *Registry) getPermission(name string) Permission {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if perm, ok := r.permissions[name]; ok {
		return perm
	}
	// Default for unknown tools: blocked and requires confirmation.
	return Permission{Allowed: false, RequireConfirmation: true}
}
