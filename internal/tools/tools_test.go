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
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func newTestRegistry(t *testing.T, launcher Launcher) (*Registry, string) {
	t.Helper()
	dir := calculatorWorkspace(t)
	return NewRegistry(dir, newTestToolbox(t, launcher, Limits{})), dir
}

func toolCall(name, args string) openai.ToolCall {
	return openai.ToolCall{
		ID:   "call_1",
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestRegistryToolNames(t *testing.T) {
	r, _ := newTestRegistry(t, &fakeLauncher{})
	want := []string{ToolGetFileContent, ToolGetFilesInfo, ToolRunPythonFile, ToolWriteFile}
	if got := r.GetToolNames(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestOpenAIToolsSchemas(t *testing.T) {
	r, _ := newTestRegistry(t, &fakeLauncher{})

	wantProps := map[string][]string{
		ToolGetFilesInfo:   {"directory"},
		ToolGetFileContent: {"file_path"},
		ToolWriteFile:      {"file_path", "content"},
		ToolRunPythonFile:  {"file_path", "args"},
	}

	defs := r.OpenAITools()
	if len(defs) != len(wantProps) {
		t.Fatalf("expected %d tools, got %d", len(wantProps), len(defs))
	}
	for _, def := range defs {
		if def.Type != openai.ToolTypeFunction || def.Function == nil {
			t.Fatalf("unexpected tool definition %+v", def)
		}
		if def.Function.Description == "" {
			t.Fatalf("%s: missing description", def.Function.Name)
		}
		params, ok := def.Function.Parameters.(map[string]interface{})
		if !ok {
			t.Fatalf("%s: parameters are %T", def.Function.Name, def.Function.Parameters)
		}
		if params["type"] != "object" {
			t.Fatalf("%s: expected object schema, got %v", def.Function.Name, params["type"])
		}
		if _, ok := params["$schema"]; ok {
			t.Fatalf("%s: $schema should be stripped", def.Function.Name)
		}
		props := params["properties"].(map[string]interface{})
		for _, key := range wantProps[def.Function.Name] {
			if _, ok := props[key]; !ok {
				t.Fatalf("%s: missing property %q in %v", def.Function.Name, key, props)
			}
		}
	}
}

func TestReadDescriptionMentionsLimit(t *testing.T) {
	r, _ := newTestRegistry(t, &fakeLauncher{})
	tool, ok := r.getTool(ToolGetFileContent)
	if !ok {
		t.Fatal("expected get_file_content to be registered")
	}
	if !strings.Contains(tool.Description(), "10000 characters") {
		t.Fatalf("expected limit in description, got %q", tool.Description())
	}
}

func TestExecuteOpenAIToolCallReadOnlyTools(t *testing.T) {
	r, _ := newTestRegistry(t, &fakeLauncher{})
	ctx := context.Background()

	result := r.ExecuteOpenAIToolCall(ctx, toolCall(ToolGetFileContent, `{"file_path":"pkg/calculator.py"}`))
	if result.Error != nil {
		t.Fatalf("unexpected error: %v", result.Error)
	}
	if result.Result != "class Calculator:\n    pass\n" {
		t.Fatalf("unexpected content %q", result.Result)
	}

	result = r.ExecuteOpenAIToolCall(ctx, toolCall(ToolGetFilesInfo, `{}`))
	if result.Error != nil || !strings.Contains(result.Result, "- main.py: ") {
		t.Fatalf("unexpected listing %+v", result)
	}
}

func TestExecuteOpenAIToolCallConfinement(t *testing.T) {
	r, _ := newTestRegistry(t, &fakeLauncher{})

	result := r.ExecuteOpenAIToolCall(context.Background(), toolCall(ToolGetFileContent, `{"file_path":"../secret"}`))
	if !errors.Is(result.Error, ErrOutsideWorkdir) {
		t.Fatalf("expected ErrOutsideWorkdir, got %v", result.Error)
	}
	if result.Result != `Error: Cannot read "../secret" as it is outside the permitted working directory` {
		t.Fatalf("unexpected result %q", result.Result)
	}
}

func TestExecuteRequiresConfirmation(t *testing.T) {
	launcher := &fakeLauncher{result: LaunchResult{Stdout: "ok"}}
	r, dir := newTestRegistry(t, launcher)
	ctx := context.Background()

	call := toolCall(ToolWriteFile, `{"file_path":"notes.txt","content":"hi"}`)
	result := r.ExecuteOpenAIToolCall(ctx, call)
	if !errors.Is(result.Error, ErrToolRequiresConfirmation) {
		t.Fatalf("expected confirmation error, got %v", result.Error)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); !os.IsNotExist(err) {
		t.Fatal("expected no write before confirmation")
	}

	result = r.ExecuteOpenAIToolCallWithOptions(ctx, call, ExecuteOptions{Force: true})
	if result.Error != nil {
		t.Fatalf("unexpected error: %v", result.Error)
	}
	if result.Result != `Successfully wrote to "notes.txt" (2 characters written)` {
		t.Fatalf("unexpected result %q", result.Result)
	}

	run := toolCall(ToolRunPythonFile, `{"file_path":"main.py","args":["1 + 1"]}`)
	if result := r.ExecuteOpenAIToolCall(ctx, run); !errors.Is(result.Error, ErrToolRequiresConfirmation) {
		t.Fatalf("expected confirmation error, got %v", result.Error)
	}
	if launcher.calls() != 0 {
		t.Fatal("expected no launch before confirmation")
	}

	r.AllowTool(ToolRunPythonFile, false)
	result = r.ExecuteOpenAIToolCall(ctx, run)
	if result.Error != nil || result.Result != "STDERR: \nSTDOUT: ok" {
		t.Fatalf("unexpected run result %+v", result)
	}
	if got := launcher.last().Argv; got[len(got)-1] != "1 + 1" {
		t.Fatalf("expected script argument to be forwarded, got %v", got)
	}
}

func TestExecuteBlockedTool(t *testing.T) {
	dir := calculatorWorkspace(t)
	r := NewRegistryWithPolicy(dir, newTestToolbox(t, &fakeLauncher{}, Limits{}),
		PolicyFromLists([]string{ToolGetFilesInfo}, nil))

	result := r.Execute(context.Background(), ToolGetFileContent, map[string]interface{}{"file_path": "main.py"})
	if !errors.Is(result.Error, ErrToolNotAllowed) {
		t.Fatalf("expected ErrToolNotAllowed, got %v", result.Error)
	}
	if !strings.HasPrefix(result.Result, "Error: permission denied for tool get_file_content") {
		t.Fatalf("unexpected result %q", result.Result)
	}
	if perm := r.GetPermission(ToolWriteFile); perm.Allowed || !perm.RequireConfirmation {
		t.Fatalf("expected write_file blocked with confirmation, got %+v", perm)
	}
}

func TestExecuteOpenAIToolCallMalformed(t *testing.T) {
	r, _ := newTestRegistry(t, &fakeLauncher{})
	ctx := context.Background()

	tests := []struct {
		name     string
		call     openai.ToolCall
		function string
		want     error
	}{
		{name: "missing name", call: toolCall("", `{}`), function: "unknown_tool", want: ErrInvalidArguments},
		{name: "invalid json", call: toolCall(ToolGetFileContent, `{"file_path":`), function: ToolGetFileContent, want: ErrInvalidArguments},
		{name: "unknown tool", call: toolCall("delete_everything", `{}`), function: "delete_everything", want: ErrToolNotFound},
		{name: "missing argument", call: toolCall(ToolGetFileContent, `{}`), function: ToolGetFileContent, want: ErrInvalidArguments},
		{name: "wrong type", call: toolCall(ToolGetFilesInfo, `{"directory":5}`), function: ToolGetFilesInfo, want: ErrInvalidArguments},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := r.ExecuteOpenAIToolCall(ctx, tt.call)
			if result.Function != tt.function {
				t.Fatalf("expected function %q, got %q", tt.function, result.Function)
			}
			if !errors.Is(result.Error, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, result.Error)
			}
			if !strings.HasPrefix(result.Result, "Error") {
				t.Fatalf("expected error string, got %q", result.Result)
			}
		})
	}
}

func TestExecuteRunArgsValidation(t *testing.T) {
	launcher := &fakeLauncher{}
	r, _ := newTestRegistry(t, launcher)

	result := r.ExecuteOpenAIToolCallWithOptions(context.Background(),
		toolCall(ToolRunPythonFile, `{"file_path":"main.py","args":[1,2]}`), ExecuteOptions{Force: true})
	if !errors.Is(result.Error, ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments, got %v", result.Error)
	}
	if launcher.calls() != 0 {
		t.Fatal("expected no launch for invalid args")
	}
}

func TestValidateToolCall(t *testing.T) {
	r, _ := newTestRegistry(t, &fakeLauncher{})

	if res := r.ValidateToolCall(ToolWriteFile, `{"file_path":"a.txt","content":""}`); res != nil {
		t.Fatalf("expected empty content to be valid, got %+v", res)
	}
	if res := r.ValidateToolCall(ToolWriteFile, `{"file_path":"a.txt"}`); res == nil || !errors.Is(res.Error, ErrInvalidArguments) {
		t.Fatalf("expected missing content to fail, got %+v", res)
	}
	if res := r.ValidateToolCall("nope", `{}`); res == nil || !errors.Is(res.Error, ErrToolNotFound) {
		t.Fatalf("expected unknown tool to fail, got %+v", res)
	}
}

func TestFormatToolResultRedactsContent(t *testing.T) {
	call := toolCall(ToolWriteFile, `{"file_path":"a.txt","content":"secret body"}`)
	out := FormatToolResult(call, &ToolResult{Function: ToolWriteFile, Result: "done"}, true)
	if strings.Contains(out, "secret body") {
		t.Fatalf("expected content to be redacted: %q", out)
	}
	if out != "[write_file] {\"file_path\":\"a.txt\"}\ndone" {
		t.Fatalf("unexpected format %q", out)
	}
}
