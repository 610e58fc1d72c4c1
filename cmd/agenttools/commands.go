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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"

	"agenttools/internal/tools"
)

// Command represents an interactive command
type Command struct {
	Name        string
	Usage       string
	Description string
}

// getAvailableCommands returns the list of all interactive commands
func getAvailableCommands() []Command {
	return []Command{
		{Name: "ls", Usage: "ls [dir]", Description: "List files with sizes (get_files_info)"},
		{Name: "cat", Usage: "cat <file>", Description: "Show file content (get_file_content)"},
		{Name: "write", Usage: "write <file> <content>", Description: "Write content to a file; quote it to use \\n escapes (write_file)"},
		{Name: "run", Usage: "run <file> [args...]", Description: "Run a script and show its output (run_python_file)"},
		{Name: "tools", Usage: "tools", Description: "Show tools and their permissions"},
		{Name: "help", Usage: "help", Description: "Show available commands"},
		{Name: "quit", Usage: "quit", Description: "Exit the application"},
		{Name: "exit", Usage: "exit", Description: "Exit the application"},
	}
}

// handleCommand processes one input line, returns true if should quit
func handleCommand(ctx context.Context, a *app, line string, out io.Writer) bool {
	name, _ := cutWord(line)
	name = strings.ToLower(name)
	a.logger.Debug().Str("command", name).Msg("Executing command")

	switch name {
	case "quit", "exit":
		return true
	case "help":
		showHelp(out)
		return false
	case "tools":
		showTools(a.registry, out)
		return false
	}

	call, err := buildToolCall(line)
	if err != nil {
		fmt.Fprintf(out, "✗ %v (type help for available commands)\n", err)
		return false
	}

	// Ctrl+C while a script runs cancels it instead of leaving the shell.
	opCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	result := a.execute(opCtx, call)
	fmt.Fprintln(out, tools.FormatToolResult(call, result, false))
	return false
}

// buildToolCall maps an interactive command onto the tool call an agent
// would send for it.
func buildToolCall(line string) (openai.ToolCall, error) {
	name, rest := cutWord(line)
	args := map[string]interface{}{}
	var function string

	switch strings.ToLower(name) {
	case "ls":
		function = tools.ToolGetFilesInfo
		if dir, _ := cutWord(rest); dir != "" {
			args["directory"] = dir
		}
	case "cat":
		function = tools.ToolGetFileContent
		file, _ := cutWord(rest)
		if file == "" {
			return openai.ToolCall{}, fmt.Errorf("usage: cat <file>")
		}
		args["file_path"] = file
	case "write":
		function = tools.ToolWriteFile
		file, content := cutWord(rest)
		if file == "" {
			return openai.ToolCall{}, fmt.Errorf("usage: write <file> <content>")
		}
		if strings.HasPrefix(content, `"`) {
			unquoted, err := strconv.Unquote(content)
			if err != nil {
				return openai.ToolCall{}, fmt.Errorf("invalid quoted content: %v", err)
			}
			content = unquoted
		}
		args["file_path"] = file
		args["content"] = content
	case "run":
		function = tools.ToolRunPythonFile
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return openai.ToolCall{}, fmt.Errorf("usage: run <file> [args...]")
		}
		args["file_path"] = fields[0]
		if len(fields) > 1 {
			args["args"] = fields[1:]
		}
	default:
		return openai.ToolCall{}, fmt.Errorf("unknown command: %s", name)
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return openai.ToolCall{}, err
	}
	return openai.ToolCall{
		ID:   "interactive",
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      function,
			Arguments: string(raw),
		},
	}, nil
}

// cutWord splits off the first whitespace-delimited word.
func cutWord(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i+1:], " \t")
}

func showHelp(out io.Writer) {
	fmt.Fprintln(out, "\nAvailable Commands:")
	for _, cmd := range getAvailableCommands() {
		fmt.Fprintf(out, "  %-24s - %s\n", cmd.Usage, cmd.Description)
	}
	fmt.Fprintln(out, "\nKeyboard Shortcuts:")
	fmt.Fprintln(out, "  Ctrl+C                   - Cancel a running script")
	fmt.Fprintln(out, "  Tab                      - Auto-complete commands")
	fmt.Fprintln(out)
}

func showTools(registry *tools.Registry, out io.Writer) {
	fmt.Fprintf(out, "Working directory: %s\n", registry.WorkingDir())
	for _, tool := range registry.GetTools() {
		perm := registry.GetPermission(tool.Name())
		status := "allowed"
		switch {
		case !perm.Allowed:
			status = "blocked"
		case perm.RequireConfirmation:
			status = "ask"
		}
		fmt.Fprintf(out, "  %-18s [%s] %s\n", tool.Name(), status, tool.Description())
	}
}
