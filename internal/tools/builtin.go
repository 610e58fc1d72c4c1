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
)

// Built-in tool names.
const (
	ToolGetFilesInfo   = "get_files_info"
	ToolGetFileContent = "get_file_content"
	ToolWriteFile      = "write_file"
	ToolRunPythonFile  = "run_python_file"
)

// GetFilesInfoArgs are the arguments of get_files_info.
type GetFilesInfoArgs struct {
	Directory string `json:"directory,omitempty" jsonschema_description:"The directory to list files from, relative to the working directory. If not provided, lists files in the working directory itself."`
}

// GetFileContentArgs are the arguments of get_file_content.
type GetFileContentArgs struct {
	FilePath string `json:"file_path" jsonschema_description:"The path to the file to read, relative to the working directory."`
}

// WriteFileArgs are the arguments of write_file.
type WriteFileArgs struct {
	FilePath string `json:"file_path" jsonschema_description:"The path of the file to create or overwrite, relative to the working directory."`
	Content  string `json:"content" jsonschema_description:"The exact content to write to the file."`
}

// RunPythonFileArgs are the arguments of run_python_file.
type RunPythonFileArgs struct {
	FilePath string   `json:"file_path" jsonschema_description:"The path to the Python file to execute, relative to the working directory."`
	Args     []string `json:"args,omitempty" jsonschema_description:"Optional command line arguments passed to the script."`
}

// registerBuiltInTools registers the confined file tools bound to the
// registry's working directory.
func registerBuiltInTools(r *Registry) {
	tb := r.toolbox

	r.RegisterTool(&ToolDefinition{
		NameValue:        ToolGetFilesInfo,
		DescriptionValue: "Lists files in the specified directory along with their sizes, constrained to the working directory.",
		ParametersValue:  mustSchemaParametersFor[GetFilesInfoArgs](),
		ExecuteFunc: func(ctx context.Context, args map[string]interface{}) (string, error) {
			in, err := decodeArgs[GetFilesInfoArgs](args)
			if err != nil {
				return "", err
			}
			return tb.call(ToolGetFilesInfo, in.Directory, func() (string, error) {
				return tb.listFiles(ctx, r.workingDir, in.Directory)
			})
		},
		ValidateFunc: OptionalStringArg("directory", "invalid 'directory' parameter"),
	})

	r.RegisterTool(&ToolDefinition{
		NameValue: ToolGetFileContent,
		DescriptionValue: fmt.Sprintf("Displays the content of a specific file up to a maximum of %d characters, constrained to the working directory.",
			tb.limits.MaxChars),
		ParametersValue: mustSchemaParametersFor[GetFileContentArgs](),
		ExecuteFunc: func(ctx context.Context, args map[string]interface{}) (string, error) {
			in, err := decodeArgs[GetFileContentArgs](args)
			if err != nil {
				return "", err
			}
			return tb.call(ToolGetFileContent, in.FilePath, func() (string, error) {
				return tb.readFile(ctx, r.workingDir, in.FilePath)
			})
		},
		ValidateFunc: RequireStringArg("file_path", "missing or invalid 'file_path' parameter"),
	})

	r.RegisterTool(&ToolDefinition{
		NameValue:        ToolWriteFile,
		DescriptionValue: "Creates or overwrites a file with the given content, creating parent directories as needed, constrained to the working directory.",
		ParametersValue:  mustSchemaParametersFor[WriteFileArgs](),
		ExecuteFunc: func(ctx context.Context, args map[string]interface{}) (string, error) {
			in, err := decodeArgs[WriteFileArgs](args)
			if err != nil {
				return "", err
			}
			return tb.call(ToolWriteFile, in.FilePath, func() (string, error) {
				return tb.writeFile(ctx, r.workingDir, in.FilePath, in.Content)
			})
		},
		ValidateFunc: ChainValidation(
			RequireStringArg("file_path", "missing or invalid 'file_path' parameter"),
			RequireStringTypeArg("content", "missing or invalid 'content' parameter"),
		),
	})

	r.RegisterTool(&ToolDefinition{
		NameValue: ToolRunPythonFile,
		DescriptionValue: fmt.Sprintf("Executes a %s (%s) file located within the working directory using the '%s' runtime. "+
			"Captures and returns standard output and error streams. "+
			"Rejects execution if the file is outside the working directory or not a valid %s file.",
			tb.runner.Language, tb.runner.Extension, tb.runner.Command, tb.runner.Language),
		ParametersValue: mustSchemaParametersFor[RunPythonFileArgs](),
		ExecuteFunc: func(ctx context.Context, args map[string]interface{}) (string, error) {
			in, err := decodeArgs[RunPythonFileArgs](args)
			if err != nil {
				return "", err
			}
			return tb.call(ToolRunPythonFile, in.FilePath, func() (string, error) {
				return tb.runFile(ctx, r.workingDir, in.FilePath, in.Args)
			})
		},
		ValidateFunc: ChainValidation(
			RequireStringArg("file_path", "missing or invalid 'file_path' parameter"),
			StringArrayArg("args", "invalid 'args' parameter: expected an array of strings"),
		),
	})
}

// decodeArgs converts loosely typed tool arguments into T.
func decodeArgs[T any](args map[string]interface{}) (T, error) {
	var out T
	if args == nil {
		return out, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return out, nil
}
