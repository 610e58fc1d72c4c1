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
	"sort"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindBool
	kindStringList
	kindNumberMap
	kindObject
)

// field describes one key of agenttools.json. Objects list their children.
type field struct {
	kind   fieldKind
	fields map[string]field
}

func object(fields map[string]field) field {
	return field{kind: kindObject, fields: fields}
}

var (
	stringField     = field{kind: kindString}
	numberField     = field{kind: kindNumber}
	boolField       = field{kind: kindBool}
	stringListField = field{kind: kindStringList}
	numberMapField  = field{kind: kindNumberMap}
)

var configFields = map[string]field{
	"working_directory":    stringField,
	"command_history_file": stringField,
	"tools": object(map[string]field{
		"allow":                stringListField,
		"ask":                  stringListField,
		"deny":                 stringListField,
		"require_confirmation": stringListField,
	}),
	"tool_limits": object(map[string]field{
		"max_chars":             numberField,
		"max_write_bytes":       numberField,
		"max_directory_entries": numberField,
	}),
	"tool_rate_limits": object(map[string]field{
		"default_per_minute": numberField,
		"per_tool":           numberMapField,
		"cooldown_seconds":   numberMapField,
	}),
	"tool_timeouts": object(map[string]field{
		"default_seconds":  numberField,
		"per_tool_seconds": numberMapField,
	}),
	"tool_output_filters": object(map[string]field{
		"max_chars":     numberField,
		"strip_ansi":    boolField,
		"strip_control": boolField,
	}),
	"runner": object(map[string]field{
		"command":   stringField,
		"args":      stringListField,
		"extension": stringField,
		"language":  stringField,
	}),
}

// SchemaJSON returns the JSON schema for agenttools.json.
func SchemaJSON() string {
	schema := schemaFor(object(configFields))
	schema["$schema"] = "https://json-schema.org/draft/2020-12/schema"
	schema["title"] = "agenttools config"
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ExampleConfigJSON returns a commented example config.
func ExampleConfigJSON() string {
	return exampleConfigJSON
}

// normalizeConfigJSON migrates legacy keys and rejects unknown fields and
// mistyped values before the document is decoded into Config.
func normalizeConfigJSON(data []byte) ([]byte, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	migrateLegacyConfig(raw)
	if err := checkObject(raw, configFields, ""); err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

// migrateLegacyConfig accepts the older "workdir" and "tools.confirm" keys.
func migrateLegacyConfig(raw map[string]interface{}) {
	renameKey(raw, "workdir", "working_directory")
	if section, ok := raw["tools"].(map[string]interface{}); ok {
		renameKey(section, "confirm", "require_confirmation")
	}
}

// renameKey moves from to to unless to is already set; from is dropped either way.
func renameKey(m map[string]interface{}, from, to string) {
	value, ok := m[from]
	if !ok {
		return
	}
	delete(m, from)
	if _, exists := m[to]; !exists {
		m[to] = value
	}
}

func checkObject(section map[string]interface{}, fields map[string]field, path string) error {
	keys := make([]string, 0, len(section))
	for key := range section {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		name := key
		if path != "" {
			name = path + "." + key
		}
		f, ok := fields[key]
		if !ok {
			return fmt.Errorf("unknown configuration field %q", name)
		}
		if err := checkValue(section[key], f, name); err != nil {
			return err
		}
	}
	return nil
}

func checkValue(value interface{}, f field, name string) error {
	switch f.kind {
	case kindString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%s must be a string", name)
		}
	case kindNumber:
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("%s must be a number", name)
		}
	case kindBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s must be a boolean", name)
		}
	case kindStringList:
		list, ok := value.([]interface{})
		if !ok {
			return fmt.Errorf("%s must be an array of strings", name)
		}
		for i, item := range list {
			if _, ok := item.(string); !ok {
				return fmt.Errorf("%s[%d] must be a string", name, i)
			}
		}
	case kindNumberMap:
		entries, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%s must be an object of number values", name)
		}
		for key, entry := range entries {
			if _, ok := entry.(float64); !ok {
				return fmt.Errorf("%s.%s must be a number", name, key)
			}
		}
	case kindObject:
		section, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%s must be an object", name)
		}
		return checkObject(section, f.fields, name)
	}
	return nil
}

func schemaFor(f field) map[string]interface{} {
	switch f.kind {
	case kindString:
		return map[string]interface{}{"type": "string"}
	case kindNumber:
		return map[string]interface{}{"type": "number"}
	case kindBool:
		return map[string]interface{}{"type": "boolean"}
	case kindStringList:
		return map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		}
	case kindNumberMap:
		return map[string]interface{}{
			"type":                 "object",
			"additionalProperties": map[string]interface{}{"type": "number"},
		}
	}
	props := make(map[string]interface{}, len(f.fields))
	for key, child := range f.fields {
		props[key] = schemaFor(child)
	}
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

const exampleConfigJSON = `{
  // Every tool call is confined to this directory.
  "working_directory": "./calculator",
  "tools": {
    "allow": ["get_files_info", "get_file_content", "write_file", "run_python_file"],
    "require_confirmation": ["write_file", "run_python_file"]
  },
  "tool_limits": {
    "max_chars": 10000,
    "max_write_bytes": 10485760,
    "max_directory_entries": 2000
  },
  "tool_rate_limits": {
    "default_per_minute": 60,
    // Give a looping agent a breather between script runs.
    "cooldown_seconds": { "run_python_file": 1 }
  },
  "tool_timeouts": {
    "per_tool_seconds": { "run_python_file": 30 }
  },
  "runner": {
    "command": "uv",
    "args": ["run"],
    "extension": ".py"
  },
}`
