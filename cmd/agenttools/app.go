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
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"agenttools/internal/config"
	"agenttools/internal/tools"
)

// toolApprovalFunc asks the user whether a tool call may run.
type toolApprovalFunc func(call openai.ToolCall) (bool, error)

type app struct {
	cfg      *config.Config
	registry *tools.Registry
	logger   zerolog.Logger
	force    bool
	approve  toolApprovalFunc
}

func newApp(cfg *config.Config, logger zerolog.Logger, force bool, approve toolApprovalFunc) *app {
	opts := cfg.ToolboxOptions()
	opts.Logger = &logger
	registry := tools.NewRegistryWithPolicy(cfg.WorkingDirectory, tools.NewToolbox(opts), cfg.ToolPolicy())
	registry.SetRateLimits(cfg.ToolRateLimitsConfig())

	for _, warning := range cfg.Validate(registry) {
		logger.Warn().Str("field", warning.Field).Msg(warning.Message)
	}
	logger.Debug().
		Str("working_directory", cfg.WorkingDirectory).
		Strs("tools", registry.GetToolNames()).
		Msg("Tool registry ready")

	return &app{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
		force:    force,
		approve:  approve,
	}
}

// execute runs one tool call, asking for approval when the policy requires it.
func (a *app) execute(ctx context.Context, call openai.ToolCall) *tools.ToolResult {
	start := time.Now()
	result := a.registry.ExecuteOpenAIToolCallWithOptions(ctx, call, tools.ExecuteOptions{Force: a.force})

	if errors.Is(result.Error, tools.ErrToolRequiresConfirmation) && a.approve != nil {
		approved, err := a.approve(call)
		switch {
		case err != nil:
			a.logger.Warn().Err(err).Str("tool", result.Function).Msg("Tool approval failed")
			result.Result = fmt.Sprintf("Error: Tool '%s' could not be approved: %v", result.Function, err)
		case !approved:
			a.logger.Info().Str("tool", result.Function).Msg("Tool denied by user")
			result.Result = fmt.Sprintf("Error: Tool '%s' was not approved.", result.Function)
		default:
			result = a.registry.ExecuteOpenAIToolCallWithOptions(ctx, call, tools.ExecuteOptions{Force: true})
		}
	}

	event := a.logger.Info()
	if result.Error != nil {
		event = a.logger.Warn().Err(result.Error)
	}
	event.Str("tool", result.Function).
		Str("call_id", call.ID).
		Dur("duration_ms", time.Since(start)).
		Msg("Tool executed")
	return result
}
