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
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"agenttools/internal/config"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

var (
	debugMode   = flag.Bool("d", false, "Enable debug mode")
	logFile     = flag.String("log-file", "", "Log file path (logs disabled by default)")
	configPath  = flag.String("config", config.DefaultConfigFile, "Config file path")
	workdir     = flag.String("workdir", "", "Directory every tool call is confined to (overrides config)")
	assumeYes   = flag.Bool("yes", false, "Run tools that require confirmation without asking")
	version     = flag.Bool("version", false, "Print version and exit")
	listTools   = flag.Bool("list-tools", false, "Print the tool definitions as JSON and exit")
	printSchema = flag.Bool("config-schema", false, "Print the config file JSON schema and exit")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *version {
		fmt.Println(Version)
		return 0
	}
	if *printSchema {
		fmt.Println(config.SchemaJSON())
		return 0
	}

	logger, closer, err := initLogger(*debugMode, *logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if closer != nil {
		defer closer.Close()
	}
	logger.Info().Str("version", Version).Msg("agenttools starting")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load config")
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		return 1
	}
	if *workdir != "" {
		cfg.WorkingDirectory = *workdir
	}

	a := newApp(cfg, logger, *assumeYes, newToolApprover())

	if *listTools {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(a.registry.OpenAITools()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	ctx := context.Background()
	args := flag.Args()
	if (len(args) > 0 && args[0] == "-") || !term.IsTerminal(int(os.Stdin.Fd())) {
		logger.Debug().Msg("Running in batch mode")
		if err := runBatch(ctx, a, os.Stdin, os.Stdout); err != nil {
			logger.Error().Err(err).Msg("Batch mode failed")
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if err := runTUIMode(ctx, a); err != nil {
		logger.Error().Err(err).Msg("Interactive mode failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	logger.Info().Msg("Session ended")
	return 0
}

func initLogger(debug bool, logFilePath string) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	var output io.Writer = io.Discard
	var closer io.Closer
	if logFilePath != "" {
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		closer = file
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger(), closer, nil
}
