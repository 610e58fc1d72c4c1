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
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"

	"agenttools/internal/tools"
)

// write_file content is JSON-escaped twice on a batch line: once inside the
// arguments string and once more inside the tool call. A control byte grows
// to \\u00XX, seven bytes.
const (
	batchEscapeFactor = 7
	batchLineHeadroom = 64 * 1024
)

// batchLineLimit is the longest tool call line accepted for a write cap.
func batchLineLimit(maxWriteBytes int64) int {
	if maxWriteBytes <= 0 {
		maxWriteBytes = tools.DefaultLimits().MaxWriteBytes
	}
	return int(maxWriteBytes)*batchEscapeFactor + batchLineHeadroom
}

// runBatch reads one JSON tool call per line and answers each with a JSON
// tool message carrying the result string.
func runBatch(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	reader := bufio.NewReaderSize(in, 64*1024)
	encoder := json.NewEncoder(out)
	maxLine := batchLineLimit(a.cfg.ToolLimits.MaxWriteBytes)

	for lineNo := 1; ; lineNo++ {
		raw, tooLong, readErr := readBatchLine(reader, maxLine)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("error reading input: %w", readErr)
		}

		var msg *openai.ChatCompletionMessage
		if tooLong {
			a.logger.Warn().Int("line", lineNo).Int("max_bytes", maxLine).Msg("Tool call line too long")
			msg = &openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleTool,
				Content: fmt.Sprintf("Error: invalid tool call on line %d: line exceeds %d bytes", lineNo, maxLine),
			}
		} else if text := strings.TrimSpace(string(raw)); text != "" {
			msg = a.batchMessage(ctx, lineNo, text)
		}
		if msg != nil {
			if err := encoder.Encode(msg); err != nil {
				return err
			}
		}

		if readErr != nil {
			return nil
		}
	}
}

func (a *app) batchMessage(ctx context.Context, lineNo int, text string) *openai.ChatCompletionMessage {
	var call openai.ToolCall
	if err := json.Unmarshal([]byte(text), &call); err != nil {
		a.logger.Warn().Err(err).Int("line", lineNo).Msg("Invalid tool call")
		return &openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleTool,
			Content: fmt.Sprintf("Error: invalid tool call on line %d: %v", lineNo, err),
		}
	}

	result := a.execute(ctx, call)
	return &openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		Name:       result.Function,
		ToolCallID: call.ID,
		Content:    result.Result,
	}
}

// readBatchLine returns the next line without buffering more than max bytes.
// A longer line is consumed up to its newline and reported as tooLong.
func readBatchLine(r *bufio.Reader, max int) (line []byte, tooLong bool, err error) {
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			content := len(line) + len(chunk)
			if n := len(chunk); n > 0 && chunk[n-1] == '\n' {
				content--
			}
			if content > max {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, tooLong, err
	}
}
