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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/term"
)

type approvalDecision int

const (
	approvalUnknown approvalDecision = iota
	approvalYes
	approvalNo
	approvalAlways
)

// approvalAnswers is checked in order; any prefix of a word selects it.
var approvalAnswers = []struct {
	word     string
	decision approvalDecision
}{
	{"yes", approvalYes},
	{"no", approvalNo},
	{"always", approvalAlways},
}

type toolPromptFunc func(call openai.ToolCall) (approvalDecision, error)

// sessionApprover prompts for each confirmation-required call and remembers
// tools answered with "always" until the process exits.
type sessionApprover struct {
	prompt toolPromptFunc

	mu     sync.Mutex
	always map[string]bool
}

func newToolApprover() toolApprovalFunc {
	return newToolApproverWithPrompt(promptToolApproval)
}

func newToolApproverWithPrompt(prompt toolPromptFunc) toolApprovalFunc {
	s := &sessionApprover{prompt: prompt, always: make(map[string]bool)}
	return s.approve
}

func (s *sessionApprover) approve(call openai.ToolCall) (bool, error) {
	name := call.Function.Name

	s.mu.Lock()
	remembered := s.always[name]
	s.mu.Unlock()
	if remembered {
		return true, nil
	}

	decision, err := s.prompt(call)
	if err != nil {
		return false, err
	}
	switch decision {
	case approvalAlways:
		s.mu.Lock()
		s.always[name] = true
		s.mu.Unlock()
		return true, nil
	case approvalYes:
		return true, nil
	}
	return false, nil
}

// promptToolApproval asks on the controlling terminal. In batch mode stdin
// carries tool calls, so the question goes to /dev/tty instead.
func promptToolApproval(call openai.ToolCall) (approvalDecision, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return askApproval(call, bufio.NewReader(os.Stdin), os.Stdout)
	}
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return approvalNo, fmt.Errorf("no TTY available for tool approval")
	}
	defer tty.Close()
	return askApproval(call, bufio.NewReader(tty), tty)
}

func askApproval(call openai.ToolCall, reader *bufio.Reader, output io.Writer) (approvalDecision, error) {
	name := call.Function.Name
	if name == "" {
		name = "unknown_tool"
	}
	question := fmt.Sprintf("Allow tool %s%s? (Yes/no/always): ", name, describeArgs(call.Function.Arguments))

	for {
		fmt.Fprint(output, question)
		line, err := reader.ReadString('\n')
		if err != nil {
			return approvalNo, err
		}
		if decision := parseApprovalInput(line); decision != approvalUnknown {
			return decision, nil
		}
		fmt.Fprintln(output, "Please enter yes, no, or always.")
	}
}

// describeArgs renders the call arguments for the prompt. File content is
// replaced by its size.
func describeArgs(rawArgs string) string {
	rawArgs = strings.TrimSpace(rawArgs)
	if rawArgs == "" || rawArgs == "{}" || rawArgs == "null" {
		return ""
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return " with args " + rawArgs
	}
	if content, ok := args["content"].(string); ok {
		args["content"] = fmt.Sprintf("<%d bytes>", len(content))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(args); err != nil {
		return " with args " + rawArgs
	}
	return " with args " + strings.TrimSpace(buf.String())
}

// parseApprovalInput maps an answer to a decision. An empty answer means yes.
func parseApprovalInput(input string) approvalDecision {
	answer := strings.ToLower(strings.TrimSpace(input))
	if answer == "" {
		return approvalYes
	}
	for _, a := range approvalAnswers {
		if strings.HasPrefix(a.word, answer) {
			return a.decision
		}
	}
	return approvalUnknown
}
