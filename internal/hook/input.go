// Package hook implements the pre-tool gate: parse the assistant's hook
// event, classify the command, and coordinate a human verdict before the
// tool call proceeds.
package hook

import (
	"encoding/json"
	"fmt"
	"io"
)

// Decision values written back to the assistant.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

// Event is the hook payload read from stdin. Only Bash-like tool calls
// carry a command; other tools pass through untouched.
type Event struct {
	ToolName  string `json:"tool_name"`
	Cwd       string `json:"cwd"`
	ToolInput struct {
		Command string `json:"command"`
	} `json:"tool_input"`
}

// Decision is the hook verdict written to stdout. Reason is surfaced to
// the assistant so it can explain the block to the user.
type Decision struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

// ParseEvent decodes one hook event. Malformed input is an error; the
// caller denies rather than letting an unclassifiable command through.
func ParseEvent(r io.Reader) (Event, error) {
	var ev Event
	dec := json.NewDecoder(r)
	if err := dec.Decode(&ev); err != nil {
		return Event{}, fmt.Errorf("parse hook event: %w", err)
	}
	return ev, nil
}

// WriteDecision encodes the verdict for the assistant.
func WriteDecision(w io.Writer, d Decision) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("write decision: %w", err)
	}
	return nil
}

// IsCommandTool reports whether the tool executes shell commands and is
// therefore subject to the gate.
func IsCommandTool(name string) bool {
	return name == "Bash"
}
