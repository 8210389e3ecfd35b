package hook

import (
	"bytes"
	"strings"
	"testing"
)

// TestParseEvent verifies the stdin payload shape.
func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent(strings.NewReader(`{
		"tool_name": "Bash",
		"cwd": "/home/dev/project",
		"tool_input": {"command": "rm -rf build/"}
	}`))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.ToolName != "Bash" || ev.ToolInput.Command != "rm -rf build/" || ev.Cwd != "/home/dev/project" {
		t.Errorf("event = %+v", ev)
	}
}

// TestParseEvent_Malformed verifies garbage input is an error, not a
// silent allow.
func TestParseEvent_Malformed(t *testing.T) {
	if _, err := ParseEvent(strings.NewReader("not json")); err == nil {
		t.Fatal("ParseEvent accepted garbage")
	}
}

// TestWriteDecision verifies the stdout contract: decision plus optional
// reason, nothing else.
func TestWriteDecision(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDecision(&buf, Decision{Decision: DecisionDeny, Reason: "Rejected via Slack"}); err != nil {
		t.Fatal(err)
	}
	got := strings.TrimSpace(buf.String())
	want := `{"decision":"deny","reason":"Rejected via Slack"}`
	if got != want {
		t.Errorf("output = %s, want %s", got, want)
	}

	buf.Reset()
	WriteDecision(&buf, Decision{Decision: DecisionAllow})
	if strings.Contains(buf.String(), "reason") {
		t.Errorf("empty reason serialized: %s", buf.String())
	}
}

func TestIsCommandTool(t *testing.T) {
	if !IsCommandTool("Bash") {
		t.Error("Bash not gated")
	}
	for _, name := range []string{"Read", "Write", "Glob", ""} {
		if IsCommandTool(name) {
			t.Errorf("%q gated", name)
		}
	}
}
