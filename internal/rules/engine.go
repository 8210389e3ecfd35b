// Package rules classifies raw shell commands as safe or dangerous.
// Classification is a pure function of the command string and the
// configured pattern set: safe allowlist → user whitelist → user danger
// patterns → built-in danger patterns, first match wins.
package rules

import (
	"log/slog"
	"regexp"
)

// Severity ranks how dangerous a matched command is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// CustomPattern is a user-supplied danger pattern from config.
type CustomPattern struct {
	Pattern  string   `json:"pattern"`
	Severity Severity `json:"severity"`
	Reason   string   `json:"reason"`
}

// Verdict is the result of classifying one command.
type Verdict struct {
	Dangerous bool
	Severity  Severity
	Reason    string
	Pattern   string
}

// Engine holds the compiled pattern set. Construction compiles everything
// once; Classify is then side-effect free and deterministic.
type Engine struct {
	whitelist []*regexp.Regexp
	custom    []dangerPattern
}

// NewEngine compiles user whitelist and custom danger patterns on top of
// the built-in set. Invalid user patterns are skipped with a warning —
// a broken pattern must never turn into a false positive.
func NewEngine(custom []CustomPattern, whitelist []string) *Engine {
	e := &Engine{}

	for _, w := range whitelist {
		re, err := regexp.Compile(w)
		if err != nil {
			slog.Warn("skipping invalid whitelist pattern", "pattern", w, "error", err)
			continue
		}
		e.whitelist = append(e.whitelist, re)
	}

	for _, c := range custom {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			slog.Warn("skipping invalid custom danger pattern", "pattern", c.Pattern, "error", err)
			continue
		}
		sev := c.Severity
		switch sev {
		case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		default:
			sev = SeverityMedium
		}
		reason := c.Reason
		if reason == "" {
			reason = "Matched custom danger pattern"
		}
		e.custom = append(e.custom, dangerPattern{re: re, severity: sev, reason: reason})
	}

	return e
}

// Classify evaluates a command against the pattern set.
func (e *Engine) Classify(command string) Verdict {
	for _, re := range safePatterns {
		if re.MatchString(command) {
			return Verdict{Dangerous: false, Reason: "safe command"}
		}
	}

	for _, re := range e.whitelist {
		if re.MatchString(command) {
			return Verdict{Dangerous: false, Reason: "whitelisted"}
		}
	}

	for _, p := range e.custom {
		if p.re.MatchString(command) {
			return Verdict{Dangerous: true, Severity: p.severity, Reason: p.reason, Pattern: p.re.String()}
		}
	}

	for _, p := range builtinPatterns {
		if p.re.MatchString(command) {
			return Verdict{Dangerous: true, Severity: p.severity, Reason: p.reason, Pattern: p.re.String()}
		}
	}

	return Verdict{Dangerous: false, Reason: "no dangerous patterns detected"}
}
