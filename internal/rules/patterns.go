package rules

import "regexp"

// Anchored patterns for read-only shell operations. A match short-circuits
// classification before any danger pattern is consulted.
var safePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*git\s+(status|log|diff|show|branch|remote|stash\s+list)\b[^|;&>]*$`),
	regexp.MustCompile(`^\s*ls(\s+-[A-Za-z]+)*(\s+[^|;&><]+)?\s*$`),
	regexp.MustCompile(`^\s*pwd\s*$`),
	regexp.MustCompile(`^\s*whoami\s*$`),
	regexp.MustCompile(`^\s*date(\s+[^|;&><]+)?\s*$`),
	regexp.MustCompile(`^\s*(cat|head|tail|wc|file|stat)\s+[^|;&><]+\s*$`),
	regexp.MustCompile(`^\s*which\s+\S+\s*$`),
	regexp.MustCompile(`^\s*echo\s+[^|;&><` + "`" + `]*$`), // no redirection, no chaining
	regexp.MustCompile(`^\s*printenv\s+[A-Za-z_][A-Za-z0-9_]*\s*$`), // single variable, not a full dump
	regexp.MustCompile(`^\s*(go|npm|yarn|pnpm|cargo|pip3?)\s+(version|--version|-v)\s*$`),
	regexp.MustCompile(`^\s*uname(\s+-[A-Za-z]+)?\s*$`),
	regexp.MustCompile(`^\s*df(\s+-[A-Za-z]+)*\s*$`),
	regexp.MustCompile(`^\s*du(\s+-[A-Za-z]+)*(\s+[^|;&><]+)?\s*$`),
}

type dangerPattern struct {
	re       *regexp.Regexp
	severity Severity
	reason   string
}

// Built-in danger patterns, ordered by severity tier. First match wins
// across the whole list, so critical-tier entries are listed first.
var builtinPatterns = []dangerPattern{
	// ── Critical ──
	{regexp.MustCompile(`\brm\s+(-[a-zA-Z]*[rf][a-zA-Z]*\s+)+(/|/\*)(\s|$)`), SeverityCritical, "Recursive force delete from root directory"},
	{regexp.MustCompile(`\brm\s+(-[a-zA-Z]*[rf][a-zA-Z]*\s+)+(~|\$HOME)(/)?(\s|$|\*)`), SeverityCritical, "Recursive force delete of home directory"},
	{regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`), SeverityCritical, "Fork bomb"},
	{regexp.MustCompile(`\bdd\s+[^|;]*of=/dev/(sd[a-z]|nvme\d+n\d+|disk\d+|hd[a-z])`), SeverityCritical, "Raw write to block device"},
	{regexp.MustCompile(`>\s*/dev/(sd[a-z]|nvme\d+n\d+|disk\d+|hd[a-z])\b`), SeverityCritical, "Raw write to block device"},
	{regexp.MustCompile(`\bmkfs(\.\w+)?\b`), SeverityCritical, "Filesystem format"},

	// ── High ──
	{regexp.MustCompile(`\b(curl|wget)\b[^|;]*\|\s*(sudo\s+)?(ba|z|da)?sh\b`), SeverityHigh, "Piping network download into shell"},
	{regexp.MustCompile(`\bbase64\s+(-d|--decode)\b[^|;]*\|\s*(ba|z|da)?sh\b`), SeverityHigh, "Decoding encoded payload into shell"},
	{regexp.MustCompile(`\bgit\s+push\b[^|;]*(--force\b|-f\b)`), SeverityHigh, "Force push over remote history"},
	{regexp.MustCompile(`\bsudo\b`), SeverityHigh, "Elevated privilege invocation"},
	{regexp.MustCompile(`\bchmod\s+(-[a-zA-Z]+\s+)*([0-7]?777|a\+rwx|o\+w)\b`), SeverityHigh, "World-writable permission change"},
	{regexp.MustCompile(`\bgit\s+reset\s+--hard\b`), SeverityHigh, "Hard reset discards uncommitted work"},
	{regexp.MustCompile(`\brm\s+(-[a-zA-Z]+\s+)*(-[a-zA-Z]*r[a-zA-Z]*f[a-zA-Z]*|-[a-zA-Z]*f[a-zA-Z]*r[a-zA-Z]*)\b`), SeverityHigh, "Recursive force delete"},

	// ── Medium ──
	{regexp.MustCompile(`\b(npm|yarn|pnpm)\s+publish\b`), SeverityMedium, "Publishing to package registry"},
	{regexp.MustCompile(`\b(cargo|gem|twine)\s+(publish|push|upload)\b`), SeverityMedium, "Publishing to package registry"},
	{regexp.MustCompile(`\b(apt(-get)?|yum|dnf|brew|pacman)\s+(-\S+\s+)*install\b`), SeverityMedium, "Installing system packages"},
	{regexp.MustCompile(`\b(npm|yarn|pnpm)\s+(install|add)\s+\S`), SeverityMedium, "Installing packages"},
	{regexp.MustCompile(`\bpip3?\s+install\b`), SeverityMedium, "Installing packages"},
	{regexp.MustCompile(`\bdocker\s+(run|exec)\b`), SeverityMedium, "Container invocation that runs code"},

	// ── Low ──
	{regexp.MustCompile(`^\s*(env|printenv)\s*($|\||>)`), SeverityLow, "Printing the full environment"},
	{regexp.MustCompile(`^\s*(set|export\s+-p|declare\s+-x)\s*($|\|)`), SeverityLow, "Printing the full environment"},
}
