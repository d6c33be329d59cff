// Package secretdetect scans text for credential material so it can be
// redacted before leaving the process: audit entries, log lines, and replies
// sent back over the transport all pass through here.
package secretdetect

import (
	"regexp"
)

// Severity classifies how damaging a leaked match would be.
type Severity string

const (
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Pattern is one credential format the detector recognizes.
type Pattern struct {
	Name     string
	Regex    *regexp.Regexp
	Severity Severity
}

// Match is a single credential occurrence inside scanned text.
type Match struct {
	PatternName string
	Start       int
	End         int
	Severity    Severity
}

var defaultPatterns = []Pattern{
	{
		// Telegram bot token: the one secret this gateway exists to protect.
		Name:     "Telegram Bot Token",
		Regex:    regexp.MustCompile(`\d{8,10}:[A-Za-z0-9_-]{35,40}`),
		Severity: SeverityCritical,
	},
	{
		Name:     "OpenAI API Key",
		Regex:    regexp.MustCompile(`sk-[a-zA-Z0-9_\-]{32,}`),
		Severity: SeverityCritical,
	},
	{
		Name:     "Anthropic API Key",
		Regex:    regexp.MustCompile(`sk-ant-api03-[a-zA-Z0-9_\-]{20,}`),
		Severity: SeverityCritical,
	},
	{
		Name:     "AWS Access Key ID",
		Regex:    regexp.MustCompile(`(A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|AIPA|ANPA|ANVA|ASIA)[A-Z0-9]{16}`),
		Severity: SeverityHigh,
	},
	{
		Name:     "GitHub Token",
		Regex:    regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{36,}`),
		Severity: SeverityHigh,
	},
	{
		Name:     "Google API Key",
		Regex:    regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`),
		Severity: SeverityHigh,
	},
	{
		Name:     "Private Key Block",
		Regex:    regexp.MustCompile(`-----BEGIN (RSA |OPENSSH |EC |PGP |)PRIVATE KEY( BLOCK)?-----`),
		Severity: SeverityCritical,
	},
	{
		Name:     "Slack Token",
		Regex:    regexp.MustCompile(`xox[bp]-[0-9]{10,13}-[a-zA-Z0-9-]{10,}`),
		Severity: SeverityHigh,
	},
}

// Detector scans text against a set of credential patterns.
type Detector struct {
	patterns []Pattern
}

// NewDetector returns a detector loaded with the default pattern set.
func NewDetector() *Detector {
	return &Detector{patterns: defaultPatterns}
}

// NewEmptyDetector returns a detector with no patterns.
func NewEmptyDetector() *Detector {
	return &Detector{}
}

// AddPattern registers an additional pattern.
func (d *Detector) AddPattern(p Pattern) {
	d.patterns = append(d.patterns, p)
}

// AddLiteral registers an exact string (for example the configured bot token)
// so it is always detected regardless of format.
func (d *Detector) AddLiteral(name, literal string, sev Severity) {
	if literal == "" {
		return
	}
	d.AddPattern(Pattern{
		Name:     name,
		Regex:    regexp.MustCompile(regexp.QuoteMeta(literal)),
		Severity: sev,
	})
}

// Scan returns every credential occurrence found in content, ordered by
// position.
func (d *Detector) Scan(content string) []Match {
	var matches []Match
	for _, p := range d.patterns {
		for _, loc := range p.Regex.FindAllStringIndex(content, -1) {
			matches = append(matches, Match{
				PatternName: p.Name,
				Start:       loc[0],
				End:         loc[1],
				Severity:    p.Severity,
			})
		}
	}
	return matches
}

// HasSecret reports whether content contains any recognized credential.
func (d *Detector) HasSecret(content string) bool {
	for _, p := range d.patterns {
		if p.Regex.MatchString(content) {
			return true
		}
	}
	return false
}

// Redact replaces every detected credential with the standard placeholder.
func (d *Detector) Redact(content string) string {
	return d.RedactWithPlaceholder(content, "[REDACTED]")
}

// RedactWithPlaceholder replaces every detected credential with placeholder.
// Replacement runs per pattern over the whole text, so overlapping matches
// from different patterns cannot reassemble a secret.
func (d *Detector) RedactWithPlaceholder(content, placeholder string) string {
	for _, p := range d.patterns {
		content = p.Regex.ReplaceAllString(content, placeholder)
	}
	return content
}
