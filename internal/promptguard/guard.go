// Package promptguard screens free text bound for the AI editor against
// ordered layers of injection patterns.
//
// This is advisory defense-in-depth, not a security boundary: no finite rule
// set can enumerate every natural-language framing of an attack. The goal is
// to stop the common, automatable patterns cheaply before the text reaches
// the editor; the sandbox, command policy, and environment allow-list remain
// the boundaries that hold when this screen misses.
package promptguard

import (
	"fmt"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// Verdict is the outcome of scanning one text blob. The zero value is not
// meaningful; use Clean() or the result of Scan.
type Verdict struct {
	Blocked bool
	Layer   Layer
	RuleID  string
}

// Clean returns the allow verdict.
func Clean() Verdict { return Verdict{} }

// String renders the verdict for audit entries. The scanned text itself is
// never part of it.
func (v Verdict) String() string {
	if !v.Blocked {
		return "clean"
	}
	return fmt.Sprintf("blocked layer=%s rule=%s", v.Layer, v.RuleID)
}

// ruleFile is the YAML shape for operator-supplied rules. Loaded once at
// startup; editing the file requires a restart.
type ruleFile struct {
	Rules []struct {
		ID      string `yaml:"id"`
		Layer   string `yaml:"layer"`
		Pattern string `yaml:"pattern"`
	} `yaml:"rules"`
}

// Guard scans text against the layered rule table. Stateless per call; safe
// for concurrent use.
type Guard struct {
	// rules ordered by layer, so the first match is always the match from
	// the earliest layer.
	rules       []Rule
	fingerprint uint64
}

// New returns a guard with the built-in rule table.
func New() *Guard {
	return newGuard(defaultRules())
}

// NewFromFile returns a guard with the built-in table extended by rules from
// a YAML file.
func NewFromFile(path string) (*Guard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse rule file: %w", err)
	}

	rules := defaultRules()
	for _, r := range rf.Rules {
		layer, ok := ParseLayer(r.Layer)
		if !ok {
			return nil, fmt.Errorf("rule %q: unknown layer %q", r.ID, r.Layer)
		}
		compiled, err := compileRule(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.ID, err)
		}
		rules = append(rules, Rule{ID: r.ID, Layer: layer, Pattern: compiled})
	}
	return newGuard(rules), nil
}

func newGuard(rules []Rule) *Guard {
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Layer < rules[j].Layer })

	// Fingerprint the table so audit entries can be correlated with the
	// exact rule set that produced them.
	h := xxhash.New()
	for _, r := range rules {
		_, _ = h.WriteString(r.ID)
		_, _ = h.WriteString(r.Pattern.String())
	}
	return &Guard{rules: rules, fingerprint: h.Sum64()}
}

// Fingerprint identifies the loaded rule set.
func (g *Guard) Fingerprint() string {
	return fmt.Sprintf("%016x", g.fingerprint)
}

// RuleCount returns the number of loaded rules.
func (g *Guard) RuleCount() int { return len(g.rules) }

// Scan evaluates the full, untruncated text layer by layer and stops at the
// first match.
func (g *Guard) Scan(text string) Verdict {
	if text == "" {
		return Clean()
	}
	for _, r := range g.rules {
		if r.Pattern.MatchString(text) {
			return Verdict{Blocked: true, Layer: r.Layer, RuleID: r.ID}
		}
	}
	return Clean()
}
