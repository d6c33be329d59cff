package promptguard

import "regexp"

// Layer identifies one rule category. Layers are evaluated in declaration
// order, cheapest and highest-signal first.
type Layer int

const (
	// LayerCredentialExtraction catches attempts to read the bot token, env
	// vars, or API keys through the editor.
	LayerCredentialExtraction Layer = iota + 1
	// LayerInstructionOverride catches "ignore previous instructions" style
	// system-prompt attacks.
	LayerInstructionOverride
	// LayerRoleHijack catches jailbreak framings.
	LayerRoleHijack
	// LayerCommandInjection catches shell syntax embedded in natural text.
	LayerCommandInjection
	// LayerDataExfiltration catches requests to read or ship out sensitive
	// files.
	LayerDataExfiltration
)

// String returns the layer's stable name, used in rule files and audit
// entries.
func (l Layer) String() string {
	switch l {
	case LayerCredentialExtraction:
		return "credential_extraction"
	case LayerInstructionOverride:
		return "instruction_override"
	case LayerRoleHijack:
		return "role_hijack"
	case LayerCommandInjection:
		return "command_injection"
	case LayerDataExfiltration:
		return "data_exfiltration"
	default:
		return "unknown"
	}
}

// ParseLayer maps a rule-file layer name back to its Layer.
func ParseLayer(s string) (Layer, bool) {
	for l := LayerCredentialExtraction; l <= LayerDataExfiltration; l++ {
		if l.String() == s {
			return l, true
		}
	}
	return 0, false
}

// Rule is one pattern in the scan table.
type Rule struct {
	ID      string
	Layer   Layer
	Pattern *regexp.Regexp
}

// compileRule compiles an operator-supplied pattern. Patterns are standard
// Go regular expressions; authors add (?i) themselves when they want
// case-insensitivity, same as the built-in table.
func compileRule(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(pattern)
}

func mustRules(layer Layer, pairs ...string) []Rule {
	if len(pairs)%2 != 0 {
		panic("mustRules: odd pair count")
	}
	rules := make([]Rule, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		rules = append(rules, Rule{
			ID:      pairs[i],
			Layer:   layer,
			Pattern: regexp.MustCompile(pairs[i+1]),
		})
	}
	return rules
}

// defaultRules is the built-in scan table. It intentionally targets the
// common, automatable attack phrasings; see the package comment for why this
// can never be exhaustive.
func defaultRules() []Rule {
	var rules []Rule

	rules = append(rules, mustRules(LayerCredentialExtraction,
		"cred-show-token", `(?i)(show|reveal|print|display|output|give|tell|leak|expose)\s*(me\s*)?(the\s*)?(your\s*)?token`,
		"cred-what-token", `(?i)what\s*is\s*(the\s*)?(your\s*)?token`,
		"cred-print-env", `(?i)(print|show|list|get|dump)\s*env`,
		"cred-printenv", `(?i)\bprintenv\b`,
		"cred-echo-var", `(?i)echo\s*\$`,
		"cred-os-environ", `(?i)(os\.environ|process\.env|getenv\s*\()`,
		"cred-read-dotenv", `(?i)(read|cat|show|print|type|open)\s*\.env`,
		"cred-api-key", `(?i)(api|secret|access)\s*key`,
		"cred-bot-token", `(?i)(bot|telegram.*)\s*token`,
		"cred-password", `(?i)\bpasswords?\b`,
		"cred-credential", `(?i)\bcredentials?\b`,
		"cred-priv-key", `(?i)(ssh|private)\s*key`,
	)...)

	rules = append(rules, mustRules(LayerInstructionOverride,
		"ovr-ignore-instructions", `(?i)(ignore|disregard|forget)\s*(previous|all|prior|your)\s*(instructions|rules)`,
		"ovr-what-instructions", `(?i)what\s*(are|were)\s*(your|the)\s*instructions`,
		"ovr-system-prompt", `(?i)(show|reveal|print|repeat)\s*(me\s*)?(your\s*)?(system\s*prompt|initial\s*instructions)`,
		"ovr-your-rules", `(?i)tell\s*me\s*your\s*rules`,
		"ovr-bypass", `(?i)(bypass\s*restrictions|override\s*safety)`,
	)...)

	rules = append(rules, mustRules(LayerRoleHijack,
		"role-pretend", `(?i)pretend\s*(you\s*are|to\s*be)`,
		"role-act-as-if", `(?i)act\s*as\s*if`,
		"role-roleplay", `(?i)roleplay\s*as`,
		"role-you-are-now", `(?i)you\s*are\s*now\s*(a|an|the|in)\b`,
		"role-dan", `(?i)\b(dan|developer|unrestricted)\s*mode\b`,
		"role-no-restrictions", `(?i)(no\s*(restrictions|limits)|without\s*safety)`,
		"role-disable-filters", `(?i)(disable\s*filters|turn\s*off\s*safety)`,
	)...)

	rules = append(rules, mustRules(LayerCommandInjection,
		"inj-chained-rm", `(?i)[;|&]\s*(rm|del|format|shutdown|reboot)\b`,
		"inj-subst", `\$\([^)]*\)`,
		"inj-backtick", "`[^`]+`",
		"inj-delete-all", `(?i)(delete|remove|erase|destroy|wipe)\s*(all|every|everything|\*)`,
		"inj-format-drive", `(?i)(format|wipe)\s*(drive|disk|system|c:)`,
		"inj-net-tools", `(?i)\b(wget|curl\s+-|netcat|nc\s+-)\b`,
		"inj-exec-call", `(?i)\b(exec|eval|popen|system)\s*\(`,
		"inj-subprocess", `(?i)\b(subprocess|os\.system|__import__)\b`,
	)...)

	rules = append(rules, mustRules(LayerDataExfiltration,
		"exf-dotenv", `(?i)\.env\b`,
		"exf-keyfiles", `(?i)(id_rsa|id_ed25519|id_ecdsa|\.pem\b|\.key\b)`,
		"exf-ssh-dir", `(?i)\.ssh/`,
		"exf-known-hosts", `(?i)(known_hosts|authorized_keys)`,
		"exf-cloud-creds", `(?i)(\.aws/|\.npmrc|\.pypirc|\.gitconfig|\.git/config)`,
		"exf-secret-files", `(?i)secrets?\.(json|ya?ml|xml)`,
		"exf-db-dump", `(?i)(dump|export)\s*database`,
		"exf-send-out", `(?i)(send|upload|post)\b.{0,60}\b(to|via)\s*(http|email|server|webhook|api)`,
		"exf-exfiltrate", `(?i)\bexfiltrate\b`,
	)...)

	return rules
}
