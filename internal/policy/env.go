package policy

import (
	"os"
	"strings"
)

// envAllowList names the only environment variables ever passed to a
// spawned subprocess. Whitelist, not blocklist: anything token-shaped that
// lives in the parent environment simply never crosses the exec boundary.
var envAllowList = []string{
	"PATH", "PATHEXT", "SYSTEMROOT", "WINDIR", "COMSPEC",
	"TEMP", "TMP", "TMPDIR", "HOME", "USER", "USERNAME", "SHELL",
	"LANG", "LC_ALL", "LC_CTYPE", "TERM", "COLORTERM",
	"EDITOR", "VISUAL", "PAGER", "DISPLAY",
	"XDG_RUNTIME_DIR", "XDG_CONFIG_HOME", "XDG_DATA_HOME",
	"HOMEDRIVE", "HOMEPATH", "USERPROFILE", "APPDATA", "LOCALAPPDATA",
	// git-specific
	"GIT_EXEC_PATH", "GIT_TEMPLATE_DIR", "GIT_SSL_CAINFO",
	"GIT_AUTHOR_NAME", "GIT_AUTHOR_EMAIL",
	"GIT_COMMITTER_NAME", "GIT_COMMITTER_EMAIL",
}

// SafeEnv returns the allow-listed subset of the current environment in
// exec.Cmd.Env form.
func SafeEnv() []string {
	env := make([]string, 0, len(envAllowList))
	for _, key := range envAllowList {
		if value, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+value)
		}
	}
	return env
}

// SanitizeForSubprocess strips metacharacters and control characters from
// free text that must travel as a single subprocess argument (commit
// messages, editor prompts). Best effort on top of Check, not a substitute.
func SanitizeForSubprocess(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\x00", "")
	for _, meta := range []string{"$(", "${", "`", ";", "&&", "||", "|", ">", "<"} {
		text = strings.ReplaceAll(text, meta, " ")
	}
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	return strings.Join(strings.Fields(text), " ")
}
