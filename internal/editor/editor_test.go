package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexfinRTP/telecode/internal/policy"
	"github.com/flexfinRTP/telecode/internal/secretdetect"
)

type run struct {
	dir   string
	name  string
	args  []string
	stdin string
}

func newTestBridge(installed map[string]string, output string) (*Bridge, *[]run) {
	var runs []run
	b := New("/work/project", policy.New(nil), secretdetect.NewDetector())
	b.lookPath = func(name string) (string, error) {
		if path, ok := installed[name]; ok {
			return path, nil
		}
		return "", errors.New("not found")
	}
	b.run = func(_ context.Context, dir, name string, args []string, stdin string) (string, error) {
		runs = append(runs, run{dir: dir, name: name, args: args, stdin: stdin})
		return output, nil
	}
	return b, &runs
}

func TestExecutablePrefersAgent(t *testing.T) {
	b, _ := newTestBridge(map[string]string{
		"cursor-agent": "/usr/local/bin/cursor-agent",
		"code":         "/usr/bin/code",
	}, "")
	path, err := b.Executable()
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/cursor-agent", path)
}

func TestExecutableFallsBack(t *testing.T) {
	b, _ := newTestBridge(map[string]string{"code": "/usr/bin/code"}, "")
	path, err := b.Executable()
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/code", path)
}

func TestExecutableNoneInstalled(t *testing.T) {
	b, _ := newTestBridge(nil, "")
	_, err := b.Executable()
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.NotEmpty(t, notFound.Tried)
}

func TestExecutableSkipsDisallowed(t *testing.T) {
	b, _ := newTestBridge(map[string]string{"cursor-agent": "/usr/bin/cursor-agent"}, "")
	// A policy without the agent must not probe it even when installed.
	b.policy = policy.New([]string{"git"})
	_, err := b.Executable()
	assert.Error(t, err)
}

func TestRunPromptPipesStdin(t *testing.T) {
	b, runs := newTestBridge(map[string]string{"cursor-agent": "/usr/bin/cursor-agent"}, "done, 2 files changed")

	out, err := b.RunPrompt(context.Background(), "add a healthcheck endpoint")
	require.NoError(t, err)
	assert.Equal(t, "done, 2 files changed", out)

	require.Len(t, *runs, 1)
	r := (*runs)[0]
	assert.Equal(t, "add a healthcheck endpoint", r.stdin)
	assert.Equal(t, []string{"--print"}, r.args)
	assert.Equal(t, "/work/project", r.dir)
}

func TestRunPromptRedactsOutput(t *testing.T) {
	leaky := "token is 123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw0"
	b, _ := newTestBridge(map[string]string{"cursor-agent": "/usr/bin/cursor-agent"}, leaky)

	out, err := b.RunPrompt(context.Background(), "show config")
	require.NoError(t, err)
	assert.NotContains(t, out, "AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw0")
	assert.Contains(t, out, "[REDACTED]")
}

func TestInRebindsDirectory(t *testing.T) {
	b, runs := newTestBridge(map[string]string{"cursor-agent": "/usr/bin/cursor-agent"}, "ok")
	sub := b.In("/work/project/api")
	_, err := sub.RunPrompt(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "/work/project/api", (*runs)[0].dir)
}
