package cmd

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeBounded runs a command with a context that's cancelled shortly
// after, so a smart-default run that falls through to "serve" (which reads
// stdin until EOF or cancellation) can't hang the test suite.
func executeBounded(t *testing.T, cmd interface {
	ExecuteContext(ctx context.Context) error
}, timeout time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return cmd.ExecuteContext(ctx)
}

func TestRootCmd_SmartDefault_NoStdoutOutput(t *testing.T) {
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	_ = os.Chdir(tmpDir)
	defer func() { _ = os.Chdir(oldDir) }()

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--skip-check"})

	_ = executeBounded(t, cmd, 3*time.Second)

	output := buf.String()
	assert.NotContains(t, output, "🔍", "Should not write status emojis to stdout")
	assert.NotContains(t, output, "Starting MCP", "Should not write MCP status to stdout")
}

func TestRootCmd_SmartDefault_Offline_NoStdoutOutput(t *testing.T) {
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	_ = os.Chdir(tmpDir)
	defer func() { _ = os.Chdir(oldDir) }()

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--offline", "--skip-check"})

	_ = executeBounded(t, cmd, 3*time.Second)

	output := buf.String()
	assert.NotContains(t, output, "🔍", "Should not write status emojis to stdout")
	assert.NotContains(t, output, "Starting MCP", "Should not write MCP status to stdout")
}

func TestRootCmd_ShowsHelp(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()

	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "codegraph", "Help should mention program name")
	assert.Contains(t, output, "Usage:", "Help should show usage")
}

func TestRootCmd_ShowsVersion(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--version"})

	err := cmd.Execute()

	require.NoError(t, err)
	output := buf.String()
	hasVersion := strings.Contains(output, "0.1") || strings.Contains(output, "dev")
	assert.True(t, hasVersion, "Version output should contain version number (0.1.x) or 'dev'")
	assert.Contains(t, output, "codegraph", "Version output should mention program name")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	subcommands := cmd.Commands()

	var commandNames []string
	for _, subcmd := range subcommands {
		commandNames = append(commandNames, subcmd.Name())
	}

	assert.Contains(t, commandNames, "serve", "Should have serve subcommand")
	assert.Contains(t, commandNames, "index", "Should have index subcommand")
	assert.Contains(t, commandNames, "search", "Should have search subcommand")
	assert.Contains(t, commandNames, "analyze", "Should have analyze subcommand")
	assert.Contains(t, commandNames, "setup", "Should have setup subcommand")
	assert.Contains(t, commandNames, "watch", "Should have watch subcommand")
}

func TestRootCmd_HasOfflineFlag(t *testing.T) {
	cmd := NewRootCmd()

	flag := cmd.Flags().Lookup("offline")
	assert.NotNil(t, flag, "Should have --offline flag")
	assert.Equal(t, "false", flag.DefValue)
}

func TestRootCmd_HasReindexFlag(t *testing.T) {
	cmd := NewRootCmd()

	flag := cmd.Flags().Lookup("reindex")
	assert.NotNil(t, flag, "Should have --reindex flag")
	assert.Equal(t, "false", flag.DefValue)
}

func TestServeCmd_ShowsHelp(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"serve", "--help"})

	err := cmd.Execute()

	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "Usage:")
}
