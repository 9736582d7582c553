package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigInitCmd_CreatesFile(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	cmd := newConfigInitCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	require.NoError(t, cmd.Execute())

	_, err := os.Stat(filepath.Join(xdg, "codegraph", "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Created user configuration")
}

func TestConfigInitCmd_RefusesWithoutForce(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	first := newConfigInitCmd()
	first.SetOut(&bytes.Buffer{})
	first.SetErr(&bytes.Buffer{})
	require.NoError(t, first.Execute())

	second := newConfigInitCmd()
	buf := new(bytes.Buffer)
	second.SetOut(buf)
	second.SetErr(buf)
	require.NoError(t, second.Execute())

	assert.Contains(t, buf.String(), "already exists")
}

func TestConfigShowCmd_Defaults(t *testing.T) {
	cmd := newConfigShowCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--source", "defaults"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "defaults (hardcoded)")
}

func TestConfigShowCmd_InvalidSource(t *testing.T) {
	cmd := newConfigShowCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--source", "bogus"})

	err := cmd.Execute()
	assert.Error(t, err)
}

func TestConfigPathCmd_PrintsPath(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	cmd := newConfigPathCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), xdg)
}
