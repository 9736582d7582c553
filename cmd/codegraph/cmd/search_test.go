package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/internal/orchestrator"
)

func TestSearchCmd_RequiresExistingIndex(t *testing.T) {
	dir := t.TempDir()

	cmd := newSearchCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"some query", "--path", dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not indexed")
}

func TestSearchCmd_RequiresQueryArg(t *testing.T) {
	cmd := newSearchCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	assert.Error(t, err)
}

func TestParseTier(t *testing.T) {
	assert.Equal(t, orchestrator.TierSmall, parseTier(""))
	assert.Equal(t, orchestrator.TierSmall, parseTier("bogus"))
	assert.Equal(t, orchestrator.TierMedium, parseTier("medium"))
	assert.Equal(t, orchestrator.TierLarge, parseTier("LARGE"))
	assert.Equal(t, orchestrator.TierMassive, parseTier("massive"))
}
