package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckMigrateFlags(t *testing.T) {
	assert.NoError(t, checkMigrateFlags(false, nil, nil))
	assert.NoError(t, checkMigrateFlags(true, nil, []string{}))
	assert.NoError(t, checkMigrateFlags(false, []string{"data/tweets.js"}, []string{"1"}))
	assert.NoError(t, checkMigrateFlags(false, nil, []string{"1"}), "--only on the next group")

	assert.ErrorContains(t, checkMigrateFlags(true, []string{"data/tweets.js"}, nil), "mutually exclusive")
	assert.ErrorContains(t, checkMigrateFlags(true, nil, []string{"1"}), "cannot be used with --all")
}

func TestMigrateRejectsOnlyWithAll(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("T2C_CONFIG", "")

	cmd := migrateCmd()
	cmd.SetArgs([]string{"--all", "--only", "1050118621198921728"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be used with --all")
}
