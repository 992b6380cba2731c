package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apetrovskiy/neon-evm/harness/config"
	"github.com/apetrovskiy/neon-evm/harness/constant"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInitConfig(t *testing.T) {
	home := t.TempDir()

	out, err := execute(t, "init-config", "--home", home, "--rpc-urls", "http://a:8899 http://b:8899", "--chain-id", "245022926")
	require.NoError(t, err)
	assert.Contains(t, out, "config written to")

	cfg, err := config.Load(home)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a:8899", "http://b:8899"}, cfg.RPCURLs)
	assert.Equal(t, uint64(245022926), cfg.Ethereum.ChainID)
	assert.Equal(t, filepath.Join(home, constant.PayerKeyFileName), cfg.PayerKeyPath)

	_, err = execute(t, "init-config", "--home", home)
	require.ErrorContains(t, err, "config already exists")

	_, err = execute(t, "init-config", "--home", home, "--force", "--log-format", "json")
	require.NoError(t, err)
	cfg, err = config.Load(home)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, uint64(245022926), cfg.Ethereum.ChainID, "stored values survive a forced rewrite")
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv(constant.EnvPrefix+"_SIBLING_INDEX_MODE", "positional")

	_, err := execute(t, "init-config", "--home", home)
	require.NoError(t, err)
	cfg, err := config.Load(home)
	require.NoError(t, err)
	assert.Equal(t, config.SiblingIndexPositional, cfg.Batch.SiblingIndexMode)
}

func TestInvalidOverrideFails(t *testing.T) {
	_, err := execute(t, "init-config", "--home", t.TempDir(), "--sibling-index-mode", "guess")
	require.ErrorContains(t, err, "sibling index mode")
}

func TestRunsAndPrune(t *testing.T) {
	home := t.TempDir()

	out, err := execute(t, "runs", "--home", home)
	require.NoError(t, err)
	assert.Contains(t, out, "PHASE")
	assert.FileExists(t, filepath.Join(home, constant.DatabasesSubdir, constant.RunsDBFileName))

	out, err = execute(t, "prune-runs", "--home", home, "--retention", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "pruned 0 runs")
}

func TestCreateTransactionsNeedsState(t *testing.T) {
	home := t.TempDir()
	_, err := execute(t, "create-transactions", "--home", home, "--count", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), constant.ContractsFileName)

	_, statErr := os.Stat(filepath.Join(home, constant.StateSubdir, constant.TransactionsFileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "neonbench")
	assert.Contains(t, out, Version)
}
