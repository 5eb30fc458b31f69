package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultCarriesBaselineKnobs(t *testing.T) {
	cfg := Default()
	require.Equal(t, "blake3", cfg.Store.HashAlgo)
	require.Equal(t, "zstd", cfg.Store.CompressionAlgo)
	require.Equal(t, "own", cfg.Signing.Policy)
	require.Equal(t, "14d", cfg.GC.KeepOlderThan)
	require.Equal(t, "all()", cfg.Fileset.AutoTrackPattern)
}

func TestOverwriteOnlyTouchesSetFields(t *testing.T) {
	base := Default()
	override := &Config{Signing: Signing{Policy: "force"}}
	base.Overwrite(override)

	require.Equal(t, "force", base.Signing.Policy)
	require.Equal(t, "blake3", base.Store.HashAlgo) // untouched
}

func TestOverwriteMergesRevsetAliasesRatherThanReplacing(t *testing.T) {
	base := &Config{Revset: Revset{Aliases: map[string]string{"trunk": "main@origin"}}}
	override := &Config{Revset: Revset{Aliases: map[string]string{"wip": "mine() & draft()"}}}
	base.Overwrite(override)

	require.Equal(t, "main@origin", base.Revset.Aliases["trunk"])
	require.Equal(t, "mine() & draft()", base.Revset.Aliases["wip"])
}

func TestLoadRepoLayersOverUserConfigWithoutMutatingIt(t *testing.T) {
	userCfg := Default()
	userCfg.Revset.Aliases = map[string]string{"trunk": "main@origin"}

	repoRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(repoRoot, ".jj", "repo"), 0o755))
	toml := "[signing]\npolicy = \"force\"\n\n[revset.aliases]\nwip = \"mine()\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, ".jj", "repo", "config.toml"), []byte(toml), 0o644))

	layered, err := LoadRepo(repoRoot, userCfg)
	require.NoError(t, err)
	require.Equal(t, "force", layered.Signing.Policy)
	require.Equal(t, "main@origin", layered.Revset.Aliases["trunk"])
	require.Equal(t, "mine()", layered.Revset.Aliases["wip"])

	// The base config passed in must not have been mutated by the layer.
	require.Equal(t, "own", userCfg.Signing.Policy)
	_, hasWip := userCfg.Revset.Aliases["wip"]
	require.False(t, hasWip)
}

func TestLoadRepoWithoutConfigFileReturnsBaseUnchanged(t *testing.T) {
	userCfg := Default()
	repoRoot := t.TempDir()

	layered, err := LoadRepo(repoRoot, userCfg)
	require.NoError(t, err)
	require.Equal(t, userCfg.Signing.Policy, layered.Signing.Policy)
	require.Equal(t, userCfg.Store.HashAlgo, layered.Store.HashAlgo)
}
