package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadKDLMissingFileReturnsNil(t *testing.T) {
	res, err := LoadKDL(t.TempDir())
	require.NoError(t, err)
	require.Nil(t, res)
}

func TestLoadKDLOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	doc := `
sysroot "/opt/rust"
build_on_save true
wait_to_build 250
clippy_preference "on"
features "foo" "bar"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".rls.kdl"), []byte(doc), 0o644))

	res, err := LoadKDL(dir)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, "/opt/rust", res.Config.Sysroot)
	require.True(t, res.Config.BuildOnSave)
	require.Equal(t, 250, res.Config.WaitToBuildMs)
	require.Equal(t, ClippyOn, res.Config.ClippyPreference)
	require.Equal(t, []string{"foo", "bar"}, res.Config.Features)
	// Untouched defaults survive the overlay.
	require.True(t, res.Config.AllTargets)
	require.Empty(t, res.Unknown)
	require.Empty(t, res.Duplicates)
}

func TestLoadKDLReportsUnknownAndDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	doc := `
sysroot "/a"
sysroot "/b"
totally_made_up_key "x"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".rls.kdl"), []byte(doc), 0o644))

	res, err := LoadKDL(dir)
	require.NoError(t, err)
	require.Contains(t, res.Duplicates, "sysroot")
	require.Contains(t, res.Unknown, "totally_made_up_key")
	require.Equal(t, "/a", res.Config.Sysroot, "first occurrence wins, the duplicate is reported not applied")
}

func TestValidateAndNormalizeGatesUnstableFeaturesOnStableChannel(t *testing.T) {
	cfg := Default()
	cfg.UnstableFeatures = true

	v := NewValidator()
	require.NoError(t, v.ValidateAndNormalize(cfg, ChannelStable))
	require.False(t, cfg.UnstableFeatures)
}

func TestValidateAndNormalizeKeepsUnstableFeaturesOnNightly(t *testing.T) {
	cfg := Default()
	cfg.UnstableFeatures = true

	v := NewValidator()
	require.NoError(t, v.ValidateAndNormalize(cfg, ChannelNightly))
	require.True(t, cfg.UnstableFeatures)
}

func TestValidateAndNormalizeRejectsBadClippyPreference(t *testing.T) {
	cfg := Default()
	cfg.ClippyPreference = "sometimes"

	v := NewValidator()
	require.Error(t, v.ValidateAndNormalize(cfg, ChannelStable))
}

func TestResolveRustSrcPathPrefersExplicit(t *testing.T) {
	require.Equal(t, "/explicit", ResolveRustSrcPath("/explicit"))
}

func TestResolveRustSrcPathFallsBackToEnv(t *testing.T) {
	t.Setenv("RUST_SRC_PATH", "/from/env")
	require.Equal(t, "/from/env", ResolveRustSrcPath(""))
}
