package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShouldInterceptPassesThroughDependenciesAndBuildScripts(t *testing.T) {
	ic := &Intercept{PrimaryCrates: map[string]bool{"myapp": true}}

	require.True(t, ic.ShouldIntercept(Invocation{CrateName: "myapp"}))
	require.False(t, ic.ShouldIntercept(Invocation{CrateName: "serde"}))
	require.False(t, ic.ShouldIntercept(Invocation{CrateName: "myapp", IsBuildScript: true}))
}

func TestRewriteAddsTestCfgAndSysroot(t *testing.T) {
	ic := &Intercept{CfgTest: true, Sysroot: "/opt/rust"}
	out := ic.Rewrite(Invocation{Args: []string{"--crate-type", "bin"}})

	require.Contains(t, out.Args, "--test")
	require.Contains(t, out.Args, "--sysroot")
	require.Contains(t, out.Args, "/opt/rust")
}

func TestRewriteDoesNotDuplicateExistingSysroot(t *testing.T) {
	ic := &Intercept{Sysroot: "/opt/rust"}
	out := ic.Rewrite(Invocation{Args: []string{"--sysroot", "/already/set"}})

	count := 0
	for _, a := range out.Args {
		if a == "--sysroot" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestRewriteReplacesEmitForDepInfoOnly(t *testing.T) {
	ic := &Intercept{SingleCrateDepInfoOnly: true}
	out := ic.Rewrite(Invocation{Args: []string{"--emit=link,metadata"}})
	require.Contains(t, out.Args, "--emit=dep-info")
	require.NotContains(t, out.Args, "--emit=link,metadata")
}

func TestRewriteAddsSaveAnalysisFlags(t *testing.T) {
	ic := &Intercept{}
	out := ic.Rewrite(Invocation{Args: []string{"--crate-type", "bin"}})

	require.Contains(t, out.Args, "-Zunstable-options")
	require.Contains(t, out.Args, "-Zsave-analysis")
	require.Contains(t, out.Args, "-Zcontinue-parse-after-error")
}

func TestArgValueHandlesBothForms(t *testing.T) {
	require.Equal(t, "mycrate", ArgValue([]string{"--crate-name", "mycrate"}, "--crate-name"))
	require.Equal(t, "/out", ArgValue([]string{"--out-dir=/out"}, "--out-dir"))
	require.Equal(t, "", ArgValue([]string{"--crate-type", "bin"}, "--crate-name"))
}

func TestFindSaveAnalysisFilesMatchesCrateNamePrefix(t *testing.T) {
	outDir := t.TempDir()
	analysisDir := filepath.Join(outDir, "save-analysis")
	require.NoError(t, os.MkdirAll(analysisDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(analysisDir, "mycrate-abc123.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(analysisDir, "othercrate-def456.json"), []byte("{}"), 0o644))

	files, err := findSaveAnalysisFiles(outDir, "mycrate")
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Contains(t, files[0], "mycrate-abc123.json")
}

func TestFindSaveAnalysisFilesMissingDirIsNotAnError(t *testing.T) {
	files, err := findSaveAnalysisFiles(t.TempDir(), "mycrate")
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestRemoveStaleSaveAnalysisDeletesOnlyMatchingFiles(t *testing.T) {
	outDir := t.TempDir()
	analysisDir := filepath.Join(outDir, "save-analysis")
	require.NoError(t, os.MkdirAll(analysisDir, 0o755))
	stale := filepath.Join(analysisDir, "mycrate-oldhash.json")
	kept := filepath.Join(analysisDir, "othercrate-abc.json")
	require.NoError(t, os.WriteFile(stale, []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(kept, []byte("{}"), 0o644))

	require.NoError(t, removeStaleSaveAnalysis(outDir, "mycrate"))

	_, err := os.Stat(stale)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(kept)
	require.NoError(t, err)
}
