package build

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Invocation is one rustc invocation Cargo would run, captured by the
// intercept executor before deciding whether to run it verbatim or rewrite
// it for the primary crate.
type Invocation struct {
	Program string
	Args    []string
	Env     []string
	Dir     string
	// CrateName is Cargo's --crate-name arg, used to tell the primary
	// crate apart from dependencies and build scripts.
	CrateName     string
	IsBuildScript bool
}

// Intercept is the Cargo build intercept: it lets dependency and
// build-script invocations through unchanged, and rewrites the primary
// crate's invocation (test cfg, --sysroot, --emit, save-analysis flags)
// before running it and collecting the save-analysis JSON it produces.
type Intercept struct {
	// PrimaryCrates is the set of crate names intercepted instead of
	// passed through. Populated from the primary package's Cargo.toml
	// name (and its test/bench targets, which share the same crate name).
	PrimaryCrates          map[string]bool
	CfgTest                bool
	Sysroot                string
	SingleCrateDepInfoOnly bool
}

// Rewrite applies the intercept's rewrite rules to a primary-crate
// invocation. Dependency/build-script invocations should not be passed to
// Rewrite -- callers check ShouldIntercept first.
func (ic *Intercept) Rewrite(inv Invocation) Invocation {
	args := append([]string(nil), inv.Args...)

	if ic.CfgTest && !containsFlag(args, "--test") {
		args = append(args, "--test", "--cfg", "test")
	}
	if ic.Sysroot != "" && !containsFlag(args, "--sysroot") {
		args = append(args, "--sysroot", ic.Sysroot)
	}
	if ic.SingleCrateDepInfoOnly {
		args = replaceEmit(args, "dep-info")
	}
	args = append(args, saveAnalysisFlags()...)

	out := inv
	out.Args = args
	return out
}

// saveAnalysisFlags are the unstable rustc flags that make save-analysis
// JSON appear next to the crate's normal output.
func saveAnalysisFlags() []string {
	return []string{"-Zunstable-options", "-Zsave-analysis", "-Zcontinue-parse-after-error"}
}

// ShouldIntercept reports whether an invocation targets the primary crate
// and is not a build script ("not primary or is a build script"
// pass-through rule, inverted).
func (ic *Intercept) ShouldIntercept(inv Invocation) bool {
	if inv.IsBuildScript {
		return false
	}
	return ic.PrimaryCrates[inv.CrateName]
}

// Run executes inv as a child process (after Rewrite, if ShouldIntercept
// was true), letting it inherit the wrapper process's own stdio -- Cargo
// is already the one piping rustc's --message-format=json diagnostics
// back to cargoRunner, so Run must not read or duplicate that stream.
// Before running, it deletes any save-analysis JSON left behind by a
// previous invocation of the same crate, since rustc won't clear or
// overwrite a stale file itself. It returns the paths of the
// save-analysis file(s) the invocation produced.
func (ic *Intercept) Run(ctx context.Context, inv Invocation) ([]string, error) {
	outDir := ArgValue(inv.Args, "--out-dir")
	if outDir != "" {
		if err := removeStaleSaveAnalysis(outDir, inv.CrateName); err != nil {
			return nil, fmt.Errorf("clean stale save-analysis output: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx, inv.Program, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	runErr := cmd.Run()
	if outDir == "" {
		return nil, runErr
	}
	files, findErr := findSaveAnalysisFiles(outDir, inv.CrateName)
	if findErr != nil {
		return nil, findErr
	}
	return files, runErr
}

// removeStaleSaveAnalysis deletes every <out-dir>/save-analysis/<crateName>*.json
// file: a leftover from a prior invocation (possibly with a different
// compiler hash suffix) would otherwise be misread as fresh output.
func removeStaleSaveAnalysis(outDir, crateName string) error {
	dir := filepath.Join(outDir, "save-analysis")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, crateName) && strings.HasSuffix(name, ".json") {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				return err
			}
		}
	}
	return nil
}

// findSaveAnalysisFiles returns every <out-dir>/save-analysis/<crateName>*.json
// path, matching the same naming rule removeStaleSaveAnalysis cleans up.
func findSaveAnalysisFiles(outDir, crateName string) ([]string, error) {
	dir := filepath.Join(outDir, "save-analysis")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, crateName) && strings.HasSuffix(name, ".json") {
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out, nil
}

func containsFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag || strings.HasPrefix(a, flag+"=") {
			return true
		}
	}
	return false
}

// replaceEmit rewrites any "--emit=..." argument to "--emit=<kind>",
// appending one if none was present.
func replaceEmit(args []string, kind string) []string {
	out := make([]string, 0, len(args)+1)
	replaced := false
	for _, a := range args {
		if strings.HasPrefix(a, "--emit=") || a == "--emit" {
			out = append(out, "--emit="+kind)
			replaced = true
			continue
		}
		out = append(out, a)
	}
	if !replaced {
		out = append(out, "--emit="+kind)
	}
	return out
}

// ArgValue returns the value of flag in args, accepting both "--flag value"
// and "--flag=value" forms. Returns "" if flag is absent.
func ArgValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(a, flag+"=") {
			return strings.TrimPrefix(a, flag+"=")
		}
	}
	return ""
}
