package main

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/standardbeagle/rls-core/internal/analysis"
	"github.com/standardbeagle/rls-core/internal/build"
	"github.com/standardbeagle/rls-core/internal/buildqueue"
	"github.com/standardbeagle/rls-core/internal/config"
	"github.com/standardbeagle/rls-core/internal/rlslog"
)

// cargoRunner is the buildqueue.Runner that actually shells out to Cargo.
// It keeps the last build's full diagnostics/suggestions around (the queue's
// own Result only carries a narrow view) so the caller's RequestBuild
// callback can publish the richer internal/build shapes to the client. When
// idx is non-nil, it also sets itself up as the primary crate's
// RUSTC_WRAPPER (self-invocation, via build.Intercept in the rustc-wrapper
// dispatch at the top of main()) to capture save-analysis JSON and lower it
// into idx -- the only thing that ever populates the analysis index from a
// real build.
type cargoRunner struct {
	cfg  func() *config.Config
	idx  *analysis.Analysis
	self string // this process's own executable path, used as RUSTC_WRAPPER

	mu          sync.Mutex
	lastDiags   []build.Diagnostic
	lastSuggest []build.Suggestion
}

func newCargoRunner(cfg func() *config.Config, idx *analysis.Analysis) *cargoRunner {
	self, err := os.Executable()
	if err != nil {
		rlslog.Build("resolve own executable path for RUSTC_WRAPPER: %v", err)
		self = ""
	}
	return &cargoRunner{cfg: cfg, idx: idx, self: self}
}

// RunBuild runs `cargo check --message-format=json` (or cfg.BuildCommand,
// if set) in dir and parses its output. A nonzero exit from Cargo is not
// itself an error here -- a crate that fails to compile still produces
// valid diagnostics, which is the whole point of running it.
func (r *cargoRunner) RunBuild(dir string, priority buildqueue.Priority) (*buildqueue.Result, error) {
	cfg := r.cfg()
	args := cargoArgs(cfg)

	rlslog.Build("running %s in %s (priority=%s)", strings.Join(args, " "), dir, priority)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	env := os.Environ()
	if cfg.ClearEnvRustLog {
		env = filterEnv("RUST_LOG")
	}
	manifestPath, cleanupManifest := r.prepareWrapperEnv(&env, dir, cfg)
	defer cleanupManifest()
	cmd.Env = env

	output, runErr := cmd.Output()
	diags, suggestions := build.ParseCargoOutput(output)

	r.mu.Lock()
	r.lastDiags = diags
	r.lastSuggest = suggestions
	r.mu.Unlock()

	r.lowerSaveAnalysis(dir, manifestPath)

	result := &buildqueue.Result{Dir: dir}
	for _, d := range diags {
		result.Diagnostics = append(result.Diagnostics, buildqueue.Diagnostic{
			File:     d.File,
			Severity: string(d.Severity),
			Message:  d.Message,
		})
	}

	if _, isExit := runErr.(*exec.ExitError); isExit {
		// Compiler errors surface as diagnostics, not a RunBuild failure.
		return result, nil
	}
	return result, runErr
}

// prepareWrapperEnv arranges for cargo (run with env appended to) to invoke
// this process as its RUSTC_WRAPPER for the primary crate, writing captured
// save-analysis file paths to a fresh manifest file. Returns "" if wiring
// isn't possible (no index to populate, or this process's own path
// couldn't be resolved) or there's no primary crate name to intercept --
// the build still runs, it just won't update the analysis index.
func (r *cargoRunner) prepareWrapperEnv(env *[]string, dir string, cfg *config.Config) (manifestPath string, cleanup func()) {
	cleanup = func() {}
	if r.idx == nil || r.self == "" {
		return "", cleanup
	}
	crateName := primaryCrateName(dir)
	if crateName == "" {
		return "", cleanup
	}

	tmp, err := os.CreateTemp("", "rls-save-analysis-*.manifest")
	if err != nil {
		rlslog.Build("create save-analysis manifest: %v", err)
		return "", cleanup
	}
	tmp.Close()
	manifestPath = tmp.Name()
	cleanup = func() { os.Remove(manifestPath) }

	*env = append(*env,
		"RUSTC_WRAPPER="+r.self,
		"RLS_RUSTC_WRAPPER=1",
		"RLS_PRIMARY_CRATES="+crateName,
		"RLS_SAVE_ANALYSIS_MANIFEST="+manifestPath,
		"RLS_SYSROOT="+cfg.Sysroot,
	)
	if cfg.CfgTest {
		*env = append(*env, "RLS_CFG_TEST=1")
	}
	return manifestPath, cleanup
}

// lowerSaveAnalysis reads the manifest the RUSTC_WRAPPER self-invocation
// (see rustcWrapperMain) wrote save-analysis file paths to, parses each,
// and lowers it into r.idx -- the step that actually answers spec's
// "Cargo/rustc -> save-analysis files -> lowering pipeline -> Index
// update" data flow. Each crate is lowered independently: one malformed
// save-analysis file logs and is skipped rather than failing the build.
func (r *cargoRunner) lowerSaveAnalysis(dir, manifestPath string) {
	if manifestPath == "" || r.idx == nil {
		return
	}
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return
	}
	for _, path := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if path == "" {
			continue
		}
		raw, err := analysis.ParseSaveAnalysisFile(path, dir, "")
		if err != nil {
			rlslog.Analysis("parse save-analysis file %s: %v", path, err)
			continue
		}
		if err := analysis.LowerInto(r.idx, raw); err != nil {
			rlslog.Analysis("lower save-analysis file %s: %v", path, err)
		}
	}
}

// primaryCrateName derives the rustc crate name rustc would assign the
// package built in dir from its Cargo.toml: the package name with hyphens
// converted to underscores, matching rustc's own crate-name convention.
// Returns "" if there's no readable manifest (e.g. a workspace root with
// no [package] table).
func primaryCrateName(dir string) string {
	m, err := build.ReadManifest(dir)
	if err != nil || m.Package.Name == "" {
		return ""
	}
	return strings.ReplaceAll(m.Package.Name, "-", "_")
}

// take returns (and does not clear) the diagnostics/suggestions from the
// most recent RunBuild call.
func (r *cargoRunner) take() ([]build.Diagnostic, []build.Suggestion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastDiags, r.lastSuggest
}

func cargoArgs(cfg *config.Config) []string {
	if cfg.BuildCommand != "" {
		return strings.Fields(cfg.BuildCommand)
	}
	args := []string{"cargo", "check", "--message-format=json"}
	if cfg.AllTargets {
		args = append(args, "--all-targets")
	}
	if cfg.AllFeatures {
		args = append(args, "--all-features")
	} else if cfg.NoDefaultFeatures {
		args = append(args, "--no-default-features")
	}
	for _, f := range cfg.Features {
		args = append(args, "--features", f)
	}
	if cfg.TargetDir != "" {
		args = append(args, "--target-dir", cfg.TargetDir)
	}
	if cfg.Target != "" {
		args = append(args, "--target", cfg.Target)
	}
	if cfg.Jobs > 0 {
		args = append(args, "--jobs", strconv.Itoa(cfg.Jobs))
	}
	return args
}

// filterEnv returns the current environment with the given variable names
// stripped, for clear_env_rust_log: a noisy RUST_LOG inherited from the
// editor's own environment would otherwise bleed into Cargo's child
// process and corrupt its stdout.
func filterEnv(names ...string) []string {
	env := os.Environ()
	out := make([]string, 0, len(env))
	for _, kv := range env {
		skip := false
		for _, name := range names {
			if strings.HasPrefix(kv, name+"=") {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, kv)
		}
	}
	return out
}

// byFileSuggestions groups a flat suggestion list by file, the shape
// Server.ReplaceSuggestions needs.
func byFileSuggestions(suggestions []build.Suggestion) map[string][]build.Suggestion {
	out := make(map[string][]build.Suggestion)
	for _, s := range suggestions {
		out[s.File] = append(out[s.File], s)
	}
	return out
}
