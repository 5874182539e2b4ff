package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/rls-core/internal/analysis"
	"github.com/standardbeagle/rls-core/internal/build"
	"github.com/standardbeagle/rls-core/internal/buildqueue"
	"github.com/standardbeagle/rls-core/internal/config"
	"github.com/standardbeagle/rls-core/internal/handlers"
	"github.com/standardbeagle/rls-core/internal/lsp"
	"github.com/standardbeagle/rls-core/internal/racer"
	"github.com/standardbeagle/rls-core/internal/rlslog"
	"github.com/standardbeagle/rls-core/internal/vfs"
)

const defaultWorkerTimeout = 1500 * time.Millisecond

// rlsRustcWrapperEnv is the sentinel env var cargoRunner sets (alongside
// RUSTC_WRAPPER=<this executable>) so this process recognizes when Cargo
// is invoking it as the rustc wrapper rather than as the `rls` CLI.
// Cargo's RUSTC_WRAPPER contract leaves no room for a subcommand name
// ("$RUSTC_WRAPPER rustc arg1 arg2...", not "$RUSTC_WRAPPER wrapper
// rustc..."), so the dispatch has to happen on a sentinel checked before
// the cli.App is even constructed.
const rlsRustcWrapperEnv = "RLS_RUSTC_WRAPPER"

func main() {
	if os.Getenv(rlsRustcWrapperEnv) == "1" {
		os.Exit(rustcWrapperMain(os.Args[1:]))
	}

	app := &cli.App{
		Name:  "rls",
		Usage: "Rust Language Server core engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-dir",
				Usage: "directory for the component-tagged log file (default: a temp directory)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "per-request worker timeout for hover/definition/completion/...",
				Value: defaultWorkerTimeout,
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "start the LSP server over stdio",
				Action: runCommand,
			},
			{
				Name:      "check",
				Usage:     "run one build and print diagnostics, without starting the LSP server",
				ArgsUsage: "<project-root>",
				Action:    checkCommand,
			},
		},
		Action: func(c *cli.Context) error {
			return runCommand(c)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "rls: %v\n", err)
		os.Exit(1)
	}
}

// loadProjectConfig resolves root to an absolute path and loads its
// .rls.kdl config (if any), validating and defaulting it before returning.
func loadProjectConfig(root string) (*config.Config, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root %q: %w", root, err)
	}

	cfg := config.Default()
	if result, err := config.LoadKDL(absRoot); err != nil {
		return nil, fmt.Errorf("load .rls.kdl: %w", err)
	} else if result != nil {
		cfg = result.Config
		for _, u := range result.Unknown {
			rlslog.Build("unknown .rls.kdl key: %s", u)
		}
		for _, d := range result.Duplicates {
			rlslog.Build("duplicate .rls.kdl key: %s", d)
		}
		for _, d := range result.Deprecated {
			rlslog.Build("deprecated .rls.kdl key: %s", d)
		}
	}

	channel := rustcReleaseChannel()
	if err := config.NewValidator().ValidateAndNormalize(cfg, channel); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func runCommand(c *cli.Context) error {
	logPath, err := rlslog.InitLogFile(c.String("log-dir"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "rls: failed to open log file: %v\n", err)
	} else {
		defer rlslog.Close()
	}
	rlslog.LSP("starting, log file: %s", logPath)

	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getwd: %w", err)
	}

	cfg, err := loadProjectConfig(root)
	if err != nil {
		return err
	}

	a := analysis.New()
	v := vfs.New[handlers.FileData](root)
	runner := newCargoRunner(func() *config.Config { return cfg }, a)
	queue := buildqueue.New(runner, time.Duration(cfg.WaitToBuildMs)*time.Millisecond)

	var rf *racer.Fallback
	if cfg.RacerCompletion {
		rf = &racer.Fallback{Source: v, Timeout: 500 * time.Millisecond}
	}

	srv := handlers.New(a, v, queue, rf, cfg)
	srv.SetRoot(root)

	d := lsp.New(c.Duration("timeout"))
	srv.Register(d)

	publishOnBuild(d, srv, runner)
	watchManifest(root, cfg, srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		rlslog.LSP("received signal %v, shutting down", sig)
		cancel()
		os.Stdin.Close()
	}()

	code := d.Serve(ctx, os.Stdin, os.Stdout)
	os.Exit(code)
	return nil
}

// watchManifest starts a build.Watcher over root (unless the project root
// can't be watched, which is logged and otherwise ignored -- a server that
// can still respond to explicit didSave/didChange builds is more useful
// than one that refuses to start), requesting a full Cargo build whenever
// Cargo.toml or the build directory changes.
func watchManifest(root string, cfg *config.Config, srv *handlers.Server) {
	w, err := build.NewWatcher(cfg.CrateBlacklist, 200*time.Millisecond)
	if err != nil {
		rlslog.Build("failed to create file watcher: %v", err)
		return
	}
	w.OnManifestChange = srv.RequestCargoBuild
	if err := w.Start(context.Background(), root); err != nil {
		rlslog.Build("failed to start file watcher: %v", err)
	}
}

// windowProgressParams is the legacy window/progress notification LSP uses
// for long-running server activity ("Building"/"Indexing"), predating the
// generic $/progress protocol.
type windowProgressParams struct {
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
	Done    bool   `json:"done"`
}

// publishOnBuild wires the queue's RunBuild outcome to the
// textDocument/publishDiagnostics notifications and suggestion-cache
// refresh every completed build should trigger, followed by a
// window/progress "Indexing" done notification once the analysis index
// has actually had a chance to absorb that build's save-analysis output
// (RunBuild lowers it synchronously before the queue reports Ran, so by
// the time this callback runs the index is already up to date).
func publishOnBuild(d *lsp.Dispatcher, srv *handlers.Server, runner *cargoRunner) {
	srv.SetBuildCallback(func() {
		diags, suggestions := runner.take()
		srv.ReplaceSuggestions(byFileSuggestions(suggestions))
		for _, params := range srv.BuildDiagnostics(diags) {
			if err := d.Notify("textDocument/publishDiagnostics", params); err != nil {
				rlslog.LSP("publishDiagnostics notify failed: %v", err)
			}
		}
		if err := d.Notify("window/progress", windowProgressParams{Title: "Indexing", Done: true}); err != nil {
			rlslog.LSP("indexing-done notify failed: %v", err)
		}
	})
}

// rustcReleaseChannel runs `rustc --version` and extracts the release
// channel word ("stable"/"beta"/"nightly") from its "-channel" suffix,
// e.g. "rustc 1.80.0-nightly (...)" -> nightly. Unknown on any failure --
// unstable_features then just stays gated off.
func rustcReleaseChannel() config.ReleaseChannel {
	out, err := exec.Command("rustc", "--version").Output()
	if err != nil {
		return config.ChannelUnknown
	}
	version := strings.TrimSpace(string(out))
	switch {
	case strings.Contains(version, "-nightly"):
		return config.ChannelNightly
	case strings.Contains(version, "-beta"):
		return config.ChannelBeta
	case version != "":
		return config.ChannelStable
	default:
		return config.ChannelUnknown
	}
}

func checkCommand(c *cli.Context) error {
	root := c.Args().First()
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	cfg, err := loadProjectConfig(absRoot)
	if err != nil {
		return err
	}

	// No analysis index here: `rls check` is a one-shot diagnostics dump,
	// not a long-lived server that semantic-query handlers can address.
	runner := newCargoRunner(func() *config.Config { return cfg }, nil)
	result, err := runner.RunBuild(absRoot, buildqueue.Cargo)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if len(result.Diagnostics) == 0 {
		fmt.Println("no diagnostics")
		return nil
	}
	for _, d := range result.Diagnostics {
		fmt.Printf("%s: [%s] %s\n", d.File, d.Severity, d.Message)
	}
	return nil
}

// rustcWrapperMain is this process's other personality: when cargoRunner
// sets RUSTC_WRAPPER to this executable's own path, Cargo invokes
// "<this> <real-rustc> <rustc-args...>" for every compilation unit instead
// of calling rustc directly. args is os.Args[1:] in that invocation, so
// args[0] is the real rustc and args[1:] are its arguments. Dependencies
// and build scripts pass through untouched; the primary crate is rewritten
// (build.Intercept) to emit save-analysis JSON, whose paths are appended
// to the manifest file cargoRunner is waiting to read. Returns the exit
// code this process itself should exit with, mirroring rustc's own.
func rustcWrapperMain(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "rls: rustc wrapper invoked with no rustc path")
		return 1
	}
	program, rustcArgs := args[0], args[1:]
	crateName := build.ArgValue(rustcArgs, "--crate-name")

	primary := make(map[string]bool)
	for _, c := range strings.Split(os.Getenv("RLS_PRIMARY_CRATES"), ",") {
		if c != "" {
			primary[c] = true
		}
	}
	ic := &build.Intercept{
		PrimaryCrates: primary,
		CfgTest:       os.Getenv("RLS_CFG_TEST") == "1",
		Sysroot:       os.Getenv("RLS_SYSROOT"),
	}
	inv := build.Invocation{
		Program:       program,
		Args:          rustcArgs,
		Env:           os.Environ(),
		CrateName:     crateName,
		IsBuildScript: crateName == "build_script_build",
	}

	if !ic.ShouldIntercept(inv) {
		return runRustcPassthrough(inv)
	}

	inv = ic.Rewrite(inv)
	files, runErr := ic.Run(context.Background(), inv)
	if manifestPath := os.Getenv("RLS_SAVE_ANALYSIS_MANIFEST"); manifestPath != "" {
		appendSaveAnalysisManifest(manifestPath, files)
	}
	return rustcExitCode(runErr)
}

// runRustcPassthrough execs inv verbatim, inheriting this process's stdio,
// for dependency and build-script invocations Intercept doesn't rewrite.
func runRustcPassthrough(inv build.Invocation) int {
	cmd := exec.Command(inv.Program, inv.Args...)
	cmd.Env = inv.Env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return rustcExitCode(cmd.Run())
}

// rustcExitCode maps a child-process run error to the exit code this
// process should itself report: rustc's own code on a normal nonzero
// exit, 1 for anything else (the child never started, was killed, ...).
func rustcExitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	fmt.Fprintf(os.Stderr, "rls: rustc wrapper: %v\n", err)
	return 1
}

// appendSaveAnalysisManifest appends each save-analysis file path to the
// manifest cargoRunner is waiting to read back, one per line.
func appendSaveAnalysisManifest(path string, files []string) {
	if len(files) == 0 {
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	for _, file := range files {
		fmt.Fprintln(f, file)
	}
}
