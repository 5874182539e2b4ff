// Package handlers implements the LSP action handlers: thin adapters that
// decode a request's typed Params, call into internal/analysis /
// internal/vfs / internal/racer / internal/buildqueue, and shape the
// result back into an LSP response. One function per action, decoding a
// typed Params struct and returning a typed response; query failures map
// to empty results rather than protocol errors.
package handlers

import (
	"sync"

	"github.com/standardbeagle/rls-core/internal/analysis"
	"github.com/standardbeagle/rls-core/internal/build"
	"github.com/standardbeagle/rls-core/internal/buildqueue"
	"github.com/standardbeagle/rls-core/internal/config"
	"github.com/standardbeagle/rls-core/internal/racer"
	"github.com/standardbeagle/rls-core/internal/rlslog"
	"github.com/standardbeagle/rls-core/internal/vfs"
)

// FileData is the VFS's per-file user_data payload: nothing today, but
// kept as a named type (instead of struct{} littered through call sites)
// so a future analysis-derived cache has somewhere to live without
// changing the VFS's type parameter at every call site.
type FileData struct{}

// Server holds every component an Action Handler needs: the master
// analysis index, the VFS, the build queue, the racer fallback and
// config, behind one struct.
type Server struct {
	Analysis *analysis.Analysis
	VFS      *vfs.VFS[FileData]
	Queue    *buildqueue.Queue
	Racer    *racer.Fallback

	mu          sync.RWMutex
	cfg         *config.Config
	root        string
	shutDown    bool
	diagFiles   map[string]bool               // files currently carrying non-empty diagnostics
	suggestions map[string][]build.Suggestion // latest build's code-action suggestions, by file
	onBuild     func()                        // called after every build this server requests that actually ran
}

// New creates a Server wired over an already-built Analysis/VFS/Queue.
// Racer may be nil if racer_completion is disabled.
func New(a *analysis.Analysis, v *vfs.VFS[FileData], q *buildqueue.Queue, r *racer.Fallback, cfg *config.Config) *Server {
	return &Server{
		Analysis:  a,
		VFS:       v,
		Queue:     q,
		Racer:     r,
		cfg:       cfg,
		diagFiles: make(map[string]bool),
	}
}

func (s *Server) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Server) SetConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

func (s *Server) Root() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

func (s *Server) SetRoot(root string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
}

// SetBuildCallback registers f to run after every build this server
// requests that actually ran; a request squashed by a newer one does not
// call f. The Runner's own result never reaches f -- callers that need
// the diagnostics pull them from wherever their Runner stashed them (the
// queue's Result only carries a narrow view).
func (s *Server) SetBuildCallback(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onBuild = f
}

// RequestCargoBuild enqueues a full Cargo-priority build, the same request
// a manifest change or a fresh `initialize` triggers. Exported so a
// file-watcher wired up outside this package (cmd/rls) can drive the same
// path mutating notification handlers use, rather than bypassing the
// SetBuildCallback hook by talking to Queue directly.
func (s *Server) RequestCargoBuild() {
	s.requestBuild(buildqueue.Cargo)
}

// requestBuild is the shared helper every mutating notification handler
// uses to enqueue a build at the given priority, logging the outcome
// instead of blocking the dispatcher goroutine on it.
func (s *Server) requestBuild(priority buildqueue.Priority) {
	if s.Queue == nil {
		return
	}
	s.Queue.RequestBuild(s.Root(), priority, func(outcome buildqueue.Outcome, result *buildqueue.Result, err error) {
		if err != nil {
			rlslog.Build("build request (priority=%s) failed: %v", priority, err)
		}
		if outcome != buildqueue.Ran {
			return
		}
		s.mu.RLock()
		onBuild := s.onBuild
		s.mu.RUnlock()
		if onBuild != nil {
			onBuild()
		}
	})
}
