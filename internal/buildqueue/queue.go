// Package buildqueue implements a debounce/coalesce scheduler:
// editor-driven build requests arrive at keystroke rate and must collapse
// into at most one in-flight Cargo/rustc invocation, with every request
// either observing a build result or being told it was squashed.
//
// Grounded on the debounced rebuild pipeline
// (internal/indexing/debounced_rebuilder.go: a timer-reset debounce with a
// pending set and a completion callback) generalized from "one pending set,
// always debounced" to a two-priority-slot scheme, and on its
// watcher/pipeline worker-loop shape (internal/indexing/watcher.go,
// pipeline_processor.go: single background worker draining a task queue)
// for the build-queue's single-worker-goroutine-owns-execution model.
package buildqueue

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/standardbeagle/rls-core/internal/rlslog"
)

// Priority is one of three request priorities.
type Priority int

const (
	// Normal is a typical keystroke-driven request: debounced.
	Normal Priority = iota
	// Immediate runs without debounce (e.g. on file save), reusing cached
	// Cargo args.
	Immediate
	// Cargo forces a full in-process `cargo check`, e.g. because the
	// build directory changed.
	Cargo
)

func (p Priority) String() string {
	switch p {
	case Normal:
		return "normal"
	case Immediate:
		return "immediate"
	case Cargo:
		return "cargo"
	default:
		return "unknown"
	}
}

// Outcome is what a request's callback observes.
type Outcome int

const (
	// Ran means a build actually executed and Result is populated.
	Ran Outcome = iota
	// Squashed means a newer request replaced this one before it ran.
	Squashed
)

// Callback receives the result of a request, exactly once.
type Callback func(Outcome, *Result, error)

// request is one queued build.
type request struct {
	dir      string
	priority Priority
	callback Callback
}

func (r *request) squash() {
	if r.callback != nil {
		r.callback(Squashed, nil, nil)
	}
}

// Runner performs the actual build. The engine never launches a compiler
// process itself; callers plug in a Runner that drives Cargo/rustc
// (directly, via the Cargo-intercept executor in internal/build, or a
// test double).
type Runner interface {
	RunBuild(dir string, priority Priority) (*Result, error)
}

// Result is whatever a Runner produces; the queue treats it opaquely.
type Result struct {
	Dir         string
	Diagnostics []Diagnostic
}

// Diagnostic is the queue's view of one compiler diagnostic; internal/build
// owns the richer representation, this is just enough for callers that
// only need counts/severities at the scheduling layer.
type Diagnostic struct {
	File     string
	Severity string
	Message  string
}

// Queue is a two-slot (low/high) debounced scheduler.
type Queue struct {
	mu   sync.Mutex
	low  *request // Normal priority, debounced
	high *request // Immediate / Cargo priority

	building    atomic.Bool
	runner      Runner
	waitToBuild time.Duration
}

// New creates a Queue that debounces Normal requests by waitToBuild before
// running them.
func New(runner Runner, waitToBuild time.Duration) *Queue {
	return &Queue{runner: runner, waitToBuild: waitToBuild}
}

// RequestBuild implements the request_build protocol: enqueue a build at
// the given priority, coalescing with whatever is already pending.
func (q *Queue) RequestBuild(dir string, priority Priority, callback Callback) {
	req := &request{dir: dir, priority: priority, callback: callback}

	q.mu.Lock()
	switch {
	case priority == Normal && q.low == nil && q.high == nil:
		req.priority = Immediate
		q.high = req
	case priority == Normal:
		if q.low != nil {
			q.low.squash()
		}
		q.low = req
	default:
		if q.low != nil {
			q.low.squash()
			q.low = nil
		}
		if q.high != nil {
			q.high.squash()
		}
		q.high = req
	}

	spawn := !q.building.Swap(true)
	q.mu.Unlock()

	rlslog.Build("request_build dir=%s priority=%s spawn_worker=%v", dir, priority, spawn)

	if spawn {
		go q.worker()
	}
}

// pop returns the highest-priority pending request, or nil if both slots
// are empty.
func (q *Queue) pop() *request {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.high != nil {
		r := q.high
		q.high = nil
		return r
	}
	if q.low != nil {
		r := q.low
		q.low = nil
		return r
	}
	return nil
}

// pending reports whether either slot currently holds a request (used by
// the debounce wait to detect a newer request arriving mid-sleep).
func (q *Queue) pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.low != nil || q.high != nil
}

func (q *Queue) worker() {
	for {
		req := q.pop()
		if req == nil {
			q.building.Store(false)
			return
		}

		if req.priority == Normal {
			time.Sleep(q.waitToBuild)
			if q.pending() {
				req.squash()
				continue
			}
		}

		result, err := q.runner.RunBuild(req.dir, req.priority)
		if err != nil {
			rlslog.Build("build failed dir=%s priority=%s err=%v", req.dir, req.priority, err)
		}
		if req.callback != nil {
			req.callback(Ran, result, err)
		}
	}
}
