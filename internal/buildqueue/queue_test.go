package buildqueue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []Priority
	delay time.Duration
}

func (f *fakeRunner) RunBuild(dir string, priority Priority) (*Result, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.calls = append(f.calls, priority)
	f.mu.Unlock()
	return &Result{Dir: dir}, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestFirstNormalRequestPromotesToImmediate(t *testing.T) {
	defer goleak.VerifyNone(t)
	runner := &fakeRunner{}
	q := New(runner, 10*time.Millisecond)

	done := make(chan Outcome, 1)
	q.RequestBuild("/proj", Normal, func(o Outcome, r *Result, err error) { done <- o })

	select {
	case o := <-done:
		require.Equal(t, Ran, o, "first Normal request on an empty queue promotes to Immediate and runs without debounce")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for callback")
	}
}

func TestBackToBackNormalRequestsBothRun(t *testing.T) {
	defer goleak.VerifyNone(t)
	runner := &fakeRunner{delay: 30 * time.Millisecond}
	q := New(runner, 50*time.Millisecond)

	first := make(chan Outcome, 1)
	q.RequestBuild("/proj", Normal, func(o Outcome, r *Result, err error) { first <- o })

	// Arrives while the first is already running and both slots are empty
	// again, so it promotes straight to Immediate and queues behind it.
	time.Sleep(5 * time.Millisecond)

	second := make(chan Outcome, 1)
	q.RequestBuild("/proj", Normal, func(o Outcome, r *Result, err error) { second <- o })

	require.Equal(t, Ran, <-first)
	require.Equal(t, Ran, <-second)
	require.Equal(t, 2, runner.callCount())
}

func TestImmediateSquashesPendingLow(t *testing.T) {
	defer goleak.VerifyNone(t)
	runner := &fakeRunner{delay: 40 * time.Millisecond}
	q := New(runner, 100*time.Millisecond)

	first := make(chan Outcome, 1)
	q.RequestBuild("/proj", Normal, func(o Outcome, r *Result, err error) { first <- o })
	time.Sleep(5 * time.Millisecond)

	// While the first build runs both slots are empty again, so this Normal
	// request is promoted into the high slot; the next one finds the high
	// slot taken and waits in the low slot.
	promoted := make(chan Outcome, 1)
	q.RequestBuild("/proj", Normal, func(o Outcome, r *Result, err error) { promoted <- o })

	low := make(chan Outcome, 1)
	q.RequestBuild("/proj", Normal, func(o Outcome, r *Result, err error) { low <- o })

	immediate := make(chan Outcome, 1)
	q.RequestBuild("/proj", Immediate, func(o Outcome, r *Result, err error) { immediate <- o })

	require.Equal(t, Squashed, <-low, "the pending low-priority request must be squashed by the Immediate request")
	require.Equal(t, Squashed, <-promoted, "the pending high-slot request is squashed as well")
	require.Equal(t, Ran, <-first)
	require.Equal(t, Ran, <-immediate)
}
