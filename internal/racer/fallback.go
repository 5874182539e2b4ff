package racer

import (
	"fmt"
	"time"

	"github.com/standardbeagle/rls-core/internal/span"
)

// TextSource is the read-only VFS view Racer operates on. vfs.VFS[U].LoadFile satisfies this
// for any U without internal/racer importing internal/vfs's generic type.
type TextSource interface {
	LoadFile(path string) (string, error)
}

// Fallback is the guarded entry point handlers call. Every query is
// wrapped in the same panic-boundary + timeout guard, degrading to an
// empty result rather than propagating either failure mode to the client.
type Fallback struct {
	Source  TextSource
	Timeout time.Duration
}

// withGuard runs f on its own goroutine, recovering any panic and racing
// it against Timeout; a panic or timeout both yield the zero value, never
// an error surfaced to the caller (the caller just gets "no result").
func withGuard[T any](timeout time.Duration, f func() (T, error)) T {
	type outcome struct {
		v   T
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				ch <- outcome{v: zero, err: fmt.Errorf("racer: panic: %v", r)}
			}
		}()
		v, err := f()
		ch <- outcome{v: v, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			var zero T
			return zero
		}
		return o.v
	case <-time.After(timeout):
		var zero T
		return zero
	}
}

// Complete returns source-level completions at (row, col) in path, or nil
// on any read/parse/panic/timeout failure.
func (f *Fallback) Complete(path string, row, col uint32) []CompletionItem {
	text, err := f.Source.LoadFile(path)
	if err != nil {
		return nil
	}
	return withGuard(f.Timeout, func() ([]CompletionItem, error) {
		return complete([]byte(text), row, col)
	})
}

// definitionResult lets Definition return both the location and a found
// flag through the single generic withGuard return value.
type definitionResult struct {
	Location *span.Location
	Found    bool
}

// Definition returns the source-level definition location at (row, col) in
// path, or (nil, false) on any failure including "not found".
func (f *Fallback) Definition(path string, row, col uint32) (*span.Location, bool) {
	text, err := f.Source.LoadFile(path)
	if err != nil {
		return nil, false
	}
	res := withGuard(f.Timeout, func() (definitionResult, error) {
		loc, found, err := definition([]byte(text), path, row, col)
		return definitionResult{Location: loc, Found: found}, err
	})
	return res.Location, res.Found
}

// Hover returns a best-effort hover string for the identifier at (row,
// col) in path, or ("", false) on any failure.
func (f *Fallback) Hover(path string, row, col uint32) (string, bool) {
	text, err := f.Source.LoadFile(path)
	if err != nil {
		return "", false
	}
	type hoverResult struct {
		Text  string
		Found bool
	}
	res := withGuard(f.Timeout, func() (hoverResult, error) {
		text, found, err := hover([]byte(text), row, col)
		return hoverResult{Text: text, Found: found}, err
	})
	return res.Text, res.Found
}
