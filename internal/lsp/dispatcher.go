package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/standardbeagle/rls-core/internal/rlserrors"
	"github.com/standardbeagle/rls-core/internal/rlslog"
)

// HandlerFunc handles one request or notification's params, returning a
// result (marshaled into the response) or an error. req.ID is nil for
// notifications.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// handlerEntry is one routing-table row.
type handlerEntry struct {
	fn       HandlerFunc
	worklike bool // spawns a worker + timeout rather than running inline
}

// Dispatcher is the compile-time method -> handler table plus the request
// lifecycle (initialize, shutdown, exit, cancellation). Modeled on
// Server (internal/mcp/server.go): a struct holding mutable state
// behind a mutex, a registration pass building the routing table, and Run
// looping over the transport until it closes.
type Dispatcher struct {
	mu       sync.Mutex // guards writes to the transport and shutDown
	handlers map[string]handlerEntry
	writer   io.Writer
	timeout  time.Duration
	shutDown bool
}

// New creates a Dispatcher that times out worklike handlers after timeout
// ("~1.5s, configurable" per-query worker timeout).
func New(timeout time.Duration) *Dispatcher {
	return &Dispatcher{handlers: make(map[string]handlerEntry), timeout: timeout}
}

// Handle registers a handler that runs synchronously on the dispatcher
// goroutine (lightweight notifications/requests: initialize, shutdown,
// didChange, …).
func (d *Dispatcher) Handle(method string, fn HandlerFunc) {
	d.handlers[method] = handlerEntry{fn: fn}
}

// HandleWorklike registers a handler that spawns a worker goroutine and
// races it against the dispatcher's timeout ("handlers that
// do real work": hover, definition, references, completion, symbols, …).
func (d *Dispatcher) HandleWorklike(method string, fn HandlerFunc) {
	d.handlers[method] = handlerEntry{fn: fn, worklike: true}
}

// Serve reads frames from r and dispatches them until r returns an error
// (including a clean EOF), writing responses/notifications to w. Returns
// the process exit code: 0 after a clean shutdown+exit, 1 if exit arrived
// without a preceding shutdown.
func (d *Dispatcher) Serve(ctx context.Context, r io.Reader, w io.Writer) int {
	d.writer = w
	br := bufio.NewReader(r)
	shutdownObserved := false

	for {
		msg, err := ReadMessage(br)
		if err != nil {
			if err == io.EOF {
				return 1
			}
			d.writeResponse(nil, nil, rlserrors.NewProtocolError(rlserrors.CodeParseError, err.Error()))
			return 1
		}

		if msg.Method == "exit" {
			if shutdownObserved {
				return 0
			}
			return 1
		}

		d.mu.Lock()
		dropped := d.shutDown
		d.mu.Unlock()
		if dropped {
			continue // step 2: drop everything but exit once shut_down is set
		}

		if msg.Method == "shutdown" {
			d.mu.Lock()
			d.shutDown = true
			d.mu.Unlock()
			shutdownObserved = true
			if msg.IsRequest() {
				d.writeResponse(msg.ID, struct{}{}, nil)
			}
			continue
		}

		d.dispatch(ctx, msg)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, msg *RawMessage) {
	entry, ok := d.handlers[msg.Method]
	if !ok {
		if msg.IsRequest() {
			d.writeResponse(msg.ID, nil, rlserrors.NewProtocolError(rlserrors.CodeMethodNotFound, "method not found: "+msg.Method))
		}
		rlslog.LSP("dropped unknown method %s", msg.Method)
		return
	}

	if msg.Method == "$/cancelRequest" {
		// Logged but never propagated: treats cancellation as
		// a deliberate no-op, pending work still completes and replies.
		rlslog.LSP("cancelRequest received (not propagated): %s", string(msg.Params))
	}

	if entry.worklike {
		d.dispatchWorklike(ctx, msg, entry)
		return
	}

	result, err := entry.fn(ctx, msg.Params)
	if msg.IsRequest() {
		d.writeResponse(msg.ID, result, toProtocolErr(err))
	}
}

// dispatchWorklike spawns the handler on its own goroutine and replies
// with whichever finishes first: the handler's result or the timeout.
// The goroutine is not interrupted on timeout -- its result is simply
// discarded when it eventually arrives.
func (d *Dispatcher) dispatchWorklike(ctx context.Context, msg *RawMessage, entry handlerEntry) {
	type outcome struct {
		result interface{}
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		result, err := entry.fn(ctx, msg.Params)
		ch <- outcome{result, err}
	}()

	select {
	case o := <-ch:
		if msg.IsRequest() {
			d.writeResponse(msg.ID, o.result, toProtocolErr(o.err))
		}
	case <-time.After(d.timeout):
		if msg.IsRequest() {
			d.writeResponse(msg.ID, nil, rlserrors.NewProtocolError(rlserrors.CodeInternalError, "request did not complete in time"))
		}
		rlslog.LSP("worklike handler for %s timed out after %v", msg.Method, d.timeout)
	}
}

func toProtocolErr(err error) *rlserrors.ProtocolError {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*rlserrors.ProtocolError); ok {
		return pe
	}
	return rlserrors.NewProtocolError(rlserrors.CodeInvalidParams, err.Error())
}

// writeResponse serializes one JSON-RPC response. A nil id is valid (used
// for unparseable-frame parse errors).
func (d *Dispatcher) writeResponse(id *ID, result interface{}, protoErr *rlserrors.ProtocolError) {
	d.mu.Lock()
	defer d.mu.Unlock()

	resp := responseMessage{JSONRPC: "2.0"}
	if id != nil {
		resp.ID = id
	} else {
		resp.ID = &ID{}
	}
	if protoErr != nil {
		resp.Error = &errorBody{Code: protoErr.Code, Message: protoErr.Message}
	} else {
		resp.Result = result
	}
	if err := WriteMessage(d.writer, resp); err != nil {
		rlslog.LSP("write response failed: %v", err)
	}
}

// Notify sends an unsolicited notification to the client (publishDiagnostics,
// window/progress, workspace/applyEdit, window/showMessage).
func (d *Dispatcher) Notify(method string, params interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return WriteMessage(d.writer, notificationMessage{JSONRPC: "2.0", Method: method, Params: params})
}
