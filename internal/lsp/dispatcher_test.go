package lsp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func frame(t *testing.T, v interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return []byte(fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body))
}

func TestReadMessageParsesRequest(t *testing.T) {
	raw := frame(t, map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": "initialize", "params": map[string]string{}})
	msg, err := ReadMessage(bufio.NewReader(bytes.NewReader(raw)))
	require.NoError(t, err)
	require.Equal(t, "initialize", msg.Method)
	require.True(t, msg.IsRequest())
}

func TestReadMessageRejectsMissingContentLength(t *testing.T) {
	_, err := ReadMessage(bufio.NewReader(bytes.NewReader([]byte("\r\n{}"))))
	require.Error(t, err)
}

func TestReadMessageRejectsBadLength(t *testing.T) {
	_, err := ReadMessage(bufio.NewReader(bytes.NewReader([]byte("Content-Length: abc\r\n\r\n{}"))))
	require.Error(t, err)
}

func TestWriteMessageRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, map[string]string{"hello": "world"}))

	msg, err := ReadMessage(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Empty(t, msg.Method) // this was a plain map, not a RawMessage shape
	_ = msg
}

func runDispatcher(t *testing.T, d *Dispatcher, requests [][]byte) []byte {
	t.Helper()
	var input bytes.Buffer
	for _, r := range requests {
		input.Write(r)
	}
	var output bytes.Buffer
	d.Serve(context.Background(), &input, &output)
	return output.Bytes()
}

func TestDispatchUnknownMethodRespondsMethodNotFound(t *testing.T) {
	d := New(time.Second)
	out := runDispatcher(t, d, [][]byte{
		frame(t, map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": "textDocument/bogus"}),
		frame(t, map[string]interface{}{"jsonrpc": "2.0", "method": "exit"}),
	})
	require.Contains(t, string(out), "-32601")
}

func TestDispatchSynchronousHandlerReturnsResult(t *testing.T) {
	d := New(time.Second)
	d.Handle("ping", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return map[string]string{"pong": "ok"}, nil
	})
	out := runDispatcher(t, d, [][]byte{
		frame(t, map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": "ping"}),
		frame(t, map[string]interface{}{"jsonrpc": "2.0", "method": "exit"}),
	})
	require.Contains(t, string(out), "pong")
}

func TestDispatchWorklikeTimesOut(t *testing.T) {
	d := New(10 * time.Millisecond)
	d.HandleWorklike("textDocument/hover", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		time.Sleep(200 * time.Millisecond)
		return "too slow", nil
	})
	out := runDispatcher(t, d, [][]byte{
		frame(t, map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": "textDocument/hover"}),
		frame(t, map[string]interface{}{"jsonrpc": "2.0", "method": "exit"}),
	})
	require.Contains(t, string(out), "did not complete in time")
}

func TestShutdownThenExitReturnsZero(t *testing.T) {
	d := New(time.Second)
	var input bytes.Buffer
	input.Write(frame(t, map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": "shutdown"}))
	input.Write(frame(t, map[string]interface{}{"jsonrpc": "2.0", "method": "exit"}))
	var output bytes.Buffer
	code := d.Serve(context.Background(), &input, &output)
	require.Equal(t, 0, code)
}

func TestExitWithoutShutdownReturnsOne(t *testing.T) {
	d := New(time.Second)
	var input bytes.Buffer
	input.Write(frame(t, map[string]interface{}{"jsonrpc": "2.0", "method": "exit"}))
	var output bytes.Buffer
	code := d.Serve(context.Background(), &input, &output)
	require.Equal(t, 1, code)
}

func TestMessagesAfterShutdownAreDropped(t *testing.T) {
	d := New(time.Second)
	called := false
	d.Handle("textDocument/didChange", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		called = true
		return nil, nil
	})
	var input bytes.Buffer
	input.Write(frame(t, map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": "shutdown"}))
	input.Write(frame(t, map[string]interface{}{"jsonrpc": "2.0", "method": "textDocument/didChange"}))
	input.Write(frame(t, map[string]interface{}{"jsonrpc": "2.0", "method": "exit"}))
	var output bytes.Buffer
	d.Serve(context.Background(), &input, &output)
	require.False(t, called, "messages after shutdown (other than exit) must be dropped")
}
