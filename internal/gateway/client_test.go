package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/ironsheep/scan-workbench/internal/model"
	"github.com/ironsheep/scan-workbench/internal/protocol"
)

// scriptedBackend reads n requests and answers them in reverse order.
func scriptedBackend(t *testing.T, r io.Reader, w io.Writer, n int) {
	t.Helper()
	scanner := bufio.NewScanner(r)
	var reqs []protocol.Request
	for len(reqs) < n && scanner.Scan() {
		var req protocol.Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			t.Errorf("backend got malformed request: %v", err)
			return
		}
		reqs = append(reqs, req)
	}

	enc := json.NewEncoder(w)
	// An unsolicited notification and a response nobody asked for are ignored.
	enc.Encode(map[string]interface{}{"jsonrpc": "2.0", "method": "notifications/progress"})
	enc.Encode(map[string]interface{}{"jsonrpc": "2.0", "id": 999, "result": map[string]interface{}{}})

	for i := len(reqs) - 1; i >= 0; i-- {
		var params protocol.ToolCallParams
		json.Unmarshal(reqs[i].Params, &params)
		var args protocol.PathArgs
		json.Unmarshal(params.Arguments, &args)

		text, _ := json.Marshal(protocol.DataResult{Data: "data:" + args.Path})
		enc.Encode(protocol.Response{
			JSONRPC: protocol.Version,
			ID:      reqs[i].ID,
			Result:  protocol.ToolResult{Content: []protocol.Content{{Type: "text", Text: string(text)}}},
		})
	}
}

func TestClient_OutOfOrderResponses(t *testing.T) {
	clientIn, backendOut := io.Pipe()
	backendIn, clientOut := io.Pipe()
	defer backendOut.Close()

	go scriptedBackend(t, backendIn, backendOut, 3)

	c := NewClient(clientIn, clientOut, nil, nil)

	tasks := make([]*Task[string], 3)
	for i := range tasks {
		path := fmt.Sprintf("/scan-%d.png", i)
		tasks[i] = Go(context.Background(), func(ctx context.Context) (string, error) {
			return c.LoadImageFull(ctx, path)
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i, task := range tasks {
		got, err := task.Wait(ctx)
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
		if want := fmt.Sprintf("data:/scan-%d.png", i); got != want {
			t.Errorf("call %d: got %q, want %q", i, got, want)
		}
	}
}

func TestClient_EmptyToolResult(t *testing.T) {
	clientIn, backendOut := io.Pipe()
	backendIn, clientOut := io.Pipe()
	defer backendOut.Close()

	go func() {
		scanner := bufio.NewScanner(backendIn)
		for scanner.Scan() {
			var req protocol.Request
			json.Unmarshal(scanner.Bytes(), &req)
			json.NewEncoder(backendOut).Encode(protocol.Response{
				JSONRPC: protocol.Version,
				ID:      req.ID,
				Result:  protocol.ToolResult{Content: []protocol.Content{}},
			})
		}
	}()

	c := NewClient(clientIn, clientOut, nil, nil)
	_, err := c.SaveResults(context.Background(), []model.OutputCard{}, model.FormatCSV)
	if !IsBackend(err) {
		t.Errorf("got %v, want backend error", err)
	}
}

func TestClient_WriteFailureIsTransport(t *testing.T) {
	clientIn, backendOut := io.Pipe()
	defer backendOut.Close()
	_, clientOut := io.Pipe()
	clientOut.Close()

	c := NewClient(clientIn, clientOut, nil, nil)
	if err := c.Ping(context.Background()); !IsTransport(err) {
		t.Errorf("got %v, want transport error", err)
	}
	if _, err := c.LoadImage(context.Background(), "/a.png"); !IsTransport(err) {
		t.Errorf("later call: got %v, want transport error", err)
	}
}
