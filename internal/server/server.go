package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ironsheep/scan-workbench/internal/gateway"
	"github.com/ironsheep/scan-workbench/internal/logging"
	"github.com/ironsheep/scan-workbench/internal/protocol"
)

// maxRequestSize bounds a single request line. save_results carries every
// card in one request.
const maxRequestSize = 32 * 1024 * 1024

// protocolVersion is reported in the initialize response.
const protocolVersion = "2024-11-05"

// Server exposes a gateway as JSON-RPC tools.
type Server struct {
	gw      gateway.Gateway
	version string
	log     *logging.Logger
}

// New creates a server backed by gw.
func New(gw gateway.Gateway, version string, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	return &Server{gw: gw, version: version, log: log}
}

// Run serves stdin and stdout until stdin closes or ctx is cancelled. A
// read blocked on stdin cannot be interrupted, so on cancellation Run
// returns ctx.Err() without waiting for Serve.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		errc <- s.Serve(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve reads requests from r and writes responses to w until r is
// exhausted. Cancelling ctx cancels in-flight calls and stops Serve after
// the request being read.
//
// tools/call requests run concurrently, so their responses may be written
// out of request order; clients match them by id. Serve returns after every
// in-flight call has written its response.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxRequestSize)

	out := &responseWriter{enc: json.NewEncoder(w), log: s.log}
	var wg sync.WaitGroup
	defer wg.Wait()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req protocol.Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.Warn("failed to parse request", "error", err)
			continue
		}

		if req.Method == protocol.MethodToolsCall {
			wg.Add(1)
			go func(req protocol.Request) {
				defer wg.Done()
				out.write(s.handleToolsCall(ctx, &req))
			}(req)
			continue
		}

		if resp := s.handleRequest(&req); resp != nil {
			out.write(resp)
		}

		if ctx.Err() != nil {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

// responseWriter serializes responses from concurrent handlers.
type responseWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	log *logging.Logger
}

func (rw *responseWriter) write(resp *protocol.Response) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if err := rw.enc.Encode(resp); err != nil {
		rw.log.Error("failed to encode response", "id", resp.ID, "error", err)
	}
}

// handleRequest routes every method except tools/call.
func (s *Server) handleRequest(req *protocol.Request) *protocol.Response {
	switch req.Method {
	case protocol.MethodInitialize:
		return s.handleInitialize(req)
	case protocol.MethodInitialized:
		// Client acknowledgment, no response needed
		return nil
	case protocol.MethodToolsList:
		return s.handleToolsList(req)
	case protocol.MethodPing:
		return &protocol.Response{
			JSONRPC: protocol.Version,
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		if req.ID == nil {
			s.log.Debug("ignoring notification", "method", req.Method)
			return nil
		}
		return errorResponse(req.ID, protocol.CodeMethodNotFound,
			fmt.Sprintf("Method not found: %s", req.Method), "")
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *protocol.Request) *protocol.Response {
	return &protocol.Response{
		JSONRPC: protocol.Version,
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "scan-backend",
				"version": s.version,
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *protocol.Request) *protocol.Response {
	return &protocol.Response{
		JSONRPC: protocol.Version,
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
