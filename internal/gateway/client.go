package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/ironsheep/scan-workbench/internal/logging"
	"github.com/ironsheep/scan-workbench/internal/model"
	"github.com/ironsheep/scan-workbench/internal/protocol"
)

// clientProtocolVersion is sent in the initialize handshake.
const clientProtocolVersion = "2024-11-05"

// response is a JSON-RPC response as read by the client. IDs are always the
// integers the client assigned.
type response struct {
	ID     *int64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *protocol.Error `json:"error"`
}

// Client reaches a backend server over a JSON-RPC stream.
//
// Calls may be issued concurrently; responses are matched to requests by id
// and may arrive in any order. Once the stream fails every pending and later
// call returns a KindTransport error.
type Client struct {
	w      io.Writer
	closer io.Closer
	log    *logging.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan *response
	err     error // terminal stream error

	readerDone chan struct{}
}

// NewClient starts a client reading responses from r and writing requests to
// w. If closer is non-nil, Close closes it.
func NewClient(r io.Reader, w io.Writer, closer io.Closer, log *logging.Logger) *Client {
	if log == nil {
		log = logging.Discard()
	}
	c := &Client{
		w:          w,
		closer:     closer,
		log:        log,
		pending:    make(map[int64]chan *response),
		readerDone: make(chan struct{}),
	}
	go c.readLoop(r)
	return c
}

// Spawn starts the backend executable and connects a client to its stdin
// and stdout. The backend's stderr is passed through. The process is killed
// if ctx is cancelled; Close shuts it down cleanly.
func Spawn(ctx context.Context, command string, args []string, log *logging.Logger) (*Client, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, NewTransportError("spawn", "failed to open backend stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, NewTransportError("spawn", "failed to open backend stdout", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, NewTransportError("spawn", fmt.Sprintf("failed to start %s", command), err)
	}

	p := &process{stdin: stdin, cmd: cmd}
	c := NewClient(stdout, stdin, p, log)
	p.readerDone = c.readerDone
	if err := c.Initialize(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// process closes the backend's stdin, which makes the backend exit, and
// reaps it once the client has read everything it wrote.
type process struct {
	stdin      io.Closer
	cmd        *exec.Cmd
	readerDone <-chan struct{}
}

func (p *process) Close() error {
	p.stdin.Close()
	<-p.readerDone
	return p.cmd.Wait()
}

func (c *Client) readLoop(r io.Reader) {
	defer close(c.readerDone)

	dec := json.NewDecoder(r)
	for {
		var resp response
		if err := dec.Decode(&resp); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			c.fail(err)
			return
		}
		if resp.ID == nil {
			c.log.Debug("ignoring message without id")
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[*resp.ID]
		delete(c.pending, *resp.ID)
		c.mu.Unlock()

		if !ok {
			c.log.Warn("response for unknown request", "id", *resp.ID)
			continue
		}
		ch <- &resp
	}
}

// fail records the terminal stream error and releases every pending call.
func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.log.Debug("backend stream closed", "error", err)
}

func (c *Client) transportErr(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return NewTransportError(op, "backend connection lost", c.err)
}

// call sends one request and waits for its response.
func (c *Client) call(ctx context.Context, op, method string, params interface{}) (json.RawMessage, error) {
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, NewTransportError(op, "failed to encode request", err)
		}
		raw = data
	}

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, c.transportErr(op)
	}
	c.nextID++
	id := c.nextID
	ch := make(chan *response, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	line, err := json.Marshal(protocol.Request{JSONRPC: protocol.Version, ID: id, Method: method, Params: raw})
	if err != nil {
		c.forget(id)
		return nil, NewTransportError(op, "failed to encode request", err)
	}

	c.writeMu.Lock()
	_, err = c.w.Write(append(line, '\n'))
	c.writeMu.Unlock()
	if err != nil {
		c.fail(err)
		return nil, c.transportErr(op)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, c.transportErr(op)
		}
		if resp.Error != nil {
			if resp.Error.Code == protocol.CodeInvalidParams {
				return nil, &Error{Op: op, Kind: KindInvalidArgument, Message: resp.Error.Message, Cause: resp.Error}
			}
			return nil, NewBackendError(op, resp.Error.Message, resp.Error)
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.forget(id)
		return nil, NewBackendError(op, "cancelled", ctx.Err())
	}
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// callTool invokes a backend tool and decodes its JSON text result into out.
func (c *Client) callTool(ctx context.Context, op, tool string, args, out interface{}) error {
	argData, err := json.Marshal(args)
	if err != nil {
		return NewTransportError(op, "failed to encode arguments", err)
	}

	raw, err := c.call(ctx, op, protocol.MethodToolsCall, protocol.ToolCallParams{Name: tool, Arguments: argData})
	if err != nil {
		return err
	}

	var result protocol.ToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return NewTransportError(op, "malformed tool result", err)
	}
	if len(result.Content) == 0 {
		return NewBackendError(op, "empty tool result", nil)
	}
	if err := json.Unmarshal([]byte(result.Content[0].Text), out); err != nil {
		return NewTransportError(op, "malformed tool result", err)
	}
	return nil
}

// Initialize performs the protocol handshake.
func (c *Client) Initialize(ctx context.Context) error {
	params := map[string]interface{}{
		"protocolVersion": clientProtocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo":      map[string]interface{}{"name": "scan-workbench"},
	}
	if _, err := c.call(ctx, protocol.MethodInitialize, protocol.MethodInitialize, params); err != nil {
		return err
	}

	line, err := json.Marshal(struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
	}{protocol.Version, protocol.MethodInitialized})
	if err != nil {
		return NewTransportError(protocol.MethodInitialized, "failed to encode notification", err)
	}
	c.writeMu.Lock()
	_, err = c.w.Write(append(line, '\n'))
	c.writeMu.Unlock()
	if err != nil {
		c.fail(err)
		return c.transportErr(protocol.MethodInitialized)
	}
	return nil
}

// Ping checks that the backend is responsive.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, protocol.MethodPing, protocol.MethodPing, nil)
	return err
}

// LoadImage implements Gateway.
func (c *Client) LoadImage(ctx context.Context, path string) (*model.ImageRecord, error) {
	var record model.ImageRecord
	if err := c.callTool(ctx, OpLoadImage, protocol.ToolLoadImage, protocol.PathArgs{Path: path}, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// LoadImageFull implements Gateway.
func (c *Client) LoadImageFull(ctx context.Context, path string) (string, error) {
	var out protocol.DataResult
	if err := c.callTool(ctx, OpLoadImageFull, protocol.ToolLoadImageFull, protocol.PathArgs{Path: path}, &out); err != nil {
		return "", err
	}
	return out.Data, nil
}

// ProcessRegion implements Gateway.
func (c *Client) ProcessRegion(ctx context.Context, req RegionRequest) (*model.RegionResult, error) {
	threshold := req.Settings.Threshold
	args := protocol.ProcessRegionArgs{
		ImageID:    req.ImageID,
		Region:     req.Region,
		Rotation:   req.RotationDegrees,
		BlurRadius: req.Settings.BlurRadius,
		Threshold:  &threshold,
	}
	var result model.RegionResult
	if err := c.callTool(ctx, OpProcessRegion, protocol.ToolProcessRegion, args, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PreprocessImage implements Gateway.
func (c *Client) PreprocessImage(ctx context.Context, path string, settings model.ProcessingSettings) (string, error) {
	threshold := settings.Threshold
	args := protocol.PreprocessArgs{Path: path, BlurRadius: settings.BlurRadius, Threshold: &threshold}
	var out protocol.DataResult
	if err := c.callTool(ctx, OpPreprocessImage, protocol.ToolPreprocessImage, args, &out); err != nil {
		return "", err
	}
	return out.Data, nil
}

// SaveResults implements Gateway.
func (c *Client) SaveResults(ctx context.Context, cards []model.OutputCard, format model.ExportFormat) (string, error) {
	if cards == nil {
		cards = []model.OutputCard{}
	}
	args := protocol.SaveResultsArgs{Cards: cards, Format: string(format)}
	var out protocol.PathResult
	if err := c.callTool(ctx, OpSaveResults, protocol.ToolSaveResults, args, &out); err != nil {
		return "", err
	}
	return out.Path, nil
}

// Close closes the underlying stream and waits for the read loop to stop.
// Without a closer it only returns.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	<-c.readerDone
	return err
}
