package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/scan-workbench/internal/gateway"
	"github.com/ironsheep/scan-workbench/internal/model"
	"github.com/ironsheep/scan-workbench/internal/protocol"
)

// invalidParams marks argument decoding failures so they answer -32602.
type invalidParams struct {
	err error
}

func (e invalidParams) Error() string { return e.err.Error() }
func (e invalidParams) Unwrap() error { return e.err }

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Malformed arguments and invalid-argument failures answer -32602; every
// other failure answers -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *protocol.Request) *protocol.Response {
	var params protocol.ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, protocol.CodeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		var bad invalidParams
		switch {
		case errors.As(err, &bad), gateway.KindOf(err) == gateway.KindInvalidArgument:
			s.log.Debug("tool rejected arguments", "tool", params.Name, "error", err)
			return errorResponse(req.ID, protocol.CodeInvalidParams, "Invalid params", err.Error())
		default:
			s.log.Warn("tool failed", "tool", params.Name, "error", err)
			return errorResponse(req.ID, protocol.CodeToolFailed, "Tool execution failed", err.Error())
		}
	}

	text, err := json.Marshal(result)
	if err != nil {
		s.log.Error("failed to encode tool result", "tool", params.Name, "error", err)
		return errorResponse(req.ID, protocol.CodeToolFailed, "Tool execution failed",
			fmt.Sprintf("failed to encode result: %v", err))
	}

	return &protocol.Response{
		JSONRPC: protocol.Version,
		ID:      req.ID,
		Result: protocol.ToolResult{
			Content: []protocol.Content{
				{Type: "text", Text: string(text)},
			},
		},
	}
}

// executeTool dispatches a tool call to the gateway.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case protocol.ToolLoadImage:
		return s.handleLoadImage(ctx, args)
	case protocol.ToolLoadImageFull:
		return s.handleLoadImageFull(ctx, args)
	case protocol.ToolProcessRegion:
		return s.handleProcessRegion(ctx, args)
	case protocol.ToolPreprocessImage:
		return s.handlePreprocessImage(ctx, args)
	case protocol.ToolSaveResults:
		return s.handleSaveResults(ctx, args)
	default:
		return nil, invalidParams{fmt.Errorf("unknown tool: %s", name)}
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func errorResponse(id interface{}, code int, message, data string) *protocol.Response {
	e := &protocol.Error{Code: code, Message: message}
	if data != "" {
		e.Data = data
	}
	return &protocol.Response{JSONRPC: protocol.Version, ID: id, Error: e}
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return invalidParams{fmt.Errorf("missing arguments")}
	}
	if err := json.Unmarshal(args, v); err != nil {
		return invalidParams{err}
	}
	return nil
}

// === Handlers ===

func (s *Server) handleLoadImage(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a protocol.PathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.gw.LoadImage(ctx, a.Path)
}

func (s *Server) handleLoadImageFull(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a protocol.PathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	data, err := s.gw.LoadImageFull(ctx, a.Path)
	if err != nil {
		return nil, err
	}
	return protocol.DataResult{Data: data}, nil
}

func (s *Server) handleProcessRegion(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a protocol.ProcessRegionArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	req := gateway.NewRegionRequest(a.ImageID, a.Region, a.Rotation).
		WithSettings(protocol.Settings(a.BlurRadius, a.Threshold))
	return s.gw.ProcessRegion(ctx, req)
}

func (s *Server) handlePreprocessImage(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a protocol.PreprocessArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	data, err := s.gw.PreprocessImage(ctx, a.Path, protocol.Settings(a.BlurRadius, a.Threshold))
	if err != nil {
		return nil, err
	}
	return protocol.DataResult{Data: data}, nil
}

func (s *Server) handleSaveResults(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a protocol.SaveResultsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	format, err := model.ParseExportFormat(a.Format)
	if err != nil {
		return nil, gateway.NewInvalidArgumentError(gateway.OpSaveResults, err)
	}
	path, err := s.gw.SaveResults(ctx, a.Cards, format)
	if err != nil {
		return nil, err
	}
	return protocol.PathResult{Path: path}, nil
}
