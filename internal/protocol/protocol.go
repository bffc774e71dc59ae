// Package protocol defines the JSON-RPC 2.0 messages exchanged with the
// processing backend.
//
// Messages are newline-delimited JSON objects. Backend operations are exposed
// as MCP-style tools: a "tools/call" request names the tool and carries its
// arguments, and a successful result wraps the tool's JSON output as text in
// the first content item.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/ironsheep/scan-workbench/internal/model"
)

// Version is the JSON-RPC version string carried by every message.
const Version = "2.0"

// Method names.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
)

// Tool names.
const (
	ToolLoadImage       = "load_image"
	ToolLoadImageFull   = "load_image_full"
	ToolProcessRegion   = "process_region"
	ToolPreprocessImage = "preprocess_image"
	ToolSaveResults     = "save_results"
)

// JSON-RPC error codes.
const (
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeToolFailed     = -32000
)

// Request represents an incoming JSON-RPC request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents an outgoing JSON-RPC response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents a JSON-RPC error.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("%s (code %d): %v", e.Message, e.Code, e.Data)
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// ToolCallParams represents the parameters for a tools/call request.
type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Content is one item of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the result payload of a successful tools/call.
type ToolResult struct {
	Content []Content `json:"content"`
}

// === Tool arguments ===

// PathArgs is accepted by load_image and load_image_full.
type PathArgs struct {
	Path string `json:"path"`
}

// ProcessRegionArgs is accepted by process_region. Threshold is a pointer so
// that an omitted value can default to disabled rather than to level 0.
type ProcessRegionArgs struct {
	ImageID    string       `json:"imageId"`
	Region     model.Region `json:"region"`
	Rotation   int          `json:"rotation"`
	BlurRadius float64      `json:"blurRadius"`
	Threshold  *int         `json:"threshold,omitempty"`
}

// PreprocessArgs is accepted by preprocess_image.
type PreprocessArgs struct {
	Path       string  `json:"path"`
	BlurRadius float64 `json:"blurRadius"`
	Threshold  *int    `json:"threshold,omitempty"`
}

// SaveResultsArgs is accepted by save_results.
type SaveResultsArgs struct {
	Cards  []model.OutputCard `json:"cards"`
	Format string             `json:"format"`
}

// === Tool results ===

// DataResult carries an encoded image as a data URL.
type DataResult struct {
	Data string `json:"data"`
}

// PathResult carries a filesystem path.
type PathResult struct {
	Path string `json:"path"`
}

// Settings resolves an optional threshold into processing settings.
func Settings(blur float64, threshold *int) model.ProcessingSettings {
	s := model.ProcessingSettings{BlurRadius: blur, Threshold: model.ThresholdDisabled}
	if threshold != nil {
		s.Threshold = *threshold
	}
	return s
}
