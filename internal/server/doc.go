// Package server runs the processing backend as a JSON-RPC 2.0 server.
//
// The server communicates over stdio using newline-delimited JSON:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Tools
//
// Each tool forwards to one gateway operation:
//   - load_image: decode, thumbnail and register an image id
//   - load_image_full: full-resolution data URL
//   - process_region: crop, rotate, preprocess and OCR one region
//   - preprocess_image: preview of blur and threshold settings
//   - save_results: write output cards as TXT or CSV
//
// Tool calls run concurrently. Responses are written whole, one per line,
// in completion order.
//
// # Error Handling
//
// Errors are returned as JSON-RPC error responses:
//   - -32601: unknown method
//   - -32602: malformed arguments, unknown tool, or an invalid-argument
//     failure from the gateway
//   - -32000: any other tool failure; data carries the error text
package server
