// Package gateway is the boundary between the workbench and the processing
// backend.
//
// The Gateway interface names the five backend operations. Local implements
// them in process with the imaging, ocr and export packages; Client sends
// them as JSON-RPC tool calls to a backend server, either over any stream
// pair or to a spawned backend process.
//
// # Asynchrony
//
// Gateway methods block. Go runs a call as a Task that can be waited on with
// a deadline or cancelled. Tasks may overlap freely and complete in any
// order.
//
// # Errors
//
// Every failure is an *Error classified as KindInvalidArgument, KindBackend
// or KindTransport. errors.Is(err, ErrInvalidArgument) holds for
// invalid-argument failures on both implementations. No call is retried.
package gateway
