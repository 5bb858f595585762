// Package api defines the wire types of the mcpgate gateway.
//
// The types keep the JSON shape that existing chat frontends already send
// and consume, so field names mix snake_case payload keys with the
// capitalized Data/Error/Status envelope.
//
// Core types:
//   - [ProcessRequest]: a session input naming the backend, the MCP servers,
//     their credentials and the conversation
//   - [ToolDeclaration]: a function tool offered to a backend
//   - [ExecutionResult]: the accumulated outcome of one request
//   - [StreamEvent]: one progress envelope written to a streaming sink
//   - [APIError]: transport-level error body
package api
