// Package logging wraps Zap with context-aware, connection-scoped logging
// for scadad.
//
// Logs default to stderr because stdout carries the MCP stdio protocol and
// must stay clean. The context-aware methods append correlation fields
// (connection id, request id, OTEL trace ids) automatically.
package logging
