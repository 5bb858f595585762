// Package mcp implements capability.Registry over Model Context Protocol
// client sessions. Each configured server is one provider; its id is the
// server name used in selected_servers.
//
// Servers are connected once at startup by Connect. A server that fails
// to connect is logged and left out of the registry, so requests naming
// it are rejected as an invalid server.
package mcp
