// Package mcp exposes the DevForge workflow commands as MCP tools.
//
// The server uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and registers one tool per dispatcher command, with the input schema
// inferred from the command's input type. Every call returns a single text
// content block; failures come back as "Error: ..." text with IsError set,
// never as protocol errors.
package mcp
