// Package mcptools exposes the orchestrator as Model Context Protocol tools.
package mcptools

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewServer creates an MCP server with the ask and parse_subtasks tools.
func NewServer(svc *AskService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "deepask",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a task with a chosen compute level. low answers directly, medium decomposes once and synthesizes, high decomposes into stages and steps. Returns the answer and its decomposition trace.",
	}, svc.Ask)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "parse_subtasks",
		Description: "Extract the items of a numbered list (\"1. ...\") from text, in order, with the markers removed.",
	}, svc.ParseSubtasks)

	return server
}

// RunStdio runs server on stdio, blocking until stdin is closed or ctx is
// cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves server over streamable HTTP on addr until ctx is cancelled.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
