package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func NewMCPHandler(api http.Handler) http.Handler {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "inkwell-mcp",
		Version: "v0.1.0",
	}, nil)
	registerPostTools(server, api)

	handler := mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server { return server },
		&mcp.StreamableHTTPOptions{
			Stateless:    true,
			JSONResponse: true,
		},
	)

	return handler
}
