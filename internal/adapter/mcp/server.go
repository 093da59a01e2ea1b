package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"

	"github.com/seqlab/taxhist/internal/core/port"
	"github.com/seqlab/taxhist/internal/core/service"
)

// NewServer creates an MCPServer exposing the histogram engine as tools,
// with logging hooks and optional tracing/metrics.
func NewServer(version string, svc *service.HistogramService, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithHooks(ToolCallHooks(logger, tracer, inst)),
	)

	RegisterTools(s, svc)

	return s
}
