// Package mcpadapter exposes the classification pipeline as MCP tools over
// stdio, so agent runtimes can classify documents without the REST surface.
package mcpadapter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/doctriage/doctriage/internal/core/domain"
	"github.com/doctriage/doctriage/internal/core/ports"
)

type Server struct {
	classifier ports.SyncClassifier
	strategies ports.StrategySource
	logger     *slog.Logger
	mcp        *server.MCPServer
}

func NewServer(classifier ports.SyncClassifier, strategies ports.StrategySource, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		classifier: classifier,
		strategies: strategies,
		logger:     logger,
	}

	s.mcp = server.NewMCPServer("doctriage", version,
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("classify_document",
		mcp.WithDescription("Classify a document into an industry-specific document type. Returns the classification as JSON."),
		mcp.WithString("payload",
			mcp.Required(),
			mcp.Description("Base64-encoded document bytes (PDF, Word, Excel, or image)."),
		),
		mcp.WithString("filename",
			mcp.Description("Original filename, used for reporting only. The format is sniffed from the bytes."),
		),
		mcp.WithString("industry",
			mcp.Description("Industry to scope classification to. Omit to score against every registered industry."),
		),
	), s.classifyDocument)

	s.mcp.AddTool(mcp.NewTool("list_industries",
		mcp.WithDescription("List registered industries and the document types each one can produce."),
	), s.listIndustries)

	return s
}

// ServeStdio blocks on the stdio transport until the peer disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) classifyDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	encoded, err := req.RequireString("payload")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("payload is not valid base64: %v", err)), nil
	}
	if len(data) == 0 {
		return mcp.NewToolResultError("payload is empty"), nil
	}

	filename := req.GetString("filename", "document.bin")
	industry := req.GetString("industry", "")

	cls, err := s.classifier.ClassifySync(ctx, filename, bytes.NewReader(data), industry)
	if err != nil {
		s.logger.Warn("mcp_classify_failed", "filename", filename, "kind", domain.KindOf(err), "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := json.Marshal(cls)
	if err != nil {
		return nil, fmt.Errorf("encode classification: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listIndustries(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	strategies := s.strategies.All()
	industries := make([]map[string]any, 0, len(strategies))
	for _, strategy := range strategies {
		industries = append(industries, map[string]any{
			"industry":       strategy.Industry,
			"document_types": strategy.DocumentTypes,
		})
	}

	out, err := json.Marshal(map[string]any{"industries": industries})
	if err != nil {
		return nil, fmt.Errorf("encode industries: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}
