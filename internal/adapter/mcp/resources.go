package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const taskURIPrefix = "domainlens://tasks/"

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			taskURIPrefix+"{task_id}",
			"Analysis Task",
			mcplib.WithTemplateDescription("Status, results and summary of one analysis task"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleTaskResource,
	)
}

func (s *Server) handleTaskResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Batches == nil {
		return nil, fmt.Errorf("batch service not configured")
	}
	id := strings.TrimPrefix(req.Params.URI, taskURIPrefix)
	if id == "" || id == req.Params.URI {
		return nil, fmt.Errorf("invalid task uri %q", req.Params.URI)
	}
	t, err := s.deps.Batches.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	data, err := json.Marshal(viewOf(t))
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
