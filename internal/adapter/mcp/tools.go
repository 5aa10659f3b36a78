package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/DomainLens/internal/domain"
	"github.com/Strob0t/DomainLens/internal/domain/analysis"
	"github.com/Strob0t/DomainLens/internal/domain/batch"
)

// taskView is the tool-facing rendering of a Task.
type taskView struct {
	TaskID    string            `json:"task_id"`
	Status    batch.Status      `json:"status"`
	Progress  float64           `json:"progress"`
	Results   []analysis.Result `json:"results,omitempty"`
	Summary   *analysis.Summary `json:"summary,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func viewOf(t *batch.Task) taskView {
	return taskView{
		TaskID:    t.ID,
		Status:    t.Status,
		Progress:  t.Progress,
		Results:   t.Results,
		Summary:   t.Summary,
		Error:     t.Error,
		CreatedAt: t.CreatedAt,
	}
}

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.analyzeDomainsTool(),
		s.submitDomainsTool(),
		s.getTaskStatusTool(),
		s.cancelTaskTool(),
	)
}

func domainsParam() mcplib.ToolOption {
	return mcplib.WithArray("domains",
		mcplib.Required(),
		mcplib.Description("Domains to analyze, e.g. [\"example.com\"]. A missing scheme defaults to https."),
		mcplib.Items(map[string]any{"type": "string"}),
	)
}

func taskIDParam(desc string) mcplib.ToolOption {
	return mcplib.WithString("task_id",
		mcplib.Required(),
		mcplib.Description(desc),
	)
}

func (s *Server) analyzeDomainsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("analyze_domains",
		mcplib.WithDescription("Fetch each domain's landing page, count keyword mentions and wait for the scored results"),
		domainsParam(),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleAnalyzeDomains}
}

func (s *Server) submitDomainsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("submit_domains",
		mcplib.WithDescription("Start a background keyword analysis and return its task id"),
		domainsParam(),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleSubmitDomains}
}

func (s *Server) getTaskStatusTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_task_status",
		mcplib.WithDescription("Get progress, results and summary of an analysis task"),
		taskIDParam("The task ID returned by submit_domains"),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetTaskStatus}
}

func (s *Server) cancelTaskTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("cancel_task",
		mcplib.WithDescription("Cancel a running analysis task"),
		taskIDParam("The task ID to cancel"),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleCancelTask}
}

func (s *Server) handleAnalyzeDomains(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Batches == nil {
		return mcplib.NewToolResultError("batch service not configured"), nil
	}
	domains, errResult := domainsArg(req)
	if errResult != nil {
		return errResult, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SyncTimeout)
	defer cancel()

	t, err := s.deps.Batches.Analyze(ctx, domains)
	switch {
	case err == nil:
	case t != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)):
		return toolResultJSON(viewOf(t)), nil
	default:
		return toolError("failed to analyze domains", err), nil
	}
	if t.Status == batch.StatusFailed {
		return mcplib.NewToolResultError(fmt.Sprintf("analysis %s failed: %s", t.ID, t.Error)), nil
	}
	return toolResultJSON(viewOf(t)), nil
}

func (s *Server) handleSubmitDomains(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Batches == nil {
		return mcplib.NewToolResultError("batch service not configured"), nil
	}
	domains, errResult := domainsArg(req)
	if errResult != nil {
		return errResult, nil
	}
	t, err := s.deps.Batches.Submit(ctx, domains)
	if err != nil {
		return toolError("failed to submit domains", err), nil
	}
	return toolResultJSON(map[string]string{"task_id": t.ID}), nil
}

func (s *Server) handleGetTaskStatus(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Batches == nil {
		return mcplib.NewToolResultError("batch service not configured"), nil
	}
	id, ok := stringArg(req, "task_id")
	if !ok {
		return mcplib.NewToolResultError("task_id is required"), nil
	}
	t, err := s.deps.Batches.Get(ctx, id)
	if err != nil {
		return toolError(fmt.Sprintf("failed to get task %s", id), err), nil
	}
	return toolResultJSON(viewOf(t)), nil
}

func (s *Server) handleCancelTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Batches == nil {
		return mcplib.NewToolResultError("batch service not configured"), nil
	}
	id, ok := stringArg(req, "task_id")
	if !ok {
		return mcplib.NewToolResultError("task_id is required"), nil
	}
	if err := s.deps.Batches.Cancel(ctx, id); err != nil {
		return toolError(fmt.Sprintf("failed to cancel task %s", id), err), nil
	}
	return toolResultJSON(map[string]string{"task_id": id, "status": "cancelling"}), nil
}

// toolError reports user errors verbatim and hides internal ones.
func toolError(msg string, err error) *mcplib.CallToolResult {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConflict):
		return mcplib.NewToolResultErrorFromErr(msg, err)
	default:
		return mcplib.NewToolResultError(msg + ": internal error")
	}
}

func stringArg(req mcplib.CallToolRequest, name string) (string, bool) { //nolint:gocritic // hugeParam: mcp-go request type
	v, ok := req.GetArguments()[name].(string)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// domainsArg accepts a JSON array of strings or a single comma/newline
// separated string.
func domainsArg(req mcplib.CallToolRequest) ([]string, *mcplib.CallToolResult) { //nolint:gocritic // hugeParam: mcp-go request type
	switch v := req.GetArguments()["domains"].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, mcplib.NewToolResultError("domains must be an array of strings")
			}
			out = append(out, str)
		}
		return out, nil
	case []string:
		return v, nil
	case string:
		return strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '\n' }), nil
	default:
		return nil, mcplib.NewToolResultError("domains is required")
	}
}
