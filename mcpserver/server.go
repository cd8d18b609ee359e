// Package mcpserver exposes the guard facade's operations as MCP tools,
// so agent hosts can route conversation turns, chain steps, and media
// through the guard over stdio. The validator's mcp_tool_output content
// source and MCP parameter scan make this the natural concrete surface
// for the guard.
package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/nox-hq/aegis/catalog"
	"github.com/nox-hq/aegis/facade"
	"github.com/nox-hq/aegis/multimodal"
)

const (
	// maxOutputBytes is the maximum response size before truncation (1 MB).
	maxOutputBytes = 1 << 20
)

// Server is the aegis MCP server, wrapping one session-scoped Guard.
type Server struct {
	version string
	guard   *facade.Guard
}

// New creates an MCP server over the given guard.
func New(version string, guard *facade.Guard) *Server {
	return &Server{version: version, guard: guard}
}

// Serve starts the MCP server on stdio and blocks until the client
// disconnects.
func (s *Server) Serve() error {
	srv := mcpserver.NewMCPServer(
		"aegis",
		s.version,
		mcpserver.WithRecovery(),
		mcpserver.WithToolCapabilities(false),
	)
	s.registerTools(srv)
	return mcpserver.ServeStdio(srv)
}

func (s *Server) registerTools(srv *mcpserver.MCPServer) {
	srv.AddTool(
		mcp.NewTool("guard_input",
			mcp.WithDescription("Scan conversation messages for prompt injection before they reach the model"),
			mcp.WithString("messages",
				mcp.Description(`JSON array of {"role","content"} messages`),
				mcp.Required(),
			),
			mcp.WithString("strategy",
				mcp.Description("Scan strategy"),
				mcp.Enum("last-user", "all-user", "full-history"),
				mcp.DefaultString("last-user"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleGuardInput,
	)

	srv.AddTool(
		mcp.NewTool("guard_chain_step",
			mcp.WithDescription("Evaluate one agent-loop step against step, risk, and privilege-decay budgets"),
			mcp.WithString("output",
				mcp.Description("The model output produced at this step"),
				mcp.Required(),
			),
			mcp.WithNumber("step",
				mcp.Description("1-based step number; 0 advances the session counter"),
			),
			mcp.WithString("tools",
				mcp.Description("JSON array of tool names available before decay"),
			),
		),
		s.handleGuardChainStep,
	)

	srv.AddTool(
		mcp.NewTool("judge_output",
			mcp.WithDescription("Run the LLM-judge over a user request / model output pair"),
			mcp.WithString("user_request", mcp.Required()),
			mcp.WithString("model_output", mcp.Required()),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleJudgeOutput,
	)

	srv.AddTool(
		mcp.NewTool("scan_media",
			mcp.WithDescription("Extract text from media content and scan it"),
			mcp.WithString("content",
				mcp.Description("Base64-encoded media bytes"),
				mcp.Required(),
			),
			mcp.WithString("media_type",
				mcp.Enum("image", "audio", "video", "pdf", "document"),
				mcp.Required(),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleScanMedia,
	)

	srv.AddTool(
		mcp.NewTool("audit_trail",
			mcp.WithDescription("Return the session's recent audit entries"),
			mcp.WithNumber("limit",
				mcp.Description("Maximum entries to return, newest last"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleAuditTrail,
	)

	srv.AddTool(
		mcp.NewTool("list_patterns",
			mcp.WithDescription("List the built-in detection patterns with severities and compliance mappings"),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleListPatterns,
	)
}

func (s *Server) handleGuardInput(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("messages")
	if err != nil {
		return mcp.NewToolResultError("missing required argument: messages"), nil
	}

	var messages []facade.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("messages is not a valid JSON array: %v", err)), nil
	}

	strategy := facade.ScanStrategy(request.GetString("strategy", string(facade.ScanLastUser)))
	res, err := s.guard.GuardInput(ctx, messages, strategy)
	if err != nil {
		return guardErrorResult(err), nil
	}
	return jsonResult(map[string]any{
		"safe":          res.Safe,
		"scan_results":  res.ScanResults,
		"removed_index": res.RemovedIndex,
		"retried":       res.Retried,
		"trajectory":    res.Trajectory,
	})
}

// guardErrorResult renders a guard block as a structured tool result
// rather than a protocol error, so agent hosts can branch on it.
func guardErrorResult(err error) *mcp.CallToolResult {
	var blocked *facade.InputBlockedError
	if errors.As(err, &blocked) {
		data, _ := json.Marshal(map[string]any{
			"safe":        false,
			"blocked":     true,
			"scan_result": blocked.ScanResult,
		})
		return mcp.NewToolResultText(string(data))
	}
	var quarantined *facade.SessionQuarantinedError
	if errors.As(err, &quarantined) {
		return mcp.NewToolResultError(quarantined.Error())
	}
	var terminated *facade.SessionTerminatedError
	if errors.As(err, &terminated) {
		return mcp.NewToolResultError(terminated.Error())
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) handleGuardChainStep(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	output, err := request.RequireString("output")
	if err != nil {
		return mcp.NewToolResultError("missing required argument: output"), nil
	}

	var tools []string
	if raw := request.GetString("tools", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &tools); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("tools is not a valid JSON array: %v", err)), nil
		}
	}

	step := 0
	if v, ok := request.GetArguments()["step"].(float64); ok && v > 0 {
		step = int(v)
	}

	res := s.guard.GuardChainStep(output, facade.ChainStepOptions{
		Step:         step,
		InitialTools: tools,
	})
	return jsonResult(map[string]any{
		"safe":             res.Safe,
		"reason":           res.Reason,
		"cumulative_risk":  res.CumulativeRisk,
		"available_tools":  res.AvailableTools,
		"budget_exhausted": res.BudgetExhausted,
	})
}

func (s *Server) handleJudgeOutput(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userRequest, err := request.RequireString("user_request")
	if err != nil {
		return mcp.NewToolResultError("missing required argument: user_request"), nil
	}
	modelOutput, err := request.RequireString("model_output")
	if err != nil {
		return mcp.NewToolResultError("missing required argument: model_output"), nil
	}

	v, err := s.guard.JudgeOutput(ctx, userRequest, modelOutput, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(v)
}

func (s *Server) handleScanMedia(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	encoded, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError("missing required argument: content"), nil
	}
	mediaType, err := request.RequireString("media_type")
	if err != nil {
		return mcp.NewToolResultError("missing required argument: media_type"), nil
	}

	content, err := decodeBase64(encoded)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("content is not valid base64: %v", err)), nil
	}

	res, err := s.guard.ScanMedia(ctx, content, multimodal.MediaType(mediaType))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"safe":        res.Safe,
		"media_type":  res.MediaType,
		"file_size":   res.FileSize,
		"text":        res.Extracted.Text,
		"confidence":  res.Extracted.Confidence,
		"scan_result": res.ScanResult,
	})
}

func (s *Server) handleAuditTrail(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries := s.guard.AuditTrail()
	if l, ok := request.GetArguments()["limit"].(float64); ok && int(l) > 0 && int(l) < len(entries) {
		entries = entries[len(entries)-int(l):]
	}
	return jsonResult(entries)
}

func (s *Server) handleListPatterns(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(catalog.Sorted())
}

func decodeBase64(s string) ([]byte, error) {
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("serializing result: %v", err)), nil
	}
	return mcp.NewToolResultText(truncate(string(data))), nil
}

func truncate(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes] + "\n... (truncated)"
}
