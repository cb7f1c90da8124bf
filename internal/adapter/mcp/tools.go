package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/MedScribe/internal/domain/fragment"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.processFragmentTool(),
		s.getResponseTool(),
		s.listAgentsTool(),
	)
}

func (s *Server) processFragmentTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("process_fragment",
		mcplib.WithDescription("Run one transcript fragment through entity extraction, intent classification and the specialized agents, returning the aggregated response"),
		mcplib.WithString("text",
			mcplib.Required(),
			mcplib.Description("Transcribed speech of the fragment"),
		),
		mcplib.WithString("speaker",
			mcplib.Description("Speaker label, e.g. medico or paciente"),
		),
		mcplib.WithString("subject_id",
			mcplib.Description("Patient or encounter the fragment belongs to"),
		),
		mcplib.WithString("timestamp",
			mcplib.Description("RFC 3339 time the fragment was spoken (default: now)"),
		),
		mcplib.WithNumber("confidence",
			mcplib.Description("Transcription confidence in [0,1] (default: 1)"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleProcessFragment,
	}
}

func (s *Server) getResponseTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_response",
		mcplib.WithDescription("Get a stored fragment response by ID"),
		mcplib.WithString("response_id",
			mcplib.Required(),
			mcplib.Description("The response ID to look up"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetResponse,
	}
}

func (s *Server) listAgentsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_agents",
		mcplib.WithDescription("List the specialized agents and their trigger rules in declaration order"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListAgents,
	}
}

func (s *Server) handleProcessFragment(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Fragments == nil {
		return mcplib.NewToolResultError("fragment processor not configured"), nil
	}
	text := req.GetString("text", "")
	if strings.TrimSpace(text) == "" {
		return mcplib.NewToolResultError("text is required"), nil
	}
	frag := fragment.Fragment{
		Text:       text,
		Speaker:    req.GetString("speaker", ""),
		SubjectID:  req.GetString("subject_id", ""),
		Confidence: req.GetFloat("confidence", 1),
		Timestamp:  time.Now().UTC(),
	}
	if ts := req.GetString("timestamp", ""); ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return mcplib.NewToolResultError("timestamp must be RFC 3339"), nil
		}
		frag.Timestamp = t
	}

	resp, err := s.deps.Fragments.Submit(ctx, frag)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to process fragment", err), nil
	}
	return marshalResult(resp, "response")
}

func (s *Server) handleGetResponse(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Fragments == nil {
		return mcplib.NewToolResultError("fragment processor not configured"), nil
	}
	id := req.GetString("response_id", "")
	if id == "" {
		return mcplib.NewToolResultError("response_id is required"), nil
	}
	resp, err := s.deps.Fragments.GetResponse(ctx, id)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get response %s", id), err,
		), nil
	}
	return marshalResult(resp, "response")
}

func (s *Server) handleListAgents(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Agents == nil {
		return mcplib.NewToolResultError("agent lister not configured"), nil
	}
	return marshalResult(s.deps.Agents.Agents(), "agents")
}

func marshalResult(v any, what string) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal "+what, err), nil
	}
	return toolResultJSON(string(data)), nil
}

// toolResultJSON wraps a JSON document as a text tool result.
func toolResultJSON(data string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(data)
}
