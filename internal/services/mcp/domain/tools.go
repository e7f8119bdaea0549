package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/musescore-mcp/internal/services/mcp/host"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HostClient is the channel to MuseScore used by tool handlers.
type HostClient interface {
	Connect(ctx context.Context) bool
	Send(ctx context.Context, env host.Envelope) (host.Reply, error)
}

// ConnectResult represents the MCP tool output for connecting to MuseScore.
type ConnectResult struct {
	Success bool `json:"success" jsonschema:"whether the MuseScore websocket is open"`
}

// ProcessSequenceInput represents the MCP tool input for processSequence.
type ProcessSequenceInput struct {
	Sequence Sequence `json:"sequence"`
}

type sequenceParams struct {
	Sequence Sequence `json:"sequence"`
}

// ConnectTool defines the MCP tool schema for connecting to MuseScore.
func ConnectTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "connect_to_musescore",
		Description: "Connect to the MuseScore plugin websocket. Other tools connect on demand, so this is only needed to check reachability up front.",
		Annotations: &mcp.ToolAnnotations{
			IdempotentHint: true,
			OpenWorldHint:  boolPtr(false),
		},
	}
}

// ConnectHandler opens the host channel if it is not already open.
func ConnectHandler(client HostClient) mcp.ToolHandlerFor[NoParams, ConnectResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ NoParams) (*mcp.CallToolResult, ConnectResult, error) {
		if client == nil {
			return nil, ConnectResult{}, errors.New("musescore client is not configured")
		}
		return nil, ConnectResult{Success: client.Connect(ctx)}, nil
	}
}

// Tool defines the MCP tool schema for the action.
func (d ActionDescriptor) Tool() *mcp.Tool {
	tool := &mcp.Tool{
		Name:        d.ToolName,
		Description: d.Description,
		Annotations: &mcp.ToolAnnotations{
			ReadOnlyHint:    d.ReadOnly,
			DestructiveHint: boolPtr(d.Destructive),
			IdempotentHint:  d.ReadOnly,
			OpenWorldHint:   boolPtr(false),
		},
	}
	if d.Name == ActionProcessSequence {
		tool.InputSchema = ProcessSequenceInputSchema()
	}
	return tool
}

// ActionHandler forwards a single action. Omitted params are defaulted and the
// result is validated before anything is sent.
func ActionHandler[P actionParams[P]](client HostClient, action ActionName) mcp.ToolHandlerFor[P, host.Reply] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input P) (*mcp.CallToolResult, host.Reply, error) {
		params := input.WithDefaults()
		if err := params.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", action, err)
		}
		return forward(ctx, client, host.Envelope{Action: string(action), Params: params})
	}
}

// ProcessSequenceHandler sends the whole batch as one processSequence command.
// Entries were validated while decoding the input.
func ProcessSequenceHandler(client HostClient) mcp.ToolHandlerFor[ProcessSequenceInput, host.Reply] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ProcessSequenceInput) (*mcp.CallToolResult, host.Reply, error) {
		return forward(ctx, client, host.Envelope{
			Action: string(ActionProcessSequence),
			Params: sequenceParams(input),
		})
	}
}

// forward performs the round trip. Host replies pass through untouched;
// transport failures become an error record flagged with IsError.
func forward(ctx context.Context, client HostClient, env host.Envelope) (*mcp.CallToolResult, host.Reply, error) {
	if client == nil {
		return nil, nil, errors.New("musescore client is not configured")
	}
	reply, err := client.Send(ctx, env)
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, host.ErrorReply(err), nil
	}
	if reply == nil {
		reply = host.Reply{}
	}
	return nil, reply, nil
}

func boolPtr(v bool) *bool {
	return &v
}
