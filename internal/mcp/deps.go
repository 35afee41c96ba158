// deps.go — Composable dependency interfaces for the handler set.
// Each handler group depends on the narrowest interface it needs; the
// server composition root supplies a single concrete implementation that
// satisfies all of them.
package mcp

import "context"

// ToolProvider supplies the tool catalog and executes tool calls. Tool
// implementations themselves are out of scope here; this interface is the
// seam a host process plugs concrete tools into.
type ToolProvider interface {
	ListTools(ctx context.Context) ([]MCPTool, error)
	CallTool(ctx context.Context, name string, args []byte) (MCPToolResult, error)
}

// ResourceProvider supplies resource listing, reading, and templates.
type ResourceProvider interface {
	ListResources(ctx context.Context) ([]MCPResource, error)
	ReadResource(ctx context.Context, uri string) ([]MCPResourceContent, error)
	ListResourceTemplates(ctx context.Context) ([]MCPResourceTemplate, error)
}

// PromptProvider supplies prompt templates and their rendered messages.
// Injected explicitly by the composition root rather than looked up lazily,
// so a connection's available prompts never depend on registration order.
type PromptProvider interface {
	ListPrompts(ctx context.Context) ([]MCPPrompt, error)
	GetPrompt(ctx context.Context, name string, args map[string]string) (MCPGetPromptResult, error)
}

// CompletionProvider supplies argument-completion candidates for a prompt or
// resource template reference. ref is the completion/complete request's
// ref{type,name} object (spec §4.2), e.g. type "ref/prompt" or
// "ref/resource" and name the prompt or resource template being completed.
type CompletionProvider interface {
	Complete(ctx context.Context, refType, refName, argName, partial string) (MCPCompletion, error)
}

// SamplingBridge issues a server-initiated sampling/createMessage request to
// the connected client and blocks for its reply.
type SamplingBridge interface {
	CreateMessage(ctx context.Context, params MCPCreateMessageParams) (MCPCreateMessageResult, error)
}

// RootsBridge issues a server-initiated roots/list request to the client.
type RootsBridge interface {
	ListRoots(ctx context.Context) ([]MCPRoot, error)
}
