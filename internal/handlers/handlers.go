// Package handlers implements the handler set (spec §4.7): one Handler
// function per MCP method, built against the ToolProvider/ResourceProvider/
// PromptProvider/CompletionProvider/SamplingBridge/RootsBridge seams in
// internal/mcp.deps.go. Grounded on the teacher's handleInitialize/
// handleResourcesList/handleResourcesRead/handleToolsList/handleToolsCall
// methods in cmd/dev-console/handler.go, generalized from the teacher's
// fixed dev-console catalog to provider interfaces injected by the
// composition root, and restructured to return (any, error) instead of a
// pre-built JSONRPCResponse so the dispatcher owns response framing and
// error-code mapping uniformly.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brennhill/gasoline-mcp-core/internal/cache"
	"github.com/brennhill/gasoline-mcp-core/internal/connection"
	"github.com/brennhill/gasoline-mcp-core/internal/dispatch"
	"github.com/brennhill/gasoline-mcp-core/internal/logging"
	"github.com/brennhill/gasoline-mcp-core/internal/mcp"
	"github.com/brennhill/gasoline-mcp-core/internal/notify"
	"github.com/brennhill/gasoline-mcp-core/internal/subscribe"
	"github.com/brennhill/gasoline-mcp-core/internal/version"
)

// ServerInfo identifies this server in the initialize result.
type ServerInfo struct {
	Name            string
	Version         string
	SupportedVersions []string // newest first
	Instructions    string
}

// Set wires every handler method against its provider. Register attaches
// them all to a dispatch.Dispatcher.
type Set struct {
	info ServerInfo

	tools       mcp.ToolProvider
	resources   mcp.ResourceProvider
	prompts     mcp.PromptProvider
	completions mcp.CompletionProvider
	sampling    mcp.SamplingBridge
	roots       mcp.RootsBridge

	subscriptions *subscribe.Manager
	emitterFor    func(conn *connection.Connection) *notify.Emitter
	resourceCache *cache.Cache
	log           logging.Logger
	levelGate     *mcp.LevelGate
}

// Deps bundles every collaborator the handler set needs. Provider fields may
// be nil when the corresponding capability is unsupported: the list methods
// then return an empty list, completion/complete returns no values,
// tools/call, resources/read and prompts/get return their NotFound domain
// error, roots/list returns RootsUnsupported, and resources/subscribe
// returns InvalidState.
type Deps struct {
	Info          ServerInfo
	Tools         mcp.ToolProvider
	Resources     mcp.ResourceProvider
	Prompts       mcp.PromptProvider
	Completions   mcp.CompletionProvider
	Sampling      mcp.SamplingBridge
	Roots         mcp.RootsBridge
	Subscriptions *subscribe.Manager
	EmitterFor    func(conn *connection.Connection) *notify.Emitter
	ResourceCache *cache.Cache
	Log           logging.Logger
	LevelGate     *mcp.LevelGate
}

// New returns a handler Set built from deps.
func New(deps Deps) *Set {
	log := deps.Log
	if log == nil {
		log = logging.Default()
	}
	levelGate := deps.LevelGate
	if levelGate == nil {
		levelGate = mcp.NewLevelGate(mcp.LogInfo)
	}
	return &Set{
		info:          deps.Info,
		tools:         deps.Tools,
		resources:     deps.Resources,
		prompts:       deps.Prompts,
		completions:   deps.Completions,
		sampling:      deps.Sampling,
		roots:         deps.Roots,
		subscriptions: deps.Subscriptions,
		emitterFor:    deps.EmitterFor,
		resourceCache: deps.ResourceCache,
		log:           log,
		levelGate:     levelGate,
	}
}

// RegisterAll binds every handler method onto d.
func (s *Set) RegisterAll(d *dispatch.Dispatcher) {
	d.Register("initialize", s.handleInitialize)
	d.Register("initialized", s.handleInitialized)
	d.Register("ping", s.handlePing)
	d.Register("tools/list", s.handleToolsList)
	d.Register("tools/call", s.handleToolsCall)
	d.Register("resources/list", s.handleResourcesList)
	d.Register("resources/read", s.handleResourcesRead)
	d.Register("resources/subscribe", s.handleResourcesSubscribe)
	d.Register("resources/unsubscribe", s.handleResourcesUnsubscribe)
	d.Register("resources/templates/list", s.handleResourceTemplatesList)
	d.Register("prompts/list", s.handlePromptsList)
	d.Register("prompts/get", s.handlePromptsGet)
	d.Register("completion/complete", s.handleCompletionComplete)
	d.Register("logging/setLevel", s.handleLoggingSetLevel)
	d.Register("roots/list", s.handleRootsList)
}

type initializeParams struct {
	ProtocolVersion string              `json:"protocolVersion"`
	Capabilities    mcp.MCPCapabilities `json:"capabilities"`
	ClientInfo      mcp.MCPServerInfo   `json:"clientInfo"`
}

func (s *Set) handleInitialize(ctx context.Context, conn *connection.Connection, req mcp.JSONRPCRequest) (any, error) {
	var params initializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, &mcp.ProtocolError{Code: mcp.CodeInvalidParams, Message: "invalid initialize params: " + err.Error()}
	}

	negotiated, err := version.Negotiate(s.info.SupportedVersions, params.ProtocolVersion)
	if err != nil {
		return nil, mcp.NewDomainError(mcp.KindUnsupportedVersion, err.Error())
	}

	if err := conn.MarkReady(negotiated, params.Capabilities); err != nil {
		return nil, mcp.NewDomainError(mcp.KindInvalidState, err.Error())
	}

	return mcp.MCPInitializeResult{
		ProtocolVersion: negotiated,
		ServerInfo:      mcp.MCPServerInfo{Name: s.info.Name, Version: s.info.Version},
		Capabilities:    s.serverCapabilities(),
		Instructions:    s.info.Instructions,
	}, nil
}

func (s *Set) serverCapabilities() mcp.MCPCapabilities {
	caps := mcp.MCPCapabilities{}
	if s.tools != nil {
		caps.Tools = &mcp.MCPToolsCapability{}
	}
	if s.resources != nil {
		caps.Resources = &mcp.MCPResourcesCapability{Subscribe: s.subscriptions != nil}
	}
	if s.prompts != nil {
		caps.Prompts = &mcp.MCPPromptsCapability{}
	}
	caps.Logging = &mcp.MCPLoggingCapability{}
	return caps
}

func (s *Set) handleInitialized(ctx context.Context, conn *connection.Connection, req mcp.JSONRPCRequest) (any, error) {
	return nil, nil
}

type pingResult struct {
	Timestamp any `json:"timestamp,omitempty"`
}

func (s *Set) handlePing(ctx context.Context, conn *connection.Connection, req mcp.JSONRPCRequest) (any, error) {
	var p struct {
		Timestamp any `json:"timestamp"`
	}
	if len(req.Params) > 0 {
		_ = json.Unmarshal(req.Params, &p)
	}
	return pingResult{Timestamp: p.Timestamp}, nil
}

func (s *Set) handleToolsList(ctx context.Context, conn *connection.Connection, req mcp.JSONRPCRequest) (any, error) {
	if s.tools == nil {
		return mcp.MCPToolsListResult{Tools: []mcp.MCPTool{}}, nil
	}
	tools, err := s.tools.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	return mcp.MCPToolsListResult{Tools: tools}, nil
}

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Set) handleToolsCall(ctx context.Context, conn *connection.Connection, req mcp.JSONRPCRequest) (any, error) {
	var p toolsCallParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return nil, &mcp.ProtocolError{Code: mcp.CodeInvalidParams, Message: "invalid tools/call params: " + err.Error()}
	}
	if s.tools == nil {
		return nil, mcp.NewToolNotFoundError(p.Name)
	}

	tool, found := s.lookupTool(ctx, p.Name)
	if !found {
		return nil, mcp.NewToolNotFoundError(p.Name)
	}
	warnings := mcp.ValidateParamsAgainstSchema(p.Arguments, tool.InputSchema)

	result, err := s.tools.CallTool(ctx, p.Name, p.Arguments)
	if err != nil {
		return nil, mcp.NewToolExecutionError(p.Name, err)
	}
	if len(warnings) > 0 {
		result.Content = append(result.Content, mcp.MCPContentBlock{
			Type: "text",
			Text: "_warnings: " + strings.Join(warnings, "; "),
		})
	}
	return result, nil
}

// lookupTool finds name in the provider's catalog, so tools/call can tell
// "no such tool" (ToolNotFound) apart from "tool exists but CallTool
// returned an error" (ToolExecutionError), and so an unknown argument can
// be validated against the matching InputSchema.
func (s *Set) lookupTool(ctx context.Context, name string) (mcp.MCPTool, bool) {
	tools, err := s.tools.ListTools(ctx)
	if err != nil {
		return mcp.MCPTool{}, false
	}
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return mcp.MCPTool{}, false
}

func (s *Set) handleResourcesList(ctx context.Context, conn *connection.Connection, req mcp.JSONRPCRequest) (any, error) {
	if s.resources == nil {
		return mcp.MCPResourcesListResult{Resources: []mcp.MCPResource{}}, nil
	}
	resources, err := s.resources.ListResources(ctx)
	if err != nil {
		return nil, err
	}
	return mcp.MCPResourcesListResult{Resources: resources}, nil
}

type resourcesReadParams struct {
	URI string `json:"uri"`
}

func (s *Set) handleResourcesRead(ctx context.Context, conn *connection.Connection, req mcp.JSONRPCRequest) (any, error) {
	var p resourcesReadParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return nil, &mcp.ProtocolError{Code: mcp.CodeInvalidParams, Message: "invalid resources/read params: " + err.Error()}
	}
	if s.resources == nil {
		return nil, mcp.NewDomainError(mcp.KindResourceNotFound, p.URI)
	}

	if s.resourceCache != nil {
		cached, err := s.resourceCache.GetOrCompute(ctx, cache.ResourceKey(p.URI), cache.Options{Priority: cache.Normal, Kind: cache.ExpiryAbsolute}, func(ctx context.Context) (any, error) {
			contents, err := s.resources.ReadResource(ctx, p.URI)
			if err != nil {
				return nil, err
			}
			return mcp.MCPResourcesReadResult{Contents: contents}, nil
		})
		if err != nil {
			return nil, mcp.NewDomainError(mcp.KindResourceNotFound, fmt.Sprintf("%s: %v", p.URI, err))
		}
		return cached, nil
	}

	contents, err := s.resources.ReadResource(ctx, p.URI)
	if err != nil {
		return nil, mcp.NewDomainError(mcp.KindResourceNotFound, fmt.Sprintf("%s: %v", p.URI, err))
	}
	return mcp.MCPResourcesReadResult{Contents: contents}, nil
}

func (s *Set) handleResourcesSubscribe(ctx context.Context, conn *connection.Connection, req mcp.JSONRPCRequest) (any, error) {
	var p resourcesReadParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return nil, &mcp.ProtocolError{Code: mcp.CodeInvalidParams, Message: "invalid resources/subscribe params: " + err.Error()}
	}
	if s.subscriptions == nil {
		return nil, mcp.NewDomainError(mcp.KindInvalidState, "resource subscriptions are not supported")
	}
	emitter := s.emitterFor(conn)
	s.subscriptions.Subscribe(p.URI, &subscribe.Observer{
		ConnID: conn.ID(),
		Deliver: func(uri string) error {
			return emitter.ResourceUpdated(uri)
		},
	})
	return struct{}{}, nil
}

func (s *Set) handleResourcesUnsubscribe(ctx context.Context, conn *connection.Connection, req mcp.JSONRPCRequest) (any, error) {
	var p resourcesReadParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return nil, &mcp.ProtocolError{Code: mcp.CodeInvalidParams, Message: "invalid resources/unsubscribe params: " + err.Error()}
	}
	if s.subscriptions != nil {
		s.subscriptions.Unsubscribe(p.URI, conn.ID())
	}
	return struct{}{}, nil
}

func (s *Set) handleResourceTemplatesList(ctx context.Context, conn *connection.Connection, req mcp.JSONRPCRequest) (any, error) {
	if s.resources == nil {
		return mcp.MCPResourceTemplatesListResult{ResourceTemplates: []mcp.MCPResourceTemplate{}}, nil
	}
	templates, err := s.resources.ListResourceTemplates(ctx)
	if err != nil {
		return nil, err
	}
	return mcp.MCPResourceTemplatesListResult{ResourceTemplates: templates}, nil
}

func (s *Set) handlePromptsList(ctx context.Context, conn *connection.Connection, req mcp.JSONRPCRequest) (any, error) {
	if s.prompts == nil {
		return mcp.MCPPromptsListResult{Prompts: []mcp.MCPPrompt{}}, nil
	}
	prompts, err := s.prompts.ListPrompts(ctx)
	if err != nil {
		return nil, err
	}
	return mcp.MCPPromptsListResult{Prompts: prompts}, nil
}

type promptsGetParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

func (s *Set) handlePromptsGet(ctx context.Context, conn *connection.Connection, req mcp.JSONRPCRequest) (any, error) {
	var p promptsGetParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return nil, &mcp.ProtocolError{Code: mcp.CodeInvalidParams, Message: "invalid prompts/get params: " + err.Error()}
	}
	if s.prompts == nil {
		return nil, mcp.NewDomainError(mcp.KindPromptNotFound, p.Name)
	}
	result, err := s.prompts.GetPrompt(ctx, p.Name, p.Arguments)
	if err != nil {
		return nil, mcp.NewDomainError(mcp.KindPromptNotFound, fmt.Sprintf("%s: %v", p.Name, err))
	}
	return result, nil
}

type completionRef struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type completionParams struct {
	Ref      completionRef `json:"ref"`
	Argument struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"argument"`
}

func (s *Set) handleCompletionComplete(ctx context.Context, conn *connection.Connection, req mcp.JSONRPCRequest) (any, error) {
	var p completionParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return nil, &mcp.ProtocolError{Code: mcp.CodeInvalidParams, Message: "invalid completion/complete params: " + err.Error()}
	}
	if s.completions == nil {
		return mcp.MCPCompletionResult{Completion: mcp.MCPCompletion{Values: []string{}}}, nil
	}
	completion, err := s.completions.Complete(ctx, p.Ref.Type, p.Ref.Name, p.Argument.Name, p.Argument.Value)
	if err != nil {
		return nil, err
	}
	return mcp.MCPCompletionResult{Completion: completion}, nil
}

type setLevelParams struct {
	Level mcp.LogLevel `json:"level"`
}

// handleLoggingSetLevel updates the process-wide minimum log severity (spec
// §4.7, §9): the level applies to every connection's notifications/message
// stream, not just this one, and an unrecognized level is a protocol error
// rather than a silently-accepted no-op.
func (s *Set) handleLoggingSetLevel(ctx context.Context, conn *connection.Connection, req mcp.JSONRPCRequest) (any, error) {
	var p setLevelParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return nil, &mcp.ProtocolError{Code: mcp.CodeInvalidParams, Message: "invalid logging/setLevel params: " + err.Error()}
	}
	if !mcp.ValidLogLevel(p.Level) {
		return nil, &mcp.ProtocolError{Code: mcp.CodeInvalidParams, Message: "invalid logging/setLevel level: " + string(p.Level)}
	}
	s.levelGate.Set(p.Level)
	return struct{}{}, nil
}

func (s *Set) handleRootsList(ctx context.Context, conn *connection.Connection, req mcp.JSONRPCRequest) (any, error) {
	if s.roots == nil {
		return nil, mcp.NewDomainError(mcp.KindRootsUnsupported, "client did not advertise roots support")
	}
	roots, err := s.roots.ListRoots(ctx)
	if err != nil {
		return nil, err
	}
	return mcp.MCPRootsListResult{Roots: roots}, nil
}
