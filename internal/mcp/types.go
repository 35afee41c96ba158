// types.go — MCP typed response structs, capability declarations, and
// resource/prompt/sampling types.
package mcp

import "sync/atomic"

// MCPContentBlock represents a single content block in an MCP tool result,
// prompt message, or sampling message. Type discriminates the payload shape;
// only the fields matching Type are populated on the wire (others omitted).
type MCPContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`     // base64, present when Type == "image"
	MimeType string `json:"mimeType,omitempty"` // present when Type == "image"
}

// MCPToolResult represents the result of an MCP tool call.
type MCPToolResult struct {
	Content  []MCPContentBlock `json:"content"`
	IsError  bool              `json:"isError"`
	Metadata map[string]any    `json:"metadata,omitempty"`
}

// MCPInitializeResult represents the result of an MCP initialize request.
type MCPInitializeResult struct {
	ProtocolVersion string          `json:"protocolVersion"`
	ServerInfo      MCPServerInfo   `json:"serverInfo"`
	Capabilities    MCPCapabilities `json:"capabilities"`
	Instructions    string          `json:"instructions,omitempty"`
}

// MCPServerInfo identifies the MCP server.
type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPCapabilities declares MCP capabilities: the server advertises its own in
// the initialize result, and the client's declared set is stored on the
// connection at handshake. The dispatcher does not consult either set.
type MCPCapabilities struct {
	Tools     *MCPToolsCapability     `json:"tools,omitempty"`
	Resources *MCPResourcesCapability `json:"resources,omitempty"`
	Prompts   *MCPPromptsCapability   `json:"prompts,omitempty"`
	Logging   *MCPLoggingCapability   `json:"logging,omitempty"`
	Sampling  *MCPSamplingCapability  `json:"sampling,omitempty"`
	Roots     *MCPRootsCapability     `json:"roots,omitempty"`
}

// MCPToolsCapability declares tool support.
type MCPToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// MCPResourcesCapability declares resource support.
type MCPResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

// MCPPromptsCapability declares prompt support.
type MCPPromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// MCPLoggingCapability declares support for logging/setLevel and the
// notifications/message stream.
type MCPLoggingCapability struct{}

// MCPSamplingCapability is advertised by a CLIENT, not this server: it tells
// the server the client supports server-initiated sampling/createMessage
// calls (the sampling bridge). Kept here because initialize negotiation
// stores the peer's declared capabilities alongside our own.
type MCPSamplingCapability struct{}

// MCPRootsCapability is advertised by a client: it supports roots/list and
// roots/listChanged notifications.
type MCPRootsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// MCPResource describes an available resource.
type MCPResource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// MCPResourceTemplate describes a URI template a client can expand to form
// concrete resource URIs (resources/templates/list).
type MCPResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// MCPResourceContent represents the content of a resource.
type MCPResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

// MCPResourcesListResult represents the result of a resources/list request.
type MCPResourcesListResult struct {
	Resources []MCPResource `json:"resources"`
}

// MCPResourcesReadResult represents the result of a resources/read request.
type MCPResourcesReadResult struct {
	Contents []MCPResourceContent `json:"contents"`
}

// MCPToolsListResult represents the result of a tools/list request.
type MCPToolsListResult struct {
	Tools []MCPTool `json:"tools"`
}

// MCPResourceTemplatesListResult represents the result of a
// resources/templates/list request.
type MCPResourceTemplatesListResult struct {
	ResourceTemplates []MCPResourceTemplate `json:"resourceTemplates"`
}

// MCPRole distinguishes the speaker of a prompt or sampling message.
type MCPRole string

const (
	RoleUser      MCPRole = "user"
	RoleAssistant MCPRole = "assistant"
)

// MCPPromptMessage is one turn of a rendered prompt, returned from
// prompts/get.
type MCPPromptMessage struct {
	Role    MCPRole         `json:"role"`
	Content MCPContentBlock `json:"content"`
}

// MCPPromptArgument describes one named argument a prompt template accepts.
type MCPPromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// MCPPrompt describes a prompt template advertised by prompts/list.
type MCPPrompt struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Arguments   []MCPPromptArgument `json:"arguments,omitempty"`
}

// MCPPromptsListResult represents the result of a prompts/list request.
type MCPPromptsListResult struct {
	Prompts []MCPPrompt `json:"prompts"`
}

// MCPGetPromptResult represents the result of a prompts/get request.
type MCPGetPromptResult struct {
	Description string             `json:"description,omitempty"`
	Messages    []MCPPromptMessage `json:"messages"`
}

// MCPCompletionResult represents the result of a completion/complete request:
// candidate values for one argument of a prompt or resource template.
type MCPCompletionResult struct {
	Completion MCPCompletion `json:"completion"`
}

// MCPCompletion carries the candidate list plus pagination hints.
type MCPCompletion struct {
	Values  []string `json:"values"`
	Total   int      `json:"total,omitempty"`
	HasMore bool     `json:"hasMore,omitempty"`
}

// MCPRoot describes one filesystem or URI root the client exposes to tools.
type MCPRoot struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

// MCPRootsListResult represents a client's response to a server-issued
// roots/list request.
type MCPRootsListResult struct {
	Roots []MCPRoot `json:"roots"`
}

// LogLevel is the RFC-5424-derived severity scale used by logging/setLevel
// and notifications/message, ordered from least to most severe.
type LogLevel string

const (
	LogDebug     LogLevel = "debug"
	LogInfo      LogLevel = "info"
	LogNotice    LogLevel = "notice"
	LogWarning   LogLevel = "warning"
	LogError     LogLevel = "error"
	LogCritical  LogLevel = "critical"
	LogAlert     LogLevel = "alert"
	LogEmergency LogLevel = "emergency"
)

var logLevelRank = map[LogLevel]int{
	LogDebug: 0, LogInfo: 1, LogNotice: 2, LogWarning: 3,
	LogError: 4, LogCritical: 5, LogAlert: 6, LogEmergency: 7,
}

// AtLeast reports whether l is at least as severe as min. An unrecognized
// level ranks below every known level.
func (l LogLevel) AtLeast(min LogLevel) bool {
	lr, ok := logLevelRank[l]
	if !ok {
		return false
	}
	mr, ok := logLevelRank[min]
	if !ok {
		return true
	}
	return lr >= mr
}

// ValidLogLevel reports whether level is one of the eight RFC-5424
// severities logging/setLevel accepts. A request naming anything else must
// fail with a protocol error rather than silently taking effect.
func ValidLogLevel(level LogLevel) bool {
	_, ok := logLevelRank[level]
	return ok
}

// LevelGate is the process-wide minimum severity notifications/message is
// filtered against. It is shared by every connection (spec §9: "global
// mutable state ... process-wide log level ... guard with an atomic
// update"), so logging/setLevel on one connection affects log delivery on
// all of them, and concurrent Set/Allows calls from different connections
// never race.
type LevelGate struct {
	level atomic.Value
}

// NewLevelGate returns a gate initialized to initial.
func NewLevelGate(initial LogLevel) *LevelGate {
	g := &LevelGate{}
	g.level.Store(initial)
	return g
}

// Set updates the gate's minimum level.
func (g *LevelGate) Set(level LogLevel) {
	g.level.Store(level)
}

// Get returns the gate's current minimum level.
func (g *LevelGate) Get() LogLevel {
	return g.level.Load().(LogLevel)
}

// Allows reports whether a message at level should be emitted given the
// gate's current minimum.
func (g *LevelGate) Allows(level LogLevel) bool {
	return level.AtLeast(g.Get())
}

// MCPLogMessageParams is the payload of a notifications/message notification.
type MCPLogMessageParams struct {
	Level  LogLevel `json:"level"`
	Logger string   `json:"logger,omitempty"`
	Data   any      `json:"data"`
}

// MCPCreateMessageParams is the payload of a server-initiated
// sampling/createMessage request sent to the client (the sampling bridge).
type MCPCreateMessageParams struct {
	Messages         []MCPPromptMessage `json:"messages"`
	SystemPrompt     string             `json:"systemPrompt,omitempty"`
	MaxTokens        int                `json:"maxTokens"`
	Temperature      float64            `json:"temperature,omitempty"`
	StopSequences    []string           `json:"stopSequences,omitempty"`
	ModelPreferences map[string]any     `json:"modelPreferences,omitempty"`
}

// MCPCreateMessageResult is the client's reply to sampling/createMessage.
type MCPCreateMessageResult struct {
	Role       MCPRole         `json:"role"`
	Content    MCPContentBlock `json:"content"`
	Model      string          `json:"model,omitempty"`
	StopReason string          `json:"stopReason,omitempty"`
}

// MCPResourceUpdatedParams is the payload of a
// notifications/resources/updated notification sent to a subscribed client.
type MCPResourceUpdatedParams struct {
	URI string `json:"uri"`
}
