// Package registry is the message registry (spec §4.2): for each JSON-RPC
// method name it records whether the message is a notification, whether it
// requires the connection to be Ready, and which param keys are required.
// Built once at server construction; additions after startup are rejected.
package registry

import (
	"fmt"
	"time"
)

// Default per-method timeouts, generalized from the teacher's
// tool-name-keyed ToolCallTimeout table: most requests get a fast budget,
// a handful of methods that may fan out to a host-supplied provider get
// more room. A host process's ToolProvider/ResourceProvider implementation
// can still run long; this is a dispatcher-enforced backstop, not a
// substitute for the provider doing its own pacing.
const (
	FastTimeout = 10 * time.Second
	SlowTimeout = 35 * time.Second
)

// MethodSpec describes one recognized JSON-RPC method.
type MethodSpec struct {
	Method         string
	Notification   bool
	RequiresReady  bool
	RequiredParams []string
	OptionalParams []string
	// Timeout bounds how long the dispatcher lets a handler run before its
	// context is cancelled. Zero means no dispatcher-enforced deadline.
	Timeout time.Duration
}

// Registry is a read-mostly table of MethodSpec keyed by method name. Safe
// for concurrent reads once Freeze has been called; the teacher's and the
// spec's registries are constructed once at startup and never mutated after.
type Registry struct {
	specs  map[string]MethodSpec
	frozen bool
}

// New returns an empty, unfrozen registry.
func New() *Registry {
	return &Registry{specs: make(map[string]MethodSpec)}
}

// Register adds a method spec. It panics if called after Freeze, matching
// the spec's "additions during a connection are forbidden" rule — a startup
// wiring bug should fail loudly, not silently no-op.
func (r *Registry) Register(spec MethodSpec) {
	if r.frozen {
		panic(fmt.Sprintf("registry: cannot register %q after Freeze", spec.Method))
	}
	r.specs[spec.Method] = spec
}

// Freeze marks the registry read-only. Idempotent.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Lookup returns the spec for method, if recognized.
func (r *Registry) Lookup(method string) (MethodSpec, bool) {
	spec, ok := r.specs[method]
	return spec, ok
}

// Methods returns the set of all registered method names, for diagnostics.
func (r *Registry) Methods() []string {
	out := make([]string, 0, len(r.specs))
	for m := range r.specs {
		out = append(out, m)
	}
	return out
}

// Default returns the frozen registry for the method table in spec.md §4.2.
func Default() *Registry {
	r := New()
	r.Register(MethodSpec{Method: "initialize", RequiredParams: []string{"protocolVersion", "capabilities", "clientInfo"}, Timeout: FastTimeout})
	r.Register(MethodSpec{Method: "initialized", Notification: true})
	r.Register(MethodSpec{Method: "ping", OptionalParams: []string{"timestamp"}, Timeout: FastTimeout})
	r.Register(MethodSpec{Method: "cancel", Notification: true, RequiredParams: []string{"requestId"}, OptionalParams: []string{"reason"}})
	r.Register(MethodSpec{Method: "tools/list", RequiresReady: true, Timeout: FastTimeout})
	r.Register(MethodSpec{Method: "tools/call", RequiresReady: true, RequiredParams: []string{"name"}, OptionalParams: []string{"arguments"}, Timeout: SlowTimeout})
	r.Register(MethodSpec{Method: "resources/list", RequiresReady: true, Timeout: FastTimeout})
	r.Register(MethodSpec{Method: "resources/read", RequiresReady: true, RequiredParams: []string{"uri"}, Timeout: FastTimeout})
	r.Register(MethodSpec{Method: "resources/subscribe", RequiresReady: true, RequiredParams: []string{"uri"}, Timeout: FastTimeout})
	r.Register(MethodSpec{Method: "resources/unsubscribe", RequiresReady: true, RequiredParams: []string{"uri"}, Timeout: FastTimeout})
	r.Register(MethodSpec{Method: "resources/templates/list", RequiresReady: true, Timeout: FastTimeout})
	r.Register(MethodSpec{Method: "prompts/list", RequiresReady: true, Timeout: FastTimeout})
	r.Register(MethodSpec{Method: "prompts/get", RequiresReady: true, RequiredParams: []string{"name"}, OptionalParams: []string{"arguments"}, Timeout: SlowTimeout})
	r.Register(MethodSpec{Method: "completion/complete", RequiresReady: true, RequiredParams: []string{"ref", "argument"}, Timeout: FastTimeout})
	r.Register(MethodSpec{Method: "logging/setLevel", RequiresReady: true, RequiredParams: []string{"level"}, Timeout: FastTimeout})
	r.Register(MethodSpec{Method: "roots/list", RequiresReady: true, Timeout: SlowTimeout})
	r.Register(MethodSpec{Method: "sampling/createMessage", RequiresReady: true})
	r.Freeze()
	return r
}
