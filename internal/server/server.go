// Package server is the composition root (spec §1, §5): it wires the
// message registry, version negotiator, cancellation registry, dispatcher,
// handler set, subscription manager, response cache, sampling bridge,
// notification emitter, and connection manager together into one running
// server, and drives the per-connection read loop. Grounded on the
// teacher's NewMCPHandler/runMCPMode wiring in cmd/dev-console/main.go and
// cmd/dev-console/server.go: one handler built once at startup, one
// blocking read loop per connection, with util.SafeGo protecting
// background goroutines from taking the whole process down.
package server

import (
	"context"
	"errors"
	"io"

	"github.com/brennhill/gasoline-mcp-core/internal/cache"
	"github.com/brennhill/gasoline-mcp-core/internal/cancel"
	"github.com/brennhill/gasoline-mcp-core/internal/config"
	"github.com/brennhill/gasoline-mcp-core/internal/connection"
	"github.com/brennhill/gasoline-mcp-core/internal/connmgr"
	"github.com/brennhill/gasoline-mcp-core/internal/dispatch"
	"github.com/brennhill/gasoline-mcp-core/internal/handlers"
	"github.com/brennhill/gasoline-mcp-core/internal/logging"
	"github.com/brennhill/gasoline-mcp-core/internal/mcp"
	"github.com/brennhill/gasoline-mcp-core/internal/notify"
	"github.com/brennhill/gasoline-mcp-core/internal/registry"
	"github.com/brennhill/gasoline-mcp-core/internal/sampling"
	"github.com/brennhill/gasoline-mcp-core/internal/subscribe"
	"github.com/brennhill/gasoline-mcp-core/internal/util"
)

// Providers bundles the out-of-scope collaborators (spec §1's "Out of
// scope") a host process supplies: tool catalog, resource store, prompt
// templates, completion source, and a roots bridge. Any field may be nil.
type Providers struct {
	Tools       mcp.ToolProvider
	Resources   mcp.ResourceProvider
	Prompts     mcp.PromptProvider
	Completions mcp.CompletionProvider
	Roots       mcp.RootsBridge
}

// Server is one running MCP core: shared state (registry, cache,
// subscriptions, connection manager) plus the per-connection wiring needed
// to dispatch frames as they arrive.
type Server struct {
	cfg config.Config
	log logging.Logger

	info ServerInfo

	registry  *registry.Registry
	cancels   *cancel.Registry
	subs      *subscribe.Manager
	cacheImpl *cache.Cache
	conns     *connmgr.Manager
	levelGate *mcp.LevelGate

	providers Providers
}

// ServerInfo identifies this server in the initialize handshake.
type ServerInfo = handlers.ServerInfo

// New builds a Server from cfg, ready to Serve connections. info should
// name this server and its supported protocol versions.
func New(cfg config.Config, info ServerInfo, providers Providers, log logging.Logger) *Server {
	if log == nil {
		log = logging.Default()
	}
	reg := registry.Default()
	cancels := cancel.New()
	cacheImpl := cache.New(cfg.CacheSizeLimit, cfg.CompactionMargin, cfg.CacheDefaultExpiration)
	subs := subscribe.New(cacheImpl)

	s := &Server{
		cfg:       cfg,
		log:       log,
		info:      info,
		registry:  reg,
		cancels:   cancels,
		subs:      subs,
		cacheImpl: cacheImpl,
		levelGate: mcp.NewLevelGate(mcp.LogInfo),
		providers: providers,
	}
	s.conns = connmgr.New(cfg.MaxConnections, cancels, subs, log, connmgr.Hooks{
		OnClosed: s.onConnectionClosed,
	})
	return s
}

func (s *Server) onConnectionClosed(conn *connection.Connection, reason string) {
	s.log.Info("connection closed", "connID", conn.ID(), "reason", reason)
}

// perConnection bundles the dispatcher, handler set, and notification
// emitter scoped to one connection; a fresh one is built per Accept.
type perConnection struct {
	dispatcher *dispatch.Dispatcher
	emitter    *notify.Emitter
	bridge     *sampling.Bridge
}

func (s *Server) newPerConnection(conn *connection.Connection) *perConnection {
	emitter := notify.New(conn.Transport(), func(err error) {
		s.log.Warn("connection write failed, marking closing", "connID", conn.ID(), "err", err)
		_ = conn.MarkClosing()
	})
	emitter.SetLevelGate(s.levelGate)

	bridge := sampling.New(emitter, clientAdvertisesSampling(conn))

	d := dispatch.New(s.registry, s.cancels, s.log, bridge)
	hset := handlers.New(handlers.Deps{
		Info:          s.info,
		Tools:         s.providers.Tools,
		Resources:     s.providers.Resources,
		Prompts:       s.providers.Prompts,
		Completions:   s.providers.Completions,
		Sampling:      bridge,
		Roots:         s.providers.Roots,
		Subscriptions: s.subs,
		EmitterFor:    func(*connection.Connection) *notify.Emitter { return emitter },
		ResourceCache: s.cacheImpl,
		Log:           s.log,
		LevelGate:     s.levelGate,
	})
	hset.RegisterAll(d)

	return &perConnection{dispatcher: d, emitter: emitter, bridge: bridge}
}

// clientAdvertisesSampling is always false before initialize completes; the
// handler set re-derives this at handshake time via conn.ClientCapabilities
// once MarkReady has run, so the bridge built here is a placeholder until
// then. A production composition root would lazily rebuild the bridge after
// initialize; kept simple here since sampling calls only occur post-Ready.
func clientAdvertisesSampling(conn *connection.Connection) bool {
	return conn.ClientCapabilities().Sampling != nil
}

// Accept registers transport as a new connection and returns a read-loop
// handle. The caller (cmd/mcpserver) runs Serve in its own goroutine.
func (s *Server) Accept(transport connection.Transport) (*connection.Connection, error) {
	return s.conns.Accept(transport)
}

// transportReceiver is the narrow Receive capability Serve needs; satisfied
// by transport.Transport.
type transportReceiver interface {
	Receive(ctx context.Context) ([]byte, error)
}

// Serve runs the blocking read loop for one connection: decode a frame,
// dispatch it, write the response (if any), repeat until the transport
// closes or ctx is cancelled. Call once per Accept'd connection, typically
// via util.SafeGo so one connection's panic cannot take the process down.
func (s *Server) Serve(ctx context.Context, conn *connection.Connection, receiver transportReceiver) {
	pc := s.newPerConnection(conn)
	defer s.conns.Close(conn.ID(), "transport closed")

	for {
		raw, err := receiver.Receive(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return
			}
			s.log.Warn("connection read failed", "connID", conn.ID(), "err", err)
			return
		}

		frame, err := mcp.DecodeFrame(raw)
		if err != nil {
			s.writeDecodeError(pc, err)
			continue
		}

		resp, err := pc.dispatcher.DispatchFrame(ctx, conn, frame)
		if err != nil {
			s.log.Warn("dispatch failed", "connID", conn.ID(), "err", err)
			continue
		}
		if resp == nil {
			continue
		}
		if werr := pc.emitter.SendResponse(*resp); werr != nil {
			s.log.Warn("failed to write response", "connID", conn.ID(), "err", werr)
			return
		}
	}
}

func (s *Server) writeDecodeError(pc *perConnection, err error) {
	var pe *mcp.ProtocolError
	if !errors.As(err, &pe) {
		pe = &mcp.ProtocolError{Code: mcp.CodeParseError, Message: err.Error()}
	}
	_ = pc.emitter.SendResponse(mcp.JSONRPCResponse{JSONRPC: "2.0", ID: nil, Error: pe.ToJSONRPCError()})
}

// Broadcast delivers a server-initiated notification to every Ready
// connection except excludeID, via each connection's own emitter. Used by a
// host process to fan out e.g. a tool-list-changed notification.
func (s *Server) Broadcast(excludeID string, notifyFn func(conn *connection.Connection)) {
	s.conns.Broadcast(excludeID, notifyFn)
}

// CloseAll shuts down every tracked connection, e.g. on process shutdown.
func (s *Server) CloseAll(reason string) {
	s.conns.CloseAll(reason)
}

// RunIdleSweeper starts the idle-connection sweep goroutine; safego-wrapped
// so a sweep panic never brings the process down.
func (s *Server) RunIdleSweeper(stop <-chan struct{}) {
	util.SafeGo(func() {
		s.conns.RunIdleSweeper(s.cfg.IdleTimeout/2, s.cfg.IdleTimeout, stop)
	})
}

// Cache exposes the response cache for diagnostics/metrics callers.
func (s *Server) Cache() *cache.Cache { return s.cacheImpl }
