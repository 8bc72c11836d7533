// Package server exposes a running engine to diagnostics clients: frame
// statistics and engine events are streamed over a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/zengine/internal/config"
	"github.com/zeusync/zengine/internal/core/events/bus"
	"github.com/zeusync/zengine/internal/core/observability/log"
	"github.com/zeusync/zengine/internal/core/profiler"
)

// Message kinds sent to clients.
const (
	KindHello = "hello"
	KindStats = "stats"
	KindEvent = "event"
)

// Message is the JSON envelope written to every client.
type Message struct {
	Kind  string             `json:"kind"`
	Stats *profiler.Snapshot `json:"stats,omitempty"`
	Event *EventMessage      `json:"event,omitempty"`
}

type EventMessage struct {
	Type   string    `json:"type"`
	Source string    `json:"source"`
	Time   time.Time `json:"time"`
	Data   string    `json:"data,omitempty"`
}

// Health is the body of /healthz.
type Health struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
	Frame   uint64 `json:"frame"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Inspector serves /ws and /healthz, and the QUIC feed when configured.
type Inspector struct {
	cfg    config.InspectorConfig
	auth   TokenAuth
	hub    *hub
	logger log.Log

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	feed     *quicFeed
	last     *profiler.Snapshot

	running atomic.Bool
	closed  atomic.Bool
}

type Option func(*Inspector)

func WithLogger(l log.Log) Option {
	return func(i *Inspector) { i.logger = l }
}

func New(cfg config.InspectorConfig, options ...Option) *Inspector {
	i := &Inspector{
		cfg:    cfg,
		auth:   NewTokenAuth(cfg.Token),
		logger: log.Provide(),
	}
	for _, opt := range options {
		opt(i)
	}
	i.logger = i.logger.With(log.String("component", "inspector"))
	i.hub = newHub(i.logger)
	return i
}

// Handler returns the inspector routes.
func (i *Inspector) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", i.handleWebSocket)
	mux.HandleFunc("/healthz", i.handleHealth)
	return mux
}

// Start listens on the configured addresses and serves in the background.
func (i *Inspector) Start(_ context.Context) error {
	if i.closed.Load() {
		return ErrServerClosed
	}
	if !i.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}

	ln, err := net.Listen("tcp", i.cfg.Addr)
	if err != nil {
		i.running.Store(false)
		return fmt.Errorf("inspector listen %s: %w", i.cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           i.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var feed *quicFeed
	if i.cfg.QUICAddr != "" {
		tlsConf, err := loadTLS(i.cfg.CertFile, i.cfg.KeyFile)
		if err == nil {
			feed, err = listenQUIC(i.cfg.QUICAddr, tlsConf, i.auth, i.hello, i.logger)
		}
		if err != nil {
			_ = ln.Close()
			i.running.Store(false)
			return err
		}
		i.logger.Info("inspector quic feed listening", log.String("addr", feed.addr()))
	}

	i.mu.Lock()
	i.server = srv
	i.listener = ln
	i.feed = feed
	i.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			i.logger.Error("inspector stopped", log.Error(err))
		}
	}()
	i.logger.Info("inspector listening", log.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (i *Inspector) Addr() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.listener == nil {
		return ""
	}
	return i.listener.Addr().String()
}

// QUICAddr returns the bound QUIC address, or "" when the feed is off.
func (i *Inspector) QUICAddr() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.feed == nil {
		return ""
	}
	return i.feed.addr()
}

// Stop disconnects every client and shuts both listeners down.
func (i *Inspector) Stop(ctx context.Context) error {
	if !i.running.CompareAndSwap(true, false) {
		return ErrServerNotRunning
	}
	i.closed.Store(true)
	i.hub.closeAll()

	i.mu.Lock()
	srv, feed := i.server, i.feed
	i.mu.Unlock()
	if feed != nil {
		if err := feed.close(); err != nil {
			i.logger.Debug("inspector quic close", log.Error(err))
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("inspector shutdown: %w", err)
	}
	i.logger.Info("inspector stopped")
	return nil
}

// Clients returns the number of connected clients on both transports.
func (i *Inspector) Clients() int {
	n := i.hub.len()
	if feed := i.currentFeed(); feed != nil {
		n += feed.len()
	}
	return n
}

func (i *Inspector) currentFeed() *quicFeed {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.feed
}

// PublishStats broadcasts a profiler snapshot. It is safe to use as a
// profiler.OnReport callback.
func (i *Inspector) PublishStats(s profiler.Snapshot) {
	i.mu.Lock()
	i.last = &s
	i.mu.Unlock()
	i.send(Message{Kind: KindStats, Stats: &s})
}

// PublishEvent forwards an engine event. It satisfies bus.Handler.
func (i *Inspector) PublishEvent(e bus.Event) error {
	msg := &EventMessage{Type: e.Type, Source: e.Source, Time: e.Time}
	if e.Data != nil {
		msg.Data = fmt.Sprint(e.Data)
	}
	i.send(Message{Kind: KindEvent, Event: msg})
	return nil
}

func (i *Inspector) send(m Message) {
	payload, err := json.Marshal(m)
	if err != nil {
		i.logger.Warn("encode inspector message", log.Error(err))
		return
	}
	i.hub.broadcast(payload)
	if feed := i.currentFeed(); feed != nil {
		feed.broadcast(payload)
	}
}

func (i *Inspector) hello() []byte {
	payload, _ := json.Marshal(Message{Kind: KindHello, Stats: i.lastStats()})
	return payload
}

func (i *Inspector) lastStats() *profiler.Snapshot {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.last
}

func (i *Inspector) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := i.auth.Authorize(r); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		i.logger.Debug("websocket upgrade failed", log.Error(err))
		return
	}

	c := i.hub.add(conn, i.hello())

	i.logger.Debug("inspector client connected", log.String("remote", conn.RemoteAddr().String()))
	go i.hub.writePump(c)
	i.hub.readPump(c)
}

func (i *Inspector) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := Health{Status: "ok", Clients: i.Clients()}
	if s := i.lastStats(); s != nil {
		h.Frame = s.Frame
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h)
}
