// ABOUTME: Mock live endpoint for manual testing without an API key
// ABOUTME: Accepts live sessions over WebSocket and echoes speech back
package echo

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/harperreed/livewave-go/internal/discovery"
)

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	Path       string // WebSocket path (default: /live)
	APIKey     string // When set, clients must present it as ?key=
	EnableMDNS bool
	Debug      bool

	// Pause is the input silence that ends a user turn
	Pause time.Duration

	// Threshold is the RMS level above which input counts as speech
	Threshold float64

	// ChunkDuration is the length of each reply chunk
	ChunkDuration time.Duration
}

// Stats contains server statistics
type Stats struct {
	Connections int64
	Active      int64
	Turns       int64
	Interrupts  int64
}

// Server is the mock live endpoint
type Server struct {
	config   Config
	serverID string

	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	mdnsManager *discovery.Manager

	connections atomic.Int64
	active      atomic.Int64
	turns       atomic.Int64
	interrupts  atomic.Int64

	// Control
	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// New creates a new server instance
func New(config Config) *Server {
	if config.Path == "" {
		config.Path = "/live"
	}
	if config.Name == "" {
		config.Name = "livewave-echo"
	}
	if config.Pause <= 0 {
		config.Pause = 800 * time.Millisecond
	}
	if config.Threshold <= 0 {
		config.Threshold = 0.02
	}
	if config.ChunkDuration <= 0 {
		config.ChunkDuration = 100 * time.Millisecond
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Local testing tool; browsers are not expected
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		stopChan: make(chan struct{}),
	}
	s.mux.HandleFunc(config.Path, s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler serving the live endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until Stop is called
func (s *Server) Start() error {
	log.Printf("Echo server starting: %s (ID: %s)", s.config.Name, s.serverID)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Path:        s.config.Path,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("WebSocket server listening on %s%s", addr, s.config.Path)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.wg.Wait()
	log.Printf("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Stats returns server statistics
func (s *Server) Stats() Stats {
	return Stats{
		Connections: s.connections.Load(),
		Active:      s.active.Load(),
		Turns:       s.turns.Load(),
		Interrupts:  s.interrupts.Load(),
	}
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.config.APIKey != "" {
		key := r.URL.Query().Get("key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.config.APIKey)) != 1 {
			log.Printf("Rejecting connection from %s: bad API key", r.RemoteAddr)
			http.Error(w, "invalid API key", http.StatusUnauthorized)
			return
		}
	}

	s.shutdownMu.RLock()
	shutdown := s.isShutdown
	s.shutdownMu.RUnlock()
	if shutdown {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	id := r.Header.Get("X-Session-Id")
	if id == "" {
		id = uuid.New().String()
	}
	log.Printf("New WebSocket connection from %s (session %s)", r.RemoteAddr, id)

	s.wg.Add(1)
	defer s.wg.Done()

	s.connections.Add(1)
	s.active.Add(1)
	defer s.active.Add(-1)

	c := newConversation(s, conn, id)
	c.run()
	log.Printf("Session %s ended", id)
}
