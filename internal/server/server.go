// Package server provides the local HTTP calibration/status API the
// bridge daemon exposes on localhost for a host-side configurator to
// drive — it ships the JSON endpoints only, never a GUI (see §1
// Non-goals: no graphical configuration tool is built by this module).
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/HopIT-Hub/AmpCore/internal/device"
	"github.com/HopIT-Hub/AmpCore/internal/hostconfig"
	"github.com/HopIT-Hub/AmpCore/internal/keyboard"
	"github.com/HopIT-Hub/AmpCore/internal/store"
)

// Server serves the calibration/status API on localhost.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	deviceMgr *device.Manager
	kb        *keyboard.Keyboard
	st        *store.Store
	cfg       *hostconfig.Config
	version   string
}

// New creates a calibration/status server.
func New(deviceMgr *device.Manager, kb *keyboard.Keyboard, st *store.Store, cfg *hostconfig.Config, version string) *Server {
	return &Server{
		deviceMgr: deviceMgr,
		kb:        kb,
		st:        st,
		cfg:       cfg,
		version:   version,
	}
}

// Start begins serving on a random localhost port. Returns the base
// URL a host-side configurator should connect to.
func (s *Server) Start() (string, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/slot", s.handleSlot)
	mux.HandleFunc("/slot/export", s.handleSlotExport)
	mux.HandleFunc("/slot/import", s.handleSlotImport)
	mux.HandleFunc("/autostart", s.handleAutoStart)
	mux.HandleFunc("/device", s.handleDevice)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("listen: %w", err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("[server] error: %v", err)
		}
	}()

	url := fmt.Sprintf("http://%s", ln.Addr().String())
	log.Printf("[server] calibration API available at %s", url)
	return url, nil
}

// Stop shuts down the HTTP server.
func (s *Server) Stop() {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
}

// URL returns the server's URL, or empty string if not started.
func (s *Server) URL() string {
	if s.listener == nil {
		return ""
	}
	return fmt.Sprintf("http://%s", s.listener.Addr().String())
}
