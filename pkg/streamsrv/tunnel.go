package streamsrv

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.ngrok.com/ngrok"
	ngrokconfig "golang.ngrok.com/ngrok/config"
)

// TunnelStatus mirrors the teacher's ngrok.Status enum, renamed to this
// package so streamsrv doesn't need to import the standalone ngrok
// package for four string constants.
type TunnelStatus string

const (
	TunnelDisconnected TunnelStatus = "disconnected"
	TunnelConnecting   TunnelStatus = "connecting"
	TunnelConnected    TunnelStatus = "connected"
	TunnelError        TunnelStatus = "error"
)

// TunnelInfo is the publicly reportable state of a TunnelService.
type TunnelInfo struct {
	URL         string       `json:"url"`
	Status      TunnelStatus `json:"status"`
	ConnectedAt time.Time    `json:"connected_at,omitempty"`
	Error       string       `json:"error,omitempty"`
	LocalURL    string       `json:"local_url"`
}

// TunnelService exposes a Server's HTTP listener through an ngrok
// tunnel so a remote WebSocket/SSE client can reach it without inbound
// firewall rules. Grounded on pkg/ngrok/service.go's Service, adapted
// from "expose the VibeTunnel web UI" to "expose this streamsrv.Server."
type TunnelService struct {
	mu        sync.RWMutex
	forwarder ngrok.Forwarder
	info      TunnelInfo
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewTunnelService returns a disconnected TunnelService.
func NewTunnelService() *TunnelService {
	ctx, cancel := context.WithCancel(context.Background())
	return &TunnelService{
		ctx:    ctx,
		cancel: cancel,
		info:   TunnelInfo{Status: TunnelDisconnected},
	}
}

var (
	ErrTunnelAlreadyRunning = fmt.Errorf("tunnel already running")
	ErrTunnelNotConnected   = fmt.Errorf("tunnel not connected")
)

// Start begins forwarding localPort through an ngrok tunnel in the
// background.
func (t *TunnelService) Start(authToken string, localPort int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.info.Status == TunnelConnected || t.info.Status == TunnelConnecting {
		return ErrTunnelAlreadyRunning
	}
	t.info.Status = TunnelConnecting
	t.info.Error = ""
	t.info.LocalURL = fmt.Sprintf("http://127.0.0.1:%d", localPort)

	go func() {
		if err := t.run(authToken, localPort); err != nil {
			t.mu.Lock()
			t.info.Status = TunnelError
			t.info.Error = err.Error()
			t.mu.Unlock()
			log.Printf("[streamsrv] tunnel failed: %v", err)
		}
	}()
	return nil
}

func (t *TunnelService) run(authToken string, localPort int) error {
	localURL, err := url.Parse(fmt.Sprintf("http://127.0.0.1:%d", localPort))
	if err != nil {
		return fmt.Errorf("invalid local port: %w", err)
	}

	forwarder, err := ngrok.ListenAndForward(t.ctx, localURL, ngrokconfig.HTTPEndpoint(), ngrok.WithAuthtoken(authToken))
	if err != nil {
		return fmt.Errorf("create ngrok tunnel: %w", err)
	}

	t.mu.Lock()
	t.forwarder = forwarder
	t.info.URL = forwarder.URL()
	t.info.Status = TunnelConnected
	t.info.ConnectedAt = time.Now()
	t.mu.Unlock()

	log.Printf("[streamsrv] tunnel established: %s -> http://127.0.0.1:%d", forwarder.URL(), localPort)
	return forwarder.Wait()
}

// Stop tears down the active tunnel, if any.
func (t *TunnelService) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.info.Status == TunnelDisconnected {
		return ErrTunnelNotConnected
	}
	t.cancel()
	if t.forwarder != nil {
		if err := t.forwarder.Close(); err != nil {
			log.Printf("[streamsrv] error closing tunnel: %v", err)
		}
		t.forwarder = nil
	}
	t.info = TunnelInfo{Status: TunnelDisconnected}
	t.ctx, t.cancel = context.WithCancel(context.Background())
	return nil
}

// Status returns the current tunnel state.
func (t *TunnelService) Status() TunnelInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.info
}

func (s *Server) handleTunnelStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	tun := s.tunnel
	s.mu.Unlock()
	if tun == nil {
		json.NewEncoder(w).Encode(TunnelInfo{Status: TunnelDisconnected})
		return
	}
	json.NewEncoder(w).Encode(tun.Status())
}

func (s *Server) handleTunnelStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AuthToken string `json:"auth_token"`
		LocalPort int    `json:"local_port"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.tunnel == nil {
		s.tunnel = NewTunnelService()
	}
	tun := s.tunnel
	s.mu.Unlock()

	if err := tun.Start(req.AuthToken, req.LocalPort); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleTunnelStop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	tun := s.tunnel
	s.mu.Unlock()
	if tun == nil {
		http.Error(w, ErrTunnelNotConnected.Error(), http.StatusConflict)
		return
	}
	if err := tun.Stop(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusOK)
}
