package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/lox/luckywheel/internal/game"
	"github.com/lox/luckywheel/internal/hub"
)

// Server exposes the round engine over WebSocket and REST
type Server struct {
	cfg         ServerSettings
	upgrader    websocket.Upgrader
	connections map[*Connection]bool
	logger      *log.Logger
	mu          sync.Mutex

	engine *game.RoundEngine
	hub    *hub.Hub
	http   *http.Server
}

// NewServer creates the transport layer over an engine and hub
func NewServer(cfg ServerSettings, eng *game.RoundEngine, h *hub.Hub, logger *log.Logger) *Server {
	s := &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// For development, allow all origins
				// In production, implement proper origin checking
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		logger:      logger.WithPrefix("server"),
		engine:      eng,
		hub:         h,
	}
	s.http = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler: s.routes(),
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebSocket)
	r.Get("/health", s.handleHealth)
	r.Get("/round", s.handleRound)

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.adminAuth)
		r.Post("/force", s.handleForce)
		r.Post("/deposit", s.handleDeposit)
	})

	return r
}

// Start serves until the listener fails or Stop is called
func (s *Server) Start() error {
	s.logger.Info("Starting server", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down and closes all client connections
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.mu.Unlock()
	return s.http.Shutdown(ctx)
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s.logger, s.engine, s.hub, s.cfg.WagersPerSecond)

	s.mu.Lock()
	s.connections[client] = true
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("Client connected", "total", total)

	client.Start()

	go func() {
		<-client.Done()
		s.mu.Lock()
		delete(s.connections, client)
		total := len(s.connections)
		s.mu.Unlock()
		s.logger.Info("Client disconnected", "user", client.UserID(), "total", total)
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"subscribers": s.hub.Subscribers(),
	})
}

func (s *Server) handleRound(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.engine.Snapshot()
	if !ok {
		s.writeJSON(w, http.StatusNotFound, ErrorData{Code: "ROUND_NOT_FOUND", Message: "no round yet"})
		return
	}
	s.writeJSON(w, http.StatusOK, RoundStatusFromSnapshot(snap))
}

// adminAuth rejects admin calls without the configured bearer token. An
// empty configured token disables the check for local development.
func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken != "" && r.Header.Get("Authorization") != "Bearer "+s.cfg.AdminToken {
			s.writeJSON(w, http.StatusUnauthorized, ErrorData{Code: "UNAUTHORIZED", Message: "bad admin token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type forceRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleForce(w http.ResponseWriter, r *http.Request) {
	var req forceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorData{Code: "INVALID_REQUEST", Message: "bad json"})
		return
	}

	var err error
	switch req.Action {
	case "EMERGENCY_STOP":
		err = s.engine.EmergencyStop()
	case "MANUAL_SPIN":
		err = s.engine.ManualSpin()
	case "EXTEND_BETTING":
		err = s.engine.ExtendBetting()
	case "RESUME":
		err = s.engine.Resume()
	default:
		s.writeJSON(w, http.StatusBadRequest, ErrorData{Code: "INVALID_REQUEST", Message: "unknown action " + req.Action})
		return
	}
	if err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, ErrorData{Code: "FORCE_FAILED", Message: err.Error()})
		return
	}

	s.logger.Warn("Admin override", "action", req.Action, "remote", r.RemoteAddr)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"action": req.Action, "status": "accepted"})
}

type depositRequest struct {
	UserID string `json:"userId"`
	Amount string `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorData{Code: "INVALID_REQUEST", Message: "bad json"})
		return
	}
	if req.UserID == "" {
		s.writeJSON(w, http.StatusBadRequest, ErrorData{Code: "INVALID_REQUEST", Message: "userId required"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		s.writeJSON(w, http.StatusBadRequest, ErrorData{Code: "INVALID_REQUEST", Message: "amount must be a positive decimal"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	balance, err := s.engine.Deposit(ctx, req.UserID, amount)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, ErrorData{Code: "DEPOSIT_FAILED", Message: err.Error()})
		return
	}

	s.logger.Info("Deposit applied", "user", req.UserID, "amount", amount)
	s.writeJSON(w, http.StatusOK, BalanceUpdateData{
		UserID:           req.UserID,
		PrimaryBalance:   balance.Primary.String(),
		SecondaryBalance: balance.Secondary.String(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}
