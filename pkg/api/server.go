// Package api serves the trader over HTTP so an external harness can run
// cycles remotely and watch them over WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/tickmaker/pkg/market"
	"github.com/uhyunpark/tickmaker/pkg/metrics"
	"github.com/uhyunpark/tickmaker/pkg/storage"
	"github.com/uhyunpark/tickmaker/pkg/trader"
	"github.com/uhyunpark/tickmaker/pkg/util"
)

const maxBodyBytes = 8 << 20

// Options wires a Server. Store and Journal default to in-memory and no-op.
type Options struct {
	Trader         *trader.Trader
	Metrics        *metrics.Metrics
	Store          storage.CheckpointStore
	Journal        storage.Journal
	Logger         *zap.SugaredLogger
	Clock          util.Clock
	AllowedOrigins []string
}

// Server handles REST API and WebSocket connections
type Server struct {
	trader  *trader.Trader
	metrics *metrics.Metrics
	store   storage.CheckpointStore
	journal storage.Journal
	logger  *zap.SugaredLogger
	clock   util.Clock
	origins []string

	router *mux.Router
	hub    *Hub

	// cycles of one session run one at a time
	sessionsMu sync.Mutex
	sessions   map[string]*sync.Mutex
}

func NewServer(opts Options) *Server {
	s := &Server{
		trader:   opts.Trader,
		metrics:  opts.Metrics,
		store:    opts.Store,
		journal:  opts.Journal,
		logger:   opts.Logger,
		clock:    opts.Clock,
		origins:  opts.AllowedOrigins,
		router:   mux.NewRouter(),
		sessions: make(map[string]*sync.Mutex),
	}
	if s.store == nil {
		s.store = storage.NewMemoryStore()
	}
	if s.journal == nil {
		s.journal = storage.NewNopJournal()
	}
	if s.logger == nil {
		s.logger = zap.NewNop().Sugar()
	}
	if s.clock == nil {
		s.clock = util.RealClock{}
	}
	s.hub = NewHub(s.logger)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/run", s.handleRun).Methods("POST")
	api.HandleFunc("/products", s.handleGetProducts).Methods("GET")
	api.HandleFunc("/sessions/{session}/checkpoints", s.handleGetCheckpoints).Methods("GET")
	api.HandleFunc("/sessions/{session}", s.handleDeleteSession).Methods("DELETE")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
}

// Handler returns the router wrapped in CORS.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Hub exposes the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Start serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("api_server_starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Infow("api_server_stopping", "addr", addr)
		return srv.Shutdown(shutdownCtx)
	}
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid snapshot", err.Error())
		return
	}

	if req.Session != "" {
		unlock := s.lockSession(req.Session)
		defer unlock()

		if req.TraderData == "" {
			cp, ok, err := s.store.LatestCheckpoint(req.Session)
			if err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, storage.ErrInvalidSession) {
					status = http.StatusBadRequest
				}
				respondError(w, status, "checkpoint lookup failed", err.Error())
				return
			}
			if ok {
				req.TraderData = cp.TraderData
			}
		}
	}

	res := s.trader.Run(&req.Snapshot)

	if req.Session != "" {
		err := s.store.SaveCheckpoint(storage.Checkpoint{
			Session:    req.Session,
			Timestamp:  req.Timestamp,
			TraderData: res.TraderData,
			SavedAt:    s.clock.Now(),
		})
		if err != nil {
			s.logger.Errorw("checkpoint_save_failed", "session", req.Session, "timestamp", req.Timestamp, "err", err)
		}
	}

	err := s.journal.Append(storage.Entry{
		Session:    req.Session,
		Timestamp:  req.Timestamp,
		Position:   req.Position,
		FairValues: res.FairValues,
		Orders:     res.Orders,
		TraderData: res.TraderData,
	})
	if err != nil {
		s.logger.Errorw("journal_append_failed", "session", req.Session, "timestamp", req.Timestamp, "err", err)
	}

	s.broadcastCycle(req.Session, &req.Snapshot, res)

	respondJSON(w, RunResponse{
		Session:     req.Session,
		Timestamp:   req.Timestamp,
		Orders:      res.Orders,
		Conversions: res.Conversions,
		TraderData:  res.TraderData,
		FairValues:  res.FairValues,
	})
}

func (s *Server) handleGetProducts(w http.ResponseWriter, r *http.Request) {
	products := s.trader.Registry().List()
	response := make([]ProductInfo, len(products))
	for i, p := range products {
		response[i] = ProductInfo{Symbol: p.Symbol, Limit: p.Limit}
	}
	respondJSON(w, response)
}

func (s *Server) handleGetCheckpoints(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["session"]

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = n
	}

	cps, err := s.store.Checkpoints(session, limit)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidSession) {
			respondError(w, http.StatusBadRequest, "invalid session", session)
			return
		}
		respondError(w, http.StatusInternalServerError, "checkpoint lookup failed", err.Error())
		return
	}
	if len(cps) == 0 {
		respondError(w, http.StatusNotFound, "session not found", session)
		return
	}

	response := make([]CheckpointInfo, len(cps))
	for i, cp := range cps {
		response[i] = CheckpointInfo{
			Timestamp:  cp.Timestamp,
			TraderData: cp.TraderData,
			SavedAt:    cp.SavedAt.UnixMilli(),
		}
	}
	respondJSON(w, response)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["session"]
	unlock := s.lockSession(session)
	defer unlock()

	if err := s.store.DeleteSession(session); err != nil {
		if errors.Is(err, storage.ErrInvalidSession) {
			respondError(w, http.StatusBadRequest, "invalid session", session)
			return
		}
		respondError(w, http.StatusInternalServerError, "delete failed", err.Error())
		return
	}
	s.logger.Infow("session_reset", "session", session)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast
// ==============================

func (s *Server) broadcastCycle(session string, snap *market.Snapshot, res trader.Result) {
	update := CycleUpdate{
		Type:       "cycle",
		Session:    session,
		Timestamp:  snap.Timestamp,
		Position:   snap.Position,
		Orders:     res.Orders,
		FairValues: res.FairValues,
	}
	s.hub.BroadcastToChannel(channelCycles, update)
	if session != "" {
		s.hub.BroadcastToChannel(sessionChannel(session), update)
	}
}

// ==============================
// Helper Functions
// ==============================

func (s *Server) lockSession(session string) func() {
	s.sessionsMu.Lock()
	mu, ok := s.sessions[session]
	if !ok {
		mu = &sync.Mutex{}
		s.sessions[session] = mu
	}
	s.sessionsMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
