package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/indexer"
	"github.com/vietddude/ocean-indexer/internal/indexing/reindex"
)

// Admin is the control surface the HTTP API drives.
type Admin interface {
	StatusSource

	// AddReindexTask queues a transaction of a chain and returns the job id.
	AddReindexTask(ctx context.Context, chainID domain.ChainID, txID string, eventIndex *int) (string, error)

	// TriggerReindexChain asks a chain to rewind. Nil block means the
	// configured start.
	TriggerReindexChain(chainID domain.ChainID, block *uint64) error

	// Job returns a reindex job by id.
	Job(id string) (domain.Job, bool)

	// Subscribe streams notifications of the given kinds, or all kinds.
	Subscribe(kinds ...domain.NotificationKind) (<-chan domain.Notification, func())
}

// Server provides the health, metrics and admin HTTP endpoints.
type Server struct {
	monitor *Monitor
	admin   Admin
	log     *slog.Logger
	server  *http.Server
}

// NewServer creates a new health server.
func NewServer(monitor *Monitor, admin Admin, port int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		monitor: monitor,
		admin:   admin,
		log:     log.With("component", "http"),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes returns the router of the server.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/health/detailed", s.handleDetailed)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/indexer", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/jobs/{jobID}", s.handleJob)
		r.Get("/events", s.handleEvents)
		r.Post("/{chainID}/reindex-tx", s.handleReindexTx)
		r.Post("/{chainID}/reindex-chain", s.handleReindexChain)
	})
	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := Aggregate(s.monitor.CheckHealth(r.Context()))

	code := http.StatusOK
	if status == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(status)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	chains := s.monitor.CheckHealth(r.Context())
	writeJSON(w, http.StatusOK, HealthReport{SystemStatus: Aggregate(chains), Chains: chains})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]indexer.Status{"chains": s.admin.Statuses(r.Context())})
}

type reindexTxRequest struct {
	TxID       string `json:"txId"`
	EventIndex *int   `json:"eventIndex,omitempty"`
}

func (s *Server) handleReindexTx(w http.ResponseWriter, r *http.Request) {
	chainID, err := domain.ParseChainID(chi.URLParam(r, "chainID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}

	var req reindexTxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TxID == "" {
		writeError(w, http.StatusBadRequest, "txId is required")
		return
	}
	if !isTxHash(req.TxID) {
		writeError(w, http.StatusBadRequest, "txId must be a 32-byte hex hash")
		return
	}

	jobID, err := s.admin.AddReindexTask(r.Context(), chainID, req.TxID, req.EventIndex)
	if err != nil {
		s.writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

func isTxHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == 32
}

type reindexChainRequest struct {
	Block *uint64 `json:"block,omitempty"`
}

func (s *Server) handleReindexChain(w http.ResponseWriter, r *http.Request) {
	chainID, err := domain.ParseChainID(chi.URLParam(r, "chainID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}

	var req reindexChainRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
	}

	if err := s.admin.TriggerReindexChain(chainID, req.Block); err != nil {
		s.writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"chainId": chainID, "block": req.Block})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.admin.Job(chi.URLParam(r, "jobID"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) writeAdminError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownChain):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, reindex.ErrTargetBeyondHeight):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("Admin request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
