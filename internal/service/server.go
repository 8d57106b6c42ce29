// internal/service/server.go
package service

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/valpere/TikTokIngester/internal/fetch"
	"github.com/valpere/TikTokIngester/internal/monitoring"
	"github.com/valpere/TikTokIngester/internal/queue"
	"github.com/valpere/TikTokIngester/internal/store"
	"github.com/valpere/TikTokIngester/internal/utils"
)

// Server is the ingest HTTP surface: event push, scrape enqueue, the summary
// rollup and operational endpoints.
type Server struct {
	router    *mux.Router
	processor *Processor
	requests  *queue.Queue
	warehouse *store.Store
	metrics   *monitoring.Metrics
	logger    utils.Logger
}

// NewServer builds the router over the given pipeline pieces.
func NewServer(processor *Processor, requests *queue.Queue, warehouse *store.Store, metrics *monitoring.Metrics, logger utils.Logger) *Server {
	if logger == nil {
		logger = utils.NewLogger()
	}
	s := &Server{
		router:    mux.NewRouter(),
		processor: processor,
		requests:  requests,
		warehouse: warehouse,
		metrics:   metrics,
		logger:    logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/v1/events", s.handleEvent).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/scrapes", s.handleScrape).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/push", s.handlePush).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/summaries", s.handleSummaries).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/summaries/{username}", s.handleSummary).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
}

// Router exposes the handler for an http.Server.
func (s *Server) Router() http.Handler {
	return s.router
}

// handleEvent processes one storage notification synchronously. A failed run
// answers 500 so the delivery layer redelivers the event.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var event Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "invalid event payload", http.StatusBadRequest)
		return
	}
	if event.Bucket == "" || event.ObjectName == "" {
		http.Error(w, "event needs bucket and name", http.StatusBadRequest)
		return
	}
	if err := s.processor.Process(r.Context(), event); err != nil {
		s.logger.Errorf("server: process event: %v", err)
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// scrapeRequest is the body accepted by the scrape enqueue endpoint.
type scrapeRequest struct {
	Username string `json:"username"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var body scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(strings.TrimPrefix(body.Username, "@"))
	if username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}
	s.enqueue(w, queue.Request{Username: username, ProfileURL: fetch.ProfileURL(username)})
}

// handlePush accepts the push-delivery envelope whose payload is a profile
// page URL.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	req, err := queue.DecodePush(body)
	if err != nil {
		s.logger.Warnf("server: push decode: %v", err)
		http.Error(w, "invalid push payload", http.StatusBadRequest)
		return
	}
	s.enqueue(w, req)
}

func (s *Server) enqueue(w http.ResponseWriter, req queue.Request) {
	if err := s.requests.Enqueue(req); err != nil {
		if errors.Is(err, queue.ErrFull) {
			http.Error(w, "scrape queue full", http.StatusTooManyRequests)
			return
		}
		http.Error(w, "enqueue failed", http.StatusServiceUnavailable)
		return
	}
	if s.metrics != nil {
		s.metrics.QueueDepth.Set(float64(s.requests.Len()))
	}
	s.logger.WithField("username", req.Username).Info("server: scrape enqueued")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "queued", "username": req.Username})
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.warehouse.Summaries(r.Context())
	if err != nil {
		s.logger.Errorf("server: summaries: %v", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, summaries)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	summary, err := s.warehouse.SummaryFor(r.Context(), username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "unknown username", http.StatusNotFound)
			return
		}
		s.logger.Errorf("server: summary for %s: %v", username, err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, summary)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.warehouse.DB().PingContext(r.Context()); err != nil {
		http.Error(w, "warehouse unreachable", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
