package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexchuang650730/aicore0624-sub006/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// maxRequestBytes bounds a /process request body.
const maxRequestBytes = 1 << 20

// HTTPServer provides health checks, metrics and the synchronous /process API
type HTTPServer struct {
	port        int
	redisClient *redis.Client
	processor   Processor
	gatherer    prometheus.Gatherer
	logger      *zap.Logger
	server      *http.Server
}

// NewHTTPServer creates a new HTTP server. redisClient and gatherer may be nil.
func NewHTTPServer(port int, redisClient *redis.Client, processor Processor, gatherer prometheus.Gatherer, logger *zap.Logger) *HTTPServer {
	return &HTTPServer{
		port:        port,
		redisClient: redisClient,
		processor:   processor,
		gatherer:    gatherer,
		logger:      logger,
	}
}

// Handler returns the server's routes.
func (hs *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", hs.handleHealth)
	mux.HandleFunc("/ready", hs.handleReady)
	mux.HandleFunc("/process", hs.handleProcess)
	if hs.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(hs.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start starts the HTTP server
func (hs *HTTPServer) Start() error {
	hs.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", hs.port),
		Handler:           hs.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	hs.logger.Info("starting http server", zap.Int("port", hs.port))

	go func() {
		if err := hs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			hs.logger.Error("http server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the HTTP server
func (hs *HTTPServer) Stop() error {
	if hs.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hs.logger.Info("stopping http server")
	return hs.server.Shutdown(ctx)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// handleHealth handles the /health endpoint
func (hs *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if hs.redisClient == nil {
		checks["redis"] = "disabled"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := hs.redisClient.Ping(ctx).Err(); err != nil {
			checks["redis"] = fmt.Sprintf("unhealthy: %v", err)
			hs.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status: "unhealthy",
				Checks: checks,
			})
			return
		}
		checks["redis"] = "healthy"
	}

	hs.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "healthy",
		Checks: checks,
	})
}

// handleReady handles the /ready endpoint
func (hs *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if hs.redisClient != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := hs.redisClient.Ping(ctx).Err(); err != nil {
			hs.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status: "not ready",
			})
			return
		}
	}

	hs.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "ready",
	})
}

// ProcessRequest is the /process request body
type ProcessRequest struct {
	Request string `json:"request"`
}

// ProcessResponse is the /process response body
type ProcessResponse struct {
	Result         string   `json:"result"`
	ExpertsUsed    []string `json:"experts_used"`
	ExpertCount    int      `json:"expert_count"`
	FailedExperts  []string `json:"failed_experts,omitempty"`
	ProcessingTime float64  `json:"processing_time"`
}

// ErrorResponse is returned for failed /process calls
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleProcess handles the /process endpoint
func (hs *HTTPServer) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		hs.respondJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}

	var req ProcessRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		hs.respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	// Empty text is valid and routes to the default expert.
	answer, err := hs.processor.Process(r.Context(), req.Request)
	if err != nil && !(errors.Is(err, pipeline.ErrAllExpertsFailed) && answer != nil) {
		hs.logger.Error("process request failed", zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		hs.respondJSON(w, status, ErrorResponse{Error: err.Error()})
		return
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	hs.respondJSON(w, status, ProcessResponse{
		Result:         answer.Text,
		ExpertsUsed:    answer.ExpertIDs,
		ExpertCount:    len(answer.ExpertIDs),
		FailedExperts:  answer.Failed,
		ProcessingTime: answer.Duration.Seconds(),
	})
}

// respondJSON writes a JSON response
func (hs *HTTPServer) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		hs.logger.Error("failed to encode response", zap.Error(err))
	}
}
