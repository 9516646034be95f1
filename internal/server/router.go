package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RouterDependencies collects everything the routes need.
type RouterDependencies struct {
	API *Handlers
	// ArtifactDir, when set, is served read-only under /artifacts/ so the
	// filesystem store's public URLs resolve.
	ArtifactDir string
}

// NewRouter wires the HTTP routes exposed by the gateway.
func NewRouter(logger *zap.Logger, deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if deps.API != nil {
		mux.HandleFunc("/register", deps.API.handleRegister)
		mux.HandleFunc("/login", deps.API.handleLogin)
		mux.HandleFunc("/kyc", deps.API.handleKYC)
		mux.HandleFunc("/loan-requests", deps.API.handleLoanRequests)
		mux.HandleFunc("/offers/emi", deps.API.handleComputeEMI)
		mux.HandleFunc("/offers", deps.API.handleSubmitOffer)
	}

	if deps.ArtifactDir != "" {
		mux.Handle("/artifacts/", http.StripPrefix("/artifacts/", http.FileServer(http.Dir(deps.ArtifactDir))))
	}

	return loggingMiddleware(logger, mux)
}

func loggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
