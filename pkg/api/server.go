package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cbodonnell/fairroll/pkg/api/handlers"
	"github.com/cbodonnell/fairroll/pkg/api/middleware"
	"github.com/cbodonnell/fairroll/pkg/log"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port        int
	TLS         *TLSConfig
	AllowOrigin string
	Generator   handlers.CommitmentCreator
	Resolver    handlers.RoundResolver
}

// NewAPIServer creates a new http.Server exposing the commitment and play operations
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// NewRouter builds the HTTP handler tree. It is separate from NewAPIServer so
// it can be mounted in tests without a listener.
func NewRouter(opts NewAPIServerOptions) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCORSMiddleware(opts.AllowOrigin))

	// Legacy route names kept for existing clients.
	r.HandleFunc("/get_commitment", handlers.HandleGetCommitment(opts.Generator)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/play_game", handlers.HandlePlayGame(opts.Resolver)).Methods(http.MethodPost, http.MethodOptions)

	r.HandleFunc("/commitments", handlers.HandleGetCommitment(opts.Generator)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/commitments/{commitmentHash}/play", handlers.HandlePlayCommitment(opts.Resolver)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/verify", handlers.HandleVerify()).Methods(http.MethodPost, http.MethodOptions)

	r.HandleFunc("/healthz", handlers.HandleHealth()).Methods(http.MethodGet)
	r.HandleFunc("/version", handlers.HandleVersion()).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return gzhttp.GzipHandler(r)
}

// Start starts the APIServer and blocks until it is stopped
func (s *APIServer) Start() error {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return nil
		}
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
