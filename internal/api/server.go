// internal/api/server.go
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kuaigrab/kuaigrab/internal/monitoring"
	"github.com/kuaigrab/kuaigrab/internal/utils"
)

// Server is the thin HTTP layer over the service operations.
type Server struct {
	service Service
	router  *mux.Router
	logger  utils.Logger
}

// NewServer builds the router. Route shapes mirror the public contract:
// POST /info, POST /download, GET /download/status/{task_id}.
func NewServer(service Service, metrics *monitoring.Metrics, logger utils.Logger) *Server {
	s := &Server{
		service: service,
		router:  mux.NewRouter(),
		logger:  logger,
	}

	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodPost)
	s.router.HandleFunc("/download", s.handleDownload).Methods(http.MethodPost)
	s.router.HandleFunc("/download/status/{task_id}", s.handleStatus).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
