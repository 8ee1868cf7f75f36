package invoice

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/invoiceai/invoice-ledger/internal/extraction"
)

// Extractor is the slice of the extraction pipeline the server needs.
type Extractor interface {
	Extract(ctx context.Context, req extraction.Request) (*extraction.Result, error)
}

// IDGenerator mints ids for newly parsed records.
type IDGenerator interface {
	Generate() string
}

// defaultIDGenerator generates ULIDs.
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return ulid.Make().String()
}

// BasicAuth holds basic authentication credentials.
type BasicAuth struct {
	Username string
	Password string
}

// Server exposes the read model and the extraction portal over HTTP.
type Server struct {
	service   *Service
	extractor Extractor
	basicAuth BasicAuth
	mux       *http.ServeMux

	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewServer creates a Server with default id generation and clock.
func NewServer(service *Service, extractor Extractor, basicAuth BasicAuth) *Server {
	return NewServerWithDeps(service, extractor, basicAuth, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServerWithDeps creates a Server with custom dependencies for testing.
func NewServerWithDeps(service *Service, extractor Extractor, basicAuth BasicAuth, idGen IDGenerator, timeSource TimeSource) *Server {
	s := &Server{
		service:     service,
		extractor:   extractor,
		basicAuth:   basicAuth,
		mux:         http.NewServeMux(),
		idGenerator: idGen,
		timeSource:  timeSource,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials.
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers and answers preflight requests.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="Invoice Ledger"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all API routes, most specific first.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/invoices/refresh", s.requireAuth(s.handleRefresh))
	s.mux.HandleFunc("PUT /api/invoices/{id}", s.requireAuth(s.handleUpdateInvoice))
	s.mux.HandleFunc("DELETE /api/invoices/{id}", s.requireAuth(s.handleDeleteInvoice))
	s.mux.HandleFunc("GET /api/invoices", s.requireAuth(s.handleListInvoices))
	s.mux.HandleFunc("POST /api/invoices", s.requireAuth(s.handleAddInvoice))
	s.mux.HandleFunc("POST /api/extract", s.requireAuth(s.handleExtract))
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(s.mux.ServeHTTP)(w, r)
	}))
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
