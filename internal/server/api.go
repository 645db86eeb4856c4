package server

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"connkit/internal/errors"
	"connkit/internal/metrics"
	"connkit/internal/plugin"
	"connkit/internal/schema"
	"connkit/internal/service"
)

// APIServer serves connector schemas and executions over HTTP.
type APIServer struct {
	svc    *service.Service
	log    *zap.Logger
	router *mux.Router
}

// NewAPIServer creates the HTTP API for svc.
func NewAPIServer(svc *service.Service, log *zap.Logger) *APIServer {
	if log == nil {
		log = zap.NewNop()
	}
	s := &APIServer{svc: svc, log: log, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *APIServer) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/connectors", s.handleListConnectors).Methods(http.MethodGet)
	s.router.HandleFunc("/connections", s.handleListConnections).Methods(http.MethodGet)
	s.router.HandleFunc("/connections/{name}/test", s.handleTestConnection).Methods(http.MethodPost)
	// Connector names hold a slash, so the reference is matched across two
	// path segments.
	s.router.HandleFunc("/connectors/{system}/{operation}/schema", s.handleSchema).Methods(http.MethodGet, http.MethodPost)
	s.router.HandleFunc("/connectors/{system}/{operation}/execute", s.handleExecute).Methods(http.MethodPost)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no route for "+r.URL.Path)
	})
}

// Handler returns the router, for tests and embedding.
func (s *APIServer) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *APIServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// statusOf maps a lookup or setup error to an HTTP status.
func statusOf(err error) int {
	if stderrors.Is(err, service.ErrNotFound) {
		return http.StatusNotFound
	}
	switch errors.KindOf(err) {
	case errors.KindSchema:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func ref(r *http.Request) string {
	vars := mux.Vars(r)
	name := vars["system"] + "/" + vars["operation"]
	if v := r.URL.Query().Get("version"); v != "" {
		name += "@v" + v
	}
	return name
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *APIServer) handleListConnectors(w http.ResponseWriter, r *http.Request) {
	infos := s.svc.Registry.List()
	if infos == nil {
		infos = []plugin.Info{}
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *APIServer) handleListConnections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ListConnections())
}

type schemaRequest struct {
	Values  schema.Values `json:"values"`
	Changed string        `json:"changed"`
}

// handleSchema returns the default schema on GET and the rebuilt schema for
// the posted values on POST.
func (s *APIServer) handleSchema(w http.ResponseWriter, r *http.Request) {
	var req schemaRequest
	if r.Method == http.MethodPost {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
	}

	sc, err := s.svc.Schema(r.Context(), ref(r), req.Values, req.Changed)
	if err != nil {
		if sc == nil {
			writeError(w, statusOf(err), err.Error())
			return
		}
		// The partial schema is still returned so the form stays usable.
		writeJSON(w, statusOf(err), map[string]any{"schema": sc, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

type executeRequest struct {
	Connection string        `json:"connection"`
	Values     schema.Values `json:"values"`
}

func (s *APIServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	result, err := s.svc.Execute(r.Context(), ref(r), req.Connection, req.Values)
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	s.log.Debug("execution served",
		zap.String("connector", result.Connector),
		zap.String("execution_id", result.ID),
		zap.String("outcome", string(result.Outcome)),
	)

	// The execution itself was served; its outcome travels in the body.
	writeJSON(w, http.StatusOK, result)
}

func (s *APIServer) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.TestConnection(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
