// Package gateway is a concrete collab.Gateway: a small HTTP front
// door exposing the document store to clients, run only by whichever
// node currently holds the GATEWAY role (SPEC_FULL §6).
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/edgemesh/clustercore/pkg/cluster/collab"
	"github.com/edgemesh/clustercore/pkg/cluster/types"
)

// Server is the HTTP gateway. It is created once and Start/Stop are
// called repeatedly across role transitions.
type Server struct {
	addr    string
	logger  types.Logger
	storage collab.Storage

	srv *http.Server
}

// New builds a Server that will listen on addr once Started.
func New(addr string, logger types.Logger, storage collab.Storage) *Server {
	return &Server{addr: addr, logger: logger.WithFields(types.Fields{"component": "gateway"}), storage: storage}
}

// Start binds the listener and serves until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	router := mux.NewRouter()
	router.HandleFunc("/documents", s.listDocuments).Methods(http.MethodGet)
	router.HandleFunc("/documents", s.createDocument).Methods(http.MethodPost)
	router.HandleFunc("/documents/{id}", s.getDocument).Methods(http.MethodGet)

	s.srv = &http.Server{Addr: s.addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway: %w", err)
	case <-time.After(50 * time.Millisecond):
		s.logger.Infof("gateway listening on %s", s.addr)
		return nil
	}
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.storage.GetDocuments(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, docs)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	doc, ok, err := s.storage.GetDocument(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, doc)
}

func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	doc, err := s.storage.CreateDocument(r.Context(), body.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, doc)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

var _ collab.Gateway = (*Server)(nil)
