// Package editing is a concrete collab.EditingServer: a minimal
// recording stub standing in for the CRDT document-editing fabric
// every node runs while it holds EDITING (SPEC_FULL §6). It does not
// implement real collaborative editing — it records that it was
// started and stopped with the arguments it was given, which is
// enough surface for the role controller and its tests to exercise.
package editing

import (
	"context"
	"sync"

	"github.com/edgemesh/clustercore/pkg/cluster/collab"
	"github.com/edgemesh/clustercore/pkg/cluster/types"
)

// Server is the recording stub.
type Server struct {
	logger types.Logger

	mu             sync.Mutex
	running        bool
	gatewayAddress string
	storage        collab.Storage
	messaging      collab.BrokerClient
}

// New builds a stopped Server.
func New(logger types.Logger) *Server {
	return &Server{logger: logger.WithFields(types.Fields{"component": "editing-server"})}
}

// Start records the collaborators it was handed and marks itself
// running.
func (s *Server) Start(ctx context.Context, gatewayAddress string, storage collab.Storage, messaging collab.BrokerClient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.gatewayAddress = gatewayAddress
	s.storage = storage
	s.messaging = messaging
	s.logger.Infof("editing server started, gateway=%s", gatewayAddress)
	return nil
}

// Stop marks itself stopped.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.logger.Infof("editing server stopped")
	return nil
}

// Running reports whether Start has been called more recently than
// Stop. Exposed for tests.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

var _ collab.EditingServer = (*Server)(nil)
