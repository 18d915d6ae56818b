// Package cluster is the public entry point to the membership and
// coordination engine: it wires the wire codec, timer registry,
// membership table, discovery protocol, election engine, and role
// controller (all in package core) to a set of external
// collaborators, and exposes the result as a single Node.
package cluster

import (
	"context"

	"github.com/edgemesh/clustercore/pkg/cluster/collab"
	"github.com/edgemesh/clustercore/pkg/cluster/core"
	"github.com/edgemesh/clustercore/pkg/cluster/types"
)

// Node is a running cluster participant: one UDP discovery socket,
// one Bully election engine, and the collaborators its current role
// set drives.
type Node struct {
	sup *core.Supervisor
}

// Options configures a new Node.
type Options struct {
	// Address and Netmask identify this node's IPv4 interface. Both
	// empty auto-discovers the first non-loopback IPv4 interface.
	Address string
	Netmask string

	Config types.Config
	Logger types.Logger
	Collab collab.Set

	// Seeds is an explicit set of peer addresses to unicast discovery
	// traffic to, used in place of L3 broadcast. Leave empty in
	// production; set it in tests that can't rely on a real broadcast
	// segment.
	Seeds []string
}

// New builds a Node. It does not bind a socket or start any loop until
// Start is called.
func New(opts Options) (*Node, error) {
	sup, err := core.New(core.Options{
		Address: opts.Address,
		Netmask: opts.Netmask,
		Config:  opts.Config,
		Logger:  opts.Logger,
		Collab:  opts.Collab,
		Seeds:   opts.Seeds,
	})
	if err != nil {
		return nil, err
	}
	return &Node{sup: sup}, nil
}

// Start binds the discovery socket and begins the JOIN broadcast loop.
// It returns once the socket is bound; discovery, election, and role
// assignment all continue on background goroutines until ctx is
// cancelled or Shutdown is called.
func (n *Node) Start(ctx context.Context) error {
	return n.sup.Start(ctx)
}

// Shutdown stops every timer, closes the socket, and waits for the
// dispatch goroutines to exit. Idempotent.
func (n *Node) Shutdown() {
	n.sup.Shutdown()
}

// Self returns this node's IPv4 address identity.
func (n *Node) Self() string { return n.sup.Self() }

// Priority returns this node's locally-computed priority.
func (n *Node) Priority() uint32 { return n.sup.Priority() }

// Snapshot returns the current membership view.
func (n *Node) Snapshot() types.Snapshot { return n.sup.Snapshot() }

// Nodes subscribes to membership-change snapshots.
func (n *Node) Nodes() <-chan types.Snapshot { return n.sup.Nodes() }

// Roles subscribes to this node's own role-change events.
func (n *Node) Roles() <-chan types.RoleEvent { return n.sup.Roles() }
