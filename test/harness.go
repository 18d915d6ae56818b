// Package test provides a multi-node in-process harness for
// exercising the cluster package's discovery, election, and role
// controller end to end, without a real broadcast segment.
package test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/edgemesh/clustercore/pkg/cluster"
	"github.com/edgemesh/clustercore/pkg/cluster/collab"
	"github.com/edgemesh/clustercore/pkg/cluster/definition"
	"github.com/edgemesh/clustercore/pkg/cluster/types"
)

// Netmask gives each 127.0.0.N loopback address a distinct priority
// equal to N, and a shared broadcast address neither node ever
// actually uses, since Seeds always takes over fan-out in tests.
const Netmask = "255.255.255.0"

// NodeCluster is a set of cluster.Node instances wired to unicast
// each other directly (via Seeds) instead of relying on an L3
// broadcast segment that loopback addresses don't provide.
type NodeCluster struct {
	T       *testing.T
	Nodes   []*cluster.Node
	cancels []context.CancelFunc
}

// Spawn starts size nodes at 127.0.0.1 .. 127.0.0.<size>, all sharing
// port, every one seeded with every other's address.
func Spawn(t *testing.T, size int, port int) *NodeCluster {
	addrs := make([]string, size)
	for i := 0; i < size; i++ {
		addrs[i] = fmt.Sprintf("127.0.0.%d", i+1)
	}

	cfg := types.DefaultConfig()
	cfg.DiscoveryPort = port
	cfg.MessageInterval = 20 * time.Millisecond
	cfg.MessageTimeout = 100 * time.Millisecond
	cfg.PreElectionTimeout = 100 * time.Millisecond

	cl := &NodeCluster{T: t}
	for i, self := range addrs {
		seeds := make([]string, 0, size-1)
		for j, other := range addrs {
			if j != i {
				seeds = append(seeds, other)
			}
		}

		logger := definition.NewDefaultLogger()
		node, err := cluster.New(cluster.Options{
			Address: self,
			Netmask: Netmask,
			Config:  cfg,
			Logger:  logger,
			Seeds:   seeds,
			Collab:  collab.Set{},
		})
		if err != nil {
			t.Fatalf("spawning node %s: %v", self, err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		if err := node.Start(ctx); err != nil {
			t.Fatalf("starting node %s: %v", self, err)
		}

		cl.Nodes = append(cl.Nodes, node)
		cl.cancels = append(cl.cancels, cancel)
	}
	return cl
}

// Shutdown cancels every node's context and waits for it to stop.
func (c *NodeCluster) Shutdown() {
	var wg sync.WaitGroup
	for i, cancel := range c.cancels {
		wg.Add(1)
		go func(i int, cancel context.CancelFunc) {
			defer wg.Done()
			cancel()
			c.Nodes[i].Shutdown()
		}(i, cancel)
	}
	wg.Wait()
}

// WaitFor polls cb every tick until it returns true or duration
// elapses, returning whether it converged.
func WaitFor(duration, tick time.Duration, cb func() bool) bool {
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if cb() {
			return true
		}
		time.Sleep(tick)
	}
	return cb()
}

// Leader returns the address currently holding MESSAGE_BROKER across
// the whole cluster's view, or "" if no node has converged on one
// yet.
func (c *NodeCluster) Leader() string {
	for _, n := range c.Nodes {
		for _, e := range n.Snapshot() {
			if e.Roles.Has(types.MessageBroker) {
				return e.Address
			}
		}
	}
	return ""
}

// AllConverged reports whether every node's membership snapshot has
// exactly size entries.
func (c *NodeCluster) AllConverged(size int) bool {
	for _, n := range c.Nodes {
		if len(n.Snapshot()) != size {
			return false
		}
	}
	return true
}

// AllAgreeOnLeader reports whether every node's snapshot agrees on
// exactly one MESSAGE_BROKER, and it's the same address everywhere.
func (c *NodeCluster) AllAgreeOnLeader() bool {
	var want string
	for _, n := range c.Nodes {
		found := ""
		for _, e := range n.Snapshot() {
			if e.Roles.Has(types.MessageBroker) {
				if found != "" {
					return false // two brokers in one node's own view
				}
				found = e.Address
			}
		}
		if found == "" {
			return false
		}
		if want == "" {
			want = found
		} else if want != found {
			return false
		}
	}
	return true
}
