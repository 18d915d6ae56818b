package core

import (
	"context"
	"testing"
	"time"

	"github.com/edgemesh/clustercore/pkg/cluster/collab"
	"github.com/edgemesh/clustercore/pkg/cluster/definition"
	"github.com/edgemesh/clustercore/pkg/cluster/types"
)

func newTestSupervisor(t *testing.T, self string, port int) *Supervisor {
	t.Helper()
	cfg := types.DefaultConfig()
	cfg.DiscoveryPort = port
	cfg.MessageInterval = 10 * time.Millisecond
	cfg.MessageTimeout = 40 * time.Millisecond
	cfg.PreElectionTimeout = 40 * time.Millisecond

	s, err := New(Options{
		Address: self,
		Netmask: "255.255.255.0",
		Config:  cfg,
		Logger:  definition.NewDefaultLogger(),
		Collab:  collab.Set{},
	})
	if err != nil {
		t.Fatalf("building supervisor: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("starting supervisor: %v", err)
	}
	t.Cleanup(s.Shutdown)
	return s
}

// A single-member view means there is no higher-priority peer to wait
// on, so startElection must resolve straight to LEADER (spec §4.6
// termination case) and assign both singleton roles to itself (the
// degenerate single-node case, DESIGN.md's resolution of spec §4.7's
// "no member holds both").
func TestStartElectionSingleMemberBecomesLeader(t *testing.T) {
	s := newTestSupervisor(t, "127.0.0.101", 15101)

	s.startElection()

	if s.election.status != statusLeader {
		t.Fatalf("expected LEADER, got status %v", s.election.status)
	}
	if !s.roles.Has(types.MessageBroker) {
		t.Error("expected self to hold MESSAGE_BROKER")
	}
	if !s.roles.Has(types.Gateway) {
		t.Error("expected self to hold GATEWAY in a single-member cluster")
	}
	if !s.roles.Has(types.Editing) {
		t.Error("expected self to hold EDITING")
	}
}

// A higher-priority peer must be challenged with ELECTION before this
// node can become LEADER (spec §4.6 step 3).
func TestStartElectionWithHigherPriorityPeerDoesNotImmediatelyLead(t *testing.T) {
	s := newTestSupervisor(t, "127.0.0.102", 15102)
	s.table.Upsert(entryFor("127.0.0.200", s.priorityOf("127.0.0.200")))

	s.startElection()

	if s.election.status != statusCandidate {
		t.Fatalf("expected CANDIDATE while a higher-priority peer is unconfirmed, got %v", s.election.status)
	}
	if !s.electionIv.Has(electionKey("127.0.0.200")) {
		t.Error("expected an ELECTION retry interval armed for the higher-priority peer")
	}
}

// If the higher-priority peer never responds, its election timeout
// evicts it and this node bullies through to LEADER (spec §4.6 step
// 5).
func TestElectionTimeoutEvictsUnresponsivePeerAndBecomesLeader(t *testing.T) {
	s := newTestSupervisor(t, "127.0.0.103", 15103)
	s.table.Upsert(entryFor("127.0.0.201", s.priorityOf("127.0.0.201")))

	s.startElection()
	if s.election.status != statusCandidate {
		t.Fatalf("expected CANDIDATE, got %v", s.election.status)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.election.status != statusLeader && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.election.status != statusLeader {
		t.Fatalf("expected LEADER after the unresponsive peer's timeout, got %v", s.election.status)
	}
	if s.table.Has("127.0.0.201") {
		t.Error("expected the unresponsive peer to have been evicted")
	}
}

// A lower-priority peer's ELECTION gets an OK reply and arms this
// node's own pre-election debounce (spec §4.6 step 6).
func TestOnElectionFromLowerPriorityRepliesAndArmsPreElection(t *testing.T) {
	s := newTestSupervisor(t, "127.0.0.104", 15104)

	s.onElection("127.0.0.1") // priority 1, always lower than 104

	if !s.preElection.Has(preElectionKey) {
		t.Error("expected pre-election debounce to be armed after a lower-priority ELECTION")
	}
}

// A non-lower-priority ELECTION is a protocol violation and must be
// dropped without arming anything (spec §4.6 step 7).
func TestOnElectionFromHigherPriorityIsDropped(t *testing.T) {
	s := newTestSupervisor(t, "127.0.0.105", 15105)

	s.onElection("127.0.0.200") // priority 200, higher than 105

	if s.preElection.Has(preElectionKey) {
		t.Error("expected no pre-election arming from a protocol-violating ELECTION")
	}
}

// A COORDINATOR from a lower-or-equal-priority sender is an impostor
// and must be rejected outright (spec scenario S5).
func TestOnCoordinatorFromLowerPriorityIsRejected(t *testing.T) {
	s := newTestSupervisor(t, "127.0.0.106", 15106)
	before := s.roles.Clone()

	msg := types.Message{Type: types.Coordinator, Nodes: []types.NodeInfo{
		{Address: "127.0.0.1", Roles: []string{"MESSAGE_BROKER", "EDITING"}},
	}}
	s.onCoordinator("127.0.0.1", msg) // priority 1, lower than 106

	if !s.roles.Equal(before) {
		t.Error("expected roles to be unchanged after rejecting an impostor COORDINATOR")
	}
	if s.election.status == statusFollower {
		t.Error("expected election status to not transition to FOLLOWER from a rejected COORDINATOR")
	}
}

// A COORDINATOR from a genuinely higher-priority sender is accepted,
// applies the announced role vector locally, and replies ACK
// COORDINATOR (spec §4.6 step 8-9).
func TestOnCoordinatorFromHigherPriorityIsAccepted(t *testing.T) {
	s := newTestSupervisor(t, "127.0.0.107", 15107)

	msg := types.Message{Type: types.Coordinator, Nodes: []types.NodeInfo{
		{Address: "127.0.0.200", Roles: []string{"MESSAGE_BROKER", "EDITING"}},
		{Address: "127.0.0.107", Roles: []string{"EDITING"}},
	}}
	s.onCoordinator("127.0.0.200", msg)

	if s.election.status != statusFollower {
		t.Fatalf("expected FOLLOWER, got %v", s.election.status)
	}
	if !s.roles.Equal(types.NewRoleSet(types.Editing)) {
		t.Errorf("expected local roles to be exactly [EDITING], got %v", s.roles)
	}
}
