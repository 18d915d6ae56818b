package core

import (
	"context"
	"testing"

	"github.com/edgemesh/clustercore/pkg/cluster/collab"
	"github.com/edgemesh/clustercore/pkg/cluster/definition"
	"github.com/edgemesh/clustercore/pkg/cluster/types"
)

type fakeBroker struct {
	starts, stops int
}

func (f *fakeBroker) Start(ctx context.Context) error { f.starts++; return nil }
func (f *fakeBroker) Stop(ctx context.Context) error  { f.stops++; return nil }

type fakeBrokerClient struct {
	starts, stops int
	dialedTo      string
}

func (f *fakeBrokerClient) Start(ctx context.Context, brokerAddress string) error {
	f.starts++
	f.dialedTo = brokerAddress
	return nil
}
func (f *fakeBrokerClient) Stop(ctx context.Context) error { f.stops++; return nil }

type fakeGateway struct{ starts, stops int }

func (f *fakeGateway) Start(ctx context.Context) error { f.starts++; return nil }
func (f *fakeGateway) Stop(ctx context.Context) error  { f.stops++; return nil }

type fakeEditing struct {
	starts, stops  int
	gatewayAddress string
}

func (f *fakeEditing) Start(ctx context.Context, gatewayAddress string, storage collab.Storage, messaging collab.BrokerClient) error {
	f.starts++
	f.gatewayAddress = gatewayAddress
	return nil
}
func (f *fakeEditing) Stop(ctx context.Context) error { f.stops++; return nil }

func newRoleTestSupervisor(t *testing.T, broker *fakeBroker, client *fakeBrokerClient, gw *fakeGateway, editing *fakeEditing) *Supervisor {
	t.Helper()
	s, err := New(Options{
		Address: "127.0.0.150",
		Netmask: "255.255.255.0",
		Config:  types.DefaultConfig(),
		Logger:  definition.NewDefaultLogger(),
		Collab: collab.Set{
			BrokerServer:  broker,
			BrokerClient:  client,
			Gateway:       gw,
			EditingServer: editing,
		},
	})
	if err != nil {
		t.Fatalf("building supervisor: %v", err)
	}
	return s
}

func TestComputeLeaderRoleVectorSingleNode(t *testing.T) {
	s := newRoleTestSupervisor(t, nil, nil, nil, nil)

	vector := s.computeLeaderRoleVector()
	self := vector[s.self]
	if !self.Has(types.MessageBroker) || !self.Has(types.Gateway) || !self.Has(types.Editing) {
		t.Errorf("expected self to hold all three roles in a single-member cluster, got %v", self)
	}
}

func TestComputeLeaderRoleVectorMultiNode(t *testing.T) {
	s := newRoleTestSupervisor(t, nil, nil, nil, nil)
	s.table.Upsert(entryFor("127.0.0.1", s.priorityOf("127.0.0.1")))
	s.table.Upsert(entryFor("127.0.0.200", s.priorityOf("127.0.0.200")))

	vector := s.computeLeaderRoleVector()

	if !vector[s.self].Has(types.MessageBroker) {
		t.Error("expected self (the leader) to hold MESSAGE_BROKER")
	}
	for addr, roles := range vector {
		if addr != s.self && roles.Has(types.MessageBroker) {
			t.Errorf("expected only self to hold MESSAGE_BROKER, but %s does too", addr)
		}
	}
	if !vector["127.0.0.1"].Has(types.Gateway) {
		t.Error("expected the minimum-priority member (127.0.0.1) to hold GATEWAY")
	}
	for addr, roles := range vector {
		if !roles.Has(types.Editing) {
			t.Errorf("expected every member to hold EDITING, %s does not", addr)
		}
	}
}

func TestApplyRoleTransitionIdempotentOnEqualSets(t *testing.T) {
	broker, client, gw, editing := &fakeBroker{}, &fakeBrokerClient{}, &fakeGateway{}, &fakeEditing{}
	s := newRoleTestSupervisor(t, broker, client, gw, editing)
	s.roles = types.NewRoleSet(types.Editing)

	s.applyRoleTransition(types.NewRoleSet(types.Editing), "self", s.table.Snapshot())

	if broker.starts+broker.stops+gw.starts+gw.stops+editing.starts+editing.stops != 0 {
		t.Error("expected no collaborator calls when the role set is unchanged")
	}
}

func TestApplyRoleTransitionGainingBrokerStopsClientStartsServer(t *testing.T) {
	broker, client, gw, editing := &fakeBroker{}, &fakeBrokerClient{}, &fakeGateway{}, &fakeEditing{}
	s := newRoleTestSupervisor(t, broker, client, gw, editing)
	s.roles = types.NewRoleSet(types.Editing)

	s.applyRoleTransition(types.NewRoleSet(types.MessageBroker, types.Editing), "self", s.table.Snapshot())

	if broker.starts != 1 {
		t.Errorf("expected broker server to start once, got %d", broker.starts)
	}
	if client.stops != 1 {
		t.Errorf("expected broker client to stop once when gaining MESSAGE_BROKER, got %d", client.stops)
	}
}

func TestApplyRoleTransitionLosingBrokerStopsServerStartsClient(t *testing.T) {
	broker, client, gw, editing := &fakeBroker{}, &fakeBrokerClient{}, &fakeGateway{}, &fakeEditing{}
	s := newRoleTestSupervisor(t, broker, client, gw, editing)
	s.roles = types.NewRoleSet(types.MessageBroker, types.Editing)
	s.table.Upsert(types.Entry{Address: "127.0.0.200", Priority: 200, Roles: types.NewRoleSet(types.MessageBroker, types.Editing)})

	s.applyRoleTransition(types.NewRoleSet(types.Editing), "127.0.0.200", s.table.Snapshot())

	if broker.stops != 1 {
		t.Errorf("expected broker server to stop once, got %d", broker.stops)
	}
	if client.starts != 1 {
		t.Errorf("expected broker client to start once, got %d", client.starts)
	}
	if client.dialedTo != "127.0.0.200" {
		t.Errorf("expected broker client to dial the new broker 127.0.0.200, dialed %q", client.dialedTo)
	}
}

func TestApplyRoleTransitionGainingEditingPassesGatewayAddress(t *testing.T) {
	broker, client, gw, editing := &fakeBroker{}, &fakeBrokerClient{}, &fakeGateway{}, &fakeEditing{}
	s := newRoleTestSupervisor(t, broker, client, gw, editing)
	s.roles = types.NewRoleSet()
	s.table.Upsert(types.Entry{Address: "127.0.0.1", Priority: 1, Roles: types.NewRoleSet(types.Gateway, types.Editing)})

	s.applyRoleTransition(types.NewRoleSet(types.Editing), "self", s.table.Snapshot())

	if editing.starts != 1 {
		t.Fatalf("expected editing server to start once, got %d", editing.starts)
	}
	if editing.gatewayAddress != "127.0.0.1" {
		t.Errorf("expected gateway address 127.0.0.1, got %q", editing.gatewayAddress)
	}
	if client.starts != 1 {
		t.Errorf("expected broker client to be dialed even though MESSAGE_BROKER was never held before or after, got %d", client.starts)
	}
}

// A node that never held MESSAGE_BROKER (the normal path for every
// follower) must still have its broker client started, since the
// symmetric-difference of {} and {GATEWAY, EDITING} never contains
// MESSAGE_BROKER at all.
func TestApplyRoleTransitionNeverHeldBrokerStillStartsClient(t *testing.T) {
	broker, client, gw, editing := &fakeBroker{}, &fakeBrokerClient{}, &fakeGateway{}, &fakeEditing{}
	s := newRoleTestSupervisor(t, broker, client, gw, editing)
	s.roles = types.NewRoleSet()
	s.table.Upsert(types.Entry{Address: "127.0.0.200", Priority: 200, Roles: types.NewRoleSet(types.MessageBroker, types.Editing)})

	s.applyRoleTransition(types.NewRoleSet(types.Gateway, types.Editing), "127.0.0.200", s.table.Snapshot())

	if client.starts != 1 {
		t.Errorf("expected broker client to start once, got %d", client.starts)
	}
	if client.dialedTo != "127.0.0.200" {
		t.Errorf("expected broker client to dial 127.0.0.200, dialed %q", client.dialedTo)
	}
	if broker.starts != 0 || broker.stops != 0 {
		t.Errorf("expected no broker server calls, got starts=%d stops=%d", broker.starts, broker.stops)
	}
}
