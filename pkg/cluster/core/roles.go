package core

import (
	"context"

	"github.com/edgemesh/clustercore/pkg/cluster/types"
)

// Role Controller (spec §4.7): derives the role vector for the whole
// cluster from the leader's view of membership, and locally reconciles
// this node's own role set against its collaborators.

// computeLeaderRoleVector assigns MESSAGE_BROKER to self (the node
// computing it is, by construction, the one that just won the
// election) and GATEWAY to whichever member currently has the lowest
// locally-computed priority. Every member also holds EDITING — it is
// the baseline role, not a singleton (spec §4.7, §9 decision: EDITING
// is not exclusive with the two singleton roles).
//
// A single-member cluster is a degenerate case of this rule, not an
// exception to it: when self is simultaneously the only candidate for
// MESSAGE_BROKER and the minimum-priority member, it legitimately
// holds both singleton roles at once. Spec §4.7's "no member ever
// holds both" describes the steady multi-node state, not this
// unavoidable corner.
func (s *Supervisor) computeLeaderRoleVector() map[string]types.RoleSet {
	snapshot := s.table.Snapshot()
	vector := make(map[string]types.RoleSet, len(snapshot))

	min, ok := s.table.MinPriority()
	for _, m := range snapshot {
		roles := types.NewRoleSet(types.Editing)
		if m.Address == s.self {
			roles = roles.With(types.MessageBroker)
		}
		if ok && m.Address == min.Address {
			roles = roles.With(types.Gateway)
		}
		vector[m.Address] = roles
	}
	return vector
}

// applyVector upserts every member's assigned roles into the
// membership table and reconciles this node's own collaborators
// against its own entry in the vector.
func (s *Supervisor) applyVector(vector map[string]types.RoleSet, source string) {
	for address, roles := range vector {
		s.table.Upsert(types.Entry{Address: address, Priority: s.priorityOf(address), Roles: roles})
	}
	s.emitNodes()

	newRoles, ok := vector[s.self]
	if !ok {
		return
	}
	s.applyRoleTransition(newRoles, source, s.table.Snapshot())
}

// applyRoleTransition reconciles a new local role set against the one
// currently running. Nodes whose whole role set is unchanged do
// nothing at all — the Role Controller is idempotent on equal role
// sets (spec §9), which is what keeps role churn elsewhere in the
// cluster from bouncing the broker or gateway on every membership
// update (scenario S6).
func (s *Supervisor) applyRoleTransition(newRoles types.RoleSet, source string, snapshot types.Snapshot) {
	if s.roles.Equal(newRoles) {
		return
	}

	ctx := context.Background()
	for _, r := range s.roles {
		if !newRoles.Has(r) {
			s.stopRole(ctx, r, snapshot)
		}
	}
	for _, r := range newRoles {
		if !s.roles.Has(r) {
			s.startRole(ctx, r, snapshot)
		}
	}

	// The broker client's lifecycle is tied to whether this node holds
	// MESSAGE_BROKER in the *new* set, not to whether that membership
	// changed — a node that never held MESSAGE_BROKER (e.g. {} ->
	// {EDITING}) still needs its client dialed, even though
	// MESSAGE_BROKER never appears in the stop/start diff above.
	if !newRoles.Has(types.MessageBroker) && s.collab.BrokerClient != nil {
		brokerAddr := s.brokerAddress(snapshot)
		if err := s.collab.BrokerClient.Start(ctx, brokerAddr); err != nil {
			s.logger.WithFields(types.Fields{"err": err, "broker": brokerAddr}).Errorf("%v: starting broker client", types.ErrCollaboratorStart)
		}
	}

	s.roles = newRoles
	s.emitRoles(types.RoleEvent{Snapshot: snapshot, Source: source, Roles: newRoles.Clone()})
}

func (s *Supervisor) stopRole(ctx context.Context, r types.Role, snapshot types.Snapshot) {
	switch r {
	case types.MessageBroker:
		if s.collab.BrokerServer == nil {
			return
		}
		if err := s.collab.BrokerServer.Stop(ctx); err != nil {
			s.logger.Errorf("stopping broker server: %v", err)
		}
		// The broker client is (re)started unconditionally in
		// applyRoleTransition once the new role set lacks
		// MESSAGE_BROKER, not here.
	case types.Gateway:
		if s.collab.Gateway == nil {
			return
		}
		if err := s.collab.Gateway.Stop(ctx); err != nil {
			s.logger.Errorf("stopping gateway: %v", err)
		}
	case types.Editing:
		if s.collab.EditingServer == nil {
			return
		}
		if err := s.collab.EditingServer.Stop(ctx); err != nil {
			s.logger.Errorf("stopping editing server: %v", err)
		}
	}
}

func (s *Supervisor) startRole(ctx context.Context, r types.Role, snapshot types.Snapshot) {
	switch r {
	case types.MessageBroker:
		if s.collab.BrokerClient != nil {
			if err := s.collab.BrokerClient.Stop(ctx); err != nil {
				s.logger.Errorf("stopping broker client before taking over as broker: %v", err)
			}
		}
		if s.collab.BrokerServer == nil {
			return
		}
		if err := s.collab.BrokerServer.Start(ctx); err != nil {
			s.logger.WithFields(types.Fields{"err": err}).Errorf("%v: starting broker server", types.ErrCollaboratorStart)
		}
	case types.Gateway:
		if s.collab.Gateway == nil {
			return
		}
		if err := s.collab.Gateway.Start(ctx); err != nil {
			s.logger.WithFields(types.Fields{"err": err}).Errorf("%v: starting gateway", types.ErrCollaboratorStart)
		}
	case types.Editing:
		if s.collab.EditingServer == nil {
			return
		}
		brokerAddr := s.brokerAddress(snapshot)
		if err := s.collab.EditingServer.Start(ctx, s.gatewayAddress(snapshot), s.collab.Storage, s.collab.BrokerClient); err != nil {
			s.logger.WithFields(types.Fields{"err": err, "broker": brokerAddr}).Errorf("%v: starting editing server", types.ErrCollaboratorStart)
		}
	}
}

func (s *Supervisor) gatewayAddress(snapshot types.Snapshot) string {
	for _, m := range snapshot.FindByRole(types.Gateway) {
		return m.Address
	}
	return ""
}

func (s *Supervisor) brokerAddress(snapshot types.Snapshot) string {
	for _, m := range snapshot.FindByRole(types.MessageBroker) {
		return m.Address
	}
	return ""
}
