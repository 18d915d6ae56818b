package core

import "github.com/edgemesh/clustercore/pkg/cluster/types"

// electionStatus is the small status record from spec §3's Election
// state.
type electionStatus int

const (
	statusIdle electionStatus = iota
	statusCandidate
	statusFollower
	statusLeader
)

// electionState is the Bully election record (spec §3). round tags
// pending timers so a callback from a superseded round is a no-op
// even if it was already queued on the dispatch channel when the
// round changed (spec §3: "round id is only used to tag pending
// timers").
type electionState struct {
	round          int
	status         electionStatus
	receivedOK     bool
	pendingTargets map[string]bool
}

func newElectionState() *electionState {
	return &electionState{status: statusIdle, pendingTargets: make(map[string]bool)}
}

const (
	preElectionKey     = "self"
	awaitCoordinatorKey = "await-coordinator"
)

func electionKey(peer string) string { return "election:" + peer }
func coordKey(peer string) string    { return "coord:" + peer }

// armPreElection (re-)arms the pre-election debounce. Every call
// cancels any prior debounce and restarts the wait (spec §4.5:
// "upsert returning added=true... triggers the pre-election
// debounce: cancel any existing preElectionTimeout, re-arm").
func (s *Supervisor) armPreElection() {
	s.preElection.SetTimeout(preElectionKey, s.cfg.PreElectionTimeout, func() {
		s.startElection()
	})
}

// cancelPreElection cancels the debounce outright — observing
// election activity (an ELECTION or COORDINATOR) counts as activity
// that should not still fire a stale election later (spec §4.6 steps
// 6, 8; §9 "must not latch").
func (s *Supervisor) cancelPreElection() {
	s.preElection.Cancel(preElectionKey)
}

// startElection begins a new Bully round (spec §4.6).
func (s *Supervisor) startElection() {
	s.election.round++
	round := s.election.round

	higher, _ := s.table.PriorityRank(s.self)
	if len(higher) == 0 {
		s.becomeLeader()
		return
	}

	s.election.status = statusCandidate
	s.election.receivedOK = false
	s.election.pendingTargets = make(map[string]bool, len(higher))

	for _, h := range higher {
		peer := h.Address
		s.election.pendingTargets[peer] = true
		s.armElectionFor(peer, round)
	}
}

func (s *Supervisor) armElectionFor(peer string, round int) {
	s.electionIv.SetInterval(electionKey(peer), s.cfg.MessageInterval, func() {
		if s.election.round != round {
			return
		}
		raw, err := Encode(electionMessage())
		if err != nil {
			s.logger.Errorf("encoding ELECTION: %v", err)
			return
		}
		s.send(peer, raw)
	})
	s.electionTo.SetTimeout(electionKey(peer), s.cfg.MessageTimeout, func() {
		if s.election.round != round {
			return
		}
		s.onElectionTimeout(peer, round)
	})
}

// onElectionTimeout handles an unresponsive higher-priority peer
// (spec §4.6 step 5): it is evicted from membership, and if nothing
// has responded OK and no other election intervals remain, this node
// bullies through to LEADER.
func (s *Supervisor) onElectionTimeout(peer string, round int) {
	s.electionIv.Cancel(electionKey(peer))
	s.electionTo.Cancel(electionKey(peer))
	delete(s.election.pendingTargets, peer)
	if s.table.Has(peer) {
		s.table.Remove(peer)
		s.emitNodes()
	}

	if !s.election.receivedOK && len(s.election.pendingTargets) == 0 && s.election.round == round {
		s.becomeLeader()
	}
}

// onOK handles an OK response to our ELECTION (spec §4.6 step 4).
func (s *Supervisor) onOK(from string) {
	if s.election.status != statusCandidate {
		return
	}
	s.election.receivedOK = true
	s.electionIv.CancelAll()
	s.electionTo.CancelAll()
	s.election.pendingTargets = make(map[string]bool)

	round := s.election.round
	s.preElection.SetTimeout(awaitCoordinatorKey, s.cfg.MessageTimeout, func() {
		if s.election.round != round {
			return
		}
		if s.election.status == statusCandidate {
			s.logger.WithFields(types.Fields{"peer": from}).Warnf("no COORDINATOR after OK, restarting election")
			s.startElection()
		}
	})
}

// onElection handles a received ELECTION (spec §4.6 steps 6, 7).
func (s *Supervisor) onElection(from string) {
	peerPriority := s.priorityOf(from)
	if peerPriority >= s.priority {
		s.logger.WithFields(types.Fields{"peer": from}).Errorf("protocol violation: ELECTION from non-lower-priority peer")
		return
	}

	s.cancelPreElection()
	raw, err := Encode(okMessage())
	if err != nil {
		s.logger.Errorf("encoding OK: %v", err)
		return
	}
	s.send(from, raw)

	if s.election.status != statusCandidate && s.election.status != statusLeader {
		s.armPreElection()
	}
}

// becomeLeader transitions to LEADER, computes and persists the new
// role vector, and begins broadcasting COORDINATOR (spec §4.6
// termination, §4.7 LEADER path).
func (s *Supervisor) becomeLeader() {
	s.election.status = statusLeader
	s.election.pendingTargets = make(map[string]bool)
	s.cancelPreElection()
	s.preElection.Cancel(awaitCoordinatorKey)
	s.electionIv.CancelAll()
	s.electionTo.CancelAll()

	vector := s.computeLeaderRoleVector()
	s.applyVector(vector, s.self)

	snapshot := s.table.Snapshot()
	for _, m := range snapshot {
		if m.Address == s.self {
			continue
		}
		s.armCoordinatorFor(m.Address)
	}
}

func (s *Supervisor) armCoordinatorFor(peer string) {
	s.coordInterval.SetInterval(coordKey(peer), s.cfg.MessageInterval, func() {
		raw, err := Encode(coordinatorMessage(s.nodeListPayload()))
		if err != nil {
			s.logger.Errorf("encoding COORDINATOR: %v", err)
			return
		}
		s.send(peer, raw)
	})
	s.coordTimeout.SetTimeout(coordKey(peer), s.cfg.MessageTimeout, func() {
		s.coordInterval.Cancel(coordKey(peer))
	})
}

// onCoordinator handles a received COORDINATOR (spec §4.6 steps 8,
// 9; §4.7 follower validation).
func (s *Supervisor) onCoordinator(from string, msg types.Message) {
	peerPriority := s.priorityOf(from)
	if peerPriority <= s.priority {
		s.logger.WithFields(types.Fields{"peer": from}).Warnf("INVALID: COORDINATOR from non-higher-priority sender")
		return
	}

	s.cancelPreElection()
	s.preElection.Cancel(awaitCoordinatorKey)
	s.electionIv.CancelAll()
	s.electionTo.CancelAll()
	s.election.status = statusFollower
	s.election.pendingTargets = make(map[string]bool)

	entries, err := types.ToSnapshot(msg.Nodes)
	if err != nil {
		s.logger.Errorf("decoding COORDINATOR payload: %v", err)
		return
	}
	s.validateCoordinatorPayload(from, entries)

	vector := make(map[string]types.RoleSet, len(entries))
	for _, e := range entries {
		vector[e.Address] = e.Roles
	}
	s.applyVector(vector, from)

	raw, err := Encode(ackCoordinatorMessage(msg.Nodes))
	if err != nil {
		s.logger.Errorf("encoding ACK COORDINATOR: %v", err)
		return
	}
	s.send(from, raw)
}

// validateCoordinatorPayload cross-checks the announced assignment
// against locally-computed priorities (spec §4.7): the broker must be
// the sender, and the gateway must be the smallest-priority entry in
// the payload. A mismatch is logged but never rejects the message —
// the sender's role *assignment* is trusted, only its implicit
// priority claims about third parties are not.
func (s *Supervisor) validateCoordinatorPayload(from string, entries []types.Entry) {
	for _, e := range entries {
		if e.Roles.Has(types.MessageBroker) && e.Address != from {
			s.logger.WithFields(types.Fields{"peer": from, "claimed_broker": e.Address}).
				Warnf("COORDINATOR announces a broker that isn't the sender")
		}
	}

	var minAddr string
	var minPriority uint32
	first := true
	for _, e := range entries {
		p := s.priorityOf(e.Address)
		if first || p < minPriority {
			minPriority = p
			minAddr = e.Address
			first = false
		}
	}
	for _, e := range entries {
		if e.Roles.Has(types.Gateway) && e.Address != minAddr {
			s.logger.WithFields(types.Fields{"peer": from, "claimed_gateway": e.Address, "expected_gateway": minAddr}).
				Warnf("COORDINATOR gateway assignment does not match locally-computed minimum priority")
		}
	}
}

// onAckCoordinator closes a COORDINATOR transaction early (spec §4.7
// bullet: "Receipt of ACK COORDINATOR from m cancels its interval
// early").
func (s *Supervisor) onAckCoordinator(from string) {
	s.coordInterval.Cancel(coordKey(from))
	s.coordTimeout.Cancel(coordKey(from))
}
