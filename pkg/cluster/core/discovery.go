package core

import "github.com/edgemesh/clustercore/pkg/cluster/types"

// Discovery protocol handlers (spec §4.5). Per-peer state is
// implicit: UNKNOWN -> GREETING -> CONFIRMED, tracked only by which
// timers are currently armed for that peer.

const joinIntervalKey = "self"

// startJoinLoop begins broadcasting JOIN every MESSAGE_INTERVAL. It
// stops the first time any HELLO is received (spec §4.5 step 1, P5).
func (s *Supervisor) startJoinLoop() {
	s.joinInterval.SetInterval(joinIntervalKey, s.cfg.MessageInterval, func() {
		if s.heardHello {
			s.joinInterval.Cancel(joinIntervalKey)
			return
		}
		raw, err := Encode(joinMessage())
		if err != nil {
			s.logger.Errorf("encoding JOIN: %v", err)
			return
		}
		s.broadcast(raw)
	})
	// Send the first JOIN immediately rather than waiting a full
	// interval, so discovery isn't gated on the first tick.
	raw, err := Encode(joinMessage())
	if err == nil {
		s.broadcast(raw)
	}
}

// stopJoinLoop cancels the broadcast JOIN loop. Idempotent.
func (s *Supervisor) stopJoinLoop() {
	s.heardHello = true
	s.joinInterval.Cancel(joinIntervalKey)
}

// onJoin handles a JOIN received from a peer we didn't already know
// about as a greeting-in-progress (spec §4.5 step 2).
func (s *Supervisor) onJoin(from string) {
	if s.helloInterval.Has(helloKey(from)) {
		// Already greeting this peer; duplicate JOIN, nothing new to do.
		return
	}

	result := s.table.Upsert(entryFor(from, s.priorityOf(from)))
	s.emitNodes()
	s.armHelloFor(from)
	if result.Added {
		s.armPreElection()
	}
}

func (s *Supervisor) armHelloFor(peer string) {
	s.helloInterval.SetInterval(helloKey(peer), s.cfg.MessageInterval, func() {
		raw, err := Encode(helloMessage(s.nodeListPayload()))
		if err != nil {
			s.logger.Errorf("encoding HELLO: %v", err)
			return
		}
		s.send(peer, raw)
	})
	s.helloTimeout.SetTimeout(helloKey(peer), s.cfg.MessageTimeout, func() {
		s.helloInterval.Cancel(helloKey(peer))
		s.helloTimeout.Cancel(helloKey(peer))
	})
}

// onHello handles a HELLO from a peer (spec §4.5 step 3): it carries
// the first proof of life from that peer, so our own JOIN loop can
// stop, and we reply with ACK HELLO.
func (s *Supervisor) onHello(from string, msg types.Message) {
	s.stopJoinLoop()

	added := s.mergeNodes(msg.Nodes)
	raw, err := Encode(ackHelloMessage(s.nodeListPayload()))
	if err != nil {
		s.logger.Errorf("encoding ACK HELLO: %v", err)
		return
	}
	s.send(from, raw)

	s.helloInterval.Cancel(helloKey(from))
	s.helloTimeout.Cancel(helloKey(from))

	if added {
		s.armPreElection()
	}
}

// onAckHello closes a HELLO transaction we initiated (spec §4.5 step
// 4).
func (s *Supervisor) onAckHello(from string, msg types.Message) {
	s.helloInterval.Cancel(helloKey(from))
	s.helloTimeout.Cancel(helloKey(from))
	added := s.mergeNodes(msg.Nodes)
	s.stopJoinLoop()
	if added {
		s.armPreElection()
	}
}

func helloKey(peer string) string { return "hello:" + peer }
