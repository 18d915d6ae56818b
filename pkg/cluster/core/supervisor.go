// Package core implements the cluster membership and coordination
// engine described in spec §4: the wire codec, the timer registry,
// the membership table, the discovery protocol, the Bully election
// engine, and the role controller, all serialized onto a single
// dispatch loop owned by the Supervisor (spec §4.8, §5).
package core

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	promlog "github.com/prometheus/common/log"

	"github.com/edgemesh/clustercore/pkg/cluster/addr"
	"github.com/edgemesh/clustercore/pkg/cluster/collab"
	"github.com/edgemesh/clustercore/pkg/cluster/types"
)

// Supervisor owns the single UDP socket and the single dispatch loop
// that every other component's state mutation funnels through (spec
// §4.8, §5). It is the only writer of the membership table, the
// election state, and the local role set.
type Supervisor struct {
	self     string // bare IPv4 address, this node's identity
	netmask  string
	port     int
	priority uint32

	cfg    types.Config
	logger types.Logger
	collab collab.Set
	seeds  []string // explicit unicast rendezvous peers, used instead of L3 broadcast when set

	conn *net.UDPConn

	table *Table

	helloInterval *Registry // keyed by peer address
	helloTimeout  *Registry // keyed by peer address
	electionIv    *Registry // keyed by peer address
	electionTo    *Registry // keyed by peer address
	joinInterval  *Registry // singleton key "self"
	preElection   *Registry // keys "self" (debounce) and "await-coordinator"
	coordInterval *Registry // keyed by peer address
	coordTimeout  *Registry // keyed by peer address

	election *electionState
	roles    types.RoleSet

	events chan event

	subMu     sync.Mutex
	nodeSubs  []chan types.Snapshot
	roleSubs  []chan types.RoleEvent

	heardHello bool // §4.5 step1: stop broadcasting JOIN once any HELLO is received

	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
}

// Options configures a new Supervisor.
type Options struct {
	Address string // this node's IPv4 identity; auto-discovered if empty
	Netmask string // netmask for priority/broadcast arithmetic; auto-discovered if empty
	Config  types.Config
	Logger  types.Logger
	Collab  collab.Set
	Seeds   []string // known peer addresses to unicast JOIN to, instead of L3 broadcast
}

// New builds a Supervisor bound to the given options, but does not
// yet bind the socket or start the dispatch loop — call Start for
// that.
func New(opts Options) (*Supervisor, error) {
	self, netmask := opts.Address, opts.Netmask
	if self == "" || netmask == "" {
		iface, err := addr.DiscoverLocalInterface()
		if err != nil {
			return nil, fmt.Errorf("core: discovering local interface: %w", err)
		}
		if self == "" {
			self = iface.Address
		}
		if netmask == "" {
			netmask = iface.Netmask
		}
	}
	if !addr.ValidIPv4(self) {
		return nil, fmt.Errorf("core: invalid local address %q", self)
	}
	priority, err := addr.Priority(self, netmask)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		return nil, fmt.Errorf("core: a logger is required")
	}

	s := &Supervisor{
		self:     self,
		netmask:  netmask,
		port:     opts.Config.DiscoveryPort,
		priority: priority,
		cfg:      opts.Config,
		logger:   logger.WithFields(types.Fields{"component": "supervisor", "self": self}),
		collab:   opts.Collab,
		seeds:    opts.Seeds,
		table:    NewTable(),
		events:   make(chan event, 256),
		election: newElectionState(),
		done:     make(chan struct{}),
	}
	s.helloInterval = NewRegistry(s.postFn)
	s.helloTimeout = NewRegistry(s.postFn)
	s.electionIv = NewRegistry(s.postFn)
	s.electionTo = NewRegistry(s.postFn)
	s.joinInterval = NewRegistry(s.postFn)
	s.preElection = NewRegistry(s.postFn)
	s.coordInterval = NewRegistry(s.postFn)
	s.coordTimeout = NewRegistry(s.postFn)

	s.table.Upsert(types.Entry{Address: self, Priority: priority, Roles: types.NewRoleSet()})
	s.roles = types.NewRoleSet()

	return s, nil
}

// postFn is handed to every Registry as its delivery sink: it never
// runs fn itself, only queues it for the dispatch loop.
func (s *Supervisor) postFn(fn func()) {
	select {
	case s.events <- event{kind: evTimer, run: fn}:
	case <-s.done:
	}
}

// Self returns this node's address identity.
func (s *Supervisor) Self() string { return s.self }

// Priority returns this node's locally-computed priority.
func (s *Supervisor) Priority() uint32 { return s.priority }

// Start binds the UDP socket, launches the reader and dispatch
// goroutines, and begins the JOIN broadcast loop (spec §4.5 step 1).
// A bind failure is returned to the caller, which decides whether it
// is fatal (spec §7 case 5 leaves that decision to the daemon, not the
// core).
func (s *Supervisor) Start(ctx context.Context) error {
	laddr := &net.UDPAddr{IP: net.ParseIP(s.self), Port: s.port}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		s.logger.WithFields(types.Fields{"port": s.port, "err": err}).Errorf("failed binding discovery socket")
		return fmt.Errorf("%w: %v", types.ErrBindFailed, err)
	}
	s.conn = conn
	if s.port == 0 {
		s.port = conn.LocalAddr().(*net.UDPAddr).Port
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.dispatchLoop()

	s.startJoinLoop()

	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	return nil
}

// Shutdown cancels every timer and closes the socket. Idempotent.
func (s *Supervisor) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.helloInterval.CancelAll()
		s.helloTimeout.CancelAll()
		s.electionIv.CancelAll()
		s.electionTo.CancelAll()
		s.joinInterval.CancelAll()
		s.preElection.CancelAll()
		s.coordInterval.CancelAll()
		s.coordTimeout.CancelAll()
		if s.conn != nil {
			s.conn.Close()
		}
		close(s.events)
	})
	s.wg.Wait()
}

func (s *Supervisor) readLoop() {
	defer s.wg.Done()
	buf := make([]byte, 65536)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.logger.Debugf("read loop exiting: %v", err)
				return
			}
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case s.events <- event{kind: evDatagram, from: from.IP.String(), data: data}:
		case <-s.done:
			return
		}
	}
}

func (s *Supervisor) dispatchLoop() {
	defer s.wg.Done()
	defer func() {
		// The dispatch loop is the only emitter, so once it has exited
		// every subscriber channel can be closed safely.
		s.subMu.Lock()
		for _, ch := range s.nodeSubs {
			close(ch)
		}
		for _, ch := range s.roleSubs {
			close(ch)
		}
		s.nodeSubs, s.roleSubs = nil, nil
		s.subMu.Unlock()
	}()
	for ev := range s.events {
		switch ev.kind {
		case evDatagram:
			s.handleDatagram(ev.from, ev.data)
		case evTimer:
			ev.run()
		}
	}
}

// send unicasts raw bytes to a peer address on the discovery port. A
// failure is logged and discarded — the caller's retry interval, if
// any, will try again (spec §7 case 4).
func (s *Supervisor) send(toAddr string, raw []byte) {
	udpAddr := &net.UDPAddr{IP: net.ParseIP(toAddr), Port: s.port}
	if _, err := s.conn.WriteToUDP(raw, udpAddr); err != nil {
		promlog.Errorf("failed sending datagram to %s: %v", toAddr, err)
		s.logger.WithFields(types.Fields{"peer": toAddr, "err": err}).Errorf("send failed")
	}
}

// broadcast sends raw bytes to every configured seed, or to the
// segment's L3 broadcast address when no seeds are configured.
func (s *Supervisor) broadcast(raw []byte) {
	if len(s.seeds) > 0 {
		for _, peer := range s.seeds {
			if peer == s.self {
				continue
			}
			s.send(peer, raw)
		}
		return
	}
	bcast, err := addr.Broadcast(s.self, s.netmask)
	if err != nil {
		s.logger.Errorf("computing broadcast address: %v", err)
		return
	}
	udpAddr := &net.UDPAddr{IP: net.ParseIP(bcast), Port: s.port}
	if _, err := s.conn.WriteToUDP(raw, udpAddr); err != nil {
		s.logger.Errorf("broadcast send failed: %v", err)
	}
}

func (s *Supervisor) localAddrPort() string {
	return net.JoinHostPort(s.self, strconv.Itoa(s.port))
}

// Nodes subscribes to membership-change snapshots (spec §6 `nodes`).
// The returned channel is closed on Shutdown.
func (s *Supervisor) Nodes() <-chan types.Snapshot {
	ch := make(chan types.Snapshot, 8)
	s.subMu.Lock()
	s.nodeSubs = append(s.nodeSubs, ch)
	s.subMu.Unlock()
	return ch
}

// Roles subscribes to local role-change events (spec §6 `roles`).
func (s *Supervisor) Roles() <-chan types.RoleEvent {
	ch := make(chan types.RoleEvent, 8)
	s.subMu.Lock()
	s.roleSubs = append(s.roleSubs, ch)
	s.subMu.Unlock()
	return ch
}

func (s *Supervisor) emitNodes() {
	snap := s.table.Snapshot()
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.nodeSubs {
		select {
		case ch <- snap.Clone():
		default:
		}
	}
}

func (s *Supervisor) emitRoles(ev types.RoleEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.roleSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Snapshot exposes the current membership table for callers that
// don't want to wait on an event (tests, status endpoints).
func (s *Supervisor) Snapshot() types.Snapshot {
	return s.table.Snapshot()
}

// handleDatagram parses and routes one inbound datagram. A parse
// failure is dropped: logged, no state change (spec §7 case 1).
func (s *Supervisor) handleDatagram(from string, raw []byte) {
	if from == s.self {
		return // self-JOIN filtered at the application layer (spec §6)
	}
	msg, err := Decode(raw)
	if err != nil {
		s.logger.WithFields(types.Fields{"peer": from, "err": err}).Errorf("dropping malformed datagram")
		return
	}

	switch msg.Type {
	case types.Join:
		s.onJoin(from)
	case types.Hello:
		s.onHello(from, msg)
	case types.AckHello:
		s.onAckHello(from, msg)
	case types.Election:
		s.onElection(from)
	case types.OK:
		s.onOK(from)
	case types.Coordinator:
		s.onCoordinator(from, msg)
	case types.AckCoordinator:
		s.onAckCoordinator(from)
	case types.Assign:
		s.logger.WithFields(types.Fields{"peer": from}).Warnf("dropping unhandled ASSIGN message")
	default:
		s.logger.WithFields(types.Fields{"peer": from, "type": msg.Type}).Warnf("dropping unknown message type")
	}
}

func (s *Supervisor) priorityOf(address string) uint32 {
	if address == s.self {
		return s.priority
	}
	p, err := addr.Priority(address, s.netmask)
	if err != nil {
		return 0
	}
	return p
}

// mergeNodes recomputes priority locally for every incoming node
// (spec §4.1, §9) and upserts each into the table, skipping the
// self-entry (spec §4.5 dedupe). It returns true if any upsert
// reported `added`.
func (s *Supervisor) mergeNodes(nodes []types.NodeInfo) bool {
	entries, err := types.ToSnapshot(nodes)
	if err != nil {
		s.logger.Errorf("merging node list: %v", err)
		return false
	}
	anyAdded := false
	for _, e := range entries {
		if e.Address == s.self {
			continue
		}
		e.Priority = s.priorityOf(e.Address)
		res := s.table.Upsert(e)
		if res.Added {
			anyAdded = true
		}
	}
	if anyAdded {
		s.emitNodes()
	}
	return anyAdded
}

func (s *Supervisor) nodeListPayload() []types.NodeInfo {
	return types.FromSnapshot(s.table.Snapshot())
}
