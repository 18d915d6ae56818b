package types

// MessageType enumerates the discovery wire protocol's keywords
// (spec §4.2). Ack is not itself a type: ACK HELLO and ACK
// COORDINATOR are represented as their own types below so dispatch
// can switch on a single enum.
type MessageType int

const (
	Join MessageType = iota
	Hello
	AckHello
	Election
	OK
	Coordinator
	AckCoordinator

	// Assign is recognized by the codec (spec §9 open question) but
	// has no registered handler; receiving it is logged as unhandled
	// and dropped. An unrecognized keyword, by contrast, fails Decode.
	Assign
)

func (t MessageType) String() string {
	switch t {
	case Join:
		return "JOIN"
	case Hello:
		return "HELLO"
	case AckHello:
		return "ACK HELLO"
	case Election:
		return "ELECTION"
	case OK:
		return "OK"
	case Coordinator:
		return "COORDINATOR"
	case AckCoordinator:
		return "ACK COORDINATOR"
	case Assign:
		return "ASSIGN"
	default:
		return "UNKNOWN"
	}
}

// NodeInfo is the wire shape carried inside HELLO / ACK HELLO /
// COORDINATOR / ACK COORDINATOR payloads (spec §6). Priority is
// deliberately absent: it is never transmitted.
type NodeInfo struct {
	Address string   `json:"address"`
	Roles   []string `json:"roles"`
}

// Message is the decoded form of any datagram on the wire.
type Message struct {
	Type  MessageType
	Nodes []NodeInfo // nil for JOIN, ELECTION, OK
}

// HasPayload reports whether this message type carries a node list.
func (t MessageType) HasPayload() bool {
	switch t {
	case Hello, AckHello, Coordinator, AckCoordinator:
		return true
	default:
		return false
	}
}

// ToSnapshot converts the wire node list into membership entries with
// priority left at zero; the caller must recompute priority locally
// before trusting these entries (spec §4.1, §9).
func ToSnapshot(nodes []NodeInfo) ([]Entry, error) {
	out := make([]Entry, 0, len(nodes))
	for _, n := range nodes {
		roles := make([]Role, 0, len(n.Roles))
		for _, rs := range n.Roles {
			r, ok := ParseRole(rs)
			if !ok {
				return nil, ErrMalformedDatagram
			}
			roles = append(roles, r)
		}
		out = append(out, Entry{
			Address: n.Address,
			Roles:   NewRoleSet(roles...),
		})
	}
	return out, nil
}

// FromSnapshot converts membership entries into the wire shape.
func FromSnapshot(entries Snapshot) []NodeInfo {
	out := make([]NodeInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, NodeInfo{
			Address: e.Address,
			Roles:   e.Roles.Strings(),
		})
	}
	return out
}
