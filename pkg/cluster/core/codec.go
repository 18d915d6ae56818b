package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edgemesh/clustercore/pkg/cluster/addr"
	"github.com/edgemesh/clustercore/pkg/cluster/types"
)

// maxDatagramSize is a generous 64 KiB ceiling, just above the largest
// UDP payload; anything larger is rejected outright rather than handed to the JSON
// decoder (SPEC_FULL §4.2).
const maxDatagramSize = 64 * 1024

// wireNode mirrors types.NodeInfo but with pointer fields so the
// codec can reject an "absent" or "null" field (both decode to nil)
// instead of collapsing it into a zero value; a wrong-typed field
// already fails json.Unmarshal (spec §9's "undefined-vs-null-vs-
// absent" note).
type wireNode struct {
	Address *string  `json:"address"`
	Roles   *[]string `json:"roles"`
}

// Encode renders a Message as the UTF-8 datagram described in spec
// §4.2.
func Encode(m types.Message) ([]byte, error) {
	switch m.Type {
	case types.Join, types.Election, types.OK:
		return []byte(m.Type.String()), nil
	case types.Hello, types.Coordinator:
		payload, err := encodePayload(m.Nodes)
		if err != nil {
			return nil, err
		}
		return []byte(m.Type.String() + " " + payload), nil
	case types.AckHello:
		payload, err := encodePayload(m.Nodes)
		if err != nil {
			return nil, err
		}
		return []byte("ACK HELLO " + payload), nil
	case types.AckCoordinator:
		payload, err := encodePayload(m.Nodes)
		if err != nil {
			return nil, err
		}
		return []byte("ACK COORDINATOR " + payload), nil
	default:
		return nil, fmt.Errorf("core: cannot encode message type %v", m.Type)
	}
}

func encodePayload(nodes []types.NodeInfo) (string, error) {
	if nodes == nil {
		nodes = []types.NodeInfo{}
	}
	b, err := json.Marshal(nodes)
	if err != nil {
		return "", fmt.Errorf("core: marshalling node list: %w", err)
	}
	return string(b), nil
}

// Decode parses a raw UDP datagram into a Message. It fails loudly
// (returns a wrapped types.ErrMalformedDatagram) on: unknown type,
// missing required payload, non-array payload, invalid IPv4 in
// payload, or unknown role string. A failed decode must never mutate
// caller state; callers enforce that by only acting on a non-error
// result.
func Decode(raw []byte) (types.Message, error) {
	if len(raw) == 0 {
		return types.Message{}, fmt.Errorf("%w: empty datagram", types.ErrMalformedDatagram)
	}
	if len(raw) > maxDatagramSize {
		return types.Message{}, fmt.Errorf("%w: datagram exceeds %d bytes", types.ErrMalformedDatagram, maxDatagramSize)
	}

	text := string(raw)
	fields := strings.SplitN(text, " ", 2)
	keyword := fields[0]

	var msgType types.MessageType
	var rest string
	switch keyword {
	case "JOIN":
		msgType = types.Join
	case "HELLO":
		msgType = types.Hello
		rest = strings.TrimPrefix(text, "HELLO")
	case "ELECTION":
		msgType = types.Election
	case "OK":
		msgType = types.OK
	case "COORDINATOR":
		msgType = types.Coordinator
		rest = strings.TrimPrefix(text, "COORDINATOR")
	case "ASSIGN":
		msgType = types.Assign
	case "ACK":
		if len(fields) < 2 {
			return types.Message{}, fmt.Errorf("%w: ACK missing sub-type", types.ErrMalformedDatagram)
		}
		sub := strings.SplitN(fields[1], " ", 2)
		switch sub[0] {
		case "HELLO":
			msgType = types.AckHello
		case "COORDINATOR":
			msgType = types.AckCoordinator
		default:
			return types.Message{}, fmt.Errorf("%w: unknown ACK sub-type %q", types.ErrMalformedDatagram, sub[0])
		}
		if len(sub) > 1 {
			rest = sub[1]
		}
	default:
		return types.Message{}, fmt.Errorf("%w: unknown message type %q", types.ErrMalformedDatagram, keyword)
	}

	if !msgType.HasPayload() {
		return types.Message{Type: msgType}, nil
	}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return types.Message{}, fmt.Errorf("%w: %s missing required payload", types.ErrMalformedDatagram, msgType)
	}

	nodes, err := decodeNodes(rest)
	if err != nil {
		return types.Message{}, err
	}

	return types.Message{Type: msgType, Nodes: nodes}, nil
}

func decodeNodes(payload string) ([]types.NodeInfo, error) {
	var raw []wireNode
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid node-list JSON: %v", types.ErrMalformedDatagram, err)
	}

	out := make([]types.NodeInfo, 0, len(raw))
	for _, n := range raw {
		if n.Address == nil {
			return nil, fmt.Errorf("%w: node entry missing address", types.ErrMalformedDatagram)
		}
		if !addr.ValidIPv4(*n.Address) {
			return nil, fmt.Errorf("%w: invalid ipv4 address %q", types.ErrMalformedDatagram, *n.Address)
		}
		if n.Roles == nil {
			return nil, fmt.Errorf("%w: node entry missing roles array", types.ErrMalformedDatagram)
		}
		for _, rs := range *n.Roles {
			if _, ok := types.ParseRole(rs); !ok {
				return nil, fmt.Errorf("%w: unknown role %q", types.ErrMalformedDatagram, rs)
			}
		}
		out = append(out, types.NodeInfo{Address: *n.Address, Roles: *n.Roles})
	}
	return out, nil
}
