package types

import "errors"

// The six error categories from spec §7. Each is a sentinel suitable
// for errors.Is; call sites that need the offending detail wrap one
// of these with fmt.Errorf("...: %w", ErrX).
var (
	// ErrMalformedDatagram: unknown message type, missing payload,
	// invalid JSON, invalid IPv4, or unknown role string. The datagram
	// is dropped; no state changes.
	ErrMalformedDatagram = errors.New("cluster: malformed datagram")

	// ErrProtocolViolation: an ELECTION from a lower-priority peer, a
	// COORDINATOR from a non-higher-priority sender, or an ACK for a
	// transaction never opened locally.
	ErrProtocolViolation = errors.New("cluster: protocol violation")

	// ErrPeerUnresponsive: a unicast retry transaction's timeout
	// elapsed without an ACK.
	ErrPeerUnresponsive = errors.New("cluster: peer unresponsive")

	// ErrSendFailed: the UDP socket rejected a send. The retry
	// interval, if any, will attempt again.
	ErrSendFailed = errors.New("cluster: send failed")

	// ErrBindFailed: the discovery socket could not bind at startup.
	// Fatal: the process exits non-zero.
	ErrBindFailed = errors.New("cluster: bind failed")

	// ErrCollaboratorStart: an external collaborator's start()
	// rejected during a role transition. Logged; the node stays in
	// the new logical role and does not auto-retry (spec §7 case 6).
	ErrCollaboratorStart = errors.New("cluster: collaborator start failed")
)
