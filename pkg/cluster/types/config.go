package types

import "time"

// Config holds the four environment-driven knobs from spec §6, plus
// the derived per-process protocol-version string validated at
// startup (SPEC_FULL §9).
type Config struct {
	// DiscoveryPort is the UDP port the supervisor binds (default
	// 4321).
	DiscoveryPort int

	// MessageInterval is the retransmit period for unicast retry
	// transactions (default 100ms).
	MessageInterval time.Duration

	// MessageTimeout is the retransmit deadline for unicast retry
	// transactions (default 550ms).
	MessageTimeout time.Duration

	// PreElectionTimeout is the debounce window before an election
	// starts after a membership addition (default 550ms).
	PreElectionTimeout time.Duration

	// ProtocolVersion, if set, is validated as a semantic version
	// against the binary's supported range. Empty means "unset, skip
	// validation".
	ProtocolVersion string
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		DiscoveryPort:      4321,
		MessageInterval:    100 * time.Millisecond,
		MessageTimeout:     550 * time.Millisecond,
		PreElectionTimeout: 550 * time.Millisecond,
	}
}
