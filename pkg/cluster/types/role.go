package types

// Role is one of the cluster-wide assignable responsibilities. A node
// holds zero or more roles at a time.
type Role string

const (
	// MessageBroker is a cluster singleton: the coordinator always
	// holds it.
	MessageBroker Role = "MESSAGE_BROKER"

	// Gateway is a cluster singleton: assigned to the member with the
	// smallest priority known to the coordinator.
	Gateway Role = "GATEWAY"

	// Editing is the baseline role: every member holds it regardless
	// of whether it also holds MessageBroker and/or Gateway.
	Editing Role = "EDITING"
)

// ParseRole validates a role string drawn from the wire. Any value
// outside the enumerated set is rejected.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case MessageBroker, Gateway, Editing:
		return Role(s), true
	default:
		return "", false
	}
}

// RoleSet is an ordered, de-duplicated set of roles. Order is kept
// deterministic (MessageBroker, Gateway, Editing) so wire encoding and
// equality checks are stable.
type RoleSet []Role

var roleOrder = [...]Role{MessageBroker, Gateway, Editing}

// NewRoleSet builds a de-duplicated, canonically ordered RoleSet.
func NewRoleSet(roles ...Role) RoleSet {
	has := make(map[Role]bool, len(roles))
	for _, r := range roles {
		has[r] = true
	}
	var out RoleSet
	for _, r := range roleOrder {
		if has[r] {
			out = append(out, r)
		}
	}
	return out
}

// Has reports whether the set contains r.
func (s RoleSet) Has(r Role) bool {
	for _, have := range s {
		if have == r {
			return true
		}
	}
	return false
}

// Without returns a copy of s with r removed.
func (s RoleSet) Without(r Role) RoleSet {
	var out RoleSet
	for _, have := range s {
		if have != r {
			out = append(out, have)
		}
	}
	return out
}

// With returns a copy of s with r added (a no-op if already present).
func (s RoleSet) With(r Role) RoleSet {
	if s.Has(r) {
		return s
	}
	return NewRoleSet(append(append(RoleSet{}, s...), r)...)
}

// Equal reports whether two role sets contain the same roles. Both
// are assumed canonically ordered (as produced by NewRoleSet).
func (s RoleSet) Equal(other RoleSet) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Strings renders the set as the wire string slice.
func (s RoleSet) Strings() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = string(r)
	}
	return out
}

// Clone returns an independent copy.
func (s RoleSet) Clone() RoleSet {
	out := make(RoleSet, len(s))
	copy(out, s)
	return out
}
