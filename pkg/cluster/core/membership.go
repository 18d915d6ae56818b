package core

import (
	"sort"

	"github.com/edgemesh/clustercore/pkg/cluster/types"
)

// Table is the membership component (spec §4.4). It has exactly one
// writer — the Supervisor's dispatch loop — so it carries no internal
// locking; every other component only ever sees a Snapshot, which is
// a deep copy.
type Table struct {
	entries map[string]types.Entry
}

// NewTable creates an empty membership table.
func NewTable() *Table {
	return &Table{entries: make(map[string]types.Entry)}
}

// UpsertResult reports what changed as a result of an Upsert call.
type UpsertResult struct {
	Added        bool
	RolesChanged bool
}

// Upsert inserts or updates entry, keyed by address. The incoming
// priority is stored verbatim for both new and existing addresses: the
// caller is expected to have already recomputed it locally (spec §4.1,
// §9) before calling Upsert. For an existing address the incoming role
// set replaces the stored one when the two differ.
func (t *Table) Upsert(entry types.Entry) UpsertResult {
	existing, ok := t.entries[entry.Address]
	if !ok {
		t.entries[entry.Address] = entry.Clone()
		return UpsertResult{Added: true, RolesChanged: len(entry.Roles) > 0}
	}

	rolesChanged := !existing.Roles.Equal(entry.Roles)
	merged := existing
	merged.Priority = entry.Priority
	if rolesChanged {
		merged.Roles = entry.Roles.Clone()
	}
	t.entries[entry.Address] = merged
	return UpsertResult{Added: false, RolesChanged: rolesChanged}
}

// Remove evicts addr from the table. A no-op if absent.
func (t *Table) Remove(address string) {
	delete(t.entries, address)
}

// Get returns the entry for address, if known.
func (t *Table) Get(address string) (types.Entry, bool) {
	e, ok := t.entries[address]
	return e, ok
}

// Has reports whether address is a known member.
func (t *Table) Has(address string) bool {
	_, ok := t.entries[address]
	return ok
}

// Snapshot returns a deep copy of the whole table, sorted by address
// for deterministic iteration and equality comparisons in tests.
func (t *Table) Snapshot() types.Snapshot {
	out := make(types.Snapshot, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// FindByRole returns every known member currently holding r.
func (t *Table) FindByRole(r types.Role) types.Snapshot {
	return t.Snapshot().FindByRole(r)
}

// PriorityRank splits the known membership (excluding self) into
// those with a higher priority than self and the rest (lower or equal
// priority) (spec §4.4 ownPriorityRank).
func (t *Table) PriorityRank(self string) (higher, lower types.Snapshot) {
	selfEntry, ok := t.entries[self]
	if !ok {
		return nil, nil
	}
	for addr, e := range t.entries {
		if addr == self {
			continue
		}
		if e.Priority > selfEntry.Priority {
			higher = append(higher, e.Clone())
		} else {
			lower = append(lower, e.Clone())
		}
	}
	sort.Slice(higher, func(i, j int) bool { return higher[i].Address < higher[j].Address })
	sort.Slice(lower, func(i, j int) bool { return lower[i].Address < lower[j].Address })
	return higher, lower
}

// MinPriority returns the entry with the smallest priority across the
// whole table (including self), used to assign GATEWAY (spec §4.7).
func (t *Table) MinPriority() (types.Entry, bool) {
	var best types.Entry
	found := false
	for _, e := range t.entries {
		if !found || e.Priority < best.Priority {
			best = e
			found = true
		}
	}
	return best, found
}

// Len reports how many members are known, including self.
func (t *Table) Len() int {
	return len(t.entries)
}
