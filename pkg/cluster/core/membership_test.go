package core

import (
	"testing"

	"github.com/edgemesh/clustercore/pkg/cluster/types"
)

func TestUpsertAddAndMerge(t *testing.T) {
	tbl := NewTable()

	res := tbl.Upsert(types.Entry{Address: "10.0.0.1", Priority: 1})
	if !res.Added {
		t.Fatal("expected first upsert to report Added")
	}

	res = tbl.Upsert(types.Entry{Address: "10.0.0.1", Priority: 9, Roles: types.NewRoleSet(types.Editing)})
	if res.Added {
		t.Error("expected second upsert for same address to not report Added")
	}
	if !res.RolesChanged {
		t.Error("expected roles to be reported changed")
	}

	e, ok := tbl.Get("10.0.0.1")
	if !ok {
		t.Fatal("expected entry to be present")
	}
	if e.Priority != 9 {
		t.Errorf("expected priority to be updated to 9, got %d", e.Priority)
	}
	if !e.Roles.Has(types.Editing) {
		t.Error("expected roles to be merged in")
	}
}

func TestRemoveAndHas(t *testing.T) {
	tbl := NewTable()
	tbl.Upsert(types.Entry{Address: "10.0.0.1", Priority: 1})
	if !tbl.Has("10.0.0.1") {
		t.Fatal("expected member to be present")
	}
	tbl.Remove("10.0.0.1")
	if tbl.Has("10.0.0.1") {
		t.Error("expected member to be removed")
	}
}

func TestPriorityRank(t *testing.T) {
	tbl := NewTable()
	tbl.Upsert(types.Entry{Address: "self", Priority: 5})
	tbl.Upsert(types.Entry{Address: "higher", Priority: 9})
	tbl.Upsert(types.Entry{Address: "lower", Priority: 1})

	higher, lower := tbl.PriorityRank("self")
	if len(higher) != 1 || higher[0].Address != "higher" {
		t.Errorf("expected exactly [higher], got %v", higher)
	}
	if len(lower) != 1 || lower[0].Address != "lower" {
		t.Errorf("expected exactly [lower], got %v", lower)
	}
}

func TestMinPriority(t *testing.T) {
	tbl := NewTable()
	tbl.Upsert(types.Entry{Address: "a", Priority: 5})
	tbl.Upsert(types.Entry{Address: "b", Priority: 1})
	tbl.Upsert(types.Entry{Address: "c", Priority: 9})

	min, ok := tbl.MinPriority()
	if !ok || min.Address != "b" {
		t.Errorf("expected b to have minimum priority, got %v", min)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	tbl := NewTable()
	tbl.Upsert(types.Entry{Address: "a", Priority: 1, Roles: types.NewRoleSet(types.Editing)})

	snap := tbl.Snapshot()
	snap[0].Roles = snap[0].Roles.With(types.Gateway)

	e, _ := tbl.Get("a")
	if e.Roles.Has(types.Gateway) {
		t.Error("mutating a snapshot must not affect the underlying table")
	}
}
