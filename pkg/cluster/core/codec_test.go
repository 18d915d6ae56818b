package core

import (
	"errors"
	"testing"

	"github.com/edgemesh/clustercore/pkg/cluster/types"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	nodes := []types.NodeInfo{
		{Address: "10.0.0.1", Roles: []string{"MESSAGE_BROKER", "EDITING"}},
		{Address: "10.0.0.2", Roles: []string{"EDITING"}},
	}

	cases := []types.Message{
		{Type: types.Join},
		{Type: types.Election},
		{Type: types.OK},
		{Type: types.Hello, Nodes: nodes},
		{Type: types.AckHello, Nodes: nodes},
		{Type: types.Coordinator, Nodes: nodes},
		{Type: types.AckCoordinator, Nodes: nodes},
	}

	for _, want := range cases {
		raw, err := Encode(want)
		if err != nil {
			t.Fatalf("encoding %v: %v", want.Type, err)
		}
		got, err := Decode(raw)
		if err != nil {
			t.Fatalf("decoding %v: %v", want.Type, err)
		}
		if got.Type != want.Type {
			t.Errorf("type mismatch: want %v, got %v", want.Type, got.Type)
		}
		if len(got.Nodes) != len(want.Nodes) {
			t.Errorf("node count mismatch for %v: want %d, got %d", want.Type, len(want.Nodes), len(got.Nodes))
		}
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := map[string][]byte{
		"empty":             []byte(""),
		"unknown keyword":   []byte("BOGUS"),
		"missing payload":   []byte("HELLO"),
		"non-json payload":  []byte("HELLO not-json"),
		"non-array payload": []byte(`HELLO {"address":"10.0.0.1"}`),
		"missing address":   []byte(`HELLO [{"roles":[]}]`),
		"invalid address":   []byte(`HELLO [{"address":"999.0.0.1","roles":[]}]`),
		"missing roles":     []byte(`HELLO [{"address":"10.0.0.1"}]`),
		"unknown role":      []byte(`HELLO [{"address":"10.0.0.1","roles":["BOGUS"]}]`),
		"ack missing sub":   []byte("ACK"),
		"ack unknown sub":   []byte("ACK BOGUS"),
	}

	for name, raw := range cases {
		_, err := Decode(raw)
		if err == nil {
			t.Errorf("%s: expected an error, got none", name)
			continue
		}
		if !errors.Is(err, types.ErrMalformedDatagram) {
			t.Errorf("%s: expected ErrMalformedDatagram, got %v", name, err)
		}
	}
}

func TestDecodeAssignIsRecognizedButUnhandled(t *testing.T) {
	msg, err := Decode([]byte("ASSIGN"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Type != types.Assign {
		t.Errorf("expected Assign, got %v", msg.Type)
	}
}

func TestEncodeUnknownTypeFails(t *testing.T) {
	if _, err := Encode(types.Message{Type: types.Assign}); err == nil {
		t.Error("expected encoding ASSIGN to fail, it has no wire form defined")
	}
}
