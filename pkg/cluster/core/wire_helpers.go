package core

import "github.com/edgemesh/clustercore/pkg/cluster/types"

func joinMessage() types.Message { return types.Message{Type: types.Join} }

func helloMessage(nodes []types.NodeInfo) types.Message {
	return types.Message{Type: types.Hello, Nodes: nodes}
}

func ackHelloMessage(nodes []types.NodeInfo) types.Message {
	return types.Message{Type: types.AckHello, Nodes: nodes}
}

func electionMessage() types.Message { return types.Message{Type: types.Election} }

func okMessage() types.Message { return types.Message{Type: types.OK} }

func coordinatorMessage(nodes []types.NodeInfo) types.Message {
	return types.Message{Type: types.Coordinator, Nodes: nodes}
}

func ackCoordinatorMessage(nodes []types.NodeInfo) types.Message {
	return types.Message{Type: types.AckCoordinator, Nodes: nodes}
}

func entryFor(address string, priority uint32) types.Entry {
	return types.Entry{Address: address, Priority: priority, Roles: types.NewRoleSet()}
}
