// Package collab declares the control surface the cluster core
// requires from its external collaborators (spec §6). None of these
// are implemented here — the core only ever calls through the
// interfaces, so the CRDT editing server, HTTP gateway, message
// broker, and document store can live in entirely separate modules.
package collab

import "context"

// Document is the fixed shape the Storage contract exchanges with
// Editing/Gateway. Its ID is a monotonically increasing numeric value
// rendered as a string (spec §6).
type Document struct {
	ID   string
	Name string
}

// Storage is the document store contract. getDocument resolves to
// "not found" rather than an error when the id is unknown.
type Storage interface {
	Start(ctx context.Context) error
	GetDocuments(ctx context.Context) ([]Document, error)
	GetDocument(ctx context.Context, id string) (Document, bool, error)
	CreateDocument(ctx context.Context, name string) (Document, error)
}

// BrokerServer is the message-broker server contract, run only by the
// node currently holding MESSAGE_BROKER.
type BrokerServer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// BrokerClient is the message-broker client contract, run by every
// node that does not itself hold MESSAGE_BROKER.
type BrokerClient interface {
	Start(ctx context.Context, brokerAddress string) error
	Stop(ctx context.Context) error
}

// Gateway is the HTTP gateway contract, run only by the node
// currently holding GATEWAY.
type Gateway interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// EditingServer is the CRDT document-editing fabric contract, run by
// every node holding EDITING.
type EditingServer interface {
	Start(ctx context.Context, gatewayAddress string, storage Storage, messaging BrokerClient) error
	Stop(ctx context.Context) error
}

// Set bundles every collaborator the Role Controller drives. A field
// left nil is treated as "nothing to start/stop for that role" —
// useful in tests that only exercise a subset of roles.
type Set struct {
	BrokerServer  BrokerServer
	BrokerClient  BrokerClient
	Gateway       Gateway
	EditingServer EditingServer
	Storage       Storage
}
