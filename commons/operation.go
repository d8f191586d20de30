package commons

import "github.com/burntcarrot/treecrdt/crdt"

// Node IDs, metadata (node names) and actors are all strings on the wire.
// Node IDs are UUIDs except for the well-known nodes below.
type (
	Operation   = crdt.OpMove[string, string, string]
	Transaction = crdt.OpMoveTx[string, string, string]
)

const (
	// RootID is the top of the shared namespace. It is never placed itself.
	RootID = "root"

	// TrashID collects removed nodes. Node IDs are never reused, so a
	// removed node is moved here rather than deleted.
	TrashID = "trash"
)
