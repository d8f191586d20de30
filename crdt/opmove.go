package crdt

// OpMove is the intent "make Child a child of Parent with Meta, as of Timestamp".
type OpMove[ID TreeID, M TreeMeta, A Actor] struct {
	Timestamp Timestamp[A] `json:"timestamp"`
	Parent    ID           `json:"parent"`
	Meta      M            `json:"meta"`
	Child     ID           `json:"child"`
}

// OpMoveTx is an ordered batch of moves applied one after another.
type OpMoveTx[ID TreeID, M TreeMeta, A Actor] []OpMove[ID, M, A]

// Move is an unstamped move, used when minting a transaction.
type Move[ID TreeID, M TreeMeta] struct {
	Parent ID
	Meta   M
	Child  ID
}

// LogOpMove is an applied operation together with the placement the child
// had before the operation. OldNode is nil if the child was not in the tree.
type LogOpMove[ID TreeID, M TreeMeta, A Actor] struct {
	Op      OpMove[ID, M, A] `json:"op"`
	OldNode *TreeNode[ID, M] `json:"old_node,omitempty"`
}
