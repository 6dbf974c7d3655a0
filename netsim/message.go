package netsim

import "github.com/tolelom/bftsim/chain"

// Message is a plain (non block-dissemination) payload: a vote or a
// transaction. Blocks are never sent as a plain Message — they always
// go through the header/body handshake below.
type Message struct {
	Vote *chain.Vote
	Tx   *chain.Transaction
}

// BlockHeader is everything about a block except its transaction list,
// sent ahead of the body so a receiver can validate and accept it
// before committing to buffer the (potentially large) body.
type BlockHeader struct {
	Height     uint64
	ParentHash string
	StateHash  string
	Proposer   string
	Timestamp  int64
	Signature  string
	BlockHash  string
}

// BlockBody carries the transaction list for a block whose hash is
// BlockHash. The simulator withholds delivery of a body until the
// receiver has accepted the matching header.
type BlockBody struct {
	BlockHash string
	Txs       []chain.Transaction
}

// Receiver is implemented by whatever the simulator delivers events
// to — node.Node in production, a test double in netsim's own tests.
// Keeping this interface in netsim (rather than importing node) avoids
// a dependency cycle: node depends on netsim, not the other way round.
type Receiver interface {
	Receive(senderID string, msg Message)
	ReceiveHeader(senderID string, header BlockHeader)
	ReceiveBody(senderID string, body BlockBody)
}
