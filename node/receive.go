package node

import (
	"github.com/tolelom/bftsim/chain"
	"github.com/tolelom/bftsim/netsim"
)

// Receive implements netsim.Receiver for plain messages: votes and
// transactions. Blocks never arrive here — they go through
// ReceiveHeader/ReceiveBody.
func (n *Node) Receive(senderID string, msg netsim.Message) {
	switch {
	case msg.Vote != nil:
		n.handleVote(*msg.Vote)
	case msg.Tx != nil:
		n.handleTransaction(*msg.Tx)
	}
}

// ReceiveHeader implements netsim.Receiver. It verifies the header's
// signature (always over an empty-txs payload, per chain.Block's
// signing contract) and, if valid and for the height currently being
// voted on, accepts it and merges with any body that already arrived.
func (n *Node) ReceiveHeader(senderID string, header netsim.BlockHeader) {
	n.mu.Lock()
	current := n.currentHeight
	n.mu.Unlock()
	if header.Height != current {
		return
	}

	headerBlock := chain.Block{
		Height:     header.Height,
		ParentHash: header.ParentHash,
		StateHash:  header.StateHash,
		Proposer:   header.Proposer,
		Timestamp:  header.Timestamp,
		Signature:  header.Signature,
	}
	if err := headerBlock.ValidateSignature(); err != nil {
		n.log.Debug("dropping header with invalid signature")
		return
	}

	n.mu.Lock()
	n.pendingHeaders[header.BlockHash] = header
	_, haveBody := n.receivedBodies[header.BlockHash]
	n.mu.Unlock()

	n.transport.AcceptHeader(n.ID, header.BlockHash)

	if haveBody {
		n.processCompleteBlock(header.BlockHash)
	}
}

// ReceiveBody implements netsim.Receiver. It buffers the body and, if
// the matching header has already been accepted, merges immediately.
func (n *Node) ReceiveBody(senderID string, body netsim.BlockBody) {
	n.mu.Lock()
	n.receivedBodies[body.BlockHash] = body
	_, haveHeader := n.pendingHeaders[body.BlockHash]
	n.mu.Unlock()

	if haveHeader {
		n.processCompleteBlock(body.BlockHash)
	}
}

// processCompleteBlock merges a buffered header and body sharing
// blockHash into a full Block and hands it to handleBlock. Note this
// does not re-verify that the merged block actually hashes to
// blockHash — the header's signature does not cover the transaction
// list (see chain.Block), so an observer controlling message delivery
// (not the proposer) could in principle pair a header with a mismatched
// body. Detecting that would require Byzantine-equivocation handling,
// which this system does not attempt.
func (n *Node) processCompleteBlock(blockHash string) {
	n.mu.Lock()
	header, haveHeader := n.pendingHeaders[blockHash]
	body, haveBody := n.receivedBodies[blockHash]
	n.mu.Unlock()
	if !haveHeader || !haveBody {
		return
	}

	block := chain.Block{
		Height:     header.Height,
		ParentHash: header.ParentHash,
		Txs:        body.Txs,
		StateHash:  header.StateHash,
		Proposer:   header.Proposer,
		Timestamp:  header.Timestamp,
		Signature:  header.Signature,
	}

	n.handleBlock(block)

	n.mu.Lock()
	delete(n.pendingHeaders, blockHash)
	delete(n.receivedBodies, blockHash)
	n.mu.Unlock()
}

// handleTransaction admits tx to the mempool if it validates and is not
// already present (deduped by signature).
func (n *Node) handleTransaction(tx chain.Transaction) {
	if err := n.sm.ValidateTransaction(tx); err != nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, seen := n.seenTxs[tx.Signature]; seen {
		return
	}
	n.seenTxs[tx.Signature] = struct{}{}
	n.mempool = append(n.mempool, tx)
}

// CreateTransaction builds, signs, and broadcasts a transaction writing
// value to key under this node's own identity, using the next nonce
// after the last one this node itself issued (0 for its first).
// It does not add the transaction to its own mempool directly — like
// the source this was distilled from, a self-originated transaction
// only enters this node's mempool if it comes back over the network,
// which a well-behaved simulator peer set does not do.
func (n *Node) CreateTransaction(key, value string) chain.Transaction {
	nonce := uint64(0)
	if last, ok := n.lastNonce(); ok {
		nonce = last + 1
	}
	tx := chain.Transaction{Sender: n.pub, Key: key, Value: value, Nonce: nonce}
	tx.Sign(n.priv)

	n.mu.Lock()
	n.lastOwnNonce = nonce
	n.haveLastOwnNonce = true
	n.mu.Unlock()

	n.Broadcast(netsim.Message{Tx: &tx})
	return tx
}

// lastNonce returns the last nonce this node used for a
// self-originated transaction. statemachine's nonce table is not
// consulted here because a self-originated transaction is never
// reflected back into this node's own mempool or applied state until
// some node's proposed block including it is finalized.
func (n *Node) lastNonce() (uint64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastOwnNonce, n.haveLastOwnNonce
}
