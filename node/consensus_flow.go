package node

import (
	"github.com/tolelom/bftsim/chain"
	"github.com/tolelom/bftsim/events"
	"github.com/tolelom/bftsim/netsim"
)

// StartConsensus computes this height's leader by strict round robin
// and proposes a block if this node is it. A missed proposal (leader
// crash) leaves the height stuck — there is no view change.
func (n *Node) StartConsensus() {
	n.mu.Lock()
	height := n.currentHeight
	n.mu.Unlock()

	if len(n.validators) == 0 {
		return
	}
	leader := n.validators[(height-1)%uint64(len(n.validators))]
	if leader == n.pub {
		n.CreateAndProposeBlock()
	}
}

// CreateAndProposeBlock builds this height's block from the current
// mempool snapshot, signs it, disseminates it via the two-phase
// header/body handshake, and hands it to itself synchronously — the
// proposer never waits on its own network round trip.
func (n *Node) CreateAndProposeBlock() {
	n.mu.Lock()
	height := n.currentHeight
	parentHash := chain.GenesisHash
	if height > 1 {
		if prev, ok := n.blocks[height-1]; ok {
			parentHash = prev.Hash()
		}
	}
	txs := append([]chain.Transaction(nil), n.mempool...)
	n.mu.Unlock()

	block := chain.Block{
		Height:     height,
		ParentHash: parentHash,
		Txs:        txs,
		StateHash:  n.sm.StateHash(),
		Proposer:   n.pub,
		Timestamp:  int64(n.transport.CurrentTime()),
	}
	block.Sign(n.priv)

	n.mu.Lock()
	n.proposedAt[height] = n.transport.CurrentTime()
	n.mu.Unlock()

	n.log.Info("proposing block", fieldStr("node", n.ID), fieldU64("height", height))
	n.emitter.Emit(events.Event{Type: events.EventBlockProposed, NodeID: n.ID, Data: map[string]any{
		"height": height, "block_hash": block.Hash(),
	}})

	n.BroadcastBlockHeaderBody(block)
	n.handleBlock(block)
}

// BroadcastBlockHeaderBody disseminates block as a header followed by a
// body, retryCount times per peer, exactly as specified: the header's
// signature always covers an empty txs list (chain.Block.Sign already
// encodes this), so the header can be validated before the body ever
// arrives.
func (n *Node) BroadcastBlockHeaderBody(block chain.Block) {
	blockHash := block.Hash()
	header := netsim.BlockHeader{
		Height:     block.Height,
		ParentHash: block.ParentHash,
		StateHash:  block.StateHash,
		Proposer:   block.Proposer,
		Timestamp:  block.Timestamp,
		Signature:  block.Signature,
		BlockHash:  blockHash,
	}
	body := netsim.BlockBody{BlockHash: blockHash, Txs: block.Txs}

	for _, peer := range n.peers {
		for i := 0; i < n.retryCount; i++ {
			n.transport.SendHeader(n.ID, peer, header)
			n.transport.SendBody(n.ID, peer, body)
		}
	}
}

// Broadcast sends msg to every peer, retryCount times each, to
// compensate for a lossy channel. It never reaches this node itself —
// self-delivery of votes happens via a direct call from broadcastVote.
func (n *Node) Broadcast(msg netsim.Message) {
	for _, peer := range n.peers {
		for i := 0; i < n.retryCount; i++ {
			n.transport.SendMessage(n.ID, peer, msg)
		}
	}
}

func (n *Node) broadcastVote(voteType chain.VoteType, blockHash string) {
	n.mu.Lock()
	height := n.currentHeight
	n.mu.Unlock()

	v := chain.Vote{Type: voteType, Height: height, BlockHash: blockHash, Voter: n.pub}
	v.Sign(n.priv)

	n.Broadcast(netsim.Message{Vote: &v})
	n.handleVote(v)
}

// handleBlock ignores the block if it is not for the height this node
// is currently voting on, or if its signature does not verify; a
// mismatch of either kind is a silent drop, never an error surfaced to
// the caller. Otherwise it stores the block and casts this node's one
// PREVOTE for the height.
func (n *Node) handleBlock(block chain.Block) {
	n.mu.Lock()
	if block.Height != n.currentHeight {
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()

	if err := block.ValidateSignature(); err != nil {
		n.log.Debug("dropping block with invalid signature", fieldStr("node", n.ID), fieldU64("height", block.Height))
		return
	}

	n.mu.Lock()
	n.blocks[block.Height] = block
	alreadyPrevoted := n.heightState.HasPrevoted
	n.mu.Unlock()

	if !alreadyPrevoted {
		n.mu.Lock()
		n.heightState.HasPrevoted = true
		n.mu.Unlock()
		n.broadcastVote(chain.Prevote, block.Hash())
	}
}

// handleVote dedups by (type, height, block hash, voter), verifies the
// signature, tallies the vote, and advances the voting phase if a
// quorum was just reached.
func (n *Node) handleVote(v chain.Vote) {
	key := voteKey(v)
	n.mu.Lock()
	if _, seen := n.seenVotes[key]; seen {
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()

	if err := v.ValidateSignature(); err != nil {
		n.log.Debug("dropping vote with invalid signature", fieldStr("node", n.ID))
		return
	}

	n.mu.Lock()
	n.seenVotes[key] = struct{}{}
	n.mu.Unlock()

	if !n.engine.AddVote(v) {
		return
	}
	n.emitter.Emit(events.Event{Type: events.EventVoteCast, NodeID: n.ID, Data: map[string]any{
		"vote_type": string(v.Type), "height": v.Height, "block_hash": v.BlockHash, "voter": v.Voter,
	}})

	switch v.Type {
	case chain.Prevote:
		if !n.engine.CheckThreshold(v.Height, chain.Prevote, v.BlockHash) {
			return
		}
		n.mu.Lock()
		shouldPrecommit := !n.heightState.HasPrecommitted && v.Height == n.currentHeight
		if shouldPrecommit {
			n.heightState.HasPrecommitted = true
		}
		n.mu.Unlock()
		if shouldPrecommit {
			n.log.Info("prevote quorum reached, precommitting", fieldStr("node", n.ID), fieldU64("height", v.Height))
			n.broadcastVote(chain.Precommit, v.BlockHash)
		}

	case chain.Precommit:
		if !n.engine.CheckThreshold(v.Height, chain.Precommit, v.BlockHash) {
			return
		}
		n.mu.Lock()
		shouldFinalize := n.finalizedHeight < v.Height
		n.mu.Unlock()
		if shouldFinalize {
			n.finalize(v.Height, v.BlockHash)
		}
	}
}

// finalize unconditionally advances finalizedHeight and the height
// counter, even if the locally stored block's hash does not match
// blockHash or its state commitment fails to apply — an accepted
// asymmetry preserved from the source this was distilled from.
func (n *Node) finalize(height uint64, blockHash string) {
	n.log.Info("finalizing block", fieldStr("node", n.ID), fieldU64("height", height))

	n.mu.Lock()
	n.finalizedHeight = height
	block, haveBlock := n.blocks[height]
	proposedAt, haveProposedAt := n.proposedAt[height]
	n.mu.Unlock()

	stateCommitOK := false
	if haveBlock && block.Hash() == blockHash {
		if n.sm.ApplyBlock(block) {
			stateCommitOK = true
			n.mu.Lock()
			n.mempool = nil
			n.mu.Unlock()
		}
	}

	n.emitter.Emit(events.Event{Type: events.EventBlockFinalized, NodeID: n.ID, Data: map[string]any{
		"height": height, "block_hash": blockHash, "state_commit_ok": stateCommitOK,
	}})

	if haveProposedAt {
		n.metrics.ObserveTimeToFinalize(n.transport.CurrentTime() - proposedAt)
	}
	n.metrics.SetFinalizedHeight(n.ID, height)

	n.mu.Lock()
	n.currentHeight++
	n.heightState = HeightState{}
	n.mu.Unlock()
}
