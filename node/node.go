// Package node implements per-validator orchestration: propose when
// leader, process incoming blocks/votes/transactions, drive the
// prevote -> precommit -> finalize progression, and advance height.
package node

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tolelom/bftsim/chain"
	"github.com/tolelom/bftsim/consensus"
	"github.com/tolelom/bftsim/crypto"
	"github.com/tolelom/bftsim/events"
	"github.com/tolelom/bftsim/metrics"
	"github.com/tolelom/bftsim/netsim"
	"github.com/tolelom/bftsim/statemachine"
)

// DefaultRetryCount is how many times each broadcast message is
// repeated per peer to compensate for a lossy channel, absent explicit
// configuration.
const DefaultRetryCount = 4

// HeightState bundles the one-shot flags that gate a validator's
// progression through a single height's voting round. Both reset when
// the node advances to the next height.
type HeightState struct {
	HasPrevoted     bool
	HasPrecommitted bool
}

// Node is one validator's view of the system: its own key pair, the
// consensus and state machine it drives, and the bookkeeping needed to
// dedup messages and correlate two-phase block dissemination.
type Node struct {
	ID         string
	priv       crypto.PrivateKey
	pub        string // hex-encoded public key, also this node's validator identity
	validators []string
	peers      []string
	retryCount int

	transport Transport
	engine    *consensus.Engine
	sm        *statemachine.StateMachine
	emitter   *events.Emitter
	metrics   *metrics.Metrics
	log       *zap.Logger

	mu              sync.Mutex
	currentHeight   uint64
	heightState     HeightState
	finalizedHeight uint64

	blocks  map[uint64]chain.Block
	mempool []chain.Transaction

	seenVotes map[string]struct{}
	seenTxs   map[string]struct{}

	pendingHeaders map[string]netsim.BlockHeader
	receivedBodies map[string]netsim.BlockBody

	// proposedAt tracks the virtual time a height's block was proposed,
	// so TimeToFinalize can be observed on finalize.
	proposedAt map[uint64]float64

	lastOwnNonce     uint64
	haveLastOwnNonce bool
}

// New builds a Node for validator id, holding priv as its signing key.
// validators is the ordered membership list used for round-robin leader
// election and consensus quorum; it must include pub's hex encoding.
func New(id string, priv crypto.PrivateKey, validators []string, transport Transport, emitter *events.Emitter, m *metrics.Metrics, log *zap.Logger, retryCount int) *Node {
	if log == nil {
		log = zap.NewNop()
	}
	if retryCount <= 0 {
		retryCount = DefaultRetryCount
	}
	if emitter == nil {
		emitter = events.NewEmitter(log)
	}
	return &Node{
		ID:             id,
		priv:           priv,
		pub:            priv.Public().Hex(),
		validators:     validators,
		transport:      transport,
		engine:         consensus.New(validators),
		sm:             statemachine.New(),
		emitter:        emitter,
		metrics:        m,
		log:            log,
		retryCount:     retryCount,
		currentHeight:  1,
		blocks:         make(map[uint64]chain.Block),
		seenVotes:      make(map[string]struct{}),
		seenTxs:        make(map[string]struct{}),
		pendingHeaders: make(map[string]netsim.BlockHeader),
		receivedBodies: make(map[string]netsim.BlockBody),
		proposedAt:     make(map[uint64]float64),
	}
}

// AddPeer registers peerID as a broadcast target, skipping self and
// duplicates.
func (n *Node) AddPeer(peerID string) {
	if peerID == n.ID {
		return
	}
	for _, p := range n.peers {
		if p == peerID {
			return
		}
	}
	n.peers = append(n.peers, peerID)
}

// PubKeyHex returns this node's validator identity.
func (n *Node) PubKeyHex() string { return n.pub }

// CurrentHeight returns the height this node is currently voting on.
func (n *Node) CurrentHeight() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.currentHeight
}

// FinalizedHeight returns the highest height this node has finalized.
func (n *Node) FinalizedHeight() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.finalizedHeight
}

// FinalizedBlockHash returns the hash this node finalized at height, if
// any.
func (n *Node) FinalizedBlockHash(height uint64) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	b, ok := n.blocks[height]
	if !ok || height > n.finalizedHeight {
		return "", false
	}
	return b.Hash(), true
}

func voteKey(v chain.Vote) string {
	return fmt.Sprintf("%s|%d|%s|%s", v.Type, v.Height, v.BlockHash, v.Voter)
}

func fieldStr(key, value string) zap.Field { return zap.String(key, value) }

func fieldU64(key string, value uint64) zap.Field { return zap.Uint64(key, value) }
