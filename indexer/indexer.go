// Package indexer maintains a queryable record of finalized blocks and
// cast votes, rebuilt by subscribing to the same events nodes emit
// during a run, so a caller can ask "what did node X finalize at
// height H" after the simulation stops without re-walking every node's
// in-memory state.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/tolelom/bftsim/events"
	"github.com/tolelom/bftsim/storage"
)

const (
	prefixHeightHash = "idx:height:"       // height -> canonical finalized hash (first writer wins)
	prefixNodeHeight = "idx:node:height:"  // node|height -> hash that node finalized
	prefixVoteLog    = "idx:votes:height:" // height -> []voteRecord, append-only audit trail
)

type voteRecord struct {
	Type      string `json:"type"`
	BlockHash string `json:"block_hash"`
	Voter     string `json:"voter"`
}

// Indexer subscribes to chain events and maintains secondary lookup
// tables over a storage.DB.
type Indexer struct {
	db  storage.DB
	log *zap.Logger
}

// New creates an Indexer backed by db and subscribes it to emitter.
func New(db storage.DB, emitter *events.Emitter, log *zap.Logger) *Indexer {
	if log == nil {
		log = zap.NewNop()
	}
	idx := &Indexer{db: db, log: log}
	emitter.Subscribe(events.EventBlockFinalized, idx.onBlockFinalized)
	emitter.Subscribe(events.EventVoteCast, idx.onVoteCast)
	return idx
}

// GetFinalizedHash returns the first hash recorded as finalized at
// height, across all nodes.
func (idx *Indexer) GetFinalizedHash(height uint64) (string, bool) {
	data, err := idx.db.Get([]byte(heightKey(height)))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// GetNodeFinalizedHash returns the hash nodeID finalized at height, if
// recorded.
func (idx *Indexer) GetNodeFinalizedHash(nodeID string, height uint64) (string, bool) {
	data, err := idx.db.Get([]byte(nodeHeightKey(nodeID, height)))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// VotesAtHeight returns the recorded (type, block hash, voter) triples
// cast at height, in arrival order.
func (idx *Indexer) VotesAtHeight(height uint64) ([]voteRecord, error) {
	data, err := idx.db.Get([]byte(prefixVoteLog + strconv.FormatUint(height, 10)))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []voteRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("indexer unmarshal votes: %w", err)
	}
	return records, nil
}

func heightKey(height uint64) string {
	return prefixHeightHash + strconv.FormatUint(height, 10)
}

func nodeHeightKey(nodeID string, height uint64) string {
	return prefixNodeHeight + nodeID + "|" + strconv.FormatUint(height, 10)
}

func (idx *Indexer) onBlockFinalized(ev events.Event) {
	height, ok := ev.Data["height"].(uint64)
	if !ok {
		return
	}
	blockHash, _ := ev.Data["block_hash"].(string)
	if blockHash == "" {
		return
	}

	batch := idx.db.NewBatch()
	batch.Set([]byte(nodeHeightKey(ev.NodeID, height)), []byte(blockHash))

	// First writer for a height sets the canonical record; later writers
	// from other nodes never overwrite it, since the canonical record's
	// purpose is to detect disagreement (mismatches are still visible
	// per-node via GetNodeFinalizedHash).
	key := []byte(heightKey(height))
	if _, err := idx.db.Get(key); errors.Is(err, storage.ErrNotFound) {
		batch.Set(key, []byte(blockHash))
	}
	if err := batch.Write(); err != nil {
		idx.log.Error("indexer write failed", zap.String("node", ev.NodeID), zap.Uint64("height", height), zap.Error(err))
	}
}

func (idx *Indexer) onVoteCast(ev events.Event) {
	height, ok := ev.Data["height"].(uint64)
	if !ok {
		return
	}
	blockHash, _ := ev.Data["block_hash"].(string)
	voteType, _ := ev.Data["vote_type"].(string)
	voter, _ := ev.Data["voter"].(string)
	if blockHash == "" || voter == "" {
		return
	}

	key := []byte(prefixVoteLog + strconv.FormatUint(height, 10))
	records, err := idx.VotesAtHeight(height)
	if err != nil {
		idx.log.Error("indexer vote read failed", zap.Uint64("height", height), zap.Error(err))
		return
	}
	records = append(records, voteRecord{Type: voteType, BlockHash: blockHash, Voter: voter})
	data, err := json.Marshal(records)
	if err != nil {
		idx.log.Error("indexer vote marshal failed", zap.Error(err))
		return
	}
	if err := idx.db.Set(key, data); err != nil {
		idx.log.Error("indexer vote write failed", zap.Uint64("height", height), zap.Error(err))
	}
}
