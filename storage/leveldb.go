// Package storage is the durability layer behind indexer.Indexer. A
// run's secondary index (which hash each node finalized at each
// height, the vote log backing a post-run safety scan) can live in
// either backend. cmd/bftsim always opens a LevelDB index under
// config.DataDir (which config.Validate requires), so every CLI run's
// index outlives the process that built it; MemDB keeps an index in
// process memory only and is what the indexer tests use.
package storage

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned by Get for a key the index never recorded —
// indexer.Indexer treats it as "nothing finalized yet at this height",
// not as an error worth propagating to a caller.
var ErrNotFound = errors.New("not found")

// Batch groups the handful of writes one finalize or vote-cast event
// produces (a node/height fact, and sometimes the canonical
// first-writer-wins height fact alongside it) so a reader never
// observes one written without the other.
type Batch interface {
	Set(key, value []byte)
	Delete(key []byte)
	Write() error
	Reset()
}

// DB is the contract indexer.Indexer runs its queries against,
// satisfied by MemDB and LevelDB interchangeably — a run can be
// pointed at either without the indexer package knowing which one it
// got.
type DB interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	NewIterator(prefix []byte) Iterator
	NewBatch() Batch
	Close() error
}

// Iterator walks the keys under one of indexer's prefixes
// (idx:height:, idx:node:height:, idx:votes:height:) in ascending key
// order, so a scan over "idx:node:height:validator-0|" visits that
// node's heights in the same order regardless of which DB produced
// the iterator.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

// LevelDB implements DB on top of goleveldb. cmd/bftsim opens one at
// config.DataDir/index on every run, so an index survives the run that
// built it.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB opens (or creates) a LevelDB database at path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	val, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return val, err
}

func (l *LevelDB) Set(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *LevelDB) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

func (l *LevelDB) NewIterator(prefix []byte) Iterator {
	return l.db.NewIterator(util.BytesPrefix(prefix), nil)
}

func (l *LevelDB) NewBatch() Batch {
	return &levelBatch{batch: new(leveldb.Batch), db: l.db}
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}

type levelBatch struct {
	batch *leveldb.Batch
	db    *leveldb.DB
}

func (b *levelBatch) Set(key, value []byte) { b.batch.Put(key, value) }
func (b *levelBatch) Delete(key []byte)     { b.batch.Delete(key) }
func (b *levelBatch) Reset()                { b.batch.Reset() }
func (b *levelBatch) Write() error          { return b.db.Write(b.batch, nil) }
