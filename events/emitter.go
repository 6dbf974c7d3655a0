// Package events is the pub/sub broker nodes and the indexer use to
// observe consensus activity without coupling directly to node's
// internals.
package events

import (
	"sync"

	"go.uber.org/zap"
)

// EventType labels what happened.
type EventType string

const (
	// EventBlockProposed fires when a node proposes a block (itself, as
	// leader). Data carries "height" and "block_hash".
	EventBlockProposed EventType = "block_proposed"
	// EventVoteCast fires each time a node tallies a signed PREVOTE or
	// PRECOMMIT from a validator, its own self-delivered votes included,
	// so one cast vote yields one event per node that tallies it. NodeID
	// is the tallying node. Data carries "vote_type", "height",
	// "block_hash", "voter".
	EventVoteCast EventType = "vote_cast"
	// EventBlockFinalized fires when a node finalizes a block at a
	// height. Data carries "height", "block_hash", "node_id",
	// "state_commit_ok".
	EventBlockFinalized EventType = "block_finalized"
)

// Event carries a typed payload emitted after a state change.
type Event struct {
	Type   EventType
	NodeID string
	Data   map[string]any
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	log      *zap.Logger
}

// NewEmitter creates an Emitter with no subscribers. log may be nil, in
// which case panic-recovery diagnostics are discarded.
func NewEmitter(log *zap.Logger) *Emitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Emitter{handlers: make(map[EventType][]Handler), log: log}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously. Each
// handler is guarded by panic recovery so a misbehaving subscriber
// cannot crash a node or halt the simulation.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()
	for _, h := range handlers {
		e.dispatch(h, ev)
	}
}

func (e *Emitter) dispatch(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("event handler panicked", zap.String("event_type", string(ev.Type)), zap.Any("recovered", r))
		}
	}()
	h(ev)
}
