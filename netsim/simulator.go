// Package netsim is the deterministic event-driven network substrate:
// a virtual clock, a min-heap of timed events, unreliable-channel
// semantics (loss, duplication, delay), per-pair rate limiting, and the
// two-phase header/body block-dissemination handshake. It never
// inspects message contents for delivery purposes, except for the
// header/body correlation the handshake itself requires.
package netsim

import (
	"container/heap"
	"math/rand"

	"github.com/tolelom/bftsim/metrics"
	"github.com/tolelom/bftsim/tracelog"
)

// Config is the subset of network configuration the simulator needs.
// cmd/bftsim translates config.Network into this shape so netsim does
// not depend on the ambient config package.
type Config struct {
	Seed                 int64
	MinDelay             float64
	MaxDelay             float64
	DropProb             float64
	DuplicateProb        float64
	MaxMessagesPerSecond int
	BlockDuration        float64
}

type pairKey struct{ sender, receiver string }

type bodyKey struct{ sender, receiver, blockHash string }

type windowState struct {
	count       int
	windowStart float64
}

// Simulator is the shared transport every node sends through and
// receives deliveries from.
type Simulator struct {
	cfg Config
	rng *rand.Rand

	heap    eventHeap
	nextSeq uint64

	currentTime float64

	nodes map[string]Receiver

	counts  map[pairKey]*windowState
	blocked map[pairKey]float64 // unblock time

	pendingBodies   map[bodyKey]BlockBody
	acceptedHeaders map[string]map[string]struct{} // receiver -> block hashes

	log *tracelog.Writer
	m   *metrics.Metrics
}

// New builds a Simulator with its own seeded PRNG — never the global
// math/rand source, since the determinism contract requires a run's
// entire draw sequence to depend only on cfg.Seed.
func New(cfg Config, log *tracelog.Writer, m *metrics.Metrics) *Simulator {
	return &Simulator{
		cfg:             cfg,
		rng:             rand.New(rand.NewSource(cfg.Seed)),
		nodes:           make(map[string]Receiver),
		counts:          make(map[pairKey]*windowState),
		blocked:         make(map[pairKey]float64),
		pendingBodies:   make(map[bodyKey]BlockBody),
		acceptedHeaders: make(map[string]map[string]struct{}),
		log:             log,
		m:               m,
	}
}

// RegisterNode makes id a valid delivery target.
func (s *Simulator) RegisterNode(id string, r Receiver) {
	s.nodes[id] = r
}

// CurrentTime returns the virtual clock's value as of the most recently
// dispatched event.
func (s *Simulator) CurrentTime() float64 {
	return s.currentTime
}

func (s *Simulator) schedule(e *event) {
	e.seq = s.nextSeq
	s.nextSeq++
	heap.Push(&s.heap, e)
}

// checkRateLimit implements the shared gate used by SendMessage,
// SendHeader, and SendBody: a fixed 1-second window per directed pair,
// restarted once a second or more has passed since it opened, and a
// cooldown once the window's count is exceeded.
func (s *Simulator) checkRateLimit(sender, receiver string) bool {
	key := pairKey{sender, receiver}

	if until, ok := s.blocked[key]; ok {
		if s.currentTime < until {
			s.log.Blocked(s.currentTime, sender, receiver)
			return false
		}
		delete(s.blocked, key)
		s.log.Unblock(s.currentTime, sender, receiver)
	}

	st, ok := s.counts[key]
	if !ok {
		st = &windowState{}
		s.counts[key] = st
	}
	if s.currentTime-st.windowStart >= 1.0 {
		st.count = 0
		st.windowStart = s.currentTime
	}
	st.count++

	limit := s.cfg.MaxMessagesPerSecond
	if limit <= 0 {
		limit = 100
	}
	if st.count > limit {
		blockDuration := s.cfg.BlockDuration
		if blockDuration <= 0 {
			blockDuration = 1.0
		}
		s.blocked[key] = s.currentTime + blockDuration
		s.m.IncRateLimitBlocks()
		s.log.Block(s.currentTime, sender, receiver)
		return false
	}
	return true
}

func (s *Simulator) drawDelay() float64 {
	minD, maxD := s.cfg.MinDelay, s.cfg.MaxDelay
	if maxD <= minD {
		return minD
	}
	return minD + s.rng.Float64()*(maxD-minD)
}

// SendMessage queues a plain Message (vote or transaction) for delivery
// to receiver, subject to the rate limit, loss, delay, and duplication
// gates, in that order.
func (s *Simulator) SendMessage(sender, receiver string, msg Message) {
	if !s.checkRateLimit(sender, receiver) {
		return
	}
	if s.rng.Float64() < s.cfg.DropProb {
		s.log.Drop(s.currentTime, sender, receiver)
		s.m.IncDropped()
		return
	}

	delay := s.drawDelay()
	deliveryTime := s.currentTime + delay
	s.schedule(&event{deliveryTime: deliveryTime, sender: sender, receiver: receiver, kind: kindMessage, msg: msg})
	s.log.Send(s.currentTime, sender, receiver)
	s.m.IncSent()

	if s.rng.Float64() < s.cfg.DuplicateProb {
		extra := s.drawDelay()
		s.schedule(&event{deliveryTime: deliveryTime + extra, sender: sender, receiver: receiver, kind: kindMessage, msg: msg})
		s.log.Duplicate(s.currentTime, sender, receiver)
		s.m.IncDuplicated()
	}
}

// SendHeader queues header for delivery to receiver. Headers are never
// duplicated — only SendMessage draws from the duplicate gate, matching
// the handshake's correlation guarantees.
func (s *Simulator) SendHeader(sender, receiver string, header BlockHeader) {
	if !s.checkRateLimit(sender, receiver) {
		return
	}
	if s.rng.Float64() < s.cfg.DropProb {
		s.log.DropHeader(s.currentTime, sender, receiver)
		s.m.IncDropped()
		return
	}
	deliveryTime := s.currentTime + s.drawDelay()
	s.schedule(&event{deliveryTime: deliveryTime, sender: sender, receiver: receiver, kind: kindHeader, header: header})
	s.log.SendHeader(s.currentTime, sender, receiver, header.Height)
	s.m.IncSent()
}

// SendBody queues body for delivery to receiver, unless receiver has
// not yet accepted the matching header — in which case it is parked in
// pendingBodies and re-driven from AcceptHeader.
func (s *Simulator) SendBody(sender, receiver string, body BlockBody) {
	if !s.checkRateLimit(sender, receiver) {
		return
	}
	if !s.headerAccepted(receiver, body.BlockHash) {
		s.pendingBodies[bodyKey{sender, receiver, body.BlockHash}] = body
		s.log.PendingBody(s.currentTime, sender, receiver)
		return
	}
	if s.rng.Float64() < s.cfg.DropProb {
		s.log.DropBody(s.currentTime, sender, receiver)
		s.m.IncDropped()
		return
	}
	deliveryTime := s.currentTime + s.drawDelay()
	s.schedule(&event{deliveryTime: deliveryTime, sender: sender, receiver: receiver, kind: kindBody, body: body})
	s.log.SendBody(s.currentTime, sender, receiver)
	s.m.IncSent()
}

func (s *Simulator) headerAccepted(receiver, blockHash string) bool {
	set, ok := s.acceptedHeaders[receiver]
	if !ok {
		return false
	}
	_, ok = set[blockHash]
	return ok
}

// AcceptHeader marks blockHash as accepted by receiver and re-drives
// every body that had been parked waiting on this exact header.
func (s *Simulator) AcceptHeader(receiver, blockHash string) {
	set, ok := s.acceptedHeaders[receiver]
	if !ok {
		set = make(map[string]struct{})
		s.acceptedHeaders[receiver] = set
	}
	set[blockHash] = struct{}{}

	var toSend []bodyKey
	for key := range s.pendingBodies {
		if key.receiver == receiver && key.blockHash == blockHash {
			toSend = append(toSend, key)
		}
	}
	for _, key := range toSend {
		body := s.pendingBodies[key]
		delete(s.pendingBodies, key)
		s.SendBody(key.sender, key.receiver, body)
	}
}

// Run pops events in (deliveryTime, seq) order until the heap is empty
// or the next event's time exceeds maxTime, dispatching each to its
// receiver's inbound handler. The virtual clock only advances as events
// are popped; a handler runs to completion before the next pop.
func (s *Simulator) Run(maxTime float64) {
	for s.heap.Len() > 0 {
		e := heap.Pop(&s.heap).(*event)
		if e.deliveryTime > maxTime {
			return
		}
		s.currentTime = e.deliveryTime

		node, ok := s.nodes[e.receiver]
		if !ok {
			continue
		}
		switch e.kind {
		case kindHeader:
			node.ReceiveHeader(e.sender, e.header)
			s.log.RecvHeader(s.currentTime, e.sender, e.receiver)
		case kindBody:
			node.ReceiveBody(e.sender, e.body)
			s.log.RecvBody(s.currentTime, e.sender, e.receiver)
		default:
			node.Receive(e.sender, e.msg)
			s.log.Recv(s.currentTime, e.sender, e.receiver)
		}
	}
}
