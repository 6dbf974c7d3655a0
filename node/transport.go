package node

import "github.com/tolelom/bftsim/netsim"

// Transport is the node↔simulator boundary. A Node holds a Transport
// handle, never a pointer back into the simulator's internals — the
// simulator owns nodes by ID and dispatches into them through
// netsim.Receiver, which *Node implements.
type Transport interface {
	SendMessage(sender, receiver string, msg netsim.Message)
	SendHeader(sender, receiver string, header netsim.BlockHeader)
	SendBody(sender, receiver string, body netsim.BlockBody)
	AcceptHeader(receiver, blockHash string)
	CurrentTime() float64
}
