package crypto

// Context is a domain-separation prefix prepended to a signed payload.
// A signature produced under one context must fail verification under
// any other context, even for an identical payload.
type Context string

// The three signing contexts used across the system. Every entity signs
// under exactly one of these; mixing them is a protocol violation.
const (
	ContextTx     Context = "TX: CHAIN_2025"
	ContextHeader Context = "HEADER: CHAIN_2025"
	ContextVote   Context = "VOTE: CHAIN_2025"
)
