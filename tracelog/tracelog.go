// Package tracelog writes the simulator's deterministic event log: one
// line per network event, in the exact format external tooling and the
// determinism property in SPEC_FULL.md §8 depend on. It deliberately
// does not use telemetry/zap — a structured logger's own buffering and
// field-ordering choices would be one more place non-determinism could
// sneak in, and this writer's whole job is to not be that place.
package tracelog

import (
	"fmt"
	"io"
)

// Writer formats and writes trace lines to an underlying io.Writer.
type Writer struct {
	w io.Writer
}

// New wraps w. w is typically an *os.File in production and a
// *bytes.Buffer in tests that assert on exact log content.
func New(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (t *Writer) line(timestamp float64, event, sender, receiver, extra string) {
	if t == nil {
		return
	}
	if extra != "" {
		fmt.Fprintf(t.w, "%.3f %s %s->%s %s\n", timestamp, event, sender, receiver, extra)
		return
	}
	fmt.Fprintf(t.w, "%.3f %s %s->%s\n", timestamp, event, sender, receiver)
}

// Send logs a plain-message send (vote or transaction broadcast).
func (t *Writer) Send(ts float64, sender, receiver string) { t.line(ts, "SEND", sender, receiver, "") }

// Recv logs delivery of a plain message.
func (t *Writer) Recv(ts float64, sender, receiver string) { t.line(ts, "RECV", sender, receiver, "") }

// Drop logs a message dropped by the loss gate.
func (t *Writer) Drop(ts float64, sender, receiver string) { t.line(ts, "DROP", sender, receiver, "") }

// Duplicate logs a duplicate event scheduled by the duplicate gate.
func (t *Writer) Duplicate(ts float64, sender, receiver string) {
	t.line(ts, "DUPLICATE", sender, receiver, "")
}

// Block logs a directed pair entering the rate-limit block state.
func (t *Writer) Block(ts float64, sender, receiver string) {
	t.line(ts, "BLOCK", sender, receiver, "(exceeded rate limit)")
}

// Unblock logs a directed pair's rate-limit block expiring.
func (t *Writer) Unblock(ts float64, sender, receiver string) {
	t.line(ts, "UNBLOCK", sender, receiver, "")
}

// Blocked logs a send suppressed because the pair is currently blocked.
func (t *Writer) Blocked(ts float64, sender, receiver string) {
	t.line(ts, "BLOCKED", sender, receiver, "(rate limit)")
}

// SendHeader logs a header send for height.
func (t *Writer) SendHeader(ts float64, sender, receiver string, height uint64) {
	t.line(ts, "SEND_HEADER", sender, receiver, fmt.Sprintf("height=%d", height))
}

// RecvHeader logs header delivery.
func (t *Writer) RecvHeader(ts float64, sender, receiver string) {
	t.line(ts, "RECV_HEADER", sender, receiver, "")
}

// DropHeader logs a header dropped by the loss gate.
func (t *Writer) DropHeader(ts float64, sender, receiver string) {
	t.line(ts, "DROP_HEADER", sender, receiver, "")
}

// SendBody logs a body send. Unlike the header, a body carries no
// height field of its own — that lives on the header it is paired
// with — so this line has no extra detail.
func (t *Writer) SendBody(ts float64, sender, receiver string) {
	t.line(ts, "SEND_BODY", sender, receiver, "")
}

// RecvBody logs body delivery.
func (t *Writer) RecvBody(ts float64, sender, receiver string) {
	t.line(ts, "RECV_BODY", sender, receiver, "")
}

// DropBody logs a body dropped by the loss gate.
func (t *Writer) DropBody(ts float64, sender, receiver string) {
	t.line(ts, "DROP_BODY", sender, receiver, "")
}

// PendingBody logs a body parked because its header has not yet been
// accepted by the receiver.
func (t *Writer) PendingBody(ts float64, sender, receiver string) {
	t.line(ts, "PENDING_BODY", sender, receiver, "(waiting for header)")
}
