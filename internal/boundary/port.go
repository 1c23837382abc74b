package boundary

import (
	"io"
	"sync"
)

// Port is one end of a bidirectional message channel. The two ends are
// connected by a pair of in-memory pipes carrying length-prefixed frames, so
// messages are copied through the pipe rather than shared. Ports are
// move-eligible: a Port embedded in a result transfers to the receiver, who
// can then talk to whoever holds the peer end.
type Port struct {
	r *io.PipeReader
	w *io.PipeWriter

	closeOnce sync.Once
}

// NewPortPair creates two connected ports. A message sent on either end is
// received on the other.
func NewPortPair() (*Port, *Port) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	a := &Port{r: ar, w: aw}
	b := &Port{r: br, w: bw}
	return a, b
}

// Send delivers one message to the peer end. It blocks until the peer reads
// or either end is closed.
func (p *Port) Send(msg []byte) error {
	return WriteFrame(p.w, msg)
}

// Recv blocks until a message arrives from the peer end. It returns io.EOF
// once the peer closes.
func (p *Port) Recv() ([]byte, error) {
	return ReadFrame(p.r)
}

// Close shuts down this end of the port. Pending and future Recv calls on
// the peer return io.EOF; Close is idempotent.
func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		p.w.Close()
		p.r.Close()
	})
	return nil
}
