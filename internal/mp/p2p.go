// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mp

import "sync"

// AnySource matches a message from any rank, mirroring MPI_ANY_SOURCE.
const AnySource = -1

// AnyTag matches a message with any tag, mirroring MPI_ANY_TAG.
const AnyTag = -1

// message is one pending or in-flight P2P message.
type message struct {
	from    int
	tag     int
	payload []byte
	// done is non-nil for a synchronous-mode send: it is closed once a
	// matching Recv has copied the payload out, which is what makes
	// Send block "until matched" the way spec.md requires.
	done chan struct{}
}

// mailbox holds the messages addressed to one rank within one context.
type mailbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []*message
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *mailbox) push(msg *message) {
	m.mu.Lock()
	m.pending = append(m.pending, msg)
	m.cond.Broadcast()
	m.mu.Unlock()
}

// match finds the first pending message from src (or AnySource) with
// tag (or AnyTag), without removing it.
func (m *mailbox) match(src, tag int) (int, bool) {
	for i, msg := range m.pending {
		if (src == AnySource || msg.from == src) && (tag == AnyTag || msg.tag == tag) {
			return i, true
		}
	}
	return 0, false
}

// Send performs a synchronous-mode send: it blocks until a matching
// Recv on dst has consumed the payload, per spec.md's "synchronous-
// mode send (completes only when matched)".
func (c *Comm) Send(dst, tag int, payload []byte) error {
	if dst < 0 || dst >= c.ctx.size {
		return ErrBadRank
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	msg := &message{from: c.rank, tag: tag, payload: buf, done: make(chan struct{})}
	c.ctx.mailboxes[dst].push(msg)
	<-msg.done
	return nil
}

// BufferedSend enqueues payload for dst and returns immediately,
// without waiting for a matching Recv — the buffered-send half of
// spec.md's P2P BUF variants. The caller is responsible for having
// already reserved space in the process-wide managed buffer
// (internal/bufmgr): BufferedSend itself never blocks or fails for
// capacity reasons, matching real MPI_Bsend's contract once a buffer
// is attached.
func (c *Comm) BufferedSend(dst, tag int, payload []byte) error {
	if dst < 0 || dst >= c.ctx.size {
		return ErrBadRank
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	c.ctx.mailboxes[dst].push(&message{from: c.rank, tag: tag, payload: buf})
	return nil
}

// Recv blocks until a message matching (src, tag) is available in the
// caller's own mailbox, then copies its payload into buf (which must
// be at least len(payload) bytes) and removes the message. It returns
// the actual source rank and tag, so AnySource/AnyTag callers can
// discover what they received.
func (c *Comm) Recv(src, tag int, buf []byte) (from, gotTag int, err error) {
	box := c.ctx.mailboxes[c.rank]
	box.mu.Lock()
	for {
		if i, ok := box.match(src, tag); ok {
			msg := box.pending[i]
			box.pending = append(box.pending[:i], box.pending[i+1:]...)
			box.mu.Unlock()
			n := copy(buf, msg.payload)
			_ = n
			if msg.done != nil {
				close(msg.done)
			}
			return msg.from, msg.tag, nil
		}
		box.cond.Wait()
	}
}

// Iprobe reports whether a message matching (src, tag) is currently
// pending, without consuming it. It never blocks — the non-blocking
// probe spec.md's BUF variants drain acks/payloads with.
func (c *Comm) Iprobe(src, tag int) (ok bool, from, gotTag int) {
	box := c.ctx.mailboxes[c.rank]
	box.mu.Lock()
	defer box.mu.Unlock()
	if i, found := box.match(src, tag); found {
		return true, box.pending[i].from, box.pending[i].tag
	}
	return false, 0, 0
}

// Probe blocks until a message matching (src, tag) is pending, without
// consuming it.
func (c *Comm) Probe(src, tag int) (from, gotTag int) {
	box := c.ctx.mailboxes[c.rank]
	box.mu.Lock()
	defer box.mu.Unlock()
	for {
		if i, ok := box.match(src, tag); ok {
			return box.pending[i].from, box.pending[i].tag
		}
		box.cond.Wait()
	}
}
