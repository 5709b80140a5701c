// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan

import (
	"fmt"

	"code.hybscloud.com/mpichan/internal/mp"
)

// Handle is an opaque channel value: common metadata plus one of the
// twelve variant implementations behind [variant]. Immutable after
// [Alloc] returns successfully; released by [Handle.Free]. A Handle
// must not be used concurrently from more than one goroutine on the
// same rank — spec.md's concurrency model assumes one logical task
// per process, and two concurrent operations on the same handle from
// the same process are never permitted.
type Handle struct {
	elementSize int
	capacity    int
	cardinality Cardinality
	substrate   Substrate

	myRank        int
	isReceiver    bool
	receiverRanks []int
	senderRanks   []int

	comm *mp.Comm // the private, duplicated context (spec.md §3)
	impl variant
}

// ElementSize returns the fixed size, in bytes, of one element.
func (h *Handle) ElementSize() int { return h.elementSize }

// Capacity returns the channel's capacity; 0 means synchronous.
func (h *Handle) Capacity() int { return h.capacity }

// CardinalityTag returns 0/1/2 for SPSC/MPSC/MPMC.
func (h *Handle) CardinalityTag() Cardinality { return h.cardinality }

// SubstrateTag returns 0/1 for P2P/RMA.
func (h *Handle) SubstrateTag() Substrate { return h.substrate }

// CommSize returns the size of the channel's private communicator,
// equal to the size of the communicator Alloc was called on.
func (h *Handle) CommSize() int { return h.comm.Size() }

// SenderCount returns the number of sender ranks.
func (h *Handle) SenderCount() int { return len(h.senderRanks) }

// ReceiverCount returns the number of receiver ranks.
func (h *Handle) ReceiverCount() int { return len(h.receiverRanks) }

// IsReceiver reports whether the calling rank is a receiver on this
// channel.
func (h *Handle) IsReceiver() bool { return h.isReceiver }

// Rank returns the calling rank's rank within the channel's
// communicator.
func (h *Handle) Rank() int { return h.myRank }

// Send transmits one element of exactly ElementSize() bytes. Only
// valid when the caller is a sender. Returns ErrMisuse if called by a
// receiver, ErrSubstrateFailure if the underlying MP call failed.
func (h *Handle) Send(payload []byte) error {
	if h.isReceiver {
		return fmt.Errorf("%w: Send called by a receiver", ErrMisuse)
	}
	if len(payload) != h.elementSize {
		return fmt.Errorf("%w: payload length %d != element size %d", ErrMisuse, len(payload), h.elementSize)
	}
	if err := h.impl.send(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrSubstrateFailure, err)
	}
	return nil
}

// Receive blocks until one element is available and copies it into
// buf, which must be exactly ElementSize() bytes. Only valid when the
// caller is a receiver.
func (h *Handle) Receive(buf []byte) error {
	if !h.isReceiver {
		return fmt.Errorf("%w: Receive called by a sender", ErrMisuse)
	}
	if len(buf) != h.elementSize {
		return fmt.Errorf("%w: buffer length %d != element size %d", ErrMisuse, len(buf), h.elementSize)
	}
	if err := h.impl.receive(buf); err != nil {
		return fmt.Errorf("%w: %v", ErrSubstrateFailure, err)
	}
	return nil
}

// Peek is advisory: for a sender of a buffered variant it returns the
// number of free credits; for a receiver it returns 1 if a message
// appears pending, 0 otherwise, except on the SPSC RMA buffered
// variant, whose receiver gets the number of pending elements. A
// false negative is acceptable — the
// substrate only guarantees eventual, not immediate, visibility of
// newly arrived messages. Returns ErrUnsupported on synchronous
// variants.
func (h *Handle) Peek() (int, error) {
	return h.impl.peek()
}

// Free is collective: every participant must call it exactly once.
// It drains any in-flight protocol traffic the variant is responsible
// for before releasing resources, so that nothing remains in transit
// on the channel's private context.
func (h *Handle) Free() error {
	return h.impl.free()
}
