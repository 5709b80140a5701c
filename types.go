// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mpichan provides a typed, bounded channel abstraction
// between ranked processes of a distributed-memory parallel job,
// coordinated through a message-passing substrate (internal/mp). A
// channel carries fixed-size opaque byte elements from one or more
// sender ranks to one or more receiver ranks, preserving FIFO order
// per (sender, receiver) pair and bounding buffered traffic.
//
// Twelve implementations realize the same four-operation contract —
// Send, Receive, Peek, Free — with twelve different concurrency
// algorithms, selected along three axes: substrate (two-sided P2P vs
// one-sided RMA), participant cardinality (SPSC, MPSC, MPMC), and
// capacity discipline (synchronous rendezvous vs buffered). [Alloc]
// picks the variant collectively; callers only ever see a [Handle].
//
// # Basic usage
//
//	h, err := mpichan.Alloc(4, 3, mpichan.P2P, comm, isReceiver)
//	if err != nil {
//	    // every participant observes the same failure
//	}
//	defer h.Free()
//
//	if !isReceiver {
//	    var v int32 = 42
//	    buf := make([]byte, 4)
//	    binary.LittleEndian.PutUint32(buf, uint32(v))
//	    err := h.Send(buf)
//	} else {
//	    buf := make([]byte, 4)
//	    err := h.Receive(buf)
//	}
//
// # Non-goals
//
// Dynamic resizing of capacity, reconfiguration of sender/receiver
// membership after construction, cross-element framing (each
// operation transfers exactly one fixed-size element), interop with
// threads within a single process, and type-level payload checking
// (payloads are opaque byte blobs) are all explicitly out of scope.
package mpichan

// Substrate selects the communication mechanism a channel is built
// on: two-sided message passing, or one-sided remote-memory access.
type Substrate int

const (
	// P2P channels move data with two-sided send/receive messages.
	P2P Substrate = 0
	// RMA channels move data with one-sided put/get and atomics over
	// shared windows.
	RMA Substrate = 1
)

// String returns the wire-visible name of the substrate.
func (s Substrate) String() string {
	switch s {
	case P2P:
		return "P2P"
	case RMA:
		return "RMA"
	default:
		return "unknown"
	}
}

// Cardinality classifies a channel by how many senders and receivers
// participate.
type Cardinality int

const (
	// SPSC is single-producer, single-consumer.
	SPSC Cardinality = 0
	// MPSC is multi-producer, single-consumer.
	MPSC Cardinality = 1
	// MPMC is multi-producer, multi-consumer.
	MPMC Cardinality = 2
)

// String returns the wire-visible name of the cardinality.
func (c Cardinality) String() string {
	switch c {
	case SPSC:
		return "SPSC"
	case MPSC:
		return "MPSC"
	case MPMC:
		return "MPMC"
	default:
		return "unknown"
	}
}

// cardinalityOf classifies a channel from its gathered role counts,
// per spec.md §4.2 step 8's "variant = (substrate, cardinality(|senders|,
// |receivers|), capacity > 0)".
func cardinalityOf(numSenders, numReceivers int) Cardinality {
	switch {
	case numSenders <= 1 && numReceivers <= 1:
		return SPSC
	case numSenders > 1 && numReceivers <= 1:
		return MPSC
	default:
		return MPMC
	}
}

// variant is the vtable every one of the twelve implementations
// satisfies. It replaces the source's per-handle function-pointer
// dispatch (spec.md §9) with a tagged interface: [Alloc] constructs
// exactly one concrete variant type and stores it behind this
// interface on the [Handle].
type variant interface {
	// send transmits one element whose bytes are payload. Called only
	// when the caller is a sender: Handle.Send returns ErrMisuse to a
	// receiver before the call is reached.
	send(payload []byte) error
	// receive blocks until one element is available and copies it
	// into buf, which is exactly elementSize bytes.
	receive(buf []byte) error
	// peek reports a sender's free credits, or 1/0 for a receiver's
	// pending-message status (the SPSC RMA buffered receiver reports
	// its pending-element count). Returns ErrUnsupported for
	// synchronous variants.
	peek() (int, error)
	// free drains any in-flight protocol traffic the variant owns and
	// releases resources. Collective: every participant must call it.
	free() error
}
