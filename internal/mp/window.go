// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mp

import "code.hybscloud.com/spin"

// Box[T] is a one-sided "window": one T per rank, collectively
// allocated so that every rank ends up holding a pointer to the same
// backing array. Since every rank lives in the same address space
// here, "remote" access to another rank's window is simply touching
// *Box[T].At(otherRank) directly — the atomicity and ordering that
// real RMA would buy over a network is provided instead by the
// atomix-typed fields callers put inside T (see e.g. spscRingWindow,
// mcsParticipant). Box itself adds no synchronization: callers must use
// atomic fields within T for anything a remote rank can race on, per
// spec.md §9's "atomic accesses must be explicit and distinct from
// bulk put/get".
type Box[T any] struct {
	slots []*T
}

// NewBox collectively allocates a Box[T] over comm: every rank must
// call NewBox the same number of times, in the same order, as every
// other rank (a window-creation call is collective in real MPI too).
// All ranks receive a pointer to the identical, single underlying
// Box[T].
func NewBox[T any](c *Comm) *Box[T] {
	ex := c.nextExchange()
	box := ex.once(c.Rank(), func() any {
		b := &Box[T]{slots: make([]*T, c.Size())}
		for i := range b.slots {
			b.slots[i] = new(T)
		}
		return b
	})
	return box.(*Box[T])
}

// At returns the window slot owned by rank. Reads/writes through
// atomic fields of *T are safe from any rank; non-atomic fields are
// only safe to touch from the owner, or from a remote rank during a
// window epoch in which the owner is provably not concurrently
// touching the same bytes (bulk put/get, per spec.md §9).
func (b *Box[T]) At(rank int) *T { return b.slots[rank] }

// Size returns the number of per-rank slots in the window.
func (b *Box[T]) Size() int { return len(b.slots) }

// LockAll and UnlockAll mark a passive-target RMA access epoch across
// the whole window. Under real RMA they establish the ordering and
// visibility a remote put/get needs; here, since "remote" access is
// already direct memory access through atomix-typed fields, the
// epoch carries no extra work. They exist as explicit call sites so
// that the variants above read exactly like the protocol they are
// grounded on (spec.md §4.6-4.8 bracket every RMA op with lock/unlock).
func (b *Box[T]) LockAll()   {}
func (b *Box[T]) UnlockAll() {}

// Flush guarantees that any put issued by the calling rank before
// Flush is visible to the target before Flush returns. Atomix stores
// used with release ordering already provide this, so Flush is a
// documentation-only call site.
func (b *Box[T]) Flush() {}

// PollUntil busy-waits, re-checking cond on every iteration and
// backing off between checks via [spin.Wait], until cond reports
// true. This is the "local-memory-sync primitive" spec.md §9 requires
// every busy-wait loop over window state to call before re-reading.
func PollUntil(cond func() bool) {
	sw := spin.Wait{}
	for !cond() {
		sw.Once()
	}
}

// RawWindow is a plain byte-addressed window used by the one RMA
// variant that has no sub-structure of its own: SPSC RMA SYNC, whose
// receiver exposes exactly element_size bytes and whose synchronization
// is fence-style (a full Barrier) rather than field-level atomics.
type RawWindow struct {
	data []byte
}

// NewRawWindowBox collectively allocates a Box[RawWindow] whose every
// slot holds an element-size byte buffer.
func NewRawWindowBox(c *Comm, elementSize int) *Box[RawWindow] {
	ex := c.nextExchange()
	box := ex.once(c.Rank(), func() any {
		b := &Box[RawWindow]{slots: make([]*RawWindow, c.Size())}
		for i := range b.slots {
			b.slots[i] = &RawWindow{data: make([]byte, elementSize)}
		}
		return b
	})
	return box.(*Box[RawWindow])
}

// Put copies payload into the window (a bulk, non-atomic operation —
// callers must only issue it when no concurrent reader exists, which
// the fence bracketing around SPSC RMA SYNC's send/receive
// guarantees).
func (w *RawWindow) Put(payload []byte) { copy(w.data, payload) }

// Get copies the window's current contents into buf.
func (w *RawWindow) Get(buf []byte) { copy(buf, w.data) }
