// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fifo is a generic fixed-size-element byte queue used only
// by mpichan's own tests, to record and replay the sequence of
// elements a variant's receiver observed without pulling in a real
// channel for test bookkeeping. It is explicitly out of the system's
// core per spec.md §1 ("the generic FIFO byte-queue utility used
// only by tests").
package fifo

// Queue is an unbounded FIFO of fixed-size byte elements, growing a
// mask-indexed ring the way catrate's ring buffer grows (see
// DESIGN.md) rather than reallocating on every push.
type Queue struct {
	elementSize int
	buf         [][]byte
	r, w        uint
}

// New creates an empty queue for elements of elementSize bytes.
func New(elementSize int) *Queue {
	return &Queue{elementSize: elementSize, buf: make([][]byte, 8)}
}

func (q *Queue) mask(v uint) uint { return v & (uint(len(q.buf)) - 1) }

// Len returns the number of elements currently queued.
func (q *Queue) Len() int { return int(q.w - q.r) }

// Push appends a copy of elem (which must be elementSize bytes) to
// the queue, growing the backing ring if it is full.
func (q *Queue) Push(elem []byte) {
	if len(elem) != q.elementSize {
		panic("fifo: element size mismatch")
	}
	if q.Len() == len(q.buf) {
		q.grow()
	}
	cp := make([]byte, q.elementSize)
	copy(cp, elem)
	q.buf[q.mask(q.w)] = cp
	q.w++
}

// Pop removes and returns the oldest element, or (nil, false) if the
// queue is empty.
func (q *Queue) Pop() ([]byte, bool) {
	if q.Len() == 0 {
		return nil, false
	}
	v := q.buf[q.mask(q.r)]
	q.buf[q.mask(q.r)] = nil
	q.r++
	return v, true
}

func (q *Queue) grow() {
	n := len(q.buf) * 2
	nb := make([][]byte, n)
	for i := 0; i < q.Len(); i++ {
		nb[i] = q.buf[q.mask(q.r+uint(i))]
	}
	q.buf = nb
	q.w = uint(q.Len())
	q.r = 0
}
