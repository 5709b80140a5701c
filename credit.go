// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan

// creditCounter is the circular credit counter of spec.md §3: a
// non-negative count of element-carrying messages sent to one
// receiver but not yet acknowledged, bounded by capacity. It is
// shared by every buffered P2P variant (SPSC, MPSC, MPMC) rather than
// reimplemented per variant, per spec.md §9's "shared helpers ...
// belong in dedicated modules referenced by multiple variants".
//
// creditCounter is not safe for concurrent use: each sender owns one
// instance per peer receiver and touches it only from its own rank's
// single goroutine, consistent with "one logical task per process".
type creditCounter struct {
	outstanding int
	capacity    int
}

func newCreditCounter(capacity int) creditCounter {
	return creditCounter{capacity: capacity}
}

// Full reports whether the counter has reached its bound.
func (c *creditCounter) Full() bool { return c.outstanding >= c.capacity }

// Free returns the number of remaining credits.
func (c *creditCounter) Free() int { return c.capacity - c.outstanding }

// Take consumes one credit. Panics if called when Full(), since every
// caller is required to check Full() (or drain acks) first — this
// mirrors invariant 2 of spec.md §8: outstanding never exceeds
// capacity.
func (c *creditCounter) Take() {
	if c.outstanding >= c.capacity {
		panic("mpichan: credit counter overdrawn")
	}
	c.outstanding++
}

// Release returns one credit, on receipt of an ack.
func (c *creditCounter) Release() {
	if c.outstanding == 0 {
		panic("mpichan: credit counter released below zero")
	}
	c.outstanding--
}
