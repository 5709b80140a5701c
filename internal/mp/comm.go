// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mp

import "sync"

// World is a fixed-size communicator: n rank goroutines that can
// address each other by integer rank. It is the in-process stand-in
// for MPI_COMM_WORLD.
type World struct {
	size int
	ctx  *context
}

// NewWorld creates a World of n ranks. n must be >= 1.
func NewWorld(n int) *World {
	if n < 1 {
		panic("mp: world size must be >= 1")
	}
	return &World{size: n, ctx: newContext(n, nil)}
}

// Size returns the number of ranks in the world.
func (w *World) Size() int { return w.size }

// Rank returns the Comm through which rank r participates in the
// world's default context. Distinct ranks must use distinct Comm
// values returned from this call (or from a collective Dup), never
// share one — matching "one logical task per process".
func (w *World) Rank(r int) *Comm {
	if r < 0 || r >= w.size {
		panic("mp: rank out of range")
	}
	return &Comm{w: w, rank: r, ctx: w.ctx}
}

// context is the shared state behind one communicator generation: its
// mailboxes (for P2P) and its collective-exchange slots (for
// Allgather/Allreduce/Barrier). Duplicating a communicator allocates a
// fresh context so that traffic on the duplicate can never collide
// with traffic on the parent — the "private context" of spec.md §3.
type context struct {
	size      int
	parent    *context
	mailboxes []*mailbox

	mu        sync.Mutex
	exchanges map[int]*exchange
}

func newContext(n int, parent *context) *context {
	c := &context{
		size:      n,
		parent:    parent,
		mailboxes: make([]*mailbox, n),
		exchanges: make(map[int]*exchange),
	}
	for i := range c.mailboxes {
		c.mailboxes[i] = newMailbox()
	}
	return c
}

// Comm is one rank's view of a communicator (or a duplicate of one).
// A Comm is owned by exactly one rank's goroutine; it is not safe to
// share a single Comm value across ranks.
type Comm struct {
	w       *World
	rank    int
	ctx     *context
	opSeq   int // per-rank local collective call counter for this ctx
	dupSeq  int // per-rank local Dup call counter for this ctx
}

// Rank returns this Comm's rank within its communicator.
func (c *Comm) Rank() int { return c.rank }

// Size returns the number of ranks in this Comm's communicator.
func (c *Comm) Size() int { return c.ctx.size }

// Dup duplicates the communicator, returning a Comm over a brand new
// private context. Collective: every rank must call Dup the same
// number of times, in the same order, as every other rank — exactly
// as real MPI_Comm_dup requires. The Nth Dup call on a given context,
// across all ranks, is guaranteed to observe the same new context,
// via the same barrier-exchange machinery used for collectives.
func (c *Comm) Dup() *Comm {
	idx := c.dupSeq
	c.dupSeq++

	c.ctx.mu.Lock()
	ex, ok := c.ctx.exchanges[dupExchangeKey(idx)]
	if !ok {
		ex = newExchange(c.ctx.size)
		c.ctx.exchanges[dupExchangeKey(idx)] = ex
	}
	c.ctx.mu.Unlock()

	// All ranks race to create the same child context exactly once,
	// by letting the exchange's single "first arrival" slot win.
	newCtxBox := ex.once(c.rank, func() any {
		return newContext(c.ctx.size, c.ctx)
	})

	return &Comm{w: c.w, rank: c.rank, ctx: newCtxBox.(*context)}
}

// dupExchangeKey maps a Dup generation index into the exchange
// keyspace, distinct from ordinary collective opSeq keys.
func dupExchangeKey(idx int) int { return -(idx + 1) }

// nextExchange returns the exchange for this rank's Nth collective
// call on this context, creating it on first use. Because every rank
// calls the same sequence of collectives on a given Comm (a
// requirement inherited directly from real MPI), the Nth call from
// every rank addresses the same exchange.
func (c *Comm) nextExchange() *exchange {
	idx := c.opSeq
	c.opSeq++

	c.ctx.mu.Lock()
	ex, ok := c.ctx.exchanges[idx]
	if !ok {
		ex = newExchange(c.ctx.size)
		c.ctx.exchanges[idx] = ex
	}
	c.ctx.mu.Unlock()
	return ex
}

// Barrier blocks until every rank in the communicator has called
// Barrier the same number of times.
func (c *Comm) Barrier() {
	ex := c.nextExchange()
	ex.round(c.rank, struct{}{})
}

// AllgatherBool performs a collective all-gather of one bool per
// rank, returning the full vector ordered by rank.
func (c *Comm) AllgatherBool(v bool) []bool {
	ex := c.nextExchange()
	raw := ex.round(c.rank, v)
	out := make([]bool, len(raw))
	for i, x := range raw {
		out[i] = x.(bool)
	}
	return out
}

// AllreduceAndU64Pair performs a collective bitwise-AND all-reduce of
// a two-word value, used by Alloc to cross-check (element_size,
// capacity) across every participant (spec.md §3's construction
// invariant).
func (c *Comm) AllreduceAndU64Pair(a, b uint64) (uint64, uint64) {
	ex := c.nextExchange()
	raw := ex.round(c.rank, [2]uint64{a, b})
	ra, rb := raw[0].([2]uint64)[0], raw[0].([2]uint64)[1]
	for _, x := range raw[1:] {
		p := x.([2]uint64)
		ra &= p[0]
		rb &= p[1]
	}
	return ra, rb
}

// AllreduceSumInt performs a collective sum all-reduce, used for the
// "every peer observes success, or every peer observes failure"
// propagation pattern of spec.md §4.2.
func (c *Comm) AllreduceSumInt(v int) int {
	ex := c.nextExchange()
	raw := ex.round(c.rank, v)
	sum := 0
	for _, x := range raw {
		sum += x.(int)
	}
	return sum
}

// exchange is a single reusable barrier-exchange slot: n ranks each
// contribute a value and every rank receives the full, rank-ordered
// vector of contributions once the last one arrives.
type exchange struct {
	mu      sync.Mutex
	cond    *sync.Cond
	n       int
	gen     int
	arrived int
	data    []any
	onceVal any
	onceSet bool
}

func newExchange(n int) *exchange {
	e := &exchange{n: n, data: make([]any, n)}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// round runs one barrier-exchange: the calling rank contributes val
// at index rank and blocks until all n ranks have contributed, then
// returns every rank's contribution in rank order.
func (e *exchange) round(rank int, val any) []any {
	e.mu.Lock()
	myRound := e.gen
	e.data[rank] = val
	e.arrived++
	if e.arrived == e.n {
		e.arrived = 0
		e.gen++
		e.cond.Broadcast()
	} else {
		for e.gen == myRound {
			e.cond.Wait()
		}
	}
	out := make([]any, e.n)
	copy(out, e.data)
	e.mu.Unlock()
	return out
}

// once runs fn on exactly one of the n arriving ranks (the first to
// reach this call) and returns that result to every rank, including
// the n-1 that did not run fn. Used by Dup to create exactly one new
// context per collective call, observed identically by all ranks.
func (e *exchange) once(rank int, fn func() any) any {
	e.mu.Lock()
	if !e.onceSet {
		e.onceSet = true
		e.mu.Unlock()
		v := fn()
		e.mu.Lock()
		e.onceVal = v
	}
	myRound := e.gen
	e.arrived++
	if e.arrived == e.n {
		e.arrived = 0
		e.gen++
		e.cond.Broadcast()
	} else {
		for e.gen == myRound {
			e.cond.Wait()
		}
	}
	v := e.onceVal
	e.mu.Unlock()
	return v
}
