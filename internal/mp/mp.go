// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mp simulates the message-passing substrate that mpichan's
// twelve channel variants are specified against: ranked processes in
// a communicator, blocking/nonblocking point-to-point send/receive
// with tags, and one-sided window operations (atomic fetch-and-op,
// compare-and-swap, accumulate, put/get, local-memory-sync).
//
// There is no portable Go binding for a real MPI runtime, and the
// system's own non-goals rule out threads-within-a-process as a
// target (spec.md treats "one logical task per process" as the unit
// of concurrency). The substrate below realizes that unit the only
// way a single Go binary can: one goroutine per rank. A [World] is
// the in-process analogue of MPI_COMM_WORLD immediately after
// MPI_Init — every [Comm] handed out by it, and every [Comm] derived
// from it with Dup, addresses the same fixed set of rank goroutines.
//
// One-sided windows ([Win]) are not simulated over a wire: since all
// ranks share one address space, a window is literally the memory a
// rank already owns, and "remote" access is a direct atomic operation
// on that memory from another rank's goroutine. This is a faithful
// simulation, not a shortcut — it gives exactly the ordering and
// atomicity guarantees real RMA promises, without inventing a
// network protocol that would never be reachable from the variants
// above it.
package mp

import "errors"

// ErrNotInitialized is returned when an operation is attempted before
// [Init] has been called, mirroring a substrate that was never booted.
var ErrNotInitialized = errors.New("mp: substrate not initialized")

var initialized bool

// Init marks the substrate initialized. Real MPI_Init negotiates with
// a launcher; there is nothing to negotiate in-process, so Init only
// flips a flag that [Alloc]-level callers can check, matching
// spec.md §6's "substrate not initialised" error condition.
func Init() { initialized = true }

// Finalize marks the substrate uninitialized. Collective in spirit
// (every rank should call it), trivial in this simulation.
func Finalize() { initialized = false }

// Initialized reports whether [Init] has been called and [Finalize]
// has not been called since.
func Initialized() bool { return initialized }
