// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/mpichan/internal/mp"
)

// mcsParticipant is one rank's local state in a distributed MCS lock:
// a spin word the rank busy-waits on while enqueued, and a next
// pointer its predecessor fills in once this rank is linked behind
// it. Every RMA variant that uses an MCS lock (MPSC SYNC, MPMC SYNC's
// two locks, MPMC BUF's consumer-side lock) embeds exactly this pair
// at a known offset in its window struct, per spec.md §3's
// "Distributed MCS queue" data model and §9's "encode [the offset
// table] once".
type mcsParticipant struct {
	spin atomix.Bool
	next atomix.Int64
}

func (p *mcsParticipant) reset() {
	p.spin.StoreRelease(false)
	p.next.StoreRelease(nullNode)
}

// mcsFetchAndReplace atomically swaps word to val and returns its
// previous value. atomix exposes no direct exchange primitive, so
// this composes one from the documented load/CAS pair — the same
// "spin until CAS succeeds" shape used throughout the teacher's
// FAA-based queues.
func mcsFetchAndReplace(word *atomix.Int64, val int64) int64 {
	for {
		old := word.LoadAcquire()
		if word.CompareAndSwapAcqRel(old, val) {
			return old
		}
	}
}

// mcsLock drives the arrival half of the MCS protocol (spec.md §4.7,
// §4.9's Idle/Enqueued-behind/Held-solo state machine): the calling
// rank links itself behind whatever latest currently names, by
// fetch-and-op-replace, then spins on its own local word until
// released — or returns immediately if the list was idle.
//
// latest is the anchor's "tail holder, or -1" word; self is the
// calling rank's own participant state; lookup resolves any rank to
// its participant state, which this function only ever touches
// through self's and the predecessor's/successor's atomic fields,
// never bulk memory.
func mcsLock(rank int64, latest *atomix.Int64, self *mcsParticipant, lookup func(rank int64) *mcsParticipant) {
	self.reset()
	pred := mcsFetchAndReplace(latest, rank)
	if pred == nullNode {
		return
	}
	lookup(pred).next.StoreRelease(rank)
	mp.PollUntil(func() bool { return self.spin.LoadAcquire() })
}

// mcsUnlock drives the departure half: hand off to whoever enqueued
// behind the caller, or release the lock outright if no one has
// enqueued yet (checking again after losing the race, since a
// successor may be caught mid-enqueue).
func mcsUnlock(rank int64, latest *atomix.Int64, self *mcsParticipant, lookup func(rank int64) *mcsParticipant) {
	next := self.next.LoadAcquire()
	if next == nullNode {
		if latest.CompareAndSwapAcqRel(rank, nullNode) {
			return
		}
		mp.PollUntil(func() bool {
			next = self.next.LoadAcquire()
			return next != nullNode
		})
	}
	lookup(next).spin.StoreRelease(true)
}
