// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/mpichan/internal/mp"
)

// wakeSentinel encodes "receiver rank is parked waiting for the list
// to become non-empty" as a tail value distinct from every real node
// ID (which are always ≥ 0) and from nullNode (spec.md §4.8 BUF's
// "−rank−2" encoding).
func wakeSentinel(rank int) int64 { return -(int64(rank) + 2) }

func isWakeSentinel(v int64) bool { return v <= -2 }

func decodeWakeSentinel(v int64) int { return int(-v - 2) }

// mpmcBufWindow is the per-rank window slot for the RMA MPMC BUF
// channel (spec.md §4.8 BUF): a sender's own slot holds its
// per-producer ring exactly as in mpscBufWindow; a receiver's own slot
// holds the MCS consumer-lock waiter fields (spin doubles as the
// "wake me, list was empty" signal while parked with the lock
// released); the lowest-ranked receiver additionally anchors the
// Michael-Scott head/tail and the consumer-lock's tail pointer.
type mpmcBufWindow struct {
	nodes []msQueueNode
	read  atomix.Uint64
	write uint64

	mcsParticipant // spin, next: consumer-lock waiter state

	head           atomix.Int64
	tail           atomix.Int64
	latestReceiver atomix.Int64
}

// mpmcRMABuf pairs wait-free per-producer-ring senders (identical to
// mpscRMABuf's algorithm) with an MCS-locked consumer side, so
// multiple receivers can dequeue from the single shared list without
// corrupting head/tail.
type mpmcRMABuf struct {
	h        *Handle
	comm     *mp.Comm
	win      *mp.Box[mpmcBufWindow]
	capacity int
	anchor   int
}

func newMPMCRMABuf(h *Handle, comm *mp.Comm) (variant, error) {
	win := mp.NewBox[mpmcBufWindow](comm)
	self := win.At(comm.Rank())
	self.reset()
	if !h.isReceiver {
		self.nodes = make([]msQueueNode, ringSlots(h.capacity))
		for i := range self.nodes {
			self.nodes[i].next.StoreRelease(nullNode)
			self.nodes[i].payload = make([]byte, h.elementSize)
		}
		self.read.StoreRelease(0)
		self.write = 0
	}
	anchor := h.receiverRanks[0]
	if comm.Rank() == anchor {
		self.head.StoreRelease(nullNode)
		self.tail.StoreRelease(nullNode)
		self.latestReceiver.StoreRelease(nullNode)
	}
	comm.Barrier()
	return &mpmcRMABuf{h: h, comm: comm, win: win, capacity: h.capacity, anchor: anchor}, nil
}

func (v *mpmcRMABuf) lookup(rank int64) *mcsParticipant {
	return &v.win.At(int(rank)).mcsParticipant
}

// send is the identical bounded Michael-Scott tail-insert used by
// mpscRMABuf, plus the wake-up hand-off: if the previous tail was a
// parked receiver's wake sentinel rather than a real node or nullNode,
// this append both becomes the new head and wakes that receiver.
func (v *mpmcRMABuf) send(payload []byte) error {
	self := v.win.At(v.h.myRank)
	mp.PollUntil(func() bool {
		read := self.read.LoadAcquire()
		return !ringFull(read, self.write, v.capacity)
	})

	node := &self.nodes[self.write]
	copy(node.payload, payload)
	node.next.StoreRelease(nullNode)

	nodeID := encodeNodeID(v.h.myRank, int(self.write), v.capacity)
	anchorWin := v.win.At(v.anchor)
	prevTail := mcsFetchAndReplace(&anchorWin.tail, nodeID)
	switch {
	case prevTail == nullNode:
		anchorWin.head.StoreRelease(nodeID)
	case isWakeSentinel(prevTail):
		anchorWin.head.StoreRelease(nodeID)
		v.win.At(decodeWakeSentinel(prevTail)).spin.StoreRelease(true)
	default:
		ownerRank, slot := decodeNodeID(prevTail, v.capacity)
		v.win.At(ownerRank).nodes[slot].next.StoreRelease(nodeID)
	}
	self.write = ringAdvance(self.write, v.capacity)
	return nil
}

// receive acquires the consumer lock, then either dequeues the head
// node or, if the list is empty, parks on the wake sentinel with the
// lock released (so other receivers keep making progress) and
// re-acquires once a sender wakes it.
func (v *mpmcRMABuf) receive(buf []byte) error {
	rank := int64(v.h.myRank)
	self := v.win.At(v.h.myRank)
	anchorWin := v.win.At(v.anchor)

	mcsLock(rank, &anchorWin.latestReceiver, &self.mcsParticipant, v.lookup)

	var headID int64
	for {
		headID = anchorWin.head.LoadAcquire()
		if headID != nullNode {
			break
		}
		self.spin.StoreRelease(false)
		if anchorWin.tail.CompareAndSwapAcqRel(nullNode, wakeSentinel(v.h.myRank)) {
			mcsUnlock(rank, &anchorWin.latestReceiver, &self.mcsParticipant, v.lookup)
			mp.PollUntil(func() bool { return self.spin.LoadAcquire() })
			mcsLock(rank, &anchorWin.latestReceiver, &self.mcsParticipant, v.lookup)
		}
	}

	ownerRank, slot := decodeNodeID(headID, v.capacity)
	ownerWin := v.win.At(ownerRank)
	node := &ownerWin.nodes[slot]
	copy(buf, node.payload)

	next := node.next.LoadAcquire()
	if next == nullNode {
		if anchorWin.tail.CompareAndSwapAcqRel(headID, nullNode) {
			anchorWin.head.StoreRelease(nullNode)
		} else {
			mp.PollUntil(func() bool {
				next = node.next.LoadAcquire()
				return next != nullNode
			})
			anchorWin.head.StoreRelease(next)
		}
	} else {
		anchorWin.head.StoreRelease(next)
	}
	ownerWin.read.StoreRelease(ringAdvance(uint64(slot), v.capacity))

	mcsUnlock(rank, &anchorWin.latestReceiver, &self.mcsParticipant, v.lookup)
	return nil
}

func (v *mpmcRMABuf) peek() (int, error) {
	if v.h.isReceiver {
		if v.win.At(v.anchor).head.LoadAcquire() != nullNode {
			return 1, nil
		}
		return 0, nil
	}
	self := v.win.At(v.h.myRank)
	read := self.read.LoadAcquire()
	used := int(self.write) - int(read)
	if used < 0 {
		used += ringSlots(v.capacity)
	}
	return v.capacity - used, nil
}

func (v *mpmcRMABuf) free() error {
	v.comm.Barrier()
	return nil
}
