// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/mpichan/internal/mp"
)

// msQueueNode is one node of a sender's per-producer ring in the
// Michael-Scott-style bounded queue of spec.md §4.7 BUF: next is
// mutated remotely by whichever rank appends behind this node (and
// reset by the owner before each reuse), so it is the one atomic field
// in an otherwise plain payload slot.
type msQueueNode struct {
	next    atomix.Int64
	payload []byte
}

// mpscBufWindow holds both possible window shapes behind one offset
// table, selected by role: a sender's own slot uses nodes/read/write
// (its per-producer ring); the anchor's own slot uses head/tail (the
// Michael-Scott list pointers). No rank ever touches the other role's
// fields of its own slot.
type mpscBufWindow struct {
	nodes []msQueueNode
	read  atomix.Uint64 // advanced remotely by the anchor
	write uint64        // local to the owning sender

	head atomix.Int64
	tail atomix.Int64
}

// mpscRMABuf is the lock-free bounded MPSC queue over RMA (spec.md
// §4.7 BUF): each sender is a wait-free producer into its own ring;
// the single receiver is the Michael-Scott list's anchor.
type mpscRMABuf struct {
	h        *Handle
	comm     *mp.Comm
	win      *mp.Box[mpscBufWindow]
	capacity int
	anchor   int
}

func newMPSCRMABuf(h *Handle, comm *mp.Comm) (variant, error) {
	win := mp.NewBox[mpscBufWindow](comm)
	self := win.At(comm.Rank())
	if h.isReceiver {
		self.head.StoreRelease(nullNode)
		self.tail.StoreRelease(nullNode)
	} else {
		self.nodes = make([]msQueueNode, ringSlots(h.capacity))
		for i := range self.nodes {
			self.nodes[i].next.StoreRelease(nullNode)
			self.nodes[i].payload = make([]byte, h.elementSize)
		}
		self.read.StoreRelease(0)
		self.write = 0
	}
	comm.Barrier()
	return &mpscRMABuf{h: h, comm: comm, win: win, capacity: h.capacity, anchor: h.receiverRanks[0]}, nil
}

// send is the bounded Michael-Scott tail-insert: wait for a free ring
// slot, publish the node locally, then splice it onto the anchor's
// list by fetch-and-replacing tail and linking the previous tail's
// next (or head, if the list was empty).
func (v *mpscRMABuf) send(payload []byte) error {
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
	if prevTail == nullNode {
		anchorWin.head.StoreRelease(nodeID)
	} else {
		ownerRank, slot := decodeNodeID(prevTail, v.capacity)
		v.win.At(ownerRank).nodes[slot].next.StoreRelease(nodeID)
	}
	self.write = ringAdvance(self.write, v.capacity)
	return nil
}

func (v *mpscRMABuf) receive(buf []byte) error {
	anchorWin := v.win.At(v.h.myRank)

	var headID int64
	mp.PollUntil(func() bool {
		headID = anchorWin.head.LoadAcquire()
		return headID != nullNode
	})

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
	return nil
}

func (v *mpscRMABuf) peek() (int, error) {
	if v.h.isReceiver {
		if v.win.At(v.h.myRank).head.LoadAcquire() != nullNode {
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

func (v *mpscRMABuf) free() error {
	v.comm.Barrier()
	return nil
}
