// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/mpichan/internal/mp"
)

// spscRingWindow is the ring window of spec.md §3/§4.6 BUF, used in
// the receiver's own slot: capacity+1 physical slots holding raw
// element bytes, plus the read/write indices. The sender owns write
// (only it ever advances it); the receiver owns read. Both indices are atomix words so each
// side's advance is visible to the other without a separate fence.
type spscRingWindow struct {
	read  atomix.Uint64
	write atomix.Uint64
	slots [][]byte
}

// spscRMABuf is the ring-buffer-over-RMA SPSC channel (spec.md §4.6
// BUF). The sender busy-waits on read/write spacing before writing a
// new slot; the receiver busy-waits on read != write before reading
// the next one. Both waits go through [mp.PollUntil] per spec.md §9.
type spscRMABuf struct {
	h        *Handle
	comm     *mp.Comm
	win      *mp.Box[spscRingWindow]
	capacity int
	peer     int // sender's view: the receiver's rank
}

func newSPSCRMABuf(h *Handle, comm *mp.Comm) (variant, error) {
	win := mp.NewBox[spscRingWindow](comm)
	rw := win.At(comm.Rank())
	rw.slots = make([][]byte, ringSlots(h.capacity))
	for i := range rw.slots {
		rw.slots[i] = make([]byte, h.elementSize)
	}
	rw.read.StoreRelease(0)
	rw.write.StoreRelease(0)
	v := &spscRMABuf{h: h, comm: comm, win: win, capacity: h.capacity}
	if !h.isReceiver {
		v.peer = h.receiverRanks[0]
	} else {
		v.peer = h.senderRanks[0]
	}
	comm.Barrier()
	return v, nil
}

// send writes into the receiver's window, busy-waiting first if the
// ring is currently full (spec.md §8 invariant 3).
func (v *spscRMABuf) send(payload []byte) error {
	rw := v.win.At(v.peer)
	var write uint64
	mp.PollUntil(func() bool {
		write = rw.write.LoadAcquire()
		read := rw.read.LoadAcquire()
		return !ringFull(read, write, v.capacity)
	})
	copy(rw.slots[write], payload)
	rw.write.StoreRelease(ringAdvance(write, v.capacity))
	return nil
}

// receive reads from this rank's own window (the receiver owns and
// reads its own ring; the sender is the remote writer), busy-waiting
// until a sender has published at least one entry.
func (v *spscRMABuf) receive(buf []byte) error {
	rw := v.win.At(v.h.myRank)
	var read uint64
	mp.PollUntil(func() bool {
		read = rw.read.LoadAcquire()
		write := rw.write.LoadAcquire()
		return !ringEmpty(read, write)
	})
	copy(buf, rw.slots[read])
	rw.read.StoreRelease(ringAdvance(read, v.capacity))
	return nil
}

func (v *spscRMABuf) peek() (int, error) {
	var rw *spscRingWindow
	if v.h.isReceiver {
		rw = v.win.At(v.h.myRank)
	} else {
		rw = v.win.At(v.peer)
	}
	read := rw.read.LoadAcquire()
	write := rw.write.LoadAcquire()
	n := int(write) - int(read)
	if n < 0 {
		n += ringSlots(v.capacity)
	}
	if v.h.isReceiver {
		return n, nil
	}
	return v.capacity - n, nil
}

func (v *spscRMABuf) free() error {
	v.comm.Barrier()
	return nil
}
