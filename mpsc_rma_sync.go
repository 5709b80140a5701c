// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/mpichan/internal/mp"
)

// mpscSyncWindow is the per-rank window slot for the RMA MPSC SYNC
// channel (spec.md §4.7 SYNC): every rank carries the MCS waiter
// fields (spin/next, embedded, plus spin2 for the completion signal),
// and the single receiver additionally uses latestSender/currentSender
// as the anchor and data as the rendezvous slot. Only the anchor's own
// slot's anchor fields are ever touched.
type mpscSyncWindow struct {
	mcsParticipant // spin (lock-queue wakeup), next

	spin2 atomix.Bool // completion signal, anchor -> lock holder

	// anchor-only fields, meaningful only at the receiver's slot.
	currentSender atomix.Int64
	latestSender  atomix.Int64
	data          []byte
}

// mpscRMASync is the distributed-MCS-lock MPSC channel over RMA
// (spec.md §4.7 SYNC). The single receiver is the lock anchor; senders
// queue on the anchor's latestSender word exactly as in a standard MCS
// lock, then use the held critical section to hand one element to the
// anchor and wait for it to be consumed before releasing.
type mpscRMASync struct {
	h      *Handle
	comm   *mp.Comm
	win    *mp.Box[mpscSyncWindow]
	anchor int
}

func newMPSCRMASync(h *Handle, comm *mp.Comm) (variant, error) {
	win := mp.NewBox[mpscSyncWindow](comm)
	self := win.At(comm.Rank())
	self.reset()
	self.spin2.StoreRelease(false)
	anchor := h.receiverRanks[0]
	if h.isReceiver {
		self.data = make([]byte, h.elementSize)
		self.currentSender.StoreRelease(nullNode)
		self.latestSender.StoreRelease(nullNode)
	}
	comm.Barrier()
	return &mpscRMASync{h: h, comm: comm, win: win, anchor: anchor}, nil
}

func (v *mpscRMASync) lookup(rank int64) *mcsParticipant {
	return &v.win.At(int(rank)).mcsParticipant
}

func (v *mpscRMASync) send(payload []byte) error {
	rank := int64(v.h.myRank)
	self := v.win.At(v.h.myRank)
	anchorWin := v.win.At(v.anchor)

	mcsLock(rank, &anchorWin.latestSender, &self.mcsParticipant, v.lookup)

	copy(anchorWin.data, payload)
	anchorWin.currentSender.StoreRelease(rank)

	mp.PollUntil(func() bool { return self.spin2.LoadAcquire() })
	self.spin2.StoreRelease(false)

	mcsUnlock(rank, &anchorWin.latestSender, &self.mcsParticipant, v.lookup)
	return nil
}

func (v *mpscRMASync) receive(buf []byte) error {
	anchorWin := v.win.At(v.h.myRank)

	mp.PollUntil(func() bool { return anchorWin.currentSender.LoadAcquire() != nullNode })
	copy(buf, anchorWin.data)

	sender := mcsFetchAndReplace(&anchorWin.currentSender, nullNode)
	v.win.At(int(sender)).spin2.StoreRelease(true)
	return nil
}

func (v *mpscRMASync) peek() (int, error) {
	return -1, ErrUnsupported
}

func (v *mpscRMASync) free() error {
	v.comm.Barrier()
	return nil
}
