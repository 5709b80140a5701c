// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/mpichan/internal/mp"
)

// mpmcSyncWindow is the per-rank window slot for the RMA MPMC SYNC
// channel (spec.md §4.8 SYNC). Every rank carries the MCS waiter
// fields for whichever of the two locks it participates in (senders
// queue on the sender-lock, receivers on the receiver-lock) plus its
// own spin2 completion word and data slot; the lowest-ranked receiver
// additionally acts as the anchor, hosting both locks' tails and the
// current_sender/current_receiver handshake fields.
type mpmcSyncWindow struct {
	mcsParticipant // spin (lock-queue wakeup), next

	spin2 atomix.Bool // per-rank completion/wakeup signal
	data  []byte      // this rank's rendezvous slot, used only if a receiver

	// anchor-only fields, meaningful only at the lowest-ranked
	// receiver's own slot.
	currentSender   atomix.Int64
	latestSender    atomix.Int64
	currentReceiver atomix.Int64
	latestReceiver  atomix.Int64
}

// mpmcRMASync is the two-MCS-lock rendezvous MPMC channel over RMA
// (spec.md §4.8 SYNC): a sender-lock and a receiver-lock, both
// anchored at the lowest-ranked receiver, pair up exactly one waiting
// sender with exactly one waiting receiver at a time via the anchor's
// current_sender/current_receiver handshake fields.
type mpmcRMASync struct {
	h      *Handle
	comm   *mp.Comm
	win    *mp.Box[mpmcSyncWindow]
	anchor int
}

func newMPMCRMASync(h *Handle, comm *mp.Comm) (variant, error) {
	win := mp.NewBox[mpmcSyncWindow](comm)
	self := win.At(comm.Rank())
	self.reset()
	self.spin2.StoreRelease(false)
	if h.isReceiver {
		self.data = make([]byte, h.elementSize)
	}
	anchor := h.receiverRanks[0]
	if comm.Rank() == anchor {
		self.currentSender.StoreRelease(nullNode)
		self.latestSender.StoreRelease(nullNode)
		self.currentReceiver.StoreRelease(nullNode)
		self.latestReceiver.StoreRelease(nullNode)
	}
	comm.Barrier()
	return &mpmcRMASync{h: h, comm: comm, win: win, anchor: anchor}, nil
}

func (v *mpmcRMASync) lookup(rank int64) *mcsParticipant {
	return &v.win.At(int(rank)).mcsParticipant
}

func (v *mpmcRMASync) send(payload []byte) error {
	rank := int64(v.h.myRank)
	self := v.win.At(v.h.myRank)
	anchorWin := v.win.At(v.anchor)

	mcsLock(rank, &anchorWin.latestSender, &self.mcsParticipant, v.lookup)

	anchorWin.currentSender.StoreRelease(rank)
	recv := anchorWin.currentReceiver.LoadAcquire()
	// Loop rather than trust a single wake-up: a receiver that paired
	// with this rank in an earlier send may set spin2 after that send
	// already finished, leaving a stale true behind.
	for recv == nullNode {
		mp.PollUntil(func() bool { return self.spin2.LoadAcquire() })
		self.spin2.StoreRelease(false)
		recv = anchorWin.currentReceiver.LoadAcquire()
	}

	recvWin := v.win.At(int(recv))
	copy(recvWin.data, payload)
	anchorWin.currentSender.StoreRelease(nullNode)
	anchorWin.currentReceiver.StoreRelease(nullNode)
	recvWin.spin2.StoreRelease(true)

	mcsUnlock(rank, &anchorWin.latestSender, &self.mcsParticipant, v.lookup)
	return nil
}

func (v *mpmcRMASync) receive(buf []byte) error {
	rank := int64(v.h.myRank)
	self := v.win.At(v.h.myRank)
	anchorWin := v.win.At(v.anchor)

	mcsLock(rank, &anchorWin.latestReceiver, &self.mcsParticipant, v.lookup)

	anchorWin.currentReceiver.StoreRelease(rank)
	if sender := anchorWin.currentSender.LoadAcquire(); sender != nullNode {
		v.win.At(int(sender)).spin2.StoreRelease(true)
	}

	mp.PollUntil(func() bool { return self.spin2.LoadAcquire() })
	self.spin2.StoreRelease(false)
	copy(buf, self.data)

	mcsUnlock(rank, &anchorWin.latestReceiver, &self.mcsParticipant, v.lookup)
	return nil
}

func (v *mpmcRMASync) peek() (int, error) {
	return -1, ErrUnsupported
}

func (v *mpmcRMASync) free() error {
	v.comm.Barrier()
	return nil
}
