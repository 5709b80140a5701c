// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan

import "code.hybscloud.com/mpichan/internal/mp"

// spscRMASync is the fence-style rendezvous SPSC channel over RMA
// (spec.md §4.6 SYNC): the receiver's window holds exactly
// element_size bytes, and every put/get is bracketed by a collective
// fence (mirrored here as a Barrier, since this simulation has no
// separate "epoch" concept to close more cheaply) so that the sender's
// write and the receiver's read never race.
type spscRMASync struct {
	h    *Handle
	comm *mp.Comm
	win  *mp.Box[mp.RawWindow]
	peer int // receiver's rank, as seen by the sender
}

func newSPSCRMASync(h *Handle, comm *mp.Comm) (variant, error) {
	win := mp.NewRawWindowBox(comm, h.elementSize)
	v := &spscRMASync{h: h, comm: comm, win: win}
	if !h.isReceiver {
		v.peer = h.receiverRanks[0]
	}
	return v, nil
}

// send fences in, writes the payload directly into the receiver's
// window slot, then fences out so the write is visible before
// returning. The paired receive on the other side performs the
// identical fence dance (spec.md §4.6: "both sides must fence at the
// same logical point").
func (v *spscRMASync) send(payload []byte) error {
	v.win.LockAll()
	v.win.At(v.peer).Put(payload)
	v.win.Flush()
	v.win.UnlockAll()
	v.comm.Barrier()
	v.comm.Barrier()
	return nil
}

func (v *spscRMASync) receive(buf []byte) error {
	v.comm.Barrier()
	v.win.LockAll()
	v.win.At(v.h.myRank).Get(buf)
	v.win.UnlockAll()
	v.comm.Barrier()
	return nil
}

func (v *spscRMASync) peek() (int, error) {
	return -1, ErrUnsupported
}

func (v *spscRMASync) free() error {
	v.comm.Barrier()
	return nil
}
