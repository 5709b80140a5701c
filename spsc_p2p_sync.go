// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan

import "code.hybscloud.com/mpichan/internal/mp"

// tagPayload is the single tag used for element payloads (and, for
// BUF variants, acks) on SPSC/MPSC channels, per spec.md §6's tag
// assignment table.
const tagPayload = 0

// spscP2PSync is the rendezvous SPSC channel (spec.md §4.3 SYNC): the
// sender's Send completes only once the receiver's Receive has
// matched it, with no buffering and no credit tracking at all.
type spscP2PSync struct {
	h    *Handle
	comm *mp.Comm
	peer int
}

func newSPSCP2PSync(h *Handle, comm *mp.Comm) (variant, error) {
	peer := h.senderRanks[0]
	if !h.isReceiver {
		peer = h.receiverRanks[0]
	}
	return &spscP2PSync{h: h, comm: comm, peer: peer}, nil
}

func (v *spscP2PSync) send(payload []byte) error {
	return v.comm.Send(v.peer, tagPayload, payload)
}

func (v *spscP2PSync) receive(buf []byte) error {
	_, _, err := v.comm.Recv(v.peer, tagPayload, buf)
	return err
}

// peek is unsupported on synchronous variants: there is no credit or
// pending-message count to report without consuming the rendezvous.
func (v *spscP2PSync) peek() (int, error) {
	return -1, ErrUnsupported
}

// free has nothing variant-specific to drain: a completed
// synchronous send has already fully handed off its payload, so no
// message can be left in transit on the private context.
func (v *spscP2PSync) free() error {
	v.comm.Barrier()
	return nil
}
