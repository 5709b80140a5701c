// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan

import "code.hybscloud.com/mpichan/internal/mp"

// mpscP2PSync is the rendezvous MPSC channel (spec.md §4.4 SYNC).
// Senders behave exactly like SPSC SYNC, synchronous-sending straight
// to the single receiver. The receiver round-robins its probe order
// across senders, starting from the sender after the last one it
// served, for fairness (spec.md §8 S4's "no sender chosen first in
// every trial").
type mpscP2PSync struct {
	h    *Handle
	comm *mp.Comm

	receiver int // sender's view: the one receiver rank

	senders []int // receiver's view
	idxLast int
}

func newMPSCP2PSync(h *Handle, comm *mp.Comm) (variant, error) {
	v := &mpscP2PSync{h: h, comm: comm}
	if h.isReceiver {
		v.senders = append([]int(nil), h.senderRanks...)
	} else {
		v.receiver = h.receiverRanks[0]
	}
	return v, nil
}

func (v *mpscP2PSync) send(payload []byte) error {
	return v.comm.Send(v.receiver, tagPayload, payload)
}

func (v *mpscP2PSync) receive(buf []byte) error {
	n := len(v.senders)
	for i := 0; i < n; i++ {
		idx := (v.idxLast + i) % n
		src := v.senders[idx]
		if ok, _, _ := v.comm.Iprobe(src, tagPayload); ok {
			_, _, err := v.comm.Recv(src, tagPayload, buf)
			v.idxLast = (idx + 1) % n
			return err
		}
	}
	// No sender had a message ready: block on whichever arrives next,
	// then rescan so the round-robin pointer still advances correctly.
	from, _ := v.comm.Probe(mp.AnySource, tagPayload)
	_, _, err := v.comm.Recv(from, tagPayload, buf)
	for i, s := range v.senders {
		if s == from {
			v.idxLast = (i + 1) % n
			break
		}
	}
	return err
}

func (v *mpscP2PSync) peek() (int, error) {
	return -1, ErrUnsupported
}

func (v *mpscP2PSync) free() error {
	v.comm.Barrier()
	return nil
}
