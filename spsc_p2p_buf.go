// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan

import "code.hybscloud.com/mpichan/internal/mp"

// spscP2PBuf is the credit-based buffered SPSC channel (spec.md §4.3
// BUF). The sender tracks one outstanding-credit counter against the
// single receiver; acks are zero-byte buffered sends on tagPayload.
type spscP2PBuf struct {
	h        *Handle
	comm     *mp.Comm
	peer     int
	credit   creditCounter // sender only
	reserved bool
}

func newSPSCP2PBuf(h *Handle, comm *mp.Comm) (variant, error) {
	v := &spscP2PBuf{h: h, comm: comm, credit: newCreditCounter(h.capacity)}
	if h.isReceiver {
		v.peer = h.senderRanks[0]
		if err := reserveReceiverBuf(h.capacity, 1); err != nil {
			return nil, err
		}
	} else {
		v.peer = h.receiverRanks[0]
		if err := reserveSenderBuf(h.capacity, h.elementSize, 1); err != nil {
			return nil, err
		}
	}
	v.reserved = true
	return v, nil
}

// drainAcks consumes every ack currently pending from the peer
// receiver without blocking, releasing one credit per ack.
func (v *spscP2PBuf) drainAcks() {
	for {
		ok, _, _ := v.comm.Iprobe(v.peer, tagPayload)
		if !ok {
			return
		}
		var ack [0]byte
		v.comm.Recv(v.peer, tagPayload, ack[:])
		v.credit.Release()
	}
}

func (v *spscP2PBuf) send(payload []byte) error {
	v.drainAcks()
	if v.credit.Full() {
		v.comm.Probe(v.peer, tagPayload) // block until at least one ack exists
		var ack [0]byte
		v.comm.Recv(v.peer, tagPayload, ack[:])
		v.credit.Release()
	}
	if err := v.comm.BufferedSend(v.peer, tagPayload, payload); err != nil {
		return err
	}
	v.credit.Take()
	return nil
}

func (v *spscP2PBuf) receive(buf []byte) error {
	if _, _, err := v.comm.Recv(v.peer, tagPayload, buf); err != nil {
		return err
	}
	var ack [0]byte
	return v.comm.BufferedSend(v.peer, tagPayload, ack[:])
}

func (v *spscP2PBuf) peek() (int, error) {
	if v.h.isReceiver {
		ok, _, _ := v.comm.Iprobe(v.peer, tagPayload)
		if ok {
			return 1, nil
		}
		return 0, nil
	}
	v.drainAcks()
	return v.credit.Free(), nil
}

func (v *spscP2PBuf) free() error {
	if !v.h.isReceiver {
		for v.credit.outstanding > 0 {
			var ack [0]byte
			v.comm.Recv(v.peer, tagPayload, ack[:])
			v.credit.Release()
		}
	}
	v.comm.Barrier()
	if !v.reserved {
		return nil
	}
	if v.h.isReceiver {
		return releaseReceiverBuf(v.h.capacity, 1)
	}
	return releaseSenderBuf(v.h.capacity, v.h.elementSize, 1)
}
