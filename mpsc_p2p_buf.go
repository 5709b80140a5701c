// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan

import "code.hybscloud.com/mpichan/internal/mp"

// mpscP2PBuf is the credit-based buffered MPSC channel (spec.md
// §4.4 BUF). Every sender runs the identical SPSC-BUF credit protocol
// against the single receiver, each bounded independently by the
// channel's capacity (the credit pool is "shared" only in the sense
// that every sender uses the same capacity value, not in the sense of
// a value visible across sender processes — there is no shared memory
// between them under P2P). The receiver round-robins its probe order
// across senders for fairness, acking whichever sender it serves.
type mpscP2PBuf struct {
	h        *Handle
	comm     *mp.Comm
	reserved bool

	// sender's view
	receiver int
	credit   creditCounter

	// receiver's view
	senders []int
	idxLast int
}

func newMPSCP2PBuf(h *Handle, comm *mp.Comm) (variant, error) {
	v := &mpscP2PBuf{h: h, comm: comm, credit: newCreditCounter(h.capacity)}
	if h.isReceiver {
		v.senders = append([]int(nil), h.senderRanks...)
		if err := reserveReceiverBuf(h.capacity, len(h.senderRanks)); err != nil {
			return nil, err
		}
	} else {
		v.receiver = h.receiverRanks[0]
		if err := reserveSenderBuf(h.capacity, h.elementSize, 1); err != nil {
			return nil, err
		}
	}
	v.reserved = true
	return v, nil
}

func (v *mpscP2PBuf) drainAcks() {
	for {
		ok, _, _ := v.comm.Iprobe(v.receiver, tagPayload)
		if !ok {
			return
		}
		var ack [0]byte
		v.comm.Recv(v.receiver, tagPayload, ack[:])
		v.credit.Release()
	}
}

func (v *mpscP2PBuf) send(payload []byte) error {
	v.drainAcks()
	if v.credit.Full() {
		v.comm.Probe(v.receiver, tagPayload)
		var ack [0]byte
		v.comm.Recv(v.receiver, tagPayload, ack[:])
		v.credit.Release()
	}
	if err := v.comm.BufferedSend(v.receiver, tagPayload, payload); err != nil {
		return err
	}
	v.credit.Take()
	return nil
}

func (v *mpscP2PBuf) receive(buf []byte) error {
	n := len(v.senders)
	serve := func(src int) error {
		if _, _, err := v.comm.Recv(src, tagPayload, buf); err != nil {
			return err
		}
		var ack [0]byte
		return v.comm.BufferedSend(src, tagPayload, ack[:])
	}
	for i := 0; i < n; i++ {
		idx := (v.idxLast + i) % n
		src := v.senders[idx]
		if ok, _, _ := v.comm.Iprobe(src, tagPayload); ok {
			v.idxLast = (idx + 1) % n
			return serve(src)
		}
	}
	from, _ := v.comm.Probe(mp.AnySource, tagPayload)
	for i, s := range v.senders {
		if s == from {
			v.idxLast = (i + 1) % n
			break
		}
	}
	return serve(from)
}

func (v *mpscP2PBuf) peek() (int, error) {
	if v.h.isReceiver {
		for _, s := range v.senders {
			if ok, _, _ := v.comm.Iprobe(s, tagPayload); ok {
				return 1, nil
			}
		}
		return 0, nil
	}
	v.drainAcks()
	return v.credit.Free(), nil
}

func (v *mpscP2PBuf) free() error {
	if !v.h.isReceiver {
		for v.credit.outstanding > 0 {
			var ack [0]byte
			v.comm.Recv(v.receiver, tagPayload, ack[:])
			v.credit.Release()
		}
	}
	v.comm.Barrier()
	if !v.reserved {
		return nil
	}
	if v.h.isReceiver {
		return releaseReceiverBuf(v.h.capacity, len(v.senders))
	}
	return releaseSenderBuf(v.h.capacity, v.h.elementSize, 1)
}
