// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan

import "code.hybscloud.com/mpichan/internal/mp"

// mpmcP2PBuf is the credit-based buffered MPMC channel (spec.md §4.5
// BUF). Every sender fans its credit out across every receiver,
// holding ⌈capacity/numReceivers⌉ credit per receiver. Because of the
// rounding up, one sender's in-flight count across all receivers can
// exceed capacity by up to numReceivers-1 when capacity is not a
// multiple of numReceivers (capacity 3 over 2 receivers allows 4), and
// a sender's Peek can report that many free credits. Senders round-robin
// which receiver gets the next message; receivers round-robin which
// sender they drain next, exactly as in the MPSC-BUF receiver.
type mpmcP2PBuf struct {
	h        *Handle
	comm     *mp.Comm
	reserved bool

	// sender's view
	receivers   []int
	perReceiver int
	credit      []creditCounter
	idxSend     int

	// receiver's view
	senders []int
	idxRecv int
}

func newMPMCP2PBuf(h *Handle, comm *mp.Comm) (variant, error) {
	v := &mpmcP2PBuf{h: h, comm: comm}
	if h.isReceiver {
		v.senders = append([]int(nil), h.senderRanks...)
		if err := reserveReceiverBuf(h.capacity, len(h.senderRanks)); err != nil {
			return nil, err
		}
	} else {
		v.receivers = append([]int(nil), h.receiverRanks...)
		v.perReceiver = (h.capacity + len(v.receivers) - 1) / len(v.receivers)
		v.credit = make([]creditCounter, len(v.receivers))
		for i := range v.credit {
			v.credit[i] = newCreditCounter(v.perReceiver)
		}
		if err := reserveSenderBuf(v.perReceiver, h.elementSize, len(v.receivers)); err != nil {
			return nil, err
		}
	}
	v.reserved = true
	return v, nil
}

func (v *mpmcP2PBuf) drainAcksFrom(i int) {
	r := v.receivers[i]
	for {
		ok, _, _ := v.comm.Iprobe(r, tagPayload)
		if !ok {
			return
		}
		var ack [0]byte
		v.comm.Recv(r, tagPayload, ack[:])
		v.credit[i].Release()
	}
}

func (v *mpmcP2PBuf) drainAllAcks() {
	for i := range v.receivers {
		v.drainAcksFrom(i)
	}
}

func (v *mpmcP2PBuf) send(payload []byte) error {
	n := len(v.receivers)
	i := v.idxSend
	v.idxSend = (v.idxSend + 1) % n

	v.drainAcksFrom(i)
	if v.credit[i].Full() {
		r := v.receivers[i]
		v.comm.Probe(r, tagPayload)
		var ack [0]byte
		v.comm.Recv(r, tagPayload, ack[:])
		v.credit[i].Release()
	}
	if err := v.comm.BufferedSend(v.receivers[i], tagPayload, payload); err != nil {
		return err
	}
	v.credit[i].Take()
	return nil
}

func (v *mpmcP2PBuf) receive(buf []byte) error {
	n := len(v.senders)
	serve := func(src int) error {
		if _, _, err := v.comm.Recv(src, tagPayload, buf); err != nil {
			return err
		}
		var ack [0]byte
		return v.comm.BufferedSend(src, tagPayload, ack[:])
	}
	for i := 0; i < n; i++ {
		idx := (v.idxRecv + i) % n
		src := v.senders[idx]
		if ok, _, _ := v.comm.Iprobe(src, tagPayload); ok {
			v.idxRecv = (idx + 1) % n
			return serve(src)
		}
	}
	from, _ := v.comm.Probe(mp.AnySource, tagPayload)
	for i, s := range v.senders {
		if s == from {
			v.idxRecv = (i + 1) % n
			break
		}
	}
	return serve(from)
}

func (v *mpmcP2PBuf) peek() (int, error) {
	if v.h.isReceiver {
		for _, s := range v.senders {
			if ok, _, _ := v.comm.Iprobe(s, tagPayload); ok {
				return 1, nil
			}
		}
		return 0, nil
	}
	v.drainAllAcks()
	free := 0
	for i := range v.credit {
		free += v.credit[i].Free()
	}
	return free, nil
}

func (v *mpmcP2PBuf) free() error {
	if !v.h.isReceiver {
		for i, r := range v.receivers {
			for v.credit[i].outstanding > 0 {
				var ack [0]byte
				v.comm.Recv(r, tagPayload, ack[:])
				v.credit[i].Release()
			}
		}
	}
	v.comm.Barrier()
	if !v.reserved {
		return nil
	}
	if v.h.isReceiver {
		return releaseReceiverBuf(v.h.capacity, len(v.senders))
	}
	return releaseSenderBuf(v.perReceiver, v.h.elementSize, len(v.receivers))
}
