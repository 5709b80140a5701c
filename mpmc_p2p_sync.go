// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan

import (
	"encoding/binary"

	"code.hybscloud.com/mpichan/internal/mp"
	"code.hybscloud.com/spin"
)

// mpmcP2PSync is the rendezvous MPMC channel (spec.md §4.5 SYNC), a
// two-phase offer/accept protocol with cancellation so that many
// senders and many receivers can still meet at a true rendezvous
// (capacity 0, no buffering).
//
// Tag assignments (spec.md §6): a sender's own rank tags its offers
// and its payload to the accepting receiver; commSize tags a cancel;
// commSize+1 tags an acceptance; commSize+2 tags a free-time shutdown
// token. spec.md §9 flags the reuse of the sender's own rank as both
// the offer tag and the payload tag as subtle — re-derived here from
// the protocol description rather than copied from the source, per
// that note.
type mpmcP2PSync struct {
	h    *Handle
	comm *mp.Comm

	commSize    int
	tagCancel   int
	tagAccept   int
	tagShutdown int

	// sender's view
	receivers []int
	offerSeq  int64

	// receiver's view
	senders []int
}

func newMPMCP2PSync(h *Handle, comm *mp.Comm) (variant, error) {
	n := comm.Size()
	v := &mpmcP2PSync{
		h: h, comm: comm,
		commSize: n, tagCancel: n, tagAccept: n + 1, tagShutdown: n + 2,
	}
	if h.isReceiver {
		v.senders = append([]int(nil), h.senderRanks...)
	} else {
		v.receivers = append([]int(nil), h.receiverRanks...)
	}
	return v, nil
}

func putI64(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}

func getI64(b []byte) int64 { return int64(binary.LittleEndian.Uint64(b)) }

// send runs one full offer/accept/cancel round: round-robin offers to
// every receiver not yet offered this round while concurrently
// draining incoming acceptances, commits the payload to the first
// receiver whose acceptance matches this send's offer_seq, then
// cancels every other receiver it offered to.
func (v *mpmcP2PSync) send(payload []byte) error {
	mySeq := v.offerSeq
	v.offerSeq++

	n := len(v.receivers)
	offered := make(map[int]bool, n)
	nextIdx := 0
	sw := spin.Wait{}

	for {
		if len(offered) < n {
			r := v.receivers[nextIdx]
			nextIdx = (nextIdx + 1) % n
			if !offered[r] {
				v.comm.BufferedSend(r, v.h.myRank, putI64(mySeq))
				offered[r] = true
			}
		}

		if ok, from, _ := v.comm.Iprobe(mp.AnySource, v.tagAccept); ok {
			buf := make([]byte, 8)
			v.comm.Recv(from, v.tagAccept, buf)
			if getI64(buf) == mySeq {
				if err := v.comm.Send(from, v.h.myRank, payload); err != nil {
					return err
				}
				for r := range offered {
					if r != from {
						v.comm.BufferedSend(r, v.tagCancel, nil)
					}
				}
				return nil
			}
			// Stale acceptance for an offer this send already
			// cancelled in a previous round; drop it.
			continue
		}
		sw.Once()
	}
}

// receive implements the receiver loop of spec.md §4.5: accept the
// first offer encountered, tell that sender it won, then find out
// whether the sender actually committed (payload) or had already
// committed elsewhere (cancel), looping until a real payload lands.
func (v *mpmcP2PSync) receive(buf []byte) error {
	for {
		from, tag := v.comm.Probe(mp.AnySource, mp.AnyTag)
		if tag == v.tagShutdown {
			var tok [8]byte
			v.comm.Recv(from, v.tagShutdown, tok[:])
			continue
		}
		// tag == from: this is an offer.
		seqBuf := make([]byte, 8)
		v.comm.Recv(from, tag, seqBuf)
		seq := getI64(seqBuf)

		v.comm.BufferedSend(from, v.tagAccept, putI64(seq))

		_, tag2 := v.comm.Probe(from, mp.AnyTag)
		if tag2 == v.tagCancel {
			var discard [0]byte
			v.comm.Recv(from, v.tagCancel, discard[:])
			continue
		}
		_, _, err := v.comm.Recv(from, tag2, buf)
		return err
	}
}

func (v *mpmcP2PSync) peek() (int, error) {
	return -1, ErrUnsupported
}

// free sends a zero-valued shutdown token to every receiver a sender
// addresses. Offers and cancels that a receiver never consumed (a
// sender offers to every receiver but commits to only one) sit ahead
// of that sender's token in the receiver's mailbox, so each receiver
// discards every message from a sender up to and including its token.
// After the barrier no receiver can still be accepting, so each sender
// then discards any stale acceptances left in its own mailbox.
func (v *mpmcP2PSync) free() error {
	if !v.h.isReceiver {
		for _, r := range v.receivers {
			v.comm.BufferedSend(r, v.tagShutdown, putI64(0))
		}
	} else {
		for _, s := range v.senders {
			for {
				_, tag := v.comm.Probe(s, mp.AnyTag)
				var tok [8]byte
				v.comm.Recv(s, tag, tok[:])
				if tag == v.tagShutdown {
					break
				}
			}
		}
	}
	v.comm.Barrier()
	if !v.h.isReceiver {
		for {
			ok, from, _ := v.comm.Iprobe(mp.AnySource, v.tagAccept)
			if !ok {
				break
			}
			var acc [8]byte
			v.comm.Recv(from, v.tagAccept, acc[:])
		}
	}
	return nil
}
