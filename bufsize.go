// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan

import (
	"fmt"

	"code.hybscloud.com/mpichan/internal/bufmgr"
)

// mpOverhead is the per-message bookkeeping overhead the substrate
// charges against the managed outbound buffer for every buffered
// send, payload or ack, independent of payload size — spec.md §4.1's
// "plus a per-message overhead constant the substrate defines".
const mpOverhead = 64

// reserveSenderBuf reserves this rank's share of the managed buffer
// for a buffered P2P sender, per spec.md §4.1's per-variant scaling:
// SPSC reserves per peer, MPSC/MPMC scale by how many receivers the
// sender fans out to.
func reserveSenderBuf(capacity, elementSize, numPeerReceivers int) error {
	n := capacity * (elementSize + mpOverhead) * numPeerReceivers
	code := bufmgr.Global().Append(n)
	return bufCodeToErr(code)
}

// reserveReceiverBuf reserves this rank's share of the managed buffer
// for a buffered P2P receiver's ack traffic, scaled by how many
// senders it must ack (acks carry no payload, so only mpOverhead
// counts).
func reserveReceiverBuf(capacity, numPeerSenders int) error {
	n := capacity * mpOverhead * numPeerSenders
	code := bufmgr.Global().Append(n)
	return bufCodeToErr(code)
}

// releaseSenderBuf and releaseReceiverBuf mirror a prior reserve*Buf call at Free time, with the
// identical size computation, so the managed buffer returns to its
// pre-Alloc size once every live buffered channel has been freed
// (spec.md §8 invariant 6).
func releaseSenderBuf(capacity, elementSize, numPeerReceivers int) error {
	n := capacity * (elementSize + mpOverhead) * numPeerReceivers
	return bufCodeToErr(bufmgr.Global().Shrink(n))
}

func releaseReceiverBuf(capacity, numPeerSenders int) error {
	n := capacity * mpOverhead * numPeerSenders
	return bufCodeToErr(bufmgr.Global().Shrink(n))
}

func bufCodeToErr(code bufmgr.Code) error {
	switch code {
	case bufmgr.OK:
		return nil
	case bufmgr.Soft:
		return fmt.Errorf("%w: managed buffer resize failed, previous buffer reattached", ErrAllocationFailure)
	default:
		return ErrFatal
	}
}
