// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan

import (
	"fmt"

	"code.hybscloud.com/mpichan/internal/mp"
)

// Alloc constructs a channel collectively across comm. Every
// participant must call Alloc with bitwise-identical elementSize and
// capacity (spec.md §3's construction invariant); isReceiver selects
// the caller's role. On any construction failure, every participant
// returns the same error and a nil *Handle — the "confirm-or-null"
// collective helper below guarantees that no participant can observe
// success while another observes failure.
//
// elementSize must be positive, capacity must be non-negative (0
// means synchronous/rendezvous), and at least one sender and one
// receiver must exist across the communicator.
func Alloc(elementSize, capacity int, substrate Substrate, comm *mp.Comm, isReceiver bool) (*Handle, error) {
	if !mp.Initialized() {
		return nil, ErrNotInitialized
	}

	// Step 3: nonblocking all-gather of each process's is_receiver
	// flag, step 4: nonblocking all-reduce of (element_size, capacity)
	// under bitwise-AND. Both rounds are issued back to back, then
	// waited on together below — this is the closest a goroutine
	// simulation gets to "while the collectives are in flight, fill
	// in local fields" (step 5): the two exchanges below block only
	// inside Comm, never across this whole function, so there is no
	// separate "start" vs "wait" phase to straddle.
	roles := comm.AllgatherBool(isReceiver)
	gotSize, gotCap := comm.AllreduceAndU64Pair(uint64(elementSize), uint64(capacity))

	ok := true
	var failErr error
	if uint64(elementSize) != gotSize || uint64(capacity) != gotCap {
		ok = false
		failErr = fmt.Errorf("%w: element_size/capacity differ across participants", ErrConstructionMismatch)
	}
	if elementSize <= 0 {
		ok = false
		failErr = fmt.Errorf("%w: element_size must be positive", ErrConstructionMismatch)
	}
	if capacity < 0 {
		ok = false
		failErr = fmt.Errorf("%w: capacity must be non-negative", ErrConstructionMismatch)
	}

	var receiverRanks, senderRanks []int
	for r, isRecv := range roles {
		if isRecv {
			receiverRanks = append(receiverRanks, r)
		} else {
			senderRanks = append(senderRanks, r)
		}
	}
	if len(receiverRanks) == 0 || len(senderRanks) == 0 {
		ok = false
		failErr = fmt.Errorf("%w: at least one sender and one receiver are required", ErrConstructionMismatch)
	}

	// Step 6/confirm-or-null: a final collective sum-reduce over a
	// 0/1 "I failed" flag. Every participant sees the same sum, so
	// every participant takes the same branch — spec.md §4.2's
	// "every step's failure is signalled to all peers ... so that
	// either every process observes success or every process
	// receives NULL". This call always runs on the original
	// communicator, never on a not-yet-created private context, per
	// spec.md §9's design note.
	failCount := 0
	if !ok {
		failCount = 1
	}
	totalFailures := comm.AllreduceSumInt(failCount)
	if totalFailures > 0 {
		if failErr == nil {
			failErr = ErrConstructionMismatch
		}
		return nil, failErr
	}

	cardinality := cardinalityOf(len(senderRanks), len(receiverRanks))
	myRank := comm.Rank()

	h := &Handle{
		elementSize:   elementSize,
		capacity:      capacity,
		cardinality:   cardinality,
		substrate:     substrate,
		myRank:        myRank,
		isReceiver:    isReceiver,
		receiverRanks: receiverRanks,
		senderRanks:   senderRanks,
	}

	impl, privComm, err := newVariant(h, comm)
	if err != nil {
		// Collectively confirm the failure so every rank returns nil.
		// No teardown runs on this path: a rank whose own variant was
		// built keeps its managed-buffer reservation.
		failCount = 1
	} else {
		h.comm = privComm
		h.impl = impl
		failCount = 0
	}
	totalFailures = comm.AllreduceSumInt(failCount)
	if totalFailures > 0 {
		if err == nil {
			err = ErrAllocationFailure
		}
		return nil, err
	}

	return h, nil
}

// newVariant selects and constructs one of the twelve implementations
// for h, duplicating comm to obtain the channel's private context
// (spec.md §4.2 step 8).
func newVariant(h *Handle, comm *mp.Comm) (variant, *mp.Comm, error) {
	priv := comm.Dup()

	var impl variant
	var err error
	switch h.substrate {
	case P2P:
		switch h.cardinality {
		case SPSC:
			if h.capacity == 0 {
				impl, err = newSPSCP2PSync(h, priv)
			} else {
				impl, err = newSPSCP2PBuf(h, priv)
			}
		case MPSC:
			if h.capacity == 0 {
				impl, err = newMPSCP2PSync(h, priv)
			} else {
				impl, err = newMPSCP2PBuf(h, priv)
			}
		default: // MPMC
			if h.capacity == 0 {
				impl, err = newMPMCP2PSync(h, priv)
			} else {
				impl, err = newMPMCP2PBuf(h, priv)
			}
		}
	default: // RMA
		switch h.cardinality {
		case SPSC:
			if h.capacity == 0 {
				impl, err = newSPSCRMASync(h, priv)
			} else {
				impl, err = newSPSCRMABuf(h, priv)
			}
		case MPSC:
			if h.capacity == 0 {
				impl, err = newMPSCRMASync(h, priv)
			} else {
				impl, err = newMPSCRMABuf(h, priv)
			}
		default: // MPMC
			if h.capacity == 0 {
				impl, err = newMPMCRMASync(h, priv)
			} else {
				impl, err = newMPMCRMABuf(h, priv)
			}
		}
	}
	return impl, priv, err
}
