// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan

// Ring index arithmetic shared by the three RMA buffered variants
// (spec.md §3 "Ring buffer", §9 "Bounded ring sizing"). A ring of
// capacity n uses n+1 physical slots to distinguish full from empty
// without a separate counter — the FAO-based Michael-Scott insertion
// used by the MPSC/MPMC RMA BUF variants requires that sentinel, so
// every ring in this package uses it too, even where a plain SPSC
// ring buffer could get away with n slots.

// ringSlots returns the physical slot count for a ring of the given
// capacity.
func ringSlots(capacity int) int { return capacity + 1 }

// ringEmpty reports whether a ring with the given read/write indices
// (both in [0, capacity]) is empty.
func ringEmpty(read, write uint64) bool { return read == write }

// ringFull reports whether a ring with the given read/write indices
// is full, for a ring of the given capacity (n+1 physical slots).
func ringFull(read, write uint64, capacity int) bool {
	return (write+1)%uint64(ringSlots(capacity)) == read
}

// ringAdvance returns idx+1 wrapped into [0, capacity].
func ringAdvance(idx uint64, capacity int) uint64 {
	return (idx + 1) % uint64(ringSlots(capacity))
}

// nullNode is the "no successor" sentinel for RMA BUF node links and
// the "idle"/"empty" sentinel for MCS latest/head/tail words.
const nullNode int64 = -1

// encodeNodeID packs an (owner rank, slot index) pair into the
// globally unique node identifier spec.md §3/§6 defines:
// node_id = owner_rank * (capacity+1) + slot_index.
func encodeNodeID(ownerRank, slot, capacity int) int64 {
	return int64(ownerRank)*int64(ringSlots(capacity)) + int64(slot)
}

// decodeNodeID reverses encodeNodeID.
func decodeNodeID(nodeID int64, capacity int) (ownerRank, slot int) {
	n := int64(ringSlots(capacity))
	return int(nodeID / n), int(nodeID % n)
}
