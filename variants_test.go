// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan_test

import (
	"encoding/binary"
	"fmt"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/mpichan"
	"code.hybscloud.com/mpichan/internal/fifo"
	"code.hybscloud.com/mpichan/internal/mp"
)

// variantTimeout bounds how long runVariant waits for every rank to
// finish before declaring a suspected deadlock, mirroring the
// deadline+timeout pattern the teacher's own linearizability tests
// poll against (see correctness_test.go's waitForCount).
const variantTimeout = 30 * time.Second

// received is one decoded element: which producer rank sent it
// (0-based among the channel's senders) and at what sequence number.
type received struct {
	producer int
	seq      int
}

// runVariant allocates one channel across producers+receivers goroutine
// ranks (receivers occupy the low ranks, per spec.md's "lowest-ranked
// receiver is the RMA anchor"), has every producer send perProducer
// sequential elements, has every receiver drain its statically
// assigned share, and returns each receiver's elements in arrival
// order. perProducer*producers must be evenly divisible by receivers
// so every receiver's Receive count is known up front.
func runVariant(t *testing.T, substrate mpichan.Substrate, producers, receivers, capacity, perProducer int) [][]received {
	t.Helper()
	total := producers * perProducer
	if total%receivers != 0 {
		t.Fatalf("test setup: %d messages not evenly divisible by %d receivers", total, receivers)
	}
	perReceiver := total / receivers

	world := mp.NewWorld(producers + receivers)
	const elemSize = 8

	results := make([][]received, receivers)
	errs := make([]error, producers+receivers)

	var wg sync.WaitGroup
	wg.Add(producers + receivers)
	for r := 0; r < producers+receivers; r++ {
		isRecv := r < receivers
		go func(r int, isRecv bool) {
			defer wg.Done()
			h, err := mpichan.Alloc(elemSize, capacity, substrate, world.Rank(r), isRecv)
			if err != nil {
				errs[r] = fmt.Errorf("rank %d: Alloc: %w", r, err)
				return
			}
			defer h.Free()

			buf := make([]byte, elemSize)
			if !isRecv {
				producerID := r - receivers
				for seq := 0; seq < perProducer; seq++ {
					binary.LittleEndian.PutUint32(buf[0:4], uint32(producerID))
					binary.LittleEndian.PutUint32(buf[4:8], uint32(seq))
					if err := h.Send(buf); err != nil {
						errs[r] = fmt.Errorf("rank %d: Send: %w", r, err)
						return
					}
				}
				return
			}

			// Record the raw wire-order payloads in a fifo.Queue rather
			// than decoding them inline, so the arrival order it replays
			// back is exactly what the receiver observed.
			q := fifo.New(elemSize)
			for i := 0; i < perReceiver; i++ {
				if err := h.Receive(buf); err != nil {
					errs[r] = fmt.Errorf("rank %d: Receive: %w", r, err)
					return
				}
				q.Push(buf)
			}

			local := make([]received, 0, perReceiver)
			for {
				elem, ok := q.Pop()
				if !ok {
					break
				}
				local = append(local, received{
					producer: int(binary.LittleEndian.Uint32(elem[0:4])),
					seq:      int(binary.LittleEndian.Uint32(elem[4:8])),
				})
			}
			results[r] = local
		}(r, isRecv)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(variantTimeout):
		t.Fatalf("%d ranks did not finish %d messages within %v — suspected deadlock", producers+receivers, total, variantTimeout)
	}

	for _, err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	return results
}

// assertFIFOPerSenderReceiver checks spec.md's core ordering invariant:
// for any one sender, the elements that one particular receiver
// observes from it must arrive in the sender's original order
// (though a given receiver need not see every element that sender
// produced, and the elements need not be contiguous).
func assertFIFOPerSenderReceiver(t *testing.T, results [][]received, producers, perProducer int) {
	t.Helper()
	countByProducer := make([]int, producers)
	for recvIdx, list := range results {
		last := make([]int, producers)
		for i := range last {
			last[i] = -1
		}
		for _, rec := range list {
			if rec.producer < 0 || rec.producer >= producers {
				t.Fatalf("receiver %d: producer id %d out of range", recvIdx, rec.producer)
			}
			if rec.seq <= last[rec.producer] {
				t.Fatalf("receiver %d: producer %d out of order: got seq %d after %d", recvIdx, rec.producer, rec.seq, last[rec.producer])
			}
			last[rec.producer] = rec.seq
			countByProducer[rec.producer]++
		}
	}
	for p, c := range countByProducer {
		if c != perProducer {
			t.Fatalf("producer %d: %d elements observed across all receivers, want %d", p, c, perProducer)
		}
	}
}

func TestVariantsRoundTrip(t *testing.T) {
	const perProducer = 24

	cases := []struct {
		name       string
		substrate  mpichan.Substrate
		producers  int
		receivers  int
		capacity   int
	}{
		{"SPSC/P2P/Sync", mpichan.P2P, 1, 1, 0},
		{"SPSC/P2P/Buf", mpichan.P2P, 1, 1, 3},
		{"MPSC/P2P/Sync", mpichan.P2P, 3, 1, 0},
		{"MPSC/P2P/Buf", mpichan.P2P, 3, 1, 3},
		{"MPMC/P2P/Sync", mpichan.P2P, 3, 2, 0},
		{"MPMC/P2P/Buf", mpichan.P2P, 3, 2, 3},
		{"SPSC/RMA/Sync", mpichan.RMA, 1, 1, 0},
		{"SPSC/RMA/Buf", mpichan.RMA, 1, 1, 3},
		{"MPSC/RMA/Sync", mpichan.RMA, 3, 1, 0},
		{"MPSC/RMA/Buf", mpichan.RMA, 3, 1, 3},
		{"MPMC/RMA/Sync", mpichan.RMA, 3, 2, 0},
		{"MPMC/RMA/Buf", mpichan.RMA, 3, 2, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			results := runVariant(t, tc.substrate, tc.producers, tc.receivers, tc.capacity, perProducer)
			assertFIFOPerSenderReceiver(t, results, tc.producers, perProducer)
		})
	}
}

// TestSPSCExactOrder checks the strongest form of the ordering
// invariant available to a single-producer-single-consumer channel:
// with only one sender and one receiver, the two are trivially the
// same pair on every message, so delivery must be exactly in order.
func TestSPSCExactOrder(t *testing.T) {
	for _, substrate := range []mpichan.Substrate{mpichan.P2P, mpichan.RMA} {
		for _, capacity := range []int{0, 1, 4} {
			name := fmt.Sprintf("%s/cap=%d", substrate, capacity)
			t.Run(name, func(t *testing.T) {
				results := runVariant(t, substrate, 1, 1, capacity, 50)
				list := results[0]
				if len(list) != 50 {
					t.Fatalf("got %d elements, want 50", len(list))
				}
				for i, rec := range list {
					if rec.seq != i {
						t.Fatalf("element %d: got seq %d, want %d", i, rec.seq, i)
					}
				}
			})
		}
	}
}

// TestBufferedWrapAround sends many more elements than the ring's
// physical slot count through the two SPSC BUF variants (P2P and
// RMA), checking that their index and credit arithmetic wraps
// correctly rather than silently corrupting or losing elements
// (spec.md §8's ring-wrap scenario).
func TestBufferedWrapAround(t *testing.T) {
	for _, substrate := range []mpichan.Substrate{mpichan.P2P, mpichan.RMA} {
		t.Run(substrate.String(), func(t *testing.T) {
			const capacity = 3
			results := runVariant(t, substrate, 1, 1, capacity, capacity*10+1)
			list := results[0]
			if len(list) != capacity*10+1 {
				t.Fatalf("got %d elements, want %d", len(list), capacity*10+1)
			}
			for i, rec := range list {
				if rec.seq != i {
					t.Fatalf("element %d: got seq %d, want %d", i, rec.seq, i)
				}
			}
		})
	}
}
