// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mp_test

import (
	"errors"
	"sync"
	"testing"

	"code.hybscloud.com/mpichan/internal/mp"
)

func TestBarrierReleasesAllRanks(t *testing.T) {
	const n = 8
	world := mp.NewWorld(n)

	var wg sync.WaitGroup
	var before, after [n]int
	wg.Add(n)
	for r := 0; r < n; r++ {
		go func(r int) {
			defer wg.Done()
			before[r] = r
			world.Rank(r).Barrier()
			after[r] = r * r
		}(r)
	}
	wg.Wait()

	for r := 0; r < n; r++ {
		if after[r] != r*r {
			t.Fatalf("rank %d: after[] not observed, barrier did not release every rank", r)
		}
	}
}

func TestAllgatherBoolOrdersByRank(t *testing.T) {
	const n = 5
	world := mp.NewWorld(n)
	want := []bool{true, false, true, true, false}

	var wg sync.WaitGroup
	got := make([][]bool, n)
	wg.Add(n)
	for r := 0; r < n; r++ {
		go func(r int) {
			defer wg.Done()
			got[r] = world.Rank(r).AllgatherBool(want[r])
		}(r)
	}
	wg.Wait()

	for r := 0; r < n; r++ {
		for i := range want {
			if got[r][i] != want[i] {
				t.Fatalf("rank %d's view of index %d: got %v, want %v", r, i, got[r][i], want[i])
			}
		}
	}
}

func TestAllreduceAndU64Pair(t *testing.T) {
	const n = 3
	world := mp.NewWorld(n)
	sizes := []uint64{0xFF, 0x0F, 0xFF}
	caps := []uint64{7, 7, 3}

	var wg sync.WaitGroup
	gotA := make([]uint64, n)
	gotB := make([]uint64, n)
	wg.Add(n)
	for r := 0; r < n; r++ {
		go func(r int) {
			defer wg.Done()
			gotA[r], gotB[r] = world.Rank(r).AllreduceAndU64Pair(sizes[r], caps[r])
		}(r)
	}
	wg.Wait()

	for r := 0; r < n; r++ {
		if gotA[r] != 0x0F {
			t.Fatalf("rank %d: AND-reduced first word = %#x, want 0x0f", r, gotA[r])
		}
		if gotB[r] != 3 {
			t.Fatalf("rank %d: AND-reduced second word = %d, want 3", r, gotB[r])
		}
	}
}

func TestAllreduceSumInt(t *testing.T) {
	const n = 4
	world := mp.NewWorld(n)
	contrib := []int{1, 0, 1, 1}

	var wg sync.WaitGroup
	sums := make([]int, n)
	wg.Add(n)
	for r := 0; r < n; r++ {
		go func(r int) {
			defer wg.Done()
			sums[r] = world.Rank(r).AllreduceSumInt(contrib[r])
		}(r)
	}
	wg.Wait()

	for r, sum := range sums {
		if sum != 3 {
			t.Fatalf("rank %d: sum = %d, want 3", r, sum)
		}
	}
}

func TestDupGivesEachRankAPrivateContext(t *testing.T) {
	const n = 2
	world := mp.NewWorld(n)

	var wg sync.WaitGroup
	wg.Add(n)
	var recvErr error
	for r := 0; r < n; r++ {
		go func(r int) {
			defer wg.Done()
			parent := world.Rank(r)
			priv := parent.Dup()
			if r == 0 {
				priv.Send(1, 77, []byte("hello"))
				return
			}
			priv.Probe(0, 77)
			if ok, _, _ := parent.Iprobe(mp.AnySource, mp.AnyTag); ok {
				recvErr = errors.New("message sent on the duplicate is visible on the parent context")
				return
			}
			buf := make([]byte, 5)
			_, tag, err := priv.Recv(0, 77, buf)
			if err != nil {
				recvErr = err
				return
			}
			if tag != 77 || string(buf) != "hello" {
				recvErr = errors.New("unexpected payload received on duplicated context")
			}
		}(r)
	}
	wg.Wait()
	if recvErr != nil {
		t.Fatal(recvErr)
	}
}

func TestSendBlocksUntilMatchingRecv(t *testing.T) {
	world := mp.NewWorld(2)
	comm0 := world.Rank(0)
	comm1 := world.Rank(1)

	sent := make(chan struct{})
	go func() {
		comm0.Send(1, 1, []byte{1, 2, 3, 4})
		close(sent)
	}()

	select {
	case <-sent:
		t.Fatal("Send returned before a matching Recv consumed the payload")
	default:
	}

	buf := make([]byte, 4)
	if _, _, err := comm1.Recv(0, 1, buf); err != nil {
		t.Fatal(err)
	}
	<-sent
}

func TestIprobeDoesNotConsume(t *testing.T) {
	world := mp.NewWorld(2)
	comm0 := world.Rank(0)
	comm1 := world.Rank(1)

	comm0.BufferedSend(1, 9, []byte{42})

	ok, from, tag := comm1.Iprobe(mp.AnySource, mp.AnyTag)
	if !ok || from != 0 || tag != 9 {
		t.Fatalf("Iprobe: got (%v, %d, %d), want (true, 0, 9)", ok, from, tag)
	}
	// Probing again must still see the same, unconsumed message.
	ok, _, _ = comm1.Iprobe(0, 9)
	if !ok {
		t.Fatal("Iprobe consumed the message on first call")
	}

	buf := make([]byte, 1)
	if _, _, err := comm1.Recv(0, 9, buf); err != nil {
		t.Fatal(err)
	}
	if ok, _, _ := comm1.Iprobe(mp.AnySource, mp.AnyTag); ok {
		t.Fatal("Iprobe still reports a message after Recv consumed it")
	}
}

func TestSendToBadRank(t *testing.T) {
	world := mp.NewWorld(2)
	comm0 := world.Rank(0)
	if err := comm0.BufferedSend(5, 0, nil); err != mp.ErrBadRank {
		t.Fatalf("BufferedSend to out-of-range rank: got %v, want ErrBadRank", err)
	}
}

func TestInitFinalize(t *testing.T) {
	if mp.Initialized() {
		mp.Finalize()
	}
	if mp.Initialized() {
		t.Fatal("Initialized() true after Finalize")
	}
	mp.Init()
	if !mp.Initialized() {
		t.Fatal("Initialized() false after Init")
	}
	mp.Finalize()
	if mp.Initialized() {
		t.Fatal("Initialized() true after Finalize")
	}
}
