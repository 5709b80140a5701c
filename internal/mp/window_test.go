// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mp_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/mpichan/internal/mp"
)

type counterSlot struct {
	v atomix.Int64
}

func TestBoxEveryRankSharesOneBackingArray(t *testing.T) {
	const n = 4
	world := mp.NewWorld(n)

	var wg sync.WaitGroup
	boxes := make([]*mp.Box[counterSlot], n)
	wg.Add(n)
	for r := 0; r < n; r++ {
		go func(r int) {
			defer wg.Done()
			boxes[r] = mp.NewBox[counterSlot](world.Rank(r))
		}(r)
	}
	wg.Wait()

	for r := 1; r < n; r++ {
		if boxes[r] != boxes[0] {
			t.Fatalf("rank %d got a different Box than rank 0", r)
		}
	}
	if boxes[0].Size() != n {
		t.Fatalf("Size() = %d, want %d", boxes[0].Size(), n)
	}

	boxes[0].At(2).v.StoreRelease(99)
	if got := boxes[3].At(2).v.LoadAcquire(); got != 99 {
		t.Fatalf("rank 3 observed %d through rank 2's slot, want 99", got)
	}
}

func TestRawWindowPutGet(t *testing.T) {
	world := mp.NewWorld(1)
	win := mp.NewRawWindowBox(world.Rank(0), 4)

	win.At(0).Put([]byte{1, 2, 3, 4})
	buf := make([]byte, 4)
	win.At(0).Get(buf)
	want := []byte{1, 2, 3, 4}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("byte %d: got %d, want %d", i, buf[i], want[i])
		}
	}
}

func TestPollUntilBlocksUntilConditionTrue(t *testing.T) {
	var flag atomix.Bool
	done := make(chan struct{})

	go func() {
		mp.PollUntil(func() bool { return flag.LoadAcquire() })
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("PollUntil returned before the condition became true")
	case <-time.After(20 * time.Millisecond):
	}

	flag.StoreRelease(true)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PollUntil did not return after the condition became true")
	}
}
