// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bufmgr_test

import (
	"testing"

	"code.hybscloud.com/mpichan/internal/bufmgr"
)

func TestAppendGrowsAndAttaches(t *testing.T) {
	var m bufmgr.Manager
	if m.Attached() {
		t.Fatal("zero-value Manager reports attached")
	}
	if code := m.Append(100); code != bufmgr.OK {
		t.Fatalf("Append: got %v, want OK", code)
	}
	if !m.Attached() {
		t.Fatal("Attached() false after a successful Append")
	}
	if m.Size() != 100 {
		t.Fatalf("Size() = %d, want 100", m.Size())
	}
}

func TestShrinkWithinSizeSucceeds(t *testing.T) {
	var m bufmgr.Manager
	m.Append(100)
	if code := m.Shrink(40); code != bufmgr.OK {
		t.Fatalf("Shrink: got %v, want OK", code)
	}
	if m.Size() != 60 {
		t.Fatalf("Size() = %d, want 60", m.Size())
	}
}

func TestShrinkPastSizeFailsSoftAndRestores(t *testing.T) {
	var m bufmgr.Manager
	m.Append(50)
	m.Append(30) // prevSize=50, size=80
	if code := m.Shrink(1000); code != bufmgr.Soft {
		t.Fatalf("Shrink past size: got %v, want Soft", code)
	}
	if m.Size() != 50 {
		t.Fatalf("Size() after soft-failed Shrink = %d, want the pre-Append(30) size of 50", m.Size())
	}
}

func TestShrinkWithNoBufferAttachedFailsFatal(t *testing.T) {
	var m bufmgr.Manager
	if code := m.Shrink(10); code != bufmgr.Fatal {
		t.Fatalf("Shrink on an unattached manager: got %v, want Fatal", code)
	}
}

func TestNegativeSizeIsFatal(t *testing.T) {
	var m bufmgr.Manager
	if code := m.Append(-1); code != bufmgr.Fatal {
		t.Fatalf("Append(-1): got %v, want Fatal", code)
	}
	m.Append(10)
	if code := m.Shrink(-1); code != bufmgr.Fatal {
		t.Fatalf("Shrink(-1): got %v, want Fatal", code)
	}
}

func TestGlobalIsASingleton(t *testing.T) {
	if bufmgr.Global() != bufmgr.Global() {
		t.Fatal("Global() returned two different Managers")
	}
}
