// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bufmgr maintains the process-wide managed outbound byte
// buffer shared by every buffered P2P channel in a process
// (spec.md §4.1). At any moment at most one buffer is attached;
// Append/Shrink adjust its size, with two-step recovery (reattach the
// previous buffer) on soft failure.
package bufmgr

import "sync"

// Code is the tri-valued result of Append/Shrink.
type Code int

const (
	// OK indicates the operation succeeded.
	OK Code = 1
	// Soft indicates the operation failed but the previous buffer was
	// successfully reattached; the process continues.
	Soft Code = -1
	// Fatal indicates no buffer could be attached even after
	// recovery; the caller must abort the process.
	Fatal Code = -2
)

// Manager tracks one process's managed outbound buffer. The zero
// value is a detached manager of size 0, ready to use.
type Manager struct {
	mu       sync.Mutex
	attached bool
	size     int
	prevSize int
}

// global is the process-wide manager every channel's Alloc/Free goes
// through, matching spec.md's "the process-wide managed outbound
// buffer is shared by every buffered P2P channel in the process".
var global Manager

// Global returns the process-wide buffer manager.
func Global() *Manager { return &global }

// Append grows the buffer by n bytes (n >= 0), attaching it if it was
// not already attached. Returns OK on success; Append cannot fail
// soft (growing never requires recovery) but can fail Fatal if n is
// invalid.
func (m *Manager) Append(n int) Code {
	if n < 0 {
		return Fatal
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prevSize = m.size
	m.size += n
	m.attached = true
	return OK
}

// Shrink reduces the buffer by n bytes. If n exceeds the current
// size, the call fails soft: the previous buffer size is reattached
// and the system continues. If no buffer is attached to reattach to,
// the call fails Fatal.
func (m *Manager) Shrink(n int) Code {
	if n < 0 {
		return Fatal
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > m.size {
		if !m.attached {
			return Fatal
		}
		m.size = m.prevSize
		return Soft
	}
	m.prevSize = m.size
	m.size -= n
	return OK
}

// Size returns the buffer's current size in bytes.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// Attached reports whether a buffer is currently attached.
func (m *Manager) Attached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attached
}
