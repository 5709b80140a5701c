// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpichan

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates an operation cannot proceed immediately.
// It is a control-flow signal, not a failure. No operation of this
// package returns it: Peek reports "no message yet" as 0 with a nil
// error. This is an alias for [iox.ErrWouldBlock] for ecosystem
// consistency with the substrate's own dependency.
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err indicates an operation would
// block. Delegates to [iox.IsWouldBlock] for wrapped-error support.
func IsWouldBlock(err error) bool { return iox.IsWouldBlock(err) }

// The five kinds of spec.md §7's error taxonomy, realized as sentinel
// errors. Each is "a kind, not a type": callers compare with
// [errors.Is], and a returned error may wrap one of these with
// [fmt.Errorf]'s %w for extra context.
var (
	// ErrMisuse covers null/invalid arguments, a sender calling
	// Receive (or vice versa), and Peek on a synchronous variant.
	// Soft: the operation returns an error but the channel remains
	// usable.
	ErrMisuse = errors.New("mpichan: misuse")

	// ErrConstructionMismatch is returned by Alloc, on every
	// participant, when element_size or capacity differed across the
	// communicator, or the cardinality the gathered roles imply is
	// invalid (zero senders or zero receivers).
	ErrConstructionMismatch = errors.New("mpichan: construction parameter mismatch")

	// ErrAllocationFailure covers memory or managed-buffer exhaustion
	// during construction (collective) or at runtime (local to one
	// rank's send).
	ErrAllocationFailure = errors.New("mpichan: allocation failure")

	// ErrSubstrateFailure is returned when the underlying MP
	// substrate reports a non-success from a critical call inside a
	// variant. The channel is considered potentially broken
	// afterward; no further recovery is attempted.
	ErrSubstrateFailure = errors.New("mpichan: substrate failure")

	// ErrFatal indicates the process-wide managed buffer could
	// neither grow nor be restored. The process must abort; mpichan
	// itself never calls os.Exit, it only reports this error.
	ErrFatal = errors.New("mpichan: fatal buffer failure")

	// ErrUnsupported is returned by Peek on synchronous (capacity-0)
	// variants, which have no credit or pending-count concept to
	// report. It wraps ErrMisuse.
	ErrUnsupported = fmt.Errorf("%w: unsupported on this variant", ErrMisuse)

	// ErrNotInitialized is returned by Alloc when the MP substrate has
	// not been initialized.
	ErrNotInitialized = errors.New("mpichan: substrate not initialized")
)

// IsMisuse reports whether err (or something it wraps) is ErrMisuse.
func IsMisuse(err error) bool { return errors.Is(err, ErrMisuse) }

// IsFatal reports whether err (or something it wraps) is ErrFatal.
func IsFatal(err error) bool { return errors.Is(err, ErrFatal) }
