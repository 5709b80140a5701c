// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mp

import "errors"

// ErrBadRank is returned by a P2P or RMA operation addressed to a
// rank outside the communicator's range.
var ErrBadRank = errors.New("mp: rank out of range")
