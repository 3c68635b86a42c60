// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nbq

import (
	"unsafe"

	"code.hybscloud.com/atomix"
	"golang.org/x/sys/cpu"
)

// cacheLineSize is the false sharing granule of the target architecture:
// 64 bytes on amd64 and arm64, larger on ppc64 and s390x.
const cacheLineSize = int(unsafe.Sizeof(cpu.CacheLinePad{}))

// pad is cache line padding to prevent false sharing.
type pad cpu.CacheLinePad

// padShort is padding to fill a cache line after an 8-byte field.
type padShort [cacheLineSize - 8]byte

// cursor is a monotonic 64-bit sequence counter on its own cache line.
//
// A cursor is written by the role that owns it (a single producer or
// consumer, or several of them through CAS) and read by the peer role.
// The slot index is always sequence & mask; the counter never wraps.
type cursor struct {
	_ pad
	atomix.Uint64
	_ padShort
}

// cache is a plain copy of the peer's cursor (or a limit derived from it).
//
// Only the owning role ever touches a cache, so it is accessed without
// atomics. It is refreshed from the peer cursor only when the local view
// indicates a full or empty boundary.
type cache struct {
	_ pad
	v uint64
	_ padShort
}

// occupancy returns tail - head from a consistent snapshot of both cursors.
//
// The consumer cursor is read before and after the producer cursor; the
// snapshot is accepted once the consumer did not move in between, which
// guarantees head <= tail for the returned pair.
func occupancy(head, tail *cursor, capacity uint64) int {
	after := head.LoadAcquire()
	for {
		before := after
		t := tail.LoadAcquire()
		after = head.LoadAcquire()
		if before == after {
			n := t - after
			if n > capacity {
				n = capacity
			}
			return int(n)
		}
	}
}
