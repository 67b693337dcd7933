// Package bulk implements the bulk transport adapter from spec §4.6. The
// original create/pull/push/free contract targets an RDMA transfer; since
// this Go port carries payloads over net/rpc's gob-encoded structs instead
// of RDMA, a Buffer is simply the byte slice embedded in the wire struct,
// and Pull/Push become local copies against it. The contract's shape
// (allocate once, transfer in segments, verify, free) is preserved so the
// call sites in core/server and core/client don't need to know which
// transport backs them.
package bulk

import (
	"fmt"

	"github.com/gekkofs/datapath/lib/checksum"
)

// Buffer is one bulk transfer region: the payload for a single RPC's chunk
// set. It is created once per RPC (spec §4.6's "all-or-nothing" lifetime).
type Buffer struct {
	data     []byte
	checksum int
	sealed   bool
}

// Create allocates a zeroed Buffer of size bytes.
func Create(size int) *Buffer {
	return &Buffer{data: make([]byte, size)}
}

// Wrap adapts an already-received []byte (e.g. the payload field decoded
// off the wire by net/rpc) into a Buffer without copying it.
func Wrap(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Pull copies src into the buffer at offset, standing in for an RDMA pull
// of the client's write payload into local memory (spec §4.6).
func (b *Buffer) Pull(src []byte, offset int) (int, error) {
	if offset < 0 || offset+len(src) > len(b.data) {
		return 0, fmt.Errorf("bulk: pull out of bounds (offset=%d len=%d cap=%d)", offset, len(src), len(b.data))
	}
	return copy(b.data[offset:], src), nil
}

// Push copies the buffer's contents at offset into dst, standing in for an
// RDMA push of read results back to the client (spec §4.6).
func (b *Buffer) Push(dst []byte, offset, size int) (int, error) {
	if offset < 0 || offset+size > len(b.data) {
		return 0, fmt.Errorf("bulk: push out of bounds (offset=%d size=%d cap=%d)", offset, size, len(b.data))
	}
	return copy(dst, b.data[offset:offset+size]), nil
}

// Bytes exposes the underlying payload, e.g. to embed into a wire struct
// for the return trip.
func (b *Buffer) Bytes() []byte { return b.data }

// Seal computes and stores the buffer's checksum, to be shipped alongside
// the payload for the receiver to Verify against.
func (b *Buffer) Seal() int {
	b.checksum = checksum.Sum(b.data)
	b.sealed = true
	return b.checksum
}

// Verify reports whether the buffer's current contents match a checksum
// received from the other end of the transfer.
func (b *Buffer) Verify(want int) bool {
	return checksum.Verify(b.data, want)
}

// Free releases the buffer's backing storage. With net/rpc as the
// transport there is no RDMA memory region to deregister, so Free only
// drops the buffer's reference to its data. The handlers in core/server
// and core/client do not call it; their buffers are left to the garbage
// collector.
func (b *Buffer) Free() {
	b.data = nil
}
