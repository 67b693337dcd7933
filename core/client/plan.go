// Package client implements the client-side request planner and dispatcher
// from spec §4.4: turning one byte-range operation into a set of
// per-daemon chunk plans, and spec §4.4/§9's parallel RPC dispatch with
// timeout and retry.
package client

import (
	"sort"

	"github.com/gekkofs/datapath/core/bitmap"
	"github.com/gekkofs/datapath/core/placement"
)

// Segment is one chunk's contribution to a request, expressed as a byte
// range into the caller's flat request buffer (the write payload being
// sent, or the read buffer being filled).
type Segment struct {
	ChunkID  uint64
	BufStart uint64
	BufEnd   uint64
}

// Size returns the segment's byte length.
func (s Segment) Size() uint64 { return s.BufEnd - s.BufStart }

// HostPlan is everything one daemon needs to know about its share of a
// byte-range request: the chunk range it must consider, a compressed
// bitmap of which of those chunks it actually owns, and the byte segments
// (in ascending chunk order) that make up its slice of the request buffer.
type HostPlan struct {
	HostID     uint32
	ChunkStart uint64
	ChunkEnd   uint64
	Bitmap     []byte
	Segments   []Segment
	TotalSize  uint64
}

// Plan computes the per-daemon chunk plan for a byte range [offset,
// offset+size) of path, exactly as spec §4.4 describes: chunkStart and
// chunkEnd bound the whole range, and each daemon receives the same
// [chunkStart, chunkEnd) window with a bitmap marking which chunks in it
// belong to it (per core/placement.Hash), so client and daemon agree on
// per-chunk local/origin offsets without exchanging them explicitly.
func Plan(path string, offset, size, chunkSize uint64, hostCount uint32) []HostPlan {
	if size == 0 {
		return nil
	}

	chunkStart := offset / chunkSize
	chunkEnd := (offset + size + chunkSize - 1) / chunkSize
	n := int(chunkEnd - chunkStart)

	owned := make(map[uint32][]bool, hostCount)
	segments := make(map[uint32][]Segment, hostCount)

	bufPos := uint64(0)
	for i := 0; i < n; i++ {
		chunkID := chunkStart + uint64(i)
		host := placement.Hash(path, chunkID, hostCount)

		localOffset := uint64(0)
		if i == 0 {
			localOffset = offset % chunkSize
		}
		spaceInChunk := chunkSize - localOffset
		remaining := size - bufPos
		segSize := spaceInChunk
		if remaining < segSize {
			segSize = remaining
		}

		if _, ok := owned[host]; !ok {
			owned[host] = make([]bool, n)
		}
		owned[host][i] = true
		segments[host] = append(segments[host], Segment{ChunkID: chunkID, BufStart: bufPos, BufEnd: bufPos + segSize})

		bufPos += segSize
	}

	plans := make([]HostPlan, 0, len(owned))
	for host, ownedBits := range owned {
		var total uint64
		for _, s := range segments[host] {
			total += s.Size()
		}

		plans = append(plans, HostPlan{
			HostID:     host,
			ChunkStart: chunkStart,
			ChunkEnd:   chunkEnd,
			Bitmap:     bitmap.Compress(bitmap.Build(n, func(i int) bool { return ownedBits[i] }), n),
			Segments:   segments[host],
			TotalSize:  total,
		})
	}

	sort.Slice(plans, func(i, j int) bool { return plans[i].HostID < plans[j].HostID })
	return plans
}
