package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gekkofs/datapath/core/bitmap"
	"github.com/gekkofs/datapath/core/placement"
)

func TestPlan_SingleHostSingleChunk(t *testing.T) {
	plans := Plan("/f", 0, 4, 64, 1)
	require.Len(t, plans, 1)
	require.Equal(t, uint32(0), plans[0].HostID)
	require.Equal(t, uint64(4), plans[0].TotalSize)
}

func TestPlan_ZeroSizeIsEmpty(t *testing.T) {
	require.Empty(t, Plan("/f", 0, 0, 64, 4))
}

func TestPlan_SegmentsCoverEntireRangeExactlyOnce(t *testing.T) {
	const chunkSize = 16
	const hostCount = 4
	const offset = 5
	const size = 100

	plans := Plan("/scratch/file", offset, size, chunkSize, hostCount)

	covered := make([]bool, size)
	for _, p := range plans {
		for _, seg := range p.Segments {
			for b := seg.BufStart; b < seg.BufEnd; b++ {
				require.False(t, covered[b], "byte %d covered twice", b)
				covered[b] = true
			}
		}
	}
	for i, c := range covered {
		require.True(t, c, "byte %d never covered", i)
	}
}

func TestPlan_BitmapMatchesPlacementHash(t *testing.T) {
	const chunkSize = 8
	const hostCount = 3
	const offset = 0
	const size = 8 * 10 // 10 whole chunks

	plans := Plan("/f", offset, size, chunkSize, hostCount)
	n := int((offset + size + chunkSize - 1) / chunkSize)

	for _, p := range plans {
		raw, err := bitmap.Decompress(p.Bitmap, n)
		require.NoError(t, err)

		for i := 0; i < n; i++ {
			chunkID := p.ChunkStart + uint64(i)
			expectedHost := placement.Hash("/f", chunkID, hostCount)
			require.Equal(t, expectedHost == p.HostID, bitmap.Get(raw, i))
		}
	}
}

func TestPlan_MidChunkOffsetShrinksFirstSegment(t *testing.T) {
	plans := Plan("/f", 5, 3, 16, 1)
	require.Len(t, plans, 1)
	require.Len(t, plans[0].Segments, 1)
	require.Equal(t, uint64(3), plans[0].Segments[0].Size())
}
