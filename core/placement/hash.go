// Package placement implements the chunk ownership hash from spec §4.1: a
// pure, total function mapping (path, chunk id) to an owning daemon that is
// deterministic across client and daemon builds and approximately uniform
// across both files and chunks of a single file.
package placement

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Hash maps (path, chunkID) to a daemon index in [0, hostCount). It
// concatenates the path bytes with the little-endian chunk id and reduces
// the resulting 64-bit xxhash digest modulo hostCount, exactly as spec §4.1
// specifies as the reference choice. hostCount must be > 0.
func Hash(path string, chunkID uint64, hostCount uint32) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], chunkID)

	h := xxhash.New()
	// xxhash.Digest.Write never returns an error.
	_, _ = h.WriteString(path)
	_, _ = h.Write(buf[:])

	return uint32(h.Sum64() % uint64(hostCount))
}
