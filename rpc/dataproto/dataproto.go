// Package dataproto defines the wire structs for the data-path RPCs named
// in spec §4.5 and §9: write, read, truncate and chunk-stat. It mirrors
// the teacher's rpc/chunkserver package (one Args/Reply pair per verb,
// dispatched through net/rpc) but carries the request's ownership bitmap
// and bulk payload instead of chunk-server-to-chunk-server replication
// arguments.
package dataproto

import "github.com/google/uuid"

// WriteArgs is the daemon-bound half of a write RPC: the byte-range plan
// core/client computed for this daemon, plus the payload bytes it owns.
// RequestID lets every log line for one client-issued write be correlated
// across every daemon it fans out to (grounded in the teacher's ubiquitous
// use of uuid.UUID as a correlation key).
type WriteArgs struct {
	RequestID  uuid.UUID
	Path       string
	ChunkStart uint64
	ChunkEnd   uint64
	ChunkSize  uint64
	Offset     uint64
	Bitmap     []byte // compressed ownership bitmap, see core/bitmap
	Payload    []byte // the bulk buffer window belonging to this daemon
}

// WriteReply reports how many bytes this daemon actually wrote. Err is the
// errno-compatible code named in spec §6's wire protocol output
// (`{ err: i32, io_size: u64 }`); it travels as ordinary reply data rather
// than a net/rpc method error so the caller always gets both the error
// code and the partial byte count together, even on failure.
type WriteReply struct {
	BytesWritten uint64
	Err          int32
}

// ReadArgs is the daemon-bound half of a read RPC.
type ReadArgs struct {
	RequestID  uuid.UUID
	Path       string
	ChunkStart uint64
	ChunkEnd   uint64
	ChunkSize  uint64
	Bitmap     []byte
	// TotalSize is the number of bytes this daemon must return: the sum of
	// the segment sizes of the chunks it owns in the request, which the
	// server uses to size the last owned chunk's read (spec §4.5).
	TotalSize uint64
	Offset    uint64
}

// ReadReply carries back this daemon's contribution to the read: Payload
// holds the owned chunks' bytes packed back to back in ascending chunk
// order, which the client splits into its segments of the caller's
// buffer. Checksum is the sending core/bulk
// Buffer's Seal() over Payload; the client Verifies it before trusting the
// bytes (spec §4.6's bulk transport integrity check).
type ReadReply struct {
	BytesRead uint64
	Payload   []byte
	Checksum  int64
	Err       int32
}

// TruncateArgs asks a daemon to truncate the chunk of path that holds the
// file's new end down to its remaining length, and remove every later
// chunk it holds (spec §4.2, §4.5).
type TruncateArgs struct {
	RequestID uuid.UUID
	Path      string
	NewSize   uint64
	ChunkSize uint64
}

// TruncateReply carries the errno-compatible result of a truncate RPC.
type TruncateReply struct {
	Err int32
}

// ChunkStatArgs asks a daemon for its local chunk storage statistics
// (spec §4.2, §6, scenario S6).
type ChunkStatArgs struct {
	RequestID uuid.UUID
}

// ChunkStatReply is one daemon's contribution to an aggregated chunk_stat.
type ChunkStatReply struct {
	ChunkSize   uint64
	ChunksTotal uint64
	ChunksFree  uint64
	Err         int32
}

// DataAPI is the RPC-registrable surface every daemon exposes, matching
// the shape of the teacher's rpc/chunkserver.IChunkServer interface.
type DataAPI interface {
	Write(args *WriteArgs, reply *WriteReply) error
	Read(args *ReadArgs, reply *ReadReply) error
	Truncate(args *TruncateArgs, reply *TruncateReply) error
	ChunkStat(args *ChunkStatArgs, reply *ChunkStatReply) error
}
