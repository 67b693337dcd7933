// Package server implements the daemon-side RPC handlers from spec §4.5:
// for each incoming write/read/truncate/chunk-stat request, decode the
// caller's ownership bitmap, compute each owned chunk's local offset and
// transfer size, and overlap the per-chunk I/O with cooperative tasklets
// joined back into one reply.
package server

import (
	"github.com/gekkofs/datapath/core/bitmap"
	"github.com/gekkofs/datapath/core/bulk"
	gkfserr "github.com/gekkofs/datapath/core/errors"
	"github.com/gekkofs/datapath/core/storage"
	"github.com/gekkofs/datapath/core/task"
	"github.com/gekkofs/datapath/lib/logger"
	"github.com/gekkofs/datapath/rpc/dataproto"
)

// Executor is the daemon-side implementation of dataproto.DataAPI, backed
// by a local chunk storage.Engine and a bounded task.Pool for overlapping
// per-chunk I/O within one request (spec §4.5).
type Executor struct {
	engine *storage.Engine
	pool   *task.Pool
	log    *logger.Logger
}

// New constructs an Executor. ioWorkers bounds how many chunk I/O tasklets
// run concurrently across all requests this Executor serves.
func New(engine *storage.Engine, ioWorkers int, log *logger.Logger) *Executor {
	return &Executor{engine: engine, pool: task.NewPool(ioWorkers), log: log}
}

// Write implements dataproto.DataAPI.Write: it decodes the ownership
// bitmap over [ChunkStart, ChunkEnd), and for each chunk this daemon owns,
// slices the next span out of Payload and spawns a write tasklet for it.
// The first chunk in the whole (cross-daemon) range may start at a
// mid-chunk offset; every following chunk starts at 0 (spec §4.5).
func (e *Executor) Write(args *dataproto.WriteArgs, reply *dataproto.WriteReply) error {
	n := int(args.ChunkEnd - args.ChunkStart)
	owned, err := bitmap.Decompress(args.Bitmap, n)
	if err != nil {
		reply.Err = gkfserr.Errno(gkfserr.Protocol("server.write", err))
		return nil
	}

	firstChunkOffset := args.Offset % args.ChunkSize

	var events []*task.Eventual
	payloadPos := uint64(0)

	for i := 0; i < n; i++ {
		if !bitmap.Get(owned, i) {
			continue
		}

		chunkID := args.ChunkStart + uint64(i)
		localOffset := uint64(0)
		if uint64(i) == 0 {
			localOffset = firstChunkOffset
		}

		spaceInChunk := args.ChunkSize - localOffset
		remaining := uint64(len(args.Payload)) - payloadPos
		size := spaceInChunk
		if remaining < size {
			size = remaining
		}
		if size == 0 {
			continue
		}

		segment := args.Payload[payloadPos : payloadPos+size]
		payloadPos += size

		events = append(events, e.pool.Spawn(func() task.Result {
			written, err := e.engine.WriteChunk(args.Path, chunkID, segment, localOffset)
			return task.Result{N: written, Err: err}
		}))
	}

	res := task.JoinAll(events)
	reply.BytesWritten = res.N
	reply.Err = gkfserr.Errno(res.Err)
	return nil
}

// Read implements dataproto.DataAPI.Read symmetrically to Write: each
// owned chunk is read into its slot of a freshly allocated bulk buffer,
// which becomes the reply's Payload.
func (e *Executor) Read(args *dataproto.ReadArgs, reply *dataproto.ReadReply) error {
	n := int(args.ChunkEnd - args.ChunkStart)
	owned, err := bitmap.Decompress(args.Bitmap, n)
	if err != nil {
		reply.Err = gkfserr.Errno(gkfserr.Protocol("server.read", err))
		return nil
	}

	firstChunkOffset := args.Offset % args.ChunkSize

	type span struct {
		chunkID     uint64
		localOffset uint64
		size        uint64
		payloadPos  uint64
	}

	var spans []span
	payloadPos := uint64(0)

	for i := 0; i < n; i++ {
		if !bitmap.Get(owned, i) {
			continue
		}

		chunkID := args.ChunkStart + uint64(i)
		localOffset := uint64(0)
		if uint64(i) == 0 {
			localOffset = firstChunkOffset
		}

		spaceInChunk := args.ChunkSize - localOffset
		remaining := args.TotalSize - payloadPos
		size := spaceInChunk
		if remaining < size {
			size = remaining
		}
		if size == 0 {
			continue
		}

		spans = append(spans, span{chunkID: chunkID, localOffset: localOffset, size: size, payloadPos: payloadPos})
		payloadPos += size
	}

	buf := bulk.Create(int(payloadPos))

	var events []*task.Eventual
	for _, s := range spans {
		s := s
		events = append(events, e.pool.Spawn(func() task.Result {
			tmp := make([]byte, s.size)
			read, err := e.engine.ReadChunk(args.Path, s.chunkID, tmp, s.localOffset)
			if err != nil {
				return task.Result{Err: err}
			}
			if _, err := buf.Pull(tmp[:read], int(s.payloadPos)); err != nil {
				return task.Result{Err: err}
			}
			return task.Result{N: read}
		}))
	}

	res := task.JoinAll(events)
	if gkfserr.IsNotFound(res.Err) {
		// A chunk that was never written is fatal for the whole read
		// rather than a hole (spec §7's conservative, adopted choice; see
		// scenario S3): report zero bytes even though other chunks in the
		// same request may have read successfully.
		reply.BytesRead = 0
		reply.Payload = nil
		reply.Err = gkfserr.Errno(res.Err)
		return nil
	}

	reply.BytesRead = res.N
	reply.Payload = buf.Bytes()
	reply.Checksum = int64(buf.Seal())
	reply.Err = gkfserr.Errno(res.Err)
	return nil
}

// Truncate implements dataproto.DataAPI.Truncate: it truncates this
// daemon's remainder chunk of the file to its new local length and trims
// every chunk this daemon owns beyond it (spec §4.2, §4.5).
func (e *Executor) Truncate(args *dataproto.TruncateArgs, reply *dataproto.TruncateReply) error {
	newChunkCount := (args.NewSize + args.ChunkSize - 1) / args.ChunkSize
	if newChunkCount == 0 {
		reply.Err = gkfserr.Errno(e.engine.DestroyChunkSpace(args.Path))
		return nil
	}

	lastChunkID := newChunkCount - 1
	remainder := args.NewSize - lastChunkID*args.ChunkSize

	if err := e.engine.TruncateChunkFile(args.Path, lastChunkID, remainder); err != nil {
		if !gkfserr.IsNotFound(err) {
			reply.Err = gkfserr.Errno(err)
			return nil
		}
	}

	reply.Err = gkfserr.Errno(e.engine.TrimChunkSpace(args.Path, newChunkCount))
	return nil
}

// ChunkStat implements dataproto.DataAPI.ChunkStat, reporting this
// daemon's local storage.Engine statistics for the client to aggregate
// (spec §4.2, §6).
func (e *Executor) ChunkStat(_ *dataproto.ChunkStatArgs, reply *dataproto.ChunkStatReply) error {
	stat, err := e.engine.ChunkStat()
	if err != nil {
		reply.Err = gkfserr.Errno(err)
		return nil
	}

	reply.ChunkSize = stat.ChunkSize
	reply.ChunksTotal = stat.ChunksTotal
	reply.ChunksFree = stat.ChunksFree
	return nil
}
