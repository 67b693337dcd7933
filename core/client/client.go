package client

import (
	"fmt"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/gekkofs/datapath/core/bulk"
	"github.com/gekkofs/datapath/core/config"
	gkfserr "github.com/gekkofs/datapath/core/errors"
	"github.com/gekkofs/datapath/core/membership"
	"github.com/gekkofs/datapath/core/task"
	"github.com/gekkofs/datapath/lib/logger"
	"github.com/gekkofs/datapath/rpc/dataproto"
)

// Client is the mount-side entry point implementing spec §4.4's
// read/write/truncate/stat operations: it plans a byte range into
// per-daemon chunk plans and fans the resulting RPCs out through a
// Dispatcher.
type Client struct {
	members    *membership.List
	dispatcher *Dispatcher
	chunkSize  uint64
	log        *logger.Logger
}

// New constructs a Client from a loaded config.Client and static
// membership list.
func New(cfg *config.Client, log *logger.Logger) (*Client, error) {
	members, err := membership.New(cfg.Hosts)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.RPCTimeoutMS) * time.Millisecond
	dispatcher := NewDispatcher(members, timeout, cfg.RPCRetries, log)

	return &Client{members: members, dispatcher: dispatcher, chunkSize: cfg.ChunkSize, log: log}, nil
}

// Close releases all cached daemon connections.
func (c *Client) Close() { c.dispatcher.Close() }

// Write implements spec §4.4's write path: plan data's byte range against
// the current membership, pack each daemon's owned bytes into its own
// payload, and dispatch all daemon writes in parallel joined with
// sticky-first-error semantics (spec §4.3's core/task.JoinAll).
func (c *Client) Write(path string, data []byte, offset uint64) (uint64, error) {
	plans := Plan(path, offset, uint64(len(data)), c.chunkSize, c.members.Count())
	if len(plans) == 0 {
		return 0, nil
	}

	pool := task.NewPool(0)
	var events []*task.Eventual

	for _, p := range plans {
		p := p
		payload := make([]byte, p.TotalSize)
		pos := uint64(0)
		for _, seg := range p.Segments {
			pos += uint64(copy(payload[pos:], data[seg.BufStart:seg.BufEnd]))
		}

		args := &dataproto.WriteArgs{
			RequestID:  uuid.New(),
			Path:       path,
			ChunkStart: p.ChunkStart,
			ChunkEnd:   p.ChunkEnd,
			ChunkSize:  c.chunkSize,
			Offset:     offset,
			Bitmap:     p.Bitmap,
			Payload:    payload,
		}

		events = append(events, pool.Spawn(func() task.Result {
			var reply dataproto.WriteReply
			if err := c.dispatcher.Call(p.HostID, "DataAPI.Write", args, &reply); err != nil {
				return task.Result{Err: err}
			}
			return task.Result{N: reply.BytesWritten, Err: gkfserr.FromErrno(reply.Err)}
		}))
	}

	res := task.JoinAll(events)
	return res.N, res.Err
}

// Read implements spec §4.4's read path symmetrically to Write: it plans
// buf's byte range, fans a read out to every daemon that owns a chunk in
// it, and copies each daemon's reply payload back into buf at the
// corresponding segment offsets.
func (c *Client) Read(path string, buf []byte, offset uint64) (uint64, error) {
	plans := Plan(path, offset, uint64(len(buf)), c.chunkSize, c.members.Count())
	if len(plans) == 0 {
		return 0, nil
	}

	pool := task.NewPool(0)
	var events []*task.Eventual

	for _, p := range plans {
		p := p
		args := &dataproto.ReadArgs{
			RequestID:  uuid.New(),
			Path:       path,
			ChunkStart: p.ChunkStart,
			ChunkEnd:   p.ChunkEnd,
			ChunkSize:  c.chunkSize,
			Offset:     offset,
			TotalSize:  p.TotalSize,
			Bitmap:     p.Bitmap,
		}

		events = append(events, pool.Spawn(func() task.Result {
			var reply dataproto.ReadReply
			if err := c.dispatcher.Call(p.HostID, "DataAPI.Read", args, &reply); err != nil {
				return task.Result{Err: err}
			}
			if err := gkfserr.FromErrno(reply.Err); err != nil {
				return task.Result{Err: err}
			}

			received := bulk.Wrap(reply.Payload)
			if !received.Verify(int(reply.Checksum)) {
				return task.Result{Err: gkfserr.Io("client.read.verify", syscall.EIO,
					fmt.Errorf("checksum mismatch from host %d", p.HostID))}
			}

			pos := uint64(0)
			for _, seg := range p.Segments {
				n := seg.Size()
				if _, err := received.Push(buf[seg.BufStart:seg.BufEnd], int(pos), int(n)); err != nil {
					return task.Result{Err: gkfserr.Protocol("client.read.push", err)}
				}
				pos += n
			}

			return task.Result{N: reply.BytesRead}
		}))
	}

	res := task.JoinAll(events)
	return res.N, res.Err
}

// Truncate implements spec §4.2/§4.4's truncate path: every daemon in the
// mount is asked to truncate its remainder chunk and trim everything past
// it down to newSize, since ownership of the file's tail chunk may shift
// between daemons as newSize changes.
func (c *Client) Truncate(path string, newSize uint64) error {
	pool := task.NewPool(0)
	var events []*task.Eventual

	for _, hostID := range allHostIDs(c.members.Count()) {
		hostID := hostID
		args := &dataproto.TruncateArgs{
			RequestID: uuid.New(),
			Path:      path,
			NewSize:   newSize,
			ChunkSize: c.chunkSize,
		}

		events = append(events, pool.Spawn(func() task.Result {
			var reply dataproto.TruncateReply
			if err := c.dispatcher.Call(hostID, "DataAPI.Truncate", args, &reply); err != nil {
				return task.Result{Err: err}
			}
			return task.Result{Err: gkfserr.FromErrno(reply.Err)}
		}))
	}

	return task.JoinAll(events).Err
}

// AggregatedStat is the mount-wide chunk_stat named in spec §4.2/§6,
// summing every daemon's local capacity.
type AggregatedStat struct {
	ChunkSize   uint64
	ChunksTotal uint64
	ChunksFree  uint64
}

// Stat implements spec §6's chunk_stat: fan a ChunkStat RPC out to every
// daemon and sum the results.
func (c *Client) Stat() (AggregatedStat, error) {
	pool := task.NewPool(0)
	type statResult struct {
		reply dataproto.ChunkStatReply
		err   error
	}
	results := make([]statResult, c.members.Count())
	var events []*task.Eventual

	for _, hostID := range allHostIDs(c.members.Count()) {
		i := hostID
		events = append(events, pool.Spawn(func() task.Result {
			if err := c.dispatcher.Call(i, "DataAPI.ChunkStat", &dataproto.ChunkStatArgs{RequestID: uuid.New()}, &results[i].reply); err != nil {
				results[i].err = err
				return task.Result{Err: err}
			}
			err := gkfserr.FromErrno(results[i].reply.Err)
			results[i].err = err
			return task.Result{Err: err}
		}))
	}

	if err := task.JoinAll(events).Err; err != nil {
		return AggregatedStat{}, err
	}

	var agg AggregatedStat
	for _, r := range results {
		if r.err != nil {
			return AggregatedStat{}, r.err
		}
		if agg.ChunkSize == 0 {
			agg.ChunkSize = r.reply.ChunkSize
		}
		agg.ChunksTotal += r.reply.ChunksTotal
		agg.ChunksFree += r.reply.ChunksFree
	}

	return agg, nil
}

func allHostIDs(count uint32) []uint32 {
	ids := make([]uint32, count)
	for i := range ids {
		ids[i] = uint32(i)
	}
	return ids
}
