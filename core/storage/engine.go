// Package storage implements the per-daemon chunk storage engine from
// spec §4.2: a flat directory-per-file layout on local disk with atomic
// chunk-file semantics for write, read, truncate, trim and stat.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	gkfserr "github.com/gekkofs/datapath/core/errors"
	"github.com/gekkofs/datapath/lib/logger"
)

const (
	chunkDirMode  = 0750
	chunkFileMode = 0640
)

// Stat mirrors the chunk_stat() output named in spec §4.2 and §6.
type Stat struct {
	ChunkSize   uint64
	ChunksTotal uint64
	ChunksFree  uint64
}

// Engine is the chunk storage engine for one daemon. Its root path and
// chunk size are immutable after construction, so it carries no shared
// mutable state beyond the counters it exposes (spec §5).
type Engine struct {
	rootPath  string
	chunkSize uint64
	log       *logger.Logger

	writes atomic.Uint64
	reads  atomic.Uint64
}

// New constructs an Engine rooted at rootPath. rootPath must already exist
// and be readable/writable by the daemon; chunkSize must be non-zero. Both
// are validated by core/config before the daemon starts (spec §7's fatal
// startup checks).
func New(rootPath string, chunkSize uint64, log *logger.Logger) *Engine {
	return &Engine{rootPath: strings.TrimRight(rootPath, "/"), chunkSize: chunkSize, log: log}
}

// EncodePath turns an absolute logical path into the on-disk directory name
// for that file's chunks: the leading '/' is stripped and every remaining
// '/' becomes ':' (spec §6). Any other character is preserved verbatim.
func EncodePath(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	return strings.ReplaceAll(trimmed, "/", ":")
}

func (e *Engine) chunkDirAbs(path string) string {
	return e.rootPath + "/" + EncodePath(path)
}

func (e *Engine) chunkPathAbs(path string, chunkID uint64) string {
	return fmt.Sprintf("%s/%d", e.chunkDirAbs(path), chunkID)
}

// InitChunkSpace creates the per-file chunk directory if absent, treating
// EEXIST as success (spec §4.2).
func (e *Engine) InitChunkSpace(path string) error {
	err := os.Mkdir(e.chunkDirAbs(path), chunkDirMode)
	if err != nil && !errors.Is(err, os.ErrExist) {
		return gkfserr.Io("init_chunk_space", errnoOf(err), err)
	}
	return nil
}

// WriteChunk writes size bytes from buf into chunk k at the given in-chunk
// offset, looping on short/interrupted writes exactly as spec §4.2
// describes. Precondition: offset+len(buf) <= chunk size.
func (e *Engine) WriteChunk(path string, chunkID uint64, buf []byte, offset uint64) (uint64, error) {
	if offset+uint64(len(buf)) > e.chunkSize {
		return 0, gkfserr.Protocol("write_chunk", fmt.Errorf("offset %d + size %d exceeds chunk size %d", offset, len(buf), e.chunkSize))
	}

	if err := e.InitChunkSpace(path); err != nil {
		return 0, err
	}

	f, err := os.OpenFile(e.chunkPathAbs(path, chunkID), os.O_WRONLY|os.O_CREATE, chunkFileMode)
	if err != nil {
		return 0, gkfserr.Io("write_chunk", errnoOf(err), err)
	}
	defer f.Close()

	var written uint64
	for written < uint64(len(buf)) {
		n, err := f.WriteAt(buf[written:], int64(offset+written))
		if n > 0 {
			written += uint64(n)
		}
		if err != nil {
			if isRetryable(err) {
				continue
			}
			return written, gkfserr.Io("write_chunk", errnoOf(err), err)
		}
	}

	e.writes.Add(1)
	return written, nil
}

// ReadChunk reads up to len(buf) bytes from chunk k at the given in-chunk
// offset. A short read is permitted and terminates the loop (EOF); ENOENT
// on the chunk file maps to StorageError::NotFound.
func (e *Engine) ReadChunk(path string, chunkID uint64, buf []byte, offset uint64) (uint64, error) {
	if offset+uint64(len(buf)) > e.chunkSize {
		return 0, gkfserr.Protocol("read_chunk", fmt.Errorf("offset %d + size %d exceeds chunk size %d", offset, len(buf), e.chunkSize))
	}

	f, err := os.Open(e.chunkPathAbs(path, chunkID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, gkfserr.NotFound("read_chunk", err)
		}
		return 0, gkfserr.Io("read_chunk", errnoOf(err), err)
	}
	defer f.Close()

	var read uint64
	for read < uint64(len(buf)) {
		n, err := f.ReadAt(buf[read:], int64(offset+read))
		if n > 0 {
			read += uint64(n)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			if isRetryable(err) {
				continue
			}
			return read, gkfserr.Io("read_chunk", errnoOf(err), err)
		}
		if n == 0 {
			break
		}
	}

	e.reads.Add(1)
	return read, nil
}

// TruncateChunkFile truncates chunk k to length bytes. Precondition:
// 0 < length <= chunk size.
func (e *Engine) TruncateChunkFile(path string, chunkID uint64, length uint64) error {
	if length == 0 || length > e.chunkSize {
		return gkfserr.Protocol("truncate_chunk_file", fmt.Errorf("invalid truncate length %d", length))
	}

	if err := os.Truncate(e.chunkPathAbs(path, chunkID), int64(length)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return gkfserr.NotFound("truncate_chunk_file", err)
		}
		return gkfserr.Io("truncate_chunk_file", errnoOf(err), err)
	}

	return nil
}

// TrimChunkSpace removes every chunk file with index >= chunkStart. ENOENT
// is not an error; all other errors are collected and continue is
// attempted for every remaining entry ("best-effort continuation"), with a
// single aggregated StorageError::Io(EIO) raised at the end if anything
// failed (spec §4.2).
func (e *Engine) TrimChunkSpace(path string, chunkStart uint64) error {
	dir := e.chunkDirAbs(path)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return gkfserr.Io("trim_chunk_space", errnoOf(err), err)
	}

	var aggregated error
	for _, entry := range entries {
		id, perr := strconv.ParseUint(entry.Name(), 10, 64)
		if perr != nil {
			// Not a chunk file; ignore.
			continue
		}
		if id < chunkStart {
			continue
		}

		if err := os.Remove(dir + "/" + entry.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			aggregated = multierr.Append(aggregated, err)
			if e.log != nil {
				e.log.Warnw("trim_chunk_space failed to remove chunk file", "path", path, "chunk", id, "error", err)
			}
		}
	}

	if aggregated != nil {
		return gkfserr.Io("trim_chunk_space", syscall.EIO, aggregated)
	}

	return nil
}

// DestroyChunkSpace recursively removes the file's chunk directory. A
// missing directory is success.
func (e *Engine) DestroyChunkSpace(path string) error {
	if err := os.RemoveAll(e.chunkDirAbs(path)); err != nil {
		return gkfserr.Io("destroy_chunk_space", errnoOf(err), err)
	}
	return nil
}

// ChunkStat reports {chunk_size, chunks_total, chunks_free} using the local
// filesystem's block statistics (spec §4.2, §8 scenario S6).
func (e *Engine) ChunkStat() (Stat, error) {
	var sfs unix.Statfs_t
	if err := unix.Statfs(e.rootPath, &sfs); err != nil {
		return Stat{}, gkfserr.Capacity("chunk_stat", err.(syscall.Errno), err)
	}

	bytesTotal := uint64(sfs.Bsize) * sfs.Blocks
	bytesFree := uint64(sfs.Bsize) * sfs.Bavail

	return Stat{
		ChunkSize:   e.chunkSize,
		ChunksTotal: bytesTotal / e.chunkSize,
		ChunksFree:  bytesFree / e.chunkSize,
	}, nil
}

// Writes and Reads expose the lock-free write/read counters named in
// spec §5 ("Statistics counters... updated through lock-free counters").
func (e *Engine) Writes() uint64 { return e.writes.Load() }
func (e *Engine) Reads() uint64  { return e.reads.Load() }

func isRetryable(err error) bool {
	return errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}

func errnoOf(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EIO
}
