package server

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gekkofs/datapath/core/bitmap"
	"github.com/gekkofs/datapath/core/storage"
	"github.com/gekkofs/datapath/lib/checksum"
	"github.com/gekkofs/datapath/rpc/dataproto"
)

func newTestExecutor(t *testing.T) (*Executor, string) {
	t.Helper()
	dir := t.TempDir()
	engine := storage.New(dir, 8, nil)
	return New(engine, 4, nil), dir
}

func allOwned(n int) []byte {
	return bitmap.Compress(bitmap.Build(n, func(i int) bool { return true }), n)
}

func TestExecutor_WriteThenReadRoundTrip(t *testing.T) {
	exec, _ := newTestExecutor(t)

	payload := []byte("hello world!") // 12 bytes, chunk size 8 -> chunks 0 (8B) and 1 (4B)

	var writeReply dataproto.WriteReply
	err := exec.Write(&dataproto.WriteArgs{
		Path:       "/f",
		ChunkStart: 0,
		ChunkEnd:   2,
		ChunkSize:  8,
		Offset:     0,
		Bitmap:     allOwned(2),
		Payload:    payload,
	}, &writeReply)
	require.NoError(t, err)
	require.Zero(t, writeReply.Err)
	require.Equal(t, uint64(12), writeReply.BytesWritten)

	var readReply dataproto.ReadReply
	err = exec.Read(&dataproto.ReadArgs{
		Path:       "/f",
		ChunkStart: 0,
		ChunkEnd:   2,
		ChunkSize:  8,
		Offset:     0,
		TotalSize:  12,
		Bitmap:     allOwned(2),
	}, &readReply)
	require.NoError(t, err)
	require.Zero(t, readReply.Err)
	require.Equal(t, uint64(12), readReply.BytesRead)
	require.Equal(t, payload, readReply.Payload)
	require.Equal(t, int64(checksum.Sum(payload)), readReply.Checksum)
}

func TestExecutor_WriteAtMidChunkOffset(t *testing.T) {
	exec, _ := newTestExecutor(t)

	// First fill chunk 0 fully.
	var writeReply dataproto.WriteReply
	err := exec.Write(&dataproto.WriteArgs{
		Path:       "/f",
		ChunkStart: 0,
		ChunkEnd:   1,
		ChunkSize:  8,
		Offset:     0,
		Bitmap:     allOwned(1),
		Payload:    []byte("AAAAAAAA"),
	}, &writeReply)
	require.NoError(t, err)

	// Write 3 bytes starting at file offset 4 (mid-chunk).
	err = exec.Write(&dataproto.WriteArgs{
		Path:       "/f",
		ChunkStart: 0,
		ChunkEnd:   1,
		ChunkSize:  8,
		Offset:     4,
		Bitmap:     allOwned(1),
		Payload:    []byte("BBB"),
	}, &writeReply)
	require.NoError(t, err)
	require.Equal(t, uint64(3), writeReply.BytesWritten)

	var readReply dataproto.ReadReply
	err = exec.Read(&dataproto.ReadArgs{
		Path:       "/f",
		ChunkStart: 0,
		ChunkEnd:   1,
		ChunkSize:  8,
		Offset:     0,
		TotalSize:  8,
		Bitmap:     allOwned(1),
	}, &readReply)
	require.NoError(t, err)
	require.Equal(t, []byte("AAAABBBA"), readReply.Payload)
}

func TestExecutor_TruncateShrinksAndTrims(t *testing.T) {
	exec, _ := newTestExecutor(t)

	var writeReply dataproto.WriteReply
	err := exec.Write(&dataproto.WriteArgs{
		Path:       "/f",
		ChunkStart: 0,
		ChunkEnd:   3,
		ChunkSize:  8,
		Offset:     0,
		Bitmap:     allOwned(3),
		Payload:    []byte("0123456701234567012"), // 19 bytes across chunks 0,1,2
	}, &writeReply)
	require.NoError(t, err)

	err = exec.Truncate(&dataproto.TruncateArgs{
		Path:      "/f",
		NewSize:   10,
		ChunkSize: 8,
	}, &dataproto.TruncateReply{})
	require.NoError(t, err)

	var readReply dataproto.ReadReply
	err = exec.Read(&dataproto.ReadArgs{
		Path:       "/f",
		ChunkStart: 0,
		ChunkEnd:   2,
		ChunkSize:  8,
		Offset:     0,
		TotalSize:  10,
		Bitmap:     allOwned(2),
	}, &readReply)
	require.NoError(t, err)
	require.Equal(t, uint64(10), readReply.BytesRead)
}

func TestExecutor_ChunkStat(t *testing.T) {
	exec, _ := newTestExecutor(t)

	var reply dataproto.ChunkStatReply
	err := exec.ChunkStat(&dataproto.ChunkStatArgs{}, &reply)
	require.NoError(t, err)
	require.Zero(t, reply.Err)
	require.Equal(t, uint64(8), reply.ChunkSize)
}

// TestExecutor_ReadMissingChunkIsFatal exercises scenario S3: a chunk that
// was never written fails the whole read RPC with ENOENT and zero bytes,
// even though a sibling chunk in the same request exists and is readable.
func TestExecutor_ReadMissingChunkIsFatal(t *testing.T) {
	exec, _ := newTestExecutor(t)

	var writeReply dataproto.WriteReply
	err := exec.Write(&dataproto.WriteArgs{
		Path:       "/f",
		ChunkStart: 0,
		ChunkEnd:   1,
		ChunkSize:  8,
		Offset:     0,
		Bitmap:     allOwned(1),
		Payload:    []byte("AAAAAAAA"),
	}, &writeReply)
	require.NoError(t, err)
	require.Zero(t, writeReply.Err)

	// Chunk 1 was never written; ask for both chunks 0 and 1.
	var readReply dataproto.ReadReply
	err = exec.Read(&dataproto.ReadArgs{
		Path:       "/f",
		ChunkStart: 0,
		ChunkEnd:   2,
		ChunkSize:  8,
		Offset:     0,
		TotalSize:  16,
		Bitmap:     allOwned(2),
	}, &readReply)
	require.NoError(t, err)
	require.Equal(t, int32(syscall.ENOENT), readReply.Err)
	require.Zero(t, readReply.BytesRead)
	require.Nil(t, readReply.Payload)
}
