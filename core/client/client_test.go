package client

import (
	"net"
	"net/http"
	"net/rpc"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	gkfserr "github.com/gekkofs/datapath/core/errors"
	"github.com/gekkofs/datapath/core/membership"
	"github.com/gekkofs/datapath/core/server"
	"github.com/gekkofs/datapath/core/storage"
)

// startTestDaemon boots one in-process daemon on a loopback port, mirroring
// cmd/gkfsd's bootstrap but scoped to a test's lifetime.
func startTestDaemon(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	engine := storage.New(dir, 16, nil)
	exec := server.New(engine, 4, nil)

	mux := rpc.NewServer()
	require.NoError(t, mux.RegisterName("DataAPI", exec))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	httpMux := http.NewServeMux()
	httpMux.Handle(rpc.DefaultRPCPath, mux)
	go http.Serve(l, httpMux)

	t.Cleanup(func() { l.Close() })

	return l.Addr().String()
}

func newTestClient(t *testing.T, addrs []string) *Client {
	t.Helper()

	members, err := membership.New(addrs)
	require.NoError(t, err)

	dispatcher := NewDispatcher(members, 500*time.Millisecond, 2, nil)
	c := &Client{members: members, dispatcher: dispatcher, chunkSize: 16}
	t.Cleanup(c.Close)
	return c
}

func TestClient_WriteReadRoundTripSingleDaemon(t *testing.T) {
	addr := startTestDaemon(t)
	c := newTestClient(t, []string{addr})

	data := []byte("the quick brown fox jumps over the lazy dog")
	n, err := c.Write("/f", data, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(len(data)), n)

	buf := make([]byte, len(data))
	n, err = c.Read("/f", buf, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(len(data)), n)
	require.Equal(t, data, buf)
}

func TestClient_WriteReadRoundTripMultiDaemon(t *testing.T) {
	var addrs []string
	for i := 0; i < 3; i++ {
		addrs = append(addrs, startTestDaemon(t))
	}
	c := newTestClient(t, addrs)

	data := make([]byte, 500)
	for i := range data {
		data[i] = byte(i % 251)
	}

	n, err := c.Write("/scratch/big-file", data, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(len(data)), n)

	buf := make([]byte, len(data))
	n, err = c.Read("/scratch/big-file", buf, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(len(data)), n)
	require.Equal(t, data, buf)
}

func TestClient_TruncateShrinksFile(t *testing.T) {
	addr := startTestDaemon(t)
	c := newTestClient(t, []string{addr})

	data := []byte("0123456789abcdefghij")
	_, err := c.Write("/f", data, 0)
	require.NoError(t, err)

	require.NoError(t, c.Truncate("/f", 10))

	buf := make([]byte, 10)
	n, err := c.Read("/f", buf, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(10), n)
	require.Equal(t, data[:10], buf)
}

func TestClient_Stat(t *testing.T) {
	var addrs []string
	for i := 0; i < 2; i++ {
		addrs = append(addrs, startTestDaemon(t))
	}
	c := newTestClient(t, addrs)

	stat, err := c.Stat()
	require.NoError(t, err)
	require.Equal(t, uint64(16), stat.ChunkSize)
	require.Greater(t, stat.ChunksTotal, uint64(0))
}

// TestClient_ReadWithinExistingChunkIsShort covers the ordinary short-read
// case: the requested range fits inside chunk 0, which exists, so the read
// succeeds with fewer bytes than requested.
func TestClient_ReadWithinExistingChunkIsShort(t *testing.T) {
	addr := startTestDaemon(t)
	c := newTestClient(t, []string{addr})

	_, err := c.Write("/f", []byte("abc"), 0)
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := c.Read("/f", buf, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(3), n)
	require.Equal(t, "abc", string(buf[:3]))
}

// TestClient_ReadSpanningMissingChunkFails covers scenario S3: chunk size is
// 16, so a 20-byte read after a 3-byte write spans an existing chunk 0 and a
// never-written chunk 1. The missing chunk fails the whole request rather
// than degrading to a short read.
func TestClient_ReadSpanningMissingChunkFails(t *testing.T) {
	addr := startTestDaemon(t)
	c := newTestClient(t, []string{addr})

	_, err := c.Write("/f", []byte("abc"), 0)
	require.NoError(t, err)

	buf := make([]byte, 20)
	n, err := c.Read("/f", buf, 0)
	require.Error(t, err)
	require.True(t, gkfserr.IsNotFound(err))
	require.Zero(t, n)
}
