// Package config loads daemon and client configuration from the
// environment, following the same envconfig.Process pattern the teacher
// repo uses for its chunkserver and master processes.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
)

// ErrRootPathMissing, ErrRootPathUnwritable and ErrChunkSizeZero are the
// fatal startup checks named in spec §7 ("Fatal errors (initialization)").
var (
	ErrRootPathMissing    = errors.New("gkfs: root path does not exist")
	ErrRootPathUnwritable = errors.New("gkfs: root path is not readable/writable")
	ErrChunkSizeZero      = errors.New("gkfs: chunk size must be non-zero")
)

// Daemon holds the per-daemon configuration described in spec §6
// ("Configuration (daemon)").
type Daemon struct {
	ListenAddr     string `envconfig:"LISTEN_ADDR" default:":7420"`
	RootPath       string `envconfig:"ROOT_PATH" required:"true"`
	ChunkSizeBytes uint64 `envconfig:"CHUNKSIZE" default:"524288"`
	WorkerPoolSize int    `envconfig:"WORKER_POOL_SIZE" default:"8"`
	IOPoolSize     int    `envconfig:"IO_POOL_SIZE" default:"16"`
	HostID         uint32 `envconfig:"HOST_ID" default:"0"`
}

// LoadDaemon reads a Daemon config from the environment and validates the
// fatal-at-startup preconditions.
func LoadDaemon() (*Daemon, error) {
	var cfg Daemon
	if err := envconfig.Process("GKFS", &cfg); err != nil {
		return nil, fmt.Errorf("gkfs: config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs the fatal startup checks from spec §7: missing root path,
// insufficient permissions, and a zero chunk size all refuse daemon start.
func (c *Daemon) Validate() error {
	if c.ChunkSizeBytes == 0 {
		return ErrChunkSizeZero
	}

	info, err := os.Stat(c.RootPath)
	if err != nil || !info.IsDir() {
		return ErrRootPathMissing
	}

	f, err := os.CreateTemp(c.RootPath, ".gkfs-writetest-*")
	if err != nil {
		return ErrRootPathUnwritable
	}
	name := f.Name()
	f.Close()
	os.Remove(name)

	return nil
}

// Client holds the config needed by the client planner/dispatcher and the
// gkfsctl benchmarking CLI.
type Client struct {
	Hosts        []string `envconfig:"HOSTS" required:"true"`
	RPCTimeoutMS int      `envconfig:"RPC_TIMEOUT_MS" default:"150"`
	RPCRetries   int      `envconfig:"RPC_RETRIES" default:"3"`
	ChunkSize    uint64   `envconfig:"CHUNKSIZE" default:"524288"`
}

// LoadClient reads a Client config from the environment.
func LoadClient() (*Client, error) {
	var cfg Client
	if err := envconfig.Process("GKFS", &cfg); err != nil {
		return nil, fmt.Errorf("gkfs: config: %w", err)
	}

	return &cfg, nil
}
