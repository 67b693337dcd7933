package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/gekkofs/datapath/core/client"
	"github.com/gekkofs/datapath/core/config"
)

func clientFromCtx(ctx *cli.Context) (*client.Client, error) {
	cfg := &config.Client{
		Hosts:        strings.Split(ctx.String("hosts"), ","),
		ChunkSize:    ctx.Uint64("chunk-size"),
		RPCTimeoutMS: ctx.Int("rpc-timeout-ms"),
		RPCRetries:   ctx.Int("rpc-retries"),
	}

	return client.New(cfg, log)
}

var writeCmd = &cli.Command{
	Name:  "write",
	Usage: "write a local file into the mount at the given path and offset",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "file-path", Required: true, Usage: "local file to read from"},
		&cli.StringFlag{Name: "gkfs-path", Required: true, Usage: "path inside the mount"},
		&cli.Uint64Flag{Name: "offset", Value: 0},
	},
	Action: func(ctx *cli.Context) error {
		c, err := clientFromCtx(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		data, err := os.ReadFile(ctx.String("file-path"))
		if err != nil {
			return err
		}

		n, err := c.Write(ctx.String("gkfs-path"), data, ctx.Uint64("offset"))
		if err != nil {
			log.Errorw("write", "error", err)
			return err
		}

		log.Infow("write", "path", ctx.String("gkfs-path"), "bytes_written", n)
		return nil
	},
}

var readCmd = &cli.Command{
	Name:  "read",
	Usage: "read a byte range from the mount and print it to stdout",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "gkfs-path", Required: true},
		&cli.Uint64Flag{Name: "offset", Value: 0},
		&cli.Uint64Flag{Name: "size", Required: true},
	},
	Action: func(ctx *cli.Context) error {
		c, err := clientFromCtx(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		buf := make([]byte, ctx.Uint64("size"))
		n, err := c.Read(ctx.String("gkfs-path"), buf, ctx.Uint64("offset"))
		if err != nil {
			log.Errorw("read", "error", err)
			return err
		}

		os.Stdout.Write(buf[:n])
		return nil
	},
}

var truncateCmd = &cli.Command{
	Name:  "truncate",
	Usage: "truncate a file to a new size",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "gkfs-path", Required: true},
		&cli.Uint64Flag{Name: "size", Required: true},
	},
	Action: func(ctx *cli.Context) error {
		c, err := clientFromCtx(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Truncate(ctx.String("gkfs-path"), ctx.Uint64("size")); err != nil {
			log.Errorw("truncate", "error", err)
			return err
		}

		log.Infow("truncate", "path", ctx.String("gkfs-path"), "size", ctx.Uint64("size"))
		return nil
	},
}

var statCmd = &cli.Command{
	Name:  "stat",
	Usage: "report aggregated chunk capacity across the mount",
	Action: func(ctx *cli.Context) error {
		c, err := clientFromCtx(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		stat, err := c.Stat()
		if err != nil {
			log.Errorw("stat", "error", err)
			return err
		}

		fmt.Printf("chunk_size=%d chunks_total=%d chunks_free=%d\n", stat.ChunkSize, stat.ChunksTotal, stat.ChunksFree)
		return nil
	},
}
