// Command gkfsctl is a client-side benchmarking and inspection CLI for the
// data path, mirroring the shape of the teacher's cmd/client CLI but
// speaking the write/read/truncate/stat RPCs from rpc/dataproto instead of
// whole-file operations.
package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/gekkofs/datapath/lib/logger"
)

var log, _ = logger.New("gkfsctl")

func main() {
	app := &cli.App{
		Name:  "gkfsctl",
		Usage: "write, read, truncate and stat files against a gkfs mount",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "hosts",
				Usage:    "comma-separated daemon addresses",
				EnvVars:  []string{"GKFS_HOSTS"},
				Required: true,
			},
			&cli.Uint64Flag{
				Name:  "chunk-size",
				Usage: "chunk size in bytes",
				Value: 524288,
			},
			&cli.IntFlag{
				Name:  "rpc-timeout-ms",
				Value: 150,
			},
			&cli.IntFlag{
				Name:  "rpc-retries",
				Value: 3,
			},
		},
		Commands: []*cli.Command{
			writeCmd,
			readCmd,
			truncateCmd,
			statCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalln("gkfsctl", "error", err)
	}
}
