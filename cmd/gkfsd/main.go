// Command gkfsd is the data-path daemon: it serves the write, read,
// truncate and chunk-stat RPCs defined in rpc/dataproto out of a local
// chunk storage.Engine, exactly as the teacher's cmd/chunkserver bootstraps
// its own RPC surface (spec §4.2, §4.5, §6).
package main

import (
	"net"
	"net/http"
	"net/rpc"
	"os"
	"os/signal"
	"syscall"

	"github.com/gekkofs/datapath/core/config"
	"github.com/gekkofs/datapath/core/server"
	"github.com/gekkofs/datapath/core/storage"
	"github.com/gekkofs/datapath/lib/logger"
)

var log, _ = logger.New("gkfsd")

func main() {
	if err := run(); err != nil {
		log.Fatalln("startup", "error", err)
	}
}

func run() error {
	cfg, err := config.LoadDaemon()
	if err != nil {
		log.Errorw("startup", "error", "config error", "cause", err)
		return err
	}

	engine := storage.New(cfg.RootPath, cfg.ChunkSizeBytes, log)
	exec := server.New(engine, cfg.IOPoolSize, log)

	if err := rpc.RegisterName("DataAPI", exec); err != nil {
		log.Errorw("startup", "error", "rpc register failed", "cause", err)
		return err
	}
	rpc.HandleHTTP()

	l, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Errorw("startup", "error", "net listen failed", "cause", err)
		return err
	}

	listenAddr := l.Addr().String()
	log.Infow("startup", "status", "gkfsd started", "address", listenAddr, "root", cfg.RootPath, "chunk_size", cfg.ChunkSizeBytes, "host_id", cfg.HostID)
	defer log.Infow("shutdown", "status", "gkfsd stopped", "address", listenAddr)

	go http.Serve(l, nil)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	log.Infow("shutdown", "status", "gkfsd stopping", "address", listenAddr)

	return nil
}
