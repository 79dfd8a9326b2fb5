// Command sealfs-serverd runs one storage server: it loads its local
// metadata and blob engine, acks Idle to the manager, and serves RPCs
// until the process receives SIGINT or SIGTERM, or a failed rebalance
// reaction stops it. Flags follow spec.md §6: a server is parameterized by
// (database path, storage path, listen address, manager address).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sealfs-project/sealfs/pkg/blobstore"
	"github.com/sealfs-project/sealfs/pkg/cluster"
	"github.com/sealfs-project/sealfs/pkg/kv"
	"github.com/sealfs-project/sealfs/pkg/manager"
	"github.com/sealfs-project/sealfs/pkg/metaengine"
	"github.com/sealfs-project/sealfs/pkg/ring"
	"github.com/sealfs-project/sealfs/pkg/router"
	"github.com/sealfs-project/sealfs/pkg/rpcconn"
)

var (
	flagListen      = flag.String("listen", ":7700", "address to serve storage RPCs on")
	flagManager     = flag.String("manager", "", "manager daemon address (required)")
	flagDB          = flag.String("db", "", "directory for the on-disk metadata index (required)")
	flagStorage     = flag.String("storage", "", "directory for blob content (required)")
	flagMetricsAddr = flag.String("metrics", "", "if non-empty, serve Prometheus metrics on this address")
	flagVerbose     = flag.Bool("verbose", false, "extra debug logging")
)

func main() {
	flag.Parse()
	logger := log.New(os.Stderr, "sealfs-serverd: ", log.LstdFlags)

	if *flagManager == "" || *flagDB == "" || *flagStorage == "" {
		fmt.Fprintln(os.Stderr, "sealfs-serverd: -manager, -db and -storage are required")
		flag.Usage()
		os.Exit(2)
	}

	self := *flagListen

	blobs, err := blobstore.Open(*flagStorage)
	if err != nil {
		logger.Fatalf("opening blob store: %v", err)
	}
	attrKV, err := kv.NewDisk(filepath.Join(*flagDB, "attr"))
	if err != nil {
		logger.Fatalf("opening attr index: %v", err)
	}
	dirKV, err := kv.NewDisk(filepath.Join(*flagDB, "dir"))
	if err != nil {
		logger.Fatalf("opening dir index: %v", err)
	}
	contentKV, err := kv.NewDisk(filepath.Join(*flagDB, "content"))
	if err != nil {
		logger.Fatalf("opening content index: %v", err)
	}
	engine, err := metaengine.Open(attrKV, dirKV, contentKV, blobs)
	if err != nil {
		logger.Fatalf("opening metadata engine: %v", err)
	}
	report, err := engine.Fsck()
	if err != nil {
		logger.Fatalf("fsck: %v", err)
	}
	if report.OrphanBlobsRemoved > 0 || report.OrphanDirEntries > 0 || report.DanglingDirParents > 0 {
		logger.Printf("fsck: removed %d orphan blob(s), %d orphan dir entr(y/ies), %d dangling parent(s)",
			report.OrphanBlobsRemoved, report.OrphanDirEntries, report.DanglingDirParents)
	}

	mgrConn, err := rpcconn.Dial(*flagManager, logger)
	if err != nil {
		logger.Fatalf("dialing manager %s: %v", *flagManager, err)
	}
	mgrClient := manager.NewClient(self, mgrConn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	primary, err := mgrClient.GetHashRing(ctx)
	if err != nil {
		logger.Fatalf("fetching initial ring: %v", err)
	}
	rings := ring.NewRingsView(primary, ring.Phase(cluster.Initializing))

	peers := router.NewPeerPool(logger)
	dispatcher := router.NewDispatcher(self, engine, rings, peers, logger)

	poller := cluster.New(mgrClient, dispatcher, logger)
	dispatcher.AttachPoller(poller)
	poller.OnFatal(func(status cluster.Status, err error) {
		logger.Fatalf("rebalance ack for phase %s failed, cluster commit state is now inconsistent, manual restart required: %v", status, err)
	})

	ln, err := net.Listen("tcp", *flagListen)
	if err != nil {
		logger.Fatalf("listening on %s: %v", *flagListen, err)
	}
	logger.Printf("serving storage RPCs on %s, manager %s", ln.Addr(), *flagManager)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go rpcconn.NewServerConnection(conn, logger).Serve(dispatcher.Handle)
		}
	}()

	if *flagMetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Printf("serving metrics on %s", *flagMetricsAddr)
			if err := http.ListenAndServe(*flagMetricsAddr, mux); err != nil {
				logger.Printf("metrics listener stopped: %v", err)
			}
		}()
	}

	go poller.Run(ctx)
	go manager.RunHeartbeat(ctx, mgrClient, logger)

	if err := mgrClient.UpdateServerStatus(ctx, cluster.Idle); err != nil {
		logger.Printf("initial UpdateServerStatus(Idle) failed: %v", err)
	}

	if *flagVerbose {
		logger.Printf("verbose logging enabled")
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	logger.Printf("signal %s received, shutting down", sig)

	cancel()
	ln.Close()
	mgrConn.Close()
}
