// Command sealfs-managerd runs the cluster manager: the single
// authoritative source of cluster phase and placement ring membership
// (spec.md §4.3). It starts with a statically-configured initial server
// list (spec.md's "Initializing -> Idle (all servers report Finished on
// boot)") and afterward accepts AddNodes/RemoveNodes admin RPCs that
// drive a rebalance.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sealfs-project/sealfs/pkg/manager"
	"github.com/sealfs-project/sealfs/pkg/rpcconn"
)

var (
	flagListen      = flag.String("listen", ":7600", "address to serve manager RPCs on")
	flagNodes       = flag.String("nodes", "", "comma-separated initial server list, address=weight pairs (required)")
	flagMetricsAddr = flag.String("metrics", "", "if non-empty, serve Prometheus metrics on this address")
	flagVerbose     = flag.Bool("verbose", false, "extra debug logging")
)

// parseNodes turns "host:1=1,host:2=2" into the NodeDelta list Bootstrap
// wants. A bare "host:port" with no "=weight" defaults to weight 1.
func parseNodes(s string) ([]manager.NodeDelta, error) {
	var out []manager.NodeDelta
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		addr, weightStr, hasWeight := strings.Cut(field, "=")
		weight := 1
		if hasWeight {
			w, err := strconv.Atoi(weightStr)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid weight in %q", field)
			}
			weight = w
		}
		out = append(out, manager.NodeDelta{Address: addr, Weight: weight})
	}
	if len(out) == 0 {
		return nil, errors.New("no nodes given")
	}
	return out, nil
}

func main() {
	flag.Parse()
	logger := log.New(os.Stderr, "sealfs-managerd: ", log.LstdFlags)

	if *flagNodes == "" {
		fmt.Fprintln(os.Stderr, "sealfs-managerd: -nodes is required")
		flag.Usage()
		os.Exit(2)
	}
	nodes, err := parseNodes(*flagNodes)
	if err != nil {
		logger.Fatalf("parsing -nodes: %v", err)
	}

	mgr := manager.New()
	mgr.Bootstrap(nodes)
	if *flagVerbose {
		for _, n := range nodes {
			logger.Printf("bootstrapped %s weight %d, node id %s", n.Address, n.Weight, mgr.Registry().ID(n.Address))
		}
	}

	srv := manager.NewServer(mgr, logger)

	ln, err := net.Listen("tcp", *flagListen)
	if err != nil {
		logger.Fatalf("listening on %s: %v", *flagListen, err)
	}
	logger.Printf("serving manager RPCs on %s for %d node(s)", ln.Addr(), len(nodes))

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go rpcconn.NewServerConnection(conn, logger).Serve(srv.Handle)
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

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	logger.Printf("signal %s received, shutting down", sig)
	ln.Close()
}
