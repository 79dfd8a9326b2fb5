package rpcconn

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sealfs_rpcconn_calls_total",
		Help: "Outbound Call invocations across every ClientConnection.",
	})

	callErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sealfs_rpcconn_call_errors_total",
		Help: "Outbound Call invocations that returned a transport error (dial, write, timeout, or connection loss).",
	})

	callDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sealfs_rpcconn_call_duration_seconds",
		Help:    "Round-trip latency of a Call, from write to matching response.",
		Buckets: prometheus.DefBuckets,
	})

	framesServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sealfs_rpcconn_frames_served_total",
		Help: "Request frames a ServerConnection has decoded and handed to its Handler.",
	})

	connectionsLost = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sealfs_rpcconn_connections_lost_total",
		Help: "ClientConnections whose read loop ended in a non-Close error.",
	})
)
