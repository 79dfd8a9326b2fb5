package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sealfs_router_requests_total",
		Help: "Requests a storage server's Dispatcher has handled, by op and outcome.",
	}, []string{"op", "forwarded"})

	requestErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sealfs_router_request_errors_total",
		Help: "Requests a storage server's Dispatcher answered with a non-success status, by op and errno.",
	}, []string{"op", "errno"})

	rebalancePathsMigrated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sealfs_router_rebalance_paths_migrated_total",
		Help: "Paths successfully handed off to a new owner across every rebalance this server has executed.",
	})
)
