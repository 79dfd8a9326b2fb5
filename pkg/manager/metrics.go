package manager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	clusterPhase = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sealfs_manager_cluster_phase",
		Help: "Current cluster phase as a cluster.Status integer value.",
	})

	liveNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sealfs_manager_live_nodes",
		Help: "Servers the manager has heard from within HeartbeatInterval.",
	})

	rebalancesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sealfs_manager_rebalances_started_total",
		Help: "AddNodes/RemoveNodes admin calls that moved the cluster out of Idle.",
	})
)
