package manager

import (
	"context"
	"log"
	"time"

	"github.com/sealfs-project/sealfs/pkg/cluster"
)

// RunHeartbeat calls SendHeart once per cluster.PollInterval until ctx is
// done, the way a cluster.Poller drives phase reactions on the same
// cadence. A server starts this alongside its Poller at boot; a plain
// client never calls it (self is empty for those, and SendHeart on an
// unregistered address is simply ignored by the registry).
func RunHeartbeat(ctx context.Context, c *Client, logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}
	ticker := time.NewTicker(cluster.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.SendHeart(ctx); err != nil {
				logger.Printf("manager: heartbeat failed: %v", err)
			}
		}
	}
}
