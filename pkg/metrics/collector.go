package metrics

import (
	"time"

	"fleethq/pkg/store"
)

// Collector periodically polls the state store and updates the gauge
// metrics defined in metrics.go. It runs independently of the scaling controller's tick.
type Collector struct {
	store  store.Store
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over the given store.
func NewCollector(s store.Store) *Collector {
	return &Collector{store: s, stopCh: make(chan struct{})}
}

// Start begins collecting metrics every 15s, collecting once immediately.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectWorkerMetrics()
	c.collectDeploymentMetrics()
}

func (c *Collector) collectWorkerMetrics() {
	workers, err := c.store.ListWorkers()
	if err != nil {
		return
	}

	counts := make(map[string]int)
	for _, w := range workers {
		counts[string(w.Status)]++
	}
	for status, count := range counts {
		WorkersTotal.WithLabelValues(status).Set(float64(count))
	}
}

func (c *Collector) collectDeploymentMetrics() {
	deployments, err := c.store.ListDeployments()
	if err != nil {
		return
	}

	depCounts := make(map[string]int)
	replicaCounts := make(map[string]int)
	for _, d := range deployments {
		depCounts[string(d.Status)]++
		replicas, err := c.store.ListReplicasByDeployment(d.ID)
		if err != nil {
			continue
		}
		for _, r := range replicas {
			replicaCounts[string(r.Status)]++
		}
	}
	for status, count := range depCounts {
		DeploymentsTotal.WithLabelValues(status).Set(float64(count))
	}
	for status, count := range replicaCounts {
		ReplicasTotal.WithLabelValues(status).Set(float64(count))
	}
}
