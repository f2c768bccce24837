package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/herald/pkg/log"
	"github.com/cuemby/herald/pkg/metrics"
	"github.com/cuemby/herald/pkg/types"
)

// DefaultCollectInterval is how often the collector samples the registry
const DefaultCollectInterval = 15 * time.Second

// MetricsCollector samples registry-wide gauges and the storage health
// check on an interval
type MetricsCollector struct {
	manager  *Manager
	interval time.Duration
	logger   zerolog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewMetricsCollector creates a collector sampling every
// DefaultCollectInterval
func NewMetricsCollector(mgr *Manager) *MetricsCollector {
	return NewMetricsCollectorWithInterval(mgr, DefaultCollectInterval)
}

// NewMetricsCollectorWithInterval creates a collector sampling every interval
func NewMetricsCollectorWithInterval(mgr *Manager, interval time.Duration) *MetricsCollector {
	return &MetricsCollector{
		manager:  mgr,
		interval: interval,
		logger:   log.WithComponent("metrics"),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start samples once, then on every tick until Stop
func (c *MetricsCollector) Start() {
	go func() {
		defer close(c.done)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop ends sampling and waits for an in-flight sample. Stop must follow
// Start.
func (c *MetricsCollector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.done
}

func (c *MetricsCollector) collect() {
	c.collectBots()

	err := c.manager.Ping()
	metrics.SetComponentErr(metrics.ComponentStorage, err)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Storage check failed")
		return
	}
	c.collectServers()
}

func (c *MetricsCollector) collectBots() {
	// Every status is reported so a drained status drops to zero
	counts := map[types.BotStatus]int{
		types.BotStatusOffline:  0,
		types.BotStatusStarting: 0,
		types.BotStatusOnline:   0,
	}
	for _, info := range c.manager.Bots() {
		counts[info.Status]++
	}

	for status, count := range counts {
		metrics.BotsTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}

func (c *MetricsCollector) collectServers() {
	servers, err := c.manager.ListServers()
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to list servers")
		return
	}
	metrics.ServersTotal.Set(float64(len(servers)))
}
