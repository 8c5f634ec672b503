package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	settlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Settlement attempts by result",
		},
		[]string{"result"},
	)

	ticketsIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Total tickets committed by settlement",
		},
	)

	fulfillmentDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfillment_deliveries_total",
			Help: "Fulfillment delivery attempts by status",
		},
		[]string{"status"},
	)

	fulfillmentQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fulfillment_queue_depth",
			Help: "Current fulfillment queue length per queue",
		},
		[]string{"queue"},
	)
)

// RecordSettlement counts one settlement attempt outcome.
func RecordSettlement(result string) {
	settlementsTotal.WithLabelValues(result).Inc()
}

// RecordTicketsIssued counts tickets committed by a successful settlement.
func RecordTicketsIssued(n int) {
	ticketsIssuedTotal.Add(float64(n))
}

// RecordFulfillment counts one fulfillment delivery outcome.
func RecordFulfillment(status string) {
	fulfillmentDeliveries.WithLabelValues(status).Inc()
}

type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	// Start metrics collection
	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()
		m.collectQueueMetrics(ctx)
	}
}

func (m *Monitor) collectQueueMetrics(ctx context.Context) {
	pending, _ := m.redis.LLen(ctx, "fulfillment:queue").Result()
	fulfillmentQueueDepth.WithLabelValues("pending").Set(float64(pending))

	dead, _ := m.redis.LLen(ctx, "fulfillment:dead").Result()
	fulfillmentQueueDepth.WithLabelValues("dead").Set(float64(dead))
}
