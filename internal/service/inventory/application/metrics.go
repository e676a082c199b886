// internal/service/inventory/application/metrics.go
package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservations_created_total",
		Help: "Number of reservations successfully created.",
	})
	reservationsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservations_committed_total",
		Help: "Number of reservations committed to an order.",
	})
	reservationsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservations_released_total",
		Help: "Number of reservations explicitly released.",
	})
	reservationsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservations_expired_total",
		Help: "Number of reservations expired by the sweep.",
	})
	insufficientStockHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_insufficient_stock_total",
		Help: "Number of reservation attempts rejected for insufficient stock.",
	})
)
