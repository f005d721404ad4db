package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_orders_created_total",
		Help: "Number of orders successfully created.",
	})

	OrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_orders_cancelled_total",
		Help: "Number of orders cancelled.",
	})

	OrdersOutOfStock = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_orders_out_of_stock_total",
		Help: "Number of order attempts rejected for insufficient stock.",
	})

	PaymentsConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_payments_confirmed_total",
		Help: "Number of payment confirmations applied, by gateway.",
	}, []string{"gateway"})

	PaymentsDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_payments_duplicate_total",
		Help: "Number of payment confirmations absorbed by the idempotent short-circuit.",
	}, []string{"gateway"})

	WebhooksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_webhooks_rejected_total",
		Help: "Number of webhook deliveries rejected for a bad signature.",
	}, []string{"gateway"})
)
