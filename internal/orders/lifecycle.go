// Package orders owns order status transitions and the delivery hook that
// creates vendor payouts and loyalty awards.
package orders

import "github.com/mmynk/helperpoints/internal/models"

// transitions lists the allowed forward moves. Cancellation and returns are
// handled separately.
var transitions = map[models.OrderStatus]models.OrderStatus{
	models.OrderPending:    models.OrderConfirmed,
	models.OrderConfirmed:  models.OrderProcessing,
	models.OrderProcessing: models.OrderShipped,
	models.OrderShipped:    models.OrderDelivered,
}

// CanTransition reports whether an order may move from one status to another.
// It does not check the return window or item conditions.
func CanTransition(from, to models.OrderStatus) bool {
	switch to {
	case models.OrderCancelled:
		return !from.Terminal()
	case models.OrderReturnRequested:
		return from == models.OrderDelivered
	}
	next, ok := transitions[from]
	return ok && next == to
}

// ParseStatus converts a wire string into an OrderStatus.
func ParseStatus(s string) (models.OrderStatus, bool) {
	switch st := models.OrderStatus(s); st {
	case models.OrderPending, models.OrderConfirmed, models.OrderProcessing, models.OrderShipped,
		models.OrderDelivered, models.OrderCancelled, models.OrderReturnRequested:
		return st, true
	}
	return "", false
}
