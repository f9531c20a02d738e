package payment

import (
	"context"

	"github.com/mmynk/helperpoints/internal/models"
)

// GatewayStatus is the state an external processor reports for an authorization.
type GatewayStatus string

const (
	GatewaySucceeded  GatewayStatus = "succeeded"
	GatewayFailed     GatewayStatus = "failed"
	GatewayProcessing GatewayStatus = "processing"
)

// Gateway is the external card/UPI processor. Real integrations live outside
// this module; the server runs with FakeGateway unless one is wired in.
type Gateway interface {
	// Authorize opens an authorization for amount and returns the processor's reference.
	Authorize(ctx context.Context, orderID string, method models.PaymentMethod, amount int64) (string, error)

	// Status reports the current state of a reference returned by Authorize.
	Status(ctx context.Context, ref string) (GatewayStatus, error)
}
