package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mmynk/helperpoints/internal/models"
)

// FakeGateway is an in-memory Gateway. New references start in the status
// given by Default; tests move them with SetStatus.
type FakeGateway struct {
	mu      sync.Mutex
	refs    map[string]GatewayStatus
	Default GatewayStatus

	// AuthorizeErr, when set, is returned by every Authorize call.
	AuthorizeErr error
}

// NewFakeGateway returns a gateway that approves every authorization.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		refs:    make(map[string]GatewayStatus),
		Default: GatewaySucceeded,
	}
}

func (g *FakeGateway) Authorize(ctx context.Context, orderID string, method models.PaymentMethod, amount int64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.AuthorizeErr != nil {
		return "", g.AuthorizeErr
	}
	ref := fmt.Sprintf("%s_%s", method, uuid.NewString())
	g.refs[ref] = g.Default
	return ref, nil
}

func (g *FakeGateway) Status(ctx context.Context, ref string) (GatewayStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.refs[ref]
	if !ok {
		return "", fmt.Errorf("unknown gateway reference %q", ref)
	}
	return st, nil
}

// SetStatus overrides the state of one reference.
func (g *FakeGateway) SetStatus(ref string, st GatewayStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refs[ref] = st
}
