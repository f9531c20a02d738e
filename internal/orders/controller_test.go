package orders_test

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/helperpoints/internal/calculator"
	"github.com/mmynk/helperpoints/internal/catalog"
	"github.com/mmynk/helperpoints/internal/ledger"
	"github.com/mmynk/helperpoints/internal/models"
	"github.com/mmynk/helperpoints/internal/orders"
	"github.com/mmynk/helperpoints/internal/storage/sqlstore"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time         { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	ctrl   *orders.Controller
	store  *sqlstore.Store
	ledger *ledger.Ledger
	stock  *catalog.Memory
	clock  *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlstore.NewSQLite(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := ledger.New(store, ledger.WithClock(clk.now))
	stock := catalog.NewMemory(map[string]int64{"p1": 10, "p2": 10, "used": 1})
	return &fixture{
		ctrl:   orders.NewController(store, l, stock, orders.DefaultPolicy()),
		store:  store,
		ledger: l,
		stock:  stock,
		clock:  clk,
	}
}

func (f *fixture) create(t *testing.T, method models.PaymentMethod, items ...models.LineItem) *models.Order {
	t.Helper()
	o, err := f.ctrl.Create(context.Background(), orders.CreateOrderInput{
		BuyerID: "buyer",
		Items:   items,
		Method:  method,
	})
	require.NoError(t, err)
	return o
}

// setPayment records a payment outcome the way the dispatcher would.
func (f *fixture) setPayment(t *testing.T, orderID string, status models.PaymentStatus) {
	t.Helper()
	ctx := context.Background()
	o, err := f.store.GetOrder(ctx, orderID)
	require.NoError(t, err)
	o.Payment.Status = status
	if status == models.PaymentCompleted {
		o.Payment.Amount = o.Total
	}
	require.NoError(t, f.store.UpdateOrderState(ctx, o))
}

// advanceTo walks an order forward to status to, paying for it first unless
// it is cash on delivery.
func (f *fixture) advanceTo(t *testing.T, orderID string, to models.OrderStatus) {
	t.Helper()
	o, err := f.ctrl.Get(context.Background(), orderID)
	require.NoError(t, err)
	if o.Payment.Method != models.MethodCOD && o.Payment.Status != models.PaymentCompleted {
		f.setPayment(t, orderID, models.PaymentCompleted)
	}

	path := []models.OrderStatus{
		models.OrderConfirmed, models.OrderProcessing, models.OrderShipped, models.OrderDelivered,
	}
	for _, st := range path {
		_, err := f.ctrl.Transition(context.Background(), orderID, st)
		require.NoError(t, err)
		if st == to {
			return
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.OrderStatus
		want     bool
	}{
		{models.OrderPending, models.OrderConfirmed, true},
		{models.OrderConfirmed, models.OrderProcessing, true},
		{models.OrderProcessing, models.OrderShipped, true},
		{models.OrderShipped, models.OrderDelivered, true},
		{models.OrderPending, models.OrderShipped, false},
		{models.OrderDelivered, models.OrderShipped, false},
		{models.OrderShipped, models.OrderCancelled, true},
		{models.OrderDelivered, models.OrderCancelled, false},
		{models.OrderCancelled, models.OrderCancelled, false},
		{models.OrderDelivered, models.OrderReturnRequested, true},
		{models.OrderShipped, models.OrderReturnRequested, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, orders.CanTransition(tt.from, tt.to))
		})
	}
}

func TestCreate_ComputesTotalsAndTakesStock(t *testing.T) {
	f := newFixture(t)
	o, err := f.ctrl.Create(context.Background(), orders.CreateOrderInput{
		BuyerID: "buyer",
		Items: []models.LineItem{
			{ProductID: "p1", VendorID: "v1", Price: 100, Quantity: 3},
			{ProductID: "p2", VendorID: "v2", Price: 50, Quantity: 1},
		},
		Method:   models.MethodWallet,
		Shipping: 20,
		Tax:      10,
		Discount: 30,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, int64(350), o.Subtotal)
	assert.Equal(t, int64(350), o.Total)
	assert.Equal(t, models.OrderPending, o.Status)
	assert.Equal(t, models.PaymentPending, o.Payment.Status)
	assert.Equal(t, models.ConditionNew, o.Items[0].Condition)
	assert.Equal(t, int64(7), f.stock.Level("p1"))
	assert.Equal(t, int64(9), f.stock.Level("p2"))

	got, err := f.ctrl.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Total, got.Total)
	assert.Len(t, got.Items, 2)
}

func TestCreate_RestoresStockOnFailure(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.Create(context.Background(), orders.CreateOrderInput{
		BuyerID: "buyer",
		Items: []models.LineItem{
			{ProductID: "p1", VendorID: "v1", Price: 100, Quantity: 4},
			{ProductID: "p2", VendorID: "v1", Price: 100, Quantity: 11},
		},
		Method: models.MethodCard,
	})
	require.ErrorIs(t, err, catalog.ErrOutOfStock)
	assert.Equal(t, int64(10), f.stock.Level("p1"))
	assert.Equal(t, int64(10), f.stock.Level("p2"))
}

func TestCreate_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctrl.Create(ctx, orders.CreateOrderInput{BuyerID: "buyer", Method: "cheque"})
	assert.ErrorIs(t, err, orders.ErrInvalidOrder)

	_, err = f.ctrl.Create(ctx, orders.CreateOrderInput{Method: models.MethodCard})
	assert.ErrorIs(t, err, orders.ErrInvalidOrder)

	_, err = f.ctrl.Create(ctx, orders.CreateOrderInput{
		BuyerID: "buyer",
		Method:  models.MethodCard,
		Items:   []models.LineItem{{ProductID: "p1", VendorID: "v1", Price: -1, Quantity: 1}},
	})
	assert.ErrorIs(t, err, orders.ErrInvalidOrder)
	assert.Equal(t, int64(10), f.stock.Level("p1"))

	_, err = f.ctrl.Create(ctx, orders.CreateOrderInput{
		BuyerID: "buyer",
		Method:  models.MethodWallet,
		Items:   []models.LineItem{{ProductID: "p1", VendorID: "v1", Price: math.MaxInt64/2 + 1, Quantity: 2}},
	})
	assert.ErrorIs(t, err, orders.ErrInvalidOrder)
	assert.ErrorIs(t, err, calculator.ErrAmountTooLarge)
	assert.Equal(t, int64(10), f.stock.Level("p1"))
}

func TestTransition_RejectsSkippingStates(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, models.MethodCard, models.LineItem{ProductID: "p1", VendorID: "v1", Price: 10, Quantity: 1})

	_, err := f.ctrl.Transition(context.Background(), o.ID, models.OrderDelivered)
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)

	_, err = f.ctrl.Transition(context.Background(), "missing", models.OrderConfirmed)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}

// Two vendors at 600 and 400 gross with 5% commission.
func TestTransition_RequiresSettledPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("unpaid card order cannot be confirmed", func(t *testing.T) {
		f := newFixture(t)
		o := f.create(t, models.MethodCard, models.LineItem{ProductID: "p1", VendorID: "v1", Price: 10, Quantity: 1})

		_, err := f.ctrl.Transition(ctx, o.ID, models.OrderConfirmed)
		assert.ErrorIs(t, err, orders.ErrPaymentRequired)

		f.setPayment(t, o.ID, models.PaymentCompleted)
		_, err = f.ctrl.Transition(ctx, o.ID, models.OrderConfirmed)
		assert.NoError(t, err)
	})

	t.Run("failed wallet payment blocks delivery and creates no payouts", func(t *testing.T) {
		f := newFixture(t)
		o := f.create(t, models.MethodWallet, models.LineItem{ProductID: "p1", VendorID: "v1", Price: 10, Quantity: 1})
		f.advanceTo(t, o.ID, models.OrderShipped)
		f.setPayment(t, o.ID, models.PaymentFailed)

		_, err := f.ctrl.OnDelivered(ctx, o.ID)
		assert.ErrorIs(t, err, orders.ErrPaymentRequired)

		payouts, err := f.ctrl.Payouts(ctx, o.ID)
		require.NoError(t, err)
		assert.Empty(t, payouts)
	})

	t.Run("cash on delivery moves while pending", func(t *testing.T) {
		f := newFixture(t)
		o := f.create(t, models.MethodCOD, models.LineItem{ProductID: "p1", VendorID: "v1", Price: 10, Quantity: 1})

		_, err := f.ctrl.Transition(ctx, o.ID, models.OrderConfirmed)
		assert.NoError(t, err)
	})

	t.Run("unpaid order can still be cancelled", func(t *testing.T) {
		f := newFixture(t)
		o := f.create(t, models.MethodCard, models.LineItem{ProductID: "p1", VendorID: "v1", Price: 10, Quantity: 1})

		res, err := f.ctrl.Cancel(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderCancelled, res.Order.Status)
	})
}

func TestDelivery_CreatesPayoutsAndLoyalty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t, models.MethodCard,
		models.LineItem{ProductID: "p1", VendorID: "vendor-a", Price: 200, Quantity: 3},
		models.LineItem{ProductID: "p2", VendorID: "vendor-b", Price: 400, Quantity: 1},
	)
	f.advanceTo(t, o.ID, models.OrderShipped)

	res, err := f.ctrl.OnDelivered(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, res.Order.Status)
	require.Len(t, res.Payouts, 2)

	payouts, err := f.ctrl.Payouts(ctx, o.ID)
	require.NoError(t, err)
	byVendor := map[string]*models.Payout{}
	for _, p := range payouts {
		byVendor[p.VendorID] = p
	}
	require.Len(t, byVendor, 2)
	assert.Equal(t, int64(600), byVendor["vendor-a"].Gross)
	assert.Equal(t, int64(30), byVendor["vendor-a"].Commission)
	assert.Equal(t, int64(570), byVendor["vendor-a"].Net)
	assert.Equal(t, int64(400), byVendor["vendor-b"].Gross)
	assert.Equal(t, int64(20), byVendor["vendor-b"].Commission)
	assert.Equal(t, int64(380), byVendor["vendor-b"].Net)
	assert.Equal(t, models.PayoutPending, byVendor["vendor-a"].Status)

	// 1000 of new items at one point per 50.
	assert.Equal(t, int64(20), res.LoyaltyAwarded)
	s, err := f.ledger.Summary(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, int64(20), s.LoyaltyPoints)
	assert.Equal(t, int64(0), s.Balance)

	// Re-running the hook creates nothing new.
	again, err := f.ctrl.OnDelivered(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Payouts)
	assert.Zero(t, again.LoyaltyAwarded)

	payouts, err = f.ctrl.Payouts(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, payouts, 2)
	s, err = f.ledger.Summary(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, int64(20), s.LoyaltyPoints)

	vendorA, err := f.ctrl.VendorPayouts(ctx, "vendor-a")
	require.NoError(t, err)
	assert.Len(t, vendorA, 1)
}

func TestDelivery_SecondHandEarnsNoDeliveryPoints(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, models.MethodCard,
		models.LineItem{ProductID: "used", VendorID: "v1", Price: 500, Quantity: 1, Condition: models.ConditionSecondHand},
		models.LineItem{ProductID: "p1", VendorID: "v1", Price: 120, Quantity: 1},
	)
	f.advanceTo(t, o.ID, models.OrderShipped)

	res, err := f.ctrl.OnDelivered(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.LoyaltyAwarded)
	require.Len(t, res.Payouts, 1)
	assert.Equal(t, int64(620), res.Payouts[0].Gross)
}

func TestDelivery_CompletesCashOnDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t, models.MethodCOD, models.LineItem{ProductID: "p1", VendorID: "v1", Price: 250, Quantity: 2})
	f.advanceTo(t, o.ID, models.OrderDelivered)

	got, err := f.ctrl.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, got.Payment.Status)
	assert.Equal(t, int64(500), got.Payment.Amount)
	assert.NotZero(t, got.DeliveredAt)

	// 500/50 on delivery plus 500/100 on payment.
	s, err := f.ledger.Summary(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, int64(15), s.LoyaltyPoints)
}

func TestCancel_RestoresStockAndIsFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t, models.MethodCard, models.LineItem{ProductID: "p1", VendorID: "v1", Price: 10, Quantity: 4})
	require.Equal(t, int64(6), f.stock.Level("p1"))
	f.advanceTo(t, o.ID, models.OrderProcessing)

	res, err := f.ctrl.Cancel(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, res.Order.Status)
	assert.Equal(t, int64(10), f.stock.Level("p1"))

	_, err = f.ctrl.Cancel(ctx, o.ID)
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)
	assert.Equal(t, int64(10), f.stock.Level("p1"))
}

func TestRequestReturn(t *testing.T) {
	t.Run("within window", func(t *testing.T) {
		f := newFixture(t)
		o := f.create(t, models.MethodCard, models.LineItem{ProductID: "p1", VendorID: "v1", Price: 10, Quantity: 1})
		f.advanceTo(t, o.ID, models.OrderDelivered)
		f.clock.advance(6 * 24 * time.Hour)

		res, err := f.ctrl.RequestReturn(context.Background(), o.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderReturnRequested, res.Order.Status)
	})

	t.Run("window closed", func(t *testing.T) {
		f := newFixture(t)
		o := f.create(t, models.MethodCard, models.LineItem{ProductID: "p1", VendorID: "v1", Price: 10, Quantity: 1})
		f.advanceTo(t, o.ID, models.OrderDelivered)
		f.clock.advance(8 * 24 * time.Hour)

		_, err := f.ctrl.RequestReturn(context.Background(), o.ID)
		assert.ErrorIs(t, err, orders.ErrNotReturnable)
	})

	t.Run("second-hand item", func(t *testing.T) {
		f := newFixture(t)
		o := f.create(t, models.MethodCard,
			models.LineItem{ProductID: "used", VendorID: "v1", Price: 10, Quantity: 1, Condition: models.ConditionSecondHand})
		f.advanceTo(t, o.ID, models.OrderDelivered)

		_, err := f.ctrl.RequestReturn(context.Background(), o.ID)
		assert.ErrorIs(t, err, orders.ErrNotReturnable)
	})

	t.Run("not delivered", func(t *testing.T) {
		f := newFixture(t)
		o := f.create(t, models.MethodCard, models.LineItem{ProductID: "p1", VendorID: "v1", Price: 10, Quantity: 1})

		_, err := f.ctrl.RequestReturn(context.Background(), o.ID)
		assert.ErrorIs(t, err, orders.ErrInvalidTransition)
	})
}
