package models

import "fmt"

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderPending         OrderStatus = "pending"
	OrderConfirmed       OrderStatus = "confirmed"
	OrderProcessing      OrderStatus = "processing"
	OrderShipped         OrderStatus = "shipped"
	OrderDelivered       OrderStatus = "delivered"
	OrderCancelled       OrderStatus = "cancelled"
	OrderReturnRequested OrderStatus = "return_requested"
)

// Terminal reports whether no further transition other than a return is possible.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderDelivered, OrderCancelled, OrderReturnRequested:
		return true
	}
	return false
}

// PaymentStatus is the settlement state of an order's payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// PaymentMethod is the closed set of ways an order can be paid.
type PaymentMethod string

const (
	MethodCard         PaymentMethod = "card"
	MethodUPI          PaymentMethod = "upi"
	MethodCOD          PaymentMethod = "cod"
	MethodWallet       PaymentMethod = "wallet"
	MethodHelperPoints PaymentMethod = "helperpoints"
)

// PaymentMethods lists every supported method.
var PaymentMethods = []PaymentMethod{MethodCard, MethodUPI, MethodCOD, MethodWallet, MethodHelperPoints}

// ParsePaymentMethod converts a wire string into a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	for _, m := range PaymentMethods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

// ItemCondition distinguishes new stock from resale listings.
type ItemCondition string

const (
	ConditionNew        ItemCondition = "new"
	ConditionSecondHand ItemCondition = "second_hand"
)

// LineItem is one product line on an order.
type LineItem struct {
	ProductID string
	VendorID  string
	Name      string

	// Price is the unit price.
	Price    int64
	Quantity int64

	Condition ItemCondition
}

// LineTotal is Price × Quantity.
func (li LineItem) LineTotal() int64 {
	return li.Price * li.Quantity
}

// Payment is the payment axis of an order's lifecycle.
type Payment struct {
	Method PaymentMethod
	Status PaymentStatus

	// TransactionID is the authorization reference that completed the payment.
	TransactionID string

	// Amount is the amount actually collected.
	Amount int64
}

// Order is the subset of a storefront order the ledger works with.
//
// Total = Subtotal + Shipping + Tax - Discount - PointsDiscount, floored at 0.
type Order struct {
	// ID is the unique identifier for the order (UUID format).
	ID string

	BuyerID string
	Items   []LineItem
	Payment Payment
	Status  OrderStatus

	Subtotal       int64
	Shipping       int64
	Tax            int64
	Discount       int64
	PointsDiscount int64
	Total          int64

	CreatedAt int64
	UpdatedAt int64

	// DeliveredAt is set on the transition to delivered.
	DeliveredAt int64
}

// PaymentAuthorization binds a confirmation attempt to an order.
// For gateway methods ExternalRef holds the gateway's reference; for
// cod, wallet and helperpoints it is empty.
type PaymentAuthorization struct {
	// ID is the authorization reference handed to the client.
	ID string

	OrderID     string
	Method      PaymentMethod
	Amount      int64
	ExternalRef string
	CreatedAt   int64
}

// LoyaltyReason identifies which lifecycle event earned an award.
type LoyaltyReason string

const (
	LoyaltyPayment  LoyaltyReason = "payment"
	LoyaltyDelivery LoyaltyReason = "delivery"
)
