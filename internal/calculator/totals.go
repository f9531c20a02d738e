package calculator

import (
	"errors"
	"fmt"
	"sort"
)

// MaxAmount bounds every price, line, subtotal and total in points.
const MaxAmount int64 = 1_000_000_000_000_000

// ErrAmountTooLarge is returned when an amount would exceed MaxAmount.
var ErrAmountTooLarge = errors.New("amount exceeds maximum")

// addAmounts adds two non-negative amounts without exceeding MaxAmount.
func addAmounts(a, b int64) (int64, error) {
	if a > MaxAmount-b {
		return 0, ErrAmountTooLarge
	}
	return a + b, nil
}

// lineTotal returns price * quantity without exceeding MaxAmount.
func lineTotal(item Item) (int64, error) {
	if item.Price > 0 && item.Quantity > MaxAmount/item.Price {
		return 0, ErrAmountTooLarge
	}
	return item.Price * item.Quantity, nil
}

// Item represents a single line on an order
type Item struct {
	VendorID   string
	Price      int64
	Quantity   int64
	SecondHand bool
}

// Totals is the computed financial breakdown of an order
type Totals struct {
	Subtotal       int64
	Shipping       int64
	Tax            int64
	Discount       int64
	PointsDiscount int64
	Total          int64
}

// OrderTotals computes subtotal and total for an order.
// total = subtotal + shipping + tax - discount - pointsDiscount, floored at 0.
func OrderTotals(items []Item, shipping, tax, discount, pointsDiscount int64) (Totals, error) {
	if len(items) == 0 {
		return Totals{}, fmt.Errorf("order must have at least one item")
	}
	if shipping < 0 || tax < 0 || discount < 0 || pointsDiscount < 0 {
		return Totals{}, fmt.Errorf("shipping, tax and discounts cannot be negative")
	}
	if shipping > MaxAmount || tax > MaxAmount || discount > MaxAmount || pointsDiscount > MaxAmount {
		return Totals{}, ErrAmountTooLarge
	}

	var subtotal int64
	for i, item := range items {
		if item.Quantity <= 0 {
			return Totals{}, fmt.Errorf("item %d: quantity must be positive", i)
		}
		if item.Price < 0 {
			return Totals{}, fmt.Errorf("item %d: price cannot be negative", i)
		}
		line, err := lineTotal(item)
		if err != nil {
			return Totals{}, fmt.Errorf("item %d: %w", i, err)
		}
		if subtotal, err = addAmounts(subtotal, line); err != nil {
			return Totals{}, fmt.Errorf("subtotal: %w", err)
		}
	}

	gross, err := addAmounts(subtotal, shipping)
	if err == nil {
		gross, err = addAmounts(gross, tax)
	}
	if err != nil {
		return Totals{}, fmt.Errorf("total: %w", err)
	}

	total := gross - discount - pointsDiscount
	if total < 0 {
		total = 0
	}

	return Totals{
		Subtotal:       subtotal,
		Shipping:       shipping,
		Tax:            tax,
		Discount:       discount,
		PointsDiscount: pointsDiscount,
		Total:          total,
	}, nil
}

// VendorPayout is one vendor's share of a delivered order
type VendorPayout struct {
	VendorID   string
	Gross      int64
	Commission int64
	Net        int64
}

// Commission returns percent of gross, rounded half up.
// gross and percent must be non-negative; gross is split so that the
// product never leaves int64.
func Commission(gross, percent int64) int64 {
	return gross/100*percent + (gross%100*percent+50)/100
}

// VendorPayouts groups items by vendor and applies the platform commission.
// Results are ordered by vendor ID.
func VendorPayouts(items []Item, commissionPercent int64) ([]VendorPayout, error) {
	if commissionPercent < 0 || commissionPercent > 100 {
		return nil, fmt.Errorf("commission percent must be between 0 and 100, got %d", commissionPercent)
	}

	gross := make(map[string]int64)
	for _, item := range items {
		if item.VendorID == "" {
			return nil, fmt.Errorf("item without vendor cannot be paid out")
		}
		if item.Price < 0 || item.Quantity <= 0 {
			return nil, fmt.Errorf("vendor %s: invalid line price %d quantity %d", item.VendorID, item.Price, item.Quantity)
		}
		line, err := lineTotal(item)
		if err != nil {
			return nil, fmt.Errorf("vendor %s: %w", item.VendorID, err)
		}
		if gross[item.VendorID], err = addAmounts(gross[item.VendorID], line); err != nil {
			return nil, fmt.Errorf("vendor %s: %w", item.VendorID, err)
		}
	}

	payouts := make([]VendorPayout, 0, len(gross))
	for vendor, g := range gross {
		c := Commission(g, commissionPercent)
		payouts = append(payouts, VendorPayout{
			VendorID:   vendor,
			Gross:      g,
			Commission: c,
			Net:        g - c,
		})
	}
	sort.Slice(payouts, func(i, j int) bool {
		return payouts[i].VendorID < payouts[j].VendorID
	})

	return payouts, nil
}

// NewItemsSubtotal sums the lines that are not resale listings.
// Lines that fail OrderTotals validation contribute nothing.
func NewItemsSubtotal(items []Item) int64 {
	var sum int64
	for _, item := range items {
		if item.SecondHand || item.Price < 0 || item.Quantity <= 0 {
			continue
		}
		line, err := lineTotal(item)
		if err != nil {
			continue
		}
		if next, err := addAmounts(sum, line); err == nil {
			sum = next
		}
	}
	return sum
}

// LoyaltyPoints awards one point per divisor units of amount.
func LoyaltyPoints(amount, divisor int64) int64 {
	if amount <= 0 || divisor <= 0 {
		return 0
	}
	return amount / divisor
}
