package service

import (
	"github.com/mmynk/helperpoints/internal/ledger"
	"github.com/mmynk/helperpoints/internal/models"
	"github.com/mmynk/helperpoints/internal/orders"
)

// Wire messages. Field names follow the lowerCamelCase JSON mapping that
// protojson would produce for the equivalent proto definitions.

type CreatePaymentAuthorizationRequest struct {
	OrderRef string `json:"orderRef"`
	Method   string `json:"method"`
	Amount   int64  `json:"amount"`
}

type CreatePaymentAuthorizationResponse struct {
	AuthorizationRef string `json:"authorizationRef"`
	ExternalRef      string `json:"externalRef,omitempty"`
}

type ConfirmPaymentRequest struct {
	AuthorizationRef string `json:"authorizationRef"`
	OrderRef         string `json:"orderRef"`
}

type ConfirmPaymentResponse struct {
	OrderStatus    string `json:"orderStatus"`
	PaymentStatus  string `json:"paymentStatus"`
	BorrowedPoints int64  `json:"borrowedPoints,omitempty"`
	LoyaltyAwarded int64  `json:"loyaltyAwarded,omitempty"`
}

type TopUpWalletRequest struct {
	UserID string `json:"userId"`
	Amount int64  `json:"amount"`
}

type TopUpWalletResponse struct {
	NewBalance       int64 `json:"newBalance"`
	AmountReimbursed int64 `json:"amountReimbursed"`
}

type GetAccountSummaryRequest struct {
	UserID string `json:"userId"`
}

type AccountSummary struct {
	UserID                     string `json:"userId"`
	Balance                    int64  `json:"balance"`
	TotalOutstandingAsBorrower int64  `json:"totalOutstandingAsBorrower"`
	TotalOutstandingAsHelper   int64  `json:"totalOutstandingAsHelper"`
	LoyaltyPoints              int64  `json:"loyaltyPoints"`
}

type ListTransactionsRequest struct {
	UserID string `json:"userId"`
	Limit  int    `json:"limit,omitempty"`
}

type Transaction struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	Amount         int64  `json:"amount"`
	Delta          int64  `json:"delta"`
	CounterpartyID string `json:"counterpartyId,omitempty"`
	OrderRef       string `json:"orderRef,omitempty"`
	Note           string `json:"note,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
}

type ListTransactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
}

type ListObligationsRequest struct {
	UserID string `json:"userId"`
}

type Obligation struct {
	ID         string `json:"id"`
	BorrowerID string `json:"borrowerId"`
	HelperID   string `json:"helperId"`
	OrderRef   string `json:"orderRef,omitempty"`
	Amount     int64  `json:"amount"`
	CreatedAt  int64  `json:"createdAt"`
	SettledAt  int64  `json:"settledAt,omitempty"`
}

type ListObligationsResponse struct {
	Obligations []Obligation `json:"obligations"`
}

type CreateRepaymentRequest struct {
	BorrowerID string `json:"borrowerId"`
	HelperID   string `json:"helperId"`
	ProductID  string `json:"productId,omitempty"`
	Amount     int64  `json:"amount"`
	DueDate    int64  `json:"dueDate"`
	Method     string `json:"method,omitempty"`
}

type ProcessRepaymentNowRequest struct {
	RepaymentID string `json:"repaymentId"`
}

type Repayment struct {
	ID            string `json:"id"`
	BorrowerID    string `json:"borrowerId"`
	HelperID      string `json:"helperId"`
	ProductID     string `json:"productId,omitempty"`
	Amount        int64  `json:"amount"`
	DueDate       int64  `json:"dueDate"`
	Status        string `json:"status"`
	Method        string `json:"method,omitempty"`
	PaidAt        int64  `json:"paidAt,omitempty"`
	FailureReason string `json:"failureReason,omitempty"`
}

type SweepReport struct {
	Completed  int   `json:"completed"`
	Failed     int   `json:"failed"`
	Skipped    int   `json:"skipped"`
	DurationMs int64 `json:"durationMs"`
}

type LineItem struct {
	ProductID string `json:"productId"`
	VendorID  string `json:"vendorId"`
	Name      string `json:"name,omitempty"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	Condition string `json:"condition,omitempty"`
}

type CreateOrderRequest struct {
	BuyerID        string     `json:"buyerId"`
	Items          []LineItem `json:"items"`
	PaymentMethod  string     `json:"paymentMethod"`
	Shipping       int64      `json:"shipping,omitempty"`
	Tax            int64      `json:"tax,omitempty"`
	Discount       int64      `json:"discount,omitempty"`
	PointsDiscount int64      `json:"pointsDiscount,omitempty"`
}

type Order struct {
	ID             string     `json:"id"`
	BuyerID        string     `json:"buyerId"`
	Items          []LineItem `json:"items"`
	Status         string     `json:"status"`
	PaymentMethod  string     `json:"paymentMethod"`
	PaymentStatus  string     `json:"paymentStatus"`
	Subtotal       int64      `json:"subtotal"`
	Shipping       int64      `json:"shipping"`
	Tax            int64      `json:"tax"`
	Discount       int64      `json:"discount"`
	PointsDiscount int64      `json:"pointsDiscount"`
	Total          int64      `json:"total"`
	DeliveredAt    int64      `json:"deliveredAt,omitempty"`
}

type UpdateOrderStatusRequest struct {
	OrderRef string `json:"orderRef"`
	Status   string `json:"status"`
}

type UpdateOrderStatusResponse struct {
	Order          Order    `json:"order"`
	Payouts        []Payout `json:"payouts,omitempty"`
	LoyaltyAwarded int64    `json:"loyaltyAwarded,omitempty"`
}

type GetOrderRequest struct {
	OrderRef string `json:"orderRef"`
}

type ListPayoutsRequest struct {
	OrderRef string `json:"orderRef,omitempty"`
	VendorID string `json:"vendorId,omitempty"`
}

type Payout struct {
	ID                string `json:"id"`
	VendorID          string `json:"vendorId"`
	OrderRef          string `json:"orderRef"`
	Gross             int64  `json:"gross"`
	CommissionPercent int64  `json:"commissionPercent"`
	Commission        int64  `json:"commission"`
	Net               int64  `json:"net"`
	Status            string `json:"status"`
}

type ListPayoutsResponse struct {
	Payouts []Payout `json:"payouts"`
}

func toSummary(s *models.AccountSummary) *AccountSummary {
	return &AccountSummary{
		UserID:                     s.UserID,
		Balance:                    s.Balance,
		TotalOutstandingAsBorrower: s.OutstandingAsBorrower,
		TotalOutstandingAsHelper:   s.OutstandingAsHelper,
		LoyaltyPoints:              s.LoyaltyPoints,
	}
}

func toTransactions(txs []*models.Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	for i, t := range txs {
		out[i] = Transaction{
			ID:             t.ID,
			Kind:           string(t.Kind),
			Amount:         t.Amount,
			Delta:          t.Delta,
			CounterpartyID: t.CounterpartyID,
			OrderRef:       t.OrderID,
			Note:           t.Note,
			CreatedAt:      t.CreatedAt,
		}
	}
	return out
}

func toObligations(obs []*models.Obligation) []Obligation {
	out := make([]Obligation, len(obs))
	for i, o := range obs {
		out[i] = Obligation{
			ID:         o.ID,
			BorrowerID: o.BorrowerID,
			HelperID:   o.HelperID,
			OrderRef:   o.OrderID,
			Amount:     o.Amount,
			CreatedAt:  o.CreatedAt,
			SettledAt:  o.SettledAt,
		}
	}
	return out
}

func toRepayment(r *models.Repayment) *Repayment {
	return &Repayment{
		ID:            r.ID,
		BorrowerID:    r.BorrowerID,
		HelperID:      r.HelperID,
		ProductID:     r.ProductID,
		Amount:        r.Amount,
		DueDate:       r.DueDate,
		Status:        string(r.Status),
		Method:        r.Method,
		PaidAt:        r.PaidAt,
		FailureReason: r.FailureReason,
	}
}

func toOrder(o *models.Order) Order {
	items := make([]LineItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = LineItem{
			ProductID: it.ProductID,
			VendorID:  it.VendorID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Condition: string(it.Condition),
		}
	}
	return Order{
		ID:             o.ID,
		BuyerID:        o.BuyerID,
		Items:          items,
		Status:         string(o.Status),
		PaymentMethod:  string(o.Payment.Method),
		PaymentStatus:  string(o.Payment.Status),
		Subtotal:       o.Subtotal,
		Shipping:       o.Shipping,
		Tax:            o.Tax,
		Discount:       o.Discount,
		PointsDiscount: o.PointsDiscount,
		Total:          o.Total,
		DeliveredAt:    o.DeliveredAt,
	}
}

func fromCreateOrder(req *CreateOrderRequest) orders.CreateOrderInput {
	items := make([]models.LineItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = models.LineItem{
			ProductID: it.ProductID,
			VendorID:  it.VendorID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Condition: models.ItemCondition(it.Condition),
		}
	}
	return orders.CreateOrderInput{
		BuyerID:        req.BuyerID,
		Items:          items,
		Method:         models.PaymentMethod(req.PaymentMethod),
		Shipping:       req.Shipping,
		Tax:            req.Tax,
		Discount:       req.Discount,
		PointsDiscount: req.PointsDiscount,
	}
}

func toPayouts(ps []*models.Payout) []Payout {
	out := make([]Payout, len(ps))
	for i, p := range ps {
		out[i] = Payout{
			ID:                p.ID,
			VendorID:          p.VendorID,
			OrderRef:          p.OrderID,
			Gross:             p.Gross,
			CommissionPercent: p.CommissionPercent,
			Commission:        p.Commission,
			Net:               p.Net,
			Status:            string(p.Status),
		}
	}
	return out
}

func borrowed(a *ledger.Allocation) int64 {
	if a == nil || !a.Committed {
		return 0
	}
	return a.Allocated
}
