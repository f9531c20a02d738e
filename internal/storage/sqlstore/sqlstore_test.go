package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mmynk/helperpoints/internal/models"
	"github.com/mmynk/helperpoints/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = ? LIMIT ?"
	if got := DialectSQLite.rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %s", got)
	}
	want := "SELECT * FROM t WHERE a = $1 AND b = $2 LIMIT $3"
	if got := DialectPostgres.rebind(q); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "x"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestAccounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("EnsureAccount is idempotent", func(t *testing.T) {
		if err := store.EnsureAccount(ctx, "alice", 100); err != nil {
			t.Fatalf("EnsureAccount failed: %v", err)
		}
		if _, err := store.AdjustBalance(ctx, "alice", 50, 101); err != nil {
			t.Fatalf("AdjustBalance failed: %v", err)
		}
		if err := store.EnsureAccount(ctx, "alice", 102); err != nil {
			t.Fatalf("second EnsureAccount failed: %v", err)
		}

		acct, err := store.GetAccount(ctx, "alice")
		if err != nil {
			t.Fatalf("GetAccount failed: %v", err)
		}
		if acct.Balance != 50 {
			t.Errorf("Balance = %d, want 50", acct.Balance)
		}
		if acct.CreatedAt != 100 {
			t.Errorf("CreatedAt = %d, want 100", acct.CreatedAt)
		}
	})

	t.Run("GetAccount returns ErrNotFound", func(t *testing.T) {
		_, err := store.GetAccount(ctx, "nobody")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("adjustments are relative to the stored balance", func(t *testing.T) {
		got, err := store.AdjustBalance(ctx, "alice", 25, 103)
		if err != nil {
			t.Fatalf("AdjustBalance failed: %v", err)
		}
		if got != 75 {
			t.Errorf("balance = %d, want 75", got)
		}
		got, err = store.AdjustBalance(ctx, "alice", -25, 104)
		if err != nil {
			t.Fatalf("AdjustBalance failed: %v", err)
		}
		if got != 50 {
			t.Errorf("balance = %d, want 50", got)
		}
	})

	t.Run("overdraft leaves the balance untouched", func(t *testing.T) {
		_, err := store.AdjustBalance(ctx, "alice", -51, 105)
		if !errors.Is(err, storage.ErrBalanceTooLow) {
			t.Fatalf("expected ErrBalanceTooLow, got %v", err)
		}
		acct, err := store.GetAccount(ctx, "alice")
		if err != nil {
			t.Fatalf("GetAccount failed: %v", err)
		}
		if acct.Balance != 50 {
			t.Errorf("Balance = %d, want 50", acct.Balance)
		}
	})

	t.Run("adjusting a missing account returns ErrNotFound", func(t *testing.T) {
		_, err := store.AdjustBalance(ctx, "nobody", 10, 106)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("transactions list newest first", func(t *testing.T) {
		for i, amount := range []int64{10, 20, 30} {
			err := store.InsertTransaction(ctx, &models.Transaction{
				UserID:    "alice",
				Kind:      models.TransactionTopUp,
				Amount:    amount,
				Delta:     amount,
				CreatedAt: int64(200 + i),
			})
			if err != nil {
				t.Fatalf("InsertTransaction failed: %v", err)
			}
		}

		txs, err := store.ListTransactions(ctx, "alice", 2)
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(txs) != 2 {
			t.Fatalf("expected 2 transactions, got %d", len(txs))
		}
		if txs[0].Amount != 30 || txs[1].Amount != 20 {
			t.Errorf("unexpected order: %d, %d", txs[0].Amount, txs[1].Amount)
		}
	})

	t.Run("helper candidates exclude borrower and empty accounts", func(t *testing.T) {
		for user, balance := range map[string]int64{"h1": 300, "h2": 400, "h3": 0, "borrower": 900} {
			if err := store.EnsureAccount(ctx, user, 1); err != nil {
				t.Fatalf("EnsureAccount failed: %v", err)
			}
			if _, err := store.AdjustBalance(ctx, user, balance, 1); err != nil {
				t.Fatalf("AdjustBalance failed: %v", err)
			}
		}

		accts, err := store.ListHelperCandidates(ctx, "borrower", 10)
		if err != nil {
			t.Fatalf("ListHelperCandidates failed: %v", err)
		}
		var got []string
		for _, a := range accts {
			got = append(got, a.UserID)
		}
		want := []string{"h2", "h1", "alice"}
		if len(got) != len(want) {
			t.Fatalf("candidates = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("candidates = %v, want %v", got, want)
				break
			}
		}
	})
}

func TestObligations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, u := range []string{"bob", "h1", "h2"} {
		if err := store.EnsureAccount(ctx, u, 1); err != nil {
			t.Fatalf("EnsureAccount failed: %v", err)
		}
	}

	first, err := store.AddObligation(ctx, "bob", "h1", "order-1", 300, 10)
	if err != nil {
		t.Fatalf("AddObligation failed: %v", err)
	}
	second, err := store.AddObligation(ctx, "bob", "h1", "order-1", 50, 11)
	if err != nil {
		t.Fatalf("AddObligation (upsert) failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("upsert created a new record: %s != %s", second.ID, first.ID)
	}
	if second.Amount != 350 {
		t.Errorf("Amount after upsert = %d, want 350", second.Amount)
	}

	if _, err := store.AddObligation(ctx, "bob", "h2", "order-2", 200, 20); err != nil {
		t.Fatalf("AddObligation failed: %v", err)
	}

	t.Run("sum outstanding", func(t *testing.T) {
		asBorrower, asHelper, err := store.SumOutstanding(ctx, "bob")
		if err != nil {
			t.Fatalf("SumOutstanding failed: %v", err)
		}
		if asBorrower != 550 || asHelper != 0 {
			t.Errorf("bob outstanding = (%d, %d), want (550, 0)", asBorrower, asHelper)
		}
		asBorrower, asHelper, err = store.SumOutstanding(ctx, "h1")
		if err != nil {
			t.Fatalf("SumOutstanding failed: %v", err)
		}
		if asBorrower != 0 || asHelper != 350 {
			t.Errorf("h1 outstanding = (%d, %d), want (0, 350)", asBorrower, asHelper)
		}
	})

	t.Run("settled obligations stay as audit trail", func(t *testing.T) {
		if err := store.SetObligationAmount(ctx, first.ID, 0, 30); err != nil {
			t.Fatalf("SetObligationAmount failed: %v", err)
		}

		open, err := store.ListOpenObligations(ctx, "bob")
		if err != nil {
			t.Fatalf("ListOpenObligations failed: %v", err)
		}
		if len(open) != 1 || open[0].HelperID != "h2" {
			t.Errorf("expected only h2 obligation open, got %+v", open)
		}

		all, err := store.ListObligations(ctx, "bob")
		if err != nil {
			t.Fatalf("ListObligations failed: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected 2 obligations, got %d", len(all))
		}
		got, err := store.GetObligation(ctx, first.ID)
		if err != nil {
			t.Fatalf("GetObligation failed: %v", err)
		}
		if got.SettledAt != 30 || !got.Settled() {
			t.Errorf("expected settled obligation, got %+v", got)
		}
	})

	t.Run("unknown obligation", func(t *testing.T) {
		if err := store.SetObligationAmount(ctx, "missing", 1, 1); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRepayments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	due := &models.Repayment{BorrowerID: "bob", HelperID: "h1", Amount: 100, DueDate: 50}
	future := &models.Repayment{BorrowerID: "bob", HelperID: "h1", Amount: 100, DueDate: 500}
	for _, r := range []*models.Repayment{due, future} {
		if err := store.CreateRepayment(ctx, r); err != nil {
			t.Fatalf("CreateRepayment failed: %v", err)
		}
	}
	if due.Status != models.RepaymentPending {
		t.Errorf("Status = %s, want pending", due.Status)
	}

	list, err := store.ListDueRepayments(ctx, 100)
	if err != nil {
		t.Fatalf("ListDueRepayments failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != due.ID {
		t.Fatalf("expected only the due repayment, got %+v", list)
	}

	claimed, err := store.ClaimRepayment(ctx, due.ID)
	if err != nil || !claimed {
		t.Fatalf("ClaimRepayment = (%v, %v), want (true, nil)", claimed, err)
	}
	claimed, err = store.ClaimRepayment(ctx, due.ID)
	if err != nil || claimed {
		t.Fatalf("second ClaimRepayment = (%v, %v), want (false, nil)", claimed, err)
	}

	if err := store.CompleteRepayment(ctx, due.ID, 99); err != nil {
		t.Fatalf("CompleteRepayment failed: %v", err)
	}
	got, err := store.GetRepayment(ctx, due.ID)
	if err != nil {
		t.Fatalf("GetRepayment failed: %v", err)
	}
	if got.Status != models.RepaymentCompleted || got.PaidAt != 99 {
		t.Errorf("unexpected repayment state: %+v", got)
	}

	if err := store.FailRepayment(ctx, future.ID, "insufficient wallet balance"); err != nil {
		t.Fatalf("FailRepayment failed: %v", err)
	}
	got, err = store.GetRepayment(ctx, future.ID)
	if err != nil {
		t.Fatalf("GetRepayment failed: %v", err)
	}
	if got.Status != models.RepaymentFailed || got.FailureReason == "" {
		t.Errorf("unexpected repayment state: %+v", got)
	}
}

func TestOrdersAndPayouts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	order := &models.Order{
		BuyerID: "bob",
		Status:  models.OrderPending,
		Payment: models.Payment{Method: models.MethodWallet, Status: models.PaymentPending},
		Items: []models.LineItem{
			{ProductID: "p1", VendorID: "v1", Name: "Lamp", Price: 600, Quantity: 1, Condition: models.ConditionNew},
			{ProductID: "p2", VendorID: "v2", Name: "Chair", Price: 200, Quantity: 2, Condition: models.ConditionSecondHand},
		},
		Subtotal: 1000,
		Total:    1000,
	}
	if err := store.CreateOrder(ctx, order); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	t.Run("GetOrder retrieves complete order", func(t *testing.T) {
		got, err := store.GetOrder(ctx, order.ID)
		if err != nil {
			t.Fatalf("GetOrder failed: %v", err)
		}
		if got.Total != 1000 || got.Payment.Method != models.MethodWallet {
			t.Errorf("unexpected order: %+v", got)
		}
		if len(got.Items) != 2 {
			t.Fatalf("Items count = %d, want 2", len(got.Items))
		}
		if got.Items[1].Condition != models.ConditionSecondHand || got.Items[1].Quantity != 2 {
			t.Errorf("unexpected second item: %+v", got.Items[1])
		}
	})

	t.Run("UpdateOrderState persists lifecycle fields", func(t *testing.T) {
		order.Status = models.OrderConfirmed
		order.Payment.Status = models.PaymentCompleted
		order.Payment.TransactionID = "auth-1"
		order.Payment.Amount = 1000
		order.UpdatedAt = 77
		if err := store.UpdateOrderState(ctx, order); err != nil {
			t.Fatalf("UpdateOrderState failed: %v", err)
		}
		got, err := store.GetOrder(ctx, order.ID)
		if err != nil {
			t.Fatalf("GetOrder failed: %v", err)
		}
		if got.Status != models.OrderConfirmed || got.Payment.Status != models.PaymentCompleted || got.Payment.TransactionID != "auth-1" {
			t.Errorf("unexpected order state: %+v", got)
		}
	})

	t.Run("authorizations", func(t *testing.T) {
		auth := &models.PaymentAuthorization{OrderID: order.ID, Method: models.MethodCard, Amount: 1000, ExternalRef: "pi_123"}
		if err := store.CreateAuthorization(ctx, auth); err != nil {
			t.Fatalf("CreateAuthorization failed: %v", err)
		}
		got, err := store.GetAuthorization(ctx, auth.ID)
		if err != nil {
			t.Fatalf("GetAuthorization failed: %v", err)
		}
		if got.ExternalRef != "pi_123" || got.Method != models.MethodCard {
			t.Errorf("unexpected authorization: %+v", got)
		}
		if _, err := store.GetAuthorization(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("payouts are unique per vendor and order", func(t *testing.T) {
		p := &models.Payout{VendorID: "v1", OrderID: order.ID, Gross: 600, CommissionPercent: 5, Commission: 30, Net: 570}
		created, err := store.CreatePayout(ctx, p)
		if err != nil || !created {
			t.Fatalf("CreatePayout = (%v, %v), want (true, nil)", created, err)
		}
		created, err = store.CreatePayout(ctx, &models.Payout{VendorID: "v1", OrderID: order.ID, Gross: 1})
		if err != nil || created {
			t.Fatalf("duplicate CreatePayout = (%v, %v), want (false, nil)", created, err)
		}

		payouts, err := store.ListPayoutsByOrder(ctx, order.ID)
		if err != nil {
			t.Fatalf("ListPayoutsByOrder failed: %v", err)
		}
		if len(payouts) != 1 || payouts[0].Net != 570 || payouts[0].Status != models.PayoutPending {
			t.Errorf("unexpected payouts: %+v", payouts)
		}

		byVendor, err := store.ListPayoutsByVendor(ctx, "v1")
		if err != nil {
			t.Fatalf("ListPayoutsByVendor failed: %v", err)
		}
		if len(byVendor) != 1 {
			t.Errorf("expected 1 vendor payout, got %d", len(byVendor))
		}
	})

	t.Run("loyalty awards fire once per reason", func(t *testing.T) {
		ok, err := store.RecordLoyaltyAward(ctx, order.ID, "bob", models.LoyaltyPayment, 10, 1)
		if err != nil || !ok {
			t.Fatalf("RecordLoyaltyAward = (%v, %v), want (true, nil)", ok, err)
		}
		ok, err = store.RecordLoyaltyAward(ctx, order.ID, "bob", models.LoyaltyPayment, 10, 2)
		if err != nil || ok {
			t.Fatalf("duplicate RecordLoyaltyAward = (%v, %v), want (false, nil)", ok, err)
		}
		ok, err = store.RecordLoyaltyAward(ctx, order.ID, "bob", models.LoyaltyDelivery, 12, 3)
		if err != nil || !ok {
			t.Fatalf("delivery RecordLoyaltyAward = (%v, %v), want (true, nil)", ok, err)
		}
	})
}

func TestInTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.InTx(ctx, func(q storage.Queries) error {
		if err := q.EnsureAccount(ctx, "carol", 1); err != nil {
			return err
		}
		if _, err := q.AdjustBalance(ctx, "carol", 500, 1); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx error = %v, want boom", err)
	}

	if _, err := store.GetAccount(ctx, "carol"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected rollback to remove account, got %v", err)
	}
}
