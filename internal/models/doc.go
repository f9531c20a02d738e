// Package models defines the core domain models for the Helper Points ledger.
//
// # Ledger Models
//
//   - Account: a user's point balance plus its loyalty counter
//   - Transaction: one append-only entry in an account's log
//   - Obligation: open-ended debt from a borrower to a helper for one order
//   - Repayment: a due-dated promise to repay, settled by the worker
//
// # Commerce Models
//
//   - Order: the subset of an order the ledger needs (items, payment, totals)
//   - PaymentAuthorization: binds a payment confirmation to an order
//   - Payout: a vendor's net proceeds from a delivered order
//
// # Conventions
//
//  1. Amounts are integer currency units (int64), never floats.
//  2. Timestamps are Unix seconds; zero means "not set".
//  3. Relationships use ID strings instead of pointers.
package models
