/*
aggregator.go - Derived savings balance

PURPOSE:
  Computes a user's current savings balance from their transaction history.
  This is the single source of truth for every goal's "current amount":
  the balance is projected at read time and is identical across all of a
  user's goals at any instant.

DERIVATION RULE:
  Partition transactions by type and sum each partition. Then:
    balance = savings            if savings > 0
    balance = income - expense   otherwise

  Explicit savings-typed transactions take precedence as ground truth;
  only in their absence is the balance inferred from the income/expense
  delta. An empty history yields zero.

CONCURRENCY:
  Pure read. No side effects. Safe to call concurrently and repeatedly.

SEE ALSO:
  - goals/engine.go: Consumes CurrentBalance for achievement checks
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TOTALS - Per-type sums over a user's ledger
// =============================================================================

type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Savings decimal.Decimal
}

// Balance applies the derivation rule to the partition sums.
func (t Totals) Balance() decimal.Decimal {
	if t.Savings.IsPositive() {
		return t.Savings
	}
	return t.Income.Sub(t.Expense)
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregator derives balances from a transaction store.
type Aggregator struct {
	store TransactionStore
}

func NewAggregator(store TransactionStore) *Aggregator {
	return &Aggregator{store: store}
}

// Totals sums a user's lifetime transactions by type.
// Amounts are validated at creation time; the aggregator only sums.
func (a *Aggregator) Totals(ctx context.Context, userID UserID) (Totals, error) {
	txs, err := a.store.ListByUser(ctx, userID)
	if err != nil {
		return Totals{}, err
	}

	t := Totals{
		Income:  decimal.Zero,
		Expense: decimal.Zero,
		Savings: decimal.Zero,
	}
	for _, tx := range txs {
		switch tx.Type {
		case TypeIncome:
			t.Income = t.Income.Add(tx.Amount)
		case TypeExpense:
			t.Expense = t.Expense.Add(tx.Amount)
		case TypeSavings:
			t.Savings = t.Savings.Add(tx.Amount)
		}
	}
	return t, nil
}

// CurrentBalance returns the derived savings balance for a user.
func (a *Aggregator) CurrentBalance(ctx context.Context, userID UserID) (decimal.Decimal, error) {
	totals, err := a.Totals(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return totals.Balance(), nil
}
