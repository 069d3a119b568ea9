// Package reports computes aggregated views over stored transactions. All
// functions are pure; callers load the transaction window they care about
// and hand it in, which keeps the aggregations backend-agnostic.
package reports

import (
	"sort"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/domain"
)

// MonthlyCashFlow is the income/expense/net summary for one month.
// Transfers are excluded from both sides: moving money between accounts is
// neither income nor spending.
type MonthlyCashFlow struct {
	Month   string  `json:"month"` // YYYY-MM
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"` // positive magnitude
	Net     float64 `json:"net"`
}

// CashFlow groups transactions into per-month income/expense totals,
// ordered by month ascending.
func CashFlow(txns []domain.Transaction) []MonthlyCashFlow {
	byMonth := make(map[string]*MonthlyCashFlow)
	for _, txn := range txns {
		if txn.Type == domain.TxnTransfer || len(txn.Date) < 7 {
			continue
		}
		month := txn.Date[:7]
		flow, ok := byMonth[month]
		if !ok {
			flow = &MonthlyCashFlow{Month: month}
			byMonth[month] = flow
		}
		if txn.Amount > 0 {
			flow.Income += txn.Amount
		} else {
			flow.Expense += -txn.Amount
		}
		flow.Net += txn.Amount
	}

	months := make([]MonthlyCashFlow, 0, len(byMonth))
	for _, flow := range byMonth {
		months = append(months, *flow)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Month < months[j].Month })
	return months
}

// CategoryTotal is the spending total for one category.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"` // positive magnitude
	Count    int     `json:"count"`
}

// SpendingByCategory sums expense magnitudes per category, largest first.
// Income, transfers, and refunds are not spending and are skipped.
func SpendingByCategory(txns []domain.Transaction) []CategoryTotal {
	byCategory := make(map[string]*CategoryTotal)
	for _, txn := range txns {
		if txn.Type != domain.TxnExpense || txn.Amount >= 0 {
			continue
		}
		total, ok := byCategory[txn.Category]
		if !ok {
			total = &CategoryTotal{Category: txn.Category}
			byCategory[txn.Category] = total
		}
		total.Total += -txn.Amount
		total.Count++
	}

	totals := make([]CategoryTotal, 0, len(byCategory))
	for _, total := range byCategory {
		totals = append(totals, *total)
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Total != totals[j].Total {
			return totals[i].Total > totals[j].Total
		}
		return totals[i].Category < totals[j].Category
	})
	return totals
}

// BudgetStatus compares one month's budget limit to actual spending.
type BudgetStatus struct {
	Budget    domain.Budget `json:"budget"`
	Spent     float64       `json:"spent"` // positive magnitude
	Remaining float64       `json:"remaining"`
	Over      bool          `json:"over"`
}

// BudgetProgress matches budgets against the month's spending per category.
// Transactions outside a budget's month are ignored for that budget.
func BudgetProgress(budgets []domain.Budget, txns []domain.Transaction) []BudgetStatus {
	statuses := make([]BudgetStatus, 0, len(budgets))
	for _, budget := range budgets {
		status := BudgetStatus{Budget: budget}
		for _, txn := range txns {
			if txn.Type != domain.TxnExpense || txn.Amount >= 0 {
				continue
			}
			if txn.Category != budget.Category || len(txn.Date) < 7 || txn.Date[:7] != budget.Month {
				continue
			}
			status.Spent += -txn.Amount
		}
		status.Remaining = budget.Limit - status.Spent
		status.Over = status.Spent > budget.Limit
		statuses = append(statuses, status)
	}
	return statuses
}

// AccountBalance is the running balance of one account derived from its
// imported transactions. Statements rarely include opening balances, so
// this is a relative figure since the first import.
type AccountBalance struct {
	AccountID string  `json:"account_id"`
	Balance   float64 `json:"balance"`
}

// NetWorth sums signed amounts per account plus a grand total.
func NetWorth(txns []domain.Transaction) ([]AccountBalance, float64) {
	byAccount := make(map[string]float64)
	for _, txn := range txns {
		byAccount[txn.AccountID] += txn.Amount
	}

	balances := make([]AccountBalance, 0, len(byAccount))
	var total float64
	for id, balance := range byAccount {
		balances = append(balances, AccountBalance{AccountID: id, Balance: balance})
		total += balance
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].AccountID < balances[j].AccountID })
	return balances, total
}
