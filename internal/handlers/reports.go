package handlers

import (
	"net/http"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/reports"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/store"
)

// ReportsHandler serves aggregated views over stored transactions.
type ReportsHandler struct {
	store store.Store
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(s store.Store) *ReportsHandler {
	return &ReportsHandler{store: s}
}

// filterFromQuery narrows the transaction window a report runs over.
func (h *ReportsHandler) filterFromQuery(r *http.Request) store.TxnFilter {
	q := r.URL.Query()
	return store.TxnFilter{
		AccountID: q.Get("account_id"),
		From:      q.Get("from"),
		To:        q.Get("to"),
	}
}

// CashFlow handles GET /api/reports/cashflow
func (h *ReportsHandler) CashFlow(w http.ResponseWriter, r *http.Request) {
	txns, err := h.store.ListTransactions(r.Context(), h.filterFromQuery(r))
	if err != nil {
		storeError(w, err, "load transactions")
		return
	}
	writeJSON(w, http.StatusOK, reports.CashFlow(txns))
}

// SpendingByCategory handles GET /api/reports/spending
func (h *ReportsHandler) SpendingByCategory(w http.ResponseWriter, r *http.Request) {
	txns, err := h.store.ListTransactions(r.Context(), h.filterFromQuery(r))
	if err != nil {
		storeError(w, err, "load transactions")
		return
	}
	writeJSON(w, http.StatusOK, reports.SpendingByCategory(txns))
}

// BudgetProgress handles GET /api/reports/budgets with an optional month
// query narrowing which budgets are evaluated.
func (h *ReportsHandler) BudgetProgress(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	budgets, err := h.store.ListBudgets(r.Context(), month)
	if err != nil {
		storeError(w, err, "load budgets")
		return
	}

	txns, err := h.store.ListTransactions(r.Context(), store.TxnFilter{})
	if err != nil {
		storeError(w, err, "load transactions")
		return
	}
	writeJSON(w, http.StatusOK, reports.BudgetProgress(budgets, txns))
}

// NetWorth handles GET /api/reports/networth
func (h *ReportsHandler) NetWorth(w http.ResponseWriter, r *http.Request) {
	txns, err := h.store.ListTransactions(r.Context(), store.TxnFilter{})
	if err != nil {
		storeError(w, err, "load transactions")
		return
	}

	balances, total := reports.NetWorth(txns)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": balances,
		"total":    total,
	})
}
