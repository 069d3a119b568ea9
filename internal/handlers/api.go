// Package handlers implements the HTTP API: entity CRUD, statement upload,
// report aggregation, and the per-import SSE stream.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/domain"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest/fingerprint"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/store"
)

// APIHandler serves the entity CRUD routes.
type APIHandler struct {
	store store.Store
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(s store.Store) *APIHandler {
	return &APIHandler{store: s}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// storeError maps storage failures onto HTTP statuses.
func storeError(w http.ResponseWriter, err error, action string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	log.Printf("ERROR: %s: %v", action, err)
	writeError(w, http.StatusInternalServerError, "failed to "+action)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// ListAccounts handles GET /api/accounts
func (h *APIHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.store.ListAccounts(r.Context())
	if err != nil {
		storeError(w, err, "list accounts")
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

// CreateAccount handles POST /api/accounts
func (h *APIHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Institution string `json:"institution"`
		Type        string `json:"type"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "account name cannot be empty")
		return
	}
	if !domain.ValidateAccountType(domain.AccountType(body.Type)) {
		writeError(w, http.StatusBadRequest, "invalid account type: "+body.Type)
		return
	}

	account := &domain.Account{
		Name:        body.Name,
		Institution: body.Institution,
		Type:        domain.AccountType(body.Type),
	}
	if err := h.store.CreateAccount(r.Context(), account); err != nil {
		storeError(w, err, "create account")
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// GetAccount handles GET /api/accounts/{id}
func (h *APIHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.store.GetAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		storeError(w, err, "load account")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// DeleteAccount handles DELETE /api/accounts/{id}
func (h *APIHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteAccount(r.Context(), r.PathValue("id")); err != nil {
		storeError(w, err, "delete account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTransactions handles GET /api/transactions with optional query
// filters: account_id, category, type, from, to, limit, offset.
func (h *APIHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.TxnFilter{
		AccountID: q.Get("account_id"),
		Category:  q.Get("category"),
		Type:      domain.TxnType(q.Get("type")),
		From:      q.Get("from"),
		To:        q.Get("to"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}
	if filter.Type != "" && !domain.ValidateTxnType(filter.Type) {
		writeError(w, http.StatusBadRequest, "invalid transaction type filter")
		return
	}

	txns, err := h.store.ListTransactions(r.Context(), filter)
	if err != nil {
		storeError(w, err, "list transactions")
		return
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

// GetTransaction handles GET /api/transactions/{id}
// CreateTransaction handles POST /api/transactions for entries recorded by
// hand rather than through a statement import. The import hash is derived
// the same way the pipeline derives it, so a later import of a statement
// containing the same row is detected as a duplicate.
func (h *APIHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var txn domain.Transaction
	if !decodeBody(w, r, &txn) {
		return
	}

	if _, err := h.store.GetAccount(r.Context(), txn.AccountID); err != nil {
		storeError(w, err, "load account")
		return
	}

	if txn.MerchantRaw == "" {
		txn.MerchantRaw = txn.MerchantClean
	}
	if txn.MerchantClean == "" {
		txn.MerchantClean = txn.MerchantRaw
	}
	if txn.Type == "" {
		txn.Type = domain.DeriveType(txn.Amount)
	}
	if txn.Category == "" {
		txn.Category = domain.DefaultCategory
	}
	if err := txn.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txn.ID = uuid.NewString()
	txn.ImportHash = fingerprint.Compute(txn.Date, txn.Amount, txn.MerchantRaw)

	written, err := h.store.InsertTransactions(r.Context(), []domain.Transaction{txn})
	if err != nil {
		storeError(w, err, "create transaction")
		return
	}
	if written == 0 {
		writeError(w, http.StatusConflict, "an identical transaction already exists for this account")
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

func (h *APIHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := h.store.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		storeError(w, err, "load transaction")
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// UpdateTransaction handles PUT /api/transactions/{id}. The import hash and
// account binding are derived fields and cannot be edited.
func (h *APIHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	current, err := h.store.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		storeError(w, err, "load transaction")
		return
	}

	var body struct {
		Date          *string  `json:"date"`
		MerchantClean *string  `json:"merchant_clean"`
		Amount        *float64 `json:"amount"`
		Type          *string  `json:"type"`
		Category      *string  `json:"category"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if body.Date != nil {
		current.Date = *body.Date
	}
	if body.MerchantClean != nil {
		current.MerchantClean = *body.MerchantClean
	}
	if body.Amount != nil {
		current.Amount = *body.Amount
	}
	if body.Type != nil {
		current.Type = domain.TxnType(*body.Type)
	}
	if body.Category != nil {
		current.Category = *body.Category
	}

	if err := current.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.UpdateTransaction(r.Context(), current); err != nil {
		storeError(w, err, "update transaction")
		return
	}
	writeJSON(w, http.StatusOK, current)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *APIHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		storeError(w, err, "delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListBudgets handles GET /api/budgets with an optional month filter.
func (h *APIHandler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.store.ListBudgets(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		storeError(w, err, "list budgets")
		return
	}
	if budgets == nil {
		budgets = []domain.Budget{}
	}
	writeJSON(w, http.StatusOK, budgets)
}

// CreateBudget handles POST /api/budgets
func (h *APIHandler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	var budget domain.Budget
	if !decodeBody(w, r, &budget) {
		return
	}
	budget.ID = ""
	if err := budget.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.CreateBudget(r.Context(), &budget); err != nil {
		storeError(w, err, "create budget")
		return
	}
	writeJSON(w, http.StatusCreated, budget)
}

// DeleteBudget handles DELETE /api/budgets/{id}
func (h *APIHandler) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteBudget(r.Context(), r.PathValue("id")); err != nil {
		storeError(w, err, "delete budget")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListGoals handles GET /api/goals
func (h *APIHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.store.ListGoals(r.Context())
	if err != nil {
		storeError(w, err, "list goals")
		return
	}
	if goals == nil {
		goals = []domain.Goal{}
	}
	writeJSON(w, http.StatusOK, goals)
}

// CreateGoal handles POST /api/goals
func (h *APIHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var goal domain.Goal
	if !decodeBody(w, r, &goal) {
		return
	}
	goal.ID = ""
	if err := goal.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.CreateGoal(r.Context(), &goal); err != nil {
		storeError(w, err, "create goal")
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

// UpdateGoal handles PUT /api/goals/{id}
func (h *APIHandler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	var goal domain.Goal
	if !decodeBody(w, r, &goal) {
		return
	}
	goal.ID = r.PathValue("id")
	if err := goal.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.UpdateGoal(r.Context(), &goal); err != nil {
		storeError(w, err, "update goal")
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

// DeleteGoal handles DELETE /api/goals/{id}
func (h *APIHandler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteGoal(r.Context(), r.PathValue("id")); err != nil {
		storeError(w, err, "delete goal")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
