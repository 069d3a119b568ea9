// Package server wires the store, the ingestion pipeline, and the SSE hub
// into an HTTP handler.
package server

import (
	"net/http"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/handlers"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/middleware"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/rules"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/store"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/streaming"
)

// Server represents the budget API server.
type Server struct {
	store store.Store
	mux   *http.ServeMux
}

// New creates a server on top of an already-open store. The server owns the
// store from here on; Close releases it.
func New(s store.Store, engine *rules.Engine) *Server {
	srv := &Server{
		store: s,
		mux:   http.NewServeMux(),
	}
	srv.setupRoutes(engine)
	return srv
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes(engine *rules.Engine) {
	s.mux.HandleFunc("GET /health", handlers.HealthCheck)

	api := handlers.NewAPIHandler(s.store)

	s.mux.HandleFunc("GET /api/accounts", api.ListAccounts)
	s.mux.HandleFunc("POST /api/accounts", api.CreateAccount)
	s.mux.HandleFunc("GET /api/accounts/{id}", api.GetAccount)
	s.mux.HandleFunc("DELETE /api/accounts/{id}", api.DeleteAccount)

	s.mux.HandleFunc("GET /api/transactions", api.ListTransactions)
	s.mux.HandleFunc("POST /api/transactions", api.CreateTransaction)
	s.mux.HandleFunc("GET /api/transactions/{id}", api.GetTransaction)
	s.mux.HandleFunc("PUT /api/transactions/{id}", api.UpdateTransaction)
	s.mux.HandleFunc("DELETE /api/transactions/{id}", api.DeleteTransaction)

	s.mux.HandleFunc("GET /api/budgets", api.ListBudgets)
	s.mux.HandleFunc("POST /api/budgets", api.CreateBudget)
	s.mux.HandleFunc("DELETE /api/budgets/{id}", api.DeleteBudget)

	s.mux.HandleFunc("GET /api/goals", api.ListGoals)
	s.mux.HandleFunc("POST /api/goals", api.CreateGoal)
	s.mux.HandleFunc("PUT /api/goals/{id}", api.UpdateGoal)
	s.mux.HandleFunc("DELETE /api/goals/{id}", api.DeleteGoal)

	// Statement uploads with a streaming hub for import progress.
	hub := streaming.NewHub()
	upload := handlers.NewUploadHandler(s.store, ingest.New(engine), hub)

	s.mux.HandleFunc("POST /api/imports", upload.StartImport)
	s.mux.HandleFunc("GET /api/imports/{id}", upload.GetImport)
	s.mux.HandleFunc("GET /api/imports/{id}/events", upload.StreamEvents)

	reports := handlers.NewReportsHandler(s.store)

	s.mux.HandleFunc("GET /api/reports/cashflow", reports.CashFlow)
	s.mux.HandleFunc("GET /api/reports/spending", reports.SpendingByCategory)
	s.mux.HandleFunc("GET /api/reports/budgets", reports.BudgetProgress)
	s.mux.HandleFunc("GET /api/reports/networth", reports.NetWorth)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return middleware.CORS(s.mux)
}

// Close closes the server resources.
func (s *Server) Close() error {
	return s.store.Close()
}
