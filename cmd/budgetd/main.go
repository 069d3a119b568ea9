package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/rules"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/server"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/store"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/store/firestoredb"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/store/sqlite"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	st, err := openStore(ctx)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	engine, err := loadRules()
	if err != nil {
		log.Fatalf("Failed to load category rules: %v", err)
	}

	srv := server.New(st, engine)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("INFO: starting budget server on port %s", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("INFO: shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: server shutdown: %v", err)
	}

	log.Println("INFO: server stopped")
}

// openStore picks the backend from the environment: FIRESTORE_PROJECT
// selects Firestore, otherwise BUDGET_DB names a SQLite file.
func openStore(ctx context.Context) (store.Store, error) {
	if projectID := os.Getenv("FIRESTORE_PROJECT"); projectID != "" {
		credentials := os.Getenv("FIRESTORE_CREDENTIALS")
		log.Printf("INFO: using Firestore backend (project %s)", projectID)
		return firestoredb.Open(ctx, projectID, credentials)
	}

	dbPath := os.Getenv("BUDGET_DB")
	if dbPath == "" {
		dbPath = "budget.db"
	}
	log.Printf("INFO: using SQLite backend (%s)", dbPath)
	return sqlite.Open(dbPath)
}

// loadRules loads categorization rules from BUDGET_RULES, or the embedded
// default set when unset.
func loadRules() (*rules.Engine, error) {
	if path := os.Getenv("BUDGET_RULES"); path != "" {
		return rules.LoadFromFile(path)
	}
	return rules.LoadEmbedded()
}
