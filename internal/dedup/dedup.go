// Package dedup persists import-hash history between CLI runs. The server
// keeps its history in the database; the JSON export mode has no database,
// so a state file carries the hashes instead.
package dedup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest/fingerprint"
)

// CurrentVersion is the state file format version.
const CurrentVersion = 1

// State is the on-disk deduplication history. Hashes are keyed per account,
// matching the at-most-once-per-account guarantee of the database backends.
type State struct {
	Version  int                           `json:"version"`
	Hashes   map[string]map[string]*Record `json:"hashes"` // account ID -> import hash -> record
	Metadata Metadata                      `json:"metadata"`
}

// Record tracks one import hash across observations.
type Record struct {
	FirstSeen     time.Time `json:"firstSeen"`
	LastSeen      time.Time `json:"lastSeen"`
	Count         int       `json:"count"`
	TransactionID string    `json:"transactionId"`
}

// Metadata holds aggregate statistics about the state.
type Metadata struct {
	LastUpdated time.Time `json:"lastUpdated"`
	TotalHashes int       `json:"totalHashes"`
}

// NewState creates an empty deduplication state.
func NewState() *State {
	return &State{
		Version: CurrentVersion,
		Hashes:  make(map[string]map[string]*Record),
		Metadata: Metadata{
			LastUpdated: time.Now(),
		},
	}
}

// LoadState loads a state file from disk. A missing file is returned as the
// bare os error so callers can check os.IsNotExist.
func LoadState(filePath string) (*State, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if state.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported state file version %d (current version: %d)", state.Version, CurrentVersion)
	}
	if state.Hashes == nil {
		state.Hashes = make(map[string]map[string]*Record)
	}
	return &state, nil
}

// SaveState writes the state to disk via a temp file rename, so a crash
// mid-write cannot corrupt existing history.
func SaveState(state *State, filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	state.Metadata.LastUpdated = time.Now()
	state.Metadata.TotalHashes = state.TotalHashes()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempFile := filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Has checks whether an import hash was already recorded for the account.
func (s *State) Has(accountID, hash string) bool {
	_, ok := s.Hashes[accountID][hash]
	return ok
}

// Record marks an import hash as seen for an account. A repeated sighting
// updates lastSeen and the count.
func (s *State) Record(accountID, hash, transactionID string, timestamp time.Time) error {
	if accountID == "" {
		return fmt.Errorf("account ID cannot be empty")
	}
	if hash == "" {
		return fmt.Errorf("import hash cannot be empty")
	}

	account, ok := s.Hashes[accountID]
	if !ok {
		account = make(map[string]*Record)
		s.Hashes[accountID] = account
	}

	if record, exists := account[hash]; exists {
		record.LastSeen = timestamp
		record.Count++
		return nil
	}
	account[hash] = &Record{
		FirstSeen:     timestamp,
		LastSeen:      timestamp,
		Count:         1,
		TransactionID: transactionID,
	}
	return nil
}

// SetFor builds the pipeline's dedup set from the account's recorded hashes.
func (s *State) SetFor(accountID string) fingerprint.Set {
	account := s.Hashes[accountID]
	set := make(fingerprint.Set, len(account))
	for hash := range account {
		set.Add(hash)
	}
	return set
}

// TotalHashes counts recorded hashes across all accounts.
func (s *State) TotalHashes() int {
	total := 0
	for _, account := range s.Hashes {
		total += len(account)
	}
	return total
}
