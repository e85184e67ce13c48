// Package dedup provides staged-transaction hash keys via SHA256
// fingerprinting and cross-run state persistence, so a re-imported statement
// flags rather than duplicates history.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// State is the deduplication state with hash-key history.
type State struct {
	Version  int                    `json:"version"`
	HashKeys map[string]*SeenRecord `json:"hashKeys"`
	Metadata StateMetadata          `json:"metadata"`
}

// SeenRecord tracks one hash key across multiple observations.
type SeenRecord struct {
	FirstSeen     time.Time `json:"firstSeen"`
	LastSeen      time.Time `json:"lastSeen"`
	Count         int       `json:"count"`
	TransactionID string    `json:"transactionId"`
}

// StateMetadata contains aggregate statistics about the state.
type StateMetadata struct {
	LastUpdated   time.Time `json:"lastUpdated"`
	TotalHashKeys int       `json:"totalHashKeys"`
}

// CurrentVersion is the current state file format version.
const CurrentVersion = 1

// NewState creates an empty deduplication state.
func NewState() *State {
	return &State{
		Version:  CurrentVersion,
		HashKeys: make(map[string]*SeenRecord),
		Metadata: StateMetadata{
			LastUpdated: time.Now(),
		},
	}
}

// HashKey computes the stable fingerprint of a staged transaction:
// SHA256("{date}|{amount}|{payee}|{memo}|{symbol}|{quantity}").
// Amount and quantity are fixed to 2 and 4 decimal places respectively;
// payee and memo are lowercased and trimmed so cosmetic differences between
// statement renderings do not defeat matching.
func HashKey(date string, amount float64, payee, memo, symbol string, quantity float64) string {
	input := fmt.Sprintf("%s|%.2f|%s|%s|%s|%.4f",
		date,
		amount,
		strings.ToLower(strings.TrimSpace(payee)),
		strings.ToLower(strings.TrimSpace(memo)),
		strings.ToUpper(strings.TrimSpace(symbol)),
		quantity,
	)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// LoadState loads a state file from disk. Returns os.IsNotExist errors
// unwrapped so the caller can treat a missing file as a fresh state.
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

	if state.HashKeys == nil {
		state.HashKeys = make(map[string]*SeenRecord)
	}

	return &state, nil
}

// SaveState atomically writes the state to disk: write to a temp file, then
// rename. The parent directory is created if needed.
func SaveState(state *State, filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	state.Metadata.LastUpdated = time.Now()
	state.Metadata.TotalHashKeys = len(state.HashKeys)

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

// IsDuplicate checks if a hash key was seen in a previous run.
func (s *State) IsDuplicate(hashKey string) bool {
	_, exists := s.HashKeys[hashKey]
	return exists
}

// Record observes a hash key: new keys get a fresh record, repeats update
// lastSeen and the count.
func (s *State) Record(hashKey, transactionID string, timestamp time.Time) error {
	if hashKey == "" {
		return fmt.Errorf("hash key cannot be empty")
	}
	if transactionID == "" {
		return fmt.Errorf("transaction ID cannot be empty")
	}

	if record, exists := s.HashKeys[hashKey]; exists {
		record.LastSeen = timestamp
		record.Count++
	} else {
		s.HashKeys[hashKey] = &SeenRecord{
			FirstSeen:     timestamp,
			LastSeen:      timestamp,
			Count:         1,
			TransactionID: transactionID,
		}
	}

	return nil
}
