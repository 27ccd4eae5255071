// Package store persists job records on disk, one JSON file per job. It is the
// single source of truth for funding-detection idempotency: a record's status
// decides whether the monitor may execute a swap for it.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Status is the lifecycle status of a job record. Transitions are monotonic:
// awaiting-funds moves to completed or failed exactly once and never back.
type Status string

const (
	StatusAwaitingFunds Status = "awaiting-funds"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
)

// TradeDetails are the resolved swap parameters persisted with a record, so a
// restart can resume funding detection without re-resolving anything.
type TradeDetails struct {
	SellToken    string `json:"sellToken"`
	SellDecimals int    `json:"sellDecimals"`
	BuyToken     string `json:"buyToken"`
	BuyDecimals  int    `json:"buyDecimals"`
	Amount       string `json:"amount"`
	SlippageBps  int    `json:"slippageBps"`
	Recipient    string `json:"recipient,omitempty"`
	Chain        string `json:"chain"`
}

// JobRecord is the durable state for one job. EscrowKey is the hex-encoded
// private key of the job's escrow wallet; it lives only in the record file and
// must never be logged or sent over the negotiation transport.
type JobRecord struct {
	JobID         string          `json:"jobId"`
	Status        Status          `json:"status"`
	EscrowAddress string          `json:"escrowAddress"`
	EscrowKey     string          `json:"escrowKey,omitempty"`
	Trade         TradeDetails    `json:"trade"`
	CreatedAt     time.Time       `json:"createdAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
}

// Store reads and writes job records under a single directory. Every read goes
// to disk so a record written before a restart is visible on the next scan.
// A single monitor instance is assumed; multi-instance deployments need a
// claim step this store does not provide.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore opens (creating if needed) the record directory. The directory is
// restricted to the owner because record files hold key material.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %v", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(jobID string) string {
	// Job ids are opaque transport identifiers; strip anything that could
	// escape the record directory.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, jobID)
	return filepath.Join(s.dir, safe+".json")
}

func (s *Store) write(rec *JobRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %v", rec.JobID, err)
	}

	// Write to a temporary file then rename so a crash mid-write can never
	// leave a half-written record behind.
	target := s.path(rec.JobID)
	tempFile := target + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write record %s: %v", rec.JobID, err)
	}
	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename record %s: %v", rec.JobID, err)
	}
	return nil
}

func (s *Store) read(jobID string) (*JobRecord, error) {
	data, err := os.ReadFile(s.path(jobID))
	if err != nil {
		return nil, err
	}
	var rec JobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt record %s: %v", jobID, err)
	}
	return &rec, nil
}

// Create persists a new record in awaiting-funds status. Creating a record
// that already exists is an error; callers treat that as a duplicate memo and
// skip the action instead.
func (s *Store) Create(rec *JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.JobID == "" {
		return fmt.Errorf("record is missing a job id")
	}
	if _, err := os.Stat(s.path(rec.JobID)); err == nil {
		return fmt.Errorf("record %s already exists", rec.JobID)
	}

	rec.Status = StatusAwaitingFunds
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return s.write(rec)
}

// Get returns the record for a job id, or os.ErrNotExist-wrapped error if it
// was never created.
func (s *Store) Get(jobID string) (*JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(jobID)
}

// Exists reports whether a record has been created for the job id.
func (s *Store) Exists(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := os.Stat(s.path(jobID))
	return err == nil
}

// ListAwaiting returns every record still in awaiting-funds status, oldest
// first. The listing is rebuilt from disk on every call.
func (s *Store) ListAwaiting() ([]*JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan store directory: %v", err)
	}

	var awaiting []*JobRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			// A corrupt record must not abort the scan of the rest.
			continue
		}
		if rec.Status == StatusAwaitingFunds {
			awaiting = append(awaiting, rec)
		}
	}

	sort.Slice(awaiting, func(i, j int) bool {
		return awaiting[i].CreatedAt.Before(awaiting[j].CreatedAt)
	})
	return awaiting, nil
}

// CountByStatus tallies records per status, for the status endpoint.
func (s *Store) CountByStatus() (map[Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan store directory: %v", err)
	}

	counts := make(map[Status]int)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		counts[rec.Status]++
	}
	return counts, nil
}

// MarkCompleted transitions a record to completed with the given result.
func (s *Store) MarkCompleted(jobID string, result interface{}) error {
	return s.markTerminal(jobID, StatusCompleted, result)
}

// MarkFailed transitions a record to failed with the given result.
func (s *Store) MarkFailed(jobID string, result interface{}) error {
	return s.markTerminal(jobID, StatusFailed, result)
}

// markTerminal is the only status transition. It re-reads the record under the
// lock and refuses to overwrite a terminal status, so a record is finalized at
// most once even if two callers race.
func (s *Store) markTerminal(jobID string, status Status, result interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(jobID)
	if err != nil {
		return fmt.Errorf("cannot finalize unknown record %s: %v", jobID, err)
	}
	if rec.Status != StatusAwaitingFunds {
		return fmt.Errorf("record %s is already %s", jobID, rec.Status)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result for %s: %v", jobID, err)
	}

	now := time.Now().UTC()
	rec.Status = status
	rec.CompletedAt = &now
	rec.Result = raw
	return s.write(rec)
}
