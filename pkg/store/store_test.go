package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func testRecord(jobID string) *JobRecord {
	return &JobRecord{
		JobID:         jobID,
		EscrowAddress: "0x1111111111111111111111111111111111111111",
		EscrowKey:     "deadbeef",
		Trade: TradeDetails{
			SellToken:    "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			SellDecimals: 6,
			BuyToken:     "0x4200000000000000000000000000000000000006",
			BuyDecimals:  18,
			Amount:       "0.01",
			SlippageBps:  100,
			Chain:        "base",
		},
	}
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Create(testRecord("job-1")))

	rec, err := s.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingFunds, rec.Status)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, "deadbeef", rec.EscrowKey)
}

func TestCreateDuplicateFails(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Create(testRecord("job-1")))
	assert.Error(t, s.Create(testRecord("job-1")))
}

func TestTerminalTransitionIsMonotonic(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create(testRecord("job-1")))

	require.NoError(t, s.MarkCompleted("job-1", map[string]string{"txHash": "0xabc"}))

	rec, err := s.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	require.NotNil(t, rec.CompletedAt)

	var result map[string]string
	require.NoError(t, json.Unmarshal(rec.Result, &result))
	assert.Equal(t, "0xabc", result["txHash"])

	// A second terminal write must be rejected in either direction.
	assert.Error(t, s.MarkFailed("job-1", "later failure"))
	assert.Error(t, s.MarkCompleted("job-1", "again"))
}

func TestMarkFailedUnknownRecord(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.MarkFailed("never-created", "boom"))
}

func TestListAwaiting(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Create(testRecord("job-a")))
	require.NoError(t, s.Create(testRecord("job-b")))
	require.NoError(t, s.Create(testRecord("job-c")))
	require.NoError(t, s.MarkFailed("job-b", "insufficient funds"))

	awaiting, err := s.ListAwaiting()
	require.NoError(t, err)
	require.Len(t, awaiting, 2)
	for _, rec := range awaiting {
		assert.Equal(t, StatusAwaitingFunds, rec.Status)
		assert.NotEqual(t, "job-b", rec.JobID)
	}
}

func TestReloadAfterRestart(t *testing.T) {
	dir := t.TempDir()

	s1, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Create(testRecord("job-1")))
	require.NoError(t, s1.Create(testRecord("job-2")))
	require.NoError(t, s1.MarkCompleted("job-2", "done"))

	// A fresh store over the same directory sees identical state.
	s2, err := NewStore(dir)
	require.NoError(t, err)

	awaiting, err := s2.ListAwaiting()
	require.NoError(t, err)
	require.Len(t, awaiting, 1)
	assert.Equal(t, "job-1", awaiting[0].JobID)

	rec, err := s2.Get("job-2")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
}

func TestNoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Create(testRecord("job-1")))
	require.NoError(t, s.MarkCompleted("job-1", "done"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasSuffix(entry.Name(), ".tmp"),
			"terminal write must not leave temp files: %s", entry.Name())
	}
}

func TestRecordFilePermissions(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Create(testRecord("job-1")))

	info, err := os.Stat(filepath.Join(dir, "job-1.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(),
		"record files hold key material and must be owner-only")
}

func TestJobIDSanitization(t *testing.T) {
	s := newTestStore(t)

	rec := testRecord("../evil/job")
	require.NoError(t, s.Create(rec))

	// The record round-trips under the same (sanitized) id.
	got, err := s.Get("../evil/job")
	require.NoError(t, err)
	assert.Equal(t, "../evil/job", got.JobID)
}

func TestCorruptRecordSkippedInScan(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Create(testRecord("job-good")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job-bad.json"), []byte("{not json"), 0600))

	awaiting, err := s.ListAwaiting()
	require.NoError(t, err)
	require.Len(t, awaiting, 1)
	assert.Equal(t, "job-good", awaiting[0].JobID)
}

func TestCountByStatus(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create(testRecord("job-1")))
	require.NoError(t, s.Create(testRecord("job-2")))
	require.NoError(t, s.Create(testRecord("job-3")))
	require.NoError(t, s.MarkCompleted("job-1", "ok"))
	require.NoError(t, s.MarkFailed("job-3", "boom"))

	counts, err := s.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[StatusAwaitingFunds])
	assert.Equal(t, 1, counts[StatusCompleted])
	assert.Equal(t, 1, counts[StatusFailed])
}
