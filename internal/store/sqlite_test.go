// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers allocation history filtering and ordering, and presence upserts

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestNewSQLiteStore_ReopensExisting(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s1.SetPresence(ctx, &Presence{AgentAddress: "sip:alice@contoso.com", Online: true}))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s2.Close()

	p, err := s2.GetPresence(ctx, "sip:alice@contoso.com")
	require.NoError(t, err)
	assert.True(t, p.Online)
}

func TestSetPresence_IgnoresOlderRow(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	t1 := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	require.NoError(t, store.SetPresence(ctx, &Presence{AgentAddress: "sip:alice@contoso.com", Online: true, UpdatedAt: t1}))
	require.NoError(t, store.SetPresence(ctx, &Presence{AgentAddress: "sip:alice@contoso.com", Online: false, UpdatedAt: t1.Add(-time.Minute)}))

	p, err := store.GetPresence(ctx, "sip:alice@contoso.com")
	require.NoError(t, err)
	assert.True(t, p.Online)
	if !t1.Equal(p.UpdatedAt) {
		t.Errorf("updated_at = %v, want %v", p.UpdatedAt, t1)
	}

	require.NoError(t, store.SetPresence(ctx, &Presence{AgentAddress: "sip:alice@contoso.com", Online: false, UpdatedAt: t1.Add(time.Minute)}))
	p, err = store.GetPresence(ctx, "sip:alice@contoso.com")
	require.NoError(t, err)
	assert.False(t, p.Online)
}

func TestSaveAllocationEvent_GeneratesIDAndTimestamp(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	e := &AllocationEvent{
		SessionID:    "s1",
		AgentAddress: "sip:alice@contoso.com",
		Action:       ActionAllocated,
		Status:       "allocated_by_match_maker",
	}
	require.NoError(t, store.SaveAllocationEvent(context.Background(), e))

	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
}

func TestSaveAllocationEvent_RejectsUnknownAction(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	err := store.SaveAllocationEvent(context.Background(), &AllocationEvent{
		SessionID: "s1",
		Action:    AllocationAction("teleported"),
		Status:    "not_allocated",
	})
	assert.Error(t, err)
}

func TestListAllocationEvents(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	events := []*AllocationEvent{
		{SessionID: "s1", AgentAddress: "sip:alice@contoso.com", Customer: "c1", Action: ActionAllocated, Status: "allocated_by_match_maker", Skills: []string{"Language=English"}, Timestamp: base},
		{SessionID: "s1", AgentAddress: "sip:alice@contoso.com", Customer: "c1", Action: ActionStatusChanged, Status: "escalating", Timestamp: base.Add(time.Minute)},
		{SessionID: "s2", AgentAddress: "sip:bob@contoso.com", Customer: "c2", Action: ActionAllocated, Status: "allocated_by_match_maker", Timestamp: base.Add(2 * time.Minute)},
		{SessionID: "s1", AgentAddress: "sip:alice@contoso.com", Customer: "c1", Action: ActionReleased, Status: "not_allocated", Timestamp: base.Add(3 * time.Minute)},
		{SessionID: "s3", Customer: "c3", Action: ActionRejected, Status: "not_allocated", Skills: []string{"Language=Klingon"}, Timestamp: base.Add(4 * time.Minute)},
	}
	for _, e := range events {
		require.NoError(t, store.SaveAllocationEvent(ctx, e))
	}

	t.Run("newest first", func(t *testing.T) {
		got, err := store.ListAllocationEvents(ctx, AllocationFilter{})
		require.NoError(t, err)
		require.Len(t, got, 5)
		assert.Equal(t, ActionRejected, got[0].Action)
		assert.Equal(t, ActionAllocated, got[4].Action)
		assert.Equal(t, []string{"Language=English"}, got[4].Skills)
		assert.True(t, got[4].Timestamp.Equal(base))
	})

	t.Run("by agent", func(t *testing.T) {
		got, err := store.ListAllocationEvents(ctx, AllocationFilter{AgentAddress: "sip:alice@contoso.com"})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, ActionReleased, got[0].Action)
	})

	t.Run("by session", func(t *testing.T) {
		got, err := store.ListAllocationEvents(ctx, AllocationFilter{SessionID: "s2"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "c2", got[0].Customer)
		assert.Nil(t, got[0].Skills)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := store.ListAllocationEvents(ctx, AllocationFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestPruneAllocationEvents(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	// Whole and fractional seconds must compare correctly as stored text.
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, ts := range []time.Time{base, base.Add(500 * time.Millisecond), base.Add(time.Second), base.Add(time.Hour)} {
		require.NoError(t, store.SaveAllocationEvent(ctx, &AllocationEvent{
			SessionID: "s" + string(rune('1'+i)),
			Action:    ActionRejected,
			Status:    "not_allocated",
			Timestamp: ts,
		}))
	}

	n, err := store.PruneAllocationEvents(ctx, base.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := store.ListAllocationEvents(ctx, AllocationFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s4", got[0].SessionID)
	assert.Equal(t, "s3", got[1].SessionID)

	n, err = store.PruneAllocationEvents(ctx, base)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSaveAllocationEvent_IDsSortByTime(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	early := &AllocationEvent{SessionID: "s1", Action: ActionAllocated, Status: "allocated_by_match_maker", Timestamp: base}
	late := &AllocationEvent{SessionID: "s1", Action: ActionReleased, Status: "not_allocated", Timestamp: base.Add(time.Minute)}
	require.NoError(t, store.SaveAllocationEvent(context.Background(), late))
	require.NoError(t, store.SaveAllocationEvent(context.Background(), early))

	assert.Less(t, early.ID, late.ID)
}

func TestPresence(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	_, err := store.GetPresence(ctx, "sip:alice@contoso.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	require.NoError(t, store.SetPresence(ctx, &Presence{AgentAddress: "sip:bob@contoso.com", Online: true}))
	require.NoError(t, store.SetPresence(ctx, &Presence{AgentAddress: "sip:alice@contoso.com", Online: true}))
	require.NoError(t, store.SetPresence(ctx, &Presence{AgentAddress: "sip:alice@contoso.com", Online: false}))

	p, err := store.GetPresence(ctx, "sip:alice@contoso.com")
	require.NoError(t, err)
	assert.False(t, p.Online)

	all, err := store.ListPresence(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "sip:alice@contoso.com", all[0].AgentAddress)
	assert.True(t, all[1].Online)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, 100, normalizeLimit(0))
	assert.Equal(t, 100, normalizeLimit(-5))
	assert.Equal(t, 50, normalizeLimit(50))
	assert.Equal(t, 1000, normalizeLimit(5000))
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	return store
}
