// ABOUTME: Tests for the in-memory MockStore
// ABOUTME: Ensures it matches SQLiteStore ordering and filtering semantics

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_AllocationEvents(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	require.NoError(t, m.SaveAllocationEvent(ctx, &AllocationEvent{SessionID: "s1", AgentAddress: "a", Action: ActionAllocated}))
	require.NoError(t, m.SaveAllocationEvent(ctx, &AllocationEvent{SessionID: "s2", AgentAddress: "b", Action: ActionAllocated}))
	require.NoError(t, m.SaveAllocationEvent(ctx, &AllocationEvent{SessionID: "s1", AgentAddress: "a", Action: ActionReleased}))

	got, err := m.ListAllocationEvents(ctx, AllocationFilter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ActionReleased, got[0].Action)
	assert.NotEmpty(t, got[0].ID)

	got, err = m.ListAllocationEvents(ctx, AllocationFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMockStore_Err(t *testing.T) {
	m := NewMockStore()
	boom := errors.New("disk full")
	m.Err = boom

	err := m.SaveAllocationEvent(context.Background(), &AllocationEvent{SessionID: "s1"})
	assert.ErrorIs(t, err, boom)
	err = m.SetPresence(context.Background(), &Presence{AgentAddress: "a"})
	assert.ErrorIs(t, err, boom)
}

func TestMockStore_Presence(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	_, err := m.GetPresence(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.SetPresence(ctx, &Presence{AgentAddress: "b", Online: true}))
	require.NoError(t, m.SetPresence(ctx, &Presence{AgentAddress: "a"}))

	all, err := m.ListPresence(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].AgentAddress)
}

func TestMockStore_Prune(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, m.SaveAllocationEvent(ctx, &AllocationEvent{SessionID: "old", Timestamp: base}))
	require.NoError(t, m.SaveAllocationEvent(ctx, &AllocationEvent{SessionID: "new", Timestamp: base.Add(time.Hour)}))

	n, err := m.PruneAllocationEvents(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := m.ListAllocationEvents(ctx, AllocationFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].SessionID)
}
