package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID_SortsByTime(t *testing.T) {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := NewID(t0)
	b := NewID(t0.Add(time.Millisecond))
	assert.Less(t, a, b)
	assert.NotEqual(t, NewID(t0), NewID(t0))
}

func TestEntry_Stamp(t *testing.T) {
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	var e Entry
	e.Stamp(now)
	assert.Equal(t, time.UTC, e.At.Location())
	assert.True(t, e.At.Equal(now))
	assert.NotEmpty(t, e.ID)

	kept := Entry{ID: "fixed", At: now}
	kept.Stamp(time.Now())
	assert.Equal(t, "fixed", kept.ID)
	assert.True(t, kept.At.Equal(now))
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	require.NoError(t, r.Record(context.Background(), Entry{SQL: "SELECT 1"}))

	got, err := r.List(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMemory(t *testing.T) {
	m := NewMemory(3)
	ctx := context.Background()
	base := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	for i, sql := range []string{"SELECT 1", "SELECT 2", "SELECT 3", "SELECT 4"} {
		require.NoError(t, m.Record(ctx, Entry{SQL: sql, At: base.Add(time.Duration(i) * time.Second)}))
	}

	got, err := m.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "SELECT 4", got[0].SQL)
	assert.Equal(t, "SELECT 2", got[2].SQL)

	got, err = m.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "SELECT 4", got[0].SQL)
}
