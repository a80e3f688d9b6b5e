package store

import (
	"context"
	"testing"
	"time"

	"github.com/shalu066900/pykms/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), wire.GUID{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreIdempotentReplay(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	var clientID wire.GUID
	clientID[0] = 0x01

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		rec := ClientRecord{
			ClientMachineID: clientID,
			LastActivation:  base.Add(time.Duration(i) * time.Second),
			NCount:          uint32(i),
		}
		require.NoError(t, s.Upsert(ctx, rec))
	}

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, base.Add(4*time.Second), all[0].LastActivation)
}

func TestMemoryStoreRejectsStaleWrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	var clientID wire.GUID
	clientID[0] = 0x02

	newer := time.Now().UTC()
	older := newer.Add(-time.Hour)

	require.NoError(t, s.Upsert(ctx, ClientRecord{ClientMachineID: clientID, LastActivation: newer, NCount: 10}))
	require.NoError(t, s.Upsert(ctx, ClientRecord{ClientMachineID: clientID, LastActivation: older, NCount: 1}))

	rec, err := s.Get(ctx, clientID)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), rec.NCount)
}
