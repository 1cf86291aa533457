package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfxgo/compute/region"
)

type fakeHandle struct{ id int }

func (fakeHandle) Dims() (int, int, int) { return 0, 0, 0 }

func TestNewRejectsNonPositiveBudget(t *testing.T) {
	_, err := New(0, nil)
	require.Error(t, err)
}

func TestPutGetRoundTrip(t *testing.T) {
	c, err := New(1<<20, nil)
	require.NoError(t, err)

	k := Key{Region: region.Full(64, 64), Fingerprint: 42, Generation: 1}
	c.Put(k, Entry{Handle: fakeHandle{1}, Bytes: 1024})

	got, ok := c.Get(k)
	require.True(t, ok)
	assert.Equal(t, 1024, int(got.Bytes))

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(0), stats.Misses)
}

func TestGetMissIncrementsCounter(t *testing.T) {
	c, err := New(1<<20, nil)
	require.NoError(t, err)
	_, ok := c.Get(Key{Fingerprint: 1})
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Misses)
}

func TestEvictionUnderBudget(t *testing.T) {
	var evicted []Key
	c, err := New(100, func(k Key, e Entry) {
		evicted = append(evicted, k)
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		k := Key{Fingerprint: uint64(i)}
		c.Put(k, Entry{Handle: fakeHandle{i}, Bytes: 40})
	}

	stats := c.Stats()
	assert.LessOrEqual(t, stats.UsedBytes, stats.BudgetBytes)
	assert.NotEmpty(t, evicted)
	// The earliest-inserted keys should have been evicted first.
	assert.Equal(t, Key{Fingerprint: 0}, evicted[0])
}

func TestPurgeResetsUsage(t *testing.T) {
	c, err := New(1<<20, nil)
	require.NoError(t, err)
	c.Put(Key{Fingerprint: 1}, Entry{Bytes: 512})
	c.Purge()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.Stats().UsedBytes)
}

func TestRemoveDropsEntry(t *testing.T) {
	c, err := New(1<<20, nil)
	require.NoError(t, err)
	k := Key{Fingerprint: 7}
	c.Put(k, Entry{Bytes: 256})
	c.Remove(k)
	_, ok := c.Get(k)
	assert.False(t, ok)
}
