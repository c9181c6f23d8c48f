package scanner

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/triarb/internal/domain"
)

func TestDedupSets_MarkIsIdempotent(t *testing.T) {
	d := NewDedupSets()

	require.NoError(t, d.MarkSkipped("a-b-c"))
	require.NoError(t, d.MarkSkipped("a-b-c"))
	require.NoError(t, d.MarkHighProfit("x-y-z"))
	require.NoError(t, d.MarkHighProfit("x-y-z"))

	skipped, high := d.Sizes()
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 1, high)
	assert.True(t, d.IsSkipped("a-b-c"))
	assert.False(t, d.IsHighProfit("a-b-c"))
	assert.True(t, d.IsHighProfit("x-y-z"))
	assert.False(t, d.IsSkipped("unknown"))
	assert.False(t, d.IsHighProfit("unknown"))
}

func TestDedupSets_SetsStayDisjoint(t *testing.T) {
	d := NewDedupSets()
	require.NoError(t, d.MarkSkipped("a-b-c"))
	require.NoError(t, d.MarkHighProfit("x-y-z"))

	err := d.MarkHighProfit("a-b-c")
	assert.ErrorIs(t, err, domain.ErrConflictingState)
	err = d.MarkSkipped("x-y-z")
	assert.ErrorIs(t, err, domain.ErrConflictingState)

	assert.True(t, d.IsSkipped("a-b-c"))
	assert.False(t, d.IsHighProfit("a-b-c"))
	assert.True(t, d.IsHighProfit("x-y-z"))
	assert.False(t, d.IsSkipped("x-y-z"))
}

func TestDedupSets_ConcurrentInserts(t *testing.T) {
	d := NewDedupSets()
	var wg sync.WaitGroup
	var conflicts sync.Map

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				err = d.MarkHighProfit("k")
			} else {
				err = d.MarkSkipped("k")
			}
			if err != nil {
				conflicts.Store(i, err)
			}
			_ = d.MarkHighProfit("only-high")
		}()
	}
	wg.Wait()

	skipped, high := d.Sizes()
	assert.Equal(t, 2, skipped+high, "each key lands in exactly one set")
	assert.True(t, d.IsHighProfit("only-high"))
	assert.NotEqual(t, d.IsSkipped("k"), d.IsHighProfit("k"))
}
