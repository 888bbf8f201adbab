package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	ID       string
	Warnings []string
}

func cloneResult(r *result) *result {
	c := *r
	c.Warnings = append([]string(nil), r.Warnings...)
	return &c
}

func TestResultCache_GetAdd(t *testing.T) {
	c, err := New(4, cloneResult)
	require.NoError(t, err)

	key := Key{SnapshotID: "s1", Question: "heo bị sốt"}
	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Add(key, &result{ID: "t1", Warnings: []string{"w"}})
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "t1", got.ID)

	_, ok = c.Get(Key{SnapshotID: "s2", Question: "heo bị sốt"})
	assert.False(t, ok, "another snapshot must miss")

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 4, stats.Capacity)
}

func TestResultCache_ReturnsCopies(t *testing.T) {
	c, err := New(4, cloneResult)
	require.NoError(t, err)

	key := Key{SnapshotID: "s1", Question: "q"}
	original := &result{ID: "t1", Warnings: []string{"w"}}
	c.Add(key, original)
	original.Warnings[0] = "mutated after add"

	first, _ := c.Get(key)
	first.Warnings[0] = "mutated by caller"

	second, _ := c.Get(key)
	assert.Equal(t, []string{"w"}, second.Warnings)
}

func TestResultCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := New(2, cloneResult)
	require.NoError(t, err)

	a := Key{SnapshotID: "s", Question: "a"}
	b := Key{SnapshotID: "s", Question: "b"}
	d := Key{SnapshotID: "s", Question: "d"}

	c.Add(a, &result{ID: "a"})
	c.Add(b, &result{ID: "b"})
	_, _ = c.Get(a)
	c.Add(d, &result{ID: "d"})

	_, ok := c.Get(b)
	assert.False(t, ok)
	_, ok = c.Get(a)
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())

	c.Purge()
	assert.Zero(t, c.Len())
}

func TestResultCache_Concurrent(t *testing.T) {
	c, err := New(64, cloneResult)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := Key{SnapshotID: "s", Question: fmt.Sprintf("q%d", i%32)}
				if _, ok := c.Get(key); !ok {
					c.Add(key, &result{ID: key.Question})
				}
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}

func TestNew_RequiresClone(t *testing.T) {
	_, err := New[*result](4, nil)
	assert.Error(t, err)

	c, err := New(0, cloneResult)
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, c.Stats().Capacity)
}
