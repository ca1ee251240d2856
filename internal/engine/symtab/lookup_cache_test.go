package symtab

import (
	"duchain/internal/engine/ident"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupCache_EvictsLeastRecentlyLookedUp(t *testing.T) {
	c := newLookupCache(2)
	c.put(ident.New("a"), []IndexedDeclaration{{Unit: "a.php"}})
	c.put(ident.New("b"), []IndexedDeclaration{{Unit: "b.php"}})

	// "b" becomes the eviction candidate.
	_, ok := c.get(ident.New("a"))
	require.True(t, ok)
	c.put(ident.New("c"), []IndexedDeclaration{{Unit: "c.php"}})

	assert.Equal(t, 2, c.size())
	_, ok = c.get(ident.New("b"))
	assert.False(t, ok)
	got, ok := c.get(ident.New("a"))
	require.True(t, ok)
	assert.Equal(t, []IndexedDeclaration{{Unit: "a.php"}}, got)
}

func TestLookupCache_KeysIgnoreGlobalPrefix(t *testing.T) {
	c := newLookupCache(4)
	c.put(ident.Parse(`app\models\user`), []IndexedDeclaration{{Unit: "user.php", Index: 3}})

	got, ok := c.get(ident.Parse(`\app\models\user`))
	require.True(t, ok)
	assert.Equal(t, uint32(3), got[0].Index)
	assert.Equal(t, uint64(1), c.hitCount())
}

func TestLookupCache_ReturnsCopies(t *testing.T) {
	c := newLookupCache(4)
	handles := []IndexedDeclaration{{Unit: "u", Index: 1}}
	c.put(ident.New("x"), handles)
	handles[0].Index = 9

	got, _ := c.get(ident.New("x"))
	got[0].Index = 7
	again, _ := c.get(ident.New("x"))
	assert.Equal(t, uint32(1), again[0].Index)
}

func TestLookupCache_ForgetAndReset(t *testing.T) {
	c := newLookupCache(0)
	c.put(ident.New("k"), nil)
	_, ok := c.get(ident.New("k"))
	assert.True(t, ok, "empty results are cached")

	c.forget(ident.New("k"))
	c.forget(ident.New("missing"))
	assert.Zero(t, c.size())

	c.put(ident.New("x"), []IndexedDeclaration{{Unit: "x"}})
	c.reset()
	_, ok = c.get(ident.New("x"))
	assert.False(t, ok)
	c.put(ident.QualifiedIdentifier{}, nil)
	assert.Zero(t, c.size())
}

func TestLookupCache_Concurrent(t *testing.T) {
	c := newLookupCache(32)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := ident.New(fmt.Sprintf("f%d_%d", n, j%10))
				c.put(id, []IndexedDeclaration{{Unit: "u", Index: uint32(j)}})
				c.get(id)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.size(), 32)
}

func TestSQLiteIndex_RepeatedLookupServedFromCache(t *testing.T) {
	idx, err := OpenSQLiteIndex(filepath.Join(t.TempDir(), "symbols.db"), "", 4)
	require.NoError(t, err)
	defer idx.Close()

	id := ident.New("widget")
	require.NoError(t, idx.Insert(id, IndexedDeclaration{Unit: "w.php"}))
	assert.Len(t, idx.Lookup(id), 1)
	assert.Len(t, idx.Lookup(id), 1)
	assert.Equal(t, uint64(1), idx.cache.hitCount())

	require.NoError(t, idx.Insert(id, IndexedDeclaration{Unit: "v.php"}))
	assert.Len(t, idx.Lookup(id), 2)
}
