package linkreg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterOrLookup_FirstSightInserts(t *testing.T) {
	r := New()
	name, found := r.RegisterOrLookup(Key{Dev: 1, Ino: 42}, "/a")
	assert.False(t, found)
	assert.Empty(t, name)
	assert.Equal(t, 1, r.Len())
}

func TestRegisterOrLookup_RepeatedLookupsReturnCanonical(t *testing.T) {
	r := New()
	k := Key{Dev: 1, Ino: 42}
	r.RegisterOrLookup(k, "/a")

	for i := 0; i < 5; i++ {
		name, found := r.RegisterOrLookup(k, "/a")
		require.True(t, found)
		assert.Equal(t, "/a", name)
	}
	assert.Equal(t, 1, r.Len())
}

func TestRegisterOrLookup_FirstSeenWins(t *testing.T) {
	r := New()
	k := Key{Dev: 1, Ino: 42}
	r.RegisterOrLookup(k, "/a")

	name, found := r.RegisterOrLookup(k, "/b")
	require.True(t, found)
	assert.Equal(t, "/a", name)

	name, found = r.Lookup(k)
	require.True(t, found)
	assert.Equal(t, "/a", name, "a lookup hit must not update the canonical name")
}

func TestRegisterOrLookup_ExactKeys(t *testing.T) {
	r := New()
	r.RegisterOrLookup(Key{Dev: 1, Ino: 42}, "/a")

	_, found := r.RegisterOrLookup(Key{Dev: 2, Ino: 42}, "/other-dev")
	assert.False(t, found, "same inode on another device is a different file")
	_, found = r.RegisterOrLookup(Key{Dev: 1, Ino: 43}, "/other-ino")
	assert.False(t, found)
	assert.Equal(t, 3, r.Len())
}

func TestClear_IsolatesPasses(t *testing.T) {
	r := New()
	k := Key{Dev: 7, Ino: 9}
	r.RegisterOrLookup(k, "/first/x")
	r.Clear()

	assert.Equal(t, 0, r.Len())
	name, found := r.RegisterOrLookup(k, "/second/z")
	assert.False(t, found)
	assert.Empty(t, name)

	name, found = r.RegisterOrLookup(k, "/second/w")
	require.True(t, found)
	assert.Equal(t, "/second/z", name)
}

func TestClear_Empty(t *testing.T) {
	r := New()
	r.Clear()
	r.Clear()
	assert.Equal(t, 0, r.Len())
}

func TestKeyOf_Hardlinks(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	c := filepath.Join(dir, "c")
	require.NoError(t, os.WriteFile(a, []byte("data"), 0644))
	require.NoError(t, os.Link(a, b))
	require.NoError(t, os.WriteFile(c, []byte("data"), 0644))

	fa, err := os.Lstat(a)
	require.NoError(t, err)
	fb, err := os.Lstat(b)
	require.NoError(t, err)
	fc, err := os.Lstat(c)
	require.NoError(t, err)

	ka, nlink, ok := KeyOf(fa)
	require.True(t, ok)
	assert.Equal(t, uint64(2), nlink)
	kb, _, ok := KeyOf(fb)
	require.True(t, ok)
	kc, nlink, ok := KeyOf(fc)
	require.True(t, ok)
	assert.Equal(t, uint64(1), nlink)

	assert.Equal(t, ka, kb)
	assert.NotEqual(t, ka, kc)

	kl, nlink, err := Lstat(b)
	require.NoError(t, err)
	assert.Equal(t, ka, kl)
	assert.Equal(t, uint64(2), nlink)
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "3:17", Key{Dev: 3, Ino: 17}.String())
}
