package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type record struct {
	Name   string
	Amount uint64
}

func TestKVStoreRoundTrip(t *testing.T) {
	store := NewKVStore(NewMemDB())

	ok, err := store.KVGet([]byte("missing"), &record{})
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.KVPut([]byte("rec"), record{Name: "QQQ", Amount: 400}))

	var loaded record
	ok, err = store.KVGet([]byte("rec"), &loaded)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, record{Name: "QQQ", Amount: 400}, loaded)
}

func TestKVStoreOverwrite(t *testing.T) {
	store := NewKVStore(NewMemDB())
	require.NoError(t, store.KVPut([]byte("rec"), record{Name: "QQQ", Amount: 1}))
	require.NoError(t, store.KVPut([]byte("rec"), record{Name: "QQQ", Amount: 2}))

	var loaded record
	ok, err := store.KVGet([]byte("rec"), &loaded)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2), loaded.Amount)
}

func TestKVStoreAppendList(t *testing.T) {
	store := NewKVStore(NewMemDB())

	var empty [][]byte
	require.NoError(t, store.KVGetList([]byte("log"), &empty))
	require.Empty(t, empty)

	require.NoError(t, store.KVAppend([]byte("log"), []byte("first")))
	require.NoError(t, store.KVAppend([]byte("log"), []byte("second")))

	var entries [][]byte
	require.NoError(t, store.KVGetList([]byte("log"), &entries))
	require.Len(t, entries, 2)
	require.Equal(t, []byte("first"), entries[0])
	require.Equal(t, []byte("second"), entries[1])
}

func TestMemDBIsolation(t *testing.T) {
	db := NewMemDB()
	value := []byte("payload")
	require.NoError(t, db.Put([]byte("key"), value))
	value[0] = 'X'

	got, ok, err := db.Get([]byte("key"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), got)

	got[0] = 'Y'
	again, ok, err := db.Get([]byte("key"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), again)
}

func TestLevelDBRoundTrip(t *testing.T) {
	dir := t.TempDir()
	db, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer db.Close()

	_, ok, err := db.Get([]byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, db.Put([]byte("key"), []byte("value")))
	got, ok, err := db.Get([]byte("key"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("value"), got)
}
