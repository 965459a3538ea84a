package storage

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func (r *record) GetID() string { return r.ID }

func setupTestDB(t *testing.T) (*badger.DB, func()) {
	db, err := OpenInMemory()
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
	}
	return db, cleanup
}

func TestBadgerStore(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBadgerStore(db, "rec")

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, store.Put(&record{ID: "a", Count: 1}))

		var got record
		require.NoError(t, store.Get("a", &got))
		assert.Equal(t, 1, got.Count)

		require.NoError(t, store.Put(&record{ID: "a", Count: 2}))
		require.NoError(t, store.Get("a", &got))
		assert.Equal(t, 2, got.Count)
	})

	t.Run("GetMissing", func(t *testing.T) {
		var got record
		err := store.Get("missing", &got)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("EmptyID", func(t *testing.T) {
		assert.Error(t, store.Put(&record{}))
	})

	t.Run("Update", func(t *testing.T) {
		require.NoError(t, store.Put(&record{ID: "u", Count: 1}))

		var r record
		err := store.Update("u", &r, func() error {
			r.Count += 10
			return nil
		})
		require.NoError(t, err)

		var got record
		require.NoError(t, store.Get("u", &got))
		assert.Equal(t, 11, got.Count)

		err = store.Update("nobody", &r, func() error { return nil })
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("KeysAndListArePrefixScoped", func(t *testing.T) {
		other := NewBadgerStore(db, "other")
		require.NoError(t, other.Put(&record{ID: "x"}))

		keys, err := store.Keys()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "u"}, keys)

		var all []record
		require.NoError(t, store.List(&all))
		assert.Len(t, all, 2)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete("a"))
		require.NoError(t, store.Delete("a"))

		var got record
		assert.ErrorIs(t, store.Get("a", &got), ErrNotFound)
	})
}
