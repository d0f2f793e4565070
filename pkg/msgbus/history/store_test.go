package history_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/msgbus/pkg/msgbus/history"
)

// storeFactory creates a store instance for testing.
type storeFactory func(t *testing.T) history.Store

func record(bus string, emission uint64) history.Record {
	return history.Record{
		ID:         fmt.Sprintf("%s-%d", bus, emission),
		Bus:        bus,
		Emission:   emission,
		Type:       "history_test.Foo",
		Kind:       "untargeted",
		Context:    -1,
		Dispatched: 2,
		Message:    "&{V:1}",
		Timestamp:  time.Date(2024, 5, 1, 12, 0, 0, int(emission), time.UTC),
	}
}

// storeContractTest runs contract tests against any Store implementation.
func storeContractTest(t *testing.T, name string, factory storeFactory) {
	t.Run(name+"/Append_and_Get", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		want := record("main", 1)
		want.Cancelled = true
		require.NoError(t, store.Append(want))

		got, err := store.Get(want.ID)
		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Bus, got.Bus)
		assert.Equal(t, want.Emission, got.Emission)
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.Context, got.Context)
		assert.True(t, got.Cancelled)
		assert.Equal(t, want.Dispatched, got.Dispatched)
		assert.Equal(t, want.Message, got.Message)
		assert.True(t, want.Timestamp.Equal(got.Timestamp))
	})

	t.Run(name+"/Get_NotFound", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		_, err := store.Get("missing")
		assert.ErrorIs(t, err, history.ErrNotFound)
	})

	t.Run(name+"/Recent_Empty", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		records, err := store.Recent("nobody", 10)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run(name+"/Recent_NewestFirst", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		for i := uint64(1); i <= 5; i++ {
			require.NoError(t, store.Append(record("main", i)))
			require.NoError(t, store.Append(record("other", i)))
		}

		records, err := store.Recent("main", 3)
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, uint64(5), records[0].Emission)
		assert.Equal(t, uint64(4), records[1].Emission)
		assert.Equal(t, uint64(3), records[2].Emission)

		all, err := store.Recent("main", 0)
		require.NoError(t, err)
		assert.Len(t, all, 5)
		for _, r := range all {
			assert.Equal(t, "main", r.Bus)
		}
	})

	t.Run(name+"/Clear", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Append(record("main", 1)))
		require.NoError(t, store.Append(record("other", 1)))
		require.NoError(t, store.Append(record("main", 2)))

		require.NoError(t, store.Clear("main"))
		require.NoError(t, store.Clear("nobody"))

		records, err := store.Recent("main", 0)
		require.NoError(t, err)
		assert.Empty(t, records)

		records, err = store.Recent("other", 0)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run(name+"/Closed", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())

		assert.ErrorIs(t, store.Append(record("main", 1)), history.ErrStoreClosed)
		_, err := store.Get("main-1")
		assert.ErrorIs(t, err, history.ErrStoreClosed)
		_, err = store.Recent("main", 1)
		assert.ErrorIs(t, err, history.ErrStoreClosed)
		assert.ErrorIs(t, store.Clear("main"), history.ErrStoreClosed)
		assert.NoError(t, store.Close())
	})
}

func TestStoreContract(t *testing.T) {
	storeContractTest(t, "MemoryStore", func(t *testing.T) history.Store {
		return history.NewMemoryStore(64)
	})
	storeContractTest(t, "SQLiteStore", func(t *testing.T) history.Store {
		store, err := history.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return store
	})
}
