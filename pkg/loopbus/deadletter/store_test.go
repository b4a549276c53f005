package deadletter_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/loopbus/pkg/loopbus/deadletter"
	"github.com/randalmurphal/loopbus/pkg/loopbus/value"
)

// storeFactory creates a store instance for testing.
type storeFactory func(t *testing.T) deadletter.Store

func record(key string, reason deadletter.Reason) deadletter.Record {
	return deadletter.Record{
		Key:       key,
		Args:      []byte(`["x",1]`),
		HandlerID: 4,
		Loop:      "worker",
		Reason:    reason,
		Error:     "boom",
	}
}

// storeContractTest runs contract tests against any Store implementation.
func storeContractTest(t *testing.T, name string, factory storeFactory) {
	t.Run(name+"/Save_and_Get", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		id, err := store.Save(record("ping", deadletter.ReasonHandlerFailed))
		require.NoError(t, err)
		require.NotEmpty(t, id)

		got, err := store.Get(id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "ping", got.Key)
		assert.Equal(t, []byte(`["x",1]`), got.Args)
		assert.Equal(t, uint64(4), got.HandlerID)
		assert.Equal(t, "worker", got.Loop)
		assert.Equal(t, deadletter.ReasonHandlerFailed, got.Reason)
		assert.Equal(t, "boom", got.Error)
		assert.WithinDuration(t, time.Now(), got.Timestamp, time.Minute)
	})

	t.Run(name+"/Get_NotFound", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		_, err := store.Get("missing")
		assert.ErrorIs(t, err, deadletter.ErrNotFound)
	})

	t.Run(name+"/Save_KeepsExplicitID", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		rec := record("ping", deadletter.ReasonOrphaned)
		rec.ID = "fixed"
		id, err := store.Save(rec)
		require.NoError(t, err)
		assert.Equal(t, "fixed", id)

		rec.Error = "second"
		_, err = store.Save(rec)
		require.NoError(t, err)

		got, err := store.Get("fixed")
		require.NoError(t, err)
		assert.Equal(t, "second", got.Error)

		n, err := store.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run(name+"/List_Order_and_Filter", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		a, err := store.Save(record("ping", deadletter.ReasonHandlerFailed))
		require.NoError(t, err)
		b, err := store.Save(record("pong", deadletter.ReasonOrphaned))
		require.NoError(t, err)
		c, err := store.Save(record("ping", deadletter.ReasonOrphaned))
		require.NoError(t, err)

		all, err := store.List("")
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{a, b, c}, []string{all[0].ID, all[1].ID, all[2].ID})

		pings, err := store.List("ping")
		require.NoError(t, err)
		require.Len(t, pings, 2)
		assert.Equal(t, a, pings[0].ID)
		assert.Equal(t, c, pings[1].ID)

		none, err := store.List("nobody")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run(name+"/List_Empty_Store", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		all, err := store.List("")
		require.NoError(t, err)
		assert.Equal(t, []deadletter.Record{}, all)
	})

	t.Run(name+"/Delete", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		a, err := store.Save(record("ping", deadletter.ReasonHandlerFailed))
		require.NoError(t, err)
		b, err := store.Save(record("ping", deadletter.ReasonHandlerFailed))
		require.NoError(t, err)

		require.NoError(t, store.Delete(a))
		require.NoError(t, store.Delete("missing"))

		_, err = store.Get(a)
		assert.ErrorIs(t, err, deadletter.ErrNotFound)

		got, err := store.Get(b)
		require.NoError(t, err)
		assert.Equal(t, b, got.ID)

		n, err := store.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run(name+"/Closed", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())

		_, err := store.Save(record("ping", deadletter.ReasonOrphaned))
		assert.ErrorIs(t, err, deadletter.ErrStoreClosed)
		_, err = store.Get("x")
		assert.ErrorIs(t, err, deadletter.ErrStoreClosed)
		_, err = store.List("")
		assert.ErrorIs(t, err, deadletter.ErrStoreClosed)
		assert.ErrorIs(t, store.Delete("x"), deadletter.ErrStoreClosed)
		_, err = store.Count()
		assert.ErrorIs(t, err, deadletter.ErrStoreClosed)
	})
}

func TestStoreContract(t *testing.T) {
	storeContractTest(t, "Memory", func(t *testing.T) deadletter.Store {
		return deadletter.NewMemoryStore()
	})
	storeContractTest(t, "SQLite", func(t *testing.T) deadletter.Store {
		store, err := deadletter.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return store
	})
}

func TestNewRecord(t *testing.T) {
	args := value.NewArgs(value.String("x"), value.Int32(1), value.Null())

	rec, err := deadletter.NewRecord("ping", args, 9, "ui", deadletter.ReasonOrphaned, errors.New("loop closed"))
	require.NoError(t, err)
	assert.Equal(t, "ping", rec.Key)
	assert.Equal(t, uint64(9), rec.HandlerID)
	assert.Equal(t, "ui", rec.Loop)
	assert.Equal(t, "loop closed", rec.Error)
	assert.JSONEq(t, `[{"k":"string","s":"x"},{"k":"int32","i":1},{"k":"null"}]`, string(rec.Args))

	decoded, err := rec.DecodeArgs()
	require.NoError(t, err)
	assert.True(t, decoded.Equal(args), "decoded %v, want %v", decoded, args)
}

func TestRecordArgsKeepKinds(t *testing.T) {
	args := value.NewArgs(
		value.Null(),
		value.Bool(true),
		value.Int32(-7),
		value.Uint32(7),
		value.Int64(1<<40),
		value.Uint64(math.MaxUint64),
		value.Double(3),
		value.Double(-0.5),
		value.Double(math.Inf(1)),
		value.Double(math.Inf(-1)),
		value.String(""),
		value.Object(
			value.Member{Key: "id", Value: value.Int64(5)},
			value.Member{Key: "id", Value: value.String("dup")},
			value.Member{Key: "tags", Value: value.Array()},
		),
		value.Object(),
		value.Array(value.Uint32(1), value.Array(value.Double(1))),
	)

	rec, err := deadletter.NewRecord("k", args, 1, "main", deadletter.ReasonHandlerFailed, nil)
	require.NoError(t, err)

	sqlite, err := deadletter.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer sqlite.Close()

	for _, store := range []deadletter.Store{deadletter.NewMemoryStore(), sqlite} {
		id, err := store.Save(rec)
		require.NoError(t, err)
		got, err := store.Get(id)
		require.NoError(t, err)

		decoded, err := got.DecodeArgs()
		require.NoError(t, err)
		require.Equal(t, args.Len(), decoded.Len())
		for i := 0; i < args.Len(); i++ {
			assert.Equal(t, args.At(i).Kind(), decoded.At(i).Kind(), "argument %d", i)
			assert.True(t, args.At(i).Equal(decoded.At(i)), "argument %d: got %v, want %v", i, decoded.At(i), args.At(i))
		}
	}
}

func TestRecordArgsKeepNaN(t *testing.T) {
	rec, err := deadletter.NewRecord("k", value.NewArgs(value.Double(math.NaN())), 1, "main", deadletter.ReasonOrphaned, nil)
	require.NoError(t, err)

	decoded, err := rec.DecodeArgs()
	require.NoError(t, err)
	require.Equal(t, 1, decoded.Len())
	assert.Equal(t, value.KindDouble, decoded.At(0).Kind())
	f, _ := decoded.At(0).AsFloat64()
	assert.True(t, math.IsNaN(f))
}

func TestRecordDecodeRejectsUnknownKind(t *testing.T) {
	_, err := deadletter.Record{Args: []byte(`[{"k":"int128"}]`)}.DecodeArgs()
	assert.Error(t, err)

	_, err = deadletter.Record{Args: []byte(`not json`)}.DecodeArgs()
	assert.Error(t, err)
}

func TestRecordDecodeEmptyArgs(t *testing.T) {
	decoded, err := deadletter.Record{}.DecodeArgs()
	require.NoError(t, err)
	assert.Equal(t, 0, decoded.Len())
}
