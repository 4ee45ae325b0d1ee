package triekv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueFIFOOrder(t *testing.T) {
	tx := NewMemTx()
	q, err := Load(tx, "data", "meta", []byte("shard-7"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), q.Len())

	require.NoError(t, q.PushBack(tx, []byte("a")))
	require.NoError(t, q.PushBack(tx, []byte("b")))
	require.NoError(t, q.PushBack(tx, []byte("c")))
	require.Equal(t, uint64(3), q.Len())

	var got []string
	require.NoError(t, q.Iter(tx, func(v []byte) error {
		got = append(got, string(v))
		return nil
	}))
	require.Equal(t, []string{"a", "b", "c"}, got)
	require.Equal(t, uint64(3), q.Len(), "Iter must not mutate the queue")

	v, err := q.PopFront(tx)
	require.NoError(t, err)
	require.Equal(t, "a", string(v))
	require.Equal(t, uint64(2), q.Len())
}

func TestQueueSurvivesReload(t *testing.T) {
	tx := NewMemTx()
	q, err := Load(tx, "data", "meta", []byte("shard-1"))
	require.NoError(t, err)
	require.NoError(t, q.PushBack(tx, []byte("x")))
	require.NoError(t, q.PushBack(tx, []byte("y")))
	_, err = q.PopFront(tx)
	require.NoError(t, err)

	reloaded, err := Load(tx, "data", "meta", []byte("shard-1"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), reloaded.Len())

	var got []string
	require.NoError(t, reloaded.Iter(tx, func(v []byte) error {
		got = append(got, string(v))
		return nil
	}))
	require.Equal(t, []string{"y"}, got)
}

func TestQueuePopFrontNBatches(t *testing.T) {
	tx := NewMemTx()
	q, err := Load(tx, "data", "meta", []byte("shard-3"))
	require.NoError(t, err)
	for _, v := range []string{"a", "b", "c", "d"} {
		require.NoError(t, q.PushBack(tx, []byte(v)))
	}
	require.NoError(t, q.PopFrontN(tx, 2))
	require.Equal(t, uint64(2), q.Len())

	var got []string
	require.NoError(t, q.Iter(tx, func(v []byte) error {
		got = append(got, string(v))
		return nil
	}))
	require.Equal(t, []string{"c", "d"}, got)
}

func TestQueueEmptyPopIsNoop(t *testing.T) {
	tx := NewMemTx()
	q, err := Load(tx, "data", "meta", []byte("shard-9"))
	require.NoError(t, err)
	v, err := q.PopFront(tx)
	require.NoError(t, err)
	require.Nil(t, v)
}
