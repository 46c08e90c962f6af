package store

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tidesim/internal/errs"
)

func openTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(dir, cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSynchronousStoreBehavesLikeAnOrderedMap(t *testing.T) {
	st := openTestStore(t, Config{})

	require.NoError(t, st.Put([]byte("a"), []byte("1")))
	require.NoError(t, st.Put([]byte("b"), []byte("2")))

	v, err := st.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	v, err = st.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)
}

func TestGetOnAbsentKeyReturnsNotFound(t *testing.T) {
	st := openTestStore(t, Config{})

	_, err := st.Get([]byte("missing"))
	require.Error(t, err)
	require.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestDelayedWriteIsNotVisibleUntilItsBound(t *testing.T) {
	st := openTestStore(t, Config{
		ConsistencyBoundMin: 150 * time.Millisecond,
		ConsistencyBoundMax: 150 * time.Millisecond,
	})

	require.NoError(t, st.Put([]byte("k"), []byte("v")))

	_, err := st.Get([]byte("k"))
	require.Error(t, err, "write should not be visible before its delay elapses")

	require.Eventually(t, func() bool {
		v, err := st.Get([]byte("k"))
		return err == nil && string(v) == "v"
	}, time.Second, 10*time.Millisecond)
}

func TestPerKeyCooldownRejectsRapidRepeatWrites(t *testing.T) {
	st := openTestStore(t, Config{})

	require.NoError(t, st.Put([]byte("k"), []byte("1")))

	err := st.Put([]byte("k"), []byte("2"))
	require.Error(t, err)
	require.Equal(t, errs.KindRateLimited, errs.KindOf(err))
}

func TestCooldownIsPerKeyNotGlobal(t *testing.T) {
	st := openTestStore(t, Config{})

	require.NoError(t, st.Put([]byte("k1"), []byte("1")))
	require.NoError(t, st.Put([]byte("k2"), []byte("1")), "a different key must not be subject to k1's cooldown")
}

func TestOversizeKeyIsRejected(t *testing.T) {
	st := openTestStore(t, Config{})

	bigKey := make([]byte, 513)
	err := st.Put(bigKey, []byte("v"))
	require.Error(t, err)
	require.Equal(t, errs.KindPayloadTooLarge, errs.KindOf(err))
}

func TestRangeRespectsStartEndAndLimit(t *testing.T) {
	st := openTestStore(t, Config{})

	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, st.Put([]byte(k), []byte(k)))
		// Each key is a distinct RateCounter entry, so no cooldown applies
		// across keys here.
	}

	require.Eventually(t, func() bool {
		results, err := st.Range(nil, nil, NoLimit)
		return err == nil && len(results) == 4
	}, time.Second, 10*time.Millisecond)

	results, err := st.Range([]byte("b"), []byte("d"), NoLimit)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "b", string(results[0].Key))
	require.Equal(t, "c", string(results[1].Key))

	results, err = st.Range(nil, nil, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestCloseDrainsPendingWritesBeforeReturning(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(dir, Config{
		ConsistencyBoundMin: time.Hour,
		ConsistencyBoundMax: time.Hour,
	}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, st.Put([]byte("k"), []byte("v")))
	require.NoError(t, st.Close())

	reopened, err := Open(dir, Config{}, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
}

func TestRateCounterTryAccept(t *testing.T) {
	rc := newRateCounter(time.Second)
	now := time.Now()

	require.True(t, rc.tryAccept("k", now))
	require.False(t, rc.tryAccept("k", now.Add(500*time.Millisecond)))
	require.True(t, rc.tryAccept("k", now.Add(time.Second+time.Millisecond)))
}

func TestVisibilityHeapOrdersByVisibleAtThenSeq(t *testing.T) {
	q := newPendingQueue()
	base := time.Now()

	q.push([]byte("later"), []byte("v"), base.Add(2*time.Second))
	q.push([]byte("earlier"), []byte("v"), base.Add(time.Second))
	q.push([]byte("tie-a"), []byte("v"), base.Add(time.Second))

	head, ok := q.peekHead()
	require.True(t, ok)
	require.Equal(t, "earlier", string(head.key))
}

func TestDBScanReturnsEntriesInAscendingOrder(t *testing.T) {
	dir := t.TempDir()
	d, err := openDB(dir)
	require.NoError(t, err)
	defer d.close()

	require.NoError(t, d.put([]byte("a"), []byte("1")))
	require.NoError(t, d.put([]byte("b"), []byte("2")))

	entries, err := d.scan(nil, nil, -1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func ExampleStore_Put() {
	dir, _ := os.MkdirTemp("", "tidesim-example")
	defer os.RemoveAll(dir)

	st, _ := Open(dir, Config{}, zap.NewNop())
	defer st.Close()

	_ = st.Put([]byte("greeting"), []byte("hello"))
	v, _ := st.Get([]byte("greeting"))
	fmt.Println(string(v))

	// Output:
	// hello
}
