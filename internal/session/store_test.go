package session

import (
	"sync"
	"testing"
	"time"

	"club-pos/internal/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGetDelete(t *testing.T) {
	store := NewStore(time.Hour)
	st := order.NewState()
	st.Authenticated = true

	sess := store.Create(st)
	require.NotEmpty(t, sess.ID)

	got, ok := store.Get(sess.ID)
	require.True(t, ok)
	assert.Same(t, sess, got)

	store.Delete(sess.ID)
	_, ok = store.Get(sess.ID)
	assert.False(t, ok)
}

func TestIdleSessionsExpire(t *testing.T) {
	now := time.Date(2024, 6, 15, 19, 0, 0, 0, time.UTC)
	store := NewStore(10 * time.Minute)
	store.clock = func() time.Time { return now }

	a := store.Create(order.NewState())
	b := store.Create(order.NewState())

	now = now.Add(9 * time.Minute)
	_, ok := store.Get(a.ID)
	require.True(t, ok, "touching a keeps it alive")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())

	_, ok = store.Get(b.ID)
	assert.False(t, ok)

	now = now.Add(10 * time.Minute)
	_, ok = store.Get(a.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestZeroTTLNeverExpires(t *testing.T) {
	now := time.Now()
	store := NewStore(0)
	store.clock = func() time.Time { return now }
	sess := store.Create(order.NewState())

	now = now.Add(1000 * time.Hour)
	_, ok := store.Get(sess.ID)
	assert.True(t, ok)
}

func TestDoSerializesActions(t *testing.T) {
	store := NewStore(time.Hour)
	sess := store.Create(order.NewState())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sess.Do(func(st *order.State) error {
				st.Cart["kind"]++
				return nil
			})
		}()
	}
	wg.Wait()

	_ = sess.Do(func(st *order.State) error {
		assert.Equal(t, 50, st.Cart["kind"])
		return nil
	})
}
