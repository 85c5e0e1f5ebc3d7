package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHolderReplaysLatest(t *testing.T) {
	t.Parallel()

	h := NewHolder(1)
	h.Store(2)

	updates, cancel := h.Subscribe()
	defer cancel()
	require.Equal(t, 2, <-updates)

	h.Store(3)
	require.Equal(t, 3, <-updates)
	require.Equal(t, 3, h.Value())
}

func TestHolderSlowSubscriberKeepsNewest(t *testing.T) {
	t.Parallel()

	h := NewHolder(0)
	updates, cancel := h.Subscribe()
	defer cancel()

	total := subscriberBuffer * 3
	for i := 1; i <= total; i++ {
		h.Store(i)
	}

	var last int
	for len(updates) > 0 {
		v := <-updates
		require.Greater(t, v, last)
		last = v
	}
	require.Equal(t, total, last)
}

func TestHolderCancelAndClose(t *testing.T) {
	t.Parallel()

	h := NewHolder("a")
	first, cancelFirst := h.Subscribe()
	second, _ := h.Subscribe()
	<-first
	<-second

	cancelFirst()
	cancelFirst()
	_, ok := <-first
	require.False(t, ok)

	h.Store("b")
	require.Equal(t, "b", <-second)

	h.Close()
	_, ok = <-second
	require.False(t, ok)

	late, cancel := h.Subscribe()
	defer cancel()
	require.Equal(t, "b", <-late)
	_, ok = <-late
	require.False(t, ok)
}
