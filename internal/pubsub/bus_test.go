package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_EverySubscriberReceivesInOrder(t *testing.T) {
	b := New[int]()
	s1, err := b.Subscribe("a", 8)
	require.NoError(t, err)
	s2, err := b.Subscribe("b", 8)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		assert.Equal(t, 2, b.Publish(i))
	}

	for _, s := range []*Subscription[int]{s1, s2} {
		assert.Equal(t, 1, <-s.C())
		assert.Equal(t, 2, <-s.C())
		assert.Equal(t, 3, <-s.C())
	}
}

func TestBus_LateSubscriberSeesOnlyFuture(t *testing.T) {
	b := New[string]()
	b.Publish("early")

	s, err := b.Subscribe("late", 4)
	require.NoError(t, err)
	b.Publish("later")

	assert.Equal(t, "later", <-s.C())
	assert.Len(t, s.C(), 0)
}

func TestBus_DropNewWhenFull(t *testing.T) {
	b := New[int]()
	var dropped []string
	b.OnDrop = func(name string) { dropped = append(dropped, name) }

	s, err := b.Subscribe("slow", 1)
	require.NoError(t, err)

	b.Publish(1)
	b.Publish(2)

	assert.Equal(t, 1, <-s.C())
	st := b.Stats()["slow"]
	assert.Equal(t, uint64(1), st.Delivered)
	assert.Equal(t, uint64(1), st.Dropped)
	assert.Equal(t, []string{"slow"}, dropped)
}

func TestBus_SubscribeErrors(t *testing.T) {
	b := New[int]()
	_, err := b.Subscribe("x", 1)
	require.NoError(t, err)

	_, err = b.Subscribe("x", 1)
	assert.ErrorIs(t, err, ErrSubscriberExists)

	assert.ErrorIs(t, b.Unsubscribe("missing"), ErrSubscriberNotFound)
	require.NoError(t, b.Unsubscribe("x"))
	assert.Equal(t, 0, b.Len())
}

func TestBus_Close(t *testing.T) {
	b := New[int]()
	s, err := b.Subscribe("x", 1)
	require.NoError(t, err)

	b.Close()
	b.Close()

	_, ok := <-s.C()
	assert.False(t, ok)
	assert.Equal(t, 0, b.Publish(1))

	_, err = b.Subscribe("y", 1)
	assert.ErrorIs(t, err, ErrBusClosed)
}
