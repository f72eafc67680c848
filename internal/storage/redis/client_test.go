package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/limjaehoe/elincan/internal/config"
)

func TestNewEventClient(t *testing.T) {
	_, err := NewEventClient(cfgpkg.RedisConfig{Enabled: false})
	assert.ErrorIs(t, err, ErrDisabled)

	m := miniredis.RunT(t)
	_, err = NewEventClient(cfgpkg.RedisConfig{Enabled: true, Addr: m.Addr()})
	assert.ErrorIs(t, err, ErrNoTarget)

	c, err := NewEventClient(cfgpkg.RedisConfig{
		Enabled:   true,
		Addr:      m.Addr(),
		PoolSize:  2,
		EventList: "elincan:events",
		MaxEvents: 100,
	})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "elincan:events", c.EventList())
	assert.Empty(t, c.EventChannel())
	assert.Equal(t, int64(100), c.MaxEvents())
	assert.NoError(t, c.HealthCheck(context.Background()))
	assert.NotNil(t, c.Stats())

	n, err := c.Backlog(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, c.RPush(context.Background(), "elincan:events", "a", "b").Err())
	n, err = c.Backlog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	m.Close()
	assert.Error(t, c.HealthCheck(context.Background()))
}

func TestEventClient_BacklogWithoutList(t *testing.T) {
	m := miniredis.RunT(t)
	c, err := NewEventClient(cfgpkg.RedisConfig{Enabled: true, Addr: m.Addr(), EventChannel: "elincan:events"})
	require.NoError(t, err)
	defer c.Close()

	n, err := c.Backlog(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
