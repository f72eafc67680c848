package thirdparty

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBreaker(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker(2, time.Minute)
	b.now = func() time.Time { return now }
	boom := errors.New("boom")

	assert.True(t, b.Allow())
	b.Record(boom)
	assert.Equal(t, BreakerClosed, b.State())
	b.Record(boom)
	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.Allow())
	assert.Equal(t, int64(1), b.Trips())

	now = now.Add(time.Minute)
	assert.True(t, b.Allow(), "trial request after cooldown")
	assert.False(t, b.Allow(), "only one trial request at a time")
	assert.Equal(t, BreakerHalfOpen, b.State())

	b.Record(boom)
	assert.Equal(t, BreakerOpen, b.State(), "failed trial reopens")
	assert.Equal(t, int64(2), b.Trips())

	now = now.Add(time.Minute)
	assert.True(t, b.Allow())
	b.Record(nil)
	assert.Equal(t, BreakerClosed, b.State())
	assert.True(t, b.Allow())
}

func TestFanout_SkipsOpenSink(t *testing.T) {
	boom := errors.New("boom")
	bad := &stubSink{name: "bad", err: boom}
	good := &stubSink{name: "good"}
	f := NewFanout(zap.NewNop(), bad, good)

	for i := 0; i < 8; i++ {
		_ = f.Publish(context.Background(), NewEvent(EventPMChanged, "", nil))
	}
	assert.Equal(t, 5, bad.n, "skipped once tripped")
	assert.Equal(t, 8, good.n)
	assert.Equal(t, BreakerOpen, f.BreakerStates()["bad"])
	assert.Equal(t, BreakerClosed, f.BreakerStates()["good"])

	err := f.Publish(context.Background(), NewEvent(EventPMChanged, "", nil))
	assert.ErrorIs(t, err, ErrCircuitOpen)
}
