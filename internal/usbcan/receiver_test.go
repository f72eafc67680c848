package usbcan

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/limjaehoe/elincan/internal/protocol/canusb"
	"github.com/limjaehoe/elincan/internal/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptSource 依次返回预置数据块，读取时可修改代数
type scriptSource struct {
	chunks   chan []byte
	gen      atomic.Uint64
	bumpNext atomic.Bool
}

func (s *scriptSource) Read(ctx context.Context, buf []byte) (int, error) {
	select {
	case c := <-s.chunks:
		if s.bumpNext.CompareAndSwap(true, false) {
			s.gen.Add(1)
		}
		return copy(buf, c), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (s *scriptSource) Generation() uint64 { return s.gen.Load() }

func TestReceiver_DropsResultAfterGenerationChange(t *testing.T) {
	src := &scriptSource{chunks: make(chan []byte, 4)}
	src.gen.Store(1)
	bus := pubsub.New[FrameResult]()
	defer bus.Close()
	sub, err := bus.Subscribe("t", 4)
	require.NoError(t, err)

	var decoded atomic.Int32
	r := NewReceiver(src, bus, time.Millisecond, zap.NewNop())
	r.SetCallbacks(ReceiverCallbacks{FrameDecoded: func(error) { decoded.Add(1) }})
	r.Start(context.Background())
	defer r.Stop()

	src.bumpNext.Store(true)
	src.chunks <- encodeChunk(t, 0x40, 0x00, 0x01)
	require.Eventually(t, func() bool { return decoded.Load() == 1 }, time.Second, time.Millisecond)

	select {
	case res := <-sub.C():
		t.Fatalf("stale result published: %+v", res)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestReceiver_SurvivesCallerCancel(t *testing.T) {
	src := &scriptSource{chunks: make(chan []byte, 4)}
	bus := pubsub.New[FrameResult]()
	defer bus.Close()
	sub, err := bus.Subscribe("t", 4)
	require.NoError(t, err)

	r := NewReceiver(src, bus, time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	cancel()
	defer r.Stop()

	src.chunks <- encodeChunk(t, 0x100, 0x01, 1, 2, 3)
	res := recvResult(t, sub.C())
	require.True(t, res.OK())
	assert.True(t, res.Value.Collimator())
	assert.True(t, r.Running())
}

func TestReceiver_StopBeforeStart(t *testing.T) {
	r := NewReceiver(&scriptSource{chunks: make(chan []byte)}, pubsub.New[FrameResult](), 0, nil)
	r.Stop()
	assert.False(t, r.Running())
}

func TestReceiver_DebugLogsFrames(t *testing.T) {
	src := &scriptSource{chunks: make(chan []byte, 1)}
	bus := pubsub.New[FrameResult]()
	defer bus.Close()
	sub, err := bus.Subscribe("t", 1)
	require.NoError(t, err)

	r := NewReceiver(src, bus, time.Millisecond, zap.NewExample())
	r.SetDebug(true)
	r.Start(context.Background())
	defer r.Stop()

	src.chunks <- encodeChunk(t, 0x41, byte(canusb.CmdKeyValue), 0x05)
	res := recvResult(t, sub.C())
	require.True(t, res.OK())
	assert.Equal(t, canusb.CmdKeyValue, res.Value.Command())
}
