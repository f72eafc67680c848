package pmfilter

import (
	"testing"
	"time"

	"github.com/limjaehoe/elincan/internal/dispatch"
	"github.com/limjaehoe/elincan/internal/protocol/canusb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordDispatcher struct {
	calls []dispatch.Packet
}

func (r *recordDispatcher) Dispatch(dev canusb.DeviceType, cmd canusb.Command, payload []byte) error {
	r.calls = append(r.calls, dispatch.Packet{Device: dev, Cmd: cmd, Payload: payload})
	return nil
}

func (r *recordDispatcher) UnitType(dev canusb.DeviceType, axis int) int {
	return dispatch.New(nil).UnitType(dev, axis)
}

func sample(axis byte, v uint16) []byte {
	return []byte{axis, byte(v >> 8), byte(v)}
}

func TestProcess_ShortSample(t *testing.T) {
	f := New(nil, zap.NewNop())
	_, err := f.Process(canusb.DeviceCeiling, []byte{1, 0}, canusb.CmdPMValue)
	assert.ErrorIs(t, err, ErrShortSample)
}

func TestProcess_CeilingSignificance(t *testing.T) {
	d := &recordDispatcher{}
	f := New(d, zap.NewNop())

	res, err := f.Process(canusb.DeviceCeiling, sample(1, 1), canusb.CmdPMValue)
	require.NoError(t, err)
	assert.Equal(t, NoChange, res, "delta 1 is noise")
	assert.Equal(t, 0, f.Snapshot()["ceiling.x"], "ceiling cache untouched on noise")

	res, err = f.Process(canusb.DeviceCeiling, sample(1, 2), canusb.CmdPMValue)
	require.NoError(t, err)
	require.True(t, res.Changed)
	assert.Equal(t, canusb.DeviceCeiling, res.Device)
	assert.Equal(t, 1, res.Axis)
	assert.Equal(t, 2, res.Value)
	assert.Equal(t, 1, res.UnitType)
	assert.Equal(t, 2, f.Snapshot()["ceiling.x"])

	require.Len(t, d.calls, 1)
	assert.Equal(t, canusb.CmdPMValue, d.calls[0].Cmd)
	assert.Equal(t, []byte{1, 0, 2}, d.calls[0].Payload)
}

func TestProcess_CeilingDriftAccumulates(t *testing.T) {
	d := &recordDispatcher{}
	f := New(d, zap.NewNop())
	// 逐次+1不提交，累计到2时触发
	res, _ := f.Process(canusb.DeviceCeiling, sample(2, 101), canusb.CmdPMValue)
	assert.True(t, res.Changed)
	res, _ = f.Process(canusb.DeviceCeiling, sample(2, 102), canusb.CmdPMValue)
	assert.False(t, res.Changed)
	res, _ = f.Process(canusb.DeviceCeiling, sample(2, 103), canusb.CmdPMValue)
	assert.True(t, res.Changed)
	assert.Equal(t, 2, res.UnitType)
	assert.Equal(t, 103, f.Snapshot()["ceiling.y"])
	assert.Len(t, d.calls, 2)
}

func TestProcess_StandTableAlwaysStore(t *testing.T) {
	tests := []struct {
		name string
		dev  canusb.DeviceType
		axis byte
		slot string
		unit int
	}{
		{"stand z", canusb.DeviceStand, 3, "stand.z", 5},
		{"stand a", canusb.DeviceStand, 4, "stand.a", 6},
		{"table x", canusb.DeviceTable, 1, "table.x", 7},
		{"table z", canusb.DeviceTable, 3, "table.z", 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(&recordDispatcher{}, zap.NewNop())

			res, err := f.Process(tt.dev, sample(tt.axis, 1), canusb.CmdPMValue)
			require.NoError(t, err)
			assert.False(t, res.Changed)
			assert.Equal(t, 1, f.Snapshot()[tt.slot], "cache overwritten on NoChange")

			// 逐次+1永远不会触发
			res, _ = f.Process(tt.dev, sample(tt.axis, 2), canusb.CmdPMValue)
			assert.False(t, res.Changed)
			assert.Equal(t, 2, f.Snapshot()[tt.slot])

			res, _ = f.Process(tt.dev, sample(tt.axis, 10), canusb.CmdStopPMValue)
			assert.True(t, res.Changed)
			assert.Equal(t, tt.unit, res.UnitType)
		})
	}
}

func TestProcess_UnmappedIsNoChange(t *testing.T) {
	f := New(&recordDispatcher{}, zap.NewNop())

	for _, dev := range []canusb.DeviceType{canusb.DeviceCollimator, canusb.DeviceZigbee, canusb.DeviceUnknown} {
		res, err := f.Process(dev, sample(1, 500), canusb.CmdPMValue)
		require.NoError(t, err)
		assert.Equal(t, NoChange, res)
	}

	// 立柱没有X轴
	res, err := f.Process(canusb.DeviceStand, sample(1, 500), canusb.CmdPMValue)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	for _, v := range f.Snapshot() {
		assert.Zero(t, v)
	}
}

func TestProcess_PublishesChanges(t *testing.T) {
	f := New(nil, zap.NewNop())
	defer f.Close()
	sub, err := f.Changes().Subscribe("t", 4)
	require.NoError(t, err)

	_, _ = f.Process(canusb.DeviceTable, sample(3, 100), canusb.CmdPMValue)
	select {
	case c := <-sub.C():
		assert.True(t, c.Changed)
		assert.Equal(t, canusb.DeviceTable, c.Device)
		assert.Equal(t, 0, c.UnitType, "no dispatcher, no unit type")
	case <-time.After(time.Second):
		t.Fatal("change not published")
	}
}
