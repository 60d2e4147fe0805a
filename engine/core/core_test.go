package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTime struct {
	t time.Time
}

func (f *fakeTime) now() time.Time { return f.t }

func (f *fakeTime) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestClockTickAndPause(t *testing.T) {
	ft := &fakeTime{t: time.Unix(1000, 0)}
	c := &Clock{now: ft.now}
	c.Start()

	ft.advance(16 * time.Millisecond)
	c.Tick()
	assert.InDelta(t, 0.016, c.Delta(), 1e-9)
	assert.InDelta(t, 0.016, c.Total(), 1e-9)

	c.Stop()
	ft.advance(time.Second)
	c.Tick()
	assert.Zero(t, c.Delta())
	assert.InDelta(t, 0.016, c.Total(), 1e-9)

	c.Resume()
	ft.advance(10 * time.Millisecond)
	c.Tick()
	assert.InDelta(t, 0.010, c.Delta(), 1e-9)
	assert.InDelta(t, 0.026, c.Total(), 1e-9)
}

func TestMetricsOneSecondWindow(t *testing.T) {
	m := NewMetrics()
	updated := false
	// 1/64 s is exact in binary so 64 frames make exactly one second
	for i := 0; i < 64; i++ {
		updated = m.Update(1.0 / 64.0)
	}
	assert.True(t, updated)
	assert.InDelta(t, 64.0, m.FPS(), 1e-9)
	assert.InDelta(t, 15.625, m.MSPerFrame(), 1e-9)
	assert.InDelta(t, 15.625, m.FrameTime(), 1e-9)
	assert.Equal(t, uint64(64), m.TotalFrames())
}

func TestEventBusRegisterFire(t *testing.T) {
	bus := NewEventBus()
	type listener struct{ got []uint16 }
	l := &listener{}

	onKey := func(code SystemEventCode, sender interface{}, inst interface{}, data EventContext) bool {
		inst.(*listener).got = append(inst.(*listener).got, data.Data.U16[0])
		return true
	}
	require.True(t, bus.Register(EVENT_CODE_KEY_PRESSED, l, onKey))
	assert.False(t, bus.Register(EVENT_CODE_KEY_PRESSED, l, onKey), "duplicate listener")

	ctx := EventContext{}
	ctx.Data.U16[0] = uint16(KEY_W)
	assert.True(t, bus.Fire(EVENT_CODE_KEY_PRESSED, nil, ctx))
	assert.False(t, bus.Fire(EVENT_CODE_RESIZED, nil, ctx))
	assert.Equal(t, []uint16{uint16(KEY_W)}, l.got)

	assert.True(t, bus.Unregister(EVENT_CODE_KEY_PRESSED, l, onKey))
	assert.False(t, bus.Fire(EVENT_CODE_KEY_PRESSED, nil, ctx))
}

func TestInputEdgesAndEvents(t *testing.T) {
	bus := NewEventBus()
	pressed := 0
	bus.Register(EVENT_CODE_KEY_PRESSED, &pressed, func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		pressed++
		return false
	})

	in := NewInput(bus)
	in.ProcessKey(KEY_1, true)
	in.ProcessKey(KEY_1, true)
	assert.Equal(t, 1, pressed, "repeated press does not refire")
	assert.True(t, in.KeyPressed(KEY_1))
	assert.True(t, in.IsKeyDown(KEY_1))

	in.Update()
	assert.False(t, in.KeyPressed(KEY_1))
	assert.True(t, in.WasKeyDown(KEY_1))

	in.ProcessMouseMove(10, 20)
	in.Update()
	in.ProcessMouseMove(14, 17)
	dx, dy := in.MouseDelta()
	assert.Equal(t, int32(4), dx)
	assert.Equal(t, int32(-3), dy)
}

func TestSetLogLevel(t *testing.T) {
	require.NoError(t, SetLogLevel("debug"))
	require.NoError(t, SetLogLevel("info"))
	assert.Error(t, SetLogLevel("loud"))
}
