package core

const AVG_COUNT uint8 = 30

// Metrics tracks frame timings. FPS and MSPF are refreshed once every
// accumulated second of frame time.
type Metrics struct {
	frameAVGCounter    uint8
	msTimes            [AVG_COUNT]float64
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
	mspf               float64
	totalFrames        uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Update records one frame. Returns true when a new one-second window was
// completed and FPS changed.
func (m *Metrics) Update(frameElapsedSeconds float64) bool {
	frameMS := frameElapsedSeconds * 1000.0
	m.msTimes[m.frameAVGCounter] = frameMS
	if m.frameAVGCounter == AVG_COUNT-1 {
		m.msAvg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			m.msAvg += m.msTimes[i]
		}
		m.msAvg /= float64(AVG_COUNT)
	}
	m.frameAVGCounter++
	m.frameAVGCounter %= AVG_COUNT

	m.frames++
	m.totalFrames++
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS >= 1000 {
		m.fps = float64(m.frames) * 1000.0 / m.accumulatedFrameMS
		m.mspf = m.accumulatedFrameMS / float64(m.frames)
		m.accumulatedFrameMS = 0
		m.frames = 0
		return true
	}
	return false
}

func (m *Metrics) FPS() float64 {
	return m.fps
}

// FrameTime is the rolling average over the last AVG_COUNT frames, in ms.
func (m *Metrics) FrameTime() float64 {
	return m.msAvg
}

// MSPerFrame is the mean frame time over the last completed second.
func (m *Metrics) MSPerFrame() float64 {
	return m.mspf
}

func (m *Metrics) TotalFrames() uint64 {
	return m.totalFrames
}
