// ABOUTME: In-memory audio output device
// ABOUTME: Plays buffers into nothing, either on demand for tests or at wall-clock rate
package output

import (
	"sync"
	"time"
)

// Memory is a device with no audio hardware behind it. In manual mode
// nothing plays until Consume is called, which makes buffer accounting
// deterministic in tests. NewNull returns one that consumes at the rate of
// the submitted audio.
type Memory struct {
	*bufferQueue
	caps     Capabilities
	realtime bool
	tick     time.Duration

	mu     sync.Mutex
	open   bool
	quit   chan struct{}
	wg     sync.WaitGroup
	tag    FormatTag
	freq   int
	errors map[string]error
}

// NewMemory returns a manual-mode device with the given capabilities.
func NewMemory(caps Capabilities) *Memory {
	if caps.Name == "" {
		caps.Name = "memory"
	}
	return &Memory{
		bufferQueue: newBufferQueue(),
		caps:        caps,
		errors:      make(map[string]error),
	}
}

// NewNull returns a device that discards audio in real time.
func NewNull() *Memory {
	m := NewMemory(AllCapabilities("null"))
	m.realtime = true
	m.tick = 5 * time.Millisecond
	return m
}

// FailOn makes the named operation ("open", "allocate", "submit") return
// err until cleared with a nil error.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errors, op)
		return
	}
	m.errors[op] = err
}

func (m *Memory) failure(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[op]
}

func (m *Memory) Open() error {
	if err := m.failure("open"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open {
		return nil
	}
	m.open = true
	if m.realtime {
		m.quit = make(chan struct{})
		m.wg.Add(1)
		go m.pace()
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		return nil
	}
	m.open = false
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	m.mu.Unlock()

	m.wg.Wait()
	m.reset()
	return nil
}

func (m *Memory) Capabilities() Capabilities {
	return m.caps
}

func (m *Memory) AllocateBuffers(n int) ([]BufferID, error) {
	if !m.isOpen() {
		return nil, ErrNotOpen
	}
	if err := m.failure("allocate"); err != nil {
		return nil, err
	}
	return m.allocate(n)
}

func (m *Memory) ReleaseBuffers(ids []BufferID) error {
	return m.release(ids)
}

func (m *Memory) Submit(id BufferID, pcm []byte, tag FormatTag, frequency int) error {
	if !m.isOpen() {
		return ErrNotOpen
	}
	if err := m.failure("submit"); err != nil {
		return err
	}
	m.mu.Lock()
	m.tag, m.freq = tag, frequency
	m.mu.Unlock()
	return m.submit(id, pcm, tag, frequency)
}

func (m *Memory) Processed() int { return m.processedCount() }
func (m *Memory) Unqueue(n int) ([]BufferID, error) { return m.unqueue(n) }
func (m *Memory) Playing() bool { return m.playing() }
func (m *Memory) Play() { m.play() }
func (m *Memory) Stop() { m.stop() }
func (m *Memory) Pause() { m.pause() }
func (m *Memory) SetGain(gain float32) { m.setGain(gain) }
func (m *Memory) Gain() float32 { return m.getGain() }
func (m *Memory) Offset() time.Duration { return m.offset() }

// Consume plays n bytes and returns what the device output, silence
// included.
func (m *Memory) Consume(n int) []byte {
	p := make([]byte, n)
	m.read(p)
	return p
}

// ConsumeFrames plays n frames of the most recently submitted format.
func (m *Memory) ConsumeFrames(n int) []byte {
	m.mu.Lock()
	size := n * m.tag.FrameSize()
	m.mu.Unlock()
	return m.Consume(size)
}

func (m *Memory) isOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// pace consumes one tick's worth of audio per tick, like a sound card
// pulling at the stream rate.
func (m *Memory) pace() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	m.mu.Lock()
	quit := m.quit
	m.mu.Unlock()

	var scratch []byte
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			m.mu.Lock()
			size := int(int64(m.freq)*int64(m.tick)/int64(time.Second)) * m.tag.FrameSize()
			m.mu.Unlock()
			if size == 0 {
				continue
			}
			if cap(scratch) < size {
				scratch = make([]byte, size)
			}
			m.read(scratch[:size])
		}
	}
}
