package core

import (
	"sync"
	"time"
)

const AVG_COUNT uint8 = 30

// FetchMetrics keeps a rolling average over the last AVG_COUNT fetch durations.
type FetchMetrics struct {
	mu sync.Mutex

	avgCounter uint8
	samples    uint8
	times      [AVG_COUNT]time.Duration

	Attempts  uint64
	Successes uint64
	Failures  uint64
}

type FetchMetricsSnapshot struct {
	Attempts        uint64
	Successes       uint64
	Failures        uint64
	AverageDuration time.Duration
}

func NewFetchMetrics() *FetchMetrics {
	return &FetchMetrics{}
}

func (m *FetchMetrics) Record(elapsed time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Attempts++
	if success {
		m.Successes++
	} else {
		m.Failures++
	}

	m.times[m.avgCounter] = elapsed
	m.avgCounter++
	m.avgCounter %= AVG_COUNT
	if m.samples < AVG_COUNT {
		m.samples++
	}
}

func (m *FetchMetrics) Snapshot() FetchMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := FetchMetricsSnapshot{
		Attempts:  m.Attempts,
		Successes: m.Successes,
		Failures:  m.Failures,
	}
	if m.samples == 0 {
		return s
	}
	var total time.Duration
	for i := uint8(0); i < m.samples; i++ {
		total += m.times[i]
	}
	s.AverageDuration = total / time.Duration(m.samples)
	return s
}
