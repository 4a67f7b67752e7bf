package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFetchMetrics(t *testing.T) {
	m := NewFetchMetrics()
	assert.Zero(t, m.Snapshot().AverageDuration)

	m.Record(10*time.Millisecond, true)
	m.Record(30*time.Millisecond, false)

	s := m.Snapshot()
	assert.Equal(t, uint64(2), s.Attempts)
	assert.Equal(t, uint64(1), s.Successes)
	assert.Equal(t, uint64(1), s.Failures)
	assert.Equal(t, 20*time.Millisecond, s.AverageDuration)
}

func TestFetchMetrics_RollingWindow(t *testing.T) {
	m := NewFetchMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Record(time.Second, true)
	}
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Record(time.Millisecond, true)
	}
	assert.Equal(t, time.Millisecond, m.Snapshot().AverageDuration)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLogLevel("DEBUG"))
	assert.Equal(t, WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLogLevel("error"))
	assert.Equal(t, InfoLevel, ParseLogLevel("nonsense"))
}

func TestClock(t *testing.T) {
	c := NewClock()
	c.Update()
	assert.Zero(t, c.Elapsed())

	c.Start()
	time.Sleep(2 * time.Millisecond)
	c.Update()
	assert.GreaterOrEqual(t, c.Elapsed(), 2*time.Millisecond)
}
