package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock_AfterFunc(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMock(start)

	fired := 0
	m.AfterFunc(5*time.Minute, func() { fired++ })

	m.Advance(4 * time.Minute)
	assert.Equal(t, 0, fired)

	m.Advance(1 * time.Minute)
	assert.Equal(t, 1, fired)

	// Already fired, must not fire again.
	m.Advance(10 * time.Minute)
	assert.Equal(t, 1, fired)
}

func TestMock_AfterFuncStop(t *testing.T) {
	m := NewMock(time.Unix(0, 0))

	fired := false
	timer := m.AfterFunc(time.Second, func() { fired = true })
	require.True(t, timer.Stop())

	m.Advance(5 * time.Second)
	assert.False(t, fired)
}

func TestMock_Ticker(t *testing.T) {
	m := NewMock(time.Unix(0, 0))

	ticker := m.NewTicker(30 * time.Second)
	defer ticker.Stop()

	m.Advance(30 * time.Second)
	select {
	case <-ticker.C():
	default:
		t.Fatal("expected tick after one interval")
	}

	m.Advance(30 * time.Second)
	select {
	case <-ticker.C():
	default:
		t.Fatal("expected tick after second interval")
	}
}

func TestMock_TickerStop(t *testing.T) {
	m := NewMock(time.Unix(0, 0))

	ticker := m.NewTicker(time.Second)
	ticker.Stop()

	m.Advance(10 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker must not tick")
	default:
	}
}

func TestMock_Now(t *testing.T) {
	start := time.Unix(100, 0)
	m := NewMock(start)

	assert.Equal(t, start, m.Now())
	m.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), m.Now())
}
