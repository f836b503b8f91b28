package retry

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultBackoff(t *testing.T) {
	b := DefaultBackoff()

	assert.Equal(t, 10*time.Second, b.BaseDelay)
	assert.Equal(t, 10*time.Minute, b.MaxDelay)
	assert.Equal(t, 2.0, b.ExponentialBase)
	assert.Equal(t, 5, b.EscalateAfter)
}

func TestBackoff_Delay(t *testing.T) {
	b := DefaultBackoff()

	tests := []struct {
		name     string
		failures int
		expected time.Duration
	}{
		{name: "No failures - no wait", failures: 0, expected: 0},
		{name: "Negative failures - no wait", failures: -1, expected: 0},
		{name: "First failure - base delay", failures: 1, expected: 10 * time.Second},
		{name: "Second failure - doubled", failures: 2, expected: 20 * time.Second},
		{name: "Third failure", failures: 3, expected: 40 * time.Second},
		{name: "Seventh failure - capped", failures: 7, expected: 10 * time.Minute}, // 10s * 2^6 = 10m40s
		{name: "Large failure count - capped", failures: 100, expected: 10 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, b.Delay(tt.failures))
		})
	}
}

func TestBackoff_Delay_Custom(t *testing.T) {
	b := Backoff{
		BaseDelay:       1 * time.Second,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 3.0,
	}

	tests := []struct {
		failures int
		expected time.Duration
	}{
		{1, 1 * time.Second},
		{2, 3 * time.Second},
		{3, 9 * time.Second},
		{4, 10 * time.Second}, // Would be 27s
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, b.Delay(tt.failures))
	}
}

func TestBackoff_Escalate(t *testing.T) {
	b := DefaultBackoff()

	assert.False(t, b.Escalate(0))
	assert.False(t, b.Escalate(4))
	assert.True(t, b.Escalate(5))
	assert.True(t, b.Escalate(9))

	assert.False(t, Backoff{}.Escalate(100), "zero threshold never escalates")
}

func TestBackoff_Schedule(t *testing.T) {
	b := Backoff{
		BaseDelay:       10 * time.Second,
		MaxDelay:        2 * time.Minute,
		ExponentialBase: 2.0,
		EscalateAfter:   3,
	}

	schedule := b.Schedule(5)

	assert.Contains(t, schedule, "Backoff Schedule:")
	assert.Contains(t, schedule, "Failure 1: wait 10s")
	assert.Contains(t, schedule, "Failure 2: wait 20s")
	assert.Contains(t, schedule, "Failure 3: wait 40s")
	assert.Contains(t, schedule, "Failure 4: wait 1m20s")
	assert.Contains(t, schedule, "Failure 5: wait 2m0s")
	assert.Contains(t, schedule, "→ Escalate")

	lines := strings.Split(strings.TrimSpace(schedule), "\n")
	assert.Len(t, lines, 7)
}

func TestBackoff_MonotonicUntilCap(t *testing.T) {
	b := DefaultBackoff()

	prev := time.Duration(0)
	for i := 1; i <= 20; i++ {
		d := b.Delay(i)
		assert.GreaterOrEqual(t, d, prev, "failure %d", i)
		assert.LessOrEqual(t, d, b.MaxDelay)
		prev = d
	}
}

func BenchmarkDelay(b *testing.B) {
	backoff := DefaultBackoff()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = backoff.Delay(i % 10)
	}
}
