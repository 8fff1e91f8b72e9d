package infra

import (
	"testing"
	"time"
)

// =====================================================
// Infra Backoff Tests
// =====================================================

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		retryCount int
		minDelay   time.Duration
		maxDelay   time.Duration
	}{
		{0, 500 * time.Millisecond, 500 * time.Millisecond}, // 500ms
		{1, 1 * time.Second, 1 * time.Second},               // 1s
		{2, 2 * time.Second, 2 * time.Second},               // 2s
		{3, 4 * time.Second, 4 * time.Second},               // 4s
		{6, 30 * time.Second, 30 * time.Second},             // max 30s
		{100, 30 * time.Second, 30 * time.Second},           // still max 30s
	}

	for _, tt := range tests {
		delay := CalculateBackoff(tt.retryCount)
		if delay < tt.minDelay || delay > tt.maxDelay {
			t.Errorf("CalculateBackoff(%d) = %s, want between %s and %s",
				tt.retryCount, delay, tt.minDelay, tt.maxDelay)
		}
	}
}
