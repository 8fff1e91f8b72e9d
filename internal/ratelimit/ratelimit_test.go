package ratelimit

import "testing"

func TestNew_InitialBudget(t *testing.T) {
	b := New()
	if b.Remaining() != initialBudget {
		t.Fatalf("Remaining() = %d, want %d", b.Remaining(), initialBudget)
	}
	if b.IsHealthy() {
		t.Fatal("fresh budget with 0 volume has ratio 0 (0/max(0,1)) and must not be healthy")
	}
}

func TestOnRequestAndOnFill(t *testing.T) {
	b := New()
	b.OnFill(500)
	b.OnRequest(10)
	if b.CumVlm != 500 || b.NRequests != 10 {
		t.Fatalf("state = %+v", b)
	}
	want := initialBudget + 500 - 10
	if b.Remaining() != want {
		t.Fatalf("Remaining() = %d, want %d", b.Remaining(), want)
	}
}

func TestRemaining_ClampsAtZero(t *testing.T) {
	b := New()
	b.OnRequest(initialBudget + 1000)
	if b.Remaining() != 0 {
		t.Fatalf("Remaining() = %d, want 0", b.Remaining())
	}
}

func TestIsEmergency(t *testing.T) {
	b := New()
	if b.IsEmergency() {
		t.Fatal("fresh budget should not be in emergency")
	}
	b.OnRequest(initialBudget - safetyMargin + 1)
	if !b.IsEmergency() {
		t.Fatalf("expected emergency once remaining < %d, remaining=%d", safetyMargin, b.Remaining())
	}
}

func TestIsHealthy(t *testing.T) {
	b := New()
	b.OnRequest(10)
	b.OnFill(5)
	if b.IsHealthy() {
		t.Fatal("ratio 0.5 should not be healthy")
	}
	b.OnFill(10)
	if !b.IsHealthy() {
		t.Fatal("ratio 1.5 should be healthy")
	}
}

func TestSyncFromExchange(t *testing.T) {
	b := New()
	b.SyncFromExchange(1234.5, 42)
	if b.CumVlm != 1234.5 || b.NRequests != 42 {
		t.Fatalf("state after sync = %+v", b)
	}
}

func TestLogStatus_Format(t *testing.T) {
	b := New()
	b.SyncFromExchange(100, 10)
	got := b.LogStatus()
	want := "Utilization: ratio=10.00 budget=10090 vol=$100 reqs=10"
	if got != want {
		t.Fatalf("LogStatus() = %q, want %q", got, want)
	}
}
