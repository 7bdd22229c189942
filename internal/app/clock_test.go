package app

import "testing"

func TestFormatElapsed(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{0, "00:00"},
		{5, "00:05"},
		{65, "01:05"},
		{3599, "59:59"},
		{6000, "100:00"},
		{-3, "00:00"},
	}
	for _, tc := range cases {
		if got := FormatElapsed(tc.in); got != tc.want {
			t.Fatalf("FormatElapsed(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStartClockIgnoresNonPositiveInterval(t *testing.T) {
	s := newTestSession(arithmeticCatalog(), false)
	s.StartClock(0)
	s.mu.RLock()
	running := s.clockRunning
	s.mu.RUnlock()
	if running {
		t.Fatalf("zero interval must not start a ticker")
	}
	if !s.Tick() {
		t.Fatalf("manual ticks still count")
	}
}
