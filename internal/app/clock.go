package app

import (
	"fmt"
	"time"
)

// FormatElapsed renders whole seconds as MM:SS. Minutes are not wrapped into
// hours, so long sessions show three or more minute digits.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// runClock drives Tick for one clock generation until stop is closed or the
// session refuses the tick.
func (s *Session) runClock(interval time.Duration, generation int, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !s.tick(generation) {
				return
			}
		}
	}
}

// StartClock launches the background ticker for the current clock generation.
// A non-positive interval leaves the clock to explicit Tick calls.
func (s *Session) StartClock(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	if s.isCompleteLocked() || s.discarded || s.clockRunning {
		s.mu.Unlock()
		return
	}
	s.clockRunning = true
	generation := s.generation
	stop := s.stop
	s.mu.Unlock()

	go s.runClock(interval, generation, stop)
}

// Tick advances the session clock by one second. Ticks delivered after
// completion or discard are ignored; the return value reports whether the
// tick was counted.
func (s *Session) Tick() bool {
	s.mu.RLock()
	generation := s.generation
	s.mu.RUnlock()
	return s.tick(generation)
}

func (s *Session) tick(generation int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation || s.discarded || s.isCompleteLocked() {
		return false
	}
	s.elapsed++
	s.broadcastLocked()
	return true
}

// stopClockLocked cancels the running ticker, if any. Callers hold s.mu.
func (s *Session) stopClockLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.clockRunning = false
}
