package logging

import (
	"sync"
)

// ErrorSampler reduces log noise from a failing dependency (an unreachable record sink
// fails on every request). It logs the first failure of a streak, then every Nth.
type ErrorSampler struct {
	mu       sync.Mutex
	streaks  map[string]int
	interval int
}

// NewErrorSampler creates a sampler that logs every interval-th repeated failure.
func NewErrorSampler(interval int) *ErrorSampler {
	if interval < 1 {
		interval = 10
	}
	return &ErrorSampler{
		streaks:  make(map[string]int),
		interval: interval,
	}
}

// Failure counts a failure for key and reports whether it should be logged together
// with the current streak length.
func (s *ErrorSampler) Failure(key string) (shouldLog bool, streak int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.streaks[key]++
	streak = s.streaks[key]
	return streak == 1 || streak%s.interval == 0, streak
}

// Success ends the failure streak for key. recovered is true when a streak was open,
// so callers can log the recovery once.
func (s *ErrorSampler) Success(key string) (recovered bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streaks[key] == 0 {
		return false
	}
	delete(s.streaks, key)
	return true
}

// Streak returns the current failure streak for key.
func (s *ErrorSampler) Streak(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaks[key]
}
