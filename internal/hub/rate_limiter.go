package hub

import (
	"sync"
	"time"
)

// SampleLimiter caps how many frames each student may submit per window.
type SampleLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	students map[string]*studentWindow
}

type studentWindow struct {
	count       int
	windowStart time.Time
}

func NewSampleLimiter(limit int, window time.Duration) *SampleLimiter {
	return &SampleLimiter{
		limit:    limit,
		window:   window,
		students: make(map[string]*studentWindow),
	}
}

// Allow reports whether the student may submit another sample now.
func (sl *SampleLimiter) Allow(studentID string) bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	now := time.Now()

	w, exists := sl.students[studentID]
	if !exists {
		sl.students[studentID] = &studentWindow{count: 1, windowStart: now}
		return true
	}

	if now.Sub(w.windowStart) >= sl.window {
		w.count = 1
		w.windowStart = now
		return true
	}

	if w.count >= sl.limit {
		return false
	}

	w.count++
	return true
}

// Cleanup drops entries idle for more than five windows.
func (sl *SampleLimiter) Cleanup() {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	now := time.Now()
	for id, w := range sl.students {
		if now.Sub(w.windowStart) > 5*sl.window {
			delete(sl.students, id)
		}
	}
}

// Forget removes a student's window, typically on disconnect.
func (sl *SampleLimiter) Forget(studentID string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	delete(sl.students, studentID)
}
