// Package scheduler provee wakeups diferidos cancelables por handle.
// El engine persiste el handle para que una reconciliación posterior (incluso
// de otro pase) pueda cancelar el wakeup pendiente: a lo sumo uno armado por
// deployment.
package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handle identifica un wakeup armado. Opaco: solo sirve para cancelar.
type Handle string

type Scheduler interface {
	// Schedule arma fn para ejecutarse una vez después de d.
	Schedule(d time.Duration, fn func()) Handle

	// Cancel desarma el wakeup si todavía no disparó. Best-effort: un
	// wakeup en vuelo no se puede retractar y Cancel devuelve false.
	Cancel(h Handle) bool
}

// TimerScheduler implementa Scheduler con time.AfterFunc.
type TimerScheduler struct {
	mu     sync.Mutex
	timers map[Handle]*time.Timer
}

func NewTimer() *TimerScheduler {
	return &TimerScheduler{timers: make(map[Handle]*time.Timer)}
}

func (s *TimerScheduler) Schedule(d time.Duration, fn func()) Handle {
	h := Handle(uuid.NewString())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[h] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, h)
		s.mu.Unlock()
		fn()
	})
	return h
}

func (s *TimerScheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	t, ok := s.timers[h]
	delete(s.timers, h)
	s.mu.Unlock()
	if !ok {
		return false
	}
	return t.Stop()
}
