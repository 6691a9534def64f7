package services

import (
	"log"
	"time"
)

// IdleSweeper periodically revokes sessions whose inactivity outlasted the
// idle window. Per-request idle checks already keep stale sessions out of
// authenticated paths; the sweeper covers clients that simply went away.
type IdleSweeper struct {
	Service  *SessionService
	Interval time.Duration

	stop chan struct{}
}

func NewIdleSweeper(service *SessionService) *IdleSweeper {
	return &IdleSweeper{
		Service:  service,
		Interval: service.Config.SweepInterval,
		stop:     make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine.
func (s *IdleSweeper) Start() {
	go s.run()
	log.Printf("Idle session sweeper started (interval: %v)", s.Interval)
}

func (s *IdleSweeper) run() {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

// sweep runs one pass. Failures are logged and swallowed: a missed pass just
// leaves idle sessions for the next tick or the per-request check.
func (s *IdleSweeper) sweep() {
	count, err := s.Service.CleanupIdleSessions()
	if err != nil {
		log.Printf("Idle session sweep failed: %v", err)
		return
	}
	if count > 0 {
		log.Printf("Idle session sweep revoked %d sessions", count)
	}

	if stats, err := s.Service.SessionStats(); err == nil {
		log.Printf("Session stats: %d active, %d idle, %d total", stats.Active, stats.Idle, stats.Total)
	}
}

// Stop terminates the sweep loop. Safe to call once.
func (s *IdleSweeper) Stop() {
	close(s.stop)
}
