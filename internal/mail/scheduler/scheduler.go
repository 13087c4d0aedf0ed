package scheduler

import (
	"context"
	"log"
	"time"

	"mailbridge/internal/mail/usecase"
)

// SyncScheduler runs a sync cycle on a fixed interval
type SyncScheduler struct {
	mailUsecase usecase.MailUsecase
	interval    time.Duration
	timeout     time.Duration
	stopChan    chan struct{}
	done        chan struct{}
}

func NewSyncScheduler(mailUsecase usecase.MailUsecase, interval time.Duration) *SyncScheduler {
	return &SyncScheduler{
		mailUsecase: mailUsecase,
		interval:    interval,
		timeout:     5 * time.Minute,
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start begins the scheduler loop. A non-positive interval disables it.
func (s *SyncScheduler) Start() {
	if s.interval <= 0 {
		log.Println("[SyncScheduler] Interval not set, scheduler disabled")
		close(s.done)
		return
	}

	log.Printf("[SyncScheduler] Starting sync scheduler (interval: %s)", s.interval)

	go func() {
		defer close(s.done)

		// Run immediately on start
		s.runOnce()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce()
			case <-s.stopChan:
				log.Println("[SyncScheduler] Scheduler stopped")
				return
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight cycle to finish
func (s *SyncScheduler) Stop() {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	<-s.done
}

func (s *SyncScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result, err := s.mailUsecase.Synchronize(ctx)
	if err != nil {
		log.Printf("[SyncScheduler] Sync failed: %v", err)
		return
	}
	if result.AddedCount > 0 {
		log.Printf("[SyncScheduler] Imported %d messages", result.AddedCount)
	}
}
