package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultExpirerInterval = 1 * time.Minute

// WorkingMemoryExpirer periodically removes expired working-memory items.
type WorkingMemoryExpirer struct {
	working *WorkingMemory
	logger  *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewWorkingMemoryExpirer(wm *WorkingMemory, logger *zap.Logger) *WorkingMemoryExpirer {
	return &WorkingMemoryExpirer{
		working:  wm,
		logger:   logger,
		interval: defaultExpirerInterval,
		stopCh:   make(chan struct{}),
	}
}

func (s *WorkingMemoryExpirer) SetInterval(d time.Duration) {
	s.interval = d
}

// Start runs the sweep on a periodic schedule in a background goroutine.
func (s *WorkingMemoryExpirer) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("working memory expirer started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				s.run(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("working memory expirer stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the expirer.
func (s *WorkingMemoryExpirer) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *WorkingMemoryExpirer) run(ctx context.Context) {
	deleted, err := s.working.Sweep(ctx)
	if err != nil {
		s.logger.Warn("failed to sweep expired working memory", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Info("deleted expired working memory items", zap.Int64("count", deleted))
	}
}
