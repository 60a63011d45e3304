package service

import (
	"context"
	"sync"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"go.uber.org/zap"
)

const defaultConsolidationInterval = 6 * time.Hour

// ConsolidationWorker runs episodic consolidation for every agent on a
// schedule.
type ConsolidationWorker struct {
	episodes *EpisodicMemory
	agents   domain.AgentStore
	logger   *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewConsolidationWorker(em *EpisodicMemory, as domain.AgentStore, logger *zap.Logger) *ConsolidationWorker {
	return &ConsolidationWorker{
		episodes: em,
		agents:   as,
		logger:   logger,
		interval: defaultConsolidationInterval,
		stopCh:   make(chan struct{}),
	}
}

func (s *ConsolidationWorker) SetInterval(d time.Duration) {
	s.interval = d
}

func (s *ConsolidationWorker) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("consolidation worker started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
				s.RunOnce(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("consolidation worker stopped")
				return
			}
		}
	}()
}

func (s *ConsolidationWorker) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// RunOnce consolidates every agent's episodic memory and returns the totals.
func (s *ConsolidationWorker) RunOnce(ctx context.Context) *ConsolidationResult {
	total := &ConsolidationResult{}

	scopes, err := s.agents.ListScopes(ctx)
	if err != nil {
		s.logger.Error("failed to list agents for consolidation", zap.Error(err))
		return total
	}

	for _, scope := range scopes {
		result, err := s.episodes.Consolidate(ctx, scope)
		if err != nil {
			s.logger.Warn("consolidation failed for agent",
				zap.String("agent_id", scope.AgentID.String()),
				zap.Error(err))
			if result == nil {
				continue
			}
		}

		total.EpisodesMerged += result.EpisodesMerged
		total.EpisodesDecayed += result.EpisodesDecayed
		total.EpisodesArchived += result.EpisodesArchived

		if result.EpisodesMerged > 0 || result.EpisodesDecayed > 0 || result.EpisodesArchived > 0 {
			s.logger.Info("consolidation complete for agent",
				zap.String("agent_id", scope.AgentID.String()),
				zap.Int("episodes_merged", result.EpisodesMerged),
				zap.Int("episodes_decayed", result.EpisodesDecayed),
				zap.Int("episodes_archived", result.EpisodesArchived))
		}
	}
	return total
}
