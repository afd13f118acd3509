package devserver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SyncService runs simulated sync jobs and feeds the hub. One job per
// source at a time; starting a second one for the same source fails.
type SyncService struct {
	hub       *Hub
	interval  time.Duration
	heartbeat time.Duration

	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewSyncService(hub *Hub, tickInterval, heartbeatInterval time.Duration) *SyncService {
	return &SyncService{
		hub:       hub,
		interval:  tickInterval,
		heartbeat: heartbeatInterval,
		running:   make(map[string]context.CancelFunc),
	}
}

// Start launches a scenario for a source.
func (s *SyncService) Start(ctx context.Context, sourceID string, scenario *Scenario) error {
	if err := scenario.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, busy := s.running[sourceID]; busy {
		s.mu.Unlock()
		return fmt.Errorf("devserver: source %s already syncing", sourceID)
	}
	jobCtx, cancel := context.WithCancel(ctx)
	s.running[sourceID] = cancel
	s.mu.Unlock()

	slog.Info("sync job start", "source", sourceID, "scenario", scenario.Name, "steps", len(scenario.Steps))

	s.wg.Add(2)
	go s.heartbeatLoop(jobCtx, sourceID)
	go func() {
		defer s.wg.Done()
		defer cancel()

		job := newSimJob(sourceID, scenario, s.interval)
		last := job.run(jobCtx, s.hub.Publish)

		s.mu.Lock()
		delete(s.running, sourceID)
		s.mu.Unlock()

		if last != nil {
			slog.Info("sync job done", "source", sourceID, "phase", last.Phase, "files", last.FilesProcessed)
		}
		s.hub.FinishSource(sourceID)
	}()

	return nil
}

// Active reports whether a job is currently running for the source.
func (s *SyncService) Active(sourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.running[sourceID]
	return busy
}

// Cancel aborts a running job, leaving its last snapshot in place.
func (s *SyncService) Cancel(sourceID string) bool {
	s.mu.Lock()
	cancel, busy := s.running[sourceID]
	s.mu.Unlock()

	if busy {
		cancel()
	}
	return busy
}

// Shutdown aborts all jobs and waits for their loops to exit.
func (s *SyncService) Shutdown() {
	s.mu.Lock()
	for _, cancel := range s.running {
		cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *SyncService) heartbeatLoop(ctx context.Context, sourceID string) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.hub.Heartbeat(sourceID, s.Active(sourceID))
		}
	}
}
