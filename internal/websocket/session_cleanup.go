package websocket

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionCleanupService closes connections that have been idle too long
type SessionCleanupService struct {
	hub      *Hub
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSessionCleanupService creates a new session cleanup service
func NewSessionCleanupService(hub *Hub, timeout, interval time.Duration, logger *zap.Logger) *SessionCleanupService {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SessionCleanupService{
		hub:      hub,
		timeout:  timeout,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *SessionCleanupService) Start() {
	s.wg.Add(1)
	go s.cleanupLoop()
	s.logger.Info("Session cleanup service started",
		zap.Duration("timeout", s.timeout),
		zap.Duration("interval", s.interval))
}

// Stop gracefully stops the cleanup service
func (s *SessionCleanupService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
		s.logger.Info("Session cleanup service stopped")
	})
}

func (s *SessionCleanupService) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunCleanup()
		}
	}
}

// RunCleanup closes idle connections once and returns how many were closed
func (s *SessionCleanupService) RunCleanup() int {
	closed := s.hub.CleanupInactive(s.timeout)
	if closed > 0 {
		s.logger.Info("Session cleanup completed", zap.Int("closed", closed))
	}
	return closed
}
