// Package sweeper keeps stored presence from drifting: the derived
// staleness window in the presence store is authoritative for reads,
// but rows whose heartbeats stopped would otherwise say "online"
// forever. A background pass flips them to offline.
package sweeper

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/liveboard/api/internal/model"
	"gorm.io/gorm"
)

type PresenceSweeper struct {
	db        *gorm.DB
	staleness time.Duration
	interval  time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	lastRun  time.Time
	swept    int64
}

type Config struct {
	Staleness time.Duration
	Interval  time.Duration
}

func New(db *gorm.DB, cfg Config) *PresenceSweeper {
	if cfg.Staleness <= 0 {
		cfg.Staleness = 45 * time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &PresenceSweeper{
		db:        db,
		staleness: cfg.Staleness,
		interval:  cfg.Interval,
		stopChan:  make(chan struct{}),
	}
}

func (s *PresenceSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	log.Printf("[Sweeper] Starting with interval %v", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Sweeper] Context cancelled, stopping")
			return
		case <-s.stopChan:
			log.Println("[Sweeper] Stop signal received")
			return
		case <-ticker.C:
			if _, err := s.Sweep(); err != nil {
				log.Printf("[Sweeper] Sweep failed: %v", err)
			}
		}
	}
}

func (s *PresenceSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		close(s.stopChan)
		s.running = false
		log.Println("[Sweeper] Stopped")
	}
}

// Sweep persists offline for every participant whose last update is
// older than the staleness window. The stored updated_at is left
// untouched so the original heartbeat time stays visible.
func (s *PresenceSweeper) Sweep() (int64, error) {
	cutoff := time.Now().UTC().Add(-s.staleness)
	res := s.db.Model(&model.Participant{}).
		Where("status = ? AND updated_at < ?", model.StatusOnline, cutoff).
		UpdateColumn("status", model.StatusOffline)
	if res.Error != nil {
		return 0, res.Error
	}

	s.mu.Lock()
	s.lastRun = time.Now().UTC()
	s.swept += res.RowsAffected
	s.mu.Unlock()

	if res.RowsAffected > 0 {
		log.Printf("[Sweeper] Marked %d stale participants offline", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

func (s *PresenceSweeper) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]interface{}{
		"enabled":   true,
		"running":   s.running,
		"interval":  s.interval.String(),
		"staleness": s.staleness.String(),
		"lastRun":   s.lastRun,
		"swept":     s.swept,
	}
}
