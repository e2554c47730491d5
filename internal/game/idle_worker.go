package game

import (
	"context"
	"log"
	"time"

	"github.com/playmatatu/poolphys/internal/config"
)

// StartIdleWorker starts a background worker that closes tables nobody has
// touched for cfg.SessionTTLMinutes.
func StartIdleWorker(ctx context.Context, sm *SessionManager, cfg *config.Config) {
	if sm == nil || cfg == nil {
		log.Println("[IDLE] Manager or config missing; idle worker not started")
		return
	}

	interval := time.Duration(cfg.IdleSweepSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	maxIdle := sessionTTL(cfg)

	log.Println("[IDLE] Idle worker started")
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("[IDLE] Idle worker stopping")
				return
			case <-ticker.C:
				if expired := sm.ExpireIdle(ctx, maxIdle); len(expired) > 0 {
					log.Printf("[IDLE] Closed idle tables: %v", expired)
				}
			}
		}
	}()
}
