package main

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"storesync/writebehind"
)

func StartDbUsageStatsLogger(ctx context.Context, db *sqlx.DB) {
	ticker := time.NewTicker(30 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := db.Stats()
				log.Infof("DB - InUse: %d Idle %d WaitDuration %s", stats.InUse, stats.Idle, stats.WaitDuration)
			}
		}
	}()
}

// StartLimiterStatsLogger reports how many flushes hold a shared slot
func StartLimiterStatsLogger(ctx context.Context, limiter *writebehind.SharedLimiter) {
	ticker := time.NewTicker(30 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Debugf("Write-behind - concurrent flushes in use: %d", limiter.InUse())
			}
		}
	}()
}
