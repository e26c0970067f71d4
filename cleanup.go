package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"storesync/db"
	"storesync/stats_collector"
)

type purgeFunc func(ctx context.Context, conn db.Connections, before int64) (int64, error)

var purgeTables = []struct {
	table string
	purge purgeFunc
}{
	{"conversation", db.PurgeDeletedConversations},
	{"workspace_resource", db.PurgeDeletedResources},
}

// StartCleanup schedules the purge of soft deleted rows older than the
// retention period. The returned scheduler must be stopped on shutdown.
func StartCleanup(conn db.Connections, schedule string, retention time.Duration, statsCollector stats_collector.StatsCollector) (*cron.Cron, error) {
	c := cron.New(cron.WithLogger(cron.PrintfLogger(log.StandardLogger())))

	_, err := c.AddFunc(schedule, func() {
		purgeDeleted(context.Background(), conn, time.Now().Add(-retention), statsCollector)
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	log.Infof("Cleanup scheduled (%s), retaining deleted rows for %s", schedule, retention)
	return c, nil
}

func purgeDeleted(ctx context.Context, conn db.Connections, before time.Time, statsCollector stats_collector.StatsCollector) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	for _, t := range purgeTables {
		start := time.Now()
		rows, err := t.purge(ctx, conn, before.Unix())
		if err != nil {
			log.Errorf("DB - Purge of %s table error %s", t.table, err)
			continue
		}
		statsCollector.IncCleanupPurged(t.table, float64(rows))
		log.Infof("DB - Purge of %s table took %s (%d rows)", t.table, time.Since(start), rows)
	}
}
