package stats_collector

import (
	"github.com/Depado/ginprom"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"storesync/config"
)

type StatsCollector interface {
	IncIpcRequests(kind, status string)
	IncWriteBehindSquashed(name string)
	SetWriteBehindQueueDepth(name string, depth float64)
	IncWriteBehindWrites(name string)
	IncWriteBehindErrors(name string)
	IncWriteBehindBatches(name string)
	ObserveWriteBehindBatchSize(name string, size float64)
	ObserveWriteBehindBatchTime(name string, seconds float64)
	ObserveWriteBehindLatency(name string, seconds float64)
	SetWriteBehindUnsaved(name string, unsaved bool)
	IncCleanupPurged(table string, rows float64)
}

type Config interface {
	GetPrometheus() config.Prometheus
}

func GetStatsCollector(cfg Config, ginEngine *gin.Engine) StatsCollector {
	promSettings := cfg.GetPrometheus()
	if !promSettings.Enabled {
		return NewNoopStatsCollector()
	}
	log.Infof("Prometheus init")
	if ginEngine != nil {
		p := ginprom.New(
			ginprom.Engine(ginEngine),
			ginprom.Subsystem("gin"),
			ginprom.Path("/metrics"),
			ginprom.Token(promSettings.Token),
			ginprom.BucketSize(promSettings.BucketSize),
		)
		ginEngine.Use(p.Instrument())
	}
	return NewPrometheusCollector()
}
