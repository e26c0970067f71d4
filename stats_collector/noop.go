package stats_collector

var _ StatsCollector = (*noopCollector)(nil)

type noopCollector struct {
}

func (col *noopCollector) IncIpcRequests(string, string)               {}
func (col *noopCollector) IncWriteBehindSquashed(string)               {}
func (col *noopCollector) SetWriteBehindQueueDepth(string, float64)    {}
func (col *noopCollector) IncWriteBehindWrites(string)                 {}
func (col *noopCollector) IncWriteBehindErrors(string)                 {}
func (col *noopCollector) IncWriteBehindBatches(string)                {}
func (col *noopCollector) ObserveWriteBehindBatchSize(string, float64) {}
func (col *noopCollector) ObserveWriteBehindBatchTime(string, float64) {}
func (col *noopCollector) ObserveWriteBehindLatency(string, float64)   {}
func (col *noopCollector) SetWriteBehindUnsaved(string, bool)          {}
func (col *noopCollector) IncCleanupPurged(string, float64)            {}

func NewNoopStatsCollector() StatsCollector {
	return &noopCollector{}
}
