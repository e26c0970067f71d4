package external

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"storesync/config"
	"storesync/writebehind"
)

var sentryEnabled bool

func InitSentry() {
	if config.Config.Sentry.DSN == "" {
		return
	}
	log.Infof("Sentry init")

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              config.Config.Sentry.DSN,
		Debug:            false,
		EnableTracing:    config.Config.Sentry.EnableTracing,
		TracesSampleRate: config.Config.Sentry.TracesSampleRate,
		SampleRate:       config.Config.Sentry.SampleRate,
	})
	if err != nil {
		log.Errorf("Sentry Init Failed: %s", err)
		return
	}
	sentryEnabled = true
}

// ReportBufferStatus sends an event when a buffer gives up on saving its
// writes. Recoveries are only logged.
func ReportBufferStatus(status writebehind.BufferStatus) {
	if !sentryEnabled || !status.Unsaved {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("buffer", status.Name)
		scope.SetLevel(sentry.LevelError)
		scope.SetContext("write_behind", sentry.Context{
			"pending":              status.Pending,
			"distinct":             status.Distinct,
			"consecutive_failures": status.ConsecutiveFailures,
		})
		sentry.CaptureException(fmt.Errorf("write-behind [%s] has unsaved changes: %s", status.Name, status.LastError))
	})
}

// FlushSentry waits for queued events before exit
func FlushSentry() {
	if sentryEnabled {
		sentry.Flush(2 * time.Second)
	}
}
