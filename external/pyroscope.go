package external

import (
	"os"
	"runtime"

	"github.com/grafana/pyroscope-go"
	log "github.com/sirupsen/logrus"

	"storesync/config"
)

func InitPyroscope() {
	cfg := config.Config.Pyroscope
	if cfg.ServerAddress == "" {
		return
	}
	log.Infof("Pyroscope starting")

	runtime.SetMutexProfileFraction(cfg.MutexProfileFraction)
	runtime.SetBlockProfileRate(cfg.BlockProfileRate)

	pyroscopeConfig := pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		Tags: map[string]string{
			"hostname": os.Getenv("HOSTNAME"),
			"driver":   config.Config.Database.Driver,
		},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
			pyroscope.ProfileMutexDuration,
			pyroscope.ProfileBlockDuration,
		},
	}

	if cfg.Logger {
		pyroscopeConfig.Logger = pyroscope.StandardLogger
	}

	if cfg.ApiKey != "" {
		pyroscopeConfig.HTTPHeaders = map[string]string{
			"Authorization": "Bearer " + cfg.ApiKey,
		}
	} else if cfg.BasicAuthUser != "" {
		pyroscopeConfig.BasicAuthUser = cfg.BasicAuthUser
		pyroscopeConfig.BasicAuthPassword = cfg.BasicAuthPassword
	}

	if _, err := pyroscope.Start(pyroscopeConfig); err != nil {
		log.Errorf("Pyroscope Init Failed: %s", err)
	}
}
