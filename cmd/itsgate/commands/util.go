package commands

import (
	"fmt"
	"sort"

	"github.com/shmkit/itsgate/internal/logger"
	"github.com/shmkit/itsgate/pkg/config"
	"github.com/shmkit/itsgate/pkg/directory/store"
	"github.com/shmkit/itsgate/pkg/gateway"
	"github.com/shmkit/itsgate/pkg/gateway/wire"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// openInstances connects every configured directory and pairs it with its
// time-series parameters. The returned closer shuts the stores down.
func openInstances(cfg *config.Config) (gateway.Instances, func(), error) {
	instances := make(gateway.Instances, len(cfg.Instances))
	var stores []*store.Store

	closeAll := func() {
		for _, st := range stores {
			if err := st.Close(); err != nil {
				logger.Warn("closing directory store", "error", err)
			}
		}
	}

	for selector, inst := range cfg.Instances {
		dirCfg := inst.Directory
		st, err := store.New(&dirCfg)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("opening directory for instance %s: %w", selector, err)
		}
		stores = append(stores, st)

		instances[selector] = &gateway.Instance{
			Directory: st,
			TimeSeries: wire.ConnectionInfo{
				Host:   inst.TimeSeries.Host,
				Port:   inst.TimeSeries.Port,
				Token:  inst.TimeSeries.Token,
				Org:    inst.TimeSeries.Org,
				Bucket: inst.TimeSeries.Bucket,
			},
		}
	}
	return instances, closeAll, nil
}

// openInstance opens a single configured instance for catalog and user
// commands.
func openInstance(cfg *config.Config, selector string) (*store.Store, error) {
	inst, ok := cfg.Instances[selector]
	if !ok {
		selectors := make([]string, 0, len(cfg.Instances))
		for s := range cfg.Instances {
			selectors = append(selectors, s)
		}
		sort.Strings(selectors)
		return nil, fmt.Errorf("unknown instance %q (configured: %v)", selector, selectors)
	}
	dirCfg := inst.Directory
	return store.New(&dirCfg)
}
