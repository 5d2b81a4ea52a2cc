package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/fundledger/internal/config"
	"github.com/aristath/fundledger/internal/scheduler"
)

// RegisterJobs creates the background jobs and, when scheduling is enabled, registers them
// with the container's scheduler
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	instances := &JobInstances{
		Refresh: scheduler.NewRefreshJob(container.RefreshService, log),
		Confirm: scheduler.NewConfirmJob(container.Poller, container.Metrics, cfg.Location, log),
	}
	if container.DocumentsDB != nil {
		instances.Checkpoint = scheduler.NewCheckpointJob(container.DocumentsDB, log)
	}

	container.Scheduler = scheduler.New(cfg.Location, log)
	if cfg.Schedules == nil || !cfg.Schedules.Enabled {
		log.Info().Msg("Scheduled jobs disabled")
		return instances, nil
	}

	if err := container.Scheduler.AddJob(cfg.Schedules.Refresh, instances.Refresh); err != nil {
		return nil, fmt.Errorf("failed to register refresh job: %w", err)
	}
	if err := container.Scheduler.AddJob(cfg.Schedules.Confirm, instances.Confirm); err != nil {
		return nil, fmt.Errorf("failed to register confirm job: %w", err)
	}
	if instances.Checkpoint != nil {
		if err := container.Scheduler.AddJob(cfg.Schedules.Checkpoint, instances.Checkpoint); err != nil {
			return nil, fmt.Errorf("failed to register checkpoint job: %w", err)
		}
	}
	return instances, nil
}
