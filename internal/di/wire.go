package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/fundledger/internal/config"
	"github.com/aristath/fundledger/internal/metrics"
)

// Wire initializes all dependencies and returns a fully configured container.
// Order of operations:
// 1. Load the portfolio definition
// 2. Open the document store
// 3. Initialize repositories and services
// 4. Register jobs
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, *JobInstances, error) {
	portfolioCfg, err := config.LoadPortfolio(cfg.PortfolioConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load portfolio: %w", err)
	}

	container := &Container{
		Portfolio: portfolioCfg,
		Metrics:   metrics.New(),
	}

	if err := InitializeStore(ctx, container, cfg, log); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize document store: %w", err)
	}

	InitializeServices(container, cfg, log)

	jobs, err := RegisterJobs(container, cfg, log)
	if err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().
		Int("asset_classes", len(portfolioCfg.AssetClasses)).
		Msg("Dependency injection wiring completed successfully")

	return container, jobs, nil
}
