// Package di wires the application's dependencies.
package di

import (
	"github.com/aristath/fundledger/internal/clients/eastmoney"
	"github.com/aristath/fundledger/internal/config"
	"github.com/aristath/fundledger/internal/database"
	"github.com/aristath/fundledger/internal/docstore"
	"github.com/aristath/fundledger/internal/metrics"
	"github.com/aristath/fundledger/internal/modules/cash_flows"
	"github.com/aristath/fundledger/internal/modules/confirmation"
	"github.com/aristath/fundledger/internal/modules/ledger"
	"github.com/aristath/fundledger/internal/modules/market_hours"
	"github.com/aristath/fundledger/internal/modules/portfolio"
	"github.com/aristath/fundledger/internal/modules/settlement"
	"github.com/aristath/fundledger/internal/modules/signals"
	"github.com/aristath/fundledger/internal/scheduler"
	"github.com/aristath/fundledger/internal/services"
)

// Container holds all dependencies for the application.
// It is created by Wire() and passed to the server for access to services.
type Container struct {
	// Storage
	DocumentsDB *database.DB // nil unless the sqlite backend is selected
	Store       docstore.Store
	Mutator     *docstore.Mutator

	Metrics   *metrics.Recorder
	Portfolio *config.PortfolioConfig

	// Clients
	QuoteClient *eastmoney.Client

	// Repositories
	LedgerStore   *ledger.Store
	SnapshotRepo  *portfolio.SnapshotRepository
	CooldownStore *signals.CooldownStore

	// Domain
	Calendar    *market_hours.Calendar
	Resolver    *settlement.Resolver
	Aggregator  *portfolio.Aggregator
	Engine      *signals.Engine
	Performance *cash_flows.Calculator
	Poller      *confirmation.Poller

	// Services
	TradeService   *services.TradeService
	RefreshService *services.RefreshService
	SignalService  *services.SignalService

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the job instances for manual triggering via API
type JobInstances struct {
	Refresh    scheduler.Job
	Confirm    scheduler.Job
	Checkpoint scheduler.Job // nil unless the sqlite backend is selected
}

// Close releases the container's resources
func (c *Container) Close() error {
	if c.DocumentsDB != nil {
		return c.DocumentsDB.Close()
	}
	return nil
}
