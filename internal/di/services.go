package di

import (
	"github.com/rs/zerolog"

	"github.com/aristath/fundledger/internal/clients/eastmoney"
	"github.com/aristath/fundledger/internal/config"
	"github.com/aristath/fundledger/internal/docstore"
	"github.com/aristath/fundledger/internal/modules/cash_flows"
	"github.com/aristath/fundledger/internal/modules/confirmation"
	"github.com/aristath/fundledger/internal/modules/ledger"
	"github.com/aristath/fundledger/internal/modules/market_hours"
	"github.com/aristath/fundledger/internal/modules/portfolio"
	"github.com/aristath/fundledger/internal/modules/settlement"
	"github.com/aristath/fundledger/internal/modules/signals"
	"github.com/aristath/fundledger/internal/services"
)

// InitializeServices builds repositories, domain components and services on top of the store
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) {
	loc := cfg.Location
	pc := container.Portfolio

	container.Mutator = docstore.NewMutator(container.Store, cfg.Store.RetryBudget, container.Metrics, log)

	// Repositories
	container.LedgerStore = ledger.NewStore(container.Mutator, cfg.Documents.Ledger, loc, log)
	container.SnapshotRepo = portfolio.NewSnapshotRepository(container.Mutator, cfg.Documents.Snapshot, log)
	container.CooldownStore = signals.NewCooldownStore(container.Mutator, cfg.Documents.State, pc.CooldownDays, log)

	// Calendar: configured overrides first, then the bundled State Council schedule
	container.Calendar = market_hours.NewCalendar(holidaySource(pc), log)
	container.Resolver = settlement.NewResolver(container.Calendar, loc, cfg.CutoffHour, cfg.CutoffMinute, log)

	container.QuoteClient = eastmoney.NewClient(cfg.Quotes, loc, log)

	container.Aggregator = portfolio.NewAggregator(portfolio.NewConfigClassifier(pc, log), log)
	container.Engine = signals.NewEngine(pc, container.CooldownStore, log)
	container.Performance = cash_flows.NewCalculator(log)
	container.Poller = confirmation.NewPoller(container.LedgerStore, container.QuoteClient, log)

	// Services
	container.TradeService = services.NewTradeService(container.LedgerStore, container.Resolver, pc, log)
	container.RefreshService = services.NewRefreshService(
		container.LedgerStore,
		container.Aggregator,
		container.SnapshotRepo,
		container.QuoteClient,
		container.Engine,
		container.CooldownStore,
		container.Performance,
		pc,
		container.Calendar,
		container.Metrics,
		loc,
		log,
	)
	container.SignalService = services.NewSignalService(container.CooldownStore, loc, log)
}

func holidaySource(pc *config.PortfolioConfig) market_hours.HolidaySource {
	if len(pc.Holidays) == 0 {
		return market_hours.LunarHolidaySource{}
	}
	overrides := make(market_hours.StaticHolidaySource, len(pc.Holidays))
	for _, h := range pc.Holidays {
		overrides[h.Date] = market_hours.DayInfo{Workday: h.Workday, Name: h.Name}
	}
	return market_hours.LayeredHolidaySource{overrides, market_hours.LunarHolidaySource{}}
}
