package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/fundledger/internal/domain"
	"github.com/aristath/fundledger/internal/services"
)

// Refresher rebuilds the holdings snapshot and evaluates signals
type Refresher interface {
	Refresh(ctx context.Context) (*services.RefreshReport, error)
}

// ConfirmationPoller confirms pending rows whose valuation is published
type ConfirmationPoller interface {
	Poll(ctx context.Context, today time.Time) ([]domain.Transaction, error)
}

// ConfirmObserver counts confirmed rows
type ConfirmObserver interface {
	ObserveConfirmed(n int)
}

// Checkpointer is a SQLite database that can checkpoint its WAL
type Checkpointer interface {
	Name() string
	WALCheckpoint(mode string) error
}

// RefreshJob runs the portfolio refresh cycle
type RefreshJob struct {
	refresher Refresher
	log       zerolog.Logger
}

// NewRefreshJob creates a RefreshJob
func NewRefreshJob(refresher Refresher, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{refresher: refresher, log: log.With().Str("job", "refresh").Logger()}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "refresh"
}

// Run executes one refresh
func (j *RefreshJob) Run(ctx context.Context) error {
	report, err := j.refresher.Refresh(ctx)
	if err != nil {
		return err
	}
	for _, s := range report.Signals {
		if !s.IsPrimary {
			continue
		}
		j.log.Info().
			Str("asset_class", s.AssetClass).
			Str("signal_type", string(s.SignalType)).
			Str("action", string(s.Action)).
			Str("urgency", string(s.Urgency)).
			Msg("Signal pending review")
	}
	return nil
}

// ConfirmJob polls pending transactions for published valuations
type ConfirmJob struct {
	poller   ConfirmationPoller
	observer ConfirmObserver
	loc      *time.Location
	now      func() time.Time
	log      zerolog.Logger
}

// NewConfirmJob creates a ConfirmJob. observer may be nil.
func NewConfirmJob(poller ConfirmationPoller, observer ConfirmObserver, loc *time.Location, log zerolog.Logger) *ConfirmJob {
	if loc == nil {
		loc = time.Local
	}
	return &ConfirmJob{
		poller:   poller,
		observer: observer,
		loc:      loc,
		now:      time.Now,
		log:      log.With().Str("job", "confirm").Logger(),
	}
}

// Name returns the job name
func (j *ConfirmJob) Name() string {
	return "confirm_pending"
}

// Run confirms every due row that has a published valuation
func (j *ConfirmJob) Run(ctx context.Context) error {
	confirmed, err := j.poller.Poll(ctx, j.now().In(j.loc))
	if err != nil {
		return err
	}
	if j.observer != nil {
		j.observer.ObserveConfirmed(len(confirmed))
	}
	if len(confirmed) > 0 {
		j.log.Info().Int("confirmed", len(confirmed)).Msg("Confirmed pending transactions")
	}
	return nil
}

// CheckpointJob truncates the WAL of the SQLite document store
type CheckpointJob struct {
	db  Checkpointer
	log zerolog.Logger
}

// NewCheckpointJob creates a CheckpointJob
func NewCheckpointJob(db Checkpointer, log zerolog.Logger) *CheckpointJob {
	return &CheckpointJob{db: db, log: log.With().Str("job", "wal_checkpoint").Logger()}
}

// Name returns the job name
func (j *CheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run checkpoints the WAL
func (j *CheckpointJob) Run(_ context.Context) error {
	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		return err
	}
	j.log.Debug().Str("database", j.db.Name()).Msg("WAL checkpoint complete")
	return nil
}
