package access

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ReconcilerStore defines the bulk operations the reconciler needs.
type ReconcilerStore interface {
	ClearExpiredBans(ctx context.Context, now time.Time) (int64, error)
}

// Reconciler sweeps stale ban state. Enforcement never trusts the stored
// flag alone, so the sweep is about keeping listings honest, not about
// correctness of access checks.
type Reconciler struct {
	store  ReconcilerStore
	logger zerolog.Logger
}

// NewReconciler creates a ban reconciler.
func NewReconciler(store ReconcilerStore, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger.With().Str("component", "ban-reconciler").Logger(),
	}
}

// Run clears ban fields for every user whose time-boxed ban has lapsed.
func (r *Reconciler) Run(ctx context.Context) {
	cleared, err := r.store.ClearExpiredBans(ctx, time.Now())
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to clear expired bans")
		return
	}
	if cleared > 0 {
		r.logger.Info().Int64("cleared", cleared).Msg("expired bans cleared")
	}
}
