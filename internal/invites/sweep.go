package invites

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// SweepExpired flips pending invites past their expiry to the expired
// status across all companies. Pure bookkeeping: every reader already
// treats stale pending rows as invalid, so the sweep only keeps listings
// tidy. Runs nightly from the scheduler in main.
func SweepExpired(ctx context.Context, pool *pgxpool.Pool) error {
	tag, err := pool.Exec(ctx, `
		UPDATE tech_invites
		SET status = 'expired'
		WHERE status = 'pending'
		  AND expires_at <= NOW()
	`)
	if err != nil {
		return fmt.Errorf("failed to sweep expired invites: %w", err)
	}

	if tag.RowsAffected() > 0 {
		log.Info().Int64("count", tag.RowsAffected()).Msg("Expired stale invites")
	}

	return nil
}
