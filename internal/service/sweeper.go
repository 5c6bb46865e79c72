package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper persists expiry that reads already enforce lazily. Each run is
// idempotent.
type Sweeper struct {
	matches   *MatchService
	contracts *ContractService
	interval  time.Duration
	log       zerolog.Logger
}

func NewSweeper(matches *MatchService, contracts *ContractService, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		matches:   matches,
		contracts: contracts,
		interval:  interval,
		log:       log.With().Str("component", "sweeper").Logger(),
	}
}

type SweepResult struct {
	Matches     int
	Invitations int
}

func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	n, err := s.matches.ExpireStale(ctx)
	result.Matches = n
	if err != nil {
		return result, err
	}
	n, err = s.contracts.ExpireInvitations(ctx)
	result.Invitations = n
	return result, err
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			result, err := s.RunOnce(ctx)
			if err != nil {
				s.log.Error().Err(err).Msg("sweep failed")
				continue
			}
			if result.Matches > 0 || result.Invitations > 0 {
				s.log.Info().
					Int("matches", result.Matches).
					Int("invitations", result.Invitations).
					Msg("sweep completed")
			}
		}
	}
}
