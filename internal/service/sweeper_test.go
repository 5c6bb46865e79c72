package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/rental-contracts/internal/model"
)

func TestSweeperRunOnce(t *testing.T) {
	f := newFixture(t)
	other := &model.Property{
		ID:          uuid.New(),
		LandlordID:  f.landlord.UserID,
		Address:     "Calle Luna 3, Madrid",
		AreaM2:      48,
		Type:        model.PropertyTypeApartment,
		MonthlyRent: 900,
		Deposit:     1800,
		Available:   true,
		UpdatedAt:   start,
	}
	require.NoError(t, f.repo.SaveProperty(f.ctx, other))
	pending, err := f.matches.Submit(f.ctx, f.tenant, SubmitMatchInput{PropertyID: other.ID, Profile: validProfile()})
	require.NoError(t, err)
	invited, _ := f.invitedProcess()

	sweeper := NewSweeper(f.matches, f.contracts, time.Minute, zerolog.Nop())
	res, err := sweeper.RunOnce(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)

	f.clock.Advance(8 * 24 * time.Hour)
	res, err = sweeper.RunOnce(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Matches: 1, Invitations: 1}, res)

	m, err := f.repo.GetMatch(f.ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchStatusExpired, m.Status)
	p, err := f.repo.GetProcess(f.ctx, invited.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateExpired, p.State)

	res, err = sweeper.RunOnce(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	sweeper := NewSweeper(f.matches, f.contracts, time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
