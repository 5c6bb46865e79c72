package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/rental-contracts/internal/checklist"
	"github.com/nurpe/rental-contracts/internal/clock"
	"github.com/nurpe/rental-contracts/internal/events"
	"github.com/nurpe/rental-contracts/internal/model"
	"github.com/nurpe/rental-contracts/internal/repository"
	"github.com/nurpe/rental-contracts/internal/signing"
	"github.com/nurpe/rental-contracts/internal/workflow"
)

type core struct {
	repo   repository.Repository
	events events.Publisher
	clock  clock.Clock
	log    zerolog.Logger
}

func newCore(repo repository.Repository, publisher events.Publisher, clk clock.Clock, log zerolog.Logger) core {
	return core{repo: repo, events: publisher, clock: clk, log: log}
}

func (c core) loadProcess(ctx context.Context, id uuid.UUID) (*model.ContractProcess, error) {
	p, err := c.repo.GetProcess(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (c core) loadForParty(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.ContractProcess, error) {
	p, err := c.loadProcess(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.IsSystem() && !p.IsParty(principal) {
		return nil, ErrPermissionDenied
	}
	return p, nil
}

func requireLandlord(p *model.ContractProcess, principal model.Principal) error {
	if !principal.ActsForLandlord(p.Landlord.UserID) {
		return fmt.Errorf("%w: only the landlord may do this", ErrPermissionDenied)
	}
	return nil
}

func requireTenant(p *model.ContractProcess, principal model.Principal) error {
	if !principal.IsTenant() || principal.UserID != p.Tenant.UserID {
		return fmt.Errorf("%w: only the tenant may do this", ErrPermissionDenied)
	}
	return nil
}

func checkVersion(current, expected int64) error {
	if expected != 0 && expected != current {
		return fmt.Errorf("%w: version %d is stale, current is %d", ErrConflict, expected, current)
	}
	return nil
}

func (c core) gates(ctx context.Context, p *model.ContractProcess) (workflow.Gates, error) {
	slots, err := c.repo.ListSlots(ctx, p.ID)
	if err != nil {
		return workflow.Gates{}, err
	}
	records, err := c.repo.ListSignings(ctx, p.ID)
	if err != nil {
		return workflow.Gates{}, err
	}
	g := workflow.Gates{
		ChecklistComplete: len(slots) > 0 && checklist.IsComplete(slots),
		MissingDocuments:  checklist.MissingRequired(slots),
		SigningComplete:   signing.IsComplete(records, p.GuaranteeType),
		MissingSignatures: signing.Missing(records, p.GuaranteeType),
	}
	if len(slots) == 0 {
		g.MissingDocuments = []string{"checklist"}
	}
	return g, nil
}

// transition applies one workflow command and persists it. The gate inputs
// were read at the process's version, so a slot write in between fails the
// update with ErrConflict.
func (c core) transition(ctx context.Context, p *model.ContractProcess, cmd workflow.Command) (model.HistoryEntry, error) {
	gates, err := c.gates(ctx, p)
	if err != nil {
		return model.HistoryEntry{}, err
	}
	version := p.Version
	entry, err := workflow.Apply(p, cmd, gates)
	if err != nil {
		return model.HistoryEntry{}, translate(err)
	}
	if err := workflow.Verify(p); err != nil {
		return model.HistoryEntry{}, err
	}
	if entry.To.IsClosed() {
		err = c.repo.CloseProcess(ctx, p, version)
	} else {
		err = c.repo.UpdateProcess(ctx, p, version)
	}
	if err != nil {
		return model.HistoryEntry{}, translate(err)
	}
	c.logTransition(p, entry)
	c.publishTransition(ctx, p, entry)
	return entry, nil
}

func (c core) logTransition(p *model.ContractProcess, entry model.HistoryEntry) {
	c.log.Info().
		Str("process_id", p.ID.String()).
		Str("action", string(entry.Action)).
		Str("from", string(entry.From)).
		Str("to", string(entry.To)).
		Str("actor_role", string(entry.Actor.Role)).
		Int64("version", p.Version).
		Msg("contract transition")
}

func (c core) publishTransition(ctx context.Context, p *model.ContractProcess, entry model.HistoryEntry) {
	c.events.Publish(ctx, model.Event{
		Type:      model.EventContractStateChanged,
		ProcessID: p.ID,
		SubjectID: p.ID,
		From:      string(entry.From),
		To:        string(entry.To),
		Actor:     entry.Actor,
		At:        entry.At,
	})
	if entry.To == model.StatePublished {
		c.events.Publish(ctx, model.Event{
			Type:      model.EventContractPublished,
			ProcessID: p.ID,
			SubjectID: p.ID,
			From:      string(entry.From),
			To:        string(entry.To),
			Actor:     entry.Actor,
			At:        entry.At,
		})
	}
}

func stageOf(p *model.ContractProcess, slots []model.DocumentSlot, records []model.SigningRecord) model.StageView {
	return workflow.Aggregate(workflow.StageInput{
		Process:              p,
		ChecklistInitialized: len(slots) > 0,
		ChecklistComplete:    checklist.IsComplete(slots),
		Signing:              signing.Status(records, p.GuaranteeType),
	})
}

func acceptsDocumentChanges(state model.ContractState) bool {
	switch state {
	case model.StateReadyToSign, model.StateFullySigned, model.StatePublished:
		return false
	default:
		return !state.IsClosed()
	}
}
