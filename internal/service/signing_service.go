package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/rental-contracts/internal/clock"
	"github.com/nurpe/rental-contracts/internal/events"
	"github.com/nurpe/rental-contracts/internal/model"
	"github.com/nurpe/rental-contracts/internal/repository"
	"github.com/nurpe/rental-contracts/internal/signing"
	"github.com/nurpe/rental-contracts/internal/workflow"
)

// SigningService coordinates the ordered signing steps. It guarantees order
// and completeness only; identity assurance belongs to the caller's auth.
type SigningService struct {
	core
}

func NewSigningService(repo repository.Repository, publisher events.Publisher, clk clock.Clock, log zerolog.Logger) *SigningService {
	return &SigningService{core: newCore(repo, publisher, clk, log.With().Str("component", "signing").Logger())}
}

type SigningView struct {
	Status   model.SigningStatus
	Records  []model.SigningRecord
	Missing  []string
	Complete bool
}

func ParseSigningRole(raw string) (model.SigningRole, error) {
	switch role := model.SigningRole(raw); role {
	case model.SigningLandlord, model.SigningTenant, model.SigningCosigner:
		return role, nil
	default:
		return "", fmt.Errorf("%w: unknown signing role %q", ErrInvalidInput, raw)
	}
}

// authorizeSigner checks the principal may sign in the given role. The
// cosigner signs on the tenant's device and session.
func authorizeSigner(p *model.ContractProcess, principal model.Principal, role model.SigningRole) error {
	switch role {
	case model.SigningLandlord:
		return requireLandlord(p, principal)
	case model.SigningTenant, model.SigningCosigner:
		return requireTenant(p, principal)
	default:
		return fmt.Errorf("%w: unknown signing role %q", ErrInvalidInput, role)
	}
}

func (s *SigningService) prepare(ctx context.Context, principal model.Principal, processID uuid.UUID, role model.SigningRole) (*model.ContractProcess, []model.SigningRecord, error) {
	p, err := s.loadProcess(ctx, processID)
	if err != nil {
		return nil, nil, err
	}
	if err := authorizeSigner(p, principal, role); err != nil {
		return nil, nil, err
	}
	records, err := s.repo.ListSignings(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	// Order first: a tenant signing ahead of the landlord is always an order
	// violation, whatever state the contract is in.
	if err := signing.CheckOrder(role, p.GuaranteeType, records); err != nil {
		return nil, nil, translate(err)
	}
	if p.State != model.StateReadyToSign {
		return nil, nil, fmt.Errorf("%w: signing needs %s, process is %s", ErrInvalidState, model.StateReadyToSign, p.State)
	}
	return p, records, nil
}

// BeginSigning opens the signing step for a role. Calling it again returns
// the existing record.
func (s *SigningService) BeginSigning(ctx context.Context, principal model.Principal, processID uuid.UUID, role model.SigningRole) (*model.SigningRecord, error) {
	p, records, err := s.prepare(ctx, principal, processID, role)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	rec, created := signing.Begin(records, model.SigningRecord{
		ProcessID: p.ID,
		Role:      role,
		SignerID:  principal.UserID,
		StartedAt: now,
	})
	if !created {
		return &rec, nil
	}
	version := p.Version
	p.UpdatedAt = now
	if err := s.repo.SaveSigning(ctx, &rec, p, version); err != nil {
		return nil, translate(err)
	}
	s.log.Info().Str("process_id", p.ID.String()).Str("role", string(role)).Msg("signing started")
	return &rec, nil
}

// CompleteSigning records a verified signature. The last required signature
// moves the contract to FULLY_SIGNED in the same write.
func (s *SigningService) CompleteSigning(ctx context.Context, principal model.Principal, processID uuid.UUID, role model.SigningRole, payload model.SignaturePayload) (*ProcessView, error) {
	p, records, err := s.prepare(ctx, principal, processID, role)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	rec, _ := signing.Begin(records, model.SigningRecord{
		ProcessID: p.ID,
		Role:      role,
		SignerID:  principal.UserID,
		StartedAt: now,
	})
	if err := signing.Complete(&rec, payload, now); err != nil {
		return nil, translate(err)
	}

	updated := replaceRecord(records, rec)
	version := p.Version
	p.UpdatedAt = now
	var entry *model.HistoryEntry
	if signing.IsComplete(updated, p.GuaranteeType) {
		applied, err := workflow.Apply(p, workflow.Command{
			Action: model.ActionCompleteSigning,
			Actor:  principal.Actor(),
			At:     now,
		}, workflow.Gates{SigningComplete: true})
		if err != nil {
			return nil, translate(err)
		}
		if err := workflow.Verify(p); err != nil {
			return nil, err
		}
		entry = &applied
	}
	if err := s.repo.SaveSigning(ctx, &rec, p, version); err != nil {
		return nil, translate(err)
	}

	s.log.Info().Str("process_id", p.ID.String()).Str("role", string(role)).Msg("signature completed")
	s.events.Publish(ctx, model.Event{
		Type:      model.EventSigningCompleted,
		ProcessID: p.ID,
		SubjectID: p.ID,
		From:      string(signing.Status(records, p.GuaranteeType)),
		To:        string(signing.Status(updated, p.GuaranteeType)),
		Actor:     principal.Actor(),
		At:        now,
	})
	if entry != nil {
		s.logTransition(p, *entry)
		s.publishTransition(ctx, p, *entry)
	}

	slots, err := s.repo.ListSlots(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &ProcessView{
		Process:            p,
		TenantReviewStatus: p.TenantReviewStatus(),
		Published:          p.Published(),
		SigningStatus:      signing.Status(updated, p.GuaranteeType),
		Stage:              stageOf(p, slots, updated),
		MissingSignatures:  signing.Missing(updated, p.GuaranteeType),
	}, nil
}

func replaceRecord(records []model.SigningRecord, rec model.SigningRecord) []model.SigningRecord {
	out := make([]model.SigningRecord, 0, len(records)+1)
	replaced := false
	for _, r := range records {
		if r.Role == rec.Role {
			out = append(out, rec)
			replaced = true
			continue
		}
		out = append(out, r)
	}
	if !replaced {
		out = append(out, rec)
	}
	return out
}

func (s *SigningService) Status(ctx context.Context, principal model.Principal, processID uuid.UUID) (*SigningView, error) {
	p, err := s.loadForParty(ctx, principal, processID)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.ListSignings(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &SigningView{
		Status:   signing.Status(records, p.GuaranteeType),
		Records:  records,
		Missing:  signing.Missing(records, p.GuaranteeType),
		Complete: signing.IsComplete(records, p.GuaranteeType),
	}, nil
}
