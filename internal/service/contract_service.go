package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/rental-contracts/internal/checklist"
	"github.com/nurpe/rental-contracts/internal/clock"
	"github.com/nurpe/rental-contracts/internal/config"
	"github.com/nurpe/rental-contracts/internal/events"
	"github.com/nurpe/rental-contracts/internal/model"
	"github.com/nurpe/rental-contracts/internal/repository"
	"github.com/nurpe/rental-contracts/internal/signing"
	"github.com/nurpe/rental-contracts/internal/workflow"
)

type ContractService struct {
	core
	invitationTTL time.Duration
}

func NewContractService(repo repository.Repository, publisher events.Publisher, clk clock.Clock, cfg *config.Config, log zerolog.Logger) *ContractService {
	return &ContractService{
		core:          newCore(repo, publisher, clk, log.With().Str("component", "contracts").Logger()),
		invitationTTL: cfg.Workflow.InvitationTTL,
	}
}

// ProcessView is a process together with everything derived from it.
type ProcessView struct {
	Process            *model.ContractProcess
	TenantReviewStatus model.TenantReviewStatus
	Published          bool
	SigningStatus      model.SigningStatus
	Stage              model.StageView
	MissingDocuments   []string
	MissingSignatures  []string
}

type InviteResult struct {
	Process *model.ContractProcess
	// Token is handed to the tenant once; only its hash is stored.
	Token string
}

type UpdateDraftInput struct {
	Landlord        *model.Party
	Tenant          *model.Party
	Terms           *model.ContractTerms
	ExpectedVersion int64
}

type TenantReviewDecision string

const (
	TenantReviewApprove        TenantReviewDecision = "approve"
	TenantReviewRequestChanges TenantReviewDecision = "request_changes"
)

type TenantReviewInput struct {
	Decision        TenantReviewDecision
	Comment         string
	ExpectedVersion int64
}

type RespondObjectionsInput struct {
	Terms           *model.ContractTerms
	Comment         string
	ExpectedVersion int64
}

func (s *ContractService) Get(ctx context.Context, principal model.Principal, id uuid.UUID) (*ProcessView, error) {
	p, err := s.loadForParty(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, p)
}

func (s *ContractService) view(ctx context.Context, p *model.ContractProcess) (*ProcessView, error) {
	slots, err := s.repo.ListSlots(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.ListSignings(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &ProcessView{
		Process:            p,
		TenantReviewStatus: p.TenantReviewStatus(),
		Published:          p.Published(),
		SigningStatus:      signing.Status(records, p.GuaranteeType),
		Stage:              stageOf(p, slots, records),
		MissingDocuments:   checklist.MissingRequired(slots),
		MissingSignatures:  signing.Missing(records, p.GuaranteeType),
	}, nil
}

func (s *ContractService) History(ctx context.Context, principal model.Principal, id uuid.UUID) ([]model.HistoryEntry, error) {
	p, err := s.loadForParty(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	return p.History, nil
}

func (s *ContractService) Stage(ctx context.Context, principal model.Principal, id uuid.UUID) (model.StageView, error) {
	view, err := s.Get(ctx, principal, id)
	if err != nil {
		return model.StageView{}, err
	}
	return view.Stage, nil
}

// UpdateDraft edits parties and terms while the contract is open for edits.
func (s *ContractService) UpdateDraft(ctx context.Context, principal model.Principal, id uuid.UUID, input UpdateDraftInput) (*model.ContractProcess, error) {
	p, err := s.loadProcess(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireLandlord(p, principal); err != nil {
		return nil, err
	}
	if err := checkVersion(p.Version, input.ExpectedVersion); err != nil {
		return nil, err
	}
	if p.State != model.StateDraft && p.State != model.StateObjectionsPending {
		return nil, fmt.Errorf("%w: contract can be edited only in %s or %s, it is %s",
			ErrInvalidState, model.StateDraft, model.StateObjectionsPending, p.State)
	}
	if input.Landlord != nil {
		landlord := *input.Landlord
		landlord.UserID = p.Landlord.UserID
		p.Landlord = landlord
	}
	if input.Tenant != nil {
		tenant := *input.Tenant
		tenant.UserID = p.Tenant.UserID
		p.Tenant = tenant
	}
	if input.Terms != nil {
		if problems := input.Terms.MissingFields(); len(problems) > 0 {
			return nil, missing(ErrInvalidInput, "contract terms are invalid", problems)
		}
		p.Terms = *input.Terms
	}
	version := p.Version
	p.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateProcess(ctx, p, version); err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (s *ContractService) ScheduleVisit(ctx context.Context, principal model.Principal, id uuid.UUID, at time.Time, expectedVersion int64) (*model.ContractProcess, error) {
	p, err := s.loadForParty(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(p.Version, expectedVersion); err != nil {
		return nil, err
	}
	if p.State.IsTerminal() {
		return nil, fmt.Errorf("%w: process is %s", ErrInvalidState, p.State)
	}
	if p.Visit.Completed() {
		return nil, fmt.Errorf("%w: visit already completed", ErrInvalidState)
	}
	if at.IsZero() {
		return nil, fmt.Errorf("%w: visit time is required", ErrInvalidInput)
	}
	scheduled := at.UTC()
	version := p.Version
	p.Visit.ScheduledAt = &scheduled
	p.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateProcess(ctx, p, version); err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (s *ContractService) CompleteVisit(ctx context.Context, principal model.Principal, id uuid.UUID, expectedVersion int64) (*model.ContractProcess, error) {
	p, err := s.loadProcess(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireLandlord(p, principal); err != nil {
		return nil, err
	}
	if err := checkVersion(p.Version, expectedVersion); err != nil {
		return nil, err
	}
	if p.State.IsTerminal() {
		return nil, fmt.Errorf("%w: process is %s", ErrInvalidState, p.State)
	}
	if p.Visit.ScheduledAt == nil {
		return nil, missing(ErrInvalidState, "visit is not scheduled", []string{"visit.scheduled_at"})
	}
	if p.Visit.Completed() {
		return p, nil
	}
	now := s.clock.Now()
	version := p.Version
	p.Visit.CompletedAt = &now
	p.UpdatedAt = now
	if err := s.repo.UpdateProcess(ctx, p, version); err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// Invite moves a complete draft to TENANT_INVITED and issues a single-use
// invitation token.
func (s *ContractService) Invite(ctx context.Context, principal model.Principal, id uuid.UUID, expectedVersion int64) (*InviteResult, error) {
	p, err := s.loadProcess(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireLandlord(p, principal); err != nil {
		return nil, err
	}
	if err := checkVersion(p.Version, expectedVersion); err != nil {
		return nil, err
	}
	if _, err := workflow.Next(workflow.SnapshotOf(p), model.ActionInvite); err != nil {
		return nil, translate(err)
	}
	var problems []string
	problems = append(problems, p.Landlord.MissingFields("landlord")...)
	problems = append(problems, p.Property.MissingFields()...)
	problems = append(problems, p.Terms.MissingFields()...)
	if len(problems) > 0 {
		return nil, missing(ErrInvalidInput, "draft is incomplete", problems)
	}

	token, err := newInvitationToken()
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	p.Invitation = &model.Invitation{
		TokenHash: HashToken(token),
		ExpiresAt: now.Add(s.invitationTTL),
	}
	if _, err := s.transition(ctx, p, workflow.Command{
		Action: model.ActionInvite,
		Actor:  principal.Actor(),
		At:     now,
	}); err != nil {
		return nil, err
	}
	return &InviteResult{Process: p, Token: token}, nil
}

func newInvitationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invitation token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// AcceptInvitation consumes the invitation token exactly once.
func (s *ContractService) AcceptInvitation(ctx context.Context, principal model.Principal, token string) (*model.ContractProcess, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: token is required", ErrInvalidInput)
	}
	p, err := s.repo.GetProcessByInvitation(ctx, HashToken(token))
	if err != nil {
		return nil, translate(err)
	}
	if err := requireTenant(p, principal); err != nil {
		return nil, err
	}
	inv := p.Invitation
	if inv.ConsumedAt != nil {
		return nil, fmt.Errorf("%w: invitation was already accepted", ErrTokenReused)
	}
	now := s.clock.Now()
	if !now.Before(inv.ExpiresAt) {
		return nil, fmt.Errorf("%w: invitation expired at %s", ErrExpired, inv.ExpiresAt.Format(time.RFC3339))
	}
	consumed := now
	inv.ConsumedAt = &consumed
	if _, err := s.transition(ctx, p, workflow.Command{
		Action: model.ActionAcceptInvitation,
		Actor:  principal.Actor(),
		At:     now,
	}); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ContractService) SubmitTenantReview(ctx context.Context, principal model.Principal, id uuid.UUID, input TenantReviewInput) (*model.ContractProcess, error) {
	var action model.WorkflowAction
	switch input.Decision {
	case TenantReviewApprove:
		action = model.ActionTenantApprove
	case TenantReviewRequestChanges:
		action = model.ActionRequestChanges
	default:
		return nil, fmt.Errorf("%w: decision must be %q or %q", ErrInvalidInput, TenantReviewApprove, TenantReviewRequestChanges)
	}
	p, err := s.loadProcess(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireTenant(p, principal); err != nil {
		return nil, err
	}
	return s.command(ctx, p, principal, action, input.Comment, input.ExpectedVersion)
}

// RespondToObjections applies the landlord's revised terms and hands the
// contract back to the tenant. Every round is kept in the history.
func (s *ContractService) RespondToObjections(ctx context.Context, principal model.Principal, id uuid.UUID, input RespondObjectionsInput) (*model.ContractProcess, error) {
	p, err := s.loadProcess(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireLandlord(p, principal); err != nil {
		return nil, err
	}
	if input.Terms != nil {
		if problems := input.Terms.MissingFields(); len(problems) > 0 {
			return nil, missing(ErrInvalidInput, "contract terms are invalid", problems)
		}
		if p.State == model.StateObjectionsPending {
			p.Terms = *input.Terms
		}
	}
	return s.command(ctx, p, principal, model.ActionRespondObjections, input.Comment, input.ExpectedVersion)
}

func (s *ContractService) ApproveContract(ctx context.Context, principal model.Principal, id uuid.UUID, expectedVersion int64) (*model.ContractProcess, error) {
	p, err := s.loadProcess(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireLandlord(p, principal); err != nil {
		return nil, err
	}
	return s.command(ctx, p, principal, model.ActionLandlordApprove, "", expectedVersion)
}

// Publish hands over the keys. It is the final, irreversible step.
func (s *ContractService) Publish(ctx context.Context, principal model.Principal, id uuid.UUID, expectedVersion int64) (*model.ContractProcess, error) {
	p, err := s.loadProcess(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireLandlord(p, principal); err != nil {
		return nil, err
	}
	return s.command(ctx, p, principal, model.ActionPublish, "", expectedVersion)
}

func (s *ContractService) Cancel(ctx context.Context, principal model.Principal, id uuid.UUID, reason string, expectedVersion int64) (*model.ContractProcess, error) {
	p, err := s.loadForParty(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	return s.command(ctx, p, principal, model.ActionCancel, reason, expectedVersion)
}

func (s *ContractService) Terminate(ctx context.Context, principal model.Principal, id uuid.UUID, reason string, expectedVersion int64) (*model.ContractProcess, error) {
	p, err := s.loadForParty(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	return s.command(ctx, p, principal, model.ActionTerminate, reason, expectedVersion)
}

func (s *ContractService) command(ctx context.Context, p *model.ContractProcess, principal model.Principal, action model.WorkflowAction, comment string, expectedVersion int64) (*model.ContractProcess, error) {
	if err := checkVersion(p.Version, expectedVersion); err != nil {
		return nil, err
	}
	if _, err := s.transition(ctx, p, workflow.Command{
		Action:  action,
		Actor:   principal.Actor(),
		At:      s.clock.Now(),
		Comment: comment,
	}); err != nil {
		return nil, err
	}
	return p, nil
}

// ExpireInvitations closes processes whose invitation lapsed before the
// tenant accepted it.
func (s *ContractService) ExpireInvitations(ctx context.Context) (int, error) {
	invited, err := s.repo.ListProcessesByState(ctx, model.StateTenantInvited)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	system := model.SystemPrincipal().Actor()
	expired := 0
	for i := range invited {
		p := &invited[i]
		if p.Invitation == nil || p.Invitation.ConsumedAt != nil || now.Before(p.Invitation.ExpiresAt) {
			continue
		}
		_, err := s.transition(ctx, p, workflow.Command{
			Action:  model.ActionExpire,
			Actor:   system,
			At:      now,
			Comment: "invitation expired",
		})
		if err != nil {
			s.log.Warn().Err(err).Str("process_id", p.ID.String()).Msg("failed to expire invitation")
			continue
		}
		expired++
	}
	return expired, nil
}
