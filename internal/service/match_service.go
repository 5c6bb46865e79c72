package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/rental-contracts/internal/clock"
	"github.com/nurpe/rental-contracts/internal/config"
	"github.com/nurpe/rental-contracts/internal/events"
	"github.com/nurpe/rental-contracts/internal/model"
	"github.com/nurpe/rental-contracts/internal/repository"
)

type MatchService struct {
	core
	ttl time.Duration
}

func NewMatchService(repo repository.Repository, publisher events.Publisher, clk clock.Clock, cfg *config.Config, log zerolog.Logger) *MatchService {
	return &MatchService{
		core: newCore(repo, publisher, clk, log.With().Str("component", "matches").Logger()),
		ttl:  cfg.Workflow.MatchTTL,
	}
}

type SubmitMatchInput struct {
	PropertyID uuid.UUID
	Priority   model.MatchPriority
	Profile    model.ApplicantProfile
	Message    string
}

type AcceptMatchResult struct {
	Match   *model.MatchRequest
	Process *model.ContractProcess
}

func (s *MatchService) Submit(ctx context.Context, principal model.Principal, input SubmitMatchInput) (*model.MatchRequest, error) {
	if !principal.IsTenant() {
		return nil, fmt.Errorf("%w: only tenants submit interest", ErrPermissionDenied)
	}
	if input.PropertyID == uuid.Nil {
		return nil, fmt.Errorf("%w: property_id is required", ErrInvalidInput)
	}
	if err := validateProfile(input.Profile); err != nil {
		return nil, err
	}
	priority := input.Priority
	switch priority {
	case "":
		priority = model.MatchPriorityNormal
	case model.MatchPriorityLow, model.MatchPriorityNormal, model.MatchPriorityHigh:
	default:
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, priority)
	}

	property, err := s.repo.GetProperty(ctx, input.PropertyID)
	if err != nil {
		return nil, translate(err)
	}
	if !property.Available {
		return nil, fmt.Errorf("%w: property is not available", ErrInvalidInput)
	}

	now := s.clock.Now()
	existing, err := s.repo.ListMatchesByTenant(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	for _, m := range existing {
		if m.PropertyID == property.ID && !m.EffectiveStatus(now).IsTerminal() {
			return nil, fmt.Errorf("%w: an open request for this property already exists (%s)", ErrInvalidInput, m.Code)
		}
	}

	match := &model.MatchRequest{
		ID:         uuid.New(),
		Code:       newMatchCode(),
		PropertyID: property.ID,
		TenantID:   principal.UserID,
		LandlordID: property.LandlordID,
		Status:     model.MatchStatusPending,
		Priority:   priority,
		Profile:    input.Profile,
		Message:    strings.TrimSpace(input.Message),
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateMatch(ctx, match); err != nil {
		return nil, translate(err)
	}
	s.log.Info().
		Str("match_id", match.ID.String()).
		Str("code", match.Code).
		Str("property_id", property.ID.String()).
		Msg("match submitted")
	return match, nil
}

func validateProfile(p model.ApplicantProfile) error {
	var problems []string
	if p.MonthlyIncome < 0 {
		problems = append(problems, "profile.monthly_income")
	}
	if !p.EmploymentType.Valid() {
		problems = append(problems, "profile.employment_type")
	}
	if p.Occupants < 1 {
		problems = append(problems, "profile.occupants")
	}
	if len(problems) > 0 {
		return missing(ErrInvalidInput, "applicant profile is incomplete", problems)
	}
	return nil
}

func newMatchCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "M-" + strings.ToUpper(raw[:6])
}

func (s *MatchService) loadForLandlord(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.MatchRequest, error) {
	m, err := s.repo.GetMatch(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !principal.ActsForLandlord(m.LandlordID) {
		return nil, fmt.Errorf("%w: only the landlord may decide on this request", ErrPermissionDenied)
	}
	return m, nil
}

// checkOpen rejects decisions on requests that are terminal, including those
// that expired but were not swept yet.
func checkOpen(m *model.MatchRequest, now time.Time) error {
	status := m.EffectiveStatus(now)
	switch {
	case status == model.MatchStatusExpired:
		return fmt.Errorf("%w: request %s expired at %s", ErrExpired, m.Code, m.ExpiresAt.Format(time.RFC3339))
	case status.IsTerminal():
		return fmt.Errorf("%w: request %s is %s", ErrInvalidState, m.Code, status)
	default:
		return nil
	}
}

func (s *MatchService) MarkViewed(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.MatchRequest, error) {
	m, err := s.loadForLandlord(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := checkOpen(m, now); err != nil {
		return nil, err
	}
	if m.Status == model.MatchStatusViewed {
		return m, nil
	}
	version := m.Version
	m.Status = model.MatchStatusViewed
	m.UpdatedAt = now
	if err := s.repo.UpdateMatch(ctx, m, version); err != nil {
		return nil, translate(err)
	}
	return m, nil
}

// Accept turns the request into a contract process in DRAFT. Both writes and
// the property's availability flip happen in one transaction.
func (s *MatchService) Accept(ctx context.Context, principal model.Principal, id uuid.UUID) (*AcceptMatchResult, error) {
	m, err := s.loadForLandlord(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := checkOpen(m, now); err != nil {
		return nil, err
	}
	property, err := s.repo.GetProperty(ctx, m.PropertyID)
	if err != nil {
		return nil, translate(err)
	}

	process := &model.ContractProcess{
		ID:         uuid.New(),
		MatchID:    m.ID,
		PropertyID: property.ID,
		Landlord:   model.Party{UserID: m.LandlordID},
		Tenant:     model.Party{UserID: m.TenantID},
		Property:   property.Snapshot(),
		Terms: model.ContractTerms{
			MonthlyRent: property.MonthlyRent,
			Deposit:     property.Deposit,
		},
		GuaranteeType: model.GuaranteeNone,
		State:         model.StateDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	version, from := m.Version, m.Status
	m.Status = model.MatchStatusAccepted
	m.DecidedAt = &now
	m.ProcessID = &process.ID
	m.UpdatedAt = now
	if err := s.repo.AcceptMatch(ctx, m, version, process); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: another request for this property was accepted or the request changed", ErrConflict)
		}
		return nil, translate(err)
	}

	s.log.Info().
		Str("match_id", m.ID.String()).
		Str("process_id", process.ID.String()).
		Msg("match accepted")
	s.events.Publish(ctx, model.Event{
		Type:      model.EventMatchAccepted,
		ProcessID: process.ID,
		SubjectID: m.ID,
		From:      string(from),
		To:        string(model.MatchStatusAccepted),
		Actor:     principal.Actor(),
		At:        now,
	})
	return &AcceptMatchResult{Match: m, Process: process}, nil
}

func (s *MatchService) Reject(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.MatchRequest, error) {
	m, err := s.loadForLandlord(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	return s.decide(ctx, m, model.MatchStatusRejected)
}

func (s *MatchService) Cancel(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.MatchRequest, error) {
	m, err := s.repo.GetMatch(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !principal.IsTenant() || principal.UserID != m.TenantID {
		return nil, fmt.Errorf("%w: only the requesting tenant may cancel", ErrPermissionDenied)
	}
	return s.decide(ctx, m, model.MatchStatusCancelled)
}

func (s *MatchService) decide(ctx context.Context, m *model.MatchRequest, status model.MatchStatus) (*model.MatchRequest, error) {
	now := s.clock.Now()
	if err := checkOpen(m, now); err != nil {
		return nil, err
	}
	version := m.Version
	m.Status = status
	m.DecidedAt = &now
	m.UpdatedAt = now
	if err := s.repo.UpdateMatch(ctx, m, version); err != nil {
		return nil, translate(err)
	}
	s.log.Info().Str("match_id", m.ID.String()).Str("status", string(status)).Msg("match decided")
	return m, nil
}

func (s *MatchService) Get(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.MatchRequest, error) {
	m, err := s.repo.GetMatch(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if principal.UserID != m.TenantID && !principal.ActsForLandlord(m.LandlordID) {
		return nil, ErrPermissionDenied
	}
	m.Status = m.EffectiveStatus(s.clock.Now())
	return m, nil
}

func (s *MatchService) ListForTenant(ctx context.Context, principal model.Principal) ([]model.MatchRequest, error) {
	if !principal.IsTenant() {
		return nil, ErrPermissionDenied
	}
	matches, err := s.repo.ListMatchesByTenant(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	return s.effective(matches), nil
}

func (s *MatchService) ListForProperty(ctx context.Context, principal model.Principal, propertyID uuid.UUID) ([]model.MatchRequest, error) {
	property, err := s.repo.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, translate(err)
	}
	if !principal.ActsForLandlord(property.LandlordID) {
		return nil, ErrPermissionDenied
	}
	matches, err := s.repo.ListMatchesByProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return s.effective(matches), nil
}

func (s *MatchService) effective(matches []model.MatchRequest) []model.MatchRequest {
	now := s.clock.Now()
	for i := range matches {
		matches[i].Status = matches[i].EffectiveStatus(now)
	}
	return matches
}

// ExpireStale persists expiry for requests past their deadline. Requests that
// changed concurrently are left for the next sweep.
func (s *MatchService) ExpireStale(ctx context.Context) (int, error) {
	now := s.clock.Now()
	stale, err := s.repo.ListExpiredMatches(ctx, now)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range stale {
		m := &stale[i]
		version := m.Version
		m.Status = model.MatchStatusExpired
		m.UpdatedAt = now
		if err := s.repo.UpdateMatch(ctx, m, version); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				continue
			}
			return expired, err
		}
		expired++
	}
	if expired > 0 {
		s.log.Info().Int("count", expired).Msg("expired stale matches")
	}
	return expired, nil
}
