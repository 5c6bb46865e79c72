package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/rental-contracts/internal/clock"
	"github.com/nurpe/rental-contracts/internal/config"
	"github.com/nurpe/rental-contracts/internal/events"
	"github.com/nurpe/rental-contracts/internal/model"
	"github.com/nurpe/rental-contracts/internal/repository"
	"github.com/nurpe/rental-contracts/internal/signing"
	"github.com/nurpe/rental-contracts/internal/storage"
)

var start = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type fixture struct {
	t          *testing.T
	ctx        context.Context
	repo       *repository.MemoryRepository
	files      *storage.MemoryStore
	events     *events.Recorder
	clock      *clock.FakeClock
	cfg        *config.Config
	matches    *MatchService
	contracts  *ContractService
	checklists *ChecklistService
	signings   *SigningService
	reports    *ReportService
	landlord   model.Principal
	tenant     model.Principal
	property   *model.Property
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		repo:     repository.NewMemoryRepository(),
		files:    storage.NewMemoryStore(),
		events:   events.NewRecorder(),
		clock:    clock.Fake(start),
		landlord: model.Principal{UserID: uuid.New(), Role: model.RoleLandlord},
		tenant:   model.Principal{UserID: uuid.New(), Role: model.RoleTenant},
		cfg: &config.Config{
			Workflow: config.WorkflowConfig{
				MatchTTL:      7 * 24 * time.Hour,
				InvitationTTL: 72 * time.Hour,
				SweepInterval: time.Minute,
			},
			Files: config.FilesConfig{MaxUploadBytes: 1 << 20},
		},
	}
	log := zerolog.Nop()
	f.matches = NewMatchService(f.repo, f.events, f.clock, f.cfg, log)
	f.contracts = NewContractService(f.repo, f.events, f.clock, f.cfg, log)
	f.checklists = NewChecklistService(f.repo, f.files, nil, f.events, f.clock, f.cfg, log)
	f.signings = NewSigningService(f.repo, f.events, f.clock, log)

	f.property = &model.Property{
		ID:          uuid.New(),
		LandlordID:  f.landlord.UserID,
		Address:     "Calle Mayor 10, Madrid",
		AreaM2:      72,
		Type:        model.PropertyTypeApartment,
		MonthlyRent: 1200,
		Deposit:     2400,
		Available:   true,
		UpdatedAt:   start,
	}
	require.NoError(t, f.repo.SaveProperty(f.ctx, f.property))
	return f
}

func validProfile() model.ApplicantProfile {
	return model.ApplicantProfile{MonthlyIncome: 4000, EmploymentType: model.EmploymentEmployed, Occupants: 2}
}

func (f *fixture) submitMatch() *model.MatchRequest {
	f.t.Helper()
	m, err := f.matches.Submit(f.ctx, f.tenant, SubmitMatchInput{PropertyID: f.property.ID, Profile: validProfile()})
	require.NoError(f.t, err)
	return m
}

func (f *fixture) acceptedProcess() *model.ContractProcess {
	f.t.Helper()
	m := f.submitMatch()
	res, err := f.matches.Accept(f.ctx, f.landlord, m.ID)
	require.NoError(f.t, err)
	return res.Process
}

func landlordParty() *model.Party {
	return &model.Party{
		FullName:    "Ana García",
		NationalID:  "12345678Z",
		Email:       "ana@example.com",
		Phone:       "+34600000001",
		BankName:    "Banco Uno",
		BankAccount: "ES7620770024003102575766",
	}
}

func validTerms() *model.ContractTerms {
	return &model.ContractTerms{
		MonthlyRent:    1200,
		Deposit:        2400,
		StartDate:      time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		DurationMonths: 12,
		PaymentDay:     5,
	}
}

func (f *fixture) draftedProcess() *model.ContractProcess {
	f.t.Helper()
	p := f.acceptedProcess()
	p, err := f.contracts.UpdateDraft(f.ctx, f.landlord, p.ID, UpdateDraftInput{Landlord: landlordParty(), Terms: validTerms()})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) invitedProcess() (*model.ContractProcess, string) {
	f.t.Helper()
	p := f.draftedProcess()
	res, err := f.contracts.Invite(f.ctx, f.landlord, p.ID, 0)
	require.NoError(f.t, err)
	return res.Process, res.Token
}

func (f *fixture) reviewingProcess() *model.ContractProcess {
	f.t.Helper()
	_, token := f.invitedProcess()
	p, err := f.contracts.AcceptInvitation(f.ctx, f.tenant, token)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) upload(processID uuid.UUID, slotType model.DocumentType) *model.DocumentSlot {
	f.t.Helper()
	content := []byte("scan of " + string(slotType))
	slot, err := f.checklists.Upload(f.ctx, f.tenant, UploadInput{
		ProcessID:   processID,
		SlotType:    string(slotType),
		FileName:    string(slotType) + ".pdf",
		ContentType: "application/pdf",
		Size:        int64(len(content)),
		Content:     bytes.NewReader(content),
	})
	require.NoError(f.t, err)
	return slot
}

// approveRequired uploads and approves every required slot.
func (f *fixture) approveRequired(processID uuid.UUID) {
	f.t.Helper()
	view, err := f.checklists.Checklist(f.ctx, f.landlord, processID)
	require.NoError(f.t, err)
	for _, slot := range view.Slots {
		if !slot.Required {
			continue
		}
		uploaded := f.upload(processID, slot.Type)
		_, err := f.checklists.Review(f.ctx, f.landlord, ReviewInput{
			SlotID:          uploaded.ID,
			Decision:        model.DecisionApprove,
			ExpectedVersion: uploaded.Version,
		})
		require.NoError(f.t, err)
	}
}

func (f *fixture) readyToSign(guarantee model.GuaranteeType) *model.ContractProcess {
	f.t.Helper()
	p := f.reviewingProcess()
	_, err := f.checklists.Initialize(f.ctx, f.landlord, p.ID, guarantee, 0)
	require.NoError(f.t, err)
	f.approveRequired(p.ID)

	_, err = f.contracts.SubmitTenantReview(f.ctx, f.tenant, p.ID, TenantReviewInput{Decision: TenantReviewApprove})
	require.NoError(f.t, err)
	p, err = f.contracts.ApproveContract(f.ctx, f.landlord, p.ID, 0)
	require.NoError(f.t, err)
	require.Equal(f.t, model.StateReadyToSign, p.State)
	return p
}

func signedPayload(t *testing.T, signature string, at time.Time) model.SignaturePayload {
	t.Helper()
	payload := model.SignaturePayload{
		Signature:  signature,
		Context:    model.DeviceContext{Device: "iPhone 15", UserAgent: "Safari", IP: "10.0.0.8"},
		CapturedAt: at,
	}
	hash, err := signing.ComputeHash(payload)
	require.NoError(t, err)
	payload.Hash = hash
	return payload
}
