package workflow

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/rental-contracts/internal/model"
)

var (
	landlord = model.Actor{Role: model.RoleLandlord, UserID: uuid.New()}
	tenant   = model.Actor{Role: model.RoleTenant, UserID: uuid.New()}
	system   = model.Actor{Role: model.RoleSystem}
	t0       = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
)

func newProcess() *model.ContractProcess {
	return &model.ContractProcess{ID: uuid.New(), State: model.StateDraft}
}

func apply(t *testing.T, p *model.ContractProcess, action model.WorkflowAction, actor model.Actor, gates Gates) model.HistoryEntry {
	t.Helper()
	entry, err := Apply(p, Command{Action: action, Actor: actor, At: t0.Add(time.Duration(len(p.History)) * time.Minute)}, gates)
	require.NoError(t, err)
	return entry
}

var openGates = Gates{ChecklistComplete: true, SigningComplete: true}

func TestApply_HappyPathThroughLandlordReviewing(t *testing.T) {
	p := newProcess()
	apply(t, p, model.ActionInvite, landlord, Gates{})
	apply(t, p, model.ActionAcceptInvitation, tenant, Gates{})
	assert.Equal(t, model.TenantReviewReviewing, p.TenantReviewStatus())

	apply(t, p, model.ActionTenantApprove, tenant, Gates{})
	assert.Equal(t, model.StateLandlordReviewing, p.State)
	assert.True(t, p.TenantApproved)
	assert.Equal(t, model.TenantReviewApproved, p.TenantReviewStatus())

	apply(t, p, model.ActionLandlordApprove, landlord, openGates)
	assert.Equal(t, model.StateReadyToSign, p.State)

	apply(t, p, model.ActionCompleteSigning, tenant, openGates)
	apply(t, p, model.ActionPublish, landlord, Gates{})
	assert.True(t, p.Published())
	assert.Nil(t, p.ArchivedAt, "normal completion never archives")
	assert.Len(t, p.History, 6)
}

func TestApply_BothReviewingPath(t *testing.T) {
	p := newProcess()
	apply(t, p, model.ActionInvite, landlord, Gates{})
	apply(t, p, model.ActionAcceptInvitation, tenant, Gates{})
	apply(t, p, model.ActionLandlordApprove, landlord, Gates{})
	assert.Equal(t, model.StateBothReviewing, p.State)
	assert.True(t, p.LandlordApproved)

	apply(t, p, model.ActionTenantApprove, tenant, openGates)
	assert.Equal(t, model.StateReadyToSign, p.State)
}

func TestApply_DocumentGateEnforcedAtReadyToSign(t *testing.T) {
	p := newProcess()
	apply(t, p, model.ActionInvite, landlord, Gates{})
	apply(t, p, model.ActionAcceptInvitation, tenant, Gates{})
	apply(t, p, model.ActionTenantApprove, tenant, Gates{})

	_, err := Apply(p, Command{Action: model.ActionLandlordApprove, Actor: landlord, At: t0}, Gates{
		MissingDocuments: []string{"principal_id"},
	})
	require.ErrorIs(t, err, ErrGateClosed)
	assert.Contains(t, err.Error(), "principal_id")
	assert.Equal(t, model.StateLandlordReviewing, p.State, "failed command leaves state untouched")
	assert.False(t, p.LandlordApproved)
	assert.Len(t, p.History, 3, "failed command appends nothing")
}

func TestApply_RequestChangesNeedsComment(t *testing.T) {
	p := newProcess()
	apply(t, p, model.ActionInvite, landlord, Gates{})
	apply(t, p, model.ActionAcceptInvitation, tenant, Gates{})

	_, err := Apply(p, Command{Action: model.ActionRequestChanges, Actor: tenant, At: t0, Comment: "   "}, Gates{})
	require.ErrorIs(t, err, ErrCommentRequired)
	assert.Equal(t, model.StateTenantReviewing, p.State)

	entry, err := Apply(p, Command{Action: model.ActionRequestChanges, Actor: tenant, At: t0, Comment: "rent too high"}, Gates{})
	require.NoError(t, err)
	assert.Equal(t, model.StateObjectionsPending, p.State)
	assert.Equal(t, "rent too high", entry.Comment)
	assert.Equal(t, model.TenantReviewChangesRequested, p.TenantReviewStatus())
}

func TestApply_ObjectionCycleClearsApprovalsAndAppends(t *testing.T) {
	p := newProcess()
	apply(t, p, model.ActionInvite, landlord, Gates{})
	apply(t, p, model.ActionAcceptInvitation, tenant, Gates{})
	apply(t, p, model.ActionLandlordApprove, landlord, Gates{})

	for i := 0; i < 3; i++ {
		before := len(p.History)
		_, err := Apply(p, Command{Action: model.ActionRequestChanges, Actor: tenant, At: t0, Comment: "clause 4"}, Gates{})
		require.NoError(t, err)
		assert.False(t, p.LandlordApproved)
		apply(t, p, model.ActionRespondObjections, landlord, Gates{})
		assert.Equal(t, model.StateTenantReviewing, p.State)
		assert.Equal(t, before+2, len(p.History))
	}
}

func TestApply_RejectsWrongSide(t *testing.T) {
	p := newProcess()
	_, err := Apply(p, Command{Action: model.ActionInvite, Actor: tenant, At: t0}, Gates{})
	require.ErrorIs(t, err, ErrActorNotAllowed)

	_, err = Apply(p, Command{Action: model.ActionExpire, Actor: landlord, At: t0}, Gates{})
	require.ErrorIs(t, err, ErrActorNotAllowed)
}

func TestApply_CannotSkipStates(t *testing.T) {
	p := newProcess()
	_, err := Apply(p, Command{Action: model.ActionAcceptInvitation, Actor: tenant, At: t0}, Gates{})
	require.ErrorIs(t, err, ErrIllegalTransition)

	_, err = Apply(p, Command{Action: model.ActionPublish, Actor: landlord, At: t0}, Gates{})
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.Empty(t, p.History)
}

func TestApply_SigningGate(t *testing.T) {
	p := newProcess()
	apply(t, p, model.ActionInvite, landlord, Gates{})
	apply(t, p, model.ActionAcceptInvitation, tenant, Gates{})
	apply(t, p, model.ActionTenantApprove, tenant, Gates{})
	apply(t, p, model.ActionLandlordApprove, landlord, openGates)

	_, err := Apply(p, Command{Action: model.ActionCompleteSigning, Actor: tenant, At: t0}, Gates{
		ChecklistComplete: true,
		MissingSignatures: []string{"tenant"},
	})
	require.ErrorIs(t, err, ErrGateClosed)
	assert.Equal(t, model.StateReadyToSign, p.State)
}

func TestApply_CancelFromAnyOpenStateArchives(t *testing.T) {
	p := newProcess()
	apply(t, p, model.ActionInvite, landlord, Gates{})
	entry := apply(t, p, model.ActionCancel, tenant, Gates{})

	assert.Equal(t, model.StateCancelled, p.State)
	assert.Equal(t, tenant, entry.Actor)
	require.NotNil(t, p.ArchivedAt)
	assert.Equal(t, model.StateTenantInvited, p.LastActiveState())

	_, err := Apply(p, Command{Action: model.ActionCancel, Actor: landlord, At: t0}, Gates{})
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestApply_TerminateNeedsReason(t *testing.T) {
	p := newProcess()
	_, err := Apply(p, Command{Action: model.ActionTerminate, Actor: landlord, At: t0}, Gates{})
	require.ErrorIs(t, err, ErrCommentRequired)
}

func TestApply_PublishedIsFinal(t *testing.T) {
	p := newProcess()
	apply(t, p, model.ActionInvite, landlord, Gates{})
	apply(t, p, model.ActionAcceptInvitation, tenant, Gates{})
	apply(t, p, model.ActionTenantApprove, tenant, Gates{})
	apply(t, p, model.ActionLandlordApprove, landlord, openGates)
	apply(t, p, model.ActionCompleteSigning, system, openGates)
	apply(t, p, model.ActionPublish, landlord, Gates{})

	for _, action := range []model.WorkflowAction{model.ActionCancel, model.ActionTerminate, model.ActionExpire} {
		_, err := Apply(p, Command{Action: action, Actor: system, At: t0, Comment: "x"}, Gates{})
		assert.ErrorIs(t, err, ErrIllegalTransition, action)
	}
}
