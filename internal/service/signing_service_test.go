package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/rental-contracts/internal/model"
)

// Scenario D.
func TestSigningInOrderThenPublish(t *testing.T) {
	f := newFixture(t)
	p := f.readyToSign(model.GuaranteeNone)

	rec, err := f.signings.BeginSigning(f.ctx, f.landlord, p.ID, model.SigningLandlord)
	require.NoError(t, err)
	again, err := f.signings.BeginSigning(f.ctx, f.landlord, p.ID, model.SigningLandlord)
	require.NoError(t, err)
	assert.Equal(t, rec.StartedAt, again.StartedAt)

	view, err := f.signings.CompleteSigning(f.ctx, f.landlord, p.ID, model.SigningLandlord, signedPayload(t, "ana-sig", f.clock.Now()))
	require.NoError(t, err)
	assert.Equal(t, model.StateReadyToSign, view.Process.State)
	assert.Equal(t, model.SigningLandlordSigned, view.SigningStatus)
	assert.Equal(t, []string{string(model.SigningTenant)}, view.MissingSignatures)

	f.clock.Advance(10 * time.Minute)
	view, err = f.signings.CompleteSigning(f.ctx, f.tenant, p.ID, model.SigningTenant, signedPayload(t, "luis-sig", f.clock.Now()))
	require.NoError(t, err)
	assert.Equal(t, model.StateFullySigned, view.Process.State)
	assert.Equal(t, model.SigningComplete, view.SigningStatus)
	assert.Empty(t, view.MissingSignatures)
	assert.Equal(t, model.StageMoveIn, view.Stage.Stage)

	status, err := f.signings.Status(f.ctx, f.tenant, p.ID)
	require.NoError(t, err)
	require.Len(t, status.Records, 2)
	assert.True(t, status.Complete)
	var landlordAt, tenantAt time.Time
	for _, r := range status.Records {
		require.NotNil(t, r.CompletedAt)
		assert.Contains(t, r.VerificationHash, "sha256:")
		switch r.Role {
		case model.SigningLandlord:
			landlordAt = *r.CompletedAt
		case model.SigningTenant:
			tenantAt = *r.CompletedAt
		}
	}
	assert.False(t, landlordAt.After(tenantAt))

	published, err := f.contracts.Publish(f.ctx, f.landlord, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, model.StatePublished, published.State)
	assert.True(t, published.Published())

	assert.Len(t, f.events.OfType(model.EventSigningCompleted), 2)
	pubs := f.events.OfType(model.EventContractPublished)
	require.Len(t, pubs, 1)
	assert.Equal(t, p.ID, pubs[0].ProcessID)
}

func TestTenantCannotSignBeforeLandlord(t *testing.T) {
	f := newFixture(t)
	reviewing := f.reviewingProcess()

	_, err := f.signings.CompleteSigning(f.ctx, f.tenant, reviewing.ID, model.SigningTenant, signedPayload(t, "early", f.clock.Now()))
	assert.ErrorIs(t, err, ErrOrderViolation)

	_, err = f.signings.BeginSigning(f.ctx, f.tenant, reviewing.ID, model.SigningTenant)
	assert.ErrorIs(t, err, ErrOrderViolation)

	_, err = f.signings.BeginSigning(f.ctx, f.landlord, reviewing.ID, model.SigningLandlord)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTenantBeforeLandlordWhenReady(t *testing.T) {
	f := newFixture(t)
	p := f.readyToSign(model.GuaranteeNone)

	_, err := f.signings.CompleteSigning(f.ctx, f.tenant, p.ID, model.SigningTenant, signedPayload(t, "early", f.clock.Now()))
	assert.ErrorIs(t, err, ErrOrderViolation)

	stored, err := f.repo.GetProcess(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateReadyToSign, stored.State)
}

func TestPersonalGuaranteeNeedsCosigner(t *testing.T) {
	f := newFixture(t)
	p := f.readyToSign(model.GuaranteePersonal)

	_, err := f.signings.CompleteSigning(f.ctx, f.tenant, p.ID, model.SigningCosigner, signedPayload(t, "co", f.clock.Now()))
	assert.ErrorIs(t, err, ErrOrderViolation)

	_, err = f.signings.CompleteSigning(f.ctx, f.landlord, p.ID, model.SigningLandlord, signedPayload(t, "ana", f.clock.Now()))
	require.NoError(t, err)
	view, err := f.signings.CompleteSigning(f.ctx, f.tenant, p.ID, model.SigningTenant, signedPayload(t, "luis", f.clock.Now()))
	require.NoError(t, err)
	assert.Equal(t, model.StateReadyToSign, view.Process.State)
	assert.Equal(t, model.SigningTenantSigned, view.SigningStatus)
	assert.Equal(t, []string{string(model.SigningCosigner)}, view.MissingSignatures)

	_, err = f.contracts.Publish(f.ctx, f.landlord, p.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidState)

	view, err = f.signings.CompleteSigning(f.ctx, f.tenant, p.ID, model.SigningCosigner, signedPayload(t, "marta", f.clock.Now()))
	require.NoError(t, err)
	assert.Equal(t, model.StateFullySigned, view.Process.State)
}

func TestCosignerNotRequiredWithoutPersonalGuarantee(t *testing.T) {
	f := newFixture(t)
	p := f.readyToSign(model.GuaranteeNone)

	_, err := f.signings.BeginSigning(f.ctx, f.tenant, p.ID, model.SigningCosigner)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSignatureIntegrity(t *testing.T) {
	f := newFixture(t)
	p := f.readyToSign(model.GuaranteeNone)

	payload := signedPayload(t, "ana", f.clock.Now())
	payload.Signature = "tampered"
	_, err := f.signings.CompleteSigning(f.ctx, f.landlord, p.ID, model.SigningLandlord, payload)
	assert.ErrorIs(t, err, ErrInvalidInput)

	payload = signedPayload(t, "ana", f.clock.Now())
	payload.Context.Device = ""
	_, err = f.signings.CompleteSigning(f.ctx, f.landlord, p.ID, model.SigningLandlord, payload)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.signings.CompleteSigning(f.ctx, f.landlord, p.ID, model.SigningLandlord, signedPayload(t, "ana", f.clock.Now()))
	require.NoError(t, err)
	_, err = f.signings.CompleteSigning(f.ctx, f.landlord, p.ID, model.SigningLandlord, signedPayload(t, "ana-again", f.clock.Now()))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSignerMustBeParty(t *testing.T) {
	f := newFixture(t)
	p := f.readyToSign(model.GuaranteeNone)

	_, err := f.signings.BeginSigning(f.ctx, f.tenant, p.ID, model.SigningLandlord)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.signings.BeginSigning(f.ctx, f.landlord, p.ID, model.SigningTenant)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestParseSigningRole(t *testing.T) {
	role, err := ParseSigningRole("cosigner")
	require.NoError(t, err)
	assert.Equal(t, model.SigningCosigner, role)

	_, err = ParseSigningRole("witness")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
