package checklist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/rental-contracts/internal/model"
)

func uploaded() model.DocumentSlot {
	slot := model.DocumentSlot{Type: model.DocPrincipalID, Required: true, Status: model.DocumentPending}
	_ = RegisterUpload(&slot, FileInfo{Ref: "p/1/id.pdf", Name: "id.pdf", ContentType: "application/pdf", Size: 42}, tenant, now)
	return slot
}

func TestRegisterUpload(t *testing.T) {
	slot := uploaded()
	assert.True(t, slot.HasFile())
	assert.Equal(t, tenant.UserID, *slot.UploadedBy)
	require.Len(t, slot.Audit, 1)
	assert.Equal(t, "uploaded", slot.Audit[0].Action)
}

func TestRegisterUpload_ResetsRejectedSlot(t *testing.T) {
	slot := uploaded()
	require.NoError(t, Review(&slot, model.DecisionReject, "blurry", landlord, now))
	require.NoError(t, RegisterUpload(&slot, FileInfo{Ref: "p/1/id2.pdf", Name: "id2.pdf"}, tenant, now))
	assert.Equal(t, model.DocumentPending, slot.Status)
	assert.Empty(t, slot.ReviewNotes)
	assert.Nil(t, slot.ReviewedBy)
}

func TestRegisterUpload_ApprovedIsLocked(t *testing.T) {
	slot := uploaded()
	require.NoError(t, Review(&slot, model.DecisionApprove, "", landlord, now))
	err := RegisterUpload(&slot, FileInfo{Ref: "other"}, tenant, now)
	require.ErrorIs(t, err, ErrSlotLocked)
	assert.Equal(t, "p/1/id.pdf", slot.FileRef)
}

func TestReview(t *testing.T) {
	slot := model.DocumentSlot{Type: model.DocPrincipalID, Status: model.DocumentPending}
	require.ErrorIs(t, Review(&slot, model.DecisionApprove, "", landlord, now), ErrNoFile)

	slot = uploaded()
	require.ErrorIs(t, Review(&slot, "maybe", "", landlord, now), ErrInvalidDecision)
	require.ErrorIs(t, Review(&slot, model.DecisionRequestCorrection, "", landlord, now), ErrNotesRequired)

	require.NoError(t, Review(&slot, model.DecisionRequestCorrection, "missing back side", landlord, now))
	assert.Equal(t, model.DocumentRequiresCorrection, slot.Status)
	assert.Equal(t, "missing back side", slot.ReviewNotes)
	assert.Len(t, slot.Audit, 2)
}

func TestReviewNeedsFreshUploadAfterDecision(t *testing.T) {
	slot := uploaded()
	require.NoError(t, Review(&slot, model.DecisionReject, "expired", landlord, now))
	require.ErrorIs(t, Review(&slot, model.DecisionApprove, "", landlord, now), ErrAwaitingUpload)
	assert.Equal(t, model.DocumentRejected, slot.Status)

	require.NoError(t, RegisterUpload(&slot, FileInfo{Ref: "p/1/id2.pdf", Name: "id2.pdf"}, tenant, now))
	require.NoError(t, Review(&slot, model.DecisionApprove, "", landlord, now))
	assert.Equal(t, model.DocumentApproved, slot.Status)

	require.NoError(t, Reopen(&slot, "name mismatch", landlord, now))
	assert.ErrorIs(t, Review(&slot, model.DecisionApprove, "", landlord, now), ErrAwaitingUpload)
}

func TestReopen(t *testing.T) {
	slot := uploaded()
	require.ErrorIs(t, Reopen(&slot, "why", landlord, now), ErrNotApproved)

	require.NoError(t, Review(&slot, model.DecisionApprove, "", landlord, now))
	require.ErrorIs(t, Reopen(&slot, "", landlord, now), ErrNotesRequired)
	require.NoError(t, Reopen(&slot, "document expired", landlord, now))
	assert.Equal(t, model.DocumentRequiresCorrection, slot.Status)
	require.NoError(t, CanUpload(slot))
}

func TestClear(t *testing.T) {
	slot := uploaded()
	require.NoError(t, Clear(&slot, tenant, now))
	assert.False(t, slot.HasFile())
	assert.Equal(t, model.DocumentPending, slot.Status)
	require.ErrorIs(t, Clear(&slot, tenant, now), ErrNoFile)
}
