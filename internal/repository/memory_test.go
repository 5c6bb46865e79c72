package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/rental-contracts/internal/model"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newMatch(propertyID uuid.UUID) *model.MatchRequest {
	return &model.MatchRequest{
		ID:         uuid.New(),
		Code:       "M-1",
		PropertyID: propertyID,
		TenantID:   uuid.New(),
		LandlordID: uuid.New(),
		Status:     model.MatchStatusPending,
		ExpiresAt:  testNow.Add(time.Hour),
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
}

func newProcess(matchID, propertyID uuid.UUID) *model.ContractProcess {
	return &model.ContractProcess{
		ID:         uuid.New(),
		MatchID:    matchID,
		PropertyID: propertyID,
		State:      model.StateDraft,
		Terms:      model.ContractTerms{SpecialClauses: []string{"no smoking"}},
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
}

func TestMemoryMatchVersioning(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	m := newMatch(uuid.New())
	require.NoError(t, repo.CreateMatch(ctx, m))
	assert.EqualValues(t, 1, m.Version)

	first, err := repo.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	second, err := repo.GetMatch(ctx, m.ID)
	require.NoError(t, err)

	first.Status = model.MatchStatusViewed
	require.NoError(t, repo.UpdateMatch(ctx, first, 1))
	assert.EqualValues(t, 2, first.Version)

	second.Status = model.MatchStatusCancelled
	assert.ErrorIs(t, repo.UpdateMatch(ctx, second, 1), ErrConflict)

	stored, err := repo.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchStatusViewed, stored.Status)
}

func TestMemoryGetMissing(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	_, err := repo.GetMatch(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetProcess(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetSlot(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetProcessByInvitation(ctx, "sha256:nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryAcceptMatchIsExclusivePerProperty(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	property := &model.Property{ID: uuid.New(), Available: true}
	require.NoError(t, repo.SaveProperty(ctx, property))

	a := newMatch(property.ID)
	b := newMatch(property.ID)
	require.NoError(t, repo.CreateMatch(ctx, a))
	require.NoError(t, repo.CreateMatch(ctx, b))

	a.Status = model.MatchStatusAccepted
	require.NoError(t, repo.AcceptMatch(ctx, a, 1, newProcess(a.ID, property.ID)))

	b.Status = model.MatchStatusAccepted
	assert.ErrorIs(t, repo.AcceptMatch(ctx, b, 1, newProcess(b.ID, property.ID)), ErrConflict)

	stored, err := repo.GetProperty(ctx, property.ID)
	require.NoError(t, err)
	assert.False(t, stored.Available)

	storedB, err := repo.GetMatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchStatusPending, storedB.Status)
}

func TestMemoryProcessCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	m := newMatch(uuid.New())
	require.NoError(t, repo.CreateMatch(ctx, m))
	p := newProcess(m.ID, m.PropertyID)
	require.NoError(t, repo.AcceptMatch(ctx, m, 1, p))

	got, err := repo.GetProcess(ctx, p.ID)
	require.NoError(t, err)
	got.Terms.SpecialClauses[0] = "changed"
	got.History = append(got.History, model.HistoryEntry{Seq: 1})

	again, err := repo.GetProcess(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "no smoking", again.Terms.SpecialClauses[0])
	assert.Empty(t, again.History)
}

func TestMemoryUpdateProcessRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	m := newMatch(uuid.New())
	require.NoError(t, repo.CreateMatch(ctx, m))
	p := newProcess(m.ID, m.PropertyID)
	require.NoError(t, repo.AcceptMatch(ctx, m, 1, p))

	p.State = model.StateTenantInvited
	require.NoError(t, repo.UpdateProcess(ctx, p, 1))
	assert.EqualValues(t, 2, p.Version)
	assert.ErrorIs(t, repo.UpdateProcess(ctx, p, 1), ErrConflict)
}

func TestMemoryChecklistCreatedOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	m := newMatch(uuid.New())
	require.NoError(t, repo.CreateMatch(ctx, m))
	p := newProcess(m.ID, m.PropertyID)
	require.NoError(t, repo.AcceptMatch(ctx, m, 1, p))

	slots := []model.DocumentSlot{
		{ID: uuid.New(), ProcessID: p.ID, Type: model.DocPrincipalID, CreatedAt: testNow},
	}
	require.NoError(t, repo.CreateChecklist(ctx, p, 1, slots))
	assert.ErrorIs(t, repo.CreateChecklist(ctx, p, 2, slots), ErrConflict)

	listed, err := repo.ListSlots(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	dup := model.DocumentSlot{ID: uuid.New(), ProcessID: p.ID, Type: model.DocPrincipalID}
	assert.ErrorIs(t, repo.CreateSlot(ctx, p, 2, &dup), ErrConflict)
	assert.EqualValues(t, 2, p.Version)

	custom := model.DocumentSlot{ID: uuid.New(), ProcessID: p.ID, Type: model.DocOther}
	custom2 := model.DocumentSlot{ID: uuid.New(), ProcessID: p.ID, Type: model.DocOther}
	require.NoError(t, repo.CreateSlot(ctx, p, 2, &custom))
	require.NoError(t, repo.CreateSlot(ctx, p, 3, &custom2))
	assert.EqualValues(t, 4, p.Version)
}

func acceptedProcess(t *testing.T, repo *MemoryRepository) *model.ContractProcess {
	t.Helper()
	ctx := context.Background()
	m := newMatch(uuid.New())
	require.NoError(t, repo.CreateMatch(ctx, m))
	p := newProcess(m.ID, m.PropertyID)
	require.NoError(t, repo.AcceptMatch(ctx, m, 1, p))
	return p
}

func TestMemorySlotUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p := acceptedProcess(t, repo)
	slot := &model.DocumentSlot{ID: uuid.New(), ProcessID: p.ID, Type: model.DocOther}
	require.NoError(t, repo.CreateSlot(ctx, p, 1, slot))
	assert.EqualValues(t, 2, p.Version)

	slot.Status = model.DocumentApproved
	require.NoError(t, repo.UpdateSlot(ctx, p, 2, slot, 1))
	assert.EqualValues(t, 3, p.Version)
	assert.EqualValues(t, 2, slot.Version)
	assert.ErrorIs(t, repo.UpdateSlot(ctx, p, 3, slot, 1), ErrConflict)
	assert.ErrorIs(t, repo.DeleteSlot(ctx, p, 3, slot.ID, 1), ErrConflict)
	require.NoError(t, repo.DeleteSlot(ctx, p, 3, slot.ID, 2))
	assert.ErrorIs(t, repo.DeleteSlot(ctx, p, 4, slot.ID, 2), ErrNotFound)
}

func TestMemorySlotWriteAdvancesProcessVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p := acceptedProcess(t, repo)
	slot := &model.DocumentSlot{ID: uuid.New(), ProcessID: p.ID, Type: model.DocPrincipalID}
	require.NoError(t, repo.CreateSlot(ctx, p, 1, slot))

	reader, err := repo.GetProcess(ctx, p.ID)
	require.NoError(t, err)

	slot.Status = model.DocumentRequiresCorrection
	require.NoError(t, repo.UpdateSlot(ctx, p, 2, slot, 1))

	reader.State = model.StateTenantInvited
	assert.ErrorIs(t, repo.UpdateProcess(ctx, reader, 2), ErrConflict)

	stale := *slot
	stale.Status = model.DocumentApproved
	assert.ErrorIs(t, repo.UpdateSlot(ctx, p, 2, &stale, 2), ErrConflict)
	stored, err := repo.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentRequiresCorrection, stored.Status)
}

func TestMemoryCloseProcessReleasesProperty(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	property := &model.Property{ID: uuid.New(), Available: true}
	require.NoError(t, repo.SaveProperty(ctx, property))

	first := newMatch(property.ID)
	second := newMatch(property.ID)
	require.NoError(t, repo.CreateMatch(ctx, first))
	require.NoError(t, repo.CreateMatch(ctx, second))
	first.Status = model.MatchStatusAccepted
	p := newProcess(first.ID, property.ID)
	require.NoError(t, repo.AcceptMatch(ctx, first, 1, p))

	closedAt := testNow.Add(time.Hour)
	p.State = model.StateCancelled
	p.UpdatedAt = closedAt
	require.NoError(t, repo.CloseProcess(ctx, p, 1))

	stored, err := repo.GetProperty(ctx, property.ID)
	require.NoError(t, err)
	assert.True(t, stored.Available)

	released, err := repo.GetMatch(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchStatusAccepted, released.Status)
	require.NotNil(t, released.ReleasedAt)
	assert.True(t, closedAt.Equal(*released.ReleasedAt))
	assert.False(t, released.HoldsProperty())

	second.Status = model.MatchStatusAccepted
	require.NoError(t, repo.AcceptMatch(ctx, second, 1, newProcess(second.ID, property.ID)))
}

func TestMemorySigningRecordsAreImmutableOnceCompleted(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	m := newMatch(uuid.New())
	require.NoError(t, repo.CreateMatch(ctx, m))
	p := newProcess(m.ID, m.PropertyID)
	require.NoError(t, repo.AcceptMatch(ctx, m, 1, p))

	rec := &model.SigningRecord{ProcessID: p.ID, Role: model.SigningLandlord, StartedAt: testNow}
	require.NoError(t, repo.SaveSigning(ctx, rec, p, 1))
	rec.Completed = true
	require.NoError(t, repo.SaveSigning(ctx, rec, p, 2))
	assert.ErrorIs(t, repo.SaveSigning(ctx, rec, p, 3), ErrConflict)

	records, err := repo.ListSignings(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Completed)
}

func TestMemoryListExpiredMatches(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	fresh := newMatch(uuid.New())
	stale := newMatch(uuid.New())
	stale.ExpiresAt = testNow.Add(-time.Minute)
	decided := newMatch(uuid.New())
	decided.ExpiresAt = testNow.Add(-time.Minute)
	decided.Status = model.MatchStatusRejected
	for _, m := range []*model.MatchRequest{fresh, stale, decided} {
		require.NoError(t, repo.CreateMatch(ctx, m))
	}

	expired, err := repo.ListExpiredMatches(ctx, testNow)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID, expired[0].ID)
}
