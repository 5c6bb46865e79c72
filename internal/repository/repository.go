package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/rental-contracts/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict means the stored version moved past the caller's, or a
	// uniqueness rule (one accepted match per property) would be broken.
	ErrConflict = errors.New("version conflict")
)

// Repository persists the workflow aggregates. Every update takes the version
// the caller read and fails with ErrConflict when the stored row has moved
// on; on success the passed object's Version is advanced.
type Repository interface {
	GetProperty(ctx context.Context, id uuid.UUID) (*model.Property, error)
	SaveProperty(ctx context.Context, property *model.Property) error

	CreateMatch(ctx context.Context, match *model.MatchRequest) error
	GetMatch(ctx context.Context, id uuid.UUID) (*model.MatchRequest, error)
	ListMatchesByProperty(ctx context.Context, propertyID uuid.UUID) ([]model.MatchRequest, error)
	ListMatchesByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.MatchRequest, error)
	ListExpiredMatches(ctx context.Context, now time.Time) ([]model.MatchRequest, error)
	UpdateMatch(ctx context.Context, match *model.MatchRequest, expectedVersion int64) error
	// AcceptMatch stores the accepted match, creates its process and takes the
	// property off the market in one transaction.
	AcceptMatch(ctx context.Context, match *model.MatchRequest, expectedVersion int64, process *model.ContractProcess) error

	GetProcess(ctx context.Context, id uuid.UUID) (*model.ContractProcess, error)
	GetProcessByInvitation(ctx context.Context, tokenHash string) (*model.ContractProcess, error)
	ListProcessesByState(ctx context.Context, state model.ContractState) ([]model.ContractProcess, error)
	// UpdateProcess writes the live fields and appends history entries not yet
	// stored.
	UpdateProcess(ctx context.Context, process *model.ContractProcess, expectedVersion int64) error
	// CloseProcess stores a process that moved to a closed state, releases
	// its accepted match and puts the property back on the market.
	CloseProcess(ctx context.Context, process *model.ContractProcess, expectedVersion int64) error
	CreateChecklist(ctx context.Context, process *model.ContractProcess, expectedVersion int64, slots []model.DocumentSlot) error

	ListSlots(ctx context.Context, processID uuid.UUID) ([]model.DocumentSlot, error)
	GetSlot(ctx context.Context, id uuid.UUID) (*model.DocumentSlot, error)
	// Slot writes also advance the owning process's version, so a checklist
	// read that fed a workflow gate goes stale with them.
	CreateSlot(ctx context.Context, process *model.ContractProcess, expectedProcessVersion int64, slot *model.DocumentSlot) error
	UpdateSlot(ctx context.Context, process *model.ContractProcess, expectedProcessVersion int64, slot *model.DocumentSlot, expectedVersion int64) error
	DeleteSlot(ctx context.Context, process *model.ContractProcess, expectedProcessVersion int64, id uuid.UUID, expectedVersion int64) error

	ListSignings(ctx context.Context, processID uuid.UUID) ([]model.SigningRecord, error)
	// SaveSigning stores the record together with the process, which carries
	// the FULLY_SIGNED transition when the last signature lands.
	SaveSigning(ctx context.Context, record *model.SigningRecord, process *model.ContractProcess, expectedVersion int64) error
}
