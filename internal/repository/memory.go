package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/rental-contracts/internal/model"
)

type signingKey struct {
	processID uuid.UUID
	role      model.SigningRole
}

// MemoryRepository keeps everything in maps behind one lock. Reads return
// copies so callers can mutate freely until they write back.
type MemoryRepository struct {
	mu         sync.RWMutex
	properties map[uuid.UUID]model.Property
	matches    map[uuid.UUID]model.MatchRequest
	processes  map[uuid.UUID]model.ContractProcess
	slots      map[uuid.UUID]model.DocumentSlot
	signings   map[signingKey]model.SigningRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		properties: make(map[uuid.UUID]model.Property),
		matches:    make(map[uuid.UUID]model.MatchRequest),
		processes:  make(map[uuid.UUID]model.ContractProcess),
		slots:      make(map[uuid.UUID]model.DocumentSlot),
		signings:   make(map[signingKey]model.SigningRecord),
	}
}

func (r *MemoryRepository) GetProperty(_ context.Context, id uuid.UUID) (*model.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.properties[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) SaveProperty(_ context.Context, property *model.Property) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.properties[property.ID] = *property
	return nil
}

func (r *MemoryRepository) CreateMatch(_ context.Context, match *model.MatchRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.matches[match.ID]; exists {
		return ErrConflict
	}
	match.Version = 1
	r.matches[match.ID] = *match
	return nil
}

func (r *MemoryRepository) GetMatch(_ context.Context, id uuid.UUID) (*model.MatchRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (r *MemoryRepository) ListMatchesByProperty(_ context.Context, propertyID uuid.UUID) ([]model.MatchRequest, error) {
	return r.filterMatches(func(m model.MatchRequest) bool { return m.PropertyID == propertyID }), nil
}

func (r *MemoryRepository) ListMatchesByTenant(_ context.Context, tenantID uuid.UUID) ([]model.MatchRequest, error) {
	return r.filterMatches(func(m model.MatchRequest) bool { return m.TenantID == tenantID }), nil
}

func (r *MemoryRepository) ListExpiredMatches(_ context.Context, now time.Time) ([]model.MatchRequest, error) {
	return r.filterMatches(func(m model.MatchRequest) bool { return m.IsExpired(now) }), nil
}

func (r *MemoryRepository) filterMatches(keep func(model.MatchRequest) bool) []model.MatchRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.MatchRequest
	for _, m := range r.matches {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *MemoryRepository) UpdateMatch(_ context.Context, match *model.MatchRequest, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateMatchLocked(match, expectedVersion)
}

func (r *MemoryRepository) updateMatchLocked(match *model.MatchRequest, expectedVersion int64) error {
	stored, ok := r.matches[match.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != expectedVersion {
		return ErrConflict
	}
	match.Version = expectedVersion + 1
	r.matches[match.ID] = *match
	return nil
}

func (r *MemoryRepository) AcceptMatch(_ context.Context, match *model.MatchRequest, expectedVersion int64, process *model.ContractProcess) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.matches {
		if other.PropertyID == match.PropertyID && other.ID != match.ID && other.HoldsProperty() {
			return ErrConflict
		}
	}
	stored, ok := r.matches[match.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != expectedVersion {
		return ErrConflict
	}
	if _, exists := r.processes[process.ID]; exists {
		return ErrConflict
	}

	match.Version = expectedVersion + 1
	r.matches[match.ID] = *match
	process.Version = 1
	r.processes[process.ID] = cloneProcess(*process)
	if property, ok := r.properties[match.PropertyID]; ok {
		property.Available = false
		property.UpdatedAt = match.UpdatedAt
		r.properties[property.ID] = property
	}
	return nil
}

func (r *MemoryRepository) GetProcess(_ context.Context, id uuid.UUID) (*model.ContractProcess, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processes[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := cloneProcess(p)
	return &clone, nil
}

func (r *MemoryRepository) GetProcessByInvitation(_ context.Context, tokenHash string) (*model.ContractProcess, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.processes {
		if p.Invitation != nil && p.Invitation.TokenHash == tokenHash {
			clone := cloneProcess(p)
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) ListProcessesByState(_ context.Context, state model.ContractState) ([]model.ContractProcess, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.ContractProcess
	for _, p := range r.processes {
		if p.State == state {
			out = append(out, cloneProcess(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) UpdateProcess(_ context.Context, process *model.ContractProcess, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateProcessLocked(process, expectedVersion)
}

func (r *MemoryRepository) updateProcessLocked(process *model.ContractProcess, expectedVersion int64) error {
	if err := r.checkProcessLocked(process, expectedVersion); err != nil {
		return err
	}
	if len(process.History) < len(r.processes[process.ID].History) {
		return ErrConflict
	}
	process.Version = expectedVersion + 1
	r.processes[process.ID] = cloneProcess(*process)
	return nil
}

func (r *MemoryRepository) CloseProcess(_ context.Context, process *model.ContractProcess, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.updateProcessLocked(process, expectedVersion); err != nil {
		return err
	}
	if match, ok := r.matches[process.MatchID]; ok && match.HoldsProperty() {
		at := process.UpdatedAt
		match.ReleasedAt = &at
		match.UpdatedAt = at
		match.Version++
		r.matches[match.ID] = match
	}
	if property, ok := r.properties[process.PropertyID]; ok {
		property.Available = true
		property.UpdatedAt = process.UpdatedAt
		r.properties[property.ID] = property
	}
	return nil
}

// Slot writes run every check before touching either map.
func (r *MemoryRepository) checkProcessLocked(process *model.ContractProcess, expectedVersion int64) error {
	stored, ok := r.processes[process.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != expectedVersion {
		return ErrConflict
	}
	return nil
}

func (r *MemoryRepository) bumpProcessLocked(process *model.ContractProcess, expectedVersion int64) {
	stored := r.processes[process.ID]
	stored.Version = expectedVersion + 1
	stored.UpdatedAt = process.UpdatedAt
	r.processes[process.ID] = stored
	process.Version = expectedVersion + 1
}

func (r *MemoryRepository) CreateChecklist(_ context.Context, process *model.ContractProcess, expectedVersion int64, slots []model.DocumentSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.slots {
		if s.ProcessID == process.ID {
			return ErrConflict
		}
	}
	if err := r.updateProcessLocked(process, expectedVersion); err != nil {
		return err
	}
	for i := range slots {
		slots[i].Version = 1
		r.slots[slots[i].ID] = cloneSlot(slots[i])
	}
	return nil
}

func (r *MemoryRepository) ListSlots(_ context.Context, processID uuid.UUID) ([]model.DocumentSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.DocumentSlot
	for _, s := range r.slots {
		if s.ProcessID == processID {
			out = append(out, cloneSlot(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

func (r *MemoryRepository) GetSlot(_ context.Context, id uuid.UUID) (*model.DocumentSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := cloneSlot(s)
	return &clone, nil
}

func (r *MemoryRepository) CreateSlot(_ context.Context, process *model.ContractProcess, expectedProcessVersion int64, slot *model.DocumentSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.slots {
		if s.ProcessID == slot.ProcessID && s.Type == slot.Type && slot.Type != model.DocOther {
			return ErrConflict
		}
	}
	if err := r.checkProcessLocked(process, expectedProcessVersion); err != nil {
		return err
	}
	r.bumpProcessLocked(process, expectedProcessVersion)
	slot.Version = 1
	r.slots[slot.ID] = cloneSlot(*slot)
	return nil
}

func (r *MemoryRepository) UpdateSlot(_ context.Context, process *model.ContractProcess, expectedProcessVersion int64, slot *model.DocumentSlot, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.slots[slot.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != expectedVersion {
		return ErrConflict
	}
	if err := r.checkProcessLocked(process, expectedProcessVersion); err != nil {
		return err
	}
	r.bumpProcessLocked(process, expectedProcessVersion)
	slot.Version = expectedVersion + 1
	r.slots[slot.ID] = cloneSlot(*slot)
	return nil
}

func (r *MemoryRepository) DeleteSlot(_ context.Context, process *model.ContractProcess, expectedProcessVersion int64, id uuid.UUID, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.slots[id]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != expectedVersion {
		return ErrConflict
	}
	if err := r.checkProcessLocked(process, expectedProcessVersion); err != nil {
		return err
	}
	r.bumpProcessLocked(process, expectedProcessVersion)
	delete(r.slots, id)
	return nil
}

func (r *MemoryRepository) ListSignings(_ context.Context, processID uuid.UUID) ([]model.SigningRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.SigningRecord
	for key, rec := range r.signings {
		if key.processID == processID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (r *MemoryRepository) SaveSigning(_ context.Context, record *model.SigningRecord, process *model.ContractProcess, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := signingKey{processID: record.ProcessID, role: record.Role}
	if stored, ok := r.signings[key]; ok && stored.Completed {
		return ErrConflict
	}
	if err := r.updateProcessLocked(process, expectedVersion); err != nil {
		return err
	}
	r.signings[key] = *record
	return nil
}

func cloneProcess(p model.ContractProcess) model.ContractProcess {
	p.History = append([]model.HistoryEntry(nil), p.History...)
	p.Terms.SpecialClauses = append([]string(nil), p.Terms.SpecialClauses...)
	if p.Invitation != nil {
		inv := *p.Invitation
		p.Invitation = &inv
	}
	return p
}

func cloneSlot(s model.DocumentSlot) model.DocumentSlot {
	s.Audit = append([]model.SlotAuditEntry(nil), s.Audit...)
	if s.Extraction != nil {
		e := *s.Extraction
		s.Extraction = &e
	}
	return s
}
