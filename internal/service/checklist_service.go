package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/rental-contracts/internal/checklist"
	"github.com/nurpe/rental-contracts/internal/clock"
	"github.com/nurpe/rental-contracts/internal/config"
	"github.com/nurpe/rental-contracts/internal/events"
	"github.com/nurpe/rental-contracts/internal/model"
	"github.com/nurpe/rental-contracts/internal/repository"
	"github.com/nurpe/rental-contracts/internal/storage"
)

// FileStorage keeps uploaded documents. The returned reference is opaque.
type FileStorage interface {
	Put(ctx context.Context, key storage.Key, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Extractor reads identity fields from a stored document. It is optional and
// its failures never block an upload.
type Extractor interface {
	Extract(ctx context.Context, docType model.DocumentType, fileRef string) (*model.ExtractionResult, error)
}

type ChecklistService struct {
	core
	files     FileStorage
	extractor Extractor
	maxUpload int64
}

func NewChecklistService(
	repo repository.Repository,
	files FileStorage,
	extractor Extractor,
	publisher events.Publisher,
	clk clock.Clock,
	cfg *config.Config,
	log zerolog.Logger,
) *ChecklistService {
	return &ChecklistService{
		core:      newCore(repo, publisher, clk, log.With().Str("component", "checklist").Logger()),
		files:     files,
		extractor: extractor,
		maxUpload: cfg.Files.MaxUploadBytes,
	}
}

type ChecklistView struct {
	Slots       []model.DocumentSlot
	Missing     []string
	Complete    bool
	Initialized bool
}

// UploadInput targets a slot either by SlotID, for slots that already exist
// such as requested custom documents, or by SlotType. SlotType "otros" always
// creates a new custom slot.
type UploadInput struct {
	ProcessID         uuid.UUID
	SlotID            uuid.UUID
	SlotType          string
	CustomName        string
	CustomDescription string
	FileName          string
	ContentType       string
	Size              int64
	Content           io.Reader
}

type ReviewInput struct {
	SlotID          uuid.UUID
	Decision        model.ReviewDecision
	Notes           string
	ExpectedVersion int64
}

type RequestDocumentInput struct {
	ProcessID         uuid.UUID
	SlotType          string
	CustomName        string
	CustomDescription string
}

// Initialize builds the slot set for the chosen guarantee. It can run once
// per process.
func (s *ChecklistService) Initialize(ctx context.Context, principal model.Principal, processID uuid.UUID, guarantee model.GuaranteeType, expectedVersion int64) (*ChecklistView, error) {
	if !guarantee.Valid() {
		return nil, fmt.Errorf("%w: unknown guarantee type %q", ErrInvalidInput, guarantee)
	}
	p, err := s.loadProcess(ctx, processID)
	if err != nil {
		return nil, err
	}
	if err := requireLandlord(p, principal); err != nil {
		return nil, err
	}
	if err := checkVersion(p.Version, expectedVersion); err != nil {
		return nil, err
	}
	if !acceptsDocumentChanges(p.State) {
		return nil, fmt.Errorf("%w: process is %s", ErrInvalidState, p.State)
	}
	existing, err := s.repo.ListSlots(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: checklist already initialized", ErrInvalidState)
	}

	now := s.clock.Now()
	slots := checklist.Build(p.ID, guarantee, now)
	version := p.Version
	p.GuaranteeType = guarantee
	p.UpdatedAt = now
	if err := s.repo.CreateChecklist(ctx, p, version, slots); err != nil {
		return nil, translate(err)
	}
	s.log.Info().
		Str("process_id", p.ID.String()).
		Str("guarantee", string(guarantee)).
		Int("slots", len(slots)).
		Msg("checklist initialized")
	return newChecklistView(slots), nil
}

func newChecklistView(slots []model.DocumentSlot) *ChecklistView {
	return &ChecklistView{
		Slots:       slots,
		Missing:     checklist.MissingRequired(slots),
		Complete:    checklist.IsComplete(slots),
		Initialized: len(slots) > 0,
	}
}

func (s *ChecklistService) Checklist(ctx context.Context, principal model.Principal, processID uuid.UUID) (*ChecklistView, error) {
	p, err := s.loadForParty(ctx, principal, processID)
	if err != nil {
		return nil, err
	}
	slots, err := s.repo.ListSlots(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return newChecklistView(slots), nil
}

// IsComplete reports whether every required slot is approved. A process
// without required slots is complete.
func (s *ChecklistService) IsComplete(ctx context.Context, processID uuid.UUID) (bool, error) {
	if _, err := s.loadProcess(ctx, processID); err != nil {
		return false, err
	}
	slots, err := s.repo.ListSlots(ctx, processID)
	if err != nil {
		return false, err
	}
	return checklist.IsComplete(slots), nil
}

// Upload stores the file first and only then registers it, re-reading the
// process so the transfer never holds its version.
func (s *ChecklistService) Upload(ctx context.Context, principal model.Principal, input UploadInput) (*model.DocumentSlot, error) {
	if input.Content == nil || strings.TrimSpace(input.FileName) == "" {
		return nil, fmt.Errorf("%w: file is required", ErrInvalidInput)
	}
	if input.Size <= 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	if s.maxUpload > 0 && input.Size > s.maxUpload {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, s.maxUpload)
	}
	var docType model.DocumentType
	if input.SlotID == uuid.Nil {
		parsed, err := checklist.ParseType(input.SlotType)
		if err != nil {
			return nil, translate(err)
		}
		docType = parsed
	}

	p, err := s.loadProcess(ctx, input.ProcessID)
	if err != nil {
		return nil, err
	}
	if err := requireTenant(p, principal); err != nil {
		return nil, err
	}
	if !acceptsDocumentChanges(p.State) {
		return nil, fmt.Errorf("%w: documents are frozen once the process is %s", ErrInvalidState, p.State)
	}
	slots, err := s.repo.ListSlots(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: checklist is not initialized", ErrInvalidState)
	}

	now := s.clock.Now()
	var slot model.DocumentSlot
	custom := input.SlotID == uuid.Nil && docType == model.DocOther
	if custom {
		slot, err = checklist.NewCustom(p.ID, input.CustomName, input.CustomDescription, false, now)
		if err != nil {
			return nil, translate(err)
		}
	} else {
		found, ok := findSlot(slots, input.SlotID, docType)
		if !ok {
			return nil, fmt.Errorf("%w: no such slot on this process", ErrNotFound)
		}
		if err := checklist.CanUpload(found); err != nil {
			return nil, translate(err)
		}
		slot = found
	}
	version := slot.Version

	ref, err := s.files.Put(ctx, storage.Key{
		ProcessID: p.ID,
		SlotID:    slot.ID,
		UploadID:  uuid.New(),
		FileName:  input.FileName,
	}, input.Content, input.Size, input.ContentType)
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	current, err := s.loadProcess(ctx, p.ID)
	if err != nil {
		s.discard(ctx, ref)
		return nil, err
	}
	if !acceptsDocumentChanges(current.State) {
		s.discard(ctx, ref)
		return nil, fmt.Errorf("%w: documents are frozen once the process is %s", ErrInvalidState, current.State)
	}
	processVersion := current.Version
	current.UpdatedAt = now

	previousRef := slot.FileRef
	if err := checklist.RegisterUpload(&slot, checklist.FileInfo{
		Ref:         ref,
		Name:        input.FileName,
		ContentType: input.ContentType,
		Size:        input.Size,
	}, principal.Actor(), now); err != nil {
		s.discard(ctx, ref)
		return nil, translate(err)
	}
	slot.Extraction = s.extract(ctx, slot)

	if custom {
		err = s.repo.CreateSlot(ctx, current, processVersion, &slot)
	} else {
		err = s.repo.UpdateSlot(ctx, current, processVersion, &slot, version)
	}
	if err != nil {
		s.discard(ctx, ref)
		return nil, translate(err)
	}
	if previousRef != "" {
		s.discard(ctx, previousRef)
	}

	s.log.Info().
		Str("process_id", p.ID.String()).
		Str("slot_id", slot.ID.String()).
		Str("type", slot.Label()).
		Int64("size", input.Size).
		Msg("document uploaded")
	return &slot, nil
}

func findSlot(slots []model.DocumentSlot, id uuid.UUID, docType model.DocumentType) (model.DocumentSlot, bool) {
	if id == uuid.Nil {
		return checklist.FindByType(slots, docType)
	}
	for _, slot := range slots {
		if slot.ID == id {
			return slot, true
		}
	}
	return model.DocumentSlot{}, false
}

func (s *ChecklistService) extract(ctx context.Context, slot model.DocumentSlot) *model.ExtractionResult {
	if s.extractor == nil {
		return nil
	}
	result, err := s.extractor.Extract(ctx, slot.Type, slot.FileRef)
	if err != nil {
		s.log.Warn().Err(err).Str("slot_id", slot.ID.String()).Msg("document extraction failed")
		return nil
	}
	return result
}

func (s *ChecklistService) discard(ctx context.Context, ref string) {
	if err := s.files.Delete(ctx, ref); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn().Err(err).Str("ref", ref).Msg("failed to delete stored document")
	}
}

func (s *ChecklistService) loadSlotForLandlord(ctx context.Context, principal model.Principal, slotID uuid.UUID) (*model.DocumentSlot, *model.ContractProcess, error) {
	slot, err := s.repo.GetSlot(ctx, slotID)
	if err != nil {
		return nil, nil, translate(err)
	}
	p, err := s.loadProcess(ctx, slot.ProcessID)
	if err != nil {
		return nil, nil, err
	}
	if err := requireLandlord(p, principal); err != nil {
		return nil, nil, err
	}
	return slot, p, nil
}

func (s *ChecklistService) Review(ctx context.Context, principal model.Principal, input ReviewInput) (*model.DocumentSlot, error) {
	slot, p, err := s.loadSlotForLandlord(ctx, principal, input.SlotID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(slot.Version, input.ExpectedVersion); err != nil {
		return nil, err
	}
	if !acceptsDocumentChanges(p.State) {
		return nil, fmt.Errorf("%w: documents are frozen once the process is %s", ErrInvalidState, p.State)
	}
	version, processVersion, from := slot.Version, p.Version, slot.Status
	now := s.clock.Now()
	if err := checklist.Review(slot, input.Decision, input.Notes, principal.Actor(), now); err != nil {
		return nil, translate(err)
	}
	p.UpdatedAt = now
	if err := s.repo.UpdateSlot(ctx, p, processVersion, slot, version); err != nil {
		return nil, translate(err)
	}

	s.log.Info().
		Str("process_id", p.ID.String()).
		Str("slot_id", slot.ID.String()).
		Str("decision", string(input.Decision)).
		Msg("document reviewed")
	s.events.Publish(ctx, model.Event{
		Type:      model.EventDocumentReviewed,
		ProcessID: p.ID,
		SubjectID: slot.ID,
		From:      string(from),
		To:        string(slot.Status),
		Actor:     principal.Actor(),
		At:        now,
	})
	return slot, nil
}

func (s *ChecklistService) Reopen(ctx context.Context, principal model.Principal, slotID uuid.UUID, notes string, expectedVersion int64) (*model.DocumentSlot, error) {
	slot, p, err := s.loadSlotForLandlord(ctx, principal, slotID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(slot.Version, expectedVersion); err != nil {
		return nil, err
	}
	if !acceptsDocumentChanges(p.State) {
		return nil, fmt.Errorf("%w: documents are frozen once the process is %s", ErrInvalidState, p.State)
	}
	version, processVersion := slot.Version, p.Version
	now := s.clock.Now()
	if err := checklist.Reopen(slot, notes, principal.Actor(), now); err != nil {
		return nil, translate(err)
	}
	p.UpdatedAt = now
	if err := s.repo.UpdateSlot(ctx, p, processVersion, slot, version); err != nil {
		return nil, translate(err)
	}
	s.events.Publish(ctx, model.Event{
		Type:      model.EventDocumentReviewed,
		ProcessID: p.ID,
		SubjectID: slot.ID,
		From:      string(model.DocumentApproved),
		To:        string(slot.Status),
		Actor:     principal.Actor(),
		At:        now,
	})
	return slot, nil
}

// RequestDocument makes a document required: an optional catalog slot is
// flipped, a custom request always adds a new slot.
func (s *ChecklistService) RequestDocument(ctx context.Context, principal model.Principal, input RequestDocumentInput) (*model.DocumentSlot, error) {
	docType, err := checklist.ParseType(input.SlotType)
	if err != nil {
		return nil, translate(err)
	}
	p, err := s.loadProcess(ctx, input.ProcessID)
	if err != nil {
		return nil, err
	}
	if err := requireLandlord(p, principal); err != nil {
		return nil, err
	}
	if !acceptsDocumentChanges(p.State) {
		return nil, fmt.Errorf("%w: documents are frozen once the process is %s", ErrInvalidState, p.State)
	}
	slots, err := s.repo.ListSlots(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: checklist is not initialized", ErrInvalidState)
	}

	now := s.clock.Now()
	processVersion := p.Version
	p.UpdatedAt = now
	if docType == model.DocOther {
		slot, err := checklist.NewCustom(p.ID, input.CustomName, input.CustomDescription, true, now)
		if err != nil {
			return nil, translate(err)
		}
		slot.Audit = append(slot.Audit, model.SlotAuditEntry{Action: "requested", Actor: principal.Actor(), At: now})
		if err := s.repo.CreateSlot(ctx, p, processVersion, &slot); err != nil {
			return nil, translate(err)
		}
		return &slot, nil
	}

	found, ok := checklist.FindByType(slots, docType)
	if !ok {
		return nil, fmt.Errorf("%w: slot %s", ErrNotFound, docType)
	}
	version := found.Version
	if err := checklist.MarkRequired(&found, principal.Actor(), now); err != nil {
		return nil, translate(err)
	}
	if err := s.repo.UpdateSlot(ctx, p, processVersion, &found, version); err != nil {
		return nil, translate(err)
	}
	return &found, nil
}

// DeleteDocument withdraws an unapproved upload. Custom slots disappear,
// catalog slots are emptied.
func (s *ChecklistService) DeleteDocument(ctx context.Context, principal model.Principal, slotID uuid.UUID, expectedVersion int64) error {
	slot, err := s.repo.GetSlot(ctx, slotID)
	if err != nil {
		return translate(err)
	}
	if slot.UploadedBy == nil || *slot.UploadedBy != principal.UserID {
		return fmt.Errorf("%w: only the uploader may delete a document", ErrPermissionDenied)
	}
	if err := checkVersion(slot.Version, expectedVersion); err != nil {
		return err
	}
	if slot.Status == model.DocumentApproved {
		return fmt.Errorf("%w: approved documents cannot be deleted", ErrInvalidState)
	}
	p, err := s.loadProcess(ctx, slot.ProcessID)
	if err != nil {
		return err
	}
	if !acceptsDocumentChanges(p.State) {
		return fmt.Errorf("%w: documents are frozen once the process is %s", ErrInvalidState, p.State)
	}

	ref, version, processVersion := slot.FileRef, slot.Version, p.Version
	now := s.clock.Now()
	p.UpdatedAt = now
	if slot.IsCustom() {
		err = s.repo.DeleteSlot(ctx, p, processVersion, slot.ID, version)
	} else {
		if err := checklist.Clear(slot, principal.Actor(), now); err != nil {
			return translate(err)
		}
		err = s.repo.UpdateSlot(ctx, p, processVersion, slot, version)
	}
	if err != nil {
		return translate(err)
	}
	if ref != "" {
		s.discard(ctx, ref)
	}
	return nil
}
