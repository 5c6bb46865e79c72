package checklist

import (
	"strings"
	"time"

	"github.com/nurpe/rental-contracts/internal/model"
)

const (
	auditUploaded = "uploaded"
	auditCleared  = "cleared"
	auditReopened = "reopened"
)

type FileInfo struct {
	Ref         string
	Name        string
	ContentType string
	Size        int64
}

// CanUpload rejects uploads against approved slots.
func CanUpload(slot model.DocumentSlot) error {
	if slot.Status == model.DocumentApproved {
		return ErrSlotLocked
	}
	return nil
}

// RegisterUpload records a stored file on the slot and puts it back into
// review.
func RegisterUpload(slot *model.DocumentSlot, file FileInfo, actor model.Actor, at time.Time) error {
	if err := CanUpload(*slot); err != nil {
		return err
	}
	uploader := actor.UserID
	slot.FileRef = file.Ref
	slot.FileName = file.Name
	slot.ContentType = file.ContentType
	slot.FileSize = file.Size
	slot.UploadedBy = &uploader
	slot.UploadedAt = &at
	slot.Status = model.DocumentPending
	slot.ReviewedBy = nil
	slot.ReviewedAt = nil
	slot.ReviewNotes = ""
	slot.Extraction = nil
	slot.Audit = append(slot.Audit, model.SlotAuditEntry{Action: auditUploaded, Actor: actor, At: at, Notes: file.Name})
	return nil
}

// Review applies a landlord decision to a pending upload. Reject and
// request_correction must explain themselves.
func Review(slot *model.DocumentSlot, decision model.ReviewDecision, notes string, actor model.Actor, at time.Time) error {
	status, ok := decision.Status()
	if !ok {
		return ErrInvalidDecision
	}
	switch {
	case slot.Status == model.DocumentApproved:
		return ErrSlotLocked
	case !slot.HasFile():
		return ErrNoFile
	case slot.Status != model.DocumentPending:
		return ErrAwaitingUpload
	}
	notes = strings.TrimSpace(notes)
	if decision != model.DecisionApprove && notes == "" {
		return ErrNotesRequired
	}
	reviewer := actor.UserID
	slot.Status = status
	slot.ReviewedBy = &reviewer
	slot.ReviewedAt = &at
	slot.ReviewNotes = notes
	slot.Audit = append(slot.Audit, model.SlotAuditEntry{Action: string(status), Actor: actor, At: at, Notes: notes})
	return nil
}

// Reopen is the only way out of approved.
func Reopen(slot *model.DocumentSlot, notes string, actor model.Actor, at time.Time) error {
	if slot.Status != model.DocumentApproved {
		return ErrNotApproved
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return ErrNotesRequired
	}
	reviewer := actor.UserID
	slot.Status = model.DocumentRequiresCorrection
	slot.ReviewedBy = &reviewer
	slot.ReviewedAt = &at
	slot.ReviewNotes = notes
	slot.Audit = append(slot.Audit, model.SlotAuditEntry{Action: auditReopened, Actor: actor, At: at, Notes: notes})
	return nil
}

// Clear drops the uploaded file from a catalog slot.
func Clear(slot *model.DocumentSlot, actor model.Actor, at time.Time) error {
	if slot.Status == model.DocumentApproved {
		return ErrSlotLocked
	}
	if !slot.HasFile() {
		return ErrNoFile
	}
	slot.FileRef = ""
	slot.FileName = ""
	slot.ContentType = ""
	slot.FileSize = 0
	slot.UploadedBy = nil
	slot.UploadedAt = nil
	slot.Extraction = nil
	slot.Status = model.DocumentPending
	slot.Audit = append(slot.Audit, model.SlotAuditEntry{Action: auditCleared, Actor: actor, At: at})
	return nil
}
