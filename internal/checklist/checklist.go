// Package checklist holds the document checklist rules: which slots a
// guarantee type requires, how uploads and reviews move a slot, and when a
// checklist counts as complete. It performs no I/O.
package checklist

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/rental-contracts/internal/model"
)

var (
	ErrUnknownType     = errors.New("unknown document type")
	ErrSlotLocked      = errors.New("slot is approved")
	ErrNoFile          = errors.New("no file uploaded")
	ErrNotesRequired   = errors.New("review notes required")
	ErrInvalidDecision = errors.New("invalid review decision")
	ErrCustomDetails   = errors.New("custom document requires name and description")
	ErrNotApproved     = errors.New("slot is not approved")
	ErrAlreadyRequired = errors.New("slot is already required")
	ErrAwaitingUpload  = errors.New("slot awaits a new upload")
)

type definition struct {
	docType  model.DocumentType
	category model.DocumentCategory
	required func(model.GuaranteeType) bool
}

func always(model.GuaranteeType) bool { return true }
func never(model.GuaranteeType) bool  { return false }

func when(types ...model.GuaranteeType) func(model.GuaranteeType) bool {
	return func(g model.GuaranteeType) bool {
		for _, t := range types {
			if g == t {
				return true
			}
		}
		return false
	}
}

var catalog = []definition{
	{model.DocPrincipalID, model.CategoryPrincipal, always},
	{model.DocPrincipalIncomeProof, model.CategoryPrincipal, always},
	{model.DocPrincipalEmploymentLetter, model.CategoryPrincipal, always},
	{model.DocPrincipalBankStatement, model.CategoryPrincipal, never},
	{model.DocPrincipalRentalHistory, model.CategoryPrincipal, never},

	{model.DocCosignerID, model.CategoryCosigner, when(model.GuaranteePersonal)},
	{model.DocCosignerIncomeProof, model.CategoryCosigner, when(model.GuaranteePersonal)},
	{model.DocCosignerEmploymentLetter, model.CategoryCosigner, when(model.GuaranteePersonal)},

	{model.DocGuaranteeBankGuarantee, model.CategoryGuarantee, when(model.GuaranteeFinancial)},
	{model.DocGuaranteeDepositInsurance, model.CategoryGuarantee, never},
	{model.DocGuaranteePropertyDeed, model.CategoryGuarantee, when(model.GuaranteeProperty)},
	{model.DocGuaranteePropertyValuation, model.CategoryGuarantee, when(model.GuaranteeProperty)},
}

// ParseType validates a document type at the boundary.
func ParseType(raw string) (model.DocumentType, error) {
	t := model.DocumentType(strings.ToLower(strings.TrimSpace(raw)))
	if t == model.DocOther {
		return t, nil
	}
	if _, ok := CategoryOf(t); ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, raw)
}

func CategoryOf(t model.DocumentType) (model.DocumentCategory, bool) {
	if t == model.DocOther {
		return model.CategoryOther, true
	}
	for _, def := range catalog {
		if def.docType == t {
			return def.category, true
		}
	}
	return "", false
}

// Build creates the catalog slots for a guarantee type. Slots not required by
// the guarantee are still created, as optional.
func Build(processID uuid.UUID, guarantee model.GuaranteeType, now time.Time) []model.DocumentSlot {
	slots := make([]model.DocumentSlot, 0, len(catalog))
	for _, def := range catalog {
		slots = append(slots, model.DocumentSlot{
			ID:        uuid.New(),
			ProcessID: processID,
			Type:      def.docType,
			Category:  def.category,
			Required:  def.required(guarantee),
			Status:    model.DocumentPending,
			Version:   1,
			CreatedAt: now,
		})
	}
	return slots
}

// NewCustom creates an "otros" slot. Name and description are mandatory.
func NewCustom(processID uuid.UUID, name, description string, required bool, now time.Time) (model.DocumentSlot, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" || description == "" {
		return model.DocumentSlot{}, ErrCustomDetails
	}
	return model.DocumentSlot{
		ID:                uuid.New(),
		ProcessID:         processID,
		Type:              model.DocOther,
		Category:          model.CategoryOther,
		Required:          required,
		Status:            model.DocumentPending,
		CustomName:        name,
		CustomDescription: description,
		Version:           1,
		CreatedAt:         now,
	}, nil
}

// MarkRequired turns an optional catalog slot into a required one.
func MarkRequired(slot *model.DocumentSlot, actor model.Actor, at time.Time) error {
	if slot.Required {
		return ErrAlreadyRequired
	}
	slot.Required = true
	slot.Audit = append(slot.Audit, model.SlotAuditEntry{Action: "required", Actor: actor, At: at})
	return nil
}

// IsComplete is true iff every required slot is approved. A checklist with no
// required slots is vacuously complete.
func IsComplete(slots []model.DocumentSlot) bool {
	for _, slot := range slots {
		if slot.Required && slot.Status != model.DocumentApproved {
			return false
		}
	}
	return true
}

// MissingRequired lists the required slots that are not yet approved.
func MissingRequired(slots []model.DocumentSlot) []string {
	var missing []string
	for _, slot := range slots {
		if slot.Required && slot.Status != model.DocumentApproved {
			missing = append(missing, slot.Label())
		}
	}
	return missing
}

// FindByType returns the first slot of the given catalog type.
func FindByType(slots []model.DocumentSlot, t model.DocumentType) (model.DocumentSlot, bool) {
	for _, slot := range slots {
		if slot.Type == t {
			return slot, true
		}
	}
	return model.DocumentSlot{}, false
}
