package model

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventMatchAccepted        EventType = "MatchAccepted"
	EventDocumentReviewed     EventType = "DocumentReviewed"
	EventContractStateChanged EventType = "ContractStateChanged"
	EventSigningCompleted     EventType = "SigningCompleted"
	EventContractPublished    EventType = "ContractPublished"
)

// Event is emitted after a command commits. From and To carry workflow
// states, or match/document statuses for the non-contract events.
type Event struct {
	Type      EventType
	ProcessID uuid.UUID
	SubjectID uuid.UUID
	From      string
	To        string
	Actor     Actor
	At        time.Time
}
