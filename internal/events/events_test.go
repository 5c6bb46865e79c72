package events

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/nurpe/rental-contracts/internal/model"
)

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(zerolog.New(&buf))
	processID := uuid.New()
	p.Publish(context.Background(), model.Event{
		Type:      model.EventContractStateChanged,
		ProcessID: processID,
		From:      string(model.StateDraft),
		To:        string(model.StateTenantInvited),
		At:        time.Now(),
	})
	out := buf.String()
	assert.Contains(t, out, `"event":"ContractStateChanged"`)
	assert.Contains(t, out, processID.String())
	assert.Contains(t, out, `"to":"TENANT_INVITED"`)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.Publish(context.Background(), model.Event{Type: model.EventMatchAccepted})
	r.Publish(context.Background(), model.Event{Type: model.EventContractStateChanged})
	assert.Len(t, r.Events(), 2)
	assert.Len(t, r.OfType(model.EventMatchAccepted), 1)
}
