package pdf

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/rental-contracts/internal/model"
)

func TestGenerate(t *testing.T) {
	at := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	report := model.ProcessReport{
		Process: model.ContractProcess{
			ID:       uuid.New(),
			State:    model.StateCancelled,
			Landlord: model.Party{FullName: "Ana García"},
			History: []model.HistoryEntry{
				{Seq: 1, Action: model.ActionCancel, From: model.StateDraft, To: model.StateCancelled, Actor: model.Actor{Role: model.RoleTenant}, At: at, Comment: strings.Repeat("long reason ", 10)},
			},
		},
		Stage: model.StageView{Stage: model.StageVisit, Name: "visit", Closed: true},
		Slots: []model.DocumentSlot{
			{Type: model.DocPrincipalID, Audit: []model.SlotAuditEntry{{Action: "uploaded", Actor: model.Actor{Role: model.RoleTenant}, At: at, Notes: "dni.pdf"}}},
		},
		SigningStatus: model.SigningNone,
		GeneratedAt:   at,
	}

	content, err := NewGenerator().Generate(report)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF-")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ñññ...", truncate("ññññññññ", 6))
}
