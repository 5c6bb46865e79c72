package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/rental-contracts/internal/auth"
	"github.com/nurpe/rental-contracts/internal/clock"
	"github.com/nurpe/rental-contracts/internal/config"
	"github.com/nurpe/rental-contracts/internal/events"
	"github.com/nurpe/rental-contracts/internal/excel"
	"github.com/nurpe/rental-contracts/internal/http/middleware"
	"github.com/nurpe/rental-contracts/internal/model"
	"github.com/nurpe/rental-contracts/internal/pdf"
	"github.com/nurpe/rental-contracts/internal/repository"
	"github.com/nurpe/rental-contracts/internal/service"
	"github.com/nurpe/rental-contracts/internal/signing"
	"github.com/nurpe/rental-contracts/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t        *testing.T
	router   *gin.Engine
	parser   *auth.Parser
	landlord model.Principal
	tenant   model.Principal
	property *model.Property
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo := repository.NewMemoryRepository()
	clk := clock.Fake(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))
	publisher := events.NewRecorder()
	log := zerolog.Nop()
	cfg := &config.Config{
		Workflow: config.WorkflowConfig{MatchTTL: 7 * 24 * time.Hour, InvitationTTL: 72 * time.Hour},
		Files:    config.FilesConfig{MaxUploadBytes: 1 << 20},
	}

	srv := &testServer{
		t:        t,
		parser:   auth.NewParser("test-secret"),
		landlord: model.Principal{UserID: uuid.New(), Role: model.RoleLandlord},
		tenant:   model.Principal{UserID: uuid.New(), Role: model.RoleTenant},
	}
	srv.property = &model.Property{
		ID:          uuid.New(),
		LandlordID:  srv.landlord.UserID,
		Address:     "Calle Mayor 10, Madrid",
		AreaM2:      72,
		Type:        model.PropertyTypeApartment,
		MonthlyRent: 1200,
		Deposit:     2400,
		Available:   true,
	}
	require.NoError(t, repo.SaveProperty(t.Context(), srv.property))

	handler := NewHandler(Services{
		Matches:    service.NewMatchService(repo, publisher, clk, cfg, log),
		Contracts:  service.NewContractService(repo, publisher, clk, cfg, log),
		Checklists: service.NewChecklistService(repo, storage.NewMemoryStore(), nil, publisher, clk, cfg, log),
		Signings:   service.NewSigningService(repo, publisher, clk, log),
		Reports:    service.NewReportService(repo, excel.NewGenerator(), pdf.NewGenerator(), clk, log),
	}, log)
	srv.router = NewRouter(handler, middleware.Auth(srv.parser), "development", []string{"*"}, log)
	return srv
}

func (s *testServer) token(p model.Principal) string {
	s.t.Helper()
	token, err := s.parser.Issue(p, time.Hour)
	require.NoError(s.t, err)
	return token
}

func (s *testServer) do(method, path string, p *model.Principal, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(*p))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(processID, slotType string) string {
	s.t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	require.NoError(s.t, form.WriteField("slot_type", slotType))
	part, err := form.CreateFormFile("file", slotType+".pdf")
	require.NoError(s.t, err)
	_, err = part.Write([]byte("scan of " + slotType))
	require.NoError(s.t, err)
	require.NoError(s.t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/contracts/"+processID+"/documents", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token(s.tenant))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	var slot struct {
		ID string `json:"id"`
	}
	decode(s.t, w, &slot)
	return slot.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

func signaturePayload(t *testing.T, sig string) model.SignaturePayload {
	t.Helper()
	payload := model.SignaturePayload{
		Signature:  sig,
		Context:    model.DeviceContext{Device: "Pixel 9", IP: "10.0.0.9"},
		CapturedAt: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
	}
	hash, err := signing.ComputeHash(payload)
	require.NoError(t, err)
	payload.Hash = hash
	return payload
}

// acceptedProcess submits a match as the tenant and accepts it as the
// landlord, returning the new process id.
func (s *testServer) acceptedProcess() string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/properties/"+s.property.ID.String()+"/matches", &s.tenant, gin.H{
		"priority": "high",
		"profile":  gin.H{"monthly_income": 4000, "employment_type": "employed", "occupants": 2},
		"message":  "Available from June",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var match struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decode(s.t, w, &match)
	assert.Equal(s.t, "pending", match.Status)

	w = s.do(http.MethodPost, "/matches/"+match.ID+"/accept", &s.landlord, nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var accepted struct {
		Process struct {
			ID    string `json:"id"`
			State string `json:"state"`
		} `json:"process"`
	}
	decode(s.t, w, &accepted)
	assert.Equal(s.t, string(model.StateDraft), accepted.Process.State)
	return accepted.Process.ID
}

func (s *testServer) reviewingProcess() string {
	s.t.Helper()
	id := s.acceptedProcess()
	w := s.do(http.MethodPut, "/contracts/"+id+"/draft", &s.landlord, gin.H{
		"landlord": gin.H{
			"full_name": "Ana García", "national_id": "12345678Z", "email": "ana@example.com",
			"phone": "+34600000001", "bank_name": "Banco Uno", "bank_account": "ES7620770024003102575766",
		},
		"terms": gin.H{
			"monthly_rent": 1200, "deposit": 2400, "start_date": "2026-06-01",
			"duration_months": 12, "payment_day": 5,
		},
	})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/contracts/"+id+"/invite", &s.landlord, nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var invite struct {
		Token string `json:"token"`
	}
	decode(s.t, w, &invite)
	require.NotEmpty(s.t, invite.Token)
	assert.NotContains(s.t, w.Body.String(), "token_hash")

	w = s.do(http.MethodPost, "/invitations/accept", &s.tenant, gin.H{"token": invite.Token})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/invitations/accept", &s.tenant, gin.H{"token": invite.Token})
	assert.Equal(s.t, http.StatusGone, w.Code)
	return id
}

func TestFullWorkflowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	id := s.reviewingProcess()

	w := s.do(http.MethodPost, "/contracts/"+id+"/checklist", &s.landlord, gin.H{"guarantee_type": "none"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var checklist checklistResponse
	decode(t, w, &checklist)
	assert.Len(t, checklist.Missing, 3)

	w = s.do(http.MethodPost, "/contracts/"+id+"/visit", &s.tenant, gin.H{"scheduled_at": "2026-05-05T17:00:00Z"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/contracts/"+id+"/visit/complete", &s.landlord, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, slotType := range []string{"principal_id", "principal_income_proof", "principal_employment_letter"} {
		slotID := s.upload(id, slotType)
		w = s.do(http.MethodPost, "/documents/"+slotID+"/review", &s.landlord, gin.H{"decision": "approve"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = s.do(http.MethodPost, "/contracts/"+id+"/tenant-review", &s.tenant, gin.H{"decision": "approve"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/contracts/"+id+"/approve", &s.landlord, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var process processResponse
	decode(t, w, &process)
	assert.Equal(t, model.StateReadyToSign, process.State)

	w = s.do(http.MethodPost, "/contracts/"+id+"/signing/tenant/complete", &s.tenant, signaturePayload(t, "luis"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, "/contracts/"+id+"/signing/landlord/begin", &s.landlord, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/contracts/"+id+"/signing/landlord/complete", &s.landlord, signaturePayload(t, "ana"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/contracts/"+id+"/signing/tenant/complete", &s.tenant, signaturePayload(t, "luis"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &process)
	assert.Equal(t, model.StateFullySigned, process.State)
	require.NotNil(t, process.Stage)
	assert.Equal(t, model.StageMoveIn, process.Stage.Stage)

	w = s.do(http.MethodGet, "/contracts/"+id+"/signing", &s.tenant, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status signingStatusResponse
	decode(t, w, &status)
	assert.True(t, status.Complete)
	assert.Len(t, status.Records, 2)

	w = s.do(http.MethodPost, "/contracts/"+id+"/publish", &s.landlord, gin.H{"expected_version": process.Version})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &process)
	assert.True(t, process.Published)

	w = s.do(http.MethodGet, "/contracts/"+id+"/history", &s.tenant, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		History []model.HistoryEntry `json:"history"`
	}
	decode(t, w, &history)
	assert.Len(t, history.History, 6)

	w = s.do(http.MethodGet, "/contracts/"+id+"/export/xlsx", &s.landlord, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

	w = s.do(http.MethodGet, "/contracts/"+id+"/export/pdf", &s.tenant, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	id := s.reviewingProcess()
	stranger := model.Principal{UserID: uuid.New(), Role: model.RoleTenant}

	w := s.do(http.MethodGet, "/contracts/"+id, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/contracts/not-a-uuid", &s.landlord, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/contracts/"+uuid.NewString(), &s.landlord, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/contracts/"+id, &stranger, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/contracts/"+id+"/checklist", &s.landlord, gin.H{"guarantee_type": "none"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.do(http.MethodPost, "/contracts/"+id+"/tenant-review", &s.tenant, gin.H{"decision": "approve"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/contracts/"+id+"/approve", &s.landlord, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body struct {
		Error   string   `json:"error"`
		Missing []string `json:"missing"`
	}
	decode(t, w, &body)
	assert.ElementsMatch(t, []string{"principal_id", "principal_income_proof", "principal_employment_letter"}, body.Missing)

	w = s.do(http.MethodPost, "/contracts/"+id+"/approve", &s.landlord, gin.H{"expected_version": 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/contracts/"+id+"/terminate", &s.landlord, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/contracts/"+id+"/signing/witness/begin", &s.landlord, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMatchEndpoints(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/properties/"+s.property.ID.String()+"/matches", &s.tenant, gin.H{
		"profile": gin.H{"monthly_income": 0, "employment_type": "employed", "occupants": 1},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/properties/"+s.property.ID.String()+"/matches", &s.tenant, gin.H{
		"profile": gin.H{"monthly_income": 3000, "employment_type": "student", "occupants": 1},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var match matchResponse
	decode(t, w, &match)

	w = s.do(http.MethodPost, fmt.Sprintf("/matches/%s/view", match.ID), &s.landlord, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &match)
	assert.Equal(t, model.MatchStatusViewed, match.Status)

	w = s.do(http.MethodGet, "/matches", &s.tenant, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine struct {
		Matches []matchResponse `json:"matches"`
	}
	decode(t, w, &mine)
	assert.Len(t, mine.Matches, 1)

	w = s.do(http.MethodGet, "/properties/"+s.property.ID.String()+"/matches", &s.landlord, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, fmt.Sprintf("/matches/%s/reject", match.ID), &s.tenant, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(http.MethodPost, fmt.Sprintf("/matches/%s/cancel", match.ID), &s.tenant, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodPost, fmt.Sprintf("/matches/%s/accept", match.ID), &s.landlord, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
