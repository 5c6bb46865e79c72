package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/rental-contracts/internal/model"
)

// PostgresRepository stores aggregates with hand-written SQL. Structured
// parts of a row (parties, terms, audit trails) live in jsonb columns.
type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	default:
		return err
	}
}

func toJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func fromJSON(raw string, v interface{}) error {
	if raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

// versionMiss tells a stale version apart from a missing row after a guarded
// UPDATE touched nothing.
func versionMiss(tx *gorm.DB, table string, id uuid.UUID) error {
	var count int64
	if err := tx.Raw(`SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id).Scan(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// Properties

func (r *PostgresRepository) GetProperty(ctx context.Context, id uuid.UUID) (*model.Property, error) {
	var p model.Property
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, landlord_id, address, area_m2, type, monthly_rent, deposit, available, updated_at
		FROM properties
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&p).Error; err != nil {
		return nil, err
	}
	if p.ID == uuid.Nil {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *PostgresRepository) SaveProperty(ctx context.Context, p *model.Property) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO properties (id, landlord_id, address, area_m2, type, monthly_rent, deposit, available, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			landlord_id = EXCLUDED.landlord_id,
			address = EXCLUDED.address,
			area_m2 = EXCLUDED.area_m2,
			type = EXCLUDED.type,
			monthly_rent = EXCLUDED.monthly_rent,
			deposit = EXCLUDED.deposit,
			available = EXCLUDED.available,
			updated_at = EXCLUDED.updated_at
	`, p.ID, p.LandlordID, p.Address, p.AreaM2, string(p.Type), p.MonthlyRent, p.Deposit, p.Available, p.UpdatedAt).Error
}

// Matches

const matchColumns = `
	id, code, property_id, tenant_id, landlord_id, status, priority, profile,
	message, expires_at, decided_at, process_id, released_at, version, created_at, updated_at`

type matchRow struct {
	ID         uuid.UUID
	Code       string
	PropertyID uuid.UUID
	TenantID   uuid.UUID
	LandlordID uuid.UUID
	Status     string
	Priority   string
	Profile    string
	Message    string
	ExpiresAt  time.Time
	DecidedAt  *time.Time
	ProcessID  *uuid.UUID
	ReleasedAt *time.Time
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (row matchRow) toModel() (model.MatchRequest, error) {
	m := model.MatchRequest{
		ID:         row.ID,
		Code:       row.Code,
		PropertyID: row.PropertyID,
		TenantID:   row.TenantID,
		LandlordID: row.LandlordID,
		Status:     model.MatchStatus(row.Status),
		Priority:   model.MatchPriority(row.Priority),
		Message:    row.Message,
		ExpiresAt:  row.ExpiresAt,
		DecidedAt:  row.DecidedAt,
		ProcessID:  row.ProcessID,
		ReleasedAt: row.ReleasedAt,
		Version:    row.Version,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if err := fromJSON(row.Profile, &m.Profile); err != nil {
		return m, err
	}
	return m, nil
}

func (r *PostgresRepository) CreateMatch(ctx context.Context, m *model.MatchRequest) error {
	profile, err := toJSON(m.Profile)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Exec(`
		INSERT INTO match_requests (`+matchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?::jsonb, ?, ?, ?, ?, ?, 1, ?, ?)
	`,
		m.ID, m.Code, m.PropertyID, m.TenantID, m.LandlordID, string(m.Status), string(m.Priority), profile,
		m.Message, m.ExpiresAt, m.DecidedAt, m.ProcessID, m.ReleasedAt, m.CreatedAt, m.UpdatedAt,
	).Error
	if err != nil {
		return translate(err)
	}
	m.Version = 1
	return nil
}

func (r *PostgresRepository) GetMatch(ctx context.Context, id uuid.UUID) (*model.MatchRequest, error) {
	matches, err := r.queryMatches(ctx, `WHERE id = ? LIMIT 1`, id)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	return &matches[0], nil
}

func (r *PostgresRepository) ListMatchesByProperty(ctx context.Context, propertyID uuid.UUID) ([]model.MatchRequest, error) {
	return r.queryMatches(ctx, `WHERE property_id = ? ORDER BY created_at ASC`, propertyID)
}

func (r *PostgresRepository) ListMatchesByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.MatchRequest, error) {
	return r.queryMatches(ctx, `WHERE tenant_id = ? ORDER BY created_at ASC`, tenantID)
}

func (r *PostgresRepository) ListExpiredMatches(ctx context.Context, now time.Time) ([]model.MatchRequest, error) {
	return r.queryMatches(ctx, `
		WHERE status IN ('pending', 'viewed')
			AND expires_at <= ?
		ORDER BY created_at ASC
	`, now)
}

func (r *PostgresRepository) queryMatches(ctx context.Context, where string, args ...interface{}) ([]model.MatchRequest, error) {
	var rows []matchRow
	if err := r.db.WithContext(ctx).Raw(`SELECT `+matchColumns+` FROM match_requests `+where, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.MatchRequest, 0, len(rows))
	for _, row := range rows {
		m, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *PostgresRepository) UpdateMatch(ctx context.Context, m *model.MatchRequest, expectedVersion int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return updateMatch(tx, m, expectedVersion)
	})
}

func updateMatch(tx *gorm.DB, m *model.MatchRequest, expectedVersion int64) error {
	res := tx.Exec(`
		UPDATE match_requests
		SET
			status = ?,
			priority = ?,
			message = ?,
			decided_at = ?,
			process_id = ?,
			released_at = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`, string(m.Status), string(m.Priority), m.Message, m.DecidedAt, m.ProcessID, m.ReleasedAt, m.UpdatedAt, m.ID, expectedVersion)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return versionMiss(tx, "match_requests", m.ID)
	}
	m.Version = expectedVersion + 1
	return nil
}

func (r *PostgresRepository) AcceptMatch(ctx context.Context, m *model.MatchRequest, expectedVersion int64, p *model.ContractProcess) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateMatch(tx, m, expectedVersion); err != nil {
			return err
		}
		if err := insertProcess(tx, p); err != nil {
			return err
		}
		return translate(tx.Exec(`
			UPDATE properties SET available = FALSE, updated_at = ? WHERE id = ?
		`, m.UpdatedAt, m.PropertyID).Error)
	})
}

// Processes

const processColumns = `
	id, match_id, property_id, landlord, tenant, property, terms, guarantee_type, state,
	tenant_approved, landlord_approved, invitation, visit_scheduled_at, visit_completed_at,
	archived_at, version, created_at, updated_at`

type processRow struct {
	ID               uuid.UUID
	MatchID          uuid.UUID
	PropertyID       uuid.UUID
	Landlord         string
	Tenant           string
	Property         string
	Terms            string
	GuaranteeType    string
	State            string
	TenantApproved   bool
	LandlordApproved bool
	Invitation       *string
	VisitScheduledAt *time.Time
	VisitCompletedAt *time.Time
	ArchivedAt       *time.Time
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type historyRow struct {
	ProcessID uuid.UUID
	Seq       int
	Action    string
	FromState string
	ToState   string
	ActorRole string
	ActorID   uuid.UUID
	At        time.Time
	Comment   string
}

func (row processRow) toModel() (model.ContractProcess, error) {
	p := model.ContractProcess{
		ID:               row.ID,
		MatchID:          row.MatchID,
		PropertyID:       row.PropertyID,
		GuaranteeType:    model.GuaranteeType(row.GuaranteeType),
		State:            model.ContractState(row.State),
		TenantApproved:   row.TenantApproved,
		LandlordApproved: row.LandlordApproved,
		Visit:            model.Visit{ScheduledAt: row.VisitScheduledAt, CompletedAt: row.VisitCompletedAt},
		ArchivedAt:       row.ArchivedAt,
		Version:          row.Version,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
	for _, part := range []struct {
		raw  string
		into interface{}
	}{
		{row.Landlord, &p.Landlord},
		{row.Tenant, &p.Tenant},
		{row.Property, &p.Property},
		{row.Terms, &p.Terms},
	} {
		if err := fromJSON(part.raw, part.into); err != nil {
			return p, err
		}
	}
	if row.Invitation != nil && *row.Invitation != "" && *row.Invitation != "null" {
		var inv model.Invitation
		if err := fromJSON(*row.Invitation, &inv); err != nil {
			return p, err
		}
		p.Invitation = &inv
	}
	return p, nil
}

type processJSON struct {
	landlord, tenant, property, terms string
	invitation                        *string
}

func encodeProcess(p *model.ContractProcess) (processJSON, error) {
	var out processJSON
	var err error
	if out.landlord, err = toJSON(p.Landlord); err != nil {
		return out, err
	}
	if out.tenant, err = toJSON(p.Tenant); err != nil {
		return out, err
	}
	if out.property, err = toJSON(p.Property); err != nil {
		return out, err
	}
	if out.terms, err = toJSON(p.Terms); err != nil {
		return out, err
	}
	if p.Invitation != nil {
		inv, err := toJSON(p.Invitation)
		if err != nil {
			return out, err
		}
		out.invitation = &inv
	}
	return out, nil
}

func insertProcess(tx *gorm.DB, p *model.ContractProcess) error {
	enc, err := encodeProcess(p)
	if err != nil {
		return err
	}
	if err := tx.Exec(`
		INSERT INTO contract_processes (`+processColumns+`)
		VALUES (?, ?, ?, ?::jsonb, ?::jsonb, ?::jsonb, ?::jsonb, ?, ?, ?, ?, ?::jsonb, ?, ?, ?, 1, ?, ?)
	`,
		p.ID, p.MatchID, p.PropertyID, enc.landlord, enc.tenant, enc.property, enc.terms,
		string(p.GuaranteeType), string(p.State), p.TenantApproved, p.LandlordApproved, enc.invitation,
		p.Visit.ScheduledAt, p.Visit.CompletedAt, p.ArchivedAt, p.CreatedAt, p.UpdatedAt,
	).Error; err != nil {
		return translate(err)
	}
	if err := insertHistory(tx, p.ID, p.History); err != nil {
		return err
	}
	p.Version = 1
	return nil
}

func insertHistory(tx *gorm.DB, processID uuid.UUID, entries []model.HistoryEntry) error {
	for _, e := range entries {
		if err := tx.Exec(`
			INSERT INTO contract_history (process_id, seq, action, from_state, to_state, actor_role, actor_id, at, comment)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, processID, e.Seq, string(e.Action), string(e.From), string(e.To), string(e.Actor.Role), e.Actor.UserID, e.At, e.Comment).Error; err != nil {
			return translate(err)
		}
	}
	return nil
}

func (r *PostgresRepository) GetProcess(ctx context.Context, id uuid.UUID) (*model.ContractProcess, error) {
	processes, err := r.queryProcesses(ctx, `WHERE id = ? LIMIT 1`, id)
	if err != nil {
		return nil, err
	}
	if len(processes) == 0 {
		return nil, ErrNotFound
	}
	return &processes[0], nil
}

func (r *PostgresRepository) GetProcessByInvitation(ctx context.Context, tokenHash string) (*model.ContractProcess, error) {
	processes, err := r.queryProcesses(ctx, `WHERE invitation->>'token_hash' = ? LIMIT 1`, tokenHash)
	if err != nil {
		return nil, err
	}
	if len(processes) == 0 {
		return nil, ErrNotFound
	}
	return &processes[0], nil
}

func (r *PostgresRepository) ListProcessesByState(ctx context.Context, state model.ContractState) ([]model.ContractProcess, error) {
	return r.queryProcesses(ctx, `WHERE state = ? ORDER BY created_at ASC`, string(state))
}

func (r *PostgresRepository) queryProcesses(ctx context.Context, where string, args ...interface{}) ([]model.ContractProcess, error) {
	db := r.db.WithContext(ctx)
	var rows []processRow
	if err := db.Raw(`SELECT `+processColumns+` FROM contract_processes `+where, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	var history []historyRow
	if err := db.Raw(`
		SELECT process_id, seq, action, from_state, to_state, actor_role, actor_id, at, comment
		FROM contract_history
		WHERE process_id = ANY(?)
		ORDER BY process_id, seq ASC
	`, ids).Scan(&history).Error; err != nil {
		return nil, err
	}
	byProcess := make(map[uuid.UUID][]model.HistoryEntry, len(rows))
	for _, h := range history {
		byProcess[h.ProcessID] = append(byProcess[h.ProcessID], model.HistoryEntry{
			Seq:     h.Seq,
			Action:  model.WorkflowAction(h.Action),
			From:    model.ContractState(h.FromState),
			To:      model.ContractState(h.ToState),
			Actor:   model.Actor{Role: model.Role(h.ActorRole), UserID: h.ActorID},
			At:      h.At,
			Comment: h.Comment,
		})
	}

	out := make([]model.ContractProcess, 0, len(rows))
	for _, row := range rows {
		p, err := row.toModel()
		if err != nil {
			return nil, err
		}
		p.History = byProcess[p.ID]
		out = append(out, p)
	}
	return out, nil
}

func (r *PostgresRepository) UpdateProcess(ctx context.Context, p *model.ContractProcess, expectedVersion int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return updateProcess(tx, p, expectedVersion)
	})
}

func updateProcess(tx *gorm.DB, p *model.ContractProcess, expectedVersion int64) error {
	enc, err := encodeProcess(p)
	if err != nil {
		return err
	}
	res := tx.Exec(`
		UPDATE contract_processes
		SET
			landlord = ?::jsonb,
			tenant = ?::jsonb,
			property = ?::jsonb,
			terms = ?::jsonb,
			guarantee_type = ?,
			state = ?,
			tenant_approved = ?,
			landlord_approved = ?,
			invitation = ?::jsonb,
			visit_scheduled_at = ?,
			visit_completed_at = ?,
			archived_at = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`,
		enc.landlord, enc.tenant, enc.property, enc.terms, string(p.GuaranteeType), string(p.State),
		p.TenantApproved, p.LandlordApproved, enc.invitation, p.Visit.ScheduledAt, p.Visit.CompletedAt,
		p.ArchivedAt, p.UpdatedAt, p.ID, expectedVersion,
	)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return versionMiss(tx, "contract_processes", p.ID)
	}

	var stored int
	if err := tx.Raw(`SELECT COALESCE(MAX(seq), 0) FROM contract_history WHERE process_id = ?`, p.ID).Scan(&stored).Error; err != nil {
		return err
	}
	if stored > len(p.History) {
		return ErrConflict
	}
	if err := insertHistory(tx, p.ID, p.History[stored:]); err != nil {
		return err
	}
	p.Version = expectedVersion + 1
	return nil
}

func (r *PostgresRepository) CloseProcess(ctx context.Context, p *model.ContractProcess, expectedVersion int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateProcess(tx, p, expectedVersion); err != nil {
			return err
		}
		if err := tx.Exec(`
			UPDATE match_requests
			SET released_at = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND status = 'accepted' AND released_at IS NULL
		`, p.UpdatedAt, p.UpdatedAt, p.MatchID).Error; err != nil {
			return translate(err)
		}
		return translate(tx.Exec(`
			UPDATE properties SET available = TRUE, updated_at = ? WHERE id = ?
		`, p.UpdatedAt, p.PropertyID).Error)
	})
}

// touchProcess advances the process version alongside a slot write.
func touchProcess(tx *gorm.DB, p *model.ContractProcess, expectedVersion int64) error {
	res := tx.Exec(`
		UPDATE contract_processes
		SET version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, p.UpdatedAt, p.ID, expectedVersion)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return versionMiss(tx, "contract_processes", p.ID)
	}
	return nil
}

func (r *PostgresRepository) CreateChecklist(ctx context.Context, p *model.ContractProcess, expectedVersion int64, slots []model.DocumentSlot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateProcess(tx, p, expectedVersion); err != nil {
			return err
		}
		var existing int64
		if err := tx.Raw(`SELECT COUNT(*) FROM document_slots WHERE process_id = ?`, p.ID).Scan(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrConflict
		}
		for i := range slots {
			if err := insertSlot(tx, &slots[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Document slots

const slotColumns = `
	id, process_id, type, category, required, status, file_ref, file_name, content_type,
	file_size, custom_name, custom_description, uploaded_by, reviewed_by, review_notes,
	uploaded_at, reviewed_at, extraction, audit, version, created_at`

type slotRow struct {
	ID                uuid.UUID
	ProcessID         uuid.UUID
	Type              string
	Category          string
	Required          bool
	Status            string
	FileRef           string
	FileName          string
	ContentType       string
	FileSize          int64
	CustomName        string
	CustomDescription string
	UploadedBy        *uuid.UUID
	ReviewedBy        *uuid.UUID
	ReviewNotes       string
	UploadedAt        *time.Time
	ReviewedAt        *time.Time
	Extraction        *string
	Audit             string
	Version           int64
	CreatedAt         time.Time
}

func (row slotRow) toModel() (model.DocumentSlot, error) {
	s := model.DocumentSlot{
		ID:                row.ID,
		ProcessID:         row.ProcessID,
		Type:              model.DocumentType(row.Type),
		Category:          model.DocumentCategory(row.Category),
		Required:          row.Required,
		Status:            model.DocumentStatus(row.Status),
		FileRef:           row.FileRef,
		FileName:          row.FileName,
		ContentType:       row.ContentType,
		FileSize:          row.FileSize,
		CustomName:        row.CustomName,
		CustomDescription: row.CustomDescription,
		UploadedBy:        row.UploadedBy,
		ReviewedBy:        row.ReviewedBy,
		ReviewNotes:       row.ReviewNotes,
		UploadedAt:        row.UploadedAt,
		ReviewedAt:        row.ReviewedAt,
		Version:           row.Version,
		CreatedAt:         row.CreatedAt,
	}
	if err := fromJSON(row.Audit, &s.Audit); err != nil {
		return s, err
	}
	if row.Extraction != nil && *row.Extraction != "" && *row.Extraction != "null" {
		var ex model.ExtractionResult
		if err := fromJSON(*row.Extraction, &ex); err != nil {
			return s, err
		}
		s.Extraction = &ex
	}
	return s, nil
}

func encodeSlot(s *model.DocumentSlot) (audit string, extraction *string, err error) {
	audit, err = toJSON(s.Audit)
	if err != nil {
		return "", nil, err
	}
	if s.Extraction != nil {
		ex, err := toJSON(s.Extraction)
		if err != nil {
			return "", nil, err
		}
		extraction = &ex
	}
	return audit, extraction, nil
}

func insertSlot(tx *gorm.DB, s *model.DocumentSlot) error {
	audit, extraction, err := encodeSlot(s)
	if err != nil {
		return err
	}
	if err := tx.Exec(`
		INSERT INTO document_slots (`+slotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?::jsonb, ?::jsonb, 1, ?)
	`,
		s.ID, s.ProcessID, string(s.Type), string(s.Category), s.Required, string(s.Status), s.FileRef,
		s.FileName, s.ContentType, s.FileSize, s.CustomName, s.CustomDescription, s.UploadedBy,
		s.ReviewedBy, s.ReviewNotes, s.UploadedAt, s.ReviewedAt, extraction, audit, s.CreatedAt,
	).Error; err != nil {
		return translate(err)
	}
	s.Version = 1
	return nil
}

func (r *PostgresRepository) ListSlots(ctx context.Context, processID uuid.UUID) ([]model.DocumentSlot, error) {
	return r.querySlots(ctx, `WHERE process_id = ? ORDER BY created_at ASC, type ASC`, processID)
}

func (r *PostgresRepository) GetSlot(ctx context.Context, id uuid.UUID) (*model.DocumentSlot, error) {
	slots, err := r.querySlots(ctx, `WHERE id = ? LIMIT 1`, id)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, ErrNotFound
	}
	return &slots[0], nil
}

func (r *PostgresRepository) querySlots(ctx context.Context, where string, args ...interface{}) ([]model.DocumentSlot, error) {
	var rows []slotRow
	if err := r.db.WithContext(ctx).Raw(`SELECT `+slotColumns+` FROM document_slots `+where, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.DocumentSlot, 0, len(rows))
	for _, row := range rows {
		s, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *PostgresRepository) CreateSlot(ctx context.Context, p *model.ContractProcess, expectedProcessVersion int64, s *model.DocumentSlot) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := touchProcess(tx, p, expectedProcessVersion); err != nil {
			return err
		}
		return insertSlot(tx, s)
	})
	if err != nil {
		return err
	}
	p.Version = expectedProcessVersion + 1
	return nil
}

func (r *PostgresRepository) UpdateSlot(ctx context.Context, p *model.ContractProcess, expectedProcessVersion int64, s *model.DocumentSlot, expectedVersion int64) error {
	audit, extraction, err := encodeSlot(s)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := touchProcess(tx, p, expectedProcessVersion); err != nil {
			return err
		}
		return updateSlot(tx, s, expectedVersion, audit, extraction)
	})
	if err != nil {
		return err
	}
	p.Version = expectedProcessVersion + 1
	s.Version = expectedVersion + 1
	return nil
}

func updateSlot(tx *gorm.DB, s *model.DocumentSlot, expectedVersion int64, audit string, extraction *string) error {
	res := tx.Exec(`
		UPDATE document_slots
		SET
			required = ?,
			status = ?,
			file_ref = ?,
			file_name = ?,
			content_type = ?,
			file_size = ?,
			uploaded_by = ?,
			reviewed_by = ?,
			review_notes = ?,
			uploaded_at = ?,
			reviewed_at = ?,
			extraction = ?::jsonb,
			audit = ?::jsonb,
			version = version + 1
		WHERE id = ? AND version = ?
	`,
		s.Required, string(s.Status), s.FileRef, s.FileName, s.ContentType, s.FileSize, s.UploadedBy,
		s.ReviewedBy, s.ReviewNotes, s.UploadedAt, s.ReviewedAt, extraction, audit, s.ID, expectedVersion,
	)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return versionMiss(tx, "document_slots", s.ID)
	}
	return nil
}

func (r *PostgresRepository) DeleteSlot(ctx context.Context, p *model.ContractProcess, expectedProcessVersion int64, id uuid.UUID, expectedVersion int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := touchProcess(tx, p, expectedProcessVersion); err != nil {
			return err
		}
		res := tx.Exec(`DELETE FROM document_slots WHERE id = ? AND version = ?`, id, expectedVersion)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return versionMiss(tx, "document_slots", id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.Version = expectedProcessVersion + 1
	return nil
}

// Signing

type signingRow struct {
	ProcessID        uuid.UUID
	Role             string
	SignerID         uuid.UUID
	StartedAt        time.Time
	Completed        bool
	CompletedAt      *time.Time
	VerificationHash string
	Context          string
	Geolocation      *string
}

func (r *PostgresRepository) ListSignings(ctx context.Context, processID uuid.UUID) ([]model.SigningRecord, error) {
	var rows []signingRow
	if err := r.db.WithContext(ctx).Raw(`
		SELECT process_id, role, signer_id, started_at, completed, completed_at, verification_hash, context, geolocation
		FROM signing_records
		WHERE process_id = ?
		ORDER BY started_at ASC
	`, processID).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.SigningRecord, 0, len(rows))
	for _, row := range rows {
		rec := model.SigningRecord{
			ProcessID:        row.ProcessID,
			Role:             model.SigningRole(row.Role),
			SignerID:         row.SignerID,
			StartedAt:        row.StartedAt,
			Completed:        row.Completed,
			CompletedAt:      row.CompletedAt,
			VerificationHash: row.VerificationHash,
		}
		if err := fromJSON(row.Context, &rec.Context); err != nil {
			return nil, err
		}
		if row.Geolocation != nil && *row.Geolocation != "" && *row.Geolocation != "null" {
			var geo model.Geolocation
			if err := fromJSON(*row.Geolocation, &geo); err != nil {
				return nil, err
			}
			rec.Geolocation = &geo
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *PostgresRepository) SaveSigning(ctx context.Context, rec *model.SigningRecord, p *model.ContractProcess, expectedVersion int64) error {
	deviceCtx, err := toJSON(rec.Context)
	if err != nil {
		return err
	}
	var geo *string
	if rec.Geolocation != nil {
		g, err := toJSON(rec.Geolocation)
		if err != nil {
			return err
		}
		geo = &g
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateProcess(tx, p, expectedVersion); err != nil {
			return err
		}
		res := tx.Exec(`
			INSERT INTO signing_records (process_id, role, signer_id, started_at, completed, completed_at, verification_hash, context, geolocation)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?::jsonb, ?::jsonb)
			ON CONFLICT (process_id, role) DO UPDATE SET
				completed = EXCLUDED.completed,
				completed_at = EXCLUDED.completed_at,
				verification_hash = EXCLUDED.verification_hash,
				context = EXCLUDED.context,
				geolocation = EXCLUDED.geolocation
			WHERE signing_records.completed = FALSE
		`, rec.ProcessID, string(rec.Role), rec.SignerID, rec.StartedAt, rec.Completed, rec.CompletedAt,
			rec.VerificationHash, deviceCtx, geo)
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		return nil
	})
}
