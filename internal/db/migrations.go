package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'contract_state') THEN
			CREATE TYPE contract_state AS ENUM (
				'DRAFT', 'TENANT_INVITED', 'TENANT_REVIEWING', 'LANDLORD_REVIEWING',
				'OBJECTIONS_PENDING', 'BOTH_REVIEWING', 'READY_TO_SIGN', 'FULLY_SIGNED',
				'PUBLISHED', 'EXPIRED', 'TERMINATED', 'CANCELLED'
			);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'match_status') THEN
			CREATE TYPE match_status AS ENUM ('pending', 'viewed', 'accepted', 'rejected', 'cancelled', 'expired');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'document_status') THEN
			CREATE TYPE document_status AS ENUM ('pending', 'approved', 'rejected', 'requires_correction');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS properties (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		landlord_id UUID NOT NULL,
		address TEXT NOT NULL,
		area_m2 NUMERIC(10,2) NOT NULL DEFAULT 0,
		type VARCHAR(32) NOT NULL,
		monthly_rent NUMERIC(18,2) NOT NULL DEFAULT 0,
		deposit NUMERIC(18,2) NOT NULL DEFAULT 0,
		available BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS match_requests (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		code VARCHAR(32) NOT NULL,
		property_id UUID NOT NULL REFERENCES properties(id),
		tenant_id UUID NOT NULL,
		landlord_id UUID NOT NULL,
		status match_status NOT NULL DEFAULT 'pending',
		priority VARCHAR(16) NOT NULL DEFAULT 'normal',
		profile JSONB NOT NULL DEFAULT '{}'::jsonb,
		message TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMPTZ NOT NULL,
		decided_at TIMESTAMPTZ,
		process_id UUID,
		released_at TIMESTAMPTZ,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`ALTER TABLE match_requests ADD COLUMN IF NOT EXISTS released_at TIMESTAMPTZ;`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_match_requests_code ON match_requests (code);`,
	`DROP INDEX IF EXISTS uq_match_requests_accepted_property;`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_match_requests_holding_property
		ON match_requests (property_id) WHERE status = 'accepted' AND released_at IS NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_match_requests_tenant_id ON match_requests (tenant_id);`,
	`CREATE INDEX IF NOT EXISTS idx_match_requests_open_expiry
		ON match_requests (expires_at) WHERE status IN ('pending', 'viewed');`,
	`CREATE TABLE IF NOT EXISTS contract_processes (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		match_id UUID NOT NULL REFERENCES match_requests(id),
		property_id UUID NOT NULL REFERENCES properties(id),
		landlord JSONB NOT NULL,
		tenant JSONB NOT NULL,
		property JSONB NOT NULL,
		terms JSONB NOT NULL,
		guarantee_type VARCHAR(16) NOT NULL DEFAULT 'none',
		state contract_state NOT NULL DEFAULT 'DRAFT',
		tenant_approved BOOLEAN NOT NULL DEFAULT FALSE,
		landlord_approved BOOLEAN NOT NULL DEFAULT FALSE,
		invitation JSONB,
		visit_scheduled_at TIMESTAMPTZ,
		visit_completed_at TIMESTAMPTZ,
		archived_at TIMESTAMPTZ,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_contract_processes_match_id ON contract_processes (match_id);`,
	`CREATE INDEX IF NOT EXISTS idx_contract_processes_state ON contract_processes (state);`,
	`CREATE INDEX IF NOT EXISTS idx_contract_processes_invitation
		ON contract_processes ((invitation->>'token_hash')) WHERE invitation IS NOT NULL;`,
	`CREATE TABLE IF NOT EXISTS contract_history (
		process_id UUID NOT NULL REFERENCES contract_processes(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		action VARCHAR(32) NOT NULL,
		from_state contract_state NOT NULL,
		to_state contract_state NOT NULL,
		actor_role VARCHAR(16) NOT NULL,
		actor_id UUID NOT NULL,
		at TIMESTAMPTZ NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (process_id, seq)
	);`,
	`CREATE TABLE IF NOT EXISTS document_slots (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		process_id UUID NOT NULL REFERENCES contract_processes(id) ON DELETE CASCADE,
		type VARCHAR(64) NOT NULL,
		category VARCHAR(16) NOT NULL,
		required BOOLEAN NOT NULL DEFAULT FALSE,
		status document_status NOT NULL DEFAULT 'pending',
		file_ref TEXT NOT NULL DEFAULT '',
		file_name TEXT NOT NULL DEFAULT '',
		content_type VARCHAR(128) NOT NULL DEFAULT '',
		file_size BIGINT NOT NULL DEFAULT 0,
		custom_name TEXT NOT NULL DEFAULT '',
		custom_description TEXT NOT NULL DEFAULT '',
		uploaded_by UUID,
		reviewed_by UUID,
		review_notes TEXT NOT NULL DEFAULT '',
		uploaded_at TIMESTAMPTZ,
		reviewed_at TIMESTAMPTZ,
		extraction JSONB,
		audit JSONB NOT NULL DEFAULT '[]'::jsonb,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_document_slots_catalog_type
		ON document_slots (process_id, type) WHERE type <> 'otros';`,
	`CREATE INDEX IF NOT EXISTS idx_document_slots_process_id ON document_slots (process_id);`,
	`CREATE TABLE IF NOT EXISTS signing_records (
		process_id UUID NOT NULL REFERENCES contract_processes(id) ON DELETE CASCADE,
		role VARCHAR(16) NOT NULL,
		signer_id UUID NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		completed_at TIMESTAMPTZ,
		verification_hash VARCHAR(80) NOT NULL DEFAULT '',
		context JSONB NOT NULL DEFAULT '{}'::jsonb,
		geolocation JSONB,
		PRIMARY KEY (process_id, role)
	);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
