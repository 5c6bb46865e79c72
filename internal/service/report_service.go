package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/rental-contracts/internal/clock"
	"github.com/nurpe/rental-contracts/internal/model"
	"github.com/nurpe/rental-contracts/internal/repository"
	"github.com/nurpe/rental-contracts/internal/signing"
)

type ExcelGenerator interface {
	Generate(report model.ProcessReport) ([]byte, error)
}

type PDFGenerator interface {
	Generate(report model.ProcessReport) ([]byte, error)
}

type ReportService struct {
	repo  repository.Repository
	excel ExcelGenerator
	pdf   PDFGenerator
	clock clock.Clock
	log   zerolog.Logger
}

func NewReportService(repo repository.Repository, excel ExcelGenerator, pdf PDFGenerator, clk clock.Clock, log zerolog.Logger) *ReportService {
	return &ReportService{
		repo:  repo,
		excel: excel,
		pdf:   pdf,
		clock: clk,
		log:   log.With().Str("component", "reports").Logger(),
	}
}

type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

func (s *ReportService) build(ctx context.Context, principal model.Principal, processID uuid.UUID) (*model.ProcessReport, error) {
	p, err := s.repo.GetProcess(ctx, processID)
	if err != nil {
		return nil, translate(err)
	}
	if !p.IsParty(principal) {
		return nil, ErrPermissionDenied
	}
	slots, err := s.repo.ListSlots(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.ListSignings(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &model.ProcessReport{
		Process:       *p,
		Stage:         stageOf(p, slots, records),
		Slots:         slots,
		Signings:      records,
		SigningStatus: signing.Status(records, p.GuaranteeType),
		GeneratedAt:   s.clock.Now(),
	}, nil
}

func (s *ReportService) ExportXLSX(ctx context.Context, principal model.Principal, processID uuid.UUID) (*ExportResult, error) {
	report, err := s.build(ctx, principal, processID)
	if err != nil {
		return nil, err
	}
	content, err := s.excel.Generate(*report)
	if err != nil {
		return nil, fmt.Errorf("generate workbook: %w", err)
	}
	return &ExportResult{
		FileName:    fmt.Sprintf("contract_%s_%s.xlsx", shortID(processID), report.GeneratedAt.Format("20060102")),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Content:     content,
	}, nil
}

func (s *ReportService) ExportAuditPDF(ctx context.Context, principal model.Principal, processID uuid.UUID) (*ExportResult, error) {
	report, err := s.build(ctx, principal, processID)
	if err != nil {
		return nil, err
	}
	content, err := s.pdf.Generate(*report)
	if err != nil {
		return nil, fmt.Errorf("generate pdf: %w", err)
	}
	return &ExportResult{
		FileName:    fmt.Sprintf("contract_%s_audit.pdf", shortID(processID)),
		ContentType: "application/pdf",
		Content:     content,
	}, nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
