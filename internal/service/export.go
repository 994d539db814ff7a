package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var exportTracer = otel.Tracer("service/export")

// LastSnapshotSource returns the user's most recent dashboard snapshot.
type LastSnapshotSource interface {
	LastSnapshot(ctx context.Context, user *domain.User) *domain.DashboardSnapshot
}

// Export is a rendered CSV download.
type Export struct {
	Filename string
	Data     []byte
}

// ExportService renders the two-column consumption export.
type ExportService struct {
	snapshots LastSnapshotSource
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService creates a new export service.
func NewExportService(snapshots LastSnapshotSource, logger *zap.Logger) *ExportService {
	return &ExportService{snapshots: snapshots, logger: logger, now: time.Now}
}

// Export — GET /v1/dashboard/export
func (s *ExportService) Export(ctx context.Context, user *domain.User) (*Export, error) {
	ctx, span := exportTracer.Start(ctx, "ExportService.Export")
	defer span.End()

	snap := s.snapshots.LastSnapshot(ctx, user)
	now := s.now().UTC()

	data, err := RenderCSV(user.Email, now, snap)
	if err != nil {
		return nil, err
	}

	s.logger.Info("consumption exported", zap.String("uid", user.ID), zap.String("status", string(snap.Status)))
	return &Export{
		Filename: fmt.Sprintf("ElectriTrack_Consumption_%s.csv", now.Format("2006-01-02")),
		Data:     data,
	}, nil
}

// RenderCSV writes the Field,Value rows for snap.
func RenderCSV(email string, at time.Time, snap *domain.DashboardSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{
		{"Field", "Value"},
		{"User Email", email},
		{"Export Date", at.UTC().Format(isoMillis)},
		{"Consumption (kWh)", snap.Consumption},
		{"Bill Amount (" + domain.CurrencySymbol + ")", snap.Bill.Amount},
		{"Today's Usage (kWh)", snap.Usage.Today},
		{"This Month's Usage (kWh)", snap.Usage.Month},
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("render csv: %w", err)
	}
	return buf.Bytes(), nil
}
