package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/drstein77/salesdash/internal/models"
	"github.com/drstein77/salesdash/internal/report"
	"github.com/drstein77/salesdash/internal/sheet"
)

var (
	// ErrHistoryDisabled is returned by history reads when no database is configured.
	ErrHistoryDisabled = errors.New("upload history is disabled")
	ErrUnavailable     = errors.New("database unavailable")
)

// HistoryLimit caps the number of summaries returned by History.
const HistoryLimit = 50

type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// Keeper interface for database operations
type Keeper interface {
	SaveReport(context.Context, models.ReportSummary) error
	ListReports(context.Context, int) ([]models.ReportSummary, error)
	Ping(context.Context) bool
	Close() bool
}

// ReportStorage runs uploads through the report builder and records the
// outcome in the optional keeper.
type ReportStorage struct {
	builder *report.Builder
	keeper  Keeper
	log     Log
}

// NewReportStorage creates a ReportStorage. keeper may be nil.
func NewReportStorage(builder *report.Builder, keeper Keeper, log Log) *ReportStorage {
	return &ReportStorage{
		builder: builder,
		keeper:  keeper,
		log:     log,
	}
}

// HistoryEnabled reports whether finished reports are recorded.
func (s *ReportStorage) HistoryEnabled() bool {
	return s.keeper != nil
}

// ProcessSpreadsheet loads the named spreadsheet from r and builds its report.
// A failure to record the report is logged and does not fail the call.
func (s *ReportStorage) ProcessSpreadsheet(ctx context.Context, name string, r io.Reader) (*models.Report, error) {
	ds, err := sheet.Load(name, r)
	if err != nil {
		return nil, err
	}

	rep := s.builder.Build(name, ds)
	s.log.Info("report built",
		zap.String("id", rep.ID),
		zap.String("file", name),
		zap.Int("rows", len(ds.Rows)),
		zap.Int("conditions", len(rep.Conditions)))

	if s.keeper != nil {
		if err := s.keeper.SaveReport(ctx, rep.Summarize()); err != nil {
			s.log.Error("cannot record report", zap.String("id", rep.ID), zap.Error(err))
		}
	}
	return rep, nil
}

// History returns the most recent report summaries, newest first.
func (s *ReportStorage) History(ctx context.Context) ([]models.ReportSummary, error) {
	if s.keeper == nil {
		return nil, ErrHistoryDisabled
	}
	summaries, err := s.keeper.ListReports(ctx, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	if summaries == nil {
		summaries = []models.ReportSummary{}
	}
	return summaries, nil
}

// Ping checks the keeper; without one there is nothing to check.
func (s *ReportStorage) Ping(ctx context.Context) error {
	if s.keeper == nil {
		return nil
	}
	if !s.keeper.Ping(ctx) {
		return ErrUnavailable
	}
	return nil
}

// Close releases the keeper.
func (s *ReportStorage) Close() {
	if s.keeper != nil {
		s.keeper.Close()
	}
}
