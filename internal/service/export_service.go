package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/peerobs-api/internal/models"
	appErrors "github.com/noah-isme/peerobs-api/pkg/errors"
	"github.com/noah-isme/peerobs-api/pkg/export"
)

const exportPageSize = 1000

// ExportService renders observation schedules as CSV or PDF downloads.
type ExportService struct {
	observations bookingObservationStore
	teachers     bookingTeacherStore
	csv          *export.CSVExporter
	pdf          *export.PDFExporter
	logger       *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(observations bookingObservationStore, teachers bookingTeacherStore, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		observations: observations,
		teachers:     teachers,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		logger:       logger,
	}
}

// ObservationsCSV renders all observations in the date range as CSV.
func (s *ExportService) ObservationsCSV(ctx context.Context, from, to time.Time) ([]byte, error) {
	table, err := s.buildTable(ctx, from, to)
	if err != nil {
		return nil, err
	}
	data, err := s.csv.Render(*table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return data, nil
}

// ObservationsPDF renders all observations in the date range as PDF.
func (s *ExportService) ObservationsPDF(ctx context.Context, from, to time.Time) ([]byte, error) {
	table, err := s.buildTable(ctx, from, to)
	if err != nil {
		return nil, err
	}
	title := fmt.Sprintf("Observation Schedule %s to %s", from.Format(bookingDateLayout), to.Format(bookingDateLayout))
	data, err := s.pdf.Render(*table, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return data, nil
}

func (s *ExportService) buildTable(ctx context.Context, from, to time.Time) (*export.Table, error) {
	table := &export.Table{
		Headers: []string{"Date", "Periods", "Observer", "Teacher", "Room", "Status", "Coverage"},
	}

	observerNames := map[string]string{}
	for page := 1; ; page++ {
		observations, total, err := s.observations.List(ctx, models.ObservationFilter{
			DateFrom: &from,
			DateTo:   &to,
			Page:     page,
			PageSize: exportPageSize,
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list observations")
		}

		for i := range observations {
			obs := &observations[i]
			table.Rows = append(table.Rows, []string{
				obs.Date.Format(bookingDateLayout),
				formatPeriods(obs.Periods),
				s.observerName(ctx, observerNames, obs.ObserverID),
				obs.TeacherName,
				obs.TeacherRoom,
				string(obs.Status),
				string(obs.SubStatus),
			})
		}

		if page*exportPageSize >= total || len(observations) == 0 {
			break
		}
	}

	return table, nil
}

func (s *ExportService) observerName(ctx context.Context, memo map[string]string, observerID string) string {
	if name, ok := memo[observerID]; ok {
		return name
	}
	name := observerID
	if teacher, err := s.teachers.FindByID(ctx, observerID); err == nil {
		name = teacher.FullName
	} else {
		s.logger.Warn("observer lookup failed during export",
			zap.String("observer_id", observerID),
			zap.Error(err))
	}
	memo[observerID] = name
	return name
}

func formatPeriods(periods []int64) string {
	parts := make([]string, 0, len(periods))
	for _, p := range periods {
		parts = append(parts, fmt.Sprintf("%d", p))
	}
	return strings.Join(parts, ", ")
}
