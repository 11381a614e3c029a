package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"matchwell/internal/domain"
	"matchwell/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Service builds xlsx reports for staff: a leads sheet and a schedule grid of
// therapists by day.
type Service struct {
	store  domain.Store
	logger *zerolog.Logger
}

func NewService(store domain.Store, logger *zerolog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// WriteLeadsReport streams the report to w. Used by the admin export endpoint.
func (s *Service) WriteLeadsReport(ctx context.Context, w io.Writer, from, to time.Time) error {
	f, err := s.buildReport(ctx, from, to)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SaveLeadsReport writes the report to dir and returns the file path. Used by
// the export CLI.
func (s *Service) SaveLeadsReport(ctx context.Context, dir string, from, to time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f, err := s.buildReport(ctx, from, to)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fileName := fmt.Sprintf("leads_%s_%s.xlsx", from.Format("2006-01-02"), to.Format("2006-01-02"))
	filePath := filepath.Join(dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}

	s.logger.Info().Str("file_path", filePath).Msg("leads report written")
	return filePath, nil
}

func (s *Service) buildReport(ctx context.Context, from, to time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := s.writeLeadsSheet(ctx, f); err != nil {
		f.Close()
		return nil, err
	}
	if err := s.writeScheduleSheet(ctx, f, from, to); err != nil {
		f.Close()
		return nil, err
	}

	_ = f.DeleteSheet("Sheet1")
	return f, nil
}

func (s *Service) writeLeadsSheet(ctx context.Context, f *excelize.File) error {
	const sheet = "Leads"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create leads sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{
		"ID", "Name", "Email", "Phone", "Channel", "Status",
		"UTM Source", "UTM Campaign", "Consent", "Created",
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
		_ = f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	row := 2
	offset := 0
	for {
		people, err := s.store.ListPeople(ctx, "", models.DefaultPageSize, offset)
		if err != nil {
			return fmt.Errorf("list people: %w", err)
		}
		if len(people) == 0 {
			break
		}
		for _, p := range people {
			_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), p.ID)
			_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), p.FullName())
			_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), p.Email)
			_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), p.Phone)
			_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), p.Channel)
			_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), p.Status)
			_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), p.UTMSource)
			_ = f.SetCellValue(sheet, fmt.Sprintf("H%d", row), p.UTMCampaign)
			_ = f.SetCellValue(sheet, fmt.Sprintf("I%d", row), boolToYesNo(p.ConsentGiven))
			_ = f.SetCellValue(sheet, fmt.Sprintf("J%d", row), p.CreatedAt.Format("02.01.2006 15:04"))
			row++
		}
		offset += len(people)
	}

	_ = f.SetColWidth(sheet, "A", "A", 8)
	_ = f.SetColWidth(sheet, "B", "B", 25)
	_ = f.SetColWidth(sheet, "C", "D", 22)
	_ = f.SetColWidth(sheet, "E", "F", 12)
	_ = f.SetColWidth(sheet, "G", "H", 18)
	_ = f.SetColWidth(sheet, "I", "I", 10)
	_ = f.SetColWidth(sheet, "J", "J", 18)
	return nil
}

// writeScheduleSheet renders a grid of therapists (rows) by dates (columns)
// with the bookings for each slot.
func (s *Service) writeScheduleSheet(ctx context.Context, f *excelize.File, from, to time.Time) error {
	const sheet = "Schedule"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create schedule sheet: %w", err)
	}

	daily, err := s.store.GetDailyBookings(ctx, from, to)
	if err != nil {
		return fmt.Errorf("get daily bookings: %w", err)
	}
	therapists, err := s.store.GetActiveTherapists(ctx)
	if err != nil {
		return fmt.Errorf("get therapists: %w", err)
	}

	_ = f.SetCellValue(sheet, "A1", fmt.Sprintf("Period: %s - %s",
		from.Format("02.01.2006"), to.Format("02.01.2006")))
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheet, "A1", "A1", titleStyle)

	dateCols := s.writeDateHeaders(f, sheet, from, to)
	s.writeTherapistHeaders(f, sheet, therapists)
	s.writeScheduleCells(f, sheet, daily, therapists, dateCols)

	_ = f.SetColWidth(sheet, "A", "A", 25)
	for i := 'B'; i <= 'Z'; i++ {
		_ = f.SetColWidth(sheet, string(i), string(i), 20)
	}

	lastCol, _ := excelize.ColumnNumberToName(len(dateCols) + 1)
	_ = f.MergeCell(sheet, "A1", lastCol+"1")
	return nil
}

func (s *Service) writeDateHeaders(f *excelize.File, sheet string, from, to time.Time) map[string]int {
	style, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	col := 2
	dateCols := make(map[string]int)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(sheet, cell, d.Format("02.01"))
		_ = f.SetCellStyle(sheet, cell, cell, style)
		dateCols[d.Format("2006-01-02")] = col
		col++
	}
	return dateCols
}

func (s *Service) writeTherapistHeaders(f *excelize.File, sheet string, therapists []*models.Therapist) {
	style, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})

	row := 3
	for _, t := range therapists {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheet, cell, fmt.Sprintf("%s (%d/day)", t.Name, t.DailyCapacity))
		_ = f.SetCellStyle(sheet, cell, cell, style)
		row++
	}
}

func (s *Service) writeScheduleCells(
	f *excelize.File, sheet string,
	daily map[string][]*models.Booking,
	therapists []*models.Therapist,
	dateCols map[string]int,
) {
	for dateKey, bookings := range daily {
		col, ok := dateCols[dateKey]
		if !ok {
			continue
		}

		byTherapist := make(map[int64][]*models.Booking)
		for _, b := range bookings {
			byTherapist[b.TherapistID] = append(byTherapist[b.TherapistID], b)
		}

		row := 3
		for _, t := range therapists {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			slot := byTherapist[t.ID]

			var active int64
			var cellValue string
			for _, b := range slot {
				if b.Active() {
					active++
				}
				cellValue += fmt.Sprintf("%s %s (%s)\n", statusIcon(b.Status), b.PersonName, b.Phone)
				if b.Comment != "" {
					cellValue += fmt.Sprintf("   %s\n", b.Comment)
				}
			}
			if len(slot) > 0 {
				cellValue += fmt.Sprintf("\nBooked: %d/%d", active, t.DailyCapacity)
			} else {
				cellValue = fmt.Sprintf("Free\n\nAvailable: %d/%d", t.DailyCapacity, t.DailyCapacity)
			}

			_ = f.SetCellValue(sheet, cell, cellValue)
			if styleID, err := slotStyle(f, slot, active, t.DailyCapacity); err == nil {
				_ = f.SetCellStyle(sheet, cell, cell, styleID)
			}
			row++
		}
	}
}

func statusIcon(status string) string {
	switch status {
	case models.BookingConfirmed, models.BookingCompleted:
		return "✅"
	case models.BookingPending:
		return "⏳"
	case models.BookingCancelled:
		return "❌"
	default:
		return "❓"
	}
}

// slotStyle colors the cell: white for empty, red for full, yellow when a
// pending booking waits, green when everything is confirmed.
func slotStyle(f *excelize.File, slot []*models.Booking, active, capacity int64) (int, error) {
	fill := func(color string) (int, error) {
		return f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: &excelize.Alignment{
				Horizontal: "left",
				Vertical:   "top",
				WrapText:   true,
			},
		})
	}

	if active == 0 {
		return fill("#FFFFFF")
	}
	if active >= capacity {
		return fill("#FFC7CE")
	}
	for _, b := range slot {
		if b.Status == models.BookingPending {
			return fill("#FFEB9C")
		}
	}
	return fill("#C6EFCE")
}

func boolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
