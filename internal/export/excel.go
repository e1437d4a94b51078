// Package export writes booking history spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"bookingdesk/internal/booking"
	"bookingdesk/internal/journal"
)

// sheetWriter appends rows to one sheet at a time.
type sheetWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func newSheetWriter() *sheetWriter {
	return &sheetWriter{file: excelize.NewFile()}
}

func (w *sheetWriter) addSheet(name string) error {
	// Excel limits sheet names to 31 chars
	if len(name) > 31 {
		name = name[:31]
	}
	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	w.currentSheet = name
	w.currentRow = 1
	return nil
}

func (w *sheetWriter) writeHeader(columns []string) error {
	if err := w.writeRow(toAny(columns)); err != nil {
		return err
	}
	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, w.currentRow-1)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow-1)
		_ = w.file.SetCellStyle(w.currentSheet, startCell, endCell, style)
	}
	return nil
}

func (w *sheetWriter) writeRow(row []any) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, val); err != nil {
			return err
		}
	}
	w.currentRow++
	return nil
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// HistoryColumns is the header row of the bookings sheet.
var HistoryColumns = []string{"Booking ID", "Resource", "Date", "Start", "End", "Status", "Customer", "Price"}

// ActivityColumns is the header row of the activity sheet.
var ActivityColumns = []string{"When", "Booking ID", "Resource", "From", "To", "Reason"}

// WriteHistory writes the bookings, and the journal entries when given, as
// an XLSX workbook. Times are rendered in loc.
func WriteHistory(out io.Writer, entries []booking.HistoryEntry, activity []journal.Entry, resourceNames map[string]string, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	w := newSheetWriter()
	defer w.file.Close()

	if err := w.addSheet("Bookings"); err != nil {
		return err
	}
	if err := w.writeHeader(HistoryColumns); err != nil {
		return err
	}
	for _, e := range entries {
		name := resourceNames[e.ResourceID]
		if name == "" {
			name = e.ResourceID
		}
		start, end := e.StartsAt.In(loc), e.EndsAt.In(loc)
		if err := w.writeRow([]any{
			e.ID, name, start.Format("2006-01-02"), start.Format("15:04"), end.Format("15:04"),
			string(e.Status), e.CustomerName, e.Price,
		}); err != nil {
			return err
		}
	}

	if len(activity) > 0 {
		if err := w.addSheet("Activity"); err != nil {
			return err
		}
		if err := w.writeHeader(ActivityColumns); err != nil {
			return err
		}
		for _, a := range activity {
			name := resourceNames[a.ResourceID]
			if name == "" {
				name = a.ResourceID
			}
			if err := w.writeRow([]any{
				a.CreatedAt.In(loc).Format("2006-01-02 15:04:05"), a.BookingID, name, a.FromState, a.ToState, a.Reason,
			}); err != nil {
				return err
			}
		}
	}

	return w.file.Write(out)
}
