package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Tiliavir/shift-clock/internal/model"
)

// WorkbookSheet is the sheet events are appended to.
const WorkbookSheet = "Log"

var workbookHeader = []any{"Timestamp", "Name", "Action", "Local Time", "Received"}

// Workbook appends one row per event to a local .xlsx file, standing in
// for the spreadsheet behind the relay.
type Workbook struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

func NewWorkbook(path string) *Workbook {
	return &Workbook{path: path, now: time.Now}
}

func (w *Workbook) Name() string { return "workbook" }

func (w *Workbook) Submit(ctx context.Context, ev model.SyncEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(WorkbookSheet)
	if err != nil {
		return fmt.Errorf("read workbook rows: %w", err)
	}
	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}
	row := []any{ev.Timestamp, ev.Name, ev.Action, ev.LocalTime, w.now().UTC().Format(time.RFC3339)}
	if err := f.SetSheetRow(WorkbookSheet, cell, &row); err != nil {
		return fmt.Errorf("append workbook row: %w", err)
	}
	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func (w *Workbook) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(w.path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	f = excelize.NewFile()
	if err := f.SetSheetName("Sheet1", WorkbookSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetSheetRow(WorkbookSheet, "A1", &workbookHeader); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
