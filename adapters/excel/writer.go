package excel

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"

	"isofit/internal/errors"

	"github.com/xuri/excelize/v2"
)

// Sheet is an output table whose cells keep their Go types, so numbers land
// in XLSX as numeric cells instead of text.
type Sheet struct {
	Headers []string
	Rows    [][]any
}

// WriteCSV writes the sheet as UTF-8 CSV with a header row
func WriteCSV(path string, sheet *Sheet) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create CSV file %s", path)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(sheet.Headers); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}
	record := make([]string, len(sheet.Headers))
	for _, row := range sheet.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatCell(row[i])
			}
		}
		if err := w.Write(record); err != nil {
			return errors.Wrap(err, "failed to write CSV row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "failed to flush CSV file")
	}

	log.Printf("[DataWriter] Wrote %d rows to %s", len(sheet.Rows), path)
	return nil
}

// WriteXLSX writes the sheet to Sheet1 of a new workbook
func WriteXLSX(path string, sheet *Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	// Ensure Sheet1 exists and is active.
	if idx, err := f.GetSheetIndex(DefaultSheet); err != nil || idx == -1 {
		idx, err := f.NewSheet(DefaultSheet)
		if err != nil {
			return errors.Wrap(err, "failed to create sheet")
		}
		f.SetActiveSheet(idx)
	}

	header := make([]any, len(sheet.Headers))
	for i, h := range sheet.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(DefaultSheet, "A1", &header); err != nil {
		return errors.Wrap(err, "failed to write XLSX header")
	}

	for r, row := range sheet.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return errors.Wrap(err, "invalid cell coordinates")
		}
		values := row
		if err := f.SetSheetRow(DefaultSheet, cell, &values); err != nil {
			return errors.Wrapf(err, "failed to write XLSX row %d", r+2)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "failed to save XLSX file %s", path)
	}

	log.Printf("[DataWriter] Wrote %d rows to %s", len(sheet.Rows), path)
	return nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}
