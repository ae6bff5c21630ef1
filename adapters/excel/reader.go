package excel

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"isofit/internal/errors"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the worksheet read from and written to in XLSX files
const DefaultSheet = "Sheet1"

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	return &DataReader{filePath: filePath, fileType: fileTypeOf(filePath)}
}

func fileTypeOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return "xlsx"
	}
	return "csv"
}

// ReadData reads the whole file into a Table. Missing files and files without
// a data row are input errors.
func (r *DataReader) ReadData() (*Table, error) {
	log.Printf("[DataReader] Starting to read %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.InvalidInputf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, errors.InvalidInputf("unsupported file type: %s", r.fileType)
	}
}

// readExcelData reads Excel data from Sheet1 into a Table
func (r *DataReader) readExcelData() (*Table, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "failed to open Excel file")
	}
	defer f.Close()
	log.Printf("[DataReader] Excel file opened in %.2fms", float64(time.Since(startTime).Nanoseconds())/1e6)

	readStart := time.Now()
	rows, err := f.GetRows(DefaultSheet)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "failed to read "+DefaultSheet)
	}
	log.Printf("[DataReader] %s read in %.2fms (%d rows)", DefaultSheet, float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	return r.processRows(rows)
}

// readCSVData reads CSV data into a Table
func (r *DataReader) readCSVData() (*Table, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "failed to open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	readStart := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "failed to read CSV file")
	}
	log.Printf("[DataReader] CSV file read in %.2fms (%d rows)", float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	return r.processRows(rows)
}

// processRows converts raw string rows into a Table. Blank rows are skipped;
// a row with more cells than headers is malformed.
func (r *DataReader) processRows(rows [][]string) (*Table, error) {
	if len(rows) < 2 {
		return nil, errors.InvalidInputf("%s file must have at least a header row and one data row", strings.ToUpper(r.fileType))
	}

	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		// Excel exports often prefix the first header with a UTF-8 BOM
		headers[i] = strings.TrimSpace(strings.TrimPrefix(header, "\uFEFF"))
	}

	table := &Table{Headers: headers}
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		if len(row) > len(headers) {
			return nil, errors.InvalidInputf("line %d has %d cells but the header has %d", i+1, len(row), len(headers))
		}

		rowData := make(RawRowData, len(headers))
		for j, cell := range row {
			rowData[headers[j]] = strings.TrimSpace(cell)
		}
		table.Rows = append(table.Rows, rowData)
		table.Lines = append(table.Lines, i+1)
	}

	if len(table.Rows) == 0 {
		return nil, errors.InvalidInputf("%s file has no data rows", strings.ToUpper(r.fileType))
	}

	log.Printf("[DataReader] %s file processed (%d columns, %d rows)",
		strings.ToUpper(r.fileType), len(headers), len(table.Rows))

	return table, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// String describes the reader for log lines
func (r *DataReader) String() string {
	return fmt.Sprintf("%s:%s", r.fileType, r.filePath)
}
