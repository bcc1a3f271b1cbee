package interfaces

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	gauging "fuel-backoffice/internal/gauging/domain"
)

// WorkbookSheet is the sheet holding the height and volume columns.
const WorkbookSheet = "calibration"

// DecodeWorkbook reads a calibration table from an xlsx file. The
// calibration sheet is preferred; otherwise the first sheet is used.
func DecodeWorkbook(r io.Reader) (gauging.ImportReport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return gauging.ImportReport{}, fmt.Errorf("%w: %v", gauging.ErrMalformedCalibrationCSV, err)
	}
	defer f.Close()

	sheet := WorkbookSheet
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return gauging.ImportReport{}, fmt.Errorf("%w: %v", gauging.ErrMalformedCalibrationCSV, err)
	}
	return gauging.DecodeRows(rows)
}

// EncodeWorkbook writes entries to the calibration sheet.
func EncodeWorkbook(entries []gauging.Entry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", WorkbookSheet); err != nil {
		return nil, err
	}
	_ = f.SetCellValue(WorkbookSheet, "A1", gauging.CSVHeader[0])
	_ = f.SetCellValue(WorkbookSheet, "B1", gauging.CSVHeader[1])
	for i, entry := range entries {
		row := i + 2
		_ = f.SetCellValue(WorkbookSheet, fmt.Sprintf("A%d", row), entry.HeightCM)
		_ = f.SetCellValue(WorkbookSheet, fmt.Sprintf("B%d", row), entry.VolumeLiters)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
