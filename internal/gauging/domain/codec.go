package gauging

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// CSVHeader is the header written by EncodeCSV.
var CSVHeader = []string{"height", "volume"}

// ImportReport is the outcome of parsing a calibration file.
type ImportReport struct {
	Entries  []Entry  `json:"entries"`
	Warnings []string `json:"warnings,omitempty"`
	Skipped  int      `json:"skipped"`
}

// DecodeCSV parses a height,volume table. A semicolon delimiter is accepted,
// in which case decimal commas are accepted too. Rows that cannot be parsed
// are skipped with a warning.
func DecodeCSV(r io.Reader) (ImportReport, error) {
	var report ImportReport
	data, err := io.ReadAll(r)
	if err != nil {
		return report, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	delimiter := detectDelimiter(data)
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return report, fmt.Errorf("%w: empty file", ErrMalformedCalibrationCSV)
		}
		return report, fmt.Errorf("%w: %v", ErrMalformedCalibrationCSV, err)
	}
	heightCol, volumeCol, ok := headerColumns(header)
	if !ok {
		return report, fmt.Errorf("%w: header must name height and volume columns, got %q", ErrMalformedCalibrationCSV, strings.Join(header, string(delimiter)))
	}

	row := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			report.Skipped++
			report.Warnings = append(report.Warnings, fmt.Sprintf("row %d: %v", row, err))
			continue
		}
		if isBlank(record) {
			continue
		}
		report.addRow(row, record, heightCol, volumeCol, len(header), delimiter)
	}
	if len(report.Entries) == 0 {
		return report, fmt.Errorf("%w: no valid rows", ErrMalformedCalibrationCSV)
	}
	return report, nil
}

// DecodeRows parses a header row followed by data rows, as read from a
// spreadsheet. Cells are expected with a decimal point.
func DecodeRows(rows [][]string) (ImportReport, error) {
	var report ImportReport
	for len(rows) > 0 && isBlank(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return report, fmt.Errorf("%w: empty sheet", ErrMalformedCalibrationCSV)
	}
	header := rows[0]
	heightCol, volumeCol, ok := headerColumns(header)
	if !ok {
		return report, fmt.Errorf("%w: header must name height and volume columns, got %q", ErrMalformedCalibrationCSV, strings.Join(header, ","))
	}
	for i, record := range rows[1:] {
		if isBlank(record) {
			continue
		}
		report.addRow(i+2, record, heightCol, volumeCol, len(header), ',')
	}
	if len(report.Entries) == 0 {
		return report, fmt.Errorf("%w: no valid rows", ErrMalformedCalibrationCSV)
	}
	return report, nil
}

func (report *ImportReport) addRow(row int, record []string, heightCol, volumeCol, width int, delimiter rune) {
	if heightCol >= len(record) || volumeCol >= len(record) {
		report.Skipped++
		report.Warnings = append(report.Warnings, fmt.Sprintf("row %d: expected %d fields, got %d", row, width, len(record)))
		return
	}
	height, err := parseNumber(record[heightCol], delimiter)
	if err != nil {
		report.Skipped++
		report.Warnings = append(report.Warnings, fmt.Sprintf("row %d: height %q: not a number", row, record[heightCol]))
		return
	}
	volume, err := parseNumber(record[volumeCol], delimiter)
	if err != nil {
		report.Skipped++
		report.Warnings = append(report.Warnings, fmt.Sprintf("row %d: volume %q: not a number", row, record[volumeCol]))
		return
	}
	if height < 0 || volume < 0 {
		report.Skipped++
		report.Warnings = append(report.Warnings, fmt.Sprintf("row %d: negative values", row))
		return
	}
	report.Entries = append(report.Entries, Entry{HeightCM: height, VolumeLiters: volume})
}

// EncodeCSV writes entries under CSVHeader using the shortest float form.
func EncodeCSV(w io.Writer, entries []Entry) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := writer.Write([]string{FormatNumber(entry.HeightCM), FormatNumber(entry.VolumeLiters)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// FormatNumber renders v in its shortest round-trippable form.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func detectDelimiter(data []byte) rune {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.Contains(line, ";") && !strings.Contains(line, ",") {
			return ';'
		}
		return ','
	}
	return ','
}

func headerColumns(header []string) (int, int, bool) {
	heightCol, volumeCol := -1, -1
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		switch {
		case heightCol < 0 && (strings.HasPrefix(name, "height") || strings.HasPrefix(name, "altura")):
			heightCol = i
		case volumeCol < 0 && (strings.HasPrefix(name, "volume") || strings.HasPrefix(name, "volumen")):
			volumeCol = i
		}
	}
	return heightCol, volumeCol, heightCol >= 0 && volumeCol >= 0
}

func parseNumber(raw string, delimiter rune) (float64, error) {
	raw = strings.TrimSpace(raw)
	if delimiter == ';' {
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, strconv.ErrSyntax
	}
	return value, nil
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
