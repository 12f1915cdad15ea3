package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/xuri/excelize/v2"
)

// decodeCSV renders a CSV file as an aligned table. The first record is the
// header; data rows are prefixed with their zero-based index.
func decodeCSV(content []byte) (string, error) {
	text, err := decodeText(content)
	if err != nil {
		return "", err
	}
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return "", errEmptyTable
	}
	return renderTable(records[0], records[1:])
}

// decodeXlsx renders every worksheet of a workbook. Each sheet starts with
// its name in brackets, followed by the sheet rendered like a CSV table.
func decodeXlsx(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		table, err := renderTable(rows[0], rows[1:])
		if err != nil {
			return "", err
		}
		sb.WriteString("[" + sheet + "]\n")
		sb.WriteString(table)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// renderTable aligns header and rows into columns separated by two spaces.
func renderTable(header []string, rows [][]string) (string, error) {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	writeRow := func(index string, cells []string) {
		fields := append([]string{index}, cells...)
		fmt.Fprintln(tw, strings.Join(fields, "\t"))
	}

	writeRow("", header)
	for i, row := range rows {
		writeRow(strconv.Itoa(i), row)
	}
	if err := tw.Flush(); err != nil {
		return "", err
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Join(lines, "\n"), nil
}
