package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

var exportHeader = []string{"subject_code", "subject_name", "student_id", "student_name", "P", "L", "A", "total", "pct", "low"}

func exportRecord(r ReportRow) []string {
	return []string{
		r.SubjectCode, r.SubjectName, strconv.FormatInt(r.StudentID, 10), r.StudentName,
		strconv.Itoa(r.P), strconv.Itoa(r.L), strconv.Itoa(r.A), strconv.Itoa(r.Total),
		strconv.Itoa(r.Pct), strconv.FormatBool(r.Low),
	}
}

// writeCSV: sjis=true なら Excel でそのまま開ける CP932 で書く。
// CP932 に無い文字（ë, ü, 絵文字など）は置換文字にして出力を続ける。
func writeCSV(rows []ReportRow, sjis bool) ([]byte, error) {
	var b bytes.Buffer
	var w *csv.Writer
	if sjis {
		enc := encoding.ReplaceUnsupported(japanese.ShiftJIS.NewEncoder())
		w = csv.NewWriter(transform.NewWriter(&b, enc))
	} else {
		w = csv.NewWriter(&b)
	}

	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write(exportRecord(r)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

const sheetName = "Attendance"

func writeXLSX(rep ReportResponse) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}
	lowStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F8CBAD"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(sheetName, "A1", &exportHeader); err != nil {
		return nil, err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeader))
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, err
	}

	for i, r := range rep.Rows {
		row := i + 2
		cells := []any{r.SubjectCode, r.SubjectName, r.StudentID, r.StudentName, r.P, r.L, r.A, r.Total, r.Pct, r.Low}
		if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", row), &cells); err != nil {
			return nil, err
		}
		if r.Low {
			if err := f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("%s%d", lastCol, row), lowStyle); err != nil {
				return nil, err
			}
		}
	}

	f.SetColWidth(sheetName, "A", "A", 14)
	f.SetColWidth(sheetName, "B", "B", 28)
	f.SetColWidth(sheetName, "D", "D", 24)

	note := len(rep.Rows) + 3
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", note), fmt.Sprintf("low = pct > 0 and pct < %d", rep.Threshold))

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
