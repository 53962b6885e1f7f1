package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/diagnosis/visitor-desk/internal/domain"
	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"

	sheetName = "Visitors"
)

// Header is the column order shared by every format. Epoch columns come first so
// exports can be re-imported without timezone loss.
var Header = []string{
	"ID",
	"Name",
	"Phone",
	"Address",
	"Purpose",
	"Company",
	"Person To Meet",
	"Photo",
	"Check-in (epoch)",
	"Check-out (epoch)",
	"Check-in",
	"Check-out",
	"Created By",
}

var columnWidths = []float64{38, 24, 16, 30, 24, 20, 20, 40, 16, 16, 22, 22, 12}

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", domain.NewValidationError("format", "format must be csv or xlsx")
	}
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

func (f Format) Filename(now time.Time) string {
	return fmt.Sprintf("visitors-%s.%s", now.Format("20060102-150405"), f)
}

// Rows renders visitors in Header order. Wall-clock columns use loc.
func Rows(vs []domain.VisitorDTO, loc *time.Location) [][]string {
	rows := make([][]string, 0, len(vs))
	for i := range vs {
		v := &vs[i]
		rows = append(rows, []string{
			v.ID,
			v.Name,
			v.Phone,
			v.Address,
			v.Purpose,
			v.Company,
			v.PersonToMeet,
			deref(v.Photo),
			strconv.FormatInt(v.CheckinTime, 10),
			formatOptionalInt(v.CheckoutTime),
			wallClock(&v.CheckinTime, loc),
			wallClock(v.CheckoutTime, loc),
			formatOptionalInt(v.CreatedBy),
		})
	}
	return rows
}

func Write(w io.Writer, format Format, vs []domain.VisitorDTO, loc *time.Location) error {
	if format == FormatXLSX {
		return WriteXLSX(w, vs, loc)
	}
	return WriteCSV(w, vs, loc)
}

func WriteCSV(w io.Writer, vs []domain.VisitorDTO, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(Rows(vs, loc)); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

func WriteXLSX(w io.Writer, vs []domain.VisitorDTO, loc *time.Location) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(Header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, row := range Rows(vs, loc) {
		cells := make([]any, len(row))
		for j, c := range row {
			cells[j] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatOptionalInt(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}

func wallClock(ts *int64, loc *time.Location) string {
	if ts == nil {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(*ts, 0).In(loc).Format("2006-01-02 15:04:05")
}
