package composer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"backoffice/internal/gateway"
	"backoffice/internal/model"
	"backoffice/internal/query"
	"backoffice/internal/workflow"

	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format, use .xlsx or .csv")
	ErrEmptyImport       = errors.New("spreadsheet has no data rows")
)

// RequiredColumns must all be present in the header row.
var RequiredColumns = []Field{FieldType, FieldPersonnelType, FieldRequestDate, FieldProject, FieldAccountID, FieldAmount, FieldNote}

// OptionalColumns are read when present.
var OptionalColumns = []Field{FieldInvoiceNumber, FieldResponsibleID, FieldVehiclePlate, FieldVehicleNumber}

// headerAliases maps normalized Spanish headers to their field.
var headerAliases = map[string]Field{
	"tipo":              FieldType,
	"tipo_personal":     FieldPersonnelType,
	"personal":          FieldPersonnelType,
	"fecha":             FieldRequestDate,
	"fecha_solicitud":   FieldRequestDate,
	"proyecto":          FieldProject,
	"cuenta":            FieldAccountID,
	"cuenta_id":         FieldAccountID,
	"monto":             FieldAmount,
	"valor":             FieldAmount,
	"nota":              FieldNote,
	"observacion":       FieldNote,
	"factura":           FieldInvoiceNumber,
	"numero_factura":    FieldInvoiceNumber,
	"numero_de_factura": FieldInvoiceNumber,
	"responsable":       FieldResponsibleID,
	"responsable_id":    FieldResponsibleID,
	"placa":             FieldVehiclePlate,
	"numero_vehiculo":   FieldVehicleNumber,
}

// valueAliases maps normalized Spanish enum values.
var valueAliases = map[string]string{
	"gasto":      string(model.RequestTypeExpense),
	"gastos":     string(model.RequestTypeExpense),
	"descuento":  string(model.RequestTypeDiscount),
	"descuentos": string(model.RequestTypeDiscount),
	"ingreso":    string(model.RequestTypeIncome),
	"ingresos":   string(model.RequestTypeIncome),
}

// RowError is one invalid cell. Line is the 1-based spreadsheet row.
type RowError struct {
	Line  int    `json:"line"`
	Field string `json:"field"`
	Code  string `json:"code"`
}

// ImportError reports every problem found in a spreadsheet. When it is
// returned no row is accepted.
type ImportError struct {
	MissingColumns []string   `json:"missing_columns,omitempty"`
	Rows           []RowError `json:"rows,omitempty"`
}

func (e *ImportError) Error() string {
	var parts []string
	if len(e.MissingColumns) > 0 {
		parts = append(parts, "missing columns: "+strings.Join(e.MissingColumns, ", "))
	}
	if len(e.Rows) > 0 {
		parts = append(parts, fmt.Sprintf("%d invalid cells", len(e.Rows)))
	}
	return "import rejected: " + strings.Join(parts, "; ")
}

// NormalizeHeader folds case and accents and joins words with "_".
func NormalizeHeader(h string) string {
	h = query.Normalize(h)
	h = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '/':
			return '_'
		}
		return r
	}, h)
	for strings.Contains(h, "__") {
		h = strings.ReplaceAll(h, "__", "_")
	}
	return strings.Trim(h, "_")
}

func headerField(h string) (Field, bool) {
	n := NormalizeHeader(h)
	if f, ok := headerAliases[n]; ok {
		return f, true
	}
	for _, f := range slices.Concat(RequiredColumns, OptionalColumns) {
		if string(f) == n {
			return f, true
		}
	}
	return "", false
}

// ParseImport reads an .xlsx or .csv upload into request payloads. Either
// every data row is valid and returned, or nothing is returned and the
// error is an *ImportError listing all problems.
func ParseImport(filename string, r io.Reader) ([]gateway.RequestInput, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(r)
	case ".csv", ".txt":
		rows, err = readCSV(r)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	return parseRows(rows)
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("failed to read spreadsheet: %w", err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	firstLine, _, _ := bytes.Cut(data, []byte("\n"))
	if bytes.Count(firstLine, []byte(";")) > bytes.Count(firstLine, []byte(",")) {
		cr.Comma = ';'
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return rows, nil
}

func parseRows(rows [][]string) ([]gateway.RequestInput, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyImport
	}

	index := make(map[Field]int)
	for i, h := range rows[0] {
		if f, ok := headerField(h); ok {
			if _, dup := index[f]; !dup {
				index[f] = i
			}
		}
	}
	var missing []string
	for _, f := range RequiredColumns {
		if _, ok := index[f]; !ok {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		return nil, &ImportError{MissingColumns: missing}
	}

	cell := func(row []string, f Field) string {
		i, ok := index[f]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var (
		out     []gateway.RequestInput
		rowErrs []RowError
	)
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}
		line := n + 2
		v := Values{
			Type:          enumValue(cell(row, FieldType)),
			PersonnelType: enumValue(cell(row, FieldPersonnelType)),
			RequestDate:   dateValue(cell(row, FieldRequestDate)),
			InvoiceNumber: cell(row, FieldInvoiceNumber),
			AccountID:     cell(row, FieldAccountID),
			Amount:        cell(row, FieldAmount),
			Project:       cell(row, FieldProject),
			ResponsibleID: cell(row, FieldResponsibleID),
			VehiclePlate:  cell(row, FieldVehiclePlate),
			VehicleNumber: cell(row, FieldVehicleNumber),
			Note:          cell(row, FieldNote),
		}
		in, viol := validateValues(v)
		for _, f := range viol.Fields() {
			rowErrs = append(rowErrs, RowError{Line: line, Field: f, Code: viol[f]})
		}
		if viol.Empty() {
			out = append(out, in)
		}
	}

	if len(rowErrs) > 0 {
		return nil, &ImportError{Rows: rowErrs}
	}
	if len(out) == 0 {
		return nil, ErrEmptyImport
	}
	return out, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func enumValue(s string) string {
	n := NormalizeHeader(s)
	if v, ok := valueAliases[n]; ok {
		return v
	}
	return n
}

// dateValue converts Excel serial dates and the mm-dd-yy text excelize
// renders for date cells; other text is left for model.ParseDate.
func dateValue(s string) string {
	if s == "" {
		return s
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.Format(model.DateLayout)
		}
	}
	if t, err := time.Parse("01-02-06", s); err == nil {
		return t.Format(model.DateLayout)
	}
	return s
}

// Violations converts an import failure into field violations for error
// responses.
func (e *ImportError) Violations() workflow.Violations {
	v := workflow.Violations{}
	for _, c := range e.MissingColumns {
		v["column."+c] = workflow.CodeRequired
	}
	for _, r := range e.Rows {
		v[fmt.Sprintf("row.%d.%s", r.Line, r.Field)] = r.Code
	}
	return v
}
