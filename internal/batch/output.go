package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/callmeahab/catalog-titles/internal/catalog"
)

// Columns selects which generated titles are exported.
type Columns struct {
	System bool
	Label  bool
	SEO    bool
}

func AllColumns() Columns { return Columns{System: true, Label: true, SEO: true} }

// ParseColumns reads a comma separated selection such as "system,seo".
// An empty selection means all columns.
func ParseColumns(s string) (Columns, error) {
	if strings.TrimSpace(s) == "" {
		return AllColumns(), nil
	}
	var cols Columns
	for _, name := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "system", "sistema":
			cols.System = true
		case "label", "etiqueta":
			cols.Label = true
		case "seo":
			cols.SEO = true
		case "":
		default:
			return Columns{}, fmt.Errorf("unknown output column %q", name)
		}
	}
	if cols == (Columns{}) {
		return AllColumns(), nil
	}
	return cols, nil
}

var bom = []byte{0xEF, 0xBB, 0xBF}

// WriteResults exports results as CSV, prefixed with a byte order mark so
// spreadsheets read it as UTF-8.
func WriteResults(w io.Writer, results []catalog.TitleResult, cols Columns) error {
	if _, err := w.Write(bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)

	header := []string{"titulo_sistema_original", ColDepartment, ColFamily, ColCategory, "SKU"}
	if cols.System {
		header = append(header, "titulo_sistema_generado")
	}
	if cols.Label {
		header = append(header, "titulo_etiqueta")
	}
	if cols.SEO {
		header = append(header, "titulo_seo")
	}
	header = append(header, "validation_status", "validation_issues", "corrected")
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		row := []string{r.Record.OriginalTitle(), r.Record.Department, r.Record.Family, r.Record.Category, r.Record.SKU}
		if cols.System {
			row = append(row, r.SystemTitle)
		}
		if cols.Label {
			row = append(row, r.LabelTitle)
		}
		if cols.SEO {
			row = append(row, r.SEOTitle)
		}
		row = append(row,
			string(r.Validation.Status),
			strings.Join(r.Validation.Issues, "; "),
			strconv.FormatBool(r.Validation.Corrected))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFailures exports the records that produced no titles.
func WriteFailures(w io.Writer, failed []catalog.FailedRecord) error {
	if _, err := w.Write(bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"sku", "titulo", "categoria", "reason"}); err != nil {
		return err
	}
	for _, f := range failed {
		sku := f.Record.SKU
		if sku == "" {
			sku = "N/A"
		}
		if err := cw.Write([]string{sku, f.Record.OriginalTitle(), f.Record.Category, f.Reason}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
