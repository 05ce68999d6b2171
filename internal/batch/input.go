package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/callmeahab/catalog-titles/internal/catalog"
)

// Input column names. Matching ignores case and surrounding blanks.
const (
	ColSystemTitle = "titulo_sistema"
	ColDepartment  = "departamento"
	ColFamily      = "familia"
	ColCategory    = "categoria"
	ColSKU         = "sku"
)

// RequiredColumns must be present in a full product sheet.
var RequiredColumns = []string{ColSystemTitle, ColDepartment, ColFamily, ColCategory}

// SimpleTitleColumns are the header spellings accepted for the title column
// of a title-only sheet, in preference order.
var SimpleTitleColumns = []string{"titulo_sistema", "titulos", "titulo", "títulos", "título", "title", "titles"}

var optionalColumns = map[string]func(*catalog.ProductRecord, string){
	ColSKU:            func(r *catalog.ProductRecord, v string) { r.SKU = v },
	"nombre":          func(r *catalog.ProductRecord, v string) { r.Name = v },
	"tipo":            func(r *catalog.ProductRecord, v string) { r.Type = v },
	"material":        func(r *catalog.ProductRecord, v string) { r.Material = v },
	"dimensiones":     func(r *catalog.ProductRecord, v string) { r.Dimensions = v },
	"color":           func(r *catalog.ProductRecord, v string) { r.Color = v },
	"marca":           func(r *catalog.ProductRecord, v string) { r.Brand = v },
	"otros":           func(r *catalog.ProductRecord, v string) { r.OtherAttributes = v },
	"otros_atributos": func(r *catalog.ProductRecord, v string) { r.OtherAttributes = v },
}

type sheet struct {
	header []string       // as written
	index  map[string]int // lower-cased name -> column
	rows   [][]string
}

func readSheet(r io.Reader, source string) (*sheet, error) {
	cr := csv.NewReader(catalog.SkipBOM(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &catalog.FormatError{Source: source}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read header: %w", source, err)
	}
	s := &sheet{index: map[string]int{}}
	for i, h := range header {
		h = strings.TrimSpace(h)
		s.header = append(s.header, h)
		key := strings.ToLower(h)
		if _, dup := s.index[key]; !dup {
			s.index[key] = i
		}
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	s.rows = rows
	return s, nil
}

func (s *sheet) lowered() []string {
	out := make([]string, len(s.header))
	for i, h := range s.header {
		out[i] = strings.ToLower(h)
	}
	return out
}

func (s *sheet) cell(row []string, col string) string {
	i, ok := s.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ReadRecords parses a product sheet with the required columns plus any of
// the optional attribute columns. The titulo_sistema column becomes the
// record's existing title. Fully blank rows are skipped.
func ReadRecords(r io.Reader) ([]catalog.ProductRecord, error) {
	s, err := readSheet(r, "products")
	if err != nil {
		return nil, err
	}
	if missing := catalog.MissingColumns(s.lowered(), RequiredColumns); len(missing) > 0 {
		return nil, &catalog.FormatError{Source: "products", Found: s.header, Required: RequiredColumns, Missing: missing}
	}

	records := make([]catalog.ProductRecord, 0, len(s.rows))
	for _, row := range s.rows {
		rec := catalog.ProductRecord{
			ExistingTitle: s.cell(row, ColSystemTitle),
			Department:    s.cell(row, ColDepartment),
			Family:        s.cell(row, ColFamily),
			Category:      s.cell(row, ColCategory),
		}
		for col, set := range optionalColumns {
			if v := s.cell(row, col); v != "" {
				set(&rec, v)
			}
		}
		if rec.ExistingTitle == "" && rec.Department == "" && rec.Family == "" && rec.Category == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadSimpleRecords parses a title-only sheet and assigns every title the
// same taxonomy triple. Rows with a blank title are skipped.
func ReadSimpleRecords(r io.Reader, department, family, category string) ([]catalog.ProductRecord, error) {
	s, err := readSheet(r, "titles")
	if err != nil {
		return nil, err
	}
	titleCol := ""
	for _, accepted := range SimpleTitleColumns {
		if _, ok := s.index[accepted]; ok {
			titleCol = accepted
			break
		}
	}
	if titleCol == "" {
		return nil, &catalog.FormatError{Source: "titles", Found: s.header, Required: SimpleTitleColumns, Missing: []string{"titulo"}}
	}

	records := make([]catalog.ProductRecord, 0, len(s.rows))
	for _, row := range s.rows {
		title := s.cell(row, titleCol)
		if title == "" {
			continue
		}
		records = append(records, catalog.ProductRecord{
			ExistingTitle: title,
			SKU:           s.cell(row, ColSKU),
			Department:    department,
			Family:        family,
			Category:      category,
		})
	}
	return records, nil
}
