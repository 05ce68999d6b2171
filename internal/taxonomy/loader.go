package taxonomy

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/callmeahab/catalog-titles/internal/catalog"
)

// Column headers of the nomenclature sheet.
const (
	ColDepartment = "Departamento"
	ColFamily     = "Familia"
	ColCategory   = "Categoria"
	ColPattern    = "Nomenclatura sugerida"
	ColExample    = "Ejemplo aplicado"
)

var requiredColumns = []string{ColDepartment, ColFamily, ColCategory, ColPattern, ColExample}

// LoadCSV reads a nomenclature sheet. A leading UTF-8 BOM is tolerated.
func LoadCSV(r io.Reader) (*RuleSet, error) {
	reader := csv.NewReader(catalog.SkipBOM(r))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &catalog.FormatError{Source: "nomenclature", Required: requiredColumns, Missing: requiredColumns}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read nomenclature header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if missing := catalog.MissingColumns(header, requiredColumns); len(missing) > 0 {
		return nil, &catalog.FormatError{Source: "nomenclature", Found: header, Required: requiredColumns, Missing: missing}
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	field := func(row []string, col string) string {
		i := idx[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var rules []catalog.NomenclatureRule
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read nomenclature row %d: %w", line, err)
		}
		rule := catalog.NomenclatureRule{
			Department:       field(row, ColDepartment),
			Family:           field(row, ColFamily),
			Category:         field(row, ColCategory),
			SuggestedPattern: field(row, ColPattern),
			Example:          field(row, ColExample),
		}
		if rule.Department == "" && rule.Family == "" && rule.Category == "" {
			continue
		}
		rules = append(rules, rule)
	}
	return NewRuleSet(rules), nil
}
