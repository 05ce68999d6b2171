package catalog

// Hard and soft title limits, in characters.
const (
	MaxSystemTitle = 40
	MaxLabelTitle  = 36
	MinSEOTitle    = 50
	MaxSEOTitle    = 70
)

// NomenclatureRule is one row of the naming-convention sheet
type NomenclatureRule struct {
	Department       string `json:"department"`
	Family           string `json:"family"`
	Category         string `json:"category"`
	SuggestedPattern string `json:"suggested_pattern"`
	Example          string `json:"example"`
}

// ProductRecord carries the attributes for one generation request. Either the
// attribute fields or ExistingTitle are filled, the taxonomy triple always is.
type ProductRecord struct {
	SKU             string `json:"sku,omitempty"`
	Name            string `json:"nombre,omitempty"`
	Type            string `json:"tipo,omitempty"`
	Material        string `json:"material,omitempty"`
	Dimensions      string `json:"dimensiones,omitempty"`
	Color           string `json:"color,omitempty"`
	Brand           string `json:"marca,omitempty"`
	OtherAttributes string `json:"otros_atributos,omitempty"`
	ExistingTitle   string `json:"titulo,omitempty"`
	Department      string `json:"departamento"`
	Family          string `json:"familia"`
	Category        string `json:"categoria"`
}

// OriginalTitle is the text generated titles are validated against.
func (r ProductRecord) OriginalTitle() string {
	if r.ExistingTitle != "" {
		return r.ExistingTitle
	}
	return r.Name
}

// TaxonomyKey renders the triple the way coverage reports show it.
func (r ProductRecord) TaxonomyKey() string {
	return orNA(r.Department) + "/" + orNA(r.Family) + "/" + orNA(r.Category)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// TitleTriple is what the generation engine returns per record
type TitleTriple struct {
	SystemTitle            string   `json:"titulo_sistema"`
	LabelTitle             string   `json:"titulo_etiqueta"`
	SEOTitle               string   `json:"titulo_seo"`
	AppliedTransformations []string `json:"transformaciones_aplicadas,omitempty"`
	Compliant              *bool    `json:"cumple_nomenclatura,omitempty"`
	Notes                  string   `json:"notas,omitempty"`
}

// Method records how a title was validated.
type Method string

const (
	MethodNone        Method = "none"
	MethodRulesOnly   Method = "rules_only"
	MethodAIValidated Method = "ai_validated"
)

// Status is the validation outcome.
type Status string

const (
	StatusPassed             Status = "passed"
	StatusWarnings           Status = "warnings"
	StatusCorrected          Status = "corrected"
	StatusPassedWithWarnings Status = "passed_with_warnings"
)

// ValidationMetadata is attached to every TitleResult after the validation pass.
type ValidationMetadata struct {
	Method    Method   `json:"validation_method"`
	Status    Status   `json:"validation_status"`
	Issues    []string `json:"issues_found"`
	Corrected bool     `json:"corrected"`
}

// TitleResult is the final output for one record.
type TitleResult struct {
	Record                 ProductRecord      `json:"record"`
	Pattern                string             `json:"pattern"`
	SystemTitle            string             `json:"titulo_sistema"`
	LabelTitle             string             `json:"titulo_etiqueta"`
	SEOTitle               string             `json:"titulo_seo"`
	AppliedTransformations []string           `json:"transformaciones_aplicadas"`
	Compliant              bool               `json:"cumple_nomenclatura"`
	Notes                  []string           `json:"notas,omitempty"`
	Validation             ValidationMetadata `json:"validation"`
}

// FailedRecord is a record that produced no titles, with the reason why.
type FailedRecord struct {
	Record ProductRecord `json:"record"`
	Reason string        `json:"reason"`
}
