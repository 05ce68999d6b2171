package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/pretty"

	"github.com/callmeahab/catalog-titles/internal/catalog"
)

// promptJSON renders v indented for the prompt body.
func promptJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return strings.TrimSpace(string(pretty.Pretty(data)))
}

func memoryJSON(mem *catalog.Memory) string {
	if mem == nil {
		return "{}"
	}
	return promptJSON(mem)
}

// batchItem is what the model sees of a record when rewriting ERP titles.
type batchItem struct {
	Title      string `json:"titulo"`
	Department string `json:"departamento"`
	Family     string `json:"familia"`
	Category   string `json:"categoria"`
	Brand      string `json:"marca,omitempty"`
	Type       string `json:"tipo,omitempty"`
	Material   string `json:"material,omitempty"`
	Dimensions string `json:"dimensiones,omitempty"`
	Color      string `json:"color,omitempty"`
	Other      string `json:"otros_atributos,omitempty"`
}

// BatchPrompt asks for one triple per product, same order, as a JSON array.
func BatchPrompt(req GenerationRequest) string {
	items := make([]batchItem, 0, len(req.Products))
	for _, p := range req.Products {
		items = append(items, batchItem{
			Title:      p.OriginalTitle(),
			Department: p.Department,
			Family:     p.Family,
			Category:   p.Category,
			Brand:      p.Brand,
			Type:       p.Type,
			Material:   p.Material,
			Dimensions: p.Dimensions,
			Color:      p.Color,
			Other:      p.OtherAttributes,
		})
	}
	n := len(items)

	var b strings.Builder
	b.WriteString("Eres experto en títulos de productos para catálogos de retail en Guatemala.\n\n")
	fmt.Fprintf(&b, "Vas a procesar %d productos que comparten el mismo patrón de nomenclatura.\n\n", n)
	b.WriteString("PATRÓN DE NOMENCLATURA:\n")
	b.WriteString(req.Pattern)
	b.WriteString("\n\n")
	if req.Example != "" {
		b.WriteString("EJEMPLO APLICADO:\n")
		b.WriteString(req.Example)
		b.WriteString("\n\n")
	}
	b.WriteString("TRANSFORMACIONES CONSISTENTES:\n")
	b.WriteString(memoryJSON(req.Memory))
	b.WriteString("\n\n")
	b.WriteString(rulesBlock)
	b.WriteString("\nPRODUCTOS:\n")
	b.WriteString(promptJSON(items))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "RESPONDE SOLO CON UN ARRAY JSON de %d objetos, en el mismo orden recibido:\n", n)
	b.WriteString(`[
  {
    "titulo_sistema": "máximo 40 caracteres",
    "titulo_etiqueta": "máximo 36 caracteres",
    "titulo_seo": "entre 50 y 70 caracteres"
  }
]`)
	return b.String()
}

// ProductPrompt asks for the titles of one product described by attributes.
func ProductPrompt(req GenerationRequest) string {
	var p catalog.ProductRecord
	if len(req.Products) > 0 {
		p = req.Products[0]
	}

	var b strings.Builder
	b.WriteString("Eres experto en títulos de productos para catálogos de retail en Guatemala.\n\n")
	b.WriteString("INFORMACIÓN DEL PRODUCTO (contexto; la marca nunca va en el título):\n")
	b.WriteString(promptJSON(p))
	b.WriteString("\n\nPATRÓN DE NOMENCLATURA:\n")
	b.WriteString(req.Pattern)
	b.WriteString("\n\n")
	if req.Example != "" {
		b.WriteString("EJEMPLO APLICADO:\n")
		b.WriteString(req.Example)
		b.WriteString("\n\n")
	}
	b.WriteString("TRANSFORMACIONES CONSISTENTES:\n")
	b.WriteString(memoryJSON(req.Memory))
	b.WriteString("\n\n")
	b.WriteString(rulesBlock)
	b.WriteString(`
- El título de etiqueta reutiliza el de sistema si cabe en 36 caracteres.
- Evita departamento, familia y categoría en el título SEO salvo para desambiguar.
- No uses símbolos como ® o ™.

RESPONDE SOLO CON UN JSON VÁLIDO con este formato:
{
  "titulo_sistema": "...",
  "longitud_sistema": 40,
  "titulo_etiqueta": "...",
  "longitud_etiqueta": 36,
  "titulo_seo": "...",
  "longitud_seo": 65,
  "transformaciones_aplicadas": [],
  "cumple_nomenclatura": true,
  "notas": ""
}`)
	return b.String()
}

const rulesBlock = `REGLAS OBLIGATORIAS:
1. Abreviaciones sin "para": A.SUCIA o A SUCIA es "Agua Sucia", A.LIMP o A LIMP es "Agua Limpia".
   Usa "para" solo si el original trae "P/". "C/" significa "con".
2. No agregues frases genéricas ("para sellado de roscas", "para drenajes y tuberías",
   "para construcción"). Un "para X" solo vale si viene de "P/" o es un uso específico
   (para gas, para agua fría, para exterior).
3. Nunca incluyas la marca.
4. No inventes características técnicas (penetrante, hidráulico, neumático, dieléctrico...).
5. Conserva las medidas exactas: HP en mayúsculas, plg, mm, cm, m, L/min.
6. Palabras en MAYÚSCULAS van Capitalizadas, salvo acrónimos (PVC, CPVC, AC, DC, LED).
7. Español natural con preposiciones (de, con, x) cuando corresponda.
`

// CorrectionPrompt asks the reviewer to compare a generated title with the
// ERP original and fix unjustified additions.
func CorrectionPrompt(original, generated string) string {
	var b strings.Builder
	b.WriteString("Eres un agente de control de calidad que revisa títulos de productos generados por otro sistema.\n\n")
	fmt.Fprintf(&b, "TÍTULO ORIGINAL DEL ERP: %s\n", original)
	fmt.Fprintf(&b, "TÍTULO GENERADO: %s\n\n", generated)
	b.WriteString(rulesBlock)
	b.WriteString(`
EJEMPLOS:
Original: "BOMBA SUM A.SUCIA 1 1/2HP"
Generado: "Bomba Sumergible para Agua Sucia 1 1/2 HP" (agregó "para")
Corregido: "Bomba Sumergible Agua Sucia 1 1/2 HP"

Original: "CINTA TEFLON 1/2X7M"
Generado: "Cinta de Teflón 1/2 plg x 7 m para sellado de roscas" (frase genérica)
Corregido: "Cinta de Teflón 1/2 plg x 7 m"

Compara palabra por palabra, identifica cada adición que no esté en el original y
elimina las que sean relleno genérico.

RESPONDE SOLO CON JSON VÁLIDO:
{
  "is_valid": true,
  "corrected_title": "versión corregida",
  "issues_found": ["problemas encontrados"],
  "removed_phrases": ["frases removidas"],
  "confidence": "high|medium|low"
}`)
	return b.String()
}
