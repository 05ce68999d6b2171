// Package search keeps a Meilisearch index of generated titles.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	meilisearch "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"github.com/callmeahab/catalog-titles/internal/catalog"
	"github.com/callmeahab/catalog-titles/internal/store"
)

const (
	DefaultIndex    = "titles"
	defaultLimit    = 20
	maxLimit        = 1000
	rebuildPageSize = 1000
)

var facets = []string{"department", "family", "category", "validationStatus"}

// Document is the indexed form of a TitleResult.
type Document struct {
	ID               string   `json:"id"`
	RunID            string   `json:"runId"`
	SKU              string   `json:"sku"`
	OriginalTitle    string   `json:"originalTitle"`
	SystemTitle      string   `json:"systemTitle"`
	LabelTitle       string   `json:"labelTitle"`
	SEOTitle         string   `json:"seoTitle"`
	Department       string   `json:"department"`
	Family           string   `json:"family"`
	Category         string   `json:"category"`
	Brand            string   `json:"brand"`
	Pattern          string   `json:"pattern"`
	Compliant        bool     `json:"compliant"`
	ValidationStatus string   `json:"validationStatus"`
	ValidationIssues []string `json:"validationIssues"`
	Corrected        bool     `json:"corrected"`
}

// DocumentID is stable per product so later runs replace earlier documents.
// Records without SKU are keyed by their title and taxonomy.
func DocumentID(rec catalog.ProductRecord) string {
	key := strings.TrimSpace(rec.SKU)
	if key == "" {
		key = strings.ToLower(rec.OriginalTitle()) + "|" + rec.TaxonomyKey()
	}
	return "title_" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

func NewDocument(runID uuid.UUID, r catalog.TitleResult) Document {
	issues := r.Validation.Issues
	if issues == nil {
		issues = []string{}
	}
	return Document{
		ID:               DocumentID(r.Record),
		RunID:            runID.String(),
		SKU:              r.Record.SKU,
		OriginalTitle:    r.Record.OriginalTitle(),
		SystemTitle:      r.SystemTitle,
		LabelTitle:       r.LabelTitle,
		SEOTitle:         r.SEOTitle,
		Department:       r.Record.Department,
		Family:           r.Record.Family,
		Category:         r.Record.Category,
		Brand:            r.Record.Brand,
		Pattern:          r.Pattern,
		Compliant:        r.Compliant,
		ValidationStatus: string(r.Validation.Status),
		ValidationIssues: issues,
		Corrected:        r.Validation.Corrected,
	}
}

// Source pages through stored results for a rebuild.
type Source interface {
	List(ctx context.Context, limit, offset int) ([]store.Record, error)
}

type Index struct {
	client meilisearch.ServiceManager
	uid    string
	log    *zap.Logger
}

func New(url, apiKey, uid string, log *zap.Logger) *Index {
	if uid == "" {
		uid = DefaultIndex
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Index{
		client: meilisearch.New(url, meilisearch.WithAPIKey(apiKey)),
		uid:    uid,
		log:    log,
	}
}

// EnsureIndex creates the index if needed and applies its settings.
func (x *Index) EnsureIndex(_ context.Context) error {
	if _, err := x.client.CreateIndex(&meilisearch.IndexConfig{Uid: x.uid, PrimaryKey: "id"}); err != nil {
		x.log.Warn("could not create index", zap.String("index", x.uid), zap.Error(err))
	}
	settings := meilisearch.Settings{
		SearchableAttributes: []string{"systemTitle", "seoTitle", "labelTitle", "originalTitle", "sku", "brand"},
		FilterableAttributes: []string{"department", "family", "category", "brand", "validationStatus", "corrected", "compliant", "runId"},
		SortableAttributes:   []string{"systemTitle", "category"},
	}
	if _, err := x.client.Index(x.uid).UpdateSettings(&settings); err != nil {
		return fmt.Errorf("failed to update index settings: %w", err)
	}
	return nil
}

// SaveResults indexes one batch of results.
func (x *Index) SaveResults(_ context.Context, runID uuid.UUID, results []catalog.TitleResult) error {
	if len(results) == 0 {
		return nil
	}
	docs := make([]Document, 0, len(results))
	for _, r := range results {
		docs = append(docs, NewDocument(runID, r))
	}
	if _, err := x.client.Index(x.uid).AddDocuments(docs, nil); err != nil {
		return fmt.Errorf("index error: %w", err)
	}
	return nil
}

// Rebuild drops the index and refills it from src.
func (x *Index) Rebuild(ctx context.Context, src Source) (int, error) {
	x.log.Info("starting index rebuild", zap.String("index", x.uid))
	_, _ = x.client.DeleteIndex(x.uid)
	if err := x.EnsureIndex(ctx); err != nil {
		return 0, err
	}

	indexed := 0
	for offset := 0; ; offset += rebuildPageSize {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		records, err := src.List(ctx, rebuildPageSize, offset)
		if err != nil {
			return indexed, err
		}
		if len(records) == 0 {
			break
		}
		docs := make([]Document, 0, len(records))
		for _, rec := range records {
			docs = append(docs, NewDocument(rec.RunID, rec.Result))
		}
		if _, err := x.client.Index(x.uid).AddDocuments(docs, nil); err != nil {
			return indexed, fmt.Errorf("index error: %w", err)
		}
		indexed += len(docs)
		x.log.Info("indexed titles", zap.Int("count", indexed))
		if len(records) < rebuildPageSize {
			break
		}
	}
	x.log.Info("rebuild complete", zap.Int("indexed", indexed))
	return indexed, nil
}

// Query is a search over indexed titles. Empty filter lists match everything.
type Query struct {
	Text        string   `json:"q"`
	Departments []string `json:"departments,omitempty"`
	Families    []string `json:"families,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Statuses    []string `json:"statuses,omitempty"`
	Corrected   bool     `json:"corrected,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	Offset      int      `json:"offset,omitempty"`
}

type Result struct {
	Hits             []Document                `json:"hits"`
	Total            int                       `json:"total"`
	ProcessingTimeMs int                       `json:"processing_time_ms"`
	Facets           map[string]map[string]int `json:"facets"`
}

// BuildFilter renders the filter expression for q.
func BuildFilter(q Query) string {
	var parts []string
	buildOr := func(field string, values []string) {
		if len(values) == 0 {
			return
		}
		row := make([]string, 0, len(values))
		for _, v := range values {
			row = append(row, field+` = "`+strings.ReplaceAll(v, `"`, `\"`)+`"`)
		}
		parts = append(parts, "("+strings.Join(row, " OR ")+")")
	}
	buildOr("department", q.Departments)
	buildOr("family", q.Families)
	buildOr("category", q.Categories)
	buildOr("validationStatus", q.Statuses)
	if q.Corrected {
		parts = append(parts, "corrected = true")
	}
	return strings.Join(parts, " AND ")
}

func (x *Index) Search(_ context.Context, q Query) (*Result, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	req := &meilisearch.SearchRequest{
		Limit:  int64(limit),
		Offset: int64(max(q.Offset, 0)),
		Facets: facets,
	}
	if filter := BuildFilter(q); filter != "" {
		req.Filter = filter
	}

	res, err := x.client.Index(x.uid).Search(q.Text, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := &Result{Hits: []Document{}, Facets: map[string]map[string]int{}}
	b, err := json.Marshal(res.Hits)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &out.Hits); err != nil {
		return nil, fmt.Errorf("failed to decode hits: %w", err)
	}
	out.Total = int(res.EstimatedTotalHits)
	if out.Total == 0 {
		out.Total = len(out.Hits)
	}
	out.ProcessingTimeMs = int(res.ProcessingTimeMs)
	if res.FacetDistribution != nil {
		fb, err := json.Marshal(res.FacetDistribution)
		if err == nil {
			_ = json.Unmarshal(fb, &out.Facets)
		}
	}
	return out, nil
}
