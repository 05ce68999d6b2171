package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/callmeahab/catalog-titles/internal/batch"
	"github.com/callmeahab/catalog-titles/internal/catalog"
	"github.com/callmeahab/catalog-titles/internal/engine"
	"github.com/callmeahab/catalog-titles/internal/metrics"
	"github.com/callmeahab/catalog-titles/internal/search"
	"github.com/callmeahab/catalog-titles/internal/store"
	"github.com/callmeahab/catalog-titles/internal/taxonomy"
	"github.com/callmeahab/catalog-titles/internal/textnorm"
	"github.com/callmeahab/catalog-titles/internal/validation"
)

type fakeSearcher struct {
	got search.Query
	err error
}

func (f *fakeSearcher) Search(_ context.Context, q search.Query) (*search.Result, error) {
	f.got = q
	if f.err != nil {
		return nil, f.err
	}
	return &search.Result{Hits: []search.Document{{ID: "title_1", SystemTitle: "Bomba Sumergible 1/2 HP"}}, Total: 1}, nil
}

type fakeStats struct{}

func (fakeStats) Stats(context.Context) (store.Stats, error) {
	return store.Stats{Total: 4, Runs: 1, Passed: 4}, nil
}

func (fakeStats) CategoryReports(_ context.Context, limit int) ([]store.CategoryReport, error) {
	return []store.CategoryReport{{
		Department: "Plomería", Family: "Bombas", Category: "Sumergibles",
		Total: 4, Flagged: limit, FlagRate: 0.25,
		Samples: []store.FlaggedTitle{{SKU: "B-1", SystemTitle: "Bomba Sumergible 1/2 HP", Status: "warnings"}},
	}}, nil
}

func newTestServer(t *testing.T, searcher Searcher) (*httptest.Server, *Server) {
	t.Helper()
	rules := taxonomy.NewRuleSet([]catalog.NomenclatureRule{
		{Department: "Plomería", Family: "Bombas", Category: "Sumergibles", SuggestedPattern: "Bomba + tipo + potencia", Example: "Bomba Sumergible 1 HP"},
	})
	norm, err := textnorm.New(textnorm.DefaultLists())
	require.NoError(t, err)
	quick := validation.NewQuickValidator(validation.DefaultRules())
	m := metrics.New()
	proto := validation.NewProtocol(quick, nil, false, validation.WithTransitionHook(m.Transition))
	coord := batch.New(rules, &engine.Stub{}, norm, proto, batch.WithPause(0), batch.WithMetrics(m))

	srv := New(Deps{
		Rules:       rules,
		Coordinator: coord,
		Quick:       quick,
		Normalizer:  norm,
		Index:       searcher,
		Store:       fakeStats{},
		Metrics:     m,
	})
	ts := httptest.NewServer(srv.Handler(nil))
	t.Cleanup(ts.Close)
	return ts, srv
}

func call(t *testing.T, ts *httptest.Server, procedure string, body map[string]any) (map[string]any, error) {
	t.Helper()
	client := connect.NewClient[structpb.Struct, structpb.Struct](ts.Client(), ts.URL+procedure)
	msg, err := structpb.NewStruct(body)
	require.NoError(t, err)
	res, err := client.CallUnary(context.Background(), connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return res.Msg.AsMap(), nil
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	out, err := call(t, ts, ProcHealth, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "healthy", out["status"])
	assert.EqualValues(t, 1, out["rules"])
}

func TestGenerateTitles(t *testing.T) {
	ts, srv := newTestServer(t, nil)

	t.Run("ShouldRunBatch", func(t *testing.T) {
		out, err := call(t, ts, ProcGenerateTitles, map[string]any{
			"products": []any{
				map[string]any{"titulo": "Bomba Sumergible 1/2 HP", "departamento": "Plomería", "familia": "Bombas", "categoria": "Sumergibles"},
				map[string]any{"titulo": "Maceta", "departamento": "Jardín", "familia": "Macetas", "categoria": "Barro"},
			},
		})
		require.NoError(t, err)

		results := out["results"].([]any)
		require.Len(t, results, 1)
		assert.Equal(t, "Bomba Sumergible 1/2 HP", results[0].(map[string]any)["titulo_sistema"])
		failed := out["failed"].([]any)
		require.Len(t, failed, 1)
		assert.Equal(t, batch.ReasonNoRule, failed[0].(map[string]any)["reason"])
		assert.Equal(t, 1, srv.Session.Stats().TotalProcessed)
	})

	t.Run("ShouldApplyFilter", func(t *testing.T) {
		_, err := call(t, ts, ProcGenerateTitles, map[string]any{
			"products": []any{
				map[string]any{"titulo": "Bomba", "departamento": "Plomería", "familia": "Bombas", "categoria": "Sumergibles"},
			},
			"filter": map[string]any{"departamento": "Jardín"},
		})
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})
}

func TestCheckTitle(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	t.Run("ShouldCleanAndCheck", func(t *testing.T) {
		out, err := call(t, ts, ProcCheckTitle, map[string]any{
			"original":  "BOMBA SUM 1/2HP",
			"generated": "BOMBA SUMERGIBLE TRUPER 1/2 HP PARA AGUA SUCIA",
			"brand":     "Truper",
		})
		require.NoError(t, err)
		assert.Equal(t, "Bomba Sumergible 1/2 HP Para Agua Sucia", out["cleaned"])
		assert.Equal(t, false, out["valid"])
		assert.Equal(t, []any{"Added generic phrase not in original: 'para agua sucia'"}, out["issues"])
	})

	t.Run("ShouldRequireGeneratedTitle", func(t *testing.T) {
		_, err := call(t, ts, ProcCheckTitle, map[string]any{"original": "x"})
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})

	t.Run("ShouldAcceptPlainJSON", func(t *testing.T) {
		res, err := ts.Client().Post(ts.URL+ProcCheckTitle, "application/json",
			strings.NewReader(`{"original": "Tubo PVC 1/2 plg", "generated": "Tubo PVC 1/2 plg"}`))
		require.NoError(t, err)
		defer res.Body.Close()
		require.Equal(t, http.StatusOK, res.StatusCode)

		var out map[string]any
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
		assert.Equal(t, true, out["valid"])
	})
}

func TestTaxonomyProcedures(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	t.Run("ShouldFindPattern", func(t *testing.T) {
		out, err := call(t, ts, ProcFindPattern, map[string]any{"departamento": "PLOMERÍA ", "familia": "bombas", "categoria": "sumergibles"})
		require.NoError(t, err)
		rule := out["rule"].(map[string]any)
		assert.Equal(t, "Bomba + tipo + potencia", rule["suggested_pattern"])
	})

	t.Run("ShouldReportMissingPattern", func(t *testing.T) {
		_, err := call(t, ts, ProcFindPattern, map[string]any{"departamento": "Jardín", "familia": "Macetas"})
		assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
		assert.ErrorContains(t, err, "Jardín/Macetas/N/A")
	})

	t.Run("ShouldListTaxonomy", func(t *testing.T) {
		out, err := call(t, ts, ProcListTaxonomy, map[string]any{"departamento": "Plomería", "familia": "Bombas"})
		require.NoError(t, err)
		assert.Equal(t, []any{"Plomería"}, out["departments"])
		assert.Equal(t, []any{"Bombas"}, out["families"])
		assert.Equal(t, []any{"Sumergibles"}, out["categories"])
	})

	t.Run("ShouldAnalyzeCoverage", func(t *testing.T) {
		out, err := call(t, ts, ProcCoverage, map[string]any{
			"products": []any{
				map[string]any{"titulo": "Bomba", "departamento": "Plomería", "familia": "Bombas", "categoria": "Sumergibles"},
				map[string]any{"titulo": "Maceta", "departamento": "Jardín", "familia": "Macetas", "categoria": "Barro"},
			},
		})
		require.NoError(t, err)
		assert.EqualValues(t, 2, out["total"])
		assert.EqualValues(t, 50, out["coverage_percent"])
	})
}

func TestMemoryProcedures(t *testing.T) {
	ts, srv := newTestServer(t, nil)

	out, err := call(t, ts, ProcSetTransformation, map[string]any{"original": "Galvanizado", "replacement": "Galv."})
	require.NoError(t, err)
	assert.Len(t, out["transformations"], 1)
	assert.Equal(t, 1, srv.Session.Memory().Len())

	_, err = call(t, ts, ProcSetTransformation, map[string]any{"original": " "})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = call(t, ts, ProcDeleteTransformation, map[string]any{"original": "Acero"})
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	out, err = call(t, ts, ProcDeleteTransformation, map[string]any{"original": "galvanizado"})
	require.NoError(t, err)
	assert.Empty(t, out["transformations"])

	_, err = call(t, ts, ProcSetTransformation, map[string]any{"original": "Acero Inoxidable", "replacement": "Inox"})
	require.NoError(t, err)
	out, err = call(t, ts, ProcClearMemory, map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, out["transformations"])
}

func TestRequestLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ts, srv := newTestServer(t, nil)
	srv.Logger = zap.New(core)

	_, err := call(t, ts, ProcSetTransformation, map[string]any{"original": "Galvanizado", "replacement": "Galv."})
	require.NoError(t, err)

	set := logs.FilterMessage("transformation set").All()
	require.Len(t, set, 1)
	fields := set[0].ContextMap()
	assert.Equal(t, ProcSetTransformation, fields["procedure"])
	assert.Equal(t, "Galv.", fields["replacement"])
	assert.Equal(t, 1, logs.FilterMessage("request served").Len())

	_, err = call(t, ts, ProcDeleteTransformation, map[string]any{"original": "Acero"})
	require.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("request failed").Len())
}

func TestSearch(t *testing.T) {
	t.Run("ShouldBeUnavailableWithoutIndex", func(t *testing.T) {
		ts, _ := newTestServer(t, nil)
		_, err := call(t, ts, ProcSearch, map[string]any{"q": "bomba"})
		assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))
	})

	t.Run("ShouldForwardQuery", func(t *testing.T) {
		fake := &fakeSearcher{}
		ts, _ := newTestServer(t, fake)
		out, err := call(t, ts, ProcSearch, map[string]any{"q": "bomba", "categories": []any{"Sumergibles"}, "limit": 5})
		require.NoError(t, err)
		assert.Equal(t, search.Query{Text: "bomba", Categories: []string{"Sumergibles"}, Limit: 5}, fake.got)
		assert.Len(t, out["hits"], 1)
	})

	t.Run("ShouldReportIndexErrors", func(t *testing.T) {
		ts, _ := newTestServer(t, &fakeSearcher{err: errors.New("meili down")})
		_, err := call(t, ts, ProcSearch, map[string]any{"q": "bomba"})
		assert.Equal(t, connect.CodeInternal, connect.CodeOf(err))
	})
}

func TestStatsAndMetrics(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	_, err := call(t, ts, ProcGenerateTitles, map[string]any{
		"products": []any{map[string]any{"titulo": "Bomba Sumergible 1 HP", "departamento": "Plomería", "familia": "Bombas", "categoria": "Sumergibles"}},
	})
	require.NoError(t, err)

	out, err := call(t, ts, ProcStats, map[string]any{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, out["session"].(map[string]any)["total_processed"])
	assert.EqualValues(t, 4, out["stored"].(map[string]any)["total"])

	out, err = call(t, ts, ProcCategoryReport, map[string]any{"limit": 1})
	require.NoError(t, err)
	categories := out["categories"].([]any)
	require.Len(t, categories, 1)
	assert.EqualValues(t, 1, categories[0].(map[string]any)["flagged"])

	res, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `titlegen_records_total{status="passed"} 1`)
	assert.Contains(t, string(body), `titlegen_validation_transitions_total`)
}
