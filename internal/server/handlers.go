package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"connectrpc.com/connect"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/callmeahab/catalog-titles/internal/catalog"
	"github.com/callmeahab/catalog-titles/internal/logger"
	"github.com/callmeahab/catalog-titles/internal/search"
	"github.com/callmeahab/catalog-titles/internal/taxonomy"
)

type request = connect.Request[structpb.Struct]
type response = connect.Response[structpb.Struct]

func (s *Server) Health(context.Context, *request) (*response, error) {
	return respond(map[string]any{
		"status":      "healthy",
		"rules":       s.Rules.Len(),
		"memory_size": s.Session.Memory().Len(),
	})
}

type generateRequest struct {
	Products []catalog.ProductRecord `json:"products"`
	Filter   taxonomy.Filter         `json:"filter"`
}

// GenerateTitles runs a batch over the given products with the server
// session's memory.
func (s *Server) GenerateTitles(ctx context.Context, req *request) (*response, error) {
	if s.Coordinator == nil {
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("generation is not configured"))
	}
	var in generateRequest
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	records := in.Filter.Apply(in.Products)
	if len(records) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("no products to process"))
	}

	report, err := s.Coordinator.Run(ctx, s.Session, records)
	if err != nil {
		return nil, connect.NewError(connect.CodeCanceled, err)
	}
	logger.FromContext(ctx).Info("titles generated",
		zap.Stringer("run_id", report.RunID),
		zap.Int("results", len(report.Results)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("batches", report.Batches),
	)
	return respond(report)
}

type checkRequest struct {
	Original  string `json:"original"`
	Generated string `json:"generated"`
	Brand     string `json:"brand"`
}

// CheckTitle cleans a title and runs the quick checks on it without calling
// the model.
func (s *Server) CheckTitle(_ context.Context, req *request) (*response, error) {
	var in checkRequest
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Generated) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("generated title is required"))
	}
	cleaned := in.Generated
	if s.Normalizer != nil {
		cleaned = s.Normalizer.Clean(in.Generated, in.Brand, s.Session.Memory())
	}
	issues := s.Quick.Check(in.Original, cleaned)
	if issues == nil {
		issues = []string{}
	}
	return respond(map[string]any{
		"cleaned": cleaned,
		"issues":  issues,
		"valid":   len(issues) == 0,
	})
}

func (s *Server) FindPattern(_ context.Context, req *request) (*response, error) {
	var in taxonomy.Filter
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	rule, idx, ok := s.Rules.FindPatternRow(in.Department, in.Family, in.Category)
	if !ok {
		key := catalog.ProductRecord{Department: in.Department, Family: in.Family, Category: in.Category}.TaxonomyKey()
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("%w: %s", catalog.ErrNoRule, key))
	}
	return respond(map[string]any{"rule": rule, "index": idx})
}

func (s *Server) ListTaxonomy(_ context.Context, req *request) (*response, error) {
	var in taxonomy.Filter
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	out := map[string]any{"departments": nonNil(s.Rules.Departments())}
	if in.Department != "" {
		out["families"] = nonNil(s.Rules.Families(in.Department))
	}
	if in.Department != "" && in.Family != "" {
		out["categories"] = nonNil(s.Rules.Categories(in.Department, in.Family))
	}
	return respond(out)
}

func (s *Server) Coverage(_ context.Context, req *request) (*response, error) {
	var in generateRequest
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	return respond(s.Rules.AnalyzeCoverage(in.Filter.Apply(in.Products)))
}

func (s *Server) GetMemory(context.Context, *request) (*response, error) {
	return s.memoryResponse()
}

type transformationRequest struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}

func (s *Server) SetTransformation(ctx context.Context, req *request) (*response, error) {
	var in transformationRequest
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	if !s.Session.SetTransformation(in.Original, in.Replacement) {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("original text is required"))
	}
	logger.FromContext(ctx).Info("transformation set", zap.String("original", in.Original), zap.String("replacement", in.Replacement))
	return s.memoryResponse()
}

func (s *Server) DeleteTransformation(ctx context.Context, req *request) (*response, error) {
	var in transformationRequest
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	if !s.Session.DeleteTransformation(in.Original) {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("no transformation for %q", in.Original))
	}
	logger.FromContext(ctx).Info("transformation deleted", zap.String("original", in.Original))
	return s.memoryResponse()
}

func (s *Server) ClearMemory(ctx context.Context, _ *request) (*response, error) {
	s.Session.ClearTransformations()
	logger.FromContext(ctx).Info("transformations cleared")
	return s.memoryResponse()
}

func (s *Server) memoryResponse() (*response, error) {
	entries := s.Session.Memory().Entries()
	if entries == nil {
		entries = []catalog.MemoryEntry{}
	}
	return respond(map[string]any{"transformations": entries})
}

func (s *Server) Search(ctx context.Context, req *request) (*response, error) {
	if s.Index == nil {
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("search is not configured"))
	}
	var q search.Query
	if err := decode(req.Msg, &q); err != nil {
		return nil, err
	}
	res, err := s.Index.Search(ctx, q)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return respond(res)
}

// Stats reports the latest run of the session and, when a database is
// configured, the stored totals.
func (s *Server) Stats(ctx context.Context, _ *request) (*response, error) {
	out := map[string]any{"session": s.Session.Stats()}
	if s.Store != nil {
		st, err := s.Store.Stats(ctx)
		if err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		out["stored"] = st
	}
	return respond(out)
}

// CategoryReport lists the categories with the most flagged stored titles.
func (s *Server) CategoryReport(ctx context.Context, req *request) (*response, error) {
	if s.Store == nil {
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("database is not configured"))
	}
	var in struct {
		Limit int `json:"limit"`
	}
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	reports, err := s.Store.CategoryReports(ctx, in.Limit)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return respond(map[string]any{"categories": reports})
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
