// Package server exposes the title pipeline over Connect. Every procedure
// takes and returns a google.protobuf.Struct, so clients can POST plain JSON.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/callmeahab/catalog-titles/internal/batch"
	"github.com/callmeahab/catalog-titles/internal/logger"
	"github.com/callmeahab/catalog-titles/internal/metrics"
	"github.com/callmeahab/catalog-titles/internal/search"
	"github.com/callmeahab/catalog-titles/internal/store"
	"github.com/callmeahab/catalog-titles/internal/taxonomy"
	"github.com/callmeahab/catalog-titles/internal/textnorm"
	"github.com/callmeahab/catalog-titles/internal/validation"
)

const ServicePath = "/titlegen.v1.TitleService/"

// Procedure names.
const (
	ProcHealth               = ServicePath + "Health"
	ProcGenerateTitles       = ServicePath + "GenerateTitles"
	ProcCheckTitle           = ServicePath + "CheckTitle"
	ProcFindPattern          = ServicePath + "FindPattern"
	ProcListTaxonomy         = ServicePath + "ListTaxonomy"
	ProcCoverage             = ServicePath + "Coverage"
	ProcGetMemory            = ServicePath + "GetMemory"
	ProcSetTransformation    = ServicePath + "SetTransformation"
	ProcDeleteTransformation = ServicePath + "DeleteTransformation"
	ProcClearMemory          = ServicePath + "ClearMemory"
	ProcSearch               = ServicePath + "Search"
	ProcStats                = ServicePath + "Stats"
	ProcCategoryReport       = ServicePath + "CategoryReport"
)

// Searcher is the part of the search index the API uses.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

// StatsReader reports over stored results.
type StatsReader interface {
	Stats(ctx context.Context) (store.Stats, error)
	CategoryReports(ctx context.Context, limit int) ([]store.CategoryReport, error)
}

// Deps are the collaborators of the API. Index and Store are optional.
type Deps struct {
	Rules       *taxonomy.RuleSet
	Coordinator *batch.Coordinator
	Session     *batch.Session
	Quick       *validation.QuickValidator
	Normalizer  *textnorm.Normalizer
	Index       Searcher
	Store       StatsReader
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

type Server struct {
	Deps
}

func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Session == nil {
		d.Session = batch.NewSession(nil)
	}
	return &Server{Deps: d}
}

type unaryFunc func(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error)

// Handler mounts every procedure and /metrics, wrapped with CORS and h2c.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()
	procs := map[string]unaryFunc{
		ProcHealth:               s.Health,
		ProcGenerateTitles:       s.GenerateTitles,
		ProcCheckTitle:           s.CheckTitle,
		ProcFindPattern:          s.FindPattern,
		ProcListTaxonomy:         s.ListTaxonomy,
		ProcCoverage:             s.Coverage,
		ProcGetMemory:            s.GetMemory,
		ProcSetTransformation:    s.SetTransformation,
		ProcDeleteTransformation: s.DeleteTransformation,
		ProcClearMemory:          s.ClearMemory,
		ProcSearch:               s.Search,
		ProcStats:                s.Stats,
		ProcCategoryReport:       s.CategoryReport,
	}
	interceptors := connect.WithInterceptors(s.logInterceptor())
	for path, fn := range procs {
		mux.Handle(path, connect.NewUnaryHandler[structpb.Struct, structpb.Struct](path, fn, interceptors))
	}
	if s.Metrics != nil {
		mux.Handle("/metrics", s.Metrics.Handler())
	}

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Connect-Protocol-Version"},
		ExposedHeaders:   []string{"Grpc-Status", "Grpc-Message"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return h2c.NewHandler(corsHandler.Handler(mux), &http2.Server{})
}

func (s *Server) logInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			started := time.Now()
			log := s.Logger.With(zap.String("procedure", req.Spec().Procedure))
			res, err := next(logger.WithLogger(ctx, log), req)
			took := zap.Duration("took", time.Since(started))
			if err != nil {
				log.Warn("request failed", took, zap.Error(err))
			} else {
				log.Debug("request served", took)
			}
			return res, err
		}
	}
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, allowedOrigins []string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(allowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("ConnectRPC server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
