package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"

	"github.com/callmeahab/catalog-titles/internal/batch"
	"github.com/callmeahab/catalog-titles/internal/catalog"
	"github.com/callmeahab/catalog-titles/internal/config"
	"github.com/callmeahab/catalog-titles/internal/search"
	"github.com/callmeahab/catalog-titles/internal/server"
	"github.com/callmeahab/catalog-titles/internal/taxonomy"
)

var flags struct {
	nomenclature string
	memory       string
	dryRun       bool
	noAI         bool
	batchSize    int
	logLevel     string
}

// applyFlagOverrides lets command line flags win over the environment.
func applyFlagOverrides(cfg *config.Config) {
	if flags.nomenclature != "" {
		cfg.Data.NomenclaturePath = flags.nomenclature
	}
	if flags.memory != "" {
		cfg.Data.MemoryPath = flags.memory
	}
	if flags.dryRun {
		cfg.Engine.Stub = true
	}
	if flags.noAI {
		cfg.Validation.EnableAI = false
	}
	if flags.batchSize > 0 {
		cfg.Batch.MaxSize = flags.batchSize
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		var cfgErr *catalog.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "titlegen",
		Short:         "Generate, clean and validate catalog product titles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.nomenclature, "nomenclature", "", "nomenclature CSV (Departamento, Familia, Categoria, Nomenclatura sugerida, Ejemplo aplicado)")
	pf.StringVar(&flags.memory, "memory", "", "JSON file with the initial transformation memory")
	pf.BoolVar(&flags.dryRun, "dry-run", false, "use the deterministic engine instead of the model")
	pf.BoolVar(&flags.noAI, "no-ai", false, "validate with the quick rules only")
	pf.IntVar(&flags.batchSize, "batch-size", 0, "records per engine call (1-50)")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		serveCmd(),
		batchCmd(),
		simpleCmd(),
		coverageCmd(),
		checkCmd(),
		rebuildIndexCmd(),
		searchCmd(),
		reportCmd(),
	)
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the ConnectRPC server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.cfg.RequireEngine(); err != nil {
				return err
			}
			if err := a.loadRules(); err != nil {
				return err
			}
			if err := a.loadMemory(); err != nil {
				return err
			}
			if err := a.connectStore(ctx, false); err != nil {
				return err
			}
			if err := a.connectIndex(ctx, false); err != nil {
				return err
			}
			coord, err := a.coordinator()
			if err != nil {
				return err
			}

			deps := server.Deps{
				Rules:       a.rules,
				Coordinator: coord,
				Session:     a.session,
				Quick:       a.quick,
				Normalizer:  a.norm,
				Metrics:     a.metrics,
				Logger:      a.log,
			}
			// Typed nils must not reach the interfaces.
			if a.index != nil {
				deps.Index = a.index
			}
			if a.store != nil {
				deps.Store = a.store
			}
			return server.New(deps).ListenAndServe(ctx, a.cfg.Server.Addr(), a.cfg.Server.AllowedOrigins)
		},
	}
}

type outputFlags struct {
	results  string
	failures string
	columns  string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.results, "output", "o", "titulos_generados.csv", "results CSV")
	cmd.Flags().StringVar(&o.failures, "failures", "titulos_fallidos.csv", "failed records CSV")
	cmd.Flags().StringVar(&o.columns, "columns", "system,label,seo", "generated title columns to export")
}

func registerFilter(cmd *cobra.Command, f *taxonomy.Filter) {
	cmd.Flags().StringVar(&f.Department, "department", "", "only records of this department")
	cmd.Flags().StringVar(&f.Family, "family", "", "only records of this family")
	cmd.Flags().StringVar(&f.Category, "category", "", "only records of this category")
}

func batchCmd() *cobra.Command {
	var (
		out    outputFlags
		filter taxonomy.Filter
	)
	cmd := &cobra.Command{
		Use:   "batch <products.csv>",
		Short: "Generate titles for a product sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readInput(args[0], batch.ReadRecords)
			if err != nil {
				return err
			}
			return generate(cmd.Context(), filter.Apply(records), out)
		},
	}
	out.register(cmd)
	registerFilter(cmd, &filter)
	return cmd
}

func simpleCmd() *cobra.Command {
	var (
		out    outputFlags
		filter taxonomy.Filter
	)
	cmd := &cobra.Command{
		Use:   "simple <titles.csv>",
		Short: "Generate titles for a single title column under one category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readInput(args[0], func(r io.Reader) ([]catalog.ProductRecord, error) {
				return batch.ReadSimpleRecords(r, filter.Department, filter.Family, filter.Category)
			})
			if err != nil {
				return err
			}
			return generate(cmd.Context(), records, out)
		},
	}
	out.register(cmd)
	registerFilter(cmd, &filter)
	for _, name := range []string{"department", "family", "category"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func readInput(path string, read func(io.Reader) ([]catalog.ProductRecord, error)) ([]catalog.ProductRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	return read(f)
}

// generate runs records through the pipeline and writes both CSV files. A
// cancelled run still writes what it produced.
func generate(ctx context.Context, records []catalog.ProductRecord, out outputFlags) error {
	cols, err := batch.ParseColumns(out.columns)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.New("no products to process")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.cfg.RequireEngine(); err != nil {
		return err
	}
	if err := a.loadRules(); err != nil {
		return err
	}
	if err := a.loadMemory(); err != nil {
		return err
	}
	if err := a.connectStore(ctx, false); err != nil {
		return err
	}
	if err := a.connectIndex(ctx, false); err != nil {
		return err
	}
	coord, err := a.coordinator()
	if err != nil {
		return err
	}

	report, runErr := coord.Run(ctx, a.session, records)
	if report == nil {
		return runErr
	}
	if err := writeFile(out.results, func(f *os.File) error { return batch.WriteResults(f, report.Results, cols) }); err != nil {
		return err
	}
	if len(report.Failed) > 0 {
		if err := writeFile(out.failures, func(f *os.File) error { return batch.WriteFailures(f, report.Failed) }); err != nil {
			return err
		}
	}

	st := report.Stats
	fmt.Printf("Processed %d of %d products in %d batches\n", st.TotalProcessed, len(records), report.Batches)
	fmt.Printf("   Passed: %d  Corrected: %d  Warnings: %d  Failed: %d\n", st.Passed, st.Corrected, st.Warnings, st.Failed)
	fmt.Printf("   Results: %s\n", out.results)
	if len(report.Failed) > 0 {
		fmt.Printf("   Failures: %s\n", out.failures)
	}
	return runErr
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func coverageCmd() *cobra.Command {
	var filter taxonomy.Filter
	cmd := &cobra.Command{
		Use:   "coverage <products.csv>",
		Short: "Report which products have a nomenclature rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readInput(args[0], batch.ReadRecords)
			if err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.loadRules(); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a.rules.AnalyzeCoverage(filter.Apply(records)))
		},
	}
	registerFilter(cmd, &filter)
	return cmd
}

func checkCmd() *cobra.Command {
	var original, generated, brand string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Clean a generated title and run the quick checks against its original",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.loadMemory(); err != nil {
				return err
			}

			cleaned := a.norm.Clean(generated, brand, a.session.Memory())
			issues := a.quick.Check(original, cleaned)
			if issues == nil {
				issues = []string{}
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"cleaned": cleaned,
				"issues":  issues,
				"valid":   len(issues) == 0,
			})
		},
	}
	cmd.Flags().StringVar(&original, "original", "", "original product title")
	cmd.Flags().StringVar(&generated, "generated", "", "generated title to check")
	cmd.Flags().StringVar(&brand, "brand", "", "brand to strip from the title")
	_ = cmd.MarkFlagRequired("generated")
	return cmd
}

func rebuildIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-index",
		Short: "Rebuild the search index from the stored titles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.connectStore(ctx, true); err != nil {
				return err
			}
			if err := a.connectIndex(ctx, true); err != nil {
				return err
			}

			n, err := a.index.Rebuild(ctx, a.store)
			if err != nil {
				return fmt.Errorf("rebuild failed: %w", err)
			}
			a.log.Info("index rebuild complete", zap.Int("indexed", n))
			fmt.Printf("Index rebuild complete\n   Total indexed: %d\n", n)
			return nil
		},
	}
}

func searchCmd() *cobra.Command {
	var (
		q      search.Query
		filter taxonomy.Filter
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the generated titles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.connectIndex(ctx, true); err != nil {
				return err
			}

			q.Text = args[0]
			if filter.Department != "" {
				q.Departments = []string{filter.Department}
			}
			if filter.Family != "" {
				q.Families = []string{filter.Family}
			}
			if filter.Category != "" {
				q.Categories = []string{filter.Category}
			}
			res, err := a.index.Search(ctx, q)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	registerFilter(cmd, &filter)
	cmd.Flags().StringSliceVar(&q.Statuses, "status", nil, "validation statuses to include")
	cmd.Flags().BoolVar(&q.Corrected, "corrected", false, "only titles changed by the correction pass")
	cmd.Flags().IntVar(&q.Limit, "limit", 20, "maximum hits")
	return cmd
}

func reportCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "report",
		Short: "List the categories with the most flagged stored titles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.connectStore(ctx, true); err != nil {
				return err
			}

			stats, err := a.store.Stats(ctx)
			if err != nil {
				return err
			}
			categories, err := a.store.CategoryReports(ctx, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"stats": stats, "categories": categories})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of categories")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(pretty.Pretty(data))
	return err
}
