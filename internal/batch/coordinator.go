package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/callmeahab/catalog-titles/internal/catalog"
	"github.com/callmeahab/catalog-titles/internal/engine"
	"github.com/callmeahab/catalog-titles/internal/metrics"
	"github.com/callmeahab/catalog-titles/internal/taxonomy"
	"github.com/callmeahab/catalog-titles/internal/textnorm"
	"github.com/callmeahab/catalog-titles/internal/validation"
)

const (
	DefaultMaxBatchSize = 25
	MaxBatchSize        = 50
	DefaultPause        = 500 * time.Millisecond

	ReasonNoRule = "No matching nomenclature rule"
)

// CountMismatchError means the engine answered a batch with the wrong number
// of triples. The whole batch is discarded.
type CountMismatchError struct {
	Want int
	Got  int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("engine returned %d titles for %d products", e.Got, e.Want)
}

// ResultSink receives the successful results of every batch as it completes.
type ResultSink interface {
	SaveResults(ctx context.Context, runID uuid.UUID, results []catalog.TitleResult) error
}

type Option func(*Coordinator)

// WithMaxBatchSize bounds the records per engine call. Values outside
// 1..MaxBatchSize fall back to the default.
func WithMaxBatchSize(n int) Option {
	return func(c *Coordinator) {
		if n >= 1 && n <= MaxBatchSize {
			c.maxBatch = n
		}
	}
}

// WithPause sets the wait between batches.
func WithPause(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.pause = d
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

func WithSinks(sinks ...ResultSink) Option {
	return func(c *Coordinator) { c.sinks = append(c.sinks, sinks...) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// Coordinator turns records into validated titles, one engine call per batch
// of records sharing a nomenclature rule. Batches run one at a time.
type Coordinator struct {
	rules    *taxonomy.RuleSet
	gen      engine.Generator
	norm     *textnorm.Normalizer
	proto    *validation.Protocol
	maxBatch int
	pause    time.Duration
	log      *zap.Logger
	sinks    []ResultSink
	metrics  *metrics.Metrics
}

func New(rules *taxonomy.RuleSet, gen engine.Generator, norm *textnorm.Normalizer, proto *validation.Protocol, opts ...Option) *Coordinator {
	c := &Coordinator{
		rules:    rules,
		gen:      gen,
		norm:     norm,
		proto:    proto,
		maxBatch: DefaultMaxBatchSize,
		pause:    DefaultPause,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Report is the outcome of one run. Results and Failed keep input order.
type Report struct {
	RunID   uuid.UUID              `json:"run_id"`
	Results []catalog.TitleResult  `json:"results"`
	Failed  []catalog.FailedRecord `json:"failed"`
	Stats   Stats                  `json:"stats"`
	Batches int                    `json:"batches"`
}

type slot struct {
	index   int
	record  catalog.ProductRecord
	rule    catalog.NomenclatureRule
	ruleIdx int
}

type outcome struct {
	result *catalog.TitleResult
	failed *catalog.FailedRecord
}

// Run processes records for a session. Per-record and per-batch failures end
// up in the report. Cancellation is checked between batches: the records of
// the batches not started are failed and the context error is returned with
// the partial report.
func (c *Coordinator) Run(ctx context.Context, sess *Session, records []catalog.ProductRecord) (*Report, error) {
	sess.runMu.Lock()
	defer sess.runMu.Unlock()
	sess.Reset()

	runID := uuid.New()
	log := c.log.With(zap.String("run_id", runID.String()), zap.Int("records", len(records)))
	mem := sess.Memory()
	outcomes := make([]outcome, len(records))
	var stats Stats

	batches := c.plan(records, outcomes, &stats)
	log.Info("batch run started", zap.Int("batches", len(batches)), zap.Int("uncovered", stats.Failed))

	var runErr error
	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("run abandoned before batch %d of %d: %w", i+1, len(batches), err)
			for j := i; j < len(batches); j++ {
				c.fail(batches[j], fmt.Sprintf("batch %d: %v", j+1, err), outcomes, &stats)
			}
			break
		}
		c.runBatch(ctx, log, runID, i+1, b, mem, outcomes, &stats)
		if i < len(batches)-1 && c.pause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.pause):
			}
		}
	}

	report := &Report{RunID: runID, Batches: len(batches)}
	for _, o := range outcomes {
		switch {
		case o.result != nil:
			report.Results = append(report.Results, *o.result)
		case o.failed != nil:
			report.Failed = append(report.Failed, *o.failed)
		}
	}
	report.Stats = stats
	sess.setStats(stats)
	log.Info("batch run finished",
		zap.Int("processed", stats.TotalProcessed),
		zap.Int("passed", stats.Passed),
		zap.Int("corrected", stats.Corrected),
		zap.Int("failed", stats.Failed))
	return report, runErr
}

// plan resolves every record, fails the uncovered ones and groups the rest by
// rule in first-appearance order, each group chunked to the batch size.
func (c *Coordinator) plan(records []catalog.ProductRecord, outcomes []outcome, stats *Stats) [][]slot {
	groups := map[int][]slot{}
	var order []int
	for i, rec := range records {
		rule, ruleIdx, ok := c.rules.FindPatternRow(rec.Department, rec.Family, rec.Category)
		if !ok {
			outcomes[i].failed = &catalog.FailedRecord{Record: rec, Reason: ReasonNoRule}
			stats.Failed++
			c.metrics.RecordDone("uncovered")
			continue
		}
		if _, seen := groups[ruleIdx]; !seen {
			order = append(order, ruleIdx)
		}
		groups[ruleIdx] = append(groups[ruleIdx], slot{index: i, record: rec, rule: rule, ruleIdx: ruleIdx})
	}

	var batches [][]slot
	for _, ruleIdx := range order {
		g := groups[ruleIdx]
		for start := 0; start < len(g); start += c.maxBatch {
			end := min(start+c.maxBatch, len(g))
			batches = append(batches, g[start:end])
		}
	}
	return batches
}

func (c *Coordinator) runBatch(ctx context.Context, log *zap.Logger, runID uuid.UUID, n int, b []slot, mem *catalog.Memory, outcomes []outcome, stats *Stats) {
	started := time.Now()
	rule := b[0].rule
	req := engine.GenerationRequest{
		Pattern:  rule.SuggestedPattern,
		Example:  rule.Example,
		Memory:   mem,
		Products: make([]catalog.ProductRecord, 0, len(b)),
	}
	for _, s := range b {
		req.Products = append(req.Products, s.record)
	}

	triples, err := c.gen.Generate(ctx, req)
	if err == nil && len(triples) != len(b) {
		err = &CountMismatchError{Want: len(b), Got: len(triples)}
	}
	if err != nil {
		log.Warn("batch failed", zap.Int("batch", n), zap.Int("size", len(b)), zap.Error(err))
		c.fail(b, fmt.Sprintf("batch %d: %v", n, err), outcomes, stats)
		c.metrics.BatchDone("failed", time.Since(started))
		return
	}

	done := make([]catalog.TitleResult, 0, len(b))
	for i, s := range b {
		res := c.finish(ctx, s, triples[i], mem)
		outcomes[s.index].result = &res
		stats.add(res.Validation.Status)
		c.metrics.RecordDone(string(res.Validation.Status))
		done = append(done, res)
	}
	c.metrics.BatchDone("ok", time.Since(started))
	log.Debug("batch done", zap.Int("batch", n), zap.Int("size", len(b)), zap.Duration("took", time.Since(started)))

	for _, sink := range c.sinks {
		if err := sink.SaveResults(ctx, runID, done); err != nil {
			log.Error("result sink failed", zap.Int("batch", n), zap.String("sink", fmt.Sprintf("%T", sink)), zap.Error(err))
		}
	}
}

func (c *Coordinator) fail(b []slot, reason string, outcomes []outcome, stats *Stats) {
	for _, s := range b {
		outcomes[s.index].failed = &catalog.FailedRecord{Record: s.record, Reason: reason}
		stats.Failed++
		c.metrics.RecordDone("failed")
	}
}

// finish cleans and validates one triple.
func (c *Coordinator) finish(ctx context.Context, s slot, raw catalog.TitleTriple, mem *catalog.Memory) catalog.TitleResult {
	cleaned, notes := c.norm.CleanTriple(raw, s.record.Brand, mem)
	final, meta := c.proto.Run(ctx, validation.Input{
		Original: s.record.OriginalTitle(),
		Brand:    s.record.Brand,
		Memory:   mem,
		Triple:   cleaned,
	})

	var allNotes []string
	if raw.Notes != "" {
		allNotes = append(allNotes, raw.Notes)
	}
	allNotes = append(allNotes, notes...)

	compliant := meta.Status == catalog.StatusPassed || meta.Status == catalog.StatusCorrected
	if raw.Compliant != nil {
		compliant = *raw.Compliant
	}

	applied := raw.AppliedTransformations
	if applied == nil {
		applied = []string{}
	}
	return catalog.TitleResult{
		Record:                 s.record,
		Pattern:                s.rule.SuggestedPattern,
		SystemTitle:            final.SystemTitle,
		LabelTitle:             final.LabelTitle,
		SEOTitle:               final.SEOTitle,
		AppliedTransformations: applied,
		Compliant:              compliant,
		Notes:                  allNotes,
		Validation:             meta,
	}
}
