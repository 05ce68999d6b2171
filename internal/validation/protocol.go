package validation

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/callmeahab/catalog-titles/internal/catalog"
	"github.com/callmeahab/catalog-titles/internal/textnorm"
)

// Validation states of one record.
const (
	StateGenerated    = "generated"
	StateQuickChecked = "quick_checked"
	StatePassed       = "passed"
	StateAIValidated  = "ai_validated"
	StateFinal        = "final"
)

const (
	EventQuickCheck = "quick_check"
	EventPass       = "pass"
	EventEscalate   = "escalate"
	EventFlag       = "flag"
	EventFinalize   = "finalize"
)

// Confidence levels reported by the correction pass.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// CorrectionResult is the structured answer of the correction pass.
type CorrectionResult struct {
	IsValid        bool     `json:"is_valid"`
	CorrectedTitle string   `json:"corrected_title"`
	IssuesFound    []string `json:"issues_found"`
	RemovedPhrases []string `json:"removed_phrases"`
	Confidence     string   `json:"confidence"`
}

// CorrectionFailure is the result recorded when the correction call fails:
// invalid, with the generated title kept as is.
func CorrectionFailure(generated string, err error) CorrectionResult {
	return CorrectionResult{
		IsValid:        false,
		CorrectedTitle: generated,
		IssuesFound:    []string{fmt.Sprintf("Validation error: %v", err)},
		RemovedPhrases: []string{},
		Confidence:     ConfidenceLow,
	}
}

// Corrector is the second, independent pass that reviews a generated title
// against the original and proposes a fix.
type Corrector interface {
	Correct(ctx context.Context, original, generated string) (CorrectionResult, error)
}

// Input is one record entering validation. Triple must already be cleaned.
type Input struct {
	Original string
	Brand    string
	Memory   *catalog.Memory
	Triple   catalog.TitleTriple
}

// TransitionHook observes every state change.
type TransitionHook func(event, from, to string)

type ProtocolOption func(*Protocol)

func WithLogger(log *zap.Logger) ProtocolOption {
	return func(p *Protocol) {
		if log != nil {
			p.log = log
		}
	}
}

// WithNormalizer cleans corrected SEO titles before they are accepted.
func WithNormalizer(n *textnorm.Normalizer) ProtocolOption {
	return func(p *Protocol) { p.norm = n }
}

func WithTransitionHook(h TransitionHook) ProtocolOption {
	return func(p *Protocol) { p.hooks = append(p.hooks, h) }
}

// Protocol runs quick validation on every record and escalates records with
// issues to the corrector when AI validation is enabled.
type Protocol struct {
	quick     *QuickValidator
	corrector Corrector
	enableAI  bool
	norm      *textnorm.Normalizer
	log       *zap.Logger
	hooks     []TransitionHook
}

// NewProtocol builds a protocol. A nil corrector behaves as AI validation
// disabled.
func NewProtocol(quick *QuickValidator, corrector Corrector, enableAI bool, opts ...ProtocolOption) *Protocol {
	p := &Protocol{
		quick:     quick,
		corrector: corrector,
		enableAI:  enableAI,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AIEnabled reports whether records with issues are sent to the corrector.
func (p *Protocol) AIEnabled() bool {
	return p.enableAI && p.corrector != nil
}

func (p *Protocol) newMachine() *fsm.FSM {
	return fsm.NewFSM(
		StateGenerated,
		fsm.Events{
			{Name: EventQuickCheck, Src: []string{StateGenerated}, Dst: StateQuickChecked},
			{Name: EventPass, Src: []string{StateQuickChecked}, Dst: StatePassed},
			{Name: EventEscalate, Src: []string{StateQuickChecked}, Dst: StateAIValidated},
			{Name: EventFlag, Src: []string{StateQuickChecked}, Dst: StateFinal},
			{Name: EventFinalize, Src: []string{StatePassed, StateAIValidated}, Dst: StateFinal},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				for _, h := range p.hooks {
					h(e.Event, e.Src, e.Dst)
				}
			},
		},
	)
}

func (p *Protocol) fire(ctx context.Context, machine *fsm.FSM, event string) {
	if err := machine.Event(ctx, event); err != nil {
		p.log.Warn("validation transition rejected",
			zap.String("event", event),
			zap.String("state", machine.Current()),
			zap.Error(err))
	}
}

// Run validates one record. Only the SEO title can change, and only when the
// corrector declares it invalid and proposes a different title. Failures of
// the correction call are recorded as issues and never abort.
func (p *Protocol) Run(ctx context.Context, in Input) (catalog.TitleTriple, catalog.ValidationMetadata) {
	machine := p.newMachine()
	out := in.Triple
	meta := catalog.ValidationMetadata{
		Method: catalog.MethodNone,
		Status: catalog.StatusPassed,
		Issues: []string{},
	}

	issues := p.quick.Check(in.Original, out.SEOTitle)
	p.fire(ctx, machine, EventQuickCheck)

	switch {
	case len(issues) == 0:
		p.fire(ctx, machine, EventPass)
		p.fire(ctx, machine, EventFinalize)
		return out, meta

	case !p.AIEnabled():
		meta.Method = catalog.MethodRulesOnly
		meta.Status = catalog.StatusWarnings
		meta.Issues = issues
		p.fire(ctx, machine, EventFlag)
		return out, meta
	}

	p.fire(ctx, machine, EventEscalate)
	meta.Method = catalog.MethodAIValidated

	result, err := p.corrector.Correct(ctx, in.Original, out.SEOTitle)
	if err != nil {
		p.log.Warn("correction call failed", zap.String("original", in.Original), zap.Error(err))
		result = CorrectionFailure(out.SEOTitle, err)
	}
	meta.Issues = append(append([]string{}, issues...), result.IssuesFound...)

	if result.IsValid {
		meta.Status = catalog.StatusPassedWithWarnings
		p.fire(ctx, machine, EventFinalize)
		return out, meta
	}

	corrected := result.CorrectedTitle
	if p.norm != nil {
		corrected = p.norm.Clean(corrected, in.Brand, in.Memory)
	}
	if corrected == "" || corrected == out.SEOTitle {
		meta.Status = catalog.StatusWarnings
		p.fire(ctx, machine, EventFinalize)
		return out, meta
	}

	out.SEOTitle = corrected
	meta.Status = catalog.StatusCorrected
	meta.Corrected = true
	p.fire(ctx, machine, EventFinalize)
	return out, meta
}
