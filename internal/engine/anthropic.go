package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/callmeahab/catalog-titles/internal/catalog"
	"github.com/callmeahab/catalog-titles/internal/validation"
)

const (
	DefaultModel            = "claude-sonnet-4-20250514"
	defaultBatchTokens      = 4000
	defaultProductTokens    = 1000
	defaultCorrectionTokens = 800
	defaultRetries          = 2
	defaultBackoff          = time.Second
)

// ContentGenerator is the slice of llms.Model the engine uses.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Anthropic generates and corrects titles through a langchaingo model.
type Anthropic struct {
	model            ContentGenerator
	batchTokens      int
	productTokens    int
	correctionTokens int
	temperature      float64
	retries          uint64
	backoff          time.Duration
	limiter          *rate.Limiter
	log              *zap.Logger
}

var (
	_ Generator            = (*Anthropic)(nil)
	_ validation.Corrector = (*Anthropic)(nil)
)

type Option func(*Anthropic)

// WithRetries sets how many times a failed call is retried and the base of
// the exponential backoff between attempts.
func WithRetries(n uint64, base time.Duration) Option {
	return func(a *Anthropic) {
		a.retries = n
		if base > 0 {
			a.backoff = base
		}
	}
}

// WithRateLimit caps outgoing calls per second. Zero disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(a *Anthropic) {
		if perSecond > 0 {
			a.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func WithTemperature(t float64) Option {
	return func(a *Anthropic) { a.temperature = t }
}

func WithMaxTokens(batch, product, correction int) Option {
	return func(a *Anthropic) {
		if batch > 0 {
			a.batchTokens = batch
		}
		if product > 0 {
			a.productTokens = product
		}
		if correction > 0 {
			a.correctionTokens = correction
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(a *Anthropic) {
		if log != nil {
			a.log = log
		}
	}
}

// NewAnthropic connects to the Anthropic API. A missing key is a
// configuration error.
func NewAnthropic(apiKey, model string, opts ...Option) (*Anthropic, error) {
	if apiKey == "" {
		return nil, &catalog.ConfigError{Setting: "ANTHROPIC_API_KEY", Reason: "not set"}
	}
	if model == "" {
		model = DefaultModel
	}
	llm, err := anthropic.New(anthropic.WithModel(model), anthropic.WithToken(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create anthropic client: %w", err)
	}
	return NewWithModel(llm, opts...), nil
}

// NewWithModel wraps any content generator, typically a fake in tests.
func NewWithModel(model ContentGenerator, opts ...Option) *Anthropic {
	a := &Anthropic{
		model:            model,
		batchTokens:      defaultBatchTokens,
		productTokens:    defaultProductTokens,
		correctionTokens: defaultCorrectionTokens,
		retries:          defaultRetries,
		backoff:          defaultBackoff,
		log:              zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Generate issues one call for the whole request. A single product without
// an existing title is described by its attributes; everything else goes
// through the batch prompt.
func (a *Anthropic) Generate(ctx context.Context, req GenerationRequest) ([]catalog.TitleTriple, error) {
	if len(req.Products) == 0 {
		return nil, nil
	}
	prompt, tokens := BatchPrompt(req), a.batchTokens
	if len(req.Products) == 1 && req.Products[0].ExistingTitle == "" {
		prompt, tokens = ProductPrompt(req), a.productTokens
	}

	text, err := a.complete(ctx, prompt, tokens)
	if err != nil {
		return nil, err
	}
	triples, err := ParseTriples(text)
	if err != nil {
		a.log.Warn("unparseable generation response", zap.Int("products", len(req.Products)), zap.Error(err))
		return nil, err
	}
	return triples, nil
}

// Correct runs the review pass on one SEO title.
func (a *Anthropic) Correct(ctx context.Context, original, generated string) (validation.CorrectionResult, error) {
	text, err := a.complete(ctx, CorrectionPrompt(original, generated), a.correctionTokens)
	if err != nil {
		return validation.CorrectionResult{}, err
	}
	return ParseCorrection(text)
}

func (a *Anthropic) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	messages := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}
	backoff := retry.WithMaxRetries(a.retries, retry.NewExponential(a.backoff))

	var text string
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		resp, err := a.model.GenerateContent(ctx, messages,
			llms.WithMaxTokens(maxTokens),
			llms.WithTemperature(a.temperature),
		)
		if err != nil {
			if isRetryable(ctx, err) {
				a.log.Debug("engine call failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
				return retry.RetryableError(err)
			}
			return err
		}
		if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
			return ErrEmptyResponse
		}
		text = resp.Choices[0].Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("engine call failed after %d attempt(s): %w", attempt, err)
	}
	return text, nil
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
