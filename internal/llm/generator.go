package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/devforge/internal/config"
	"github.com/fyrsmithlabs/devforge/internal/logging"
)

const instrumentationName = "github.com/fyrsmithlabs/devforge/internal/llm"

const (
	defaultGoogleAIModel  = "gemini-2.0-flash"
	googleAIBaseURL       = "https://generativelanguage.googleapis.com/v1beta/openai/"
	defaultAnthropicModel = "claude-3-5-sonnet-20241022"
	defaultOpenAIModel    = "gpt-4o-mini"

	defaultMaxTokens   = 4096
	defaultTimeout     = 2 * time.Minute
	defaultMaxRetries  = 2
	defaultBaseBackoff = time.Second
	defaultBurst       = 2
	defaultTemperature = 0.4
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// TextGenerator produces text from a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Generator is a TextGenerator backed by a langchaingo model.
type Generator struct {
	model      llms.Model
	name       string
	logger     *logging.Logger
	limiter    *rate.Limiter
	timeout    time.Duration
	maxTokens  int
	maxRetries int
	backoff    time.Duration

	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// Option configures a Generator.
type Option func(*Generator)

// WithRateLimit allows rpm requests per minute with a small burst.
// Zero or negative disables limiting.
func WithRateLimit(rpm int) Option {
	return func(g *Generator) {
		if rpm <= 0 {
			g.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		g.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), defaultBurst)
	}
}

// WithTimeout bounds a single model call.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithMaxTokens sets the token limit used when a caller passes zero.
func WithMaxTokens(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithRetry sets how many times a failed call is retried and the base
// exponential backoff between attempts.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(g *Generator) {
		g.maxRetries = maxRetries
		g.backoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l.Named("llm")
		}
	}
}

// WithTelemetry replaces the global tracer and meter providers.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(g *Generator) {
		g.tracer = tp.Tracer(instrumentationName)
		g.initMetrics(mp.Meter(instrumentationName))
	}
}

// NewGenerator builds a Generator for the configured provider. The
// credential is resolved with ResolveCredential.
func NewGenerator(ctx context.Context, cfg config.LLMConfig, logger *logging.Logger) (*Generator, error) {
	cred, err := ResolveCredential(cfg)
	if err != nil {
		return nil, err
	}

	model, name, err := newModel(cred, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", cred.Provider, err)
	}

	g := New(model, name,
		WithLogger(logger),
		WithRateLimit(cfg.RequestsPerMinute),
		WithTimeout(cfg.Timeout.Duration()),
		WithMaxTokens(cfg.MaxTokens),
	)
	g.logger.Info(ctx, "llm generator ready",
		zap.String("provider", cred.Provider),
		zap.String("model", name),
		zap.String("credential_source", cred.Source))
	return g, nil
}

func newModel(cred Credential, cfg config.LLMConfig) (llms.Model, string, error) {
	switch cred.Provider {
	case ProviderGoogleAI:
		// Gemini is reached through its OpenAI-compatible endpoint.
		name := modelOrDefault(cfg.Model, defaultGoogleAIModel)
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = googleAIBaseURL
		}
		m, err := openai.New(
			openai.WithToken(cred.APIKey.Value()),
			openai.WithModel(name),
			openai.WithBaseURL(baseURL),
		)
		return m, name, err
	case ProviderAnthropic:
		// The anthropic client has no endpoint override.
		if cfg.BaseURL != "" {
			return nil, "", fmt.Errorf("base_url %q cannot be used with the anthropic provider", cfg.BaseURL)
		}
		name := modelOrDefault(cfg.Model, defaultAnthropicModel)
		m, err := anthropic.New(anthropic.WithToken(cred.APIKey.Value()), anthropic.WithModel(name))
		return m, name, err
	case ProviderOpenAI:
		name := modelOrDefault(cfg.Model, defaultOpenAIModel)
		opts := []openai.Option{openai.WithToken(cred.APIKey.Value()), openai.WithModel(name)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		m, err := openai.New(opts...)
		return m, name, err
	default:
		return nil, "", fmt.Errorf("unknown provider %q", cred.Provider)
	}
}

func modelOrDefault(model, def string) string {
	if model == "" {
		return def
	}
	return model
}

// New wraps an existing model. name is only used for logging and telemetry.
func New(model llms.Model, name string, opts ...Option) *Generator {
	g := &Generator{
		model:      model,
		name:       name,
		logger:     logging.NewNop(),
		limiter:    rate.NewLimiter(rate.Limit(30.0/60.0), defaultBurst),
		timeout:    defaultTimeout,
		maxTokens:  defaultMaxTokens,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBaseBackoff,
		tracer:     otel.Tracer(instrumentationName),
	}
	g.initMetrics(otel.Meter(instrumentationName))

	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) initMetrics(meter metric.Meter) {
	var err error

	g.duration, err = meter.Float64Histogram(
		"devforge.llm.duration",
		metric.WithDescription("Latency of text generation calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		g.logger.Warn(context.Background(), "failed to create llm duration histogram", zap.Error(err))
	}

	g.errors, err = meter.Int64Counter(
		"devforge.llm.errors",
		metric.WithDescription("Text generation calls that failed after retries"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		g.logger.Warn(context.Background(), "failed to create llm error counter", zap.Error(err))
	}
}

// GenerateText sends prompt to the model and returns its text. maxTokens of
// zero uses the configured default.
func (g *Generator) GenerateText(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}

	ctx, span := g.tracer.Start(ctx, "llm.GenerateText")
	defer span.End()
	span.SetAttributes(
		attribute.String("model", g.name),
		attribute.Int("max_tokens", maxTokens),
		attribute.Int("prompt_length", len(prompt)),
	)

	start := time.Now()
	text, err := g.generateWithRetry(ctx, prompt, maxTokens)
	if g.duration != nil {
		g.duration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("model", g.name), attribute.Bool("success", err == nil)))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if g.errors != nil {
			g.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("model", g.name)))
		}
		g.logger.Warn(ctx, "text generation failed", zap.String("model", g.name), zap.Error(err))
		return "", err
	}

	span.SetAttributes(attribute.Int("response_length", len(text)))
	g.logger.Debug(ctx, "text generated",
		zap.String("model", g.name),
		zap.Int("response_length", len(text)),
		zap.Duration("elapsed", time.Since(start)))
	return text, nil
}

func (g *Generator) generateWithRetry(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := g.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := g.generateOnce(ctx, prompt, maxTokens)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !isRetryable(ctx, err) {
			return "", err
		}
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (g *Generator) generateOnce(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := llms.GenerateFromSinglePrompt(callCtx, g.model, prompt,
		llms.WithMaxTokens(maxTokens),
		llms.WithTemperature(defaultTemperature),
	)
	if err != nil {
		return "", fmt.Errorf("generating text: %w", err)
	}
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// isRetryable treats everything except caller cancellation and empty output
// as transient.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) {
		return false
	}
	return true
}
