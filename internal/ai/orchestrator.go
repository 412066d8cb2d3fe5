package ai

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/psychodetective/internal/domain"
)

// Options configures an Orchestrator.
type Options struct {
	// Primary is tried first and retried per Retry.
	Primary Provider

	// Secondary is tried once after the primary fails. Optional.
	Secondary Provider

	Prompter  PromptBuilder
	Validator ResultValidator

	// Fallbacks are returned when no provider produced a valid result.
	Fallbacks FallbackSet

	Retry RetryPolicy

	// MaxConcurrent bounds provider calls in flight across all invocations.
	MaxConcurrent int

	// DefaultDeadline applies when the caller's context has no deadline.
	DefaultDeadline time.Duration

	// CallTimeout bounds each provider call. Zero uses the adapter default.
	CallTimeout time.Duration

	Observer Observer
	Logger   *zap.Logger
}

// Orchestrator routes operations across providers with admission control,
// retries, a secondary provider and static fallbacks.
type Orchestrator struct {
	primary         Provider
	secondary       Provider
	prompter        PromptBuilder
	validator       ResultValidator
	fallbacks       FallbackSet
	retry           RetryPolicy
	capacity        int64
	sem             *semaphore.Weighted
	inFlight        atomic.Int64
	defaultDeadline time.Duration
	callTimeout     time.Duration
	observer        Observer
	logger          *zap.Logger

	// sleep waits between retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Primary == nil {
		return nil, fmt.Errorf("%w: primary provider is required", domain.ErrInvalidConfig)
	}
	if opts.Prompter == nil || opts.Validator == nil {
		return nil, fmt.Errorf("%w: prompt builder and validator are required", domain.ErrInvalidConfig)
	}
	if opts.MaxConcurrent < 1 {
		return nil, fmt.Errorf("%w: max concurrent requests must be at least 1", domain.ErrInvalidConfig)
	}
	if opts.Fallbacks == nil {
		opts.Fallbacks = DefaultFallbacks()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Orchestrator{
		primary:         opts.Primary,
		secondary:       opts.Secondary,
		prompter:        opts.Prompter,
		validator:       opts.Validator,
		fallbacks:       opts.Fallbacks,
		retry:           opts.Retry.normalized(),
		capacity:        int64(opts.MaxConcurrent),
		sem:             semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		defaultDeadline: opts.DefaultDeadline,
		callTimeout:     opts.CallTimeout,
		observer:        opts.Observer,
		logger:          opts.Logger.Named("orchestrator"),
		sleep:           sleepContext,
	}, nil
}

// InFlight returns the number of provider calls currently holding a slot.
func (o *Orchestrator) InFlight() int64 {
	return o.inFlight.Load()
}

// Capacity returns the admission capacity.
func (o *Orchestrator) Capacity() int64 {
	return o.capacity
}

// HealthCheck checks the primary provider.
func (o *Orchestrator) HealthCheck(ctx context.Context) error {
	return o.primary.HealthCheck(ctx)
}

// Invoke runs op and returns a validated result or the kind's fallback.
// Only domain.ErrInvalidOperation and domain.ErrOverloaded are returned as errors.
func (o *Orchestrator) Invoke(ctx context.Context, op domain.Operation) (*domain.AnalysisResult, error) {
	startTime := time.Now()
	logger := o.logger.With(zap.String("kind", string(op.Kind)))

	prompt, err := o.prompter.Build(op)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidOperation) {
			err = fmt.Errorf("%w: %v", domain.ErrInvalidOperation, err)
		}
		o.observer.OnRejected(op.Kind, err)
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok && o.defaultDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.defaultDeadline)
		defer cancel()
	}

	slot := &admission{orch: o}
	if err := slot.acquire(ctx); err != nil {
		logger.Warn("no admission slot before deadline", zap.Error(err))
		err = fmt.Errorf("%w: %v", domain.ErrOverloaded, err)
		o.observer.OnRejected(op.Kind, err)
		return nil, err
	}

	req := CompletionRequest{
		Kind:        op.Kind,
		System:      prompt.System,
		User:        prompt.User,
		MaxTokens:   op.MaxTokens,
		Temperature: op.Temperature,
		Timeout:     o.callTimeout,
	}

	text, meta, lastErr := o.callProviders(ctx, slot, req, logger)

	var result *domain.AnalysisResult
	if lastErr == nil {
		result, lastErr = o.decode(op.Kind, text)
		if lastErr != nil {
			logger.Warn("provider response rejected",
				zap.String("provider", meta.Provider),
				zap.Error(lastErr),
				zap.String("content_preview", truncate(text, 200)),
			)
		}
	}

	if lastErr != nil {
		fallback := o.fallbacks.For(op.Kind)
		fallback.Meta.PrimaryAttempts = meta.PrimaryAttempts
		fallback.Meta.SecondaryAttempts = meta.SecondaryAttempts
		fallback.Meta.FailureReason = failureReason(lastErr)
		result = fallback

		logger.Warn("returning fallback result",
			zap.Int("primary_attempts", meta.PrimaryAttempts),
			zap.Int("secondary_attempts", meta.SecondaryAttempts),
			zap.String("reason", string(fallback.Meta.FailureReason)),
			zap.Error(lastErr),
		)
	} else {
		result.Meta = meta
	}

	result.Meta.Latency = time.Since(startTime)
	o.observer.OnComplete(result)

	logger.Debug("invocation completed",
		zap.String("source", string(result.Meta.Source)),
		zap.Duration("latency", result.Meta.Latency),
	)

	return result, nil
}

// callProviders runs the network phase. The caller holds one slot on entry;
// the slot is released before callProviders returns.
func (o *Orchestrator) callProviders(ctx context.Context, slot *admission, req CompletionRequest, logger *zap.Logger) (string, domain.Meta, error) {
	defer slot.release()

	var meta domain.Meta
	var lastErr error

	for attempt := 1; attempt <= o.retry.MaxAttempts; attempt++ {
		if err := slot.acquire(ctx); err != nil {
			lastErr = domain.NewProviderError(o.primary.Name(), domain.ReasonTimeout, false, err)
			break
		}

		meta.PrimaryAttempts++
		res, err := o.attempt(ctx, o.primary, req)
		slot.release()
		if err == nil {
			meta.Source = domain.SourcePrimary
			meta.Provider = o.primary.Name()
			meta.Model = o.primary.Model()
			return res.Text, meta, nil
		}
		lastErr = err

		if !domain.IsRetryable(err) {
			logger.Warn("primary provider failed, not retryable",
				zap.String("provider", o.primary.Name()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			break
		}
		if attempt == o.retry.MaxAttempts {
			break
		}

		delay := o.retry.Delay(attempt, err)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			logger.Warn("deadline too close for another primary attempt",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			break
		}

		logger.Debug("retrying primary provider",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := o.sleep(ctx, delay); err != nil {
			break
		}
	}

	if o.secondary == nil || ctx.Err() != nil {
		return "", meta, lastErr
	}

	if err := slot.acquire(ctx); err != nil {
		return "", meta, lastErr
	}

	logger.Info("falling back to secondary provider",
		zap.String("secondary", o.secondary.Name()),
		zap.Int("primary_attempts", meta.PrimaryAttempts),
	)

	meta.SecondaryAttempts++
	res, err := o.attempt(ctx, o.secondary, req)
	slot.release()
	if err != nil {
		logger.Warn("secondary provider failed", zap.String("provider", o.secondary.Name()), zap.Error(err))
		return "", meta, err
	}

	meta.Source = domain.SourceSecondary
	meta.Provider = o.secondary.Name()
	meta.Model = o.secondary.Model()
	return res.Text, meta, nil
}

// attempt performs one provider call and reports it to the observer.
func (o *Orchestrator) attempt(ctx context.Context, p Provider, req CompletionRequest) (*CallResult, error) {
	o.inFlight.Add(1)
	start := time.Now()
	res, err := p.Complete(ctx, req)
	latency := time.Since(start)
	o.inFlight.Add(-1)

	if err == nil && (res == nil || res.Text == "") {
		err = invalidResponse(p.Name(), "empty result")
	}

	o.observer.OnAttempt(p.Name(), req.Kind, err, latency)
	return res, err
}

// decode parses raw provider text and validates it for kind.
func (o *Orchestrator) decode(kind domain.Kind, text string) (*domain.AnalysisResult, error) {
	raw, err := parseObject(text)
	if err != nil {
		return nil, err
	}
	return o.validator.Validate(kind, raw)
}

func failureReason(err error) domain.FailureReason {
	if errors.Is(err, domain.ErrSchemaViolation) {
		return domain.ReasonInvalidResponse
	}
	return domain.ReasonOf(err)
}

// admission tracks whether an invocation holds a semaphore slot.
type admission struct {
	orch *Orchestrator
	held bool
}

func (a *admission) acquire(ctx context.Context) error {
	if a.held {
		return nil
	}
	if err := a.orch.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	a.held = true
	return nil
}

func (a *admission) release() {
	if a.held {
		a.orch.sem.Release(1)
		a.held = false
	}
}
