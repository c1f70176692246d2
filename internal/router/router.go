package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"modelrouter/internal/budget"
	"modelrouter/internal/logging"
	"modelrouter/internal/models"
	"modelrouter/internal/providers"
	"modelrouter/internal/storage"
)

// Catalog resolves the reference data a request needs: models, providers
// and per-scope model preferences.
type Catalog interface {
	ModelByID(ctx context.Context, id uuid.UUID) (*models.Model, error)
	DefaultModel(ctx context.Context, category string) (*models.Model, error)
	ProviderByID(ctx context.Context, id uuid.UUID) (*models.Provider, error)
	PreferenceFor(ctx context.Context, taskType string, userID, projectID *uuid.UUID) (*models.ModelPreference, error)
}

// AdapterSource yields a ready-to-call adapter for a provider in the
// request's scope, resolving the stored credential config behind it.
type AdapterSource interface {
	AdapterFor(ctx context.Context, provider *models.Provider, userID, projectID *uuid.UUID) (providers.Adapter, error)
}

// Ledger gates requests on spend caps and records actual spend.
type Ledger interface {
	Check(ctx context.Context, scope budget.Scope, providerID uuid.UUID, estimatedCost float64) error
	Record(ctx context.Context, scope budget.Scope, providerID uuid.UUID, cost float64) error
}

// HealthMonitor answers the availability predicate and records outcomes.
type HealthMonitor interface {
	Healthy(ctx context.Context, providerID uuid.UUID) bool
	Update(ctx context.Context, providerID uuid.UUID, success bool, attemptErr error) error
}

// Options tune the fallback chain execution.
type Options struct {
	// MaxRetries bounds rate-limit retries across the WHOLE chain
	// execution, not per provider.
	MaxRetries int

	// BaseDelay is the first backoff; each further retry doubles it.
	BaseDelay time.Duration

	// EnableFallback allows advancing past the primary model.
	EnableFallback bool

	// EnableHealthCheck skips providers the monitor reports unhealthy.
	EnableHealthCheck bool
}

// DefaultOptions returns the standard chain execution settings.
func DefaultOptions() Options {
	return Options{
		MaxRetries:        3,
		BaseDelay:         time.Second,
		EnableFallback:    true,
		EnableHealthCheck: true,
	}
}

// Request is one logical generation request. Either Prompt or Messages must
// be set; Prompt is shorthand for a single user message.
type Request struct {
	RequestID  uuid.UUID          `json:"request_id,omitempty"`
	TaskType   string             `json:"task_type"`
	ModelID    *uuid.UUID         `json:"model_id,omitempty"`
	Prompt     string             `json:"prompt,omitempty"`
	Messages   []providers.Message `json:"messages,omitempty"`
	UserID     *uuid.UUID         `json:"user_id,omitempty"`
	ProjectID  *uuid.UUID         `json:"project_id,omitempty"`
	Parameters map[string]any     `json:"parameters,omitempty"`
	Metadata   map[string]any     `json:"metadata,omitempty"`
}

// Response is the normalized result of a routed execution.
type Response struct {
	RequestID    uuid.UUID       `json:"request_id"`
	Content      string          `json:"content"`
	ModelUsed    string          `json:"model_used"`
	ModelID      uuid.UUID       `json:"model_id"`
	ProviderUsed string          `json:"provider_used"`
	ProviderID   uuid.UUID       `json:"provider_id"`
	Usage        providers.Usage `json:"usage"`
	CostUSD      float64         `json:"cost_usd"`
	WasCached    bool            `json:"was_cached"`
	WasFallback  bool            `json:"was_fallback"`
	DurationMS   int64           `json:"duration_ms"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
}

// Router resolves a model for each request, enforces the budget, and walks
// the fallback chain until a provider serves the request.
type Router struct {
	catalog  Catalog
	adapters AdapterSource
	ledger   Ledger
	health   HealthMonitor
	sink     logging.Sink
	opts     Options
	logger   *logging.Logger

	// sleep is swapped out in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRouter wires a router from its collaborators.
func NewRouter(catalog Catalog, adapters AdapterSource, ledger Ledger, health HealthMonitor, sink logging.Sink, opts Options) *Router {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if sink == nil {
		sink = logging.NewNoopSink()
	}

	return &Router{
		catalog:  catalog,
		adapters: adapters,
		ledger:   ledger,
		health:   health,
		sink:     sink,
		opts:     opts,
		logger:   logging.NewLogger("router"),
		sleep:    sleepContext,
	}
}

// Execute runs one request end to end: model selection, budget gate,
// fallback chain, then health/budget/usage bookkeeping.
func (r *Router) Execute(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	if err := normalizeRequest(req); err != nil {
		return nil, err
	}

	primary, pref, err := r.selectModel(ctx, req)
	if err != nil {
		return nil, err
	}

	scope := budget.Scope{UserID: req.UserID, ProjectID: req.ProjectID}
	if err := r.ledger.Check(ctx, scope, primary.ProviderID, r.estimateCost(primary, req)); err != nil {
		return nil, err
	}

	chain := r.buildChain(ctx, primary, pref)

	resp, err := r.executeChain(ctx, req, chain, scope, start)
	if err != nil {
		r.logOutcome(req, primary, primary.ProviderID, providers.Usage{}, 0,
			time.Since(start).Milliseconds(), false, models.UsageStatusError, err.Error())
		return nil, err
	}
	return resp, nil
}

func normalizeRequest(req *Request) error {
	if req.RequestID == uuid.Nil {
		req.RequestID = uuid.New()
	}
	if req.TaskType == "" {
		req.TaskType = "text"
	}
	if len(req.Messages) == 0 && req.Prompt != "" {
		req.Messages = []providers.Message{{Role: "user", Content: req.Prompt}}
	}
	if len(req.Messages) == 0 {
		return errors.New("request has no prompt or messages")
	}
	return nil
}

// selectModel picks the primary model: an explicit model id wins, then the
// scope's preference for the task type, then the best active model in the
// task's category.
func (r *Router) selectModel(ctx context.Context, req *Request) (*models.Model, *models.ModelPreference, error) {
	if req.ModelID != nil {
		model, err := r.catalog.ModelByID(ctx, *req.ModelID)
		if err != nil {
			return nil, nil, err
		}
		return model, nil, nil
	}

	pref, err := r.catalog.PreferenceFor(ctx, req.TaskType, req.UserID, req.ProjectID)
	if err == nil {
		model, mErr := r.catalog.ModelByID(ctx, pref.PrimaryModelID)
		if mErr != nil {
			return nil, nil, fmt.Errorf("preferred model unavailable: %w", mErr)
		}
		return model, pref, nil
	}
	if !errors.Is(err, storage.ErrPreferenceNotFound) {
		return nil, nil, err
	}

	model, err := r.catalog.DefaultModel(ctx, categoryForTask(req.TaskType))
	if err != nil {
		return nil, nil, err
	}
	return model, nil, nil
}

func categoryForTask(taskType string) string {
	switch taskType {
	case "image":
		return models.CategoryImage
	case "audio", "transcription":
		return models.CategoryAudio
	default:
		return models.CategoryText
	}
}

// buildChain is the primary model followed by the preference's fallbacks in
// listed order. A fallback id that no longer resolves is skipped, never
// fatal.
func (r *Router) buildChain(ctx context.Context, primary *models.Model, pref *models.ModelPreference) []*models.Model {
	chain := []*models.Model{primary}
	if pref == nil || !r.opts.EnableFallback {
		return chain
	}

	for _, id := range pref.FallbackIDs() {
		if id == primary.ID {
			continue
		}
		model, err := r.catalog.ModelByID(ctx, id)
		if err != nil {
			r.logger.Warn("Skipping unresolvable fallback model", "model_id", id, "error", err)
			continue
		}
		chain = append(chain, model)
	}
	return chain
}

// estimateCost prices the request before the call. Input tokens come from
// the 4-chars heuristic; output tokens from the max_tokens parameter when
// given, falling back to the input estimate.
func (r *Router) estimateCost(model *models.Model, req *Request) float64 {
	inputTokens := providers.EstimateMessageTokens(req.Messages)

	outputTokens := inputTokens
	if v, ok := req.Parameters["max_tokens"]; ok {
		switch n := v.(type) {
		case int:
			outputTokens = n
		case float64:
			outputTokens = int(n)
		}
	}

	return model.CalculateCost(inputTokens, outputTokens)
}

// executeChain walks the chain. Rate limits retry the same provider with
// exponential backoff from a retry budget shared across the whole chain;
// any other provider error advances to the next entry.
func (r *Router) executeChain(ctx context.Context, req *Request, chain []*models.Model, scope budget.Scope, start time.Time) (*Response, error) {
	retryCount := 0
	var lastErr error

	for idx, model := range chain {
		isFallback := idx > 0

		provider, adapter, err := r.resolveEntry(ctx, req, model)
		if err != nil {
			if !isFallback {
				return nil, err
			}
			r.logger.Warn("Skipping unresolvable fallback entry",
				"model", model.ModelName, "error", err)
			continue
		}

		if r.opts.EnableHealthCheck && !r.health.Healthy(ctx, provider.ID) {
			r.logger.Info("Skipping unhealthy provider",
				"provider", provider.Name, "model", model.ModelName)
			continue
		}

		for {
			gen, genErr := adapter.GenerateText(ctx, req.Messages, model.ModelName, req.Parameters)
			if genErr == nil {
				return r.finishSuccess(ctx, req, model, provider, gen, scope, isFallback, start)
			}

			lastErr = genErr
			if hErr := r.health.Update(ctx, provider.ID, false, genErr); hErr != nil {
				r.logger.Warn("Failed to update provider health", "error", hErr)
			}

			var rateLimit *providers.RateLimitError
			if errors.As(genErr, &rateLimit) {
				if retryCount < r.opts.MaxRetries {
					delay := r.opts.BaseDelay << retryCount
					if hinted := time.Duration(rateLimit.RetryAfterSeconds) * time.Second; hinted > delay {
						delay = hinted
					}
					retryCount++
					r.logger.Info("Rate limited, backing off",
						"provider", provider.Name, "delay", delay, "retry", retryCount)
					if sErr := r.sleep(ctx, delay); sErr != nil {
						return nil, sErr
					}
					continue
				}
				if !r.opts.EnableFallback {
					return nil, genErr
				}
			}

			// Non-retryable provider failure, or retries exhausted:
			// advance to the next chain entry.
			r.logger.Warn("Provider attempt failed",
				"provider", provider.Name, "model", model.ModelName, "error", genErr)
			break
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrAllProvidersFailed
}

func (r *Router) resolveEntry(ctx context.Context, req *Request, model *models.Model) (*models.Provider, providers.Adapter, error) {
	provider, err := r.catalog.ProviderByID(ctx, model.ProviderID)
	if err != nil {
		return nil, nil, err
	}
	adapter, err := r.adapters.AdapterFor(ctx, provider, req.UserID, req.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return provider, adapter, nil
}

func (r *Router) finishSuccess(ctx context.Context, req *Request, model *models.Model, provider *models.Provider, gen *providers.Generation, scope budget.Scope, isFallback bool, start time.Time) (*Response, error) {
	usage := gen.Usage
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	cost := model.CalculateCost(usage.PromptTokens, usage.CompletionTokens)

	if err := r.health.Update(ctx, provider.ID, true, nil); err != nil {
		r.logger.Warn("Failed to update provider health", "error", err)
	}
	if err := r.ledger.Record(ctx, scope, provider.ID, cost); err != nil {
		r.logger.Error("Failed to record spend", "provider", provider.Name, "error", err)
	}

	durationMS := time.Since(start).Milliseconds()
	r.logOutcome(req, model, provider.ID, usage, cost, durationMS, isFallback,
		models.UsageStatusSuccess, "")

	return &Response{
		RequestID:    req.RequestID,
		Content:      gen.Content,
		ModelUsed:    model.ModelName,
		ModelID:      model.ID,
		ProviderUsed: provider.Name,
		ProviderID:   provider.ID,
		Usage:        usage,
		CostUSD:      cost,
		WasFallback:  isFallback,
		DurationMS:   durationMS,
		Metadata:     gen.Metadata,
	}, nil
}

// logOutcome enqueues a usage entry. Sink failures are swallowed; usage
// logging never breaks the request path.
func (r *Router) logOutcome(req *Request, model *models.Model, providerID uuid.UUID, usage providers.Usage, cost float64, durationMS int64, isFallback bool, status, errorMessage string) {
	entry := &models.UsageLogEntry{
		RequestID:        req.RequestID,
		UserID:           req.UserID,
		ProjectID:        req.ProjectID,
		ModelID:          model.ID,
		ProviderID:       providerID,
		ModelName:        model.ModelName,
		TaskType:         req.TaskType,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		CostUSD:          cost,
		DurationMS:       durationMS,
		WasFallback:      isFallback,
		Status:           status,
		ErrorMessage:     errorMessage,
		Metadata:         models.JSONB(req.Metadata),
	}

	if err := r.sink.Enqueue(entry); err != nil {
		r.logger.Warn("Failed to enqueue usage entry", "request_id", req.RequestID, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
