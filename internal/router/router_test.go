package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelrouter/internal/budget"
	"modelrouter/internal/models"
	"modelrouter/internal/providers"
	"modelrouter/internal/storage"
)

//
// Fakes
//

type fakeCatalog struct {
	modelsByID   map[uuid.UUID]*models.Model
	defaultModel *models.Model
	providers    map[uuid.UUID]*models.Provider
	pref         *models.ModelPreference

	prefLookups int
}

func (c *fakeCatalog) ModelByID(ctx context.Context, id uuid.UUID) (*models.Model, error) {
	if m, ok := c.modelsByID[id]; ok {
		return m, nil
	}
	return nil, storage.ErrModelNotFound
}

func (c *fakeCatalog) DefaultModel(ctx context.Context, category string) (*models.Model, error) {
	if c.defaultModel == nil {
		return nil, storage.ErrNoActiveModels
	}
	return c.defaultModel, nil
}

func (c *fakeCatalog) ProviderByID(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	if p, ok := c.providers[id]; ok {
		return p, nil
	}
	return nil, storage.ErrProviderNotFound
}

func (c *fakeCatalog) PreferenceFor(ctx context.Context, taskType string, userID, projectID *uuid.UUID) (*models.ModelPreference, error) {
	c.prefLookups++
	if c.pref == nil {
		return nil, storage.ErrPreferenceNotFound
	}
	return c.pref, nil
}

type scriptedAdapter struct {
	name  string
	calls int
	err   error
	gen   *providers.Generation
}

func (a *scriptedAdapter) Name() string { return a.name }

func (a *scriptedAdapter) GenerateText(ctx context.Context, messages []providers.Message, model string, params map[string]any) (*providers.Generation, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return a.gen, nil
}

func (a *scriptedAdapter) TestConnection(ctx context.Context) bool { return true }
func (a *scriptedAdapter) Close() error                            { return nil }

type fakeAdapters struct {
	byProvider map[uuid.UUID]providers.Adapter
	errs       map[uuid.UUID]error
}

func (s *fakeAdapters) AdapterFor(ctx context.Context, provider *models.Provider, userID, projectID *uuid.UUID) (providers.Adapter, error) {
	if err, ok := s.errs[provider.ID]; ok {
		return nil, err
	}
	a, ok := s.byProvider[provider.ID]
	if !ok {
		return nil, storage.ErrConfigNotFound
	}
	return a, nil
}

type fakeLedger struct {
	checkErr error
	checks   int
	recorded []float64
}

func (l *fakeLedger) Check(ctx context.Context, scope budget.Scope, providerID uuid.UUID, estimatedCost float64) error {
	l.checks++
	return l.checkErr
}

func (l *fakeLedger) Record(ctx context.Context, scope budget.Scope, providerID uuid.UUID, cost float64) error {
	l.recorded = append(l.recorded, cost)
	return nil
}

type healthUpdate struct {
	providerID uuid.UUID
	success    bool
}

type fakeHealth struct {
	unhealthy map[uuid.UUID]bool
	updates   []healthUpdate
}

func (h *fakeHealth) Healthy(ctx context.Context, providerID uuid.UUID) bool {
	return !h.unhealthy[providerID]
}

func (h *fakeHealth) Update(ctx context.Context, providerID uuid.UUID, success bool, attemptErr error) error {
	h.updates = append(h.updates, healthUpdate{providerID: providerID, success: success})
	return nil
}

type captureSink struct {
	entries []*models.UsageLogEntry
}

func (s *captureSink) Enqueue(entry *models.UsageLogEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}

//
// Fixture
//

type fixture struct {
	catalog *fakeCatalog
	ledger  *fakeLedger
	health  *fakeHealth
	sink    *captureSink

	modelA, modelB       *models.Model
	providerA, providerB *models.Provider
	adapterA, adapterB   *scriptedAdapter

	sleeps []time.Duration
	router *Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	providerA := &models.Provider{ID: uuid.New(), Name: "openai", Category: models.CategoryText}
	providerB := &models.Provider{ID: uuid.New(), Name: "anthropic", Category: models.CategoryText}

	modelA := &models.Model{
		ID:                  uuid.New(),
		ModelName:           "gpt-4o",
		ProviderID:          providerA.ID,
		Category:            models.CategoryText,
		InputPricePerUnit:   0.0025,
		OutputPricePerUnit:  0.01,
		PerTokenUnit:        1000,
		IsActive:            true,
	}
	modelB := &models.Model{
		ID:                  uuid.New(),
		ModelName:           "claude-sonnet-4-5",
		ProviderID:          providerB.ID,
		Category:            models.CategoryText,
		InputPricePerUnit:   0.003,
		OutputPricePerUnit:  0.015,
		PerTokenUnit:        1000,
		IsActive:            true,
	}

	adapterA := &scriptedAdapter{
		name: "openai",
		gen: &providers.Generation{
			Content: "primary response",
			Usage:   providers.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
			Model:   "gpt-4o",
		},
	}
	adapterB := &scriptedAdapter{
		name: "anthropic",
		gen: &providers.Generation{
			Content: "fallback response",
			Usage:   providers.Usage{PromptTokens: 10, CompletionTokens: 15, TotalTokens: 25},
			Model:   "claude-sonnet-4-5",
		},
	}

	catalog := &fakeCatalog{
		modelsByID: map[uuid.UUID]*models.Model{modelA.ID: modelA, modelB.ID: modelB},
		providers:  map[uuid.UUID]*models.Provider{providerA.ID: providerA, providerB.ID: providerB},
		pref: &models.ModelPreference{
			TaskType:         "text",
			PrimaryModelID:   modelA.ID,
			FallbackModelIDs: pq.StringArray{modelB.ID.String()},
		},
	}

	f := &fixture{
		catalog:   catalog,
		ledger:    &fakeLedger{},
		health:    &fakeHealth{unhealthy: map[uuid.UUID]bool{}},
		sink:      &captureSink{},
		modelA:    modelA,
		modelB:    modelB,
		providerA: providerA,
		providerB: providerB,
		adapterA:  adapterA,
		adapterB:  adapterB,
	}

	adapters := &fakeAdapters{
		byProvider: map[uuid.UUID]providers.Adapter{
			providerA.ID: adapterA,
			providerB.ID: adapterB,
		},
		errs: map[uuid.UUID]error{},
	}

	f.router = NewRouter(catalog, adapters, f.ledger, f.health, f.sink, DefaultOptions())
	f.router.sleep = func(ctx context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}

	return f
}

func textRequest() *Request {
	return &Request{TaskType: "text", Prompt: "write a haiku about rivers"}
}

//
// Tests
//

func TestExecuteUsesPreferredModel(t *testing.T) {
	f := newFixture(t)

	resp, err := f.router.Execute(context.Background(), textRequest())
	require.NoError(t, err)

	assert.Equal(t, "primary response", resp.Content)
	assert.Equal(t, "gpt-4o", resp.ModelUsed)
	assert.Equal(t, "openai", resp.ProviderUsed)
	assert.False(t, resp.WasFallback)
	assert.False(t, resp.WasCached)
	assert.Equal(t, 1, f.adapterA.calls)
	assert.Equal(t, 0, f.adapterB.calls)
	assert.GreaterOrEqual(t, resp.DurationMS, int64(0))
}

func TestExecuteExplicitModelSkipsPreference(t *testing.T) {
	f := newFixture(t)

	req := textRequest()
	req.ModelID = &f.modelB.ID

	resp, err := f.router.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "fallback response", resp.Content)
	assert.Equal(t, "anthropic", resp.ProviderUsed)
	assert.False(t, resp.WasFallback)
	assert.Zero(t, f.catalog.prefLookups)
}

func TestExecuteDefaultModelWhenNoPreference(t *testing.T) {
	f := newFixture(t)
	f.catalog.pref = nil
	f.catalog.defaultModel = f.modelB

	resp, err := f.router.Execute(context.Background(), textRequest())
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-5", resp.ModelUsed)
	assert.Equal(t, 1, f.catalog.prefLookups)
}

func TestExecuteRetriesRateLimitThenFallsBack(t *testing.T) {
	f := newFixture(t)
	f.adapterA.err = &providers.RateLimitError{Provider: "openai", Message: "too many requests"}

	resp, err := f.router.Execute(context.Background(), textRequest())
	require.NoError(t, err)

	// Initial attempt plus three retries on the rate-limited provider.
	assert.Equal(t, 4, f.adapterA.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, f.sleeps)

	assert.Equal(t, 1, f.adapterB.calls)
	assert.Equal(t, "fallback response", resp.Content)
	assert.True(t, resp.WasFallback)
}

func TestExecuteRateLimitWithoutFallbackPropagates(t *testing.T) {
	f := newFixture(t)
	f.adapterA.err = &providers.RateLimitError{Provider: "openai", Message: "too many requests"}

	opts := DefaultOptions()
	opts.EnableFallback = false
	f.router.opts = opts

	_, err := f.router.Execute(context.Background(), textRequest())
	require.Error(t, err)
	assert.True(t, providers.IsRateLimit(err))
	assert.Equal(t, 0, f.adapterB.calls)
}

func TestExecuteSkipsUnhealthyProvider(t *testing.T) {
	f := newFixture(t)
	f.health.unhealthy[f.providerA.ID] = true

	resp, err := f.router.Execute(context.Background(), textRequest())
	require.NoError(t, err)

	// No attempt and no retry against the unhealthy provider.
	assert.Equal(t, 0, f.adapterA.calls)
	assert.Empty(t, f.sleeps)
	assert.Equal(t, 1, f.adapterB.calls)
	assert.True(t, resp.WasFallback)
}

func TestExecuteBudgetGateRejectsBeforeProviderCall(t *testing.T) {
	f := newFixture(t)
	f.ledger.checkErr = &budget.BudgetExceededError{SpentUSD: 9.5, BudgetUSD: 10}

	_, err := f.router.Execute(context.Background(), textRequest())
	require.Error(t, err)

	var exceeded *budget.BudgetExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.InDelta(t, 9.5, exceeded.SpentUSD, 1e-9)

	assert.Equal(t, 0, f.adapterA.calls)
	assert.Equal(t, 0, f.adapterB.calls)
}

func TestExecuteProviderErrorAdvancesImmediately(t *testing.T) {
	f := newFixture(t)
	f.adapterA.err = &providers.ProviderError{Provider: "openai", StatusCode: 502, Message: "bad gateway"}

	resp, err := f.router.Execute(context.Background(), textRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, f.adapterA.calls)
	assert.Empty(t, f.sleeps)
	assert.True(t, resp.WasFallback)
	assert.Equal(t, "fallback response", resp.Content)
}

func TestExecuteChainExhaustedReturnsLastError(t *testing.T) {
	f := newFixture(t)
	f.adapterA.err = &providers.ProviderError{Provider: "openai", StatusCode: 500, Message: "boom"}
	f.adapterB.err = &providers.ProviderError{Provider: "anthropic", StatusCode: 529, Message: "overloaded"}

	_, err := f.router.Execute(context.Background(), textRequest())
	require.Error(t, err)

	var provErr *providers.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "anthropic", provErr.Provider)

	// Final failure still produces a timed usage entry.
	require.Len(t, f.sink.entries, 1)
	entry := f.sink.entries[0]
	assert.Equal(t, models.UsageStatusError, entry.Status)
	assert.NotEmpty(t, entry.ErrorMessage)
	assert.GreaterOrEqual(t, entry.DurationMS, int64(0))
}

func TestExecuteUnresolvableFallbackIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.adapterA.err = &providers.ProviderError{Provider: "openai", StatusCode: 500, Message: "boom"}
	// The fallback model id no longer resolves.
	delete(f.catalog.modelsByID, f.modelB.ID)

	_, err := f.router.Execute(context.Background(), textRequest())
	require.Error(t, err)

	var provErr *providers.ProviderError
	assert.ErrorAs(t, err, &provErr)
}

func TestExecuteSuccessBookkeeping(t *testing.T) {
	f := newFixture(t)

	req := textRequest()
	userID := uuid.New()
	req.UserID = &userID

	resp, err := f.router.Execute(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, f.sink.entries, 1)
	entry := f.sink.entries[0]

	assert.Equal(t, entry.PromptTokens+entry.CompletionTokens, entry.TotalTokens)
	assert.InDelta(t, f.modelA.CalculateCost(entry.PromptTokens, entry.CompletionTokens), entry.CostUSD, 1e-12)
	assert.Equal(t, models.UsageStatusSuccess, entry.Status)
	assert.False(t, entry.WasFallback)
	assert.Equal(t, resp.RequestID, entry.RequestID)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, userID, *entry.UserID)

	require.Len(t, f.ledger.recorded, 1)
	assert.InDelta(t, resp.CostUSD, f.ledger.recorded[0], 1e-12)

	require.Len(t, f.health.updates, 1)
	assert.Equal(t, f.providerA.ID, f.health.updates[0].providerID)
	assert.True(t, f.health.updates[0].success)
}

func TestExecuteFallbackSuccessStillRecordsEverything(t *testing.T) {
	f := newFixture(t)
	f.adapterA.err = &providers.ProviderError{Provider: "openai", StatusCode: 500, Message: "boom"}

	resp, err := f.router.Execute(context.Background(), textRequest())
	require.NoError(t, err)
	assert.True(t, resp.WasFallback)

	require.Len(t, f.sink.entries, 1)
	assert.True(t, f.sink.entries[0].WasFallback)

	// One failed attempt on A, one success on B.
	require.Len(t, f.health.updates, 2)
	assert.False(t, f.health.updates[0].success)
	assert.Equal(t, f.providerA.ID, f.health.updates[0].providerID)
	assert.True(t, f.health.updates[1].success)
	assert.Equal(t, f.providerB.ID, f.health.updates[1].providerID)

	require.Len(t, f.ledger.recorded, 1)
}

func TestExecuteRejectsEmptyRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.router.Execute(context.Background(), &Request{TaskType: "text"})
	require.Error(t, err)
	assert.Equal(t, 0, f.ledger.checks)
}

func TestExecutePromptBecomesUserMessage(t *testing.T) {
	f := newFixture(t)

	req := &Request{Prompt: "hello"}
	_, err := f.router.Execute(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "text", req.TaskType)
	assert.NotEqual(t, uuid.Nil, req.RequestID)
}

func TestExecuteRetryAfterHintExtendsBackoff(t *testing.T) {
	f := newFixture(t)
	f.adapterA.err = &providers.RateLimitError{Provider: "openai", RetryAfterSeconds: 5, Message: "slow down"}

	_, err := f.router.Execute(context.Background(), textRequest())
	require.NoError(t, err)

	require.Len(t, f.sleeps, 3)
	for _, d := range f.sleeps {
		assert.Equal(t, 5*time.Second, d)
	}
}

func TestExecuteSleepErrorAborts(t *testing.T) {
	f := newFixture(t)
	f.adapterA.err = &providers.RateLimitError{Provider: "openai", Message: "too many requests"}
	f.router.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	_, err := f.router.Execute(context.Background(), textRequest())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.adapterA.calls)
}

func TestCategoryForTask(t *testing.T) {
	assert.Equal(t, models.CategoryText, categoryForTask("text"))
	assert.Equal(t, models.CategoryText, categoryForTask("code"))
	assert.Equal(t, models.CategoryImage, categoryForTask("image"))
	assert.Equal(t, models.CategoryAudio, categoryForTask("transcription"))
}

func TestErrAllProvidersFailed(t *testing.T) {
	f := newFixture(t)
	f.health.unhealthy[f.providerA.ID] = true
	f.health.unhealthy[f.providerB.ID] = true

	_, err := f.router.Execute(context.Background(), textRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllProvidersFailed))
}
