package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/engine"
	"fly2any-growth/internal/storage/memory"
)

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

// fakeEngine records calls and returns canned results.
type fakeEngine struct {
	mu          sync.Mutex
	invalidated []string
	events      []domain.RetentionEvent
	flow        *domain.RetentionFlow
	panicOn     string
}

func (f *fakeEngine) Evaluate(_ context.Context, userID string) domain.GrowthDecision {
	if userID == f.panicOn {
		panic("boom")
	}
	return domain.GrowthDecision{UserID: userID, LTVSegment: domain.SegmentHigh, RecommendedAction: domain.ActionContent, Confidence: 90}
}

func (f *fakeEngine) BatchEvaluate(ctx context.Context, userIDs []string) []domain.GrowthDecision {
	out := make([]domain.GrowthDecision, len(userIDs))
	for i, id := range userIDs {
		out[i] = f.Evaluate(ctx, id)
	}
	return out
}

func (f *fakeEngine) InvalidateCache(_ context.Context, userID string) {
	f.mu.Lock()
	f.invalidated = append(f.invalidated, userID)
	f.mu.Unlock()
}

func (f *fakeEngine) ProcessEvent(_ context.Context, ev domain.RetentionEvent) *domain.RetentionFlow {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
	return f.flow
}

func (f *fakeEngine) recorded() ([]string, []domain.RetentionEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invalidated...), append([]domain.RetentionEvent(nil), f.events...)
}

func (f *fakeEngine) GetFlowMetrics(_ context.Context, userID string) domain.FlowMetrics {
	return domain.FlowMetrics{UserID: userID, History: []domain.RetentionFlow{}}
}

func newTestServer(t *testing.T, eng Engine, mutate ...func(*Options)) *httptest.Server {
	t.Helper()
	opts := Options{
		Engine: eng,
		Now:    func() time.Time { return testNow },
		NewID:  func() string { return "generated-id" },
	}
	for _, m := range mutate {
		m(&opts)
	}
	srv := httptest.NewServer(NewRouter(NewHandler(opts)))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})
	resp := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})
	resp := do(t, http.MethodGet, srv.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatus_IncludesExtraFields(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{}, func(o *Options) {
		o.Status = func() map[string]any { return map[string]any{"tracked_users": 3} }
	})

	resp := do(t, http.MethodGet, srv.URL+"/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, float64(3), body["tracked_users"])
}

func TestGetDecision(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})

	resp := do(t, http.MethodGet, srv.URL+"/v1/users/u-42/decision", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	d := decode[domain.GrowthDecision](t, resp)
	assert.Equal(t, "u-42", d.UserID)
	assert.Equal(t, domain.ActionContent, d.RecommendedAction)
}

func TestDeleteDecision(t *testing.T) {
	eng := &fakeEngine{}
	srv := newTestServer(t, eng)

	resp := do(t, http.MethodDelete, srv.URL+"/v1/users/u-42/decision", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	invalidated, _ := eng.recorded()
	assert.Equal(t, []string{"u-42"}, invalidated)
}

func TestBatchEvaluate(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})

	resp := do(t, http.MethodPost, srv.URL+"/v1/decisions/batch", `{"user_ids":["b","a","b"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[BatchResponse](t, resp)
	require.Len(t, body.Decisions, 3)
	assert.Equal(t, "b", body.Decisions[0].UserID)
	assert.Equal(t, "a", body.Decisions[1].UserID)
}

func TestBatchEvaluate_Validation(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{}, func(o *Options) { o.MaxBatch = 2 })

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty body", "", http.StatusBadRequest},
		{"malformed", `{"user_ids":`, http.StatusBadRequest},
		{"no ids", `{"user_ids":[]}`, http.StatusBadRequest},
		{"too many", `{"user_ids":["a","b","c"]}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, srv.URL+"/v1/decisions/batch", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
			body := decode[apiError](t, resp)
			assert.Equal(t, "error", body.Status)
		})
	}
}

func TestProcessEvent_SilentReturnsNullFlow(t *testing.T) {
	eng := &fakeEngine{}
	srv := newTestServer(t, eng)

	resp := do(t, http.MethodPost, srv.URL+"/v1/events", `{"type":"search","user_id":"u1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	v, present := body["flow"]
	assert.True(t, present)
	assert.Nil(t, v)

	_, events := eng.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, "generated-id", events[0].ID)
	assert.Equal(t, testNow, events[0].Timestamp)
}

func TestProcessEvent_ReturnsFlow(t *testing.T) {
	eng := &fakeEngine{flow: &domain.RetentionFlow{FlowID: "f1", UserID: "u1", FlowType: domain.FlowTrust, Channel: domain.ChannelInApp}}
	srv := newTestServer(t, eng)

	resp := do(t, http.MethodPost, srv.URL+"/v1/events", `{"id":"e1","type":"error","user_id":"u1","data":{"error_code":"X"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[EventResponse](t, resp)
	require.NotNil(t, body.Flow)
	assert.Equal(t, "f1", body.Flow.FlowID)
	_, events := eng.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, "e1", events[0].ID, "caller IDs are kept")
	assert.Equal(t, "X", events[0].Data.ErrorCode)
}

func TestProcessEvent_RequiresUser(t *testing.T) {
	eng := &fakeEngine{}
	srv := newTestServer(t, eng)

	resp := do(t, http.MethodPost, srv.URL+"/v1/events", `{"type":"error"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_, events := eng.recorded()
	assert.Empty(t, events)
}

func TestGetFlows(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})

	resp := do(t, http.MethodGet, srv.URL+"/v1/users/u1/flows", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "u1", body["user_id"])
	assert.Equal(t, []any{}, body["history"])
	assert.Nil(t, body["active_flow"])
}

func TestPanicIsRecovered(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{panicOn: "bad"})

	resp := do(t, http.MethodGet, srv.URL+"/v1/users/bad/decision", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestEndToEnd_WithEngine(t *testing.T) {
	signals := memory.NewSignalStore()
	require.NoError(t, signals.UpsertSignals(context.Background(), &domain.UserSignals{
		Profile:    domain.UserProfile{UserID: "med"},
		Behavioral: domain.BehavioralSignals{BookingAttempts: 4, AbandonedBookings: 3},
		Engagement: domain.EngagementSignals{DaysInactive: 40},
		Financial:  domain.FinancialSignals{TotalRevenue: 3000, Cancellations: 1},
	}))
	eng := engine.New(engine.Options{
		Signals:   signals,
		History:   memory.NewFlowHistoryStore(),
		Now:       func() time.Time { return testNow },
		AfterFunc: func(time.Duration, func()) func() bool { return func() bool { return true } },
	})
	srv := newTestServer(t, eng)

	resp := do(t, http.MethodPost, srv.URL+"/v1/events", `{"id":"e1","type":"abandonment","user_id":"med","data":{"stage":"booking"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[EventResponse](t, resp)
	require.NotNil(t, body.Flow)
	assert.Equal(t, domain.FlowAbandonment, body.Flow.FlowType)
	assert.True(t, body.Flow.IncentiveUsed)

	resp = do(t, http.MethodGet, srv.URL+"/v1/users/med/flows", "")
	metrics := decode[domain.FlowMetrics](t, resp)
	require.NotNil(t, metrics.ActiveFlow)
	assert.Equal(t, body.Flow.FlowID, metrics.ActiveFlow.FlowID)

	resp = do(t, http.MethodGet, srv.URL+"/v1/users/ghost/decision", "")
	d := decode[domain.GrowthDecision](t, resp)
	assert.Equal(t, domain.ActionNone, d.RecommendedAction)
	assert.Zero(t, d.Confidence)
}
