package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/itemmatch/internal/domain"
	"github.com/kailas-cloud/itemmatch/internal/domain/comparison/match"
	"github.com/kailas-cloud/itemmatch/internal/domain/comparison/request"
	domusage "github.com/kailas-cloud/itemmatch/internal/domain/usage"
	healthuc "github.com/kailas-cloud/itemmatch/internal/usecase/health"
)

// --- Mocks ---

type mockComparer struct {
	result match.Result
	err    error
	tokens int
	calls  int
	last   *request.Request
}

func (m *mockComparer) Compare(ctx context.Context, req *request.Request) (match.Result, error) {
	m.calls++
	m.last = req
	if m.tokens > 0 {
		domain.UsageFromContext(ctx).AddTokens(m.tokens)
	}
	return m.result, m.err
}

type panicComparer struct{}

func (panicComparer) Compare(context.Context, *request.Request) (match.Result, error) {
	panic("boom")
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

type mockUsage struct {
	lastPeriod domusage.Period
}

func (m *mockUsage) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	m.lastPeriod = period
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	return domusage.NewReport(period, start, start.AddDate(0, 1, 0), 1200, 1000)
}

func newTestServer(c Comparer, opts Options) *Server {
	h := &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{}}}
	return NewServer(c, &mockUsage{}, h, opts, zap.NewNop())
}

func doCompare(t *testing.T, s *Server, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/compare-items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	NewRouter(s, nil, zap.NewNop()).ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

// --- CompareItems ---

func TestCompareItems_Success(t *testing.T) {
	c := &mockComparer{
		result: match.NewResult([]match.Candidate{match.New("Apple", "apple ", 0.95)}),
		tokens: 321,
	}
	s := newTestServer(c, Options{})

	rr := doCompare(t, s, `{"items1":["Apple","Pear"],"items2":["apple "],"similarityThreshold":0.8}`, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp CompareItemsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(resp.Matches))
	}
	if m := resp.Matches[0]; m.Item1 != "Apple" || m.Item2 != "apple " || m.Similarity != 0.95 {
		t.Errorf("unexpected match: %+v", m)
	}
	if got := rr.Header().Get(HeaderOracleTokens); got != "321" {
		t.Errorf("expected %s=321, got %q", HeaderOracleTokens, got)
	}
	if _, err := uuid.Parse(rr.Header().Get(HeaderComparisonID)); err != nil {
		t.Errorf("expected generated comparison id, got %q", rr.Header().Get(HeaderComparisonID))
	}
	if c.last == nil || c.last.Threshold() != 0.8 || len(c.last.Items1()) != 2 {
		t.Errorf("request not passed through: %+v", c.last)
	}
}

func TestCompareItems_EmptyResultIsArray(t *testing.T) {
	c := &mockComparer{result: match.NewResult(nil)}
	s := newTestServer(c, Options{})

	rr := doCompare(t, s, `{"items1":[],"items2":["x"],"similarityThreshold":0.5}`, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"matches":[]}` {
		t.Errorf("body = %s", got)
	}
	if rr.Header().Get(HeaderOracleTokens) != "" {
		t.Error("no oracle call, no token header expected")
	}
}

func TestCompareItems_EchoesComparisonID(t *testing.T) {
	id := uuid.NewString()
	s := newTestServer(&mockComparer{}, Options{})

	rr := doCompare(t, s, `{"items1":[],"items2":[],"similarityThreshold":0}`,
		map[string]string{HeaderComparisonID: id})

	if got := rr.Header().Get(HeaderComparisonID); got != id {
		t.Errorf("expected echoed id %q, got %q", id, got)
	}

	rr = doCompare(t, s, `{"items1":[],"items2":[],"similarityThreshold":0}`,
		map[string]string{HeaderComparisonID: "not-a-uuid"})
	if got := rr.Header().Get(HeaderComparisonID); got == "not-a-uuid" {
		t.Error("invalid id must be replaced")
	}
}

func TestCompareItems_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing items1", `{"items2":[],"similarityThreshold":0.5}`, "items1 is required"},
		{"null items2", `{"items1":[],"items2":null,"similarityThreshold":0.5}`, "items2 is required"},
		{"missing threshold", `{"items1":[],"items2":[]}`, "similarityThreshold is required"},
		{"threshold above 1", `{"items1":["a"],"items2":["b"],"similarityThreshold":1.5}`, "between 0 and 1"},
		{"negative threshold", `{"items1":["a"],"items2":["b"],"similarityThreshold":-0.1}`, "between 0 and 1"},
		{"null element in items1", `{"items1":["a",null],"items2":["b"],"similarityThreshold":0.5}`, "items1[1] must be a string"},
		{"null element in items2", `{"items1":["a"],"items2":[null],"similarityThreshold":0.5}`, "items2[0] must be a string"},
		{"number element", `{"items1":["a",5],"items2":["b"],"similarityThreshold":0.5}`, "items1 must be a list of strings"},
		{"string threshold", `{"items1":["a"],"items2":["b"],"similarityThreshold":"high"}`, "similarityThreshold must be a number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &mockComparer{}
			rr := doCompare(t, newTestServer(c, Options{}), tt.body, nil)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			resp := decodeError(t, rr)
			if resp.Code != ErrorCode(domain.KindInvalidInput) {
				t.Errorf("code = %q", resp.Code)
			}
			if !strings.Contains(resp.Error, tt.want) {
				t.Errorf("error %q does not mention %q", resp.Error, tt.want)
			}
			if c.calls != 0 {
				t.Error("comparer must not run on invalid input")
			}
		})
	}
}

func TestCompareItems_MaxItems(t *testing.T) {
	c := &mockComparer{}
	rr := doCompare(t, newTestServer(c, Options{MaxItems: 1}),
		`{"items1":["a","b"],"items2":["c"],"similarityThreshold":0.5}`, nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCompareItems_MalformedJSON(t *testing.T) {
	rr := doCompare(t, newTestServer(&mockComparer{}, Options{}), `{"items1":[`, nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Code != ErrorCodeBadRequest {
		t.Errorf("code = %q", resp.Code)
	}
	if resp.Error != "Request body is not valid JSON" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestCompareItems_TypeErrorHidesDecoderText(t *testing.T) {
	rr := doCompare(t, newTestServer(&mockComparer{}, Options{}),
		`{"items1":[1],"items2":["b"],"similarityThreshold":0.5}`, nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	resp := decodeError(t, rr)
	for _, leak := range []string{"Go struct", "CompareItemsRequest", "unmarshal"} {
		if strings.Contains(resp.Error, leak) {
			t.Errorf("error %q leaks %q", resp.Error, leak)
		}
	}
}

func TestCompareItems_BodyTooLarge(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(`{"items1":["`)
	buf.WriteString(strings.Repeat("x", 2048))
	buf.WriteString(`"],"items2":[],"similarityThreshold":0.5}`)

	rr := doCompare(t, newTestServer(&mockComparer{}, Options{MaxBodyBytes: 1024}), buf.String(), nil)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorCodePayloadTooLarge {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestCompareItems_FailureMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"timeout", domain.ErrOracleTimeout, http.StatusGatewayTimeout, "oracle_timeout"},
		{"unavailable", domain.ErrOracleUnavailable, http.StatusBadGateway, "oracle_unavailable"},
		{"quota", domain.ErrOracleQuotaExceeded, http.StatusTooManyRequests, "quota_exceeded"},
		{"malformed", domain.ErrMalformedResponse, http.StatusBadGateway, "malformed_response"},
		{"schema", domain.ErrSchemaViolation, http.StatusBadGateway, "schema_violation"},
		{"canceled", context.Canceled, http.StatusServiceUnavailable, "canceled"},
		{"internal", errors.New("secret detail"), http.StatusInternalServerError, ErrorCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &mockComparer{err: domain.Fail(fmt.Errorf("oracle: secret detail: %w", tt.err))}
			rr := doCompare(t, newTestServer(c, Options{}),
				`{"items1":["a"],"items2":["b"],"similarityThreshold":0.5}`, nil)

			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rr.Code)
			}
			resp := decodeError(t, rr)
			if resp.Code != tt.code {
				t.Errorf("code = %q, want %q", resp.Code, tt.code)
			}
			if resp.Error != compareFailedMessage {
				t.Errorf("error message leaked internals: %q", resp.Error)
			}
		})
	}
}

func TestCompareItems_TokensReportedOnFailure(t *testing.T) {
	c := &mockComparer{err: domain.Fail(domain.ErrSchemaViolation), tokens: 77}
	rr := doCompare(t, newTestServer(c, Options{}),
		`{"items1":["a"],"items2":["b"],"similarityThreshold":0.5}`, nil)

	if got := rr.Header().Get(HeaderOracleTokens); got != "77" {
		t.Errorf("expected tokens header on semantic failure, got %q", got)
	}
}

// --- Router ---

func TestRouter_PanicRecovered(t *testing.T) {
	rr := doCompare(t, newTestServer(panicComparer{}, Options{}),
		`{"items1":["a"],"items2":["b"],"similarityThreshold":0.5}`, nil)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorCodeInternal {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	h := NewRouter(newTestServer(&mockComparer{}, Options{}), nil, zap.NewNop())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", http.NoBody))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/compare-items", http.NoBody))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestRouter_AuthProtectsCompareNotHealth(t *testing.T) {
	h := NewRouter(newTestServer(&mockComparer{}, Options{}), []string{"secret"}, zap.NewNop())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/compare-items",
		strings.NewReader(`{"items1":[],"items2":[],"similarityThreshold":0}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 for /health, got %d", rr.Code)
	}
}

// --- Usage ---

func TestGetUsage(t *testing.T) {
	u := &mockUsage{}
	s := NewServer(&mockComparer{}, u, &mockHealth{}, Options{}, zap.NewNop())

	rr := httptest.NewRecorder()
	s.GetUsage(rr, httptest.NewRequest(http.MethodGet, "/api/usage?period=month", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if u.lastPeriod != domusage.PeriodMonth {
		t.Errorf("period passed = %q", u.lastPeriod)
	}
	var resp UsageResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TokensUsed != 1200 || resp.TokensRemaining != 0 || !resp.Exhausted {
		t.Errorf("unexpected body: %+v", resp)
	}
}

func TestGetUsage_DefaultAndInvalidPeriod(t *testing.T) {
	u := &mockUsage{}
	s := NewServer(&mockComparer{}, u, &mockHealth{}, Options{}, zap.NewNop())

	rr := httptest.NewRecorder()
	s.GetUsage(rr, httptest.NewRequest(http.MethodGet, "/api/usage", http.NoBody))
	if rr.Code != http.StatusOK || u.lastPeriod != domusage.PeriodDay {
		t.Errorf("default period: code=%d period=%q", rr.Code, u.lastPeriod)
	}

	rr = httptest.NewRecorder()
	s.GetUsage(rr, httptest.NewRequest(http.MethodGet, "/api/usage?period=year", http.NoBody))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown period, got %d", rr.Code)
	}
}

// --- Health ---

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		status healthuc.Status
		want   int
	}{
		{"ok", healthuc.Healthy, http.StatusOK},
		{"degraded", healthuc.Degraded, http.StatusServiceUnavailable},
		{"error", healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &mockHealth{report: healthuc.Report{
				Status: tt.status,
				Checks: map[string]healthuc.CheckResult{healthuc.ComponentOracle: healthuc.CheckOK},
			}}
			s := NewServer(&mockComparer{}, &mockUsage{}, h, Options{}, zap.NewNop())

			rr := httptest.NewRecorder()
			s.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != string(tt.status) || resp.Checks["oracle"] != "ok" || resp.Version == "" {
				t.Errorf("unexpected body: %+v", resp)
			}
		})
	}
}
