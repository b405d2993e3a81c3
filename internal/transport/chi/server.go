package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/itemmatch/internal/domain"
	"github.com/kailas-cloud/itemmatch/internal/domain/comparison/match"
	"github.com/kailas-cloud/itemmatch/internal/domain/comparison/request"
	domusage "github.com/kailas-cloud/itemmatch/internal/domain/usage"
	logpkg "github.com/kailas-cloud/itemmatch/internal/logger"
	healthuc "github.com/kailas-cloud/itemmatch/internal/usecase/health"
	"github.com/kailas-cloud/itemmatch/internal/version"
)

// Response headers.
const (
	HeaderComparisonID = "X-Comparison-ID"
	HeaderOracleTokens = "X-Oracle-Tokens"
)

// compareFailedMessage is the only failure text clients see for non-input errors.
const compareFailedMessage = "Failed to compare items"

const defaultMaxBodyBytes = 1 << 20

// Comparer runs one comparison.
type Comparer interface {
	Compare(ctx context.Context, req *request.Request) (match.Result, error)
}

// UsageReporter reports oracle token usage per budget period.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthReporter aggregates dependency checks.
type HealthReporter interface {
	Check(ctx context.Context) healthuc.Report
}

// Options bound request handling.
type Options struct {
	MaxItems     int   // per list, 0 = unlimited
	MaxBodyBytes int64 // 0 = 1 MiB
}

// errorHandler tries to handle a comparison error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the comparison HTTP API.
type Server struct {
	comparison    Comparer
	usage         UsageReporter
	health        HealthReporter
	maxItems      int
	maxBodyBytes  int64
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	comparison Comparer, usage UsageReporter, health HealthReporter, opts Options, logger *zap.Logger,
) *Server {
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	s := &Server{
		comparison:   comparison,
		usage:        usage,
		health:       health,
		maxItems:     opts.MaxItems,
		maxBodyBytes: maxBody,
		logger:       logger,
	}
	// Order mirrors domain.KindOf precedence.
	s.errorHandlers = []errorHandler{
		inputHandler,
		sentinelHandler(domain.ErrOracleTimeout, http.StatusGatewayTimeout, domain.KindOracleTimeout),
		sentinelHandler(domain.ErrOracleUnavailable, http.StatusBadGateway, domain.KindOracleUnavailable),
		sentinelHandler(domain.ErrOracleQuotaExceeded, http.StatusTooManyRequests, domain.KindQuotaExceeded),
		sentinelHandler(domain.ErrMalformedResponse, http.StatusBadGateway, domain.KindMalformedResponse),
		sentinelHandler(domain.ErrSchemaViolation, http.StatusBadGateway, domain.KindSchemaViolation),
		canceledHandler,
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/api/compare-items", s.CompareItems)
	r.Get("/api/usage", s.GetUsage)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// CompareItems handles POST /api/compare-items.
func (s *Server) CompareItems(w http.ResponseWriter, r *http.Request) {
	comparisonID := comparisonIDFrom(r)
	w.Header().Set(HeaderComparisonID, comparisonID)

	log := logpkg.FromContext(r.Context()).With(zap.String("comparison_id", comparisonID))
	ctx := logpkg.ContextWithLogger(r.Context(), log)
	ctx, usage := domain.NewContextWithUsage(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	var body CompareItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge,
				fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		if field, ok := mistypedField(err); ok {
			s.handleComparisonError(ctx, w, fmt.Errorf("%w: %s", domain.ErrInvalidInput, field))
			return
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Request body is not valid JSON")
		return
	}

	if body.SimilarityThreshold == nil {
		s.handleComparisonError(ctx, w, fmt.Errorf("%w: similarityThreshold is required", domain.ErrInvalidInput))
		return
	}
	items1, err := itemsFrom("items1", body.Items1)
	if err != nil {
		s.handleComparisonError(ctx, w, err)
		return
	}
	items2, err := itemsFrom("items2", body.Items2)
	if err != nil {
		s.handleComparisonError(ctx, w, err)
		return
	}
	req, err := request.New(items1, items2, *body.SimilarityThreshold, s.maxItems)
	if err != nil {
		s.handleComparisonError(ctx, w, err)
		return
	}

	res, err := s.comparison.Compare(ctx, &req)
	setOracleHeaders(w, usage)
	if err != nil {
		s.handleComparisonError(ctx, w, err)
		return
	}

	log.Info("Items compared",
		zap.Int("items1", len(req.Items1())),
		zap.Int("items2", len(req.Items2())),
		zap.Float64("threshold", req.Threshold()),
		zap.Int("matches", res.Len()),
	)
	writeJSON(w, http.StatusOK, resultToResponse(res))
}

// GetUsage handles GET /api/usage?period=day|month.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, err := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}

	report := s.usage.GetReport(r.Context(), period)
	writeJSON(w, http.StatusOK, UsageResponse{
		Period:          string(report.Period()),
		PeriodStart:     report.PeriodStart(),
		PeriodEnd:       report.PeriodEnd(),
		TokensUsed:      report.TokensUsed(),
		TokensLimit:     report.TokensLimit(),
		TokensRemaining: report.TokensRemaining(),
		Exhausted:       report.Exhausted(),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Version: version.Version,
		Checks:  checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleComparisonError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logpkg.FromContext(ctx)
	switch kind := domain.KindOf(err); kind {
	case domain.KindInvalidInput, domain.KindCanceled:
		log.Info("Comparison rejected", zap.String("kind", string(kind)), zap.Error(err))
	default:
		log.Warn("Comparison failed",
			zap.String("kind", string(kind)),
			zap.Bool("retryable", kind.Retryable()),
			zap.Error(err),
		)
	}

	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternal, compareFailedMessage)
}

// inputHandler reports the input problem itself; it carries no internals.
func inputHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrInvalidInput) {
		return false
	}
	msg := err.Error()
	var f *domain.Failure
	if errors.As(err, &f) {
		msg = f.Err.Error()
	}
	writeError(w, http.StatusBadRequest, ErrorCode(domain.KindInvalidInput), msg)
	return true
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, kind domain.ErrorKind) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, ErrorCode(kind), compareFailedMessage)
		return true
	}
}

// canceledHandler answers a request whose caller already gave up, if the connection still listens.
func canceledHandler(w http.ResponseWriter, err error) bool {
	if domain.KindOf(err) != domain.KindCanceled {
		return false
	}
	writeError(w, http.StatusServiceUnavailable, ErrorCode(domain.KindCanceled), compareFailedMessage)
	return true
}

func comparisonIDFrom(r *http.Request) string {
	if id, err := uuid.Parse(r.Header.Get(HeaderComparisonID)); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

func setOracleHeaders(w http.ResponseWriter, usage *domain.OracleUsage) {
	if usage != nil && usage.Used {
		w.Header().Set(HeaderOracleTokens, strconv.Itoa(usage.TotalTokens))
	}
}

// itemsFrom flattens a decoded list. A missing list stays nil so request.New
// reports it as required; a null element is rejected.
func itemsFrom(name string, p *[]*string) ([]string, error) {
	if p == nil {
		return nil, nil
	}
	out := make([]string, len(*p))
	for i, item := range *p {
		if item == nil {
			return nil, fmt.Errorf("%w: %s[%d] must be a string", domain.ErrInvalidInput, name, i)
		}
		out[i] = *item
	}
	return out, nil
}

// mistypedField turns a JSON type mismatch into a client-facing message
// without Go type names.
func mistypedField(err error) (string, bool) {
	var typeErr *json.UnmarshalTypeError
	if !errors.As(err, &typeErr) {
		return "", false
	}
	field, _, _ := strings.Cut(typeErr.Field, ".")
	switch field {
	case "items1", "items2":
		return field + " must be a list of strings", true
	case "similarityThreshold":
		return "similarityThreshold must be a number", true
	default:
		return "request body must be a JSON object", true
	}
}

func resultToResponse(res match.Result) CompareItemsResponse {
	out := make([]Match, 0, res.Len())
	for _, m := range res.Matches() {
		out = append(out, Match{Item1: m.Item1(), Item2: m.Item2(), Similarity: m.Similarity()})
	}
	return CompareItemsResponse{Matches: out}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
