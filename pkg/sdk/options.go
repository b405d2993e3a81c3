package itemmatch

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type providerConfig struct {
	name    string // "openai" or "gemini"
	apiKey  string
	baseURL string
	model   string
}

type clientConfig struct {
	oracle   Oracle
	provider *providerConfig
	jsonMode bool

	timeout  time.Duration
	maxItems int
	rps      float64
	burst    int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithOracle sets a custom oracle. It takes precedence over WithOpenAI and WithGemini.
func WithOracle(o Oracle) Option {
	return optionFunc(func(c *clientConfig) {
		c.oracle = o
	})
}

// WithOpenAI uses an OpenAI-compatible chat completions endpoint.
// baseURL may be empty for the public API; model is required.
func WithOpenAI(apiKey, baseURL, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.provider = &providerConfig{name: "openai", apiKey: apiKey, baseURL: baseURL, model: model}
	})
}

// WithGemini uses the Google Gemini API. An empty model selects the default.
func WithGemini(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.provider = &providerConfig{name: "gemini", apiKey: apiKey, model: model}
	})
}

// WithJSONMode asks the provider for a JSON-only answer.
// Not every OpenAI-compatible endpoint supports it.
func WithJSONMode() Option {
	return optionFunc(func(c *clientConfig) {
		c.jsonMode = true
	})
}

// WithTimeout bounds a single oracle round trip. Default: 60s.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithMaxItems caps the length of each input list. Default: unlimited.
func WithMaxItems(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxItems = n
	})
}

// WithRateLimit limits oracle calls per second across all comparisons of this client.
func WithRateLimit(rps float64, burst int) Option {
	return optionFunc(func(c *clientConfig) {
		c.rps = rps
		c.burst = burst
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
